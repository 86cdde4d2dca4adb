package storage_test

import (
	"io"
	"testing"

	"gantry/internal/storage"
)

func TestUploadRoundTrip(t *testing.T) {
	store := newStore(t)

	up, err := store.BeginWrite("bracket.dxf")
	if err != nil {
		t.Fatalf("BeginWrite failed: %v", err)
	}
	payload := []byte("0123456789abcdef")
	if err := up.Append(payload[:8]); err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	if err := up.Append(payload[8:]); err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	if up.Size() != int64(len(payload)) {
		t.Fatalf("unexpected staged size: %d", up.Size())
	}

	// Not visible until committed.
	files, err := store.List(storage.Uploads)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(files) != 0 {
		t.Fatalf("staged upload must not be listed, got %+v", files)
	}

	if err := up.Commit(); err != nil {
		t.Fatalf("Commit failed: %v", err)
	}

	files, err = store.List(storage.Uploads)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(files) != 1 || files[0].Name != "bracket.dxf" || files[0].SizeBytes != int64(len(payload)) {
		t.Fatalf("unexpected listing after commit: %+v", files)
	}

	r, err := store.OpenRead(storage.Uploads, "bracket.dxf")
	if err != nil {
		t.Fatalf("OpenRead failed: %v", err)
	}
	defer r.Close()
	got, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if string(got) != string(payload) {
		t.Fatalf("content mismatch: %q", got)
	}
}

func TestUploadAbortDiscardsData(t *testing.T) {
	store := newStore(t)

	up, err := store.BeginWrite("scrap.dwg")
	if err != nil {
		t.Fatalf("BeginWrite failed: %v", err)
	}
	if err := up.Append([]byte("partial")); err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	up.Abort()

	files, err := store.List(storage.Uploads)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(files) != 0 {
		t.Fatalf("aborted upload must leave nothing behind, got %+v", files)
	}
	if err := up.Append([]byte("late")); err == nil {
		t.Fatal("append after abort must fail")
	}
}

func TestUploadCommitTwiceFails(t *testing.T) {
	store := newStore(t)
	up, err := store.BeginWrite("one.gcode")
	if err != nil {
		t.Fatalf("BeginWrite failed: %v", err)
	}
	if err := up.Commit(); err != nil {
		t.Fatalf("Commit failed: %v", err)
	}
	if err := up.Commit(); err == nil {
		t.Fatal("second commit must fail")
	}
}
