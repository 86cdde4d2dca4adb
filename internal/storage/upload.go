package storage

import (
	"fmt"
	"os"
	"path/filepath"
)

// partialSuffix marks in-flight uploads so they never appear in listings.
const partialSuffix = ".partial"

// Upload is an in-flight chunked write into the uploads collection. The
// network layer drives it through Append calls and finishes with Commit or
// Abort; the file only becomes visible in the collection on Commit.
type Upload struct {
	store *Store
	name  string
	temp  string
	file  *os.File
	size  int64
	done  bool
}

// BeginWrite starts a chunked upload for the given file name. Data is
// staged beside the final location and renamed into place on Commit.
func (s *Store) BeginWrite(name string) (*Upload, error) {
	final, err := s.path(Uploads, name)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(final), 0o755); err != nil {
		return nil, fmt.Errorf("create collection %s: %w", Uploads, err)
	}
	temp := final + partialSuffix
	file, err := os.Create(temp)
	if err != nil {
		return nil, fmt.Errorf("stage upload %s: %w", name, err)
	}
	return &Upload{
		store: s,
		name:  filepath.Base(final),
		temp:  temp,
		file:  file,
	}, nil
}

// Name returns the file name the upload will be stored under.
func (u *Upload) Name() string {
	return u.name
}

// Size returns the number of bytes appended so far.
func (u *Upload) Size() int64 {
	return u.size
}

// Append writes the next chunk of upload data.
func (u *Upload) Append(chunk []byte) error {
	if u.done {
		return fmt.Errorf("upload %s already finished", u.name)
	}
	n, err := u.file.Write(chunk)
	u.size += int64(n)
	if err != nil {
		return fmt.Errorf("append to upload %s: %w", u.name, err)
	}
	return nil
}

// Commit persists the upload into the uploads collection.
func (u *Upload) Commit() error {
	if u.done {
		return fmt.Errorf("upload %s already finished", u.name)
	}
	u.done = true
	if err := u.file.Sync(); err != nil {
		_ = u.file.Close()
		_ = os.Remove(u.temp)
		return fmt.Errorf("sync upload %s: %w", u.name, err)
	}
	if err := u.file.Close(); err != nil {
		_ = os.Remove(u.temp)
		return fmt.Errorf("close upload %s: %w", u.name, err)
	}
	final := u.temp[:len(u.temp)-len(partialSuffix)]
	if err := os.Rename(u.temp, final); err != nil {
		_ = os.Remove(u.temp)
		return fmt.Errorf("commit upload %s: %w", u.name, err)
	}
	return nil
}

// Abort discards the staged data.
func (u *Upload) Abort() {
	if u.done {
		return
	}
	u.done = true
	_ = u.file.Close()
	_ = os.Remove(u.temp)
}
