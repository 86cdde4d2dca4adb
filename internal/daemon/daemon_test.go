package daemon

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"gantry/internal/job"
	"gantry/internal/logging"
	"gantry/internal/settings"
	"gantry/internal/storage"
	"gantry/internal/testsupport"
)

func startDaemon(t *testing.T) *Daemon {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	d, err := New(cfg, logging.NewNop())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(func() {
		cancel()
		_ = d.Close()
	})
	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	return d
}

func apiURL(d *Daemon, path string) string {
	return "http://" + d.APIAddr() + path
}

func getJSON(t *testing.T, url string, out any) int {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode %s: %v", url, err)
		}
	}
	return resp.StatusCode
}

func postJSON(t *testing.T, url string, body string, out any) int {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	defer resp.Body.Close()
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode %s: %v", url, err)
		}
	}
	return resp.StatusCode
}

func uploadFile(t *testing.T, d *Daemon, name, contents string) int {
	t.Helper()
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", name)
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := io.WriteString(part, contents); err != nil {
		t.Fatalf("write form file: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close multipart writer: %v", err)
	}

	resp, err := http.Post(apiURL(d, "/api/upload"), writer.FormDataContentType(), &buf)
	if err != nil {
		t.Fatalf("POST /api/upload: %v", err)
	}
	defer resp.Body.Close()
	return resp.StatusCode
}

func TestStatusReportsIdleAfterStartup(t *testing.T) {
	d := startDaemon(t)

	var status struct {
		DeviceName string `json:"device_name"`
		Job        struct {
			Phase string `json:"phase"`
		} `json:"job"`
		Link job.LinkStatus `json:"link"`
	}
	if code := getJSON(t, apiURL(d, "/api/status"), &status); code != http.StatusOK {
		t.Fatalf("GET /api/status = %d", code)
	}
	if status.Job.Phase != string(job.PhaseIdle) {
		t.Fatalf("phase = %q, want idle", status.Job.Phase)
	}
	if status.DeviceName == "" {
		t.Fatal("device_name empty, want default")
	}
	if !status.Link.StoragePresent {
		t.Fatal("storage_present = false for temp data dir")
	}
	if status.Link.MachineConnected {
		t.Fatal("machine_connected = true with no serial device")
	}
}

func TestUploadConvertListRoundTrip(t *testing.T) {
	d := startDaemon(t)

	if code := uploadFile(t, d, "part.gcode", "G28\nG1 X5\n"); code != http.StatusCreated {
		t.Fatalf("upload = %d, want 201", code)
	}

	var converted struct {
		File string `json:"file"`
	}
	code := postJSON(t, apiURL(d, "/api/convert"), `{"file":"part.gcode","dir":"uploads"}`, &converted)
	if code != http.StatusOK {
		t.Fatalf("convert = %d, want 200", code)
	}
	if converted.File != "part.gcode" {
		t.Fatalf("converted file = %q", converted.File)
	}

	var listing struct {
		Files []storage.StoredFile `json:"files"`
	}
	if code := getJSON(t, apiURL(d, "/api/files?dir=gcode"), &listing); code != http.StatusOK {
		t.Fatalf("list = %d, want 200", code)
	}
	if len(listing.Files) != 1 || listing.Files[0].Name != "part.gcode" {
		t.Fatalf("gcode listing = %+v", listing.Files)
	}
}

func TestConvertUsesRemoteServerFromSettings(t *testing.T) {
	remote := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/convert" {
			http.NotFound(w, r)
			return
		}
		if got := r.Header.Get("X-Filename"); got != "model.stl" {
			t.Errorf("X-Filename = %q", got)
		}
		fmt.Fprint(w, "G28\nG1 Z10\n")
	}))
	defer remote.Close()

	d := startDaemon(t)
	if code := postJSON(t, apiURL(d, "/api/settings"), fmt.Sprintf(`{"server_url":%q}`, remote.URL), nil); code != http.StatusOK {
		t.Fatalf("settings update = %d", code)
	}

	if code := uploadFile(t, d, "model.stl", "solid model"); code != http.StatusCreated {
		t.Fatalf("upload = %d", code)
	}

	var converted struct {
		File string `json:"file"`
	}
	if code := postJSON(t, apiURL(d, "/api/convert"), `{"file":"model.stl"}`, &converted); code != http.StatusOK {
		t.Fatalf("convert = %d, want 200", code)
	}
	if converted.File != "model.gcode" {
		t.Fatalf("converted file = %q, want model.gcode", converted.File)
	}
}

func TestConvertMissingFileLeavesJobIdle(t *testing.T) {
	d := startDaemon(t)

	if code := postJSON(t, apiURL(d, "/api/convert"), `{"file":"ghost.stl"}`, nil); code != http.StatusNotFound {
		t.Fatalf("convert of missing file = %d, want 404", code)
	}

	snap := d.Snapshot()
	if snap.Job.Phase != job.PhaseIdle {
		t.Fatalf("phase after rejected convert = %q, want idle", snap.Job.Phase)
	}
	if snap.Job.ErrorDetail != "" {
		t.Fatalf("ErrorDetail = %q, want empty", snap.Job.ErrorDetail)
	}
}

func TestPrintRequestGuards(t *testing.T) {
	d := startDaemon(t)

	if code := postJSON(t, apiURL(d, "/api/print"), `{"file":"notes.txt"}`, nil); code != http.StatusBadRequest {
		t.Fatalf("print of txt = %d, want 400", code)
	}
	if code := postJSON(t, apiURL(d, "/api/print"), `{"file":"ghost.gcode"}`, nil); code != http.StatusNotFound {
		t.Fatalf("print of missing file = %d, want 404", code)
	}
}

func TestBusyPhaseRejectsNewWork(t *testing.T) {
	d := startDaemon(t)

	if err := d.tracker.BeginPrint("held.gcode"); err != nil {
		t.Fatalf("BeginPrint() error = %v", err)
	}
	t.Cleanup(d.tracker.FinishPrint)

	if code := uploadFile(t, d, "late.gcode", "G28\n"); code != http.StatusConflict {
		t.Fatalf("upload while printing = %d, want 409", code)
	}
	if code := postJSON(t, apiURL(d, "/api/convert"), `{"file":"late.gcode"}`, nil); code != http.StatusConflict {
		t.Fatalf("convert while printing = %d, want 409", code)
	}
}

func TestSettingsEndpoint(t *testing.T) {
	d := startDaemon(t)

	var values map[string]string
	if code := getJSON(t, apiURL(d, "/api/settings"), &values); code != http.StatusOK {
		t.Fatalf("GET /api/settings = %d", code)
	}
	if values[settings.KeyPrinterBaud] != "115200" {
		t.Fatalf("default baud = %q", values[settings.KeyPrinterBaud])
	}

	if code := postJSON(t, apiURL(d, "/api/settings"), `{"device_name":"bench-printer"}`, &values); code != http.StatusOK {
		t.Fatalf("POST /api/settings = %d", code)
	}
	if values[settings.KeyDeviceName] != "bench-printer" {
		t.Fatalf("updated device name = %q", values[settings.KeyDeviceName])
	}

	if code := postJSON(t, apiURL(d, "/api/settings"), `{"wifi_password":"x"}`, nil); code != http.StatusBadRequest {
		t.Fatalf("unknown key = %d, want 400", code)
	}
}

func TestDeleteFile(t *testing.T) {
	d := startDaemon(t)

	if code := uploadFile(t, d, "scrap.gcode", "G28\n"); code != http.StatusCreated {
		t.Fatalf("upload = %d", code)
	}

	req, err := http.NewRequest(http.MethodDelete, apiURL(d, "/api/files?dir=uploads&name=scrap.gcode"), nil)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("DELETE: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("delete = %d, want 204", resp.StatusCode)
	}

	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("DELETE again: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("second delete = %d, want 404", resp.StatusCode)
	}
}

func TestSecondInstanceRefused(t *testing.T) {
	cfg := testsupport.NewConfig(t)

	first, err := New(cfg, logging.NewNop())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() { _ = first.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := first.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	second, err := New(cfg, logging.NewNop())
	if err != nil {
		t.Fatalf("New(second) error = %v", err)
	}
	t.Cleanup(func() { _ = second.settings.Close() })

	if err := second.Start(ctx); err == nil {
		second.Stop()
		t.Fatal("second Start() succeeded, want lock refusal")
	}
}
