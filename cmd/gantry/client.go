package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gantry/internal/storage"
)

// apiClient talks to the daemon's HTTP control API.
type apiClient struct {
	base string
	http *http.Client
}

func newAPIClient(addr string) *apiClient {
	base := addr
	if !strings.Contains(base, "://") {
		base = "http://" + base
	}
	return &apiClient{
		base: strings.TrimRight(base, "/"),
		http: &http.Client{Timeout: 5 * time.Minute},
	}
}

type statusPayload struct {
	DeviceName string `json:"device_name"`
	Job        struct {
		File     string `json:"file"`
		Phase    string `json:"phase"`
		Progress int    `json:"progress"`
		Error    string `json:"error"`
	} `json:"job"`
	Link struct {
		StoragePresent   bool `json:"storage_present"`
		MachineConnected bool `json:"machine_connected"`
	} `json:"link"`
}

func (c *apiClient) Status(ctx context.Context) (statusPayload, error) {
	var status statusPayload
	err := c.getJSON(ctx, "/api/status", &status)
	return status, err
}

func (c *apiClient) Files(ctx context.Context, dir string) ([]storage.StoredFile, error) {
	var listing struct {
		Files []storage.StoredFile `json:"files"`
	}
	path := "/api/files?dir=" + url.QueryEscape(dir)
	if err := c.getJSON(ctx, path, &listing); err != nil {
		return nil, err
	}
	return listing.Files, nil
}

func (c *apiClient) Upload(ctx context.Context, localPath string) (string, int64, error) {
	file, err := os.Open(localPath)
	if err != nil {
		return "", 0, fmt.Errorf("open %s: %w", localPath, err)
	}
	defer file.Close()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", filepath.Base(localPath))
	if err != nil {
		return "", 0, err
	}
	if _, err := io.Copy(part, file); err != nil {
		return "", 0, fmt.Errorf("read %s: %w", localPath, err)
	}
	if err := writer.Close(); err != nil {
		return "", 0, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+"/api/upload", &body)
	if err != nil {
		return "", 0, err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	var result struct {
		File string `json:"file"`
		Size int64  `json:"size"`
	}
	if err := c.do(req, &result); err != nil {
		return "", 0, err
	}
	return result.File, result.Size, nil
}

func (c *apiClient) Convert(ctx context.Context, file, dir string) (string, error) {
	payload := map[string]string{"file": file}
	if dir != "" {
		payload["dir"] = dir
	}
	var result struct {
		File string `json:"file"`
	}
	if err := c.postJSON(ctx, "/api/convert", payload, &result); err != nil {
		return "", err
	}
	return result.File, nil
}

func (c *apiClient) Print(ctx context.Context, file string) error {
	return c.postJSON(ctx, "/api/print", map[string]string{"file": file}, nil)
}

func (c *apiClient) Delete(ctx context.Context, dir, name string) error {
	path := fmt.Sprintf("/api/files?dir=%s&name=%s", url.QueryEscape(dir), url.QueryEscape(name))
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.base+path, nil)
	if err != nil {
		return err
	}
	return c.do(req, nil)
}

func (c *apiClient) Settings(ctx context.Context) (map[string]string, error) {
	var values map[string]string
	if err := c.getJSON(ctx, "/api/settings", &values); err != nil {
		return nil, err
	}
	return values, nil
}

func (c *apiClient) UpdateSettings(ctx context.Context, updates map[string]string) (map[string]string, error) {
	var values map[string]string
	if err := c.postJSON(ctx, "/api/settings", updates, &values); err != nil {
		return nil, err
	}
	return values, nil
}

func (c *apiClient) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+path, nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *apiClient) postJSON(ctx context.Context, path string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *apiClient) do(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("is the daemon running? %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var failure struct {
			Error string `json:"error"`
		}
		if decodeErr := json.NewDecoder(resp.Body).Decode(&failure); decodeErr == nil && failure.Error != "" {
			return fmt.Errorf("%s", failure.Error)
		}
		return fmt.Errorf("daemon returned %s", resp.Status)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
