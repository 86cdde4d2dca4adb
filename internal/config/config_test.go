package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"gantry/internal/config"
)

func TestLoadDefaultsExpandPaths(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	wantData := filepath.Join(tempHome, ".local", "share", "gantry", "data")
	if cfg.Paths.DataDir != wantData {
		t.Fatalf("unexpected data dir: got %q want %q", cfg.Paths.DataDir, wantData)
	}
	if cfg.Paths.APIBind != "127.0.0.1:7416" {
		t.Fatalf("unexpected api bind: %q", cfg.Paths.APIBind)
	}
	if cfg.Printer.Baud != 115200 {
		t.Fatalf("unexpected baud: %d", cfg.Printer.Baud)
	}
	if cfg.Printer.AckTimeoutSeconds != 5 {
		t.Fatalf("unexpected ack timeout: %d", cfg.Printer.AckTimeoutSeconds)
	}
	if cfg.Printer.ProbeInterval != 5 {
		t.Fatalf("unexpected probe interval: %d", cfg.Printer.ProbeInterval)
	}
	if cfg.Converter.ServerURL != "" {
		t.Fatalf("expected empty converter URL, got %q", cfg.Converter.ServerURL)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories failed: %v", err)
	}
	if _, err := os.Stat(cfg.Paths.LogDir); err != nil {
		t.Fatalf("expected log dir to exist: %v", err)
	}
}

func TestLoadParsesExplicitFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "gantry.toml")

	doc := map[string]any{
		"paths": map[string]any{
			"data_dir": filepath.Join(dir, "data"),
			"log_dir":  filepath.Join(dir, "logs"),
			"api_bind": "127.0.0.1:0",
		},
		"printer": map[string]any{
			"device": "/dev/ttyACM0",
			"baud":   250000,
		},
		"converter": map[string]any{
			"server_url": "http://workstation.local:8080/",
		},
	}
	data, err := toml.Marshal(doc)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists || resolved != path {
		t.Fatalf("expected config at %q to be used, got %q exists=%v", path, resolved, exists)
	}
	if cfg.Printer.Device != "/dev/ttyACM0" {
		t.Fatalf("unexpected device: %q", cfg.Printer.Device)
	}
	if cfg.Printer.Baud != 250000 {
		t.Fatalf("unexpected baud: %d", cfg.Printer.Baud)
	}
	if cfg.Converter.ServerURL != "http://workstation.local:8080" {
		t.Fatalf("expected trailing slash trimmed, got %q", cfg.Converter.ServerURL)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*config.Config)
	}{
		{"bad baud", func(c *config.Config) { c.Printer.Baud = 12345 }},
		{"bad format", func(c *config.Config) { c.Logging.Format = "xml" }},
		{"bad level", func(c *config.Config) { c.Logging.Level = "loud" }},
		{"bad url", func(c *config.Config) { c.Converter.ServerURL = "not a url" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := config.Default()
			tc.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}
