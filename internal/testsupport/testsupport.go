// Package testsupport provides shared helpers for package tests.
package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"gantry/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.DataDir = filepath.Join(base, "data")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Paths.APIBind = "127.0.0.1:0"
	cfg.Printer.Device = filepath.Join(base, "ttyUSB0")
	cfg.Printer.AckTimeoutSeconds = 1
	cfg.Printer.ProbeTimeoutSeconds = 1
	cfg.Printer.ProbeInterval = 1

	for _, opt := range opts {
		opt(&cfg)
	}

	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}
	return &cfg
}

// WithConverterURL sets the remote conversion server on the test config.
func WithConverterURL(url string) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Converter.ServerURL = url
	}
}

// WithDevice overrides the serial device path on the test config.
func WithDevice(path string) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Printer.Device = path
	}
}

// WriteFile creates a file with the given contents, creating parent
// directories as needed.
func WriteFile(t testing.TB, path, contents string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}
