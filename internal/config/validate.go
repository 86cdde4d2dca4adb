package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validatePrinter(); err != nil {
		return err
	}
	if err := c.validateConverter(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validatePaths() error {
	if c.Paths.DataDir == "" {
		return errors.New("paths.data_dir must be set")
	}
	if c.Paths.LogDir == "" {
		return errors.New("paths.log_dir must be set")
	}
	return nil
}

func (c *Config) validatePrinter() error {
	switch c.Printer.Baud {
	case 9600, 19200, 38400, 57600, 115200, 230400, 250000:
	default:
		return fmt.Errorf("printer.baud: unsupported rate %d", c.Printer.Baud)
	}
	return nil
}

func (c *Config) validateConverter() error {
	if c.Converter.ServerURL == "" {
		return nil
	}
	parsed, err := url.Parse(c.Converter.ServerURL)
	if err != nil || parsed.Host == "" || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		return fmt.Errorf("converter.server_url: invalid URL %q", c.Converter.ServerURL)
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "error":
		return nil
	default:
		return fmt.Errorf("logging.level must be debug, info, warn, or error, got %q", c.Logging.Level)
	}
}
