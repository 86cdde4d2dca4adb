package config

import (
	"fmt"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizePrinter()
	c.normalizeConverter()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir
	}
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	if c.Paths.APIBind == "" {
		c.Paths.APIBind = defaultAPIBind
	}
	return nil
}

func (c *Config) normalizePrinter() {
	c.Printer.Device = strings.TrimSpace(c.Printer.Device)
	if c.Printer.Baud <= 0 {
		c.Printer.Baud = defaultPrinterBaud
	}
	if c.Printer.AckTimeoutSeconds <= 0 {
		c.Printer.AckTimeoutSeconds = defaultAckTimeoutSeconds
	}
	if c.Printer.ProbeTimeoutSeconds <= 0 {
		c.Printer.ProbeTimeoutSeconds = defaultProbeTimeoutSeconds
	}
	if c.Printer.ProbeInterval <= 0 {
		c.Printer.ProbeInterval = defaultProbeInterval
	}
}

func (c *Config) normalizeConverter() {
	c.Converter.ServerURL = strings.TrimRight(strings.TrimSpace(c.Converter.ServerURL), "/")
	if c.Converter.RequestTimeoutSeconds <= 0 {
		c.Converter.RequestTimeoutSeconds = defaultConvertTimeout
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
