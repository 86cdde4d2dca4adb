package settings

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
)

const legacyConfigName = "config.json"

// legacyConfig is the flat JSON file earlier releases kept at the data
// root. The file is read once to seed an empty database and is not removed.
type legacyConfig struct {
	ServerURL      string `json:"server_url"`
	DeviceName     string `json:"device_name"`
	PrinterBaud    int    `json:"printer_baud"`
	AutoStartPrint bool   `json:"auto_start_print"`
}

func (s *Store) importLegacy(ctx context.Context, dataDir string) error {
	var stored int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(1) FROM settings").Scan(&stored); err != nil {
		return fmt.Errorf("count settings: %w", err)
	}
	if stored > 0 {
		return nil
	}

	data, err := os.ReadFile(filepath.Join(dataDir, legacyConfigName))
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read legacy config: %w", err)
	}

	var legacy legacyConfig
	if err := json.Unmarshal(data, &legacy); err != nil {
		return fmt.Errorf("parse legacy config: %w", err)
	}

	imports := map[string]string{}
	if legacy.ServerURL != "" {
		imports[KeyServerURL] = legacy.ServerURL
	}
	if legacy.DeviceName != "" {
		imports[KeyDeviceName] = legacy.DeviceName
	}
	if legacy.PrinterBaud > 0 {
		imports[KeyPrinterBaud] = strconv.Itoa(legacy.PrinterBaud)
	}
	imports[KeyAutoStartPrint] = strconv.FormatBool(legacy.AutoStartPrint)

	for key, value := range imports {
		if err := s.Put(ctx, key, value); err != nil {
			return fmt.Errorf("import legacy %s: %w", key, err)
		}
	}
	return nil
}
