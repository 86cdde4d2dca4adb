// Package config loads, validates, and normalizes the gantry configuration
// file. All path fields are expanded to absolute paths during Load so the
// rest of the system never deals with "~" or relative directories.
package config
