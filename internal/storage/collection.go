package storage

import (
	"path/filepath"
	"strings"
)

// Collection is one of the three logical file groupings.
type Collection string

const (
	// Uploads holds incoming design files as received from the network.
	Uploads Collection = "uploads"
	// Converted holds intermediate conversion results.
	Converted Collection = "converted"
	// Instructions holds machine-ready G-code files.
	Instructions Collection = "gcode"
)

var allCollections = []Collection{Uploads, Converted, Instructions}

// AllCollections returns the ordered list of known collections.
func AllCollections() []Collection {
	cp := make([]Collection, len(allCollections))
	copy(cp, allCollections)
	return cp
}

// ParseCollection converts a directory string (with or without a leading
// slash) into a known Collection.
func ParseCollection(value string) (Collection, bool) {
	normalized := strings.Trim(strings.ToLower(strings.TrimSpace(value)), "/")
	switch Collection(normalized) {
	case Uploads:
		return Uploads, true
	case Converted:
		return Converted, true
	case Instructions:
		return Instructions, true
	default:
		return "", false
	}
}

// instructionExtensions are the file extensions the attached machine accepts
// directly.
var instructionExtensions = map[string]struct{}{
	".gcode": {},
	".gco":   {},
}

// IsInstructionFile reports whether the name carries a machine-instruction
// extension.
func IsInstructionFile(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	_, ok := instructionExtensions[ext]
	return ok
}

// InstructionName replaces the extension of a source file name with the
// canonical instruction extension.
func InstructionName(name string) string {
	base := filepath.Base(name)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	if stem == "" {
		stem = base
	}
	return stem + ".gcode"
}

// StoredFile is one entry in a collection.
type StoredFile struct {
	Name        string     `json:"name"`
	SizeBytes   int64      `json:"size"`
	IsDirectory bool       `json:"is_dir"`
	Collection  Collection `json:"collection"`
}
