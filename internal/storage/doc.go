// Package storage is the file store backing the job pipeline.
//
// Files live in three collections under the data root: uploads (incoming
// design files), converted (intermediate results), and gcode (machine-ready
// instruction files). Callers address files by (collection, name); the store
// builds every path itself and never accepts absolute paths. Absence of the
// storage medium degrades every operation to ErrMediumUnavailable.
package storage
