// Package convert turns a stored source file into a machine-instruction
// file.
//
// Files already in the instruction format are copied byte-for-byte into the
// instructions collection. Everything else is delegated to the companion
// conversion server when one is configured; without one the conversion is
// unsupported. Geometry and toolpath computation never happen in process.
package convert
