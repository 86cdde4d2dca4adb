// Package printer drives the line-oriented acknowledgment protocol over the
// serial link to the attached machine.
//
// The streamer sends one instruction record at a time and waits for the
// acknowledgment token before moving on. A missing or malformed
// acknowledgment is logged for that line and streaming continues: the
// protocol tolerates per-line NACKs as designed, because the hard failure
// mode is a stalled or disconnected machine, which the link monitor detects
// instead. Only an unopenable instruction file aborts a print.
//
// A single worker goroutine owns the link for the duration of a print, fed
// through a request queue, so at most one stream is ever in flight.
package printer
