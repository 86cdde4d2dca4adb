// Package job owns the single active Job and its phase transitions.
//
// The Tracker is the authoritative state consumed by the HTTP handlers, the
// print worker, and the status observers. At most one job is in flight at
// any instant; a begin request while another job is active is rejected with
// ErrConflict before any state changes. The Error phase is not sticky: any
// valid new request supersedes it.
package job
