package job

import "strings"

// Phase represents the lifecycle of the active job.
type Phase string

const (
	// PhaseStarting is the pre-state before the initial storage and link
	// probes complete.
	PhaseStarting   Phase = "starting"
	PhaseIdle       Phase = "idle"
	PhaseUploading  Phase = "uploading"
	PhaseConverting Phase = "converting"
	PhasePrinting   Phase = "printing"
	PhaseError      Phase = "error"
)

var allPhases = []Phase{
	PhaseStarting,
	PhaseIdle,
	PhaseUploading,
	PhaseConverting,
	PhasePrinting,
	PhaseError,
}

var phaseSet = func() map[Phase]struct{} {
	set := make(map[Phase]struct{}, len(allPhases))
	for _, phase := range allPhases {
		set[phase] = struct{}{}
	}
	return set
}()

// ParsePhase converts a string into a known Phase.
func ParsePhase(value string) (Phase, bool) {
	normalized := Phase(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := phaseSet[normalized]
	return normalized, ok
}

// Busy reports whether the phase represents an in-flight job that blocks
// new upload, convert, or print requests.
func (p Phase) Busy() bool {
	switch p {
	case PhaseUploading, PhaseConverting, PhasePrinting:
		return true
	default:
		return false
	}
}

// Job is the unit of work for one file moving through the pipeline.
type Job struct {
	// File is the (collection-relative) path of the file being acted upon.
	File string
	// Phase is the current lifecycle phase.
	Phase Phase
	// Progress is a percentage in [0,100], meaningful only while printing.
	Progress int
	// ErrorDetail is a diagnostic message, valid only in the error phase.
	ErrorDetail string
}

// LinkStatus is the latest health snapshot of the storage medium and the
// printer link. Values may be stale by up to one probe interval.
type LinkStatus struct {
	StoragePresent   bool `json:"storage_present"`
	MachineConnected bool `json:"machine_connected"`
}

// Snapshot is a consistent read of the job and link state.
type Snapshot struct {
	Job  Job
	Link LinkStatus
}
