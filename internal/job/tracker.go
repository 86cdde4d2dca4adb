package job

import (
	"errors"
	"fmt"
	"sync"
)

// ErrConflict is returned when a new job is requested while one is in flight.
var ErrConflict = errors.New("another job is already in progress")

// Tracker is the single owned state object holding the active Job and the
// link health snapshot. All mutation goes through transition methods; readers
// take copies via Snapshot and never observe partial updates.
type Tracker struct {
	mu   sync.RWMutex
	job  Job
	link LinkStatus
}

// NewTracker returns a tracker in the starting pre-state. Call Ready once the
// initial probes complete.
func NewTracker() *Tracker {
	return &Tracker{job: Job{Phase: PhaseStarting}}
}

// Snapshot returns a consistent copy of the job and link state.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return Snapshot{Job: t.job, Link: t.link}
}

// Ready transitions the startup pre-state to idle. It is a no-op once the
// tracker has left the pre-state.
func (t *Tracker) Ready() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.job.Phase == PhaseStarting {
		t.job = Job{Phase: PhaseIdle}
	}
}

// SetLinkStatus records the latest probe results, last-write-wins.
func (t *Tracker) SetLinkStatus(status LinkStatus) {
	t.mu.Lock()
	t.link = status
	t.mu.Unlock()
}

// LinkStatus returns the most recent probe results.
func (t *Tracker) LinkStatus() LinkStatus {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.link
}

// BeginUpload starts a new upload job. The previous completed or errored job
// is superseded.
func (t *Tracker) BeginUpload(file string) error {
	return t.begin(PhaseUploading, file)
}

// FinishUpload returns the tracker to idle after a completed upload.
func (t *Tracker) FinishUpload() {
	t.finish(PhaseUploading, nil)
}

// BeginConvert starts a new conversion job.
func (t *Tracker) BeginConvert(file string) error {
	return t.begin(PhaseConverting, file)
}

// FinishConvert returns the tracker to idle on success or moves it to the
// error phase with the failure detail.
func (t *Tracker) FinishConvert(err error) {
	t.finish(PhaseConverting, err)
}

// BeginPrint starts a new print job with progress zero.
func (t *Tracker) BeginPrint(file string) error {
	return t.begin(PhasePrinting, file)
}

// SetPrintProgress records streaming progress. Values are clamped to [0,100]
// and ignored outside the printing phase.
func (t *Tracker) SetPrintProgress(percent int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.job.Phase != PhasePrinting {
		return
	}
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}
	if percent > t.job.Progress {
		t.job.Progress = percent
	}
}

// FinishPrint marks the stream complete: progress 100, phase idle. Returning
// to idle after printing is the completion signal; there is no separate done
// phase.
func (t *Tracker) FinishPrint() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.job.Phase != PhasePrinting {
		return
	}
	t.job.Phase = PhaseIdle
	t.job.Progress = 100
	t.job.ErrorDetail = ""
}

// FailPrint moves a printing job to the error phase, e.g. when the
// instruction file cannot be opened.
func (t *Tracker) FailPrint(detail string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.job.Phase != PhasePrinting {
		return
	}
	t.job.Phase = PhaseError
	t.job.Progress = 0
	t.job.ErrorDetail = detail
}

// Fail moves the active job to the error phase regardless of its phase.
// Used for storage medium failures that abort any operation.
func (t *Tracker) Fail(detail string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.job.Phase = PhaseError
	t.job.Progress = 0
	t.job.ErrorDetail = detail
}

func (t *Tracker) begin(phase Phase, file string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.job.Phase.Busy() {
		return fmt.Errorf("%w: %s %s", ErrConflict, t.job.Phase, t.job.File)
	}
	t.job = Job{File: file, Phase: phase}
	return nil
}

func (t *Tracker) finish(from Phase, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.job.Phase != from {
		return
	}
	if err != nil {
		t.job.Phase = PhaseError
		t.job.ErrorDetail = err.Error()
		return
	}
	t.job.Phase = PhaseIdle
	t.job.ErrorDetail = ""
}
