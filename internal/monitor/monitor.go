// Package monitor keeps the link health half of the status snapshot fresh.
// A poll loop probes the storage medium and the machine on a fixed cadence,
// and a udev hotplug watcher requests an immediate probe when the serial
// device comes or goes.
package monitor

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"gantry/internal/job"
	"gantry/internal/logging"
)

// Monitor periodically refreshes the tracker's link status. Probes run only
// while the job phase is idle, so the machine link is never touched while a
// job is in flight or the daemon is still starting.
type Monitor struct {
	tracker      *job.Tracker
	probeMachine func() bool
	probeStorage func() error
	interval     time.Duration
	logger       *slog.Logger

	kick chan struct{}
	wg   sync.WaitGroup
}

func New(tracker *job.Tracker, probeMachine func() bool, probeStorage func() error, interval time.Duration, logger *slog.Logger) *Monitor {
	return &Monitor{
		tracker:      tracker,
		probeMachine: probeMachine,
		probeStorage: probeStorage,
		interval:     interval,
		logger:       logging.NewComponentLogger(logger, "link-monitor"),
		kick:         make(chan struct{}, 1),
	}
}

// Start launches the poll loop. It runs until ctx is canceled.
func (m *Monitor) Start(ctx context.Context) {
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		m.run(ctx)
	}()
}

// Wait blocks until the poll loop exits.
func (m *Monitor) Wait() {
	m.wg.Wait()
}

// Kick requests a probe ahead of the next tick. Duplicate requests collapse
// into one.
func (m *Monitor) Kick() {
	select {
	case m.kick <- struct{}{}:
	default:
	}
}

func (m *Monitor) run(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.probe()
		case <-m.kick:
			m.probe()
		}
	}
}

func (m *Monitor) probe() {
	if phase := m.tracker.Snapshot().Job.Phase; phase != job.PhaseIdle {
		m.logger.Debug("skipping link probe",
			logging.String(logging.FieldPhase, string(phase)))
		return
	}

	status := job.LinkStatus{
		StoragePresent:   m.probeStorage() == nil,
		MachineConnected: m.probeMachine(),
	}

	previous := m.tracker.LinkStatus()
	m.tracker.SetLinkStatus(status)

	if status != previous {
		m.logger.Info("link status changed",
			logging.Bool("storage_present", status.StoragePresent),
			logging.Bool("machine_connected", status.MachineConnected))
	}
}
