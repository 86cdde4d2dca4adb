package monitor

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"gantry/internal/job"
	"gantry/internal/logging"
)

func waitFor(t *testing.T, cond func() bool, what string) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestMonitorRefreshesLinkStatus(t *testing.T) {
	tracker := job.NewTracker()
	tracker.Ready()

	var machineUp atomic.Bool
	machineUp.Store(true)

	m := New(tracker,
		func() bool { return machineUp.Load() },
		func() error { return nil },
		10*time.Millisecond,
		logging.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	m.Start(ctx)

	waitFor(t, func() bool {
		status := tracker.LinkStatus()
		return status.MachineConnected && status.StoragePresent
	}, "link up")

	machineUp.Store(false)
	waitFor(t, func() bool {
		return !tracker.LinkStatus().MachineConnected
	}, "machine down")

	cancel()
	m.Wait()
}

func TestMonitorReportsMissingStorage(t *testing.T) {
	tracker := job.NewTracker()
	tracker.Ready()

	m := New(tracker,
		func() bool { return true },
		func() error { return errors.New("medium unavailable") },
		10*time.Millisecond,
		logging.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	m.Start(ctx)

	waitFor(t, func() bool {
		status := tracker.LinkStatus()
		return status.MachineConnected && !status.StoragePresent
	}, "storage absent")
}

func TestMonitorSkipsProbesWhileBusy(t *testing.T) {
	tracker := job.NewTracker()
	tracker.Ready()
	if err := tracker.BeginPrint("part.gcode"); err != nil {
		t.Fatalf("BeginPrint() error = %v", err)
	}

	var probes atomic.Int64
	m := New(tracker,
		func() bool { probes.Add(1); return true },
		func() error { return nil },
		5*time.Millisecond,
		logging.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	m.Start(ctx)

	time.Sleep(60 * time.Millisecond)
	if n := probes.Load(); n != 0 {
		t.Fatalf("machine probed %d times while printing, want 0", n)
	}

	tracker.FinishPrint()
	waitFor(t, func() bool { return probes.Load() > 0 }, "probe after idle")
}

func TestMonitorProbesOnlyWhileIdle(t *testing.T) {
	tracker := job.NewTracker()
	tracker.Ready()
	tracker.Fail("machine jammed")

	var probes atomic.Int64
	m := New(tracker,
		func() bool { probes.Add(1); return true },
		func() error { return nil },
		5*time.Millisecond,
		logging.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	m.Start(ctx)

	time.Sleep(60 * time.Millisecond)
	if n := probes.Load(); n != 0 {
		t.Fatalf("machine probed %d times in error phase, want 0", n)
	}

	// Error is superseded by the next job; back at idle the cadence resumes.
	if err := tracker.BeginUpload("next.gcode"); err != nil {
		t.Fatalf("BeginUpload() error = %v", err)
	}
	tracker.FinishUpload()
	waitFor(t, func() bool { return probes.Load() > 0 }, "probe after recovery")
}

func TestKickTriggersImmediateProbe(t *testing.T) {
	tracker := job.NewTracker()
	tracker.Ready()

	var probes atomic.Int64
	m := New(tracker,
		func() bool { probes.Add(1); return true },
		func() error { return nil },
		time.Hour,
		logging.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	m.Start(ctx)

	m.Kick()
	waitFor(t, func() bool { return probes.Load() == 1 }, "kicked probe")
}
