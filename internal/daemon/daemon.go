// Package daemon wires the controller's components together and runs them
// as a single-instance background process with an HTTP control surface.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"path/filepath"
	"strconv"
	"sync/atomic"

	"github.com/gofrs/flock"

	"gantry/internal/config"
	"gantry/internal/convert"
	"gantry/internal/job"
	"gantry/internal/logging"
	"gantry/internal/monitor"
	"gantry/internal/printer"
	"gantry/internal/settings"
	"gantry/internal/storage"
)

// ErrNotInstructionFile rejects print requests for files that are not
// machine instructions.
var ErrNotInstructionFile = errors.New("not an instruction file")

// Daemon owns the tracker, storage, conversion gateway, print worker, and
// link monitor, plus the API server that exposes them.
type Daemon struct {
	cfg      *config.Config
	logger   *slog.Logger
	tracker  *job.Tracker
	store    *storage.Store
	settings *settings.Store
	gateway  *convert.Gateway
	worker   *printer.Worker
	monitor  *monitor.Monitor
	hotplug  *monitor.HotplugWatcher
	api      *apiServer

	openPort printer.Opener

	lockPath string
	lock     *flock.Flock
	running  atomic.Bool
	ctx      context.Context
	cancel   context.CancelFunc
}

// New assembles a daemon from configuration. Nothing is started yet.
func New(cfg *config.Config, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || logger == nil {
		return nil, errors.New("daemon requires config and logger")
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}

	store := storage.New(cfg.Paths.DataDir)
	settingsStore, err := settings.Open(cfg.Paths.DataDir)
	if err != nil {
		return nil, err
	}

	tracker := job.NewTracker()

	lockPath := filepath.Join(cfg.Paths.LogDir, "gantryd.lock")
	d := &Daemon{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "daemon"),
		tracker:  tracker,
		store:    store,
		settings: settingsStore,
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}

	// The settings store is consulted on every open and every conversion
	// so runtime changes apply without a restart.
	d.openPort = func() (printer.Port, error) {
		return printer.OpenDevice(cfg.Printer.Device, d.printerBaud())()
	}
	endpoint := func() string {
		if url := settingsStore.ServerURL(context.Background()); url != "" {
			return url
		}
		return cfg.Converter.ServerURL
	}

	client := &http.Client{Timeout: cfg.Converter.RequestTimeout()}
	d.gateway = convert.NewGateway(store, logger, client, endpoint)
	d.worker = printer.NewWorker(store, tracker, d.openPort, cfg.Printer.AckTimeout(), logger)
	d.monitor = monitor.New(tracker,
		func() bool { return printer.Probe(d.openPort, cfg.Printer.ProbeTimeout()) },
		store.Probe,
		cfg.Printer.ProbeCadence(),
		logger)
	d.hotplug = monitor.NewHotplugWatcher(d.monitor, logger)
	d.api = newAPIServer(cfg, d, logger)

	return d, nil
}

// Start acquires the single-instance lock, brings storage and the link
// status up, and launches the background components and API server.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another gantry daemon instance is already running")
	}

	if err := d.store.EnsureCollections(); err != nil {
		_ = d.lock.Unlock()
		return fmt.Errorf("prepare storage: %w", err)
	}

	d.ctx, d.cancel = context.WithCancel(ctx)

	status := job.LinkStatus{
		StoragePresent:   d.store.Probe() == nil,
		MachineConnected: printer.Probe(d.openPort, d.cfg.Printer.ProbeTimeout()),
	}
	d.tracker.SetLinkStatus(status)
	d.logger.Info("startup probes complete",
		logging.Bool("storage_present", status.StoragePresent),
		logging.Bool("machine_connected", status.MachineConnected))

	d.tracker.Ready()

	d.worker.Start(d.ctx)
	d.monitor.Start(d.ctx)
	d.hotplug.Start(d.ctx)
	if err := d.api.start(d.ctx); err != nil {
		d.Stop()
		return err
	}

	d.running.Store(true)
	d.logger.Info("gantry daemon started", logging.String("lock", d.lockPath))
	return nil
}

// Stop halts background processing and releases the daemon lock.
func (d *Daemon) Stop() {
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.worker.Wait()
	d.monitor.Wait()
	d.hotplug.Stop()
	d.api.stop()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.ctx = nil
	if d.running.Load() {
		d.running.Store(false)
		d.logger.Info("gantry daemon stopped")
	}
}

// Close stops the daemon and releases held resources.
func (d *Daemon) Close() error {
	d.Stop()
	return d.settings.Close()
}

// APIAddr reports the bound API address, empty until Start.
func (d *Daemon) APIAddr() string {
	return d.api.addr()
}

// Snapshot returns the current job and link status.
func (d *Daemon) Snapshot() job.Snapshot {
	return d.tracker.Snapshot()
}

// StartPrint validates the request, claims the printing phase, and hands
// the file to the worker.
func (d *Daemon) StartPrint(name string) error {
	if !storage.IsInstructionFile(name) {
		return ErrNotInstructionFile
	}
	if _, err := d.store.Stat(storage.Instructions, name); err != nil {
		return err
	}
	if err := d.tracker.BeginPrint(name); err != nil {
		return err
	}
	if err := d.worker.Enqueue(name); err != nil {
		d.tracker.FailPrint(err.Error())
		return err
	}
	return nil
}

// ConvertFile runs a conversion under the converting phase. On success,
// the auto-start setting may immediately begin printing the result.
func (d *Daemon) ConvertFile(ctx context.Context, collection storage.Collection, name string) (string, error) {
	if _, err := d.store.Stat(collection, name); err != nil {
		return "", err
	}
	if err := d.tracker.BeginConvert(name); err != nil {
		return "", err
	}
	output, err := d.gateway.Convert(ctx, collection, name)
	d.tracker.FinishConvert(err)
	if err != nil {
		return "", err
	}

	if d.settings.AutoStartPrint(ctx) {
		if err := d.StartPrint(output); err != nil {
			d.logger.Warn("auto-start print failed",
				logging.String(logging.FieldFile, output),
				logging.Error(err))
		}
	}
	return output, nil
}

func (d *Daemon) printerBaud() int {
	value, err := d.settings.Get(context.Background(), settings.KeyPrinterBaud)
	if err == nil {
		if baud, convErr := strconv.Atoi(value); convErr == nil && baud > 0 {
			return baud
		}
	}
	return d.cfg.Printer.Baud
}
