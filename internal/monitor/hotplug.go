package monitor

import (
	"context"
	"log/slog"
	"sync"

	"github.com/pilebones/go-udev/netlink"

	"gantry/internal/logging"
)

// HotplugWatcher listens for udev netlink events on the tty subsystem and
// kicks the monitor when a serial device is added or removed. Without it the
// poll cadence still catches the change, just later.
type HotplugWatcher struct {
	monitor *Monitor
	logger  *slog.Logger

	mu      sync.Mutex
	conn    *netlink.UEventConn
	quit    chan struct{}
	running bool
}

func NewHotplugWatcher(monitor *Monitor, logger *slog.Logger) *HotplugWatcher {
	return &HotplugWatcher{
		monitor: monitor,
		logger:  logging.NewComponentLogger(logger, "hotplug-watcher"),
	}
}

// Start connects to the kernel netlink socket and begins listening. A
// connection failure is logged and ignored: the poll loop remains the
// fallback detection path.
func (w *HotplugWatcher) Start(ctx context.Context) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.running {
		return
	}

	conn := new(netlink.UEventConn)
	if err := conn.Connect(netlink.UdevEvent); err != nil {
		w.logger.Warn("failed to connect to netlink socket; relying on polling only",
			logging.Error(err))
		return
	}

	w.conn = conn
	w.quit = make(chan struct{})
	w.running = true

	quit := w.quit
	go w.watch(ctx, conn, quit)

	w.logger.Info("hotplug watcher started")
}

// Stop shuts down the watcher.
func (w *HotplugWatcher) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.running {
		return
	}

	close(w.quit)
	w.quit = nil
	_ = w.conn.Close()
	w.conn = nil
	w.running = false
}

// Running reports whether the watcher holds a netlink connection.
func (w *HotplugWatcher) Running() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

func (w *HotplugWatcher) watch(ctx context.Context, conn *netlink.UEventConn, quit <-chan struct{}) {
	events := make(chan netlink.UEvent)
	errs := make(chan error)

	monitorQuit := conn.Monitor(events, errs, ttyMatcher())

	for {
		select {
		case <-ctx.Done():
			close(monitorQuit)
			return
		case <-quit:
			close(monitorQuit)
			return
		case uevent := <-events:
			w.logger.Info("serial device event",
				logging.String("action", string(uevent.Action)),
				logging.String(logging.FieldPort, uevent.Env["DEVNAME"]))
			w.monitor.Kick()
		case err := <-errs:
			w.logger.Warn("netlink watcher error", logging.Error(err))
		}
	}
}

// ttyMatcher selects add and remove events for serial tty devices.
func ttyMatcher() netlink.Matcher {
	action := "add|remove"
	rules := &netlink.RuleDefinitions{}
	rules.AddRule(netlink.RuleDefinition{
		Action: &action,
		Env: map[string]string{
			"SUBSYSTEM": "tty",
		},
	})
	return rules
}
