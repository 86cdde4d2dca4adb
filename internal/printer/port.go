package printer

import (
	"fmt"
	"io"
	"time"

	"go.bug.st/serial"
)

// Port is the byte-level machine link. Reads honor the deadline set with
// SetReadTimeout: a timed-out read returns n == 0 with a nil error.
type Port interface {
	io.ReadWriteCloser
	SetReadTimeout(d time.Duration) error
}

// Opener yields a fresh Port for a session. The caller owns the returned
// port and must close it; at most one session holds the link at a time.
type Opener func() (Port, error)

// OpenDevice returns an Opener for the serial device at the given baud rate.
func OpenDevice(device string, baud int) Opener {
	return func() (Port, error) {
		port, err := serial.Open(device, &serial.Mode{BaudRate: baud})
		if err != nil {
			return nil, fmt.Errorf("open serial device %s: %w", device, err)
		}
		return port, nil
	}
}
