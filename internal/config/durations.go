package config

import "time"

// AckTimeout returns the per-line acknowledgment window.
func (p Printer) AckTimeout() time.Duration {
	return time.Duration(p.AckTimeoutSeconds) * time.Second
}

// ProbeTimeout returns the window allowed for a machine identification reply.
func (p Printer) ProbeTimeout() time.Duration {
	return time.Duration(p.ProbeTimeoutSeconds) * time.Second
}

// ProbeCadence returns the interval between idle link probes.
func (p Printer) ProbeCadence() time.Duration {
	return time.Duration(p.ProbeInterval) * time.Second
}

// RequestTimeout returns the limit for one remote conversion request.
func (c Converter) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutSeconds) * time.Second
}
