package printer

import "time"

const probeCommand = "M115"

// Probe opens the link, asks the machine to identify itself, and reports
// whether a recognizable reply arrived within the window. The port is
// closed before returning, so a probe never holds the link.
func Probe(open Opener, window time.Duration) bool {
	port, err := open()
	if err != nil {
		return false
	}
	defer port.Close()

	if _, err := port.Write([]byte(probeCommand + "\n")); err != nil {
		return false
	}
	return awaitToken(port, window, "FIRMWARE", ackToken)
}
