package printer

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"gantry/internal/logging"
)

const (
	ackToken      = "ok"
	commentMarker = ";"

	// readChunk bounds a single port read while accumulating a response.
	readChunk = 64

	// readSlice keeps individual blocking reads short so the ack deadline
	// is honored even when the machine sends nothing at all.
	readSlice = 100 * time.Millisecond
)

// Stats summarizes one completed stream.
type Stats struct {
	// Transactions counts records actually sent over the link.
	Transactions int
	// Nacks counts transactions that never produced the acknowledgment
	// token within the ack window.
	Nacks int
	// BytesConsumed counts every byte read from the instruction file,
	// including newlines, blanks, and comment lines.
	BytesConsumed int64
}

// Streamer sends an instruction file over a Port one record at a time.
type Streamer struct {
	port       Port
	logger     *slog.Logger
	ackTimeout time.Duration
}

// NewStreamer wraps an already-open port. The caller retains ownership of
// the port and closes it after Stream returns.
func NewStreamer(port Port, ackTimeout time.Duration, logger *slog.Logger) *Streamer {
	return &Streamer{
		port:       port,
		logger:     logging.NewComponentLogger(logger, "streamer"),
		ackTimeout: ackTimeout,
	}
}

// Stream reads newline-delimited records from r and plays them against the
// machine. Blank lines and lines starting with the comment marker are
// consumed without a transaction but still count toward progress, which is
// reported through onProgress as floor(100*consumed/total) clamped to 100.
// Per-line acknowledgment failures are logged and tolerated; Stream only
// returns an error when the source cannot be read or ctx is canceled.
func (s *Streamer) Stream(ctx context.Context, r io.Reader, total int64, onProgress func(int)) (Stats, error) {
	var stats Stats
	reader := bufio.NewReader(r)
	for {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		line, readErr := reader.ReadString('\n')
		stats.BytesConsumed += int64(len(line))

		record := strings.TrimSpace(line)
		if record != "" && !strings.HasPrefix(record, commentMarker) {
			stats.Transactions++
			if !s.transact(record) {
				stats.Nacks++
			}
		}

		if onProgress != nil {
			onProgress(progressFor(stats.BytesConsumed, total))
		}

		if readErr == io.EOF {
			return stats, nil
		}
		if readErr != nil {
			return stats, fmt.Errorf("read instruction file: %w", readErr)
		}
	}
}

// transact sends one record and waits for the acknowledgment token. It
// reports false on a write failure or when the token never arrives, after
// logging the protocol error for that line.
func (s *Streamer) transact(record string) bool {
	if _, err := s.port.Write([]byte(record + "\n")); err != nil {
		s.logger.Error("failed to send instruction line",
			logging.String("line", record),
			logging.Error(err))
		return false
	}
	if !awaitToken(s.port, s.ackTimeout, ackToken) {
		s.logger.Warn("no acknowledgment for instruction line",
			logging.String("line", record),
			logging.Duration("timeout", s.ackTimeout))
		return false
	}
	return true
}

// awaitToken accumulates machine output until any listed token appears or
// the window elapses. Matching is a substring test against everything read
// so far, so a token split across reads still matches.
func awaitToken(port Port, window time.Duration, tokens ...string) bool {
	deadline := time.Now().Add(window)
	buf := make([]byte, readChunk)
	var response strings.Builder
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return false
		}
		if remaining > readSlice {
			remaining = readSlice
		}
		if err := port.SetReadTimeout(remaining); err != nil {
			return false
		}
		n, err := port.Read(buf)
		if n > 0 {
			response.Write(buf[:n])
			for _, token := range tokens {
				if strings.Contains(response.String(), token) {
					return true
				}
			}
		}
		if err != nil {
			return false
		}
	}
}

func progressFor(consumed, total int64) int {
	if total <= 0 {
		return 100
	}
	pct := int(consumed * 100 / total)
	if pct > 100 {
		pct = 100
	}
	return pct
}
