package printer

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"gantry/internal/logging"
)

// fakePort scripts machine replies per instruction record. Reads drain the
// pending reply in chunks; an empty buffer behaves like a read timeout.
type fakePort struct {
	mu          sync.Mutex
	replies     map[string]string
	pending     []byte
	writes      []string
	chunk       int
	readTimeout time.Duration
	closed      bool
}

func newFakePort(replies map[string]string) *fakePort {
	return &fakePort{replies: replies, chunk: 64}
}

func (p *fakePort) Write(data []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	record := strings.TrimSpace(string(data))
	p.writes = append(p.writes, record)
	if reply, ok := p.replies[record]; ok {
		p.pending = append(p.pending, reply...)
	}
	return len(data), nil
}

func (p *fakePort) Read(buf []byte) (int, error) {
	p.mu.Lock()
	if len(p.pending) == 0 {
		wait := p.readTimeout
		p.mu.Unlock()
		time.Sleep(wait)
		return 0, nil
	}
	n := p.chunk
	if n > len(buf) {
		n = len(buf)
	}
	if n > len(p.pending) {
		n = len(p.pending)
	}
	copy(buf, p.pending[:n])
	p.pending = p.pending[n:]
	p.mu.Unlock()
	return n, nil
}

func (p *fakePort) SetReadTimeout(d time.Duration) error {
	p.mu.Lock()
	p.readTimeout = d
	p.mu.Unlock()
	return nil
}

func (p *fakePort) Close() error {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	return nil
}

func (p *fakePort) sentRecords() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.writes...)
}

func streamFile(t *testing.T, port Port, content string) (Stats, []int) {
	t.Helper()
	var reported []int
	streamer := NewStreamer(port, 50*time.Millisecond, logging.NewNop())
	stats, err := streamer.Stream(context.Background(), strings.NewReader(content), int64(len(content)), func(pct int) {
		reported = append(reported, pct)
	})
	if err != nil {
		t.Fatalf("Stream() error = %v", err)
	}
	return stats, reported
}

func TestStreamSkipsCommentsAndBlanks(t *testing.T) {
	content := "; generated header\n\n;  another comment\n"
	port := newFakePort(nil)

	stats, reported := streamFile(t, port, content)

	if stats.Transactions != 0 {
		t.Fatalf("Transactions = %d, want 0", stats.Transactions)
	}
	if len(port.sentRecords()) != 0 {
		t.Fatalf("port received %v, want nothing", port.sentRecords())
	}
	if len(reported) == 0 || reported[len(reported)-1] != 100 {
		t.Fatalf("final progress = %v, want 100", reported)
	}
}

func TestStreamSendsOnlyInstructionRecords(t *testing.T) {
	content := "G1 X10\n; comment\n\nG1 Y10\n"
	port := newFakePort(map[string]string{
		"G1 X10": "ok\n",
		"G1 Y10": "ok\n",
	})

	stats, reported := streamFile(t, port, content)

	if stats.Transactions != 2 {
		t.Fatalf("Transactions = %d, want 2", stats.Transactions)
	}
	if stats.Nacks != 0 {
		t.Fatalf("Nacks = %d, want 0", stats.Nacks)
	}
	sent := port.sentRecords()
	if len(sent) != 2 || sent[0] != "G1 X10" || sent[1] != "G1 Y10" {
		t.Fatalf("sent = %v, want [G1 X10 G1 Y10]", sent)
	}
	for i := 1; i < len(reported); i++ {
		if reported[i] < reported[i-1] {
			t.Fatalf("progress regressed: %v", reported)
		}
	}
	if reported[len(reported)-1] != 100 {
		t.Fatalf("final progress = %d, want 100", reported[len(reported)-1])
	}
}

func TestStreamToleratesMissingAcks(t *testing.T) {
	content := "G28\nG1 Z5\n"
	port := newFakePort(nil)

	streamer := NewStreamer(port, 20*time.Millisecond, logging.NewNop())
	stats, err := streamer.Stream(context.Background(), strings.NewReader(content), int64(len(content)), nil)
	if err != nil {
		t.Fatalf("Stream() error = %v, want nil despite missing acks", err)
	}
	if stats.Transactions != 2 {
		t.Fatalf("Transactions = %d, want 2", stats.Transactions)
	}
	if stats.Nacks != 2 {
		t.Fatalf("Nacks = %d, want 2", stats.Nacks)
	}
}

func TestStreamMatchesAckSplitAcrossReads(t *testing.T) {
	port := newFakePort(map[string]string{"G28": "echo:busy o" + "k\n"})
	port.chunk = 1

	stats, _ := streamFile(t, port, "G28\n")

	if stats.Nacks != 0 {
		t.Fatalf("Nacks = %d, want 0 for split ack", stats.Nacks)
	}
}

func TestStreamHonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	streamer := NewStreamer(newFakePort(nil), 20*time.Millisecond, logging.NewNop())
	_, err := streamer.Stream(ctx, strings.NewReader("G28\n"), 4, nil)
	if err == nil {
		t.Fatal("Stream() with canceled context returned nil error")
	}
}

func TestProgressFor(t *testing.T) {
	cases := []struct {
		consumed, total int64
		want            int
	}{
		{0, 200, 0},
		{50, 200, 25},
		{199, 200, 99},
		{200, 200, 100},
		{300, 200, 100},
		{0, 0, 100},
	}
	for _, tc := range cases {
		if got := progressFor(tc.consumed, tc.total); got != tc.want {
			t.Errorf("progressFor(%d, %d) = %d, want %d", tc.consumed, tc.total, got, tc.want)
		}
	}
}

func TestProbeRecognizesFirmwareBanner(t *testing.T) {
	port := newFakePort(map[string]string{"M115": "FIRMWARE_NAME:Marlin 2.1\n"})
	open := func() (Port, error) { return port, nil }

	if !Probe(open, 100*time.Millisecond) {
		t.Fatal("Probe() = false, want true for firmware banner")
	}
	if !port.closed {
		t.Fatal("Probe() left the port open")
	}
}

func TestProbeFailsOnSilentMachine(t *testing.T) {
	port := newFakePort(nil)
	open := func() (Port, error) { return port, nil }

	if Probe(open, 30*time.Millisecond) {
		t.Fatal("Probe() = true, want false for silent machine")
	}
}
