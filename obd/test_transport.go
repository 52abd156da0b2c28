package obd

import (
	"io"
	"strings"
	"sync"
	"time"
)

// TestTransport is a test helper that simulates an ELM327 adapter. Replies
// are scripted per command and become readable after an optional delay;
// reads never block, matching the polling contract of Transport.
type TestTransport struct {
	mu          sync.Mutex
	replies     map[string]string
	delay       time.Duration
	pending     []byte
	availableAt time.Time
	commands    []string
	overlaps    int
	readErr     error
	writeErr    error
	closed      bool
	closeCount  int
}

// NewTestTransport creates a new test transport for testing.
// Exported for use in tests.
func NewTestTransport() *TestTransport {
	return &TestTransport{
		replies: make(map[string]string),
	}
}

// Reply scripts the raw bytes returned after cmd is written. cmd is given
// without the trailing CR.
func (t *TestTransport) Reply(cmd, resp string) *TestTransport {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.replies[cmd] = resp
	return t
}

// SetDelay holds every reply back for d after its command is written.
func (t *TestTransport) SetDelay(d time.Duration) *TestTransport {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.delay = d
	return t
}

// FailReads makes every following Read return err.
func (t *TestTransport) FailReads(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.readErr = err
}

// FailWrites makes every following Write return err.
func (t *TestTransport) FailWrites(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.writeErr = err
}

// SendData queues data to be read by the transport.
// This simulates unsolicited output from the adapter.
func (t *TestTransport) SendData(data string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.pending = append(t.pending, data...)
}

// Commands returns the commands written so far, without their CR.
func (t *TestTransport) Commands() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]string(nil), t.commands...)
}

// Overlaps counts writes issued while a previous reply was still unread.
func (t *TestTransport) Overlaps() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.overlaps
}

// CloseCount returns how many times Close was called.
func (t *TestTransport) CloseCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closeCount
}

func (t *TestTransport) Write(p []byte) (n int, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return 0, io.ErrClosedPipe
	}
	if t.writeErr != nil {
		return 0, t.writeErr
	}

	cmd := strings.TrimSuffix(string(p), "\r")
	t.commands = append(t.commands, cmd)
	if len(t.pending) > 0 {
		t.overlaps++
	}
	if resp, ok := t.replies[cmd]; ok {
		t.pending = append(t.pending, resp...)
		t.availableAt = time.Now().Add(t.delay)
	}
	return len(p), nil
}

func (t *TestTransport) Read(p []byte) (n int, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return 0, io.ErrClosedPipe
	}
	if t.readErr != nil {
		return 0, t.readErr
	}
	if len(t.pending) == 0 || time.Now().Before(t.availableAt) {
		return 0, nil
	}
	n = copy(p, t.pending)
	t.pending = t.pending[n:]
	return n, nil
}

func (t *TestTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closeCount++
	t.closed = true
	return nil
}
