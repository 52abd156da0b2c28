package obd

import (
	"bytes"
	"fmt"
	"io"
	"time"

	"github.com/zerotouch/cardiag/elm"
)

// execute runs one command exchange on t: discard stale input, frame and
// write cmd, then poll the transport until the ready prompt arrives or
// timeout elapses.
//
// The timeout starts when the write returns. Reaching it is not an error:
// whatever accumulated is returned, possibly empty, so that an adapter that
// stays silent (unsupported PID) is not confused with one that is
// unreachable. Only transport failures are reported, wrapped in ErrIO.
func (c *Config) execute(t Transport, cmd string, timeout time.Duration) (string, error) {
	if t == nil {
		return "", ErrNotConnected
	}
	if timeout <= 0 {
		timeout = c.timeout
	}

	if err := c.discardStale(t, cmd); err != nil {
		return "", ioError(fmt.Sprintf("discard stale input before %q", cmd), err)
	}
	if err := writeFull(t, elm.Frame(cmd)); err != nil {
		return "", ioError(fmt.Sprintf("write command %q", cmd), err)
	}
	start := time.Now()
	deadline := start.Add(timeout)

	var ready <-chan struct{}
	if rn, ok := t.(ReadyNotifier); ok {
		ready = rn.Ready()
	}

	var resp bytes.Buffer
	chunk := make([]byte, c.readChunk)
	for {
		n, err := t.Read(chunk)
		if n > 0 {
			resp.Write(chunk[:n])
		}
		if err != nil {
			return "", ioError(fmt.Sprintf("read reply to %q", cmd), err)
		}
		if elm.IsTerminated(resp.Bytes()) {
			break
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			c.logger.Debug("Command timed out without prompt",
				"command", cmd, "timeout", timeout, "partial", resp.Len())
			break
		}
		if n == 0 {
			wait(ready, min(c.pollInterval, remaining))
		}
	}

	reply := elm.Finalize(resp.Bytes())
	c.logger.Debug("Command completed", "command", cmd, "response", reply, "elapsed", time.Since(start))
	return reply, nil
}

// maxStaleReads bounds discardStale on an adapter that never stops talking.
const maxStaleReads = 64

// discardStale drops bytes already waiting on t, such as a reply that
// arrived after its command timed out, so they are not taken for the reply
// to cmd.
func (c *Config) discardStale(t Transport, cmd string) error {
	var stale bytes.Buffer
	chunk := make([]byte, c.readChunk)
	for range maxStaleReads {
		n, err := t.Read(chunk)
		if n > 0 {
			stale.Write(chunk[:n])
		}
		if err != nil {
			return err
		}
		if n == 0 {
			break
		}
	}
	if stale.Len() > 0 {
		c.logger.Debug("Discarded stale input", "command", cmd, "stale", stale.String())
	}
	return nil
}

// wait blocks for d, or until ready fires when the transport signals new
// bytes. A nil ready channel never fires.
func wait(ready <-chan struct{}, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ready:
	case <-timer.C:
	}
}

// writeFull writes p completely, retrying short writes. A write that makes
// no progress fails with io.ErrShortWrite.
func writeFull(w io.Writer, p []byte) error {
	for len(p) > 0 {
		n, err := w.Write(p)
		if err != nil {
			return err
		}
		if n <= 0 {
			return io.ErrShortWrite
		}
		p = p[min(n, len(p)):]
	}
	return nil
}
