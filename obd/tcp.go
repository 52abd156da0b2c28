package obd

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"time"
)

const (
	// DefaultTCPPort is the port most WiFi ELM327 clones listen on.
	DefaultTCPPort = "35000"
	// DefaultTCPReadTimeout keeps socket reads short so the command engine
	// can poll.
	DefaultTCPReadTimeout = 10 * time.Millisecond
)

// TCPDialer opens an adapter over TCP, as exposed by WiFi ELM327 adapters.
// The address is host:port; a bare host gets DefaultTCPPort.
type TCPDialer struct {
	DialTimeout time.Duration
	ReadTimeout time.Duration
}

var _ Dialer = TCPDialer{}

func (d TCPDialer) Dial(ctx context.Context, address string) (Transport, error) {
	if address == "" {
		return nil, fmt.Errorf("adapter host is required: %w", ErrInvalidArgs)
	}
	if _, _, err := net.SplitHostPort(address); err != nil {
		address = net.JoinHostPort(address, DefaultTCPPort)
	}

	nd := net.Dialer{Timeout: d.DialTimeout}
	conn, err := nd.DialContext(ctx, "tcp", address)
	if err != nil {
		return nil, ioError(fmt.Sprintf("dial %s", address), err)
	}

	readTimeout := d.ReadTimeout
	if readTimeout <= 0 {
		readTimeout = DefaultTCPReadTimeout
	}
	return &tcpTransport{conn: conn, readTimeout: readTimeout}, nil
}

// tcpTransport maps read deadline expiry to "nothing available".
type tcpTransport struct {
	conn        net.Conn
	readTimeout time.Duration
}

func (t *tcpTransport) Read(p []byte) (int, error) {
	if err := t.conn.SetReadDeadline(time.Now().Add(t.readTimeout)); err != nil {
		return 0, err
	}
	n, err := t.conn.Read(p)
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return n, nil
	}
	return n, err
}

func (t *tcpTransport) Write(p []byte) (int, error) {
	return t.conn.Write(p)
}

func (t *tcpTransport) Close() error {
	return t.conn.Close()
}
