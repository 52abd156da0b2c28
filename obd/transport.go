package obd

import (
	"context"
	"io"
)

//go:generate go tool mockgen -destination=mock_obd.go -package=obd . Transport,Dialer

// Transport represents an established, bidirectional byte stream to an
// ELM327 adapter.
//
// A Transport is assumed to be already connected and ready for use. Read must
// not block for long: returning 0, nil means "no bytes available right now",
// and the command engine polls again after a short pause. Typical
// implementations include serial ports opened with a read timeout, TCP
// sockets to WiFi adapters, BLE UART tunnels, or in-memory fakes used for
// testing.
type Transport interface {
	io.ReadWriteCloser
}

// ReadyNotifier is implemented by transports that can signal the arrival of
// new bytes, such as BLE notifications. The command engine waits on Ready
// instead of sleeping a full poll interval. Transports without it keep the
// fixed-interval polling, with a latency floor equal to the poll interval.
type ReadyNotifier interface {
	Ready() <-chan struct{}
}

// Dialer opens a Transport to an ELM327 adapter.
//
// Dialer abstracts how the adapter connection is created (for example, via a
// serial port, a TCP socket, a BLE characteristic pair, or a test double).
// The address format is dialer specific: a port path, a host:port pair or a
// Bluetooth MAC address.
type Dialer interface {
	// Dial is responsible for creating and returning a connected Transport. It
	// may perform blocking operations and should respect cancellation and
	// deadlines provided by the context. Dial returns an error wrapping
	// ErrUnsupportedTransport, ErrTransportDisabled or ErrIO if the transport
	// cannot be established.
	Dial(ctx context.Context, address string) (Transport, error)
}

// DialerFunc adapts an ordinary function to the Dialer interface.
type DialerFunc func(ctx context.Context, address string) (Transport, error)

func (f DialerFunc) Dial(ctx context.Context, address string) (Transport, error) {
	return f(ctx, address)
}
