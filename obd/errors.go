package obd

import (
	"errors"
	"fmt"
)

var (
	// ErrNoDialer is returned when a Conn is constructed without a Dialer.
	//
	// This indicates a configuration error. A Dialer is required in order to
	// establish a connection to the adapter.
	ErrNoDialer = errors.New("no dialer configured")

	// ErrInvalidArgs is returned when the caller omitted a required argument,
	// such as the adapter address. It is detected locally and never reaches
	// the transport.
	ErrInvalidArgs = errors.New("invalid arguments")

	// ErrUnsupportedTransport is returned when the host has no usable radio
	// or serial capability for the requested transport.
	ErrUnsupportedTransport = errors.New("transport not supported on this host")

	// ErrTransportDisabled is returned when the transport capability exists
	// but is switched off (for example, a powered-down Bluetooth adapter).
	ErrTransportDisabled = errors.New("transport disabled")

	// ErrNotConnected is returned when a command is issued without a live
	// connection. It is returned immediately; the transport is not touched.
	ErrNotConnected = errors.New("not connected")

	// ErrAlreadyConnected is returned by Connect on a Conn that is already
	// connected or connecting. Disconnect first to switch adapters.
	ErrAlreadyConnected = errors.New("already connected")

	// ErrIO marks a failure to open, read from, write to or close the
	// transport. Errors wrapping ErrIO also wrap the underlying cause.
	//
	// An ErrIO during a command tears the connection down.
	ErrIO = errors.New("i/o error")
)

// ioError wraps err so that it matches both ErrIO and the original cause.
func ioError(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrIO, err)
}
