package obd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.bug.st/serial"
)

const (
	// DefaultBaudRate is the factory setting of ELM327 adapters.
	DefaultBaudRate = 38400
	// DefaultSerialReadTimeout keeps serial reads short so the command
	// engine can poll.
	DefaultSerialReadTimeout = 10 * time.Millisecond
)

// SerialDialer opens an adapter over a serial port using go.bug.st/serial.
// The address is the port name, e.g. /dev/ttyUSB0, /dev/rfcomm0 or COM3.
type SerialDialer struct {
	// BaudRate is used when Mode is nil. Defaults to DefaultBaudRate.
	BaudRate int
	// Mode overrides the full serial configuration.
	Mode *serial.Mode
	// ReadTimeout bounds a single read. Defaults to DefaultSerialReadTimeout.
	ReadTimeout time.Duration
}

var _ Dialer = SerialDialer{}

func (d SerialDialer) Dial(ctx context.Context, address string) (Transport, error) {
	if ctx == nil {
		return nil, fmt.Errorf("context is nil: %w", ErrInvalidArgs)
	}
	if address == "" {
		return nil, fmt.Errorf("serial port name is required: %w", ErrInvalidArgs)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	mode := d.Mode
	if mode == nil {
		baud := d.BaudRate
		if baud == 0 {
			baud = DefaultBaudRate
		}
		mode = &serial.Mode{
			BaudRate: baud,
			Parity:   serial.NoParity,
			DataBits: 8,
			StopBits: serial.OneStopBit,
		}
	}

	port, err := serial.Open(address, mode)
	if err != nil {
		var portErr *serial.PortError
		if errors.As(err, &portErr) && portErr.Code() == serial.PortNotFound {
			if ports, listErr := serial.GetPortsList(); listErr == nil && len(ports) == 0 {
				return nil, fmt.Errorf("open %s: no serial ports on this host: %w", address, ErrUnsupportedTransport)
			}
		}
		return nil, ioError(fmt.Sprintf("open %s", address), err)
	}

	readTimeout := d.ReadTimeout
	if readTimeout <= 0 {
		readTimeout = DefaultSerialReadTimeout
	}
	if err := port.SetReadTimeout(readTimeout); err != nil {
		port.Close()
		return nil, ioError(fmt.Sprintf("set read timeout on %s", address), err)
	}

	port.ResetInputBuffer()
	port.ResetOutputBuffer()

	return port, nil
}
