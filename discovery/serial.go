package discovery

import (
	"context"
	"fmt"
	"time"

	"go.bug.st/serial/enumerator"

	"github.com/zerotouch/cardiag/obd"
)

// DefaultPortPollInterval is how often SerialRegistry looks for newly
// attached ports during Discover.
const DefaultPortPollInterval = 500 * time.Millisecond

// SerialRegistry lists serial ports: USB cables, and Bluetooth Classic
// adapters bound to an rfcomm device by the OS. A port counts as paired
// while it is present.
type SerialRegistry struct {
	// List enumerates ports. Defaults to enumerator.GetDetailedPortsList.
	List func() ([]*enumerator.PortDetails, error)
	// PollInterval defaults to DefaultPortPollInterval.
	PollInterval time.Duration
	// USBOnly hides ports that are not backed by a USB device.
	USBOnly bool
}

var _ Registry = (*SerialRegistry)(nil)

func (s *SerialRegistry) ports() ([]Device, error) {
	list := s.List
	if list == nil {
		list = enumerator.GetDetailedPortsList
	}
	ports, err := list()
	if err != nil {
		return nil, fmt.Errorf("list serial ports: %w: %w", obd.ErrIO, err)
	}

	devices := make([]Device, 0, len(ports))
	for _, port := range ports {
		if port == nil || port.Name == "" {
			continue
		}
		if s.USBOnly && !port.IsUSB {
			continue
		}
		devices = append(devices, portDevice(port))
	}
	return devices, nil
}

func portDevice(port *enumerator.PortDetails) Device {
	name := port.Name
	switch {
	case port.Product != "" && port.IsUSB:
		name = fmt.Sprintf("%s [%s:%s]", port.Product, port.VID, port.PID)
	case port.Product != "":
		name = port.Product
	case port.IsUSB:
		name = fmt.Sprintf("USB %s:%s", port.VID, port.PID)
	}
	return Device{Name: name, Address: port.Name}
}

func (s *SerialRegistry) Paired(ctx context.Context) ([]Device, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.ports()
}

// Discover reports the ports present now, then every port that shows up
// until ctx is done.
func (s *SerialRegistry) Discover(ctx context.Context, found func(Device)) error {
	interval := s.PollInterval
	if interval <= 0 {
		interval = DefaultPortPollInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		devices, err := s.ports()
		if err != nil {
			return err
		}
		for _, d := range devices {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			found(d)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Pair succeeds when the port is present. Serial ports need no bonding of
// their own.
func (s *SerialRegistry) Pair(ctx context.Context, address string) (bool, error) {
	if address == "" {
		return false, fmt.Errorf("port name is required: %w", obd.ErrInvalidArgs)
	}
	if err := ctx.Err(); err != nil {
		return false, err
	}
	devices, err := s.ports()
	if err != nil {
		return false, err
	}
	for _, d := range devices {
		if d.Address == address {
			return true, nil
		}
	}
	return false, fmt.Errorf("port %s is not present: %w", address, ErrBondFailure)
}
