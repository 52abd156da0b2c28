package discovery

import (
	"context"
	"errors"
	"slices"
	"sync/atomic"
	"testing"
	"time"

	"go.bug.st/serial/enumerator"

	"github.com/zerotouch/cardiag/obd"
)

var (
	ftdiPort = &enumerator.PortDetails{
		Name:    "/dev/ttyUSB0",
		IsUSB:   true,
		VID:     "0403",
		PID:     "6001",
		Product: "FT232R USB UART",
	}
	rfcommPort = &enumerator.PortDetails{Name: "/dev/rfcomm0"}
)

func staticPorts(ports ...*enumerator.PortDetails) func() ([]*enumerator.PortDetails, error) {
	return func() ([]*enumerator.PortDetails, error) {
		return ports, nil
	}
}

func TestSerialRegistryPaired(t *testing.T) {
	reg := &SerialRegistry{List: staticPorts(ftdiPort, rfcommPort, nil)}

	devices, err := reg.Paired(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	expected := []Device{
		{Name: "FT232R USB UART [0403:6001]", Address: "/dev/ttyUSB0"},
		{Name: "/dev/rfcomm0", Address: "/dev/rfcomm0"},
	}
	if !slices.Equal(devices, expected) {
		t.Errorf("expected %v, got %v", expected, devices)
	}

	reg.USBOnly = true
	devices, err = reg.Paired(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(devices) != 1 || devices[0].Address != "/dev/ttyUSB0" {
		t.Errorf("expected only the USB port, got %v", devices)
	}
}

func TestSerialRegistryListError(t *testing.T) {
	reg := &SerialRegistry{List: func() ([]*enumerator.PortDetails, error) {
		return nil, errors.New("permission denied")
	}}

	if _, err := reg.Paired(context.Background()); !errors.Is(err, obd.ErrIO) {
		t.Errorf("expected ErrIO, got: %v", err)
	}
	if err := reg.Discover(context.Background(), func(Device) {}); !errors.Is(err, obd.ErrIO) {
		t.Errorf("expected ErrIO, got: %v", err)
	}
}

func TestSerialRegistryDiscoverHotplug(t *testing.T) {
	var calls atomic.Int32
	reg := &SerialRegistry{
		PollInterval: 10 * time.Millisecond,
		List: func() ([]*enumerator.PortDetails, error) {
			if calls.Add(1) < 3 {
				return []*enumerator.PortDetails{ftdiPort}, nil
			}
			return []*enumerator.PortDetails{ftdiPort, rfcommPort}, nil
		},
	}

	devices, err := Collect(context.Background(), reg, 150*time.Millisecond)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(devices) != 2 || devices[0].Address != "/dev/ttyUSB0" || devices[1].Address != "/dev/rfcomm0" {
		t.Errorf("expected both ports in arrival order, got %v", devices)
	}
}

func TestSerialRegistryPair(t *testing.T) {
	reg := &SerialRegistry{List: staticPorts(ftdiPort)}
	ctx := context.Background()

	if ok, err := reg.Pair(ctx, "/dev/ttyUSB0"); !ok || err != nil {
		t.Errorf("expected present port to pair, got %v, %v", ok, err)
	}
	if ok, err := reg.Pair(ctx, "/dev/rfcomm0"); ok || !errors.Is(err, ErrBondFailure) {
		t.Errorf("expected ErrBondFailure, got %v, %v", ok, err)
	}
	if _, err := reg.Pair(ctx, ""); !errors.Is(err, obd.ErrInvalidArgs) {
		t.Errorf("expected ErrInvalidArgs, got: %v", err)
	}

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	if _, err := reg.Pair(cancelled, "/dev/ttyUSB0"); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got: %v", err)
	}
}

func TestPortDevice(t *testing.T) {
	tests := []struct {
		port     *enumerator.PortDetails
		expected string
	}{
		{ftdiPort, "FT232R USB UART [0403:6001]"},
		{&enumerator.PortDetails{Name: "COM4", IsUSB: true, VID: "10C4", PID: "EA60"}, "USB 10C4:EA60"},
		{&enumerator.PortDetails{Name: "COM5", Product: "Standard Serial over Bluetooth link"}, "Standard Serial over Bluetooth link"},
		{rfcommPort, "/dev/rfcomm0"},
	}
	for _, tt := range tests {
		if got := portDevice(tt.port).Name; got != tt.expected {
			t.Errorf("expected %q, got %q", tt.expected, got)
		}
	}
}
