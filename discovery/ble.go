//go:build ble && linux

package discovery

import (
	"context"
	"fmt"
	"strings"

	"tinygo.org/x/bluetooth"

	"github.com/zerotouch/cardiag/obd"
)

// BLERegistry discovers Bluetooth Low Energy adapters by advertisement.
// BLE adapters do not bond, so Paired and Pair report
// obd.ErrUnsupportedTransport.
type BLERegistry struct {
	Adapter *bluetooth.Adapter
	// NamePrefixes limits results to devices advertising one of these
	// names. Empty reports every device.
	NamePrefixes []string
}

var _ Registry = (*BLERegistry)(nil)

func (b *BLERegistry) adapter() *bluetooth.Adapter {
	if b.Adapter != nil {
		return b.Adapter
	}
	return bluetooth.DefaultAdapter
}

func (b *BLERegistry) match(name string) bool {
	if len(b.NamePrefixes) == 0 {
		return true
	}
	for _, prefix := range b.NamePrefixes {
		if strings.HasPrefix(name, prefix) {
			return true
		}
	}
	return false
}

func (b *BLERegistry) Paired(ctx context.Context) ([]Device, error) {
	return nil, fmt.Errorf("list paired BLE devices: %w", obd.ErrUnsupportedTransport)
}

func (b *BLERegistry) Discover(ctx context.Context, found func(Device)) error {
	adapter := b.adapter()
	if err := adapter.Enable(); err != nil {
		return fmt.Errorf("enable bluetooth: %w: %w", obd.ErrTransportDisabled, err)
	}

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			adapter.StopScan()
		case <-done:
		}
	}()

	err := adapter.Scan(func(a *bluetooth.Adapter, result bluetooth.ScanResult) {
		if ctx.Err() != nil {
			a.StopScan()
			return
		}
		name := result.LocalName()
		if !b.match(name) {
			return
		}
		found(Device{Name: name, Address: result.Address.String()})
	})
	if err != nil {
		return fmt.Errorf("scan: %w: %w", obd.ErrIO, err)
	}
	return ctx.Err()
}

func (b *BLERegistry) Pair(ctx context.Context, address string) (bool, error) {
	if address == "" {
		return false, fmt.Errorf("address is required: %w", obd.ErrInvalidArgs)
	}
	return false, fmt.Errorf("pair BLE device: %w", obd.ErrUnsupportedTransport)
}
