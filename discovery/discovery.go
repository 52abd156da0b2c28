// Package discovery finds ELM327 adapters the host can reach: paired or
// already attached devices, and devices that appear during a time-bounded
// scan.
package discovery

//go:generate go tool mockgen -destination=mock_discovery.go -package=discovery . Registry

import (
	"context"
	"errors"
	"iter"
	"log/slog"
	"time"
)

// DefaultScanWindow bounds a scan when the caller does not choose a window.
const DefaultScanWindow = 8 * time.Second

// ErrBondFailure is returned when an adapter refuses or cannot complete
// pairing.
var ErrBondFailure = errors.New("bond failure")

// Device is an adapter as reported by a Registry. Address is what a Dialer
// accepts: a serial port name, a MAC address or a host:port.
type Device struct {
	Name    string `json:"name" yaml:"name"`
	Address string `json:"address" yaml:"address"`
}

func (d Device) String() string {
	if d.Name == "" || d.Name == d.Address {
		return d.Address
	}
	return d.Name + " (" + d.Address + ")"
}

func (d Device) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("name", d.Name),
		slog.String("address", d.Address),
	)
}

// Registry is a source of adapters.
//
// Discover reports devices to found as they appear and blocks until ctx is
// done, returning ctx.Err() or the error that stopped discovery. found is
// never called after Discover returns.
type Registry interface {
	Paired(ctx context.Context) ([]Device, error)
	Discover(ctx context.Context, found func(Device)) error
	Pair(ctx context.Context, address string) (bool, error)
}

// Scan returns a sequence of the devices reg discovers within window.
// Nothing happens until the sequence is ranged over, and every range runs a
// fresh scan. Devices are deduplicated by address and yielded as they
// appear. Breaking out of the range stops discovery.
//
// The window elapsing ends the sequence without an error. Cancellation of
// ctx, or a discovery failure, is yielded as the final element.
func Scan(ctx context.Context, reg Registry, window time.Duration) iter.Seq2[Device, error] {
	if window <= 0 {
		window = DefaultScanWindow
	}
	return func(yield func(Device, error) bool) {
		scanCtx, cancel := context.WithTimeout(ctx, window)
		defer cancel()

		found := make(chan Device)
		errc := make(chan error, 1)
		go func() {
			err := reg.Discover(scanCtx, func(d Device) {
				select {
				case found <- d:
				case <-scanCtx.Done():
				}
			})
			close(found)
			errc <- err
		}()

		seen := make(map[string]struct{})
		for d := range found {
			if d.Address == "" {
				continue
			}
			if _, dup := seen[d.Address]; dup {
				continue
			}
			seen[d.Address] = struct{}{}
			if !yield(d, nil) {
				cancel()
				for range found {
				}
				<-errc
				return
			}
		}

		err := <-errc
		switch {
		case ctx.Err() != nil:
			yield(Device{}, ctx.Err())
		case err != nil && !errors.Is(err, context.DeadlineExceeded):
			yield(Device{}, err)
		}
	}
}

// Collect runs Scan to completion and returns every device found. On error
// the devices found so far are returned with it.
func Collect(ctx context.Context, reg Registry, window time.Duration) ([]Device, error) {
	var devices []Device
	for d, err := range Scan(ctx, reg, window) {
		if err != nil {
			return devices, err
		}
		devices = append(devices, d)
	}
	return devices, nil
}
