package discovery

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/zerotouch/cardiag/obd"
)

// Multi combines several registries. A member that fails is logged and
// skipped; Multi only fails when every member does. Members reporting
// obd.ErrUnsupportedTransport are skipped without a warning.
type Multi struct {
	Registries []Registry
	// Logger defaults to discarding.
	Logger *slog.Logger
}

var _ Registry = Multi{}

func (m Multi) logger() *slog.Logger {
	if m.Logger != nil {
		return m.Logger
	}
	return slog.New(slog.DiscardHandler)
}

// memberFailed logs err unless it only says the member's transport is
// missing on this host.
func (m Multi) memberFailed(op string, i int, err error) {
	if errors.Is(err, obd.ErrUnsupportedTransport) {
		m.logger().Debug("Registry unsupported", "op", op, "registry", i, "error", err)
		return
	}
	m.logger().Warn("Registry failed", "op", op, "registry", i, "error", err)
}

func (m Multi) Paired(ctx context.Context) ([]Device, error) {
	results := make([][]Device, len(m.Registries))
	errs := make([]error, len(m.Registries))
	var errg errgroup.Group
	for i, reg := range m.Registries {
		errg.Go(func() error {
			results[i], errs[i] = reg.Paired(ctx)
			return nil
		})
	}
	errg.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var devices []Device
	var failed []error
	seen := make(map[string]struct{})
	for i, res := range results {
		if errs[i] != nil {
			m.memberFailed("paired", i, errs[i])
			failed = append(failed, errs[i])
			continue
		}
		for _, d := range res {
			if _, dup := seen[d.Address]; dup {
				continue
			}
			seen[d.Address] = struct{}{}
			devices = append(devices, d)
		}
	}
	if len(m.Registries) > 0 && len(failed) == len(m.Registries) {
		return nil, errors.Join(failed...)
	}
	return devices, nil
}

// Discover runs every member until ctx is done. A member that stops early
// with an error does not stop the others.
func (m Multi) Discover(ctx context.Context, found func(Device)) error {
	var mu sync.Mutex
	report := func(d Device) {
		mu.Lock()
		defer mu.Unlock()
		found(d)
	}

	errs := make([]error, len(m.Registries))
	var errg errgroup.Group
	for i, reg := range m.Registries {
		errg.Go(func() error {
			err := reg.Discover(ctx, report)
			if err != nil && ctx.Err() == nil {
				m.memberFailed("discover", i, err)
				errs[i] = err
			}
			return nil
		})
	}
	errg.Wait()

	if err := ctx.Err(); err != nil {
		return err
	}
	var failed []error
	for _, err := range errs {
		if err != nil {
			failed = append(failed, err)
		}
	}
	if len(m.Registries) > 0 && len(failed) == len(m.Registries) {
		return errors.Join(failed...)
	}
	return nil
}

// Pair asks each member in turn and stops at the first that bonds.
func (m Multi) Pair(ctx context.Context, address string) (bool, error) {
	if address == "" {
		return false, fmt.Errorf("address is required: %w", obd.ErrInvalidArgs)
	}
	var errs []error
	for _, reg := range m.Registries {
		ok, err := reg.Pair(ctx, address)
		if ok {
			return true, nil
		}
		if err != nil && !errors.Is(err, obd.ErrUnsupportedTransport) {
			errs = append(errs, err)
		}
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
	}
	if len(errs) == 0 {
		return false, fmt.Errorf("pair %s: no registry knows this address: %w", address, ErrBondFailure)
	}
	return false, fmt.Errorf("pair %s: %w", address, errors.Join(errs...))
}

// StaticRegistry serves a fixed list of adapters, such as the ones named in
// a configuration file. Every listed device counts as paired.
type StaticRegistry struct {
	Devices []Device
}

var _ Registry = (*StaticRegistry)(nil)

func (s *StaticRegistry) Paired(ctx context.Context) ([]Device, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return append([]Device(nil), s.Devices...), nil
}

func (s *StaticRegistry) Discover(ctx context.Context, found func(Device)) error {
	for _, d := range s.Devices {
		if ctx.Err() != nil {
			break
		}
		found(d)
	}
	<-ctx.Done()
	return ctx.Err()
}

func (s *StaticRegistry) Pair(ctx context.Context, address string) (bool, error) {
	if address == "" {
		return false, fmt.Errorf("address is required: %w", obd.ErrInvalidArgs)
	}
	for _, d := range s.Devices {
		if d.Address == address {
			return true, nil
		}
	}
	return false, fmt.Errorf("%s is not a known adapter: %w", address, ErrBondFailure)
}
