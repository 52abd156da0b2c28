//go:build !(ble && linux)

package main

import (
	"fmt"

	"github.com/zerotouch/cardiag/discovery"
	"github.com/zerotouch/cardiag/obd"
)

func bleDialer() (obd.Dialer, error) {
	return nil, fmt.Errorf("built without BLE support: %w", obd.ErrUnsupportedTransport)
}

func bleRegistry() discovery.Registry {
	return nil
}
