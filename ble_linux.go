//go:build ble && linux

package main

import (
	"github.com/zerotouch/cardiag/discovery"
	"github.com/zerotouch/cardiag/obd"
)

func bleDialer() (obd.Dialer, error) {
	return obd.BLEDialer{}, nil
}

func bleRegistry() discovery.Registry {
	return &discovery.BLERegistry{}
}
