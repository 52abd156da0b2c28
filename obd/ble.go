//go:build ble && linux

package obd

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"tinygo.org/x/bluetooth"
)

// Most BLE ELM327 clones tunnel the serial stream through service FFF0,
// notifying on FFF1 and accepting writes on FFF2.
var (
	DefaultBLEService = bluetooth.New16BitUUID(0xFFF0)
	DefaultBLENotify  = bluetooth.New16BitUUID(0xFFF1)
	DefaultBLEWrite   = bluetooth.New16BitUUID(0xFFF2)
)

// bleWriteChunk is the ATT payload size of the default MTU.
const bleWriteChunk = 20

// BLEDialer opens an adapter over a Bluetooth Low Energy UART tunnel. The
// address is the adapter's MAC address.
type BLEDialer struct {
	Adapter        *bluetooth.Adapter
	Service        bluetooth.UUID
	Notify         bluetooth.UUID
	Write          bluetooth.UUID
	ConnectTimeout time.Duration
}

var _ Dialer = BLEDialer{}

func (d BLEDialer) Dial(ctx context.Context, address string) (Transport, error) {
	if address == "" {
		return nil, fmt.Errorf("adapter MAC address is required: %w", ErrInvalidArgs)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	adapter := d.Adapter
	if adapter == nil {
		adapter = bluetooth.DefaultAdapter
	}
	if err := adapter.Enable(); err != nil {
		return nil, fmt.Errorf("enable bluetooth: %w: %w", ErrTransportDisabled, err)
	}

	mac, err := bluetooth.ParseMAC(address)
	if err != nil {
		return nil, fmt.Errorf("parse address %q: %w: %w", address, ErrInvalidArgs, err)
	}

	timeout := d.ConnectTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	device, err := adapter.Connect(bluetooth.Address{MACAddress: bluetooth.MACAddress{MAC: mac}}, bluetooth.ConnectionParams{
		ConnectionTimeout: bluetooth.NewDuration(timeout),
	})
	if err != nil {
		return nil, ioError(fmt.Sprintf("connect %s", address), err)
	}

	t, err := d.open(device)
	if err != nil {
		device.Disconnect()
		return nil, ioError(fmt.Sprintf("open UART service on %s", address), err)
	}
	return t, nil
}

func (d BLEDialer) open(device bluetooth.Device) (*bleTransport, error) {
	service, notify, write := d.Service, d.Notify, d.Write
	if service == (bluetooth.UUID{}) {
		service = DefaultBLEService
	}
	if notify == (bluetooth.UUID{}) {
		notify = DefaultBLENotify
	}
	if write == (bluetooth.UUID{}) {
		write = DefaultBLEWrite
	}

	services, err := device.DiscoverServices([]bluetooth.UUID{service})
	if err != nil {
		return nil, err
	}
	if len(services) == 0 {
		return nil, fmt.Errorf("service %s not found", service)
	}
	chars, err := services[0].DiscoverCharacteristics([]bluetooth.UUID{notify, write})
	if err != nil {
		return nil, err
	}

	t := &bleTransport{
		device: device,
		ready:  make(chan struct{}, 1),
	}
	var rx *bluetooth.DeviceCharacteristic
	for i := range chars {
		switch chars[i].UUID() {
		case notify:
			rx = &chars[i]
		case write:
			t.tx = chars[i]
			t.hasTx = true
		}
	}
	if rx == nil || !t.hasTx {
		return nil, fmt.Errorf("characteristics %s/%s not found", notify, write)
	}
	if err := rx.EnableNotifications(t.notify); err != nil {
		return nil, err
	}
	return t, nil
}

// bleTransport buffers notifications until the command engine reads them.
type bleTransport struct {
	device bluetooth.Device
	tx     bluetooth.DeviceCharacteristic
	hasTx  bool

	mu     sync.Mutex
	buf    bytes.Buffer
	closed bool
	ready  chan struct{}
}

var _ ReadyNotifier = (*bleTransport)(nil)

func (t *bleTransport) notify(p []byte) {
	t.mu.Lock()
	t.buf.Write(p)
	t.mu.Unlock()
	select {
	case t.ready <- struct{}{}:
	default:
	}
}

func (t *bleTransport) Ready() <-chan struct{} {
	return t.ready
}

func (t *bleTransport) Read(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return 0, io.ErrClosedPipe
	}
	if t.buf.Len() == 0 {
		return 0, nil
	}
	return t.buf.Read(p)
}

func (t *bleTransport) Write(p []byte) (int, error) {
	written := 0
	for len(p) > 0 {
		n := min(len(p), bleWriteChunk)
		if _, err := t.tx.WriteWithoutResponse(p[:n]); err != nil {
			return written, err
		}
		written += n
		p = p[n:]
	}
	return written, nil
}

func (t *bleTransport) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	t.mu.Unlock()
	return t.device.Disconnect()
}
