// Package pid decodes OBD-II mode 01 replies as returned by an ELM327 with
// headers off. Both spaced ("41 0C 1A F8") and compact ("410C1AF8") replies
// are accepted.
package pid

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/zerotouch/cardiag/elm"
)

var (
	ErrNoData    = errors.New("no data")
	ErrMalformed = errors.New("malformed response")
	ErrAdapter   = errors.New("adapter error")
	ErrMismatch  = errors.New("response does not match request")
)

// Response is a decoded positive reply. Mode is the request mode, without
// the 0x40 reply offset.
type Response struct {
	Mode byte
	PID  byte
	Data []byte
}

// ParseHex decodes a single line of hex digits, ignoring spaces.
func ParseHex(line string) ([]byte, error) {
	compact := strings.Map(func(r rune) rune {
		if r == ' ' || r == '\t' {
			return -1
		}
		return r
	}, line)
	if compact == "" {
		return nil, fmt.Errorf("empty line: %w", ErrMalformed)
	}
	b, err := hex.DecodeString(compact)
	if err != nil {
		return nil, fmt.Errorf("%q: %w: %w", line, ErrMalformed, err)
	}
	return b, nil
}

// Parse returns the first positive reply in resp. Progress lines such as
// SEARCHING... are skipped.
func Parse(resp string) (Response, error) {
	for _, line := range elm.Lines(resp) {
		switch elm.Classify(line) {
		case elm.TypeNoData:
			return Response{}, ErrNoData
		case elm.TypeError:
			return Response{}, fmt.Errorf("%w: %s", ErrAdapter, line)
		case elm.TypeData:
			b, err := ParseHex(line)
			if err != nil {
				return Response{}, err
			}
			if len(b) < 2 || b[0] < 0x40 {
				return Response{}, fmt.Errorf("%q: %w", line, ErrMalformed)
			}
			return Response{Mode: b[0] - 0x40, PID: b[1], Data: b[2:]}, nil
		}
	}
	return Response{}, ErrNoData
}

// Supported decodes a "PIDs supported" reply (PID 00, 20, 40, ...) into
// the list of PIDs the vehicle reports.
func Supported(resp string) ([]byte, error) {
	r, err := Parse(resp)
	if err != nil {
		return nil, err
	}
	if r.Mode != 0x01 || r.PID%0x20 != 0 {
		return nil, fmt.Errorf("mode %02X PID %02X: %w", r.Mode, r.PID, ErrMismatch)
	}
	if len(r.Data) < 4 {
		return nil, fmt.Errorf("supported PIDs bitmap has %d bytes: %w", len(r.Data), ErrMalformed)
	}

	var pids []byte
	for i := range 32 {
		if r.Data[i/8]&(0x80>>(i%8)) == 0 {
			continue
		}
		// the last bit of the E0 bitmap would be PID 0x100
		if p := int(r.PID) + i + 1; p <= 0xFF {
			pids = append(pids, byte(p))
		}
	}
	return pids, nil
}

// Sender is the part of a connection Read needs.
type Sender interface {
	SendCommand(ctx context.Context, cmd string) (string, error)
}

// Read requests def from the vehicle and decodes the reply.
func Read(ctx context.Context, s Sender, def Definition) (Value, error) {
	resp, err := s.SendCommand(ctx, def.Command())
	if err != nil {
		return Value{}, err
	}
	r, err := Parse(resp)
	if err != nil {
		return Value{}, fmt.Errorf("%s: %w", def.Name, err)
	}
	return def.Decode(r)
}
