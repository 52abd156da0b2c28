package pid

import (
	"fmt"
	"strconv"
	"strings"
)

// Definition describes a mode 01 PID.
type Definition struct {
	PID   byte
	Name  string
	Unit  string
	Bytes int
	eval  func(b []byte) float64
}

// Value is a decoded measurement.
type Value struct {
	Name  string  `json:"name" yaml:"name"`
	Value float64 `json:"value" yaml:"value"`
	Unit  string  `json:"unit" yaml:"unit"`
}

func (v Value) String() string {
	return strconv.FormatFloat(v.Value, 'f', -1, 64) + " " + v.Unit
}

// Command is the request for d, e.g. "010C".
func (d Definition) Command() string {
	return fmt.Sprintf("01%02X", d.PID)
}

func (d Definition) Decode(r Response) (Value, error) {
	if r.Mode != 0x01 || r.PID != d.PID {
		return Value{}, fmt.Errorf("expected 41 %02X, got %02X %02X: %w", d.PID, r.Mode+0x40, r.PID, ErrMismatch)
	}
	if len(r.Data) < d.Bytes {
		return Value{}, fmt.Errorf("%s needs %d data bytes, got %d: %w", d.Name, d.Bytes, len(r.Data), ErrMalformed)
	}
	return Value{Name: d.Name, Value: d.eval(r.Data), Unit: d.Unit}, nil
}

func percent(b []byte) float64 { return float64(b[0]) * 100 / 255 }
func celsius(b []byte) float64 { return float64(b[0]) - 40 }
func word(b []byte) float64    { return float64(uint16(b[0])<<8 | uint16(b[1])) }

var Mode01 = []Definition{
	{PID: 0x04, Name: "load", Unit: "%", Bytes: 1, eval: percent},
	{PID: 0x05, Name: "coolant", Unit: "°C", Bytes: 1, eval: celsius},
	{PID: 0x0B, Name: "map", Unit: "kPa", Bytes: 1, eval: func(b []byte) float64 { return float64(b[0]) }},
	{PID: 0x0C, Name: "rpm", Unit: "rpm", Bytes: 2, eval: func(b []byte) float64 { return word(b) / 4 }},
	{PID: 0x0D, Name: "speed", Unit: "km/h", Bytes: 1, eval: func(b []byte) float64 { return float64(b[0]) }},
	{PID: 0x0F, Name: "intake", Unit: "°C", Bytes: 1, eval: celsius},
	{PID: 0x10, Name: "maf", Unit: "g/s", Bytes: 2, eval: func(b []byte) float64 { return word(b) / 100 }},
	{PID: 0x11, Name: "throttle", Unit: "%", Bytes: 1, eval: percent},
	{PID: 0x2F, Name: "fuel", Unit: "%", Bytes: 1, eval: percent},
	{PID: 0x42, Name: "voltage", Unit: "V", Bytes: 2, eval: func(b []byte) float64 { return word(b) / 1000 }},
	{PID: 0x46, Name: "ambient", Unit: "°C", Bytes: 1, eval: celsius},
}

// Lookup finds a definition by name ("rpm") or by hex PID ("0C").
func Lookup(key string) (Definition, bool) {
	key = strings.ToLower(strings.TrimSpace(key))
	for _, d := range Mode01 {
		if d.Name == key {
			return d, true
		}
	}
	if n, err := strconv.ParseUint(strings.TrimPrefix(key, "0x"), 16, 8); err == nil {
		for _, d := range Mode01 {
			if d.PID == byte(n) {
				return d, true
			}
		}
	}
	return Definition{}, false
}
