package obd_test

import (
	"context"

	gomock "go.uber.org/mock/gomock"

	"github.com/zerotouch/cardiag/obd"
)

type MockSequenceBuilder struct {
	transport *obd.MockTransport
	calls     []any
}

func NewMockSequence(transport *obd.MockTransport) *MockSequenceBuilder {
	return &MockSequenceBuilder{
		transport: transport,
		calls:     []any{},
	}
}

// Idle expects a read that finds nothing waiting, as issued before every
// command.
func (b *MockSequenceBuilder) Idle() *MockSequenceBuilder {
	b.calls = append(b.calls, b.transport.EXPECT().Read(gomock.Any()).Return(0, nil))
	return b
}

// Exchange expects cmd to be written with a single CR and answers it with
// resp in one read.
func (b *MockSequenceBuilder) Exchange(cmd, resp string) *MockSequenceBuilder {
	wire := cmd + "\r"
	b.Idle()
	b.calls = append(b.calls,
		b.transport.EXPECT().Write([]byte(wire)).Return(len(wire), nil),
		b.transport.EXPECT().Read(gomock.Any()).DoAndReturn(func(p []byte) (int, error) {
			return copy(p, resp), nil
		}),
	)
	return b
}

func (b *MockSequenceBuilder) Reset() *MockSequenceBuilder {
	return b.Exchange("ATZ", "\r\rELM327 v1.5\r\r>")
}

func (b *MockSequenceBuilder) EchoOff() *MockSequenceBuilder {
	return b.Exchange("ATE0", "ATE0\rOK\r\r>")
}

func (b *MockSequenceBuilder) LinefeedsOff() *MockSequenceBuilder {
	return b.Exchange("ATL0", "OK\r\r>")
}

func (b *MockSequenceBuilder) SpacesOff() *MockSequenceBuilder {
	return b.Exchange("ATS0", "OK\r\r>")
}

func (b *MockSequenceBuilder) AutoProtocol() *MockSequenceBuilder {
	return b.Exchange("ATSP0", "OK\r\r>")
}

func (b *MockSequenceBuilder) Build() []any {
	return b.calls
}

// initMockCalls returns the expected calls of a successful initialization.
func initMockCalls(transport *obd.MockTransport) []any {
	return NewMockSequence(transport).
		Reset().
		EchoOff().
		LinefeedsOff().
		SpacesOff().
		AutoProtocol().
		Build()
}

// scriptedAdapter returns a TestTransport that answers the initialization
// sequence like a factory-fresh adapter.
func scriptedAdapter() *obd.TestTransport {
	return obd.NewTestTransport().
		Reply("ATZ", "\r\rELM327 v1.5\r\r>").
		Reply("ATE0", "ATE0\rOK\r\r>").
		Reply("ATL0", "OK\r\r>").
		Reply("ATS0", "OK\r\r>").
		Reply("ATSP0", "OK\r\r>")
}

// staticDialer always hands out the same transport.
func staticDialer(t obd.Transport) obd.Dialer {
	return obd.DialerFunc(func(_ context.Context, _ string) (obd.Transport, error) {
		return t, nil
	})
}
