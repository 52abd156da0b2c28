// Package elm implements the wire framing of the ELM327 command language.
//
// Every command sent to an ELM327-family adapter is ASCII text terminated by
// a single carriage return. Every reply ends with the ready prompt (">"),
// usually preceded by one or more CR/LF sequences.
package elm

const (
	// Terminal Control
	CR     = "\r"
	LF     = "\n"
	Prompt = ">"

	// Adapter initialization
	CmdReset        = "ATZ"
	CmdEchoOff      = "ATE0"
	CmdLinefeedsOff = "ATL0"
	CmdSpacesOff    = "ATS0"
	CmdAutoProtocol = "ATSP0"

	// Informational commands
	CmdIdentify         = "ATI"
	CmdVoltage          = "ATRV"
	CmdDescribeProtocol = "ATDPN"

	// CmdSupportedPIDs requests the mode 01 PIDs 01-20 supported by the
	// vehicle. It is the cheapest request that reaches the ECU.
	CmdSupportedPIDs = "0100"

	// Replies
	OK              = "OK"
	Unknown         = "?"
	NoData          = "NO DATA"
	Searching       = "SEARCHING..."
	UnableToConnect = "UNABLE TO CONNECT"
	BusInit         = "BUS INIT:"
	BusBusy         = "BUS BUSY"
	BusError        = "BUS ERROR"
	CanError        = "CAN ERROR"
	DataError       = "DATA ERROR"
	BufferFull      = "BUFFER FULL"
	FBError         = "FB ERROR"
	Stopped         = "STOPPED"
	Identity        = "ELM327"
)

// InitSequence is the fixed adapter setup run after every connect: reset,
// echo off, linefeeds off, spaces off, automatic protocol selection. The
// adapter processes one command at a time, so the order is part of the
// contract.
var InitSequence = [...]string{
	CmdReset,
	CmdEchoOff,
	CmdLinefeedsOff,
	CmdSpacesOff,
	CmdAutoProtocol,
}

type ResponseType int

const (
	TypeData     ResponseType = iota // Hex payload from the vehicle (41 0C 1A F8)
	TypeOK                           // AT command accepted
	TypeStatus                       // Progress notice (SEARCHING...)
	TypeNoData                       // Request understood, vehicle did not answer
	TypeError                        // Adapter or bus error (?, CAN ERROR, ...)
	TypeIdentity                     // Version banner (ELM327 v1.5)
	TypePrompt                       // Ready prompt
)

func (t ResponseType) String() string {
	switch t {
	case TypeData:
		return "data"
	case TypeOK:
		return "ok"
	case TypeStatus:
		return "status"
	case TypeNoData:
		return "no-data"
	case TypeError:
		return "error"
	case TypeIdentity:
		return "identity"
	case TypePrompt:
		return "prompt"
	default:
		return "unknown"
	}
}
