package elm

import (
	"bufio"
	"bytes"
	"strings"
)

// Frame encodes cmd for the wire. The result always ends with exactly one
// carriage return: a command already ending in a single CR is returned as
// is, trailing line terminators are collapsed, and an empty command becomes
// a bare CR (used as a wake probe).
func Frame(cmd string) []byte {
	return []byte(strings.TrimRight(cmd, CR+LF) + CR)
}

// IsTerminated reports whether the accumulated reply contains the ready
// prompt. The prompt may be followed by a trailing newline on some adapters,
// so this is a containment test and not a suffix test.
func IsTerminated(buf []byte) bool {
	return bytes.Contains(buf, []byte(Prompt))
}

// Finalize turns an accumulated reply into the text handed to callers: the
// prompt and NUL padding are dropped and surrounding whitespace, including
// CR/LF framing, is trimmed. The payload itself is not interpreted.
func Finalize(buf []byte) string {
	s := strings.Map(func(r rune) rune {
		if r == 0 || r == '>' {
			return -1
		}
		return r
	}, string(buf))
	return strings.TrimSpace(s)
}

// Splitter tokenizes raw adapter output. It uses the signature of
// bufio.SplitFunc so it can be directly used with bufio.Scanner.
//
// Lines are split on CR, LF or CRLF; the ready prompt is returned as a token
// of its own. Empty lines produce empty tokens, callers skip them.
func Splitter(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}

	if data[0] == Prompt[0] {
		return 1, data[:1], nil
	}

	if i := bytes.IndexAny(data, CR+LF+Prompt); i >= 0 {
		if data[i] == Prompt[0] {
			return i, data[:i], nil
		}
		advance = i + 1
		if data[i] == '\r' && i+1 < len(data) && data[i+1] == '\n' {
			advance++
		}
		return advance, data[:i], nil
	}

	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}

var _ bufio.SplitFunc = Splitter

// Lines returns the non-empty lines of a reply, prompt excluded.
func Lines(resp string) []string {
	var lines []string
	scanner := bufio.NewScanner(strings.NewReader(resp))
	scanner.Split(Splitter)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || line == Prompt {
			continue
		}
		lines = append(lines, line)
	}
	return lines
}

// Classify identifies the nature of a single reply line.
func Classify(line string) ResponseType {
	line = strings.TrimSpace(line)
	if line == Prompt {
		return TypePrompt
	}

	switch line {
	case OK:
		return TypeOK
	case Searching:
		return TypeStatus
	case NoData:
		return TypeNoData
	case Unknown, UnableToConnect, BusBusy, BusError, CanError, DataError, BufferFull, FBError, Stopped:
		return TypeError
	}

	switch {
	case strings.HasPrefix(line, BusInit):
		if strings.HasSuffix(line, "OK") {
			return TypeStatus
		}
		return TypeError
	case strings.HasPrefix(line, Identity):
		return TypeIdentity
	case strings.HasSuffix(line, "ERROR"), strings.HasPrefix(line, "ERR"):
		return TypeError
	default:
		return TypeData
	}
}
