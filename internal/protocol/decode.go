package protocol

import (
	"errors"
	"unicode/utf8"
)

// Source is a receive buffer with peek-front and drain-front semantics.
// *bytes.Buffer satisfies it.
type Source interface {
	Bytes() []byte
	Next(n int) []byte
}

// Outcome names the three results of a decode attempt.
type Outcome uint8

const (
	Incomplete Outcome = iota
	Complete
	Malformed
)

// String returns the string representation of the outcome.
func (o Outcome) String() string {
	switch o {
	case Complete:
		return "complete"
	case Incomplete:
		return "incomplete"
	case Malformed:
		return "malformed"
	default:
		return "unknown"
	}
}

// Classify maps the results of Decode onto an Outcome.
func Classify(ok bool, err error) Outcome {
	switch {
	case err != nil:
		return Malformed
	case ok:
		return Complete
	default:
		return Incomplete
	}
}

// Decode parses one frame from the front of src.
//
//   - complete:   returns (m, true, nil) and drains exactly that frame
//   - incomplete: returns (nil, false, nil) and leaves src untouched
//   - malformed:  returns (nil, false, *DecodeError) and leaves src untouched
//
// Parsing always starts at the first byte of src; there is no
// resynchronization after a malformed frame.
func (c Codec) Decode(src Source) (Message, bool, error) {
	m, n, err := c.Peek(src.Bytes())
	if errors.Is(err, ErrIncomplete) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	src.Next(n)
	return m, true, nil
}

// Peek parses one frame from the front of buf without consuming it and
// returns the frame length. A valid but truncated frame yields
// ErrIncomplete. Decoded byte fields never alias buf.
func (c Codec) Peek(buf []byte) (Message, int, error) {
	r := reader{cfg: c.cfg, buf: buf}
	kind, err := r.readTag()
	if err != nil {
		return nil, 0, err
	}

	var m Message
	switch kind {
	case KindClose:
		m = Close{}
	case KindNewConnection:
		id, err := r.readU16()
		if err != nil {
			return nil, 0, err
		}
		port, err := r.readU16()
		if err != nil {
			return nil, 0, err
		}
		m = NewConnection{ConnectionID: id, Port: port}
	case KindData:
		id, err := r.readU16()
		if err != nil {
			return nil, 0, err
		}
		raw, err := r.readLenBytes()
		if err != nil {
			return nil, 0, err
		}
		data := make([]byte, len(raw))
		copy(data, raw)
		m = Data{ConnectionID: id, Data: data}
	case KindConnectionClose:
		id, err := r.readU16()
		if err != nil {
			return nil, 0, err
		}
		m = ConnectionClose{ConnectionID: id}
	case KindLog:
		// UTF-8 is checked only once the whole text is buffered: a truncated
		// Log is incomplete even if its known bytes are already invalid.
		start := r.pos
		raw, err := r.readLenBytes()
		if err != nil {
			return nil, 0, err
		}
		if !utf8.Valid(raw) {
			return nil, 0, r.fail(start, ErrInvalidUTF8)
		}
		m = Log{Message: string(raw)}
	default:
		return nil, 0, r.fail(0, ErrUnknownTag)
	}
	return m, r.pos, nil
}

// Decode parses one frame from src using the Standard() configuration.
func Decode(src Source) (Message, bool, error) {
	return Default.Decode(src)
}
