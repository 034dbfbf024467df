package protocol

import (
	"bytes"
	"errors"
	"io"
)

// Kind reported by EncodeError when the message is not a known variant.
const kindInvalid Kind = ^Kind(0)

// Codec encodes and decodes frames under one fixed Config. It holds no
// mutable state and is safe for concurrent use.
type Codec struct {
	cfg Config
}

// NewCodec returns a codec bound to cfg.
func NewCodec(cfg Config) Codec {
	return Codec{cfg: cfg}
}

// Default is the codec for Standard().
var Default = NewCodec(Standard())

// Config returns the serialization rules used by c.
func (c Codec) Config() Config {
	return c.cfg
}

// Append serializes m onto dst and returns the extended slice. On error dst
// is returned unchanged.
func (c Codec) Append(dst []byte, m Message) ([]byte, error) {
	m, err := normalize(m)
	if err != nil {
		return dst, err
	}
	cfg := c.cfg
	start := len(dst)
	dst = cfg.appendU32(dst, uint32(m.Kind()))
	switch v := m.(type) {
	case Close:
	case NewConnection:
		dst = cfg.appendU16(dst, v.ConnectionID)
		dst = cfg.appendU16(dst, v.Port)
	case Data:
		dst = cfg.appendU16(dst, v.ConnectionID)
		dst = cfg.appendLenBytes(dst, v.Data)
	case ConnectionClose:
		dst = cfg.appendU16(dst, v.ConnectionID)
	case Log:
		dst = cfg.appendU64(dst, uint64(len(v.Message)))
		dst = append(dst, v.Message...)
	default:
		return dst[:start], &EncodeError{Kind: kindInvalid, Err: ErrUnknownMessage}
	}
	return dst, nil
}

// Encode serializes m and hands the whole frame to w in a single Write.
// Failing to allocate the frame, or a *bytes.Buffer sink failing to grow,
// is reported as ErrResource instead of panicking.
func (c Codec) Encode(w io.Writer, m Message) error {
	m, err := normalize(m)
	if err != nil {
		return err
	}
	kind := m.Kind()
	n, err := c.EncodedLen(m)
	if err != nil {
		return err
	}
	frame, err := allocFrame(kind, n)
	if err != nil {
		return err
	}
	if frame, err = c.Append(frame, m); err != nil {
		return err
	}
	return writeFrame(w, kind, frame)
}

// allocFrame reserves n bytes. Sizes the runtime refuses surface as a
// makeslice panic.
func allocFrame(kind Kind, n int) (frame []byte, err error) {
	defer func() {
		if r := recover(); r != nil {
			frame, err = nil, &EncodeError{Kind: kind, Err: ErrResource}
		}
	}()
	return make([]byte, 0, n), nil
}

func writeFrame(w io.Writer, kind Kind, frame []byte) (err error) {
	defer func() {
		if r := recover(); r != nil {
			if r != bytes.ErrTooLarge {
				panic(r)
			}
			err = &EncodeError{Kind: kind, Err: ErrResource}
		}
	}()
	if _, err := w.Write(frame); err != nil {
		return &EncodeError{Kind: kind, Err: err}
	}
	return nil
}

// EncodedLen returns the exact number of bytes Append would add for m.
func (c Codec) EncodedLen(m Message) (int, error) {
	m, err := normalize(m)
	if err != nil {
		return 0, err
	}
	cfg := c.cfg
	n := cfg.u32Len(uint32(m.Kind()))
	switch v := m.(type) {
	case Close:
	case NewConnection:
		n += cfg.u16Len(v.ConnectionID) + cfg.u16Len(v.Port)
	case Data:
		n += cfg.u16Len(v.ConnectionID) + cfg.u64Len(uint64(len(v.Data))) + len(v.Data)
	case ConnectionClose:
		n += cfg.u16Len(v.ConnectionID)
	case Log:
		n += cfg.u64Len(uint64(len(v.Message))) + len(v.Message)
	default:
		return 0, &EncodeError{Kind: kindInvalid, Err: ErrUnknownMessage}
	}
	return n, nil
}

// normalize turns pointer variants into values so callers may pass either.
func normalize(m Message) (Message, error) {
	nilErr := &EncodeError{Kind: kindInvalid, Err: ErrNilMessage}
	switch v := m.(type) {
	case nil:
		return nil, nilErr
	case *Close:
		if v == nil {
			return nil, nilErr
		}
		return *v, nil
	case *NewConnection:
		if v == nil {
			return nil, nilErr
		}
		return *v, nil
	case *Data:
		if v == nil {
			return nil, nilErr
		}
		return *v, nil
	case *ConnectionClose:
		if v == nil {
			return nil, nilErr
		}
		return *v, nil
	case *Log:
		if v == nil {
			return nil, nilErr
		}
		return *v, nil
	}
	return m, nil
}

// Encode writes m to w using the Standard() configuration.
func Encode(w io.Writer, m Message) error {
	return Default.Encode(w, m)
}

// IsEncodeError reports whether err came from a failed encode.
func IsEncodeError(err error) bool {
	var encErr *EncodeError
	return errors.As(err, &encErr)
}
