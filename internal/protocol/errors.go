package protocol

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformed matches every DecodeError.
	ErrMalformed = errors.New("protocol: malformed frame")
	// ErrIncomplete is returned by Peek when the buffer holds a valid but
	// truncated frame. Decode reports the same state as ok == false.
	ErrIncomplete = errors.New("protocol: incomplete frame")

	ErrUnknownTag       = errors.New("protocol: unknown variant tag")
	ErrInvalidIntMarker = errors.New("protocol: invalid integer marker")
	ErrIntOverflow      = errors.New("protocol: integer overflows field width")
	ErrLengthOverflow   = errors.New("protocol: length exceeds addressable size")
	ErrInvalidUTF8      = errors.New("protocol: text is not valid utf-8")

	ErrNilMessage     = errors.New("protocol: nil message")
	ErrUnknownMessage = errors.New("protocol: message type outside the closed set")
	ErrResource       = errors.New("protocol: buffer allocation failed")
)

// DecodeError reports bytes that cannot be a prefix of any frame.
// Offset is relative to the start of the frame being decoded.
type DecodeError struct {
	Offset int
	Tag    Kind
	HasTag bool
	Err    error
}

func (e *DecodeError) Error() string {
	if e.HasTag {
		return fmt.Sprintf("protocol: decode %s at offset %d: %v", e.Tag, e.Offset, e.Err)
	}
	return fmt.Sprintf("protocol: decode at offset %d: %v", e.Offset, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// Is lets errors.Is(err, ErrMalformed) match any DecodeError.
func (e *DecodeError) Is(target error) bool {
	return target == ErrMalformed
}

// EncodeError reports a message that could not be serialized. No bytes of
// the failed frame may be assumed written.
type EncodeError struct {
	Kind Kind
	Err  error
}

func (e *EncodeError) Error() string {
	return fmt.Sprintf("protocol: encode %s: %v", e.Kind, e.Err)
}

func (e *EncodeError) Unwrap() error {
	return e.Err
}
