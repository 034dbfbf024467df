package protocol

import (
	"errors"
	"math"
)

// Varint marker bytes. Values below markerU16 are stored inline; 254 and
// 255 are never valid.
const (
	markerU16 = 251
	markerU32 = 252
	markerU64 = 253
)

const maxInt = int(^uint(0) >> 1)

func (c Config) appendU16(dst []byte, v uint16) []byte {
	if c.IntEncoding == Fixint {
		return c.ByteOrder.order().AppendUint16(dst, v)
	}
	return c.appendVarint(dst, uint64(v))
}

func (c Config) appendU32(dst []byte, v uint32) []byte {
	if c.IntEncoding == Fixint {
		return c.ByteOrder.order().AppendUint32(dst, v)
	}
	return c.appendVarint(dst, uint64(v))
}

func (c Config) appendU64(dst []byte, v uint64) []byte {
	if c.IntEncoding == Fixint {
		return c.ByteOrder.order().AppendUint64(dst, v)
	}
	return c.appendVarint(dst, v)
}

func (c Config) appendVarint(dst []byte, v uint64) []byte {
	order := c.ByteOrder.order()
	switch {
	case v < markerU16:
		return append(dst, byte(v))
	case v <= math.MaxUint16:
		return order.AppendUint16(append(dst, markerU16), uint16(v))
	case v <= math.MaxUint32:
		return order.AppendUint32(append(dst, markerU32), uint32(v))
	default:
		return order.AppendUint64(append(dst, markerU64), v)
	}
}

func (c Config) appendLenBytes(dst []byte, b []byte) []byte {
	dst = c.appendU64(dst, uint64(len(b)))
	return append(dst, b...)
}

func (c Config) u16Len(v uint16) int {
	if c.IntEncoding == Fixint {
		return 2
	}
	return varintLen(uint64(v))
}

func (c Config) u32Len(v uint32) int {
	if c.IntEncoding == Fixint {
		return 4
	}
	return varintLen(uint64(v))
}

func (c Config) u64Len(v uint64) int {
	if c.IntEncoding == Fixint {
		return 8
	}
	return varintLen(v)
}

func varintLen(v uint64) int {
	switch {
	case v < markerU16:
		return 1
	case v <= math.MaxUint16:
		return 3
	case v <= math.MaxUint32:
		return 5
	default:
		return 9
	}
}

// reader walks one candidate frame. It never advances past len(buf) and
// reports a short buffer as ErrIncomplete so callers can retry later.
type reader struct {
	cfg Config
	buf []byte
	pos int
	tag Kind
	has bool
}

func (r *reader) fail(at int, err error) error {
	return &DecodeError{Offset: at, Tag: r.tag, HasTag: r.has, Err: err}
}

// need returns the offset of the next n bytes and advances past them.
func (r *reader) need(n int) (int, error) {
	if n > len(r.buf)-r.pos {
		return 0, ErrIncomplete
	}
	off := r.pos
	r.pos += n
	return off, nil
}

// readUint reads an unsigned integer of the given bit width (16, 32 or 64).
func (r *reader) readUint(bits int) (uint64, error) {
	start := r.pos
	order := r.cfg.ByteOrder.order()
	if r.cfg.IntEncoding == Fixint {
		off, err := r.need(bits / 8)
		if err != nil {
			return 0, err
		}
		switch bits {
		case 16:
			return uint64(order.Uint16(r.buf[off:])), nil
		case 32:
			return uint64(order.Uint32(r.buf[off:])), nil
		default:
			return order.Uint64(r.buf[off:]), nil
		}
	}

	off, err := r.need(1)
	if err != nil {
		return 0, err
	}
	marker := r.buf[off]
	var width int
	switch {
	case marker < markerU16:
		return uint64(marker), nil
	case marker == markerU16:
		width = 16
	case marker == markerU32:
		width = 32
	case marker == markerU64:
		width = 64
	default:
		return 0, r.fail(start, ErrInvalidIntMarker)
	}
	if width > bits {
		return 0, r.fail(start, ErrIntOverflow)
	}
	off, err = r.need(width / 8)
	if err != nil {
		return 0, err
	}
	switch width {
	case 16:
		return uint64(order.Uint16(r.buf[off:])), nil
	case 32:
		return uint64(order.Uint32(r.buf[off:])), nil
	default:
		return order.Uint64(r.buf[off:]), nil
	}
}

// readTag reads the variant tag. A truncated tag whose known bytes already
// force a value past the last variant is rejected without waiting for the
// rest of it.
func (r *reader) readTag() (Kind, error) {
	start := r.pos
	v, err := r.readUint(32)
	if errors.Is(err, ErrIncomplete) {
		if r.tagPrefixImpossible(start) {
			return 0, r.fail(start, ErrUnknownTag)
		}
		return 0, err
	}
	if err != nil {
		return 0, err
	}
	k := Kind(v)
	if !k.Valid() {
		return 0, r.fail(start, ErrUnknownTag)
	}
	r.tag, r.has = k, true
	return k, nil
}

// tagPrefixImpossible reports whether the fixed-width bytes available at
// start can no longer spell a known tag regardless of what follows.
func (r *reader) tagPrefixImpossible(start int) bool {
	body := r.buf[start:]
	width := 4
	if r.cfg.IntEncoding == Varint {
		if len(body) == 0 {
			return false
		}
		switch body[0] {
		case markerU16:
			width = 2
		case markerU32:
			width = 4
		default:
			return false
		}
		body = body[1:]
	}
	if len(body) > width {
		body = body[:width]
	}
	// Unknown bytes are taken as zero, which yields the smallest value the
	// completed integer could hold.
	var least uint64
	for i, b := range body {
		shift := 8 * i
		if r.cfg.ByteOrder == BigEndian {
			shift = 8 * (width - 1 - i)
		}
		least |= uint64(b) << shift
	}
	return least > uint64(KindLog)
}

func (r *reader) readU16() (uint16, error) {
	v, err := r.readUint(16)
	return uint16(v), err
}

// readLenBytes reads a u64 length and then that many bytes. The returned
// slice aliases the input buffer.
func (r *reader) readLenBytes() ([]byte, error) {
	start := r.pos
	n, err := r.readUint(64)
	if err != nil {
		return nil, err
	}
	if n > uint64(maxInt) {
		return nil, r.fail(start, ErrLengthOverflow)
	}
	off, err := r.need(int(n))
	if err != nil {
		return nil, err
	}
	return r.buf[off : off+int(n)], nil
}
