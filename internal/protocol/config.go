package protocol

import (
	"encoding/binary"
	"fmt"
	"strings"
)

// ByteOrder selects the order of multi-byte integer payloads.
type ByteOrder uint8

const (
	LittleEndian ByteOrder = iota
	BigEndian
)

// String returns the config spelling of the byte order.
func (o ByteOrder) String() string {
	switch o {
	case LittleEndian:
		return "little"
	case BigEndian:
		return "big"
	default:
		return fmt.Sprintf("byte_order(%d)", uint8(o))
	}
}

type byteOrder interface {
	binary.ByteOrder
	binary.AppendByteOrder
}

func (o ByteOrder) order() byteOrder {
	if o == BigEndian {
		return binary.BigEndian
	}
	return binary.LittleEndian
}

// IntEncoding selects how tags, u16 fields and lengths are written.
type IntEncoding uint8

const (
	// Varint writes values below 251 in one byte and larger values as a
	// marker byte (251=u16, 252=u32, 253=u64) followed by the fixed width.
	Varint IntEncoding = iota
	// Fixint writes every integer at its declared width.
	Fixint
)

// String returns the config spelling of the integer encoding.
func (e IntEncoding) String() string {
	switch e {
	case Varint:
		return "varint"
	case Fixint:
		return "fixint"
	default:
		return fmt.Sprintf("int_encoding(%d)", uint8(e))
	}
}

// Config is the immutable set of serialization rules. Both ends of a
// session must use the same Config; a mismatch is not detectable on the
// wire. The zero value is Standard().
type Config struct {
	ByteOrder   ByteOrder
	IntEncoding IntEncoding
}

// Standard returns the default configuration: little-endian varints.
func Standard() Config {
	return Config{ByteOrder: LittleEndian, IntEncoding: Varint}
}

// WithBigEndian returns a copy of c using big-endian payloads.
func (c Config) WithBigEndian() Config {
	c.ByteOrder = BigEndian
	return c
}

// WithFixedInts returns a copy of c using fixed-width integers.
func (c Config) WithFixedInts() Config {
	c.IntEncoding = Fixint
	return c
}

// Validate rejects values outside the known enumerations.
func (c Config) Validate() error {
	if c.ByteOrder > BigEndian {
		return fmt.Errorf("protocol: unknown byte order %d", uint8(c.ByteOrder))
	}
	if c.IntEncoding > Fixint {
		return fmt.Errorf("protocol: unknown int encoding %d", uint8(c.IntEncoding))
	}
	return nil
}

// ParseByteOrder maps "little"/"le" and "big"/"be" to a ByteOrder.
func ParseByteOrder(raw string) (ByteOrder, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "little", "le", "little_endian":
		return LittleEndian, nil
	case "big", "be", "big_endian":
		return BigEndian, nil
	default:
		return 0, fmt.Errorf("protocol: unknown byte order %q", raw)
	}
}

// ParseIntEncoding maps "varint" and "fixint"/"fixed" to an IntEncoding.
func ParseIntEncoding(raw string) (IntEncoding, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "varint", "variable":
		return Varint, nil
	case "fixint", "fixed":
		return Fixint, nil
	default:
		return 0, fmt.Errorf("protocol: unknown int encoding %q", raw)
	}
}
