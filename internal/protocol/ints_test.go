package protocol

import (
	"bytes"
	"errors"
	"math"
	"testing"
)

func TestVarintBoundaries(t *testing.T) {
	cases := []struct {
		v    uint64
		want []byte
	}{
		{0, []byte{0}},
		{250, []byte{250}},
		{251, []byte{markerU16, 251, 0}},
		{math.MaxUint16, []byte{markerU16, 0xff, 0xff}},
		{math.MaxUint16 + 1, []byte{markerU32, 0, 0, 1, 0}},
		{math.MaxUint32, []byte{markerU32, 0xff, 0xff, 0xff, 0xff}},
		{math.MaxUint32 + 1, []byte{markerU64, 0, 0, 0, 0, 1, 0, 0, 0}},
	}
	cfg := Standard()
	for _, tc := range cases {
		got := cfg.appendVarint(nil, tc.v)
		if !bytes.Equal(got, tc.want) {
			t.Fatalf("appendVarint(%d) got=%x want=%x", tc.v, got, tc.want)
		}
		if varintLen(tc.v) != len(tc.want) {
			t.Fatalf("varintLen(%d)=%d want %d", tc.v, varintLen(tc.v), len(tc.want))
		}
		r := reader{cfg: cfg, buf: got}
		v, err := r.readUint(64)
		if err != nil || v != tc.v || r.pos != len(got) {
			t.Fatalf("readUint(%x) got=%d pos=%d err=%v", got, v, r.pos, err)
		}
	}
}

func TestVarintBigEndianPayload(t *testing.T) {
	cfg := Standard().WithBigEndian()
	got := cfg.appendVarint(nil, 0x1F90)
	if !bytes.Equal(got, []byte{markerU16, 0x1f, 0x90}) {
		t.Fatalf("unexpected big-endian varint: %x", got)
	}
}

func TestFixintWidths(t *testing.T) {
	cfg := Standard().WithFixedInts()
	if n := len(cfg.appendU16(nil, 1)); n != 2 {
		t.Fatalf("u16 width %d", n)
	}
	if n := len(cfg.appendU32(nil, 1)); n != 4 {
		t.Fatalf("u32 width %d", n)
	}
	if n := len(cfg.appendU64(nil, 1)); n != 8 {
		t.Fatalf("u64 width %d", n)
	}
}

func TestReadUintShortBuffer(t *testing.T) {
	r := reader{cfg: Standard(), buf: []byte{markerU32, 1, 2}}
	if _, err := r.readUint(32); !errors.Is(err, ErrIncomplete) {
		t.Fatalf("expected ErrIncomplete, got %v", err)
	}
}

func TestParseConfigNames(t *testing.T) {
	if o, err := ParseByteOrder("BE"); err != nil || o != BigEndian {
		t.Fatalf("parse byte order: %v %v", o, err)
	}
	if o, err := ParseByteOrder(""); err != nil || o != LittleEndian {
		t.Fatalf("empty byte order should default to little: %v %v", o, err)
	}
	if _, err := ParseByteOrder("middle"); err == nil {
		t.Fatalf("expected byte order error")
	}
	if e, err := ParseIntEncoding("fixed"); err != nil || e != Fixint {
		t.Fatalf("parse int encoding: %v %v", e, err)
	}
	if err := (Config{IntEncoding: 9}).Validate(); err == nil {
		t.Fatalf("expected validate error")
	}
	if (Config{}) != Standard() {
		t.Fatalf("zero config should equal Standard()")
	}
}

func TestParseKind(t *testing.T) {
	for k := KindClose; k <= KindLog; k++ {
		got, err := ParseKind(k.String())
		if err != nil || got != k {
			t.Fatalf("ParseKind(%q)=%v,%v", k.String(), got, err)
		}
	}
	if k, err := ParseKind("New-Connection"); err != nil || k != KindNewConnection {
		t.Fatalf("dashed name: %v %v", k, err)
	}
	if _, err := ParseKind("unknown"); err == nil {
		t.Fatalf("expected error for unknown kind")
	}
}
