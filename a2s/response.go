package a2s

import (
	"encoding/binary"
	"fmt"
	"math"
)

// reader is a cursored, forward-only view over a response buffer. Each
// accessor is typed so a truncated read is a distinct, statically visible
// call site rather than a single polymorphic readInt. There is no
// backtracking: callers must read fields in the order the wire format
// defines them.
type reader struct {
	b   []byte
	pos int
}

func newReader(b []byte) *reader {
	return &reader{b: b}
}

func (r *reader) remaining() int {
	return len(r.b) - r.pos
}

func (r *reader) readU8() (uint8, error) {
	if r.remaining() < 1 {
		return 0, ErrTruncated
	}
	v := r.b[r.pos]
	r.pos++
	return v, nil
}

func (r *reader) readChar() (byte, error) {
	return r.readU8()
}

func (r *reader) readI16() (int16, error) {
	if r.remaining() < 2 {
		return 0, ErrTruncated
	}
	v := int16(binary.LittleEndian.Uint16(r.b[r.pos:]))
	r.pos += 2
	return v, nil
}

func (r *reader) readU16() (uint16, error) {
	if r.remaining() < 2 {
		return 0, ErrTruncated
	}
	v := binary.LittleEndian.Uint16(r.b[r.pos:])
	r.pos += 2
	return v, nil
}

func (r *reader) readI32() (int32, error) {
	if r.remaining() < 4 {
		return 0, ErrTruncated
	}
	v := int32(binary.LittleEndian.Uint32(r.b[r.pos:]))
	r.pos += 4
	return v, nil
}

func (r *reader) readU32() (uint32, error) {
	if r.remaining() < 4 {
		return 0, ErrTruncated
	}
	v := binary.LittleEndian.Uint32(r.b[r.pos:])
	r.pos += 4
	return v, nil
}

func (r *reader) readU64() (uint64, error) {
	if r.remaining() < 8 {
		return 0, ErrTruncated
	}
	v := binary.LittleEndian.Uint64(r.b[r.pos:])
	r.pos += 8
	return v, nil
}

func (r *reader) readF32() (float32, error) {
	bits, err := r.readU32()
	if err != nil {
		return 0, err
	}
	return math.Float32frombits(bits), nil
}

// readString reads bytes up to and including the next 0x00, returning the
// bytes before the terminator. Fails with ErrTruncatedString if the buffer
// ends before a terminator is seen.
func (r *reader) readString() (string, error) {
	start := r.pos
	for r.pos < len(r.b) {
		if r.b[r.pos] == 0 {
			s := string(r.b[start:r.pos])
			r.pos++
			return s, nil
		}
		r.pos++
	}
	return "", ErrTruncatedString
}

// skip advances the cursor by n bytes without interpreting them.
func (r *reader) skip(n int) error {
	if r.remaining() < n {
		return ErrTruncated
	}
	r.pos += n
	return nil
}

func (r *reader) wrapf(field string, err error) error {
	return fmt.Errorf("a2s: read %s: %w", field, err)
}
