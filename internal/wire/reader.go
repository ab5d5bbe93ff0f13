package wire

import (
	"encoding/binary"
	"fmt"
	"strings"
	"unicode/utf8"
)

// Reader provides cursor-based reading over a decoded update byte slice.
// Unlike the L2 packet reader this one is big-endian throughout and never
// panics: every primitive returns ok=false on truncation so callers can
// abandon a malformed message instead of crashing the subscriber goroutine.
type Reader struct {
	data []byte
	pos  int
}

// NewReader wraps data for sequential reading from position 0.
func NewReader(data []byte) *Reader {
	return &Reader{data: data}
}

// Remaining returns the number of unread bytes.
func (r *Reader) Remaining() int {
	return len(r.data) - r.pos
}

// Position returns the current read offset.
func (r *Reader) Position() int {
	return r.pos
}

// ReadByte reads a single byte.
func (r *Reader) ReadByte() (byte, bool) {
	if r.pos >= len(r.data) {
		return 0, false
	}
	b := r.data[r.pos]
	r.pos++
	return b, true
}

// ReadU32BE reads a big-endian uint32.
func (r *Reader) ReadU32BE() (uint32, bool) {
	if r.pos+4 > len(r.data) {
		return 0, false
	}
	v := binary.BigEndian.Uint32(r.data[r.pos:])
	r.pos += 4
	return v, true
}

// ReadU64BE reads a big-endian uint64.
func (r *Reader) ReadU64BE() (uint64, bool) {
	if r.pos+8 > len(r.data) {
		return 0, false
	}
	v := binary.BigEndian.Uint64(r.data[r.pos:])
	r.pos += 8
	return v, true
}

// ReadI64BE reads a big-endian two's-complement int64.
func (r *Reader) ReadI64BE() (int64, bool) {
	v, ok := r.ReadU64BE()
	if !ok {
		return 0, false
	}
	return int64(v), true
}

// ReadVarint reads a bounded LEB128 varint (see varint.go).
func (r *Reader) ReadVarint() (uint64, bool) {
	v, n, ok := readVarint(r.data, r.pos)
	if !ok {
		return 0, false
	}
	r.pos += n
	return v, true
}

// ReadBytes reads n raw bytes (zero-copy subslice of the reader's data).
func (r *Reader) ReadBytes(n int) ([]byte, bool) {
	if n < 0 || r.pos+n > len(r.data) {
		return nil, false
	}
	b := r.data[r.pos : r.pos+n]
	r.pos += n
	return b, true
}

// ReadVec reads a varint(len) followed by len bytes, bailing before
// allocating or advancing if len exceeds the remaining buffer.
func (r *Reader) ReadVec() ([]byte, bool) {
	n, ok := r.ReadVarint()
	if !ok {
		return nil, false
	}
	if n > uint64(r.Remaining()) {
		return nil, false
	}
	return r.ReadBytes(int(n))
}

// ReadStringU32 reads u32_be(len) ‖ UTF-8 bytes. Invalid UTF-8 sequences are
// replaced with utf8.RuneError rather than rejecting the whole string.
func (r *Reader) ReadStringU32() (string, bool) {
	n, ok := r.ReadU32BE()
	if !ok {
		return "", false
	}
	if uint64(n) > uint64(r.Remaining()) {
		return "", false
	}
	raw, ok := r.ReadBytes(int(n))
	if !ok {
		return "", false
	}
	if utf8.Valid(raw) {
		return string(raw), true
	}
	return strings.ToValidUTF8(string(raw), string(utf8.RuneError)), true
}

// errTruncated describes truncated or malformed input. The decoders in
// events.go do not return it; they report failure through ok=false.
var errTruncated = fmt.Errorf("wire: truncated or malformed input")
