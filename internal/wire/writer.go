package wire

import (
	"bytes"
	"encoding/binary"
	"sync"
)

// Writer accumulates an outbound submission (instructions/transactions).
// Big-endian throughout, mirroring Reader. Pooled the same way the L2
// packet.Writer is pooled, since submissions are built on every signed
// request.
type Writer struct {
	buf *bytes.Buffer
}

var writerPool = sync.Pool{
	New: func() any {
		return &Writer{buf: bytes.NewBuffer(make([]byte, 0, 256))}
	},
}

// Get returns a reset Writer from the pool.
func Get() *Writer {
	w := writerPool.Get().(*Writer)
	w.Reset()
	return w
}

// Put returns w to the pool. Do not use w after calling Put.
func (w *Writer) Put() {
	writerPool.Put(w)
}

// Reset clears the buffer for reuse.
func (w *Writer) Reset() {
	w.buf.Reset()
}

// Bytes returns the accumulated bytes.
func (w *Writer) Bytes() []byte {
	return w.buf.Bytes()
}

// Len returns the number of bytes written so far.
func (w *Writer) Len() int {
	return w.buf.Len()
}

// WriteByte writes a single byte.
func (w *Writer) WriteByte(b byte) {
	_ = w.buf.WriteByte(b)
}

// WriteU32BE writes a big-endian uint32.
func (w *Writer) WriteU32BE(v uint32) {
	var tmp [4]byte
	binary.BigEndian.PutUint32(tmp[:], v)
	w.buf.Write(tmp[:])
}

// WriteU64BE writes a big-endian uint64.
func (w *Writer) WriteU64BE(v uint64) {
	var tmp [8]byte
	binary.BigEndian.PutUint64(tmp[:], v)
	w.buf.Write(tmp[:])
}

// WriteVarint writes v as a LEB128 varint. The length is not capped: values
// of 2^35 or more take more bytes than readVarint accepts.
func (w *Writer) WriteVarint(v uint64) {
	w.buf.Write(AppendVarint(nil, v))
}

// WriteBytes writes raw bytes with no length prefix.
func (w *Writer) WriteBytes(b []byte) {
	w.buf.Write(b)
}

// WriteVec writes varint(len(b)) ‖ b.
func (w *Writer) WriteVec(b []byte) {
	w.WriteVarint(uint64(len(b)))
	w.buf.Write(b)
}
