package packet

import (
	"bytes"
	"encoding/binary"
	"math"
)

// Reader decodes little-endian fields from a frame payload. Byte 0 is the
// opcode. Reads past the end yield zero values.
type Reader struct {
	data    []byte
	off     int
	charset *Charset
}

func NewReader(data []byte, cs *Charset) *Reader {
	return &Reader{data: data, off: min(1, len(data)), charset: cs} // skip opcode byte
}

func (r *Reader) Opcode() byte {
	if len(r.data) == 0 {
		return 0
	}
	return r.data[0]
}

// take returns the next n bytes, or nil when fewer remain. A short read
// consumes nothing.
func (r *Reader) take(n int) []byte {
	if r.off+n > len(r.data) {
		return nil
	}
	b := r.data[r.off : r.off+n]
	r.off += n
	return b
}

func (r *Reader) ReadC() byte {
	if b := r.take(1); b != nil {
		return b[0]
	}
	return 0
}

func (r *Reader) ReadH() uint16 {
	if b := r.take(2); b != nil {
		return binary.LittleEndian.Uint16(b)
	}
	return 0
}

func (r *Reader) ReadD() int32 {
	if b := r.take(4); b != nil {
		return int32(binary.LittleEndian.Uint32(b))
	}
	return 0
}

func (r *Reader) ReadQ() uint64 {
	if b := r.take(8); b != nil {
		return binary.LittleEndian.Uint64(b)
	}
	return 0
}

// ReadF reads an IEEE 754 float32.
func (r *Reader) ReadF() float32 {
	if b := r.take(4); b != nil {
		return math.Float32frombits(binary.LittleEndian.Uint32(b))
	}
	return 0
}

// ReadS reads a NUL-terminated string and converts it to UTF-8. A missing
// terminator reads to the end of the frame.
func (r *Reader) ReadS() string {
	rest := r.data[r.off:]
	n := bytes.IndexByte(rest, 0)
	if n < 0 {
		r.off = len(r.data)
		return r.charset.decode(rest)
	}
	r.off += n + 1
	return r.charset.decode(rest[:n])
}

// ReadBytes copies out up to n bytes.
func (r *Reader) ReadBytes(n int) []byte {
	n = max(0, min(n, len(r.data)-r.off))
	out := bytes.Clone(r.data[r.off : r.off+n])
	r.off += n
	return out
}

// Remaining returns the number of unread bytes.
func (r *Reader) Remaining() int {
	return len(r.data) - r.off
}
