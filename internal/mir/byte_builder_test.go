package mir

import (
	"encoding/binary"
	"math"
)

// byteBuilder hand-assembles wire bytes for golden-format tests. There is
// no MIR writer in scope (the producer is a different program), so tests
// build the byte stream directly instead of round-tripping a writer.
type byteBuilder struct {
	buf []byte
}

func newByteBuilder() *byteBuilder { return &byteBuilder{} }

func (b *byteBuilder) u8(v uint8) *byteBuilder {
	b.buf = append(b.buf, v)
	return b
}

func (b *byteBuilder) u16(v uint16) *byteBuilder {
	var tmp [2]byte
	binary.LittleEndian.PutUint16(tmp[:], v)
	b.buf = append(b.buf, tmp[:]...)
	return b
}

func (b *byteBuilder) u32(v uint32) *byteBuilder {
	var tmp [4]byte
	binary.LittleEndian.PutUint32(tmp[:], v)
	b.buf = append(b.buf, tmp[:]...)
	return b
}

func (b *byteBuilder) u64(v uint64) *byteBuilder {
	var tmp [8]byte
	binary.LittleEndian.PutUint64(tmp[:], v)
	b.buf = append(b.buf, tmp[:]...)
	return b
}

func (b *byteBuilder) i64(v int64) *byteBuilder { return b.u64(uint64(v)) }

func (b *byteBuilder) f64(v float64) *byteBuilder {
	return b.u64(math.Float64bits(v))
}

func (b *byteBuilder) str(s string) *byteBuilder {
	b.u32(uint32(len(s)))
	b.buf = append(b.buf, s...)
	return b
}

func (b *byteBuilder) header() *byteBuilder {
	return b.u32(magic).u16(versionMajor).u16(0)
}

func (b *byteBuilder) bytes() []byte { return b.buf }
