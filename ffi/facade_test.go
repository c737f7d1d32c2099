package ffi_test

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hivellm/cranelift-bridge/ffi"
)

// Mirrors internal/mir's wire header; there is no writer in scope (the
// producer is a separate program), so tests assemble bytes by hand, the
// same discipline internal/mir's own reader tests use.
const (
	mirMagic   uint32 = 0x544D4952 // "TMIR"
	mirVersion uint16 = 1
)

type wireBuilder struct{ buf []byte }

func (b *wireBuilder) u16(v uint16) *wireBuilder {
	var t [2]byte
	binary.LittleEndian.PutUint16(t[:], v)
	b.buf = append(b.buf, t[:]...)
	return b
}

func (b *wireBuilder) u32(v uint32) *wireBuilder {
	var t [4]byte
	binary.LittleEndian.PutUint32(t[:], v)
	b.buf = append(b.buf, t[:]...)
	return b
}

func (b *wireBuilder) str(s string) *wireBuilder {
	b.u32(uint32(len(s)))
	b.buf = append(b.buf, s...)
	return b
}

func emptyModule(name string) []byte {
	b := &wireBuilder{}
	b.u32(mirMagic).u16(mirVersion).u16(0)
	b.str(name)
	b.u32(0).u32(0).u32(0).u32(0) // structs, enums, functions, constants
	return b.buf
}

func TestVersion(t *testing.T) {
	require.Equal(t, "cranelift-0.1.0", ffi.Version)
}

func TestCompileMIR_EmptyModule(t *testing.T) {
	obj, err := ffi.CompileMIR(emptyModule("empty"), ffi.Options{})
	require.NoError(t, err)
	require.NotEmpty(t, obj)
	require.Equal(t, []byte{0x7f, 'E', 'L', 'F'}, obj[0:4])
}

func TestCompileMIR_InvalidData(t *testing.T) {
	_, err := ffi.CompileMIR([]byte{1, 2, 3}, ffi.Options{})
	require.Error(t, err)
}

func TestGenerateIR_EmptyModule(t *testing.T) {
	text, err := ffi.GenerateIR(emptyModule("empty"), ffi.Options{})
	require.NoError(t, err)
	require.Empty(t, text)
}

func TestCompileMIRCGU_EmptyIndices(t *testing.T) {
	obj, err := ffi.CompileMIRCGU(emptyModule("empty"), nil, ffi.Options{})
	require.NoError(t, err)
	require.NotEmpty(t, obj)
}

func TestCompileMIR_MachOTargetRejected(t *testing.T) {
	_, err := ffi.CompileMIR(emptyModule("empty"), ffi.Options{TargetTriple: "x86_64-apple-darwin"})
	require.Error(t, err)
}
