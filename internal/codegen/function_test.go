package codegen

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hivellm/cranelift-bridge/internal/ir"
)

// buildIdentity constructs function ident(x: i64) -> i64 { return x }
// directly through the ir.Function builder API, bypassing translate so
// codegen can be tested against a minimal, known-good IR function.
func buildIdentity() *ir.Function {
	f := ir.NewFunction("tml_ident", []ir.Type{ir.I64}, ir.I64)
	b0 := f.CreateBlock("entry")
	f.SetInsertBlock(b0)
	p := f.AddBlockParam(b0, ir.I64)
	f.Return([]ir.Value{p})
	f.Seal(b0)
	return f
}

func buildAdd() *ir.Function {
	f := ir.NewFunction("tml_add", []ir.Type{ir.I32, ir.I32}, ir.I32)
	b0 := f.CreateBlock("entry")
	f.SetInsertBlock(b0)
	x := f.AddBlockParam(b0, ir.I32)
	y := f.AddBlockParam(b0, ir.I32)
	sum := f.Iadd(ir.I32, x, y)
	f.Return([]ir.Value{sum})
	f.Seal(b0)
	return f
}

func buildCaller() *ir.Function {
	f := ir.NewFunction("tml_caller", nil, ir.I64)
	b0 := f.CreateBlock("entry")
	f.SetInsertBlock(b0)
	c := f.Iconst(ir.I64, 7)
	r := f.Call("some_runtime_fn", []ir.Value{c}, ir.I64)
	f.Return([]ir.Value{r})
	f.Seal(b0)
	return f
}

// buildAddMixedWidth constructs add(a: i32, b: i64) -> i64, sign-extending
// a into i64 before the add. Only the low 32 bits of the register carrying
// a are meaningful per the System V ABI, so a caller passing a negative a
// may leave garbage in the upper 32 bits of rdi; the entry-block parameter
// copy and the explicit Sextend must both canonicalize to a real
// sign-extension rather than a bare 64-bit snapshot of the argument
// register, or the add silently picks up that garbage.
func buildAddMixedWidth() *ir.Function {
	f := ir.NewFunction("tml_add_mixed_width", []ir.Type{ir.I32, ir.I64}, ir.I64)
	b0 := f.CreateBlock("entry")
	f.SetInsertBlock(b0)
	a := f.AddBlockParam(b0, ir.I32)
	b := f.AddBlockParam(b0, ir.I64)
	aExt := f.Sextend(ir.I64, a)
	sum := f.Iadd(ir.I64, aExt, b)
	f.Return([]ir.Value{sum})
	f.Seal(b0)
	return f
}

// TestCompileFunction_MixedWidthAddSignExtends is the regression test for a
// bug where narrower-than-64-bit values were stored to their stack slots as
// a raw register snapshot instead of a canonical sign-extension, so a
// Sextend reading them back (or the entry-block copy of an i32 argument
// itself) silently operated on whatever garbage occupied the upper bits of
// the argument register. It hand-decodes the emitted bytes, the same
// discipline internal/mir/reader_test.go uses for the wire reader: the
// exact two movsxd sequences the fix introduces must both be present, in
// the order the entry copy (for a) then the explicit Sextend instruction
// (also for a) would emit them, and the prologue/epilogue frame it uses to
// reach them must be exactly what the fixed frame layout produces.
func TestCompileFunction_MixedWidthAddSignExtends(t *testing.T) {
	cf, err := CompileFunction(buildAddMixedWidth())
	require.NoError(t, err)
	require.Empty(t, cf.Relocs)
	code := cf.Code

	// push rbp; mov rbp, rsp; sub rsp, 32 (four i64-wide values: a, b, the
	// Sextend result, and the Iadd result, 8 bytes each, already 16-aligned).
	prologue := []byte{0x55, 0x48, 0x89, 0xe5, 0x48, 0x81, 0xec, 0x20, 0x00, 0x00, 0x00}
	require.Equal(t, prologue, code[:len(prologue)])

	// mov rsp, rbp; pop rbp; ret.
	epilogue := []byte{0x48, 0x89, 0xec, 0x5d, 0xc3}
	require.Equal(t, epilogue, code[len(code)-len(epilogue):])

	// movsxd rdi, edi: the entry-block parameter copy sign-extending a
	// (an i32 arriving in rdi) before it is ever written to its stack slot.
	entryExtend := []byte{0x48, 0x63, 0xff}
	// movsxd rax, eax: the explicit Sextend instruction re-extending a's
	// slot contents when computing aExt for the add.
	sextendInst := []byte{0x48, 0x63, 0xc0}

	entryIdx := bytes.Index(code, entryExtend)
	sextendIdx := bytes.Index(code, sextendInst)
	require.NotEqual(t, -1, entryIdx, "entry-block parameter copy must sign-extend a's i32 value before storing it")
	require.NotEqual(t, -1, sextendIdx, "the Sextend instruction must re-extend a's slot rather than reading it as a bare 64-bit value")
	require.Less(t, entryIdx, sextendIdx, "the parameter copy happens before the Sextend instruction in emission order")

	// b (the i64 parameter) never goes through movsxd/movzx: it is already
	// a full 64-bit value, so exactly two sign-extensions appear in total.
	require.Equal(t, 1, bytes.Count(code, entryExtend))
	require.Equal(t, 1, bytes.Count(code, sextendInst))
}

func TestCompileFunction_Identity(t *testing.T) {
	cf, err := CompileFunction(buildIdentity())
	require.NoError(t, err)
	require.Equal(t, "tml_ident", cf.Symbol)
	require.NotEmpty(t, cf.Code)
}

func TestCompileFunction_Add(t *testing.T) {
	cf, err := CompileFunction(buildAdd())
	require.NoError(t, err)
	require.NotEmpty(t, cf.Code)
	require.Empty(t, cf.Relocs)
}

func TestCompileFunction_CallEmitsRelocation(t *testing.T) {
	cf, err := CompileFunction(buildCaller())
	require.NoError(t, err)
	require.Len(t, cf.Relocs, 1)
	require.Equal(t, "some_runtime_fn", cf.Relocs[0].Symbol)
	require.Equal(t, RelocPLT32, cf.Relocs[0].Type)
}

func TestBuildELF64_WellFormedHeader(t *testing.T) {
	ident, err := CompileFunction(buildIdentity())
	require.NoError(t, err)
	ident.Export = true
	add, err := CompileFunction(buildAdd())
	require.NoError(t, err)

	obj, err := BuildELF64([]CompiledFunction{ident, add}, nil)
	require.NoError(t, err)
	require.True(t, len(obj) > 64)

	require.Equal(t, []byte{0x7f, 'E', 'L', 'F'}, obj[0:4])
	require.Equal(t, byte(2), obj[4]) // ELFCLASS64
	require.Equal(t, byte(1), obj[5]) // little-endian

	etype := uint16(obj[16]) | uint16(obj[17])<<8
	require.Equal(t, uint16(1), etype) // ET_REL

	machine := uint16(obj[18]) | uint16(obj[19])<<8
	require.Equal(t, uint16(62), machine) // EM_X86_64
}

func TestBuildELF64_EmptyModule(t *testing.T) {
	obj, err := BuildELF64(nil, nil)
	require.NoError(t, err)
	require.True(t, len(obj) > 0)
	require.Equal(t, []byte{0x7f, 'E', 'L', 'F'}, obj[0:4])
}
