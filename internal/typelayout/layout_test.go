package typelayout

import (
	"testing"

	"github.com/hivellm/cranelift-bridge/internal/ir"
	"github.com/hivellm/cranelift-bridge/internal/mir"
	"github.com/stretchr/testify/assert"
)

func TestPrimitiveSizeAndAlignment(t *testing.T) {
	cases := []struct {
		p         mir.PrimitiveType
		size, align uint32
	}{
		{mir.Unit, 0, 1},
		{mir.Bool, 1, 1},
		{mir.I8, 1, 1},
		{mir.I32, 4, 4},
		{mir.I64, 8, 8},
		{mir.I128, 16, 16},
		{mir.F32, 4, 4},
		{mir.F64, 8, 8},
		{mir.Ptr, 8, 8},
		{mir.Str, 8, 8},
	}
	for _, c := range cases {
		assert.Equalf(t, c.size, PrimitiveSize(c.p), "size of %v", c.p)
		assert.Equalf(t, c.align, PrimitiveAlignment(c.p), "alignment of %v", c.p)
	}
}

func TestComputeStructLayout_NaturalAlignment(t *testing.T) {
	// struct { a: i8, b: i32, c: i8 }
	fields := []mir.Type{
		{Kind: mir.KindPrimitive, Primitive: mir.I8},
		{Kind: mir.KindPrimitive, Primitive: mir.I32},
		{Kind: mir.KindPrimitive, Primitive: mir.I8},
	}
	layout := ComputeStructLayout(fields)
	assert.Equal(t, []uint32{0, 4, 8}, layout.Offsets)
	assert.Equal(t, uint32(12), layout.TotalSize)
}

func TestStructAndEnumFallbackToPointerSize(t *testing.T) {
	assert.Equal(t, uint32(8), Size(mir.Type{Kind: mir.KindStruct, Name: "Unknown"}))
	assert.Equal(t, uint32(8), Size(mir.Type{Kind: mir.KindEnum, Name: "Unknown"}))
}

func TestArraySizeMinimumOne(t *testing.T) {
	elem := mir.Type{Kind: mir.KindPrimitive, Primitive: mir.Unit}
	arr := mir.Type{Kind: mir.KindArray, ArraySize: 4, Element: &elem}
	assert.Equal(t, uint32(1), Size(arr))
}

func TestComputeEnumLayout(t *testing.T) {
	assert.Equal(t, uint32(8), ComputeEnumLayout(0))
	assert.Equal(t, uint32(24), ComputeEnumLayout(2))
}

func TestToIR_UnitHasNoABIRepresentation(t *testing.T) {
	typ, ok := ToIR(mir.Unit)
	assert.False(t, ok)
	assert.Equal(t, ir.TypeInvalid, typ)
}

func TestToIR_WidePrimitivesCollapseToI64(t *testing.T) {
	for _, p := range []mir.PrimitiveType{mir.I64, mir.U64, mir.I128, mir.U128, mir.Ptr, mir.Str} {
		typ, ok := ToIR(p)
		assert.True(t, ok)
		assert.Equalf(t, ir.I64, typ, "%v should collapse to I64", p)
	}
}

func TestToIR_NarrowPrimitives(t *testing.T) {
	cases := []struct {
		p mir.PrimitiveType
		t ir.Type
	}{
		{mir.Bool, ir.I8},
		{mir.I8, ir.I8},
		{mir.U16, ir.I16},
		{mir.I32, ir.I32},
		{mir.F32, ir.F32},
		{mir.F64, ir.F64},
	}
	for _, c := range cases {
		typ, ok := ToIR(c.p)
		assert.True(t, ok)
		assert.Equalf(t, c.t, typ, "mapping of %v", c.p)
	}
}

func TestToIRType_AggregatesArePointerSized(t *testing.T) {
	for _, k := range []mir.TypeKind{mir.KindStruct, mir.KindEnum, mir.KindTuple, mir.KindArray, mir.KindFunction, mir.KindSlice} {
		typ, ok := ToIRType(mir.Type{Kind: k})
		assert.True(t, ok)
		assert.Equal(t, ir.I64, typ)
	}
}
