package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewFunction_ValueNumberingStartsAtOne(t *testing.T) {
	f := NewFunction("tml_id", []Type{I32}, I32)
	entry := f.CreateBlock("entry")
	f.SetInsertBlock(entry)
	p := f.AddBlockParam(entry, I32)
	assert.True(t, p.Valid())
	assert.NotEqual(t, ValueInvalid, p)
	assert.Equal(t, I32, f.TypeOf(p))
}

func TestBuilder_ArithmeticChain(t *testing.T) {
	f := NewFunction("tml_add_one", []Type{I32}, I32)
	entry := f.CreateBlock("entry")
	f.SetInsertBlock(entry)
	x := f.AddBlockParam(entry, I32)
	one := f.Iconst(I32, 1)
	sum := f.Iadd(I32, x, one)
	f.Return([]Value{sum})
	f.Seal(entry)

	require.Len(t, f.Blocks, 1)
	b := f.Blocks[0]
	require.True(t, b.Sealed())
	require.Len(t, b.Instructions, 3)
	assert.Equal(t, OpIconst, b.Instructions[0].Op)
	assert.Equal(t, OpIadd, b.Instructions[1].Op)
	assert.Equal(t, OpReturn, b.Instructions[2].Op)
}

func TestBlockParams_RealizePhi(t *testing.T) {
	// A loop-style shape: entry jumps into a header block carrying one
	// block parameter (the accumulator), which two predecessors feed.
	f := NewFunction("tml_sum_to_n", []Type{I32}, I32)
	entry := f.CreateBlock("entry")
	header := f.CreateBlock("header")
	body := f.CreateBlock("body")
	exit := f.CreateBlock("exit")

	f.SetInsertBlock(header)
	acc := f.AddBlockParam(header, I32)
	assert.Equal(t, I32, f.TypeOf(acc))

	f.SetInsertBlock(entry)
	zero := f.Iconst(I32, 0)
	f.Jump(header, []Value{zero})

	f.SetInsertBlock(body)
	one := f.Iconst(I32, 1)
	next := f.Iadd(I32, acc, one)
	f.Jump(header, []Value{next})

	f.SetInsertBlock(header)
	cond := f.Icmp(IntSlt, acc, one)
	f.Brif(cond, body, nil, exit, nil)

	f.SetInsertBlock(exit)
	f.Return([]Value{acc})

	for _, b := range f.Blocks {
		f.Seal(b.ID)
	}

	headerBlock := f.block(header)
	require.Len(t, headerBlock.Params, 1)
	// Both the entry->header jump and the body->header jump must have
	// registered header as a successor target, i.e. header has two preds.
	assert.ElementsMatch(t, []BlockID{entry, body}, headerBlock.Preds)
}

func TestSwitchRegistersPredecessors(t *testing.T) {
	f := NewFunction("tml_dispatch", []Type{I32}, TypeInvalid)
	entry := f.CreateBlock("entry")
	caseA := f.CreateBlock("case_a")
	caseB := f.CreateBlock("case_b")
	def := f.CreateBlock("default")

	f.SetInsertBlock(entry)
	x := f.AddBlockParam(entry, I32)
	f.Switch(x, []SwitchCase{{Value: 0, Block: caseA}, {Value: 1, Block: caseB}}, def)

	for _, b := range []BlockID{caseA, caseB, def} {
		f.SetInsertBlock(b)
		f.Return(nil)
	}
	for _, b := range f.Blocks {
		f.Seal(b.ID)
	}

	assert.Equal(t, []BlockID{entry}, f.block(caseA).Preds)
	assert.Equal(t, []BlockID{entry}, f.block(caseB).Preds)
	assert.Equal(t, []BlockID{entry}, f.block(def).Preds)
}

func TestCall_VoidResultYieldsInvalidValue(t *testing.T) {
	f := NewFunction("tml_log", []Type{I32}, TypeInvalid)
	entry := f.CreateBlock("entry")
	f.SetInsertBlock(entry)
	x := f.AddBlockParam(entry, I32)
	r := f.Call("tml_println", []Value{x}, TypeInvalid)
	assert.False(t, r.Valid())
	f.Return(nil)
	f.Seal(entry)
}

func TestStackAllocNoImplicitMinimum(t *testing.T) {
	f := NewFunction("tml_box", nil, I64)
	entry := f.CreateBlock("entry")
	f.SetInsertBlock(entry)
	_, slot := f.StackAlloc(1)
	require.Len(t, f.StackSlots, 1)
	assert.EqualValues(t, 1, f.StackSlots[slot].Size)
}

func TestFormat_ProducesReadableListing(t *testing.T) {
	f := NewFunction("tml_id", []Type{I32}, I32)
	entry := f.CreateBlock("entry")
	f.SetInsertBlock(entry)
	x := f.AddBlockParam(entry, I32)
	f.Return([]Value{x})
	f.Seal(entry)

	out := f.Format()
	assert.Contains(t, out, "function tml_id(i32) -> i32 {")
	assert.Contains(t, out, "blk0(v1: i32):")
	assert.Contains(t, out, "return v1")
}

func TestFormat_BinaryOpsAndCalls(t *testing.T) {
	f := NewFunction("tml_combine", []Type{I32, I32}, I32)
	entry := f.CreateBlock("entry")
	f.SetInsertBlock(entry)
	a := f.AddBlockParam(entry, I32)
	b := f.AddBlockParam(entry, I32)
	sum := f.Iadd(I32, a, b)
	called := f.Call("tml_double", []Value{sum}, I32)
	f.Return([]Value{called})
	f.Seal(entry)

	out := f.Format()
	assert.Contains(t, out, "iadd.i32")
	assert.Contains(t, out, "call tml_double")
}

func TestDataSegment_InternsStringConstants(t *testing.T) {
	f := NewFunction("tml_greet", nil, TypeInvalid)
	f.AddData(".str.tml_greet.0", []byte("hello\x00"))
	require.Len(t, f.Data, 1)
	assert.Equal(t, ".str.tml_greet.0", f.Data[0].Symbol)
}
