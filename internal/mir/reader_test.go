package mir

import (
	"testing"

	"github.com/hivellm/cranelift-bridge/internal/bridgeerr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadModule_Empty(t *testing.T) {
	data := newByteBuilder().
		header().
		str("empty"). // module name
		u32(0).       // structs
		u32(0).       // enums
		u32(0).       // functions
		u32(0).       // constants
		bytes()

	mod, err := NewReader(data).ReadModule()
	require.NoError(t, err)
	assert.Equal(t, "empty", mod.Name)
	assert.Empty(t, mod.Structs)
	assert.Empty(t, mod.Enums)
	assert.Empty(t, mod.Functions)
	assert.Empty(t, mod.Constants)
}

func TestReadModule_BadMagic(t *testing.T) {
	data := newByteBuilder().u32(0xDEADBEEF).u16(1).u16(0).bytes()
	_, err := NewReader(data).ReadModule()
	require.Error(t, err)
	var be *bridgeerr.Error
	require.ErrorAs(t, err, &be)
	assert.Equal(t, bridgeerr.MirDeserialize, be.Kind)
	assert.Contains(t, be.Error(), "invalid magic")
}

func TestReadModule_BadVersion(t *testing.T) {
	data := newByteBuilder().u32(magic).u16(2).u16(0).bytes()
	_, err := NewReader(data).ReadModule()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "version mismatch")
}

func TestReadModule_TruncatedAtEveryOffset(t *testing.T) {
	full := newByteBuilder().
		header().
		str("m").
		u32(0).u32(0).u32(0).u32(0).
		bytes()

	for cut := 0; cut < len(full); cut++ {
		_, err := NewReader(full[:cut]).ReadModule()
		require.Errorf(t, err, "expected error at truncation offset %d", cut)
		var be *bridgeerr.Error
		require.ErrorAs(t, err, &be)
		assert.Equal(t, bridgeerr.MirDeserialize, be.Kind)
	}
}

func TestReadModule_UnknownTypeTag(t *testing.T) {
	data := newByteBuilder().
		header().
		str("m").
		u32(1). // one struct
		str("S").
		u32(0). // no type params
		u32(1). // one field
		str("f").
		u8(200). // bogus type tag
		bytes()
	_, err := NewReader(data).ReadModule()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown type tag")
}

func TestReadModule_IdentityFunction(t *testing.T) {
	// id(x: i32) -> i32 { return x }
	b := newByteBuilder().
		header().
		str("m").
		u32(0). // structs
		u32(0). // enums
		u32(1)  // functions

	b.str("id").u8(1) // is_public
	b.u32(1)           // param count
	b.str("x").u8(0).u8(uint8(I32)).u32(0) // param type=Primitive(I32), value_id=0
	b.u8(0).u8(uint8(I32))                 // return type = Primitive(I32)
	b.u32(1)                               // block count

	// block 0
	b.u32(0).str("entry")
	b.u32(0) // predecessors
	b.u32(0) // instructions
	b.u8(1)  // has terminator
	b.u8(0)  // Return
	b.u8(1)  // has_value
	b.u32(0) // value id 0 (the param)

	b.u32(1).u32(1) // next_value_id, next_block_id
	b.u32(0)        // constants

	mod, err := NewReader(b.bytes()).ReadModule()
	require.NoError(t, err)
	require.Len(t, mod.Functions, 1)
	fn := mod.Functions[0]
	assert.Equal(t, "id", fn.Name)
	assert.True(t, fn.IsPublic)
	require.Len(t, fn.Params, 1)
	assert.Equal(t, "x", fn.Params[0].Name)
	assert.Equal(t, I32, fn.Params[0].Type.Primitive)
	require.Len(t, fn.Blocks, 1)
	term := fn.Blocks[0].Terminator
	require.NotNil(t, term)
	assert.Equal(t, TermReturn, term.Kind)
	assert.True(t, term.HasValue)
	assert.Equal(t, ValueID(0), term.Value)
}

func TestReadModule_LossyUTF8String(t *testing.T) {
	b := newByteBuilder().header()
	b.buf = append(b.buf, byte(3), 0, 0, 0) // u32 length = 3
	b.buf = append(b.buf, 0xFF, 0x61, 0xFE) // invalid lead bytes around a valid 'a'
	b.u32(0).u32(0).u32(0).u32(0)

	mod, err := NewReader(b.bytes()).ReadModule()
	require.NoError(t, err)
	assert.Contains(t, mod.Name, "a")
}

func TestNoValueSentinel(t *testing.T) {
	assert.Equal(t, ValueID(0xFFFFFFFF), NoValue)
}
