package translate

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hivellm/cranelift-bridge/internal/ir"
	"github.com/hivellm/cranelift-bridge/internal/mir"
)

func i32() mir.Type { return mir.Type{Kind: mir.KindPrimitive, Primitive: mir.I32} }
func i64Ty() mir.Type { return mir.Type{Kind: mir.KindPrimitive, Primitive: mir.I64} }

func retInst(v mir.ValueID) *mir.Terminator {
	return &mir.Terminator{Kind: mir.TermReturn, HasValue: v != mir.NoValue, Value: v}
}

func TestTranslateModule_Empty(t *testing.T) {
	mod, err := TranslateModule(&mir.Module{}, nil)
	require.NoError(t, err)
	require.Empty(t, mod.Functions)
	require.NotNil(t, mod.Decls)
}

func TestTranslateModule_IdentityFunction(t *testing.T) {
	fn := mir.Function{
		Name:     "identity",
		IsPublic: true,
		Params:   []mir.FunctionParam{{Name: "x", Type: i32(), ValueID: 0}},
		ReturnType: i32(),
		Blocks: []mir.BasicBlock{
			{ID: 0, Terminator: retInst(0)},
		},
	}
	mod, err := TranslateModule(&mir.Module{Functions: []mir.Function{fn}}, nil)
	require.NoError(t, err)
	require.Len(t, mod.Functions, 1)
	got := mod.Functions[0]
	require.Equal(t, "tml_identity", got.Name)
	require.Equal(t, ir.I32, got.ResultType)

	d, ok := mod.Decls["identity"]
	require.True(t, ok)
	require.Equal(t, LinkageExport, d.Linkage)
	require.Equal(t, "tml_identity", d.Symbol)
}

func TestTranslateModule_WidthMixedAdd(t *testing.T) {
	fn := mir.Function{
		Name: "widen_add",
		Params: []mir.FunctionParam{
			{Name: "a", Type: i32(), ValueID: 0},
			{Name: "b", Type: i64Ty(), ValueID: 1},
		},
		ReturnType: i64Ty(),
		Blocks: []mir.BasicBlock{
			{
				ID: 0,
				Instructions: []mir.Instruction{
					{Result: 2, Kind: mir.InstBinary, BinOp: mir.BinAdd, Left: 0, Right: 1},
				},
				Terminator: retInst(2),
			},
		},
	}
	mod, err := TranslateModule(&mir.Module{Functions: []mir.Function{fn}}, nil)
	require.NoError(t, err)
	require.Len(t, mod.Functions, 1)
	require.Equal(t, ir.I64, mod.Functions[0].ResultType)
}

func TestTranslateModule_PhiLoop(t *testing.T) {
	// loop: sum = sum + i (block 1 has phi-like incoming via block params)
	fn := mir.Function{
		Name:       "sum_to_n",
		Params:     []mir.FunctionParam{{Name: "n", Type: i32(), ValueID: 0}},
		ReturnType: i32(),
		Blocks: []mir.BasicBlock{
			{
				ID:         0,
				Instructions: []mir.Instruction{{Result: 1, Kind: mir.InstConstant, ConstantValue: mir.Constant{Kind: mir.ConstInt, BitWidth: 32, IsSigned: true}}},
				Terminator: &mir.Terminator{Kind: mir.TermBranch, Target: 1},
			},
			{
				ID: 1,
				Instructions: []mir.Instruction{
					{Result: 2, Kind: mir.InstPhi, Incoming: []mir.PhiIncoming{{Value: 1, Block: 0}, {Value: 3, Block: 1}}},
					{Result: 3, Kind: mir.InstBinary, BinOp: mir.BinAdd, Left: 2, Right: 0},
					{Result: 4, Kind: mir.InstBinary, BinOp: mir.BinLt, Left: 3, Right: 0},
				},
				Terminator: &mir.Terminator{Kind: mir.TermCondBranch, Condition: 4, TrueBlock: 1, FalseBlock: 2},
			},
			{
				ID:         2,
				Terminator: retInst(3),
			},
		},
	}
	mod, err := TranslateModule(&mir.Module{Functions: []mir.Function{fn}}, nil)
	require.NoError(t, err)
	require.Len(t, mod.Functions, 1)
	// block 1 must carry exactly one block param realizing the phi result.
	require.Len(t, mod.Functions[0].Blocks[1].Params, 1)
}

func TestTranslateModule_RuntimeCall(t *testing.T) {
	fn := mir.Function{
		Name:       "greet",
		ReturnType: mir.Type{Kind: mir.KindPrimitive, Primitive: mir.Unit},
		Blocks: []mir.BasicBlock{
			{
				ID: 0,
				Instructions: []mir.Instruction{
					{Result: 0, Kind: mir.InstConstant, ConstantValue: mir.Constant{Kind: mir.ConstString, StrValue: "hi"}},
					{Result: mir.NoValue, Kind: mir.InstCall, FuncName: "println", Args: []mir.ValueID{0}, ReturnType: mir.Type{Kind: mir.KindPrimitive, Primitive: mir.Unit}},
				},
				Terminator: retInst(mir.NoValue),
			},
		},
	}
	mod, err := TranslateModule(&mir.Module{Functions: []mir.Function{fn}}, nil)
	require.NoError(t, err)
	require.Len(t, mod.Functions, 1)
	_, ok := mod.Decls["println"]
	require.True(t, ok, "runtime call should resolve against the declared runtime table")
}

func TestTranslateModule_MonomorphizationCollision(t *testing.T) {
	// Two functions sharing a MIR name but differing signatures collide;
	// the second declaration must get a disambiguated symbol and "latest
	// wins" for call-site resolution under the plain name.
	a := mir.Function{
		Name: "id", Params: []mir.FunctionParam{{Name: "x", Type: i32(), ValueID: 0}},
		ReturnType: i32(),
		Blocks:     []mir.BasicBlock{{ID: 0, Terminator: retInst(0)}},
	}
	b := mir.Function{
		Name: "id", Params: []mir.FunctionParam{{Name: "x", Type: i64Ty(), ValueID: 0}},
		ReturnType: i64Ty(),
		Blocks:     []mir.BasicBlock{{ID: 0, Terminator: retInst(0)}},
	}
	mod, err := TranslateModule(&mir.Module{Functions: []mir.Function{a, b}}, nil)
	require.NoError(t, err)
	require.Len(t, mod.Functions, 2)
	require.NotEqual(t, mod.Functions[0].Name, mod.Functions[1].Name)
}

func TestTranslateModule_CGUPartition(t *testing.T) {
	a := mir.Function{Name: "f0", ReturnType: i32(),
		Blocks: []mir.BasicBlock{{ID: 0, Instructions: []mir.Instruction{
			{Result: 0, Kind: mir.InstConstant, ConstantValue: mir.Constant{Kind: mir.ConstInt, BitWidth: 32, IsSigned: true}},
		}, Terminator: retInst(0)}}}
	b := mir.Function{Name: "f1", ReturnType: i32(),
		Blocks: []mir.BasicBlock{{ID: 0, Instructions: []mir.Instruction{
			{Result: 0, Kind: mir.InstConstant, ConstantValue: mir.Constant{Kind: mir.ConstInt, BitWidth: 32, IsSigned: true}},
		}, Terminator: retInst(0)}}}
	mod, err := TranslateModule(&mir.Module{Functions: []mir.Function{a, b}}, []int{1})
	require.NoError(t, err)
	require.Len(t, mod.Functions, 1)
	require.Equal(t, "tml_f1", mod.Functions[0].Name)
	// Declarations still cover both, even though only f1 was defined.
	_, ok := mod.Decls["f0"]
	require.True(t, ok)
}
