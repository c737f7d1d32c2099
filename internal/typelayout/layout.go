// Package typelayout maps MIR types onto the backend's sign-agnostic
// scalar types and computes the sizes, alignments, and struct layouts the
// function translator needs to lower aggregates to stack memory.
package typelayout

import (
	"github.com/hivellm/cranelift-bridge/internal/ir"
	"github.com/hivellm/cranelift-bridge/internal/mir"
)

// PointerWidth is the target pointer width in bytes. Cross-compilation is
// a non-goal at this revision; the target triple is accepted but ignored
// in favor of native, which is always 64-bit here.
const PointerWidth = 8

// PrimitiveSize returns the in-memory size, in bytes, of a MIR primitive.
func PrimitiveSize(p mir.PrimitiveType) uint32 {
	switch p {
	case mir.Unit:
		return 0
	case mir.Bool, mir.I8, mir.U8:
		return 1
	case mir.I16, mir.U16:
		return 2
	case mir.I32, mir.U32:
		return 4
	case mir.I64, mir.U64:
		return 8
	case mir.I128, mir.U128:
		return 16
	case mir.F32:
		return 4
	case mir.F64:
		return 8
	case mir.Ptr, mir.Str:
		return 8
	default:
		return 0
	}
}

// PrimitiveAlignment returns the power-of-two alignment of a MIR
// primitive; it is equal to PrimitiveSize for every primitive except
// Unit and Bool, which are byte-aligned.
func PrimitiveAlignment(p mir.PrimitiveType) uint32 {
	switch p {
	case mir.Unit, mir.Bool, mir.I8, mir.U8:
		return 1
	default:
		return PrimitiveSize(p)
	}
}

// ToIR maps a MIR primitive to the backend's sign-agnostic scalar type.
// Unit has no ABI representation; ok is false for it, signaling the
// caller (building a parameter list or a return slot) to omit the value
// entirely rather than synthesize a placeholder.
//
// I128/U128 collapse to I64: the backend carries no native 128-bit type,
// so a 128-bit MIR value occupies the same single pointer-sized ABI slot
// an aggregate would, rather than two halves. This mirrors how every
// aggregate already lowers to one I64 regardless of its true size.
func ToIR(p mir.PrimitiveType) (t ir.Type, ok bool) {
	switch p {
	case mir.Unit:
		return ir.TypeInvalid, false
	case mir.Bool, mir.I8, mir.U8:
		return ir.I8, true
	case mir.I16, mir.U16:
		return ir.I16, true
	case mir.I32, mir.U32:
		return ir.I32, true
	case mir.I64, mir.U64, mir.I128, mir.U128:
		return ir.I64, true
	case mir.F32:
		return ir.F32, true
	case mir.F64:
		return ir.F64, true
	case mir.Ptr, mir.Str:
		return ir.I64, true
	default:
		return ir.TypeInvalid, false
	}
}

// ToIRType maps any MIR type to its backend ABI type. Aggregates
// (struct/enum/tuple/array) and function types are always memory-resident
// and passed by pointer, so they map to I64 exactly like Pointer and
// Slice (a fat pointer's leading ptr field, in this ABI, stands in for
// the whole slice at the value level).
func ToIRType(t mir.Type) (ir.Type, bool) {
	switch t.Kind {
	case mir.KindPrimitive:
		return ToIR(t.Primitive)
	case mir.KindPointer, mir.KindSlice, mir.KindFunction,
		mir.KindStruct, mir.KindEnum, mir.KindTuple, mir.KindArray:
		return ir.I64, true
	default:
		return ir.TypeInvalid, false
	}
}

// Size returns the exact storage footprint, in bytes, of a MIR type.
//
// Struct and Enum are deliberately NOT resolved against their
// definitions here: without a StructDef/EnumDef table this falls back to
// the pointer size, exactly as the reference implementation's type_size
// does. Callers that have the definition table available (the function
// translator, for StructInit/EnumInit) must call Struct/Enum layout
// helpers below instead of this function for those kinds.
func Size(t mir.Type) uint32 {
	switch t.Kind {
	case mir.KindPrimitive:
		return PrimitiveSize(t.Primitive)
	case mir.KindPointer:
		return 8
	case mir.KindSlice:
		return 16 // ptr + len
	case mir.KindFunction:
		return 8
	case mir.KindArray:
		elemSize := Size(*t.Element)
		sz := elemSize * uint32(t.ArraySize)
		if sz < 1 {
			return 1
		}
		return sz
	case mir.KindTuple:
		var offset uint32
		for _, elem := range t.Elements {
			align := Alignment(elem)
			offset = alignTo(offset, align)
			offset += Size(elem)
		}
		maxAlign := uint32(1)
		for _, elem := range t.Elements {
			if a := Alignment(elem); a > maxAlign {
				maxAlign = a
			}
		}
		return alignTo(offset, maxAlign)
	case mir.KindStruct, mir.KindEnum:
		// Without full struct/enum layout info, pointer size is the
		// fallback; real sizes come from compute_struct_layout below once
		// the definition is known.
		return 8
	default:
		return 0
	}
}

// Alignment returns the power-of-two alignment of a MIR type.
func Alignment(t mir.Type) uint32 {
	switch t.Kind {
	case mir.KindPrimitive:
		return PrimitiveAlignment(t.Primitive)
	case mir.KindPointer, mir.KindSlice, mir.KindFunction:
		return 8
	case mir.KindArray:
		return Alignment(*t.Element)
	case mir.KindTuple:
		maxAlign := uint32(1)
		for _, elem := range t.Elements {
			if a := Alignment(elem); a > maxAlign {
				maxAlign = a
			}
		}
		return maxAlign
	case mir.KindStruct, mir.KindEnum:
		return 8
	default:
		return 1
	}
}

func alignTo(value, alignment uint32) uint32 {
	if alignment == 0 {
		return value
	}
	return (value + alignment - 1) &^ (alignment - 1)
}

// StructLayout is the result of computing field offsets for a struct.
type StructLayout struct {
	Offsets   []uint32
	TotalSize uint32
}

// ComputeStructLayout places fields at their natural alignment and pads
// the total to the maximum field alignment. This is the ONLY path in the
// bridge that honors natural alignment for aggregates; ExtractValue,
// InsertValue, and Gep in the function translator deliberately use
// uniform 8-byte strides instead (see spec §9's documented inconsistency,
// preserved rather than fixed).
func ComputeStructLayout(fieldTypes []mir.Type) StructLayout {
	offsets := make([]uint32, 0, len(fieldTypes))
	var offset uint32
	maxAlign := uint32(1)

	for _, ft := range fieldTypes {
		align := Alignment(ft)
		if align > maxAlign {
			maxAlign = align
		}
		offset = alignTo(offset, align)
		offsets = append(offsets, offset)
		offset += Size(ft)
	}

	return StructLayout{Offsets: offsets, TotalSize: alignTo(offset, maxAlign)}
}

// ComputeEnumLayout returns the size of an enum's in-memory representation:
// an 8-byte discriminant tag at offset 0 followed by payload slots at
// 8-byte strides, uniform regardless of each variant's true payload width
// (simple and over-aligned; correctness over compactness at this layer).
func ComputeEnumLayout(maxPayloadSlots int) uint32 {
	return 8 + 8*uint32(maxPayloadSlots)
}
