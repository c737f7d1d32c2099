package mir

import (
	"encoding/binary"
	"math"
	"unicode/utf8"

	"github.com/hivellm/cranelift-bridge/internal/bridgeerr"
)

const (
	magic        uint32 = 0x544D4952 // "TMIR"
	versionMajor uint16 = 1
)

// Reader decodes a MIR byte stream into a Module. A Reader is single-use:
// construct one per FFI call, call ReadModule once, discard it.
type Reader struct {
	data []byte
	pos  int
}

// NewReader wraps data for decoding. data is not copied or retained beyond
// the call to ReadModule.
func NewReader(data []byte) *Reader {
	return &Reader{data: data}
}

// ReadModule decodes the full module: header, name, structs, enums,
// functions, and constants, in that fixed order.
func (r *Reader) ReadModule() (*Module, error) {
	if err := r.verifyHeader(); err != nil {
		return nil, err
	}

	name, err := r.readString()
	if err != nil {
		return nil, err
	}

	structCount, err := r.readU32()
	if err != nil {
		return nil, err
	}
	structs := make([]StructDef, 0, structCount)
	for i := uint32(0); i < structCount; i++ {
		sd, err := r.readStructDef()
		if err != nil {
			return nil, err
		}
		structs = append(structs, sd)
	}

	enumCount, err := r.readU32()
	if err != nil {
		return nil, err
	}
	enums := make([]EnumDef, 0, enumCount)
	for i := uint32(0); i < enumCount; i++ {
		ed, err := r.readEnumDef()
		if err != nil {
			return nil, err
		}
		enums = append(enums, ed)
	}

	funcCount, err := r.readU32()
	if err != nil {
		return nil, err
	}
	functions := make([]Function, 0, funcCount)
	for i := uint32(0); i < funcCount; i++ {
		fn, err := r.readFunction()
		if err != nil {
			return nil, err
		}
		functions = append(functions, fn)
	}

	constCount, err := r.readU32()
	if err != nil {
		return nil, err
	}
	constants := make([]NamedConstant, 0, constCount)
	for i := uint32(0); i < constCount; i++ {
		cname, err := r.readString()
		if err != nil {
			return nil, err
		}
		cval, err := r.readConstantValue()
		if err != nil {
			return nil, err
		}
		constants = append(constants, NamedConstant{Name: cname, Value: cval})
	}

	return &Module{
		Name:      name,
		Structs:   structs,
		Enums:     enums,
		Functions: functions,
		Constants: constants,
	}, nil
}

func (r *Reader) verifyHeader() error {
	got, err := r.readU32()
	if err != nil {
		return err
	}
	if got != magic {
		return bridgeerr.Deserializef("invalid magic: expected 0x%08X, got 0x%08X", magic, got)
	}
	major, err := r.readU16()
	if err != nil {
		return err
	}
	if _, err := r.readU16(); err != nil { // minor, unused
		return err
	}
	if major != versionMajor {
		return bridgeerr.Deserializef("version mismatch: expected major %d, got %d", versionMajor, major)
	}
	return nil
}

func (r *Reader) readU8() (uint8, error) {
	if r.pos >= len(r.data) {
		return 0, bridgeerr.Deserializef("unexpected EOF reading u8")
	}
	v := r.data[r.pos]
	r.pos++
	return v, nil
}

func (r *Reader) readU16() (uint16, error) {
	if r.pos+2 > len(r.data) {
		return 0, bridgeerr.Deserializef("unexpected EOF reading u16")
	}
	v := binary.LittleEndian.Uint16(r.data[r.pos:])
	r.pos += 2
	return v, nil
}

func (r *Reader) readU32() (uint32, error) {
	if r.pos+4 > len(r.data) {
		return 0, bridgeerr.Deserializef("unexpected EOF reading u32")
	}
	v := binary.LittleEndian.Uint32(r.data[r.pos:])
	r.pos += 4
	return v, nil
}

func (r *Reader) readU64() (uint64, error) {
	if r.pos+8 > len(r.data) {
		return 0, bridgeerr.Deserializef("unexpected EOF reading u64")
	}
	v := binary.LittleEndian.Uint64(r.data[r.pos:])
	r.pos += 8
	return v, nil
}

func (r *Reader) readI64() (int64, error) {
	v, err := r.readU64()
	if err != nil {
		return 0, bridgeerr.Deserializef("unexpected EOF reading i64")
	}
	return int64(v), nil
}

func (r *Reader) readF64() (float64, error) {
	v, err := r.readU64()
	if err != nil {
		return 0, bridgeerr.Deserializef("unexpected EOF reading f64")
	}
	return math.Float64frombits(v), nil
}

// readString reads a u32-length-prefixed byte run and lossily repairs
// invalid UTF-8 rather than failing, matching the producer's guarantee
// that strings are "mostly" UTF-8.
func (r *Reader) readString() (string, error) {
	n, err := r.readU32()
	if err != nil {
		return "", err
	}
	ln := int(n)
	if r.pos+ln > len(r.data) {
		return "", bridgeerr.Deserializef("unexpected EOF reading string")
	}
	raw := r.data[r.pos : r.pos+ln]
	r.pos += ln
	if utf8.Valid(raw) {
		return string(raw), nil
	}
	return toValidUTF8(raw), nil
}

func toValidUTF8(raw []byte) string {
	out := make([]rune, 0, len(raw))
	for i := 0; i < len(raw); {
		rn, size := utf8.DecodeRune(raw[i:])
		if rn == utf8.RuneError && size <= 1 {
			out = append(out, utf8.RuneError)
			i++
			continue
		}
		out = append(out, rn)
		i += size
	}
	return string(out)
}

func (r *Reader) readValue() (ValueID, error) {
	id, err := r.readU32()
	return ValueID(id), err
}

func (r *Reader) readType() (Type, error) {
	tag, err := r.readU8()
	if err != nil {
		return Type{}, err
	}
	switch tag {
	case 0: // Primitive
		kind, err := r.readU8()
		if err != nil {
			return Type{}, err
		}
		prim, ok := primitiveFromU8(kind)
		if !ok {
			return Type{}, bridgeerr.Deserializef("unknown primitive type: %d", kind)
		}
		return Type{Kind: KindPrimitive, Primitive: prim}, nil
	case 1: // Pointer
		isMutByte, err := r.readU8()
		if err != nil {
			return Type{}, err
		}
		pointee, err := r.readType()
		if err != nil {
			return Type{}, err
		}
		return Type{Kind: KindPointer, IsMut: isMutByte != 0, Pointee: &pointee}, nil
	case 2: // Array
		size, err := r.readU64()
		if err != nil {
			return Type{}, err
		}
		elem, err := r.readType()
		if err != nil {
			return Type{}, err
		}
		return Type{Kind: KindArray, ArraySize: size, Element: &elem}, nil
	case 3: // Slice
		elem, err := r.readType()
		if err != nil {
			return Type{}, err
		}
		return Type{Kind: KindSlice, Element: &elem}, nil
	case 4: // Tuple
		count, err := r.readU32()
		if err != nil {
			return Type{}, err
		}
		elems := make([]Type, 0, count)
		for i := uint32(0); i < count; i++ {
			et, err := r.readType()
			if err != nil {
				return Type{}, err
			}
			elems = append(elems, et)
		}
		return Type{Kind: KindTuple, Elements: elems}, nil
	case 5: // Struct
		name, err := r.readString()
		if err != nil {
			return Type{}, err
		}
		count, err := r.readU32()
		if err != nil {
			return Type{}, err
		}
		args := make([]Type, 0, count)
		for i := uint32(0); i < count; i++ {
			at, err := r.readType()
			if err != nil {
				return Type{}, err
			}
			args = append(args, at)
		}
		return Type{Kind: KindStruct, Name: name, TypeArgs: args}, nil
	case 6: // Enum
		name, err := r.readString()
		if err != nil {
			return Type{}, err
		}
		count, err := r.readU32()
		if err != nil {
			return Type{}, err
		}
		args := make([]Type, 0, count)
		for i := uint32(0); i < count; i++ {
			at, err := r.readType()
			if err != nil {
				return Type{}, err
			}
			args = append(args, at)
		}
		return Type{Kind: KindEnum, Name: name, TypeArgs: args}, nil
	case 7: // Function
		count, err := r.readU32()
		if err != nil {
			return Type{}, err
		}
		params := make([]Type, 0, count)
		for i := uint32(0); i < count; i++ {
			pt, err := r.readType()
			if err != nil {
				return Type{}, err
			}
			params = append(params, pt)
		}
		ret, err := r.readType()
		if err != nil {
			return Type{}, err
		}
		return Type{Kind: KindFunction, Params: params, ReturnType: &ret}, nil
	default:
		return Type{}, bridgeerr.Deserializef("unknown type tag: %d", tag)
	}
}

func (r *Reader) readConstantValue() (Constant, error) {
	tag, err := r.readU8()
	if err != nil {
		return Constant{}, err
	}
	switch tag {
	case 0: // Int
		v, err := r.readI64()
		if err != nil {
			return Constant{}, err
		}
		bw, err := r.readU8()
		if err != nil {
			return Constant{}, err
		}
		signedByte, err := r.readU8()
		if err != nil {
			return Constant{}, err
		}
		return Constant{Kind: ConstInt, IntValue: v, BitWidth: bw, IsSigned: signedByte != 0}, nil
	case 1: // Float
		v, err := r.readF64()
		if err != nil {
			return Constant{}, err
		}
		isF64Byte, err := r.readU8()
		if err != nil {
			return Constant{}, err
		}
		return Constant{Kind: ConstFloat, FloatVal: v, IsF64: isF64Byte != 0}, nil
	case 2: // Bool
		b, err := r.readU8()
		if err != nil {
			return Constant{}, err
		}
		return Constant{Kind: ConstBool, BoolValue: b != 0}, nil
	case 3: // String
		s, err := r.readString()
		if err != nil {
			return Constant{}, err
		}
		return Constant{Kind: ConstString, StrValue: s}, nil
	case 4: // Unit
		return Constant{Kind: ConstUnit}, nil
	default:
		return Constant{}, bridgeerr.Deserializef("unknown constant tag: %d", tag)
	}
}

func (r *Reader) readInstruction() (InstructionData, error) {
	result, err := r.readU32()
	if err != nil {
		return InstructionData{}, err
	}
	tag, err := r.readU8()
	if err != nil {
		return InstructionData{}, err
	}

	inst := Instruction{Result: ValueID(result)}

	switch tag {
	case 0: // Binary
		opTag, err := r.readU8()
		if err != nil {
			return InstructionData{}, err
		}
		op, ok := binOpFromU8(opTag)
		if !ok {
			return InstructionData{}, bridgeerr.Deserializef("unknown binary op")
		}
		left, err := r.readValue()
		if err != nil {
			return InstructionData{}, err
		}
		right, err := r.readValue()
		if err != nil {
			return InstructionData{}, err
		}
		inst.Kind, inst.BinOp, inst.Left, inst.Right = InstBinary, op, left, right
	case 1: // Unary
		opTag, err := r.readU8()
		if err != nil {
			return InstructionData{}, err
		}
		op, ok := unaryOpFromU8(opTag)
		if !ok {
			return InstructionData{}, bridgeerr.Deserializef("unknown unary op")
		}
		operand, err := r.readValue()
		if err != nil {
			return InstructionData{}, err
		}
		inst.Kind, inst.UnaryOp, inst.Operand = InstUnary, op, operand
	case 2: // Load
		ptr, err := r.readValue()
		if err != nil {
			return InstructionData{}, err
		}
		inst.Kind, inst.Ptr = InstLoad, ptr
	case 3: // Store
		ptr, err := r.readValue()
		if err != nil {
			return InstructionData{}, err
		}
		val, err := r.readValue()
		if err != nil {
			return InstructionData{}, err
		}
		inst.Kind, inst.Ptr, inst.Value = InstStore, ptr, val
	case 4: // Alloca
		name, err := r.readString()
		if err != nil {
			return InstructionData{}, err
		}
		at, err := r.readType()
		if err != nil {
			return InstructionData{}, err
		}
		inst.Kind, inst.Name, inst.AllocType = InstAlloca, name, at
	case 5: // Gep
		base, err := r.readValue()
		if err != nil {
			return InstructionData{}, err
		}
		count, err := r.readU32()
		if err != nil {
			return InstructionData{}, err
		}
		idx := make([]ValueID, 0, count)
		for i := uint32(0); i < count; i++ {
			v, err := r.readValue()
			if err != nil {
				return InstructionData{}, err
			}
			idx = append(idx, v)
		}
		inst.Kind, inst.Ptr, inst.Indices = InstGep, base, idx
	case 6: // ExtractValue
		agg, err := r.readValue()
		if err != nil {
			return InstructionData{}, err
		}
		count, err := r.readU32()
		if err != nil {
			return InstructionData{}, err
		}
		idx := make([]uint32, 0, count)
		for i := uint32(0); i < count; i++ {
			v, err := r.readU32()
			if err != nil {
				return InstructionData{}, err
			}
			idx = append(idx, v)
		}
		inst.Kind, inst.Aggregate, inst.U32Indices = InstExtractValue, agg, idx
	case 7: // InsertValue
		agg, err := r.readValue()
		if err != nil {
			return InstructionData{}, err
		}
		val, err := r.readValue()
		if err != nil {
			return InstructionData{}, err
		}
		count, err := r.readU32()
		if err != nil {
			return InstructionData{}, err
		}
		idx := make([]uint32, 0, count)
		for i := uint32(0); i < count; i++ {
			v, err := r.readU32()
			if err != nil {
				return InstructionData{}, err
			}
			idx = append(idx, v)
		}
		inst.Kind, inst.Aggregate, inst.Value, inst.U32Indices = InstInsertValue, agg, val, idx
	case 8: // Call
		name, err := r.readString()
		if err != nil {
			return InstructionData{}, err
		}
		count, err := r.readU32()
		if err != nil {
			return InstructionData{}, err
		}
		args := make([]ValueID, 0, count)
		for i := uint32(0); i < count; i++ {
			v, err := r.readValue()
			if err != nil {
				return InstructionData{}, err
			}
			args = append(args, v)
		}
		rt, err := r.readType()
		if err != nil {
			return InstructionData{}, err
		}
		inst.Kind, inst.FuncName, inst.Args, inst.ReturnType = InstCall, name, args, rt
	case 9: // MethodCall
		recv, err := r.readValue()
		if err != nil {
			return InstructionData{}, err
		}
		name, err := r.readString()
		if err != nil {
			return InstructionData{}, err
		}
		count, err := r.readU32()
		if err != nil {
			return InstructionData{}, err
		}
		args := make([]ValueID, 0, count)
		for i := uint32(0); i < count; i++ {
			v, err := r.readValue()
			if err != nil {
				return InstructionData{}, err
			}
			args = append(args, v)
		}
		rt, err := r.readType()
		if err != nil {
			return InstructionData{}, err
		}
		inst.Kind, inst.Receiver, inst.MethodName, inst.Args, inst.ReturnType =
			InstMethodCall, recv, name, args, rt
	case 10: // Cast
		kindTag, err := r.readU8()
		if err != nil {
			return InstructionData{}, err
		}
		ck, ok := castKindFromU8(kindTag)
		if !ok {
			return InstructionData{}, bridgeerr.Deserializef("unknown cast kind")
		}
		operand, err := r.readValue()
		if err != nil {
			return InstructionData{}, err
		}
		tt, err := r.readType()
		if err != nil {
			return InstructionData{}, err
		}
		inst.Kind, inst.CastKind, inst.Operand, inst.TargetType = InstCast, ck, operand, tt
	case 11: // Phi
		count, err := r.readU32()
		if err != nil {
			return InstructionData{}, err
		}
		incoming := make([]PhiIncoming, 0, count)
		for i := uint32(0); i < count; i++ {
			val, err := r.readValue()
			if err != nil {
				return InstructionData{}, err
			}
			block, err := r.readU32()
			if err != nil {
				return InstructionData{}, err
			}
			incoming = append(incoming, PhiIncoming{Value: val, Block: block})
		}
		inst.Kind, inst.Incoming = InstPhi, incoming
	case 12: // Constant
		cv, err := r.readConstantValue()
		if err != nil {
			return InstructionData{}, err
		}
		inst.Kind, inst.ConstantValue = InstConstant, cv
	case 13: // Select
		cond, err := r.readValue()
		if err != nil {
			return InstructionData{}, err
		}
		tv, err := r.readValue()
		if err != nil {
			return InstructionData{}, err
		}
		fv, err := r.readValue()
		if err != nil {
			return InstructionData{}, err
		}
		inst.Kind, inst.Condition, inst.TrueVal, inst.FalseVal = InstSelect, cond, tv, fv
	case 14: // StructInit
		name, err := r.readString()
		if err != nil {
			return InstructionData{}, err
		}
		count, err := r.readU32()
		if err != nil {
			return InstructionData{}, err
		}
		fields := make([]ValueID, 0, count)
		for i := uint32(0); i < count; i++ {
			v, err := r.readValue()
			if err != nil {
				return InstructionData{}, err
			}
			fields = append(fields, v)
		}
		inst.Kind, inst.StructName, inst.Fields = InstStructInit, name, fields
	case 15: // EnumInit
		ename, err := r.readString()
		if err != nil {
			return InstructionData{}, err
		}
		vname, err := r.readString()
		if err != nil {
			return InstructionData{}, err
		}
		count, err := r.readU32()
		if err != nil {
			return InstructionData{}, err
		}
		payload := make([]ValueID, 0, count)
		for i := uint32(0); i < count; i++ {
			v, err := r.readValue()
			if err != nil {
				return InstructionData{}, err
			}
			payload = append(payload, v)
		}
		inst.Kind, inst.EnumName, inst.VariantName, inst.Payload = InstEnumInit, ename, vname, payload
	case 16: // TupleInit
		count, err := r.readU32()
		if err != nil {
			return InstructionData{}, err
		}
		elems := make([]ValueID, 0, count)
		for i := uint32(0); i < count; i++ {
			v, err := r.readValue()
			if err != nil {
				return InstructionData{}, err
			}
			elems = append(elems, v)
		}
		inst.Kind, inst.Elements = InstTupleInit, elems
	case 17: // ArrayInit
		et, err := r.readType()
		if err != nil {
			return InstructionData{}, err
		}
		count, err := r.readU32()
		if err != nil {
			return InstructionData{}, err
		}
		elems := make([]ValueID, 0, count)
		for i := uint32(0); i < count; i++ {
			v, err := r.readValue()
			if err != nil {
				return InstructionData{}, err
			}
			elems = append(elems, v)
		}
		inst.Kind, inst.ElementType, inst.Elements = InstArrayInit, et, elems
	case 18: // Await
		pv, err := r.readValue()
		if err != nil {
			return InstructionData{}, err
		}
		pt, err := r.readType()
		if err != nil {
			return InstructionData{}, err
		}
		rt, err := r.readType()
		if err != nil {
			return InstructionData{}, err
		}
		sid, err := r.readU32()
		if err != nil {
			return InstructionData{}, err
		}
		inst.Kind, inst.PollValue, inst.PollType, inst.ReturnType, inst.SuspensionID =
			InstAwait, pv, pt, rt, sid
	case 19: // ClosureInit
		name, err := r.readString()
		if err != nil {
			return InstructionData{}, err
		}
		capCount, err := r.readU32()
		if err != nil {
			return InstructionData{}, err
		}
		captures := make([]ClosureCapture, 0, capCount)
		for i := uint32(0); i < capCount; i++ {
			cname, err := r.readString()
			if err != nil {
				return InstructionData{}, err
			}
			cval, err := r.readValue()
			if err != nil {
				return InstructionData{}, err
			}
			captures = append(captures, ClosureCapture{Name: cname, Value: cval})
		}
		captureTypes := make([]ClosureCaptureType, 0, capCount)
		for i := uint32(0); i < capCount; i++ {
			tname, err := r.readString()
			if err != nil {
				return InstructionData{}, err
			}
			ttype, err := r.readType()
			if err != nil {
				return InstructionData{}, err
			}
			captureTypes = append(captureTypes, ClosureCaptureType{Name: tname, Type: ttype})
		}
		funcType, err := r.readType()
		if err != nil {
			return InstructionData{}, err
		}
		resultType, err := r.readType()
		if err != nil {
			return InstructionData{}, err
		}
		inst.Kind, inst.FuncName, inst.Captures, inst.CaptureTypes, inst.FuncType, inst.ReturnType =
			InstClosureInit, name, captures, captureTypes, funcType, resultType
	default:
		return InstructionData{}, bridgeerr.Deserializef("unknown instruction tag: %d", tag)
	}

	return InstructionData{Result: ValueID(result), Instruction: inst}, nil
}

func (r *Reader) readTerminator() (Terminator, error) {
	tag, err := r.readU8()
	if err != nil {
		return Terminator{}, err
	}
	switch tag {
	case 0: // Return
		hasByte, err := r.readU8()
		if err != nil {
			return Terminator{}, err
		}
		has := hasByte != 0
		var val ValueID
		if has {
			v, err := r.readValue()
			if err != nil {
				return Terminator{}, err
			}
			val = v
		}
		return Terminator{Kind: TermReturn, HasValue: has, Value: val}, nil
	case 1: // Branch
		target, err := r.readU32()
		if err != nil {
			return Terminator{}, err
		}
		return Terminator{Kind: TermBranch, Target: target}, nil
	case 2: // CondBranch
		cond, err := r.readValue()
		if err != nil {
			return Terminator{}, err
		}
		tb, err := r.readU32()
		if err != nil {
			return Terminator{}, err
		}
		fb, err := r.readU32()
		if err != nil {
			return Terminator{}, err
		}
		return Terminator{Kind: TermCondBranch, Condition: cond, TrueBlock: tb, FalseBlock: fb}, nil
	case 3: // Switch
		disc, err := r.readValue()
		if err != nil {
			return Terminator{}, err
		}
		count, err := r.readU32()
		if err != nil {
			return Terminator{}, err
		}
		cases := make([]SwitchCase, 0, count)
		for i := uint32(0); i < count; i++ {
			val, err := r.readI64()
			if err != nil {
				return Terminator{}, err
			}
			block, err := r.readU32()
			if err != nil {
				return Terminator{}, err
			}
			cases = append(cases, SwitchCase{Value: val, Block: block})
		}
		def, err := r.readU32()
		if err != nil {
			return Terminator{}, err
		}
		return Terminator{Kind: TermSwitch, Discriminant: disc, Cases: cases, DefaultBlock: def}, nil
	case 4: // Unreachable
		return Terminator{Kind: TermUnreachable}, nil
	default:
		return Terminator{}, bridgeerr.Deserializef("unknown terminator tag: %d", tag)
	}
}

func (r *Reader) readBlock() (BasicBlock, error) {
	id, err := r.readU32()
	if err != nil {
		return BasicBlock{}, err
	}
	name, err := r.readString()
	if err != nil {
		return BasicBlock{}, err
	}
	predCount, err := r.readU32()
	if err != nil {
		return BasicBlock{}, err
	}
	preds := make([]uint32, 0, predCount)
	for i := uint32(0); i < predCount; i++ {
		p, err := r.readU32()
		if err != nil {
			return BasicBlock{}, err
		}
		preds = append(preds, p)
	}
	instCount, err := r.readU32()
	if err != nil {
		return BasicBlock{}, err
	}
	insts := make([]Instruction, 0, instCount)
	for i := uint32(0); i < instCount; i++ {
		id, err := r.readInstruction()
		if err != nil {
			return BasicBlock{}, err
		}
		insts = append(insts, id.Instruction)
	}
	hasTermByte, err := r.readU8()
	if err != nil {
		return BasicBlock{}, err
	}
	var term *Terminator
	if hasTermByte != 0 {
		t, err := r.readTerminator()
		if err != nil {
			return BasicBlock{}, err
		}
		term = &t
	}
	return BasicBlock{ID: id, Name: name, Predecessors: preds, Instructions: insts, Terminator: term}, nil
}

func (r *Reader) readFunction() (Function, error) {
	name, err := r.readString()
	if err != nil {
		return Function{}, err
	}
	isPublicByte, err := r.readU8()
	if err != nil {
		return Function{}, err
	}
	paramCount, err := r.readU32()
	if err != nil {
		return Function{}, err
	}
	params := make([]FunctionParam, 0, paramCount)
	for i := uint32(0); i < paramCount; i++ {
		pname, err := r.readString()
		if err != nil {
			return Function{}, err
		}
		pty, err := r.readType()
		if err != nil {
			return Function{}, err
		}
		pval, err := r.readU32()
		if err != nil {
			return Function{}, err
		}
		params = append(params, FunctionParam{Name: pname, Type: pty, ValueID: ValueID(pval)})
	}
	retType, err := r.readType()
	if err != nil {
		return Function{}, err
	}
	blockCount, err := r.readU32()
	if err != nil {
		return Function{}, err
	}
	blocks := make([]BasicBlock, 0, blockCount)
	for i := uint32(0); i < blockCount; i++ {
		b, err := r.readBlock()
		if err != nil {
			return Function{}, err
		}
		blocks = append(blocks, b)
	}
	nextValueID, err := r.readU32()
	if err != nil {
		return Function{}, err
	}
	nextBlockID, err := r.readU32()
	if err != nil {
		return Function{}, err
	}
	return Function{
		Name:        name,
		IsPublic:    isPublicByte != 0,
		Params:      params,
		ReturnType:  retType,
		Blocks:      blocks,
		NextValueID: nextValueID,
		NextBlockID: nextBlockID,
	}, nil
}

func (r *Reader) readStructDef() (StructDef, error) {
	name, err := r.readString()
	if err != nil {
		return StructDef{}, err
	}
	tpCount, err := r.readU32()
	if err != nil {
		return StructDef{}, err
	}
	typeParams := make([]string, 0, tpCount)
	for i := uint32(0); i < tpCount; i++ {
		tp, err := r.readString()
		if err != nil {
			return StructDef{}, err
		}
		typeParams = append(typeParams, tp)
	}
	fieldCount, err := r.readU32()
	if err != nil {
		return StructDef{}, err
	}
	fields := make([]StructField, 0, fieldCount)
	for i := uint32(0); i < fieldCount; i++ {
		fname, err := r.readString()
		if err != nil {
			return StructDef{}, err
		}
		ftype, err := r.readType()
		if err != nil {
			return StructDef{}, err
		}
		fields = append(fields, StructField{Name: fname, Type: ftype})
	}
	return StructDef{Name: name, TypeParams: typeParams, Fields: fields}, nil
}

func (r *Reader) readEnumDef() (EnumDef, error) {
	name, err := r.readString()
	if err != nil {
		return EnumDef{}, err
	}
	tpCount, err := r.readU32()
	if err != nil {
		return EnumDef{}, err
	}
	typeParams := make([]string, 0, tpCount)
	for i := uint32(0); i < tpCount; i++ {
		tp, err := r.readString()
		if err != nil {
			return EnumDef{}, err
		}
		typeParams = append(typeParams, tp)
	}
	varCount, err := r.readU32()
	if err != nil {
		return EnumDef{}, err
	}
	variants := make([]EnumVariant, 0, varCount)
	for i := uint32(0); i < varCount; i++ {
		vname, err := r.readString()
		if err != nil {
			return EnumDef{}, err
		}
		ptCount, err := r.readU32()
		if err != nil {
			return EnumDef{}, err
		}
		payloadTypes := make([]Type, 0, ptCount)
		for j := uint32(0); j < ptCount; j++ {
			pt, err := r.readType()
			if err != nil {
				return EnumDef{}, err
			}
			payloadTypes = append(payloadTypes, pt)
		}
		variants = append(variants, EnumVariant{Name: vname, PayloadTypes: payloadTypes})
	}
	return EnumDef{Name: name, TypeParams: typeParams, Variants: variants}, nil
}
