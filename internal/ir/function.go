package ir

import "fmt"

// DataSegment is a read-only blob the function references by symbol, used
// for interned string constants (one per distinct content, named
// `.str.<fn>.<n>` by the function translator).
type DataSegment struct {
	Symbol string
	Bytes  []byte
}

// StackSlotInfo records the size of one stack-allocated slot.
type StackSlotInfo struct {
	Size uint32
}

// Function is one backend-IR function body: a set of SSA blocks with
// block parameters, built in the four-pass order the function translator
// drives (type inference, φ collection, block/param creation, emission),
// with sealing deferred to the very end once every predecessor edge is
// known.
type Function struct {
	Name       string
	ParamTypes []Type
	ResultType Type // TypeInvalid means void

	Blocks []*Block

	StackSlots []StackSlotInfo
	Data       []DataSegment

	nextValue Value
	valueType map[Value]Type
	cur       *Block
}

// NewFunction creates an empty function shell; blocks and instructions
// are added by the caller before Seal is invoked on every block.
func NewFunction(name string, paramTypes []Type, resultType Type) *Function {
	return &Function{
		Name:       name,
		ParamTypes: paramTypes,
		ResultType: resultType,
		valueType:  make(map[Value]Type),
		nextValue:  1, // 0 is ValueInvalid
	}
}

// CreateBlock allocates a new, empty block and appends it to the
// function. It is not yet the insertion point; call SetInsertBlock.
func (f *Function) CreateBlock(name string) BlockID {
	id := BlockID(len(f.Blocks))
	f.Blocks = append(f.Blocks, &Block{ID: id, Name: name})
	return id
}

func (f *Function) block(id BlockID) *Block { return f.Blocks[id] }

// SetInsertBlock switches the instruction-insertion target.
func (f *Function) SetInsertBlock(id BlockID) { f.cur = f.block(id) }

// AddBlockParam appends a parameter of type typ to block id and returns
// its Value. Block parameters realize φ results (pass 3 of the function
// translator).
func (f *Function) AddBlockParam(id BlockID, typ Type) Value {
	v := f.allocValue(typ)
	b := f.block(id)
	b.Params = append(b.Params, BlockParam{Type: typ, Value: v})
	return v
}

func (f *Function) allocValue(typ Type) Value {
	v := f.nextValue
	f.nextValue++
	f.valueType[v] = typ
	return v
}

// TypeOf returns the type of a previously allocated Value.
func (f *Function) TypeOf(v Value) Type { return f.valueType[v] }

// AllocStackSlot reserves size bytes on the frame and returns its slot id.
func (f *Function) AllocStackSlot(size uint32) StackSlot {
	id := StackSlot(len(f.StackSlots))
	f.StackSlots = append(f.StackSlots, StackSlotInfo{Size: size})
	return id
}

// AddData appends a read-only data segment under the given symbol. It does
// not deduplicate; callers that want one segment per distinct content
// must check before calling.
func (f *Function) AddData(symbol string, bytes []byte) {
	f.Data = append(f.Data, DataSegment{Symbol: symbol, Bytes: bytes})
}

func (f *Function) insert(inst *Instruction) {
	f.cur.Instructions = append(f.cur.Instructions, inst)
	switch inst.Op {
	case OpJump:
		f.addPred(inst.Target, f.cur.ID)
	case OpBrif:
		f.addPred(inst.Target, f.cur.ID)
		f.addPred(inst.FalseTarget, f.cur.ID)
	case OpSwitch:
		for _, c := range inst.Cases {
			f.addPred(c.Block, f.cur.ID)
		}
		f.addPred(inst.DefaultBlock, f.cur.ID)
	}
}

func (f *Function) addPred(target, from BlockID) {
	b := f.block(target)
	for _, p := range b.Preds {
		if p == from {
			return
		}
	}
	b.Preds = append(b.Preds, from)
}

func (f *Function) emit(op Opcode, typ Type, args ...Value) Value {
	r := f.allocValue(typ)
	f.insert(&Instruction{Op: op, Type: typ, Result: r, Args: args})
	return r
}

// Iconst emits an integer constant of type typ.
func (f *Function) Iconst(typ Type, v int64) Value {
	r := f.allocValue(typ)
	f.insert(&Instruction{Op: OpIconst, Type: typ, Result: r, ImmI64: v})
	return r
}

// Fconst emits a floating-point constant of type typ.
func (f *Function) Fconst(typ Type, v float64) Value {
	r := f.allocValue(typ)
	f.insert(&Instruction{Op: OpFconst, Type: typ, Result: r, ImmF64: v})
	return r
}

func (f *Function) Iadd(typ Type, x, y Value) Value { return f.emit(OpIadd, typ, x, y) }
func (f *Function) Isub(typ Type, x, y Value) Value { return f.emit(OpIsub, typ, x, y) }
func (f *Function) Imul(typ Type, x, y Value) Value { return f.emit(OpImul, typ, x, y) }
func (f *Function) Sdiv(typ Type, x, y Value) Value { return f.emit(OpSdiv, typ, x, y) }
func (f *Function) Srem(typ Type, x, y Value) Value { return f.emit(OpSrem, typ, x, y) }
func (f *Function) Band(typ Type, x, y Value) Value { return f.emit(OpBand, typ, x, y) }
func (f *Function) Bor(typ Type, x, y Value) Value  { return f.emit(OpBor, typ, x, y) }
func (f *Function) Bxor(typ Type, x, y Value) Value { return f.emit(OpBxor, typ, x, y) }
func (f *Function) Ishl(typ Type, x, y Value) Value { return f.emit(OpIshl, typ, x, y) }
func (f *Function) Sshr(typ Type, x, y Value) Value { return f.emit(OpSshr, typ, x, y) }
func (f *Function) Bnot(typ Type, x Value) Value    { return f.emit(OpBnot, typ, x) }
func (f *Function) Ineg(typ Type, x Value) Value    { return f.emit(OpIneg, typ, x) }

func (f *Function) Icmp(cc IntCC, x, y Value) Value {
	r := f.allocValue(I8)
	f.insert(&Instruction{Op: OpIcmp, Type: I8, Result: r, Args: []Value{x, y}, IntCC: cc})
	return r
}

func (f *Function) Fadd(typ Type, x, y Value) Value { return f.emit(OpFadd, typ, x, y) }
func (f *Function) Fsub(typ Type, x, y Value) Value { return f.emit(OpFsub, typ, x, y) }
func (f *Function) Fmul(typ Type, x, y Value) Value { return f.emit(OpFmul, typ, x, y) }
func (f *Function) Fdiv(typ Type, x, y Value) Value { return f.emit(OpFdiv, typ, x, y) }
func (f *Function) Fneg(typ Type, x Value) Value    { return f.emit(OpFneg, typ, x) }

func (f *Function) Fcmp(cc FloatCC, x, y Value) Value {
	r := f.allocValue(I8)
	f.insert(&Instruction{Op: OpFcmp, Type: I8, Result: r, Args: []Value{x, y}, FloatCC: cc})
	return r
}

func (f *Function) Uextend(typ Type, x Value) Value    { return f.emit(OpUextend, typ, x) }
func (f *Function) Sextend(typ Type, x Value) Value    { return f.emit(OpSextend, typ, x) }
func (f *Function) Ireduce(typ Type, x Value) Value    { return f.emit(OpIreduce, typ, x) }
func (f *Function) Bitcast(typ Type, x Value) Value    { return f.emit(OpBitcast, typ, x) }
func (f *Function) Fpromote(x Value) Value             { return f.emit(OpFpromote, F64, x) }
func (f *Function) Fdemote(x Value) Value              { return f.emit(OpFdemote, F32, x) }
func (f *Function) FcvtToSint(typ Type, x Value) Value { return f.emit(OpFcvtToSint, typ, x) }
func (f *Function) FcvtToUint(typ Type, x Value) Value { return f.emit(OpFcvtToUint, typ, x) }
func (f *Function) FcvtFromSint(typ Type, x Value) Value { return f.emit(OpFcvtFromSint, typ, x) }
func (f *Function) FcvtFromUint(typ Type, x Value) Value { return f.emit(OpFcvtFromUint, typ, x) }

func (f *Function) Select(typ Type, c, x, y Value) Value { return f.emit(OpSelect, typ, c, x, y) }

// StackAlloc reserves size bytes and returns the address as a pointer
// value (I64). There is no implicit minimum here: every caller (Alloca
// and every aggregate initializer alike) is responsible for flooring
// size to at least 8 bytes itself before calling in.
func (f *Function) StackAlloc(size uint32) (Value, StackSlot) {
	slot := f.AllocStackSlot(size)
	r := f.allocValue(I64)
	f.insert(&Instruction{Op: OpStackAlloc, Type: I64, Result: r, Slot: slot})
	return r, slot
}

func (f *Function) StackAddr(slot StackSlot, offset int32) Value {
	r := f.allocValue(I64)
	f.insert(&Instruction{Op: OpStackAddr, Type: I64, Result: r, Slot: slot, Offset: offset})
	return r
}

func (f *Function) StackLoad(typ Type, slot StackSlot, offset int32) Value {
	r := f.allocValue(typ)
	f.insert(&Instruction{Op: OpStackLoad, Type: typ, Result: r, Slot: slot, Offset: offset})
	return r
}

func (f *Function) StackStore(x Value, slot StackSlot, offset int32) {
	f.insert(&Instruction{Op: OpStackStore, Type: f.TypeOf(x), Args: []Value{x}, Slot: slot, Offset: offset})
}

func (f *Function) Load(typ Type, ptr Value, offset int32) Value {
	r := f.allocValue(typ)
	f.insert(&Instruction{Op: OpLoad, Type: typ, Result: r, Args: []Value{ptr}, Offset: offset})
	return r
}

func (f *Function) Store(x, ptr Value, offset int32) {
	f.insert(&Instruction{Op: OpStore, Type: f.TypeOf(x), Args: []Value{x, ptr}, Offset: offset})
}

// Call emits a call to symbol with args, yielding a single result of
// resultType (TypeInvalid for a void call, in which case the returned
// Value is ValueInvalid).
func (f *Function) Call(symbol string, args []Value, resultType Type) Value {
	var r Value
	if resultType != TypeInvalid {
		r = f.allocValue(resultType)
	}
	f.insert(&Instruction{Op: OpCall, Type: resultType, Result: r, Args: args, Symbol: symbol})
	return r
}

func (f *Function) SymbolAddr(symbol string) Value {
	r := f.allocValue(I64)
	f.insert(&Instruction{Op: OpSymbolAddr, Type: I64, Result: r, Symbol: symbol})
	return r
}

func (f *Function) Jump(target BlockID, args []Value) {
	f.insert(&Instruction{Op: OpJump, Target: target, TargetArgs: args})
}

func (f *Function) Brif(cond Value, trueBlock BlockID, trueArgs []Value, falseBlock BlockID, falseArgs []Value) {
	f.insert(&Instruction{
		Op: OpBrif, Args: []Value{cond},
		Target: trueBlock, TargetArgs: trueArgs,
		FalseTarget: falseBlock, FalseArgs: falseArgs,
	})
}

func (f *Function) Switch(x Value, cases []SwitchCase, defaultBlock BlockID) {
	f.insert(&Instruction{Op: OpSwitch, Args: []Value{x}, Cases: cases, DefaultBlock: defaultBlock})
}

func (f *Function) Return(vals []Value) {
	f.insert(&Instruction{Op: OpReturn, Args: vals})
}

func (f *Function) Trap(code uint8) {
	f.insert(&Instruction{Op: OpTrap, TrapCode: code})
}

// Seal marks every block as having its full predecessor set known. It
// must be called once, for every block, after all instructions in the
// function have been emitted (pass 4's final step) — block parameters for
// φs require the full predecessor set before sealing, per the function
// translator's design.
func (f *Function) Seal(id BlockID) {
	f.block(id).sealed = true
}

func (f *Function) Format() string {
	s := fmt.Sprintf("function %s(", f.Name)
	for i, pt := range f.ParamTypes {
		if i > 0 {
			s += ", "
		}
		s += pt.String()
	}
	s += ")"
	if f.ResultType != TypeInvalid {
		s += " -> " + f.ResultType.String()
	}
	s += " {\n"
	for _, b := range f.Blocks {
		s += formatBlockHeader(b) + "\n"
		for _, inst := range b.Instructions {
			s += "    " + formatInstruction(inst) + "\n"
		}
	}
	s += "}\n"
	return s
}
