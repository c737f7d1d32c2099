package translate

import (
	"fmt"

	"github.com/hivellm/cranelift-bridge/internal/bridgeerr"
	"github.com/hivellm/cranelift-bridge/internal/ir"
	"github.com/hivellm/cranelift-bridge/internal/mir"
	"github.com/hivellm/cranelift-bridge/internal/typelayout"
)

// funcTranslator carries the state of one function's four-pass lowering.
type funcTranslator struct {
	tr    *Translator
	mirFn *mir.Function
	irFn  *ir.Function

	valueTypes map[mir.ValueID]ir.Type // pass 1: inferred type of every result
	values     map[mir.ValueID]ir.Value // materialized backend values

	allocaSlot     map[mir.ValueID]ir.StackSlot
	allocaElemType map[mir.ValueID]ir.Type

	blockByID map[uint32]ir.BlockID

	strConst map[string]string // content -> data symbol, deduplicated per function
	strCount int

	pendingPhis map[uint32][]phiRecord
}

// translateFunction runs the full four-pass algorithm on fn and returns
// the backend function it builds.
func (tr *Translator) translateFunction(fn *mir.Function) (f *ir.Function, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = bridgeerr.Panic(r)
		}
	}()

	d, ok := tr.funcIDs[fn.Name]
	if !ok {
		return nil, bridgeerr.Translationf("function '%s' not declared", fn.Name)
	}

	ft := &funcTranslator{
		tr:             tr,
		mirFn:          fn,
		irFn:           ir.NewFunction(d.Symbol, d.ParamTypes, d.ResultType),
		valueTypes:     make(map[mir.ValueID]ir.Type),
		values:         make(map[mir.ValueID]ir.Value),
		allocaSlot:     make(map[mir.ValueID]ir.StackSlot),
		allocaElemType: make(map[mir.ValueID]ir.Type),
		blockByID:      make(map[uint32]ir.BlockID),
		strConst:       make(map[string]string),
	}

	ft.inferTypes()
	phis := ft.collectPhis()
	ft.pendingPhis = phis
	ft.createBlocks(phis)
	if err := ft.emitBlocks(phis); err != nil {
		return nil, err
	}
	for _, b := range ft.irFn.Blocks {
		ft.irFn.Seal(b.ID)
	}

	return ft.irFn, nil
}

// --- pass 1: value-type inference --------------------------------------

func (ft *funcTranslator) inferTypes() {
	for _, p := range ft.mirFn.Params {
		t, ok := typelayout.ToIRType(p.Type)
		if !ok {
			t = ir.TypeInvalid
		}
		ft.valueTypes[p.ValueID] = t
	}
	for _, blk := range ft.mirFn.Blocks {
		for _, inst := range blk.Instructions {
			t := ft.inferInstType(&inst)
			if inst.Result != mir.NoValue {
				ft.valueTypes[inst.Result] = t
			}
			if inst.Kind == mir.InstAlloca {
				elemT, ok := typelayout.ToIRType(inst.AllocType)
				if !ok {
					elemT = ir.I64
				}
				ft.allocaElemType[inst.Result] = elemT
			}
		}
	}
}

func (ft *funcTranslator) typeOf(id mir.ValueID) ir.Type {
	if t, ok := ft.valueTypes[id]; ok {
		return t
	}
	return ir.I64
}

func (ft *funcTranslator) inferInstType(inst *mir.Instruction) ir.Type {
	switch inst.Kind {
	case mir.InstConstant:
		c := inst.ConstantValue
		switch c.Kind {
		case mir.ConstInt:
			return ir.IntOfWidth(uint32(c.BitWidth))
		case mir.ConstFloat:
			if c.IsF64 {
				return ir.F64
			}
			return ir.F32
		case mir.ConstBool:
			return ir.I8
		case mir.ConstString:
			return ir.I64
		default:
			return ir.TypeInvalid
		}
	case mir.InstBinary:
		if inst.BinOp.IsComparison() {
			return ir.I8
		}
		return widerOrFloat(ft.typeOf(inst.Left), ft.typeOf(inst.Right))
	case mir.InstUnary:
		return ft.typeOf(inst.Operand)
	case mir.InstCall, mir.InstMethodCall:
		t, ok := typelayout.ToIRType(inst.ReturnType)
		if !ok {
			return ir.TypeInvalid
		}
		return t
	case mir.InstCast:
		t, ok := typelayout.ToIRType(inst.TargetType)
		if !ok {
			return ir.I64
		}
		return t
	case mir.InstSelect:
		return widerOrFloat(ft.typeOf(inst.TrueVal), ft.typeOf(inst.FalseVal))
	case mir.InstAlloca:
		return ir.I64
	case mir.InstLoad:
		if t, ok := ft.allocaElemType[inst.Ptr]; ok {
			return t
		}
		return ir.I64
	case mir.InstGep, mir.InstStructInit, mir.InstEnumInit, mir.InstTupleInit,
		mir.InstArrayInit, mir.InstClosureInit:
		return ir.I64
	case mir.InstExtractValue, mir.InstInsertValue:
		return ir.I64
	case mir.InstPhi:
		for _, inc := range inst.Incoming {
			if t, ok := ft.valueTypes[inc.Value]; ok {
				return t
			}
		}
		return ir.I64
	default:
		return ir.I64
	}
}

// widerOrFloat implements the centralized binary-operand coercion
// target: same kind picks the wider width; a float paired with an int
// picks the float operand's type; two floats of different precision
// always promote, never demote.
func widerOrFloat(a, b ir.Type) ir.Type {
	if a == ir.TypeInvalid {
		return b
	}
	if b == ir.TypeInvalid {
		return a
	}
	af, bf := a.IsFloat(), b.IsFloat()
	switch {
	case af && bf:
		if a == ir.F64 || b == ir.F64 {
			return ir.F64
		}
		return ir.F32
	case af && !bf:
		return a
	case !af && bf:
		return b
	default:
		if a.Bytes() >= b.Bytes() {
			return a
		}
		return b
	}
}

// coerceTo emits at most one conversion bringing v (known to be of type
// vt) to tt. Identity when vt already equals tt.
func coerceTo(f *ir.Function, v ir.Value, vt, tt ir.Type) ir.Value {
	if vt == tt || tt == ir.TypeInvalid {
		return v
	}
	switch {
	case vt.IsFloat() && tt.IsFloat():
		if tt == ir.F64 {
			return f.Fpromote(v)
		}
		return f.Fdemote(v)
	case vt.IsFloat() && !tt.IsFloat():
		return f.FcvtToSint(tt, v)
	case !vt.IsFloat() && tt.IsFloat():
		return f.FcvtFromSint(tt, v)
	default:
		if tt.Bytes() > vt.Bytes() {
			return f.Sextend(tt, v)
		}
		return f.Ireduce(tt, v)
	}
}

// --- pass 2: phi collection ----------------------------------------------

type phiRecord struct {
	result   mir.ValueID
	incoming []mir.PhiIncoming
}

// collectPhis scans every block and records its phi instructions in
// declaration order. Phis are never emitted as real instructions; they
// become block parameters in pass 3.
func (ft *funcTranslator) collectPhis() map[uint32][]phiRecord {
	phis := make(map[uint32][]phiRecord)
	for _, blk := range ft.mirFn.Blocks {
		for _, inst := range blk.Instructions {
			if inst.Kind != mir.InstPhi {
				continue
			}
			phis[blk.ID] = append(phis[blk.ID], phiRecord{result: inst.Result, incoming: inst.Incoming})
		}
	}
	return phis
}

// --- pass 3: block creation and parameter binding -------------------------

func (ft *funcTranslator) createBlocks(phis map[uint32][]phiRecord) {
	for i, blk := range ft.mirFn.Blocks {
		id := ft.irFn.CreateBlock(blockName(blk))
		ft.blockByID[blk.ID] = id

		for _, rec := range phis[blk.ID] {
			v := ft.irFn.AddBlockParam(id, ft.typeOf(rec.result))
			ft.values[rec.result] = v
		}

		if i == 0 {
			for _, p := range ft.mirFn.Params {
				t, ok := typelayout.ToIRType(p.Type)
				if !ok {
					continue // Unit parameters carry no ABI value
				}
				v := ft.irFn.AddBlockParam(id, t)
				ft.values[p.ValueID] = v
			}
		}
	}
}

func blockName(b mir.BasicBlock) string {
	if b.Name != "" {
		return b.Name
	}
	return fmt.Sprintf("blk%d", b.ID)
}

// --- pass 4: emission -----------------------------------------------------

func (ft *funcTranslator) emitBlocks(phis map[uint32][]phiRecord) error {
	for _, blk := range ft.mirFn.Blocks {
		ft.irFn.SetInsertBlock(ft.blockByID[blk.ID])
		for _, inst := range blk.Instructions {
			if inst.Kind == mir.InstPhi {
				continue // already materialized as a block parameter
			}
			if err := ft.emitInstruction(&inst); err != nil {
				return err
			}
		}
		if err := ft.emitTerminator(blk); err != nil {
			return err
		}
	}
	return nil
}

// getValue resolves id to a materialized backend value. An id with no
// recorded definition — a sentinel NoValue, a forward reference from an
// unreachable block, or a skipped instruction — yields a zero constant of
// its inferred type (i64 if unknown), keeping the backend verifier
// satisfied without masking a bug in reachable code: reachable operands
// are always resolved earlier in dominance order by construction.
func (ft *funcTranslator) getValue(id mir.ValueID) ir.Value {
	if v, ok := ft.values[id]; ok {
		return v
	}
	t := ft.typeOf(id)
	if t == ir.TypeInvalid {
		t = ir.I64
	}
	if t.IsFloat() {
		return ft.irFn.Fconst(t, 0)
	}
	return ft.irFn.Iconst(t, 0)
}

func intCCFor(op mir.BinOp) ir.IntCC {
	switch op {
	case mir.BinEq:
		return ir.IntEq
	case mir.BinNe:
		return ir.IntNe
	case mir.BinLt:
		return ir.IntSlt
	case mir.BinLe:
		return ir.IntSle
	case mir.BinGt:
		return ir.IntSgt
	default:
		return ir.IntSge
	}
}

func floatCCFor(op mir.BinOp) ir.FloatCC {
	switch op {
	case mir.BinEq:
		return ir.FloatEq
	case mir.BinNe:
		return ir.FloatNe
	case mir.BinLt:
		return ir.FloatLt
	case mir.BinLe:
		return ir.FloatLe
	case mir.BinGt:
		return ir.FloatGt
	default:
		return ir.FloatGe
	}
}

func (ft *funcTranslator) emitInstruction(inst *mir.Instruction) error {
	switch inst.Kind {
	case mir.InstBinary:
		return ft.emitBinary(inst)
	case mir.InstUnary:
		ft.emitUnary(inst)
	case mir.InstLoad:
		ft.emitLoad(inst)
	case mir.InstStore:
		ft.emitStore(inst)
	case mir.InstAlloca:
		ft.emitAlloca(inst)
	case mir.InstGep:
		ft.emitGep(inst)
	case mir.InstExtractValue:
		ft.emitExtractValue(inst)
	case mir.InstInsertValue:
		ft.emitInsertValue(inst)
	case mir.InstCall, mir.InstMethodCall:
		ft.emitCall(inst)
	case mir.InstCast:
		ft.emitCast(inst)
	case mir.InstConstant:
		ft.emitConstant(inst)
	case mir.InstSelect:
		ft.emitSelect(inst)
	case mir.InstStructInit:
		ft.emitStructInit(inst)
	case mir.InstEnumInit:
		ft.emitEnumInit(inst)
	case mir.InstTupleInit:
		ft.emitTupleInit(inst)
	case mir.InstArrayInit:
		ft.emitArrayInit(inst)
	case mir.InstClosureInit:
		ft.emitClosureInit(inst)
	case mir.InstAwait:
		return bridgeerr.Unsupportedf("await")
	default:
		return bridgeerr.Unsupportedf("unknown instruction kind %d", inst.Kind)
	}
	return nil
}

func (ft *funcTranslator) emitBinary(inst *mir.Instruction) error {
	lv, rv := ft.getValue(inst.Left), ft.getValue(inst.Right)
	lt, rt := ft.irFn.TypeOf(lv), ft.irFn.TypeOf(rv)
	target := widerOrFloat(lt, rt)
	lv = coerceTo(ft.irFn, lv, lt, target)
	rv = coerceTo(ft.irFn, rv, rt, target)

	if inst.BinOp.IsComparison() {
		var result ir.Value
		if target.IsFloat() {
			result = ft.irFn.Fcmp(floatCCFor(inst.BinOp), lv, rv)
		} else {
			result = ft.irFn.Icmp(intCCFor(inst.BinOp), lv, rv)
		}
		ft.values[inst.Result] = result
		return nil
	}

	var result ir.Value
	switch inst.BinOp {
	case mir.BinAdd:
		if target.IsFloat() {
			result = ft.irFn.Fadd(target, lv, rv)
		} else {
			result = ft.irFn.Iadd(target, lv, rv)
		}
	case mir.BinSub:
		if target.IsFloat() {
			result = ft.irFn.Fsub(target, lv, rv)
		} else {
			result = ft.irFn.Isub(target, lv, rv)
		}
	case mir.BinMul:
		if target.IsFloat() {
			result = ft.irFn.Fmul(target, lv, rv)
		} else {
			result = ft.irFn.Imul(target, lv, rv)
		}
	case mir.BinDiv:
		if target.IsFloat() {
			result = ft.irFn.Fdiv(target, lv, rv)
		} else {
			result = ft.irFn.Sdiv(target, lv, rv)
		}
	case mir.BinMod:
		if target.IsFloat() {
			return bridgeerr.Unsupportedf("float modulo")
		}
		result = ft.irFn.Srem(target, lv, rv)
	case mir.BinAnd, mir.BinBitAnd:
		result = ft.irFn.Band(target, lv, rv)
	case mir.BinOr, mir.BinBitOr:
		result = ft.irFn.Bor(target, lv, rv)
	case mir.BinBitXor:
		result = ft.irFn.Bxor(target, lv, rv)
	case mir.BinShl:
		result = ft.irFn.Ishl(target, lv, rv)
	case mir.BinShr:
		result = ft.irFn.Sshr(target, lv, rv)
	default:
		return bridgeerr.Unsupportedf("unknown binary op %d", inst.BinOp)
	}
	ft.values[inst.Result] = result
	return nil
}

func (ft *funcTranslator) emitUnary(inst *mir.Instruction) {
	v := ft.getValue(inst.Operand)
	t := ft.irFn.TypeOf(v)
	var result ir.Value
	switch inst.UnaryOp {
	case mir.UnaryNeg:
		if t.IsFloat() {
			result = ft.irFn.Fneg(t, v)
		} else {
			result = ft.irFn.Ineg(t, v)
		}
	case mir.UnaryNot:
		one := ft.irFn.Iconst(t, 1)
		result = ft.irFn.Bxor(t, v, one)
	case mir.UnaryBitNot:
		result = ft.irFn.Bnot(t, v)
	}
	ft.values[inst.Result] = result
}

func (ft *funcTranslator) emitLoad(inst *mir.Instruction) {
	if slot, ok := ft.allocaSlot[inst.Ptr]; ok {
		t := ft.typeOf(inst.Result)
		ft.values[inst.Result] = ft.irFn.StackLoad(t, slot, 0)
		return
	}
	ptr := ft.getValue(inst.Ptr)
	t := ft.typeOf(inst.Result)
	ft.values[inst.Result] = ft.irFn.Load(t, ptr, 0)
}

func (ft *funcTranslator) emitStore(inst *mir.Instruction) {
	val := ft.getValue(inst.Value)
	vt := ft.irFn.TypeOf(val)
	if slot, ok := ft.allocaSlot[inst.Ptr]; ok {
		elemT := ft.allocaElemType[inst.Ptr]
		val = coerceTo(ft.irFn, val, vt, elemT)
		ft.irFn.StackStore(val, slot, 0)
		return
	}
	ptr := ft.getValue(inst.Ptr)
	ft.irFn.Store(val, ptr, 0)
}

func (ft *funcTranslator) emitAlloca(inst *mir.Instruction) {
	size := typelayout.Size(inst.AllocType)
	if size < 8 {
		size = 8
	}
	addr, slot := ft.irFn.StackAlloc(size)
	ft.values[inst.Result] = addr
	ft.allocaSlot[inst.Result] = slot
}

func (ft *funcTranslator) emitGep(inst *mir.Instruction) {
	addr := ft.getValue(inst.Ptr)
	eight := ft.irFn.Iconst(ir.I64, 8)
	for _, idxID := range inst.Indices {
		iv := ft.getValue(idxID)
		it := ft.irFn.TypeOf(iv)
		iv = coerceTo(ft.irFn, iv, it, ir.I64)
		scaled := ft.irFn.Imul(ir.I64, iv, eight)
		addr = ft.irFn.Iadd(ir.I64, addr, scaled)
	}
	ft.values[inst.Result] = addr
}

func (ft *funcTranslator) fieldOffset(indices []uint32) int32 {
	var offset uint32
	for _, idx := range indices {
		offset += idx * 8
	}
	return int32(offset)
}

func (ft *funcTranslator) emitExtractValue(inst *mir.Instruction) {
	base := ft.getValue(inst.Aggregate)
	ft.values[inst.Result] = ft.irFn.Load(ir.I64, base, ft.fieldOffset(inst.U32Indices))
}

func (ft *funcTranslator) emitInsertValue(inst *mir.Instruction) {
	base := ft.getValue(inst.Aggregate)
	val := ft.getValue(inst.Value)
	ft.irFn.Store(val, base, ft.fieldOffset(inst.U32Indices))
	ft.values[inst.Result] = base
}

func (ft *funcTranslator) emitCall(inst *mir.Instruction) {
	args := inst.Args
	if inst.Kind == mir.InstMethodCall {
		args = append([]mir.ValueID{inst.Receiver}, args...)
	}
	d := ft.tr.resolveOrDeclareCall(inst.FuncName, len(args), inst.ReturnType)

	argVals := make([]ir.Value, len(args))
	for i, a := range args {
		v := ft.getValue(a)
		vt := ft.irFn.TypeOf(v)
		pt := vt
		if i < len(d.ParamTypes) {
			pt = d.ParamTypes[i]
		}
		argVals[i] = coerceTo(ft.irFn, v, vt, pt)
	}

	result := ft.irFn.Call(d.Symbol, argVals, d.ResultType)
	if inst.Result != mir.NoValue && d.ResultType != ir.TypeInvalid {
		ft.values[inst.Result] = result
	}
}

func (ft *funcTranslator) emitCast(inst *mir.Instruction) {
	v := ft.getValue(inst.Operand)
	vt := ft.irFn.TypeOf(v)
	tt, ok := typelayout.ToIRType(inst.TargetType)
	if !ok {
		tt = ir.I64
	}

	var result ir.Value
	switch inst.CastKind {
	case mir.CastBitcast:
		if tt.Bytes() == vt.Bytes() {
			result = ft.irFn.Bitcast(tt, v)
		} else {
			result = coerceTo(ft.irFn, v, vt, tt)
		}
	case mir.CastTrunc:
		result = ft.irFn.Ireduce(tt, v)
	case mir.CastZExt:
		result = ft.irFn.Uextend(tt, v)
	case mir.CastSExt:
		result = ft.irFn.Sextend(tt, v)
	case mir.CastFPTrunc:
		result = ft.irFn.Fdemote(v)
	case mir.CastFPExt:
		result = ft.irFn.Fpromote(v)
	case mir.CastFPToSI:
		result = ft.irFn.FcvtToSint(tt, v)
	case mir.CastFPToUI:
		result = ft.irFn.FcvtToUint(tt, v)
	case mir.CastSIToFP:
		result = ft.irFn.FcvtFromSint(tt, v)
	case mir.CastUIToFP:
		result = ft.irFn.FcvtFromUint(tt, v)
	case mir.CastPtrToInt, mir.CastIntToPtr:
		result = coerceTo(ft.irFn, v, vt, tt)
	}
	ft.values[inst.Result] = result
}

func (ft *funcTranslator) emitConstant(inst *mir.Instruction) {
	c := inst.ConstantValue
	t := ft.typeOf(inst.Result)
	switch c.Kind {
	case mir.ConstInt:
		ft.values[inst.Result] = ft.irFn.Iconst(t, c.IntValue)
	case mir.ConstFloat:
		ft.values[inst.Result] = ft.irFn.Fconst(t, c.FloatVal)
	case mir.ConstBool:
		v := int64(0)
		if c.BoolValue {
			v = 1
		}
		ft.values[inst.Result] = ft.irFn.Iconst(ir.I8, v)
	case mir.ConstString:
		sym := ft.internString(c.StrValue)
		ft.values[inst.Result] = ft.irFn.SymbolAddr(sym)
	case mir.ConstUnit:
		// no ABI value; callers of a unit-typed value never materialize it
	}
}

// internString deduplicates string constants by content within this
// function, naming each distinct one `.str.<fn>.<n>`.
func (ft *funcTranslator) internString(s string) string {
	if sym, ok := ft.strConst[s]; ok {
		return sym
	}
	sym := fmt.Sprintf(".str.%s.%d", ft.irFn.Name, ft.strCount)
	ft.strCount++
	ft.strConst[s] = sym
	ft.irFn.AddData(sym, append([]byte(s), 0))
	return sym
}

func (ft *funcTranslator) emitSelect(inst *mir.Instruction) {
	cond := ft.getValue(inst.Condition)
	tv, fv := ft.getValue(inst.TrueVal), ft.getValue(inst.FalseVal)
	tt, ft2 := ft.irFn.TypeOf(tv), ft.irFn.TypeOf(fv)
	target := widerOrFloat(tt, ft2)
	tv = coerceTo(ft.irFn, tv, tt, target)
	fv = coerceTo(ft.irFn, fv, ft2, target)
	ft.values[inst.Result] = ft.irFn.Select(target, cond, tv, fv)
}

func (ft *funcTranslator) structFieldTypes(name string) ([]mir.Type, bool) {
	sd, ok := ft.tr.structDefs.Get(name)
	if !ok {
		return nil, false
	}
	types := make([]mir.Type, len(sd.Fields))
	for i, f := range sd.Fields {
		types[i] = f.Type
	}
	return types, true
}

func uniformLayout(n int) typelayout.StructLayout {
	offsets := make([]uint32, n)
	for i := range offsets {
		offsets[i] = uint32(i) * 8
	}
	return typelayout.StructLayout{Offsets: offsets, TotalSize: uint32(n) * 8}
}

// emitStructInit computes the struct's natural-alignment layout when its
// definition is known; absent a definition it falls back to uniform
// 8-byte strides, exactly as the reference translator does.
func (ft *funcTranslator) emitStructInit(inst *mir.Instruction) {
	var layout typelayout.StructLayout
	if fieldTypes, ok := ft.structFieldTypes(inst.StructName); ok && len(fieldTypes) == len(inst.Fields) {
		layout = typelayout.ComputeStructLayout(fieldTypes)
	} else {
		layout = uniformLayout(len(inst.Fields))
	}
	size := layout.TotalSize
	if size < 8 {
		size = 8
	}
	addr, slot := ft.irFn.StackAlloc(size)
	for i, fv := range inst.Fields {
		v := ft.getValue(fv)
		offset := uint32(i) * 8
		if i < len(layout.Offsets) {
			offset = layout.Offsets[i]
		}
		ft.irFn.StackStore(v, slot, int32(offset))
	}
	ft.values[inst.Result] = addr
}

func (ft *funcTranslator) enumVariantIndex(enumName, variantName string) int64 {
	ed, ok := ft.tr.enumDefs.Get(enumName)
	if !ok {
		return 0
	}
	for i, v := range ed.Variants {
		if v.Name == variantName {
			return int64(i)
		}
	}
	return 0
}

func (ft *funcTranslator) emitEnumInit(inst *mir.Instruction) {
	size := typelayout.ComputeEnumLayout(len(inst.Payload))
	addr, slot := ft.irFn.StackAlloc(size)
	tag := ft.irFn.Iconst(ir.I64, ft.enumVariantIndex(inst.EnumName, inst.VariantName))
	ft.irFn.StackStore(tag, slot, 0)
	for i, pv := range inst.Payload {
		v := ft.getValue(pv)
		ft.irFn.StackStore(v, slot, int32(8*(i+1)))
	}
	ft.values[inst.Result] = addr
}

// emitTupleInit and emitArrayInit apply the same 8-byte minimum floor as
// Alloca, StructInit, and EnumInit: every aggregate initializer gets at
// least one 8-byte slot, even a zero-element tuple or array.
func (ft *funcTranslator) emitTupleInit(inst *mir.Instruction) {
	size := uint32(len(inst.Elements)) * 8
	if size < 8 {
		size = 8
	}
	addr, slot := ft.irFn.StackAlloc(size)
	for i, ev := range inst.Elements {
		v := ft.getValue(ev)
		ft.irFn.StackStore(v, slot, int32(8*i))
	}
	ft.values[inst.Result] = addr
}

func (ft *funcTranslator) emitArrayInit(inst *mir.Instruction) {
	elemSize := typelayout.Size(inst.ElementType)
	if elemSize == 0 {
		elemSize = 8
	}
	size := elemSize * uint32(len(inst.Elements))
	if size < 8 {
		size = 8
	}
	addr, slot := ft.irFn.StackAlloc(size)
	for i, ev := range inst.Elements {
		v := ft.getValue(ev)
		ft.irFn.StackStore(v, slot, int32(elemSize)*int32(i))
	}
	ft.values[inst.Result] = addr
}

func (ft *funcTranslator) closureFuncAddr(name string) ir.Value {
	if name == "" {
		return ft.irFn.Iconst(ir.I64, 0)
	}
	if d, ok := ft.tr.funcIDs[name]; ok {
		return ft.irFn.SymbolAddr(d.Symbol)
	}
	if d, ok := ft.tr.funcIDs[resolveSymbolName(name)]; ok {
		return ft.irFn.SymbolAddr(d.Symbol)
	}
	return ft.irFn.Iconst(ir.I64, 0)
}

func (ft *funcTranslator) emitClosureInit(inst *mir.Instruction) {
	size := uint32(8 * (1 + len(inst.Captures)))
	addr, slot := ft.irFn.StackAlloc(size)
	ft.irFn.StackStore(ft.closureFuncAddr(inst.FuncName), slot, 0)
	for i, c := range inst.Captures {
		v := ft.getValue(c.Value)
		ft.irFn.StackStore(v, slot, int32(8*(i+1)))
	}
	ft.values[inst.Result] = addr
}

// --- terminators ------------------------------------------------------

// branchArgs builds the block-argument list for an edge from `from` to
// `to`: the φ incoming values on `to` whose predecessor is `from`, in
// φ-declaration order, each coerced to its block parameter's type.
func (ft *funcTranslator) branchArgs(from, to uint32, phis map[uint32][]phiRecord) []ir.Value {
	recs := phis[to]
	if len(recs) == 0 {
		return nil
	}
	targetBlock := ft.irFn.Blocks[ft.blockByID[to]]
	args := make([]ir.Value, len(recs))
	for i, rec := range recs {
		paramType := targetBlock.Params[i].Type
		v := ft.getValue(ft.findIncoming(rec.incoming, from))
		vt := ft.irFn.TypeOf(v)
		args[i] = coerceTo(ft.irFn, v, vt, paramType)
	}
	return args
}

// findIncoming looks up the φ value flowing from the given predecessor;
// a predecessor not covered by the incoming list (a mismatch between the
// MIR's declared predecessors and the φ's incoming edges) falls back to
// a zero constant rather than failing translation.
func (ft *funcTranslator) findIncoming(incoming []mir.PhiIncoming, from uint32) mir.ValueID {
	for _, inc := range incoming {
		if inc.Block == from {
			return inc.Value
		}
	}
	return mir.NoValue
}

func (ft *funcTranslator) emitTerminator(blk mir.BasicBlock) error {
	term := blk.Terminator
	if term == nil {
		return bridgeerr.Translationf("block %d has no terminator", blk.ID)
	}
	switch term.Kind {
	case mir.TermReturn:
		if !term.HasValue {
			ft.irFn.Return(nil)
			return nil
		}
		v := ft.getValue(term.Value)
		vt := ft.irFn.TypeOf(v)
		rt := ft.irFn.ResultType
		v = coerceTo(ft.irFn, v, vt, rt)
		ft.irFn.Return([]ir.Value{v})
	case mir.TermBranch:
		args := ft.branchArgsResolved(blk.ID, term.Target)
		ft.irFn.Jump(ft.blockByID[term.Target], args)
	case mir.TermCondBranch:
		cond := ft.getValue(term.Condition)
		trueArgs := ft.branchArgsResolved(blk.ID, term.TrueBlock)
		falseArgs := ft.branchArgsResolved(blk.ID, term.FalseBlock)
		ft.irFn.Brif(cond, ft.blockByID[term.TrueBlock], trueArgs, ft.blockByID[term.FalseBlock], falseArgs)
	case mir.TermSwitch:
		disc := ft.getValue(term.Discriminant)
		cases := make([]ir.SwitchCase, len(term.Cases))
		for i, c := range term.Cases {
			cases[i] = ir.SwitchCase{Value: c.Value, Block: ft.blockByID[c.Block]}
		}
		ft.irFn.Switch(disc, cases, ft.blockByID[term.DefaultBlock])
	case mir.TermUnreachable:
		ft.irFn.Trap(0)
	default:
		return bridgeerr.Translationf("unknown terminator kind %d", term.Kind)
	}
	return nil
}

// branchArgsResolved is the terminator-facing entry point into
// branchArgs, reading the φ table collected in pass 2 and stashed on ft
// for the duration of translateFunction.
func (ft *funcTranslator) branchArgsResolved(from, to uint32) []ir.Value {
	return ft.branchArgs(from, to, ft.pendingPhis)
}
