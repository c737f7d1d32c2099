package codegen

import (
	"math"

	"github.com/hivellm/cranelift-bridge/internal/bridgeerr"
	"github.com/hivellm/cranelift-bridge/internal/ir"
)

const signBit64 = uint64(1) << 63

// CompileFunction lowers one backend-IR function to x86-64 machine code
// under the System V AMD64 ABI. Every SSA value, including block
// parameters, is assigned a fixed stack slot below rbp; there is no
// register allocator, trading code density for a codegen simple enough
// to audit one opcode at a time, matching the directness of the
// reference backend's per-instruction emission.
func CompileFunction(f *ir.Function) (CompiledFunction, error) {
	c := &funcCodegen{f: f, a: &asm{}, slot: make(map[ir.Value]int32)}
	if err := c.run(); err != nil {
		return CompiledFunction{}, err
	}
	return CompiledFunction{Symbol: f.Name, Code: c.a.code, Relocs: c.a.relocs}, nil
}

type funcCodegen struct {
	f    *ir.Function
	a    *asm
	slot map[ir.Value]int32 // value -> frame offset (negative, from rbp)

	frameSize    int32
	stackSlotOff []int32 // ir.StackSlot -> frame offset of its base

	blockOff []int32 // block index -> byte offset once laid out (post patch)
	jumpFixups []jumpFixup
}

type jumpFixup struct {
	at     int
	target ir.BlockID
}

// layout assigns the frame: one 8-byte slot below rbp for every value
// number from 1 up to the highest one the function defines (block params
// included), then the stack slots, then rounds the frame to 16 bytes.
func (c *funcCodegen) layout() {
	maxValue := uint32(0)
	for _, b := range c.f.Blocks {
		for _, p := range b.Params {
			if uint32(p.Value) > maxValue {
				maxValue = uint32(p.Value)
			}
		}
		for _, inst := range b.Instructions {
			if uint32(inst.Result) > maxValue {
				maxValue = uint32(inst.Result)
			}
		}
	}

	var off int32
	for v := uint32(1); v <= maxValue; v++ {
		off += 8
		c.slot[ir.Value(v)] = -off
	}

	c.stackSlotOff = make([]int32, len(c.f.StackSlots))
	for i, s := range c.f.StackSlots {
		size := int32(s.Size)
		if size%8 != 0 {
			size += 8 - size%8
		}
		off += size
		c.stackSlotOff[i] = -off
	}

	if off%16 != 0 {
		off += 16 - off%16
	}
	c.frameSize = off
}

func (c *funcCodegen) run() (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = bridgeerr.Panic(r)
		}
	}()

	c.layout()
	c.blockOff = make([]int32, len(c.f.Blocks))

	c.a.pushR(rbp)
	c.a.movRegReg(rbp, rsp)
	if c.frameSize > 0 {
		c.a.b(rex(true, false, false, false))
		c.a.bs(0x81, modrm(3, 5, byte(rsp)))
		c.a.i32(c.frameSize)
	}

	// entry-block parameters arrive in argRegs; store them to their slots.
	// Only the low Bytes() of an integer argument register are meaningful
	// per the System V ABI (a narrower-than-64-bit argument's upper bits
	// are unspecified), so narrower parameters are sign-extended to a
	// canonical 64-bit value before being stored — every integer value
	// that ever reaches memory in this backend is a full sign-extension
	// of its declared width, never a partial register snapshot.
	if len(c.f.Blocks) > 0 {
		for i, p := range c.f.Blocks[0].Params {
			if i >= len(argRegs) {
				break // beyond six integer args: unsupported at this revision
			}
			if p.Type.IsFloat() {
				continue // float args: simplification, see DESIGN.md
			}
			r := argRegs[i]
			if n := int(p.Type.Bytes()); n < 8 {
				c.a.movsxR(r, r, n)
			}
			c.a.storeMem(rbp, c.slot[p.Value], r)
		}
	}

	for bi, b := range c.f.Blocks {
		c.blockOff[bi] = c.a.pos()
		for _, inst := range b.Instructions {
			if err := c.emit(inst); err != nil {
				return err
			}
		}
	}

	for _, fx := range c.jumpFixups {
		c.a.patchRel32(fx.at, c.blockOff[fx.target])
	}
	return nil
}

func (c *funcCodegen) load(v ir.Value, r reg) {
	c.a.loadMem(r, rbp, c.slot[v])
}

func (c *funcCodegen) store(v ir.Value, r reg) {
	c.a.storeMem(rbp, c.slot[v], r)
}

func (c *funcCodegen) loadF(v ir.Value, x xmm) {
	c.a.movsdLoad(x, rbp, c.slot[v])
}

func (c *funcCodegen) storeF(v ir.Value, x xmm) {
	c.a.movsdStore(rbp, c.slot[v], x)
}

func (c *funcCodegen) epilogue() {
	c.a.movRegReg(rsp, rbp)
	c.a.popR(rbp)
	c.a.ret()
}

func (c *funcCodegen) emit(inst *ir.Instruction) error {
	switch inst.Op {
	case ir.OpIconst:
		c.a.movRegImm64(rax, inst.ImmI64)
		c.store(inst.Result, rax)
	case ir.OpFconst:
		c.pushImm64AsXMM(int64(math.Float64bits(inst.ImmF64)), xmm0)
		c.storeF(inst.Result, xmm0)
	case ir.OpIadd, ir.OpIsub, ir.OpBand, ir.OpBor, ir.OpBxor:
		c.intBinop(inst)
	case ir.OpImul:
		c.load(inst.Args[0], rax)
		c.load(inst.Args[1], rcx)
		c.a.imulRR(rax, rcx)
		c.store(inst.Result, rax)
	case ir.OpSdiv, ir.OpSrem:
		c.load(inst.Args[0], rax)
		c.load(inst.Args[1], rcx)
		c.a.cqo()
		c.a.idivR(rcx)
		if inst.Op == ir.OpSdiv {
			c.store(inst.Result, rax)
		} else {
			c.store(inst.Result, rdx)
		}
	case ir.OpIshl:
		c.load(inst.Args[0], rax)
		c.load(inst.Args[1], rcx)
		c.a.shlCL(rax)
		c.store(inst.Result, rax)
	case ir.OpSshr:
		c.load(inst.Args[0], rax)
		c.load(inst.Args[1], rcx)
		c.a.sarCL(rax)
		c.store(inst.Result, rax)
	case ir.OpBnot:
		c.load(inst.Args[0], rax)
		c.a.notR(rax)
		c.store(inst.Result, rax)
	case ir.OpIneg:
		c.load(inst.Args[0], rax)
		c.a.negR(rax)
		c.store(inst.Result, rax)
	case ir.OpIcmp:
		c.load(inst.Args[0], rax)
		c.load(inst.Args[1], rcx)
		c.a.cmpRR(rax, rcx)
		c.a.setccR(intCCCode(inst.IntCC), rax)
		c.store(inst.Result, rax)
	case ir.OpFadd, ir.OpFsub, ir.OpFmul, ir.OpFdiv:
		c.floatBinop(inst)
	case ir.OpFneg:
		c.loadF(inst.Args[0], xmm0)
		c.pushImm64AsXMM(int64(signBit64), xmm1)
		c.a.sseBinop(0x66, 0x57, xmm0, xmm1) // xorpd: flips the sign bit
		c.storeF(inst.Result, xmm0)
	case ir.OpFcmp:
		c.loadF(inst.Args[0], xmm0)
		c.loadF(inst.Args[1], xmm1)
		c.a.ucomisd(xmm0, xmm1)
		c.a.setccR(floatCCCode(inst.FloatCC), rax)
		c.store(inst.Result, rax)
	case ir.OpUextend:
		// The slot holding Args[0] is itself a canonical full-width
		// sign-extension of its declared (narrower) type, not a value
		// whose upper bits happen to be zero, so this still needs a real
		// zero-extend from the source's true width rather than a bare
		// 64-bit load.
		srcType := c.f.TypeOf(inst.Args[0])
		c.load(inst.Args[0], rax)
		c.a.movzxR(rax, rax, int(srcType.Bytes()))
		c.store(inst.Result, rax)
	case ir.OpSextend:
		srcType := c.f.TypeOf(inst.Args[0])
		c.load(inst.Args[0], rax)
		c.a.movsxR(rax, rax, int(srcType.Bytes()))
		c.store(inst.Result, rax)
	case ir.OpIreduce:
		// Truncating to a narrower type still canonicalizes to a full
		// sign-extension of that narrower width, so a later Sextend back
		// up reads a well-defined value instead of stale high bits.
		c.load(inst.Args[0], rax)
		c.a.movsxR(rax, rax, int(inst.Type.Bytes()))
		c.store(inst.Result, rax)
	case ir.OpBitcast:
		// Same-width reinterpretation: no extension needed.
		c.load(inst.Args[0], rax)
		c.store(inst.Result, rax)
	case ir.OpFpromote, ir.OpFdemote:
		c.loadF(inst.Args[0], xmm0)
		c.storeF(inst.Result, xmm0)
	case ir.OpFcvtToSint, ir.OpFcvtToUint:
		c.loadF(inst.Args[0], xmm0)
		c.a.bs(0xf2, 0x48, 0x0f, 0x2c, modrm(3, byte(rax), byte(xmm0))) // cvttsd2si rax, xmm0
		c.store(inst.Result, rax)
	case ir.OpFcvtFromSint, ir.OpFcvtFromUint:
		c.load(inst.Args[0], rax)
		c.a.bs(0xf2, 0x48, 0x0f, 0x2a, modrm(3, byte(xmm0), byte(rax))) // cvtsi2sd xmm0, rax
		c.storeF(inst.Result, xmm0)
	case ir.OpSelect:
		c.load(inst.Args[0], rax)
		c.a.testRR(rax, rax)
		jz := c.a.jccRel32Placeholder(0x4) // jz
		c.load(inst.Args[1], rax)
		jmp := c.a.jmpRel32Placeholder()
		c.a.patchRel32(jz, c.a.pos())
		c.load(inst.Args[2], rax)
		c.a.patchRel32(jmp, c.a.pos())
		c.store(inst.Result, rax)
	case ir.OpStackAlloc:
		c.a.leaMem(rax, rbp, c.stackSlotOff[inst.Slot])
		c.store(inst.Result, rax)
	case ir.OpStackAddr:
		c.a.leaMem(rax, rbp, c.stackSlotOff[inst.Slot]+inst.Offset)
		c.store(inst.Result, rax)
	case ir.OpStackLoad:
		c.a.loadMem(rax, rbp, c.stackSlotOff[inst.Slot]+inst.Offset)
		c.store(inst.Result, rax)
	case ir.OpStackStore:
		c.load(inst.Args[0], rax)
		c.a.storeMem(rbp, c.stackSlotOff[inst.Slot]+inst.Offset, rax)
	case ir.OpLoad:
		c.load(inst.Args[0], rax)
		c.a.loadMem(rax, rax, inst.Offset)
		c.store(inst.Result, rax)
	case ir.OpStore:
		c.load(inst.Args[0], rax)
		c.load(inst.Args[1], rcx)
		c.a.storeMem(rcx, inst.Offset, rax)
	case ir.OpCall:
		for i, arg := range inst.Args {
			if i >= len(argRegs) {
				break
			}
			c.load(arg, argRegs[i])
		}
		c.a.b(0xe8)
		at := len(c.a.code)
		c.a.u32(0)
		c.a.relocs = append(c.a.relocs, Reloc{Offset: uint64(at), Symbol: inst.Symbol, Type: RelocPLT32, Addend: -4})
		if inst.Result.Valid() {
			c.store(inst.Result, rax)
		}
	case ir.OpSymbolAddr:
		c.a.leaRIP(rax, inst.Symbol, 0)
		c.store(inst.Result, rax)
	case ir.OpJump:
		c.moveArgs(inst.Target, inst.TargetArgs)
		at := c.a.jmpRel32Placeholder()
		c.jumpFixups = append(c.jumpFixups, jumpFixup{at: at, target: inst.Target})
	case ir.OpBrif:
		c.load(inst.Args[0], rax)
		c.a.testRR(rax, rax)
		jz := c.a.jccRel32Placeholder(0x4)
		c.moveArgs(inst.Target, inst.TargetArgs)
		jmp := c.a.jmpRel32Placeholder()
		c.jumpFixups = append(c.jumpFixups, jumpFixup{at: jmp, target: inst.Target})
		c.a.patchRel32(jz, c.a.pos())
		c.moveArgs(inst.FalseTarget, inst.FalseArgs)
		at2 := c.a.jmpRel32Placeholder()
		c.jumpFixups = append(c.jumpFixups, jumpFixup{at: at2, target: inst.FalseTarget})
	case ir.OpSwitch:
		c.emitSwitch(inst)
	case ir.OpReturn:
		if len(inst.Args) == 1 {
			v := inst.Args[0]
			if c.f.TypeOf(v).IsFloat() {
				c.loadF(v, xmm0)
			} else {
				c.load(v, rax)
			}
		}
		c.epilogue()
	case ir.OpTrap:
		c.a.ud2()
	default:
		return bridgeerr.Unsupportedf("codegen: opcode %d", inst.Op)
	}
	return nil
}

// emitSwitch lowers OpSwitch to a linear cmp/je chain rather than a jump
// table, a deliberate simplification documented in DESIGN.md —
// correctness over density for the case counts MIR switches carry in
// practice.
func (c *funcCodegen) emitSwitch(inst *ir.Instruction) {
	c.load(inst.Args[0], rax)
	for _, cs := range inst.Cases {
		c.a.movRegImm64(rcx, cs.Value)
		c.a.cmpRR(rax, rcx)
		at := c.a.jccRel32Placeholder(0x4) // je, straight to the case block
		c.jumpFixups = append(c.jumpFixups, jumpFixup{at: at, target: cs.Block})
	}
	at := c.a.jmpRel32Placeholder()
	c.jumpFixups = append(c.jumpFixups, jumpFixup{at: at, target: inst.DefaultBlock})
}

// pushImm64AsXMM materializes a raw 64-bit pattern into an SSE register
// via the stack, since there is no mov-immediate-to-xmm encoding.
func (c *funcCodegen) pushImm64AsXMM(bits int64, dst xmm) {
	c.a.movRegImm64(rax, bits)
	c.a.pushR(rax)
	c.a.movsdLoad(dst, rsp, 0)
	c.a.b(rex(true, false, false, false))
	c.a.bs(0x81, modrm(3, 0, byte(rsp)))
	c.a.i32(8)
}

func (c *funcCodegen) moveArgs(target ir.BlockID, args []ir.Value) {
	b := c.f.Blocks[target]
	for i, p := range b.Params {
		if i >= len(args) {
			break
		}
		if p.Type.IsFloat() {
			c.loadF(args[i], xmm0)
			c.storeF(p.Value, xmm0)
		} else {
			c.load(args[i], rax)
			c.store(p.Value, rax)
		}
	}
}

func (c *funcCodegen) intBinop(inst *ir.Instruction) {
	c.load(inst.Args[0], rax)
	c.load(inst.Args[1], rcx)
	switch inst.Op {
	case ir.OpIadd:
		c.a.addRR(rax, rcx)
	case ir.OpIsub:
		c.a.subRR(rax, rcx)
	case ir.OpBand:
		c.a.andRR(rax, rcx)
	case ir.OpBor:
		c.a.orRR(rax, rcx)
	case ir.OpBxor:
		c.a.xorRR(rax, rcx)
	}
	c.store(inst.Result, rax)
}

func (c *funcCodegen) floatBinop(inst *ir.Instruction) {
	c.loadF(inst.Args[0], xmm0)
	c.loadF(inst.Args[1], xmm1)
	switch inst.Op {
	case ir.OpFadd:
		c.a.addsd(xmm0, xmm1)
	case ir.OpFsub:
		c.a.subsd(xmm0, xmm1)
	case ir.OpFmul:
		c.a.mulsd(xmm0, xmm1)
	case ir.OpFdiv:
		c.a.divsd(xmm0, xmm1)
	}
	c.storeF(inst.Result, xmm0)
}

// intCCCode/floatCCCode map the backend IR's condition codes to the x86
// SETcc condition nibble (the same encoding Jcc uses).
func intCCCode(cc ir.IntCC) byte {
	switch cc {
	case ir.IntEq:
		return 0x4
	case ir.IntNe:
		return 0x5
	case ir.IntSlt:
		return 0xc
	case ir.IntSle:
		return 0xe
	case ir.IntSgt:
		return 0xf
	default: // IntSge
		return 0xd
	}
}

func floatCCCode(cc ir.FloatCC) byte {
	switch cc {
	case ir.FloatEq:
		return 0x4
	case ir.FloatNe:
		return 0x5
	case ir.FloatLt:
		return 0x2 // ucomisd sets CF, below == 'b'
	case ir.FloatLe:
		return 0x6
	case ir.FloatGt:
		return 0x7
	default: // FloatGe
		return 0x3
	}
}
