// Package codegen lowers the backend IR into native machine code and
// wraps it in a relocatable object file, the way the reference Cranelift
// bridge's finish() hands ObjectModule bytes back to its caller.
package codegen

// reg is an x86-64 general-purpose register number in the 4-bit encoding
// space (0-15); REX.B/REX.R/REX.X select the high half for r8-r15.
type reg uint8

const (
	rax reg = 0
	rcx reg = 1
	rdx reg = 2
	rbx reg = 3
	rsp reg = 4
	rbp reg = 5
	rsi reg = 6
	rdi reg = 7
	r8  reg = 8
	r9  reg = 9
	r10 reg = 10
	r11 reg = 11
)

// argRegs is the System V AMD64 integer argument order for the first six
// arguments; calls with more are unsupported at this revision.
var argRegs = [6]reg{rdi, rsi, rdx, rcx, r8, r9}

// xmm is an SSE2 register number, sharing the same 0-15 encoding space as
// reg but selected by instructions with the 0xF2/0x66 prefix instead of
// by opcode.
type xmm uint8

const (
	xmm0 xmm = 0
	xmm1 xmm = 1
)

// asm accumulates one function's machine code along with the fixups
// (relative jumps and relocations) that must be patched once every
// block's start offset is known.
type asm struct {
	code []byte
	relocs []Reloc
}

func (a *asm) pos() int32 { return int32(len(a.code)) }

func (a *asm) b(v byte)  { a.code = append(a.code, v) }
func (a *asm) bs(vs ...byte) { a.code = append(a.code, vs...) }

func (a *asm) u32(v uint32) {
	a.bs(byte(v), byte(v>>8), byte(v>>16), byte(v>>24))
}

func (a *asm) i32(v int32) { a.u32(uint32(v)) }

func (a *asm) u64(v uint64) {
	a.u32(uint32(v))
	a.u32(uint32(v >> 32))
}

// rex builds a REX prefix. w selects 64-bit operand size; r/x/b extend
// the reg/index/rm fields into the r8-r15 range.
func rex(w, r, x, b bool) byte {
	v := byte(0x40)
	if w {
		v |= 0x08
	}
	if r {
		v |= 0x04
	}
	if x {
		v |= 0x02
	}
	if b {
		v |= 0x01
	}
	return v
}

func modrm(mod, regField, rm byte) byte {
	return mod<<6 | (regField&7)<<3 | rm&7
}

func ext(r reg) bool { return r >= 8 }

// movRegReg: mov dst, src (64-bit).
func (a *asm) movRegReg(dst, src reg) {
	a.b(rex(true, ext(src), false, ext(dst)))
	a.b(0x89)
	a.b(modrm(3, byte(src), byte(dst)))
}

// movRegImm64: mov dst, imm64.
func (a *asm) movRegImm64(dst reg, imm int64) {
	a.b(rex(true, false, false, ext(dst)))
	a.b(0xb8 + byte(dst)&7)
	a.u64(uint64(imm))
}

// loadMem: mov dst, [rbp+disp32].
func (a *asm) loadMem(dst reg, base reg, disp int32) {
	a.b(rex(true, ext(dst), false, ext(base)))
	a.b(0x8b)
	a.b(modrm(2, byte(dst), byte(base)))
	a.i32(disp)
}

// storeMem: mov [rbp+disp32], src.
func (a *asm) storeMem(base reg, disp int32, src reg) {
	a.b(rex(true, ext(src), false, ext(base)))
	a.b(0x89)
	a.b(modrm(2, byte(src), byte(base)))
	a.i32(disp)
}

// leaMem: lea dst, [base+disp32].
func (a *asm) leaMem(dst, base reg, disp int32) {
	a.b(rex(true, ext(dst), false, ext(base)))
	a.b(0x8d)
	a.b(modrm(2, byte(dst), byte(base)))
	a.i32(disp)
}

// leaRIP records a lea dst, [rip+disp32] with a placeholder disp, plus a
// relocation entry the object writer resolves against symbol.
func (a *asm) leaRIP(dst reg, symbol string, addend int64) {
	a.b(rex(true, ext(dst), false, false))
	a.b(0x8d)
	a.b(modrm(0, byte(dst), 5)) // mod=00, rm=101 => RIP-relative
	a.relocs = append(a.relocs, Reloc{Offset: uint64(a.pos()), Symbol: symbol, Type: RelocPC32, Addend: addend - 4})
	a.u32(0)
}

// movsxR sign-extends the low srcBytes bytes of src into the full 64 bits
// of dst. srcBytes of 8 (or anything else unrecognized) is a plain copy:
// a 64-bit value needs no further extension.
func (a *asm) movsxR(dst, src reg, srcBytes int) {
	switch srcBytes {
	case 1:
		a.b(rex(true, ext(dst), false, ext(src)))
		a.bs(0x0f, 0xbe)
		a.b(modrm(3, byte(dst), byte(src)))
	case 2:
		a.b(rex(true, ext(dst), false, ext(src)))
		a.bs(0x0f, 0xbf)
		a.b(modrm(3, byte(dst), byte(src)))
	case 4:
		a.b(rex(true, ext(dst), false, ext(src)))
		a.b(0x63) // movsxd
		a.b(modrm(3, byte(dst), byte(src)))
	default:
		if dst != src {
			a.movRegReg(dst, src)
		}
	}
}

// movzxR zero-extends the low srcBytes bytes of src into the full 64 bits
// of dst. A plain 32-bit mov already zero-extends its upper 32 bits on
// x86-64, so the 4-byte case needs no REX.W; 8 (or unrecognized) is a
// plain copy.
func (a *asm) movzxR(dst, src reg, srcBytes int) {
	switch srcBytes {
	case 1:
		a.b(rex(true, ext(dst), false, ext(src)))
		a.bs(0x0f, 0xb6)
		a.b(modrm(3, byte(dst), byte(src)))
	case 2:
		a.b(rex(true, ext(dst), false, ext(src)))
		a.bs(0x0f, 0xb7)
		a.b(modrm(3, byte(dst), byte(src)))
	case 4:
		if ext(dst) || ext(src) {
			a.b(rex(false, ext(src), false, ext(dst)))
		}
		a.b(0x89)
		a.b(modrm(3, byte(src), byte(dst)))
	default:
		if dst != src {
			a.movRegReg(dst, src)
		}
	}
}

func (a *asm) binop(opcode byte, dst, src reg) {
	a.b(rex(true, ext(src), false, ext(dst)))
	a.b(opcode)
	a.b(modrm(3, byte(src), byte(dst)))
}

func (a *asm) addRR(dst, src reg) { a.binop(0x01, dst, src) }
func (a *asm) subRR(dst, src reg) { a.binop(0x29, dst, src) }
func (a *asm) andRR(dst, src reg) { a.binop(0x21, dst, src) }
func (a *asm) orRR(dst, src reg)  { a.binop(0x09, dst, src) }
func (a *asm) xorRR(dst, src reg) { a.binop(0x31, dst, src) }
func (a *asm) cmpRR(dst, src reg) { a.binop(0x39, dst, src) }
func (a *asm) testRR(dst, src reg) { a.binop(0x85, dst, src) }

// imulRR: imul dst, src (two-operand form, 0F AF).
func (a *asm) imulRR(dst, src reg) {
	a.b(rex(true, ext(dst), false, ext(src)))
	a.bs(0x0f, 0xaf)
	a.b(modrm(3, byte(dst), byte(src)))
}

// negR: neg r.
func (a *asm) negR(r reg) {
	a.b(rex(true, false, false, ext(r)))
	a.bs(0xf7)
	a.b(modrm(3, 3, byte(r)))
}

// notR: not r.
func (a *asm) notR(r reg) {
	a.b(rex(true, false, false, ext(r)))
	a.bs(0xf7)
	a.b(modrm(3, 2, byte(r)))
}

// cqo sign-extends rax into rdx:rax ahead of idiv.
func (a *asm) cqo() { a.bs(0x48, 0x99) }

// idivR: idiv r (rdx:rax / r -> quotient rax, remainder rdx).
func (a *asm) idivR(r reg) {
	a.b(rex(true, false, false, ext(r)))
	a.bs(0xf7)
	a.b(modrm(3, 7, byte(r)))
}

// shiftCL emits a shift of dst by the count in cl. digit selects the
// /digit extension: 4=shl, 5=shr, 7=sar.
func (a *asm) shiftCL(dst reg, digit byte) {
	a.b(rex(true, false, false, ext(dst)))
	a.bs(0xd3)
	a.b(modrm(3, digit, byte(dst)))
}

func (a *asm) shlCL(dst reg) { a.shiftCL(dst, 4) }
func (a *asm) sarCL(dst reg) { a.shiftCL(dst, 7) }

// setccR sets the low byte of r from a condition code (0x90+cc is setcc).
func (a *asm) setccR(cc byte, r reg) {
	if ext(r) {
		a.b(rex(false, false, false, true))
	}
	a.bs(0x0f, 0x90+cc)
	a.b(modrm(3, 0, byte(r)))
	// movzx r, r(8-bit) to clear the upper bits picked up by a prior use.
	a.b(rex(true, ext(r), false, ext(r)))
	a.bs(0x0f, 0xb6)
	a.b(modrm(3, byte(r), byte(r)))
}

func (a *asm) jmpRel32Placeholder() int {
	a.b(0xe9)
	p := len(a.code)
	a.u32(0)
	return p
}

// jccRel32Placeholder emits a near conditional jump (0F 8x) and returns
// the byte offset of its rel32 field for later patching.
func (a *asm) jccRel32Placeholder(cc byte) int {
	a.bs(0x0f, 0x80+cc)
	p := len(a.code)
	a.u32(0)
	return p
}

func (a *asm) patchRel32(at int, target int32) {
	rel := target - int32(at+4)
	a.code[at] = byte(rel)
	a.code[at+1] = byte(rel >> 8)
	a.code[at+2] = byte(rel >> 16)
	a.code[at+3] = byte(rel >> 24)
}

func (a *asm) ret() { a.b(0xc3) }

func (a *asm) pushR(r reg) {
	if ext(r) {
		a.b(rex(false, false, false, true))
	}
	a.b(0x50 + byte(r)&7)
}

func (a *asm) popR(r reg) {
	if ext(r) {
		a.b(rex(false, false, false, true))
	}
	a.b(0x58 + byte(r)&7)
}

func (a *asm) ud2() { a.bs(0x0f, 0x0b) }

// --- SSE2 scalar double helpers -----------------------------------------

func (a *asm) movsdLoad(dst xmm, base reg, disp int32) {
	a.bs(0xf2)
	if ext(base) {
		a.b(rex(false, false, false, true))
	}
	a.bs(0x0f, 0x10)
	a.b(modrm(2, byte(dst), byte(base)))
	a.i32(disp)
}

func (a *asm) movsdStore(base reg, disp int32, src xmm) {
	a.bs(0xf2)
	if ext(base) {
		a.b(rex(false, false, false, true))
	}
	a.bs(0x0f, 0x11)
	a.b(modrm(2, byte(src), byte(base)))
	a.i32(disp)
}

func (a *asm) sseBinop(prefix byte, opcode byte, dst, src xmm) {
	a.b(prefix)
	a.bs(0x0f, opcode)
	a.b(modrm(3, byte(dst), byte(src)))
}

func (a *asm) addsd(dst, src xmm)  { a.sseBinop(0xf2, 0x58, dst, src) }
func (a *asm) subsd(dst, src xmm)  { a.sseBinop(0xf2, 0x5c, dst, src) }
func (a *asm) mulsd(dst, src xmm)  { a.sseBinop(0xf2, 0x59, dst, src) }
func (a *asm) divsd(dst, src xmm)  { a.sseBinop(0xf2, 0x5e, dst, src) }
func (a *asm) ucomisd(a1, a2 xmm)  { a.sseBinop(0x66, 0x2e, a1, a2) }
