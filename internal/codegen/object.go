package codegen

// RelocType identifies the relocation kinds this package emits, named
// after their ELF x86-64 equivalents even when writing a non-ELF
// container, since the addend/offset semantics are shared.
type RelocType uint8

const (
	// RelocPC32 is a 32-bit PC-relative reference (RIP-relative lea),
	// used for symbol_addr.
	RelocPC32 RelocType = iota
	// RelocPLT32 is a 32-bit PC-relative call target, used for call.
	RelocPLT32
)

// Reloc is one outstanding relocation against a named symbol; Offset is
// the byte offset of the 4-byte field within the function's code, and
// Addend is folded into the value written there (already includes the
// -4 correction for the instruction-end-relative encoding).
type Reloc struct {
	Offset uint64
	Symbol string
	Type   RelocType
	Addend int64
}

// CompiledFunction is one function's native machine code plus the
// relocations the object writer must resolve against the final symbol
// table and the data symbols it references.
type CompiledFunction struct {
	Symbol string
	Code   []byte
	Relocs []Reloc
	Export bool
}

// CompiledData is one read-only data segment a function's code
// references by symbol (interned string constants).
type CompiledData struct {
	Symbol string
	Bytes  []byte
}

// ObjectFormat selects the container the compiled functions are wrapped
// in. Only ELF64 is implemented at this revision; Mach-O and COFF are
// recognized so the API shape matches every target triple the front end
// might request, and fail with InvalidTarget rather than silently
// emitting the wrong container.
type ObjectFormat uint8

const (
	FormatELF64 ObjectFormat = iota
	FormatMachO64
	FormatCOFF64
)
