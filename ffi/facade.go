// Package ffi is the bridge's host-language-agnostic core: the same four
// operations the C ABI exposes, implemented once here so both the cgo
// shared library entry points and the CLI driver call a single code
// path. Every exported function recovers its own panics, converting them
// to a bridgeerr.Codegen error carrying the "PANIC:" prefix, matching the
// reference bridge's catch_unwind-at-the-boundary discipline.
package ffi

import (
	"github.com/hivellm/cranelift-bridge/internal/bridgeerr"
	"github.com/hivellm/cranelift-bridge/internal/codegen"
	"github.com/hivellm/cranelift-bridge/internal/mir"
	"github.com/hivellm/cranelift-bridge/internal/translate"
)

// Version is the bridge's static version string, returned verbatim by
// the version() C entry point.
const Version = "cranelift-0.1.0"

// Options mirrors the C ABI's Options struct at the Go level.
type Options struct {
	OptimizationLevel int32
	TargetTriple      string
	DebugInfo         bool
	DllExport         bool
}

// clampOptLevel keeps OptimizationLevel in the documented 0..3 range
// rather than rejecting an out-of-range value.
func clampOptLevel(level int32) int32 {
	switch {
	case level < 0:
		return 0
	case level > 3:
		return 3
	default:
		return level
	}
}

// CompileMIR decodes data as a full MIR module and compiles every
// defined function into one native object.
func CompileMIR(data []byte, opts Options) (obj []byte, err error) {
	defer func() { err = recoverAsError(recover(), err) }()
	_ = clampOptLevel(opts.OptimizationLevel) // reserved: no optimization passes at this revision
	mod, err := decode(data)
	if err != nil {
		return nil, err
	}
	translated, err := translate.TranslateModule(mod, nil)
	if err != nil {
		return nil, err
	}
	return codegen.EmitObject(translated, targetFormat(opts.TargetTriple))
}

// CompileMIRCGU compiles only the listed function indices, a compilation
// unit partition of a larger module; declarations still run against the
// whole module so cross-CGU calls resolve.
func CompileMIRCGU(data []byte, indices []int, opts Options) (obj []byte, err error) {
	defer func() { err = recoverAsError(recover(), err) }()
	mod, err := decode(data)
	if err != nil {
		return nil, err
	}
	translated, err := translate.TranslateModule(mod, indices)
	if err != nil {
		return nil, err
	}
	return codegen.EmitObject(translated, targetFormat(opts.TargetTriple))
}

// GenerateIR decodes and translates the full module, returning its
// textual backend-IR listing instead of object bytes.
func GenerateIR(data []byte, opts Options) (text string, err error) {
	defer func() { err = recoverAsError(recover(), err) }()
	mod, err := decode(data)
	if err != nil {
		return "", err
	}
	translated, err := translate.TranslateModule(mod, nil)
	if err != nil {
		return "", err
	}
	return codegen.GenerateText(translated), nil
}

func decode(data []byte) (*mir.Module, error) {
	return mir.NewReader(data).ReadModule()
}

// targetFormat maps a target triple prefix to the object container it
// implies; an empty/unrecognized triple defaults to ELF64 (native Linux),
// the only container this revision writes.
func targetFormat(triple string) codegen.ObjectFormat {
	switch {
	case hasPrefix(triple, "x86_64-apple") || hasPrefix(triple, "aarch64-apple"):
		return codegen.FormatMachO64
	case hasPrefix(triple, "x86_64-pc-windows") || hasPrefix(triple, "x86_64-windows"):
		return codegen.FormatCOFF64
	default:
		return codegen.FormatELF64
	}
}

func hasPrefix(s, prefix string) bool {
	return len(s) >= len(prefix) && s[:len(prefix)] == prefix
}

func recoverAsError(r any, existing error) error {
	if r == nil {
		return existing
	}
	return bridgeerr.Panic(r)
}
