// Package bridgeerr defines the five error kinds the bridge can report
// to its host across the FFI boundary, and the formatting rules shared by
// every component that can fail.
package bridgeerr

import "fmt"

// Kind is one of the five closed error kinds the bridge exposes.
type Kind int

const (
	// MirDeserialize covers malformed or truncated input, bad magic, wrong
	// major version, or an unknown wire tag.
	MirDeserialize Kind = iota
	// Translation covers internal inconsistency during lowering: an
	// unknown function reference or a malformed block graph.
	Translation
	// Codegen covers a backend rejection of a declaration, definition, or
	// finalization, and trapped panics (message carries a "PANIC:" prefix).
	Codegen
	// UnsupportedInstruction covers a MIR instruction the bridge
	// recognizes but refuses to lower.
	UnsupportedInstruction
	// InvalidTarget covers a target triple or native ISA that could not
	// be constructed.
	InvalidTarget
)

// Error is the bridge's error type. It carries one of the five Kinds and
// a human-readable message, and implements the standard error interface
// with the exact Display text of the reference implementation.
type Error struct {
	Kind Kind
	Msg  string
}

func (e *Error) Error() string {
	switch e.Kind {
	case MirDeserialize:
		return fmt.Sprintf("MIR deserialization error: %s", e.Msg)
	case Translation:
		return fmt.Sprintf("translation error: %s", e.Msg)
	case Codegen:
		return fmt.Sprintf("codegen error: %s", e.Msg)
	case UnsupportedInstruction:
		return fmt.Sprintf("unsupported instruction: %s", e.Msg)
	case InvalidTarget:
		return fmt.Sprintf("invalid target: %s", e.Msg)
	default:
		return e.Msg
	}
}

// New builds an *Error of the given kind with a formatted message.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// Deserializef builds a MirDeserialize error.
func Deserializef(format string, args ...any) *Error { return New(MirDeserialize, format, args...) }

// Translationf builds a Translation error.
func Translationf(format string, args ...any) *Error { return New(Translation, format, args...) }

// Codegenf builds a Codegen error.
func Codegenf(format string, args ...any) *Error { return New(Codegen, format, args...) }

// Unsupportedf builds an UnsupportedInstruction error.
func Unsupportedf(format string, args ...any) *Error {
	return New(UnsupportedInstruction, format, args...)
}

// InvalidTargetf builds an InvalidTarget error.
func InvalidTargetf(format string, args ...any) *Error { return New(InvalidTarget, format, args...) }

// Panic converts a recovered panic value into a Codegen error carrying the
// "PANIC:" prefix the reference implementation uses for trapped panics.
func Panic(v any) *Error {
	return New(Codegen, "PANIC: %v", v)
}
