// Package abi declares the fixed C runtime surface that every compiled
// module links against. These are names and signatures the module
// translator never mangles or prefixes, since they resolve against a
// runtime library linked in later, outside this bridge's control.
package abi

import "github.com/hivellm/cranelift-bridge/internal/ir"

// Func is one runtime function's calling signature.
type Func struct {
	Name   string
	Params []ir.Type
	Result ir.Type // ir.TypeInvalid means void
}

// ptr is the ABI pointer type: a plain I64, matching how every MIR
// pointer-like value (Ptr, Str, aggregates) lowers to a single scalar.
const ptr = ir.I64

// Runtime lists the full fixed runtime ABI, declared as Import linkage
// ahead of every user function translation. Order follows essential.h's
// grouping: I/O, type-specific print, strings, time, memory, test/panic
// support.
var Runtime = []Func{
	{Name: "print", Params: []ir.Type{ptr}},
	{Name: "println", Params: []ir.Type{ptr}},
	{Name: "panic", Params: []ir.Type{ptr}},
	{Name: "assert_tml", Params: []ir.Type{ir.I32, ptr}},
	{Name: "assert_tml_loc", Params: []ir.Type{ir.I32, ptr, ptr, ir.I32}},

	{Name: "print_i32", Params: []ir.Type{ir.I32}},
	{Name: "print_i64", Params: []ir.Type{ir.I64}},
	{Name: "print_f32", Params: []ir.Type{ir.F32}},
	{Name: "print_f64", Params: []ir.Type{ir.F64}},
	{Name: "print_bool", Params: []ir.Type{ir.I32}},
	{Name: "print_char", Params: []ir.Type{ir.I32}},

	{Name: "str_len", Params: []ir.Type{ptr}, Result: ir.I32},
	{Name: "str_eq", Params: []ir.Type{ptr, ptr}, Result: ir.I32},
	{Name: "str_hash", Params: []ir.Type{ptr}, Result: ir.I32},
	{Name: "str_concat", Params: []ir.Type{ptr, ptr}, Result: ptr},
	{Name: "str_concat_opt", Params: []ir.Type{ptr, ptr}, Result: ptr},
	{Name: "str_concat_3", Params: []ir.Type{ptr, ptr, ptr}, Result: ptr},
	{Name: "str_concat_4", Params: []ir.Type{ptr, ptr, ptr, ptr}, Result: ptr},
	{Name: "str_concat_n", Params: []ir.Type{ptr, ir.I64}, Result: ptr},
	{Name: "str_substring", Params: []ir.Type{ptr, ir.I32, ir.I32}, Result: ptr},
	{Name: "str_slice", Params: []ir.Type{ptr, ir.I64, ir.I64}, Result: ptr},
	{Name: "str_contains", Params: []ir.Type{ptr, ptr}, Result: ir.I32},
	{Name: "str_starts_with", Params: []ir.Type{ptr, ptr}, Result: ir.I32},
	{Name: "str_ends_with", Params: []ir.Type{ptr, ptr}, Result: ir.I32},
	{Name: "str_to_upper", Params: []ir.Type{ptr}, Result: ptr},
	{Name: "str_to_lower", Params: []ir.Type{ptr}, Result: ptr},
	{Name: "str_trim", Params: []ir.Type{ptr}, Result: ptr},
	{Name: "str_char_at", Params: []ir.Type{ptr, ir.I32}, Result: ir.I32},
	{Name: "char_to_string", Params: []ir.Type{ir.I8}, Result: ptr},

	{Name: "time_ms", Result: ir.I32},
	{Name: "time_us", Result: ir.I64},
	{Name: "time_ns", Result: ir.I64},
	{Name: "sleep_ms", Params: []ir.Type{ir.I32}},
	{Name: "sleep_us", Params: []ir.Type{ir.I64}},
	{Name: "elapsed_ms", Params: []ir.Type{ir.I32}, Result: ir.I32},
	{Name: "elapsed_us", Params: []ir.Type{ir.I64}, Result: ir.I64},
	{Name: "elapsed_ns", Params: []ir.Type{ir.I64}, Result: ir.I64},

	{Name: "mem_alloc", Params: []ir.Type{ir.I64}, Result: ptr},
	{Name: "mem_alloc_zeroed", Params: []ir.Type{ir.I64}, Result: ptr},
	{Name: "mem_realloc", Params: []ir.Type{ptr, ir.I64}, Result: ptr},
	{Name: "mem_free", Params: []ir.Type{ptr}},
	{Name: "mem_copy", Params: []ir.Type{ptr, ptr, ir.I64}},
	{Name: "mem_move", Params: []ir.Type{ptr, ptr, ir.I64}},
	{Name: "mem_set", Params: []ir.Type{ptr, ir.I32, ir.I64}},
	{Name: "mem_zero", Params: []ir.Type{ptr, ir.I64}},
	{Name: "mem_compare", Params: []ir.Type{ptr, ptr, ir.I64}, Result: ir.I32},
	{Name: "mem_eq", Params: []ir.Type{ptr, ptr, ir.I64}, Result: ir.I32},

	{Name: "tml_set_output_suppressed", Params: []ir.Type{ir.I32}},
	{Name: "tml_get_output_suppressed", Result: ir.I32},
	{Name: "tml_run_should_panic", Params: []ir.Type{ptr}, Result: ir.I32},
	{Name: "tml_get_panic_message", Result: ptr},
	{Name: "tml_panic_message_contains", Params: []ir.Type{ptr}, Result: ir.I32},
}

// byName is built once at init so symbol resolution is O(1) per call site.
var byName map[string]Func

func init() {
	byName = make(map[string]Func, len(Runtime))
	for _, f := range Runtime {
		byName[f.Name] = f
	}
}

// Lookup returns the runtime function declaration for name, if it names
// one of the fixed runtime imports.
func Lookup(name string) (Func, bool) {
	f, ok := byName[name]
	return f, ok
}

// IsRuntime reports whether name is one of the fixed runtime imports,
// exempt from the `tml_` disambiguation prefix the module translator
// applies to every other user symbol.
func IsRuntime(name string) bool {
	_, ok := byName[name]
	return ok
}
