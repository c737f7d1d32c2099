// Command libmirbridge builds the bridge as a C-callable shared library.
// Every exported function matches the host ABI's Result/Options layout
// byte for byte; ownership crosses the boundary exactly once per call,
// released by the paired free_result.
package main

/*
#include <stdint.h>
#include <stdlib.h>

typedef struct {
	int32_t success;
	const uint8_t *data;
	size_t data_len;
	const char *ir_text;
	size_t ir_text_len;
	const char *error_msg;
} bridge_result;

typedef struct {
	int32_t optimization_level;
	const char *target_triple;
	int32_t debug_info;
	int32_t dll_export;
} bridge_options;
*/
import "C"

import (
	"unsafe"

	"github.com/hivellm/cranelift-bridge/ffi"
)

func main() {} // unused: built with -buildmode=c-shared

func decodeOptions(opts *C.bridge_options) ffi.Options {
	if opts == nil {
		return ffi.Options{}
	}
	return ffi.Options{
		OptimizationLevel: int32(opts.optimization_level),
		TargetTriple:      C.GoString(opts.target_triple),
		DebugInfo:         opts.debug_info != 0,
		DllExport:         opts.dll_export != 0,
	}
}

func okData(r *C.bridge_result, data []byte) {
	r.success = 1
	r.data_len = C.size_t(len(data))
	if len(data) > 0 {
		r.data = (*C.uint8_t)(C.CBytes(data))
	}
}

func okText(r *C.bridge_result, text string) {
	r.success = 1
	r.ir_text_len = C.size_t(len(text))
	r.ir_text = C.CString(text)
}

func fail(r *C.bridge_result, err error) {
	r.success = 0
	r.error_msg = C.CString(err.Error())
}

// withRecover converts any panic escaping body into a PANIC:-prefixed
// error before it can cross into C, matching the entry-point-boundary
// catch-all discipline documented for every exported symbol here.
func withRecover(r *C.bridge_result, body func() error) {
	defer func() {
		if rec := recover(); rec != nil {
			fail(r, errorFromPanic(rec))
		}
	}()
	if err := body(); err != nil {
		fail(r, err)
	}
}

func errorFromPanic(rec any) error {
	return panicError{rec}
}

type panicError struct{ v any }

func (p panicError) Error() string { return "PANIC: " + toString(p.v) }

func toString(v any) string {
	if err, ok := v.(error); ok {
		return err.Error()
	}
	if s, ok := v.(string); ok {
		return s
	}
	return "unknown panic"
}

//export compile_mir
func compile_mir(dataPtr *C.uint8_t, dataLen C.size_t, opts *C.bridge_options) C.bridge_result {
	var r C.bridge_result
	withRecover(&r, func() error {
		data := C.GoBytes(unsafe.Pointer(dataPtr), C.int(dataLen))
		obj, err := ffi.CompileMIR(data, decodeOptions(opts))
		if err != nil {
			return err
		}
		okData(&r, obj)
		return nil
	})
	return r
}

//export compile_mir_cgu
func compile_mir_cgu(dataPtr *C.uint8_t, dataLen C.size_t, indicesPtr *C.int32_t, nIndices C.size_t, opts *C.bridge_options) C.bridge_result {
	var r C.bridge_result
	withRecover(&r, func() error {
		data := C.GoBytes(unsafe.Pointer(dataPtr), C.int(dataLen))
		indices := make([]int, int(nIndices))
		if nIndices > 0 {
			raw := unsafe.Slice(indicesPtr, int(nIndices))
			for i, v := range raw {
				indices[i] = int(v)
			}
		}
		obj, err := ffi.CompileMIRCGU(data, indices, decodeOptions(opts))
		if err != nil {
			return err
		}
		okData(&r, obj)
		return nil
	})
	return r
}

//export generate_ir
func generate_ir(dataPtr *C.uint8_t, dataLen C.size_t, opts *C.bridge_options) C.bridge_result {
	var r C.bridge_result
	withRecover(&r, func() error {
		data := C.GoBytes(unsafe.Pointer(dataPtr), C.int(dataLen))
		text, err := ffi.GenerateIR(data, decodeOptions(opts))
		if err != nil {
			return err
		}
		okText(&r, text)
		return nil
	})
	return r
}

//export free_result
func free_result(r *C.bridge_result) {
	if r == nil {
		return
	}
	if r.data != nil {
		C.free(unsafe.Pointer(r.data))
	}
	if r.ir_text != nil {
		C.free(unsafe.Pointer(r.ir_text))
	}
	if r.error_msg != nil {
		C.free(unsafe.Pointer(r.error_msg))
	}
	*r = C.bridge_result{}
}

//export version
func version() *C.char {
	return C.CString(ffi.Version)
}
