package codegen

import (
	"github.com/hivellm/cranelift-bridge/internal/bridgeerr"
	"github.com/hivellm/cranelift-bridge/internal/translate"
)

// EmitObject compiles every defined function in mod to native machine
// code and wraps the result in the requested container. Functions with
// no body (declared-only externs) contribute nothing but their symbol
// stays resolvable via relocations from functions that call them.
func EmitObject(mod *translate.Module, format ObjectFormat) ([]byte, error) {
	compiled, data, err := compileAll(mod)
	if err != nil {
		return nil, err
	}

	switch format {
	case FormatELF64:
		return BuildELF64(compiled, data)
	case FormatMachO64:
		return nil, bridgeerr.InvalidTargetf("object format mach-o is not implemented; only ELF64 is supported at this revision")
	case FormatCOFF64:
		return nil, bridgeerr.InvalidTargetf("object format coff is not implemented; only ELF64 is supported at this revision")
	default:
		return nil, bridgeerr.InvalidTargetf("unknown object format %d", format)
	}
}

func compileAll(mod *translate.Module) ([]CompiledFunction, []CompiledData, error) {
	compiled := make([]CompiledFunction, 0, len(mod.Functions))
	var data []CompiledData
	seenData := make(map[string]bool)

	for _, fn := range mod.Functions {
		cf, err := CompileFunction(fn)
		if err != nil {
			return nil, nil, bridgeerr.Codegenf("PANIC in function '%s': %v", fn.Name, err)
		}
		if d, ok := mod.Decls[fn.Name]; ok {
			cf.Export = d.Linkage == translate.LinkageExport
		}
		compiled = append(compiled, cf)

		for _, seg := range fn.Data {
			if seenData[seg.Symbol] {
				continue
			}
			seenData[seg.Symbol] = true
			data = append(data, CompiledData{Symbol: seg.Symbol, Bytes: seg.Bytes})
		}
	}
	return compiled, data, nil
}

// GenerateText renders every defined function's textual IR listing,
// concatenated in translation order, for the bridge's generate_ir entry
// point.
func GenerateText(mod *translate.Module) string {
	var out string
	for _, fn := range mod.Functions {
		out += fn.Format()
	}
	return out
}
