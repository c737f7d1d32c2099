// Package translate lowers a decoded MIR module into the backend's SSA
// intermediate representation, function by function, the way the
// reference Cranelift bridge's ModuleTranslator and FunctionTranslator
// do it.
package translate

import (
	"fmt"
	"sort"

	"github.com/dolthub/swiss"
	"golang.org/x/exp/slices"

	"github.com/hivellm/cranelift-bridge/internal/abi"
	"github.com/hivellm/cranelift-bridge/internal/ir"
	"github.com/hivellm/cranelift-bridge/internal/mir"
	"github.com/hivellm/cranelift-bridge/internal/typelayout"
)

// Linkage mirrors the three linkage classes a declared function can carry.
type Linkage uint8

const (
	LinkageLocal Linkage = iota
	LinkageExport
	LinkageImport
)

// decl is what the module translator tracks per declared symbol.
type decl struct {
	Symbol     string
	Linkage    Linkage
	ParamTypes []ir.Type
	ResultType ir.Type
}

// Module is the translated result of one MIR module: one backend
// ir.Function per defined MIR function (functions with no blocks are
// declared but never defined, mirroring the reference translator's
// "skip empty functions" rule), plus the declaration table code
// generation needs to resolve call targets. Decls is keyed by both the
// MIR function name and its resolved symbol, the same dual-keying the
// translator itself uses internally.
type Module struct {
	Functions []*ir.Function
	Decls     map[string]decl
}

// Translator holds state across the two-phase translation of a MIR
// module: declare every function first (so calls may reference any
// function regardless of definition order) and only then define bodies.
type Translator struct {
	structDefs *swiss.Map[string, mir.StructDef]
	enumDefs   *swiss.Map[string, mir.EnumDef]

	// funcIDs maps a MIR function name to its resolved declaration,
	// mirroring func_ids in the reference translator. The MIR-name entry
	// always holds the latest declaration ("latest wins" on a
	// monomorphization collision is a single map write); registerDecl also
	// stores each declaration under its own symbol when that differs.
	funcIDs map[string]decl
}

// NewTranslator creates an empty translator ready for TranslateModule.
func NewTranslator() *Translator {
	return &Translator{
		structDefs: swiss.NewMap[string, mir.StructDef](8),
		enumDefs:   swiss.NewMap[string, mir.EnumDef](8),
		funcIDs:    make(map[string]decl),
	}
}

// resolveSymbolName applies the tml_ prefixing rule: names already
// carrying the prefix, and the fixed runtime ABI names, pass through
// unchanged; everything else is prefixed.
func resolveSymbolName(mirName string) string {
	if len(mirName) >= 4 && mirName[:4] == "tml_" {
		return mirName
	}
	if abi.IsRuntime(mirName) {
		return mirName
	}
	return "tml_" + mirName
}

func buildSignature(fn *mir.Function) ([]ir.Type, ir.Type) {
	params := make([]ir.Type, 0, len(fn.Params))
	for _, p := range fn.Params {
		if t, ok := typelayout.ToIRType(p.Type); ok {
			params = append(params, t)
		}
	}
	result := ir.TypeInvalid
	if t, ok := typelayout.ToIRType(fn.ReturnType); ok {
		result = t
	}
	return params, result
}

func sigHash(types []ir.Type, weight func(i int, t ir.Type) int) int {
	h := 0
	for i, t := range types {
		h += weight(i, t)
	}
	return h
}

// declareFunction registers fn's signature via registerDecl.
func (tr *Translator) declareFunction(fn *mir.Function) {
	params, result := buildSignature(fn)
	symbol := resolveSymbolName(fn.Name)
	linkage := LinkageLocal
	if fn.IsPublic || fn.Name == "main" || fn.Name == "tml_main" {
		linkage = LinkageExport
	}
	tr.registerDecl(fn.Name, symbol, linkage, params, result)
}

// registerDecl is the shared collision policy behind every declaration
// path (user-function declaration and just-in-time call-site
// declaration alike): same MIR name + same signature is idempotent
// (re-declaration updates funcIDs to the latest symbol); same MIR name +
// different signature gets a deterministic disambiguated symbol,
// `{symbol}${nparams}p{phash}r{rhash}`, and funcIDs records the NEWEST
// declaration under the plain MIR name ("latest wins" for call-site
// resolution), matching the reference translator exactly.
func (tr *Translator) registerDecl(mirName, symbol string, linkage Linkage, params []ir.Type, result ir.Type) decl {
	existing, ok := tr.funcIDs[mirName]
	if !ok || sameSignature(existing, params, result) {
		d := decl{Symbol: symbol, Linkage: linkage, ParamTypes: params, ResultType: result}
		tr.funcIDs[mirName] = d
		if symbol != mirName {
			tr.funcIDs[symbol] = d
		}
		return d
	}

	paramHash := sigHash(params, func(i int, t ir.Type) int { return (i + 1) * int(t.Bytes()*8) })
	retHash := 0
	if result != ir.TypeInvalid {
		retHash = int(result.Bytes() * 8)
	}
	unique := fmt.Sprintf("%s$%dp%dr%d", symbol, len(params), paramHash, retHash)
	d := decl{Symbol: unique, Linkage: linkage, ParamTypes: params, ResultType: result}
	tr.funcIDs[mirName] = d
	tr.funcIDs[unique] = d
	return d
}

// resolveOrDeclareCall resolves a call site's target function, declaring
// it on the fly as an Import with an all-i64 parameter list if it is not
// already known under either its MIR name or its prefixed symbol —
// covering calls to functions the module translator has not seen (e.g.
// forward references in a CGU-partial translation).
func (tr *Translator) resolveOrDeclareCall(mirName string, nargs int, retType mir.Type) decl {
	if d, ok := tr.funcIDs[mirName]; ok {
		return d
	}
	symbol := resolveSymbolName(mirName)
	if d, ok := tr.funcIDs[symbol]; ok {
		return d
	}
	params := make([]ir.Type, nargs)
	for i := range params {
		params[i] = ir.I64
	}
	result := ir.TypeInvalid
	if t, ok := typelayout.ToIRType(retType); ok {
		result = t
	}
	return tr.registerDecl(mirName, symbol, LinkageImport, params, result)
}

func sameSignature(d decl, params []ir.Type, result ir.Type) bool {
	if d.ResultType != result || len(d.ParamTypes) != len(params) {
		return false
	}
	for i, p := range params {
		if d.ParamTypes[i] != p {
			return false
		}
	}
	return true
}

func (tr *Translator) declareRuntime() {
	for _, f := range abi.Runtime {
		if _, ok := tr.funcIDs[f.Name]; ok {
			continue // already declared as a user function
		}
		tr.funcIDs[f.Name] = decl{Symbol: f.Name, Linkage: LinkageImport, ParamTypes: f.Params, ResultType: f.Result}
	}
}

// TranslateModule runs both phases over mod. If indices is non-nil, only
// those function indices are defined (a compilation-unit partition);
// declaration still always runs against every function, exactly as the
// reference translator does, so a CGU-local body can still call into a
// sibling CGU's exported function.
func TranslateModule(mod *mir.Module, indices []int) (*Module, error) {
	tr := NewTranslator()

	for _, s := range mod.Structs {
		tr.structDefs.Put(s.Name, s)
	}
	for _, e := range mod.Enums {
		tr.enumDefs.Put(e.Name, e)
	}

	for i := range mod.Functions {
		tr.declareFunction(&mod.Functions[i])
	}
	tr.declareRuntime()

	idx := indices
	if idx == nil {
		idx = make([]int, len(mod.Functions))
		for i := range mod.Functions {
			idx[i] = i
		}
	} else {
		idx = slices.Clone(idx)
		sort.Ints(idx)
	}

	out := &Module{Decls: make(map[string]decl, len(tr.funcIDs))}
	for k, v := range tr.funcIDs {
		out.Decls[k] = v
	}

	defined := make(map[string]bool)
	for _, i := range idx {
		if i < 0 || i >= len(mod.Functions) {
			continue
		}
		fn := &mod.Functions[i]
		if defined[fn.Name] {
			continue
		}
		defined[fn.Name] = true

		if len(fn.Blocks) == 0 {
			continue // declared, never defined — matches signature-only externs
		}

		built, err := tr.translateFunction(fn)
		if err != nil {
			return nil, err
		}
		out.Functions = append(out.Functions, built)
	}

	return out, nil
}
