// Package aivi is the driver seam over the lexer/parser/type-checker/
// lowering/runtime pipeline: parse_modules, infer_value_types,
// emit_native, and Runtime::new(...).run_effect_value, per spec.md §6
// "External interfaces". It owns no state of its own beyond what a
// single compilation needs; everything else lives in internal/*.
package aivi

import (
	"fmt"

	"github.com/aivi-lang/aivi/internal/ast"
	"github.com/aivi-lang/aivi/internal/backend"
	"github.com/aivi-lang/aivi/internal/diag"
	"github.com/aivi-lang/aivi/internal/ir"
	"github.com/aivi-lang/aivi/internal/parser"
	"github.com/aivi-lang/aivi/internal/runtime"
	"github.com/aivi-lang/aivi/internal/types"
	"github.com/aivi-lang/aivi/internal/value"
)

// ParseModules lexes and parses one source file's modules.
func ParseModules(path, text string) ([]*ast.Module, []*diag.Diagnostic) {
	return parser.Parse(path, text)
}

// InferValueTypes type-checks a compilation set, returning one scheme
// environment per module name.
func InferValueTypes(modules []*ast.Module) (map[string]*types.Env, []*diag.Diagnostic) {
	return types.InferValueTypes(modules)
}

// EmitNative lowers modules to resolved IR and compiles them to Go
// source implementing the same value universe and apply protocol as
// internal/runtime, per spec.md §4.5.
func EmitNative(modules []*ast.Module, kind backend.Kind) (string, error) {
	prog, diags := lower(modules)
	if hasErrors(diags) {
		return "", fmt.Errorf("aivi: cannot emit native code: %d diagnostics", len(diags))
	}
	return backend.Emit(prog, kind)
}

// Program is a fully parsed, checked, and lowered compilation set, built
// once by Compile and then reusable for repeated interpretation or
// native emission without re-running the front end.
type Program struct {
	Modules     []*ast.Module
	Diagnostics []*diag.Diagnostic
	IR          *ir.Program
	rt          *runtime.Runtime
}

// Compile runs the full front end (parse, infer, lower) over a single
// source file and links a tree-walking Runtime over the result. Front-
// end diagnostics are returned alongside the Program so a caller can
// decide whether to proceed despite non-fatal ones.
func Compile(path, text string) (*Program, error) {
	modules, pdiags := ParseModules(path, text)
	all := append([]*diag.Diagnostic{}, pdiags...)
	if hasErrors(pdiags) {
		return &Program{Modules: modules, Diagnostics: all}, fmt.Errorf("aivi: parse failed with %d diagnostics", len(pdiags))
	}

	_, tdiags := InferValueTypes(modules)
	all = append(all, tdiags...)
	if hasErrors(tdiags) {
		return &Program{Modules: modules, Diagnostics: all}, fmt.Errorf("aivi: type inference failed with %d diagnostics", len(tdiags))
	}

	prog, ldiags := lower(modules)
	all = append(all, ldiags...)
	if hasErrors(ldiags) {
		return &Program{Modules: modules, Diagnostics: all, IR: prog}, fmt.Errorf("aivi: lowering failed with %d diagnostics", len(ldiags))
	}

	return &Program{Modules: modules, Diagnostics: all, IR: prog, rt: runtime.New(prog)}, nil
}

// Run drives the named global (conventionally a module's `main`,
// spec.md's examples all export one) as an effect to completion,
// following Runtime::new(context, cancel).run_effect_value(effect).
func (p *Program) Run(name string) (*value.Value, error) {
	if p.rt == nil {
		return nil, fmt.Errorf("aivi: program was not fully compiled")
	}
	return p.rt.RunEffectValue(name)
}

func lower(modules []*ast.Module) (*ir.Program, []*diag.Diagnostic) {
	lowerer := ir.NewLowerer(runtime.BuiltinNames())
	return lowerer.LowerProgram(modules)
}

func hasErrors(diags []*diag.Diagnostic) bool {
	for _, d := range diags {
		if d.Severity == diag.SeverityError {
			return true
		}
	}
	return false
}
