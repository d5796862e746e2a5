package ir

import (
	"testing"

	"github.com/aivi-lang/aivi/internal/parser"
)

func mustLower(t *testing.T, src string, builtins map[string]bool) *Program {
	t.Helper()
	mods, diags := parser.Parse("test.aivi", src)
	if len(diags) != 0 {
		t.Fatalf("parse diagnostics: %v", diags)
	}
	if builtins == nil {
		builtins = map[string]bool{}
	}
	builtins["pure"] = true
	prog, ldiags := NewLowerer(builtins).LowerProgram(mods)
	if len(ldiags) != 0 {
		t.Fatalf("lowering diagnostics: %v", ldiags)
	}
	return prog
}

func findDef(prog *Program, name string) *Def {
	for _, m := range prog.Modules {
		for _, d := range m.Defs {
			if d.Name == name {
				return d
			}
		}
	}
	return nil
}

func TestLowerConstructorResolvesToRefConstructor(t *testing.T) {
	prog := mustLower(t, `module demo = {
		type Shape = Circle(radius: Float) | Square(side: Float)
		mk r = Circle(r)
	}`, nil)
	def := findDef(prog, "mk")
	if def == nil {
		t.Fatalf("mk not found")
	}
	apply, ok := def.Clauses[0].Body.(*Apply)
	if !ok {
		t.Fatalf("expected Apply body, got %T", def.Clauses[0].Body)
	}
	ident, ok := apply.Func.(*Ident)
	if !ok || ident.Ref.Kind != RefConstructor || ident.Ref.Arity != 1 {
		t.Fatalf("expected constructor ref arity 1, got %+v", ident)
	}
}

func TestLowerFieldSectionBecomesLambda(t *testing.T) {
	prog := mustLower(t, `module demo = {
		getName = .name
	}`, nil)
	def := findDef(prog, "getName")
	lam, ok := def.Clauses[0].Body.(*Lambda)
	if !ok {
		t.Fatalf("expected Lambda, got %T", def.Clauses[0].Body)
	}
	fa, ok := lam.Body.(*FieldAccess)
	if !ok || fa.Field != "name" {
		t.Fatalf("expected FieldAccess(name), got %+v", lam.Body)
	}
}

func TestLowerHeadlessMatchBecomesLambda(t *testing.T) {
	prog := mustLower(t, `module demo = {
		type Shape = Circle(radius: Float) | Square(side: Float)
		describe = match {
			Circle(r) => r,
			Square(s) => s,
		}
	}`, nil)
	def := findDef(prog, "describe")
	lam, ok := def.Clauses[0].Body.(*Lambda)
	if !ok {
		t.Fatalf("expected Lambda wrapping headless match, got %T", def.Clauses[0].Body)
	}
	if _, ok := lam.Body.(*Match); !ok {
		t.Fatalf("expected Match body inside lambda, got %T", lam.Body)
	}
}

func TestLowerUnresolvedNameReportsDiagnostic(t *testing.T) {
	mods, diags := parser.Parse("test.aivi", `module demo = {
		broken = totallyUnknownThing
	}`)
	if len(diags) != 0 {
		t.Fatalf("parse diagnostics: %v", diags)
	}
	_, ldiags := NewLowerer(map[string]bool{}).LowerProgram(mods)
	if len(ldiags) == 0 {
		t.Fatalf("expected an unresolved-name diagnostic")
	}
}

func TestLowerDomainMembersAreAlsoGlobals(t *testing.T) {
	prog := mustLower(t, `module demo = {
		domain Greeting = {
			hello name = name
		}
		useIt n = hello(n)
	}`, nil)
	def := findDef(prog, "useIt")
	if def == nil {
		t.Fatalf("useIt not found")
	}
	apply, ok := def.Clauses[0].Body.(*Apply)
	if !ok {
		t.Fatalf("expected Apply, got %T", def.Clauses[0].Body)
	}
	ident, ok := apply.Func.(*Ident)
	if !ok || ident.Ref.Kind != RefGlobal || ident.Ref.Name != "hello" {
		t.Fatalf("expected global ref to hello, got %+v", apply.Func)
	}
	if len(prog.Modules[0].Domains) != 1 || prog.Modules[0].Domains[0].Name != "Greeting" {
		t.Fatalf("expected one Greeting domain, got %+v", prog.Modules[0].Domains)
	}
}
