package types

import (
	"testing"

	"github.com/aivi-lang/aivi/internal/parser"
)

func mustInfer(t *testing.T, src string) map[string]*Env {
	t.Helper()
	mods, diags := parser.Parse("test.aivi", src)
	if len(diags) != 0 {
		t.Fatalf("parse diagnostics: %v", diags)
	}
	envs, tdiags := InferValueTypes(mods)
	if len(tdiags) != 0 {
		t.Fatalf("type diagnostics: %v", tdiags)
	}
	return envs
}

func isFunc(ty Type) (*TFunc, bool) {
	f, ok := ty.(*TFunc)
	return f, ok
}

func TestInferArithmeticIsSelfSameType(t *testing.T) {
	envs := mustInfer(t, `module demo = {
		add a b = a + b
	}`)
	sc, ok := envs["demo"].Lookup("add")
	if !ok {
		t.Fatalf("add not bound")
	}
	ty := Instantiate(&FreshSource{}, sc)
	f1, ok := isFunc(ty)
	if !ok {
		t.Fatalf("expected function type, got %s", ty.String())
	}
	f2, ok := isFunc(f1.Result)
	if !ok {
		t.Fatalf("expected curried function, got %s", f1.Result.String())
	}
	// a, b, and the result must all be the same type variable.
	v1, ok1 := f1.Param.(*TVar)
	v2, ok2 := f2.Param.(*TVar)
	v3, ok3 := f2.Result.(*TVar)
	if !ok1 || !ok2 || !ok3 || v1.ID != v2.ID || v2.ID != v3.ID {
		t.Fatalf("expected a single shared type variable, got %s -> %s -> %s", f1.Param, f2.Param, f2.Result)
	}
}

func TestInferConstructorAndMatch(t *testing.T) {
	envs := mustInfer(t, `module demo = {
		type Shape = Circle(radius: Float) | Square(side: Float)
		area s = match s {
			Circle(r) => r,
			Square(side) => side,
		}
	}`)
	sc, ok := envs["demo"].Lookup("area")
	if !ok {
		t.Fatalf("area not bound")
	}
	ty := Instantiate(&FreshSource{}, sc)
	fn, ok := isFunc(ty)
	if !ok {
		t.Fatalf("expected function, got %s", ty.String())
	}
	if fn.Result.String() != "Float" {
		t.Fatalf("expected Float result, got %s", fn.Result.String())
	}
}

func TestInferEffectBlockBind(t *testing.T) {
	envs := mustInfer(t, `module demo = {
		greet name = effect {
			v <- pure(name)
			v
		}
	}`)
	sc, ok := envs["demo"].Lookup("greet")
	if !ok {
		t.Fatalf("greet not bound")
	}
	ty := Instantiate(&FreshSource{}, sc)
	fn, ok := isFunc(ty)
	if !ok {
		t.Fatalf("expected function, got %s", ty.String())
	}
	eff, ok := fn.Result.(*TCon)
	if !ok || eff.Name != EffectCon {
		t.Fatalf("expected Effect result, got %s", fn.Result.String())
	}
}

func TestInferRowOperatorAliasTyping(t *testing.T) {
	envs := mustInfer(t, `module demo = {
		type Person = { name: Text, age: Int, email: Text }
		type Contact = Pick {name, email} Person
		greetName p = p.name
	}`)
	sc, ok := envs["demo"].Lookup("greetName")
	if !ok {
		t.Fatalf("greetName not bound")
	}
	ty := Instantiate(&FreshSource{}, sc)
	fn, ok := isFunc(ty)
	if !ok {
		t.Fatalf("expected function, got %s", ty.String())
	}
	// p is unannotated, so p.name is row-polymorphic: {name: a, ...} -> a.
	param, ok := fn.Param.(*TRecord)
	if !ok || !param.Open || param.Fields["name"] == nil || fn.Result.String() != param.Fields["name"].String() {
		t.Fatalf("expected {name: a, ...} -> a, got %s", ty.String())
	}
}

func TestApplyRowOpPickOmitUnknownField(t *testing.T) {
	src := &TRecord{Fields: map[string]Type{"a": TInt(), "b": TText()}}
	if _, err := ApplyRowOp(RowPick, src, []string{"a", "c"}, nil); err == nil {
		t.Fatalf("expected unknown-field error")
	}
	picked, err := ApplyRowOp(RowPick, src, []string{"a"}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(picked.Fields) != 1 || picked.Fields["a"] == nil {
		t.Fatalf("unexpected picked record: %+v", picked)
	}
}

func TestApplyRowOpOptionalIdempotent(t *testing.T) {
	src := &TRecord{Fields: map[string]Type{"a": TInt()}}
	once, err := ApplyRowOp(RowOptional, src, []string{"a"}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	twice, err := ApplyRowOp(RowOptional, once, []string{"a"}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if once.Fields["a"].String() != twice.Fields["a"].String() {
		t.Fatalf("Optional is not idempotent: %s vs %s", once.Fields["a"], twice.Fields["a"])
	}
}

func TestClassInstanceDispatchAmbiguousAndMissing(t *testing.T) {
	ce := NewClassEnv()
	ce.AddClass(&ClassDef{Name: "Show", Params: []string{"a"}, Members: map[string]Type{"show": TText()}})
	ce.AddInstance(&InstanceDef{Class: "Show", ParamTypes: []Type{TInt()}, Methods: map[string]Type{"show": &TFunc{Param: TInt(), Result: TText()}}})

	if _, err := ce.ResolveMember(Aliases{}, "show", []Type{TInt()}); err != nil {
		t.Fatalf("expected a match: %v", err)
	}
	if _, err := ce.ResolveMember(Aliases{}, "show", []Type{TBool()}); err == nil {
		t.Fatalf("expected no-instance error for Bool")
	}

	ce.AddInstance(&InstanceDef{Class: "Show", ParamTypes: []Type{TInt()}, Methods: map[string]Type{"show": &TFunc{Param: TInt(), Result: TText()}}})
	if _, err := ce.ResolveMember(Aliases{}, "show", []Type{TInt()}); err == nil {
		t.Fatalf("expected ambiguous-instance error with two matching Int instances")
	}
}
