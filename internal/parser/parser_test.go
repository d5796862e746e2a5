package parser

import (
	"testing"

	"github.com/aivi-lang/aivi/internal/ast"
)

func mustModule(t *testing.T, src string) *ast.Module {
	t.Helper()
	mods, diags := Parse("test.aivi", src)
	if len(diags) != 0 {
		t.Fatalf("unexpected diagnostics: %v", diags)
	}
	if len(mods) != 1 {
		t.Fatalf("expected 1 module, got %d", len(mods))
	}
	return mods[0]
}

func TestParseEmptyModule(t *testing.T) {
	m := mustModule(t, "module demo = {}")
	if m.Name != "demo" {
		t.Fatalf("got name %q", m.Name)
	}
}

func TestParseDefinitionAndExport(t *testing.T) {
	m := mustModule(t, `module demo = {
		export add
		add a b = a + b
	}`)
	if len(m.Exports) != 1 || m.Exports[0].Name != "add" {
		t.Fatalf("bad exports: %+v", m.Exports)
	}
	if len(m.Items) != 1 {
		t.Fatalf("expected 1 item, got %d", len(m.Items))
	}
	def, ok := m.Items[0].(*ast.Definition)
	if !ok {
		t.Fatalf("expected *ast.Definition, got %T", m.Items[0])
	}
	if def.Name.Name != "add" || len(def.Params) != 2 {
		t.Fatalf("bad definition: %+v", def)
	}
	bin, ok := def.Body.(*ast.BinaryExpr)
	if !ok || bin.Op != "+" {
		t.Fatalf("expected a+b binary body, got %+v", def.Body)
	}
}

func TestParseADTVariants(t *testing.T) {
	m := mustModule(t, `module demo = {
		type Option a = None | Some(value: a)
	}`)
	td := m.Items[0].(*ast.TypeDecl)
	if len(td.Variants) != 2 {
		t.Fatalf("expected 2 variants, got %d: %+v", len(td.Variants), td.Variants)
	}
	if td.Variants[0].Name.Name != "None" || td.Variants[1].Name.Name != "Some" {
		t.Fatalf("bad variant names: %+v", td.Variants)
	}
	if len(td.Variants[1].Fields) != 1 {
		t.Fatalf("expected 1 field on Some, got %+v", td.Variants[1].Fields)
	}
}

func TestParseTypeAlias(t *testing.T) {
	m := mustModule(t, `module demo = {
		type Pair a = (a, a)
	}`)
	td := m.Items[0].(*ast.TypeDecl)
	if td.Alias == nil {
		t.Fatalf("expected alias, got variants %+v", td.Variants)
	}
	if _, ok := td.Alias.(*ast.TypeTuple); !ok {
		t.Fatalf("expected tuple alias, got %T", td.Alias)
	}
}

func TestParseCallVsApply(t *testing.T) {
	m := mustModule(t, `module demo = {
		f x = g(x) h x
	}`)
	def := m.Items[0].(*ast.Definition)
	apply, ok := def.Body.(*ast.Apply)
	if !ok {
		t.Fatalf("expected outer Apply, got %T", def.Body)
	}
	if _, ok := apply.Arg.(*ast.IdentExpr); !ok {
		t.Fatalf("expected ident arg to apply, got %T", apply.Arg)
	}
	inner, ok := apply.Func.(*ast.Apply)
	if !ok {
		t.Fatalf("expected (g(x) h) as apply func, got %+v", apply.Func)
	}
	if h, ok := inner.Arg.(*ast.IdentExpr); !ok || h.Name.Name != "h" {
		t.Fatalf("expected h as inner apply arg, got %+v", inner.Arg)
	}
	if _, ok := inner.Func.(*ast.CallExpr); !ok {
		t.Fatalf("expected adjacent g(x) to parse as a call, got %T", inner.Func)
	}
}

func TestParseMatchExpr(t *testing.T) {
	m := mustModule(t, `module demo = {
		f x = match x {
			None => 0,
			Some(v) => v,
		}
	}`)
	def := m.Items[0].(*ast.Definition)
	match, ok := def.Body.(*ast.MatchExpr)
	if !ok {
		t.Fatalf("expected MatchExpr, got %T", def.Body)
	}
	if len(match.Cases) != 2 {
		t.Fatalf("expected 2 cases, got %d", len(match.Cases))
	}
}

func TestParseRecordVsBlock(t *testing.T) {
	m := mustModule(t, `module demo = {
		r = { x: 1, y: 2 }
		b = { x }
	}`)
	r := m.Items[0].(*ast.Definition)
	if _, ok := r.Body.(*ast.RecordExpr); !ok {
		t.Fatalf("expected record, got %T", r.Body)
	}
	b := m.Items[1].(*ast.Definition)
	if _, ok := b.Body.(*ast.Block); !ok {
		t.Fatalf("expected block, got %T", b.Body)
	}
}

func TestParseEffectBlockBind(t *testing.T) {
	m := mustModule(t, `module demo = {
		f x = effect {
			v <- readFile(x)
			v
		}
	}`)
	def := m.Items[0].(*ast.Definition)
	blk, ok := def.Body.(*ast.Block)
	if !ok || blk.Kind != ast.BlockEffect {
		t.Fatalf("expected effect block, got %+v", def.Body)
	}
	if len(blk.Items) != 2 || blk.Items[0].Kind != ast.ItemBind {
		t.Fatalf("expected bind as first item, got %+v", blk.Items)
	}
}

func TestParsePatchOperator(t *testing.T) {
	m := mustModule(t, `module demo = {
		g r = r <| { x: 1 }
	}`)
	def := m.Items[0].(*ast.Definition)
	patch, ok := def.Body.(*ast.PatchExpr)
	if !ok {
		t.Fatalf("expected PatchExpr, got %T", def.Body)
	}
	if len(patch.Fields) != 1 || patch.Fields[0].Path[0].Field != "x" {
		t.Fatalf("bad patch fields: %+v", patch.Fields)
	}
}

func TestParseClassAndInstance(t *testing.T) {
	m := mustModule(t, `module demo = {
		class Show a = {
			show : a
		}
		instance Show Int = {
			show x = x
		}
	}`)
	if len(m.Items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(m.Items))
	}
	if _, ok := m.Items[0].(*ast.ClassDecl); !ok {
		t.Fatalf("expected ClassDecl, got %T", m.Items[0])
	}
	if _, ok := m.Items[1].(*ast.InstanceDecl); !ok {
		t.Fatalf("expected InstanceDecl, got %T", m.Items[1])
	}
}

func TestParseSigilRegexLiteral(t *testing.T) {
	m := mustModule(t, `module demo = {
		p = ~r/a+/
	}`)
	def := m.Items[0].(*ast.Definition)
	lit, ok := def.Body.(*ast.Literal)
	if !ok || lit.Kind != ast.LitSigil || lit.SigilTag != "r" {
		t.Fatalf("expected sigil literal, got %+v", def.Body)
	}
}

func TestParsePreludeInjected(t *testing.T) {
	m := mustModule(t, `module demo = {}`)
	if len(m.Uses) != 1 || m.Uses[0].ModuleName != "prelude" {
		t.Fatalf("expected injected prelude use, got %+v", m.Uses)
	}
}

func TestParseNoPreludeSuppressesInjection(t *testing.T) {
	m := mustModule(t, `module demo = {
		@no_prelude
		x = 1
	}`)
	for _, u := range m.Uses {
		if u.ModuleName == "prelude" {
			t.Fatalf("expected no injected prelude, got %+v", m.Uses)
		}
	}
}
