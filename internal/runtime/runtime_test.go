package runtime

import (
	"testing"

	"github.com/aivi-lang/aivi/internal/effect"
	"github.com/aivi-lang/aivi/internal/ir"
	"github.com/aivi-lang/aivi/internal/value"
	"github.com/stretchr/testify/require"
)

func prog(defs ...*ir.Def) *ir.Program {
	return &ir.Program{Modules: []*ir.Module{{Name: "Main", Defs: defs}}}
}

func def(name string, clauses ...ir.Clause) *ir.Def {
	return &ir.Def{Name: name, Clauses: clauses}
}

func clause(params []ir.Pattern, body ir.Node) ir.Clause {
	return ir.Clause{Params: params, Body: body}
}

func ident(kind ir.RefKind, name string) *ir.Ident {
	return &ir.Ident{Ref: ir.Ref{Kind: kind, Name: name}}
}

func TestLinkSupportsMutualRecursion(t *testing.T) {
	// isEven n = if n == 0 then True else isOdd(n - 1)
	// isOdd n = if n == 0 then False else isEven(n - 1)
	isEven := def("isEven", clause(
		[]ir.Pattern{&ir.BindPattern{Name: "n"}},
		&ir.If{
			Cond: &ir.Binary{Op: "==", Left: ident(ir.RefLocal, "n"), Right: &ir.IntLit{Value: 0}},
			Then: &ir.Ident{Ref: ir.Ref{Kind: ir.RefBuiltin, Name: "True"}},
			Else: &ir.Apply{Func: ident(ir.RefGlobal, "isOdd"), Args: []ir.Node{
				&ir.Binary{Op: "-", Left: ident(ir.RefLocal, "n"), Right: &ir.IntLit{Value: 1}},
			}},
		},
	))
	isOdd := def("isOdd", clause(
		[]ir.Pattern{&ir.BindPattern{Name: "n"}},
		&ir.If{
			Cond: &ir.Binary{Op: "==", Left: ident(ir.RefLocal, "n"), Right: &ir.IntLit{Value: 0}},
			Then: &ir.Ident{Ref: ir.Ref{Kind: ir.RefBuiltin, Name: "False"}},
			Else: &ir.Apply{Func: ident(ir.RefGlobal, "isEven"), Args: []ir.Node{
				&ir.Binary{Op: "-", Left: ident(ir.RefLocal, "n"), Right: &ir.IntLit{Value: 1}},
			}},
		},
	))

	rt := New(prog(isEven, isOdd))
	fn, ok := rt.globalEnv.Lookup("isEven")
	require.True(t, ok)
	result, err := rt.apply(fn, []*value.Value{value.Int(10)})
	require.NoError(t, err)
	require.Equal(t, true, result.Bool)
}

func TestApplyCurriesBuiltins(t *testing.T) {
	rt := New(prog())
	// Curry a two-arg builtin directly.
	two := builtinRaw("add2", 2, func(args []*value.Value) (*value.Value, error) {
		return value.Int(args[0].Int + args[1].Int), nil
	})
	partial, err := rt.apply(two, []*value.Value{value.Int(3)})
	require.NoError(t, err)
	require.Equal(t, value.KBuiltin, partial.Kind)
	result, err := rt.apply(partial, []*value.Value{value.Int(4)})
	require.NoError(t, err)
	require.Equal(t, int64(7), result.Int)
}

func TestMultiClauseDispatchFirstMatchWins(t *testing.T) {
	// describe 0 = "zero"
	// describe _ = "other"
	describe := def("describe",
		clause([]ir.Pattern{&ir.LiteralPattern{Value: &ir.IntLit{Value: 0}}}, &ir.TextLit{Value: "zero"}),
		clause([]ir.Pattern{&ir.WildcardPattern{}}, &ir.TextLit{Value: "other"}),
	)
	rt := New(prog(describe))
	fn, _ := rt.globalEnv.Lookup("describe")

	zero, err := rt.apply(fn, []*value.Value{value.Int(0)})
	require.NoError(t, err)
	require.Equal(t, "zero", zero.Text)

	other, err := rt.apply(fn, []*value.Value{value.Int(5)})
	require.NoError(t, err)
	require.Equal(t, "other", other.Text)
}

func TestMatchConstructorPattern(t *testing.T) {
	rt := New(prog())
	env := value.NewEnv()
	scrutinee := value.Some(value.Int(42))
	matchExpr := &ir.Match{
		Scrutinee: ident(ir.RefLocal, "x"),
		Cases: []ir.MatchCase{
			{
				Pattern: &ir.ConstructorPattern{
					Ref:  ir.Ref{Kind: ir.RefConstructor, Name: "Some", Arity: 1},
					Args: []ir.Pattern{&ir.BindPattern{Name: "v"}},
				},
				Body: ident(ir.RefLocal, "v"),
			},
			{
				Pattern: &ir.WildcardPattern{},
				Body:    &ir.IntLit{Value: -1},
			},
		},
	}
	env.Set("x", scrutinee)
	result, err := rt.Eval(env, matchExpr)
	require.NoError(t, err)
	require.Equal(t, int64(42), result.Int)
}

func TestEvalPlainBlockReturnsLastExpr(t *testing.T) {
	rt := New(prog())
	env := value.NewEnv()
	b := &ir.Block{
		Kind: ir.BlockPlain,
		Items: []ir.BlockItem{
			{Kind: ir.ItemLet, Pattern: &ir.BindPattern{Name: "a"}, Value: &ir.IntLit{Value: 1}},
			{Kind: ir.ItemExpr, Value: &ir.Binary{Op: "+", Left: ident(ir.RefLocal, "a"), Right: &ir.IntLit{Value: 2}}},
		},
	}
	result, err := rt.evalBlock(env, b)
	require.NoError(t, err)
	require.Equal(t, int64(3), result.Int)
}

func TestEvalEffectBlockRunsUnderRuntime(t *testing.T) {
	rt := New(prog())
	env := value.NewEnv()
	b := &ir.Block{
		Kind: ir.BlockEffect,
		Items: []ir.BlockItem{
			{Kind: ir.ItemBind, Pattern: &ir.BindPattern{Name: "v"}, Value: &ir.Apply{
				Func: &ir.Ident{Ref: ir.Ref{Kind: ir.RefBuiltin, Name: "pure"}},
				Args: []ir.Node{&ir.IntLit{Value: 9}},
			}},
			{Kind: ir.ItemExpr, Value: ident(ir.RefLocal, "v")},
		},
	}
	eff, err := rt.evalBlock(env, b)
	require.NoError(t, err)
	require.Equal(t, value.KEffect, eff.Kind)

	erun := effect.NewRuntime(effect.Host{})
	result, err := erun.RunEffectValue(eff)
	require.NoError(t, err)
	require.Equal(t, int64(9), result.Int)
}

func TestEvalGenerateBlockMaterializesYields(t *testing.T) {
	rt := New(prog())
	env := value.NewEnv()
	b := &ir.Block{
		Kind: ir.BlockGenerate,
		Items: []ir.BlockItem{
			{Kind: ir.ItemBind, Pattern: &ir.BindPattern{Name: "x"}, Value: &ir.ListLit{
				Items: []ir.Node{&ir.IntLit{Value: 1}, &ir.IntLit{Value: 2}, &ir.IntLit{Value: 3}},
			}},
			{Kind: ir.ItemFilter, Value: &ir.Binary{Op: "!=", Left: ident(ir.RefLocal, "x"), Right: &ir.IntLit{Value: 2}}},
			{Kind: ir.ItemYield, Value: ident(ir.RefLocal, "x")},
		},
	}
	gen, err := rt.evalBlock(env, b)
	require.NoError(t, err)
	require.Equal(t, value.KGenerator, gen.Kind)

	items, err := rt.materializeGenerator(gen)
	require.NoError(t, err)
	require.Len(t, items, 2)
	require.Equal(t, int64(1), items[0].Int)
	require.Equal(t, int64(3), items[1].Int)
}

// resourceValue builds a Resource whose acquire step records name into
// acquired and whose cleanup records name into closed, for asserting
// acquisition and cleanup order across a block.
func resourceValue(name string, acquired, closed *[]string) *value.Value {
	return &value.Value{Kind: value.KResource, Resource: func(rtAny interface{}) (*value.Value, *value.Value, error) {
		*acquired = append(*acquired, name)
		cleanup := &value.Value{Kind: value.KEffect, Effect: func(interface{}) (*value.Value, error) {
			*closed = append(*closed, name)
			return value.Unit(), nil
		}}
		return value.Text(name), cleanup, nil
	}}
}

func TestEffectBlockClosesResourcesInReverseAcquisitionOrder(t *testing.T) {
	rt := New(prog())
	env := value.NewEnv()
	var acquired, closed []string
	env.Set("resA", resourceValue("a", &acquired, &closed))
	env.Set("resB", resourceValue("b", &acquired, &closed))

	b := &ir.Block{
		Kind: ir.BlockEffect,
		Items: []ir.BlockItem{
			{Kind: ir.ItemBind, Pattern: &ir.BindPattern{Name: "h1"}, Value: ident(ir.RefLocal, "resA")},
			{Kind: ir.ItemBind, Pattern: &ir.BindPattern{Name: "h2"}, Value: ident(ir.RefLocal, "resB")},
			{Kind: ir.ItemExpr, Value: ident(ir.RefLocal, "h2")},
		},
	}
	eff, err := rt.evalBlock(env, b)
	require.NoError(t, err)

	erun := effect.NewRuntime(effect.Host{})
	result, err := erun.RunEffectValue(eff)
	require.NoError(t, err)
	require.Equal(t, "b", result.Text)
	require.Equal(t, []string{"a", "b"}, acquired)
	require.Equal(t, []string{"b", "a"}, closed)
}

func TestEffectBlockClosesResourceWhenBodyFailsAfterAcquire(t *testing.T) {
	rt := New(prog())
	env := value.NewEnv()
	var acquired, closed []string
	env.Set("res", resourceValue("h", &acquired, &closed))
	boom := &value.Value{Kind: value.KEffect, Effect: func(interface{}) (*value.Value, error) {
		return nil, &effect.ValueError{Payload: value.Text("boom")}
	}}
	env.Set("boom", boom)

	b := &ir.Block{
		Kind: ir.BlockEffect,
		Items: []ir.BlockItem{
			{Kind: ir.ItemBind, Pattern: &ir.BindPattern{Name: "h"}, Value: ident(ir.RefLocal, "res")},
			{Kind: ir.ItemExpr, Value: ident(ir.RefLocal, "boom")},
		},
	}
	eff, err := rt.evalBlock(env, b)
	require.NoError(t, err)

	erun := effect.NewRuntime(effect.Host{})
	_, runErr := erun.RunEffectValue(eff)
	require.Error(t, runErr)
	verr, ok := runErr.(*effect.ValueError)
	require.True(t, ok)
	require.Equal(t, "boom", verr.Payload.Text)
	require.Equal(t, []string{"h"}, acquired)
	require.Equal(t, []string{"h"}, closed)
}

func TestEffectBlockCleanupErrorSurfacesOnlyWhenBodySucceeds(t *testing.T) {
	rt := New(prog())
	env := value.NewEnv()
	failingCleanup := &value.Value{Kind: value.KResource, Resource: func(interface{}) (*value.Value, *value.Value, error) {
		cleanup := &value.Value{Kind: value.KEffect, Effect: func(interface{}) (*value.Value, error) {
			return nil, &effect.ValueError{Payload: value.Text("cleanup failed")}
		}}
		return value.Text("h"), cleanup, nil
	}}
	env.Set("res", failingCleanup)

	b := &ir.Block{
		Kind: ir.BlockEffect,
		Items: []ir.BlockItem{
			{Kind: ir.ItemBind, Pattern: &ir.BindPattern{Name: "h"}, Value: ident(ir.RefLocal, "res")},
			{Kind: ir.ItemExpr, Value: ident(ir.RefLocal, "h")},
		},
	}
	eff, err := rt.evalBlock(env, b)
	require.NoError(t, err)

	erun := effect.NewRuntime(effect.Host{})
	_, runErr := erun.RunEffectValue(eff)
	require.Error(t, runErr)
	verr, ok := runErr.(*effect.ValueError)
	require.True(t, ok)
	require.Equal(t, "cleanup failed", verr.Payload.Text)
}

func TestPatchFieldSegmentUpdatesCopy(t *testing.T) {
	rt := New(prog())
	env := value.NewEnv()
	original := value.Record(map[string]*value.Value{
		"name": value.Text("a"),
		"age":  value.Int(1),
	})
	patch := &ir.Patch{
		Target: &ir.Ident{Ref: ir.Ref{Kind: ir.RefLocal, Name: "r"}},
		Fields: []ir.PatchField{
			{Path: []ir.PatchSegment{{Kind: ir.PatchFieldSeg, Field: "age"}}, Value: &ir.IntLit{Value: 2}},
		},
	}
	env.Set("r", original)
	updated, err := rt.evalPatch(env, patch)
	require.NoError(t, err)
	require.Equal(t, int64(2), updated.Record["age"].Int)
	require.Equal(t, int64(1), original.Record["age"].Int)
}

func TestPatchIndexAllAppliesUpdateFunctionToEveryElement(t *testing.T) {
	rt := New(prog())
	env := value.NewEnv()
	list := value.List([]*value.Value{value.Int(1), value.Int(2), value.Int(3)})
	inc := builtin1("inc", func(v *value.Value) (*value.Value, error) {
		return value.Int(v.Int + 1), nil
	})
	env.Set("l", list)
	env.Set("inc", inc)
	patch := &ir.Patch{
		Target: ident(ir.RefLocal, "l"),
		Fields: []ir.PatchField{
			{Path: []ir.PatchSegment{{Kind: ir.PatchIndexAllSeg}}, Value: ident(ir.RefLocal, "inc")},
		},
	}
	updated, err := rt.evalPatch(env, patch)
	require.NoError(t, err)
	require.Equal(t, int64(2), updated.List[0].Int)
	require.Equal(t, int64(3), updated.List[1].Int)
	require.Equal(t, int64(4), updated.List[2].Int)
}
