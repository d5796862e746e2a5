package types

import (
	"strconv"

	"github.com/aivi-lang/aivi/internal/ast"
)

// desugarHoles rewrites a definition body so that every `_` used in
// expression position (spec.md §4.2 "Holes") becomes a synthesized
// lambda parameter, turning the smallest enclosing expression that
// contains it directly into a unary (or higher-arity, for multiple
// holes) lambda. `.field` field sections desugar the same way, via
// FieldAccess on a synthesized receiver.
//
// The walk is bottom-up: children are desugared first, so a hole
// nested inside an already-wrapped child no longer appears bare by
// the time its ancestor is checked, and the wrapping lambda lands on
// the innermost composite expression that held the hole directly.
func desugarHoles(e ast.Expr) ast.Expr {
	return desugarHolesAt(e, true)
}

func desugarHolesAt(e ast.Expr, isRoot bool) ast.Expr {
	e = desugarHolesChildren(e)
	if !isRoot && isBareHole(e) {
		return e
	}
	if !containsHole(e) {
		return e
	}
	rewritten, params := replaceHoles(e)
	result := rewritten
	for i := len(params) - 1; i >= 0; i-- {
		span := result.GetSpan()
		result = &ast.LambdaExpr{
			Params: []ast.Pattern{&ast.IdentPattern{Name: ast.Identifier{Name: params[i], Span: span}, Span: span}},
			Body:   result,
			Span:   span,
		}
	}
	return result
}

func isBareHole(e ast.Expr) bool {
	ident, ok := e.(*ast.IdentExpr)
	return ok && ident.Name.Name == "_"
}

// desugarHolesChildren recurses into every child expression position
// (but not into nested LambdaExpr/Block bodies' own hole scopes beyond
// what the recursive call handles) with isRoot=false, so a hole that
// is a direct child of this node is still visible to containsHole at
// this level unless a deeper composite child already claimed it.
func desugarHolesChildren(e ast.Expr) ast.Expr {
	switch n := e.(type) {
	case *ast.TextInterp:
		parts := make([]ast.InterpPart, len(n.Parts))
		for i, p := range n.Parts {
			if p.IsExpr {
				p.Expr = desugarHolesAt(p.Expr, false)
			}
			parts[i] = p
		}
		return &ast.TextInterp{Parts: parts, Span: n.Span}
	case *ast.ListExpr:
		items := make([]ast.ListItem, len(n.Items))
		for i, it := range n.Items {
			items[i] = ast.ListItem{Value: desugarHolesAt(it.Value, false), Spread: it.Spread}
		}
		return &ast.ListExpr{Items: items, Span: n.Span}
	case *ast.TupleExpr:
		items := make([]ast.Expr, len(n.Items))
		for i, it := range n.Items {
			items[i] = desugarHolesAt(it, false)
		}
		return &ast.TupleExpr{Items: items, Span: n.Span}
	case *ast.RecordExpr:
		fields := make([]ast.RecordField, len(n.Fields))
		for i, f := range n.Fields {
			nf := f
			if f.Spread != nil {
				nf.Spread = desugarHolesAt(f.Spread, false)
			} else {
				nf.Value = desugarHolesAt(f.Value, false)
			}
			fields[i] = nf
		}
		return &ast.RecordExpr{Fields: fields, Span: n.Span}
	case *ast.PatchLiteral:
		return &ast.PatchLiteral{Fields: desugarHolesPatchFields(n.Fields), Span: n.Span}
	case *ast.PatchExpr:
		return &ast.PatchExpr{
			Target: desugarHolesAt(n.Target, false),
			Fields: desugarHolesPatchFields(n.Fields),
			Span:   n.Span,
		}
	case *ast.FieldAccess:
		return &ast.FieldAccess{Target: desugarHolesAt(n.Target, false), Field: n.Field, Span: n.Span}
	case *ast.FieldSection:
		return n
	case *ast.IndexExpr:
		return &ast.IndexExpr{
			Target: desugarHolesAt(n.Target, false),
			Index:  desugarHolesAt(n.Index, false),
			Span:   n.Span,
		}
	case *ast.CallExpr:
		args := make([]ast.Expr, len(n.Args))
		for i, a := range n.Args {
			args[i] = desugarHolesAt(a, false)
		}
		return &ast.CallExpr{Func: desugarHolesAt(n.Func, false), Args: args, Span: n.Span}
	case *ast.Apply:
		return &ast.Apply{Func: desugarHolesAt(n.Func, false), Arg: desugarHolesAt(n.Arg, false), Span: n.Span}
	case *ast.LambdaExpr:
		return &ast.LambdaExpr{Params: n.Params, Body: desugarHolesAt(n.Body, false), Span: n.Span}
	case *ast.MatchExpr:
		var scrutinee ast.Expr
		if n.Scrutinee != nil {
			scrutinee = desugarHolesAt(n.Scrutinee, false)
		}
		cases := make([]ast.MatchCase, len(n.Cases))
		for i, c := range n.Cases {
			nc := c
			if c.Guard != nil {
				nc.Guard = desugarHolesAt(c.Guard, false)
			}
			nc.Body = desugarHolesAt(c.Body, false)
			cases[i] = nc
		}
		return &ast.MatchExpr{Scrutinee: scrutinee, Cases: cases, Span: n.Span}
	case *ast.IfExpr:
		return &ast.IfExpr{
			Cond: desugarHolesAt(n.Cond, false),
			Then: desugarHolesAt(n.Then, false),
			Else: desugarHolesAt(n.Else, false),
			Span: n.Span,
		}
	case *ast.BinaryExpr:
		return &ast.BinaryExpr{
			Op:    n.Op,
			Left:  desugarHolesAt(n.Left, false),
			Right: desugarHolesAt(n.Right, false),
			Span:  n.Span,
		}
	case *ast.Block:
		items := make([]ast.BlockItem, len(n.Items))
		for i, it := range n.Items {
			ni := it
			switch it.Kind {
			case ast.ItemBind, ast.ItemLet, ast.ItemYield, ast.ItemRecurse, ast.ItemExpr:
				ni.Expr = desugarHolesAt(it.Expr, false)
			}
			items[i] = ni
		}
		return &ast.Block{Kind: n.Kind, Items: items, Span: n.Span}
	default:
		// IdentExpr, Literal, PatchExpr handled above: nothing further
		// to recurse into.
		return e
	}
}

func desugarHolesPatchFields(fields []ast.PatchField2) []ast.PatchField2 {
	out := make([]ast.PatchField2, len(fields))
	for i, f := range fields {
		path := make([]ast.PatchSegment, len(f.Path))
		for j, seg := range f.Path {
			if seg.Kind == ast.PatchIndex || seg.Kind == ast.PatchIndexPredicate {
				seg.Index = desugarHolesAt(seg.Index, false)
			}
			path[j] = seg
		}
		out[i] = ast.PatchField2{Path: path, Value: desugarHolesAt(f.Value, false)}
	}
	return out
}

// containsHole reports whether e itself (with children already
// desugared) still has a hole directly reachable without crossing
// into a nested LambdaExpr introduced by desugaring.
func containsHole(e ast.Expr) bool {
	switch n := e.(type) {
	case *ast.IdentExpr:
		return n.Name.Name == "_"
	case *ast.Literal:
		return false
	case *ast.TextInterp:
		for _, p := range n.Parts {
			if p.IsExpr && containsHole(p.Expr) {
				return true
			}
		}
		return false
	case *ast.ListExpr:
		for _, it := range n.Items {
			if containsHole(it.Value) {
				return true
			}
		}
		return false
	case *ast.TupleExpr:
		for _, it := range n.Items {
			if containsHole(it) {
				return true
			}
		}
		return false
	case *ast.RecordExpr:
		for _, f := range n.Fields {
			if f.Spread != nil {
				if containsHole(f.Spread) {
					return true
				}
				continue
			}
			if containsHole(f.Value) {
				return true
			}
		}
		return false
	case *ast.PatchLiteral:
		return containsHolePatchFields(n.Fields)
	case *ast.PatchExpr:
		return containsHole(n.Target) || containsHolePatchFields(n.Fields)
	case *ast.FieldAccess:
		return containsHole(n.Target)
	case *ast.FieldSection:
		return true
	case *ast.IndexExpr:
		return containsHole(n.Target) || containsHole(n.Index)
	case *ast.CallExpr:
		if containsHole(n.Func) {
			return true
		}
		for _, a := range n.Args {
			if containsHole(a) {
				return true
			}
		}
		return false
	case *ast.Apply:
		return containsHole(n.Func) || containsHole(n.Arg)
	case *ast.LambdaExpr:
		return containsHole(n.Body)
	case *ast.MatchExpr:
		if n.Scrutinee != nil && containsHole(n.Scrutinee) {
			return true
		}
		for _, c := range n.Cases {
			if c.Guard != nil && containsHole(c.Guard) {
				return true
			}
			if containsHole(c.Body) {
				return true
			}
		}
		return false
	case *ast.IfExpr:
		return containsHole(n.Cond) || containsHole(n.Then) || containsHole(n.Else)
	case *ast.BinaryExpr:
		return containsHole(n.Left) || containsHole(n.Right)
	case *ast.Block:
		for _, it := range n.Items {
			switch it.Kind {
			case ast.ItemBind, ast.ItemLet, ast.ItemYield, ast.ItemRecurse, ast.ItemExpr:
				if containsHole(it.Expr) {
					return true
				}
			}
		}
		return false
	default:
		return false
	}
}

func containsHolePatchFields(fields []ast.PatchField2) bool {
	for _, f := range fields {
		for _, seg := range f.Path {
			if (seg.Kind == ast.PatchIndex || seg.Kind == ast.PatchIndexPredicate) && containsHole(seg.Index) {
				return true
			}
		}
		if containsHole(f.Value) {
			return true
		}
	}
	return false
}

// replaceHoles substitutes every direct hole in e with a synthesized
// identifier, collecting the synthesized names in left-to-right order.
func replaceHoles(e ast.Expr) (ast.Expr, []string) {
	var params []string
	counter := 0
	rewritten := replaceHolesAt(e, &counter, &params)
	return rewritten, params
}

func replaceHolesAt(e ast.Expr, counter *int, params *[]string) ast.Expr {
	switch n := e.(type) {
	case *ast.IdentExpr:
		if n.Name.Name != "_" {
			return n
		}
		name := synthHoleParam(*counter)
		*counter++
		*params = append(*params, name)
		return &ast.IdentExpr{Name: ast.Identifier{Name: name, Span: n.Span}, Span: n.Span}
	case *ast.Literal:
		return n
	case *ast.FieldSection:
		name := synthHoleParam(*counter)
		*counter++
		*params = append(*params, name)
		return &ast.FieldAccess{
			Target: &ast.IdentExpr{Name: ast.Identifier{Name: name, Span: n.Span}, Span: n.Span},
			Field:  n.Field,
			Span:   n.Span,
		}
	case *ast.TextInterp:
		parts := make([]ast.InterpPart, len(n.Parts))
		for i, p := range n.Parts {
			if p.IsExpr {
				p.Expr = replaceHolesAt(p.Expr, counter, params)
			}
			parts[i] = p
		}
		return &ast.TextInterp{Parts: parts, Span: n.Span}
	case *ast.ListExpr:
		items := make([]ast.ListItem, len(n.Items))
		for i, it := range n.Items {
			items[i] = ast.ListItem{Value: replaceHolesAt(it.Value, counter, params), Spread: it.Spread}
		}
		return &ast.ListExpr{Items: items, Span: n.Span}
	case *ast.TupleExpr:
		items := make([]ast.Expr, len(n.Items))
		for i, it := range n.Items {
			items[i] = replaceHolesAt(it, counter, params)
		}
		return &ast.TupleExpr{Items: items, Span: n.Span}
	case *ast.RecordExpr:
		fields := make([]ast.RecordField, len(n.Fields))
		for i, f := range n.Fields {
			nf := f
			if f.Spread != nil {
				nf.Spread = replaceHolesAt(f.Spread, counter, params)
			} else {
				nf.Value = replaceHolesAt(f.Value, counter, params)
			}
			fields[i] = nf
		}
		return &ast.RecordExpr{Fields: fields, Span: n.Span}
	case *ast.PatchLiteral:
		return &ast.PatchLiteral{Fields: replaceHolesPatchFields(n.Fields, counter, params), Span: n.Span}
	case *ast.PatchExpr:
		return &ast.PatchExpr{
			Target: replaceHolesAt(n.Target, counter, params),
			Fields: replaceHolesPatchFields(n.Fields, counter, params),
			Span:   n.Span,
		}
	case *ast.FieldAccess:
		return &ast.FieldAccess{Target: replaceHolesAt(n.Target, counter, params), Field: n.Field, Span: n.Span}
	case *ast.IndexExpr:
		return &ast.IndexExpr{
			Target: replaceHolesAt(n.Target, counter, params),
			Index:  replaceHolesAt(n.Index, counter, params),
			Span:   n.Span,
		}
	case *ast.CallExpr:
		args := make([]ast.Expr, len(n.Args))
		for i, a := range n.Args {
			args[i] = replaceHolesAt(a, counter, params)
		}
		return &ast.CallExpr{Func: replaceHolesAt(n.Func, counter, params), Args: args, Span: n.Span}
	case *ast.Apply:
		return &ast.Apply{Func: replaceHolesAt(n.Func, counter, params), Arg: replaceHolesAt(n.Arg, counter, params), Span: n.Span}
	case *ast.LambdaExpr:
		return &ast.LambdaExpr{Params: n.Params, Body: replaceHolesAt(n.Body, counter, params), Span: n.Span}
	case *ast.MatchExpr:
		var scrutinee ast.Expr
		if n.Scrutinee != nil {
			scrutinee = replaceHolesAt(n.Scrutinee, counter, params)
		}
		cases := make([]ast.MatchCase, len(n.Cases))
		for i, c := range n.Cases {
			nc := c
			if c.Guard != nil {
				nc.Guard = replaceHolesAt(c.Guard, counter, params)
			}
			nc.Body = replaceHolesAt(c.Body, counter, params)
			cases[i] = nc
		}
		return &ast.MatchExpr{Scrutinee: scrutinee, Cases: cases, Span: n.Span}
	case *ast.IfExpr:
		return &ast.IfExpr{
			Cond: replaceHolesAt(n.Cond, counter, params),
			Then: replaceHolesAt(n.Then, counter, params),
			Else: replaceHolesAt(n.Else, counter, params),
			Span: n.Span,
		}
	case *ast.BinaryExpr:
		return &ast.BinaryExpr{
			Op:    n.Op,
			Left:  replaceHolesAt(n.Left, counter, params),
			Right: replaceHolesAt(n.Right, counter, params),
			Span:  n.Span,
		}
	case *ast.Block:
		items := make([]ast.BlockItem, len(n.Items))
		for i, it := range n.Items {
			ni := it
			switch it.Kind {
			case ast.ItemBind, ast.ItemLet, ast.ItemYield, ast.ItemRecurse, ast.ItemExpr:
				ni.Expr = replaceHolesAt(it.Expr, counter, params)
			}
			items[i] = ni
		}
		return &ast.Block{Kind: n.Kind, Items: items, Span: n.Span}
	default:
		return e
	}
}

func replaceHolesPatchFields(fields []ast.PatchField2, counter *int, params *[]string) []ast.PatchField2 {
	out := make([]ast.PatchField2, len(fields))
	for i, f := range fields {
		path := make([]ast.PatchSegment, len(f.Path))
		for j, seg := range f.Path {
			if seg.Kind == ast.PatchIndex || seg.Kind == ast.PatchIndexPredicate {
				seg.Index = replaceHolesAt(seg.Index, counter, params)
			}
			path[j] = seg
		}
		out[i] = ast.PatchField2{Path: path, Value: replaceHolesAt(f.Value, counter, params)}
	}
	return out
}

func synthHoleParam(n int) string {
	return "_arg" + strconv.Itoa(n)
}
