package backend

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/aivi-lang/aivi/internal/ir"
)

type emitter struct {
	mangled map[string]string
}

// emitProgram renders prog as a Go literal assigned to embeddedProgram,
// plus a GlobalNames table mapping every original global name to its
// sanitized, FNV-1a-suffixed Go identifier (spec.md §4.5 item 6) — used
// here as the program's debug symbol table, since the reconstructed
// program itself still indexes by the original string name.
func (e *emitter) emitProgram(prog *ir.Program) (string, error) {
	var b strings.Builder
	b.WriteString("var embeddedProgram = &ir.Program{Modules: []*ir.Module{\n")
	for _, m := range prog.Modules {
		mod, err := e.emitModule(m)
		if err != nil {
			return "", err
		}
		b.WriteString(mod)
		b.WriteString(",\n")
	}
	b.WriteString("}}\n\n")

	b.WriteString("var GlobalNames = map[string]string{\n")
	for orig, mangled := range e.mangled {
		fmt.Fprintf(&b, "\t%s: %s,\n", strconv.Quote(orig), strconv.Quote(mangled))
	}
	b.WriteString("}\n")
	return b.String(), nil
}

func (e *emitter) emitModule(m *ir.Module) (string, error) {
	var defs, cons, doms strings.Builder
	for _, d := range m.Defs {
		s, err := e.emitDef(d)
		if err != nil {
			return "", err
		}
		defs.WriteString(s + ",\n")
	}
	for _, c := range m.Constructors {
		fmt.Fprintf(&cons, "{Name: %s, FieldNames: %s, Arity: %d},\n",
			strconv.Quote(c.Name), emitStringSlice(c.FieldNames), c.Arity)
	}
	for _, dd := range m.Domains {
		members := make([]string, len(dd.Members))
		for i, mem := range dd.Members {
			s, err := e.emitDef(mem)
			if err != nil {
				return "", err
			}
			members[i] = s
		}
		fmt.Fprintf(&doms, "{Name: %s, Members: []*ir.Def{%s}},\n", strconv.Quote(dd.Name), strings.Join(members, ", "))
	}
	return fmt.Sprintf(
		"{Name: %s, Defs: []*ir.Def{\n%s}, Constructors: []ir.ConstructorDef{\n%s}, Domains: []*ir.DomainDef{\n%s}}",
		strconv.Quote(m.Name), defs.String(), cons.String(), doms.String(),
	), nil
}

func (e *emitter) emitDef(d *ir.Def) (string, error) {
	var clauses strings.Builder
	for _, c := range d.Clauses {
		params, err := e.emitPatterns(c.Params)
		if err != nil {
			return "", err
		}
		body, err := e.emitNode(c.Body)
		if err != nil {
			return "", err
		}
		fmt.Fprintf(&clauses, "{Params: %s, Body: %s},\n", params, body)
	}
	return fmt.Sprintf("{Name: %s, Clauses: []ir.Clause{\n%s}}", strconv.Quote(d.Name), clauses.String()), nil
}

func emitStringSlice(ss []string) string {
	quoted := make([]string, len(ss))
	for i, s := range ss {
		quoted[i] = strconv.Quote(s)
	}
	return "[]string{" + strings.Join(quoted, ", ") + "}"
}

func emitRef(r ir.Ref) string {
	kind := map[ir.RefKind]string{
		ir.RefLocal: "ir.RefLocal", ir.RefGlobal: "ir.RefGlobal",
		ir.RefBuiltin: "ir.RefBuiltin", ir.RefConstructor: "ir.RefConstructor",
	}[r.Kind]
	return fmt.Sprintf("ir.Ref{Kind: %s, Name: %s, Module: %s, Arity: %d}",
		kind, strconv.Quote(r.Name), strconv.Quote(r.Module), r.Arity)
}

func (e *emitter) emitNode(n ir.Node) (string, error) {
	if n == nil {
		return "nil", nil
	}
	switch v := n.(type) {
	case *ir.Ident:
		return fmt.Sprintf("&ir.Ident{Ref: %s}", emitRef(v.Ref)), nil
	case *ir.IntLit:
		return fmt.Sprintf("&ir.IntLit{Value: %d}", v.Value), nil
	case *ir.FloatLit:
		return fmt.Sprintf("&ir.FloatLit{Value: %v}", v.Value), nil
	case *ir.TextLit:
		return fmt.Sprintf("&ir.TextLit{Value: %s}", strconv.Quote(v.Value)), nil
	case *ir.BoolLit:
		return fmt.Sprintf("&ir.BoolLit{Value: %v}", v.Value), nil
	case *ir.SigilLit:
		return fmt.Sprintf("&ir.SigilLit{Tag: %s, Body: %s, Flags: %s}",
			strconv.Quote(v.Tag), strconv.Quote(v.Body), strconv.Quote(v.Flags)), nil
	case *ir.SuffixedLit:
		inner, err := e.emitNode(v.Value)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("&ir.SuffixedLit{Value: %s, Suffix: %s}", inner, strconv.Quote(v.Suffix)), nil
	case *ir.Concat:
		parts, err := e.emitNodes(v.Parts)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("&ir.Concat{Parts: %s}", parts), nil
	case *ir.ListLit:
		items, err := e.emitNodes(v.Items)
		if err != nil {
			return "", err
		}
		spreads := make([]string, len(v.Spread))
		for i, s := range v.Spread {
			spreads[i] = fmt.Sprintf("%v", s)
		}
		return fmt.Sprintf("&ir.ListLit{Items: %s, Spread: []bool{%s}}", items, strings.Join(spreads, ", ")), nil
	case *ir.TupleLit:
		items, err := e.emitNodes(v.Items)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("&ir.TupleLit{Items: %s}", items), nil
	case *ir.RecordLit:
		fields := make([]string, len(v.Fields))
		for i, f := range v.Fields {
			val, err := e.emitNode(f.Value)
			if err != nil {
				return "", err
			}
			fields[i] = fmt.Sprintf("{Name: %s, Value: %s}", strconv.Quote(f.Name), val)
		}
		spreads, err := e.emitNodes(v.Spreads)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("&ir.RecordLit{Fields: []ir.RecordField{%s}, Spreads: %s}", strings.Join(fields, ", "), spreads), nil
	case *ir.FieldAccess:
		target, err := e.emitNode(v.Target)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("&ir.FieldAccess{Target: %s, Field: %s}", target, strconv.Quote(v.Field)), nil
	case *ir.IndexExpr:
		target, err := e.emitNode(v.Target)
		if err != nil {
			return "", err
		}
		idx, err := e.emitNode(v.Index)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("&ir.IndexExpr{Target: %s, Index: %s}", target, idx), nil
	case *ir.Apply:
		fn, err := e.emitNode(v.Func)
		if err != nil {
			return "", err
		}
		args, err := e.emitNodes(v.Args)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("&ir.Apply{Func: %s, Args: %s}", fn, args), nil
	case *ir.Lambda:
		params, err := e.emitPatterns(v.Params)
		if err != nil {
			return "", err
		}
		body, err := e.emitNode(v.Body)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("&ir.Lambda{Params: %s, Body: %s}", params, body), nil
	case *ir.Match:
		scrutinee, err := e.emitNode(v.Scrutinee)
		if err != nil {
			return "", err
		}
		cases := make([]string, len(v.Cases))
		for i, c := range v.Cases {
			pat, err := e.emitPattern(c.Pattern)
			if err != nil {
				return "", err
			}
			guard, err := e.emitNode(c.Guard)
			if err != nil {
				return "", err
			}
			cbody, err := e.emitNode(c.Body)
			if err != nil {
				return "", err
			}
			cases[i] = fmt.Sprintf("{Pattern: %s, Guard: %s, Body: %s}", pat, guard, cbody)
		}
		return fmt.Sprintf("&ir.Match{Scrutinee: %s, Cases: []ir.MatchCase{%s}}", scrutinee, strings.Join(cases, ", ")), nil
	case *ir.If:
		cond, err := e.emitNode(v.Cond)
		if err != nil {
			return "", err
		}
		then, err := e.emitNode(v.Then)
		if err != nil {
			return "", err
		}
		els, err := e.emitNode(v.Else)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("&ir.If{Cond: %s, Then: %s, Else: %s}", cond, then, els), nil
	case *ir.Binary:
		l, err := e.emitNode(v.Left)
		if err != nil {
			return "", err
		}
		r, err := e.emitNode(v.Right)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("&ir.Binary{Op: %s, Left: %s, Right: %s}", strconv.Quote(v.Op), l, r), nil
	case *ir.Patch:
		target, err := e.emitNode(v.Target)
		if err != nil {
			return "", err
		}
		fields := make([]string, len(v.Fields))
		for i, f := range v.Fields {
			segs := make([]string, len(f.Path))
			for j, s := range f.Path {
				idx, err := e.emitNode(s.Index)
				if err != nil {
					return "", err
				}
				kind := map[ir.PatchSegmentKind]string{
					ir.PatchFieldSeg: "ir.PatchFieldSeg", ir.PatchIndexSeg: "ir.PatchIndexSeg",
					ir.PatchIndexAllSeg: "ir.PatchIndexAllSeg", ir.PatchIndexPredicateSeg: "ir.PatchIndexPredicateSeg",
				}[s.Kind]
				segs[j] = fmt.Sprintf("{Kind: %s, Field: %s, Index: %s}", kind, strconv.Quote(s.Field), idx)
			}
			val, err := e.emitNode(f.Value)
			if err != nil {
				return "", err
			}
			fields[i] = fmt.Sprintf("{Path: []ir.PatchSegment{%s}, Value: %s}", strings.Join(segs, ", "), val)
		}
		return fmt.Sprintf("&ir.Patch{Target: %s, Fields: []ir.PatchField{%s}}", target, strings.Join(fields, ", ")), nil
	case *ir.Block:
		return e.emitBlock(v)
	}
	return "", fmt.Errorf("backend: unsupported IR node %T", n)
}

// emitBlock enforces spec.md §4.5's "refuses unsupported forms" clause
// for block-item legality (yield/filter only in generate, yield also in
// resource, recurse only in plain/effect) as a defensive re-check —
// internal/parser already enforces this earlier, but
// the backend is the last stage before code ships, so it never trusts
// an invariant it can cheaply re-verify.
func (e *emitter) emitBlock(b *ir.Block) (string, error) {
	for _, item := range b.Items {
		switch item.Kind {
		case ir.ItemFilter:
			if b.Kind != ir.BlockGenerate {
				return "", fmt.Errorf("backend: %s not legal in this block kind", itemKindName(item.Kind))
			}
		case ir.ItemYield:
			if b.Kind != ir.BlockGenerate && b.Kind != ir.BlockResource {
				return "", fmt.Errorf("backend: %s not legal in this block kind", itemKindName(item.Kind))
			}
		case ir.ItemRecurse:
			if b.Kind != ir.BlockPlain && b.Kind != ir.BlockEffect {
				return "", fmt.Errorf("backend: recurse not legal in this block kind")
			}
		}
	}
	kind := map[ir.BlockKind]string{
		ir.BlockPlain: "ir.BlockPlain", ir.BlockEffect: "ir.BlockEffect",
		ir.BlockGenerate: "ir.BlockGenerate", ir.BlockResource: "ir.BlockResource",
	}[b.Kind]
	items := make([]string, len(b.Items))
	for i, it := range b.Items {
		pat, err := e.emitPattern(it.Pattern)
		if err != nil {
			return "", err
		}
		val, err := e.emitNode(it.Value)
		if err != nil {
			return "", err
		}
		itemKind := map[ir.BlockItemKind]string{
			ir.ItemExpr: "ir.ItemExpr", ir.ItemBind: "ir.ItemBind", ir.ItemLet: "ir.ItemLet",
			ir.ItemFilter: "ir.ItemFilter", ir.ItemYield: "ir.ItemYield", ir.ItemRecurse: "ir.ItemRecurse",
		}[it.Kind]
		items[i] = fmt.Sprintf("{Kind: %s, Pattern: %s, Value: %s}", itemKind, pat, val)
	}
	return fmt.Sprintf("&ir.Block{Kind: %s, Items: []ir.BlockItem{%s}}", kind, strings.Join(items, ", ")), nil
}

func itemKindName(k ir.BlockItemKind) string {
	switch k {
	case ir.ItemFilter:
		return "filter"
	case ir.ItemYield:
		return "yield"
	case ir.ItemRecurse:
		return "recurse"
	}
	return "item"
}

func (e *emitter) emitNodes(ns []ir.Node) (string, error) {
	parts := make([]string, len(ns))
	for i, n := range ns {
		s, err := e.emitNode(n)
		if err != nil {
			return "", err
		}
		parts[i] = s
	}
	return "[]ir.Node{" + strings.Join(parts, ", ") + "}", nil
}

func (e *emitter) emitPatterns(ps []ir.Pattern) (string, error) {
	parts := make([]string, len(ps))
	for i, p := range ps {
		s, err := e.emitPattern(p)
		if err != nil {
			return "", err
		}
		parts[i] = s
	}
	return "[]ir.Pattern{" + strings.Join(parts, ", ") + "}", nil
}

func (e *emitter) emitPattern(p ir.Pattern) (string, error) {
	if p == nil {
		return "nil", nil
	}
	switch v := p.(type) {
	case *ir.WildcardPattern:
		return "&ir.WildcardPattern{}", nil
	case *ir.BindPattern:
		return fmt.Sprintf("&ir.BindPattern{Name: %s}", strconv.Quote(v.Name)), nil
	case *ir.LiteralPattern:
		val, err := e.emitNode(v.Value)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("&ir.LiteralPattern{Value: %s}", val), nil
	case *ir.ConstructorPattern:
		args, err := e.emitPatterns(v.Args)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("&ir.ConstructorPattern{Ref: %s, Args: %s}", emitRef(v.Ref), args), nil
	case *ir.TuplePattern:
		items, err := e.emitPatterns(v.Items)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("&ir.TuplePattern{Items: %s}", items), nil
	case *ir.ListPattern:
		items, err := e.emitPatterns(v.Items)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("&ir.ListPattern{Items: %s, Rest: %s}", items, strconv.Quote(v.Rest)), nil
	case *ir.RecordPattern:
		fields := make([]string, len(v.Fields))
		for i, f := range v.Fields {
			fp, err := e.emitPattern(f.Pattern)
			if err != nil {
				return "", err
			}
			fields[i] = fmt.Sprintf("{Name: %s, Pattern: %s}", strconv.Quote(f.Name), fp)
		}
		return fmt.Sprintf("&ir.RecordPattern{Fields: []ir.RecordPatternField{%s}}", strings.Join(fields, ", ")), nil
	}
	return "", fmt.Errorf("backend: unsupported pattern %T", p)
}
