package ir

import (
	"github.com/aivi-lang/aivi/internal/ast"
	"github.com/aivi-lang/aivi/internal/diag"
)

// DomainDef is a lowered `domain Name = { ... }` group: its members are
// ordinary Defs (also registered as program-wide globals, so a body
// inside the domain can call a sibling member unqualified). The
// runtime links a record of the members under the domain's name, but
// the Lowerer does not bind that name, so `Name.member` in source is
// reported as an unbound identifier; members are reached by bare name.
type DomainDef struct {
	Name    string
	Members []*Def
	Span    diag.Span
}

// scope is a lexical chain of locally-bound names, used only to tell a
// local binding apart from a global/builtin/constructor reference.
type scope struct {
	parent *scope
	names  map[string]bool
}

func (s *scope) push() *scope { return &scope{parent: s, names: map[string]bool{}} }

func (s *scope) bind(name string) { s.names[name] = true }

func (s *scope) has(name string) bool {
	for cur := s; cur != nil; cur = cur.parent {
		if cur.names[name] {
			return true
		}
	}
	return false
}

// Lowerer resolves names and desugars surface forms across an entire
// program in one pass, matching internal/types' simplification of a
// single combined cross-module environment rather than per-module
// import resolution.
type Lowerer struct {
	globals      map[string]string // name -> owning module
	constructors map[string]ConstructorDef
	builtins     map[string]bool
	diags        diag.Bag
}

// NewLowerer takes the set of prelude/builtin names that resolve to
// RefBuiltin ahead of any global lookup.
func NewLowerer(builtinNames map[string]bool) *Lowerer {
	return &Lowerer{
		globals:      map[string]string{},
		constructors: map[string]ConstructorDef{},
		builtins:     builtinNames,
	}
}

// LowerProgram registers every module's top-level names first (so
// forward and mutual references resolve), then lowers each module's
// bodies.
func (l *Lowerer) LowerProgram(mods []*ast.Module) (*Program, []*diag.Diagnostic) {
	for _, m := range mods {
		l.registerModule(m)
	}
	prog := &Program{}
	for _, m := range mods {
		prog.Modules = append(prog.Modules, l.lowerModule(m))
	}
	return prog, l.diags.All()
}

func (l *Lowerer) registerModule(m *ast.Module) {
	for _, item := range m.Items {
		l.registerItem(m.Name, item)
	}
}

func (l *Lowerer) registerItem(moduleName string, item ast.Item) {
	switch it := item.(type) {
	case *ast.Definition:
		l.globals[it.Name.Name] = moduleName
	case *ast.TypeDecl:
		for _, v := range it.Variants {
			fieldNames := make([]string, len(v.Fields))
			for i, f := range v.Fields {
				fieldNames[i] = f.Name.Name
			}
			l.constructors[v.Name.Name] = ConstructorDef{
				Name: v.Name.Name, FieldNames: fieldNames, Arity: len(v.Fields),
			}
		}
	case *ast.InstanceDecl:
		for _, def := range it.Methods {
			l.globals[def.Name.Name] = moduleName
		}
	case *ast.DomainDecl:
		for _, inner := range it.Items {
			l.registerItem(moduleName, inner)
		}
	}
}

func (l *Lowerer) lowerModule(m *ast.Module) *Module {
	out := &Module{Name: m.Name, Span: m.Span}
	top := (&scope{}).push()
	for _, item := range m.Items {
		l.lowerItem(item, out, top)
	}
	return out
}

func (l *Lowerer) lowerItem(item ast.Item, out *Module, top *scope) {
	switch it := item.(type) {
	case *ast.Definition:
		out.Defs = append(out.Defs, l.lowerDefinition(it, top))
	case *ast.TypeDecl:
		for _, v := range it.Variants {
			fieldNames := make([]string, len(v.Fields))
			for i, f := range v.Fields {
				fieldNames[i] = f.Name.Name
			}
			out.Constructors = append(out.Constructors, ConstructorDef{
				Name: v.Name.Name, FieldNames: fieldNames, Arity: len(v.Fields),
			})
		}
	case *ast.InstanceDecl:
		for _, def := range it.Methods {
			out.Defs = append(out.Defs, l.lowerDefinition(def, top))
		}
	case *ast.DomainDecl:
		dd := &DomainDef{Name: it.Name.Name, Span: it.Span}
		for _, inner := range it.Items {
			if def, ok := inner.(*ast.Definition); ok {
				lowered := l.lowerDefinition(def, top)
				dd.Members = append(dd.Members, lowered)
				out.Defs = append(out.Defs, lowered)
			} else {
				l.lowerItem(inner, out, top)
			}
		}
		out.Domains = append(out.Domains, dd)
	}
}

func (l *Lowerer) lowerDefinition(def *ast.Definition, top *scope) *Def {
	inner := top.push()
	params := make([]Pattern, len(def.Params))
	for i, p := range def.Params {
		params[i] = l.lowerPattern(p, inner)
	}
	body := l.lowerExpr(def.Body, inner)
	return &Def{
		Name:    def.Name.Name,
		Clauses: []Clause{{Params: params, Body: body}},
		Span:    def.Span,
	}
}

func (l *Lowerer) resolveIdent(name string, sp diag.Span, sc *scope) *Ident {
	if sc.has(name) {
		return &Ident{base: base{sp}, Ref: Ref{Kind: RefLocal, Name: name}}
	}
	if cd, ok := l.constructors[name]; ok {
		return &Ident{base: base{sp}, Ref: Ref{Kind: RefConstructor, Name: name, Arity: cd.Arity}}
	}
	if mod, ok := l.globals[name]; ok {
		return &Ident{base: base{sp}, Ref: Ref{Kind: RefGlobal, Name: name, Module: mod}}
	}
	if l.builtins[name] {
		return &Ident{base: base{sp}, Ref: Ref{Kind: RefBuiltin, Name: name}}
	}
	l.diags.Errorf(diag.ErrUnboundIdentifier, sp, "unresolved name: %s", name)
	return &Ident{base: base{sp}, Ref: Ref{Kind: RefGlobal, Name: name}}
}

func (l *Lowerer) lowerExpr(e ast.Expr, sc *scope) Node {
	switch ex := e.(type) {
	case *ast.IdentExpr:
		return l.resolveIdent(ex.Name.Name, ex.Span, sc)
	case *ast.Literal:
		return l.lowerLiteral(ex)
	case *ast.TextInterp:
		parts := make([]Node, len(ex.Parts))
		for i, p := range ex.Parts {
			if p.IsExpr {
				parts[i] = l.lowerExpr(p.Expr, sc)
			} else {
				parts[i] = &TextLit{base: base{ex.Span}, Value: p.Text}
			}
		}
		return &Concat{base: base{ex.Span}, Parts: parts}
	case *ast.ListExpr:
		items := make([]Node, len(ex.Items))
		spread := make([]bool, len(ex.Items))
		for i, it := range ex.Items {
			items[i] = l.lowerExpr(it.Value, sc)
			spread[i] = it.Spread
		}
		return &ListLit{base: base{ex.Span}, Items: items, Spread: spread}
	case *ast.TupleExpr:
		items := make([]Node, len(ex.Items))
		for i, it := range ex.Items {
			items[i] = l.lowerExpr(it, sc)
		}
		return &TupleLit{base: base{ex.Span}, Items: items}
	case *ast.RecordExpr:
		rec := &RecordLit{base: base{ex.Span}}
		for _, f := range ex.Fields {
			if f.Spread != nil {
				rec.Spreads = append(rec.Spreads, l.lowerExpr(f.Spread, sc))
				continue
			}
			rec.Fields = append(rec.Fields, l.lowerRecordFieldPath(f.Path, l.lowerExpr(f.Value, sc)))
		}
		return rec
	case *ast.PatchExpr:
		return &Patch{
			base:   base{ex.Span},
			Target: l.lowerExpr(ex.Target, sc),
			Fields: l.lowerPatchFields(ex.Fields, sc),
		}
	case *ast.PatchLiteral:
		param := "$patchTarget"
		inner := sc.push()
		inner.bind(param)
		return &Lambda{
			base:   base{ex.Span},
			Params: []Pattern{&BindPattern{Name: param}},
			Body: &Patch{
				base:   base{ex.Span},
				Target: &Ident{base: base{ex.Span}, Ref: Ref{Kind: RefLocal, Name: param}},
				Fields: l.lowerPatchFields(ex.Fields, inner),
			},
		}
	case *ast.FieldAccess:
		return &FieldAccess{base: base{ex.Span}, Target: l.lowerExpr(ex.Target, sc), Field: ex.Field}
	case *ast.FieldSection:
		param := "$fieldTarget"
		return &Lambda{
			base:   base{ex.Span},
			Params: []Pattern{&BindPattern{Name: param}},
			Body: &FieldAccess{
				base:   base{ex.Span},
				Target: &Ident{base: base{ex.Span}, Ref: Ref{Kind: RefLocal, Name: param}},
				Field:  ex.Field,
			},
		}
	case *ast.IndexExpr:
		return &IndexExpr{base: base{ex.Span}, Target: l.lowerExpr(ex.Target, sc), Index: l.lowerExpr(ex.Index, sc)}
	case *ast.CallExpr:
		args := make([]Node, len(ex.Args))
		for i, a := range ex.Args {
			args[i] = l.lowerExpr(a, sc)
		}
		return &Apply{base: base{ex.Span}, Func: l.lowerExpr(ex.Func, sc), Args: args}
	case *ast.Apply:
		return &Apply{base: base{ex.Span}, Func: l.lowerExpr(ex.Func, sc), Args: []Node{l.lowerExpr(ex.Arg, sc)}}
	case *ast.LambdaExpr:
		inner := sc.push()
		params := make([]Pattern, len(ex.Params))
		for i, p := range ex.Params {
			params[i] = l.lowerPattern(p, inner)
		}
		return &Lambda{base: base{ex.Span}, Params: params, Body: l.lowerExpr(ex.Body, inner)}
	case *ast.MatchExpr:
		return l.lowerMatch(ex, sc)
	case *ast.IfExpr:
		return &If{base: base{ex.Span}, Cond: l.lowerExpr(ex.Cond, sc), Then: l.lowerExpr(ex.Then, sc), Else: l.lowerExpr(ex.Else, sc)}
	case *ast.BinaryExpr:
		return &Binary{base: base{ex.Span}, Op: ex.Op, Left: l.lowerExpr(ex.Left, sc), Right: l.lowerExpr(ex.Right, sc)}
	case *ast.Block:
		return l.lowerBlock(ex, sc)
	}
	return &TextLit{base: base{e.GetSpan()}, Value: ""}
}

// lowerRecordFieldPath expands a nested surface path like `a.b: v` into
// `a: { b: v }` so the IR only ever carries single-level fields.
func (l *Lowerer) lowerRecordFieldPath(path []string, value Node) RecordField {
	if len(path) <= 1 {
		name := ""
		if len(path) == 1 {
			name = path[0]
		}
		return RecordField{Name: name, Value: value}
	}
	nested := l.lowerRecordFieldPath(path[1:], value)
	return RecordField{
		Name: path[0],
		Value: &RecordLit{
			base:   base{value.Span()},
			Fields: []RecordField{nested},
		},
	}
}

func (l *Lowerer) lowerPatchFields(fields []ast.PatchField2, sc *scope) []PatchField {
	out := make([]PatchField, len(fields))
	for i, f := range fields {
		segs := make([]PatchSegment, len(f.Path))
		for j, s := range f.Path {
			seg := PatchSegment{Field: s.Field}
			switch s.Kind {
			case ast.PatchField, ast.PatchFieldDeref:
				seg.Kind = PatchFieldSeg
			case ast.PatchIndex:
				seg.Kind = PatchIndexSeg
				seg.Index = l.lowerExpr(s.Index, sc)
			case ast.PatchIndexAll:
				seg.Kind = PatchIndexAllSeg
			case ast.PatchIndexPredicate:
				seg.Kind = PatchIndexPredicateSeg
				seg.Index = l.lowerExpr(s.Index, sc)
			}
			segs[j] = seg
		}
		out[i] = PatchField{Path: segs, Value: l.lowerExpr(f.Value, sc)}
	}
	return out
}

func (l *Lowerer) lowerLiteral(lit *ast.Literal) Node {
	sp := lit.Span
	switch lit.Kind {
	case ast.LitInt:
		if lit.Suffix != "" {
			return &SuffixedLit{base: base{sp}, Value: &IntLit{base: base{sp}, Value: lit.IntVal}, Suffix: lit.Suffix}
		}
		return &IntLit{base: base{sp}, Value: lit.IntVal}
	case ast.LitFloat:
		if lit.Suffix != "" {
			return &SuffixedLit{base: base{sp}, Value: &FloatLit{base: base{sp}, Value: lit.FloatVal}, Suffix: lit.Suffix}
		}
		return &FloatLit{base: base{sp}, Value: lit.FloatVal}
	case ast.LitText:
		return &TextLit{base: base{sp}, Value: lit.TextVal}
	case ast.LitBool:
		return &BoolLit{base: base{sp}, Value: lit.BoolVal}
	case ast.LitDateTime:
		return &SigilLit{base: base{sp}, Tag: "datetime", Body: lit.TextVal}
	case ast.LitSigil:
		return &SigilLit{base: base{sp}, Tag: lit.SigilTag, Body: lit.SigilBody, Flags: lit.SigilFlags}
	}
	return &TextLit{base: base{sp}}
}

func (l *Lowerer) lowerMatch(m *ast.MatchExpr, sc *scope) Node {
	cases := make([]MatchCase, len(m.Cases))
	for i, c := range m.Cases {
		inner := sc.push()
		pat := l.lowerPattern(c.Pattern, inner)
		var guard Node
		if c.Guard != nil {
			guard = l.lowerExpr(c.Guard, inner)
		}
		cases[i] = MatchCase{Pattern: pat, Guard: guard, Body: l.lowerExpr(c.Body, inner)}
	}
	if m.Scrutinee == nil {
		param := "$matchSubject"
		scrutineeRef := &Ident{base: base{m.Span}, Ref: Ref{Kind: RefLocal, Name: param}}
		return &Lambda{
			base:   base{m.Span},
			Params: []Pattern{&BindPattern{Name: param}},
			Body:   &Match{base: base{m.Span}, Scrutinee: scrutineeRef, Cases: cases},
		}
	}
	return &Match{base: base{m.Span}, Scrutinee: l.lowerExpr(m.Scrutinee, sc), Cases: cases}
}

func (l *Lowerer) lowerBlock(b *ast.Block, sc *scope) Node {
	kind := BlockPlain
	switch b.Kind {
	case ast.BlockEffect:
		kind = BlockEffect
	case ast.BlockGenerate:
		kind = BlockGenerate
	case ast.BlockResource:
		kind = BlockResource
	}
	cur := sc
	items := make([]BlockItem, 0, len(b.Items))
	for _, item := range b.Items {
		switch item.Kind {
		case ast.ItemBind, ast.ItemLet:
			val := l.lowerExpr(item.Expr, cur)
			cur = cur.push()
			pat := l.lowerPattern(item.Pattern, cur)
			kind2 := ItemLet
			if item.Kind == ast.ItemBind {
				kind2 = ItemBind
			}
			items = append(items, BlockItem{Kind: kind2, Pattern: pat, Value: val})
		case ast.ItemFilter:
			items = append(items, BlockItem{Kind: ItemFilter, Value: l.lowerExpr(item.Expr, cur)})
		case ast.ItemYield:
			items = append(items, BlockItem{Kind: ItemYield, Value: l.lowerExpr(item.Expr, cur)})
		case ast.ItemRecurse:
			items = append(items, BlockItem{Kind: ItemRecurse, Value: l.lowerExpr(item.Expr, cur)})
		case ast.ItemLoop:
			// No-op marker (decided open question), dropped during lowering.
		default:
			items = append(items, BlockItem{Kind: ItemExpr, Value: l.lowerExpr(item.Expr, cur)})
		}
	}
	return &Block{base: base{b.Span}, Kind: kind, Items: items}
}

func (l *Lowerer) lowerPattern(p ast.Pattern, sc *scope) Pattern {
	switch pt := p.(type) {
	case *ast.WildcardPattern:
		return &WildcardPattern{}
	case *ast.IdentPattern:
		sc.bind(pt.Name.Name)
		return &BindPattern{Name: pt.Name.Name}
	case *ast.LiteralPattern:
		return &LiteralPattern{Value: l.lowerLiteral(pt.Literal)}
	case *ast.ConstructorPattern:
		cd := l.constructors[pt.Name.Name]
		args := make([]Pattern, len(pt.Args))
		for i, a := range pt.Args {
			args[i] = l.lowerPattern(a, sc)
		}
		return &ConstructorPattern{Ref: Ref{Kind: RefConstructor, Name: pt.Name.Name, Arity: cd.Arity}, Args: args}
	case *ast.TuplePattern:
		items := make([]Pattern, len(pt.Items))
		for i, it := range pt.Items {
			items[i] = l.lowerPattern(it, sc)
		}
		return &TuplePattern{Items: items}
	case *ast.ListPattern:
		items := make([]Pattern, len(pt.Items))
		for i, it := range pt.Items {
			items[i] = l.lowerPattern(it, sc)
		}
		rest := ""
		if pt.Rest != nil {
			rest = pt.Rest.Name
			sc.bind(rest)
		}
		return &ListPattern{Items: items, Rest: rest}
	case *ast.RecordPattern:
		fields := make([]RecordPatternField, len(pt.Fields))
		for i, f := range pt.Fields {
			name := ""
			if len(f.Path) > 0 {
				name = f.Path[len(f.Path)-1]
			}
			fields[i] = RecordPatternField{Name: name, Pattern: l.lowerPattern(f.Pattern, sc)}
		}
		return &RecordPattern{Fields: fields}
	}
	return &WildcardPattern{}
}
