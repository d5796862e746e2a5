package types

import (
	"github.com/aivi-lang/aivi/internal/ast"
	"github.com/aivi-lang/aivi/internal/diag"
)

// Inferencer holds the mutable state threaded through one multi-module
// inference run: a fresh-variable source, the accumulated diagnostic
// bag, the alias table, and the class/instance environment. This
// mirrors github.com/breadchris/yaegi's single long-lived
// `Interpreter` owning global resources, generalized from "one
// process" to "one inference pass".
type Inferencer struct {
	fresh   FreshSource
	diags   diag.Bag
	aliases Aliases
	classes *ClassEnv

	// constructorArity records each ADT constructor's declared field
	// count, used to validate ConstructorPattern arity.
	constructorArity map[string]int
}

// InferValueTypes type-checks every module and returns the resulting
// per-module environments plus all diagnostics collected, per the
// `InferValueTypes` driver seam.
func InferValueTypes(modules []*ast.Module) (map[string]*Env, []*diag.Diagnostic) {
	inf := &Inferencer{
		aliases:          Aliases{},
		classes:          NewClassEnv(),
		constructorArity: map[string]int{},
	}

	base := NewPreludeEnv(&inf.fresh)

	// Pass 1: register every type declaration (ADT constructors become
	// builtin-style values; aliases become entries in inf.aliases) and
	// every class declaration, across all modules, before checking any
	// expression — mirroring forward reference support for types.
	moduleEnvs := map[string]*Env{}
	for _, m := range modules {
		moduleEnvs[m.Name] = base
	}
	for _, m := range modules {
		env := moduleEnvs[m.Name]
		for _, item := range m.Items {
			switch it := item.(type) {
			case *ast.TypeDecl:
				env = inf.registerTypeDecl(env, it)
			case *ast.ClassDecl:
				inf.registerClass(it)
			case *ast.DomainDecl:
				for _, di := range it.Items {
					if td, ok := di.(*ast.TypeDecl); ok {
						env = inf.registerTypeDecl(env, td)
					}
				}
			}
		}
		moduleEnvs[m.Name] = env
	}

	// Pass 2: register instances now that aliases/classes are known.
	for _, m := range modules {
		env := moduleEnvs[m.Name]
		for _, item := range m.Items {
			if inst, ok := item.(*ast.InstanceDecl); ok {
				inf.registerInstance(env, inst)
			}
		}
	}

	// Pass 3: infer every top-level definition (including domain-nested
	// ones and instance methods already captured above).
	for _, m := range modules {
		env := moduleEnvs[m.Name]
		for _, item := range m.Items {
			switch it := item.(type) {
			case *ast.Definition:
				env = inf.inferTopLevelDef(env, it)
			case *ast.TypeSig:
				// A bare signature with no definition is only a forward
				// declaration; nothing further to check here.
			case *ast.DomainDecl:
				for _, di := range it.Items {
					if def, ok := di.(*ast.Definition); ok {
						env = inf.inferTopLevelDef(env, def)
					}
				}
			}
		}
		moduleEnvs[m.Name] = env
	}

	return moduleEnvs, inf.diags.All()
}

func (inf *Inferencer) registerTypeDecl(env *Env, td *ast.TypeDecl) *Env {
	paramScope := map[string]Type{}
	var paramVars []Type
	var paramIDs []int
	for _, p := range td.Params {
		v := inf.fresh.FreshNamed(p.Name)
		paramScope[p.Name] = v
		paramVars = append(paramVars, v)
		paramIDs = append(paramIDs, v.ID)
	}

	if td.Alias != nil {
		inf.aliases[td.Name.Name] = &AliasDef{
			Params: paramNames(td.Params),
			Body:   inf.typeExprToType(env, td.Alias, paramScope),
		}
		return env
	}

	BuiltinKinds[td.Name.Name] = Arrow(len(td.Params))
	for _, v := range td.Variants {
		var fieldTypes []Type
		for _, f := range v.Fields {
			fieldTypes = append(fieldTypes, inf.typeExprToType(env, f.Type, paramScope))
		}
		inf.constructorArity[v.Name.Name] = len(fieldTypes)
		result := Type(con(td.Name.Name, paramVars...))
		ctorType := result
		for i := len(fieldTypes) - 1; i >= 0; i-- {
			ctorType = &TFunc{Param: fieldTypes[i], Result: ctorType}
		}
		env = env.Extend(v.Name.Name, &Scheme{Vars: paramIDs, Type: ctorType})
	}
	return env
}

func paramNames(ids []ast.Identifier) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.Name
	}
	return out
}

func (inf *Inferencer) registerClass(cd *ast.ClassDecl) {
	paramScope := map[string]Type{}
	for _, p := range cd.Params {
		paramScope[p.Name] = inf.fresh.FreshNamed(p.Name)
	}
	members := map[string]Type{}
	for _, sig := range cd.Members {
		members[sig.Name.Name] = inf.typeExprToType(nil, sig.Type, paramScope)
	}
	inf.classes.AddClass(&ClassDef{Name: cd.Name.Name, Params: paramNames(cd.Params), Members: members})
}

func (inf *Inferencer) registerInstance(env *Env, id *ast.InstanceDecl) {
	var paramTypes []Type
	for _, pt := range id.ParamTypes {
		paramTypes = append(paramTypes, inf.typeExprToType(env, pt, nil))
	}
	methods := map[string]Type{}
	for _, m := range id.Methods {
		env = inf.inferTopLevelDef(env, m)
		if sc, ok := env.Lookup(m.Name.Name); ok {
			methods[m.Name.Name] = Instantiate(&inf.fresh, sc)
		}
	}
	inf.classes.AddInstance(&InstanceDef{Class: id.Class.Name, ParamTypes: paramTypes, Methods: methods})
}

// typeExprToType lowers a surface type expression to a canonical Type,
// resolving class/instance-bound parameter names through paramScope and
// recognizing row-operator applications (spec.md §4.3 "Row operators").
func (inf *Inferencer) typeExprToType(env *Env, te ast.TypeExpr, paramScope map[string]Type) Type {
	switch te := te.(type) {
	case *ast.TypeName:
		if v, ok := paramScope[te.Name.Name]; ok {
			return v
		}
		return con(te.Name.Name)
	case *ast.TypeApp:
		if name, ok := rowOpName(te.Func); ok {
			if t, handled := inf.applyRowOpType(env, name, te.Args, paramScope); handled {
				return t
			}
		}
		base := inf.typeExprToType(env, te.Func, paramScope)
		args := make([]Type, len(te.Args))
		for i, a := range te.Args {
			args[i] = inf.typeExprToType(env, a, paramScope)
		}
		if c, ok := base.(*TCon); ok {
			return &TCon{Name: c.Name, Args: append(append([]Type{}, c.Args...), args...)}
		}
		return base
	case *ast.TypeFunc:
		return &TFunc{
			Param:  inf.typeExprToType(env, te.Param, paramScope),
			Result: inf.typeExprToType(env, te.Result, paramScope),
		}
	case *ast.TypeTuple:
		items := make([]Type, len(te.Items))
		for i, it := range te.Items {
			items[i] = inf.typeExprToType(env, it, paramScope)
		}
		return &TTuple{Items: items}
	case *ast.TypeRecord:
		fields := map[string]Type{}
		for _, f := range te.Fields {
			fields[f.Name.Name] = inf.typeExprToType(env, f.Type, paramScope)
		}
		return &TRecord{Fields: fields, Open: te.Open}
	case *ast.TypeUniversal:
		return inf.fresh.Fresh()
	case *ast.TypeUnknown:
		return inf.fresh.Fresh()
	}
	return inf.fresh.Fresh()
}

func rowOpName(te ast.TypeExpr) (string, bool) {
	if tn, ok := te.(*ast.TypeName); ok {
		if _, ok := ParseRowOp(tn.Name.Name); ok {
			return tn.Name.Name, true
		}
	}
	return "", false
}

// applyRowOpType handles `Pick {name, email} Person`-shaped type
// applications: args[0] names the field spec, args[1] the source
// record (or a reference resolving to one through aliases/ADTs).
func (inf *Inferencer) applyRowOpType(env *Env, opName string, args []ast.TypeExpr, paramScope map[string]Type) (Type, bool) {
	if len(args) != 2 {
		return nil, false
	}
	op, _ := ParseRowOp(opName)
	names, renameMap := rowSpecNames(args[0])
	srcType := inf.typeExprToType(env, args[1], paramScope)
	srcType = resolveAlias(inf.aliases, srcType)
	rec, ok := srcType.(*TRecord)
	if !ok {
		inf.diags.Errorf(diag.ErrUnknownRowOperator, args[1].GetSpan(), "%s requires a record type", opName)
		return inf.fresh.Fresh(), true
	}
	out, err := ApplyRowOp(op, rec, names, renameMap)
	if err != nil {
		code := diag.ErrUnknownRowField
		if op == RowRename {
			code = diag.ErrRenameCollision
		}
		inf.diags.Errorf(code, args[0].GetSpan(), "%s", err.Error())
		return inf.fresh.Fresh(), true
	}
	return out, true
}

func rowSpecNames(te ast.TypeExpr) ([]string, map[string]string) {
	switch te := te.(type) {
	case *ast.TypeRecord:
		names := make([]string, 0, len(te.Fields))
		rename := map[string]string{}
		for _, f := range te.Fields {
			names = append(names, f.Name.Name)
			if tn, ok := f.Type.(*ast.TypeName); ok {
				rename[f.Name.Name] = tn.Name.Name
			}
		}
		return names, rename
	case *ast.TypeTuple:
		var names []string
		for _, it := range te.Items {
			if tn, ok := it.(*ast.TypeName); ok {
				names = append(names, tn.Name.Name)
			}
		}
		return names, nil
	}
	return nil, nil
}

// inferTopLevelDef infers one Definition, generalizes the result, and
// merges repeat clauses of the same name into a single scheme unified
// against the previous one (spec.md §4.3 "Generalization" — multi-
// clause support).
func (inf *Inferencer) inferTopLevelDef(env *Env, def *ast.Definition) *Env {
	fnType, s := inf.inferClause(env, def)
	fnType = s.Apply(fnType)

	if prev, ok := env.Lookup(def.Name.Name); ok {
		prevInst := Instantiate(&inf.fresh, prev)
		if s2, err := Unify(inf.aliases, Subst{}, prevInst, fnType); err == nil {
			fnType = s2.Apply(fnType)
		} else {
			inf.diags.Errorf(diag.ErrUnification, def.Span, "clause of %q does not match previous signature: %s", def.Name.Name, err.Error())
		}
	}

	scheme := Generalize(env, fnType)
	return env.Extend(def.Name.Name, scheme)
}

func (inf *Inferencer) inferClause(env *Env, def *ast.Definition) (Type, Subst) {
	def.Body = desugarHoles(def.Body)
	cur := env
	var paramTypes []Type
	s := Subst{}
	for _, p := range def.Params {
		pt := inf.fresh.Fresh()
		paramTypes = append(paramTypes, pt)
		var penv *Env
		penv, s = inf.bindPattern(cur, p, pt, s)
		cur = penv
	}
	bodyType, s2 := inf.inferExpr(cur, def.Body)
	s = Compose(s, s2)

	result := s.Apply(bodyType)
	for i := len(paramTypes) - 1; i >= 0; i-- {
		result = &TFunc{Param: s.Apply(paramTypes[i]), Result: result}
	}
	return result, s
}

// bindPattern extends env with the identifiers a pattern introduces,
// unifying its shape against expected.
func (inf *Inferencer) bindPattern(env *Env, pat ast.Pattern, expected Type, s Subst) (*Env, Subst) {
	switch p := pat.(type) {
	case *ast.WildcardPattern:
		return env, s
	case *ast.IdentPattern:
		return env.Extend(p.Name.Name, &Scheme{Type: expected}), s
	case *ast.LiteralPattern:
		lt := inf.literalType(p.Literal)
		s2, err := Unify(inf.aliases, s, expected, lt)
		if err != nil {
			inf.diags.Errorf(diag.ErrUnification, p.Span, "pattern literal type mismatch: %s", err.Error())
			return env, s
		}
		return env, s2
	case *ast.ConstructorPattern:
		ctorScheme, ok := env.Lookup(p.Name.Name)
		if !ok {
			inf.diags.Errorf(diag.ErrUnboundIdentifier, p.Span, "unknown constructor %q", p.Name.Name)
			return env, s
		}
		ctorType := Instantiate(&inf.fresh, ctorScheme)
		cur := env
		for _, arg := range p.Args {
			ft, ok := ctorType.(*TFunc)
			if !ok {
				inf.diags.Errorf(diag.ErrUnification, p.Span, "too many arguments to constructor %q", p.Name.Name)
				break
			}
			cur, s = inf.bindPattern(cur, arg, ft.Param, s)
			ctorType = ft.Result
		}
		s2, err := Unify(inf.aliases, s, expected, ctorType)
		if err != nil {
			inf.diags.Errorf(diag.ErrUnification, p.Span, "constructor pattern mismatch: %s", err.Error())
			return cur, s
		}
		return cur, s2
	case *ast.TuplePattern:
		itemVars := make([]Type, len(p.Items))
		for i := range itemVars {
			itemVars[i] = inf.fresh.Fresh()
		}
		s2, err := Unify(inf.aliases, s, expected, &TTuple{Items: itemVars})
		if err != nil {
			inf.diags.Errorf(diag.ErrUnification, p.Span, "tuple pattern mismatch: %s", err.Error())
			return env, s
		}
		cur := env
		for i, item := range p.Items {
			cur, s2 = inf.bindPattern(cur, item, itemVars[i], s2)
		}
		return cur, s2
	case *ast.ListPattern:
		elem := inf.fresh.Fresh()
		s2, err := Unify(inf.aliases, s, expected, TList(elem))
		if err != nil {
			inf.diags.Errorf(diag.ErrUnification, p.Span, "list pattern mismatch: %s", err.Error())
			return env, s
		}
		cur := env
		for _, item := range p.Items {
			cur, s2 = inf.bindPattern(cur, item, elem, s2)
		}
		if p.Rest != nil {
			cur = cur.Extend(p.Rest.Name, &Scheme{Type: TList(elem)})
		}
		return cur, s2
	case *ast.RecordPattern:
		fields := map[string]Type{}
		cur := env
		s2 := s
		for _, f := range p.Fields {
			ft := inf.fresh.Fresh()
			fields[f.Path[0]] = ft
			cur, s2 = inf.bindPattern(cur, f.Pattern, ft, s2)
		}
		s3, err := Unify(inf.aliases, s2, expected, &TRecord{Fields: fields, Open: true})
		if err != nil {
			inf.diags.Errorf(diag.ErrUnification, p.Span, "record pattern mismatch: %s", err.Error())
			return cur, s2
		}
		return cur, s3
	}
	return env, s
}

func (inf *Inferencer) literalType(lit *ast.Literal) Type {
	switch lit.Kind {
	case ast.LitInt:
		return TInt()
	case ast.LitFloat:
		return TFloat()
	case ast.LitText:
		return TText()
	case ast.LitBool:
		return TBool()
	case ast.LitDateTime:
		return con(DateTime)
	case ast.LitSigil:
		switch lit.SigilTag {
		case "r":
			return con(Regex)
		case "b":
			return con(Bytes)
		default:
			return TText()
		}
	}
	return inf.fresh.Fresh()
}

// inferExpr is the core recursive inference function; it returns the
// expression's type under the substitution accumulated so far.
func (inf *Inferencer) inferExpr(env *Env, e ast.Expr) (Type, Subst) {
	switch e := e.(type) {
	case *ast.IdentExpr:
		sc, ok := env.Lookup(e.Name.Name)
		if !ok {
			inf.diags.Errorf(diag.ErrUnboundIdentifier, e.Span, "unbound identifier %q", e.Name.Name)
			return inf.fresh.Fresh(), Subst{}
		}
		return Instantiate(&inf.fresh, sc), Subst{}

	case *ast.Literal:
		if e.Suffix != "" {
			return inf.inferSuffixedLiteral(env, e)
		}
		return inf.literalType(e), Subst{}

	case *ast.TextInterp:
		s := Subst{}
		for _, part := range e.Parts {
			if part.IsExpr {
				_, s2 := inf.inferExpr(env, part.Expr)
				s = Compose(s, s2)
			}
		}
		return TText(), s

	case *ast.ListExpr:
		elem := inf.fresh.Fresh()
		s := Subst{}
		for _, item := range e.Items {
			it, s2 := inf.inferExpr(env, item.Value)
			s = Compose(s, s2)
			want := elem
			if item.Spread {
				want = TList(elem)
			}
			s3, err := Unify(inf.aliases, s, want, it)
			if err != nil {
				inf.diags.Errorf(diag.ErrUnification, item.Value.GetSpan(), "list element type mismatch: %s", err.Error())
				continue
			}
			s = s3
		}
		return TList(s.Apply(elem)), s

	case *ast.TupleExpr:
		items := make([]Type, len(e.Items))
		s := Subst{}
		for i, it := range e.Items {
			t, s2 := inf.inferExpr(env, it)
			s = Compose(s, s2)
			items[i] = t
		}
		for i := range items {
			items[i] = s.Apply(items[i])
		}
		return &TTuple{Items: items}, s

	case *ast.RecordExpr:
		fields := map[string]Type{}
		s := Subst{}
		for _, f := range e.Fields {
			if f.Spread != nil {
				st, s2 := inf.inferExpr(env, f.Spread)
				s = Compose(s, s2)
				if rec, ok := resolveAlias(inf.aliases, s.Apply(st)).(*TRecord); ok {
					for k, v := range rec.Fields {
						fields[k] = v
					}
				}
				continue
			}
			ft, s2 := inf.inferExpr(env, f.Value)
			s = Compose(s, s2)
			name := f.Path[len(f.Path)-1]
			fields[name] = ft
		}
		for k, v := range fields {
			fields[k] = s.Apply(v)
		}
		return &TRecord{Fields: fields, Open: false}, s

	case *ast.PatchExpr:
		return inf.inferPatch(env, e)

	case *ast.PatchLiteral:
		rec := inf.fresh.Fresh()
		s := Subst{}
		for _, f := range e.Fields {
			_, s2 := inf.inferExpr(env, f.Value)
			s = Compose(s, s2)
		}
		return &TFunc{Param: rec, Result: rec}, s

	case *ast.FieldAccess:
		targetType, s := inf.inferExpr(env, e.Target)
		fieldVar := inf.fresh.Fresh()
		want := &TRecord{Fields: map[string]Type{e.Field: fieldVar}, Open: true}
		s2, err := Unify(inf.aliases, s, targetType, want)
		if err != nil {
			inf.diags.Errorf(diag.ErrUnknownRowField, e.Span, "no field %q: %s", e.Field, err.Error())
			return inf.fresh.Fresh(), s
		}
		return s2.Apply(fieldVar), s2

	case *ast.FieldSection:
		rec := inf.fresh.Fresh()
		fieldVar := inf.fresh.Fresh()
		s := Subst{}
		s, _ = Unify(inf.aliases, s, rec, &TRecord{Fields: map[string]Type{e.Field: fieldVar}, Open: true})
		return &TFunc{Param: s.Apply(rec), Result: s.Apply(fieldVar)}, s

	case *ast.IndexExpr:
		targetType, s := inf.inferExpr(env, e.Target)
		idxType, s2 := inf.inferExpr(env, e.Index)
		s = Compose(s, s2)
		elem := inf.fresh.Fresh()
		// Accept List index (Int) or Map index (any key type).
		if s3, err := Unify(inf.aliases, s, targetType, TList(elem)); err == nil {
			if s4, err2 := Unify(inf.aliases, s3, idxType, TInt()); err2 == nil {
				return s4.Apply(elem), s4
			}
		}
		keyVar := inf.fresh.Fresh()
		s3, err := Unify(inf.aliases, s, targetType, TMap(keyVar, elem))
		if err != nil {
			inf.diags.Errorf(diag.ErrUnification, e.Span, "not indexable: %s", err.Error())
			return inf.fresh.Fresh(), s
		}
		s4, _ := Unify(inf.aliases, s3, idxType, keyVar)
		return s4.Apply(elem), s4

	case *ast.CallExpr:
		return inf.inferApplyChain(env, e.Func, e.Args, e.Span)

	case *ast.Apply:
		return inf.inferApplyChain(env, e.Func, []ast.Expr{e.Arg}, e.Span)

	case *ast.LambdaExpr:
		cur := env
		var paramTypes []Type
		s := Subst{}
		for _, p := range e.Params {
			pt := inf.fresh.Fresh()
			paramTypes = append(paramTypes, pt)
			var penv *Env
			penv, s = inf.bindPattern(cur, p, pt, s)
			cur = penv
		}
		bodyType, s2 := inf.inferExpr(cur, e.Body)
		s = Compose(s, s2)
		result := s.Apply(bodyType)
		for i := len(paramTypes) - 1; i >= 0; i-- {
			result = &TFunc{Param: s.Apply(paramTypes[i]), Result: result}
		}
		return result, s

	case *ast.MatchExpr:
		return inf.inferMatch(env, e)

	case *ast.IfExpr:
		condT, s := inf.inferExpr(env, e.Cond)
		s2, err := Unify(inf.aliases, s, condT, TBool())
		if err != nil {
			inf.diags.Errorf(diag.ErrUnification, e.Cond.GetSpan(), "if condition must be Bool: %s", err.Error())
		} else {
			s = s2
		}
		thenT, s3 := inf.inferExpr(env, e.Then)
		s = Compose(s, s3)
		if e.Else == nil {
			s4, _ := Unify(inf.aliases, s, thenT, TUnit())
			return TUnit(), s4
		}
		elseT, s4 := inf.inferExpr(env, e.Else)
		s = Compose(s, s4)
		s5, err := Unify(inf.aliases, s, thenT, elseT)
		if err != nil {
			inf.diags.Errorf(diag.ErrUnification, e.Span, "if branches disagree: %s", err.Error())
			return thenT, s
		}
		return s5.Apply(thenT), s5

	case *ast.BinaryExpr:
		return inf.inferBinary(env, e)

	case *ast.Block:
		return inf.inferBlock(env, e)
	}
	return inf.fresh.Fresh(), Subst{}
}

// inferApplyChain infers `f(a1, a2, ...)` / `f a1` by threading
// substitutions across each argument; when f is a bare identifier
// naming a class member, dispatch resolves the instance first
// (spec.md §4.3 "Class/instance dispatch").
func (inf *Inferencer) inferApplyChain(env *Env, fn ast.Expr, args []ast.Expr, span diag.Span) (Type, Subst) {
	argTypes := make([]Type, len(args))
	s := Subst{}
	for i, a := range args {
		t, s2 := inf.inferExpr(env, a)
		s = Compose(s, s2)
		argTypes[i] = t
	}

	var fnType Type
	if id, ok := fn.(*ast.IdentExpr); ok {
		if inst, err := inf.classes.ResolveMember(inf.aliases, id.Name.Name, argTypes); err == nil {
			fnType = inst.Methods[id.Name.Name]
		} else if _, isMember := inf.memberOwner(id.Name.Name); isMember {
			inf.diags.Errorf(classDispatchCode(err), span, "%s", err.Error())
			return inf.fresh.Fresh(), s
		}
	}
	if fnType == nil {
		t, s2 := inf.inferExpr(env, fn)
		s = Compose(s, s2)
		fnType = t
	}

	for i, at := range argTypes {
		resultVar := inf.fresh.Fresh()
		s2, err := Unify(inf.aliases, s, fnType, &TFunc{Param: at, Result: resultVar})
		if err != nil {
			inf.diags.Errorf(diag.ErrUnification, args[i].GetSpan(), "argument type mismatch: %s", err.Error())
			return inf.fresh.Fresh(), s
		}
		s = s2
		fnType = s.Apply(resultVar)
	}
	return fnType, s
}

func (inf *Inferencer) memberOwner(name string) (*ClassDef, bool) {
	for _, c := range inf.classes.Classes {
		if _, ok := c.Members[name]; ok {
			return c, true
		}
	}
	return nil, false
}

func classDispatchCode(err error) string {
	if err == nil {
		return diag.ErrNoInstanceFound
	}
	msg := err.Error()
	if len(msg) > 9 && msg[:9] == "ambiguous" {
		return diag.ErrAmbiguousInstance
	}
	return diag.ErrNoInstanceFound
}

func (inf *Inferencer) inferBinary(env *Env, e *ast.BinaryExpr) (Type, Subst) {
	lt, s := inf.inferExpr(env, e.Left)
	rt, s2 := inf.inferExpr(env, e.Right)
	s = Compose(s, s2)

	switch e.Op {
	case "&&", "||":
		s3, _ := Unify(inf.aliases, s, lt, TBool())
		s4, _ := Unify(inf.aliases, s3, rt, TBool())
		return TBool(), s4
	case "==", "!=", "<", ">", "<=", ">=":
		s3, err := Unify(inf.aliases, s, lt, rt)
		if err != nil {
			inf.diags.Errorf(diag.ErrUnification, e.Span, "comparison operand mismatch: %s", err.Error())
			return TBool(), s
		}
		return TBool(), s3
	case "..":
		s3, _ := Unify(inf.aliases, s, lt, TInt())
		s4, _ := Unify(inf.aliases, s3, rt, TInt())
		return TList(TInt()), s4
	default: // + - * / %
		s3, err := Unify(inf.aliases, s, lt, rt)
		if err != nil {
			inf.diags.Errorf(diag.ErrUnification, e.Span, "arithmetic operand mismatch: %s", err.Error())
			return lt, s
		}
		return s3.Apply(lt), s3
	}
}

// inferSuffixedLiteral types a suffixed numeral through its domain
// template `1<suffix> : Int|Float -> T`, per spec.md §4.3.
func (inf *Inferencer) inferSuffixedLiteral(env *Env, lit *ast.Literal) (Type, Subst) {
	templateName := "1" + lit.Suffix
	sc, ok := env.Lookup(templateName)
	if !ok {
		inf.diags.Errorf(diag.ErrUnknownSuffixTemplate, lit.Span, "no domain template for suffix %q", lit.Suffix)
		return inf.fresh.Fresh(), Subst{}
	}
	templateType := Instantiate(&inf.fresh, sc)
	argType := TInt()
	if lit.Kind == ast.LitFloat {
		argType = TFloat()
	}
	resultVar := inf.fresh.Fresh()
	s, err := Unify(inf.aliases, Subst{}, templateType, &TFunc{Param: argType, Result: resultVar})
	if err != nil {
		inf.diags.Errorf(diag.ErrUnification, lit.Span, "suffix template %q mismatch: %s", templateName, err.Error())
		return inf.fresh.Fresh(), Subst{}
	}
	return s.Apply(resultVar), s
}

func (inf *Inferencer) inferMatch(env *Env, e *ast.MatchExpr) (Type, Subst) {
	if e.Scrutinee == nil {
		// Headless match is a lambda over the cases (spec.md §3 "Module").
		param := inf.fresh.Fresh()
		resultVar := inf.fresh.Fresh()
		s := Subst{}
		for _, c := range e.Cases {
			cenv, s2 := inf.bindPattern(env, c.Pattern, param, s)
			s = s2
			if c.Guard != nil {
				_, s3 := inf.inferExpr(cenv, c.Guard)
				s = Compose(s, s3)
			}
			bt, s3 := inf.inferExpr(cenv, c.Body)
			s = Compose(s, s3)
			if s4, err := Unify(inf.aliases, s, resultVar, bt); err == nil {
				s = s4
			} else {
				inf.diags.Errorf(diag.ErrUnification, c.Body.GetSpan(), "match case type mismatch: %s", err.Error())
			}
		}
		return &TFunc{Param: s.Apply(param), Result: s.Apply(resultVar)}, s
	}

	scrutT, s := inf.inferExpr(env, e.Scrutinee)
	resultVar := inf.fresh.Fresh()
	for _, c := range e.Cases {
		cenv, s2 := inf.bindPattern(env, c.Pattern, scrutT, s)
		s = s2
		if c.Guard != nil {
			_, s3 := inf.inferExpr(cenv, c.Guard)
			s = Compose(s, s3)
		}
		bt, s3 := inf.inferExpr(cenv, c.Body)
		s = Compose(s, s3)
		if s4, err := Unify(inf.aliases, s, resultVar, bt); err == nil {
			s = s4
		} else {
			inf.diags.Errorf(diag.ErrUnification, c.Body.GetSpan(), "match case type mismatch: %s", err.Error())
		}
	}
	return s.Apply(resultVar), s
}

// inferPatch validates each path against the target's record type and
// checks the leaf shape, per spec.md §4.3 "Patch operator".
func (inf *Inferencer) inferPatch(env *Env, e *ast.PatchExpr) (Type, Subst) {
	targetT, s := inf.inferExpr(env, e.Target)
	for _, f := range e.Fields {
		cur := targetT
		for _, seg := range f.Path {
			fieldVar := inf.fresh.Fresh()
			want := &TRecord{Fields: map[string]Type{seg.Field: fieldVar}, Open: true}
			s2, err := Unify(inf.aliases, s, cur, want)
			if err != nil {
				inf.diags.Errorf(diag.ErrInvalidPatchPath, e.Span, "unknown patch field %q: %s", seg.Field, err.Error())
				break
			}
			s = s2
			cur = s.Apply(fieldVar)
		}
		leafT, s2 := inf.inferExpr(env, f.Value)
		s = Compose(s, s2)
		// Accept value:T (set) or T->T (update); try set first.
		if s3, err := Unify(inf.aliases, s, leafT, cur); err == nil {
			s = s3
			continue
		}
		if s3, err := Unify(inf.aliases, s, leafT, &TFunc{Param: cur, Result: cur}); err == nil {
			s = s3
			continue
		}
		effT := TEffect(inf.fresh.Fresh(), cur)
		if s3, err := Unify(inf.aliases, s, leafT, effT); err == nil {
			s = s3
			continue
		}
		inf.diags.Errorf(diag.ErrUnification, f.Value.GetSpan(), "patch value does not match field type, update function, or effect")
	}
	return s.Apply(targetT), s
}
