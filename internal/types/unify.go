package types

import "fmt"

// UnifyError reports a unification failure with both sides for
// diagnostic formatting; the caller attaches code E3000 and a span.
type UnifyError struct {
	Left, Right Type
	Reason      string
}

func (e *UnifyError) Error() string {
	return fmt.Sprintf("cannot unify %s with %s: %s", e.Left.String(), e.Right.String(), e.Reason)
}

// Aliases maps a type-alias name to its (possibly parameterized)
// definition; Unify expands both sides before matching, per
// spec.md §4.3 "Unification".
type Aliases map[string]*AliasDef

type AliasDef struct {
	Params []string
	Body   Type
}

// expandAlias substitutes args for params in an alias body.
func expandAlias(def *AliasDef, args []Type) Type {
	sub := Subst{}
	_ = sub
	names := map[string]Type{}
	for i, p := range def.Params {
		if i < len(args) {
			names[p] = args[i]
		}
	}
	var walk func(Type) Type
	walk = func(t Type) Type {
		switch t := t.(type) {
		case *TVar:
			// Alias parameters are lowered to named TVars.
			if repl, ok := names[t.Name]; ok && t.Name != "" {
				return repl
			}
			return t
		case *TCon:
			if len(t.Args) == 0 {
				if repl, ok := names[t.Name]; ok {
					return repl
				}
				return t
			}
			newArgs := make([]Type, len(t.Args))
			for i, a := range t.Args {
				newArgs[i] = walk(a)
			}
			return &TCon{Name: t.Name, Args: newArgs}
		case *TFunc:
			return &TFunc{Param: walk(t.Param), Result: walk(t.Result)}
		case *TTuple:
			items := make([]Type, len(t.Items))
			for i, it := range t.Items {
				items[i] = walk(it)
			}
			return &TTuple{Items: items}
		case *TRecord:
			fields := make(map[string]Type, len(t.Fields))
			for k, v := range t.Fields {
				fields[k] = walk(v)
			}
			return &TRecord{Fields: fields, Open: t.Open}
		}
		return t
	}
	return walk(def.Body)
}

func resolveAlias(aliases Aliases, t Type) Type {
	c, ok := t.(*TCon)
	if !ok {
		return t
	}
	def, ok := aliases[c.Name]
	if !ok {
		return t
	}
	return resolveAlias(aliases, expandAlias(def, c.Args))
}

// Unify computes a substitution making a and b equal under s, expanding
// aliases and normalizing `Con name args`/`App (Con name) args` first.
func Unify(aliases Aliases, s Subst, a, b Type) (Subst, error) {
	a = resolveAlias(aliases, s.Apply(a))
	b = resolveAlias(aliases, s.Apply(b))

	if av, ok := a.(*TVar); ok {
		return bindVar(s, av, b)
	}
	if bv, ok := b.(*TVar); ok {
		return bindVar(s, bv, a)
	}

	switch at := a.(type) {
	case *TCon:
		bt, ok := b.(*TCon)
		if !ok || at.Name != bt.Name || len(at.Args) != len(bt.Args) {
			return nil, &UnifyError{Left: a, Right: b, Reason: "constructor mismatch"}
		}
		cur := s
		for i := range at.Args {
			var err error
			cur, err = Unify(aliases, cur, at.Args[i], bt.Args[i])
			if err != nil {
				return nil, err
			}
		}
		return cur, nil
	case *TFunc:
		bt, ok := b.(*TFunc)
		if !ok {
			return nil, &UnifyError{Left: a, Right: b, Reason: "expected a function"}
		}
		s1, err := Unify(aliases, s, at.Param, bt.Param)
		if err != nil {
			return nil, err
		}
		return Unify(aliases, s1, at.Result, bt.Result)
	case *TTuple:
		bt, ok := b.(*TTuple)
		if !ok || len(at.Items) != len(bt.Items) {
			return nil, &UnifyError{Left: a, Right: b, Reason: "tuple arity mismatch"}
		}
		cur := s
		for i := range at.Items {
			var err error
			cur, err = Unify(aliases, cur, at.Items[i], bt.Items[i])
			if err != nil {
				return nil, err
			}
		}
		return cur, nil
	case *TRecord:
		bt, ok := b.(*TRecord)
		if !ok {
			return nil, &UnifyError{Left: a, Right: b, Reason: "expected a record"}
		}
		return unifyRecords(aliases, s, at, bt)
	}
	return nil, &UnifyError{Left: a, Right: b, Reason: "incompatible type shapes"}
}

// unifyRecords unifies structurally: a field present on both sides must
// unify; absent on a closed side is a failure, per spec.md §4.3
// "Unification".
func unifyRecords(aliases Aliases, s Subst, a, b *TRecord) (Subst, error) {
	cur := s
	for name, at := range a.Fields {
		bt, ok := b.Fields[name]
		if !ok {
			if !b.Open {
				return nil, &UnifyError{Left: a, Right: b, Reason: "missing field " + name}
			}
			continue
		}
		var err error
		cur, err = Unify(aliases, cur, at, bt)
		if err != nil {
			return nil, err
		}
	}
	for name := range b.Fields {
		if _, ok := a.Fields[name]; !ok && !a.Open {
			return nil, &UnifyError{Left: a, Right: b, Reason: "missing field " + name}
		}
	}
	return cur, nil
}

func bindVar(s Subst, v *TVar, t Type) (Subst, error) {
	if tv, ok := t.(*TVar); ok && tv.ID == v.ID {
		return s, nil
	}
	if occurs(v.ID, t) {
		return nil, &UnifyError{Left: v, Right: t, Reason: "occurs check failed"}
	}
	out := Subst{}
	for k, vv := range s {
		out[k] = vv
	}
	out[v.ID] = t
	return out, nil
}

func occurs(id int, t Type) bool {
	switch t := t.(type) {
	case *TVar:
		return t.ID == id
	case *TCon:
		for _, a := range t.Args {
			if occurs(id, a) {
				return true
			}
		}
	case *TFunc:
		return occurs(id, t.Param) || occurs(id, t.Result)
	case *TTuple:
		for _, it := range t.Items {
			if occurs(id, it) {
				return true
			}
		}
	case *TRecord:
		for _, f := range t.Fields {
			if occurs(id, f) {
				return true
			}
		}
	}
	return false
}
