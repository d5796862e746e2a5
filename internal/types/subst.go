package types

// Subst is a substitution from type-variable id to its bound Type; nil
// (absent) entries mean "still free". Compose(s1, s2) is applying s2
// and then s1; where both bind a variable, s2's binding wins.
type Subst map[int]Type

func (s Subst) Apply(t Type) Type {
	switch t := t.(type) {
	case *TVar:
		if bound, ok := s[t.ID]; ok {
			return s.Apply(bound)
		}
		return t
	case *TCon:
		if len(t.Args) == 0 {
			return t
		}
		args := make([]Type, len(t.Args))
		for i, a := range t.Args {
			args[i] = s.Apply(a)
		}
		return &TCon{Name: t.Name, Args: args}
	case *TFunc:
		return &TFunc{Param: s.Apply(t.Param), Result: s.Apply(t.Result)}
	case *TTuple:
		items := make([]Type, len(t.Items))
		for i, it := range t.Items {
			items[i] = s.Apply(it)
		}
		return &TTuple{Items: items}
	case *TRecord:
		fields := make(map[string]Type, len(t.Fields))
		for k, v := range t.Fields {
			fields[k] = s.Apply(v)
		}
		return &TRecord{Fields: fields, Open: t.Open}
	}
	return t
}

// ApplyEnv applies s to every scheme's body in e's own frame, leaving
// each scheme's own quantified variables untouched; parent frames are
// not visited.
func (s Subst) ApplyEnv(e *Env) {
	for name, sc := range e.vars {
		filtered := map[int]Type{}
		for id, ty := range s {
			bound := false
			for _, b := range sc.Vars {
				if b == id {
					bound = true
					break
				}
			}
			if !bound {
				filtered[id] = ty
			}
		}
		e.vars[name] = &Scheme{Vars: sc.Vars, Type: Subst(filtered).Apply(sc.Type)}
	}
}

// Compose returns a substitution equivalent to applying s2 then s1.
func Compose(s1, s2 Subst) Subst {
	out := Subst{}
	for id, t := range s2 {
		out[id] = s1.Apply(t)
	}
	for id, t := range s1 {
		if _, ok := out[id]; !ok {
			out[id] = t
		}
	}
	return out
}

// FreshSource hands out unique type-variable ids within one inference
// run, mirroring github.com/breadchris/yaegi's monotonically
// increasing node-id counter.
type FreshSource struct{ next int }

func (f *FreshSource) Fresh() *TVar {
	f.next++
	return &TVar{ID: f.next}
}

func (f *FreshSource) FreshNamed(name string) *TVar {
	f.next++
	return &TVar{ID: f.next, Name: name}
}

// Instantiate replaces a scheme's bound variables with fresh ones.
func Instantiate(fresh *FreshSource, s *Scheme) Type {
	if len(s.Vars) == 0 {
		return s.Type
	}
	sub := Subst{}
	for _, id := range s.Vars {
		sub[id] = fresh.Fresh()
	}
	return sub.Apply(s.Type)
}

// Generalize quantifies every free variable in t that is not free in
// the surrounding environment, per spec.md §4.3 "Generalization".
func Generalize(e *Env, t Type) *Scheme {
	envFree := EnvFreeVars(e)
	tFree := FreeVars(t)
	var vars []int
	for id := range tFree {
		if !envFree[id] {
			vars = append(vars, id)
		}
	}
	return &Scheme{Vars: vars, Type: t}
}
