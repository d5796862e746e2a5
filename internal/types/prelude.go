package types

// NewPreludeEnv builds the implicit base environment every non-
// `no_prelude` module inherits, per spec.md §4.3 "Environment" and
// "Prelude". Builtin domain records (`file`, `clock`, `random`,
// `channel`, `concurrent`) are typed as open records so that field
// access beyond the concrete methods named here still checks (the
// runtime's builtin registry, internal/runtime/builtins, carries the
// full catalogue; this environment only needs enough shape to type
// common call sites).
func NewPreludeEnv(fresh *FreshSource) *Env {
	e := NewEnv()

	e.Set(Unit, &Scheme{Type: TUnit()})
	e.Set("True", &Scheme{Type: TBool()})
	e.Set("False", &Scheme{Type: TBool()})

	a := fresh.Fresh()
	e.Set("None", &Scheme{Vars: []int{a.ID}, Type: TOption(a)})

	a = fresh.Fresh()
	e.Set("Some", &Scheme{Vars: []int{a.ID}, Type: &TFunc{Param: a, Result: TOption(a)}})

	eps, av := fresh.Fresh(), fresh.Fresh()
	e.Set("Ok", &Scheme{Vars: []int{eps.ID, av.ID}, Type: &TFunc{Param: av, Result: TResult(eps, av)}})

	eps, av = fresh.Fresh(), fresh.Fresh()
	e.Set("Err", &Scheme{Vars: []int{eps.ID, av.ID}, Type: &TFunc{Param: eps, Result: TResult(eps, av)}})

	e.Set("Closed", &Scheme{Type: con(Closed)})

	eps, av = fresh.Fresh(), fresh.Fresh()
	e.Set("pure", &Scheme{Vars: []int{eps.ID, av.ID}, Type: &TFunc{Param: av, Result: TEffect(eps, av)}})

	eps, av = fresh.Fresh(), fresh.Fresh()
	e.Set("fail", &Scheme{Vars: []int{eps.ID, av.ID}, Type: &TFunc{Param: eps, Result: TEffect(eps, av)}})

	eps, av, bv := fresh.Fresh(), fresh.Fresh(), fresh.Fresh()
	bindType := &TFunc{
		Param: TEffect(eps, av),
		Result: &TFunc{
			Param:  &TFunc{Param: av, Result: TEffect(eps, bv)},
			Result: TEffect(eps, bv),
		},
	}
	e.Set("bind", &Scheme{Vars: []int{eps.ID, av.ID, bv.ID}, Type: bindType})

	eps, av = fresh.Fresh(), fresh.Fresh()
	e.Set("attempt", &Scheme{Vars: []int{eps.ID, av.ID}, Type: &TFunc{
		Param: TEffect(eps, av), Result: TEffect(eps, TResult(eps, av)),
	}})

	eps, av = fresh.Fresh(), fresh.Fresh()
	e.Set("print", &Scheme{Vars: []int{eps.ID, av.ID}, Type: &TFunc{Param: av, Result: TEffect(eps, TUnit())}})
	eps, av = fresh.Fresh(), fresh.Fresh()
	e.Set("println", &Scheme{Vars: []int{eps.ID, av.ID}, Type: &TFunc{Param: av, Result: TEffect(eps, TUnit())}})

	eps, av = fresh.Fresh(), fresh.Fresh()
	e.Set("load", &Scheme{Vars: []int{eps.ID, av.ID}, Type: &TFunc{Param: TEffect(eps, av), Result: TEffect(eps, av)}})

	e.Set("file", &Scheme{Type: builtinFileType(fresh)})
	e.Set("clock", &Scheme{Type: builtinClockType(fresh)})
	e.Set("random", &Scheme{Type: builtinRandomType(fresh)})
	e.Set("channel", &Scheme{Type: builtinChannelType(fresh)})
	e.Set("concurrent", &Scheme{Type: builtinConcurrentType(fresh)})
	e.Set("html", &Scheme{Type: &TRecord{Fields: map[string]Type{}, Open: true}})

	return e
}

func builtinFileType(fresh *FreshSource) Type {
	eps := fresh.Fresh()
	readTy := &TFunc{Param: TText(), Result: TEffect(eps, TText())}
	eps2 := fresh.Fresh()
	writeTy := &TFunc{Param: TText(), Result: &TFunc{Param: TText(), Result: TEffect(eps2, TUnit())}}
	return &TRecord{Open: true, Fields: map[string]Type{
		"read":  readTy,
		"write": writeTy,
	}}
}

func builtinClockType(fresh *FreshSource) Type {
	eps := fresh.Fresh()
	nowTy := TEffect(eps, con(DateTime))
	eps2 := fresh.Fresh()
	sleepTy := &TFunc{Param: TInt(), Result: TEffect(eps2, TUnit())}
	return &TRecord{Open: true, Fields: map[string]Type{
		"now":   nowTy,
		"sleep": sleepTy,
	}}
}

func builtinRandomType(fresh *FreshSource) Type {
	eps := fresh.Fresh()
	intTy := &TFunc{Param: TInt(), Result: &TFunc{Param: TInt(), Result: TEffect(eps, TInt())}}
	eps2 := fresh.Fresh()
	floatTy := TEffect(eps2, TFloat())
	return &TRecord{Open: true, Fields: map[string]Type{
		"int":   intTy,
		"float": floatTy,
	}}
}

func builtinChannelType(fresh *FreshSource) Type {
	a := fresh.Fresh()
	eps := fresh.Fresh()
	makeTy := &TFunc{Param: TUnit(), Result: TEffect(eps, &TTuple{Items: []Type{con(Send, a), con(Recv, a)}})}
	return &TRecord{Open: true, Fields: map[string]Type{
		"make": makeTy,
	}}
}

func builtinConcurrentType(fresh *FreshSource) Type {
	eps, a := fresh.Fresh(), fresh.Fresh()
	scopeTy := &TFunc{Param: TEffect(eps, a), Result: TEffect(eps, a)}

	eps2, a2, b2 := fresh.Fresh(), fresh.Fresh(), fresh.Fresh()
	parTy := &TFunc{
		Param: TEffect(eps2, a2),
		Result: &TFunc{
			Param:  TEffect(eps2, b2),
			Result: TEffect(eps2, &TTuple{Items: []Type{a2, b2}}),
		},
	}

	eps3, a3 := fresh.Fresh(), fresh.Fresh()
	raceTy := &TFunc{
		Param:  TEffect(eps3, a3),
		Result: &TFunc{Param: TEffect(eps3, a3), Result: TEffect(eps3, a3)},
	}

	eps4, a4 := fresh.Fresh(), fresh.Fresh()
	spawnTy := &TFunc{Param: TEffect(eps4, a4), Result: TEffect(eps4, TUnit())}

	return &TRecord{Open: true, Fields: map[string]Type{
		"scope":         scopeTy,
		"par":           parTy,
		"race":          raceTy,
		"spawnDetached": spawnTy,
	}}
}
