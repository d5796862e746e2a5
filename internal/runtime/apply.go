package runtime

import (
	"fmt"

	"github.com/aivi-lang/aivi/internal/ir"
	"github.com/aivi-lang/aivi/internal/value"
)

// apply drives a callable value (Closure, Builtin, or MultiClause)
// over args, curry-ing when fewer args are supplied than the callee
// needs and folding leftover args back through apply when more are
// supplied than one application consumes.
func (rt *Runtime) apply(fn *value.Value, args []*value.Value) (*value.Value, error) {
	if len(args) == 0 {
		return fn, nil
	}
	switch fn.Kind {
	case value.KClosure:
		return rt.applyClosure(fn.Closure, args)
	case value.KBuiltin:
		return rt.applyBuiltin(fn.Builtin, args)
	case value.KMultiClause:
		return rt.applyMultiClause(fn.MultiClause, args)
	}
	return nil, fmt.Errorf("runtime: cannot apply value of kind %s", fn.Kind)
}

func (rt *Runtime) applyClosure(c *value.Closure, args []*value.Value) (*value.Value, error) {
	switch body := c.Body.(type) {
	case *ir.Lambda:
		return rt.applyParams(c.Env, body.Params, body.Body, args)
	case ir.Clause:
		return rt.applyParams(c.Env, body.Params, body.Body, args)
	}
	return nil, fmt.Errorf("runtime: closure body has unexpected type %T", c.Body)
}

// applyParams binds params against a prefix of args, returning a
// curried Closure if args ran out first, evaluating the body if they
// matched exactly, and feeding the remainder back through apply if
// args outnumbered params (this is how `f(a)(b)` and `f(a, b)` both
// reach a two-parameter function).
func (rt *Runtime) applyParams(env *value.Env, params []ir.Pattern, body ir.Node, args []*value.Value) (*value.Value, error) {
	n := len(params)
	if len(args) < n {
		n = len(args)
	}
	cur := env
	for i := 0; i < n; i++ {
		next, ok := rt.matchPattern(cur, params[i], args[i])
		if !ok {
			return nil, fmt.Errorf("runtime: argument %d does not match parameter pattern", i)
		}
		cur = next
	}
	if len(args) < len(params) {
		remaining := params[len(args):]
		return &value.Value{Kind: value.KClosure, Closure: &value.Closure{
			Env: cur, Body: &ir.Lambda{Params: remaining, Body: body},
		}}, nil
	}
	result, err := rt.eval(cur, body)
	if err != nil {
		return nil, err
	}
	if len(args) > len(params) {
		return rt.apply(result, args[len(params):])
	}
	return result, nil
}

func (rt *Runtime) applyBuiltin(b *value.Builtin, args []*value.Value) (*value.Value, error) {
	all := append(append([]*value.Value{}, b.Applied...), args...)
	if len(all) < b.Arity {
		return &value.Value{Kind: value.KBuiltin, Builtin: &value.Builtin{
			Name: b.Name, Arity: b.Arity, Applied: all, Fn: b.Fn,
		}}, nil
	}
	result, err := b.Fn(all[:b.Arity])
	if err != nil {
		return nil, err
	}
	if len(all) > b.Arity {
		return rt.apply(result, all[b.Arity:])
	}
	return result, nil
}

// applyMultiClause tries each clause in declaration order against the
// full argument list, taking the first whose parameter patterns all
// match (spec.md §3 "Invariants": first-match wins, clauses must share
// arity).
func (rt *Runtime) applyMultiClause(mc *value.MultiClause, args []*value.Value) (*value.Value, error) {
	for _, clause := range mc.Clauses {
		c := clause.Closure
		var params []ir.Pattern
		var body ir.Node
		switch b := c.Body.(type) {
		case ir.Clause:
			params, body = b.Params, b.Body
		case *ir.Lambda:
			params, body = b.Params, b.Body
		}
		if len(args) < len(params) {
			continue
		}
		cur := c.Env
		ok := true
		for i, p := range params {
			next, matched := rt.matchPattern(cur, p, args[i])
			if !matched {
				ok = false
				break
			}
			cur = next
		}
		if !ok {
			continue
		}
		result, err := rt.eval(cur, body)
		if err != nil {
			return nil, err
		}
		if len(args) > len(params) {
			return rt.apply(result, args[len(params):])
		}
		return result, nil
	}
	return nil, fmt.Errorf("runtime: no clause matches the given arguments")
}

// matchPattern attempts to bind pat against v, returning a child env
// with any bindings on success.
func (rt *Runtime) matchPattern(env *value.Env, pat ir.Pattern, v *value.Value) (*value.Env, bool) {
	switch p := pat.(type) {
	case *ir.WildcardPattern:
		return env, true
	case *ir.BindPattern:
		child := env.Extend()
		child.Set(p.Name, v)
		return child, true
	case *ir.LiteralPattern:
		lit, err := rt.eval(env, p.Value)
		if err != nil {
			return env, false
		}
		return env, valuesEqual(lit, v)
	case *ir.ConstructorPattern:
		if v.Kind != value.KConstructor || v.Constructor.Name != p.Ref.Name {
			return env, false
		}
		if len(p.Args) != len(v.Constructor.Args) {
			return env, false
		}
		cur := env
		for i, ap := range p.Args {
			next, ok := rt.matchPattern(cur, ap, v.Constructor.Args[i])
			if !ok {
				return env, false
			}
			cur = next
		}
		return cur, true
	case *ir.TuplePattern:
		if v.Kind != value.KTuple || len(v.Tuple) != len(p.Items) {
			return env, false
		}
		cur := env
		for i, ip := range p.Items {
			next, ok := rt.matchPattern(cur, ip, v.Tuple[i])
			if !ok {
				return env, false
			}
			cur = next
		}
		return cur, true
	case *ir.ListPattern:
		if v.Kind != value.KList {
			return env, false
		}
		if p.Rest == "" {
			if len(v.List) != len(p.Items) {
				return env, false
			}
		} else if len(v.List) < len(p.Items) {
			return env, false
		}
		cur := env
		for i, ip := range p.Items {
			next, ok := rt.matchPattern(cur, ip, v.List[i])
			if !ok {
				return env, false
			}
			cur = next
		}
		if p.Rest != "" {
			child := cur.Extend()
			child.Set(p.Rest, value.List(v.List[len(p.Items):]))
			cur = child
		}
		return cur, true
	case *ir.RecordPattern:
		if v.Kind != value.KRecord {
			return env, false
		}
		cur := env
		for _, f := range p.Fields {
			fv, ok := v.Record[f.Name]
			if !ok {
				return env, false
			}
			next, ok := rt.matchPattern(cur, f.Pattern, fv)
			if !ok {
				return env, false
			}
			cur = next
		}
		return cur, true
	}
	return env, false
}
