package runtime

import (
	"fmt"

	"github.com/aivi-lang/aivi/internal/effect"
	"github.com/aivi-lang/aivi/internal/ir"
	"github.com/aivi-lang/aivi/internal/value"
)

func (rt *Runtime) evalBlock(env *value.Env, b *ir.Block) (*value.Value, error) {
	switch b.Kind {
	case ir.BlockEffect:
		return rt.evalEffectBlock(env, b), nil
	case ir.BlockGenerate:
		return rt.evalGenerateBlock(env, b)
	case ir.BlockResource:
		return rt.evalResourceBlock(env, b), nil
	default:
		return rt.evalPlainBlock(env, b)
	}
}

func (rt *Runtime) evalPlainBlock(env *value.Env, b *ir.Block) (*value.Value, error) {
	cur := env
	last := value.Unit()
	for i, item := range b.Items {
		switch item.Kind {
		case ir.ItemLet, ir.ItemBind:
			v, err := rt.eval(cur, item.Value)
			if err != nil {
				return nil, err
			}
			next, ok := rt.matchPattern(cur, item.Pattern, v)
			if !ok {
				return nil, fmt.Errorf("runtime: block binding pattern did not match")
			}
			cur = next
			last = value.Unit()
		case ir.ItemRecurse:
			v, err := rt.eval(cur, item.Value)
			if err != nil {
				return nil, err
			}
			last = v
		default:
			v, err := rt.eval(cur, item.Value)
			if err != nil {
				return nil, err
			}
			last = v
			if i < len(b.Items)-1 {
				last = value.Unit()
			}
		}
	}
	return last, nil
}

// evalEffectBlock builds an Effect value whose thunk threads the
// enclosing env through each item, driving every bound sub-effect
// through the live effect.Runtime it is eventually run with.
//
// Every `x <- expr` item may bind a Resource as well as a plain Effect
// (spec.md §4.4 "Resources"); acquiring one pushes its cleanup onto a
// stack local to this block invocation rather than running it there
// and then. On every exit from the block — normal completion, a user
// or implementation error, or cancellation — every cleanup acquired so
// far runs exactly once, in reverse acquisition order, under a runtime
// that ignores cancellation, with outcome precedence body error >
// cleanup error > body value (spec.md §8 invariant 5).
func (rt *Runtime) evalEffectBlock(env *value.Env, b *ir.Block) *value.Value {
	return &value.Value{Kind: value.KEffect, Effect: func(erAny interface{}) (*value.Value, error) {
		er, ok := erAny.(*effect.Runtime)
		if !ok {
			return nil, fmt.Errorf("runtime: effect block run outside an effect runtime")
		}
		var cleanups []*value.Value
		result, bodyErr := rt.runEffectBlockBody(er, env, b, &cleanups)
		cleanupErr := runCleanupsReversed(er, cleanups)
		if bodyErr != nil {
			return nil, bodyErr
		}
		if cleanupErr != nil {
			return nil, cleanupErr
		}
		return result, nil
	}}
}

func (rt *Runtime) runEffectBlockBody(er *effect.Runtime, env *value.Env, b *ir.Block, cleanups *[]*value.Value) (*value.Value, error) {
	cur := env
	last := value.Unit()
	for i, item := range b.Items {
		switch item.Kind {
		case ir.ItemBind:
			v, err := rt.eval(cur, item.Value)
			if err != nil {
				return nil, err
			}
			result, err := rt.runBoundEffectOrResource(er, v, cleanups)
			if err != nil {
				return nil, err
			}
			next, ok := rt.matchPattern(cur, item.Pattern, result)
			if !ok {
				return nil, fmt.Errorf("runtime: effect bind pattern did not match")
			}
			cur = next
		case ir.ItemLet:
			v, err := rt.eval(cur, item.Value)
			if err != nil {
				return nil, err
			}
			next, ok := rt.matchPattern(cur, item.Pattern, v)
			if !ok {
				return nil, fmt.Errorf("runtime: effect let pattern did not match")
			}
			cur = next
		case ir.ItemRecurse:
			v, err := rt.eval(cur, item.Value)
			if err != nil {
				return nil, err
			}
			result, err := er.RunEffectValue(v)
			if err != nil {
				return nil, err
			}
			last = result
		default:
			v, err := rt.eval(cur, item.Value)
			if err != nil {
				return nil, err
			}
			result, err := er.RunEffectValue(v)
			if err != nil {
				return nil, err
			}
			last = result
			if i < len(b.Items)-1 {
				last = value.Unit()
			}
		}
	}
	return last, nil
}

// runBoundEffectOrResource runs the right-hand side of an effect
// block's `x <- expr` item. A Resource acquires immediately and its
// cleanup is pushed onto cleanups for the enclosing block to run at
// exit; anything else (a plain Effect, or a pure value treated as
// already-run per spec.md §4.3's bind-retry rule) goes through the
// ordinary effect evaluator.
func (rt *Runtime) runBoundEffectOrResource(er *effect.Runtime, v *value.Value, cleanups *[]*value.Value) (*value.Value, error) {
	if v.Kind == value.KResource {
		result, cleanup, err := v.Resource(er)
		if err != nil {
			return nil, err
		}
		if cleanup != nil {
			*cleanups = append(*cleanups, cleanup)
		}
		return result, nil
	}
	return er.RunEffectValue(v)
}

// runCleanupsReversed runs every acquired cleanup in reverse order
// under a cancellation-immune runtime (spec.md §5 "Cancellation":
// "Cleanup is run under runtime.uncancelable(...)"), returning the
// first cleanup error encountered, if any, after all of them have run.
func runCleanupsReversed(er *effect.Runtime, cleanups []*value.Value) error {
	if len(cleanups) == 0 {
		return nil
	}
	uc := er.Uncancelable()
	var firstErr error
	for i := len(cleanups) - 1; i >= 0; i-- {
		if _, err := uc.RunEffectValue(cleanups[i]); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// evalGenerateBlock materializes a generate block's yields eagerly
// rather than as a true lazy coroutine: a documented simplification
// (DESIGN.md) given that a stack-suspendable generator would need its
// own goroutine-per-generator scheduling, which no consumer in this
// codebase needs in order to observe correct fold results.
func (rt *Runtime) evalGenerateBlock(env *value.Env, b *ir.Block) (*value.Value, error) {
	var yields []*value.Value
	var walk func(cur *value.Env, items []ir.BlockItem) error
	walk = func(cur *value.Env, items []ir.BlockItem) error {
		if len(items) == 0 {
			return nil
		}
		item, rest := items[0], items[1:]
		switch item.Kind {
		case ir.ItemYield:
			v, err := rt.eval(cur, item.Value)
			if err != nil {
				return err
			}
			yields = append(yields, v)
			return walk(cur, rest)
		case ir.ItemFilter:
			v, err := rt.eval(cur, item.Value)
			if err != nil {
				return err
			}
			if v.Kind == value.KBool && !v.Bool {
				return nil
			}
			return walk(cur, rest)
		case ir.ItemBind:
			v, err := rt.eval(cur, item.Value)
			if err != nil {
				return err
			}
			var source []*value.Value
			switch v.Kind {
			case value.KList:
				source = v.List
			case value.KGenerator:
				materialized, err := rt.materializeGenerator(v)
				if err != nil {
					return err
				}
				source = materialized
			default:
				return fmt.Errorf("runtime: generate bind source must be a List or Generator")
			}
			for _, elem := range source {
				next, ok := rt.matchPattern(cur, item.Pattern, elem)
				if !ok {
					continue
				}
				if err := walk(next, rest); err != nil {
					return err
				}
			}
			return nil
		case ir.ItemLet:
			v, err := rt.eval(cur, item.Value)
			if err != nil {
				return err
			}
			next, ok := rt.matchPattern(cur, item.Pattern, v)
			if !ok {
				return fmt.Errorf("runtime: generate let pattern did not match")
			}
			return walk(next, rest)
		default:
			if _, err := rt.eval(cur, item.Value); err != nil {
				return err
			}
			return walk(cur, rest)
		}
	}
	if err := walk(env, b.Items); err != nil {
		return nil, err
	}
	return makeGeneratorValue(yields), nil
}

func makeGeneratorValue(items []*value.Value) *value.Value {
	return &value.Value{Kind: value.KGenerator, Fold: func(k, z *value.Value, apply func(f, a *value.Value) (*value.Value, error)) (*value.Value, error) {
		acc := z
		for _, item := range items {
			step, err := apply(k, item)
			if err != nil {
				return nil, err
			}
			acc, err = apply(step, acc)
			if err != nil {
				return nil, err
			}
		}
		return acc, nil
	}}
}

func (rt *Runtime) materializeGenerator(v *value.Value) ([]*value.Value, error) {
	var collected []*value.Value
	collect := &value.Value{Kind: value.KBuiltin, Builtin: &value.Builtin{
		Name: "$collect", Arity: 2,
		Fn: func(args []*value.Value) (*value.Value, error) {
			collected = append(collected, args[0])
			return args[1], nil
		},
	}}
	adapter := func(f, a *value.Value) (*value.Value, error) { return rt.apply(f, []*value.Value{a}) }
	if _, err := v.Fold(collect, value.Unit(), adapter); err != nil {
		return nil, err
	}
	return collected, nil
}

// evalResourceBlock acquires everything up to the `yield` item,
// producing the yielded value plus a cleanup Effect that runs every
// item after it — the one-shot acquire/cleanup pairing spec.md §4.4
// describes for `resource`.
func (rt *Runtime) evalResourceBlock(env *value.Env, b *ir.Block) *value.Value {
	yieldIdx := -1
	for i, it := range b.Items {
		if it.Kind == ir.ItemYield {
			yieldIdx = i
			break
		}
	}
	return &value.Value{Kind: value.KResource, Resource: func(erAny interface{}) (*value.Value, *value.Value, error) {
		er, ok := erAny.(*effect.Runtime)
		if !ok {
			return nil, nil, fmt.Errorf("runtime: resource block run outside an effect runtime")
		}
		cur := env
		acquireItems := b.Items
		if yieldIdx >= 0 {
			acquireItems = b.Items[:yieldIdx]
		}
		for _, item := range acquireItems {
			switch item.Kind {
			case ir.ItemBind:
				v, err := rt.eval(cur, item.Value)
				if err != nil {
					return nil, nil, err
				}
				result, err := er.RunEffectValue(v)
				if err != nil {
					return nil, nil, err
				}
				next, ok := rt.matchPattern(cur, item.Pattern, result)
				if !ok {
					return nil, nil, fmt.Errorf("runtime: resource bind pattern did not match")
				}
				cur = next
			case ir.ItemLet:
				v, err := rt.eval(cur, item.Value)
				if err != nil {
					return nil, nil, err
				}
				next, ok := rt.matchPattern(cur, item.Pattern, v)
				if !ok {
					return nil, nil, fmt.Errorf("runtime: resource let pattern did not match")
				}
				cur = next
			default:
				if _, err := rt.eval(cur, item.Value); err != nil {
					return nil, nil, err
				}
			}
		}
		result := value.Unit()
		if yieldIdx >= 0 {
			v, err := rt.eval(cur, b.Items[yieldIdx].Value)
			if err != nil {
				return nil, nil, err
			}
			result = v
		}
		var afterItems []ir.BlockItem
		if yieldIdx >= 0 {
			afterItems = b.Items[yieldIdx+1:]
		}
		return result, cleanupEffect(rt, cur, afterItems), nil
	}}
}

func cleanupEffect(rt *Runtime, env *value.Env, items []ir.BlockItem) *value.Value {
	return &value.Value{Kind: value.KEffect, Effect: func(erAny interface{}) (*value.Value, error) {
		er, ok := erAny.(*effect.Runtime)
		if !ok {
			return nil, fmt.Errorf("runtime: cleanup run outside an effect runtime")
		}
		cur := env
		last := value.Unit()
		for _, item := range items {
			switch item.Kind {
			case ir.ItemBind:
				v, err := rt.eval(cur, item.Value)
				if err != nil {
					return nil, err
				}
				result, err := er.RunEffectValue(v)
				if err != nil {
					return nil, err
				}
				next, ok := rt.matchPattern(cur, item.Pattern, result)
				if !ok {
					return nil, fmt.Errorf("runtime: cleanup bind pattern did not match")
				}
				cur = next
			case ir.ItemLet:
				v, err := rt.eval(cur, item.Value)
				if err != nil {
					return nil, err
				}
				next, ok := rt.matchPattern(cur, item.Pattern, v)
				if !ok {
					return nil, fmt.Errorf("runtime: cleanup let pattern did not match")
				}
				cur = next
			default:
				v, err := rt.eval(cur, item.Value)
				if err != nil {
					return nil, err
				}
				result, err := er.RunEffectValue(v)
				if err != nil {
					return nil, err
				}
				last = result
			}
		}
		return last, nil
	}}
}
