package runtime

import (
	"fmt"

	"github.com/aivi-lang/aivi/internal/ir"
	"github.com/aivi-lang/aivi/internal/value"
)

// evalPatch applies every field of a patch (`target <| {...}` or a
// desugared `patch {...}` lambda) to a fresh copy of the target,
// left to right, per spec.md §4.2 "patch path segments".
func (rt *Runtime) evalPatch(env *value.Env, n *ir.Patch) (*value.Value, error) {
	target, err := rt.eval(env, n.Target)
	if err != nil {
		return nil, err
	}
	for _, f := range n.Fields {
		leaf, err := rt.eval(env, f.Value)
		if err != nil {
			return nil, err
		}
		target, err = rt.applyPatchField(env, target, f.Path, leaf)
		if err != nil {
			return nil, err
		}
	}
	return target, nil
}

// applyPatchField walks path against cur, returning an updated copy.
// A callable leaf (Closure/Builtin) is applied to the old value at the
// final segment rather than replacing it outright, matching spec.md's
// "update-function" patch leaf form; anything else is a plain set.
func (rt *Runtime) applyPatchField(env *value.Env, cur *value.Value, path []ir.PatchSegment, leaf *value.Value) (*value.Value, error) {
	if len(path) == 0 {
		if isCallable(leaf) {
			return rt.apply(leaf, []*value.Value{cur})
		}
		return leaf, nil
	}
	seg := path[0]
	rest := path[1:]
	switch seg.Kind {
	case ir.PatchFieldSeg:
		if cur.Kind != value.KRecord {
			return nil, fmt.Errorf("runtime: patch field %q on non-record value", seg.Field)
		}
		out := make(map[string]*value.Value, len(cur.Record))
		for k, v := range cur.Record {
			out[k] = v
		}
		old, ok := out[seg.Field]
		if !ok {
			old = value.Unit()
		}
		updated, err := rt.applyPatchField(env, old, rest, leaf)
		if err != nil {
			return nil, err
		}
		out[seg.Field] = updated
		return value.Record(out), nil
	case ir.PatchIndexSeg:
		if cur.Kind != value.KList {
			return nil, fmt.Errorf("runtime: patch index on non-list value")
		}
		idxVal, err := rt.eval(env, seg.Index)
		if err != nil {
			return nil, err
		}
		if idxVal.Kind != value.KInt || idxVal.Int < 0 || int(idxVal.Int) >= len(cur.List) {
			return nil, fmt.Errorf("runtime: patch index out of range")
		}
		out := append([]*value.Value{}, cur.List...)
		updated, err := rt.applyPatchField(env, out[idxVal.Int], rest, leaf)
		if err != nil {
			return nil, err
		}
		out[idxVal.Int] = updated
		return value.List(out), nil
	case ir.PatchIndexAllSeg:
		if cur.Kind != value.KList {
			return nil, fmt.Errorf("runtime: patch [*] on non-list value")
		}
		out := make([]*value.Value, len(cur.List))
		for i, item := range cur.List {
			updated, err := rt.applyPatchField(env, item, rest, leaf)
			if err != nil {
				return nil, err
			}
			out[i] = updated
		}
		return value.List(out), nil
	case ir.PatchIndexPredicateSeg:
		if cur.Kind != value.KList {
			return nil, fmt.Errorf("runtime: predicated patch on non-list value")
		}
		pred, err := rt.eval(env, seg.Index)
		if err != nil {
			return nil, err
		}
		out := make([]*value.Value, len(cur.List))
		for i, item := range cur.List {
			keep, err := rt.apply(pred, []*value.Value{item})
			if err != nil {
				return nil, err
			}
			if keep.Kind == value.KBool && keep.Bool {
				updated, err := rt.applyPatchField(env, item, rest, leaf)
				if err != nil {
					return nil, err
				}
				out[i] = updated
			} else {
				out[i] = item
			}
		}
		return value.List(out), nil
	}
	return nil, fmt.Errorf("runtime: unknown patch segment kind")
}

func isCallable(v *value.Value) bool {
	return v.Kind == value.KClosure || v.Kind == value.KBuiltin || v.Kind == value.KMultiClause
}
