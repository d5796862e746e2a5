// Package runtime evaluates lowered internal/ir trees against
// internal/value's tagged union, applying closures/builtins/
// multi-clause dispatch and driving effect/generate/resource blocks
// through internal/effect. It is the tree-walking counterpart to
// internal/backend's native Go emission; both share the same Value
// universe so a program behaves identically under either (spec.md §4.5
// "dual execution paths produce observably identical results").
package runtime

import (
	"fmt"

	"github.com/aivi-lang/aivi/internal/effect"
	"github.com/aivi-lang/aivi/internal/ir"
	"github.com/aivi-lang/aivi/internal/value"
)

// Runtime holds the fully-linked program: every global name (across
// every module, the same cross-module simplification internal/types
// and internal/ir make) resolves through one flat Env, with
// constructors and prelude/domain builtins layered in ahead of it.
type Runtime struct {
	globalEnv *value.Env
	builtins  map[string]*value.Value
}

// New links prog into a runnable Runtime. Builtins come from
// internal/runtime's own registry (BuildBuiltins in builtins.go, whose
// names BuiltinNames below reports) rather than being passed in, since the catalogue is
// fixed by spec.md's prelude.
func New(prog *ir.Program) *Runtime {
	rt := &Runtime{globalEnv: value.NewEnv(), builtins: BuildBuiltins()}
	rt.link(prog)
	return rt
}

// BuiltinNames reports every bare identifier the prelude binds, for
// internal/ir's Lowerer to resolve as RefBuiltin ahead of global
// lookup.
func BuiltinNames() map[string]bool {
	names := map[string]bool{}
	for k := range BuildBuiltins() {
		names[k] = true
	}
	names["Unit"] = true
	names["True"] = true
	names["False"] = true
	names["None"] = true
	names["Some"] = true
	names["Ok"] = true
	names["Err"] = true
	names["Closed"] = true
	return names
}

// link pre-creates a placeholder cell for every global name (so
// mutually/self-recursive function bodies can reference siblings that
// haven't been filled in yet — they only run later, once the program
// is fully linked) and then fills every cell's content in place.
func (rt *Runtime) link(prog *ir.Program) {
	cells := map[string]*value.Value{}
	for _, m := range prog.Modules {
		for _, def := range m.Defs {
			cells[def.Name] = &value.Value{}
		}
		for _, dd := range m.Domains {
			cells[dd.Name] = &value.Value{}
		}
	}
	for name, cell := range cells {
		rt.globalEnv.Set(name, cell)
	}
	for _, m := range prog.Modules {
		for _, def := range m.Defs {
			*cells[def.Name] = *rt.buildDefValue(def)
		}
	}
	// A domain's own name resolves to a record of its members, so
	// `Domain.member` reaches them through ordinary field access; the
	// members themselves are also bound as plain globals (set above),
	// so unqualified references to them keep working too.
	for _, m := range prog.Modules {
		for _, dd := range m.Domains {
			fields := make(map[string]*value.Value, len(dd.Members))
			for _, member := range dd.Members {
				fields[member.Name] = cells[member.Name]
			}
			*cells[dd.Name] = *value.Record(fields)
		}
	}
}

// buildDefValue turns a (possibly multi-clause) top-level definition
// into its runtime value: a zero-param single clause evaluates
// eagerly (it is a plain value binding), any clause with parameters
// becomes a Closure, and more than one clause becomes a MultiClause
// tried in declaration order (spec.md §3 "Invariants").
func (rt *Runtime) buildDefValue(def *ir.Def) *value.Value {
	if len(def.Clauses) == 1 && len(def.Clauses[0].Params) == 0 {
		v, err := rt.Eval(rt.globalEnv, def.Clauses[0].Body)
		if err != nil {
			return &value.Value{Kind: value.KConstructor, Constructor: value.Constructor{Name: "LinkError", Args: []*value.Value{value.Text(err.Error())}}}
		}
		return v
	}
	clauseVals := make([]*value.Value, len(def.Clauses))
	for i, c := range def.Clauses {
		clauseVals[i] = &value.Value{Kind: value.KClosure, Closure: &value.Closure{Env: rt.globalEnv, Body: c}}
	}
	if len(clauseVals) == 1 {
		return clauseVals[0]
	}
	return &value.Value{Kind: value.KMultiClause, MultiClause: &value.MultiClause{Clauses: clauseVals}}
}

// RunEffectValue looks up the global name and, if its value is an
// Effect or Resource, drives it to completion under a fresh top-level
// cancellation scope.
func (rt *Runtime) RunEffectValue(name string) (*value.Value, error) {
	v, ok := rt.globalEnv.Lookup(name)
	if !ok {
		return nil, fmt.Errorf("runtime: no such global %q", name)
	}
	host := effect.Host{}
	erun := effect.NewRuntime(host)
	return erun.RunEffectValue(v)
}

// Eval evaluates a single lowered node against env.
func (rt *Runtime) Eval(env *value.Env, node ir.Node) (*value.Value, error) {
	return rt.eval(env, node)
}
