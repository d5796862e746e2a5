// Package types implements Hindley-Milner inference over internal/ast,
// generalized with row-typed records, kinded type constructors, type
// aliases, and class/instance dispatch, per spec.md §4.3. The
// representation style — a small closed Type sum with a `cat`-like
// discriminant, paired with a mutable union-find-free substitution
// threaded explicitly through inference — mirrors
// github.com/breadchris/yaegi's `itype`/`scope`/`symbol` trio (a
// kind-tagged interpreter type description walked by a handful of
// top-level functions rather than a method-heavy class hierarchy).
package types

import (
	"fmt"
	"sort"
	"strings"
)

// Kind classifies type constructors: `*` for a concrete type, or an
// arrow for one that needs further application (spec.md §3 "Kind").
type Kind struct {
	Arity int // 0 means `*`; N means N args needed before becoming `*`
}

func Star() Kind     { return Kind{} }
func Arrow(n int) Kind { return Kind{Arity: n} }

func (k Kind) String() string {
	if k.Arity == 0 {
		return "*"
	}
	parts := make([]string, k.Arity+1)
	for i := range parts {
		parts[i] = "*"
	}
	return strings.Join(parts, "→")
}

// Type is the canonical internal type representation. Aliases are
// expanded to one of these variants before any unification happens
// (spec.md §3 "Type" invariant).
type Type interface {
	typeNode()
	String() string
}

// TVar is an unbound or substituted type variable, identified by a
// monotonically increasing id assigned by a Fresh source.
type TVar struct {
	ID   int
	Name string // original surface name, for diagnostics; may be empty
}

func (*TVar) typeNode() {}
func (v *TVar) String() string {
	if v.Name != "" {
		return v.Name
	}
	return fmt.Sprintf("t%d", v.ID)
}

// TCon is a nullary or applied type constructor: `Int`, `List`,
// `Effect`. Args is empty for a bare constructor reference. There is
// no separate application node: a surface type application is folded
// into TCon{Args: args} (see typeExprToType), so `Con name args` and
// `App (Con name) args` unify identically, per spec.md §4.3
// "Unification".
type TCon struct {
	Name string
	Args []Type
}

func (*TCon) typeNode() {}
func (c *TCon) String() string {
	if len(c.Args) == 0 {
		return c.Name
	}
	parts := make([]string, len(c.Args))
	for i, a := range c.Args {
		parts[i] = a.String()
	}
	return c.Name + " " + strings.Join(parts, " ")
}

// TFunc is a function arrow `Param -> Result`.
type TFunc struct {
	Param  Type
	Result Type
}

func (*TFunc) typeNode() {}
func (f *TFunc) String() string {
	return fmt.Sprintf("(%s -> %s)", f.Param.String(), f.Result.String())
}

// TTuple is a fixed-arity product type.
type TTuple struct {
	Items []Type
}

func (*TTuple) typeNode() {}
func (t *TTuple) String() string {
	parts := make([]string, len(t.Items))
	for i, it := range t.Items {
		parts[i] = it.String()
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

// TRecord is a row: a field set plus openness. A closed record unifies
// only against an identical field set; an open record accepts a
// superset, with the excess captured conceptually by a row variable
// (spec.md §3 "Invariants" — openness is significant, order is not).
type TRecord struct {
	Fields map[string]Type
	Open   bool
}

func (*TRecord) typeNode() {}
func (r *TRecord) String() string {
	names := make([]string, 0, len(r.Fields))
	for n := range r.Fields {
		names = append(names, n)
	}
	sort.Strings(names)
	parts := make([]string, 0, len(names)+1)
	for _, n := range names {
		parts = append(parts, n+": "+r.Fields[n].String())
	}
	if r.Open {
		parts = append(parts, "...")
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

// Scheme is a quantified type: `forall Vars. Type`.
type Scheme struct {
	Vars []int
	Type Type
}

// Builtin type constructor names, per spec.md §4.3 "Environment".
const (
	Unit     = "Unit"
	Bool     = "Bool"
	Int      = "Int"
	Float    = "Float"
	Text     = "Text"
	DateTime = "DateTime"
	Decimal  = "Decimal"
	BigInt   = "BigInt"
	Rational = "Rational"
	Regex    = "Regex"
	Bytes    = "Bytes"
	FileHandle = "FileHandle"
	Send     = "Send"
	Recv     = "Recv"
	Closed   = "Closed"
	ListCon  = "List"
	OptionCon = "Option"
	ResourceCon = "Resource"
	GeneratorCon = "Generator"
	ResultCon = "Result"
	EffectCon = "Effect"
	MapCon   = "Map"
)

// BuiltinKinds records the kind of every built-in type constructor,
// per spec.md §4.3.
var BuiltinKinds = map[string]Kind{
	Unit: Star(), Bool: Star(), Int: Star(), Float: Star(), Text: Star(),
	DateTime: Star(), Decimal: Star(), BigInt: Star(), Rational: Star(),
	Regex: Star(), Bytes: Star(), FileHandle: Star(), Send: Arrow(1),
	Recv: Arrow(1), Closed: Star(),
	ListCon: Arrow(1), OptionCon: Arrow(1), ResourceCon: Arrow(2),
	GeneratorCon: Arrow(1), ResultCon: Arrow(2), EffectCon: Arrow(2),
	MapCon: Arrow(2),
}

func con(name string, args ...Type) *TCon { return &TCon{Name: name, Args: args} }

func TUnit() Type     { return con(Unit) }
func TBool() Type     { return con(Bool) }
func TInt() Type      { return con(Int) }
func TFloat() Type    { return con(Float) }
func TText() Type     { return con(Text) }
func TList(elem Type) Type     { return con(ListCon, elem) }
func TOption(elem Type) Type   { return con(OptionCon, elem) }
func TResult(e, a Type) Type   { return con(ResultCon, e, a) }
func TEffect(eps, a Type) Type { return con(EffectCon, eps, a) }
func TResource(eps, a Type) Type { return con(ResourceCon, eps, a) }
func TGenerator(a Type) Type   { return con(GeneratorCon, a) }
func TMap(k, v Type) Type      { return con(MapCon, k, v) }

// Env is a persistent identifier-to-scheme mapping threaded through
// inference; Extend returns a new Env that shadows the parent rather
// than mutating it, matching github.com/breadchris/yaegi's scope-chain
// lookup.
type Env struct {
	parent *Env
	vars   map[string]*Scheme
}

func NewEnv() *Env { return &Env{vars: map[string]*Scheme{}} }

func (e *Env) Extend(name string, s *Scheme) *Env {
	child := &Env{parent: e, vars: map[string]*Scheme{name: s}}
	return child
}

func (e *Env) Lookup(name string) (*Scheme, bool) {
	for cur := e; cur != nil; cur = cur.parent {
		if s, ok := cur.vars[name]; ok {
			return s, true
		}
	}
	return nil, false
}

// Set mutates this frame directly; used only when building the root
// environment (module-level bindings collected before inference).
func (e *Env) Set(name string, s *Scheme) { e.vars[name] = s }

// FreeVars returns the set of unbound type-variable ids reachable from t.
func FreeVars(t Type) map[int]bool {
	out := map[int]bool{}
	var walk func(Type)
	walk = func(t Type) {
		switch t := t.(type) {
		case *TVar:
			out[t.ID] = true
		case *TCon:
			for _, a := range t.Args {
				walk(a)
			}
		case *TFunc:
			walk(t.Param)
			walk(t.Result)
		case *TTuple:
			for _, it := range t.Items {
				walk(it)
			}
		case *TRecord:
			for _, f := range t.Fields {
				walk(f)
			}
		}
	}
	walk(t)
	return out
}

// EnvFreeVars collects the free variables visible across an entire
// environment chain, used by Generalize to decide which variables may
// be quantified.
func EnvFreeVars(e *Env) map[int]bool {
	out := map[int]bool{}
	for cur := e; cur != nil; cur = cur.parent {
		for _, s := range cur.vars {
			fv := FreeVars(s.Type)
			for id := range fv {
				bound := false
				for _, b := range s.Vars {
					if b == id {
						bound = true
						break
					}
				}
				if !bound {
					out[id] = true
				}
			}
		}
	}
	return out
}
