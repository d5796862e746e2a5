// Package value defines the runtime tagged-union Value type shared by
// the tree-walking interpreter and the native backend's generated code.
// The closed-union-with-Kind-discriminant shape generalizes
// github.com/breadchris/yaegi's `reflect.Value`-backed frame storage:
// aivi values are not Go values reflected at runtime, since the source
// language has its own shapes, so the union is spelled out explicitly.
package value

import (
	"fmt"
	"math/big"
	"sort"
	"strings"
	"time"
)

// Kind discriminates which field of Value is active.
type Kind int

const (
	KUnit Kind = iota
	KBool
	KInt
	KFloat
	KText
	KDateTime
	KDecimal
	KBigInt
	KRational
	KRegex
	KBytes
	KList
	KTuple
	KRecord
	KConstructor
	KClosure
	KBuiltin
	KMultiClause
	KEffect
	KResource
	KGenerator
	KChannelSend
	KChannelRecv
	KFileHandle
)

func (k Kind) String() string {
	names := [...]string{
		"Unit", "Bool", "Int", "Float", "Text", "DateTime", "Decimal", "BigInt",
		"Rational", "Regex", "Bytes", "List", "Tuple", "Record", "Constructor",
		"Closure", "Builtin", "MultiClause", "Effect", "Resource", "Generator",
		"ChannelSend", "ChannelRecv", "FileHandle",
	}
	if int(k) < len(names) {
		return names[k]
	}
	return "?"
}

// Decimal is a fixed-point decimal: Unscaled * 10^-Scale. No third-
// party arbitrary-precision decimal library is present anywhere in the
// example pack (checked: none of the retrieved repos import one), so
// this is a documented stdlib-backed implementation rather than a
// dropped dependency.
type Decimal struct {
	Unscaled *big.Int
	Scale    int
}

func (d Decimal) String() string {
	if d.Scale == 0 {
		return d.Unscaled.String()
	}
	s := d.Unscaled.String()
	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}
	for len(s) <= d.Scale {
		s = "0" + s
	}
	cut := len(s) - d.Scale
	out := s[:cut] + "." + s[cut:]
	if neg {
		out = "-" + out
	}
	return out
}

// Rational is an exact fraction in lowest terms.
type Rational struct {
	Num, Den *big.Int
}

func (r Rational) String() string { return fmt.Sprintf("%s/%s", r.Num.String(), r.Den.String()) }

// Closure captures a lexical environment, the declared parameter
// pattern(s) it still needs, and its body — see internal/ir for the
// typed body representation actually evaluated.
type Closure struct {
	Env    *Env
	Params []string // resolved local slot names
	Body   interface{}
}

// Builtin references a named host function by descriptor plus the
// arguments applied so far; the runtime calls Fn once Arity arguments
// are present, and Name keeps printing descriptive.
type Builtin struct {
	Name    string
	Arity   int
	Applied []*Value
	Fn      func(args []*Value) (*Value, error)
}

// Constructor is a partially-or-fully-applied ADT constructor value.
type Constructor struct {
	Name string
	Args []*Value
}

// MultiClause holds clauses tried in declaration order; the first whose
// patterns match the applied arguments wins (spec.md §3 "Invariants").
type MultiClause struct {
	Clauses []*Value
}

// EffectFn is the thunk signature backing an Effect value: given a
// Runtime handle (opaque here to avoid an import cycle with
// internal/effect) it produces a value or fails.
type EffectFn func(rt interface{}) (*Value, error)

// ResourceFn is a one-shot acquire closure yielding the resource's
// value and a cleanup effect.
type ResourceFn func(rt interface{}) (*Value, *Value, error)

// GeneratorFold folds accumulated yields: `fold k z`.
type GeneratorFold func(k *Value, z *Value, apply func(f, a *Value) (*Value, error)) (*Value, error)

// Value is the runtime tagged union. Only the field matching Kind is
// meaningful; all others are the zero value.
type Value struct {
	Kind Kind

	Bool     bool
	Int      int64
	Float    float64
	Text     string
	DateTime time.Time
	Decimal  Decimal
	BigInt   *big.Int
	Rational Rational
	Regex    string // compiled lazily by internal/runtime/builtins
	Bytes    []byte

	List   []*Value
	Tuple  []*Value
	Record map[string]*Value

	Constructor Constructor
	Closure     *Closure
	Builtin     *Builtin
	MultiClause *MultiClause

	Effect   EffectFn
	Resource ResourceFn
	Fold     GeneratorFold

	ChannelSend *ChannelSend
	ChannelRecv *ChannelRecv
	FileHandle  *FileHandleValue
}

// FileHandleValue is an opened OS handle; internal/runtime/builtins owns
// creation, internal/value only needs the tag for pattern matching and
// printing.
type FileHandleValue struct {
	Path string
	Mode string
}

func Unit() *Value           { return &Value{Kind: KUnit} }
func Bool(b bool) *Value     { return &Value{Kind: KBool, Bool: b} }
func Int(n int64) *Value     { return &Value{Kind: KInt, Int: n} }
func Float(f float64) *Value { return &Value{Kind: KFloat, Float: f} }
func Text(s string) *Value   { return &Value{Kind: KText, Text: s} }
func List(items []*Value) *Value  { return &Value{Kind: KList, List: items} }
func Tuple(items []*Value) *Value { return &Value{Kind: KTuple, Tuple: items} }
func Record(fields map[string]*Value) *Value { return &Value{Kind: KRecord, Record: fields} }

func Con(name string, args ...*Value) *Value {
	return &Value{Kind: KConstructor, Constructor: Constructor{Name: name, Args: args}}
}

func Some(v *Value) *Value { return Con("Some", v) }
func None() *Value         { return Con("None") }
func Ok(v *Value) *Value   { return Con("Ok", v) }
func Err(v *Value) *Value  { return Con("Err", v) }

// Env is the runtime's lexical environment, linked to a parent scope —
// the same shape as internal/types.Env, specialized to hold values.
type Env struct {
	parent *Env
	vars   map[string]*Value
}

func NewEnv() *Env { return &Env{vars: map[string]*Value{}} }

func (e *Env) Extend() *Env { return &Env{parent: e, vars: map[string]*Value{}} }

func (e *Env) Set(name string, v *Value) { e.vars[name] = v }

func (e *Env) Lookup(name string) (*Value, bool) {
	for cur := e; cur != nil; cur = cur.parent {
		if v, ok := cur.vars[name]; ok {
			return v, true
		}
	}
	return nil, false
}

// String renders a Value for print/println and diagnostics; it is
// deliberately not a Stringer-only affair (Display-vs-Debug) because
// the language makes no such distinction, matching spec.md's single
// `print`/`println` builtins.
func (v *Value) String() string {
	if v == nil {
		return "<nil>"
	}
	switch v.Kind {
	case KUnit:
		return "()"
	case KBool:
		if v.Bool {
			return "true"
		}
		return "false"
	case KInt:
		return fmt.Sprintf("%d", v.Int)
	case KFloat:
		return fmt.Sprintf("%g", v.Float)
	case KText:
		return v.Text
	case KDateTime:
		return v.DateTime.Format(time.RFC3339)
	case KDecimal:
		return v.Decimal.String()
	case KBigInt:
		return v.BigInt.String()
	case KRational:
		return v.Rational.String()
	case KRegex:
		return "~r/" + v.Regex + "/"
	case KBytes:
		return fmt.Sprintf("<%d bytes>", len(v.Bytes))
	case KList:
		parts := make([]string, len(v.List))
		for i, it := range v.List {
			parts[i] = it.String()
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case KTuple:
		parts := make([]string, len(v.Tuple))
		for i, it := range v.Tuple {
			parts[i] = it.String()
		}
		return "(" + strings.Join(parts, ", ") + ")"
	case KRecord:
		names := make([]string, 0, len(v.Record))
		for n := range v.Record {
			names = append(names, n)
		}
		sort.Strings(names)
		parts := make([]string, 0, len(names))
		for _, n := range names {
			parts = append(parts, n+": "+v.Record[n].String())
		}
		return "{" + strings.Join(parts, ", ") + "}"
	case KConstructor:
		if len(v.Constructor.Args) == 0 {
			return v.Constructor.Name
		}
		parts := make([]string, len(v.Constructor.Args))
		for i, a := range v.Constructor.Args {
			parts[i] = a.String()
		}
		return v.Constructor.Name + "(" + strings.Join(parts, ", ") + ")"
	case KClosure:
		return "<closure>"
	case KBuiltin:
		return "<builtin " + v.Builtin.Name + ">"
	case KMultiClause:
		return fmt.Sprintf("<multiclause/%d>", len(v.MultiClause.Clauses))
	case KEffect:
		return "<effect>"
	case KResource:
		return "<resource>"
	case KGenerator:
		return "<generator>"
	case KChannelSend:
		return "<send>"
	case KChannelRecv:
		return "<recv>"
	case KFileHandle:
		return "<file " + v.FileHandle.Path + ">"
	}
	return "<?>"
}

// ChannelSend and ChannelRecv are the two shared halves of a channel
// built by `channel.make`; internal/effect owns the FIFO and the
// closed flag, internal/value just carries the tag and pointer.
type ChannelSend struct{ Chan *ChannelCore }
type ChannelRecv struct{ Chan *ChannelCore }

// ChannelCore is the shared backing state, defined here (rather than in
// internal/effect) so that both internal/value's tags and
// internal/effect's send/recv implementation can refer to the same
// concrete type without an import cycle.
type ChannelCore struct {
	Items  []*Value
	Closed bool
}
