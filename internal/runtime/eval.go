package runtime

import (
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/aivi-lang/aivi/internal/ir"
	"github.com/aivi-lang/aivi/internal/value"
)

var dateTimeLayouts = []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"}

func parseDateTimeLoose(s string) (time.Time, error) {
	var lastErr error
	for _, layout := range dateTimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		} else {
			lastErr = err
		}
	}
	return time.Time{}, lastErr
}

func (rt *Runtime) eval(env *value.Env, node ir.Node) (*value.Value, error) {
	switch n := node.(type) {
	case *ir.Ident:
		return rt.evalIdent(env, n)
	case *ir.IntLit:
		return value.Int(n.Value), nil
	case *ir.FloatLit:
		return value.Float(n.Value), nil
	case *ir.TextLit:
		return value.Text(n.Value), nil
	case *ir.BoolLit:
		return value.Bool(n.Value), nil
	case *ir.SigilLit:
		return rt.evalSigil(n), nil
	case *ir.SuffixedLit:
		return rt.evalSuffixed(env, n)
	case *ir.Concat:
		return rt.evalConcat(env, n)
	case *ir.ListLit:
		return rt.evalList(env, n)
	case *ir.TupleLit:
		items := make([]*value.Value, len(n.Items))
		for i, it := range n.Items {
			v, err := rt.eval(env, it)
			if err != nil {
				return nil, err
			}
			items[i] = v
		}
		return value.Tuple(items), nil
	case *ir.RecordLit:
		return rt.evalRecord(env, n)
	case *ir.FieldAccess:
		return rt.evalFieldAccess(env, n)
	case *ir.IndexExpr:
		return rt.evalIndex(env, n)
	case *ir.Apply:
		return rt.evalApply(env, n)
	case *ir.Lambda:
		return &value.Value{Kind: value.KClosure, Closure: &value.Closure{Env: env, Params: nil, Body: n}}, nil
	case *ir.Match:
		return rt.evalMatch(env, n)
	case *ir.If:
		return rt.evalIf(env, n)
	case *ir.Binary:
		return rt.evalBinary(env, n)
	case *ir.Patch:
		return rt.evalPatch(env, n)
	case *ir.Block:
		return rt.evalBlock(env, n)
	}
	return nil, fmt.Errorf("runtime: unhandled ir node %T", node)
}

func (rt *Runtime) evalIdent(env *value.Env, n *ir.Ident) (*value.Value, error) {
	switch n.Ref.Kind {
	case ir.RefLocal:
		if v, ok := env.Lookup(n.Ref.Name); ok {
			return v, nil
		}
		return nil, fmt.Errorf("runtime: unbound local %q", n.Ref.Name)
	case ir.RefGlobal:
		if v, ok := rt.globalEnv.Lookup(n.Ref.Name); ok {
			return v, nil
		}
		return nil, fmt.Errorf("runtime: unbound global %q", n.Ref.Name)
	case ir.RefBuiltin:
		if v, ok := rt.builtins[n.Ref.Name]; ok {
			return v, nil
		}
		return nil, fmt.Errorf("runtime: unknown builtin %q", n.Ref.Name)
	case ir.RefConstructor:
		return constructorValue(n.Ref.Name, n.Ref.Arity), nil
	}
	return nil, fmt.Errorf("runtime: bad ref kind")
}

// constructorValue builds the callable for an ADT constructor: a
// zero-arity constructor is just its tag, anything else is a curried
// builtin that accumulates args into a Constructor value.
func constructorValue(name string, arity int) *value.Value {
	if arity == 0 {
		return value.Con(name)
	}
	return &value.Value{Kind: value.KBuiltin, Builtin: &value.Builtin{
		Name:  name,
		Arity: arity,
		Fn: func(args []*value.Value) (*value.Value, error) {
			return &value.Value{Kind: value.KConstructor, Constructor: value.Constructor{Name: name, Args: args}}, nil
		},
	}}
}

func (rt *Runtime) evalSigil(n *ir.SigilLit) *value.Value {
	switch n.Tag {
	case "regex", "r":
		return &value.Value{Kind: value.KRegex, Regex: n.Body}
	case "datetime":
		if t, err := parseDateTimeLoose(n.Body); err == nil {
			return &value.Value{Kind: value.KDateTime, DateTime: t}
		}
		return value.Text(n.Body)
	default:
		return value.Text(n.Body)
	}
}

// evalSuffixed looks up a domain-declared literal-suffix template by
// name (registered as an ordinary global, e.g. `1px` for `10px`) and
// applies it to the numeric value; a suffix with no matching template
// falls back to the bare number, since no domain has claimed it.
func (rt *Runtime) evalSuffixed(env *value.Env, n *ir.SuffixedLit) (*value.Value, error) {
	num, err := rt.eval(env, n.Value)
	if err != nil {
		return nil, err
	}
	if tmpl, ok := rt.globalEnv.Lookup("1" + n.Suffix); ok {
		return rt.apply(tmpl, []*value.Value{num})
	}
	return num, nil
}

func (rt *Runtime) evalConcat(env *value.Env, n *ir.Concat) (*value.Value, error) {
	var sb strings.Builder
	for _, part := range n.Parts {
		v, err := rt.eval(env, part)
		if err != nil {
			return nil, err
		}
		if v.Kind == value.KText {
			sb.WriteString(v.Text)
		} else {
			sb.WriteString(v.String())
		}
	}
	return value.Text(sb.String()), nil
}

func (rt *Runtime) evalList(env *value.Env, n *ir.ListLit) (*value.Value, error) {
	var items []*value.Value
	for i, it := range n.Items {
		v, err := rt.eval(env, it)
		if err != nil {
			return nil, err
		}
		if n.Spread[i] {
			if v.Kind != value.KList {
				return nil, fmt.Errorf("runtime: spread of non-list in list literal")
			}
			items = append(items, v.List...)
		} else {
			items = append(items, v)
		}
	}
	return value.List(items), nil
}

func (rt *Runtime) evalRecord(env *value.Env, n *ir.RecordLit) (*value.Value, error) {
	fields := map[string]*value.Value{}
	for _, spread := range n.Spreads {
		v, err := rt.eval(env, spread)
		if err != nil {
			return nil, err
		}
		if v.Kind != value.KRecord {
			return nil, fmt.Errorf("runtime: spread of non-record in record literal")
		}
		for k, fv := range v.Record {
			fields[k] = fv
		}
	}
	for _, f := range n.Fields {
		v, err := rt.eval(env, f.Value)
		if err != nil {
			return nil, err
		}
		fields[f.Name] = v
	}
	return value.Record(fields), nil
}

func (rt *Runtime) evalFieldAccess(env *value.Env, n *ir.FieldAccess) (*value.Value, error) {
	target, err := rt.eval(env, n.Target)
	if err != nil {
		return nil, err
	}
	if target.Kind != value.KRecord {
		return nil, fmt.Errorf("runtime: field access %q on non-record value", n.Field)
	}
	v, ok := target.Record[n.Field]
	if !ok {
		return nil, fmt.Errorf("runtime: record has no field %q", n.Field)
	}
	return v, nil
}

func (rt *Runtime) evalIndex(env *value.Env, n *ir.IndexExpr) (*value.Value, error) {
	target, err := rt.eval(env, n.Target)
	if err != nil {
		return nil, err
	}
	idx, err := rt.eval(env, n.Index)
	if err != nil {
		return nil, err
	}
	switch target.Kind {
	case value.KList:
		if idx.Kind != value.KInt || idx.Int < 0 || int(idx.Int) >= len(target.List) {
			return value.None(), nil
		}
		return value.Some(target.List[idx.Int]), nil
	case value.KTuple:
		if idx.Kind != value.KInt || idx.Int < 0 || int(idx.Int) >= len(target.Tuple) {
			return nil, fmt.Errorf("runtime: tuple index out of range")
		}
		return target.Tuple[idx.Int], nil
	case value.KRecord:
		if idx.Kind != value.KText {
			return nil, fmt.Errorf("runtime: record index must be Text")
		}
		if v, ok := target.Record[idx.Text]; ok {
			return value.Some(v), nil
		}
		return value.None(), nil
	}
	return nil, fmt.Errorf("runtime: cannot index %s", target.Kind)
}

func (rt *Runtime) evalApply(env *value.Env, n *ir.Apply) (*value.Value, error) {
	fn, err := rt.eval(env, n.Func)
	if err != nil {
		return nil, err
	}
	args := make([]*value.Value, len(n.Args))
	for i, a := range n.Args {
		v, err := rt.eval(env, a)
		if err != nil {
			return nil, err
		}
		args[i] = v
	}
	return rt.apply(fn, args)
}

func (rt *Runtime) evalIf(env *value.Env, n *ir.If) (*value.Value, error) {
	cond, err := rt.eval(env, n.Cond)
	if err != nil {
		return nil, err
	}
	if cond.Kind == value.KBool && cond.Bool {
		return rt.eval(env, n.Then)
	}
	return rt.eval(env, n.Else)
}

func (rt *Runtime) evalMatch(env *value.Env, n *ir.Match) (*value.Value, error) {
	scrutinee, err := rt.eval(env, n.Scrutinee)
	if err != nil {
		return nil, err
	}
	for _, c := range n.Cases {
		caseEnv, ok := rt.matchPattern(env, c.Pattern, scrutinee)
		if !ok {
			continue
		}
		if c.Guard != nil {
			g, err := rt.eval(caseEnv, c.Guard)
			if err != nil {
				return nil, err
			}
			if g.Kind != value.KBool || !g.Bool {
				continue
			}
		}
		return rt.eval(caseEnv, c.Body)
	}
	return nil, fmt.Errorf("runtime: no match case applies to %s", scrutinee)
}

func (rt *Runtime) evalBinary(env *value.Env, n *ir.Binary) (*value.Value, error) {
	if n.Op == "&&" {
		l, err := rt.eval(env, n.Left)
		if err != nil {
			return nil, err
		}
		if l.Kind == value.KBool && !l.Bool {
			return value.Bool(false), nil
		}
		r, err := rt.eval(env, n.Right)
		if err != nil {
			return nil, err
		}
		return value.Bool(r.Kind == value.KBool && r.Bool), nil
	}
	if n.Op == "||" {
		l, err := rt.eval(env, n.Left)
		if err != nil {
			return nil, err
		}
		if l.Kind == value.KBool && l.Bool {
			return value.Bool(true), nil
		}
		r, err := rt.eval(env, n.Right)
		if err != nil {
			return nil, err
		}
		return value.Bool(r.Kind == value.KBool && r.Bool), nil
	}
	l, err := rt.eval(env, n.Left)
	if err != nil {
		return nil, err
	}
	r, err := rt.eval(env, n.Right)
	if err != nil {
		return nil, err
	}
	return evalBinaryOp(n.Op, l, r)
}

func evalBinaryOp(op string, l, r *value.Value) (*value.Value, error) {
	switch op {
	case "..":
		if l.Kind != value.KInt || r.Kind != value.KInt {
			return nil, fmt.Errorf("runtime: .. requires Int bounds")
		}
		var items []*value.Value
		for i := l.Int; i <= r.Int; i++ {
			items = append(items, value.Int(i))
		}
		return value.List(items), nil
	case "+", "-", "*", "/", "%":
		return arith(op, l, r)
	case "<", "<=", ">", ">=":
		return compareOrdered(op, l, r)
	case "==":
		return value.Bool(valuesEqual(l, r)), nil
	case "!=":
		return value.Bool(!valuesEqual(l, r)), nil
	}
	return nil, fmt.Errorf("runtime: unknown operator %q", op)
}

func arith(op string, l, r *value.Value) (*value.Value, error) {
	if l.Kind == value.KText && r.Kind == value.KText && op == "+" {
		return value.Text(l.Text + r.Text), nil
	}
	if l.Kind == value.KBigInt || r.Kind == value.KBigInt {
		lb, rb := toBigInt(l), toBigInt(r)
		out := new(big.Int)
		switch op {
		case "+":
			out.Add(lb, rb)
		case "-":
			out.Sub(lb, rb)
		case "*":
			out.Mul(lb, rb)
		case "/":
			out.Quo(lb, rb)
		case "%":
			out.Rem(lb, rb)
		}
		return &value.Value{Kind: value.KBigInt, BigInt: out}, nil
	}
	if l.Kind == value.KFloat || r.Kind == value.KFloat {
		lf, rf := toFloat(l), toFloat(r)
		switch op {
		case "+":
			return value.Float(lf + rf), nil
		case "-":
			return value.Float(lf - rf), nil
		case "*":
			return value.Float(lf * rf), nil
		case "/":
			return value.Float(lf / rf), nil
		case "%":
			return nil, fmt.Errorf("runtime: %% is not defined on Float")
		}
	}
	li, ri := l.Int, r.Int
	switch op {
	case "+":
		return value.Int(li + ri), nil
	case "-":
		return value.Int(li - ri), nil
	case "*":
		return value.Int(li * ri), nil
	case "/":
		if ri == 0 {
			return nil, fmt.Errorf("runtime: division by zero")
		}
		return value.Int(li / ri), nil
	case "%":
		if ri == 0 {
			return nil, fmt.Errorf("runtime: modulo by zero")
		}
		return value.Int(li % ri), nil
	}
	return nil, fmt.Errorf("runtime: unknown arithmetic operator %q", op)
}

func compareOrdered(op string, l, r *value.Value) (*value.Value, error) {
	var cmp int
	switch {
	case l.Kind == value.KFloat || r.Kind == value.KFloat:
		lf, rf := toFloat(l), toFloat(r)
		switch {
		case lf < rf:
			cmp = -1
		case lf > rf:
			cmp = 1
		}
	case l.Kind == value.KInt && r.Kind == value.KInt:
		switch {
		case l.Int < r.Int:
			cmp = -1
		case l.Int > r.Int:
			cmp = 1
		}
	case l.Kind == value.KText && r.Kind == value.KText:
		cmp = strings.Compare(l.Text, r.Text)
	default:
		return nil, fmt.Errorf("runtime: %s not comparable for kind %s", op, l.Kind)
	}
	switch op {
	case "<":
		return value.Bool(cmp < 0), nil
	case "<=":
		return value.Bool(cmp <= 0), nil
	case ">":
		return value.Bool(cmp > 0), nil
	case ">=":
		return value.Bool(cmp >= 0), nil
	}
	return nil, fmt.Errorf("runtime: unknown comparison %q", op)
}

func toFloat(v *value.Value) float64 {
	if v.Kind == value.KInt {
		return float64(v.Int)
	}
	return v.Float
}

func toBigInt(v *value.Value) *big.Int {
	if v.Kind == value.KBigInt {
		return v.BigInt
	}
	return big.NewInt(v.Int)
}

func valuesEqual(l, r *value.Value) bool {
	if l.Kind != r.Kind {
		return false
	}
	switch l.Kind {
	case value.KUnit:
		return true
	case value.KBool:
		return l.Bool == r.Bool
	case value.KInt:
		return l.Int == r.Int
	case value.KFloat:
		return l.Float == r.Float
	case value.KText:
		return l.Text == r.Text
	case value.KList:
		if len(l.List) != len(r.List) {
			return false
		}
		for i := range l.List {
			if !valuesEqual(l.List[i], r.List[i]) {
				return false
			}
		}
		return true
	case value.KTuple:
		if len(l.Tuple) != len(r.Tuple) {
			return false
		}
		for i := range l.Tuple {
			if !valuesEqual(l.Tuple[i], r.Tuple[i]) {
				return false
			}
		}
		return true
	case value.KConstructor:
		if l.Constructor.Name != r.Constructor.Name || len(l.Constructor.Args) != len(r.Constructor.Args) {
			return false
		}
		for i := range l.Constructor.Args {
			if !valuesEqual(l.Constructor.Args[i], r.Constructor.Args[i]) {
				return false
			}
		}
		return true
	}
	return l.String() == r.String()
}
