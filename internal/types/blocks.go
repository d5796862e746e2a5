package types

import (
	"github.com/aivi-lang/aivi/internal/ast"
	"github.com/aivi-lang/aivi/internal/diag"
)

// inferBlock dispatches on block kind per spec.md §4.3 "Block typing".
func (inf *Inferencer) inferBlock(env *Env, b *ast.Block) (Type, Subst) {
	switch b.Kind {
	case ast.BlockEffect:
		return inf.inferEffectBlock(env, b)
	case ast.BlockGenerate:
		return inf.inferGenerateBlock(env, b)
	case ast.BlockResource:
		return inf.inferResourceBlock(env, b)
	default:
		return inf.inferPlainBlock(env, b)
	}
}

// inferPlainBlock threads a single environment across items left to
// right; the block's type is its last expression, or Unit.
func (inf *Inferencer) inferPlainBlock(env *Env, b *ast.Block) (Type, Subst) {
	cur := env
	s := Subst{}
	var last Type = TUnit()
	for i, item := range b.Items {
		switch item.Kind {
		case ast.ItemLet, ast.ItemBind:
			t, s2 := inf.inferExpr(cur, item.Expr)
			s = Compose(s, s2)
			penv, s3 := inf.bindPattern(cur, item.Pattern, t, s)
			cur = penv
			s = s3
			last = TUnit()
		case ast.ItemRecurse:
			t, s2 := inf.inferExpr(cur, item.Expr)
			s = Compose(s, s2)
			last = t
		case ast.ItemLoop:
			// No-op marker (decided open question): contributes nothing.
		default:
			t, s2 := inf.inferExpr(cur, item.Expr)
			s = Compose(s, s2)
			last = t
			if i < len(b.Items)-1 {
				last = TUnit()
			}
		}
	}
	return s.Apply(last), s
}

// inferEffectBlock types `effect { ... }` as Effect ε α, per spec.md
// §4.3: `x <- expr` requires Effect ε α or Resource ε α; `x = expr` is
// pure and rejected if the value looks effectful; a non-terminal bare
// expression statement must itself be Effect ε Unit; the final
// statement carries the block's full result type.
func (inf *Inferencer) inferEffectBlock(env *Env, b *ast.Block) (Type, Subst) {
	cur := env
	s := Subst{}
	eps := inf.fresh.Fresh()
	var resultVar Type = inf.fresh.Fresh()

	for i, item := range b.Items {
		last := i == len(b.Items)-1
		switch item.Kind {
		case ast.ItemBind:
			t, s2 := inf.inferExpr(cur, item.Expr)
			s = Compose(s, s2)
			bound := inf.fresh.Fresh()
			if s3, err := Unify(inf.aliases, s, t, TEffect(eps, bound)); err == nil {
				s = s3
			} else if s3, err2 := Unify(inf.aliases, s, t, TResource(eps, bound)); err2 == nil {
				s = s3
			} else {
				// Retried as pure, per spec.md §4.3.
				bound = t
			}
			penv, s3 := inf.bindPattern(cur, item.Pattern, s.Apply(bound), s)
			cur = penv
			s = s3
		case ast.ItemLet:
			t, s2 := inf.inferExpr(cur, item.Expr)
			s = Compose(s, s2)
			if isEffectfulType(s.Apply(t)) {
				inf.diags.Errorf(diag.ErrEffectfulPureBind, item.Span, "pure binding cannot take an effectful value; use <-")
			}
			penv, s3 := inf.bindPattern(cur, item.Pattern, s.Apply(t), s)
			cur = penv
			s = s3
		case ast.ItemRecurse:
			t, s2 := inf.inferExpr(cur, item.Expr)
			s = Compose(s, s2)
			if last {
				if s3, err := Unify(inf.aliases, s, t, TEffect(eps, resultVar)); err == nil {
					s = s3
				}
			}
		case ast.ItemLoop:
			// No-op marker.
		default:
			t, s2 := inf.inferExpr(cur, item.Expr)
			s = Compose(s, s2)
			if last {
				if s3, err := Unify(inf.aliases, s, t, TEffect(eps, resultVar)); err != nil {
					inf.diags.Errorf(diag.ErrUnification, item.Span, "effect block's final statement must be Effect: %s", err.Error())
				} else {
					s = s3
				}
			} else {
				if s3, err := Unify(inf.aliases, s, t, TEffect(eps, TUnit())); err != nil {
					inf.diags.Errorf(diag.ErrUnification, item.Span, "non-terminal effect statement must be Effect _ Unit: %s", err.Error())
				} else {
					s = s3
				}
			}
		}
	}
	return TEffect(s.Apply(eps), s.Apply(resultVar)), s
}

// isEffectfulType reports whether t is already an Effect/Resource
// application, used to reject `x = <effectful expr>`.
func isEffectfulType(t Type) bool {
	c, ok := t.(*TCon)
	return ok && (c.Name == EffectCon || c.Name == ResourceCon)
}

// inferGenerateBlock types `generate { ... }` as Generator α: yield
// unifies across every yield site, bind items pull from another
// generator or list, filter guards must be Bool or α -> Bool.
func (inf *Inferencer) inferGenerateBlock(env *Env, b *ast.Block) (Type, Subst) {
	cur := env
	s := Subst{}
	elem := inf.fresh.Fresh()

	for _, item := range b.Items {
		switch item.Kind {
		case ast.ItemYield:
			t, s2 := inf.inferExpr(cur, item.Expr)
			s = Compose(s, s2)
			if s3, err := Unify(inf.aliases, s, t, elem); err != nil {
				inf.diags.Errorf(diag.ErrUnification, item.Span, "yield type mismatch: %s", err.Error())
			} else {
				s = s3
			}
		case ast.ItemBind:
			t, s2 := inf.inferExpr(cur, item.Expr)
			s = Compose(s, s2)
			bound := inf.fresh.Fresh()
			if s3, err := Unify(inf.aliases, s, t, TGenerator(bound)); err == nil {
				s = s3
			} else if s3, err2 := Unify(inf.aliases, s, t, TList(bound)); err2 == nil {
				s = s3
			} else {
				inf.diags.Errorf(diag.ErrUnification, item.Span, "generate bind source must be a Generator or List: %s", err.Error())
			}
			penv, s3 := inf.bindPattern(cur, item.Pattern, s.Apply(bound), s)
			cur = penv
			s = s3
		case ast.ItemFilter:
			t, s2 := inf.inferExpr(cur, item.Expr)
			s = Compose(s, s2)
			if s3, err := Unify(inf.aliases, s, t, TBool()); err == nil {
				s = s3
			} else if s3, err2 := Unify(inf.aliases, s, t, &TFunc{Param: elem, Result: TBool()}); err2 == nil {
				s = s3
			} else {
				inf.diags.Errorf(diag.ErrUnification, item.Span, "filter guard must be Bool or a predicate: %s", err.Error())
			}
		case ast.ItemLet:
			t, s2 := inf.inferExpr(cur, item.Expr)
			s = Compose(s, s2)
			penv, s3 := inf.bindPattern(cur, item.Pattern, s.Apply(t), s)
			cur = penv
			s = s3
		default:
			_, s2 := inf.inferExpr(cur, item.Expr)
			s = Compose(s, s2)
		}
	}
	return TGenerator(s.Apply(elem)), s
}

// inferResourceBlock types `resource { ... }` as Resource ε α: items
// before the `yield` form acquire, items after form cleanup.
func (inf *Inferencer) inferResourceBlock(env *Env, b *ast.Block) (Type, Subst) {
	cur := env
	s := Subst{}
	eps := inf.fresh.Fresh()
	resultVar := inf.fresh.Fresh()

	for _, item := range b.Items {
		switch item.Kind {
		case ast.ItemYield:
			t, s2 := inf.inferExpr(cur, item.Expr)
			s = Compose(s, s2)
			if s3, err := Unify(inf.aliases, s, t, resultVar); err != nil {
				inf.diags.Errorf(diag.ErrUnification, item.Span, "resource yield type mismatch: %s", err.Error())
			} else {
				s = s3
			}
		case ast.ItemBind:
			t, s2 := inf.inferExpr(cur, item.Expr)
			s = Compose(s, s2)
			bound := inf.fresh.Fresh()
			if s3, err := Unify(inf.aliases, s, t, TEffect(eps, bound)); err == nil {
				s = s3
			} else if s3, err2 := Unify(inf.aliases, s, t, TResource(eps, bound)); err2 == nil {
				s = s3
			} else {
				bound = t
			}
			penv, s3 := inf.bindPattern(cur, item.Pattern, s.Apply(bound), s)
			cur = penv
			s = s3
		case ast.ItemLet:
			t, s2 := inf.inferExpr(cur, item.Expr)
			s = Compose(s, s2)
			penv, s3 := inf.bindPattern(cur, item.Pattern, s.Apply(t), s)
			cur = penv
			s = s3
		default:
			_, s2 := inf.inferExpr(cur, item.Expr)
			s = Compose(s, s2)
		}
	}
	return TResource(s.Apply(eps), s.Apply(resultVar)), s
}
