// Package ast defines the untyped surface tree produced by the parser.
// Every variant is a closed tagged struct set — pattern match (a Go
// type switch) is the only dispatch, "sum types over inheritance"
// rather than the single mutable `node` struct with a type tag that
// github.com/breadchris/yaegi reuses across its AST and CFG passes;
// here each surface form gets its own concrete node type.
package ast

import "github.com/aivi-lang/aivi/internal/diag"

// Identifier is UTF-8 text plus its span.
type Identifier struct {
	Name string
	Span diag.Span
}

// Module is the top-level unit: a dotted name, exports, uses, items,
// decorators, and the source path it was parsed from.
type Module struct {
	Name       string
	NameSpan   diag.Span
	Exports    []Identifier
	Uses       []Use
	Items      []Item
	Decorators []Decorator
	SourcePath string
	Span       diag.Span

	// NoPrelude is true when a @no_prelude decorator was present; the
	// parser still records the synthesized prelude Use on every other
	// module (spec.md §3 "Module").
	NoPrelude bool
}

// Use is an import with an optional explicit item list; a nil Items
// with Wildcard=false means "import the module name only".
type Use struct {
	ModuleName string
	Items      []Identifier
	Wildcard   bool
	Span       diag.Span
}

// Decorator is an `@name` annotation attached to the following item.
type Decorator struct {
	Name string
	Span diag.Span
}

// Item is any top-level declaration: export/use lists are modeled
// separately on Module; Item covers definitions, signatures, type
// declarations/aliases, classes, instances, and domains.
type Item interface {
	itemNode()
	Spanned
}

// Spanned is implemented by every AST node that carries a source span.
type Spanned interface {
	GetSpan() diag.Span
}

// Definition is `name params = expr`, possibly one of several clauses
// sharing a name (multi-clause dispatch, spec.md §3 invariants).
type Definition struct {
	Name       Identifier
	Params     []Pattern
	Body       Expr
	Decorators []Decorator
	Span       diag.Span
}

func (*Definition) itemNode()            {}
func (d *Definition) GetSpan() diag.Span { return d.Span }

// TypeSig is `name : type`.
type TypeSig struct {
	Name Identifier
	Type TypeExpr
	Span diag.Span
}

func (*TypeSig) itemNode()            {}
func (t *TypeSig) GetSpan() diag.Span { return t.Span }

// TypeDecl is either an ADT (Variants non-empty) or a type alias
// (Alias non-nil), disambiguated by the parser per spec.md §4.2.
type TypeDecl struct {
	Name     Identifier
	Params   []Identifier
	Variants []Variant // ADT form
	Alias    TypeExpr  // alias form
	Span     diag.Span
}

func (*TypeDecl) itemNode()            {}
func (t *TypeDecl) GetSpan() diag.Span { return t.Span }

// Variant is one constructor of an ADT: `Name(Field: Type, ...)`.
type Variant struct {
	Name   Identifier
	Fields []VariantField
	Span   diag.Span
}

// VariantField is a named or positional constructor field.
type VariantField struct {
	Name Identifier // empty Name.Name for positional fields
	Type TypeExpr
}

// ClassDecl declares a type class: its parameters and member signatures.
type ClassDecl struct {
	Name    Identifier
	Params  []Identifier
	Members []TypeSig
	Span    diag.Span
}

func (*ClassDecl) itemNode()            {}
func (c *ClassDecl) GetSpan() diag.Span { return c.Span }

// InstanceDecl implements a class for concrete parameter types.
type InstanceDecl struct {
	Class      Identifier
	ParamTypes []TypeExpr
	Methods    []*Definition
	Span       diag.Span
}

func (*InstanceDecl) itemNode()            {}
func (i *InstanceDecl) GetSpan() diag.Span { return i.Span }

// DomainDecl groups definitions and literal-suffix templates under a
// name; its contained definitions are exported transparently when the
// domain itself is exported (spec.md §3 "Module").
type DomainDecl struct {
	Name  Identifier
	Items []Item
	Span  diag.Span
}

func (*DomainDecl) itemNode()            {}
func (d *DomainDecl) GetSpan() diag.Span { return d.Span }

// ---- Type expressions (untyped, surface-level) ----

// TypeExpr is the surface syntax for a type annotation.
type TypeExpr interface {
	typeExprNode()
	Spanned
}

type TypeName struct {
	Name Identifier
	Span diag.Span
}

func (*TypeName) typeExprNode()         {}
func (t *TypeName) GetSpan() diag.Span { return t.Span }

type TypeApp struct {
	Func TypeExpr
	Args []TypeExpr
	Span diag.Span
}

func (*TypeApp) typeExprNode()         {}
func (t *TypeApp) GetSpan() diag.Span { return t.Span }

type TypeFunc struct {
	Param  TypeExpr
	Result TypeExpr
	Span   diag.Span
}

func (*TypeFunc) typeExprNode()         {}
func (t *TypeFunc) GetSpan() diag.Span { return t.Span }

type TypeRecordField struct {
	Name Identifier
	Type TypeExpr
}

type TypeRecord struct {
	Fields []TypeRecordField
	Open   bool
	Span   diag.Span
}

func (*TypeRecord) typeExprNode()         {}
func (t *TypeRecord) GetSpan() diag.Span { return t.Span }

type TypeTuple struct {
	Items []TypeExpr
	Span  diag.Span
}

func (*TypeTuple) typeExprNode()         {}
func (t *TypeTuple) GetSpan() diag.Span { return t.Span }

// TypeUniversal is the `*` wildcard type expression.
type TypeUniversal struct{ Span diag.Span }

func (*TypeUniversal) typeExprNode()         {}
func (t *TypeUniversal) GetSpan() diag.Span { return t.Span }

// TypeUnknown marks a type expression the parser could not make sense
// of; the inferencer treats it as a fresh type variable.
type TypeUnknown struct{ Span diag.Span }

func (*TypeUnknown) typeExprNode()         {}
func (t *TypeUnknown) GetSpan() diag.Span { return t.Span }

// ---- Expressions ----

// Expr is any surface expression form, each carrying a span.
type Expr interface {
	exprNode()
	Spanned
}

type IdentExpr struct {
	Name Identifier
	Span diag.Span
}

func (*IdentExpr) exprNode()            {}
func (e *IdentExpr) GetSpan() diag.Span { return e.Span }

// LiteralKind tags the payload kept on Literal.
type LiteralKind int

const (
	LitInt LiteralKind = iota
	LitFloat
	LitText
	LitBool
	LitDateTime
	LitSigil
)

type Literal struct {
	Kind LiteralKind

	IntVal   int64
	FloatVal float64
	TextVal  string
	BoolVal  bool

	// Suffix is set for a suffixed numeric literal (e.g. "px" or "%").
	Suffix string

	// For LitSigil: decomposed tag/body/flags from the lexer.
	SigilTag   string
	SigilBody  string
	SigilFlags string

	Span diag.Span
}

func (*Literal) exprNode()            {}
func (e *Literal) GetSpan() diag.Span { return e.Span }

// TextInterp is a text literal containing `{ expr }` interpolations.
type TextInterp struct {
	Parts []InterpPart
	Span  diag.Span
}

func (*TextInterp) exprNode()            {}
func (e *TextInterp) GetSpan() diag.Span { return e.Span }

type InterpPart struct {
	IsExpr bool
	Text   string
	Expr   Expr
}

// ListItem is one element of a List literal, optionally a `...spread`.
type ListItem struct {
	Value  Expr
	Spread bool
}

type ListExpr struct {
	Items []ListItem
	Span  diag.Span
}

func (*ListExpr) exprNode()            {}
func (e *ListExpr) GetSpan() diag.Span { return e.Span }

type TupleExpr struct {
	Items []Expr
	Span  diag.Span
}

func (*TupleExpr) exprNode()            {}
func (e *TupleExpr) GetSpan() diag.Span { return e.Span }

// RecordField is one `path: value` entry, or a `...spread`.
type RecordField struct {
	Path   []string
	Value  Expr
	Spread Expr // non-nil for `...expr`
}

type RecordExpr struct {
	Fields []RecordField
	Span   diag.Span
}

func (*RecordExpr) exprNode()            {}
func (e *RecordExpr) GetSpan() diag.Span { return e.Span }

// PatchSegmentKind tags one step of a patch path.
type PatchSegmentKind int

const (
	PatchField PatchSegmentKind = iota
	PatchFieldDeref                // `.field`
	PatchIndex                     // `[expr]`
	PatchIndexAll                  // `[*]`
	PatchIndexPredicate             // `[cond]`
)

type PatchSegment struct {
	Kind  PatchSegmentKind
	Field string
	Index Expr // for PatchIndex/PatchIndexPredicate
	Span  diag.Span
}

type PatchField2 struct {
	Path  []PatchSegment
	Value Expr
}

// PatchExpr is `target <| { path: value, ... }`.
type PatchExpr struct {
	Target Expr
	Fields []PatchField2
	Span   diag.Span
}

func (*PatchExpr) exprNode()            {}
func (e *PatchExpr) GetSpan() diag.Span { return e.Span }

// PatchLiteral is `patch { path: value }`, desugaring to a function.
type PatchLiteral struct {
	Fields []PatchField2
	Span   diag.Span
}

func (*PatchLiteral) exprNode()            {}
func (e *PatchLiteral) GetSpan() diag.Span { return e.Span }

type FieldAccess struct {
	Target Expr
	Field  string
	Span   diag.Span
}

func (*FieldAccess) exprNode()            {}
func (e *FieldAccess) GetSpan() diag.Span { return e.Span }

// FieldSection is `.field`, equivalent to `x => x.field`.
type FieldSection struct {
	Field string
	Span  diag.Span
}

func (*FieldSection) exprNode()            {}
func (e *FieldSection) GetSpan() diag.Span { return e.Span }

type IndexExpr struct {
	Target Expr
	Index  Expr
	Span   diag.Span
}

func (*IndexExpr) exprNode()            {}
func (e *IndexExpr) GetSpan() diag.Span { return e.Span }

// CallExpr is `f(args...)`. It is only produced when `(` is adjacent
// to the callee (spec.md §4.2); `f (x)` parses as Apply instead.
type CallExpr struct {
	Func Expr
	Args []Expr
	Span diag.Span
}

func (*CallExpr) exprNode()            {}
func (e *CallExpr) GetSpan() diag.Span { return e.Span }

// Apply is `f x` (juxtaposition application with intervening whitespace).
type Apply struct {
	Func Expr
	Arg  Expr
	Span diag.Span
}

func (*Apply) exprNode()            {}
func (e *Apply) GetSpan() diag.Span { return e.Span }

type LambdaExpr struct {
	Params []Pattern
	Body   Expr
	Span   diag.Span
}

func (*LambdaExpr) exprNode()            {}
func (e *LambdaExpr) GetSpan() diag.Span { return e.Span }

type MatchCase struct {
	Pattern Pattern
	Guard   Expr // optional
	Body    Expr
}

// MatchExpr's Scrutinee is nil for the headless form, which is a lambda
// over the cases (spec.md §3).
type MatchExpr struct {
	Scrutinee Expr
	Cases     []MatchCase
	Span      diag.Span
}

func (*MatchExpr) exprNode()            {}
func (e *MatchExpr) GetSpan() diag.Span { return e.Span }

type IfExpr struct {
	Cond, Then, Else Expr
	Span             diag.Span
}

func (*IfExpr) exprNode()            {}
func (e *IfExpr) GetSpan() diag.Span { return e.Span }

type BinaryExpr struct {
	Op          string
	Left, Right Expr
	Span        diag.Span
}

func (*BinaryExpr) exprNode()            {}
func (e *BinaryExpr) GetSpan() diag.Span { return e.Span }

// BlockKind selects which set of item kinds is legal, per spec.md §3/§4.3.
type BlockKind int

const (
	BlockPlain BlockKind = iota
	BlockEffect
	BlockGenerate
	BlockResource
)

func (k BlockKind) String() string {
	switch k {
	case BlockEffect:
		return "effect"
	case BlockGenerate:
		return "generate"
	case BlockResource:
		return "resource"
	default:
		return "plain"
	}
}

// BlockItemKind tags one statement inside a Block.
type BlockItemKind int

const (
	ItemExpr BlockItemKind = iota
	ItemBind                 // pattern <- expr
	ItemLet                  // pattern = expr
	ItemFilter
	ItemYield
	ItemRecurse
	ItemLoop // no-op marker, spec.md §9 open question: decided no-op
)

type BlockItem struct {
	Kind    BlockItemKind
	Pattern Pattern // for Bind/Let
	Expr    Expr
	Span    diag.Span
}

type Block struct {
	Kind  BlockKind
	Items []BlockItem
	Span  diag.Span
}

func (*Block) exprNode()            {}
func (e *Block) GetSpan() diag.Span { return e.Span }

// ---- Patterns ----

type Pattern interface {
	patternNode()
	Spanned
}

type WildcardPattern struct{ Span diag.Span }

func (*WildcardPattern) patternNode()         {}
func (p *WildcardPattern) GetSpan() diag.Span { return p.Span }

type IdentPattern struct {
	Name Identifier
	Span diag.Span
}

func (*IdentPattern) patternNode()         {}
func (p *IdentPattern) GetSpan() diag.Span { return p.Span }

type LiteralPattern struct {
	Literal *Literal
	Span    diag.Span
}

func (*LiteralPattern) patternNode()         {}
func (p *LiteralPattern) GetSpan() diag.Span { return p.Span }

type ConstructorPattern struct {
	Name Identifier
	Args []Pattern
	Span diag.Span
}

func (*ConstructorPattern) patternNode()         {}
func (p *ConstructorPattern) GetSpan() diag.Span { return p.Span }

type TuplePattern struct {
	Items []Pattern
	Span  diag.Span
}

func (*TuplePattern) patternNode()         {}
func (p *TuplePattern) GetSpan() diag.Span { return p.Span }

// ListPattern has an optional `...rest` tail binding.
type ListPattern struct {
	Items []Pattern
	Rest  *Identifier
	Span  diag.Span
}

func (*ListPattern) patternNode()         {}
func (p *ListPattern) GetSpan() diag.Span { return p.Span }

// RecordPatternField supports nested path fields, e.g. `{ a: { b } }`.
type RecordPatternField struct {
	Path    []string
	Pattern Pattern
}

type RecordPattern struct {
	Fields []RecordPatternField
	Span   diag.Span
}

func (*RecordPattern) patternNode()         {}
func (p *RecordPattern) GetSpan() diag.Span { return p.Span }
