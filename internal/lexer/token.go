package lexer

import "github.com/aivi-lang/aivi/internal/diag"

// Kind identifies the lexical category of a Token. Unlike
// github.com/breadchris/yaegi's Go-scanner-backed token kinds, aivi
// defines its own small kind set since the source language is not Go;
// the numbering style (iota block) carries over.
type Kind int

const (
	Invalid Kind = iota
	EOF
	Ident
	Number
	String
	Sigil
	Symbol
	Newline
)

func (k Kind) String() string {
	switch k {
	case EOF:
		return "eof"
	case Ident:
		return "ident"
	case Number:
		return "number"
	case String:
		return "string"
	case Sigil:
		return "sigil"
	case Symbol:
		return "symbol"
	case Newline:
		return "newline"
	default:
		return "invalid"
	}
}

// Token is a single lexical unit, carrying its exact source text and span.
type Token struct {
	Kind Kind
	Text string
	Span diag.Span

	// Suffix holds a numeric-literal suffix (e.g. "px" in 5px, "%" in 10%)
	// recognized because it was adjacent to Number with no whitespace.
	Suffix string

	// SigilTag and SigilBody hold the decomposed parts of a Sigil token,
	// e.g. ~r/.*/ has SigilTag "r" and SigilBody ".*".
	SigilTag   string
	SigilBody  string
	SigilFlags string

	// Parts holds the literal/interpolation segments of a String token
	// that contains `{ expr }` interpolations; nil when there are none.
	Parts []StringPart
}

// StringPart is one segment of an interpolated text literal.
type StringPart struct {
	IsExpr bool
	Text   string // literal text with escapes already resolved, when !IsExpr
	Source string // raw sub-source text, when IsExpr; tokens re-lexed from it are positioned relative to this text, not to the outer source
	Span   diag.Span
}
