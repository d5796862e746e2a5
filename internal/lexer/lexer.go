// Package lexer turns aivi source text into a token stream with
// recoverable diagnostics, per spec.md §4.1. Comments and horizontal
// whitespace are dropped; newlines are kept because item separation
// depends on them.
package lexer

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/aivi-lang/aivi/internal/diag"
)

var symbols = []string{
	// multi-rune symbols first, longest match wins
	"<|", "|>", "<-", "=>", "==", "!=", "<=", ">=", "&&", "||", "...", "..",
	"{", "}", "(", ")", "[", "]", ",", ":", "=", ".", "+", "-", "*", "/", "%",
	"<", ">", "|", "@", "_", ";",
}

var sigilTags = map[string]bool{
	"r": true, "u": true, "d": true, "t": true, "dt": true, "m": true, "k": true,
}

type openClose struct{ open, close byte }

var sigilDelims = map[byte]openClose{
	'/': {'/', '/'},
	'"': {'"', '"'},
	'(': {'(', ')'},
	'[': {'[', ']'},
	'{': {'{', '}'},
}

// Lexer scans one source file into a token slice, recovering from
// malformed literals the way github.com/breadchris/yaegi's scanner
// swallows recoverable go/scanner errors and keeps going (see
// ignoreScannerError).
type Lexer struct {
	src   string
	pos   int // byte offset
	line  int
	col   int
	diags diag.Bag
}

// New returns a Lexer positioned at the start of src. A leading BOM is
// treated as whitespace per spec.md §6.
func New(src string) *Lexer {
	if strings.HasPrefix(src, "\xef\xbb\xbf") {
		src = src[len("\xef\xbb\xbf"):]
	}
	return &Lexer{src: src, line: 1, col: 1}
}

// Tokenize scans the full source and returns every token (including a
// trailing EOF) plus any diagnostics collected along the way.
func Tokenize(src string) ([]Token, []*diag.Diagnostic) {
	l := New(src)
	var toks []Token
	for {
		t := l.Next()
		toks = append(toks, t)
		if t.Kind == EOF {
			break
		}
	}
	return toks, l.diags.All()
}

func (l *Lexer) here() diag.Position { return diag.Position{Line: l.line, Column: l.col} }

func (l *Lexer) peekByte() byte {
	if l.pos >= len(l.src) {
		return 0
	}
	return l.src[l.pos]
}

func (l *Lexer) peekAt(off int) byte {
	if l.pos+off >= len(l.src) {
		return 0
	}
	return l.src[l.pos+off]
}

func (l *Lexer) advance() byte {
	if l.pos >= len(l.src) {
		return 0
	}
	c := l.src[l.pos]
	l.pos++
	if c == '\n' {
		l.line++
		l.col = 1
	} else {
		l.col++
	}
	return c
}

func (l *Lexer) skipCRLF() {
	// Treat \r\n as a single newline; a bare \r is normalized away too.
	if l.peekByte() == '\r' {
		l.advance()
	}
}

// skipTrivia drops horizontal whitespace and comments, but stops right
// before a newline so Next can emit it as a token.
func (l *Lexer) skipTrivia() {
	for {
		switch c := l.peekByte(); {
		case c == ' ' || c == '\t':
			l.advance()
		case c == '\r' && l.peekAt(1) == '\n':
			// leave the \n for Next to tokenize; consume only the \r
			l.advance()
		case c == '#':
			for l.peekByte() != '\n' && l.peekByte() != 0 {
				l.advance()
			}
		case c == '/' && l.peekAt(1) == '/':
			for l.peekByte() != '\n' && l.peekByte() != 0 {
				l.advance()
			}
		case c == '/' && l.peekAt(1) == '*':
			l.advance()
			l.advance()
			for {
				if l.peekByte() == 0 {
					return
				}
				if l.peekByte() == '*' && l.peekAt(1) == '/' {
					l.advance()
					l.advance()
					break
				}
				l.advance()
			}
		default:
			return
		}
	}
}

// Next scans and returns the next token.
func (l *Lexer) Next() Token {
	l.skipTrivia()
	start := l.here()

	if l.pos >= len(l.src) {
		return Token{Kind: EOF, Span: diag.Span{Start: start, End: start}}
	}

	c := l.peekByte()

	if c == '\n' {
		l.advance()
		return Token{Kind: Newline, Text: "\n", Span: diag.Span{Start: start, End: l.here()}}
	}

	if c == '~' {
		return l.lexSigil(start)
	}

	if c == '"' {
		return l.lexString(start)
	}

	if isIdentStart(rune(c)) || c >= 0x80 {
		return l.lexIdentOrNumber(start)
	}

	if isDigit(c) {
		return l.lexNumber(start)
	}

	return l.lexSymbol(start)
}

func isIdentStart(r rune) bool {
	return r == '_' || unicode.IsLetter(r)
}

func isIdentCont(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func (l *Lexer) lexIdentOrNumber(start diag.Position) Token {
	var b strings.Builder
	for {
		c := l.peekByte()
		if c == 0 {
			break
		}
		r, size := utf8.DecodeRuneInString(l.src[l.pos:])
		if !isIdentCont(r) {
			break
		}
		for i := 0; i < size; i++ {
			b.WriteByte(l.src[l.pos])
			l.advance()
		}
	}
	return Token{Kind: Ident, Text: b.String(), Span: diag.Span{Start: start, End: l.here()}}
}

func (l *Lexer) lexNumber(start diag.Position) Token {
	var b strings.Builder
	for isDigit(l.peekByte()) {
		b.WriteByte(l.advance())
	}
	if l.peekByte() == '.' && isDigit(l.peekAt(1)) {
		b.WriteByte(l.advance())
		for isDigit(l.peekByte()) {
			b.WriteByte(l.advance())
		}
	}
	if c := l.peekByte(); c == 'e' || c == 'E' {
		if isDigit(l.peekAt(1)) || ((l.peekAt(1) == '+' || l.peekAt(1) == '-') && isDigit(l.peekAt(2))) {
			b.WriteByte(l.advance())
			if l.peekByte() == '+' || l.peekByte() == '-' {
				b.WriteByte(l.advance())
			}
			for isDigit(l.peekByte()) {
				b.WriteByte(l.advance())
			}
		}
	}

	tok := Token{Kind: Number, Text: b.String()}

	// A suffix is a number immediately followed (no whitespace) by an
	// identifier or '%'. It becomes part of the same token, per spec.md
	// §4.2 "numeric suffixes".
	if l.peekByte() == '%' {
		tok.Suffix = "%"
		l.advance()
	} else if r, _ := utf8.DecodeRuneInString(l.src[l.pos:]); isIdentStart(r) {
		var sb strings.Builder
		for {
			r2, size := utf8.DecodeRuneInString(l.src[l.pos:])
			if !isIdentCont(r2) {
				break
			}
			for i := 0; i < size; i++ {
				sb.WriteByte(l.src[l.pos])
				l.advance()
			}
		}
		tok.Suffix = sb.String()
	}

	tok.Span = diag.Span{Start: start, End: l.here()}
	return tok
}

func (l *Lexer) lexSymbol(start diag.Position) Token {
	rest := l.src[l.pos:]
	for _, sym := range symbols {
		if strings.HasPrefix(rest, sym) {
			for range sym {
				l.advance()
			}
			return Token{Kind: Symbol, Text: sym, Span: diag.Span{Start: start, End: l.here()}}
		}
	}
	// Unknown byte: consume one rune, report, keep scanning (recovery).
	r, size := utf8.DecodeRuneInString(rest)
	for i := 0; i < size; i++ {
		l.advance()
	}
	end := l.here()
	l.diags.Errorf(diag.ErrMalformedSigil, diag.Span{Start: start, End: end}, "unexpected character %q", r)
	return Token{Kind: Invalid, Text: string(r), Span: diag.Span{Start: start, End: end}}
}

// lexString scans a double-quoted text literal, resolving escapes and
// splitting `{ expr }` interpolations into Parts. Unterminated strings
// are reported (E1001) but the lexer still returns a best-effort token
// that runs to the end of input (a newline inside it is kept as text),
// in line with go/scanner's "don't halt" philosophy.
func (l *Lexer) lexString(start diag.Position) Token {
	l.advance() // opening quote
	var parts []StringPart
	var lit strings.Builder
	literalStart := l.here()
	terminated := false

	flushLiteral := func(end diag.Position) {
		if lit.Len() == 0 && len(parts) > 0 {
			return
		}
		parts = append(parts, StringPart{Text: lit.String(), Span: diag.Span{Start: literalStart, End: end}})
		lit.Reset()
	}

	for {
		c := l.peekByte()
		if c == 0 {
			l.diags.Errorf(diag.ErrUnterminatedString, diag.Span{Start: start, End: l.here()}, "unterminated text literal")
			break
		}
		if c == '"' {
			l.advance()
			terminated = true
			break
		}
		if c == '\\' {
			l.advance()
			esc := l.advance()
			switch esc {
			case 'n':
				lit.WriteByte('\n')
			case 't':
				lit.WriteByte('\t')
			case 'r':
				lit.WriteByte('\r')
			case '\\':
				lit.WriteByte('\\')
			case '"':
				lit.WriteByte('"')
			case '{':
				lit.WriteByte('{')
			case '}':
				lit.WriteByte('}')
			default:
				l.diags.Errorf(diag.ErrInvalidEscape, diag.Span{Start: start, End: l.here()}, "invalid escape sequence \\%c", esc)
			}
			continue
		}
		if c == '{' {
			flushLiteral(l.here())
			exprStart := l.here()
			l.advance()
			depth := 1
			var sub strings.Builder
			for depth > 0 {
				cc := l.peekByte()
				if cc == 0 {
					l.diags.Errorf(diag.ErrUnterminatedString, diag.Span{Start: exprStart, End: l.here()}, "unterminated interpolation")
					break
				}
				if cc == '{' {
					depth++
				} else if cc == '}' {
					depth--
					if depth == 0 {
						l.advance()
						break
					}
				}
				sub.WriteByte(cc)
				l.advance()
			}
			exprEnd := l.here()
			parts = append(parts, StringPart{IsExpr: true, Source: sub.String(), Span: diag.Span{Start: exprStart, End: exprEnd}})
			literalStart = l.here()
			continue
		}
		if c == '}' {
			l.diags.Errorf(diag.ErrStrayCloseDelim, diag.Span{Start: l.here(), End: l.here()}, "stray '}' in text literal")
			l.advance()
			continue
		}
		lit.WriteByte(c)
		l.advance()
	}
	if terminated {
		flushLiteral(l.here())
	}

	end := l.here()
	// Collapse to a single literal Text when there were no interpolations.
	tok := Token{Kind: String, Span: diag.Span{Start: start, End: end}}
	hasExpr := false
	var flat strings.Builder
	for _, p := range parts {
		if p.IsExpr {
			hasExpr = true
		} else {
			flat.WriteString(p.Text)
		}
	}
	if hasExpr {
		tok.Parts = parts
	} else {
		tok.Text = flat.String()
	}
	return tok
}

// lexSigil scans ~tag/body/flags (or bracket-delimited variants) per
// spec.md §4.2. Unknown tags are still tokenized; the parser decides
// whether they are meaningful. Shape mismatches on known tags (date,
// date-time, url) are reported here since the lexer already has the
// raw body text in hand.
func (l *Lexer) lexSigil(start diag.Position) Token {
	l.advance() // '~'
	var tag strings.Builder
	for {
		r, size := utf8.DecodeRuneInString(l.src[l.pos:])
		if !isIdentCont(r) {
			break
		}
		for i := 0; i < size; i++ {
			tag.WriteByte(l.src[l.pos])
			l.advance()
		}
	}
	delimByte := l.peekByte()
	dc, ok := sigilDelims[delimByte]
	if !ok {
		end := l.here()
		l.diags.Errorf(diag.ErrMalformedSigil, diag.Span{Start: start, End: end}, "malformed sigil: missing delimiter")
		return Token{Kind: Sigil, SigilTag: tag.String(), Span: diag.Span{Start: start, End: end}}
	}
	l.advance() // open delim
	var body strings.Builder
	for {
		c := l.peekByte()
		if c == 0 {
			l.diags.Errorf(diag.ErrMalformedSigil, diag.Span{Start: start, End: l.here()}, "unterminated sigil body")
			break
		}
		if c == dc.close && dc.open != dc.close {
			l.advance()
			break
		}
		if c == dc.close {
			l.advance()
			break
		}
		if c == '\\' {
			body.WriteByte(l.advance())
			body.WriteByte(l.advance())
			continue
		}
		body.WriteByte(c)
		l.advance()
	}
	var flags strings.Builder
	for {
		r, size := utf8.DecodeRuneInString(l.src[l.pos:])
		if !isIdentCont(r) {
			break
		}
		for i := 0; i < size; i++ {
			flags.WriteByte(l.src[l.pos])
			l.advance()
		}
	}
	end := l.here()
	tagStr := tag.String()
	if !sigilTags[tagStr] && tagStr != "map" && tagStr != "set" {
		l.diags.Warnf(diag.ErrMalformedSigil, diag.Span{Start: start, End: end}, "unrecognized sigil tag %q", tagStr)
	}
	validateSigilShape(&l.diags, tagStr, body.String(), diag.Span{Start: start, End: end})
	return Token{
		Kind:       Sigil,
		SigilTag:   tagStr,
		SigilBody:  body.String(),
		SigilFlags: flags.String(),
		Span:       diag.Span{Start: start, End: end},
	}
}

func validateSigilShape(b *diag.Bag, tag, body string, span diag.Span) {
	switch tag {
	case "u":
		if !strings.Contains(body, ":") && !strings.HasPrefix(body, "/") {
			b.Errorf(diag.ErrMalformedSigil, span, "invalid url sigil body %q", body)
		}
	case "d":
		if len(body) != 10 || body[4] != '-' || body[7] != '-' {
			b.Errorf(diag.ErrMalformedSigil, span, "invalid date sigil body %q, expected YYYY-MM-DD", body)
		}
	case "t", "dt":
		if !strings.Contains(body, "T") && !strings.Contains(body, " ") {
			b.Errorf(diag.ErrMalformedSigil, span, "invalid date-time sigil body %q", body)
		}
	}
}
