// Package parser implements the recursive-descent surface parser of
// spec.md §4.2: tokens to an untyped ast.Module, with explicit recovery
// so a single bad item never aborts the whole file. The control style
// (manual peek/next over a token slice, synchronizing on keyword-shaped
// boundaries rather than propagating a hard error) follows
// github.com/breadchris/yaegi's REPL/eval loop, which treats a
// `scanner.ErrorList` as something to inspect and possibly continue
// past rather than a reason to stop (see `ignoreScannerError` in its
// interp.go).
package parser

import (
	"strconv"
	"strings"

	"github.com/aivi-lang/aivi/internal/ast"
	"github.com/aivi-lang/aivi/internal/diag"
	"github.com/aivi-lang/aivi/internal/lexer"
)

// recognizedDecorators lists decorators the parser accepts without a
// warning; spec.md §4.2 "Decorators".
var recognizedDecorators = map[string]bool{
	"no_prelude": true, "static": true, "inline": true,
	"deprecated": true, "mcp_tool": true, "mcp_resource": true, "test": true,
}

// Parser walks a filtered (comment/whitespace-free) token stream for a
// single source file and builds zero or more modules.
type Parser struct {
	toks   []lexer.Token
	pos    int
	diags  diag.Bag
	source string

	// noBraceApply suppresses treating a bare '{' as a juxtaposed
	// application argument while parsing a match scrutinee or an if
	// condition, so `match s { ... }` parses the cases block as the
	// match's own delimiter rather than as `s` applied to a record.
	// parseExpr always resets it to false on entry, so any nested
	// parenthesized/bracketed sub-expression parses normally.
	noBraceApply bool
}

// New constructs a Parser over already-lexed tokens.
func New(toks []lexer.Token, source string) *Parser {
	return &Parser{toks: toks, source: source}
}

// Parse lexes and parses src in one step, injecting the prelude import
// into every non-prelude module that lacks @no_prelude, and returns the
// modules parsed plus all diagnostics (lexer and parser).
func Parse(path, src string) ([]*ast.Module, []*diag.Diagnostic) {
	toks, lexDiags := lexer.Tokenize(src)
	p := New(toks, src)
	mods := p.parseFile(path)
	all := append(append([]*diag.Diagnostic{}, lexDiags...), p.diags.All()...)
	return mods, all
}

func (p *Parser) cur() lexer.Token {
	if p.pos >= len(p.toks) {
		return lexer.Token{Kind: lexer.EOF}
	}
	return p.toks[p.pos]
}

func (p *Parser) at(i int) lexer.Token {
	if p.pos+i >= len(p.toks) {
		return lexer.Token{Kind: lexer.EOF}
	}
	return p.toks[p.pos+i]
}

func (p *Parser) advance() lexer.Token {
	t := p.cur()
	if t.Kind != lexer.EOF {
		p.pos++
	}
	return t
}

func (p *Parser) isSym(s string) bool {
	t := p.cur()
	return t.Kind == lexer.Symbol && t.Text == s
}

func (p *Parser) isIdentText(s string) bool {
	t := p.cur()
	return t.Kind == lexer.Ident && t.Text == s
}

// adjacent reports whether the current token starts exactly where the
// previous one ended — the rule that distinguishes `f(x)` (call) from
// `f (x)` (application), per spec.md §4.2.
func (p *Parser) adjacentToPrev() bool {
	if p.pos == 0 {
		return false
	}
	prevEnd := p.toks[p.pos-1].Span.End
	curStart := p.cur().Span.Start
	return prevEnd == curStart
}

func (p *Parser) skipNewlines() {
	for p.cur().Kind == lexer.Newline {
		p.advance()
	}
}

func (p *Parser) expectSym(s string, span diag.Span) bool {
	if p.isSym(s) {
		p.advance()
		return true
	}
	p.diags.Errorf(diag.ErrUnexpectedToken, span, "expected %q", s)
	return false
}

// syncToItemBoundary recovers after a malformed item by skipping tokens
// until the next item-starting keyword or a closing '}', per spec.md
// §4.2 "Recovery".
func (p *Parser) syncToItemBoundary() {
	for {
		t := p.cur()
		if t.Kind == lexer.EOF {
			return
		}
		if t.Kind == lexer.Symbol && t.Text == "}" {
			return
		}
		if t.Kind == lexer.Ident && itemKeyword(t.Text) {
			return
		}
		p.advance()
	}
}

func itemKeyword(s string) bool {
	switch s {
	case "export", "use", "class", "instance", "domain", "type", "module":
		return true
	}
	return false
}

// syncToModuleBoundary recovers at file scope by skipping to the next
// `module` keyword.
func (p *Parser) syncToModuleBoundary() {
	for {
		t := p.cur()
		if t.Kind == lexer.EOF {
			return
		}
		if t.Kind == lexer.Ident && t.Text == "module" {
			return
		}
		p.advance()
	}
}

// parseFile parses every module declared in one source file.
func (p *Parser) parseFile(path string) []*ast.Module {
	var mods []*ast.Module
	p.skipNewlines()
	for p.cur().Kind != lexer.EOF {
		if p.isIdentText("module") {
			m := p.parseModule(path)
			if m != nil {
				injectPrelude(m)
				mods = append(mods, m)
			}
		} else {
			start := p.cur().Span
			p.diags.Errorf(diag.ErrModuleBodyExpected, start, "expected 'module' declaration")
			p.syncToModuleBoundary()
		}
		p.skipNewlines()
	}
	return mods
}

func injectPrelude(m *ast.Module) {
	if m.NoPrelude || m.Name == "prelude" {
		return
	}
	for _, u := range m.Uses {
		if u.ModuleName == "prelude" {
			return
		}
	}
	m.Uses = append([]ast.Use{{ModuleName: "prelude", Wildcard: true}}, m.Uses...)
}

// parseModule parses `module <dotted> = { ... }`. A header without `=`
// is accepted without a diagnostic only when end of file follows it
// directly; when items follow such a header, E1501 is reported and the
// items are still parsed as the module's body, even if this module is
// the last one in the file.
func (p *Parser) parseModule(path string) *ast.Module {
	start := p.cur().Span
	p.advance() // 'module'
	name, nameSpan := p.parseDottedName()

	m := &ast.Module{Name: name, NameSpan: nameSpan, SourcePath: path}

	pendingDecorators := p.takeDecorators()

	if p.isSym("=") {
		p.advance()
		p.skipNewlines()
		if !p.expectSym("{", p.cur().Span) {
			p.syncToModuleBoundary()
			m.Span = start.Join(p.cur().Span)
			return m
		}
		p.parseModuleBody(m, pendingDecorators)
		end := p.cur().Span
		if p.cur().Kind == lexer.EOF {
			p.diags.Errorf(diag.ErrModuleBodyExpected, end, "unterminated module body, expected '}' before end of file")
		} else {
			p.expectSym("}", end)
		}
		m.Span = start.Join(end)
		return m
	}

	// Implicit body: tolerated only if nothing else follows except EOF.
	p.skipNewlines()
	if p.cur().Kind == lexer.EOF {
		m.Span = start.Join(p.cur().Span)
		return m
	}
	p.diags.Errorf(diag.ErrModuleBodyExpected, p.cur().Span, "module body must be introduced with '='")
	p.parseModuleBody(m, pendingDecorators)
	m.Span = start.Join(p.cur().Span)
	return m
}

func (p *Parser) parseDottedName() (string, diag.Span) {
	start := p.cur().Span
	var parts []string
	for {
		t := p.cur()
		if t.Kind != lexer.Ident {
			p.diags.Errorf(diag.ErrExpectedIdentifier, t.Span, "expected module name segment")
			break
		}
		parts = append(parts, t.Text)
		p.advance()
		if p.isSym(".") {
			p.advance()
			continue
		}
		break
	}
	end := start
	if p.pos > 0 {
		end = p.toks[p.pos-1].Span
	}
	return strings.Join(parts, "."), start.Join(end)
}

func (p *Parser) takeDecorators() []ast.Decorator {
	var out []ast.Decorator
	p.skipNewlines()
	for p.isSym("@") {
		start := p.cur().Span
		p.advance()
		name := ""
		if p.cur().Kind == lexer.Ident {
			name = p.cur().Text
			p.advance()
		}
		span := start.Join(p.cur().Span)
		if !recognizedDecorators[name] {
			p.diags.Warnf(diag.ErrUnknownDecorator, span, "unrecognized decorator @%s", name)
		}
		out = append(out, ast.Decorator{Name: name, Span: span})
		p.skipNewlines()
	}
	return out
}

func (p *Parser) parseModuleBody(m *ast.Module, leading []ast.Decorator) {
	decorators := leading
	markNoPrelude := func(ds []ast.Decorator) {
		for _, d := range ds {
			if d.Name == "no_prelude" {
				m.NoPrelude = true
			}
		}
	}
	markNoPrelude(decorators)
	for {
		p.skipNewlines()
		if p.isSym("}") || p.cur().Kind == lexer.EOF {
			break
		}
		decorators = append(decorators, p.takeDecorators()...)
		markNoPrelude(decorators)
		if p.isSym("}") || p.cur().Kind == lexer.EOF {
			break
		}
		switch {
		case p.isIdentText("export"):
			p.parseExport(m)
		case p.isIdentText("use"):
			p.parseUse(m)
		case p.isIdentText("class"):
			m.Items = append(m.Items, p.parseClass(decorators))
		case p.isIdentText("instance"):
			m.Items = append(m.Items, p.parseInstance(decorators))
		case p.isIdentText("domain"):
			m.Items = append(m.Items, p.parseDomain(decorators))
		case p.isIdentText("type"):
			m.Items = append(m.Items, p.parseTypeDecl(decorators))
		case p.cur().Kind == lexer.Ident:
			m.Items = append(m.Items, p.parseTypeSigOrDefinition(decorators))
		default:
			p.diags.Errorf(diag.ErrUnexpectedToken, p.cur().Span, "unexpected token in module body")
			p.syncToItemBoundary()
		}
		for len(decorators) > 0 && decorators[len(decorators)-1].Name != "" {
			decorators = nil
			break
		}
		decorators = nil
	}
}

func (p *Parser) parseExport(m *ast.Module) {
	p.advance() // 'export'
	seen := map[string]bool{}
	for {
		if p.cur().Kind != lexer.Ident {
			break
		}
		id := ast.Identifier{Name: p.cur().Text, Span: p.cur().Span}
		if seen[id.Name] {
			p.diags.Errorf(diag.ErrDuplicateExport, id.Span, "duplicate export %q", id.Name)
		}
		seen[id.Name] = true
		m.Exports = append(m.Exports, id)
		p.advance()
		if p.isSym(",") {
			p.advance()
			p.skipNewlines()
			continue
		}
		break
	}
}

func (p *Parser) parseUse(m *ast.Module) {
	start := p.cur().Span
	p.advance() // 'use'
	name, _ := p.parseDottedName()
	u := ast.Use{ModuleName: name}
	if p.isSym(".") {
		p.advance()
		if p.isSym("*") {
			p.advance()
			u.Wildcard = true
		} else if p.isSym("{") {
			p.advance()
			p.skipNewlines()
			for p.cur().Kind == lexer.Ident {
				u.Items = append(u.Items, ast.Identifier{Name: p.cur().Text, Span: p.cur().Span})
				p.advance()
				if p.isSym(",") {
					p.advance()
					p.skipNewlines()
					continue
				}
				break
			}
			p.skipNewlines()
			p.expectSym("}", p.cur().Span)
		}
	}
	u.Span = start.Join(p.cur().Span)
	m.Uses = append(m.Uses, u)
}

func (p *Parser) parseClass(decorators []ast.Decorator) *ast.ClassDecl {
	start := p.cur().Span
	p.advance() // 'class'
	name := p.expectIdent()
	var params []ast.Identifier
	for p.cur().Kind == lexer.Ident {
		params = append(params, ast.Identifier{Name: p.cur().Text, Span: p.cur().Span})
		p.advance()
	}
	c := &ast.ClassDecl{Name: name, Params: params}
	if p.expectSym("=", p.cur().Span) {
		p.skipNewlines()
		if p.expectSym("{", p.cur().Span) {
			for {
				p.skipNewlines()
				if p.isSym("}") || p.cur().Kind == lexer.EOF {
					break
				}
				member := p.parseTypeSig()
				c.Members = append(c.Members, *member)
			}
			p.expectSym("}", p.cur().Span)
		}
	}
	c.Span = start.Join(p.cur().Span)
	return c
}

func (p *Parser) parseInstance(decorators []ast.Decorator) *ast.InstanceDecl {
	start := p.cur().Span
	p.advance() // 'instance'
	class := p.expectIdent()
	var paramTypes []ast.TypeExpr
	for !p.isSym("=") && p.cur().Kind != lexer.EOF && p.cur().Kind != lexer.Newline {
		paramTypes = append(paramTypes, p.parseTypeExpr())
	}
	inst := &ast.InstanceDecl{Class: class, ParamTypes: paramTypes}
	if p.expectSym("=", p.cur().Span) {
		p.skipNewlines()
		if p.expectSym("{", p.cur().Span) {
			for {
				p.skipNewlines()
				if p.isSym("}") || p.cur().Kind == lexer.EOF {
					break
				}
				def := p.parseDefinition(nil)
				inst.Methods = append(inst.Methods, def)
			}
			p.expectSym("}", p.cur().Span)
		}
	}
	inst.Span = start.Join(p.cur().Span)
	return inst
}

func (p *Parser) parseDomain(decorators []ast.Decorator) *ast.DomainDecl {
	start := p.cur().Span
	p.advance() // 'domain'
	name := p.expectIdent()
	d := &ast.DomainDecl{Name: name}
	if p.expectSym("=", p.cur().Span) {
		p.skipNewlines()
		if p.expectSym("{", p.cur().Span) {
			for {
				p.skipNewlines()
				if p.isSym("}") || p.cur().Kind == lexer.EOF {
					break
				}
				inner := p.takeDecorators()
				switch {
				case p.isIdentText("type"):
					d.Items = append(d.Items, p.parseTypeDecl(inner))
				case p.cur().Kind == lexer.Ident:
					d.Items = append(d.Items, p.parseTypeSigOrDefinition(inner))
				default:
					p.diags.Errorf(diag.ErrUnexpectedToken, p.cur().Span, "unexpected token in domain body")
					p.syncToItemBoundary()
				}
			}
			p.expectSym("}", p.cur().Span)
		}
	}
	d.Span = start.Join(p.cur().Span)
	return d
}

// parseTypeDecl disambiguates ADT vs alias by scanning ahead for a
// top-level '|' after the '=', per spec.md §4.2 "ADT disambiguation".
func (p *Parser) parseTypeDecl(decorators []ast.Decorator) *ast.TypeDecl {
	start := p.cur().Span
	p.advance() // 'type'
	name := p.expectIdent()
	var params []ast.Identifier
	for p.cur().Kind == lexer.Ident {
		params = append(params, ast.Identifier{Name: p.cur().Text, Span: p.cur().Span})
		p.advance()
	}
	td := &ast.TypeDecl{Name: name, Params: params}
	if !p.expectSym("=", p.cur().Span) {
		td.Span = start.Join(p.cur().Span)
		return td
	}
	if p.lineContainsPipe() {
		td.Variants = p.parseVariants()
	} else {
		td.Alias = p.parseTypeExpr()
	}
	td.Span = start.Join(p.cur().Span)
	return td
}

// lineContainsPipe scans forward to the end of the current logical line
// (or matching brace depth) looking for a top-level '|', without
// consuming tokens.
func (p *Parser) lineContainsPipe() bool {
	depth := 0
	for i := p.pos; i < len(p.toks); i++ {
		t := p.toks[i]
		switch {
		case t.Kind == lexer.Newline && depth == 0:
			return false
		case t.Kind == lexer.EOF:
			return false
		case t.Kind == lexer.Symbol && (t.Text == "(" || t.Text == "[" || t.Text == "{"):
			depth++
		case t.Kind == lexer.Symbol && (t.Text == ")" || t.Text == "]" || t.Text == "}"):
			if depth == 0 {
				return false
			}
			depth--
		case t.Kind == lexer.Symbol && t.Text == "|" && depth == 0:
			return true
		}
	}
	return false
}

func (p *Parser) parseVariants() []ast.Variant {
	var variants []ast.Variant
	if p.isSym("|") {
		p.advance()
	}
	for {
		v := p.parseVariant()
		variants = append(variants, v)
		if p.isSym("|") {
			p.advance()
			continue
		}
		break
	}
	return variants
}

func (p *Parser) parseVariant() ast.Variant {
	name := p.expectIdent()
	v := ast.Variant{Name: name}
	if p.isSym("(") && p.adjacentToPrev() {
		p.advance()
		for !p.isSym(")") && p.cur().Kind != lexer.EOF {
			field := ast.VariantField{}
			if p.cur().Kind == lexer.Ident && p.at(1).Kind == lexer.Symbol && p.at(1).Text == ":" {
				field.Name = ast.Identifier{Name: p.cur().Text, Span: p.cur().Span}
				p.advance()
				p.advance()
			}
			field.Type = p.parseTypeExpr()
			v.Fields = append(v.Fields, field)
			if p.isSym(",") {
				p.advance()
				continue
			}
			break
		}
		p.expectSym(")", p.cur().Span)
	}
	v.Span = name.Span
	return v
}

func (p *Parser) expectIdent() ast.Identifier {
	t := p.cur()
	if t.Kind != lexer.Ident {
		p.diags.Errorf(diag.ErrExpectedIdentifier, t.Span, "expected identifier")
		return ast.Identifier{Span: t.Span}
	}
	p.advance()
	return ast.Identifier{Name: t.Text, Span: t.Span}
}

func (p *Parser) parseTypeSig() *ast.TypeSig {
	start := p.cur().Span
	name := p.expectIdent()
	p.expectSym(":", p.cur().Span)
	ty := p.parseTypeExpr()
	return &ast.TypeSig{Name: name, Type: ty, Span: start.Join(p.cur().Span)}
}

// parseTypeSigOrDefinition distinguishes `name : type` from
// `name params = expr` by checking for a following ':' vs a pattern
// list terminated by '='.
func (p *Parser) parseTypeSigOrDefinition(decorators []ast.Decorator) ast.Item {
	if p.at(1).Kind == lexer.Symbol && p.at(1).Text == ":" {
		return p.parseTypeSig()
	}
	return p.parseDefinition(decorators)
}

func (p *Parser) parseDefinition(decorators []ast.Decorator) *ast.Definition {
	start := p.cur().Span
	name := p.expectIdent()
	var params []ast.Pattern
	for !p.isSym("=") && p.cur().Kind != lexer.EOF && p.cur().Kind != lexer.Newline {
		params = append(params, p.parsePattern())
	}
	p.expectSym("=", p.cur().Span)
	p.skipNewlines()
	body := p.parseExpr()
	return &ast.Definition{
		Name: name, Params: params, Body: body, Decorators: decorators,
		Span: start.Join(p.cur().Span),
	}
}

// ---- Expressions ----

// precedence table, low to high, per spec.md §4.2.
var precLevels = [][]string{
	{"<|", "|>"},
	{"||"},
	{"&&"},
	{"==", "!=", "<", ">", "<=", ">="},
	{".."},
	{"+", "-"},
	{"*", "/", "%"},
}

func (p *Parser) parseExpr() ast.Expr {
	p.noBraceApply = false
	return p.parseBinary(0)
}

// parseExprRestrictBrace parses an expression where a bare '{' may not
// be appended as an application argument at the top level; used for
// match scrutinees and if conditions. Any nested bracketed context
// resets the restriction via the ordinary parseExpr.
func (p *Parser) parseExprRestrictBrace() ast.Expr {
	p.noBraceApply = true
	return p.parseBinary(0)
}

func (p *Parser) parseBinary(level int) ast.Expr {
	if level >= len(precLevels) {
		return p.parseUnaryOrApply()
	}
	left := p.parseBinary(level + 1)
	for {
		t := p.cur()
		if t.Kind != lexer.Symbol {
			break
		}
		matched := false
		for _, op := range precLevels[level] {
			if t.Text == op {
				matched = true
				break
			}
		}
		if !matched {
			break
		}
		start := left.GetSpan()
		p.advance()
		p.skipNewlines()
		right := p.parseBinary(level + 1)
		if t.Text == "<|" {
			left = p.toPatch(left, right, start)
		} else {
			left = &ast.BinaryExpr{Op: t.Text, Left: left, Right: right, Span: start.Join(right.GetSpan())}
		}
	}
	return left
}

// toPatch converts `target <| { path: value, ... }` (right parsed as a
// RecordExpr) into ast.PatchExpr, validating shapes loosely here; the
// type checker does the real per-path validation (spec.md §4.3
// "Patch operator").
func (p *Parser) toPatch(target, right ast.Expr, start diag.Span) ast.Expr {
	rec, ok := right.(*ast.RecordExpr)
	if !ok {
		return &ast.PatchExpr{Target: target, Span: start.Join(right.GetSpan())}
	}
	patch := &ast.PatchExpr{Target: target, Span: start.Join(right.GetSpan())}
	for _, f := range rec.Fields {
		segs := make([]ast.PatchSegment, 0, len(f.Path))
		for i, seg := range f.Path {
			kind := ast.PatchField
			if i > 0 {
				kind = ast.PatchFieldDeref
			}
			segs = append(segs, ast.PatchSegment{Kind: kind, Field: seg})
		}
		patch.Fields = append(patch.Fields, ast.PatchField2{Path: segs, Value: f.Value})
	}
	return patch
}

func (p *Parser) parseUnaryOrApply() ast.Expr {
	return p.parsePostfixChain()
}

// parsePostfixChain parses a primary expression followed by any number
// of adjacent postfix operators (`.field`, `[index]`, `(args)`), or
// falls back to whitespace-separated application (`f x`), per spec.md
// §4.2.
func (p *Parser) parsePostfixChain() ast.Expr {
	return p.parsePostfixOps(p.parsePrimary(), true)
}

// parsePostfixOps applies adjacent postfix operators to expr and, when
// allowApply is set, folds whitespace-separated arguments into
// left-nested Apply nodes (`f a b` is `(f a) b`).
func (p *Parser) parsePostfixOps(expr ast.Expr, allowApply bool) ast.Expr {
	for {
		switch {
		case p.isSym(".") && p.adjacentToPrev():
			start := expr.GetSpan()
			p.advance()
			field := p.expectIdent()
			expr = &ast.FieldAccess{Target: expr, Field: field.Name, Span: start.Join(field.Span)}
		case p.isSym("[") && p.adjacentToPrev():
			start := expr.GetSpan()
			p.advance()
			idx := p.parseExpr()
			p.expectSym("]", p.cur().Span)
			expr = &ast.IndexExpr{Target: expr, Index: idx, Span: start.Join(p.cur().Span)}
		case p.isSym("(") && p.adjacentToPrev():
			start := expr.GetSpan()
			p.advance()
			var args []ast.Expr
			p.skipNewlines()
			for !p.isSym(")") && p.cur().Kind != lexer.EOF {
				args = append(args, p.parseExpr())
				p.skipNewlines()
				if p.isSym(",") {
					p.advance()
					p.skipNewlines()
					continue
				}
				break
			}
			p.expectSym(")", p.cur().Span)
			expr = &ast.CallExpr{Func: expr, Args: args, Span: start.Join(p.cur().Span)}
		default:
			if allowApply && p.canStartApplyArg() {
				start := expr.GetSpan()
				arg := p.parsePrimaryForApply()
				if arg == nil {
					return expr
				}
				expr = &ast.Apply{Func: expr, Arg: arg, Span: start.Join(arg.GetSpan())}
				continue
			}
			return expr
		}
	}
}

func (p *Parser) canStartApplyArg() bool {
	t := p.cur()
	switch t.Kind {
	case lexer.Ident, lexer.Number, lexer.String, lexer.Sigil:
		return true
	case lexer.Symbol:
		switch t.Text {
		case "{":
			return !p.noBraceApply
		case "(", "[", "_":
			return true
		}
	}
	return false
}

func (p *Parser) parsePrimaryForApply() ast.Expr {
	return p.parsePostfixOps(p.parsePrimary(), false)
}

func (p *Parser) parsePrimary() ast.Expr {
	t := p.cur()
	switch t.Kind {
	case lexer.Number:
		return p.parseNumberLiteral()
	case lexer.String:
		return p.parseStringLiteral()
	case lexer.Sigil:
		return p.parseSigilExpr()
	case lexer.Ident:
		switch t.Text {
		case "true", "false":
			p.advance()
			return &ast.Literal{Kind: ast.LitBool, BoolVal: t.Text == "true", Span: t.Span}
		case "match":
			return p.parseMatch()
		case "if":
			return p.parseIf()
		case "effect", "generate", "resource", "patch":
			return p.parseKeywordBlockOrPatchLiteral()
		}
		p.advance()
		return &ast.IdentExpr{Name: ast.Identifier{Name: t.Text, Span: t.Span}, Span: t.Span}
	case lexer.Symbol:
		switch t.Text {
		case "(":
			return p.parseParenOrTuple()
		case "[":
			return p.parseList()
		case "{":
			return p.parseBraceExpr()
		case "_":
			// A bare hole; internal/types desugars it (and any
			// siblings within the same enclosing expression) into a
			// synthesized lambda parameter (spec.md §4.2 "Holes").
			p.advance()
			return &ast.IdentExpr{Name: ast.Identifier{Name: "_", Span: t.Span}, Span: t.Span}
		case ".":
			p.advance()
			field := p.expectIdent()
			return &ast.FieldSection{Field: field.Name, Span: t.Span.Join(field.Span)}
		}
	}
	p.diags.Errorf(diag.ErrUnexpectedToken, t.Span, "unexpected token in expression")
	p.advance()
	return &ast.Literal{Kind: ast.LitInt, Span: t.Span}
}

func (p *Parser) parseNumberLiteral() ast.Expr {
	t := p.cur()
	p.advance()
	lit := &ast.Literal{Span: t.Span, Suffix: t.Suffix}
	if strings.ContainsAny(t.Text, ".eE") {
		f, _ := strconv.ParseFloat(t.Text, 64)
		lit.Kind = ast.LitFloat
		lit.FloatVal = f
	} else {
		n, _ := strconv.ParseInt(t.Text, 10, 64)
		lit.Kind = ast.LitInt
		lit.IntVal = n
	}
	return lit
}

func (p *Parser) parseStringLiteral() ast.Expr {
	t := p.cur()
	p.advance()
	if len(t.Parts) == 0 {
		return &ast.Literal{Kind: ast.LitText, TextVal: t.Text, Span: t.Span}
	}
	te := &ast.TextInterp{Span: t.Span}
	for _, part := range t.Parts {
		if !part.IsExpr {
			te.Parts = append(te.Parts, ast.InterpPart{Text: part.Text})
			continue
		}
		subToks, _ := lexer.Tokenize(part.Source)
		sub := New(subToks, part.Source)
		expr := sub.parseExpr()
		te.Parts = append(te.Parts, ast.InterpPart{IsExpr: true, Expr: expr})
	}
	return te
}

func (p *Parser) parseSigilExpr() ast.Expr {
	t := p.cur()
	p.advance()
	switch t.SigilTag {
	case "map":
		return p.lowerStructuredSigil(t, true)
	case "set":
		return p.lowerStructuredSigil(t, false)
	default:
		kind := ast.LitSigil
		switch t.SigilTag {
		case "d", "t", "dt":
			kind = ast.LitDateTime
		}
		return &ast.Literal{
			Kind: kind, SigilTag: t.SigilTag, SigilBody: t.SigilBody, SigilFlags: t.SigilFlags, Span: t.Span,
		}
	}
}

// lowerStructuredSigil reparses a sigil body shaped like `k => v, ...,
// ...base` or `v, ..., ...base` and lowers it to calls against the
// conventional Map/Set identifiers with empty/fromList/union, per
// spec.md §4.2 "Structured sigils". The sigil body was captured as raw
// text by the lexer, so it is re-tokenized here (as text interpolation
// is); the re-lexed tokens are positioned relative to the sigil body,
// not to the outer source, and the synthesized entry nodes carry the
// sigil's own span.
func (p *Parser) lowerStructuredSigil(t lexer.Token, isMap bool) ast.Expr {
	subToks, _ := lexer.Tokenize(t.SigilBody)
	sub := New(subToks, t.SigilBody)
	var entries []ast.Expr
	var base ast.Expr
	for sub.cur().Kind != lexer.EOF {
		sub.skipNewlines()
		if sub.cur().Kind == lexer.EOF {
			break
		}
		if sub.isSym("...") {
			sub.advance()
			base = sub.parseExpr()
		} else if isMap {
			k := sub.parseExpr()
			sub.expectSym("=>", sub.cur().Span)
			v := sub.parseExpr()
			entries = append(entries, &ast.TupleExpr{Items: []ast.Expr{k, v}, Span: t.Span})
		} else {
			entries = append(entries, sub.parseExpr())
		}
		sub.skipNewlines()
		if sub.isSym(",") {
			sub.advance()
		}
	}
	ctor := "Set"
	if isMap {
		ctor = "Map"
	}
	listExpr := &ast.ListExpr{Span: t.Span}
	for _, e := range entries {
		listExpr.Items = append(listExpr.Items, ast.ListItem{Value: e})
	}
	fromList := &ast.CallExpr{
		Func: &ast.FieldAccess{Target: &ast.IdentExpr{Name: ast.Identifier{Name: ctor}, Span: t.Span}, Field: "fromList", Span: t.Span},
		Args: []ast.Expr{listExpr},
		Span: t.Span,
	}
	if base == nil {
		return fromList
	}
	return &ast.CallExpr{
		Func: &ast.FieldAccess{Target: &ast.IdentExpr{Name: ast.Identifier{Name: ctor}, Span: t.Span}, Field: "union", Span: t.Span},
		Args: []ast.Expr{fromList, base},
		Span: t.Span,
	}
}

func (p *Parser) parseParenOrTuple() ast.Expr {
	start := p.cur().Span
	p.advance() // (
	p.skipNewlines()
	if p.isSym(")") {
		p.advance()
		return &ast.TupleExpr{Span: start.Join(p.cur().Span)}
	}
	first := p.parseExpr()
	p.skipNewlines()
	if p.isSym(",") {
		items := []ast.Expr{first}
		for p.isSym(",") {
			p.advance()
			p.skipNewlines()
			if p.isSym(")") {
				break
			}
			items = append(items, p.parseExpr())
			p.skipNewlines()
		}
		p.expectSym(")", p.cur().Span)
		return &ast.TupleExpr{Items: items, Span: start.Join(p.cur().Span)}
	}
	p.expectSym(")", p.cur().Span)
	return first
}

func (p *Parser) parseList() ast.Expr {
	start := p.cur().Span
	p.advance() // [
	l := &ast.ListExpr{}
	p.skipNewlines()
	for !p.isSym("]") && p.cur().Kind != lexer.EOF {
		item := ast.ListItem{}
		if p.isSym("...") {
			p.advance()
			item.Spread = true
		}
		item.Value = p.parseExpr()
		l.Items = append(l.Items, item)
		p.skipNewlines()
		if p.isSym(",") {
			p.advance()
			p.skipNewlines()
			continue
		}
		break
	}
	p.expectSym("]", p.cur().Span)
	l.Span = start.Join(p.cur().Span)
	return l
}

// parseBraceExpr decides between a record literal and a plain block:
// `{ … }` is a record if the first parsed thing is a field binding,
// per spec.md §4.2 "Blocks".
func (p *Parser) parseBraceExpr() ast.Expr {
	start := p.cur().Span
	p.advance() // {
	p.skipNewlines()
	if p.isSym("}") {
		p.advance()
		return &ast.RecordExpr{Span: start.Join(p.cur().Span)}
	}
	if p.looksLikeFieldBinding() {
		return p.parseRecordBody(start)
	}
	return p.parseBlockBody(start, ast.BlockPlain)
}

// looksLikeFieldBinding peeks for `ident (.ident)* :` or `...` without
// consuming tokens.
func (p *Parser) looksLikeFieldBinding() bool {
	if p.isSym("...") {
		return true
	}
	i := p.pos
	if p.toks[clampIdx(i, len(p.toks))].Kind != lexer.Ident {
		return false
	}
	i++
	for i < len(p.toks) && p.toks[i].Kind == lexer.Symbol && p.toks[i].Text == "." {
		i++
		if i >= len(p.toks) || p.toks[i].Kind != lexer.Ident {
			return false
		}
		i++
	}
	return i < len(p.toks) && p.toks[i].Kind == lexer.Symbol && p.toks[i].Text == ":"
}

func clampIdx(i, n int) int {
	if i >= n {
		return n - 1
	}
	return i
}

func (p *Parser) parseRecordBody(start diag.Span) ast.Expr {
	rec := &ast.RecordExpr{}
	for {
		p.skipNewlines()
		if p.isSym("}") || p.cur().Kind == lexer.EOF {
			break
		}
		if p.isSym("...") {
			p.advance()
			rec.Fields = append(rec.Fields, ast.RecordField{Spread: p.parseExpr()})
		} else {
			var path []string
			path = append(path, p.expectIdent().Name)
			for p.isSym(".") {
				p.advance()
				path = append(path, p.expectIdent().Name)
			}
			p.expectSym(":", p.cur().Span)
			val := p.parseExpr()
			rec.Fields = append(rec.Fields, ast.RecordField{Path: path, Value: val})
		}
		p.skipNewlines()
		if p.isSym(",") {
			p.advance()
			continue
		}
		break
	}
	p.skipNewlines()
	p.expectSym("}", p.cur().Span)
	rec.Span = start.Join(p.cur().Span)
	return rec
}

func (p *Parser) parseKeywordBlockOrPatchLiteral() ast.Expr {
	kwTok := p.cur()
	switch kwTok.Text {
	case "patch":
		p.advance()
		p.skipNewlines()
		rec := p.parseBraceExpr()
		recExpr, _ := rec.(*ast.RecordExpr)
		lit := &ast.PatchLiteral{Span: kwTok.Span}
		if recExpr != nil {
			for _, f := range recExpr.Fields {
				segs := []ast.PatchSegment{{Kind: ast.PatchField, Field: strings.Join(f.Path, ".")}}
				lit.Fields = append(lit.Fields, ast.PatchField2{Path: segs, Value: f.Value})
			}
		}
		return lit
	case "effect":
		p.advance()
		p.skipNewlines()
		start := kwTok.Span
		p.expectSym("{", p.cur().Span)
		return p.parseBlockBody(start, ast.BlockEffect)
	case "generate":
		p.advance()
		p.skipNewlines()
		start := kwTok.Span
		p.expectSym("{", p.cur().Span)
		return p.parseBlockBody(start, ast.BlockGenerate)
	case "resource":
		p.advance()
		p.skipNewlines()
		start := kwTok.Span
		p.expectSym("{", p.cur().Span)
		return p.parseBlockBody(start, ast.BlockResource)
	}
	p.advance()
	return &ast.Literal{Span: kwTok.Span}
}

// parseBlockBody parses the `{ ... }` body of a block whose opening
// brace has already been consumed, and validates that each item kind is
// legal for the given block kind per spec.md §4.3.
func (p *Parser) parseBlockBody(start diag.Span, kind ast.BlockKind) ast.Expr {
	b := &ast.Block{Kind: kind}
	for {
		p.skipNewlines()
		if p.isSym("}") || p.cur().Kind == lexer.EOF {
			break
		}
		item := p.parseBlockItem(kind)
		b.Items = append(b.Items, item)
		p.skipNewlines()
	}
	p.expectSym("}", p.cur().Span)
	b.Span = start.Join(p.cur().Span)
	return b
}

func (p *Parser) parseBlockItem(kind ast.BlockKind) ast.BlockItem {
	start := p.cur().Span
	switch {
	case p.isIdentText("yield"):
		p.advance()
		if kind != ast.BlockGenerate && kind != ast.BlockResource {
			p.diags.Errorf(diag.ErrInvalidBlockItem, start, "'yield' is only legal in generate/resource blocks")
		}
		e := p.parseExpr()
		return ast.BlockItem{Kind: ast.ItemYield, Expr: e, Span: start.Join(e.GetSpan())}
	case p.isIdentText("filter"):
		p.advance()
		if kind != ast.BlockGenerate {
			p.diags.Errorf(diag.ErrInvalidBlockItem, start, "'filter' is only legal in generate blocks")
		}
		e := p.parseExpr()
		return ast.BlockItem{Kind: ast.ItemFilter, Expr: e, Span: start.Join(e.GetSpan())}
	case p.isIdentText("recurse"):
		p.advance()
		if kind != ast.BlockPlain && kind != ast.BlockEffect {
			p.diags.Errorf(diag.ErrInvalidBlockItem, start, "'recurse' is not legal in this block kind")
		}
		e := p.parseExpr()
		return ast.BlockItem{Kind: ast.ItemRecurse, Expr: e, Span: start.Join(e.GetSpan())}
	case p.isIdentText("loop"):
		p.advance()
		return ast.BlockItem{Kind: ast.ItemLoop, Span: start}
	}

	if p.looksLikeBindOrLet() {
		pat := p.parsePattern()
		if p.isSym("<-") {
			p.advance()
			p.skipNewlines()
			e := p.parseExpr()
			return ast.BlockItem{Kind: ast.ItemBind, Pattern: pat, Expr: e, Span: start.Join(e.GetSpan())}
		}
		p.expectSym("=", p.cur().Span)
		p.skipNewlines()
		e := p.parseExpr()
		return ast.BlockItem{Kind: ast.ItemLet, Pattern: pat, Expr: e, Span: start.Join(e.GetSpan())}
	}

	e := p.parseExpr()
	return ast.BlockItem{Kind: ast.ItemExpr, Expr: e, Span: start.Join(e.GetSpan())}
}

// looksLikeBindOrLet peeks for a pattern followed by `<-` or `=` before
// falling back to parsing a bare expression statement.
func (p *Parser) looksLikeBindOrLet() bool {
	save := p.pos
	saveLen := len(p.diags.All())
	_ = saveLen
	defer func() { p.pos = save }()

	// only attempt the lightweight patterns: ident, wildcard, tuple,
	// constructor application, to avoid expensive backtracking cost.
	t := p.cur()
	if t.Kind != lexer.Ident && !(t.Kind == lexer.Symbol && (t.Text == "_" || t.Text == "(" || t.Text == "[")) {
		return false
	}
	p2 := &Parser{toks: p.toks, pos: p.pos}
	func() {
		defer func() { recover() }()
		p2.parsePattern()
	}()
	if p2.pos >= len(p2.toks) {
		return false
	}
	t2 := p2.toks[p2.pos]
	return t2.Kind == lexer.Symbol && (t2.Text == "<-" || t2.Text == "=")
}

func (p *Parser) parseMatch() ast.Expr {
	start := p.cur().Span
	p.advance() // match
	var scrutinee ast.Expr
	if !p.isSym("{") {
		scrutinee = p.parseExprRestrictBrace()
	}
	p.skipNewlines()
	p.expectSym("{", p.cur().Span)
	m := &ast.MatchExpr{Scrutinee: scrutinee}
	for {
		p.skipNewlines()
		if p.isSym("}") || p.cur().Kind == lexer.EOF {
			break
		}
		pat := p.parsePattern()
		var guard ast.Expr
		if p.isIdentText("if") {
			p.advance()
			guard = p.parseExpr()
		}
		p.expectSym("=>", p.cur().Span)
		p.skipNewlines()
		body := p.parseExpr()
		m.Cases = append(m.Cases, ast.MatchCase{Pattern: pat, Guard: guard, Body: body})
		p.skipNewlines()
		if p.isSym(",") {
			p.advance()
		}
	}
	p.expectSym("}", p.cur().Span)
	m.Span = start.Join(p.cur().Span)
	return m
}

func (p *Parser) parseIf() ast.Expr {
	start := p.cur().Span
	p.advance() // if
	cond := p.parseExprRestrictBrace()
	p.skipNewlines()
	thenE := p.parseExpr()
	p.skipNewlines()
	var elseE ast.Expr
	if p.isIdentText("else") {
		p.advance()
		p.skipNewlines()
		elseE = p.parseExpr()
	}
	end := thenE.GetSpan()
	if elseE != nil {
		end = elseE.GetSpan()
	}
	return &ast.IfExpr{Cond: cond, Then: thenE, Else: elseE, Span: start.Join(end)}
}

// parseTypeExpr parses a surface type annotation.
func (p *Parser) parseTypeExpr() ast.TypeExpr {
	t := p.cur()
	var base ast.TypeExpr
	switch {
	case t.Kind == lexer.Symbol && t.Text == "*":
		p.advance()
		base = &ast.TypeUniversal{Span: t.Span}
	case t.Kind == lexer.Symbol && t.Text == "(":
		p.advance()
		p.skipNewlines()
		if p.isSym(")") {
			p.advance()
			base = &ast.TypeTuple{Span: t.Span.Join(p.cur().Span)}
			break
		}
		first := p.parseTypeExpr()
		if p.isSym(",") {
			items := []ast.TypeExpr{first}
			for p.isSym(",") {
				p.advance()
				items = append(items, p.parseTypeExpr())
			}
			p.expectSym(")", p.cur().Span)
			base = &ast.TypeTuple{Items: items, Span: t.Span.Join(p.cur().Span)}
		} else {
			p.expectSym(")", p.cur().Span)
			base = first
		}
	case t.Kind == lexer.Symbol && t.Text == "{":
		base = p.parseTypeRecord()
	case t.Kind == lexer.Ident:
		p.advance()
		base = &ast.TypeName{Name: ast.Identifier{Name: t.Text, Span: t.Span}, Span: t.Span}
	default:
		p.diags.Errorf(diag.ErrUnexpectedToken, t.Span, "expected a type")
		return &ast.TypeUnknown{Span: t.Span}
	}

	for p.canStartTypeArg() {
		arg := p.parseTypeExprArg()
		if app, ok := base.(*ast.TypeApp); ok {
			app.Args = append(app.Args, arg)
			app.Span = app.Span.Join(arg.GetSpan())
		} else {
			base = &ast.TypeApp{Func: base, Args: []ast.TypeExpr{arg}, Span: base.GetSpan().Join(arg.GetSpan())}
		}
	}

	if p.isSym("=>") {
		p.advance()
		p.skipNewlines()
		result := p.parseTypeExpr()
		return &ast.TypeFunc{Param: base, Result: result, Span: base.GetSpan().Join(result.GetSpan())}
	}
	return base
}

func (p *Parser) canStartTypeArg() bool {
	t := p.cur()
	switch t.Kind {
	case lexer.Ident:
		return true
	case lexer.Symbol:
		return t.Text == "(" || t.Text == "{" || t.Text == "*"
	}
	return false
}

func (p *Parser) parseTypeExprArg() ast.TypeExpr {
	return p.parseTypeExprNoApp()
}

// parseTypeExprNoApp parses a single type atom without consuming a
// further application chain, used for type-application arguments.
func (p *Parser) parseTypeExprNoApp() ast.TypeExpr {
	t := p.cur()
	switch {
	case t.Kind == lexer.Symbol && t.Text == "*":
		p.advance()
		return &ast.TypeUniversal{Span: t.Span}
	case t.Kind == lexer.Symbol && t.Text == "(":
		p.advance()
		inner := p.parseTypeExpr()
		p.expectSym(")", p.cur().Span)
		return inner
	case t.Kind == lexer.Symbol && t.Text == "{":
		return p.parseTypeRecord()
	case t.Kind == lexer.Ident:
		p.advance()
		return &ast.TypeName{Name: ast.Identifier{Name: t.Text, Span: t.Span}, Span: t.Span}
	}
	p.diags.Errorf(diag.ErrUnexpectedToken, t.Span, "expected a type")
	return &ast.TypeUnknown{Span: t.Span}
}

func (p *Parser) parseTypeRecord() ast.TypeExpr {
	start := p.cur().Span
	p.advance() // {
	rec := &ast.TypeRecord{}
	p.skipNewlines()
	for !p.isSym("}") && p.cur().Kind != lexer.EOF {
		if p.isSym("...") {
			p.advance()
			rec.Open = true
			p.skipNewlines()
			break
		}
		name := p.expectIdent()
		// A bare name (`{name, email}`) is a row-operator field list
		// entry; its type is left unknown.
		var ty ast.TypeExpr = &ast.TypeUnknown{Span: name.Span}
		if !p.isSym(",") && !p.isSym("}") {
			p.expectSym(":", p.cur().Span)
			ty = p.parseTypeExpr()
		}
		rec.Fields = append(rec.Fields, ast.TypeRecordField{Name: name, Type: ty})
		p.skipNewlines()
		if p.isSym(",") {
			p.advance()
			p.skipNewlines()
			continue
		}
		break
	}
	p.expectSym("}", p.cur().Span)
	rec.Span = start.Join(p.cur().Span)
	return rec
}

// ---- Patterns ----

func (p *Parser) parsePattern() ast.Pattern {
	t := p.cur()
	switch {
	case t.Kind == lexer.Symbol && t.Text == "_":
		p.advance()
		return &ast.WildcardPattern{Span: t.Span}
	case t.Kind == lexer.Symbol && t.Text == "(":
		return p.parseTuplePattern()
	case t.Kind == lexer.Symbol && t.Text == "[":
		return p.parseListPattern()
	case t.Kind == lexer.Symbol && t.Text == "{":
		return p.parseRecordPattern()
	case t.Kind == lexer.Number || t.Kind == lexer.String || t.Kind == lexer.Sigil:
		lit := p.parsePrimary().(*ast.Literal)
		return &ast.LiteralPattern{Literal: lit, Span: lit.Span}
	case t.Kind == lexer.Ident:
		if t.Text == "true" || t.Text == "false" {
			lit := p.parsePrimary().(*ast.Literal)
			return &ast.LiteralPattern{Literal: lit, Span: lit.Span}
		}
		name := ast.Identifier{Name: t.Text, Span: t.Span}
		p.advance()
		if isUpperIdent(name.Name) && p.isSym("(") && p.adjacentToPrev() {
			p.advance()
			var args []ast.Pattern
			for !p.isSym(")") && p.cur().Kind != lexer.EOF {
				args = append(args, p.parsePattern())
				if p.isSym(",") {
					p.advance()
					continue
				}
				break
			}
			p.expectSym(")", p.cur().Span)
			return &ast.ConstructorPattern{Name: name, Args: args, Span: name.Span.Join(p.cur().Span)}
		}
		if isUpperIdent(name.Name) {
			return &ast.ConstructorPattern{Name: name, Span: name.Span}
		}
		return &ast.IdentPattern{Name: name, Span: name.Span}
	}
	p.diags.Errorf(diag.ErrUnexpectedToken, t.Span, "unexpected token in pattern")
	p.advance()
	return &ast.WildcardPattern{Span: t.Span}
}

func isUpperIdent(s string) bool {
	return len(s) > 0 && s[0] >= 'A' && s[0] <= 'Z'
}

func (p *Parser) parseTuplePattern() ast.Pattern {
	start := p.cur().Span
	p.advance() // (
	var items []ast.Pattern
	for !p.isSym(")") && p.cur().Kind != lexer.EOF {
		items = append(items, p.parsePattern())
		if p.isSym(",") {
			p.advance()
			continue
		}
		break
	}
	p.expectSym(")", p.cur().Span)
	if len(items) == 1 {
		return items[0]
	}
	return &ast.TuplePattern{Items: items, Span: start.Join(p.cur().Span)}
}

func (p *Parser) parseListPattern() ast.Pattern {
	start := p.cur().Span
	p.advance() // [
	lp := &ast.ListPattern{}
	for !p.isSym("]") && p.cur().Kind != lexer.EOF {
		if p.isSym("...") {
			p.advance()
			if p.cur().Kind == lexer.Ident {
				id := ast.Identifier{Name: p.cur().Text, Span: p.cur().Span}
				lp.Rest = &id
				p.advance()
			}
			break
		}
		lp.Items = append(lp.Items, p.parsePattern())
		if p.isSym(",") {
			p.advance()
			continue
		}
		break
	}
	p.expectSym("]", p.cur().Span)
	lp.Span = start.Join(p.cur().Span)
	return lp
}

func (p *Parser) parseRecordPattern() ast.Pattern {
	start := p.cur().Span
	p.advance() // {
	rp := &ast.RecordPattern{}
	for !p.isSym("}") && p.cur().Kind != lexer.EOF {
		var path []string
		path = append(path, p.expectIdent().Name)
		for p.isSym(".") {
			p.advance()
			path = append(path, p.expectIdent().Name)
		}
		var pat ast.Pattern = &ast.IdentPattern{Name: ast.Identifier{Name: path[len(path)-1]}}
		if p.isSym(":") {
			p.advance()
			pat = p.parsePattern()
		}
		rp.Fields = append(rp.Fields, ast.RecordPatternField{Path: path, Pattern: pat})
		if p.isSym(",") {
			p.advance()
			continue
		}
		break
	}
	p.expectSym("}", p.cur().Span)
	rp.Span = start.Join(p.cur().Span)
	return rp
}
