package lexer

import "testing"

func TestTokenizeIdentsAndSymbols(t *testing.T) {
	toks, diags := Tokenize("foo = bar.baz")
	if len(diags) != 0 {
		t.Fatalf("unexpected diagnostics: %v", diags)
	}
	want := []Kind{Ident, Symbol, Ident, Symbol, Ident, EOF}
	if len(toks) != len(want) {
		t.Fatalf("got %d tokens, want %d: %+v", len(toks), len(want), toks)
	}
	for i, k := range want {
		if toks[i].Kind != k {
			t.Errorf("token %d: got %s, want %s", i, toks[i].Kind, k)
		}
	}
}

func TestTokenizeNewlineSignificant(t *testing.T) {
	toks, _ := Tokenize("a\nb")
	var kinds []Kind
	for _, tk := range toks {
		kinds = append(kinds, tk.Kind)
	}
	if len(kinds) != 4 || kinds[1] != Newline {
		t.Fatalf("expected ident,newline,ident,eof; got %v", kinds)
	}
}

func TestTokenizeSuffixedNumber(t *testing.T) {
	toks, _ := Tokenize("5px")
	if toks[0].Kind != Number || toks[0].Text != "5" || toks[0].Suffix != "px" {
		t.Fatalf("unexpected token: %+v", toks[0])
	}
}

func TestTokenizePercentSuffix(t *testing.T) {
	toks, _ := Tokenize("10%")
	if toks[0].Suffix != "%" {
		t.Fatalf("expected %% suffix, got %+v", toks[0])
	}
}

func TestTokenizeInterpolatedString(t *testing.T) {
	toks, diags := Tokenize(`"hello {name}!"`)
	if len(diags) != 0 {
		t.Fatalf("unexpected diagnostics: %v", diags)
	}
	tok := toks[0]
	if len(tok.Parts) != 3 {
		t.Fatalf("expected 3 parts, got %d: %+v", len(tok.Parts), tok.Parts)
	}
	if tok.Parts[0].Text != "hello " || !tok.Parts[1].IsExpr || tok.Parts[1].Source != "name" {
		t.Fatalf("unexpected parts: %+v", tok.Parts)
	}
}

func TestTokenizeUnterminatedString(t *testing.T) {
	_, diags := Tokenize(`"oops`)
	if len(diags) == 0 || diags[0].Code != "E1001" {
		t.Fatalf("expected E1001, got %v", diags)
	}
}

func TestTokenizeRegexSigil(t *testing.T) {
	toks, diags := Tokenize(`~r/a+b*/i`)
	if len(diags) != 0 {
		t.Fatalf("unexpected diagnostics: %v", diags)
	}
	tok := toks[0]
	if tok.Kind != Sigil || tok.SigilTag != "r" || tok.SigilBody != "a+b*" || tok.SigilFlags != "i" {
		t.Fatalf("unexpected sigil: %+v", tok)
	}
}

func TestTokenizeInvalidDateSigil(t *testing.T) {
	_, diags := Tokenize(`~d/not-a-date/`)
	if len(diags) == 0 {
		t.Fatalf("expected a diagnostic for invalid date shape")
	}
}

func TestTokenizeRecoversFromUnknownChar(t *testing.T) {
	toks, diags := Tokenize("a $ b")
	if len(diags) == 0 {
		t.Fatalf("expected a diagnostic for unknown char")
	}
	// scanning continues past the bad character
	var kinds []Kind
	for _, tk := range toks {
		kinds = append(kinds, tk.Kind)
	}
	if kinds[len(kinds)-1] != EOF {
		t.Fatalf("lexer did not reach EOF: %v", kinds)
	}
}

func TestTokenizeBOM(t *testing.T) {
	toks, diags := Tokenize("\xef\xbb\xbfx = 1")
	if len(diags) != 0 {
		t.Fatalf("unexpected diagnostics: %v", diags)
	}
	if toks[0].Kind != Ident || toks[0].Text != "x" {
		t.Fatalf("BOM not skipped: %+v", toks[0])
	}
}
