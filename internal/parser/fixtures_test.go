package parser

import (
	"strings"
	"testing"

	"golang.org/x/tools/txtar"

	"github.com/aivi-lang/aivi/internal/diag"
)

// Parser diagnostic fixtures bundled as a single txtar archive: one
// source file per case plus a ".want" sibling holding either a stable
// diagnostic code or "ok" for a case expected to parse clean.
// golang.org/x/tools/txtar is repurposed here for multi-file fixture
// bundling the way the Go toolchain's own cmd/go tests bundle testdata
// archives.
const parserFixtures = `
-- unterminated-module.aivi --
module broken = {
-- unterminated-module.want --
E1501

-- unknown-decorator.aivi --
module demo = {
	@mystery
	x = 1
}
-- unknown-decorator.want --
E1504

-- clean-multiclause.aivi --
module demo = {
	f 0 = "z"
	f n = "n"
}
-- clean-multiclause.want --
ok
`

func TestParserDiagnosticFixtures(t *testing.T) {
	ar := txtar.Parse([]byte(parserFixtures))
	cases := map[string]string{}
	wants := map[string]string{}
	for _, f := range ar.Files {
		name := f.Name
		data := strings.TrimRight(string(f.Data), "\n")
		switch {
		case strings.HasSuffix(name, ".aivi"):
			cases[strings.TrimSuffix(name, ".aivi")] = string(f.Data)
		case strings.HasSuffix(name, ".want"):
			wants[strings.TrimSuffix(name, ".want")] = data
		}
	}
	if len(cases) == 0 {
		t.Fatalf("no .aivi fixtures found in archive")
	}
	for name, src := range cases {
		want, ok := wants[name]
		if !ok {
			t.Fatalf("fixture %q has no matching .want file", name)
		}
		t.Run(name, func(t *testing.T) {
			_, diags := Parse(name+".aivi", src)
			if want == "ok" {
				for _, d := range diags {
					if d.Severity == diag.SeverityError {
						t.Fatalf("expected no error diagnostics, got %v", diags)
					}
				}
				return
			}
			found := false
			for _, d := range diags {
				if d.Code == want {
					found = true
					break
				}
			}
			if !found {
				t.Fatalf("expected diagnostic code %s, got %v", want, diags)
			}
		})
	}
}
