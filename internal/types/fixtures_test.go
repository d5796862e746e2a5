package types

import (
	"strings"
	"testing"

	"golang.org/x/tools/txtar"

	"github.com/aivi-lang/aivi/internal/diag"
	"github.com/aivi-lang/aivi/internal/parser"
)

// Type-checker diagnostic fixtures, bundled the same way as
// internal/parser's: one module source per case and a ".want" sibling
// naming the expected code, or "ok" for a module with no type errors.
const typeFixtures = `
-- unbound-identifier.aivi --
module demo = {
	f x = x + doesNotExist
}
-- unbound-identifier.want --
E3001

-- row-pick-unknown-field.aivi --
module demo = {
	type Person = { name: Text, age: Int }
	type Bad = Pick {name, missing} Person
}
-- row-pick-unknown-field.want --
E3002

-- clean-row-pick.aivi --
module demo = {
	type Person = { name: Text, age: Int, email: Text }
	type Contact = Pick {name, email} Person
}
-- clean-row-pick.want --
ok

-- clean-hole-binary.aivi --
module demo = {
	addOne = _ + 1
}
-- clean-hole-binary.want --
ok

-- clean-hole-two-args.aivi --
module demo = {
	add = _ + _
}
-- clean-hole-two-args.want --
ok

-- clean-field-section.aivi --
module demo = {
	type Person = { name: Text }
	getName = .name
}
-- clean-field-section.want --
ok
`

func TestTypeDiagnosticFixtures(t *testing.T) {
	ar := txtar.Parse([]byte(typeFixtures))
	cases := map[string]string{}
	wants := map[string]string{}
	for _, f := range ar.Files {
		switch {
		case strings.HasSuffix(f.Name, ".aivi"):
			cases[strings.TrimSuffix(f.Name, ".aivi")] = string(f.Data)
		case strings.HasSuffix(f.Name, ".want"):
			wants[strings.TrimSuffix(f.Name, ".want")] = strings.TrimSpace(string(f.Data))
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
			mods, pdiags := parser.Parse(name+".aivi", src)
			if len(pdiags) != 0 {
				t.Fatalf("unexpected parse diagnostics: %v", pdiags)
			}
			_, tdiags := InferValueTypes(mods)
			if want == "ok" {
				for _, d := range tdiags {
					if d.Severity == diag.SeverityError {
						t.Fatalf("expected no type errors, got %v", tdiags)
					}
				}
				return
			}
			found := false
			for _, d := range tdiags {
				if d.Code == want {
					found = true
					break
				}
			}
			if !found {
				t.Fatalf("expected diagnostic code %s, got %v", want, tdiags)
			}
		})
	}
}
