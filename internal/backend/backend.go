// Package backend is the native code generator of spec.md §4.5: it
// takes a lowered internal/ir.Program and emits a self-contained Go
// source file that needs no lexing, parsing, or inference at load
// time. Rather than re-deriving the value universe and apply protocol
// from scratch per node kind, the emitted code reconstructs the
// resolved IR as literal Go data (a single embeddedProgram value, plus
// a GlobalNames table giving each global's sanitized, FNV-1a-suffixed
// name) and links it through
// internal/runtime's evaluator — the same evaluator internal/runtime
// drives interactively, which is what guarantees the "dual execution
// paths produce observably identical results" property spec.md's
// invariants ask for: there is exactly one apply/match/block
// implementation, not two that could drift.
//
// This mirrors github.com/breadchris/yaegi's own `funcName`/
// `selfPrefix`-style stable synthetic naming for generated symbols
// (interp.go's qualified function-name reconstruction), adapted from
// "name a runtime node for diagnostics" to "name a compiled global for
// collision-free emission".
package backend

import (
	"fmt"
	"hash/fnv"
	"strings"
	"text/template"

	"github.com/aivi-lang/aivi/internal/ir"
)

// Kind selects whether Emit produces a standalone binary (an entry
// point calling RunEffectValue on the program's `main`) or an
// importable library (exported Program/Run functions only).
type Kind int

const (
	KindBin Kind = iota
	KindLib
)

// goKeywords is Go's reserved word set; any global name colliding with
// one (or not a valid identifier at all) is sanitized before use as a
// variable name, per spec.md §4.5 item 6.
var goKeywords = map[string]bool{
	"break": true, "default": true, "func": true, "interface": true, "select": true,
	"case": true, "defer": true, "go": true, "map": true, "struct": true,
	"chan": true, "else": true, "goto": true, "package": true, "switch": true,
	"const": true, "fallthrough": true, "if": true, "range": true, "type": true,
	"continue": true, "for": true, "import": true, "return": true, "var": true,
}

// mangle produces a collision-free Go identifier for a global name:
// non-identifier runes are replaced, a reserved word gets a prefix, and
// a stable 64-bit FNV-1a hash of the ORIGINAL name is always appended
// so that two different source names sanitizing to the same text never
// collide.
func mangle(name string) string {
	var b strings.Builder
	for i, r := range name {
		switch {
		case r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z'):
			b.WriteRune(r)
		case r >= '0' && r <= '9':
			if i == 0 {
				b.WriteRune('_')
			}
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	sanitized := b.String()
	if sanitized == "" {
		sanitized = "g"
	}
	if goKeywords[sanitized] {
		sanitized = "g_" + sanitized
	}
	h := fnv.New64a()
	_, _ = h.Write([]byte(name))
	return fmt.Sprintf("%s_%x", sanitized, h.Sum64())
}

// Emit compiles prog into Go source. Kind controls only the emitted
// entry point; the embedded program and linking logic are identical.
func Emit(prog *ir.Program, kind Kind) (string, error) {
	e := &emitter{mangled: map[string]string{}}
	for _, m := range prog.Modules {
		for _, def := range m.Defs {
			e.mangled[def.Name] = mangle(m.Name + "." + def.Name)
		}
	}

	body, err := e.emitProgram(prog)
	if err != nil {
		return "", err
	}

	tmpl := template.Must(template.New("native").Parse(nativeTemplate))
	var out strings.Builder
	data := struct {
		Package string
		Body    string
		Entry   bool
	}{
		Package: "main",
		Body:    body,
		Entry:   kind == KindBin,
	}
	if kind == KindLib {
		data.Package = "aivicompiled"
	}
	if err := tmpl.Execute(&out, data); err != nil {
		return "", fmt.Errorf("backend: template execution failed: %w", err)
	}
	return out.String(), nil
}

const nativeTemplate = `// Code generated by the aivi native backend. DO NOT EDIT.
package {{.Package}}

import (
	"os"

	"github.com/aivi-lang/aivi/internal/ir"
	"github.com/aivi-lang/aivi/internal/runtime"
	"github.com/aivi-lang/aivi/internal/value"
)

{{.Body}}

// BuildProgram reconstructs the lowered program this file was compiled
// from, with no lexing, parsing, or type inference at load time.
func BuildProgram() *ir.Program {
	return embeddedProgram
}

// Run links BuildProgram's output and drives name to completion.
func Run(name string) (*value.Value, error) {
	return runtime.New(BuildProgram()).RunEffectValue(name)
}

{{if .Entry}}
func main() {
	result, err := Run("main")
	if err != nil {
		os.Stderr.WriteString(err.Error() + "\n")
		os.Exit(1)
	}
	os.Stdout.WriteString(result.String() + "\n")
}
{{end}}
`
