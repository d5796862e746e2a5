package backend

import (
	"strings"
	"testing"

	"golang.org/x/tools/txtar"

	"github.com/aivi-lang/aivi/internal/ir"
	"github.com/stretchr/testify/require"
)

// Golden-file-style backend fixtures: a txtar archive whose file names
// name the IR sample to build and whose contents list substrings the
// emitted Go source must contain, one per line. Exact byte-for-byte
// golden comparison isn't used here since mangled names embed a
// content hash; asserting the stable structural markers instead keeps
// the fixture resilient to that hash's literal digits while still
// pinning the shape of the emitted code.
const backendGoldenFixtures = `
-- multiclause.want --
ir.Clause{
Main_f_
func main()

-- patch.want --
ir.Patch
Main_setAge_
`

func goldenProgram(name string) *ir.Program {
	switch name {
	case "multiclause":
		def := &ir.Def{
			Name: "f",
			Clauses: []ir.Clause{
				{Params: []ir.Pattern{&ir.LiteralPattern{Value: &ir.IntLit{Value: 0}}}, Body: &ir.TextLit{Value: "zero"}},
				{Params: []ir.Pattern{&ir.BindPattern{Name: "n"}}, Body: &ir.TextLit{Value: "other"}},
			},
		}
		return &ir.Program{Modules: []*ir.Module{{Name: "Main", Defs: []*ir.Def{def}}}}
	case "patch":
		def := &ir.Def{
			Name: "setAge",
			Clauses: []ir.Clause{{
				Params: []ir.Pattern{&ir.BindPattern{Name: "r"}},
				Body: &ir.Patch{
					Target: &ir.Ident{Ref: ir.Ref{Kind: ir.RefLocal, Name: "r"}},
					Fields: []ir.PatchField{{
						Path:  []ir.PatchSegment{{Kind: ir.PatchFieldSeg, Field: "age"}},
						Value: &ir.IntLit{Value: 1},
					}},
				},
			}},
		}
		return &ir.Program{Modules: []*ir.Module{{Name: "Main", Defs: []*ir.Def{def}}}}
	}
	return nil
}

func TestBackendGoldenFixtures(t *testing.T) {
	ar := txtar.Parse([]byte(backendGoldenFixtures))
	for _, f := range ar.Files {
		name := strings.TrimSuffix(f.Name, ".want")
		var wants []string
		for _, line := range strings.Split(string(f.Data), "\n") {
			if strings.TrimSpace(line) != "" {
				wants = append(wants, line)
			}
		}
		t.Run(name, func(t *testing.T) {
			prog := goldenProgram(name)
			require.NotNil(t, prog, "no IR sample registered for fixture %q", name)
			src, err := Emit(prog, KindBin)
			require.NoError(t, err)
			for _, want := range wants {
				require.True(t, strings.Contains(src, want), "emitted source missing marker %q", want)
			}
		})
	}
}
