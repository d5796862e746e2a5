package backend

import (
	"strings"
	"testing"

	"github.com/aivi-lang/aivi/internal/ir"
	"github.com/stretchr/testify/require"
)

func sampleProgram() *ir.Program {
	def := &ir.Def{
		Name: "answer",
		Clauses: []ir.Clause{{Body: &ir.IntLit{Value: 42}}},
	}
	return &ir.Program{Modules: []*ir.Module{{Name: "Main", Defs: []*ir.Def{def}}}}
}

func TestEmitBinIncludesMain(t *testing.T) {
	src, err := Emit(sampleProgram(), KindBin)
	require.NoError(t, err)
	require.Contains(t, src, "func main()")
	require.Contains(t, src, "embeddedProgram")
	require.Contains(t, src, "IntLit{Value: 42}")
}

func TestEmitLibOmitsMain(t *testing.T) {
	src, err := Emit(sampleProgram(), KindLib)
	require.NoError(t, err)
	require.False(t, strings.Contains(src, "func main()"))
	require.Contains(t, src, "package aivicompiled")
}

func TestEmitRejectsYieldInPlainBlock(t *testing.T) {
	bad := &ir.Block{Kind: ir.BlockPlain, Items: []ir.BlockItem{{Kind: ir.ItemYield, Value: &ir.IntLit{Value: 1}}}}
	def := &ir.Def{Name: "bad", Clauses: []ir.Clause{{Body: bad}}}
	prog := &ir.Program{Modules: []*ir.Module{{Name: "Main", Defs: []*ir.Def{def}}}}
	_, err := Emit(prog, KindBin)
	require.Error(t, err)
}

func TestMangleIsStableAndCollisionFree(t *testing.T) {
	a := mangle("if")
	b := mangle("if2")
	require.NotEqual(t, a, b)
	require.Equal(t, a, mangle("if"))
	require.True(t, strings.HasPrefix(a, "g_if_"))
}
