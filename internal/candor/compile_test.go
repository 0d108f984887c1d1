package candor

import (
	"testing"

	"github.com/konteck/candor/internal/candorast"
	"github.com/konteck/candor/internal/lir"
	"github.com/konteck/candor/internal/testing/require"
)

func numLit(v float64) *candorast.Node {
	return &candorast.Node{Kind: candorast.Literal, Lit: candorast.Lit{Kind: candorast.LitNumber, Number: v}}
}

func TestCompileSimpleFunctionProducesAllocatedLIR(t *testing.T) {
	root := &candorast.Node{
		Kind: candorast.Block,
		Children: []*candorast.Node{
			{Kind: candorast.Return, Children: []*candorast.Node{numLit(1)}},
		},
	}
	res, err := Compile(root, "f", 0, false, 0, Config{})
	require.NoError(t, err)
	require.NotNil(t, res.HIR)
	require.NotNil(t, res.LIR)
	require.NotNil(t, res.Map)

	for _, iv := range res.LIR.Intervals {
		if iv.Kind == lir.IntervalConstant || len(iv.Ranges) == 0 {
			continue
		}
		require.True(t, iv.Spilled || iv.Assigned != lir.RealRegInvalid)
	}
}

func TestCompileWithOptimizationDisabledStillAllocates(t *testing.T) {
	root := &candorast.Node{
		Kind: candorast.Block,
		Children: []*candorast.Node{
			{Kind: candorast.Return, Children: []*candorast.Node{numLit(1)}},
		},
	}
	res, err := Compile(root, "f", 0, false, 0, Config{DisableOptimization: true})
	require.NoError(t, err)
	require.NotNil(t, res.LIR)
}

func TestCompileRecoversInternalInvariantPanicAsCompileError(t *testing.T) {
	// A ScopeSlot with an invalid Kind triggers the builder's
	// "BUG: invalid ScopeSlot kind" panic.
	root := &candorast.Node{
		Kind: candorast.Block,
		Children: []*candorast.Node{
			{Kind: candorast.Return, Children: []*candorast.Node{
				{Kind: candorast.Name, Slot: candorast.ScopeSlot{Kind: candorast.SlotInvalid}},
			}},
		},
	}
	_, err := Compile(root, "f", 0, false, 0, Config{Filename: "test.cnd"})
	require.Error(t, err)
	ce, ok := err.(*CompileError)
	require.True(t, ok)
	require.Equal(t, ErrorKindInternalInvariant, ce.Kind)
	require.Equal(t, "test.cnd", ce.Filename)
}

func TestPhysicalRegisterNameCoversAllocatableRegs(t *testing.T) {
	for _, r := range lir.AllocatableRegs {
		name := PhysicalRegisterName(r)
		require.NotEqual(t, "invalid_reg", name)
	}
}
