package regalloc

import (
	"testing"

	"github.com/konteck/candor/internal/candorast"
	"github.com/konteck/candor/internal/hir"
	"github.com/konteck/candor/internal/lir"
	"github.com/konteck/candor/internal/testing/require"
)

func numLit(v float64) *candorast.Node {
	return &candorast.Node{Kind: candorast.Literal, Lit: candorast.Lit{Kind: candorast.LitNumber, Number: v}}
}

func nameSlot(idx int) *candorast.Node {
	return &candorast.Node{Kind: candorast.Name, Slot: candorast.ScopeSlot{Kind: candorast.SlotStack, Index: idx}}
}

func assignSlot(idx int, v *candorast.Node) *candorast.Node {
	return &candorast.Node{Kind: candorast.Assign, Slot: candorast.ScopeSlot{Kind: candorast.SlotStack, Index: idx}, Children: []*candorast.Node{v}}
}

func blockNode(stmts ...*candorast.Node) *candorast.Node {
	return &candorast.Node{Kind: candorast.Block, Children: stmts}
}

func retNode(v *candorast.Node) *candorast.Node {
	return &candorast.Node{Kind: candorast.Return, Children: []*candorast.Node{v}}
}

func lowerFunction(t *testing.T, root *candorast.Node, paramCount, stackSlots int) *lir.Function {
	t.Helper()
	b := hir.New(stackSlots, nil)
	fn := b.Build("f", root, paramCount, false)
	hir.ComputeDominators(fn)
	hir.ComputeLoopDepths(fn)
	hir.PrunePhis(fn)
	hir.ComputeReachability(fn)
	hir.ComputeEffects(fn)
	hir.RunDCE(fn)
	hir.RunGVN(fn)
	hir.RunGCM(fn)
	return lir.Lower(fn)
}

func TestAllocateAssignsEveryVirtualIntervalALocation(t *testing.T) {
	body := blockNode(
		assignSlot(0, numLit(1)),
		assignSlot(1, numLit(2)),
		retNode(&candorast.Node{Kind: candorast.BinOp, Op: candorast.OpAdd, Children: []*candorast.Node{nameSlot(0), nameSlot(1)}}),
	)
	lfn := lowerFunction(t, body, 0, 2)
	Allocate(lfn)

	for _, iv := range lfn.Intervals {
		if iv.Kind == lir.IntervalConstant {
			continue
		}
		if len(iv.Ranges) == 0 {
			continue
		}
		hasLocation := iv.Spilled || iv.Assigned != lir.RealRegInvalid
		require.True(t, hasLocation)
	}
}

func TestAllocateRematerializesConstantsAtEachUse(t *testing.T) {
	// Use the same literal twice so, pre-rematerialization, it would be
	// one interval used from two places; post-allocation, the constant
	// interval itself should never receive a register, and there must be
	// a Move materializing it ahead of every non-pinned use.
	lit := numLit(42)
	body := blockNode(
		assignSlot(0, lit),
		assignSlot(1, nameSlot(0)),
		retNode(&candorast.Node{Kind: candorast.BinOp, Op: candorast.OpAdd, Children: []*candorast.Node{nameSlot(0), nameSlot(1)}}),
	)
	lfn := lowerFunction(t, body, 0, 2)
	Allocate(lfn)

	for _, iv := range lfn.Intervals {
		require.True(t, iv.Kind != lir.IntervalConstant || iv.Assigned == lir.RealRegInvalid)
	}

	// Both BinOp inputs are the one literal, so each gets its own Move
	// and no instruction reads the constant interval directly.
	rematMoves := 0
	for _, blk := range lfn.Blocks {
		for instr := blk.Instructions(); instr != nil; instr = instr.Next() {
			for _, in := range instr.Inputs {
				require.True(t, in.Interval == nil || in.Interval.Kind != lir.IntervalConstant)
			}
			for _, mv := range instr.GapMoves {
				if mv.From.Interval != nil && mv.From.Interval.Kind == lir.IntervalConstant {
					rematMoves++
				}
			}
		}
	}
	require.Equal(t, 2, rematMoves)
}

func TestIntervalSplitAtPreservesRangesAndUses(t *testing.T) {
	iv := &lir.Interval{}
	iv.AddRange(0, 10)
	iv.Uses = []lir.UsePos{{Pos: 2, RequiresRegister: true}, {Pos: 8, RequiresRegister: true}}

	child := iv.SplitAt(5)

	require.Equal(t, 1, len(iv.Ranges))
	require.Equal(t, lir.Range{From: 0, To: 5}, iv.Ranges[0])
	require.Equal(t, lir.Range{From: 5, To: 10}, child.Ranges[0])
	require.Equal(t, 1, len(iv.Uses))
	require.Equal(t, 2, iv.Uses[0].Pos)
	require.Equal(t, 1, len(child.Uses))
	require.Equal(t, 8, child.Uses[0].Pos)
	require.True(t, iv == child.Parent)
}

func TestChildCoveringFindsSplitDescendant(t *testing.T) {
	iv := &lir.Interval{}
	iv.AddRange(0, 10)
	child := iv.SplitAt(5)

	require.True(t, iv == iv.ChildCovering(2))
	require.True(t, child == iv.ChildCovering(7))
	require.Nil(t, iv.ChildCovering(20))
}
