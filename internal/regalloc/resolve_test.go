package regalloc

import (
	"testing"

	"github.com/konteck/candor/internal/lir"
	"github.com/konteck/candor/internal/testing/require"
)

// TestResolveEdgeInsertsMoveWhenLocationsDiffer builds a single interval
// split across a branch with a different location on each side, and
// checks resolveEdge inserts a move carrying it from its predecessor-exit
// location to its successor-entry location.
func TestResolveEdgeInsertsMoveWhenLocationsDiffer(t *testing.T) {
	var vb lir.VRegBuilder
	root := &lir.Interval{VReg: vb.Alloc()}
	root.AddRange(0, 20)
	child := root.SplitAt(10)

	root.Assigned = lir.R0
	child.Spilled = true
	child.SpillSlot = 3

	pred := &lir.Block{End: 10}
	succ := &lir.Block{Start: 10}

	byVReg := map[lir.VRegID]*lir.Interval{root.VReg.ID(): root}
	liveAtSucc := map[lir.VRegID]bool{root.VReg.ID(): true}

	resolveEdge(pred, succ, liveAtSucc, byVReg)

	// pred has a single successor, so the move lands in pred's own tail
	// gap rather than succ's entry gap.
	gap := pred.Instructions()
	require.NotNil(t, gap)
	require.True(t, gap.Kind == lir.KindGap)
	require.Equal(t, 1, len(gap.GapMoves))
	mv := gap.GapMoves[0]
	require.True(t, mv.From.Interval == root)
	require.True(t, mv.To.Interval == child)
}

// TestResolveEdgeSkipsMoveWhenLocationsAgree covers the common case: both
// halves of a split land in the same register, so no move is needed and
// no gap should be materialized at all.
func TestResolveEdgeSkipsMoveWhenLocationsAgree(t *testing.T) {
	var vb lir.VRegBuilder
	root := &lir.Interval{VReg: vb.Alloc()}
	root.AddRange(0, 20)
	child := root.SplitAt(10)

	root.Assigned = lir.R1
	child.Assigned = lir.R1

	pred := &lir.Block{End: 10}
	succ := &lir.Block{Start: 10}

	byVReg := map[lir.VRegID]*lir.Interval{root.VReg.ID(): root}
	liveAtSucc := map[lir.VRegID]bool{root.VReg.ID(): true}

	resolveEdge(pred, succ, liveAtSucc, byVReg)

	require.Nil(t, pred.Instructions())
	require.Nil(t, succ.Instructions())
}

// TestRemoveRedundantFallthroughsDropsGotoToNextBlock covers the
// fallthrough-elision pass: a Goto whose target is the very next block in
// layout order is dead weight and must be removed.
func TestRemoveRedundantFallthroughsDropsGotoToNextBlock(t *testing.T) {
	b0 := &lir.Block{Id: 0}
	b1 := &lir.Block{Id: 1}
	gotoInstr := &lir.Instruction{Kind: lir.KindGoto, GotoTarget: b1}
	b0.Append(gotoInstr)

	fn := &lir.Function{Blocks: []*lir.Block{b0, b1}}
	removeRedundantFallthroughs(fn)

	require.Nil(t, b0.Instructions())
}

// TestRemoveRedundantFallthroughsKeepsGotoToNonAdjacentBlock ensures the
// pass leaves a Goto alone when its target is not the immediate
// successor in layout order.
func TestRemoveRedundantFallthroughsKeepsGotoToNonAdjacentBlock(t *testing.T) {
	b0 := &lir.Block{Id: 0}
	b1 := &lir.Block{Id: 1}
	b2 := &lir.Block{Id: 2}
	gotoInstr := &lir.Instruction{Kind: lir.KindGoto, GotoTarget: b2}
	b0.Append(gotoInstr)

	fn := &lir.Function{Blocks: []*lir.Block{b0, b1, b2}}
	removeRedundantFallthroughs(fn)

	require.NotNil(t, b0.Instructions())
}
