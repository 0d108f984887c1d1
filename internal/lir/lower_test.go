package lir

import (
	"testing"

	"github.com/konteck/candor/internal/candorast"
	"github.com/konteck/candor/internal/hir"
	"github.com/konteck/candor/internal/testing/require"
)

func buildHIR(t *testing.T, root *candorast.Node, paramCount int, stackSlots int) *hir.Function {
	t.Helper()
	b := hir.New(stackSlots, nil)
	fn := b.Build("f", root, paramCount, false)
	hir.ComputeDominators(fn)
	hir.ComputeLoopDepths(fn)
	hir.PrunePhis(fn)
	hir.ComputeReachability(fn)
	hir.ComputeEffects(fn)
	hir.RunDCE(fn)
	return fn
}

func numLit(v float64) *candorast.Node {
	return &candorast.Node{Kind: candorast.Literal, Lit: candorast.Lit{Kind: candorast.LitNumber, Number: v}}
}

func blockNode(stmts ...*candorast.Node) *candorast.Node {
	return &candorast.Node{Kind: candorast.Block, Children: stmts}
}

func retNode(v *candorast.Node) *candorast.Node {
	return &candorast.Node{Kind: candorast.Return, Children: []*candorast.Node{v}}
}

func TestLowerReturnLiteralProducesConstantInterval(t *testing.T) {
	hfn := buildHIR(t, blockNode(retNode(numLit(7))), 0, 0)
	lfn := Lower(hfn)

	require.True(t, len(lfn.Blocks) >= 1)
	var sawConstant bool
	for _, iv := range lfn.Intervals {
		if iv.Kind == IntervalConstant {
			sawConstant = true
			require.Equal(t, 7.0, iv.ConstantLiteral.Number)
		}
	}
	require.True(t, sawConstant)
}

func TestLowerAssignsEvenIdsLeavingGapsOdd(t *testing.T) {
	hfn := buildHIR(t, blockNode(retNode(numLit(1))), 0, 0)
	lfn := Lower(hfn)

	for _, blk := range lfn.Blocks {
		for instr := blk.Instructions(); instr != nil; instr = instr.Next() {
			if instr.Kind == KindGap {
				require.True(t, instr.Id%2 == 1)
			} else {
				require.True(t, instr.Id%2 == 0)
			}
		}
	}
}

func TestLowerCallPinsFixedRegisters(t *testing.T) {
	callNode := &candorast.Node{
		Kind:     candorast.Call,
		Children: []*candorast.Node{&candorast.Node{Kind: candorast.Name, Slot: candorast.ScopeSlot{Kind: candorast.SlotStack, Index: 0}}},
	}
	hfn := buildHIR(t, blockNode(retNode(callNode)), 1, 1)
	lfn := Lower(hfn)

	var sawCall bool
	for _, blk := range lfn.Blocks {
		for instr := blk.Instructions(); instr != nil; instr = instr.Next() {
			if instr.Kind == KindCall {
				sawCall = true
				require.Equal(t, ConstraintFixedRegister, instr.Inputs[0].Constraint)
				require.Equal(t, CalleeReg, instr.Inputs[0].Fixed)
				require.Equal(t, ConstraintFixedRegister, instr.Inputs[1].Constraint)
				require.Equal(t, ArgcReg, instr.Inputs[1].Fixed)
				require.Equal(t, ResultReg, instr.Result.Fixed)
			}
		}
	}
	require.True(t, sawCall)
}

func TestLowerLoopPhiGetsMoveAtBothPredecessorGaps(t *testing.T) {
	whileNode := &candorast.Node{
		Kind: candorast.While,
		Children: []*candorast.Node{
			&candorast.Node{Kind: candorast.Name, Slot: candorast.ScopeSlot{Kind: candorast.SlotStack, Index: 0}},
			blockNode(&candorast.Node{
				Kind: candorast.Assign,
				Slot: candorast.ScopeSlot{Kind: candorast.SlotStack, Index: 0},
				Children: []*candorast.Node{
					&candorast.Node{
						Kind: candorast.BinOp, Op: candorast.OpAdd,
						Children: []*candorast.Node{
							&candorast.Node{Kind: candorast.Name, Slot: candorast.ScopeSlot{Kind: candorast.SlotStack, Index: 0}},
							numLit(1),
						},
					},
				},
			}),
		},
	}
	body := blockNode(
		&candorast.Node{Kind: candorast.Assign, Slot: candorast.ScopeSlot{Kind: candorast.SlotStack, Index: 0}, Children: []*candorast.Node{numLit(0)}},
		whileNode,
		retNode(&candorast.Node{Kind: candorast.Name, Slot: candorast.ScopeSlot{Kind: candorast.SlotStack, Index: 0}}),
	)
	hfn := buildHIR(t, body, 0, 1)
	lfn := Lower(hfn)

	var gapsWithMoves int
	for _, blk := range lfn.Blocks {
		for instr := blk.Instructions(); instr != nil; instr = instr.Next() {
			if instr.Kind == KindGap && len(instr.GapMoves) > 0 {
				gapsWithMoves++
				for _, mv := range instr.GapMoves {
					require.True(t, mv.From.Interval != mv.To.Interval)
				}
			}
		}
	}
	// Both the pre-loop edge and the back edge feed the header's phi with
	// a value distinct from the phi's own interval, so each contributes a
	// Gap carrying at least one move.
	require.True(t, gapsWithMoves >= 2)
}

func TestLowerIfProducesBranchWithBothTargets(t *testing.T) {
	ifNode := &candorast.Node{
		Kind: candorast.If,
		Children: []*candorast.Node{
			&candorast.Node{Kind: candorast.Name, Slot: candorast.ScopeSlot{Kind: candorast.SlotStack, Index: 0}},
			blockNode(retNode(numLit(1))),
			blockNode(retNode(numLit(2))),
		},
	}
	hfn := buildHIR(t, blockNode(ifNode), 1, 1)
	lfn := Lower(hfn)

	var sawBranch bool
	for _, blk := range lfn.Blocks {
		if term := blk.Terminator(); term != nil && term.Kind == KindBranch {
			sawBranch = true
			require.NotNil(t, term.BranchTrue)
			require.NotNil(t, term.BranchElse)
		}
	}
	require.True(t, sawBranch)
}
