package regalloc

import (
	"sort"

	"github.com/konteck/candor/internal/lir"
)

// assignSpillSlots gives every spilled interval a frame slot, reusing a
// retired slot when no currently active or intersecting-inactive spill
// occupies it (spec §4.9's "Spill slot assignment"). Slot 0 is reserved
// for argc, so the free counter starts at 1.
func (a *allocator) assignSpillSlots(all []*lir.Interval) {
	var spilled []*lir.Interval
	for _, iv := range all {
		if iv.Spilled {
			spilled = append(spilled, iv)
		}
	}
	sort.Slice(spilled, func(i, j int) bool { return spilled[i].Start() < spilled[j].Start() })

	type occupant struct {
		slot int
		iv   *lir.Interval
	}
	var live []occupant

	for _, iv := range spilled {
		pos := iv.Start()
		var stillLive []occupant
		for _, o := range live {
			if o.iv.End() <= pos {
				a.spillFreeList = append(a.spillFreeList, o.slot)
			} else {
				stillLive = append(stillLive, o)
			}
		}
		live = stillLive

		slot := -1
		for i, candidate := range a.spillFreeList {
			conflict := false
			for _, o := range live {
				if o.slot == candidate && o.iv.FirstIntersection(iv, pos) >= 0 {
					conflict = true
					break
				}
			}
			if !conflict {
				slot = candidate
				a.spillFreeList = append(a.spillFreeList[:i], a.spillFreeList[i+1:]...)
				break
			}
		}
		if slot == -1 {
			slot = a.nextSpillSlot
			a.nextSpillSlot++
		}
		iv.SpillSlot = slot
		live = append(live, occupant{slot: slot, iv: iv})
	}
}

// resolve inserts the moves spec §4.9's data-flow resolution requires: at
// every edge, for every value live across it, if the source interval's
// location at the pred's exit differs from the destination interval's
// location at the succ's entry, a move is added to the edge's gap. It
// must run after Allocate has assigned every interval a location.
//
// The control-flow shapes the builder produces never create a true
// critical edge (a two-successor predecessor feeding a multi-predecessor
// successor): a two-successor block's targets are always allocated fresh
// with exactly one predecessor. That lets every edge resolve
// unambiguously to one gap: the successor's entry when the predecessor
// branches, the predecessor's own tail gap otherwise.
func resolve(fn *lir.Function, live map[*lir.Block]*blockLive) {
	byVReg := make(map[lir.VRegID]*lir.Interval, len(fn.Intervals))
	for _, iv := range fn.Intervals {
		byVReg[iv.VReg.ID()] = iv
	}

	for _, pred := range fn.Blocks {
		for _, succ := range pred.Succs {
			resolveEdge(pred, succ, live[succ].in, byVReg)
		}
	}

	removeRedundantFallthroughs(fn)
}

func resolveEdge(pred, succ *lir.Block, liveAtSucc map[lir.VRegID]bool, byVReg map[lir.VRegID]*lir.Interval) {
	predExitPos := pred.End - 2
	if term := pred.Terminator(); term != nil {
		predExitPos = term.Id - 1
	}
	succEntryPos := succ.Start + 1

	var moves []lir.Move
	for vreg := range liveAtSucc {
		root := byVReg[vreg]
		if root == nil {
			continue
		}
		fromIv := root.ChildCovering(predExitPos)
		toIv := root.ChildCovering(succEntryPos)
		if fromIv == nil || toIv == nil || fromIv == toIv {
			continue
		}
		if sameLocation(fromIv, toIv) {
			continue
		}
		moves = append(moves, lir.Move{From: locationOperand(fromIv), To: locationOperand(toIv)})
	}
	if len(moves) == 0 {
		return
	}

	var gap *lir.Instruction
	if len(pred.Succs) == 2 {
		gap = entryGap(succ)
	} else {
		gap = tailGap(pred)
	}
	gap.GapMoves = append(gap.GapMoves, moves...)
}

func sameLocation(a, b *lir.Interval) bool {
	if a.Spilled != b.Spilled {
		return false
	}
	if a.Spilled {
		return a.SpillSlot == b.SpillSlot
	}
	return a.Assigned == b.Assigned
}

func locationOperand(iv *lir.Interval) lir.Operand {
	return lir.AnyOperand(iv)
}

func tailGap(blk *lir.Block) *lir.Instruction {
	term := blk.Terminator()
	if term != nil && term.Prev() != nil && term.Prev().Kind == lir.KindGap {
		return term.Prev()
	}
	gap := &lir.Instruction{Kind: lir.KindGap}
	if term != nil {
		gap.Id = term.Id - 1
		blk.InsertBefore(term, gap)
	} else {
		gap.Id = blk.End - 1
		blk.Append(gap)
	}
	return gap
}

func entryGap(blk *lir.Block) *lir.Instruction {
	first := blk.Instructions()
	if first != nil && first.Kind == lir.KindGap {
		return first
	}
	gap := &lir.Instruction{Kind: lir.KindGap}
	if first != nil {
		gap.Id = first.Id - 1
		blk.InsertBefore(first, gap)
	} else {
		gap.Id = blk.Start + 1
		blk.Append(gap)
	}
	return gap
}

// removeRedundantFallthroughs drops a Goto whose target is the next
// block in layout order, per spec §4.9.
func removeRedundantFallthroughs(fn *lir.Function) {
	for i, blk := range fn.Blocks {
		term := blk.Terminator()
		if term == nil || term.Kind != lir.KindGoto {
			continue
		}
		if i+1 < len(fn.Blocks) && term.GotoTarget == fn.Blocks[i+1] {
			blk.Remove(term)
		}
	}
}
