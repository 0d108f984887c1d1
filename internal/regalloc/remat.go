package regalloc

import "github.com/konteck/candor/internal/lir"

// rematerializeConstants rewrites every use of a constant interval into a
// use of a fresh register interval, with a Move in the immediately
// preceding gap that materializes the constant into it (spec §4.10). It
// must run before liveness/interval construction so the fresh intervals
// are ordinary linear-scan candidates. Liveness does not count the gap
// Move as a definition of the fresh interval, so the interval is live
// from the start of its block, and live into the block from its
// predecessors, rather than spanning only the instruction that uses it.
func rematerializeConstants(fn *lir.Function) {
	nextID := lir.VRegID(0)
	for _, iv := range fn.Intervals {
		if iv.VReg.ID() > nextID {
			nextID = iv.VReg.ID()
		}
	}

	for _, blk := range fn.Blocks {
		for instr := blk.Instructions(); instr != nil; instr = instr.Next() {
			for idx := range instr.Inputs {
				in := &instr.Inputs[idx]
				if in.Interval == nil || in.Interval.Kind != lir.IntervalConstant {
					continue
				}
				nextID++
				fresh := &lir.Interval{Kind: lir.IntervalVirtual, VReg: lir.VReg(nextID)}
				fn.Intervals = append(fn.Intervals, fresh)

				gap := gapBefore(blk, instr)
				gap.GapMoves = append(gap.GapMoves, lir.Move{
					From: lir.AnyOperand(in.Interval),
					To:   lir.RegOperand(fresh),
				})

				constraint := in.Constraint
				fixed := in.Fixed
				*in = lir.Operand{Interval: fresh, Constraint: constraint, Fixed: fixed}
				if constraint == lir.ConstraintAny {
					in.Constraint = lir.ConstraintRegister
				}
			}
		}
	}
}

func gapBefore(blk *lir.Block, mark *lir.Instruction) *lir.Instruction {
	if mark.Prev() != nil && mark.Prev().Kind == lir.KindGap {
		return mark.Prev()
	}
	gap := &lir.Instruction{Kind: lir.KindGap, Id: mark.Id - 1}
	blk.InsertBefore(mark, gap)
	return gap
}
