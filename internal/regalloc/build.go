package regalloc

import "github.com/konteck/candor/internal/lir"

// buildIntervals constructs live ranges and use positions for every
// interval in fn, walking blocks in reverse (spec §4.9's "Interval
// construction"). It also returns one synthetic fixed interval per
// physical register, carrying a one-instruction range at every call site
// so the allocator treats call-clobbered registers as busy there.
func buildIntervals(fn *lir.Function, live map[*lir.Block]*blockLive) map[lir.RealReg]*lir.Interval {
	byVReg := make(map[lir.VRegID]*lir.Interval, len(fn.Intervals))
	for _, iv := range fn.Intervals {
		byVReg[iv.VReg.ID()] = iv
	}

	fixed := make(map[lir.RealReg]*lir.Interval)
	fixedIv := func(r lir.RealReg) *lir.Interval {
		if iv, ok := fixed[r]; ok {
			return iv
		}
		iv := &lir.Interval{Kind: lir.IntervalFixed, Assigned: r}
		fixed[r] = iv
		return iv
	}

	for bi := len(fn.Blocks) - 1; bi >= 0; bi-- {
		blk := fn.Blocks[bi]
		bl := live[blk]

		for vreg := range bl.out {
			if iv, ok := byVReg[vreg]; ok {
				iv.AddRange(blk.Start, blk.End+2)
			}
		}

		instrs := flattenReverse(blk)
		for _, instr := range instrs {
			if instr.HasCall {
				for _, r := range lir.AllocatableRegs {
					fixedIv(r).AddRange(instr.Id, instr.Id+1)
				}
			}
			if instr.Result.Interval != nil && instr.Result.Interval.Kind != lir.IntervalConstant {
				iv := instr.Result.Interval
				iv.AddRange(instr.Id, instr.Id+1)
				iv.Uses = append(iv.Uses, lir.UsePos{
					Pos:              instr.Id,
					RequiresRegister: instr.Result.Constraint != lir.ConstraintAny,
				})
				if instr.Result.Constraint == lir.ConstraintFixedRegister {
					fixedIv(instr.Result.Fixed).AddRange(instr.Id, instr.Id+1)
				}
			}
			for _, sc := range instr.Scratches {
				if sc.Interval != nil {
					sc.Interval.AddRange(instr.Id-1, instr.Id)
				}
			}
			for _, in := range instr.Inputs {
				if in.Interval == nil || in.Interval.Kind == lir.IntervalConstant {
					continue
				}
				if !in.Interval.Covers(instr.Id - 1) {
					in.Interval.AddRange(blk.Start, instr.Id)
				}
				in.Interval.Uses = append(in.Interval.Uses, lir.UsePos{
					Pos:              instr.Id,
					RequiresRegister: in.Constraint != lir.ConstraintAny,
				})
				if in.Constraint == lir.ConstraintFixedRegister {
					fixedIv(in.Fixed).AddRange(instr.Id, instr.Id+1)
				}
			}
		}
	}
	return fixed
}

// flattenReverse returns blk's instructions (label excluded) from tail
// to head.
func flattenReverse(blk *lir.Block) []*lir.Instruction {
	var all []*lir.Instruction
	for instr := blk.Instructions(); instr != nil; instr = instr.Next() {
		all = append(all, instr)
	}
	for i, j := 0, len(all)-1; i < j; i, j = i+1, j-1 {
		all[i], all[j] = all[j], all[i]
	}
	return all
}
