package hir

// ComputeReachability fills in every live block's ReachableFrom bitset:
// the set of blocks (by Block.Id) that can reach it along some path from
// the entry (spec §4.4). No pass in this package reads ReachableFrom
// afterwards; GVN and GCM do not consult it.
func ComputeReachability(fn *Function) {
	n := len(fn.Blocks)
	for _, blk := range fn.Blocks {
		blk.ReachableFrom = newBitset(n)
	}
	changed := true
	for changed {
		changed = false
		for _, blk := range fn.Blocks {
			if blk.dead {
				continue
			}
			for p := 0; p < blk.PredCnt; p++ {
				pred := blk.Preds[p]
				if pred.dead {
					continue
				}
				if !blk.ReachableFrom.Has(pred.Id) {
					blk.ReachableFrom.Set(pred.Id)
					changed = true
				}
				if blk.ReachableFrom.Or(pred.ReachableFrom) {
					changed = true
				}
			}
		}
	}
}

// ComputeEffects threads a coarse effect chain through every block's
// side-effecting instructions (spec §4.4 and §4.9's open-question
// resolution: effects are tracked per-block rather than per-memory
// location, trading away some GVN/GCM precision for a pass simple enough
// to keep deterministic under arena reuse). EffectsOut of the last
// side-effecting instruction in a block becomes EffectsIn for the first
// side-effecting instruction of each successor; a block with two live
// predecessors merges both into a two-entry EffectsIn set.
func ComputeEffects(fn *Function) {
	exitEffect := make(map[*Block]*Instruction, len(fn.Blocks))

	var blocks []*Block
	for _, blk := range fn.Blocks {
		if !blk.dead {
			blocks = append(blocks, blk)
		}
	}

	for _, blk := range blocks {
		var in map[*Instruction]struct{}
		for p := 0; p < blk.PredCnt; p++ {
			pred := blk.Preds[p]
			if pred.dead {
				continue
			}
			if e := exitEffect[pred]; e != nil {
				if in == nil {
					in = make(map[*Instruction]struct{})
				}
				in[e] = struct{}{}
			}
		}

		last := (*Instruction)(nil)
		for instr := blk.Instructions(); instr != nil; instr = instr.Next() {
			if !instr.Kind.hasSideEffects() {
				continue
			}
			if last != nil {
				instr.EffectsIn = map[*Instruction]struct{}{last: {}}
			} else {
				instr.EffectsIn = in
			}
			instr.EffectsOut = map[*Instruction]struct{}{instr: {}}
			last = instr
		}
		if term := blk.Terminator(); term != nil && term.Kind.hasSideEffects() && last != term {
			if last != nil {
				term.EffectsIn = map[*Instruction]struct{}{last: {}}
			} else {
				term.EffectsIn = in
			}
			term.EffectsOut = map[*Instruction]struct{}{term: {}}
			last = term
		}
		if last != nil {
			exitEffect[blk] = last
		} else if len(in) == 1 {
			for e := range in {
				exitEffect[blk] = e
			}
		}
	}
}
