package hir

// RunGCM schedules every non-pinned, non-phi instruction into the block
// that dominates all its uses with the lowest loop nesting, following
// Click's global code motion algorithm (spec §4.7). Pinned instructions
// (side-effecting ops, Entry, control) and phis never move; GCM's other
// job is folding the phi list into the front of each block's ordinary
// instruction list, since by this point every phi's inputs are final.
//
// Must run after ComputeDominators and RunDCE: scheduling needs the
// dominator tree, and moving dead instructions around would be wasted
// work.
func RunGCM(fn *Function) {
	g := &gcmState{
		early: make(map[*Instruction]*Block),
		late:  make(map[*Instruction]*Block),
	}

	var floating []*Instruction
	for _, blk := range fn.Blocks {
		if blk.dead {
			continue
		}
		for instr := blk.Instructions(); instr != nil; instr = instr.Next() {
			if !instr.Pinned && instr != blk.Terminator() {
				floating = append(floating, instr)
			}
		}
	}

	for _, instr := range floating {
		g.scheduleEarly(instr, fn.Entry)
	}
	for _, instr := range floating {
		g.scheduleLate(instr)
	}

	// Detach every floating instruction from its current block; it will
	// be re-appended to its final block below.
	byBlock := make(map[*Block][]*Instruction)
	for _, instr := range floating {
		instr.Block.unlinkRaw(instr)
		final := g.late[instr]
		if final == nil {
			final = g.early[instr]
		}
		byBlock[final] = append(byBlock[final], instr)
	}

	for _, blk := range fn.Blocks {
		if blk.dead {
			continue
		}
		for _, phi := range blk.Phis {
			blk.PrependToHead(phi)
		}
		placeTopological(blk, byBlock[blk])
	}
}

type gcmState struct {
	early map[*Instruction]*Block
	late  map[*Instruction]*Block

	visitingEarly map[*Instruction]bool
	visitingLate  map[*Instruction]bool
}

// scheduleEarly computes the shallowest block (by dominator depth) that
// still sits below every one of instr's Args, recursing into unpinned
// Args first so the whole dependency chain is resolved bottom-up.
func (g *gcmState) scheduleEarly(instr *Instruction, entry *Block) *Block {
	if b, ok := g.early[instr]; ok {
		return b
	}
	best := instr.Block
	if instr.Pinned || instr.IsPhi() {
		g.early[instr] = best
		return best
	}
	best = entry
	for _, arg := range instr.Args {
		if arg == nil {
			continue
		}
		var argBlock *Block
		if arg.Pinned || arg.IsPhi() {
			argBlock = arg.Block
		} else {
			argBlock = g.scheduleEarly(arg, entry)
		}
		if argBlock.DominatorDepth > best.DominatorDepth {
			best = argBlock
		}
	}
	g.early[instr] = best
	return best
}

// scheduleLate computes the LCA of every use's block, then walks from
// there up to instr's early block looking for the shallowest loop nest.
func (g *gcmState) scheduleLate(instr *Instruction) *Block {
	if b, ok := g.late[instr]; ok {
		return b
	}
	if instr.Pinned || instr.IsPhi() {
		g.late[instr] = instr.Block
		return instr.Block
	}
	g.late[instr] = instr.Block // break cycles conservatively

	merge := func(lca, useBlock *Block) *Block {
		if useBlock == nil {
			return lca
		}
		if lca == nil {
			return useBlock
		}
		return lcaOf(lca, useBlock)
	}

	var lca *Block
	for _, user := range instr.Uses {
		if user.IsPhi() {
			// A phi's "use" of instr is really a use by whichever
			// predecessor feeds that input (spec §4.7): the out-of-SSA
			// move lower.go's wirePhiMoves inserts lives at that
			// predecessor's gap, not inside the join block.
			for idx, arg := range user.Args {
				if arg != instr || idx >= user.Block.PredCnt {
					continue
				}
				lca = merge(lca, user.Block.Preds[idx])
			}
			continue
		}
		if user.Pinned {
			lca = merge(lca, user.Block)
			continue
		}
		lca = merge(lca, g.scheduleLate(user))
	}
	if lca == nil {
		lca = g.early[instr]
	}

	early := g.early[instr]
	best := lca
	for cur := lca; cur != nil; cur = cur.Dominator {
		if cur.LoopDepth < best.LoopDepth {
			best = cur
		}
		if cur == early {
			break
		}
	}
	g.late[instr] = best
	return best
}

// lcaOf returns the lowest common ancestor of a and b in the dominator
// tree.
func lcaOf(a, b *Block) *Block {
	for a.DominatorDepth > b.DominatorDepth {
		a = a.Dominator
	}
	for b.DominatorDepth > a.DominatorDepth {
		b = b.Dominator
	}
	for a != b {
		a = a.Dominator
		b = b.Dominator
	}
	return a
}

// placeTopological appends instrs to blk's instruction list, just before
// its terminator, in an order that respects same-block data dependencies.
func placeTopological(blk *Block, instrs []*Instruction) {
	if len(instrs) == 0 {
		return
	}
	want := make(map[*Instruction]bool, len(instrs))
	for _, i := range instrs {
		want[i] = true
	}
	placed := make(map[*Instruction]bool, len(instrs))
	var emit func(i *Instruction)
	emit = func(i *Instruction) {
		if placed[i] || !want[i] {
			return
		}
		placed[i] = true
		for _, arg := range i.Args {
			if arg != nil {
				emit(arg)
			}
		}
		blk.AppendToTailKeepingTerminator(i)
	}
	for _, i := range instrs {
		emit(i)
	}
}
