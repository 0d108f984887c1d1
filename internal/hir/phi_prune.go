package hir

// PrunePhis removes trivial phis: ones whose arguments, once self-
// references are discarded, all resolve to the same single value, plus
// the two edge cases spec §4.3's final step calls out explicitly: a phi
// with zero real inputs collapses to Nil rather than being left behind,
// and a phi with no remaining uses is simply dropped. Every use of a
// value-collapsed phi is rewired to that value and the phi is dropped
// from its block's phi list. The pass iterates to a fixpoint, since
// simplifying one phi can make another, which used it, trivial or
// unused in turn.
func PrunePhis(fn *Function) {
	for {
		changed := false
		for _, blk := range fn.Blocks {
			if blk.dead {
				continue
			}
			for _, phi := range blk.Phis {
				if phi.deleted {
					continue
				}
				if len(phi.Uses) == 0 {
					blk.RemovePhi(phi)
					changed = true
					continue
				}
				same, trivial := trivialValue(phi)
				if !trivial {
					continue
				}
				if same == nil {
					blk.detachPhi(phi)
					phi.Kind = KindNil
					phi.Args = nil
					phi.PhiPredCount = 0
					blk.PrependToHead(phi)
				} else {
					phi.ReplaceAllUsesWith(same)
					blk.RemovePhi(phi)
				}
				changed = true
			}
		}
		if !changed {
			return
		}
	}
}

// trivialValue reports the single non-self value phi's arguments agree
// on. ok is false only when two or more distinct non-self inputs
// disagree; when ok is true and value is nil, every input was either a
// self-reference or a still-undefined nil, meaning the phi has zero real
// inputs and should collapse to a concrete Nil value rather than a value
// copy.
func trivialValue(phi *Instruction) (value *Instruction, ok bool) {
	var same *Instruction
	hasInput := false
	for _, arg := range phi.Args {
		if arg == phi || arg == nil {
			continue
		}
		hasInput = true
		if same == nil {
			same = arg
			continue
		}
		if same != arg {
			return nil, false
		}
	}
	if !hasInput {
		return nil, true
	}
	return same, true
}
