package hir

// env is the per-block SSA environment described by spec §3: a mapping
// from stack-slot index to the instruction currently defining that slot
// in this block, plus a parallel array recording which slot (if any) is
// bound to a not-yet-fully-wired phi in this block. One extra slot beyond
// the function's declared stack slots is reserved for logicSlot, the
// result of short-circuit boolean operators.
type env struct {
	defs []*Instruction
	phis []*Instruction
}

func newEnv(numSlots int) env {
	return env{defs: make([]*Instruction, numSlots), phis: make([]*Instruction, numSlots)}
}

func (e *env) get(slot int) *Instruction { return e.defs[slot] }

func (e *env) set(slot int, v *Instruction) { e.defs[slot] = v }

func (e *env) phiAt(slot int) *Instruction { return e.phis[slot] }

func (e *env) setPhi(slot int, phi *Instruction) { e.phis[slot] = phi }

// copyFrom overwrites e's slot definitions with a verbatim copy of other's,
// as happens on the first AddPredecessor call for a block (spec §4.1).
// Phi bindings are not copied: other's phis belong to the predecessor,
// and e records only phis of its own block.
func (e *env) copyFrom(other *env) {
	if len(e.defs) != len(other.defs) {
		panic("BUG: environment size mismatch")
	}
	copy(e.defs, other.defs)
	for i := range e.phis {
		e.phis[i] = nil
	}
}

// Block is a basic block of the HIR graph (spec §3). It has at most two
// predecessors and two successors, as guaranteed by the builder's control
// flow shapes (spec §4.1); GCM may reassign instructions between blocks
// but never changes this edge structure.
type Block struct {
	Id int

	Preds    [2]*Block
	PredCnt  int
	Succs    [2]*Block
	SuccCnt  int

	// Phis holds phi instructions, kept separate from the ordinary
	// instruction list until GCM schedules them alongside other
	// instructions (spec §3's Phi invariant).
	Phis []*Instruction

	instrHead, instrTail *Instruction
	terminator           *Instruction

	env env

	// LoopHeader marks a block seeded with a phi for every stack slot
	// (spec §4.1's MarkLoop).
	LoopHeader bool
	LoopDepth  int

	// Dominator tree data, populated by the dominators pass (spec §4.2).
	Dominator      *Block
	DominatorDepth int
	// Dominates serves as the Lengauer-Tarjan bucket during dominator
	// computation and is repurposed as the dominator-tree child list once
	// that pass completes.
	Dominates []*Block

	// ReachableFrom is a bitset over block ids: the set of blocks that can
	// reach this one, computed by the reachability pass (spec §4.4).
	ReachableFrom Bitset

	// dfsID/semi/ancestor/label/parent are Lengauer-Tarjan scratch state,
	// valid only while the dominators pass is running.
	dfsID    int
	semi     int
	ancestor *Block
	label    *Block
	ltParent *Block

	dead bool
}

// AllocateBasicBlock creates a new, detached Block.
func (b *Builder) AllocateBasicBlock() *Block {
	blk := b.blockPool.allocate()
	*blk = Block{Id: b.blockPool.allocated - 1, env: newEnv(b.numSlots)}
	return blk
}

// AddPredecessor wires pred as a predecessor of b and merges pred's
// environment into b's, following spec §4.1's two-call protocol:
// the first call copies pred's environment verbatim; the second merges
// slot-by-slot, synthesizing phis where the two predecessors disagree.
func (b *Builder) AddPredecessor(blk, pred *Block) {
	if blk.PredCnt >= 2 {
		panic("BUG: basic block cannot have more than two predecessors")
	}
	blk.Preds[blk.PredCnt] = pred
	blk.PredCnt++
	pred.addSuccessor(blk)

	switch blk.PredCnt {
	case 1:
		blk.env.copyFrom(&pred.env)
	case 2:
		for slot := 0; slot < len(blk.env.defs); slot++ {
			incoming := pred.env.get(slot)
			current := blk.env.get(slot)
			switch {
			case current == incoming:
				// Agrees already; nothing to do.
			case blk.env.phiAt(slot) != nil:
				phi := blk.env.phiAt(slot)
				phi.AddArg(incoming)
				phi.PhiPredCount++
			default:
				phi := b.newPhi(blk, slot)
				phi.AddArg(current)
				phi.AddArg(incoming)
				phi.PhiPredCount = 2
				blk.env.setPhi(slot, phi)
				blk.env.set(slot, phi)
			}
		}
	default:
		panic("BUG: AddPredecessor called more than twice for a block")
	}
}

func (blk *Block) addSuccessor(succ *Block) {
	if blk.SuccCnt >= 2 {
		panic("BUG: basic block cannot have more than two successors")
	}
	blk.Succs[blk.SuccCnt] = succ
	blk.SuccCnt++
}

// newPhi allocates a phi instruction, assigns it into slot, and appends it
// to the block's phi list (spec §3: phis live in the phi list, not the
// instruction list, until GCM).
func (b *Builder) newPhi(blk *Block, slot int) *Instruction {
	phi := b.instrPool.allocate()
	*phi = Instruction{Kind: KindPhi, Block: blk, HasResultSlt: true}
	phi.ResultSlot = b.slotOf(slot)
	blk.Phis = append(blk.Phis, phi)
	return phi
}

// Dead reports whether blk was found unreachable by ComputeDominators.
func (blk *Block) Dead() bool { return blk.dead }

// Terminated reports whether blk already has a control instruction.
func (blk *Block) Terminated() bool { return blk.terminator != nil }

// Terminator returns blk's control instruction, or nil if none has been
// appended yet.
func (blk *Block) Terminator() *Instruction { return blk.terminator }

// Append adds instr to the tail of blk's ordinary instruction list.
// Per spec §4.1, once a block is terminated, further appends are
// rejected; the builder is responsible for routing dead-region visits to
// synthesized Nil values instead of calling Append.
func (blk *Block) Append(instr *Instruction) {
	if blk.terminator != nil {
		panic("BUG: appending to a block that is already terminated: " + instr.Kind.String())
	}
	instr.Block = blk
	if blk.instrTail != nil {
		blk.instrTail.next = instr
		instr.prev = blk.instrTail
	} else {
		blk.instrHead = instr
	}
	blk.instrTail = instr
	if instr.Kind.isControl() {
		blk.terminator = instr
	}
}

// Remove unlinks instr from blk's instruction list (used by DCE, phi
// pruning, and GVN). instr must not be the terminator.
func (blk *Block) Remove(instr *Instruction) {
	if instr == blk.terminator {
		panic("BUG: cannot remove a block's terminator")
	}
	if instr.prev != nil {
		instr.prev.next = instr.next
	} else {
		blk.instrHead = instr.next
	}
	if instr.next != nil {
		instr.next.prev = instr.prev
	} else {
		blk.instrTail = instr.prev
	}
	instr.prev, instr.next = nil, nil
	instr.deleted = true
}

// RemovePhi removes phi from blk's phi list and marks it dead.
func (blk *Block) RemovePhi(phi *Instruction) {
	blk.detachPhi(phi)
	phi.deleted = true
}

// detachPhi splices phi out of blk's phi list without marking it dead,
// for callers that are about to repurpose the instruction (e.g. PrunePhis
// collapsing a zero-input phi into a live Nil) rather than discard it.
func (blk *Block) detachPhi(phi *Instruction) {
	for i, p := range blk.Phis {
		if p == phi {
			blk.Phis = append(blk.Phis[:i], blk.Phis[i+1:]...)
			return
		}
	}
}

// Instructions returns the head of blk's ordinary instruction list; walk
// it with Instruction.Next.
func (blk *Block) Instructions() *Instruction { return blk.instrHead }

// InstructionsTail returns the tail of blk's ordinary instruction list.
func (blk *Block) InstructionsTail() *Instruction { return blk.instrTail }

// PrependToHead inserts instr at the very front of blk's instruction
// list; used by GCM when relocating an instruction into blk.
func (blk *Block) PrependToHead(instr *Instruction) {
	instr.Block = blk
	instr.prev = nil
	instr.next = blk.instrHead
	if blk.instrHead != nil {
		blk.instrHead.prev = instr
	} else {
		blk.instrTail = instr
	}
	blk.instrHead = instr
}

// AppendToTailKeepingTerminator inserts instr just before blk's
// terminator (or at the tail if blk has none yet); used by GCM to place
// an ordinary instruction while keeping the control instruction last.
func (blk *Block) AppendToTailKeepingTerminator(instr *Instruction) {
	term := blk.terminator
	if term == nil {
		blk.Append(instr)
		return
	}
	instr.Block = blk
	instr.prev = term.prev
	instr.next = term
	if term.prev != nil {
		term.prev.next = instr
	} else {
		blk.instrHead = instr
	}
	term.prev = instr
}

// unlinkRaw removes instr from blk's list without the terminator check,
// for internal use by GCM when relocating (rather than deleting) an
// instruction.
func (blk *Block) unlinkRaw(instr *Instruction) {
	if instr.prev != nil {
		instr.prev.next = instr.next
	} else {
		blk.instrHead = instr.next
	}
	if instr.next != nil {
		instr.next.prev = instr.prev
	} else {
		blk.instrTail = instr.prev
	}
	if instr == blk.terminator {
		blk.terminator = nil
	}
	instr.prev, instr.next = nil, nil
}
