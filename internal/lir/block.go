package lir

// Block is a flattened LIR basic block: a Label, a run of ordinary
// instructions, and exactly one control instruction at the tail (spec
// §4.8).
type Block struct {
	Id int

	Label *Instruction

	Preds []*Block
	Succs []*Block

	LoopHeader bool
	LoopDepth  int

	Start, End int // instruction id bounds, set once ids are assigned

	head, tail *Instruction
}

// Append adds instr to the tail of blk's instruction list.
func (blk *Block) Append(instr *Instruction) {
	instr.Block = blk
	if blk.tail != nil {
		blk.tail.next = instr
		instr.prev = blk.tail
	} else {
		blk.head = instr
	}
	blk.tail = instr
}

// InsertBefore splices instr immediately before mark in blk's list; used
// to place a Gap move just ahead of the instruction it serves.
func (blk *Block) InsertBefore(mark, instr *Instruction) {
	instr.Block = blk
	instr.prev = mark.prev
	instr.next = mark
	if mark.prev != nil {
		mark.prev.next = instr
	} else {
		blk.head = instr
	}
	mark.prev = instr
}

// Remove unlinks instr from blk's list.
func (blk *Block) Remove(instr *Instruction) {
	if instr.prev != nil {
		instr.prev.next = instr.next
	} else {
		blk.head = instr.next
	}
	if instr.next != nil {
		instr.next.prev = instr.prev
	} else {
		blk.tail = instr.prev
	}
	instr.prev, instr.next = nil, nil
}

// Instructions returns the head of blk's instruction list, not including
// Label.
func (blk *Block) Instructions() *Instruction { return blk.head }

// Terminator returns blk's control instruction.
func (blk *Block) Terminator() *Instruction {
	if blk.tail != nil && blk.tail.IsControl() {
		return blk.tail
	}
	return nil
}
