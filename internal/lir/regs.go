package lir

// The ten general-purpose registers available to the allocator, plus the
// two registers the runtime reserves for itself and which must never
// appear in the allocator's register file (spec §6).
const (
	R0 RealReg = iota + 1
	R1
	R2
	R3
	R4
	R5
	R6
	R7
	R8
	R9

	ContextReg // context_reg
	RootReg    // root_reg
)

// AllocatableRegs is the physical register file the allocator is allowed
// to assign into.
var AllocatableRegs = []RealReg{R0, R1, R2, R3, R4, R5, R6, R7, R8, R9}

// Fixed-register conventions for the stub library's intrinsics (spec §6:
// "the stub library uses specific registers for return values, the
// argument count, and the receiver"). The exact assignment is internal to
// this compiler, not observable outside the emitter contract.
const (
	ArgcReg    = R0
	ReceiverReg = R1
	CalleeReg  = R2
	ResultReg  = R0
)

// PointerSize is fixed at 8 bytes (spec §6's spill frame layout).
const PointerSize = 8

// SpillSlotOffset returns the frame offset of spill slot k. Slot 0 is
// reserved for argc.
func SpillSlotOffset(frameBase, k int) int {
	return frameBase - PointerSize*(k+1)
}
