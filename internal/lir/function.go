package lir

// Function is the flattened LIR graph consumed by register allocation
// and, finally, by the assembler (spec §2, §6).
type Function struct {
	Name   string
	Blocks []*Block // reverse-post-order flattening, spec §4.9

	Intervals []*Interval

	// NextInstrId is the even-integer counter used while numbering;
	// retained for diagnostics after numbering completes.
	NextInstrId int
}
