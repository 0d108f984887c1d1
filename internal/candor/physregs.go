package candor

import "github.com/konteck/candor/internal/lir"

// RealReg is re-exported at the package boundary as an alias of
// lir.RealReg, the parameter type of PhysicalRegisterName. The register
// constants themselves (CalleeReg, ResultReg, ...) are not re-exported.
type RealReg = lir.RealReg

// PhysicalRegisterName returns the emitter-facing name for r, matching
// the stub library's fixed-register convention (spec §6).
func PhysicalRegisterName(r RealReg) string {
	switch r {
	case lir.R0:
		return "r0"
	case lir.R1:
		return "r1"
	case lir.R2:
		return "r2"
	case lir.R3:
		return "r3"
	case lir.R4:
		return "r4"
	case lir.R5:
		return "r5"
	case lir.R6:
		return "r6"
	case lir.R7:
		return "r7"
	case lir.R8:
		return "r8"
	case lir.R9:
		return "r9"
	case lir.ContextReg:
		return "context_reg"
	case lir.RootReg:
		return "root_reg"
	default:
		return "invalid_reg"
	}
}

// AllocatableRegisterCount is the number of physical registers the
// allocator may assign into, excluding the two reserved for the runtime.
func AllocatableRegisterCount() int {
	return len(lir.AllocatableRegs)
}
