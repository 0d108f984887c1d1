package regalloc

import "github.com/konteck/candor/internal/lir"

// blockLive holds the per-block liveness sets used to seed interval
// construction (spec §4.9: "live_gen = inputs used before any local
// definition; live_kill = scratches + results").
type blockLive struct {
	gen, kill map[lir.VRegID]bool
	in, out   map[lir.VRegID]bool
}

// computeLiveness runs the classic backward fixpoint over fn's blocks,
// treating VReg identifiers as the liveness universe.
func computeLiveness(fn *lir.Function) map[*lir.Block]*blockLive {
	info := make(map[*lir.Block]*blockLive, len(fn.Blocks))
	for _, blk := range fn.Blocks {
		bl := &blockLive{
			gen:  make(map[lir.VRegID]bool),
			kill: make(map[lir.VRegID]bool),
			in:   make(map[lir.VRegID]bool),
			out:  make(map[lir.VRegID]bool),
		}
		for instr := blk.Instructions(); instr != nil; instr = instr.Next() {
			for _, in := range instr.Inputs {
				if in.Interval != nil && in.Interval.Kind != lir.IntervalConstant && !bl.kill[in.Interval.VReg.ID()] {
					bl.gen[in.Interval.VReg.ID()] = true
				}
			}
			if instr.Result.Interval != nil && instr.Result.Interval.Kind != lir.IntervalConstant {
				bl.kill[instr.Result.Interval.VReg.ID()] = true
			}
			for _, sc := range instr.Scratches {
				if sc.Interval != nil {
					bl.kill[sc.Interval.VReg.ID()] = true
				}
			}
		}
		info[blk] = bl
	}

	changed := true
	for changed {
		changed = false
		for _, blk := range fn.Blocks {
			bl := info[blk]
			newOut := make(map[lir.VRegID]bool)
			for _, succ := range blk.Succs {
				for v := range info[succ].in {
					newOut[v] = true
				}
			}
			newIn := make(map[lir.VRegID]bool)
			for v := range bl.gen {
				newIn[v] = true
			}
			for v := range newOut {
				if !bl.kill[v] {
					newIn[v] = true
				}
			}
			if !setsEqual(newIn, bl.in) || !setsEqual(newOut, bl.out) {
				bl.in, bl.out = newIn, newOut
				changed = true
			}
		}
	}
	return info
}

func setsEqual(a, b map[lir.VRegID]bool) bool {
	if len(a) != len(b) {
		return false
	}
	for k := range a {
		if !b[k] {
			return false
		}
	}
	return true
}
