package regalloc

import (
	"math"
	"sort"

	"github.com/konteck/candor/internal/lir"
)

// allocator is the linear-scan state described by spec §4.9.
type allocator struct {
	unhandled []*lir.Interval
	active    []*lir.Interval
	inactive  []*lir.Interval
	handled   []*lir.Interval

	fixed map[lir.RealReg]*lir.Interval

	spillFreeList []int
	nextSpillSlot int
}

// Allocate assigns a physical register or spill slot to every virtual
// interval in fn, splitting and rematerializing constants as needed
// (spec §4.9, §4.10). It is the entry point register allocation exposes
// to the compiler driver.
func Allocate(fn *lir.Function) {
	rematerializeConstants(fn)

	live := computeLiveness(fn)
	fixed := buildIntervals(fn, live)

	a := &allocator{fixed: fixed, nextSpillSlot: 1} // slot 0 reserved for argc

	for _, iv := range fn.Intervals {
		if iv.Kind == lir.IntervalConstant {
			continue // rematerialized at each use, never linear-scanned
		}
		if len(iv.Ranges) == 0 {
			continue // dead value, eliminated upstream but still listed
		}
		a.unhandled = append(a.unhandled, iv)
	}
	sort.SliceStable(a.unhandled, func(i, j int) bool {
		return a.unhandled[i].Start() < a.unhandled[j].Start()
	})

	for len(a.unhandled) > 0 {
		current := a.unhandled[0]
		a.unhandled = a.unhandled[1:]
		pos := current.Start()

		var stillActive []*lir.Interval
		for _, iv := range a.active {
			switch {
			case iv.End() <= pos:
				a.handled = append(a.handled, iv)
			case !iv.Covers(pos):
				a.inactive = append(a.inactive, iv)
			default:
				stillActive = append(stillActive, iv)
			}
		}
		a.active = stillActive

		var stillInactive []*lir.Interval
		for _, iv := range a.inactive {
			switch {
			case iv.End() <= pos:
				a.handled = append(a.handled, iv)
			case iv.Covers(pos):
				a.active = append(a.active, iv)
			default:
				stillInactive = append(stillInactive, iv)
			}
		}
		a.inactive = stillInactive

		if !a.tryAllocateFreeReg(current, pos) {
			a.allocateBlockedReg(current, pos)
		}
	}

	a.assignSpillSlots(append(append([]*lir.Interval{}, a.active...), a.handled...))
	resolve(fn, live)
}

// tryAllocateFreeReg implements spec §4.9's TryAllocateFreeReg.
func (a *allocator) tryAllocateFreeReg(current *lir.Interval, pos int) bool {
	freePos := make(map[lir.RealReg]int, len(lir.AllocatableRegs))
	for _, r := range lir.AllocatableRegs {
		freePos[r] = math.MaxInt32
	}
	for _, iv := range a.active {
		freePos[iv.Assigned] = 0
	}
	for _, iv := range a.inactive {
		if p := iv.FirstIntersection(current, pos); p >= 0 {
			if p < freePos[iv.Assigned] {
				freePos[iv.Assigned] = p
			}
		}
	}
	for r, fiv := range a.fixed {
		if p := fiv.FirstIntersection(current, pos); p >= 0 {
			if p < freePos[r] {
				freePos[r] = p
			}
		}
	}

	best := lir.RealRegInvalid
	bestPos := -1
	for _, r := range lir.AllocatableRegs {
		if freePos[r] > bestPos {
			bestPos = freePos[r]
			best = r
		}
	}
	if bestPos == 0 {
		return false
	}

	if bestPos >= current.End() {
		current.Assigned = best
		a.active = append(a.active, current)
		return true
	}

	// The register frees up before current ends: split there and
	// re-queue the tail, biased to the preceding odd gap slot (spec
	// §4.9: "biased to the preceding odd slot to land in a gap").
	splitPos := biasToGap(bestPos)
	child := current.SplitAt(splitPos)
	current.Assigned = best
	a.active = append(a.active, current)
	a.insertUnhandled(child)
	return true
}

// allocateBlockedReg implements spec §4.9's AllocateBlockedReg.
func (a *allocator) allocateBlockedReg(current *lir.Interval, pos int) {
	usePos := make(map[lir.RealReg]int, len(lir.AllocatableRegs))
	blockPos := make(map[lir.RealReg]int, len(lir.AllocatableRegs))
	for _, r := range lir.AllocatableRegs {
		usePos[r] = math.MaxInt32
		blockPos[r] = math.MaxInt32
	}
	for _, iv := range a.active {
		if n := iv.NextUseAfter(pos); n >= 0 {
			usePos[iv.Assigned] = n
		} else {
			usePos[iv.Assigned] = math.MaxInt32
		}
	}
	for _, iv := range a.inactive {
		if p := iv.FirstIntersection(current, pos); p >= 0 {
			if p < usePos[iv.Assigned] {
				usePos[iv.Assigned] = p
			}
		}
	}
	for r, fiv := range a.fixed {
		if p := fiv.FirstIntersection(current, pos); p >= 0 {
			if p < blockPos[r] {
				blockPos[r] = p
			}
			if p < usePos[r] {
				usePos[r] = p
			}
		}
	}

	maxReg := lir.RealRegInvalid
	maxUse := -1
	for _, r := range lir.AllocatableRegs {
		if usePos[r] > maxUse {
			maxUse = usePos[r]
			maxReg = r
		}
	}

	firstRegUse := current.NextUseAfter(pos)
	if firstRegUse < 0 {
		firstRegUse = current.Start()
	}
	if maxUse < firstRegUse {
		a.spill(current)
		return
	}

	for _, iv := range a.active {
		if iv.Assigned == maxReg {
			child := iv.SplitAt(pos)
			a.spill(child)
			break
		}
	}
	var keptInactive []*lir.Interval
	for _, iv := range a.inactive {
		if iv.Assigned == maxReg {
			if p := iv.FirstIntersection(current, pos); p >= 0 {
				child := iv.SplitAt(p)
				a.spill(child)
				continue
			}
		}
		keptInactive = append(keptInactive, iv)
	}
	a.inactive = keptInactive

	if blockPos[maxReg] < current.End() {
		splitPos := biasToGap(blockPos[maxReg])
		child := current.SplitAt(splitPos)
		a.insertUnhandled(child)
	}
	current.Assigned = maxReg
	a.active = append(a.active, current)
}

func (a *allocator) spill(iv *lir.Interval) {
	iv.Spilled = true
	iv.Assigned = lir.RealRegInvalid
	a.handled = append(a.handled, iv)
}

func (a *allocator) insertUnhandled(iv *lir.Interval) {
	start := iv.Start()
	idx := sort.Search(len(a.unhandled), func(i int) bool {
		return a.unhandled[i].Start() >= start
	})
	a.unhandled = append(a.unhandled, nil)
	copy(a.unhandled[idx+1:], a.unhandled[idx:])
	a.unhandled[idx] = iv
}

// biasToGap rounds pos down to the nearest odd position, landing the
// split (and its move) in an existing Gap slot rather than between two
// even instruction ids (spec §4.9).
func biasToGap(pos int) int {
	if pos%2 == 0 {
		return pos - 1
	}
	return pos
}
