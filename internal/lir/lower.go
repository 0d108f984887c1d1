package lir

import (
	"fmt"

	"github.com/konteck/candor/internal/hir"
)

// fixedIntrinsic reports whether kind requires operands pinned to
// specific physical registers per the runtime calling convention, as
// opposed to an ordinary Any-class 1:1 translation (spec §4.8).
func fixedIntrinsic(k hir.Kind) bool {
	switch k {
	case hir.KindCall, hir.KindAlignStack, hir.KindEntry,
		hir.KindStoreArg, hir.KindStoreVarArg, hir.KindLoadVarArg:
		return true
	default:
		return false
	}
}

// Lower translates fn's optimized HIR graph into a flattened LIR
// Function, following spec §4.8. It must run after GCM has given every
// instruction its final block and the phi list its final shape.
func Lower(fn *hir.Function) *Function {
	l := &lowerState{
		values: make(map[*hir.Instruction]*Interval),
		blocks: make(map[*hir.Block]*Block),
		vregs:  &VRegBuilder{},
	}

	order := rpoFlatten(fn.Entry)
	out := &Function{Name: fn.Name}

	for _, hb := range order {
		lb := &Block{Id: hb.Id, LoopHeader: hb.LoopHeader, LoopDepth: hb.LoopDepth}
		l.blocks[hb] = lb
		out.Blocks = append(out.Blocks, lb)
	}
	for i, hb := range order {
		lb := l.blocks[hb]
		for p := 0; p < hb.PredCnt; p++ {
			if pb, ok := l.blocks[hb.Preds[p]]; ok {
				lb.Preds = append(lb.Preds, pb)
			}
		}
		for s := 0; s < hb.SuccCnt; s++ {
			if sb, ok := l.blocks[hb.Succs[s]]; ok {
				lb.Succs = append(lb.Succs, sb)
			}
		}
		_ = i
	}

	for _, hb := range order {
		l.lowerBlock(fn, hb, l.blocks[hb])
	}

	l.wirePhiMoves(order)

	assignIds(out)
	out.Intervals = l.allIntervals()
	return out
}

type lowerState struct {
	values map[*hir.Instruction]*Interval
	blocks map[*hir.Block]*Block
	vregs  *VRegBuilder
	ivs    []*Interval
}

func (l *lowerState) newInterval() *Interval {
	iv := &Interval{VReg: l.vregs.Alloc()}
	l.ivs = append(l.ivs, iv)
	return iv
}

func (l *lowerState) allIntervals() []*Interval { return l.ivs }

func (l *lowerState) operandOf(v *hir.Instruction) Operand {
	if v == nil {
		return Operand{}
	}
	if iv, ok := l.values[v]; ok {
		return AnyOperand(iv)
	}
	// A value with no recorded interval yet is a forward reference to a
	// phi not lowered in program order; allocate its interval eagerly.
	iv := l.newInterval()
	l.values[v] = iv
	return AnyOperand(iv)
}

func (l *lowerState) resultFor(v *hir.Instruction) Operand {
	if iv, ok := l.values[v]; ok {
		return AnyOperand(iv)
	}
	var iv *Interval
	if v.Kind == hir.KindLiteral {
		iv = &Interval{Kind: IntervalConstant, VReg: l.vregs.Alloc(), ConstantLiteral: LiteralValue{
			Number: v.Literal.Number,
			String: v.Literal.String,
			Bool:   v.Literal.Bool,
		}}
		l.ivs = append(l.ivs, iv)
	} else {
		iv = l.newInterval()
	}
	l.values[v] = iv
	return AnyOperand(iv)
}

// rpoFlatten visits blk in reverse-post-order, deferring a loop header
// until every one of its non-back-edge predecessors has been visited
// (spec §4.9).
func rpoFlatten(entry *hir.Block) []*hir.Block {
	visited := make(map[*hir.Block]bool)
	var order []*hir.Block
	var visit func(blk *hir.Block)
	visit = func(blk *hir.Block) {
		if blk == nil || blk.Dead() || visited[blk] {
			return
		}
		if !readyToVisit(blk, visited) {
			return
		}
		visited[blk] = true
		order = append(order, blk)
		for s := 0; s < blk.SuccCnt; s++ {
			visit(blk.Succs[s])
		}
	}
	visit(entry)
	// Second sweep: anything skipped because its forward predecessor
	// hadn't been visited yet (a loop body reached only through its
	// header) gets appended once the header has gone in.
	changed := true
	for changed {
		changed = false
		var retry []*hir.Block
		for _, blk := range order {
			for s := 0; s < blk.SuccCnt; s++ {
				succ := blk.Succs[s]
				if succ != nil && !succ.Dead() && !visited[succ] {
					retry = append(retry, succ)
				}
			}
		}
		for _, blk := range retry {
			if !visited[blk] {
				visited[blk] = true
				order = append(order, blk)
				changed = true
			}
		}
	}
	return order
}

// readyToVisit reports whether every predecessor of blk other than a
// back-edge (a predecessor that is blk itself, or that blk dominates) has
// already been visited.
func readyToVisit(blk *hir.Block, visited map[*hir.Block]bool) bool {
	for p := 0; p < blk.PredCnt; p++ {
		pred := blk.Preds[p]
		if pred == nil || pred.Dead() {
			continue
		}
		if hir.Dominates(blk, pred) {
			continue // back-edge
		}
		if !visited[pred] {
			return false
		}
	}
	return true
}

func (l *lowerState) lowerBlock(fn *hir.Function, hb *hir.Block, lb *Block) {
	label := &Instruction{Kind: KindLabel, Block: lb}
	lb.Label = label

	for _, phi := range hb.Phis {
		iv := l.newInterval()
		l.values[phi] = iv
		instr := &Instruction{Kind: KindPhi, Block: lb, Result: AnyOperand(iv)}
		lb.Append(instr)
	}

	term := hb.Terminator()
	for instr := hb.Instructions(); instr != nil; instr = instr.Next() {
		if instr == term || instr.IsPhi() {
			continue
		}
		l.lowerInstr(instr, lb)
	}

	switch {
	case term == nil:
		lb.Append(&Instruction{Kind: KindReturn})
	case term.Kind == hir.KindGoto:
		lb.Append(&Instruction{Kind: KindGoto, GotoTarget: l.blocks[term.Target()]})
	case term.Kind == hir.KindIf:
		cond := l.operandOf(term.Args[0])
		lb.Append(&Instruction{
			Kind:        KindBranch,
			Inputs:      []Operand{cond},
			BranchTrue:  l.blocks[term.IfTrue()],
			BranchElse:  l.blocks[term.IfFalse()],
		})
	case term.Kind == hir.KindReturn:
		var inputs []Operand
		if len(term.Args) > 0 {
			inputs = []Operand{l.operandOf(term.Args[0])}
		}
		lb.Append(&Instruction{Kind: KindReturn, Inputs: inputs})
	default:
		panic(fmt.Sprintf("BUG: unexpected HIR terminator kind %s", term.Kind))
	}
}

func (l *lowerState) lowerInstr(hi *hir.Instruction, lb *Block) {
	kind, ok := lirKindOf(hi.Kind)
	if !ok {
		panic(fmt.Sprintf("BUG: no LIR lowering for HIR kind %s", hi.Kind))
	}

	var inputs []Operand
	for _, a := range hi.Args {
		inputs = append(inputs, l.operandOf(a))
	}

	hasResult := hi.HasResultSlt || len(hi.Uses) > 0 || resultfulKind(hi.Kind)
	var result Operand
	if hasResult {
		result = l.resultFor(hi)
	}

	instr := &Instruction{
		Kind:      kind,
		Block:     lb,
		Inputs:    inputs,
		Result:    result,
		BinOp:     int(hi.BinOp),
		Index:     hi.Index,
		Depth:     hi.Depth,
		HasCall:   hi.Kind == hir.KindCall,
	}
	if hi.Kind == hir.KindLiteral {
		instr.Literal = LiteralValue{
			Number: hi.Literal.Number,
			String: hi.Literal.String,
			Bool:   hi.Literal.Bool,
		}
	}

	if fixedIntrinsic(hi.Kind) {
		pinFixedOperands(hi.Kind, instr)
	}

	if hi.SourcePos != 0 {
		instr.HIRBackPointer = &HIRSourceRef{Offset: hi.SourcePos}
	}

	lb.Append(instr)
}

// resultfulKind reports HIR kinds that always produce a usable value even
// when, after DCE, nothing in the optimized graph happens to read it
// (e.g. Call's return value, which the runtime always computes).
func resultfulKind(k hir.Kind) bool {
	switch k {
	case hir.KindCall, hir.KindAllocateObject, hir.KindAllocateArray:
		return true
	default:
		return false
	}
}

func lirKindOf(k hir.Kind) (Kind, bool) {
	switch k {
	case hir.KindNil:
		return KindNil, true
	case hir.KindLiteral:
		return KindLiteral, true
	case hir.KindLoadArg:
		return KindLoadArg, true
	case hir.KindLoadVarArg:
		return KindLoadVarArg, true
	case hir.KindStoreArg:
		return KindStoreArg, true
	case hir.KindStoreVarArg:
		return KindStoreVarArg, true
	case hir.KindLoadContext:
		return KindLoadContext, true
	case hir.KindStoreContext:
		return KindStoreContext, true
	case hir.KindLoadProperty:
		return KindLoadProperty, true
	case hir.KindStoreProperty:
		return KindStoreProperty, true
	case hir.KindDeleteProperty:
		return KindDeleteProperty, true
	case hir.KindAllocateObject:
		return KindAllocateObject, true
	case hir.KindAllocateArray:
		return KindAllocateArray, true
	case hir.KindFunction:
		return KindFunction, true
	case hir.KindCall:
		return KindCall, true
	case hir.KindAlignStack:
		return KindAlignStack, true
	case hir.KindBinOp:
		return KindBinOp, true
	case hir.KindNot:
		return KindNot, true
	case hir.KindTypeof:
		return KindTypeof, true
	case hir.KindSizeof:
		return KindSizeof, true
	case hir.KindKeysof:
		return KindKeysof, true
	case hir.KindClone:
		return KindClone, true
	case hir.KindCollectGarbage:
		return KindCollectGarbage, true
	case hir.KindGetStackTrace:
		return KindGetStackTrace, true
	case hir.KindEntry:
		return KindEntry, true
	default:
		return KindInvalid, false
	}
}

// pinFixedOperands applies the calling-convention register assignment to
// a fixed-register intrinsic's operands (spec §4.8) by recording a
// FixedRegister constraint on each one. No Move into or out of the pinned
// register is inserted, here or later: buildIntervals only reserves the
// register at the instruction, and the allocator does not consult Fixed
// when it chooses the operand interval's register.
func pinFixedOperands(k hir.Kind, instr *Instruction) {
	switch k {
	case hir.KindCall:
		if len(instr.Inputs) > 0 {
			instr.Inputs[0] = FixedOperand(instr.Inputs[0].Interval, CalleeReg)
		}
		if len(instr.Inputs) > 1 {
			instr.Inputs[1] = FixedOperand(instr.Inputs[1].Interval, ArgcReg)
		}
		if instr.Result.Interval != nil {
			instr.Result = FixedOperand(instr.Result.Interval, ResultReg)
		}
	case hir.KindAlignStack:
		if len(instr.Inputs) > 0 {
			instr.Inputs[0] = FixedOperand(instr.Inputs[0].Interval, ArgcReg)
		}
	case hir.KindStoreArg, hir.KindStoreVarArg:
		if len(instr.Inputs) > 0 {
			instr.Inputs[0] = FixedOperand(instr.Inputs[0].Interval, ReceiverReg)
		}
	case hir.KindLoadVarArg:
		if len(instr.Inputs) > 0 {
			instr.Inputs[0] = FixedOperand(instr.Inputs[0].Interval, ArgcReg)
		}
	case hir.KindEntry:
		// No operands; Entry exists purely to anchor parameter loads at
		// the top of the function.
	}
}

// wirePhiMoves inserts, at the tail of every predecessor block, a Move
// for each of its successor's phis copying the corresponding HIR input's
// interval into the phi's result interval (spec §4.8's out-of-SSA
// translation).
func (l *lowerState) wirePhiMoves(order []*hir.Block) {
	for _, hb := range order {
		for _, phi := range hb.Phis {
			liv := l.values[phi]
			for predIdx := 0; predIdx < hb.PredCnt; predIdx++ {
				pred := hb.Preds[predIdx]
				predLB, ok := l.blocks[pred]
				if !ok {
					continue
				}
				if predIdx >= len(phi.Args) {
					continue
				}
				srcIv := l.values[phi.Args[predIdx]]
				if srcIv == nil || srcIv == liv {
					continue
				}
				gap := findOrInsertGap(predLB)
				gap.GapMoves = append(gap.GapMoves, Move{
					From: AnyOperand(srcIv),
					To:   AnyOperand(liv),
				})
			}
		}
	}
}

// findOrInsertGap returns the Gap immediately before lb's terminator,
// creating it if this is the first phi move for this edge.
func findOrInsertGap(lb *Block) *Instruction {
	term := lb.Terminator()
	if term != nil && term.prev != nil && term.prev.Kind == KindGap {
		return term.prev
	}
	gap := &Instruction{Kind: KindGap}
	if term != nil {
		gap.Id = term.Id - 1
		lb.InsertBefore(term, gap)
	} else {
		lb.Append(gap)
	}
	return gap
}

// assignIds numbers every instruction with even integers in flattened
// block order, leaving odd positions free for gaps not yet materialized
// (spec §4.9), and records each block's [Start, End) id bounds.
func assignIds(fn *Function) {
	id := 0
	for _, blk := range fn.Blocks {
		blk.Start = id
		blk.Label.Id = id
		id += 2
		for instr := blk.Instructions(); instr != nil; instr = instr.Next() {
			if instr.Kind == KindGap {
				instr.Id = id - 1
				continue
			}
			instr.Id = id
			id += 2
		}
		blk.End = id
	}
}
