package hir

import (
	"fmt"

	"github.com/konteck/candor/internal/candorast"
)

// Builder lowers a candorast.Node tree into an SSA HIR Function, per spec
// §4.1. It is single-use: call New, drive it with Build, and discard it.
type Builder struct {
	instrPool pool[Instruction]
	blockPool pool[Block]

	numSlots  int
	logicSlot int

	current *Block
	blocks  []*Block

	loopStack []*loopFrame

	logger Logger
}

type loopFrame struct {
	breakTarget    *Block
	continueTarget *Block
}

// New creates a Builder for a function whose parser-assigned stack-slot
// count is stackSlots. logger may be nil, in which case diagnostics are
// discarded.
func New(stackSlots int, logger Logger) *Builder {
	if logger == nil {
		logger = NopLogger
	}
	b := &Builder{
		instrPool: newPool[Instruction](),
		blockPool: newPool[Block](),
		numSlots:  stackSlots + 1,
		logicSlot: stackSlots,
		logger:    logger,
	}
	return b
}

// Build lowers root (a Block-kind node, the function body) into a
// Function. paramCount and hasVarArg describe the function's own
// signature, used to build its prologue.
func (b *Builder) Build(name string, root *candorast.Node, paramCount int, hasVarArg bool) *Function {
	entry := b.AllocateBasicBlock()
	b.blocks = append(b.blocks, entry)
	b.SetCurrentBlock(entry)

	b.newInstr(KindEntry, true)

	for i := 0; i < paramCount; i++ {
		v := b.newInstr(KindLoadArg, false)
		v.Index = i
		b.assign(i, v)
	}
	if hasVarArg {
		b.buildVarArgPrologue(paramCount)
	}

	b.visitStmt(root)

	if !b.current.Terminated() {
		b.newInstr(KindReturn, true)
	}

	return &Function{
		Name:       name,
		NumSlots:   b.numSlots,
		LogicSlot:  b.logicSlot,
		ParamCount: paramCount,
		HasVarArg:  hasVarArg,
		Entry:      entry,
		Blocks:     b.blocks,
	}
}

// buildVarArgPrologue synthesizes the excess-argument collection
// described in spec §4.1 and SPEC_FULL.md §C.4: an array is allocated,
// and the arguments beyond paramCount are copied into it by index.
func (b *Builder) buildVarArgPrologue(paramCount int) {
	arr := b.newInstr(KindAllocateArray, true)
	argc := b.newInstr(KindLoadArg, false)
	argc.Index = argIndexArgc
	excess := b.emitBinOp(candorast.OpSub, argc, b.emitLiteralInt(float64(paramCount)))
	load := b.newInstr(KindLoadVarArg, true, excess)
	load.Index = paramCount
	load.AddArg(arr)
	b.assign(b.varArgSlot(), arr)
}

// argIndexArgc is the sentinel LoadArg index denoting "the call's actual
// argument count", as opposed to a concrete positional argument.
const argIndexArgc = -1

// varArgSlot is the reserved stack slot that a variadic function's
// collected excess-argument array is bound to. The parser places it
// immediately after the declared positional parameters; the builder does
// not otherwise need to know its exact value beyond paramCount.
func (b *Builder) varArgSlot() int {
	// The last ordinary stack slot before the reserved logic slot.
	return b.numSlots - 2
}

// allocateBasicBlockTracked allocates a block via AllocateBasicBlock and
// records it in the builder's block list; tests use it to construct HIR
// by hand.
func (b *Builder) allocateBasicBlockTracked() *Block {
	blk := b.AllocateBasicBlock()
	b.blocks = append(b.blocks, blk)
	return blk
}

// SetCurrentBlock points the insertion cursor at blk.
func (b *Builder) SetCurrentBlock(blk *Block) { b.current = blk }

// CurrentBlock returns the insertion cursor.
func (b *Builder) CurrentBlock() *Block { return b.current }

func (b *Builder) slotOf(slot int) candorast.ScopeSlot {
	return candorast.ScopeSlot{Kind: candorast.SlotStack, Index: slot}
}

// assign records instr as the current SSA value of slot in the current
// block's environment, per spec §4.1's Assign(slot, instr).
func (b *Builder) assign(slot int, instr *Instruction) {
	b.current.env.set(slot, instr)
	if instr != nil && !instr.HasResultSlt {
		instr.HasResultSlt = true
		instr.ResultSlot = b.slotOf(slot)
	}
}

// read resolves slot against the current block's environment (spec §4.1).
// It never creates a phi: merges are already in the environment, placed
// there by AddPredecessor and the loop-header marking.
func (b *Builder) read(slot int) *Instruction {
	if v := b.current.env.get(slot); v != nil {
		return v
	}
	// The slot has no local definition yet and no predecessor has
	// contributed one either (e.g. the function entry block, reading an
	// undeclared variable) -- spec treats this as a well-defined nil.
	v := b.newInstrDetachedNil()
	b.assign(slot, v)
	return v
}

func (b *Builder) newInstrDetachedNil() *Instruction {
	n := b.instrPool.allocate()
	*n = Instruction{Kind: KindNil}
	return b.insert(n)
}

// insert appends instr to the current block unless that block is already
// terminated, in which case spec §4.1/§4.7's dead-code rule applies: a
// fresh, unattached Nil is returned instead and instr is discarded.
func (b *Builder) insert(instr *Instruction) *Instruction {
	if b.current.Terminated() {
		n := b.instrPool.allocate()
		*n = Instruction{Kind: KindNil}
		return n
	}
	b.current.Append(instr)
	return instr
}

// newInstr allocates and inserts an instruction of the given kind with
// the given arguments.
func (b *Builder) newInstr(kind Kind, pinned bool, args ...*Instruction) *Instruction {
	instr := b.instrPool.allocate()
	*instr = Instruction{Kind: kind, Pinned: pinned}
	for _, a := range args {
		instr.AddArg(a)
	}
	return b.insert(instr)
}

func (b *Builder) emitLiteralInt(v float64) *Instruction {
	instr := b.instrPool.allocate()
	*instr = Instruction{Kind: KindLiteral, Literal: candorast.Lit{Kind: candorast.LitNumber, Number: v}}
	return b.insert(instr)
}

func (b *Builder) emitBinOp(op candorast.Op, lhs, rhs *Instruction) *Instruction {
	instr := b.newInstr(KindBinOp, false, lhs, rhs)
	instr.BinOp = op
	return instr
}

func (b *Builder) newGoto(target *Block) *Instruction {
	instr := b.instrPool.allocate()
	*instr = Instruction{Kind: KindGoto, Pinned: true}
	instr.gotoTarget = target
	return instr
}

func (b *Builder) newIf(cond *Instruction, t, f *Block) *Instruction {
	instr := b.instrPool.allocate()
	*instr = Instruction{Kind: KindIf, Pinned: true}
	instr.AddArg(cond)
	instr.ifTrue, instr.ifFalse = t, f
	return instr
}

// join creates a fresh block and wires every non-terminated block in
// order as its predecessor (spec §4.1's If-shape Join, and the
// short-circuit desugaring's diamond join). A block that already ended in
// a terminator (return/break/continue) is skipped. If every input ended,
// there is nothing live to join, and the caller is left in dead code: a
// fresh detached block is returned so AST traversal can keep going
// without mutating anything real (spec §4.1's failure model).
func (b *Builder) join(blocks ...*Block) *Block {
	var live []*Block
	for _, blk := range blocks {
		if blk != nil && !blk.Terminated() {
			live = append(live, blk)
		}
	}
	if len(live) == 0 {
		return b.allocateBasicBlockTracked()
	}
	joinBlk := b.allocateBasicBlockTracked()
	for _, blk := range live {
		blk.Append(b.newGoto(joinBlk))
		b.AddPredecessor(joinBlk, blk)
	}
	return joinBlk
}

// ---- statement visitors ----

func (b *Builder) visitStmt(n *candorast.Node) {
	if n == nil {
		return
	}
	switch n.Kind {
	case candorast.Block:
		for _, c := range n.Children {
			b.visitStmt(c)
		}
	case candorast.Return:
		var v *Instruction
		if len(n.Children) > 0 {
			v = b.visitExpr(n.Children[0])
		}
		ret := b.newInstr(KindReturn, true)
		if v != nil {
			ret.AddArg(v)
		}
	case candorast.If:
		b.visitIf(n)
	case candorast.While:
		b.visitWhile(n)
	case candorast.Break:
		b.visitBreak()
	case candorast.Continue:
		b.visitContinue()
	case candorast.Assign:
		v := b.visitExpr(n.Children[0])
		b.writeSlot(n.Slot, v)
	case candorast.Delete:
		base := b.visitExpr(n.Children[0])
		key := b.visitExpr(n.Children[1])
		b.newInstr(KindDeleteProperty, true, base, key)
	default:
		// Expression statement: evaluate for effect, discard result.
		b.visitExpr(n)
	}
}

func (b *Builder) visitIf(n *candorast.Node) {
	cond := b.visitExpr(n.Children[0])
	condBlk := b.current

	thenBlk := b.allocateBasicBlockTracked()
	elseBlk := b.allocateBasicBlockTracked()
	condBlk.Append(b.newIf(cond, thenBlk, elseBlk))
	b.AddPredecessor(thenBlk, condBlk)
	b.AddPredecessor(elseBlk, condBlk)

	b.SetCurrentBlock(thenBlk)
	b.visitStmt(n.Children[1])
	thenExit := b.current

	b.SetCurrentBlock(elseBlk)
	if len(n.Children) > 2 {
		b.visitStmt(n.Children[2])
	}
	elseExit := b.current

	joined := b.join(thenExit, elseExit)
	b.SetCurrentBlock(joined)
}

func (b *Builder) visitWhile(n *candorast.Node) {
	preLoop := b.current
	b.markPreLoop(preLoop)

	header := b.allocateBasicBlockTracked()
	b.AddPredecessor(header, preLoop)
	b.markLoop(header)
	preLoop.Append(b.newGoto(header))

	body := b.allocateBasicBlockTracked()
	backEdge := b.allocateBasicBlockTracked()
	exit := b.allocateBasicBlockTracked()

	b.loopStack = append(b.loopStack, &loopFrame{breakTarget: exit, continueTarget: backEdge})

	b.SetCurrentBlock(header)
	cond := b.visitExpr(n.Children[0])
	condEnd := b.current
	condEnd.Append(b.newIf(cond, body, exit))
	b.AddPredecessor(body, condEnd)
	b.AddPredecessor(exit, condEnd)

	b.SetCurrentBlock(body)
	b.visitStmt(n.Children[1])
	if bodyExit := b.current; !bodyExit.Terminated() {
		bodyExit.Append(b.newGoto(backEdge))
		b.AddPredecessor(backEdge, bodyExit)
	}

	b.loopStack = b.loopStack[:len(b.loopStack)-1]

	if !backEdge.Terminated() {
		backEdge.Append(b.newGoto(header))
	}
	b.AddPredecessor(header, backEdge)

	b.SetCurrentBlock(exit)
}

// markPreLoop assigns Nil to every slot not yet defined in preLoop, so
// that the loop header's unconditionally-seeded phis always have a
// well-defined value from the pre-loop edge (spec §4.1).
func (b *Builder) markPreLoop(preLoop *Block) {
	saved := b.current
	b.current = preLoop
	for slot := 0; slot < b.numSlots; slot++ {
		if preLoop.env.get(slot) == nil {
			nilInstr := b.newInstr(KindNil, false)
			b.assign(slot, nilInstr)
		}
	}
	b.current = saved
}

// markLoop seeds header with a phi for every stack slot, each currently
// holding one pending input (the value visible on entry to the loop). The
// second input is wired in when the back-edge block is later joined via
// AddPredecessor (spec §4.1, §4.2).
func (b *Builder) markLoop(header *Block) {
	header.LoopHeader = true
	for slot := 0; slot < b.numSlots; slot++ {
		cur := header.env.get(slot)
		phi := b.newPhi(header, slot)
		phi.AddArg(cur)
		phi.PhiPredCount = 1
		header.env.setPhi(slot, phi)
		header.env.set(slot, phi)
	}
}

func (b *Builder) visitBreak() {
	if len(b.loopStack) == 0 {
		panic("BUG: break outside of loop")
	}
	top := b.loopStack[len(b.loopStack)-1]
	b.current.Append(b.newGoto(top.breakTarget))
	b.AddPredecessor(top.breakTarget, b.current)
}

func (b *Builder) visitContinue() {
	if len(b.loopStack) == 0 {
		panic("BUG: continue outside of loop")
	}
	top := b.loopStack[len(b.loopStack)-1]
	b.current.Append(b.newGoto(top.continueTarget))
	b.AddPredecessor(top.continueTarget, b.current)
}

// ---- expression visitors ----

func (b *Builder) visitExpr(n *candorast.Node) *Instruction {
	switch n.Kind {
	case candorast.Nil:
		return b.newInstr(KindNil, false)
	case candorast.Literal:
		instr := b.newInstr(KindLiteral, false)
		instr.Literal = n.Lit
		return instr
	case candorast.Name:
		return b.readSlot(n.Slot)
	case candorast.Assign:
		v := b.visitExpr(n.Children[0])
		b.writeSlot(n.Slot, v)
		return v
	case candorast.ObjectLiteral:
		obj := b.newInstr(KindAllocateObject, true)
		for i := 0; i+1 < len(n.Children); i += 2 {
			key := b.visitExpr(n.Children[i])
			val := b.visitExpr(n.Children[i+1])
			b.newInstr(KindStoreProperty, true, obj, key, val)
		}
		return obj
	case candorast.ArrayLiteral:
		arr := b.newInstr(KindAllocateArray, true)
		for i, c := range n.Children {
			val := b.visitExpr(c)
			key := b.emitLiteralInt(float64(i))
			b.newInstr(KindStoreProperty, true, arr, key, val)
		}
		return arr
	case candorast.Member:
		base := b.visitExpr(n.Children[0])
		key := b.visitExpr(n.Children[1])
		return b.newInstr(KindLoadProperty, false, base, key)
	case candorast.Delete:
		base := b.visitExpr(n.Children[0])
		key := b.visitExpr(n.Children[1])
		b.newInstr(KindDeleteProperty, true, base, key)
		return b.newInstr(KindNil, false)
	case candorast.Call:
		return b.visitCall(n)
	case candorast.Function:
		instr := b.newInstr(KindFunction, false)
		instr.FuncNode = n
		return instr
	case candorast.UnaryOp:
		return b.visitUnaryOp(n)
	case candorast.BinOp:
		lhs := b.visitExpr(n.Children[0])
		rhs := b.visitExpr(n.Children[1])
		return b.emitBinOp(n.Op, lhs, rhs)
	case candorast.LogicAnd:
		return b.visitLogicAnd(n)
	case candorast.LogicOr:
		return b.visitLogicOr(n)
	case candorast.CollectGarbage:
		return b.newInstr(KindCollectGarbage, true)
	case candorast.GetStackTrace:
		return b.newInstr(KindGetStackTrace, true)
	default:
		panic(fmt.Sprintf("BUG: unsupported AST node kind %d", n.Kind))
	}
}

func (b *Builder) readSlot(slot candorast.ScopeSlot) *Instruction {
	switch slot.Kind {
	case candorast.SlotStack:
		return b.read(slot.Index)
	case candorast.SlotContext:
		// Walk `depth` context links before loading the final slot, per
		// SPEC_FULL.md §C.4. Each link is its own HIR instruction so GVN
		// can share repeated walks to the same depth within a block.
		ctx := b.newInstr(KindLoadContext, false)
		ctx.Depth = 0
		for d := 1; d < slot.Depth; d++ {
			ctx = b.newInstr(KindLoadContext, false, ctx)
			ctx.Depth = d
		}
		load := b.newInstr(KindLoadContext, false, ctx)
		load.Depth = slot.Depth
		load.Index = slot.Index
		return load
	default:
		panic("BUG: invalid ScopeSlot kind")
	}
}

// writeSlot is readSlot's symmetric store path: a stack slot goes through
// the usual env.set, while a context slot walks the same `depth` chain of
// links readSlot does and ends in a StoreContext rather than a
// StoreContext-free env write (SPEC_FULL.md §C.4).
func (b *Builder) writeSlot(slot candorast.ScopeSlot, v *Instruction) {
	switch slot.Kind {
	case candorast.SlotStack:
		b.assign(slot.Index, v)
	case candorast.SlotContext:
		ctx := b.newInstr(KindLoadContext, false)
		ctx.Depth = 0
		for d := 1; d < slot.Depth; d++ {
			ctx = b.newInstr(KindLoadContext, false, ctx)
			ctx.Depth = d
		}
		store := b.newInstr(KindStoreContext, true, ctx, v)
		store.Depth = slot.Depth
		store.Index = slot.Index
	default:
		panic("BUG: invalid ScopeSlot kind")
	}
}

func (b *Builder) visitUnaryOp(n *candorast.Node) *Instruction {
	v := b.visitExpr(n.Children[0])
	switch n.Op {
	case candorast.OpNot:
		return b.newInstr(KindNot, false, v)
	case candorast.OpTypeof:
		return b.newInstr(KindTypeof, false, v)
	case candorast.OpSizeof:
		return b.newInstr(KindSizeof, false, v)
	case candorast.OpKeysof:
		return b.newInstr(KindKeysof, false, v)
	case candorast.OpClone:
		return b.newInstr(KindClone, true, v)
	default:
		panic("BUG: unsupported unary op")
	}
}

func (b *Builder) visitLogicAnd(n *candorast.Node) *Instruction {
	lv := b.visitExpr(n.Children[0])
	condBlk := b.current

	rightBlk := b.allocateBasicBlockTracked()
	skipBlk := b.allocateBasicBlockTracked()
	condBlk.Append(b.newIf(lv, rightBlk, skipBlk))
	b.AddPredecessor(rightBlk, condBlk)
	b.AddPredecessor(skipBlk, condBlk)

	b.SetCurrentBlock(skipBlk)
	b.assign(b.logicSlot, lv)

	b.SetCurrentBlock(rightBlk)
	rv := b.visitExpr(n.Children[1])
	rightEnd := b.current
	b.assign(b.logicSlot, rv)

	joined := b.join(skipBlk, rightEnd)
	b.SetCurrentBlock(joined)
	return joined.env.get(b.logicSlot)
}

func (b *Builder) visitLogicOr(n *candorast.Node) *Instruction {
	lv := b.visitExpr(n.Children[0])
	condBlk := b.current

	skipBlk := b.allocateBasicBlockTracked()
	rightBlk := b.allocateBasicBlockTracked()
	condBlk.Append(b.newIf(lv, skipBlk, rightBlk))
	b.AddPredecessor(skipBlk, condBlk)
	b.AddPredecessor(rightBlk, condBlk)

	b.SetCurrentBlock(skipBlk)
	b.assign(b.logicSlot, lv)

	b.SetCurrentBlock(rightBlk)
	rv := b.visitExpr(n.Children[1])
	rightEnd := b.current
	b.assign(b.logicSlot, rv)

	joined := b.join(skipBlk, rightEnd)
	b.SetCurrentBlock(joined)
	return joined.env.get(b.logicSlot)
}

// visitCall implements the call protocol of spec §4.1.
func (b *Builder) visitCall(n *candorast.Node) *Instruction {
	calleeNode := n.Children[0]
	argNodes := n.Children[1:]

	var callee, receiver *Instruction
	if n.HasSelf {
		base := b.visitExpr(calleeNode.Children[0])
		key := b.visitExpr(calleeNode.Children[1])
		callee = b.newInstr(KindLoadProperty, false, base, key)
		receiver = base
	} else {
		callee = b.visitExpr(calleeNode)
	}

	type argSlot struct {
		value    *Instruction
		isVarArg bool
	}
	var args []argSlot
	if receiver != nil {
		args = append(args, argSlot{value: receiver})
	}
	for _, a := range argNodes {
		if a.Kind == candorast.Spread {
			v := b.visitExpr(a.Children[0])
			args = append(args, argSlot{value: v, isVarArg: true})
		} else {
			args = append(args, argSlot{value: b.visitExpr(a)})
		}
	}

	positional := 0
	for _, a := range args {
		if !a.isVarArg {
			positional++
		}
	}
	argc := b.emitLiteralInt(float64(positional))
	for _, a := range args {
		if a.isVarArg {
			sz := b.newInstr(KindSizeof, false, a.value)
			argc = b.emitBinOp(candorast.OpAdd, argc, sz)
		}
	}

	b.newInstr(KindAlignStack, true, argc)

	for i := len(args) - 1; i >= 0; i-- {
		a := args[i]
		var instr *Instruction
		if a.isVarArg {
			instr = b.newInstr(KindStoreVarArg, true, a.value)
		} else {
			instr = b.newInstr(KindStoreArg, true, a.value)
		}
		instr.Index = i
	}

	return b.newInstr(KindCall, true, callee, argc)
}
