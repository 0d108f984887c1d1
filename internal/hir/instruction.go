package hir

import (
	"fmt"

	"github.com/konteck/candor/internal/candorast"
)

// Kind is the closed set of HIR opcodes from spec §3.
type Kind uint8

const (
	KindInvalid Kind = iota

	KindEntry
	KindReturn
	KindGoto
	KindIf
	KindPhi
	KindNil
	KindLiteral
	KindLoadArg
	KindLoadVarArg
	KindStoreArg
	KindStoreVarArg
	KindLoadContext
	KindStoreContext
	KindLoadProperty
	KindStoreProperty
	KindDeleteProperty
	KindAllocateObject
	KindAllocateArray
	KindFunction
	KindCall
	KindAlignStack
	KindBinOp
	KindNot
	KindTypeof
	KindSizeof
	KindKeysof
	KindClone
	KindCollectGarbage
	KindGetStackTrace
)

func (k Kind) String() string {
	switch k {
	case KindEntry:
		return "Entry"
	case KindReturn:
		return "Return"
	case KindGoto:
		return "Goto"
	case KindIf:
		return "If"
	case KindPhi:
		return "Phi"
	case KindNil:
		return "Nil"
	case KindLiteral:
		return "Literal"
	case KindLoadArg:
		return "LoadArg"
	case KindLoadVarArg:
		return "LoadVarArg"
	case KindStoreArg:
		return "StoreArg"
	case KindStoreVarArg:
		return "StoreVarArg"
	case KindLoadContext:
		return "LoadContext"
	case KindStoreContext:
		return "StoreContext"
	case KindLoadProperty:
		return "LoadProperty"
	case KindStoreProperty:
		return "StoreProperty"
	case KindDeleteProperty:
		return "DeleteProperty"
	case KindAllocateObject:
		return "AllocateObject"
	case KindAllocateArray:
		return "AllocateArray"
	case KindFunction:
		return "Function"
	case KindCall:
		return "Call"
	case KindAlignStack:
		return "AlignStack"
	case KindBinOp:
		return "BinOp"
	case KindNot:
		return "Not"
	case KindTypeof:
		return "Typeof"
	case KindSizeof:
		return "Sizeof"
	case KindKeysof:
		return "Keysof"
	case KindClone:
		return "Clone"
	case KindCollectGarbage:
		return "CollectGarbage"
	case KindGetStackTrace:
		return "GetStackTrace"
	default:
		return "Invalid"
	}
}

// hasSideEffects reports whether an instruction of this kind is a DCE
// root per spec §4.5.
func (k Kind) hasSideEffects() bool {
	switch k {
	case KindCall, KindStoreArg, KindStoreVarArg, KindStoreContext,
		KindStoreProperty, KindDeleteProperty, KindIf, KindGoto, KindReturn,
		KindAlignStack, KindEntry, KindCollectGarbage, KindGetStackTrace:
		return true
	default:
		return false
	}
}

// isControl reports whether an instruction of this kind is a block
// terminator (spec §3: "it ends with exactly one control instruction").
func (k Kind) isControl() bool {
	switch k {
	case KindGoto, KindIf, KindReturn:
		return true
	default:
		return false
	}
}

// Instruction is the SSA node described by spec §3. Instructions are
// allocated out of a per-compile arena (*Builder.instrPool) and are
// referred to by pointer; no instruction is ever individually freed.
type Instruction struct {
	Kind Kind
	// Id is not assigned by any pass: it stays the zero value throughout
	// HIR construction, optimization and LIR lowering (lowering numbers
	// its own LIR instructions instead).
	Id int

	Block *Block

	Args []*Instruction
	Uses []*Instruction

	// ResultSlot is set when this instruction defines a ScopeSlot in its
	// block's environment (e.g. a Phi, or the instruction an Assign bound).
	ResultSlot   candorast.ScopeSlot
	HasResultSlt bool

	Pinned bool

	EffectsIn, EffectsOut map[*Instruction]struct{}

	// Scratch bits used by individual passes; never read across passes.
	Live        bool
	GVNVisited  bool
	GCMVisited  bool
	AliasVisited uint8 // 0, 1 or 2, see spec §4.4

	// Subtype/payload fields. Which are meaningful depends on Kind.
	BinOp      candorast.Op // KindBinOp
	Literal    candorast.Lit
	Index      int    // LoadArg/LoadVarArg/StoreArg/StoreVarArg position; LoadContext/StoreContext slot index
	Depth      int    // LoadContext/StoreContext
	StringKey  string // reserved for future literal-keyed ops; unused by current lowering
	SourcePos  uint64

	// FuncNode is set on a KindFunction instruction to the AST node of the
	// closure it allocates; the closure body is not built into this HIR
	// graph. No pass or caller in this module reads it.
	FuncNode *candorast.Node

	// PhiPredCount records the declared predecessor count for a Phi,
	// before any pruning.
	PhiPredCount int

	// gotoTarget, ifTrue, ifFalse carry the control-flow edges for Goto
	// and If, which are not ordinary data args (spec §3 models an edge as
	// a block reference, not a value use).
	gotoTarget       *Block
	ifTrue, ifFalse  *Block

	prev, next *Instruction
	deleted    bool
}

// String renders a debug form: "i<ptr> = Kind(args...)". Primarily used
// by tests and trace logging.
func (i *Instruction) String() string {
	args := make([]string, len(i.Args))
	for idx, a := range i.Args {
		args[idx] = a.ref()
	}
	return fmt.Sprintf("%s = %s(%v)", i.ref(), i.Kind, args)
}

// ref is a stable-enough-for-debugging identifier; it uses Id when one has
// been assigned (non-zero) and the pointer address otherwise.
func (i *Instruction) ref() string {
	if i == nil {
		return "<nil>"
	}
	if i.Id != 0 {
		return fmt.Sprintf("i%d", i.Id)
	}
	return fmt.Sprintf("i%p", i)
}

// AddArg appends v to i's argument list and records the reverse edge on v.
func (i *Instruction) AddArg(v *Instruction) {
	i.Args = append(i.Args, v)
	if v != nil {
		v.Uses = append(v.Uses, i)
	}
}

// ReplaceArg substitutes newV for the argument at position idx, updating
// both instructions' use lists so invariant 1 in spec §8 keeps holding.
func (i *Instruction) ReplaceArg(idx int, newV *Instruction) {
	old := i.Args[idx]
	i.Args[idx] = newV
	if old != nil {
		old.removeUse(i)
	}
	if newV != nil {
		newV.Uses = append(newV.Uses, i)
	}
}

// ReplaceAllUsesWith rewires every user of i to use repl instead, and
// clears i's own use list (i is expected to be deleted by the caller).
func (i *Instruction) ReplaceAllUsesWith(repl *Instruction) {
	for _, user := range i.Uses {
		for idx, arg := range user.Args {
			if arg == i {
				user.Args[idx] = repl
				if repl != nil {
					repl.Uses = append(repl.Uses, user)
				}
			}
		}
	}
	i.Uses = nil
}

func (i *Instruction) removeUse(user *Instruction) {
	for idx, u := range i.Uses {
		if u == user {
			i.Uses = append(i.Uses[:idx], i.Uses[idx+1:]...)
			return
		}
	}
}

// IsPhi reports whether this instruction is a phi.
func (i *Instruction) IsPhi() bool { return i.Kind == KindPhi }

// Target returns the jump target of a Goto instruction.
func (i *Instruction) Target() *Block { return i.gotoTarget }

// SetTarget rewrites the jump target of a Goto instruction; used by GCM
// and block-layout passes that splice in new blocks along an edge.
func (i *Instruction) SetTarget(blk *Block) { i.gotoTarget = blk }

// IfTrue and IfFalse return the two successors of an If instruction.
func (i *Instruction) IfTrue() *Block  { return i.ifTrue }
func (i *Instruction) IfFalse() *Block { return i.ifFalse }

// SetIfTrue and SetIfFalse rewrite an If instruction's successors.
func (i *Instruction) SetIfTrue(blk *Block)  { i.ifTrue = blk }
func (i *Instruction) SetIfFalse(blk *Block) { i.ifFalse = blk }

// Next returns the instruction following i in its block's instruction
// list (not including the phi list).
func (i *Instruction) Next() *Instruction { return i.next }

// Prev returns the instruction preceding i in its block's instruction
// list.
func (i *Instruction) Prev() *Instruction { return i.prev }
