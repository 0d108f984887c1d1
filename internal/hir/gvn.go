package hir

import "fmt"

// RunGVN replaces redundant computations of the same value with the
// earliest dominating one (spec §4.6). Two instructions are the same
// value if they share a Kind and every subtype field the Kind depends on,
// and their Args are pairwise the same value (after earlier Args have
// already been canonicalized). Pinned and side-effecting instructions are
// never candidates: rematerializing a Call or a StoreProperty would
// change behavior, not just representation.
//
// Must run after ComputeDominators: validity relies on walking the
// dominator tree in preorder, so a lookup can only ever find a definition
// that dominates the current instruction.
func RunGVN(fn *Function) {
	table := make(map[string]*Instruction)
	var walk func(blk *Block)
	walk = func(blk *Block) {
		if blk.dead {
			return
		}
		var inserted []string

		visit := func(instr *Instruction) bool {
			if instr.Pinned || instr.Kind.hasSideEffects() || instr.IsPhi() {
				return false
			}
			key := gvnKey(instr)
			if key == "" {
				return false
			}
			if existing, ok := table[key]; ok {
				instr.ReplaceAllUsesWith(existing)
				return true
			}
			table[key] = instr
			inserted = append(inserted, key)
			return false
		}

		for instr := blk.Instructions(); instr != nil; {
			next := instr.Next()
			if visit(instr) {
				blk.Remove(instr)
			}
			instr = next
		}

		for _, child := range blk.Dominates {
			walk(child)
		}

		for _, key := range inserted {
			delete(table, key)
		}
	}
	walk(fn.Entry)
}

// gvnKey produces a canonical structural key for instr, or "" if instr's
// Kind is not a GVN candidate at all (e.g. it has no stable subtype
// payload, like Entry).
func gvnKey(instr *Instruction) string {
	switch instr.Kind {
	case KindLiteral:
		return fmt.Sprintf("Lit:%d:%v:%q:%v", instr.Literal.Kind, instr.Literal.Number, instr.Literal.String, instr.Literal.Bool)
	case KindNil:
		return "Nil"
	case KindBinOp:
		return fmt.Sprintf("BinOp:%d:%s:%s", instr.BinOp, instr.Args[0].ref(), instr.Args[1].ref())
	case KindNot, KindTypeof, KindSizeof, KindKeysof:
		return fmt.Sprintf("%s:%s", instr.Kind, instr.Args[0].ref())
	case KindLoadProperty:
		// Keyed purely on base+key, with no guard against an intervening
		// StoreProperty/DeleteProperty on the same base (spec §4.6 defines
		// the key this way); the effect sets ComputeEffects builds are not
		// consulted here.
		return fmt.Sprintf("LoadProperty:%s:%s", instr.Args[0].ref(), instr.Args[1].ref())
	case KindLoadContext:
		if len(instr.Args) == 0 {
			return fmt.Sprintf("LoadContext:root:%d", instr.Index)
		}
		return fmt.Sprintf("LoadContext:%s:%d:%d", instr.Args[0].ref(), instr.Depth, instr.Index)
	case KindLoadArg:
		return fmt.Sprintf("LoadArg:%d", instr.Index)
	default:
		return ""
	}
}
