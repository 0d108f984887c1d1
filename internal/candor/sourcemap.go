package candor

import (
	"github.com/konteck/candor/internal/hir"
	"github.com/konteck/candor/internal/lir"
)

// SourceMapEntry is one (code_offset, ast_offset) pair the emitter feeds
// into its debug map (spec §6's "Source map sink").
type SourceMapEntry struct {
	CodeOffset uint64
	ASTOffset  uint64
}

// SourceMap is an ordered list of entries, one per LIR instruction whose
// originating HIR node carried a source position.
type SourceMap struct {
	Entries []SourceMapEntry
}

// buildSourceMap walks the final LIR in layout order and pairs each
// instruction's position with the AST offset of the HIR node it was
// lowered from. LIR retains that back-pointer only for this purpose
// (spec §2): nothing downstream of lowering reads HIR directly again.
func buildSourceMap(hfn *hir.Function, lfn *lir.Function) *SourceMap {
	sm := &SourceMap{}
	for _, blk := range lfn.Blocks {
		for instr := blk.Instructions(); instr != nil; instr = instr.Next() {
			if instr.HIRBackPointer == nil {
				continue
			}
			sm.Entries = append(sm.Entries, SourceMapEntry{
				CodeOffset: uint64(instr.Id),
				ASTOffset:  instr.HIRBackPointer.SourceOffset(),
			})
		}
	}
	return sm
}
