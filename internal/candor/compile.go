package candor

import (
	"github.com/konteck/candor/internal/candorast"
	"github.com/konteck/candor/internal/hir"
	"github.com/konteck/candor/internal/lir"
	"github.com/konteck/candor/internal/regalloc"
)

// Result is the output of a successful Compile: the final LIR function
// ready for the assembler, plus the HIR graph it was derived from (kept
// only for tests and tooling; the assembler never receives it, per the
// strictly-forward data flow rule).
type Result struct {
	HIR *hir.Function
	LIR *lir.Function
	Map *SourceMap
}

// Compile runs a single function's AST through HIR construction, SSA
// optimization, LIR lowering, and register allocation, producing the
// operand-level program the assembler consumes (spec §2).
//
// root must be a candorast.Block node: the function body (or the
// top-level script, compiled as a parameterless function). Nothing is
// retried: on failure the zone backing the half-built graph is simply
// dropped with the rest of the Result, and err describes why.
func Compile(root *candorast.Node, name string, paramCount int, hasVarArg bool, stackSlots int, cfg Config) (res *Result, err error) {
	defer recoverCompileError(cfg.Filename, &err)

	logger := cfg.logger()
	res = compileFunction(root, name, paramCount, hasVarArg, stackSlots, logger, cfg)
	return res, nil
}

// compileFunction builds and lowers one function. It is separated from
// Compile, which owns the panic recovery boundary and is its only caller.
// Nested function literals are not compiled: the FuncNode of a
// KindFunction instruction is not read here.
func compileFunction(root *candorast.Node, name string, paramCount int, hasVarArg bool, stackSlots int, logger Logger, cfg Config) *Result {
	b := hir.New(stackSlots, hirLoggerAdapter{logger})
	fn := b.Build(name, root, paramCount, hasVarArg)

	hir.ComputeDominators(fn)
	hir.ComputeLoopDepths(fn)
	hir.PrunePhis(fn)
	hir.ComputeReachability(fn)
	hir.ComputeEffects(fn)
	hir.RunDCE(fn)

	if cfg.gvnEnabled() {
		hir.RunGVN(fn)
	}
	if cfg.gcmEnabled() {
		hir.RunGCM(fn)
	}

	lfn := lir.Lower(fn)
	regalloc.Allocate(lfn)

	sm := buildSourceMap(fn, lfn)

	return &Result{HIR: fn, LIR: lfn, Map: sm}
}

type hirLoggerAdapter struct{ l Logger }

func (a hirLoggerAdapter) Tracef(format string, args ...any) { a.l.Tracef(format, args...) }
