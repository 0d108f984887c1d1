// Package candorast defines the contract between the Candor core (HIR
// builder, optimizer, LIR lowering, register allocator) and the parser
// that produces its input. The parser itself, and everything upstream of
// it, is out of scope for this module: this package only names the shape
// of the tree the builder walks.
package candorast

// Kind is the tag of a Node. The set is closed; the builder panics on any
// kind it does not recognize (spec: "syntactically impossible AST shapes
// trigger an unrecoverable internal error").
type Kind int

const (
	Invalid Kind = iota

	// Block is a sequence of statements. Children are the statements.
	Block
	// Return returns Children[0] (or nothing if len(Children) == 0).
	Return
	// If has Children[0] the condition, Children[1] the then-branch,
	// and optionally Children[2] the else-branch.
	If
	// While has Children[0] the condition and Children[1] the body.
	While
	// Break exits the innermost loop. Children is empty.
	Break
	// Continue jumps to the innermost loop's back-edge. Children is empty.
	Continue
	// Assign assigns Children[0] (an expression) to the variable named by
	// Slot. Children may be empty when Assign is synthesized internally.
	Assign
	// Name reads the variable named by Slot.
	Name
	// Literal carries a constant in Lit.
	Literal
	// Nil is the literal nil/undefined value.
	Nil
	// ObjectLiteral allocates an object. Children alternate key, value.
	ObjectLiteral
	// ArrayLiteral allocates an array. Children are the elements.
	ArrayLiteral
	// Member accesses Children[0].Children[1], i.e. a property load where
	// Children[1] is the key expression (a literal for `a.b`, arbitrary
	// for `a[b]`).
	Member
	// Delete removes the property named by Children[1] from Children[0].
	Delete
	// Call invokes Children[0] with the remaining children as positional
	// arguments. If HasSelf is set, Children[0] is a Member node whose
	// base is reused as the receiver (the call's first argument).
	Call
	// Spread marks its single child as a vararg array to be splatted into
	// the enclosing Call's argument list.
	Spread
	// Function is a nested function literal. FuncStackSlots and FuncBody
	// describe its own scope; Children is empty.
	Function
	// UnaryOp applies Op (Not, Typeof, Sizeof, Keysof, or Clone) to
	// Children[0].
	UnaryOp
	// BinOp applies Op to Children[0] and Children[1].
	BinOp
	// LogicAnd/LogicOr are short-circuiting; Children[0] is evaluated
	// first and Children[1] only if necessary.
	LogicAnd
	LogicOr
	// CollectGarbage and GetStackTrace are nullary runtime intrinsics.
	CollectGarbage
	GetStackTrace
)

// Op is the sub-tag of a UnaryOp or BinOp node.
type Op int

const (
	OpInvalid Op = iota

	OpNot
	OpTypeof
	OpSizeof
	OpKeysof
	OpClone

	OpAdd
	OpSub
	OpMul
	OpDiv
	OpMod
	OpBitAnd
	OpBitOr
	OpBitXor
	OpShl
	OpShr
	OpEq
	OpNe
	OpLt
	OpLe
	OpGt
	OpGe
)

// LitKind distinguishes the payload carried by a Literal node.
type LitKind int

const (
	LitInvalid LitKind = iota
	LitNumber
	LitString
	LitBool
)

// Lit is the literal payload of a Literal node.
type Lit struct {
	Kind   LitKind
	Number float64
	String string
	Bool   bool
}

// SlotKind distinguishes the two ways a variable can be stored per spec §3.
type SlotKind int

const (
	SlotInvalid SlotKind = iota
	// SlotStack addresses a function-local stack slot by Index.
	SlotStack
	// SlotContext addresses a slot captured from an enclosing function's
	// heap-allocated context, Depth frames up, at Index within that frame.
	SlotContext
)

// ScopeSlot names a variable's storage location, as produced by the
// parser's scope resolution pass.
type ScopeSlot struct {
	Kind  SlotKind
	Index int
	Depth int // meaningful only when Kind == SlotContext
}

// Node is a node of the external AST. The zero value is not a valid node;
// every Node the builder visits must have a non-Invalid Kind.
type Node struct {
	Kind     Kind
	Op       Op
	Children []*Node
	Lit      Lit
	Slot     ScopeSlot
	HasSelf  bool // Call only: evaluate Children[0]'s Member base once, reuse as receiver

	// FuncStackSlots and FuncBody are populated when Kind == Function.
	FuncStackSlots int
	FuncBody       *Node
	FuncParamCount int
	FuncHasVarArg  bool

	// SourceOffset is opaque. The HIR builder does not read it, so it
	// does not reach HIR instructions, LIR or the source map.
	SourceOffset uint64
}

// StackSlots is the number of stack slots a function-root node's body
// requires, as computed by the parser's scope resolution. It is read from
// FuncStackSlots on the function's root Node, or, for the top-level
// script, supplied directly to the builder.
func (n *Node) StackSlots() int { return n.FuncStackSlots }
