package candor

import "fmt"

// ErrorKind is the closed set of failure categories this subsystem
// reports (spec §7). Parser-produced front-end errors are out of scope:
// they never reach Compile, which only ever sees a constructed AST.
type ErrorKind int

const (
	ErrorKindInternalInvariant ErrorKind = iota
	ErrorKindUnimplementedASTShape
)

func (k ErrorKind) String() string {
	switch k {
	case ErrorKindInternalInvariant:
		return "internal invariant violation"
	case ErrorKindUnimplementedASTShape:
		return "unimplemented or unexpected AST shape"
	default:
		return "unknown"
	}
}

// CompileError is returned by Compile on failure. There are no retries
// and no partial output: a failed compile returns a nil LIR function and
// CompileError describes why.
type CompileError struct {
	Kind     ErrorKind
	Filename string
	Message  string
}

func (e *CompileError) Error() string {
	if e.Filename != "" {
		return fmt.Sprintf("%s: %s: %s", e.Filename, e.Kind, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// recoverCompileError turns a panic raised anywhere in the pipeline into
// a CompileError, classifying it by the "BUG:" convention the HIR/LIR
// packages use for assertion failures versus anything else, which is
// treated as an unimplemented AST shape.
func recoverCompileError(filename string, err *error) {
	r := recover()
	if r == nil {
		return
	}
	msg := fmt.Sprint(r)
	kind := ErrorKindUnimplementedASTShape
	if len(msg) >= 4 && msg[:4] == "BUG:" {
		kind = ErrorKindInternalInvariant
	}
	*err = &CompileError{Kind: kind, Filename: filename, Message: msg}
}
