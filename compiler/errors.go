package compiler

import "fmt"

// ErrorKind classifies a ShaderError into one of spec's four error
// categories: what part of compilation rejected the input, not a Go type.
type ErrorKind int

const (
	// DeclarationError: missing annotation, unknown kind, duplicate slot,
	// unknown built-in name.
	DeclarationError ErrorKind = iota
	// DialectError: unsupported source construct.
	DialectError
	// TypeError: operand-shape mismatch, bad texture coordinate/color type,
	// store to a read-only resource, conflicting name type across blocks.
	TypeError
	// StructuralError: func_end with open branches, label with zero merged
	// branches, unrecognized NSB opcode.
	StructuralError
)

func (k ErrorKind) String() string {
	switch k {
	case DeclarationError:
		return "declaration"
	case DialectError:
		return "dialect"
	case TypeError:
		return "type"
	case StructuralError:
		return "structural"
	default:
		return "unknown"
	}
}

// ShaderError is the ambient error type for anything in the four rejection
// categories above, following the ValidationError shape of the teacher's
// ir package: a struct implementing error, with optional positional
// context — here an NSB op index and/or source address rather than a
// WGSL span, since this dialect carries no textual spans.
type ShaderError struct {
	Kind    ErrorKind
	Message string

	// OpIndex is the index into the NSB op stream the error was raised
	// at, or -1 when not applicable.
	OpIndex int
	// Addr is the source dialect address the error traces back to, or -1
	// when not applicable.
	Addr int
}

func (e *ShaderError) Error() string {
	switch {
	case e.Addr >= 0:
		return fmt.Sprintf("%s error at address %d: %s", e.Kind, e.Addr, e.Message)
	case e.OpIndex >= 0:
		return fmt.Sprintf("%s error at op %d: %s", e.Kind, e.OpIndex, e.Message)
	default:
		return fmt.Sprintf("%s error: %s", e.Kind, e.Message)
	}
}

func newShaderError(kind ErrorKind, format string, args ...any) *ShaderError {
	return &ShaderError{Kind: kind, Message: fmt.Sprintf(format, args...), OpIndex: -1, Addr: -1}
}

// internalError wraps a recovered panic that indicates a bug in the
// compiler rather than a bad shader description — a runtime assertion
// failure, not a rejection of the input. The teacher draws no such
// distinction in its own error model; this is the one place this
// compiler's error handling diverges from it.
type internalError struct {
	cause any
}

func (e *internalError) Error() string {
	return fmt.Sprintf("internal compiler error: %v", e.cause)
}
