// Package source defines the addressed stack-machine instruction stream fed
// to the front-end translator: the input dialect a shader description's
// function body is expressed in before normalization into nsb.Program.
//
// Every instruction carries an explicit address, and jump instructions
// carry an explicit target address, mirroring the addressed bytecode stream
// pyshader's front end pre-scans for backward jumps — generalized away from
// CPython opcode numbers to a small closed opcode alphabet.
package source

// Opcode is the closed set of stack-machine instructions.
type Opcode uint8

const (
	OpPopTop Opcode = iota
	OpDupTop
	OpRotTwo
	OpLoadConst
	OpLoadLocal
	OpStoreLocal
	OpLoadGlobal // qualified external name: "stdlib.sqrt", "texture.sample", ...
	OpLoadAttr
	OpStoreAttr
	OpLoadMethod
	OpCallFunction
	OpBinarySubscript
	OpStoreSubscript
	OpBuildArray
	OpBinaryAdd
	OpBinarySub
	OpBinaryMul
	OpBinaryDiv
	OpBinaryMod
	OpBinaryPow
	OpCompare
	OpJumpAbsolute
	OpJumpForward
	OpPopJumpIfFalse
	OpPopJumpIfTrue
	OpJumpIfTrueOrPop
	OpJumpIfFalseOrPop
	OpGetIter
	OpForIter
	OpReturnValue
	OpPopBlock
)

// IsJump reports whether op transfers control to Instr.Target.
func (op Opcode) IsJump() bool {
	switch op {
	case OpJumpAbsolute, OpJumpForward, OpPopJumpIfFalse, OpPopJumpIfTrue,
		OpJumpIfTrueOrPop, OpJumpIfFalseOrPop, OpForIter:
		return true
	default:
		return false
	}
}

// IsConditionalJump reports whether op may fall through instead of jumping.
func (op Opcode) IsConditionalJump() bool {
	switch op {
	case OpPopJumpIfFalse, OpPopJumpIfTrue, OpJumpIfTrueOrPop, OpJumpIfFalseOrPop, OpForIter:
		return true
	default:
		return false
	}
}

// Instr is one addressed stack-machine instruction.
type Instr struct {
	Addr     int
	Op       Opcode
	IntArg   int    // compare op code, build_array count, call nargs
	StrArg   string // local/global/attr name
	Const    any    // literal value for OpLoadConst
	Target   int    // resolved jump target address, valid when Op.IsJump()
}

// ResourceAnnotation is the `(kind, slot, typename)` annotation pyshader
// requires on every shader function argument.
type ResourceAnnotation struct {
	Kind     string // "input", "output", "uniform", "buffer", "sampler", "texture"
	Slot     int
	Group    int
	TypeName string
}

// Program is one shader entry-point function in the source dialect.
type Program struct {
	Name        string
	Stage       string // "vertex", "fragment", "compute"
	ArgNames    []string
	ArgAnnot    map[string]ResourceAnnotation
	Instrs      []Instr
}

// InstrAt returns the instruction at address addr, and whether it exists.
func (p *Program) InstrAt(addr int) (Instr, bool) {
	for _, in := range p.Instrs {
		if in.Addr == addr {
			return in, true
		}
	}
	return Instr{}, false
}

// IndexAt returns the slice index of the instruction at address addr.
func (p *Program) IndexAt(addr int) (int, bool) {
	for i, in := range p.Instrs {
		if in.Addr == addr {
			return i, true
		}
	}
	return 0, false
}
