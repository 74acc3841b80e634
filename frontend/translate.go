package frontend

import (
	"fmt"

	"github.com/shaderlab/nsbc/nsb"
	"github.com/shaderlab/nsbc/source"
)

// translator walks a source.Program instruction by instruction and emits
// the equivalent nsb.Program, scaffolding structured loops around the
// backward jumps PrescanLoops already found.
//
// Modeled on pyshader's PyBytecode2Bytecode._convert: a single forward pass
// over the addressed instruction stream, with a one-instruction look-back
// for the power-operator peephole and a pending-method state for
// method-call sugar.
type translator struct {
	prog *source.Program

	loopByStart map[int]*LoopRecord
	loopByEnd   map[int][]*LoopRecord
	loopStack   []*LoopRecord

	labels          map[int]string
	protectedLabels map[string]bool
	nextLabel       int

	ops []nsb.Op

	pendingMethod string
	havePending   bool
}

// Translate converts prog into Normalized Shader Bytecode. loops must be
// prog's result from PrescanLoops.
func Translate(prog *source.Program, loops []*LoopRecord) *nsb.Program {
	t := &translator{
		prog:            prog,
		loopByStart:     map[int]*LoopRecord{},
		loopByEnd:       map[int][]*LoopRecord{},
		labels:          map[int]string{},
		protectedLabels: map[string]bool{},
	}
	for _, lr := range loops {
		t.loopByStart[lr.Start] = lr
		t.loopByEnd[lr.End] = append(t.loopByEnd[lr.End], lr)
		if lr.HasForcedLabel {
			t.labels[lr.ForcedLabelAddr] = lr.ForcedLabelName
		}
		for _, name := range lr.ProtectedLabels {
			t.protectedLabels[name] = true
		}
	}

	t.emitEntryPoint()

	for i, in := range prog.Instrs {
		t.placeLabelIfNeeded(in.Addr)
		t.enterLoopIfNeeded(in.Addr)

		t.emitInstr(i, in)

		t.leaveLoopIfNeeded(in.Addr)
	}

	t.emit(nsb.FuncEnd{})

	out := &nsb.Program{Ops: t.ops}
	FixOrControlFlow(out)
	FixEmptyBlocks(out, t.protectedLabels)
	FixConsistentLabels(out)
	return out
}

func (t *translator) emit(op nsb.Op) {
	t.ops = append(t.ops, op)
}

func (t *translator) emitEntryPoint() {
	t.emit(nsb.EntryPoint{Name: t.prog.Name, Stage: t.prog.Stage})
	for _, name := range t.prog.ArgNames {
		ann := t.prog.ArgAnnot[name]
		t.emit(nsb.Resource{Kind: ann.Kind, Name: name, Slot: ann.Slot, Group: ann.Group, TypeName: ann.TypeName})
	}
}

// getLabel resolves the label name an address should use, minting a fresh
// one on first request. Forced (pre-seeded) assignments win, then the
// innermost active loop's own label scheme, then a freshly numbered label.
func (t *translator) getLabel(addr int) string {
	if lbl, ok := t.labels[addr]; ok {
		return lbl
	}
	if n := len(t.loopStack); n > 0 {
		if lbl, ok := t.loopStack[n-1].LabelMap[addr]; ok {
			t.labels[addr] = lbl
			return lbl
		}
	}
	t.nextLabel++
	lbl := fmt.Sprintf("L%d", t.nextLabel)
	t.labels[addr] = lbl
	return lbl
}

func (t *translator) placeLabelIfNeeded(addr int) {
	if lbl, ok := t.labels[addr]; ok {
		t.emit(nsb.Label{Name: lbl})
		return
	}
	if n := len(t.loopStack); n > 0 {
		if lbl, ok := t.loopStack[n-1].LabelMap[addr]; ok {
			t.labels[addr] = lbl
			t.emit(nsb.Label{Name: lbl})
		}
	}
}

// enterLoopIfNeeded scaffolds the loop header when addr is a loop's start,
// mirroring _start_loop: emit the header label and a branch_loop declaring
// the merge/continue targets, then push the loop as active.
func (t *translator) enterLoopIfNeeded(addr int) {
	lr, ok := t.loopByStart[addr]
	if !ok {
		return
	}
	t.emit(nsb.Label{Name: lr.HeaderLabel})
	t.emit(nsb.BranchLoop{HeaderLabel: lr.HeaderLabel, MergeLabel: lr.MergeLabel, ContinueLabel: lr.ContinueLabel})
	t.loopStack = append(t.loopStack, lr)
}

// leaveLoopIfNeeded closes out any loop whose end address this is,
// mirroring _end_loop: pop the loop stack. It emits nothing; the merge
// label is placed by placeLabelIfNeeded like any other label.
func (t *translator) leaveLoopIfNeeded(addr int) {
	lrs := t.loopByEnd[addr]
	for _, lr := range lrs {
		if n := len(t.loopStack); n > 0 && t.loopStack[n-1] == lr {
			t.loopStack = t.loopStack[:n-1]
		}
	}
}

var compareNames = map[int]string{
	0: "lt", 1: "le", 2: "eq", 3: "ne", 4: "gt", 5: "ge",
}

func compareOpName(code int) string {
	if name, ok := compareNames[code]; ok {
		return name
	}
	return "eq"
}

var binaryOpNames = map[source.Opcode]string{
	source.OpBinaryAdd: "add",
	source.OpBinarySub: "sub",
	source.OpBinaryMul: "mul",
	source.OpBinaryDiv: "div",
	source.OpBinaryMod: "mod",
}

func (t *translator) emitInstr(idx int, in source.Instr) {
	switch in.Op {
	case source.OpPopTop:
		t.emit(nsb.PopTop{})
	case source.OpDupTop:
		t.emit(nsb.DupTop{})
	case source.OpRotTwo:
		t.emit(nsb.RotTwo{})
	case source.OpLoadConst:
		t.emit(nsb.LoadConstant{Value: in.Const})
	case source.OpLoadLocal:
		t.emit(nsb.LoadName{Name: in.StrArg})
	case source.OpStoreLocal:
		t.emit(nsb.StoreName{Name: in.StrArg})
	case source.OpLoadGlobal:
		t.emit(nsb.LoadName{Name: in.StrArg})
	case source.OpLoadAttr:
		t.emit(nsb.LoadAttr{Attr: in.StrArg})
	case source.OpStoreAttr:
		// The NSB alphabet has no dedicated store_attr opcode: a struct or
		// swizzle write is an indexed store keyed by the attribute name,
		// resolved to a concrete member offset by the back end's access
		// chain builder once type information is available.
		t.emit(nsb.LoadConstant{Value: in.StrArg})
		t.emit(nsb.StoreIndex{})
	case source.OpLoadMethod:
		t.pendingMethod = in.StrArg
		t.havePending = true
	case source.OpCallFunction:
		if t.havePending {
			t.emit(nsb.Call{Name: t.pendingMethod, NArgs: in.IntArg + 1})
			t.havePending = false
			t.pendingMethod = ""
			return
		}
		t.emit(nsb.Call{Name: in.StrArg, NArgs: in.IntArg})
	case source.OpBinarySubscript:
		t.emit(nsb.LoadIndex{})
	case source.OpStoreSubscript:
		t.emit(nsb.StoreIndex{})
	case source.OpBuildArray:
		t.emit(nsb.LoadArray{N: in.IntArg})
	case source.OpBinaryAdd, source.OpBinarySub, source.OpBinaryMul, source.OpBinaryDiv, source.OpBinaryMod:
		t.emit(nsb.BinaryOp{Op: binaryOpNames[in.Op]})
	case source.OpBinaryPow:
		t.emitPow(idx, in)
	case source.OpCompare:
		t.emit(nsb.Compare{Op: compareOpName(in.IntArg)})
	case source.OpJumpAbsolute, source.OpJumpForward:
		t.emit(nsb.Branch{Label: t.getLabel(in.Target)})
	case source.OpPopJumpIfFalse:
		// Falls through on true, jumps to target on false: the
		// continuation after this instruction is the true branch.
		t.emit(nsb.BranchConditional{TrueLabel: t.getLabel(in.Addr + 1), FalseLabel: t.getLabel(in.Target)})
	case source.OpPopJumpIfTrue:
		t.emit(nsb.BranchConditional{TrueLabel: t.getLabel(in.Target), FalseLabel: t.getLabel(in.Addr + 1)})
	case source.OpJumpIfTrueOrPop:
		t.emit(nsb.BranchConditional{TrueLabel: t.getLabel(in.Target), FalseLabel: t.getLabel(in.Addr + 1)})
	case source.OpJumpIfFalseOrPop:
		t.emit(nsb.BranchConditional{TrueLabel: t.getLabel(in.Addr + 1), FalseLabel: t.getLabel(in.Target)})
	case source.OpGetIter, source.OpForIter, source.OpPopBlock:
		// Pure structural bookkeeping consumed by the loop pre-scanner;
		// the loop enter/leave scaffolding already emits the equivalent
		// NSB control flow.
	case source.OpReturnValue:
		t.emit(nsb.Return{HasValue: in.IntArg != 0})
	default:
		panic(fmt.Sprintf("frontend: unhandled source opcode %v at address %d", in.Op, in.Addr))
	}
}

// emitPow applies the power-operator peephole: squaring becomes a
// self-multiply and square-root becomes a stdlib call, both of which stay
// inside the closed binary_op/call alphabet; anything else falls back to a
// generic call since "pow" is not a binary_op.
func (t *translator) emitPow(idx int, in source.Instr) {
	if idx > 0 {
		prev := t.prog.Instrs[idx-1]
		if prev.Op == source.OpLoadConst {
			switch c := prev.Const.(type) {
			case float64:
				if c == 2 {
					t.popLastLoadConst()
					t.emit(nsb.DupTop{})
					t.emit(nsb.BinaryOp{Op: "mul"})
					return
				}
				if c == 0.5 {
					t.popLastLoadConst()
					t.emit(nsb.Call{Name: "sqrt", NArgs: 1})
					return
				}
			case int:
				if c == 2 {
					t.popLastLoadConst()
					t.emit(nsb.DupTop{})
					t.emit(nsb.BinaryOp{Op: "mul"})
					return
				}
			}
		}
	}
	t.emit(nsb.Call{Name: "pow", NArgs: 2})
}

// popLastLoadConst drops the exponent constant this emitPow peephole just
// consumed, since the rewritten form no longer needs it on the stack.
func (t *translator) popLastLoadConst() {
	if n := len(t.ops); n > 0 {
		if _, ok := t.ops[n-1].(nsb.LoadConstant); ok {
			t.ops = t.ops[:n-1]
		}
	}
}
