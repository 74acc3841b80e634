package frontend_test

import (
	"reflect"
	"testing"

	"github.com/shaderlab/nsbc/frontend"
	"github.com/shaderlab/nsbc/nsb"
	"github.com/shaderlab/nsbc/source"
)

func ifElseProgram() *source.Program {
	return &source.Program{
		Name:     "main",
		Stage:    "fragment",
		ArgNames: []string{"a", "b"},
		ArgAnnot: map[string]source.ResourceAnnotation{
			"a": {Kind: "input", Slot: 0, TypeName: "f32"},
			"b": {Kind: "output", Slot: 0, TypeName: "f32"},
		},
		Instrs: []source.Instr{
			{Addr: 0, Op: source.OpLoadLocal, StrArg: "a"},
			{Addr: 1, Op: source.OpLoadConst, Const: 0.0},
			{Addr: 2, Op: source.OpCompare, IntArg: 4},
			{Addr: 3, Op: source.OpPopJumpIfFalse, Target: 7},
			{Addr: 4, Op: source.OpLoadConst, Const: 1.0},
			{Addr: 5, Op: source.OpStoreLocal, StrArg: "b"},
			{Addr: 6, Op: source.OpJumpForward, Target: 9},
			{Addr: 7, Op: source.OpLoadConst, Const: 2.0},
			{Addr: 8, Op: source.OpStoreLocal, StrArg: "b"},
			{Addr: 9, Op: source.OpLoadLocal, StrArg: "b"},
			{Addr: 10, Op: source.OpReturnValue, IntArg: 1},
		},
	}
}

func whileProgram() *source.Program {
	return &source.Program{
		Name:     "main",
		Stage:    "vertex",
		ArgNames: []string{"a"},
		ArgAnnot: map[string]source.ResourceAnnotation{
			"a": {Kind: "input", Slot: 0, TypeName: "f32"},
		},
		Instrs: []source.Instr{
			{Addr: 0, Op: source.OpLoadLocal, StrArg: "a"},
			{Addr: 1, Op: source.OpLoadConst, Const: 0.0},
			{Addr: 2, Op: source.OpCompare, IntArg: 4},
			{Addr: 3, Op: source.OpPopJumpIfFalse, Target: 9},
			{Addr: 4, Op: source.OpLoadLocal, StrArg: "a"},
			{Addr: 5, Op: source.OpLoadConst, Const: 1.0},
			{Addr: 6, Op: source.OpBinarySub},
			{Addr: 7, Op: source.OpStoreLocal, StrArg: "a"},
			{Addr: 8, Op: source.OpJumpAbsolute, Target: 0},
			{Addr: 9, Op: source.OpReturnValue, IntArg: 0},
		},
	}
}

func TestPrescanLoopsDetectsBackwardJump(t *testing.T) {
	loops := frontend.PrescanLoops(whileProgram())
	if len(loops) != 1 {
		t.Fatalf("want 1 loop, got %d", len(loops))
	}
	lr := loops[0]
	if lr.Kind != "while" {
		t.Errorf("kind: got %s, want while", lr.Kind)
	}
	if lr.Start != 0 || lr.End != 9 {
		t.Errorf("bounds: got [%d,%d), want [0,9)", lr.Start, lr.End)
	}
	if !lr.FirstJumpIsToEnd {
		t.Errorf("want FirstJumpIsToEnd true")
	}
	if !lr.HasForcedLabel || lr.ForcedLabelAddr != 4 {
		t.Errorf("want forced label at address 4, got forced=%v addr=%d", lr.HasForcedLabel, lr.ForcedLabelAddr)
	}
}

func TestPrescanLoopsNoLoop(t *testing.T) {
	loops := frontend.PrescanLoops(ifElseProgram())
	if len(loops) != 0 {
		t.Fatalf("want 0 loops, got %d", len(loops))
	}
}

func TestTranslateIfElseShape(t *testing.T) {
	prog := ifElseProgram()
	out := frontend.Translate(prog, frontend.PrescanLoops(prog))

	if _, ok := out.Ops[0].(nsb.EntryPoint); !ok {
		t.Fatalf("first op should be entrypoint, got %#v", out.Ops[0])
	}
	if _, ok := out.Ops[len(out.Ops)-1].(nsb.FuncEnd); !ok {
		t.Fatalf("last op should be func_end, got %#v", out.Ops[len(out.Ops)-1])
	}

	var haveConditional bool
	labelCount := map[string]int{}
	for _, op := range out.Ops {
		switch o := op.(type) {
		case nsb.BranchConditional:
			haveConditional = true
		case nsb.Label:
			labelCount[o.Name]++
		}
	}
	if !haveConditional {
		t.Errorf("want at least one branch_conditional op")
	}
	for name, n := range labelCount {
		if n != 1 {
			t.Errorf("label %s placed %d times, want exactly once", name, n)
		}
	}
}

func TestTranslateWhileLoopEmitsBranchLoop(t *testing.T) {
	prog := whileProgram()
	out := frontend.Translate(prog, frontend.PrescanLoops(prog))

	var haveLoop bool
	for _, op := range out.Ops {
		if _, ok := op.(nsb.BranchLoop); ok {
			haveLoop = true
		}
	}
	if !haveLoop {
		t.Errorf("want a branch_loop op in translated while loop")
	}
}

func TestFixConsistentLabelsRenumbersFromOne(t *testing.T) {
	prog := &nsb.Program{Ops: []nsb.Op{
		nsb.Label{Name: "Lh3"},
		nsb.Branch{Label: "Lm3"},
		nsb.Label{Name: "Lm3"},
	}}
	frontend.FixConsistentLabels(prog)

	lbl, ok := prog.Ops[0].(nsb.Label)
	if !ok || lbl.Name != "L1" {
		t.Fatalf("want first label renamed to L1, got %#v", prog.Ops[0])
	}
	br, ok := prog.Ops[1].(nsb.Branch)
	if !ok || br.Label != "L2" {
		t.Fatalf("want branch target renamed to L2, got %#v", prog.Ops[1])
	}
}

// TestFixOrControlFlowIsIdempotent covers property 6: running the or-block
// rewrite twice must leave the program exactly as the first pass did — the
// second pass finds the same pop-and-branch block again, but every jump
// target already points straight at the real merge, so its rewrite changes
// nothing.
func TestFixOrControlFlowIsIdempotent(t *testing.T) {
	prog := &nsb.Program{Ops: []nsb.Op{
		nsb.LoadName{Name: "a"},
		nsb.BranchConditional{TrueLabel: "Lmerge", FalseLabel: "Lor"},
		nsb.Label{Name: "Lor"},
		nsb.PopTop{},
		nsb.Branch{Label: "Lmerge"},
		nsb.Label{Name: "Lmerge"},
		nsb.Return{HasValue: true},
	}}

	frontend.FixOrControlFlow(prog)
	once := make([]nsb.Op, len(prog.Ops))
	copy(once, prog.Ops)

	frontend.FixOrControlFlow(prog)
	if !reflect.DeepEqual(once, prog.Ops) {
		t.Fatalf("second pass changed the program:\nfirst:  %#v\nsecond: %#v", once, prog.Ops)
	}

	bc, ok := prog.Ops[1].(nsb.BranchConditional)
	if !ok || bc.TrueLabel != "Lmerge" || bc.FalseLabel != "Lmerge" {
		t.Fatalf("want both arms resolved to Lmerge, got %#v", prog.Ops[1])
	}
}
