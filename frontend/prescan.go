package frontend

import (
	"fmt"
	"sort"

	"github.com/shaderlab/nsbc/source"
)

// LoopRecord describes one loop detected by PrescanLoops: the addresses
// that bound it in the source stream, and the five canonical labels the
// translator scaffolds around it (header, iter, continue, body, merge).
//
// Ported from pyshader's _pre_detect_loop: a loop is recognized purely from
// a backward jump in the source stream, never from explicit loop syntax.
type LoopRecord struct {
	Kind             string // "for" or "while"
	Start            int    // address the backward jump targets
	End              int    // address the loop's merge block begins at
	FirstJumpIsToEnd bool

	HeaderLabel   string
	IterLabel     string
	ContinueLabel string
	BodyLabel     string
	MergeLabel    string

	// LabelMap resolves addresses to labels while this loop is the
	// innermost active loop: Start maps to ContinueLabel, and every
	// address in this loop's (and any already-scanned outer loop's) end
	// set maps to MergeLabel.
	LabelMap map[int]string

	// ProtectedLabels are label names that must never be collapsed by
	// empty-block elimination even if their block turns out empty.
	ProtectedLabels []string

	// ForcedLabelAddr/-Name pre-seed the address->label assignment table:
	// a while-loop whose first conditional jump lands on the merge block
	// needs its body label minted at the point the body naturally starts,
	// rather than synthesized fresh.
	ForcedLabelAddr int
	ForcedLabelName string
	HasForcedLabel  bool
}

func isLoopJump(op source.Opcode) bool {
	switch op {
	case source.OpJumpAbsolute, source.OpJumpForward, source.OpPopJumpIfFalse, source.OpPopJumpIfTrue:
		return true
	default:
		return false
	}
}

// PrescanLoops finds every loop in prog by looking for backward jumps, and
// returns one LoopRecord per loop, ordered by the address its header starts
// at (the order the translator will encounter them in).
func PrescanLoops(prog *source.Program) []*LoopRecord {
	jumps := map[int]int{}
	for _, in := range prog.Instrs {
		if isLoopJump(in.Op) {
			jumps[in.Addr] = in.Target
		}
	}

	seen := map[int]bool{}
	var loopStarts []int
	for addr, target := range jumps {
		if target < addr && !seen[target] {
			seen[target] = true
			loopStarts = append(loopStarts, target)
		}
	}
	sort.Ints(loopStarts)

	var loops []*LoopRecord
	for _, start := range loopStarts {
		loops = append(loops, prescanLoop(prog, jumps, loops, start))
	}
	return loops
}

func prescanLoop(prog *source.Program, jumps map[int]int, prevLoops []*LoopRecord, loopStart int) *LoopRecord {
	var jumpsToStart []int
	for addr, target := range jumps {
		if target < addr && target == loopStart {
			jumpsToStart = append(jumpsToStart, addr)
		}
	}
	sort.Ints(jumpsToStart)
	if len(jumpsToStart) == 0 {
		panic(fmt.Sprintf("frontend: loop start %d has no backward jump", loopStart))
	}

	lastJump := jumpsToStart[len(jumpsToStart)-1]
	ourEnds := []int{lastJump + 1}
	if instr, ok := prog.InstrAt(ourEnds[0]); ok && instr.Op == source.OpPopBlock {
		ourEnds = append(ourEnds, ourEnds[0]+1)
	}

	ends := append([]int{}, ourEnds...)
	for _, pl := range prevLoops {
		ends = append(ends, pl.Start, pl.End)
	}
	endSet := map[int]bool{}
	for _, e := range ends {
		endSet[e] = true
	}

	firstJumpIsToEnd := false
	bodyTarget := -1
	for _, in := range prog.Instrs {
		if in.Addr > loopStart && isLoopJump(in.Op) {
			target := jumps[in.Addr]
			if endSet[target] {
				firstJumpIsToEnd = true
				bodyTarget = in.Addr + 1
			}
			break
		}
	}

	hasForIter := false
	if instr, ok := prog.InstrAt(loopStart); ok {
		hasForIter = instr.Op == source.OpForIter
	}

	idx := len(prevLoops) + 1
	lr := &LoopRecord{
		Kind:             "while",
		Start:            loopStart,
		End:              ourEnds[len(ourEnds)-1],
		FirstJumpIsToEnd: firstJumpIsToEnd,
		HeaderLabel:      fmt.Sprintf("Lh%d", idx),
		IterLabel:        fmt.Sprintf("Li%d", idx),
		ContinueLabel:    fmt.Sprintf("Lc%d", idx),
		BodyLabel:        fmt.Sprintf("Lb%d", idx),
		MergeLabel:       fmt.Sprintf("Lm%d", idx),
		LabelMap:         map[int]string{},
	}
	if hasForIter {
		lr.Kind = "for"
	}

	lr.LabelMap[loopStart] = lr.ContinueLabel
	for e := range endSet {
		lr.LabelMap[e] = lr.MergeLabel
	}

	if firstJumpIsToEnd && lr.Kind == "while" {
		lr.ForcedLabelAddr = bodyTarget
		lr.ForcedLabelName = lr.BodyLabel
		lr.HasForcedLabel = true
	}

	lr.ProtectedLabels = []string{lr.IterLabel, lr.ContinueLabel, lr.MergeLabel, lr.BodyLabel}

	return lr
}
