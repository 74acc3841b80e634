package frontend

import "github.com/shaderlab/nsbc/nsb"

// FixOrControlFlow collapses the trivial "pop and merge" blocks that
// short-circuit and/or translation leaves behind: a label whose entire
// block is just a stack pop followed by an unconditional branch to the
// real merge point. Folding these into whichever conditional branch reaches
// them keeps every remaining label load-bearing before FixConsistentLabels
// renumbers the survivors.
//
// Ported from pyshader's _fix_or_control_flow, generalized from the four
// JUMP_IF_TRUE_OR_POP/JUMP_IF_FALSE_OR_POP shapes CPython can produce down
// to the single shape this dialect's translator ever emits.
func FixOrControlFlow(prog *nsb.Program) {
	blocks := indexLabelBlocks(prog.Ops)

	inline := map[string]string{}
	for name, block := range blocks {
		if len(block) != 2 {
			continue
		}
		if _, ok := block[0].(nsb.PopTop); !ok {
			continue
		}
		if br, ok := block[1].(nsb.Branch); ok {
			inline[name] = br.Label
		}
	}
	if len(inline) == 0 {
		return
	}

	resolve := func(name string) string {
		seen := map[string]bool{}
		for {
			nxt, ok := inline[name]
			if !ok || seen[name] {
				return name
			}
			seen[name] = true
			name = nxt
		}
	}

	for i, op := range prog.Ops {
		switch o := op.(type) {
		case nsb.BranchConditional:
			o.TrueLabel = resolve(o.TrueLabel)
			o.FalseLabel = resolve(o.FalseLabel)
			prog.Ops[i] = o
		case nsb.Branch:
			o.Label = resolve(o.Label)
			prog.Ops[i] = o
		}
	}
}

// indexLabelBlocks maps each label name to the ops between its Label
// marker and the next Label marker (exclusive), so callers can pattern
// match on a block's shape without re-scanning the whole stream per label.
func indexLabelBlocks(ops []nsb.Op) map[string][]nsb.Op {
	blocks := map[string][]nsb.Op{}
	var current string
	var have bool
	for _, op := range ops {
		if lbl, ok := op.(nsb.Label); ok {
			current = lbl.Name
			have = true
			blocks[current] = nil
			continue
		}
		if have {
			blocks[current] = append(blocks[current], op)
		}
	}
	return blocks
}
