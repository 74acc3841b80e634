package frontend

import (
	"fmt"

	"github.com/shaderlab/nsbc/nsb"
)

// FixEmptyBlocks removes labels whose block holds nothing but the next
// label, redirecting every branch that targeted the empty label to
// whatever label it ultimately falls through to. Labels named in protected
// are kept even when empty, since the translator relies on them existing
// as an address a later loop iteration can still target.
//
// Ported from pyshader's _fix_empty_blocks.
func FixEmptyBlocks(prog *nsb.Program, protected map[string]bool) {
	ops := prog.Ops
	nextLabel := map[string]string{}
	for i := 0; i < len(ops)-1; i++ {
		lbl, ok := ops[i].(nsb.Label)
		if !ok {
			continue
		}
		if next, ok := ops[i+1].(nsb.Label); ok {
			nextLabel[lbl.Name] = next.Name
		}
	}

	var resolve func(name string) string
	resolve = func(name string) string {
		if protected[name] {
			return name
		}
		if nxt, ok := nextLabel[name]; ok && nxt != name {
			return resolve(nxt)
		}
		return name
	}

	drop := map[string]bool{}
	for name := range nextLabel {
		if !protected[name] {
			drop[name] = true
		}
	}

	out := make([]nsb.Op, 0, len(ops))
	for _, op := range ops {
		switch o := op.(type) {
		case nsb.Label:
			if drop[o.Name] {
				continue
			}
			out = append(out, o)
		case nsb.Branch:
			o.Label = resolve(o.Label)
			out = append(out, o)
		case nsb.BranchConditional:
			o.TrueLabel = resolve(o.TrueLabel)
			o.FalseLabel = resolve(o.FalseLabel)
			out = append(out, o)
		case nsb.BranchLoop:
			o.HeaderLabel = resolve(o.HeaderLabel)
			o.MergeLabel = resolve(o.MergeLabel)
			o.ContinueLabel = resolve(o.ContinueLabel)
			out = append(out, o)
		default:
			out = append(out, op)
		}
	}
	prog.Ops = out
}

// FixConsistentLabels renumbers every label in the program to the
// canonical L1..Lk sequence, in order of first appearance, so the labels
// a caller sees reflect this compiler's naming rather than whatever
// addresses or loop indices they were derived from.
//
// Ported from pyshader's _fix_consistent_labels.
func FixConsistentLabels(prog *nsb.Program) {
	remap := map[string]string{}
	next := 0
	assign := func(name string) string {
		if r, ok := remap[name]; ok {
			return r
		}
		next++
		r := fmt.Sprintf("L%d", next)
		remap[name] = r
		return r
	}

	for i, op := range prog.Ops {
		if lbl, ok := op.(nsb.Label); ok {
			prog.Ops[i] = nsb.Label{Name: assign(lbl.Name)}
		}
	}
	for i, op := range prog.Ops {
		switch o := op.(type) {
		case nsb.Branch:
			o.Label = assign(o.Label)
			prog.Ops[i] = o
		case nsb.BranchConditional:
			o.TrueLabel = assign(o.TrueLabel)
			o.FalseLabel = assign(o.FalseLabel)
			prog.Ops[i] = o
		case nsb.BranchLoop:
			o.HeaderLabel = assign(o.HeaderLabel)
			o.MergeLabel = assign(o.MergeLabel)
			o.ContinueLabel = assign(o.ContinueLabel)
			prog.Ops[i] = o
		}
	}
}
