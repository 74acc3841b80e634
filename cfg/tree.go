// Package cfg reconstructs the structured control-flow tree the SPIR-V back
// end needs from a flat stream of branch/branch_conditional/label ops: which
// pairs of branches converge at which label, and, when more than one pair
// converges at the same label, the extra "hop" blocks SPIR-V's one-merge-
// per-label rule forces into existence.
//
// Ported from python_shader's Bytecode2SpirVGenerator.co_label/co_branch/
// co_branch_conditional: SPIR-V lets a block have at most one
// OpSelectionMerge, so when two independent conditionals both resolve at
// the same label, their merges have to be chained through synthetic
// intermediate blocks rather than landing on the real label directly.
package cfg

import (
	"fmt"
	"sort"
)

// LabelPlaceholder receives the label name a forward branch was pointed at,
// once the real block that code lands on is known. The emit layer
// implements this over its own mutable word cells.
type LabelPlaceholder interface {
	Resolve(label string)
}

type branch struct {
	parent            *branch
	depth             int
	children          [2]*branch
	label             string
	branchPlaceholder LabelPlaceholder
	mergePlaceholder  LabelPlaceholder
}

// Tree tracks the nested branch structure of one function body as its
// bytecode stream is translated, one block at a time.
type Tree struct {
	root    *branch
	current *branch
}

// New starts a tree whose current block is the function's entry block.
func New() *Tree {
	root := &branch{label: ""}
	return &Tree{root: root, current: root}
}

// Branch records an unconditional jump out of the current block to label.
// placeholder is resolved to the real, post-merge label once Label
// processes an arrival at label.
func (t *Tree) Branch(label string, placeholder LabelPlaceholder) {
	if t.current == nil {
		panic("cfg: branch with no active block")
	}
	t.current.label = label
	t.current.branchPlaceholder = placeholder
	t.current = nil
}

// Conditional records a two-way branch out of the current block. Each of
// trueHolder/falseHolder is resolved to its arm's real post-merge label;
// mergeHolder is resolved to the point the two arms converge, for the
// OpSelectionMerge instruction that must be emitted before the branch.
func (t *Tree) Conditional(trueLabel string, trueHolder LabelPlaceholder, falseLabel string, falseHolder LabelPlaceholder, mergeHolder LabelPlaceholder) {
	cur := t.current
	if cur == nil {
		panic("cfg: conditional branch with no active block")
	}
	cur.children[0] = &branch{parent: cur, depth: cur.depth + 1, label: trueLabel, branchPlaceholder: trueHolder}
	cur.children[1] = &branch{parent: cur, depth: cur.depth + 1, label: falseLabel, branchPlaceholder: falseHolder}
	cur.mergePlaceholder = mergeHolder
	t.current = nil
}

// Step is one label block the caller must emit, in order, while resolving
// an arrival at a label. Only the last Step is Final; every earlier one is
// a synthetic hop block the caller must close with an unconditional branch
// to the following Step's Label.
type Step struct {
	Label string
	Final bool
}

// Label processes arrival at label: finds every leaf branch still pointed
// at it, merges sibling pairs bottom-up, and returns the sequence of
// label blocks that must be emitted to land all of them at the same place.
// After Label returns, the tree's current block is the merged block.
func (t *Tree) Label(label string) []Step {
	var leaves []*branch
	var collect func(b *branch)
	collect = func(b *branch) {
		if b.children[0] != nil {
			collect(b.children[0])
			collect(b.children[1])
			return
		}
		if b.label == label {
			leaves = append(leaves, b)
		}
	}
	collect(t.root)

	var merged []*branch
	for {
		sort.SliceStable(leaves, func(i, j int) bool { return leaves[i].depth > leaves[j].depth })
		var toMerge *branch
		for _, b := range leaves {
			p := b.parent
			if p != nil && p.children[0] != nil && p.children[1] != nil && p.children[0].label == p.children[1].label {
				toMerge = p
				break
			}
		}
		if toMerge == nil {
			break
		}
		toMerge.label = toMerge.children[0].label
		leaves = removeBranch(leaves, toMerge.children[0])
		leaves = removeBranch(leaves, toMerge.children[1])
		leaves = append(leaves, toMerge)
		merged = append(merged, toMerge)
	}

	if len(leaves) != 1 {
		panic(fmt.Sprintf("cfg: label %q should converge to exactly one branch, found %d", label, len(leaves)))
	}
	t.current = leaves[0]

	// A leaf that never took part in a merge lands directly on the real
	// label; only a merged leaf gets redirected to a synthetic hop.
	if len(merged) == 0 && leaves[0].branchPlaceholder != nil {
		leaves[0].branchPlaceholder.Resolve(label)
	}

	hopLabels := make([]string, 0, len(merged))
	for i := 0; i < len(merged)-1; i++ {
		hopLabels = append(hopLabels, fmt.Sprintf("%s-hop-%d", label, i+1))
	}
	hopLabels = append(hopLabels, label)

	steps := make([]Step, 0, len(hopLabels))
	for i, b := range merged {
		name := hopLabels[i]
		final := i == len(hopLabels)-1
		steps = append(steps, Step{Label: name, Final: final})

		for _, child := range b.children {
			if child != nil && child.branchPlaceholder != nil {
				child.branchPlaceholder.Resolve(name)
			}
		}
		if b.mergePlaceholder != nil {
			b.mergePlaceholder.Resolve(name)
		}
		b.children = [2]*branch{}
	}
	if len(steps) == 0 {
		steps = append(steps, Step{Label: label, Final: true})
	}
	return steps
}

func removeBranch(leaves []*branch, target *branch) []*branch {
	out := leaves[:0]
	for _, b := range leaves {
		if b != target {
			out = append(out, b)
		}
	}
	return out
}
