package cfg_test

import (
	"testing"

	"github.com/shaderlab/nsbc/cfg"
)

type cell struct{ value string }

func (c *cell) Resolve(label string) { c.value = label }

func TestIfElseMergesAtSharedLabel(t *testing.T) {
	tree := cfg.New()

	mergeCell := &cell{}
	trueCell := &cell{}
	falseCell := &cell{}
	tree.Conditional("L2", trueCell, "L3", falseCell, mergeCell)

	steps := tree.Label("L2")
	if len(steps) != 1 || !steps[0].Final || steps[0].Label != "L2" {
		t.Fatalf("unexpected steps at true arm: %#v", steps)
	}

	thenBranch := &cell{}
	tree.Branch("L4", thenBranch)

	steps = tree.Label("L3")
	if len(steps) != 1 || !steps[0].Final || steps[0].Label != "L3" {
		t.Fatalf("unexpected steps at false arm: %#v", steps)
	}

	elseBranch := &cell{}
	tree.Branch("L4", elseBranch)

	steps = tree.Label("L4")
	if len(steps) != 1 || !steps[0].Final || steps[0].Label != "L4" {
		t.Fatalf("unexpected steps at merge: %#v", steps)
	}
	if thenBranch.value != "L4" || elseBranch.value != "L4" {
		t.Fatalf("branch placeholders not resolved to merge label: then=%q else=%q", thenBranch.value, elseBranch.value)
	}
	if mergeCell.value != "L4" {
		t.Fatalf("selection merge placeholder not resolved, got %q", mergeCell.value)
	}
}

func TestDoubleConvergenceSynthesizesHop(t *testing.T) {
	tree := cfg.New()

	m1 := &cell{}
	tree.Conditional("A", &cell{}, "B", &cell{}, m1)
	tree.Label("A")
	b1 := &cell{}
	tree.Branch("M", b1)

	tree.Label("B")
	m2 := &cell{}
	tree.Conditional("C", &cell{}, "D", &cell{}, m2)
	tree.Label("C")
	b2 := &cell{}
	tree.Branch("M", b2)
	tree.Label("D")
	b3 := &cell{}
	tree.Branch("M", b3)

	steps := tree.Label("M")
	if len(steps) < 2 {
		t.Fatalf("expected a synthesized hop before the real merge, got %#v", steps)
	}
	if steps[len(steps)-1].Label != "M" || !steps[len(steps)-1].Final {
		t.Fatalf("last step should be the final real label, got %#v", steps)
	}
	for _, s := range steps[:len(steps)-1] {
		if s.Final {
			t.Errorf("non-final step marked final: %#v", s)
		}
	}
}
