package nsb_test

import (
	"encoding/json"
	"reflect"
	"testing"

	"github.com/shaderlab/nsbc/nsb"
)

func TestProgramJSONRoundtrip(t *testing.T) {
	prog := nsb.Program{Ops: []nsb.Op{
		nsb.EntryPoint{Name: "main", Stage: "fragment", Args: []nsb.Arg{
			{Name: "color", Kind: "output", Slot: 0, TypeName: "vec4"},
		}},
		nsb.LoadConstant{Value: 1.0},
		nsb.StoreName{Name: "color"},
		nsb.Label{Name: "L1"},
		nsb.LoadName{Name: "color"},
		nsb.Return{HasValue: true},
		nsb.FuncEnd{},
	}}

	data, err := json.Marshal(prog)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var got nsb.Program
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if !reflect.DeepEqual(prog.Ops[0], got.Ops[0]) {
		t.Errorf("entrypoint mismatch: got %#v, want %#v", got.Ops[0], prog.Ops[0])
	}
	if len(got.Ops) != len(prog.Ops) {
		t.Fatalf("op count: got %d, want %d", len(got.Ops), len(prog.Ops))
	}
	for i := range prog.Ops {
		if prog.Ops[i].Tag() != got.Ops[i].Tag() {
			t.Errorf("op %d tag: got %s, want %s", i, got.Ops[i].Tag(), prog.Ops[i].Tag())
		}
	}
}

func TestProgramJSONIsArrayOfTuples(t *testing.T) {
	prog := nsb.Program{Ops: []nsb.Op{nsb.PopTop{}, nsb.Branch{Label: "L1"}}}
	data, err := json.Marshal(prog)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("not a JSON array: %v", err)
	}
	if len(raw) != 2 {
		t.Fatalf("want 2 tuples, got %d", len(raw))
	}
	var tuple []json.RawMessage
	if err := json.Unmarshal(raw[1], &tuple); err != nil {
		t.Fatalf("tuple not array: %v", err)
	}
	if len(tuple) != 2 {
		t.Fatalf("branch tuple should be [tag, label], got %d elements", len(tuple))
	}
}
