package compiler_test

import (
	"encoding/binary"
	"testing"

	"github.com/shaderlab/nsbc/compiler"
	"github.com/shaderlab/nsbc/spirv"
)

const passthroughFragment = `{
	"name": "fragment_main",
	"args": [{"name": "color", "kind": "output", "slot": 0, "typename": "vec4<f32>"}],
	"program": [
		{"addr": 0, "op": "load_const", "const": 1.0},
		{"addr": 1, "op": "load_const", "const": 1.0},
		{"addr": 2, "op": "load_const", "const": 1.0},
		{"addr": 3, "op": "load_const", "const": 1.0},
		{"addr": 4, "op": "call_function", "str_arg": "vec4<f32>", "int_arg": 4},
		{"addr": 5, "op": "store_local", "str_arg": "color"},
		{"addr": 6, "op": "return_value", "int_arg": 0}
	]
}`

func TestCompileSimpleFragment(t *testing.T) {
	mod, err := compiler.Compile([]byte(passthroughFragment))
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if mod.Stage != "fragment" {
		t.Errorf("stage: got %q, want fragment", mod.Stage)
	}
	if magic := binary.LittleEndian.Uint32(mod.Binary[0:4]); magic != spirv.MagicNumber {
		t.Errorf("magic number: got %#x, want %#x", magic, spirv.MagicNumber)
	}
}

func TestCompileIsDeterministic(t *testing.T) {
	a, err := compiler.Compile([]byte(passthroughFragment))
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	b, err := compiler.Compile([]byte(passthroughFragment))
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if len(a.Binary) != len(b.Binary) {
		t.Fatalf("binary length differs across runs: %d vs %d", len(a.Binary), len(b.Binary))
	}
	for i := range a.Binary {
		if a.Binary[i] != b.Binary[i] {
			t.Fatalf("binary differs at byte %d across runs", i)
		}
	}
}

func TestCompileRejectsAmbiguousName(t *testing.T) {
	doc := `{"name": "main", "args": [], "program": [{"addr": 0, "op": "return_value"}]}`
	if _, err := compiler.Compile([]byte(doc)); err == nil {
		t.Fatal("expected an error for an entry point name with no stage keyword")
	}
}

func TestCompileRejectsDuplicateSlot(t *testing.T) {
	doc := `{
		"name": "fragment_main",
		"args": [
			{"name": "a", "kind": "output", "slot": 0, "typename": "f32"},
			{"name": "b", "kind": "output", "slot": 0, "typename": "f32"}
		],
		"program": [{"addr": 0, "op": "return_value"}]
	}`
	if _, err := compiler.Compile([]byte(doc)); err == nil {
		t.Fatal("expected an error for two outputs sharing slot 0")
	}
}

func TestCompileRejectsMalformedJSON(t *testing.T) {
	if _, err := compiler.Compile([]byte("not json")); err == nil {
		t.Fatal("expected an error for malformed JSON")
	}
}
