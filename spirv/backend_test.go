package spirv_test

import (
	"encoding/binary"
	"strings"
	"testing"

	"github.com/shaderlab/nsbc/disasm"
	"github.com/shaderlab/nsbc/nsb"
	"github.com/shaderlab/nsbc/spirv"
)

func TestGenerateSimplePassthroughFragment(t *testing.T) {
	prog := &nsb.Program{Ops: []nsb.Op{
		nsb.EntryPoint{Name: "main", Stage: "fragment", Args: []nsb.Arg{
			{Name: "color", Kind: "output", Slot: 0, TypeName: "vec4<f32>"},
		}},
		nsb.LoadConstant{Value: 1.0},
		nsb.LoadConstant{Value: 1.0},
		nsb.LoadConstant{Value: 1.0},
		nsb.LoadConstant{Value: 1.0},
		nsb.Call{Name: "vec4<f32>", NArgs: 4},
		nsb.StoreName{Name: "color"},
		nsb.Return{HasValue: false},
		nsb.FuncEnd{},
	}}

	data, err := spirv.Generate(prog, spirv.DefaultOptions())
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if len(data) < 20 {
		t.Fatalf("module too short: %d bytes", len(data))
	}
	if magic := binary.LittleEndian.Uint32(data[0:4]); magic != spirv.MagicNumber {
		t.Errorf("magic number: got %#x, want %#x", magic, spirv.MagicNumber)
	}
}

func TestGenerateVectorPackWithConversion(t *testing.T) {
	// vec4(f, ivec3) packs a scalar float with a 3-int vector, converting
	// the ints to float before composing — scenario S5.
	prog := &nsb.Program{Ops: []nsb.Op{
		nsb.EntryPoint{Name: "main", Stage: "vertex", Args: []nsb.Arg{
			{Name: "position", Kind: "output", Slot: 0, TypeName: "vec4<f32>"},
		}},
		nsb.Resource{Kind: "input", Name: "offset", Slot: 0, TypeName: "vec3<i32>"},
		nsb.LoadConstant{Value: 1.0},
		nsb.LoadName{Name: "offset"},
		nsb.Call{Name: "vec4<f32>", NArgs: 2},
		nsb.StoreName{Name: "position"},
		nsb.Return{HasValue: false},
		nsb.FuncEnd{},
	}}

	data, err := spirv.Generate(prog, spirv.DefaultOptions())
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	text, err := disasm.Disassemble(data)
	if err != nil {
		t.Fatalf("Disassemble: %v", err)
	}
	if n := strings.Count(text, "OpConvertSToF"); n != 3 {
		t.Fatalf("want 3 OpConvertSToF (one per ivec3 component), got %d:\n%s", n, text)
	}
	if n := strings.Count(text, "OpCompositeConstruct"); n != 1 {
		t.Fatalf("want exactly 1 OpCompositeConstruct, got %d:\n%s", n, text)
	}
	if strings.Index(text, "OpCompositeConstruct") < strings.LastIndex(text, "OpConvertSToF") {
		t.Fatalf("want all three OpConvertSToF before the OpCompositeConstruct that packs them:\n%s", text)
	}
}

// TestGenerateTextureSample covers scenario S6: sampling a texture combines
// it with a sampler via OpSampledImage, then reads it back with an
// explicit, constant-zero LOD rather than the implicit-derivative form.
func TestGenerateTextureSample(t *testing.T) {
	prog := &nsb.Program{Ops: []nsb.Op{
		nsb.EntryPoint{Name: "main", Stage: "fragment", Args: []nsb.Arg{
			{Name: "color", Kind: "output", Slot: 0, TypeName: "vec4<f32>"},
		}},
		nsb.Resource{Kind: "texture", Name: "tex", Slot: 0, Group: 0, TypeName: "texture_2d<f32>"},
		nsb.Resource{Kind: "sampler", Name: "samp", Slot: 1, Group: 0, TypeName: "sampler"},
		nsb.LoadName{Name: "tex"},
		nsb.LoadName{Name: "samp"},
		nsb.LoadConstant{Value: 0.0},
		nsb.LoadConstant{Value: 0.0},
		nsb.Call{Name: "vec2<f32>", NArgs: 2},
		nsb.Call{Name: "texture.sample", NArgs: 3},
		nsb.StoreName{Name: "color"},
		nsb.Return{HasValue: false},
		nsb.FuncEnd{},
	}}

	data, err := spirv.Generate(prog, spirv.DefaultOptions())
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	text, err := disasm.Disassemble(data)
	if err != nil {
		t.Fatalf("Disassemble: %v", err)
	}

	sampledImageAt := strings.Index(text, "OpSampledImage")
	sampleAt := strings.Index(text, "OpImageSampleExplicitLod")
	if sampledImageAt < 0 || sampleAt < 0 {
		t.Fatalf("want both OpSampledImage and OpImageSampleExplicitLod, got:\n%s", text)
	}
	if sampledImageAt > sampleAt {
		t.Fatalf("want OpSampledImage before OpImageSampleExplicitLod, got:\n%s", text)
	}
	if !strings.Contains(text, "OpImageSampleExplicitLod") || !strings.Contains(text, " 2 ") {
		t.Fatalf("want the sample to carry the explicit-Lod image operand (2), got:\n%s", text)
	}
	if !strings.Contains(text, "OpConstant") {
		t.Fatalf("want a constant for the LOD value, got:\n%s", text)
	}
}

// TestGenerateStoresSingleConstant covers property 7: a function that
// stores one literal into its output disassembles to exactly one OpStore
// of that constant, with no stray variable-promotion machinery for a name
// that never crosses a block boundary.
func TestGenerateStoresSingleConstant(t *testing.T) {
	prog := &nsb.Program{Ops: []nsb.Op{
		nsb.EntryPoint{Name: "main", Stage: "fragment", Args: []nsb.Arg{
			{Name: "color", Kind: "output", Slot: 0, TypeName: "f32"},
		}},
		nsb.LoadConstant{Value: 0.5},
		nsb.StoreName{Name: "color"},
		nsb.Return{HasValue: false},
		nsb.FuncEnd{},
	}}

	data, err := spirv.Generate(prog, spirv.DefaultOptions())
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	text, err := disasm.Disassemble(data)
	if err != nil {
		t.Fatalf("Disassemble: %v", err)
	}
	if n := strings.Count(text, "OpStore"); n != 1 {
		t.Fatalf("want exactly 1 OpStore, got %d:\n%s", n, text)
	}
	if n := strings.Count(text, "OpConstant "); n != 1 {
		t.Fatalf("want exactly 1 scalar OpConstant, got %d:\n%s", n, text)
	}
}

func TestGenerateBranchingFunction(t *testing.T) {
	prog := &nsb.Program{Ops: []nsb.Op{
		nsb.EntryPoint{Name: "main", Stage: "fragment", Args: []nsb.Arg{
			{Name: "color", Kind: "output", Slot: 0, TypeName: "f32"},
		}},
		nsb.LoadConstant{Value: 1.0},
		nsb.LoadConstant{Value: 0.0},
		nsb.Compare{Op: "gt"},
		nsb.BranchConditional{TrueLabel: "L1", FalseLabel: "L2"},
		nsb.Label{Name: "L1"},
		nsb.LoadConstant{Value: 1.0},
		nsb.StoreName{Name: "color"},
		nsb.Branch{Label: "L3"},
		nsb.Label{Name: "L2"},
		nsb.LoadConstant{Value: 0.0},
		nsb.StoreName{Name: "color"},
		nsb.Branch{Label: "L3"},
		nsb.Label{Name: "L3"},
		nsb.Return{HasValue: false},
		nsb.FuncEnd{},
	}}

	if _, err := spirv.Generate(prog, spirv.DefaultOptions()); err != nil {
		t.Fatalf("Generate: %v", err)
	}
}

func TestGenerateRejectsUndefinedName(t *testing.T) {
	prog := &nsb.Program{Ops: []nsb.Op{
		nsb.EntryPoint{Name: "main", Stage: "fragment"},
		nsb.LoadName{Name: "nope"},
		nsb.FuncEnd{},
	}}
	if _, err := spirv.Generate(prog, spirv.DefaultOptions()); err == nil {
		t.Fatal("expected an error for an undefined name")
	}
}
