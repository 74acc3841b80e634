package emit_test

import (
	"encoding/binary"
	"testing"

	"github.com/shaderlab/nsbc/emit"
	"github.com/shaderlab/nsbc/spirv"
)

func TestModuleBuilderHeader(t *testing.T) {
	b := emit.NewModuleBuilder(spirv.Version1_3)
	b.AddCapability(spirv.CapabilityShader)
	b.SetMemoryModel(spirv.AddressingModelLogical, spirv.MemoryModelGLSL450)

	data, err := b.Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if len(data) < 20 {
		t.Fatalf("module too short: %d bytes", len(data))
	}
	magic := binary.LittleEndian.Uint32(data[0:4])
	if magic != spirv.MagicNumber {
		t.Errorf("magic number: got %#x, want %#x", magic, spirv.MagicNumber)
	}
	bound := binary.LittleEndian.Uint32(data[12:16])
	if bound == 0 {
		t.Errorf("id bound should be nonzero")
	}
}

func TestModuleBuilderAllocatesDistinctIDs(t *testing.T) {
	b := emit.NewModuleBuilder(spirv.Version1_3)
	a := b.AllocID()
	c := b.AllocID()
	if a == c {
		t.Fatalf("AllocID returned the same id twice: %d", a)
	}
}

func TestModuleBuilderLabelIDIsMemoized(t *testing.T) {
	b := emit.NewModuleBuilder(spirv.Version1_3)
	first := b.LabelID("L1")
	second := b.LabelID("L1")
	if first != second {
		t.Fatalf("LabelID(%q) returned different ids: %d and %d", "L1", first, second)
	}
	other := b.LabelID("L2")
	if other == first {
		t.Fatalf("distinct labels got the same id")
	}
}

func TestModuleBuilderUnresolvedPlaceholderFailsBuild(t *testing.T) {
	b := emit.NewModuleBuilder(spirv.Version1_3)
	void := b.AddTypeVoid()
	fn := b.AddTypeFunction(void)
	b.AddFunction(fn, void, spirv.FunctionControlNone)
	b.PlaceLabel("entry")

	ph := emit.NewPlaceholder()
	b.AddBranch(ph)
	b.AddFunctionEnd()

	if _, err := b.Build(); err == nil {
		t.Fatal("Build should fail with an unresolved branch placeholder")
	}
}

func TestModuleBuilderResolvedPlaceholderBuilds(t *testing.T) {
	b := emit.NewModuleBuilder(spirv.Version1_3)
	void := b.AddTypeVoid()
	fn := b.AddTypeFunction(void)
	b.AddFunction(fn, void, spirv.FunctionControlNone)
	b.PlaceLabel("entry")

	ph := emit.NewPlaceholder()
	ph.Set(b.LabelID("loop"))
	b.AddBranch(ph)
	b.PlaceLabel("loop")
	b.AddReturn()
	b.AddFunctionEnd()

	if _, err := b.Build(); err != nil {
		t.Fatalf("Build: %v", err)
	}
}
