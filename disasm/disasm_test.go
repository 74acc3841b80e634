package disasm_test

import (
	"strings"
	"testing"

	"github.com/shaderlab/nsbc/disasm"
	"github.com/shaderlab/nsbc/emit"
	"github.com/shaderlab/nsbc/spirv"
)

func TestDisassembleMinimalModule(t *testing.T) {
	b := emit.NewModuleBuilder(spirv.Version1_3)
	b.AddCapability(spirv.CapabilityShader)
	b.SetMemoryModel(spirv.AddressingModelLogical, spirv.MemoryModelGLSL450)
	data, err := b.Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	text, err := disasm.Disassemble(data)
	if err != nil {
		t.Fatalf("Disassemble: %v", err)
	}
	if !strings.Contains(text, "OpCapability Shader") {
		t.Errorf("expected OpCapability Shader in output, got:\n%s", text)
	}
	if !strings.Contains(text, "OpMemoryModel Logical GLSL450") {
		t.Errorf("expected OpMemoryModel line, got:\n%s", text)
	}
}

func TestDisassembleRejectsBadMagic(t *testing.T) {
	if _, err := disasm.Disassemble([]byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16, 17, 18, 19, 20}); err == nil {
		t.Fatal("expected an error for invalid magic number")
	}
}

func TestDisassembleRejectsTruncatedModule(t *testing.T) {
	if _, err := disasm.Disassemble([]byte{1, 2, 3}); err == nil {
		t.Fatal("expected an error for a too-short module")
	}
}
