package ir_test

import (
	"testing"

	"github.com/shaderlab/nsbc/ir"
)

func TestParseTypeNameScalarsAndVectors(t *testing.T) {
	reg := ir.NewTypeRegistry()

	f32, err := ir.ParseTypeName(reg, "f32")
	if err != nil {
		t.Fatalf("f32: %v", err)
	}
	typ, _ := reg.Lookup(f32)
	if _, ok := typ.Inner.(ir.ScalarType); !ok {
		t.Fatalf("f32 did not resolve to a scalar type: %#v", typ.Inner)
	}

	vec, err := ir.ParseTypeName(reg, "vec4<f32>")
	if err != nil {
		t.Fatalf("vec4<f32>: %v", err)
	}
	vt, _ := reg.Lookup(vec)
	v, ok := vt.Inner.(ir.VectorType)
	if !ok || v.Size != ir.Vec4 {
		t.Fatalf("vec4<f32> did not resolve to a 4-vector: %#v", vt.Inner)
	}

	again, err := ir.ParseTypeName(reg, "vec4<f32>")
	if err != nil {
		t.Fatalf("second parse: %v", err)
	}
	if again != vec {
		t.Fatalf("vec4<f32> parsed twice should intern to the same handle, got %d and %d", vec, again)
	}
}

func TestParseTypeNameMatrixAndArray(t *testing.T) {
	reg := ir.NewTypeRegistry()

	mat, err := ir.ParseTypeName(reg, "mat4x4<f32>")
	if err != nil {
		t.Fatalf("mat4x4<f32>: %v", err)
	}
	mt, _ := reg.Lookup(mat)
	m, ok := mt.Inner.(ir.MatrixType)
	if !ok || m.Columns != 4 || m.Rows != 4 {
		t.Fatalf("mat4x4<f32> did not resolve to a 4x4 matrix: %#v", mt.Inner)
	}

	arr, err := ir.ParseTypeName(reg, "array<f32,6>")
	if err != nil {
		t.Fatalf("array<f32,6>: %v", err)
	}
	at, _ := reg.Lookup(arr)
	a, ok := at.Inner.(ir.ArrayType)
	if !ok || a.Size.Constant == nil || *a.Size.Constant != 6 {
		t.Fatalf("array<f32,6> did not resolve to a 6-element array: %#v", at.Inner)
	}
}

func TestParseTypeNameTexturesAndSampler(t *testing.T) {
	reg := ir.NewTypeRegistry()

	sampler, err := ir.ParseTypeName(reg, "sampler")
	if err != nil {
		t.Fatalf("sampler: %v", err)
	}
	st, _ := reg.Lookup(sampler)
	if _, ok := st.Inner.(ir.SamplerType); !ok {
		t.Fatalf("sampler did not resolve to a sampler type: %#v", st.Inner)
	}

	tex, err := ir.ParseTypeName(reg, "texture_2d<f32>")
	if err != nil {
		t.Fatalf("texture_2d<f32>: %v", err)
	}
	tt, _ := reg.Lookup(tex)
	img, ok := tt.Inner.(ir.ImageType)
	if !ok || img.Dim != ir.Dim2D || img.Storage {
		t.Fatalf("texture_2d<f32> did not resolve to a sampled 2D image: %#v", tt.Inner)
	}

	storageTex, err := ir.ParseTypeName(reg, "texture_storage_2d<rgba8unorm>")
	if err != nil {
		t.Fatalf("texture_storage_2d<rgba8unorm>: %v", err)
	}
	stt, _ := reg.Lookup(storageTex)
	simg, ok := stt.Inner.(ir.ImageType)
	if !ok || !simg.Storage || simg.Format != ir.StorageFormatRgba8Unorm {
		t.Fatalf("texture_storage_2d<rgba8unorm> did not resolve to a storage image: %#v", stt.Inner)
	}
}

func TestParseTypeNameRejectsUnknown(t *testing.T) {
	reg := ir.NewTypeRegistry()
	if _, err := ir.ParseTypeName(reg, "not_a_type"); err == nil {
		t.Fatal("expected an error for an unrecognized type name")
	}
}
