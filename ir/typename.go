package ir

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseTypeName parses the WGSL-flavored type descriptor a resource or
// entry-point argument annotation carries ("f32", "vec3<f32>",
// "mat4x4<f32>", "array<f32,4>", "texture_2d<f32>", "sampler", ...) and
// registers the resulting type, returning its handle.
//
// This is the textual surface python_shader's own generator keys resource
// declarations on (see pyshader's argument annotation tuples); the naga
// teacher's WGSL front end parses the identical syntax for its own type
// annotations, which is why its spelling ("vec3<f32>" rather than "vec3f"
// or "float3") is kept here rather than inventing a new one.
func ParseTypeName(reg *TypeRegistry, name string) (TypeHandle, error) {
	name = strings.TrimSpace(name)

	if scalar, ok := parseScalarName(name); ok {
		return reg.GetOrCreate(name, scalar), nil
	}

	switch name {
	case "sampler":
		return reg.GetOrCreate(name, SamplerType{}), nil
	case "sampler_comparison":
		return reg.GetOrCreate(name, SamplerType{Comparison: true}), nil
	}

	head, inner, ok := splitAngles(name)
	if !ok {
		return 0, fmt.Errorf("ir: unrecognized type name %q", name)
	}

	switch {
	case head == "vec2" || head == "vec3" || head == "vec4":
		scalar, ok := parseScalarName(inner)
		if !ok {
			return 0, fmt.Errorf("ir: unrecognized vector element %q in %q", inner, name)
		}
		size := VectorSize(head[3] - '0')
		return reg.GetOrCreate(name, VectorType{Size: size, Scalar: scalar}), nil

	case strings.HasPrefix(head, "mat") && len(head) == 6:
		// matCxR, e.g. mat4x4
		scalar, ok := parseScalarName(inner)
		if !ok {
			return 0, fmt.Errorf("ir: unrecognized matrix element %q in %q", inner, name)
		}
		cols := VectorSize(head[3] - '0')
		rows := VectorSize(head[5] - '0')
		return reg.GetOrCreate(name, MatrixType{Columns: cols, Rows: rows, Scalar: scalar}), nil

	case head == "array":
		elemName, countStr, ok := strings.Cut(inner, ",")
		if !ok {
			return 0, fmt.Errorf("ir: array type %q missing length", name)
		}
		elemHandle, err := ParseTypeName(reg, strings.TrimSpace(elemName))
		if err != nil {
			return 0, err
		}
		n, err := strconv.ParseUint(strings.TrimSpace(countStr), 10, 32)
		if err != nil {
			return 0, fmt.Errorf("ir: array type %q: %w", name, err)
		}
		count := uint32(n)
		return reg.GetOrCreate(name, ArrayType{Base: elemHandle, Size: ArraySize{Constant: &count}}), nil

	case strings.HasPrefix(head, "texture_"):
		return parseTextureName(reg, name, head, inner)
	}

	return 0, fmt.Errorf("ir: unrecognized type name %q", name)
}

func parseScalarName(name string) (ScalarType, bool) {
	switch name {
	case "bool":
		return Bool, true
	case "i32":
		return Int32, true
	case "u32":
		return UInt32, true
	case "f32":
		return Float32, true
	default:
		return ScalarType{}, false
	}
}

// splitAngles splits "head<inner>" into its two parts.
func splitAngles(name string) (head, inner string, ok bool) {
	open := strings.IndexByte(name, '<')
	if open < 0 || !strings.HasSuffix(name, ">") {
		return "", "", false
	}
	return name[:open], name[open+1 : len(name)-1], true
}

func parseTextureName(reg *TypeRegistry, full, head, inner string) (TypeHandle, error) {
	storage := strings.HasPrefix(head, "texture_storage_")
	body := strings.TrimPrefix(head, "texture_")
	body = strings.TrimPrefix(body, "storage_")
	arrayed := strings.HasSuffix(body, "_array")
	body = strings.TrimSuffix(body, "_array")

	var dim ImageDimension
	switch body {
	case "1d":
		dim = Dim1D
	case "2d":
		dim = Dim2D
	case "3d":
		dim = Dim3D
	case "cube":
		dim = DimCube
	case "depth_2d":
		dim, arrayed = Dim2D, arrayed
	default:
		return 0, fmt.Errorf("ir: unrecognized texture dimension %q in %q", body, full)
	}

	img := ImageType{Dim: dim, Arrayed: arrayed, Storage: storage}

	if storage {
		format, ok := parseStorageFormatToken(inner)
		if !ok {
			return 0, fmt.Errorf("ir: unrecognized storage format %q in %q", inner, full)
		}
		img.Format = format
		img.SampleType = storageFormatSampleType(format)
	} else {
		scalar, ok := parseScalarName(inner)
		if !ok {
			return 0, fmt.Errorf("ir: unrecognized texture sample type %q in %q", inner, full)
		}
		switch scalar.Kind {
		case ScalarSint:
			img.SampleType = ImageSampleSint
		case ScalarUint:
			img.SampleType = ImageSampleUint
		default:
			img.SampleType = ImageSampleFloat
		}
	}
	if strings.HasPrefix(body, "depth_") {
		img.SampleType = ImageSampleDepth
	}

	return reg.GetOrCreate(full, img), nil
}

var storageFormatTokens = map[string]StorageFormat{
	"rgba8unorm":  StorageFormatRgba8Unorm,
	"rgba8snorm":  StorageFormatRgba8Snorm,
	"rgba8uint":   StorageFormatRgba8Uint,
	"rgba8sint":   StorageFormatRgba8Sint,
	"rgba16uint":  StorageFormatRgba16Uint,
	"rgba16sint":  StorageFormatRgba16Sint,
	"rgba16float": StorageFormatRgba16Float,
	"r32uint":     StorageFormatR32Uint,
	"r32sint":     StorageFormatR32Sint,
	"r32float":    StorageFormatR32Float,
	"rgba32uint":  StorageFormatRgba32Uint,
	"rgba32sint":  StorageFormatRgba32Sint,
	"rgba32float": StorageFormatRgba32Float,
}

func parseStorageFormatToken(token string) (StorageFormat, bool) {
	f, ok := storageFormatTokens[token]
	return f, ok
}

func storageFormatSampleType(f StorageFormat) ImageSampleType {
	switch f {
	case StorageFormatR8Uint, StorageFormatR16Uint, StorageFormatRg8Uint, StorageFormatRg16Uint,
		StorageFormatR32Uint, StorageFormatRgba8Uint, StorageFormatRgba16Uint, StorageFormatRgba32Uint,
		StorageFormatRgb10a2Uint:
		return ImageSampleUint
	case StorageFormatR8Sint, StorageFormatR16Sint, StorageFormatRg8Sint, StorageFormatRg16Sint,
		StorageFormatR32Sint, StorageFormatRgba8Sint, StorageFormatRgba16Sint, StorageFormatRgba32Sint:
		return ImageSampleSint
	default:
		return ImageSampleFloat
	}
}
