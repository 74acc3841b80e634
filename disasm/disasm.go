// Package disasm renders a compiled SPIR-V binary as indented, commented
// pseudo-assembly: opcode name, result id, operands, and resolved
// decoration/builtin/execution-mode names, for tests and CLI inspection.
//
// Ported from gogpu-naga's cmd/spvdis disassembler CLI, generalized from a
// standalone program writing to stdout into a Disassemble function that
// returns the text as a string, plus an error instead of calling os.Exit.
package disasm

import (
	"encoding/binary"
	"fmt"
	"io"
	"strings"

	"github.com/shaderlab/nsbc/spirv"
)

var opcodeNames = map[uint16]string{
	0: "OpNop", 1: "OpUndef", 2: "OpSourceContinued", 3: "OpSource",
	4: "OpSourceExtension", 5: "OpName", 6: "OpMemberName", 7: "OpString",
	10: "OpExtension", 11: "OpExtInstImport", 12: "OpExtInst",
	14: "OpMemoryModel", 15: "OpEntryPoint", 16: "OpExecutionMode",
	17: "OpCapability", 19: "OpTypeVoid", 20: "OpTypeBool",
	21: "OpTypeInt", 22: "OpTypeFloat", 23: "OpTypeVector",
	24: "OpTypeMatrix", 25: "OpTypeImage", 26: "OpTypeSampler",
	27: "OpTypeSampledImage", 28: "OpTypeArray", 29: "OpTypeRuntimeArray",
	30: "OpTypeStruct", 31: "OpTypeOpaque", 32: "OpTypePointer",
	33: "OpTypeFunction", 41: "OpConstantTrue", 42: "OpConstantFalse",
	43: "OpConstant", 44: "OpConstantComposite", 45: "OpConstantSampler",
	46: "OpConstantNull", 48: "OpSpecConstantTrue", 49: "OpSpecConstantFalse",
	50: "OpSpecConstant", 51: "OpSpecConstantComposite", 52: "OpSpecConstantOp",
	54: "OpFunction", 55: "OpFunctionParameter", 56: "OpFunctionEnd",
	57: "OpFunctionCall", 59: "OpVariable", 60: "OpImageTexelPointer",
	61: "OpLoad", 62: "OpStore", 63: "OpCopyMemory", 64: "OpCopyMemorySized",
	65: "OpAccessChain", 66: "OpInBoundsAccessChain", 67: "OpPtrAccessChain",
	68: "OpArrayLength", 69: "OpGenericPtrMemSemantics",
	70: "OpInBoundsPtrAccessChain", 71: "OpDecorate", 72: "OpMemberDecorate",
	73: "OpDecorationGroup", 74: "OpGroupDecorate", 75: "OpGroupMemberDecorate",
	77: "OpVectorExtractDynamic", 78: "OpVectorInsertDynamic",
	79: "OpVectorShuffle", 80: "OpCompositeConstruct", 81: "OpCompositeExtract",
	82: "OpCompositeInsert", 83: "OpCopyObject", 84: "OpTranspose",
	86: "OpSampledImage", 87: "OpImageSampleImplicitLod",
	88: "OpImageSampleExplicitLod", 89: "OpImageSampleDrefImplicitLod",
	90: "OpImageSampleDrefExplicitLod", 91: "OpImageSampleProjImplicitLod",
	92: "OpImageSampleProjExplicitLod", 93: "OpImageSampleProjDrefImplicitLod",
	94: "OpImageSampleProjDrefExplicitLod", 95: "OpImageFetch",
	96: "OpImageGather", 97: "OpImageDrefGather", 98: "OpImageRead",
	99: "OpImageWrite", 100: "OpImage", 101: "OpImageQueryFormat",
	102: "OpImageQueryOrder", 103: "OpImageQuerySizeLod", 104: "OpImageQuerySize",
	105: "OpImageQueryLod", 106: "OpImageQueryLevels", 107: "OpImageQuerySamples",
	109: "OpConvertFToU", 110: "OpConvertFToS", 111: "OpConvertSToF",
	112: "OpConvertUToF", 113: "OpUConvert", 114: "OpSConvert",
	115: "OpFConvert", 116: "OpQuantizeToF16", 117: "OpConvertPtrToU",
	118: "OpSatConvertSToU", 119: "OpSatConvertUToS", 120: "OpConvertUToPtr",
	121: "OpPtrCastToGeneric", 122: "OpGenericCastToPtr",
	123: "OpGenericCastToPtrExplicit", 124: "OpBitcast",
	126: "OpSNegate", 127: "OpFNegate", 128: "OpIAdd", 129: "OpFAdd",
	130: "OpISub", 131: "OpFSub", 132: "OpIMul", 133: "OpFMul",
	134: "OpUDiv", 135: "OpSDiv", 136: "OpFDiv", 137: "OpUMod",
	138: "OpSRem", 139: "OpSMod", 140: "OpFRem", 141: "OpFMod",
	142: "OpVectorTimesScalar", 143: "OpMatrixTimesScalar",
	144: "OpVectorTimesMatrix", 145: "OpMatrixTimesVector",
	146: "OpMatrixTimesMatrix", 147: "OpOuterProduct", 148: "OpDot",
	149: "OpIAddCarry", 150: "OpISubBorrow", 151: "OpUMulExtended",
	152: "OpSMulExtended", 154: "OpAny", 155: "OpAll",
	156: "OpIsNan", 157: "OpIsInf", 158: "OpIsFinite", 159: "OpIsNormal",
	160: "OpSignBitSet", 161: "OpLessOrGreater", 162: "OpOrdered",
	163: "OpUnordered", 164: "OpLogicalEqual", 165: "OpLogicalNotEqual",
	166: "OpLogicalOr", 167: "OpLogicalAnd", 168: "OpLogicalNot",
	169: "OpSelect", 170: "OpIEqual", 171: "OpINotEqual",
	172: "OpUGreaterThan", 173: "OpSGreaterThan", 174: "OpUGreaterThanEqual",
	175: "OpSGreaterThanEqual", 176: "OpULessThan", 177: "OpSLessThan",
	178: "OpULessThanEqual", 179: "OpSLessThanEqual",
	180: "OpFOrdEqual", 181: "OpFUnordEqual", 182: "OpFOrdNotEqual",
	183: "OpFUnordNotEqual", 184: "OpFOrdLessThan", 185: "OpFUnordLessThan",
	186: "OpFOrdGreaterThan", 187: "OpFUnordGreaterThan", 188: "OpFOrdLessThanEqual",
	189: "OpFUnordLessThanEqual", 190: "OpFOrdGreaterThanEqual", 191: "OpFUnordGreaterThanEqual",
	194: "OpShiftRightLogical", 195: "OpShiftRightArithmetic",
	196: "OpShiftLeftLogical", 197: "OpBitwiseOr", 198: "OpBitwiseXor",
	199: "OpBitwiseAnd", 200: "OpNot", 201: "OpBitFieldInsert",
	202: "OpBitFieldSExtract", 203: "OpBitFieldUExtract",
	204: "OpBitReverse", 205: "OpBitCount",
	245: "OpPhi", 246: "OpLoopMerge", 247: "OpSelectionMerge",
	248: "OpLabel", 249: "OpBranch", 250: "OpBranchConditional",
	251: "OpSwitch", 252: "OpKill", 253: "OpReturn", 254: "OpReturnValue",
	255: "OpUnreachable", 256: "OpLifetimeStart", 257: "OpLifetimeStop",
}

var capabilities = map[uint32]string{
	0: "Matrix", 1: "Shader", 2: "Geometry", 3: "Tessellation",
	4: "Addresses", 5: "Linkage", 6: "Kernel", 7: "Vector16",
	8: "Float16Buffer", 9: "Float16", 10: "Float64", 11: "Int64",
	12: "Int64Atomics", 13: "ImageBasic", 14: "ImageReadWrite", 15: "ImageMipmap",
	17: "Pipes", 18: "Groups", 19: "DeviceEnqueue", 20: "LiteralSampler",
	21: "AtomicStorage", 22: "Int16", 23: "TessellationPointSize",
	24: "GeometryPointSize", 25: "ImageGatherExtended", 27: "StorageImageMultisample",
	28: "UniformBufferArrayDynamicIndexing", 29: "SampledImageArrayDynamicIndexing",
	30: "StorageBufferArrayDynamicIndexing", 31: "StorageImageArrayDynamicIndexing",
	32: "ClipDistance", 33: "CullDistance", 34: "ImageCubeArray",
	35: "SampleRateShading", 36: "ImageRect", 37: "SampledRect",
	38: "GenericPointer", 39: "Int8", 40: "InputAttachment",
	41: "SparseResidency", 42: "MinLod", 43: "Sampled1D", 44: "Image1D",
	45: "SampledCubeArray", 46: "SampledBuffer", 47: "ImageBuffer",
	48: "ImageMSArray", 49: "StorageImageExtendedFormats",
	50: "ImageQuery", 51: "DerivativeControl", 52: "InterpolationFunction",
	53: "TransformFeedback", 54: "GeometryStreams", 55: "StorageImageReadWithoutFormat",
	56: "StorageImageWriteWithoutFormat", 57: "MultiViewport",
	58: "SubgroupDispatch", 59: "NamedBarrier", 60: "PipeStorage",
	61: "GroupNonUniform", 62: "GroupNonUniformVote", 63: "GroupNonUniformArithmetic",
	64: "GroupNonUniformBallot", 65: "GroupNonUniformShuffle",
	66: "GroupNonUniformShuffleRelative", 67: "GroupNonUniformClustered",
	68: "GroupNonUniformQuad", 4423: "SubgroupBallotKHR", 4427: "DrawParameters",
	4437: "StorageBuffer16BitAccess", 4438: "UniformAndStorageBuffer16BitAccess",
	4439: "StoragePushConstant16", 4440: "StorageInputOutput16",
	4441: "DeviceGroup", 4442: "MultiView", 4445: "VariablePointersStorageBuffer",
	4446: "VariablePointers", 5009: "StencilExportEXT", 5010: "SampleMaskPostDepthCoverage",
	5013: "ShaderNonUniform", 5015: "RuntimeDescriptorArray",
	5016: "InputAttachmentArrayDynamicIndexing", 5017: "UniformTexelBufferArrayDynamicIndexing",
	5018: "StorageTexelBufferArrayDynamicIndexing", 5019: "UniformBufferArrayNonUniformIndexing",
}

var storageClasses = map[uint32]string{
	0: "UniformConstant", 1: "Input", 2: "Uniform", 3: "Output",
	4: "Workgroup", 5: "CrossWorkgroup", 6: "Private", 7: "Function",
	8: "Generic", 9: "PushConstant", 10: "AtomicCounter", 11: "Image",
	12: "StorageBuffer",
}

var decorations = map[uint32]string{
	0: "RelaxedPrecision", 1: "SpecId", 2: "Block", 3: "BufferBlock",
	4: "RowMajor", 5: "ColMajor", 6: "ArrayStride", 7: "MatrixStride",
	8: "GLSLShared", 9: "GLSLPacked", 10: "CPacked", 11: "BuiltIn",
	13: "NoPerspective", 14: "Flat", 15: "Patch", 16: "Centroid",
	17: "Sample", 18: "Invariant", 19: "Restrict", 20: "Aliased",
	21: "Volatile", 22: "Constant", 23: "Coherent", 24: "NonWritable",
	25: "NonReadable", 26: "Uniform", 28: "SaturatedConversion",
	29: "Stream", 30: "Location", 31: "Component", 32: "Index",
	33: "Binding", 34: "DescriptorSet", 35: "Offset", 36: "XfbBuffer",
	37: "XfbStride", 38: "FuncParamAttr", 39: "FPRoundingMode",
	40: "FPFastMathMode", 41: "LinkageAttributes", 42: "NoContraction",
	43: "InputAttachmentIndex", 44: "Alignment",
}

var builtins = map[uint32]string{
	0: "Position", 1: "PointSize", 3: "ClipDistance", 4: "CullDistance",
	5: "VertexId", 6: "InstanceId", 7: "PrimitiveId", 8: "InvocationId",
	9: "Layer", 10: "ViewportIndex", 11: "TessLevelOuter", 12: "TessLevelInner",
	13: "TessCoord", 14: "PatchVertices", 15: "FragCoord", 16: "PointCoord",
	17: "FrontFacing", 18: "SampleId", 19: "SamplePosition", 20: "SampleMask",
	22: "FragDepth", 23: "HelperInvocation", 24: "NumWorkgroups",
	25: "WorkgroupSize", 26: "WorkgroupId", 27: "LocalInvocationId",
	28: "GlobalInvocationId", 29: "LocalInvocationIndex",
	30: "WorkDim", 31: "GlobalSize", 32: "EnqueuedWorkgroupSize",
	33: "GlobalOffset", 34: "GlobalLinearId", 36: "SubgroupSize",
	37: "SubgroupMaxSize", 38: "NumSubgroups", 39: "NumEnqueuedSubgroups",
	40: "SubgroupId", 41: "SubgroupLocalInvocationId",
	42: "VertexIndex", 43: "InstanceIndex",
}

var executionModes = map[uint32]string{
	0: "Invocations", 1: "SpacingEqual", 2: "SpacingFractionalEven",
	3: "SpacingFractionalOdd", 4: "VertexOrderCw", 5: "VertexOrderCcw",
	6: "PixelCenterInteger", 7: "OriginUpperLeft", 8: "OriginLowerLeft",
	9: "EarlyFragmentTests", 10: "PointMode", 11: "Xfb", 12: "DepthReplacing",
	14: "DepthGreater", 15: "DepthLess", 16: "DepthUnchanged",
	17: "LocalSize", 18: "LocalSizeHint", 19: "InputPoints", 20: "InputLines",
	21: "InputLinesAdjacency", 22: "Triangles", 23: "InputTrianglesAdjacency",
	24: "Quads", 25: "Isolines", 26: "OutputVertices", 27: "OutputPoints",
	28: "OutputLineStrip", 29: "OutputTriangleStrip", 30: "VecTypeHint",
	31: "ContractionOff", 33: "Initializer", 34: "Finalizer",
	35: "SubgroupSize", 36: "SubgroupsPerWorkgroup",
}

var executionModels = map[uint32]string{
	0: "Vertex", 1: "TessellationControl", 2: "TessellationEvaluation",
	3: "Geometry", 4: "Fragment", 5: "GLCompute", 6: "Kernel",
}

var dims = map[uint32]string{
	0: "1D", 1: "2D", 2: "3D", 3: "Cube", 4: "Rect", 5: "Buffer", 6: "SubpassData",
}

func readString(data []byte, offset int, maxWords int) (string, int) {
	var sb strings.Builder
	words := 0
	for i := 0; i < maxWords*4; i++ {
		if offset+i >= len(data) {
			break
		}
		b := data[offset+i]
		if b == 0 {
			words = (i / 4) + 1
			break
		}
		sb.WriteByte(b)
	}
	return sb.String(), words
}

// Disassemble renders a SPIR-V binary module as indented pseudo-assembly
// text, in the `.spvasm`-like shape gogpu-naga's spvdis CLI printed to
// stdout. Returns an error instead of exiting the process when the header
// is malformed or truncated.
func Disassemble(data []byte) (string, error) {
	var sb strings.Builder
	if err := disassembleTo(&sb, data); err != nil {
		return "", err
	}
	return sb.String(), nil
}

func disassembleTo(w io.Writer, data []byte) error {
	if len(data) < 20 {
		return fmt.Errorf("disasm: module too short: %d bytes", len(data))
	}

	magic := binary.LittleEndian.Uint32(data[0:4])
	if magic != spirv.MagicNumber {
		return fmt.Errorf("disasm: invalid SPIR-V magic: 0x%08X", magic)
	}

	version := binary.LittleEndian.Uint32(data[4:8])
	bound := binary.LittleEndian.Uint32(data[12:16])

	fmt.Fprintf(w, "; SPIR-V\n")
	fmt.Fprintf(w, "; Version: %d.%d\n", (version>>16)&0xFF, (version>>8)&0xFF)
	fmt.Fprintf(w, "; Generator: 0x%08X\n", binary.LittleEndian.Uint32(data[8:12]))
	fmt.Fprintf(w, "; Bound: %d\n", bound)
	fmt.Fprintf(w, "; Schema: %d\n", binary.LittleEndian.Uint32(data[16:20]))
	fmt.Fprintln(w)

	offset := 20
	for offset < len(data) {
		if offset+4 > len(data) {
			break
		}
		word := binary.LittleEndian.Uint32(data[offset:])
		opcode := uint16(word & 0xFFFF)
		wordCount := int(word >> 16)

		if wordCount == 0 || offset+wordCount*4 > len(data) {
			return fmt.Errorf("disasm: invalid word count %d at offset 0x%X", wordCount, offset)
		}

		ops := make([]uint32, wordCount-1)
		for i := range ops {
			ops[i] = binary.LittleEndian.Uint32(data[offset+4+i*4:])
		}

		name := opcodeNames[opcode]
		if name == "" {
			name = fmt.Sprintf("Op%d", opcode)
		}

		printInstruction(w, name, opcode, ops, data, offset)
		offset += wordCount * 4
	}
	return nil
}

func id(n uint32) string {
	return fmt.Sprintf("%%_%d", n)
}

func lookup(m map[uint32]string, v uint32) string {
	if s, ok := m[v]; ok {
		return s
	}
	return fmt.Sprintf("%d", v)
}

//nolint:gocognit,gocyclo,cyclop,funlen,maintidx // one switch case per opcode shape, same layout as the teacher's spvdis
func printInstruction(w io.Writer, name string, opcode uint16, ops []uint32, data []byte, offset int) {
	switch opcode {
	case 17: // OpCapability
		fmt.Fprintf(w, "               %s %s\n", name, lookup(capabilities, ops[0]))

	case 11: // OpExtInstImport
		str, _ := readString(data, offset+8, len(ops)-1)
		fmt.Fprintf(w, "         %s = %s \"%s\"\n", id(ops[0]), name, str)

	case 14: // OpMemoryModel
		addrModels := map[uint32]string{0: "Logical", 1: "Physical32", 2: "Physical64", 5348: "PhysicalStorageBuffer64"}
		memModels := map[uint32]string{0: "Simple", 1: "GLSL450", 2: "OpenCL", 3: "Vulkan"}
		a, m := lookup(addrModels, ops[0]), lookup(memModels, ops[1])
		fmt.Fprintf(w, "               %s %s %s\n", name, a, m)

	case 15: // OpEntryPoint
		model := lookup(executionModels, ops[0])
		str, strWords := readString(data, offset+12, len(ops)-2)
		fmt.Fprintf(w, "               %s %s %s \"%s\"", name, model, id(ops[1]), str)
		for i := 2 + strWords; i < len(ops); i++ {
			fmt.Fprintf(w, " %s", id(ops[i]))
		}
		fmt.Fprintln(w)

	case 16: // OpExecutionMode
		mode := lookup(executionModes, ops[1])
		fmt.Fprintf(w, "               %s %s %s", name, id(ops[0]), mode)
		for i := 2; i < len(ops); i++ {
			fmt.Fprintf(w, " %d", ops[i])
		}
		fmt.Fprintln(w)

	case 5: // OpName
		str, _ := readString(data, offset+8, len(ops)-1)
		fmt.Fprintf(w, "               %s %s \"%s\"\n", name, id(ops[0]), str)

	case 6: // OpMemberName
		str, _ := readString(data, offset+12, len(ops)-2)
		fmt.Fprintf(w, "               %s %s %d \"%s\"\n", name, id(ops[0]), ops[1], str)

	case 71: // OpDecorate
		dec := lookup(decorations, ops[1])
		fmt.Fprintf(w, "               %s %s %s", name, id(ops[0]), dec)
		if ops[1] == 11 && len(ops) > 2 { // BuiltIn
			fmt.Fprintf(w, " %s", lookup(builtins, ops[2]))
		} else {
			for i := 2; i < len(ops); i++ {
				fmt.Fprintf(w, " %d", ops[i])
			}
		}
		fmt.Fprintln(w)

	case 72: // OpMemberDecorate
		dec := lookup(decorations, ops[2])
		fmt.Fprintf(w, "               %s %s %d %s", name, id(ops[0]), ops[1], dec)
		for i := 3; i < len(ops); i++ {
			fmt.Fprintf(w, " %d", ops[i])
		}
		fmt.Fprintln(w)

	case 19, 20, 26: // OpTypeVoid, OpTypeBool, OpTypeSampler
		fmt.Fprintf(w, "         %s = %s\n", id(ops[0]), name)

	case 21: // OpTypeInt
		sign := "0"
		if ops[2] == 1 {
			sign = "1"
		}
		fmt.Fprintf(w, "         %s = %s %d %s\n", id(ops[0]), name, ops[1], sign)

	case 22: // OpTypeFloat
		fmt.Fprintf(w, "         %s = %s %d\n", id(ops[0]), name, ops[1])

	case 23, 24: // OpTypeVector, OpTypeMatrix
		fmt.Fprintf(w, "         %s = %s %s %d\n", id(ops[0]), name, id(ops[1]), ops[2])

	case 25: // OpTypeImage
		dim := lookup(dims, ops[2])
		// Format: Result Sampled-Type Dim Depth Arrayed MS Sampled Image-Format [Access-Qualifier]
		fmt.Fprintf(w, "         %s = %s %s %s %d %d %d %d Unknown", id(ops[0]), name, id(ops[1]), dim, ops[3], ops[4], ops[5], ops[6])
		if ops[6] != 1 && len(ops) > 7 {
			fmt.Fprintf(w, " %d", ops[7])
		}
		fmt.Fprintln(w)

	case 27: // OpTypeSampledImage
		fmt.Fprintf(w, "         %s = %s %s\n", id(ops[0]), name, id(ops[1]))

	case 28: // OpTypeArray
		fmt.Fprintf(w, "         %s = %s %s %s\n", id(ops[0]), name, id(ops[1]), id(ops[2]))

	case 30: // OpTypeStruct
		fmt.Fprintf(w, "         %s = %s", id(ops[0]), name)
		for i := 1; i < len(ops); i++ {
			fmt.Fprintf(w, " %s", id(ops[i]))
		}
		fmt.Fprintln(w)

	case 32: // OpTypePointer
		sc := lookup(storageClasses, ops[1])
		fmt.Fprintf(w, "         %s = %s %s %s\n", id(ops[0]), name, sc, id(ops[2]))

	case 33: // OpTypeFunction
		fmt.Fprintf(w, "         %s = %s %s", id(ops[0]), name, id(ops[1]))
		for i := 2; i < len(ops); i++ {
			fmt.Fprintf(w, " %s", id(ops[i]))
		}
		fmt.Fprintln(w)

	case 43: // OpConstant
		fmt.Fprintf(w, "         %s = %s %s %d\n", id(ops[1]), name, id(ops[0]), ops[2])

	case 44: // OpConstantComposite
		fmt.Fprintf(w, "         %s = %s %s", id(ops[1]), name, id(ops[0]))
		for i := 2; i < len(ops); i++ {
			fmt.Fprintf(w, " %s", id(ops[i]))
		}
		fmt.Fprintln(w)

	case 54: // OpFunction
		fmt.Fprintf(w, "         %s = %s %s None %s\n", id(ops[1]), name, id(ops[0]), id(ops[3]))

	case 55: // OpFunctionParameter
		fmt.Fprintf(w, "         %s = %s %s\n", id(ops[1]), name, id(ops[0]))

	case 56: // OpFunctionEnd
		fmt.Fprintf(w, "               %s\n", name)

	case 59: // OpVariable
		sc := lookup(storageClasses, ops[2])
		fmt.Fprintf(w, "         %s = %s %s %s\n", id(ops[1]), name, id(ops[0]), sc)

	case 61: // OpLoad
		fmt.Fprintf(w, "         %s = %s %s %s\n", id(ops[1]), name, id(ops[0]), id(ops[2]))

	case 62: // OpStore
		fmt.Fprintf(w, "               %s %s %s\n", name, id(ops[0]), id(ops[1]))

	case 65: // OpAccessChain
		fmt.Fprintf(w, "         %s = %s %s %s", id(ops[1]), name, id(ops[0]), id(ops[2]))
		for i := 3; i < len(ops); i++ {
			fmt.Fprintf(w, " %s", id(ops[i]))
		}
		fmt.Fprintln(w)

	case 80: // OpCompositeConstruct
		fmt.Fprintf(w, "         %s = %s %s", id(ops[1]), name, id(ops[0]))
		for i := 2; i < len(ops); i++ {
			fmt.Fprintf(w, " %s", id(ops[i]))
		}
		fmt.Fprintln(w)

	case 81: // OpCompositeExtract
		fmt.Fprintf(w, "         %s = %s %s %s", id(ops[1]), name, id(ops[0]), id(ops[2]))
		for i := 3; i < len(ops); i++ {
			fmt.Fprintf(w, " %d", ops[i])
		}
		fmt.Fprintln(w)

	case 79: // OpVectorShuffle
		fmt.Fprintf(w, "         %s = %s %s %s %s", id(ops[1]), name, id(ops[0]), id(ops[2]), id(ops[3]))
		for i := 4; i < len(ops); i++ {
			fmt.Fprintf(w, " %d", ops[i])
		}
		fmt.Fprintln(w)

	case 77: // OpVectorExtractDynamic
		fmt.Fprintf(w, "         %s = %s %s %s %s\n", id(ops[1]), name, id(ops[0]), id(ops[2]), id(ops[3]))

	case 78: // OpVectorInsertDynamic
		fmt.Fprintf(w, "         %s = %s %s %s %s %s\n", id(ops[1]), name, id(ops[0]), id(ops[2]), id(ops[3]), id(ops[4]))

	case 86: // OpSampledImage
		fmt.Fprintf(w, "         %s = %s %s %s %s\n", id(ops[1]), name, id(ops[0]), id(ops[2]), id(ops[3]))

	case 87, 88: // OpImageSampleImplicitLod, OpImageSampleExplicitLod
		fmt.Fprintf(w, "         %s = %s %s %s %s", id(ops[1]), name, id(ops[0]), id(ops[2]), id(ops[3]))
		for i := 4; i < len(ops); i++ {
			fmt.Fprintf(w, " %d", ops[i])
		}
		fmt.Fprintln(w)

	case 246: // OpLoopMerge
		fmt.Fprintf(w, "               %s %s %s %d\n", name, id(ops[0]), id(ops[1]), ops[2])

	case 247: // OpSelectionMerge
		fmt.Fprintf(w, "               %s %s %d\n", name, id(ops[0]), ops[1])

	case 248: // OpLabel
		fmt.Fprintf(w, "         %s = %s\n", id(ops[0]), name)

	case 249: // OpBranch
		fmt.Fprintf(w, "               %s %s\n", name, id(ops[0]))

	case 250: // OpBranchConditional
		fmt.Fprintf(w, "               %s %s %s %s", name, id(ops[0]), id(ops[1]), id(ops[2]))
		for i := 3; i < len(ops); i++ {
			fmt.Fprintf(w, " %d", ops[i])
		}
		fmt.Fprintln(w)

	case 253: // OpReturn
		fmt.Fprintf(w, "               %s\n", name)

	case 254: // OpReturnValue
		fmt.Fprintf(w, "               %s %s\n", name, id(ops[0]))

	default:
		printGenericInstruction(w, name, opcode, ops)
	}
}

func printGenericInstruction(w io.Writer, name string, opcode uint16, ops []uint32) {
	fmt.Fprintf(w, "         ")
	switch {
	case len(ops) >= 2 && opcode >= 126 && opcode <= 205:
		fmt.Fprintf(w, "%s = %s %s", id(ops[1]), name, id(ops[0]))
		for i := 2; i < len(ops); i++ {
			fmt.Fprintf(w, " %s", id(ops[i]))
		}
	case len(ops) >= 1:
		fmt.Fprintf(w, "%s", name)
		for _, op := range ops {
			fmt.Fprintf(w, " %s", id(op))
		}
	default:
		fmt.Fprintf(w, "%s", name)
	}
	fmt.Fprintln(w)
}
