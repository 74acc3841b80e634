package ir

// TypeHandle references a type registered in a TypeRegistry.
type TypeHandle uint32

// ConstantHandle references a constant registered in a ConstantPool.
type ConstantHandle uint32

// Type is a named, structurally-keyed type value.
type Type struct {
	Name  string
	Inner TypeInner
}

// TypeInner is the closed set of type shapes. Every case implements the
// unexported marker method so only this package can extend the set.
type TypeInner interface {
	typeInner()
}

// ScalarKind is the kind of a scalar type.
type ScalarKind uint8

const (
	ScalarSint ScalarKind = iota
	ScalarUint
	ScalarFloat
	ScalarBool
)

// ScalarType is a scalar value type.
type ScalarType struct {
	Kind  ScalarKind
	Width uint8 // bytes
}

func (ScalarType) typeInner() {}

// VectorSize is the component count of a vector type.
type VectorSize uint8

const (
	Vec2 VectorSize = 2
	Vec3 VectorSize = 3
	Vec4 VectorSize = 4
)

// VectorType is a fixed-size vector of scalars.
type VectorType struct {
	Size   VectorSize
	Scalar ScalarType
}

func (VectorType) typeInner() {}

// MatrixType is a column-major matrix of float scalars.
type MatrixType struct {
	Columns VectorSize
	Rows    VectorSize
	Scalar  ScalarType
}

func (MatrixType) typeInner() {}

// ArraySize is either a fixed element count or a runtime-sized array.
type ArraySize struct {
	Constant *uint32 // nil for runtime-sized
}

// ArrayType is a homogeneous array of a base type.
type ArrayType struct {
	Base   TypeHandle
	Size   ArraySize
	Stride uint32
}

func (ArrayType) typeInner() {}

// StructMember is one field of a struct type.
type StructMember struct {
	Name   string
	Type   TypeHandle
	Offset uint32
}

// StructType is a sequence of named, offset members.
type StructType struct {
	Members []StructMember
	Span    uint32 // bytes
}

func (StructType) typeInner() {}

// AddressSpace is a SPIR-V storage class grouping for pointer types.
type AddressSpace uint8

const (
	SpaceFunction AddressSpace = iota
	SpacePrivate
	SpaceInput
	SpaceOutput
	SpaceUniform
	SpaceStorageBuffer
	SpaceUniformConstant
)

// PointerType is a pointer to a base type in an address space.
type PointerType struct {
	Base  TypeHandle
	Space AddressSpace
}

func (PointerType) typeInner() {}

// SamplerType is a sampler, optionally a comparison (shadow) sampler.
type SamplerType struct {
	Comparison bool
}

func (SamplerType) typeInner() {}

// ImageDimension is the dimensionality of an image type.
type ImageDimension uint8

const (
	Dim1D ImageDimension = iota
	Dim2D
	Dim3D
	DimCube
)

// ImageSampleType distinguishes the component type an image samples to.
type ImageSampleType uint8

const (
	ImageSampleFloat ImageSampleType = iota
	ImageSampleSint
	ImageSampleUint
	ImageSampleDepth
)

// ImageType is a texture type: a read (sampled or storage) image.
type ImageType struct {
	Dim          ImageDimension
	Arrayed      bool
	Multisampled bool
	SampleType   ImageSampleType
	Storage      bool          // true: storage image (read/write), false: sampled image
	Format       StorageFormat // meaningful only when Storage is true
}

func (ImageType) typeInner() {}

// SampledImageType pairs an image with its sampler, the operand type of a
// `sample` call.
type SampledImageType struct {
	Image TypeHandle
}

func (SampledImageType) typeInner() {}

// FunctionType is the signature of a callable: the stdlib/math external
// functions the back end recognizes (sqrt, pow, dot, ...), keyed by name
// rather than a FunctionHandle since this dialect has no user functions.
type FunctionType struct {
	Args   []TypeHandle
	Result TypeHandle // zero handle means void
}

func (FunctionType) typeInner() {}

// StorageFormat is the texel format of a storage image or buffer resource.
type StorageFormat uint8

const (
	StorageFormatUnknown StorageFormat = iota
	StorageFormatR8Unorm
	StorageFormatR8Snorm
	StorageFormatR8Uint
	StorageFormatR8Sint
	StorageFormatR16Uint
	StorageFormatR16Sint
	StorageFormatR16Float
	StorageFormatR16Unorm
	StorageFormatR16Snorm
	StorageFormatRg8Unorm
	StorageFormatRg8Snorm
	StorageFormatRg8Uint
	StorageFormatRg8Sint
	StorageFormatR32Uint
	StorageFormatR32Sint
	StorageFormatR32Float
	StorageFormatRg16Uint
	StorageFormatRg16Sint
	StorageFormatRg16Float
	StorageFormatRg16Unorm
	StorageFormatRg16Snorm
	StorageFormatRgba8Unorm
	StorageFormatRgba8Snorm
	StorageFormatRgba8Uint
	StorageFormatRgba8Sint
	StorageFormatBgra8Unorm
	StorageFormatRgb10a2Uint
	StorageFormatRgb10a2Unorm
	StorageFormatRg11b10Ufloat
	StorageFormatRg32Uint
	StorageFormatRg32Sint
	StorageFormatRg32Float
	StorageFormatRgba16Uint
	StorageFormatRgba16Sint
	StorageFormatRgba16Float
	StorageFormatRgba16Unorm
	StorageFormatRgba16Snorm
	StorageFormatRgba32Uint
	StorageFormatRgba32Sint
	StorageFormatRgba32Float
)

// Scalar convenience values, used throughout the front end and back end
// wherever a literal scalar type is needed without going through the
// registry (the registry interns them identically by structural key).
var (
	Bool    = ScalarType{Kind: ScalarBool, Width: 1}
	Int32   = ScalarType{Kind: ScalarSint, Width: 4}
	UInt32  = ScalarType{Kind: ScalarUint, Width: 4}
	Float32 = ScalarType{Kind: ScalarFloat, Width: 4}
)
