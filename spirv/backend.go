package spirv

import (
	"fmt"

	"github.com/shaderlab/nsbc/access"
	"github.com/shaderlab/nsbc/cfg"
	"github.com/shaderlab/nsbc/emit"
	"github.com/shaderlab/nsbc/ir"
	"github.com/shaderlab/nsbc/nsb"
)

// Generate lowers one Normalized Shader Bytecode program to a SPIR-V
// module. It is the direct counterpart of python_shader's
// Bytecode2SpirVGenerator: after the variable-storage pre-pass
// (computeNameVariables), a single pass over the bytecode stream driving
// a value stack, an access-chain resolver and a structured control-flow
// reconstructor in lockstep with the word emitter.
func Generate(prog *nsb.Program, opts Options) ([]byte, error) {
	g := newGenerator(opts)
	if err := g.run(prog); err != nil {
		return nil, err
	}
	return g.mb.Build()
}

// value is one entry on the generator's operand stack. A value is either
// an already-loaded SPIR-V result id (isPtr false), a pointer into storage
// that load/store sites materialize on demand (isPtr true), or a bare
// symbolic token carrying an attribute name — produced only by
// load_constant when the front end desugared a struct/swizzle store into
// load_constant(name)+store_index, and consumed only by store_index.
type value struct {
	id     uint32
	typ    ir.TypeHandle
	isPtr  bool
	space  ir.AddressSpace
	symbol string
	isSym  bool
}

type global struct {
	id    uint32
	typ   ir.TypeHandle
	space ir.AddressSpace
}

// labelPlaceholder bridges cfg.Tree's string-keyed label resolution to
// emit's numeric, mutable id cells: once the control-flow reconstructor
// decides which physical label a branch really lands on, Resolve looks up
// (or allocates) that label's SPIR-V id and pushes it into the word
// emitter's pending patch.
type labelPlaceholder struct {
	mb  *emit.ModuleBuilder
	eph *emit.Placeholder
}

func (p *labelPlaceholder) Resolve(label string) { p.eph.Set(p.mb.LabelID(label)) }

func newBranchTarget(mb *emit.ModuleBuilder) (*emit.Placeholder, cfg.LabelPlaceholder) {
	eph := emit.NewPlaceholder()
	return eph, &labelPlaceholder{mb: mb, eph: eph}
}

type generator struct {
	opts Options
	mb   *emit.ModuleBuilder
	reg  *ir.TypeRegistry
	pool *ir.ConstantPool

	typeIDs  map[ir.TypeHandle]uint32
	ptrIDs   map[string]uint32
	constIDs map[ir.ConstantHandle]uint32

	glslSet uint32
	caps    map[Capability]bool

	locals  map[string]value
	globals map[string]global
	stack   []value

	tree *cfg.Tree

	// curLabel is the block this generator is currently emitting into,
	// "" for the implicit entry block. names is the pre-pass result
	// deciding which local names need a Function variable; nameVars and
	// nameVarType record the (lazily allocated) variable id and its
	// pointee type for each such name once one has been created.
	curLabel    string
	names       *nameVarPass
	nameVars    map[string]uint32
	nameVarType map[string]ir.TypeHandle

	entryName    string
	entryStage   string
	entryFuncID  uint32
	interfaceIDs []uint32
}

func newGenerator(opts Options) *generator {
	mb := emit.NewModuleBuilder(opts.Version)
	g := &generator{
		opts:     opts,
		mb:       mb,
		reg:      ir.NewTypeRegistry(),
		pool:     ir.NewConstantPool(),
		typeIDs:  map[ir.TypeHandle]uint32{},
		ptrIDs:   map[string]uint32{},
		constIDs: map[ir.ConstantHandle]uint32{},
		caps:     map[Capability]bool{},
		locals:      map[string]value{},
		globals:     map[string]global{},
		nameVars:    map[string]uint32{},
		nameVarType: map[string]ir.TypeHandle{},
	}
	g.requireCapability(CapabilityShader)
	g.glslSet = mb.AddExtInstImport("GLSL.std.450")
	mb.SetMemoryModel(AddressingModelLogical, MemoryModelGLSL450)
	return g
}

func (g *generator) requireCapability(c Capability) {
	if g.caps[c] {
		return
	}
	g.caps[c] = true
	g.mb.AddCapability(c)
}

func (g *generator) run(prog *nsb.Program) error {
	g.tree = cfg.New()
	g.names = computeNameVariables(prog)
	for _, op := range prog.Ops {
		if err := g.step(op); err != nil {
			return fmt.Errorf("spirv: %s: %w", op.Tag(), err)
		}
	}
	return nil
}

func (g *generator) step(op nsb.Op) error {
	switch o := op.(type) {
	case nsb.EntryPoint:
		return g.emitEntryPointHeader(o)
	case nsb.Resource:
		return g.declareResource(o)
	case nsb.FuncEnd:
		g.mb.AddFunctionEnd()
		g.mb.AddEntryPoint(executionModelForStage(g.entryStage), g.entryFuncID, g.entryName, g.interfaceIDs)
		g.emitExecutionMode()
		return nil
	case nsb.PopTop:
		g.pop()
		return nil
	case nsb.DupTop:
		v := g.pop()
		g.push(v)
		g.push(v)
		return nil
	case nsb.RotTwo:
		a := g.pop()
		b := g.pop()
		g.push(a)
		g.push(b)
		return nil
	case nsb.LoadName:
		return g.loadName(o.Name)
	case nsb.StoreName:
		return g.storeName(o.Name)
	case nsb.LoadConstant:
		return g.loadConstant(o.Value)
	case nsb.LoadAttr:
		return g.loadAttr(o.Attr)
	case nsb.LoadIndex:
		return g.loadIndex()
	case nsb.StoreIndex:
		return g.storeIndex()
	case nsb.LoadArray:
		return g.loadArray(o.N)
	case nsb.BinaryOp:
		return g.binaryOp(o.Op)
	case nsb.UnaryOp:
		return g.unaryOp(o.Op)
	case nsb.Compare:
		return g.compare(o.Op)
	case nsb.Call:
		return g.call(o.Name, o.NArgs)
	case nsb.Label:
		return g.label(o.Name)
	case nsb.Branch:
		return g.branch(o.Label)
	case nsb.BranchConditional:
		return g.branchConditional(o.TrueLabel, o.FalseLabel)
	case nsb.BranchLoop:
		return g.branchLoop(o.HeaderLabel, o.MergeLabel, o.ContinueLabel)
	case nsb.Return:
		return g.ret(o.HasValue)
	default:
		return fmt.Errorf("unhandled nsb op %T", op)
	}
}

func (g *generator) push(v value)   { g.stack = append(g.stack, v) }
func (g *generator) pop() value {
	n := len(g.stack)
	v := g.stack[n-1]
	g.stack = g.stack[:n-1]
	return v
}

// materialize returns a plain, loaded SSA id for v, emitting OpLoad if v is
// still a pointer into storage.
func (g *generator) materialize(v value) uint32 {
	if !v.isPtr {
		return v.id
	}
	return g.mb.AddLoad(g.typeID(v.typ), v.id)
}

// typeID returns the SPIR-V result id for handle, declaring it (and any
// type it depends on) on first request.
func (g *generator) typeID(handle ir.TypeHandle) uint32 {
	if id, ok := g.typeIDs[handle]; ok {
		return id
	}
	t, ok := g.reg.Lookup(handle)
	if !ok {
		panic(fmt.Sprintf("spirv: unknown type handle %d", handle))
	}

	var id uint32
	switch inner := t.Inner.(type) {
	case ir.ScalarType:
		switch inner.Kind {
		case ir.ScalarBool:
			id = g.mb.AddTypeBool()
		case ir.ScalarSint:
			id = g.mb.AddTypeInt(uint32(inner.Width)*8, true)
		case ir.ScalarUint:
			id = g.mb.AddTypeInt(uint32(inner.Width)*8, false)
		default:
			id = g.mb.AddTypeFloat(uint32(inner.Width) * 8)
		}

	case ir.VectorType:
		compID := g.typeID(g.scalarHandle(inner.Scalar))
		id = g.mb.AddTypeVector(compID, uint32(inner.Size))

	case ir.MatrixType:
		col := ir.VectorType{Size: inner.Rows, Scalar: inner.Scalar}
		colID := g.typeID(g.reg.GetOrCreate(vectorTypeName(col), col))
		id = g.mb.AddTypeMatrix(colID, uint32(inner.Columns))

	case ir.ArrayType:
		elemID := g.typeID(inner.Base)
		if inner.Size.Constant == nil {
			id = g.mb.AddTypeRuntimeArray(elemID)
		} else {
			lenConst := g.mb.AddConstant(g.typeID(g.scalarHandle(ir.UInt32)), *inner.Size.Constant)
			id = g.mb.AddTypeArray(elemID, lenConst)
		}

	case ir.StructType:
		memberIDs := make([]uint32, len(inner.Members))
		for i, m := range inner.Members {
			memberIDs[i] = g.typeID(m.Type)
		}
		id = g.mb.AddTypeStruct(memberIDs...)
		for i, m := range inner.Members {
			if g.opts.Debug {
				g.mb.AddMemberName(id, uint32(i), m.Name)
			}
			g.mb.AddMemberDecorate(id, uint32(i), DecorationOffset, m.Offset)
			if mt, ok := g.reg.Lookup(m.Type); ok {
				if mat, ok := mt.Inner.(ir.MatrixType); ok {
					g.mb.AddMemberDecorate(id, uint32(i), DecorationColMajor)
					g.mb.AddMemberDecorate(id, uint32(i), DecorationMatrixStride, matrixStride(mat))
				}
			}
		}

	case ir.PointerType:
		baseID := g.typeID(inner.Base)
		id = g.mb.AddTypePointer(storageClassForSpace(inner.Space), baseID)

	case ir.SamplerType:
		id = g.mb.AddTypeSampler()

	case ir.ImageType:
		id = g.buildImageType(inner)

	case ir.SampledImageType:
		imgID := g.typeID(inner.Image)
		id = g.mb.AddTypeSampledImage(imgID)

	default:
		panic(fmt.Sprintf("spirv: unsupported type shape %T", inner))
	}

	g.typeIDs[handle] = id
	if g.opts.Debug && t.Name != "" {
		g.mb.AddName(id, t.Name)
	}
	return id
}

func (g *generator) buildImageType(img ir.ImageType) uint32 {
	var sampledScalar ir.ScalarType
	switch img.SampleType {
	case ir.ImageSampleSint:
		sampledScalar = ir.Int32
	case ir.ImageSampleUint:
		sampledScalar = ir.UInt32
	default:
		sampledScalar = ir.Float32
	}
	sampledTypeID := g.typeID(g.scalarHandle(sampledScalar))

	depth := uint32(0)
	if img.SampleType == ir.ImageSampleDepth {
		depth = 1
	}
	arrayed := uint32(0)
	if img.Arrayed {
		arrayed = 1
	}
	ms := uint32(0)
	if img.Multisampled {
		ms = 1
	}
	sampled := uint32(1)
	format := ImageFormatUnknown
	if img.Storage {
		sampled = 2
		format = StorageFormatToImageFormat(img.Format)
	}
	return g.mb.AddTypeImage(sampledTypeID, uint32(img.Dim), depth, arrayed, ms, sampled, format)
}

func (g *generator) scalarHandle(s ir.ScalarType) ir.TypeHandle {
	return g.reg.GetOrCreate(scalarTypeName(s), s)
}

func scalarTypeName(s ir.ScalarType) string {
	switch s.Kind {
	case ir.ScalarBool:
		return "bool"
	case ir.ScalarSint:
		return fmt.Sprintf("i%d", s.Width*8)
	case ir.ScalarUint:
		return fmt.Sprintf("u%d", s.Width*8)
	default:
		return fmt.Sprintf("f%d", s.Width*8)
	}
}

func vectorTypeName(v ir.VectorType) string {
	return fmt.Sprintf("vec%d<%s>", v.Size, scalarTypeName(v.Scalar))
}

func matrixStride(m ir.MatrixType) uint32 {
	return uint32(m.Rows) * uint32(m.Scalar.Width)
}

func storageClassForSpace(space ir.AddressSpace) StorageClass {
	switch space {
	case ir.SpaceInput:
		return StorageClassInput
	case ir.SpaceOutput:
		return StorageClassOutput
	case ir.SpaceUniform:
		return StorageClassUniform
	case ir.SpaceStorageBuffer:
		return StorageClassStorageBuffer
	case ir.SpaceUniformConstant:
		return StorageClassUniformConstant
	case ir.SpacePrivate:
		return StorageClassPrivate
	default:
		return StorageClassFunction
	}
}

// pointerTypeID returns (declaring if needed) the pointer-to-base type in
// the given storage class.
func (g *generator) pointerTypeID(base ir.TypeHandle, space ir.AddressSpace) uint32 {
	key := fmt.Sprintf("%d:%d", base, space)
	if id, ok := g.ptrIDs[key]; ok {
		return id
	}
	ptr := ir.PointerType{Base: base, Space: space}
	handle := g.reg.GetOrCreate(fmt.Sprintf("ptr<%d,%d>", base, space), ptr)
	id := g.typeID(handle)
	g.ptrIDs[key] = id
	return id
}

// elementTypeOf returns the type a single index step into containerType
// yields: an array's element, a vector's scalar, or a matrix's column.
func (g *generator) elementTypeOf(containerType ir.TypeHandle) (ir.TypeHandle, error) {
	t, ok := g.reg.Lookup(containerType)
	if !ok {
		return 0, fmt.Errorf("spirv: unknown container type handle %d", containerType)
	}
	switch inner := t.Inner.(type) {
	case ir.ArrayType:
		return inner.Base, nil
	case ir.VectorType:
		return g.scalarHandle(inner.Scalar), nil
	case ir.MatrixType:
		col := ir.VectorType{Size: inner.Rows, Scalar: inner.Scalar}
		return g.reg.GetOrCreate(vectorTypeName(col), col), nil
	default:
		return 0, fmt.Errorf("spirv: type %s is not indexable", t.Name)
	}
}

// constID returns the SPIR-V result id for a constant handle, declaring it
// on first request.
func (g *generator) constID(handle ir.ConstantHandle) uint32 {
	if id, ok := g.constIDs[handle]; ok {
		return id
	}
	c, ok := g.pool.Lookup(handle)
	if !ok {
		panic(fmt.Sprintf("spirv: unknown constant handle %d", handle))
	}
	typeID := g.typeID(c.Type)

	var id uint32
	switch v := c.Value.(type) {
	case ir.ScalarValue:
		id = g.mb.AddConstant(typeID, uint32(v.Bits))
	case ir.CompositeValue:
		parts := make([]uint32, len(v.Components))
		for i, comp := range v.Components {
			parts[i] = g.constID(comp)
		}
		id = g.mb.AddConstantComposite(typeID, parts...)
	default:
		panic(fmt.Sprintf("spirv: unsupported constant shape %T", v))
	}
	g.constIDs[handle] = id
	return id
}

func (g *generator) uintConst(v uint32) uint32 {
	h := g.pool.Uint32(g.scalarHandle(ir.UInt32), v)
	return g.constID(h)
}

func executionModelForStage(stage string) ExecutionModel {
	switch stage {
	case "vertex":
		return ExecutionModelVertex
	case "compute":
		return ExecutionModelGLCompute
	default:
		return ExecutionModelFragment
	}
}

func (g *generator) emitExecutionMode() {
	switch g.entryStage {
	case "fragment":
		g.mb.AddExecutionMode(g.entryFuncID, ExecutionModeOriginUpperLeft)
	case "compute":
		g.mb.AddExecutionMode(g.entryFuncID, ExecutionModeLocalSize, 1, 1, 1)
	}
}

// emitEntryPointHeader declares the entry function and its parameter
// resources, then opens its first block. The real arguments live as
// module-scope Input/Output/resource variables per SPIR-V's shader
// calling convention; the NSB function body addresses them by name like
// any other resource.
func (g *generator) emitEntryPointHeader(o nsb.EntryPoint) error {
	g.entryName = o.Name
	g.entryStage = o.Stage

	voidID := g.mb.AddTypeVoid()
	fnTypeID := g.mb.AddTypeFunction(voidID)
	g.entryFuncID = g.mb.AddFunction(fnTypeID, voidID, FunctionControlNone)
	g.mb.AddName(g.entryFuncID, o.Name)

	for _, a := range o.Args {
		if err := g.declareBinding(a.Kind, a.Name, a.Slot, 0, a.TypeName); err != nil {
			return fmt.Errorf("entrypoint %s: arg %s: %w", o.Name, a.Name, err)
		}
	}

	g.mb.PlaceLabel("entry")
	return nil
}

// declareResource declares a module-scope resource from a resource op; the
// front end declares every entry-point argument this way.
func (g *generator) declareResource(o nsb.Resource) error {
	return g.declareBinding(o.Kind, o.Name, o.Slot, o.Group, o.TypeName)
}

func (g *generator) declareBinding(kind, name string, slot, group int, typeName string) error {
	typeHandle, err := ir.ParseTypeName(g.reg, typeName)
	if err != nil {
		return err
	}

	space, err := spaceForKind(kind)
	if err != nil {
		return err
	}

	varType := typeHandle
	// Uniform and storage-buffer blocks must be wrapped in a struct so the
	// Block decoration has somewhere to attach. Both kinds are decorated
	// Block (buffers live in the StorageBuffer storage class); BufferBlock
	// is never emitted.
	if kind == "uniform" || kind == "buffer" {
		t, _ := g.reg.Lookup(typeHandle)
		if _, isStruct := t.Inner.(ir.StructType); !isStruct {
			varType = g.reg.GetOrCreate("__wrap_"+typeName, ir.StructType{
				Members: []ir.StructMember{{Name: name, Type: typeHandle, Offset: 0}},
			})
		}
	}

	ptrType := g.pointerTypeID(varType, space)
	id := g.mb.AddVariable(ptrType, storageClassForSpace(space))
	g.mb.AddName(id, name)

	switch kind {
	case "uniform":
		g.mb.AddDecorate(id, DecorationBlock)
		g.mb.AddDecorate(id, DecorationDescriptorSet, uint32(group))
		g.mb.AddDecorate(id, DecorationBinding, uint32(slot))
	case "buffer":
		g.mb.AddDecorate(id, DecorationBlock)
		g.mb.AddDecorate(id, DecorationDescriptorSet, uint32(group))
		g.mb.AddDecorate(id, DecorationBinding, uint32(slot))
	case "sampler", "texture":
		g.mb.AddDecorate(id, DecorationDescriptorSet, uint32(group))
		g.mb.AddDecorate(id, DecorationBinding, uint32(slot))
	case "input", "output":
		g.mb.AddDecorate(id, DecorationLocation, uint32(slot))
	}

	// Input/Output variables must be listed in the entry point's interface
	// list; resource variables need not be (pre-1.4), matching the
	// compiler's SPIR-V 1.3 default target.
	if kind == "input" || kind == "output" {
		g.interfaceIDs = append(g.interfaceIDs, id)
	}

	g.globals[name] = global{id: id, typ: typeHandle, space: space}
	return nil
}

func spaceForKind(kind string) (ir.AddressSpace, error) {
	switch kind {
	case "input":
		return ir.SpaceInput, nil
	case "output":
		return ir.SpaceOutput, nil
	case "uniform":
		return ir.SpaceUniform, nil
	case "buffer":
		return ir.SpaceStorageBuffer, nil
	case "sampler", "texture":
		return ir.SpaceUniformConstant, nil
	default:
		return 0, fmt.Errorf("unrecognized resource kind %q", kind)
	}
}

// loadName pushes a resource global (always a pointer, resolved on
// materialize) or a local name's current value. A local that the pre-pass
// flagged as needing a load in this block is read back from its backing
// variable first; every other local is pure SSA, served straight from the
// cached value the last store (in this block or an earlier one with no
// intervening store elsewhere) left behind.
func (g *generator) loadName(name string) error {
	if gl, ok := g.globals[name]; ok {
		g.push(value{id: gl.id, typ: gl.typ, isPtr: true, space: gl.space})
		return nil
	}
	if g.names.loadsIn(g.curLabel, name) {
		if varID, ok := g.nameVars[name]; ok {
			typ := g.nameVarType[name]
			loaded := g.mb.AddLoad(g.typeID(typ), varID)
			g.locals[name] = value{id: loaded, typ: typ}
		}
	}
	if v, ok := g.locals[name]; ok {
		g.push(v)
		return nil
	}
	return fmt.Errorf("load_name: undefined name %q", name)
}

// storeName pops a value into a resource global or caches it as a local
// name's latest SSA value. It never itself allocates a Function variable:
// names the pre-pass decided need one are copied into their variable when
// the block that stored them is left (storeVariablesForBlock), not here.
func (g *generator) storeName(name string) error {
	v := g.pop()

	if gl, ok := g.globals[name]; ok {
		g.mb.AddStore(gl.id, g.materialize(v))
		return nil
	}

	id := g.materialize(v)
	g.locals[name] = value{id: id, typ: v.typ}
	return nil
}

// storeVariablesForBlock copies every name the pre-pass flagged as needing
// a variable save in block into its backing Function variable, allocating
// that variable on first use. Called right before any instruction that
// leaves the current block (branch, conditional branch, loop header).
func (g *generator) storeVariablesForBlock(block string) {
	names := g.names.needSave[block]
	for name := range names {
		v, ok := g.locals[name]
		if !ok {
			continue
		}
		varID, exists := g.nameVars[name]
		if !exists {
			ptrType := g.pointerTypeID(v.typ, ir.SpaceFunction)
			varID = g.mb.AddLocalVariable(ptrType, StorageClassFunction)
			if g.opts.Debug {
				g.mb.AddName(varID, name)
			}
			g.nameVars[name] = varID
			g.nameVarType[name] = v.typ
		}
		g.mb.AddStore(varID, v.id)
	}
}

// loadConstant pushes a literal. Numeric JSON literals decode to float64
// regardless of source int/float-ness, so they are declared as 32-bit
// float constants; string literals are a bare symbol token consumed only
// by a following store_index as the struct/swizzle attribute name the
// front end desugared a store_attr into.
func (g *generator) loadConstant(raw any) error {
	switch v := raw.(type) {
	case bool:
		h := g.pool.Bool(g.scalarHandle(ir.Bool), v)
		g.push(value{id: g.constID(h), typ: g.scalarHandle(ir.Bool)})
	case float64:
		h := g.pool.Float32(g.scalarHandle(ir.Float32), float32(v))
		g.push(value{id: g.constID(h), typ: g.scalarHandle(ir.Float32)})
	case string:
		g.push(value{symbol: v, isSym: true})
	default:
		return fmt.Errorf("load_constant: unsupported literal %#v", raw)
	}
	return nil
}

func (g *generator) loadAttr(attr string) error {
	base := g.pop()
	res, err := access.ResolveAttr(g.reg, base.typ, attr, base.isPtr)
	if err != nil {
		return err
	}
	switch res.Kind {
	case access.KindChainStep:
		idxID := g.uintConst(uint32(res.Indices[0]))
		ptrType := g.pointerTypeID(res.ResultType, base.space)
		chainID := g.mb.AddAccessChain(ptrType, base.id, idxID)
		g.push(value{id: chainID, typ: res.ResultType, isPtr: true, space: base.space})
	case access.KindExtract:
		baseID := g.materialize(base)
		id := g.mb.AddCompositeExtract(g.typeID(res.ResultType), baseID, uint32(res.Indices[0]))
		g.push(value{id: id, typ: res.ResultType})
	case access.KindShuffle:
		baseID := g.materialize(base)
		comps := make([]uint32, len(res.Indices))
		for i, ix := range res.Indices {
			comps[i] = uint32(ix)
		}
		id := g.mb.AddVectorShuffle(g.typeID(res.ResultType), baseID, baseID, comps)
		g.push(value{id: id, typ: res.ResultType})
	}
	return nil
}

func (g *generator) loadIndex() error {
	idx := g.pop()
	container := g.pop()

	elem, err := g.elementTypeOf(container.typ)
	if err != nil {
		return err
	}
	idxID := g.materialize(idx)

	if container.isPtr {
		ptrType := g.pointerTypeID(elem, container.space)
		chainID := g.mb.AddAccessChain(ptrType, container.id, idxID)
		g.push(value{id: chainID, typ: elem, isPtr: true, space: container.space})
		return nil
	}

	baseID := g.materialize(container)
	id := g.mb.AddVectorExtractDynamic(g.typeID(elem), baseID, idxID)
	g.push(value{id: id, typ: elem})
	return nil
}

// storeIndex implements both container[index] = value and the front end's
// store_attr desugaring (load_constant(name) then store_index), which
// looks identical except the popped index arrives as a symbol value
// rather than a loaded integer. Stack order at entry, top first: index,
// container, value.
func (g *generator) storeIndex() error {
	idx := g.pop()
	container := g.pop()
	val := g.pop()

	if idx.isSym {
		return g.storeAttr(container, idx.symbol, val)
	}

	if !container.isPtr {
		return fmt.Errorf("store_index: target is not addressable")
	}
	elem, err := g.elementTypeOf(container.typ)
	if err != nil {
		return err
	}
	idxID := g.materialize(idx)
	ptrType := g.pointerTypeID(elem, container.space)
	chainID := g.mb.AddAccessChain(ptrType, container.id, idxID)
	g.mb.AddStore(chainID, g.materialize(val))
	return nil
}

func (g *generator) storeAttr(container value, attr string, val value) error {
	if !container.isPtr {
		return fmt.Errorf("store_index: attribute target %q is not addressable", attr)
	}
	res, err := access.ResolveAttr(g.reg, container.typ, attr, true)
	if err != nil {
		return err
	}
	switch res.Kind {
	case access.KindChainStep:
		idxID := g.uintConst(uint32(res.Indices[0]))
		ptrType := g.pointerTypeID(res.ResultType, container.space)
		chainID := g.mb.AddAccessChain(ptrType, container.id, idxID)
		g.mb.AddStore(chainID, g.materialize(val))
		return nil
	case access.KindShuffle:
		containerTyp, _ := g.reg.Lookup(container.typ)
		vt, ok := containerTyp.Inner.(ir.VectorType)
		if !ok {
			return fmt.Errorf("store_index: swizzle target %q is not a vector", attr)
		}
		oldVec := g.mb.AddLoad(g.typeID(container.typ), container.id)
		newVec := g.materialize(val)
		comps := writeShuffleMask(int(vt.Size), res.Indices)
		merged := g.mb.AddVectorShuffle(g.typeID(container.typ), oldVec, newVec, comps)
		g.mb.AddStore(container.id, merged)
		return nil
	default:
		return fmt.Errorf("store_index: attribute %q is not a valid store target", attr)
	}
}

// writeShuffleMask builds the OpVectorShuffle component-selector array
// that overwrites the components named by indices (into the "new value"
// operand, selected at offset size) while keeping every other component
// of the original vector (operand 0) unchanged.
func writeShuffleMask(size int, indices []int) []uint32 {
	mask := make([]uint32, size)
	for i := range mask {
		mask[i] = uint32(i)
	}
	for j, ix := range indices {
		mask[ix] = uint32(size + j)
	}
	return mask
}

// loadArray pops N operands and packs them into one N-component vector of
// the first operand's scalar type, converting scalar operands to that
// type. Array and matrix results are not built, and a vector operand is
// not flattened: it is passed through as a single constituent.
func (g *generator) loadArray(n int) error {
	operands := make([]value, n)
	for i := n - 1; i >= 0; i-- {
		operands[i] = g.pop()
	}
	if n == 0 {
		return fmt.Errorf("load_array: zero operands")
	}
	// Without destination type context, pack as a vector of the first
	// operand's scalar component type, materializing and converting each
	// operand to that scalar before construction.
	first, ok := g.reg.Lookup(operands[0].typ)
	if !ok {
		return fmt.Errorf("load_array: unknown operand type")
	}
	scalar, ok := first.Inner.(ir.ScalarType)
	if !ok {
		if vt, ok := first.Inner.(ir.VectorType); ok {
			scalar = vt.Scalar
		} else {
			return fmt.Errorf("load_array: unsupported operand type %s", first.Name)
		}
	}

	parts := make([]uint32, 0, n)
	for _, op := range operands {
		id, err := g.convertScalarTo(op, scalar)
		if err != nil {
			return err
		}
		parts = append(parts, id)
	}

	resultType := g.reg.GetOrCreate(vectorTypeName(ir.VectorType{Size: ir.VectorSize(len(parts)), Scalar: scalar}), ir.VectorType{Size: ir.VectorSize(len(parts)), Scalar: scalar})
	id := g.mb.AddCompositeConstruct(g.typeID(resultType), parts...)
	g.push(value{id: id, typ: resultType})
	return nil
}

// convertScalarTo materializes op and, if it is a scalar of a different
// kind than target, emits the matching OpConvert* instruction.
func (g *generator) convertScalarTo(op value, target ir.ScalarType) (uint32, error) {
	t, ok := g.reg.Lookup(op.typ)
	if !ok {
		return 0, fmt.Errorf("unknown operand type")
	}
	scalar, ok := t.Inner.(ir.ScalarType)
	if !ok {
		return g.materialize(op), nil
	}
	id := g.materialize(op)
	if scalar.Kind == target.Kind {
		return id, nil
	}
	targetID := g.typeID(g.scalarHandle(target))
	switch {
	case scalar.Kind == ir.ScalarSint && target.Kind == ir.ScalarFloat:
		return g.mb.AddUnaryOp(OpConvertSToF, targetID, id), nil
	case scalar.Kind == ir.ScalarUint && target.Kind == ir.ScalarFloat:
		return g.mb.AddUnaryOp(OpConvertUToF, targetID, id), nil
	case scalar.Kind == ir.ScalarFloat && target.Kind == ir.ScalarSint:
		return g.mb.AddUnaryOp(OpConvertFToS, targetID, id), nil
	case scalar.Kind == ir.ScalarFloat && target.Kind == ir.ScalarUint:
		return g.mb.AddUnaryOp(OpConvertFToU, targetID, id), nil
	default:
		return id, nil
	}
}

func (g *generator) binaryOp(op string) error {
	rhs := g.pop()
	lhs := g.pop()

	lt, _ := g.reg.Lookup(lhs.typ)
	rt, _ := g.reg.Lookup(rhs.typ)

	// Matrix/vector/scalar combinations dispatch to their own dedicated
	// opcode; everything else is component-wise over a common type.
	if _, lmat := lt.Inner.(ir.MatrixType); lmat && op == "mul" {
		return g.matrixMul(lhs, rhs, lt, rt)
	}
	if _, rmat := rt.Inner.(ir.MatrixType); rmat && op == "mul" {
		return g.matrixMul(lhs, rhs, lt, rt)
	}
	if isVector(lt) && isScalar(rt) && op == "mul" {
		id := g.mb.AddBinaryOp(OpVectorTimesScalar, g.typeID(lhs.typ), g.materialize(lhs), g.materialize(rhs))
		g.push(value{id: id, typ: lhs.typ})
		return nil
	}
	if isScalar(lt) && isVector(rt) && op == "mul" {
		id := g.mb.AddBinaryOp(OpVectorTimesScalar, g.typeID(rhs.typ), g.materialize(rhs), g.materialize(lhs))
		g.push(value{id: id, typ: rhs.typ})
		return nil
	}

	resultType := lhs.typ
	scalar := scalarKindOf(lt)
	lid := g.materialize(lhs)
	rid := g.materialize(rhs)

	opcode, err := arithmeticOpcode(op, scalar)
	if err != nil {
		return err
	}
	id := g.mb.AddBinaryOp(opcode, g.typeID(resultType), lid, rid)
	g.push(value{id: id, typ: resultType})
	return nil
}

func (g *generator) matrixMul(lhs, rhs value, lt, rt ir.Type) error {
	_, lmat := lt.Inner.(ir.MatrixType)
	_, rmat := rt.Inner.(ir.MatrixType)
	lid := g.materialize(lhs)
	rid := g.materialize(rhs)
	switch {
	case lmat && rmat:
		id := g.mb.AddBinaryOp(OpMatrixTimesMatrix, g.typeID(lhs.typ), lid, rid)
		g.push(value{id: id, typ: lhs.typ})
	case lmat && isVector(rt):
		id := g.mb.AddBinaryOp(OpMatrixTimesVector, g.typeID(rhs.typ), lid, rid)
		g.push(value{id: id, typ: rhs.typ})
	case isVector(lt) && rmat:
		id := g.mb.AddBinaryOp(OpVectorTimesMatrix, g.typeID(lhs.typ), lid, rid)
		g.push(value{id: id, typ: lhs.typ})
	case lmat && isScalar(rt):
		id := g.mb.AddBinaryOp(OpMatrixTimesScalar, g.typeID(lhs.typ), lid, rid)
		g.push(value{id: id, typ: lhs.typ})
	case isScalar(lt) && rmat:
		id := g.mb.AddBinaryOp(OpMatrixTimesScalar, g.typeID(rhs.typ), rid, lid)
		g.push(value{id: id, typ: rhs.typ})
	default:
		return fmt.Errorf("binary_op mul: unsupported matrix operand shapes")
	}
	return nil
}

func isVector(t ir.Type) bool {
	_, ok := t.Inner.(ir.VectorType)
	return ok
}

func isScalar(t ir.Type) bool {
	_, ok := t.Inner.(ir.ScalarType)
	return ok
}

func scalarKindOf(t ir.Type) ir.ScalarKind {
	switch inner := t.Inner.(type) {
	case ir.ScalarType:
		return inner.Kind
	case ir.VectorType:
		return inner.Scalar.Kind
	default:
		return ir.ScalarFloat
	}
}

func arithmeticOpcode(op string, kind ir.ScalarKind) (OpCode, error) {
	switch op {
	case "add":
		if kind == ir.ScalarFloat {
			return OpFAdd, nil
		}
		return OpIAdd, nil
	case "sub":
		if kind == ir.ScalarFloat {
			return OpFSub, nil
		}
		return OpISub, nil
	case "mul":
		if kind == ir.ScalarFloat {
			return OpFMul, nil
		}
		return OpIMul, nil
	case "div":
		switch kind {
		case ir.ScalarFloat:
			return OpFDiv, nil
		case ir.ScalarUint:
			return OpUDiv, nil
		default:
			return OpSDiv, nil
		}
	case "mod":
		switch kind {
		case ir.ScalarFloat:
			return OpFMod, nil
		case ir.ScalarUint:
			return OpUMod, nil
		default:
			return OpSMod, nil
		}
	case "and":
		return OpLogicalAnd, nil
	case "or":
		return OpLogicalOr, nil
	default:
		return 0, fmt.Errorf("binary_op: unrecognized operator %q", op)
	}
}

func (g *generator) unaryOp(op string) error {
	v := g.pop()
	t, _ := g.reg.Lookup(v.typ)
	id := g.materialize(v)
	switch op {
	case "neg":
		if scalarKindOf(t) == ir.ScalarFloat {
			result := g.mb.AddUnaryOp(OpFNegate, g.typeID(v.typ), id)
			g.push(value{id: result, typ: v.typ})
			return nil
		}
		result := g.mb.AddUnaryOp(OpSNegate, g.typeID(v.typ), id)
		g.push(value{id: result, typ: v.typ})
		return nil
	case "not":
		result := g.mb.AddUnaryOp(OpLogicalNot, g.typeID(v.typ), id)
		g.push(value{id: result, typ: v.typ})
		return nil
	default:
		return fmt.Errorf("unary_op: unrecognized operator %q", op)
	}
}

func (g *generator) compare(op string) error {
	rhs := g.pop()
	lhs := g.pop()
	lt, _ := g.reg.Lookup(lhs.typ)
	kind := scalarKindOf(lt)

	boolHandle := g.scalarHandle(ir.Bool)
	resultType := boolHandle
	if vt, ok := lt.Inner.(ir.VectorType); ok {
		boolVec := ir.VectorType{Size: vt.Size, Scalar: ir.Bool}
		resultType = g.reg.GetOrCreate(vectorTypeName(boolVec), boolVec)
	}

	opcode, err := comparisonOpcode(op, kind)
	if err != nil {
		return err
	}
	id := g.mb.AddBinaryOp(opcode, g.typeID(resultType), g.materialize(lhs), g.materialize(rhs))
	g.push(value{id: id, typ: resultType})
	return nil
}

func comparisonOpcode(op string, kind ir.ScalarKind) (OpCode, error) {
	if kind == ir.ScalarFloat {
		switch op {
		case "lt":
			return OpFOrdLessThan, nil
		case "le":
			return OpFOrdLessThanEqual, nil
		case "gt":
			return OpFOrdGreaterThan, nil
		case "ge":
			return OpFOrdGreaterThanEqual, nil
		case "eq":
			return OpFOrdEqual, nil
		case "ne":
			return OpFOrdNotEqual, nil
		}
		return 0, fmt.Errorf("compare: unrecognized operator %q", op)
	}
	if kind == ir.ScalarUint {
		switch op {
		case "lt":
			return OpULessThan, nil
		case "le":
			return OpULessThanEqual, nil
		case "gt":
			return OpUGreaterThan, nil
		case "ge":
			return OpUGreaterThanEqual, nil
		case "eq":
			return OpIEqual, nil
		case "ne":
			return OpINotEqual, nil
		}
		return 0, fmt.Errorf("compare: unrecognized operator %q", op)
	}
	switch op {
	case "lt":
		return OpSLessThan, nil
	case "le":
		return OpSLessThanEqual, nil
	case "gt":
		return OpSGreaterThan, nil
	case "ge":
		return OpSGreaterThanEqual, nil
	case "eq":
		return OpIEqual, nil
	case "ne":
		return OpINotEqual, nil
	}
	return 0, fmt.Errorf("compare: unrecognized operator %q", op)
}

// call dispatches a type constructor, a GLSL.std.450 math function, or the
// texture.sample/read/write sugar. stdlib./math./texture. prefixes are
// stripped before matching, per the front end's call-name convention.
func (g *generator) call(name string, nargs int) error {
	args := make([]value, nargs)
	for i := nargs - 1; i >= 0; i-- {
		args[i] = g.pop()
	}

	bare := name
	for _, prefix := range []string{"stdlib.", "math.", "texture."} {
		if len(name) > len(prefix) && name[:len(prefix)] == prefix {
			bare = name[len(prefix):]
			break
		}
	}

	switch bare {
	case "sample":
		return g.callSample(args)
	case "imageLoad", "read":
		return g.callTextureRead(args)
	case "imageStore", "write":
		return g.callTextureWrite(args)
	}

	if ext, ok := glslExtInst[bare]; ok {
		return g.callExtInst(ext, args)
	}

	// Fall back to a vector/matrix type constructor: call("vec3<f32>", n).
	resultHandle, err := ir.ParseTypeName(g.reg, bare)
	if err == nil {
		return g.constructType(resultHandle, args)
	}

	return fmt.Errorf("call: unrecognized function %q", name)
}

var glslExtInst = map[string]uint32{
	"sqrt":    GLSLstd450Sqrt,
	"pow":     GLSLstd450Pow,
	"sin":     GLSLstd450Sin,
	"cos":     GLSLstd450Cos,
	"tan":     GLSLstd450Tan,
	"floor":   GLSLstd450Floor,
	"ceil":    GLSLstd450Ceil,
	"abs":     GLSLstd450FAbs,
	"min":     GLSLstd450FMin,
	"max":     GLSLstd450FMax,
	"clamp":   GLSLstd450FClamp,
	"mix":     GLSLstd450FMix,
	"normalize": GLSLstd450Normalize,
	"length":   GLSLstd450Length,
	"cross":    GLSLstd450Cross,
	"reflect":  GLSLstd450Reflect,
	"exp":      GLSLstd450Exp,
	"log":      GLSLstd450Log,
	"exp2":     GLSLstd450Exp2,
	"log2":     GLSLstd450Log2,
}

func (g *generator) callExtInst(instruction uint32, args []value) error {
	if len(args) == 0 {
		return fmt.Errorf("call: extended instruction needs at least one operand")
	}
	resultType := args[0].typ
	operands := make([]uint32, len(args))
	for i, a := range args {
		operands[i] = g.materialize(a)
	}
	id := g.mb.AddExtInst(g.typeID(resultType), g.glslSet, instruction, operands...)
	g.push(value{id: id, typ: resultType})
	return nil
}

func (g *generator) constructType(resultHandle ir.TypeHandle, args []value) error {
	t, _ := g.reg.Lookup(resultHandle)
	vt, ok := t.Inner.(ir.VectorType)
	if !ok {
		parts := make([]uint32, len(args))
		for i, a := range args {
			parts[i] = g.materialize(a)
		}
		id := g.mb.AddCompositeConstruct(g.typeID(resultHandle), parts...)
		g.push(value{id: id, typ: resultHandle})
		return nil
	}

	parts := make([]uint32, 0, vt.Size)
	for _, a := range args {
		at, _ := g.reg.Lookup(a.typ)
		if avt, ok := at.Inner.(ir.VectorType); ok {
			// Flatten a shorter vector argument into its components,
			// converting each to the destination scalar type.
			for i := 0; i < int(avt.Size); i++ {
				scalarID := g.mb.AddCompositeExtract(g.typeID(g.scalarHandle(avt.Scalar)), g.materialize(a), uint32(i))
				converted, err := g.convertScalarTo(value{id: scalarID, typ: g.scalarHandle(avt.Scalar)}, vt.Scalar)
				if err != nil {
					return err
				}
				parts = append(parts, converted)
			}
			continue
		}
		converted, err := g.convertScalarTo(a, vt.Scalar)
		if err != nil {
			return err
		}
		parts = append(parts, converted)
	}
	if len(parts) != int(vt.Size) {
		return fmt.Errorf("call: vector constructor expected %d components, got %d", vt.Size, len(parts))
	}
	id := g.mb.AddCompositeConstruct(g.typeID(resultHandle), parts...)
	g.push(value{id: id, typ: resultHandle})
	return nil
}

// callSample implements texture.sample(tex, samp, coord): combine the
// texture and sampler into a SampledImage and emit an explicit-LOD sample
// at LOD 0, since the fragment-stage implicit-LOD form needs a derivative
// context this stack machine does not track.
func (g *generator) callSample(args []value) error {
	if len(args) != 3 {
		return fmt.Errorf("call: texture.sample expects (texture, sampler, coord), got %d args", len(args))
	}
	texVal, sampVal, coordVal := args[0], args[1], args[2]

	texType, _ := g.reg.Lookup(texVal.typ)
	img, ok := texType.Inner.(ir.ImageType)
	if !ok {
		return fmt.Errorf("call: texture.sample first argument is not a texture")
	}

	sampledImgHandle := g.reg.GetOrCreate(fmt.Sprintf("sampledimage<%d>", texVal.typ), ir.SampledImageType{Image: texVal.typ})
	sampledImgID := g.mb.AddSampledImage(g.typeID(sampledImgHandle), g.materialize(texVal), g.materialize(sampVal))

	var resultScalar ir.ScalarType
	switch img.SampleType {
	case ir.ImageSampleSint:
		resultScalar = ir.Int32
	case ir.ImageSampleUint:
		resultScalar = ir.UInt32
	default:
		resultScalar = ir.Float32
	}
	resultType := g.reg.GetOrCreate(vectorTypeName(ir.VectorType{Size: ir.Vec4, Scalar: resultScalar}), ir.VectorType{Size: ir.Vec4, Scalar: resultScalar})

	lodConst := g.mb.AddConstantFloat32(g.typeID(g.scalarHandle(ir.Float32)), 0)
	const operandLod = 0x2
	id := g.mb.AddImageSample(OpImageSampleExplicitLod, g.typeID(resultType), sampledImgID, g.materialize(coordVal), operandLod, lodConst)
	g.push(value{id: id, typ: resultType})
	return nil
}

// imageSampleResultScalar maps an image's sample-type component to the
// scalar its read/sample result vector is built from.
func imageSampleResultScalar(st ir.ImageSampleType) ir.ScalarType {
	switch st {
	case ir.ImageSampleSint:
		return ir.Int32
	case ir.ImageSampleUint:
		return ir.UInt32
	default:
		return ir.Float32
	}
}

// isIntegerCoordType reports whether typ is i32, ivec2 or ivec3, the only
// coordinate shapes texture.read/write accept.
func (g *generator) isIntegerCoordType(typ ir.TypeHandle) bool {
	t, ok := g.reg.Lookup(typ)
	if !ok {
		return false
	}
	switch inner := t.Inner.(type) {
	case ir.ScalarType:
		return inner == ir.Int32
	case ir.VectorType:
		return inner.Scalar == ir.Int32 && (inner.Size == ir.Vec2 || inner.Size == ir.Vec3)
	default:
		return false
	}
}

// callTextureRead implements texture.read(tex, coord) (aka imageLoad): a
// direct texel fetch from a storage image, no sampler involved. It rejects
// a non-storage texture (buildImageType gives storage textures sampled=2,
// depth=0 and the format from their type name), validates the coordinate
// shape, and declares the StorageImageReadWithoutFormat capability.
func (g *generator) callTextureRead(args []value) error {
	if len(args) != 2 {
		return fmt.Errorf("call: texture.read expects (texture, coord), got %d args", len(args))
	}
	texVal, coordVal := args[0], args[1]

	texType, _ := g.reg.Lookup(texVal.typ)
	img, ok := texType.Inner.(ir.ImageType)
	if !ok {
		return fmt.Errorf("call: texture.read first argument is not a texture")
	}
	if !img.Storage {
		return fmt.Errorf("call: texture.read requires a storage texture")
	}
	if !g.isIntegerCoordType(coordVal.typ) {
		return fmt.Errorf("call: texture.read expects coordinates of type i32, ivec2 or ivec3")
	}
	g.requireCapability(CapabilityStorageImageReadWithoutFormat)

	resultScalar := imageSampleResultScalar(img.SampleType)
	resultType := g.reg.GetOrCreate(vectorTypeName(ir.VectorType{Size: ir.Vec4, Scalar: resultScalar}), ir.VectorType{Size: ir.Vec4, Scalar: resultScalar})

	id := g.mb.AddImageRead(g.typeID(resultType), g.materialize(texVal), g.materialize(coordVal))
	g.push(value{id: id, typ: resultType})
	return nil
}

// callTextureWrite implements texture.write(tex, coord, color) (aka
// imageStore): stores a texel into a storage image, enforcing that color's
// type matches the image's sample-type component.
func (g *generator) callTextureWrite(args []value) error {
	if len(args) != 3 {
		return fmt.Errorf("call: texture.write expects (texture, coord, color), got %d args", len(args))
	}
	texVal, coordVal, colorVal := args[0], args[1], args[2]

	texType, _ := g.reg.Lookup(texVal.typ)
	img, ok := texType.Inner.(ir.ImageType)
	if !ok {
		return fmt.Errorf("call: texture.write first argument is not a texture")
	}
	if !img.Storage {
		return fmt.Errorf("call: texture.write requires a storage texture")
	}
	if !g.isIntegerCoordType(coordVal.typ) {
		return fmt.Errorf("call: texture.write expects coordinates of type i32, ivec2 or ivec3")
	}
	g.requireCapability(CapabilityStorageImageWriteWithoutFormat)

	wantScalar := imageSampleResultScalar(img.SampleType)
	wantType := g.reg.GetOrCreate(vectorTypeName(ir.VectorType{Size: ir.Vec4, Scalar: wantScalar}), ir.VectorType{Size: ir.Vec4, Scalar: wantScalar})
	if colorVal.typ != wantType {
		return fmt.Errorf("call: texture.write expected a %s color value, got a different type", vectorTypeName(ir.VectorType{Size: ir.Vec4, Scalar: wantScalar}))
	}

	g.mb.AddImageWrite(g.materialize(texVal), g.materialize(coordVal), g.materialize(colorVal))
	// texture.write returns nothing, but the front end still emits a
	// pop_top after every call statement; push a placeholder to balance
	// the stack for it to discard.
	g.push(value{})
	return nil
}

func (g *generator) label(name string) error {
	steps := g.tree.Label(name)
	for i, step := range steps {
		g.mb.PlaceLabel(step.Label)
		if !step.Final {
			g.mb.AddBranch(branchPlaceholderFor(g.mb, steps[i+1]))
		}
	}
	g.curLabel = name
	return nil
}

// branchPlaceholderFor resolves a hop block's unconditional successor, the
// step that follows it in the same sequence: that step's label id is
// already known, so the branch needs no forward patch.
func branchPlaceholderFor(mb *emit.ModuleBuilder, step cfg.Step) *emit.Placeholder {
	ph := emit.NewPlaceholder()
	ph.Set(mb.LabelID(step.Label))
	return ph
}

func (g *generator) branch(label string) error {
	g.storeVariablesForBlock(g.curLabel)
	ph, target := newBranchTarget(g.mb)
	g.tree.Branch(label, target)
	g.mb.AddBranch(ph)
	return nil
}

func (g *generator) branchConditional(trueLabel, falseLabel string) error {
	g.storeVariablesForBlock(g.curLabel)
	cond := g.pop()
	truePh, trueTarget := newBranchTarget(g.mb)
	falsePh, falseTarget := newBranchTarget(g.mb)
	mergePh, mergeTarget := newBranchTarget(g.mb)

	g.tree.Conditional(trueLabel, trueTarget, falseLabel, falseTarget, mergeTarget)
	g.mb.AddSelectionMerge(mergePh, SelectionControlNone)
	g.mb.AddBranchConditional(g.materialize(cond), truePh, falsePh)
	return nil
}

// branchLoop opens a loop header block: the header branches unconditionally
// into a synthetic body-start label so OpLoopMerge's own block never also
// carries the conditional test, matching SPIR-V's structured-loop shape.
func (g *generator) branchLoop(headerLabel, mergeLabel, continueLabel string) error {
	g.storeVariablesForBlock(g.curLabel)
	bodyStart := headerLabel + "-body"
	g.mb.AddLoopMerge(g.mb.LabelID(mergeLabel), g.mb.LabelID(continueLabel), LoopControlNone)
	ph := emit.NewPlaceholder()
	ph.Set(g.mb.LabelID(bodyStart))
	g.mb.AddBranch(ph)
	g.mb.PlaceLabel(bodyStart)
	// curLabel is intentionally left as headerLabel: bodyStart is an
	// emission-only artifact with no nsb.Label of its own, so the
	// pre-pass (which only keys blocks by nsb.Label ops) still treats
	// everything up to the next real label as part of headerLabel.
	return nil
}

func (g *generator) ret(hasValue bool) error {
	if !hasValue {
		g.mb.AddReturn()
		return nil
	}
	v := g.pop()
	g.mb.AddReturnValue(g.materialize(v))
	return nil
}
