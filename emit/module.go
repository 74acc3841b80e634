// Package emit assembles a SPIR-V module word by word: the flat,
// section-ordered instruction builder the back end drives, plus the one
// thing a bytecode-shaped back end needs that a tree-walking one doesn't —
// forward references. A branch or a selection/loop merge is often written
// before the control-flow reconstructor (package cfg) has decided which
// label it truly lands on, so its target word starts out as a Placeholder
// and gets patched once cfg resolves it.
//
// The section layout, instruction encoding and word-level builder API are
// carried over from this compiler's SPIR-V writer; only the placeholder
// mechanism and the name-keyed label registry are new.
package emit

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/shaderlab/nsbc/spirv"
)

// Placeholder is a SPIR-V id cell that starts unresolved and is filled in
// later, once the control-flow reconstructor has decided which label an
// instruction's forward reference truly lands on.
type Placeholder struct {
	resolved bool
	value    uint32
}

// NewPlaceholder returns an unresolved id cell.
func NewPlaceholder() *Placeholder {
	return &Placeholder{}
}

// Set resolves the placeholder to id. Calling Set more than once just
// overwrites the previous value — a placeholder may be re-pointed if the
// control-flow reconstructor discovers a deeper convergence later.
func (p *Placeholder) Set(id uint32) {
	p.resolved = true
	p.value = id
}

type pendingWord struct {
	index int
	ph    *Placeholder
}

// Instruction is one SPIR-V instruction: an opcode and its operand words.
type Instruction struct {
	Opcode  spirv.OpCode
	Words   []uint32
	pending []pendingWord
}

// Encode renders the instruction as its word sequence, including the
// leading (word-count<<16 | opcode) word SPIR-V's binary format requires.
func (i Instruction) Encode() []uint32 {
	out := make([]uint32, 0, len(i.Words)+1)
	out = append(out, (uint32(len(i.Words)+1)<<16)|uint32(i.Opcode))
	out = append(out, i.Words...)
	return out
}

// InstructionBuilder accumulates one instruction's operand words.
type InstructionBuilder struct {
	words   []uint32
	pending []pendingWord
}

// NewInstructionBuilder starts an empty instruction.
func NewInstructionBuilder() *InstructionBuilder {
	return &InstructionBuilder{words: make([]uint32, 0, 8)}
}

// AddWord appends a resolved operand word.
func (b *InstructionBuilder) AddWord(word uint32) {
	b.words = append(b.words, word)
}

// AddPlaceholder appends an operand word whose value isn't known yet; it
// is patched in before the module is serialized.
func (b *InstructionBuilder) AddPlaceholder(ph *Placeholder) {
	b.pending = append(b.pending, pendingWord{index: len(b.words), ph: ph})
	b.words = append(b.words, 0)
}

// AddString appends a null-terminated, word-padded UTF-8 string.
func (b *InstructionBuilder) AddString(s string) {
	data := []byte(s)
	if len(data) == 0 || data[len(data)-1] != 0 {
		data = append(data, 0)
	}
	for len(data)%4 != 0 {
		data = append(data, 0)
	}
	for i := 0; i < len(data); i += 4 {
		word := uint32(data[i]) | uint32(data[i+1])<<8 | uint32(data[i+2])<<16 | uint32(data[i+3])<<24
		b.words = append(b.words, word)
	}
}

// Build finalizes the instruction with the given opcode.
func (b *InstructionBuilder) Build(opcode spirv.OpCode) Instruction {
	return Instruction{Opcode: opcode, Words: b.words, pending: b.pending}
}

type patch struct {
	instrIdx int
	wordIdx  int
	ph       *Placeholder
}

// ModuleBuilder assembles a complete SPIR-V module, one instruction at a
// time, across the section order the spec mandates.
type ModuleBuilder struct {
	version spirv.Version
	bound   uint32
	schema  uint32

	capabilities   []Instruction
	extensions     []Instruction
	extInstImports []Instruction
	memoryModel    *Instruction
	entryPoints    []Instruction
	executionModes []Instruction
	debugStrings   []Instruction
	debugNames     []Instruction
	annotations    []Instruction
	types          []Instruction
	globalVars     []Instruction
	functions      []Instruction

	nextID   uint32
	labelIDs map[string]uint32
	patches  []patch

	// entryVarInsertIdx is the index in functions where the next
	// Function-storage OpVariable for the current function should be
	// inserted: right after the entry block's OpLabel, after any
	// variables already hoisted there. -1 outside a function or before
	// its entry block has been placed.
	entryVarInsertIdx int
}

// NewModuleBuilder starts an empty module targeting version.
func NewModuleBuilder(version spirv.Version) *ModuleBuilder {
	return &ModuleBuilder{
		version:           version,
		schema:            0,
		nextID:            1,
		labelIDs:          map[string]uint32{},
		entryVarInsertIdx: -1,
	}
}

// AllocID hands out the next unused result id.
func (b *ModuleBuilder) AllocID() uint32 {
	id := b.nextID
	b.nextID++
	return id
}

// LabelID returns the id standing for label name, allocating one on first
// request regardless of whether the label has been placed yet.
func (b *ModuleBuilder) LabelID(name string) uint32 {
	if id, ok := b.labelIDs[name]; ok {
		return id
	}
	id := b.AllocID()
	b.labelIDs[name] = id
	return id
}

func (b *ModuleBuilder) appendFunc(inst Instruction) {
	idx := len(b.functions)
	b.functions = append(b.functions, inst)
	for _, p := range inst.pending {
		b.patches = append(b.patches, patch{instrIdx: idx, wordIdx: p.index, ph: p.ph})
	}
}

func (b *ModuleBuilder) AddCapability(capability spirv.Capability) {
	ib := NewInstructionBuilder()
	ib.AddWord(uint32(capability))
	b.capabilities = append(b.capabilities, ib.Build(spirv.OpCapability))
}

func (b *ModuleBuilder) AddExtInstImport(name string) uint32 {
	id := b.AllocID()
	ib := NewInstructionBuilder()
	ib.AddWord(id)
	ib.AddString(name)
	b.extInstImports = append(b.extInstImports, ib.Build(spirv.OpExtInstImport))
	return id
}

func (b *ModuleBuilder) SetMemoryModel(addressing spirv.AddressingModel, memory spirv.MemoryModel) {
	ib := NewInstructionBuilder()
	ib.AddWord(uint32(addressing))
	ib.AddWord(uint32(memory))
	inst := ib.Build(spirv.OpMemoryModel)
	b.memoryModel = &inst
}

func (b *ModuleBuilder) AddEntryPoint(model spirv.ExecutionModel, funcID uint32, name string, interfaceIDs []uint32) {
	ib := NewInstructionBuilder()
	ib.AddWord(uint32(model))
	ib.AddWord(funcID)
	ib.AddString(name)
	for _, id := range interfaceIDs {
		ib.AddWord(id)
	}
	b.entryPoints = append(b.entryPoints, ib.Build(spirv.OpEntryPoint))
}

func (b *ModuleBuilder) AddExecutionMode(entryPoint uint32, mode spirv.ExecutionMode, params ...uint32) {
	ib := NewInstructionBuilder()
	ib.AddWord(entryPoint)
	ib.AddWord(uint32(mode))
	for _, p := range params {
		ib.AddWord(p)
	}
	b.executionModes = append(b.executionModes, ib.Build(spirv.OpExecutionMode))
}

func (b *ModuleBuilder) AddName(id uint32, name string) {
	ib := NewInstructionBuilder()
	ib.AddWord(id)
	ib.AddString(name)
	b.debugNames = append(b.debugNames, ib.Build(spirv.OpName))
}

func (b *ModuleBuilder) AddMemberName(structID, member uint32, name string) {
	ib := NewInstructionBuilder()
	ib.AddWord(structID)
	ib.AddWord(member)
	ib.AddString(name)
	b.debugNames = append(b.debugNames, ib.Build(spirv.OpMemberName))
}

func (b *ModuleBuilder) AddDecorate(id uint32, decoration spirv.Decoration, params ...uint32) {
	ib := NewInstructionBuilder()
	ib.AddWord(id)
	ib.AddWord(uint32(decoration))
	for _, p := range params {
		ib.AddWord(p)
	}
	b.annotations = append(b.annotations, ib.Build(spirv.OpDecorate))
}

func (b *ModuleBuilder) AddMemberDecorate(structID, member uint32, decoration spirv.Decoration, params ...uint32) {
	ib := NewInstructionBuilder()
	ib.AddWord(structID)
	ib.AddWord(member)
	ib.AddWord(uint32(decoration))
	for _, p := range params {
		ib.AddWord(p)
	}
	b.annotations = append(b.annotations, ib.Build(spirv.OpMemberDecorate))
}

func (b *ModuleBuilder) AddTypeVoid() uint32 {
	id := b.AllocID()
	ib := NewInstructionBuilder()
	ib.AddWord(id)
	b.types = append(b.types, ib.Build(spirv.OpTypeVoid))
	return id
}

func (b *ModuleBuilder) AddTypeBool() uint32 {
	id := b.AllocID()
	ib := NewInstructionBuilder()
	ib.AddWord(id)
	b.types = append(b.types, ib.Build(spirv.OpTypeBool))
	return id
}

func (b *ModuleBuilder) AddTypeFloat(width uint32) uint32 {
	id := b.AllocID()
	ib := NewInstructionBuilder()
	ib.AddWord(id)
	ib.AddWord(width)
	b.types = append(b.types, ib.Build(spirv.OpTypeFloat))
	return id
}

func (b *ModuleBuilder) AddTypeInt(width uint32, signed bool) uint32 {
	id := b.AllocID()
	ib := NewInstructionBuilder()
	ib.AddWord(id)
	ib.AddWord(width)
	if signed {
		ib.AddWord(1)
	} else {
		ib.AddWord(0)
	}
	b.types = append(b.types, ib.Build(spirv.OpTypeInt))
	return id
}

func (b *ModuleBuilder) AddTypeVector(component uint32, count uint32) uint32 {
	id := b.AllocID()
	ib := NewInstructionBuilder()
	ib.AddWord(id)
	ib.AddWord(component)
	ib.AddWord(count)
	b.types = append(b.types, ib.Build(spirv.OpTypeVector))
	return id
}

func (b *ModuleBuilder) AddTypeMatrix(column uint32, columnCount uint32) uint32 {
	id := b.AllocID()
	ib := NewInstructionBuilder()
	ib.AddWord(id)
	ib.AddWord(column)
	ib.AddWord(columnCount)
	b.types = append(b.types, ib.Build(spirv.OpTypeMatrix))
	return id
}

func (b *ModuleBuilder) AddTypeArray(element uint32, lengthConstID uint32) uint32 {
	id := b.AllocID()
	ib := NewInstructionBuilder()
	ib.AddWord(id)
	ib.AddWord(element)
	ib.AddWord(lengthConstID)
	b.types = append(b.types, ib.Build(spirv.OpTypeArray))
	return id
}

func (b *ModuleBuilder) AddTypePointer(storageClass spirv.StorageClass, base uint32) uint32 {
	id := b.AllocID()
	ib := NewInstructionBuilder()
	ib.AddWord(id)
	ib.AddWord(uint32(storageClass))
	ib.AddWord(base)
	b.types = append(b.types, ib.Build(spirv.OpTypePointer))
	return id
}

func (b *ModuleBuilder) AddTypeFunction(result uint32, params ...uint32) uint32 {
	id := b.AllocID()
	ib := NewInstructionBuilder()
	ib.AddWord(id)
	ib.AddWord(result)
	for _, p := range params {
		ib.AddWord(p)
	}
	b.types = append(b.types, ib.Build(spirv.OpTypeFunction))
	return id
}

func (b *ModuleBuilder) AddTypeStruct(members ...uint32) uint32 {
	id := b.AllocID()
	ib := NewInstructionBuilder()
	ib.AddWord(id)
	for _, m := range members {
		ib.AddWord(m)
	}
	b.types = append(b.types, ib.Build(spirv.OpTypeStruct))
	return id
}

func (b *ModuleBuilder) AddTypeSampler() uint32 {
	id := b.AllocID()
	ib := NewInstructionBuilder()
	ib.AddWord(id)
	b.types = append(b.types, ib.Build(spirv.OpTypeSampler))
	return id
}

func (b *ModuleBuilder) AddTypeRuntimeArray(element uint32) uint32 {
	id := b.AllocID()
	ib := NewInstructionBuilder()
	ib.AddWord(id)
	ib.AddWord(element)
	b.types = append(b.types, ib.Build(spirv.OpTypeRuntimeArray))
	return id
}

func (b *ModuleBuilder) AddTypeImage(sampledType uint32, dim uint32, depth, arrayed, ms, sampled uint32, format spirv.ImageFormat) uint32 {
	id := b.AllocID()
	ib := NewInstructionBuilder()
	ib.AddWord(id)
	ib.AddWord(sampledType)
	ib.AddWord(dim)
	ib.AddWord(depth)
	ib.AddWord(arrayed)
	ib.AddWord(ms)
	ib.AddWord(sampled)
	ib.AddWord(uint32(format))
	b.types = append(b.types, ib.Build(spirv.OpTypeImage))
	return id
}

func (b *ModuleBuilder) AddTypeSampledImage(imageType uint32) uint32 {
	id := b.AllocID()
	ib := NewInstructionBuilder()
	ib.AddWord(id)
	ib.AddWord(imageType)
	b.types = append(b.types, ib.Build(spirv.OpTypeSampledImage))
	return id
}

func (b *ModuleBuilder) AddConstant(typeID uint32, values ...uint32) uint32 {
	id := b.AllocID()
	ib := NewInstructionBuilder()
	ib.AddWord(typeID)
	ib.AddWord(id)
	for _, v := range values {
		ib.AddWord(v)
	}
	b.types = append(b.types, ib.Build(spirv.OpConstant))
	return id
}

func (b *ModuleBuilder) AddConstantFloat32(typeID uint32, value float32) uint32 {
	return b.AddConstant(typeID, math.Float32bits(value))
}

func (b *ModuleBuilder) AddConstantComposite(typeID uint32, constituents ...uint32) uint32 {
	id := b.AllocID()
	ib := NewInstructionBuilder()
	ib.AddWord(typeID)
	ib.AddWord(id)
	for _, c := range constituents {
		ib.AddWord(c)
	}
	b.types = append(b.types, ib.Build(spirv.OpConstantComposite))
	return id
}

func (b *ModuleBuilder) AddVariable(pointerType uint32, storageClass spirv.StorageClass) uint32 {
	id := b.AllocID()
	ib := NewInstructionBuilder()
	ib.AddWord(pointerType)
	ib.AddWord(id)
	ib.AddWord(uint32(storageClass))
	b.globalVars = append(b.globalVars, ib.Build(spirv.OpVariable))
	return id
}

// AddLocalVariable declares a Function-storage-class variable inside the
// current function body, which SPIR-V requires to sit in the function's
// first block rather than wherever control flow first needs it. A name's
// first store can happen anywhere — a loop body, a continue block — so
// this inserts the OpVariable right after the entry block's OpLabel
// instead of appending it at the current emission cursor.
func (b *ModuleBuilder) AddLocalVariable(pointerType uint32, storageClass spirv.StorageClass) uint32 {
	id := b.AllocID()
	ib := NewInstructionBuilder()
	ib.AddWord(pointerType)
	ib.AddWord(id)
	ib.AddWord(uint32(storageClass))
	inst := ib.Build(spirv.OpVariable)

	if b.entryVarInsertIdx == -1 {
		// No block placed yet (declared before the entry label, e.g. a
		// parameterless function whose first instruction is the
		// variable itself): appending is already correct.
		b.appendFunc(inst)
		return id
	}

	idx := b.entryVarInsertIdx
	b.functions = append(b.functions, Instruction{})
	copy(b.functions[idx+1:], b.functions[idx:])
	b.functions[idx] = inst
	for i, p := range b.patches {
		if p.instrIdx >= idx {
			b.patches[i].instrIdx++
		}
	}
	for _, p := range inst.pending {
		b.patches = append(b.patches, patch{instrIdx: idx, wordIdx: p.index, ph: p.ph})
	}
	b.entryVarInsertIdx++
	return id
}

func (b *ModuleBuilder) AddFunction(funcType, returnType uint32, control spirv.FunctionControl) uint32 {
	id := b.AllocID()
	ib := NewInstructionBuilder()
	ib.AddWord(returnType)
	ib.AddWord(id)
	ib.AddWord(uint32(control))
	ib.AddWord(funcType)
	b.appendFunc(ib.Build(spirv.OpFunction))
	b.entryVarInsertIdx = -1
	return id
}

func (b *ModuleBuilder) AddFunctionParameter(typeID uint32) uint32 {
	id := b.AllocID()
	ib := NewInstructionBuilder()
	ib.AddWord(typeID)
	ib.AddWord(id)
	b.appendFunc(ib.Build(spirv.OpFunctionParameter))
	return id
}

// PlaceLabel emits OpLabel for name, using whatever id was already
// allocated to it (by an earlier forward reference) or allocating a fresh
// one now.
func (b *ModuleBuilder) PlaceLabel(name string) uint32 {
	id := b.LabelID(name)
	ib := NewInstructionBuilder()
	ib.AddWord(id)
	b.appendFunc(ib.Build(spirv.OpLabel))
	if b.entryVarInsertIdx == -1 {
		b.entryVarInsertIdx = len(b.functions)
	}
	return id
}

func (b *ModuleBuilder) AddReturn() {
	b.appendFunc(NewInstructionBuilder().Build(spirv.OpReturn))
}

func (b *ModuleBuilder) AddReturnValue(value uint32) {
	ib := NewInstructionBuilder()
	ib.AddWord(value)
	b.appendFunc(ib.Build(spirv.OpReturnValue))
}

func (b *ModuleBuilder) AddFunctionEnd() {
	b.appendFunc(NewInstructionBuilder().Build(spirv.OpFunctionEnd))
}

func (b *ModuleBuilder) AddBinaryOp(opcode spirv.OpCode, resultType, left, right uint32) uint32 {
	id := b.AllocID()
	ib := NewInstructionBuilder()
	ib.AddWord(resultType)
	ib.AddWord(id)
	ib.AddWord(left)
	ib.AddWord(right)
	b.appendFunc(ib.Build(opcode))
	return id
}

func (b *ModuleBuilder) AddUnaryOp(opcode spirv.OpCode, resultType, operand uint32) uint32 {
	id := b.AllocID()
	ib := NewInstructionBuilder()
	ib.AddWord(resultType)
	ib.AddWord(id)
	ib.AddWord(operand)
	b.appendFunc(ib.Build(opcode))
	return id
}

func (b *ModuleBuilder) AddLoad(resultType, pointer uint32) uint32 {
	id := b.AllocID()
	ib := NewInstructionBuilder()
	ib.AddWord(resultType)
	ib.AddWord(id)
	ib.AddWord(pointer)
	b.appendFunc(ib.Build(spirv.OpLoad))
	return id
}

func (b *ModuleBuilder) AddStore(pointer, value uint32) {
	ib := NewInstructionBuilder()
	ib.AddWord(pointer)
	ib.AddWord(value)
	b.appendFunc(ib.Build(spirv.OpStore))
}

func (b *ModuleBuilder) AddAccessChain(resultType, base uint32, indices ...uint32) uint32 {
	id := b.AllocID()
	ib := NewInstructionBuilder()
	ib.AddWord(resultType)
	ib.AddWord(id)
	ib.AddWord(base)
	for _, idx := range indices {
		ib.AddWord(idx)
	}
	b.appendFunc(ib.Build(spirv.OpAccessChain))
	return id
}

func (b *ModuleBuilder) AddCompositeConstruct(resultType uint32, constituents ...uint32) uint32 {
	id := b.AllocID()
	ib := NewInstructionBuilder()
	ib.AddWord(resultType)
	ib.AddWord(id)
	for _, c := range constituents {
		ib.AddWord(c)
	}
	b.appendFunc(ib.Build(spirv.OpCompositeConstruct))
	return id
}

func (b *ModuleBuilder) AddCompositeExtract(resultType, composite uint32, indices ...uint32) uint32 {
	id := b.AllocID()
	ib := NewInstructionBuilder()
	ib.AddWord(resultType)
	ib.AddWord(id)
	ib.AddWord(composite)
	for _, idx := range indices {
		ib.AddWord(idx)
	}
	b.appendFunc(ib.Build(spirv.OpCompositeExtract))
	return id
}

func (b *ModuleBuilder) AddVectorExtractDynamic(resultType, vector, index uint32) uint32 {
	id := b.AllocID()
	ib := NewInstructionBuilder()
	ib.AddWord(resultType)
	ib.AddWord(id)
	ib.AddWord(vector)
	ib.AddWord(index)
	b.appendFunc(ib.Build(spirv.OpVectorExtractDynamic))
	return id
}

func (b *ModuleBuilder) AddVectorInsertDynamic(resultType, vector, component, index uint32) uint32 {
	id := b.AllocID()
	ib := NewInstructionBuilder()
	ib.AddWord(resultType)
	ib.AddWord(id)
	ib.AddWord(vector)
	ib.AddWord(component)
	ib.AddWord(index)
	b.appendFunc(ib.Build(spirv.OpVectorInsertDynamic))
	return id
}

func (b *ModuleBuilder) AddVectorShuffle(resultType, vec1, vec2 uint32, components []uint32) uint32 {
	id := b.AllocID()
	ib := NewInstructionBuilder()
	ib.AddWord(resultType)
	ib.AddWord(id)
	ib.AddWord(vec1)
	ib.AddWord(vec2)
	for _, c := range components {
		ib.AddWord(c)
	}
	b.appendFunc(ib.Build(spirv.OpVectorShuffle))
	return id
}

func (b *ModuleBuilder) AddSelect(resultType, condition, accept, reject uint32) uint32 {
	id := b.AllocID()
	ib := NewInstructionBuilder()
	ib.AddWord(resultType)
	ib.AddWord(id)
	ib.AddWord(condition)
	ib.AddWord(accept)
	ib.AddWord(reject)
	b.appendFunc(ib.Build(spirv.OpSelect))
	return id
}

// AddSelectionMerge emits OpSelectionMerge with a merge target that may
// still be unresolved; mergePh is patched once cfg.Tree.Label finds where
// the two arms this guards actually converge.
func (b *ModuleBuilder) AddSelectionMerge(mergePh *Placeholder, control spirv.SelectionControl) {
	ib := NewInstructionBuilder()
	ib.AddPlaceholder(mergePh)
	ib.AddWord(uint32(control))
	b.appendFunc(ib.Build(spirv.OpSelectionMerge))
}

// AddLoopMerge emits OpLoopMerge with merge/continue targets that are
// known immediately: a loop's NSB scaffolding always declares them
// up front, unlike a plain if/else's merge point.
func (b *ModuleBuilder) AddLoopMerge(mergeLabel, continueLabel uint32, control spirv.LoopControl) {
	ib := NewInstructionBuilder()
	ib.AddWord(mergeLabel)
	ib.AddWord(continueLabel)
	ib.AddWord(uint32(control))
	b.appendFunc(ib.Build(spirv.OpLoopMerge))
}

func (b *ModuleBuilder) AddBranch(targetPh *Placeholder) {
	ib := NewInstructionBuilder()
	ib.AddPlaceholder(targetPh)
	b.appendFunc(ib.Build(spirv.OpBranch))
}

func (b *ModuleBuilder) AddBranchConditional(condition uint32, truePh, falsePh *Placeholder) {
	ib := NewInstructionBuilder()
	ib.AddWord(condition)
	ib.AddPlaceholder(truePh)
	ib.AddPlaceholder(falsePh)
	b.appendFunc(ib.Build(spirv.OpBranchConditional))
}

func (b *ModuleBuilder) AddKill() {
	b.appendFunc(NewInstructionBuilder().Build(spirv.OpKill))
}

func (b *ModuleBuilder) AddExtInst(resultType, extSet, instruction uint32, operands ...uint32) uint32 {
	id := b.AllocID()
	ib := NewInstructionBuilder()
	ib.AddWord(resultType)
	ib.AddWord(id)
	ib.AddWord(extSet)
	ib.AddWord(instruction)
	for _, op := range operands {
		ib.AddWord(op)
	}
	b.appendFunc(ib.Build(spirv.OpExtInst))
	return id
}

func (b *ModuleBuilder) AddSampledImage(resultType, image, sampler uint32) uint32 {
	id := b.AllocID()
	ib := NewInstructionBuilder()
	ib.AddWord(resultType)
	ib.AddWord(id)
	ib.AddWord(image)
	ib.AddWord(sampler)
	b.appendFunc(ib.Build(spirv.OpSampledImage))
	return id
}

func (b *ModuleBuilder) AddImageSample(opcode spirv.OpCode, resultType, sampledImage, coordinate uint32, operands ...uint32) uint32 {
	id := b.AllocID()
	ib := NewInstructionBuilder()
	ib.AddWord(resultType)
	ib.AddWord(id)
	ib.AddWord(sampledImage)
	ib.AddWord(coordinate)
	for _, op := range operands {
		ib.AddWord(op)
	}
	b.appendFunc(ib.Build(opcode))
	return id
}

// AddImageRead emits OpImageRead: a texel fetch from a storage image at an
// integer coordinate, no sampler involved.
func (b *ModuleBuilder) AddImageRead(resultType, image, coordinate uint32) uint32 {
	id := b.AllocID()
	ib := NewInstructionBuilder()
	ib.AddWord(resultType)
	ib.AddWord(id)
	ib.AddWord(image)
	ib.AddWord(coordinate)
	b.appendFunc(ib.Build(spirv.OpImageRead))
	return id
}

// AddImageWrite emits OpImageWrite: stores texel into a storage image at an
// integer coordinate. It has no result id.
func (b *ModuleBuilder) AddImageWrite(image, coordinate, texel uint32) {
	ib := NewInstructionBuilder()
	ib.AddWord(image)
	ib.AddWord(coordinate)
	ib.AddWord(texel)
	b.appendFunc(ib.Build(spirv.OpImageWrite))
}

// Build resolves every pending placeholder and serializes the module to
// its binary word stream.
func (b *ModuleBuilder) Build() ([]byte, error) {
	for _, p := range b.patches {
		if !p.ph.resolved {
			return nil, fmt.Errorf("emit: unresolved branch target in function instruction %d", p.instrIdx)
		}
		b.functions[p.instrIdx].Words[p.wordIdx] = p.ph.value
	}

	b.bound = b.nextID

	total := 5
	total += countWords(b.capabilities)
	total += countWords(b.extensions)
	total += countWords(b.extInstImports)
	if b.memoryModel != nil {
		total += len(b.memoryModel.Encode())
	}
	total += countWords(b.entryPoints)
	total += countWords(b.executionModes)
	total += countWords(b.debugStrings)
	total += countWords(b.debugNames)
	total += countWords(b.annotations)
	total += countWords(b.types)
	total += countWords(b.globalVars)
	total += countWords(b.functions)

	buf := make([]byte, total*4)
	offset := 0
	put := func(word uint32) {
		binary.LittleEndian.PutUint32(buf[offset:], word)
		offset += 4
	}
	put(spirv.MagicNumber)
	put(versionWord(b.version))
	put(spirv.GeneratorID)
	put(b.bound)
	put(b.schema)

	offset = writeAll(buf, offset, b.capabilities)
	offset = writeAll(buf, offset, b.extensions)
	offset = writeAll(buf, offset, b.extInstImports)
	if b.memoryModel != nil {
		offset = writeOne(buf, offset, *b.memoryModel)
	}
	offset = writeAll(buf, offset, b.entryPoints)
	offset = writeAll(buf, offset, b.executionModes)
	offset = writeAll(buf, offset, b.debugStrings)
	offset = writeAll(buf, offset, b.debugNames)
	offset = writeAll(buf, offset, b.annotations)
	offset = writeAll(buf, offset, b.types)
	offset = writeAll(buf, offset, b.globalVars)
	_ = writeAll(buf, offset, b.functions)

	return buf, nil
}

func countWords(instrs []Instruction) int {
	n := 0
	for _, inst := range instrs {
		n += len(inst.Encode())
	}
	return n
}

func writeAll(buf []byte, offset int, instrs []Instruction) int {
	for _, inst := range instrs {
		offset = writeOne(buf, offset, inst)
	}
	return offset
}

func writeOne(buf []byte, offset int, inst Instruction) int {
	for _, w := range inst.Encode() {
		binary.LittleEndian.PutUint32(buf[offset:], w)
		offset += 4
	}
	return offset
}

func versionWord(v spirv.Version) uint32 {
	return (uint32(v.Major) << 16) | (uint32(v.Minor) << 8)
}
