package ir

import (
	"fmt"
	"math"
)

// ConstantValue is the closed set of constant shapes a ConstantPool can
// intern: a scalar bit pattern or a composite of other constants.
type ConstantValue interface {
	constantValue()
}

// ScalarValue is a scalar constant, stored as its raw bit pattern so that
// float/int/bool constants share one representation.
type ScalarValue struct {
	Bits uint64
	Kind ScalarKind
}

func (ScalarValue) constantValue() {}

// CompositeValue is a vector/matrix/array/struct constant built from other
// already-interned constants.
type CompositeValue struct {
	Components []ConstantHandle
}

func (CompositeValue) constantValue() {}

// Constant is a named, typed, interned constant value.
type Constant struct {
	Name  string
	Type  TypeHandle
	Value ConstantValue
}

// ConstantPool interns constants the same way TypeRegistry interns types:
// structurally identical (type, value) pairs share one handle, so SPIR-V's
// requirement that identical constants be declared once falls out of a map
// lookup.
type ConstantPool struct {
	constants []Constant
	keyMap    map[string]ConstantHandle
}

// NewConstantPool creates an empty constant pool.
func NewConstantPool() *ConstantPool {
	return &ConstantPool{
		constants: make([]Constant, 0, 16),
		keyMap:    make(map[string]ConstantHandle, 16),
	}
}

// Float32 interns a 32-bit float constant of type typ and returns its
// handle.
func (p *ConstantPool) Float32(typ TypeHandle, v float32) ConstantHandle {
	bits := uint64(math.Float32bits(v))
	return p.scalar(typ, ScalarValue{Bits: bits, Kind: ScalarFloat})
}

// Sint32 interns a 32-bit signed integer constant.
func (p *ConstantPool) Sint32(typ TypeHandle, v int32) ConstantHandle {
	return p.scalar(typ, ScalarValue{Bits: uint64(uint32(v)), Kind: ScalarSint})
}

// Uint32 interns a 32-bit unsigned integer constant.
func (p *ConstantPool) Uint32(typ TypeHandle, v uint32) ConstantHandle {
	return p.scalar(typ, ScalarValue{Bits: uint64(v), Kind: ScalarUint})
}

// Bool interns a boolean constant.
func (p *ConstantPool) Bool(typ TypeHandle, v bool) ConstantHandle {
	var b uint64
	if v {
		b = 1
	}
	return p.scalar(typ, ScalarValue{Bits: b, Kind: ScalarBool})
}

func (p *ConstantPool) scalar(typ TypeHandle, v ScalarValue) ConstantHandle {
	key := fmt.Sprintf("scalar:%d:%d:%d", typ, v.Kind, v.Bits)
	if h, ok := p.keyMap[key]; ok {
		return h
	}
	return p.insert(key, Constant{Type: typ, Value: v})
}

// Composite interns a composite constant built from component handles.
func (p *ConstantPool) Composite(typ TypeHandle, components []ConstantHandle) ConstantHandle {
	key := fmt.Sprintf("composite:%d", typ)
	for _, c := range components {
		key += fmt.Sprintf(":%d", c)
	}
	if h, ok := p.keyMap[key]; ok {
		return h
	}
	cs := make([]ConstantHandle, len(components))
	copy(cs, components)
	return p.insert(key, Constant{Type: typ, Value: CompositeValue{Components: cs}})
}

func (p *ConstantPool) insert(key string, c Constant) ConstantHandle {
	h := ConstantHandle(len(p.constants))
	p.constants = append(p.constants, c)
	p.keyMap[key] = h
	return h
}

// Lookup returns the constant registered under handle.
func (p *ConstantPool) Lookup(handle ConstantHandle) (Constant, bool) {
	if int(handle) >= len(p.constants) {
		return Constant{}, false
	}
	return p.constants[handle], true
}

// All returns every interned constant in registration order.
func (p *ConstantPool) All() []Constant {
	return p.constants
}
