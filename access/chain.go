// Package access resolves the structural member-access instructions the
// front end emits (load_attr, load_index, store_index) against the type
// system: swizzles and struct field names turn into constant component
// indices, and those indices accumulate into the access chain the SPIR-V
// back end threads through OpAccessChain/OpCompositeExtract/
// OpVectorShuffle.
//
// Grounded on python_shader's VariableAccessId usage in _generator_bc.py's
// co_load_attr/co_load_index/co_store_index: a struct attribute resolves
// to its declaration-order field index, a vector swizzle resolves to one
// or more component indices depending on letter count, and an index chain
// accumulates rather than immediately emitting a load until it either
// bottoms out (co_load_name's continuation) or is written to
// (co_store_index).
package access

import (
	"fmt"

	"github.com/shaderlab/nsbc/ir"
)

// SwizzleIndices converts a vector attribute string ("xyzw" or "rgba"
// letters, possibly repeated or mixed within one set) to component
// indices. An error is returned for any other letter.
func SwizzleIndices(attr string) ([]int, error) {
	indices := make([]int, 0, len(attr))
	for _, c := range attr {
		switch c {
		case 'x', 'r':
			indices = append(indices, 0)
		case 'y', 'g':
			indices = append(indices, 1)
		case 'z', 'b':
			indices = append(indices, 2)
		case 'w', 'a':
			indices = append(indices, 3)
		default:
			return nil, fmt.Errorf("access: invalid vector attribute %q", attr)
		}
	}
	return indices, nil
}

// StructFieldIndex returns the declaration-order index of the named member,
// and whether it was found.
func StructFieldIndex(members []ir.StructMember, name string) (int, bool) {
	for i, m := range members {
		if m.Name == name {
			return i, true
		}
	}
	return 0, false
}

// Kind classifies how an attribute access resolves, so the back end knows
// which SPIR-V instruction shape to emit.
type Kind uint8

const (
	// KindChainStep: append one constant index to an access chain (struct
	// field, or a single-component swizzle on an already-chained value).
	KindChainStep Kind = iota
	// KindExtract: a single-component swizzle read out of a value already
	// fully loaded into an SSA register (OpCompositeExtract).
	KindExtract
	// KindShuffle: a multi-component swizzle read out of a loaded vector
	// value (OpVectorShuffle).
	KindShuffle
)

// Resolution is the result of resolving one load_attr against a base type.
type Resolution struct {
	Kind       Kind
	Indices    []int
	ResultType ir.TypeHandle
}

// ResolveAttr resolves a load_attr access against baseType, mirroring
// co_load_attr's struct-vs-vector branching. chained reports whether the
// base value is itself an unresolved access chain (a VariableAccessId in
// the ported terminology) rather than an already-loaded SSA value; this
// changes single-component swizzles from an extract into a chain step.
func ResolveAttr(reg *ir.TypeRegistry, baseType ir.TypeHandle, attr string, chained bool) (Resolution, error) {
	t, ok := reg.Lookup(baseType)
	if !ok {
		return Resolution{}, fmt.Errorf("access: unknown type handle %d", baseType)
	}

	switch inner := t.Inner.(type) {
	case ir.StructType:
		idx, ok := StructFieldIndex(inner.Members, attr)
		if !ok {
			return Resolution{}, fmt.Errorf("access: attribute %q invalid for struct %s", attr, t.Name)
		}
		return Resolution{Kind: KindChainStep, Indices: []int{idx}, ResultType: inner.Members[idx].Type}, nil

	case ir.VectorType:
		indices, err := SwizzleIndices(attr)
		if err != nil {
			return Resolution{}, err
		}
		scalarHandle := reg.GetOrCreate(scalarName(inner.Scalar), inner.Scalar)
		if len(indices) == 1 {
			if chained {
				return Resolution{Kind: KindChainStep, Indices: indices, ResultType: scalarHandle}, nil
			}
			return Resolution{Kind: KindExtract, Indices: indices, ResultType: scalarHandle}, nil
		}
		resultType := ir.VectorType{Size: ir.VectorSize(len(indices)), Scalar: inner.Scalar}
		resultHandle := reg.GetOrCreate(vectorName(resultType), resultType)
		return Resolution{Kind: KindShuffle, Indices: indices, ResultType: resultHandle}, nil

	default:
		return Resolution{}, fmt.Errorf("access: unsupported attribute access on type %s", t.Name)
	}
}

func scalarName(s ir.ScalarType) string {
	switch s.Kind {
	case ir.ScalarSint:
		return fmt.Sprintf("i%d", s.Width*8)
	case ir.ScalarUint:
		return fmt.Sprintf("u%d", s.Width*8)
	case ir.ScalarBool:
		return "bool"
	default:
		return fmt.Sprintf("f%d", s.Width*8)
	}
}

func vectorName(v ir.VectorType) string {
	return fmt.Sprintf("vec%d<%s>", v.Size, scalarName(v.Scalar))
}

// Chain accumulates the indices an OpAccessChain instruction needs, one
// load_attr/load_index step at a time, before the back end commits it to
// either a load or a store.
type Chain struct {
	Base    uint32 // result id of the base pointer/variable
	Space   ir.AddressSpace
	Indices []uint32 // constant or dynamic id operands, in access order
	Elem    ir.TypeHandle
}

// Step returns a new chain with one more index appended, the way
// VariableAccessId.index() extends the chain rather than emitting
// anything immediately.
func (c Chain) Step(indexID uint32, elem ir.TypeHandle) Chain {
	indices := make([]uint32, len(c.Indices)+1)
	copy(indices, c.Indices)
	indices[len(c.Indices)] = indexID
	return Chain{Base: c.Base, Space: c.Space, Indices: indices, Elem: elem}
}
