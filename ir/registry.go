package ir

import (
	"fmt"
	"strconv"
)

// TypeRegistry interns types by structural equality: two calls to
// GetOrCreate with structurally identical TypeInner values always return
// the same handle, so SPIR-V's "each unique type declared exactly once"
// rule falls out of map lookup rather than an explicit dedup pass.
type TypeRegistry struct {
	types   []Type
	typeMap map[string]TypeHandle
	keyBuf  []byte
}

// NewTypeRegistry creates an empty type registry.
func NewTypeRegistry() *TypeRegistry {
	return &TypeRegistry{
		types:   make([]Type, 0, 16),
		typeMap: make(map[string]TypeHandle, 16),
		keyBuf:  make([]byte, 0, 64),
	}
}

// GetOrCreate returns the handle for an existing structurally-equal type,
// or registers inner as a new type under name.
func (r *TypeRegistry) GetOrCreate(name string, inner TypeInner) TypeHandle {
	key := r.normalizeType(inner)

	if handle, exists := r.typeMap[key]; exists {
		return handle
	}

	handle := TypeHandle(len(r.types))
	r.types = append(r.types, Type{Name: name, Inner: inner})
	r.typeMap[key] = handle
	return handle
}

// GetTypes returns all registered types in registration order.
func (r *TypeRegistry) GetTypes() []Type {
	return r.types
}

// normalizeType builds a string key identifying inner's structural shape.
func (r *TypeRegistry) normalizeType(inner TypeInner) string {
	b := r.keyBuf[:0]

	switch t := inner.(type) {
	case ScalarType:
		b = append(b, "scalar:"...)
		b = strconv.AppendInt(b, int64(t.Kind), 10)
		b = append(b, ':')
		b = strconv.AppendUint(b, uint64(t.Width), 10)
		r.keyBuf = b
		return string(b)

	case VectorType:
		scalarKey := r.normalizeType(t.Scalar)
		return "vec:" + strconv.FormatUint(uint64(t.Size), 10) + ":" + scalarKey

	case MatrixType:
		scalarKey := r.normalizeType(t.Scalar)
		return "mat:" + strconv.FormatUint(uint64(t.Columns), 10) + "x" + strconv.FormatUint(uint64(t.Rows), 10) + ":" + scalarKey

	case ArrayType:
		var sizeKey string
		if t.Size.Constant != nil {
			sizeKey = strconv.FormatUint(uint64(*t.Size.Constant), 10)
		} else {
			sizeKey = "runtime"
		}
		return "array:" + strconv.FormatInt(int64(t.Base), 10) + ":" + sizeKey + ":" + strconv.FormatUint(uint64(t.Stride), 10)

	case StructType:
		key := fmt.Sprintf("struct:%d:%d", len(t.Members), t.Span)
		for _, member := range t.Members {
			key += fmt.Sprintf(":m(%s,%d,%d)", member.Name, member.Type, member.Offset)
		}
		return key

	case PointerType:
		return "ptr:" + strconv.FormatInt(int64(t.Base), 10) + ":" + strconv.FormatInt(int64(t.Space), 10)

	case SamplerType:
		if t.Comparison {
			return "sampler:true"
		}
		return "sampler:false"

	case ImageType:
		return fmt.Sprintf("image:%d:%v:%v:%d:%v:%d", t.Dim, t.Arrayed, t.Multisampled, t.SampleType, t.Storage, t.Format)

	case SampledImageType:
		return "sampledimage:" + strconv.FormatInt(int64(t.Image), 10)

	case FunctionType:
		key := fmt.Sprintf("func:%d", t.Result)
		for _, a := range t.Args {
			key += fmt.Sprintf(":%d", a)
		}
		return key

	default:
		return fmt.Sprintf("unknown:%T", inner)
	}
}

// Lookup returns the type registered under handle.
func (r *TypeRegistry) Lookup(handle TypeHandle) (Type, bool) {
	if int(handle) >= len(r.types) {
		return Type{}, false
	}
	return r.types[handle], true
}

// Count returns the number of unique types registered.
func (r *TypeRegistry) Count() int {
	return len(r.types)
}
