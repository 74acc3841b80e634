// Package nsb defines Normalized Shader Bytecode: the structured-control-flow
// stack IR produced by the front-end translator and consumed by the SPIR-V
// back-end generator.
//
// The alphabet is closed and fixed-arity. Every instruction is one of the
// concrete Op types below; Program is an ordered stream of them. Each Op
// also marshals to and from a JSON tuple `[tag, arg...]`, satisfying the
// "NSB is JSON-representable" requirement of the external interface.
package nsb

import (
	"encoding/json"
	"fmt"
)

// Op is the closed set of NSB instructions. Only this package may add new
// cases: every variant implements the unexported marker method.
type Op interface {
	opKind()
	Tag() string
}

// Program is an ordered Normalized Shader Bytecode stream for one entry
// point function.
type Program struct {
	Ops []Op
}

// Arg describes one entry-point parameter's resource binding.
type Arg struct {
	Name     string `json:"name"`
	Kind     string `json:"kind"` // "input", "output", "uniform", "buffer", "sampler", "texture"
	Slot     int    `json:"slot"`
	TypeName string `json:"type"`
}

// EntryPoint opens a function: declares its name and shader stage, and
// optionally argument resource bindings in Args. The front end leaves Args
// empty and declares each argument with a Resource op instead.
type EntryPoint struct {
	Name  string
	Stage string // "vertex", "fragment", "compute"
	Args  []Arg
}

func (EntryPoint) opKind()        {}
func (EntryPoint) Tag() string    { return "entrypoint" }

// FuncEnd closes the function opened by EntryPoint.
type FuncEnd struct{}

func (FuncEnd) opKind()     {}
func (FuncEnd) Tag() string { return "func_end" }

// Resource declares one module-scope resource binding. The front end emits
// one per entry-point argument, right after the EntryPoint op.
type Resource struct {
	Kind     string // "input", "output", "uniform", "buffer", "sampler", "texture"
	Name     string
	Slot     int
	Group    int
	TypeName string
}

func (Resource) opKind()     {}
func (Resource) Tag() string { return "resource" }

// PopTop discards the top-of-stack value.
type PopTop struct{}

func (PopTop) opKind()     {}
func (PopTop) Tag() string { return "pop_top" }

// DupTop duplicates the top-of-stack value.
type DupTop struct{}

func (DupTop) opKind()     {}
func (DupTop) Tag() string { return "dup_top" }

// RotTwo swaps the top two stack values.
type RotTwo struct{}

func (RotTwo) opKind()     {}
func (RotTwo) Tag() string { return "rot_two" }

// LoadName pushes the current value of a local or resource name.
type LoadName struct{ Name string }

func (LoadName) opKind()     {}
func (LoadName) Tag() string { return "load_name" }

// StoreName pops the top of stack into a local or resource name.
type StoreName struct{ Name string }

func (StoreName) opKind()     {}
func (StoreName) Tag() string { return "store_name" }

// LoadConstant pushes a literal value (bool, int, float).
type LoadConstant struct{ Value any }

func (LoadConstant) opKind()     {}
func (LoadConstant) Tag() string { return "load_constant" }

// LoadAttr pops an object and pushes one of its named members or swizzle
// components (e.g. ".xy", ".w").
type LoadAttr struct{ Attr string }

func (LoadAttr) opKind()     {}
func (LoadAttr) Tag() string { return "load_attr" }

// LoadIndex pops an index and a container and pushes container[index].
type LoadIndex struct{}

func (LoadIndex) opKind()     {}
func (LoadIndex) Tag() string { return "load_index" }

// StoreIndex pops a value, an index and a container and stores
// container[index] = value.
type StoreIndex struct{}

func (StoreIndex) opKind()     {}
func (StoreIndex) Tag() string { return "store_index" }

// LoadArray pops N values and pushes them packed as one array/vector value.
type LoadArray struct{ N int }

func (LoadArray) opKind()     {}
func (LoadArray) Tag() string { return "load_array" }

// BinaryOp pops two operands and pushes the result of a dyadic arithmetic
// or logical operator. Op is one of: add, sub, mul, div, mod, and, or.
type BinaryOp struct{ Op string }

func (BinaryOp) opKind()     {}
func (BinaryOp) Tag() string { return "binary_op" }

// UnaryOp pops one operand and pushes the result of a monadic operator.
// Op is one of: neg, not.
type UnaryOp struct{ Op string }

func (UnaryOp) opKind()     {}
func (UnaryOp) Tag() string { return "unary_op" }

// Compare pops two operands and pushes a bool result. Op is one of: lt, le,
// eq, ne, gt, ge.
type Compare struct{ Op string }

func (Compare) opKind()     {}
func (Compare) Tag() string { return "compare" }

// Call pops NArgs operands and pushes the result of calling Name (a type
// constructor or a stdlib/math/texture external function).
type Call struct {
	Name  string
	NArgs int
}

func (Call) opKind()     {}
func (Call) Tag() string { return "call" }

// Label marks a branch target. Names are canonicalized to L1..Lk in
// first-appearance order by the front end before emission.
type Label struct{ Name string }

func (Label) opKind()     {}
func (Label) Tag() string { return "label" }

// Branch is an unconditional jump.
type Branch struct{ Label string }

func (Branch) opKind()     {}
func (Branch) Tag() string { return "branch" }

// BranchConditional pops a bool and jumps to TrueLabel or FalseLabel.
type BranchConditional struct {
	TrueLabel  string
	FalseLabel string
}

func (BranchConditional) opKind()     {}
func (BranchConditional) Tag() string { return "branch_conditional" }

// BranchLoop marks a loop header: HeaderLabel is this instruction's own
// label, MergeLabel is the label reached when the loop exits, and
// ContinueLabel is the label a `continue` jumps to.
type BranchLoop struct {
	HeaderLabel   string
	MergeLabel    string
	ContinueLabel string
}

func (BranchLoop) opKind()     {}
func (BranchLoop) Tag() string { return "branch_loop" }

// Return pops the function's result (if any) and exits.
type Return struct{ HasValue bool }

func (Return) opKind()     {}
func (Return) Tag() string { return "return" }

// MarshalJSON renders p as an array of `[tag, arg...]` tuples.
func (p Program) MarshalJSON() ([]byte, error) {
	tuples := make([]json.RawMessage, len(p.Ops))
	for i, op := range p.Ops {
		raw, err := marshalOp(op)
		if err != nil {
			return nil, fmt.Errorf("nsb: op %d: %w", i, err)
		}
		tuples[i] = raw
	}
	return json.Marshal(tuples)
}

// UnmarshalJSON parses an array of `[tag, arg...]` tuples back into ops.
func (p *Program) UnmarshalJSON(data []byte) error {
	var tuples []json.RawMessage
	if err := json.Unmarshal(data, &tuples); err != nil {
		return err
	}
	ops := make([]Op, len(tuples))
	for i, raw := range tuples {
		op, err := unmarshalOp(raw)
		if err != nil {
			return fmt.Errorf("nsb: op %d: %w", i, err)
		}
		ops[i] = op
	}
	p.Ops = ops
	return nil
}

func marshalOp(op Op) (json.RawMessage, error) {
	switch o := op.(type) {
	case EntryPoint:
		return json.Marshal([]any{o.Tag(), o.Name, o.Stage, o.Args})
	case FuncEnd:
		return json.Marshal([]any{o.Tag()})
	case Resource:
		return json.Marshal([]any{o.Tag(), o.Kind, o.Name, o.Slot, o.Group, o.TypeName})
	case PopTop:
		return json.Marshal([]any{o.Tag()})
	case DupTop:
		return json.Marshal([]any{o.Tag()})
	case RotTwo:
		return json.Marshal([]any{o.Tag()})
	case LoadName:
		return json.Marshal([]any{o.Tag(), o.Name})
	case StoreName:
		return json.Marshal([]any{o.Tag(), o.Name})
	case LoadConstant:
		return json.Marshal([]any{o.Tag(), o.Value})
	case LoadAttr:
		return json.Marshal([]any{o.Tag(), o.Attr})
	case LoadIndex:
		return json.Marshal([]any{o.Tag()})
	case StoreIndex:
		return json.Marshal([]any{o.Tag()})
	case LoadArray:
		return json.Marshal([]any{o.Tag(), o.N})
	case BinaryOp:
		return json.Marshal([]any{o.Tag(), o.Op})
	case UnaryOp:
		return json.Marshal([]any{o.Tag(), o.Op})
	case Compare:
		return json.Marshal([]any{o.Tag(), o.Op})
	case Call:
		return json.Marshal([]any{o.Tag(), o.Name, o.NArgs})
	case Label:
		return json.Marshal([]any{o.Tag(), o.Name})
	case Branch:
		return json.Marshal([]any{o.Tag(), o.Label})
	case BranchConditional:
		return json.Marshal([]any{o.Tag(), o.TrueLabel, o.FalseLabel})
	case BranchLoop:
		return json.Marshal([]any{o.Tag(), o.HeaderLabel, o.MergeLabel, o.ContinueLabel})
	case Return:
		return json.Marshal([]any{o.Tag(), o.HasValue})
	default:
		return nil, fmt.Errorf("unknown op type %T", op)
	}
}

func unmarshalOp(raw json.RawMessage) (Op, error) {
	var parts []json.RawMessage
	if err := json.Unmarshal(raw, &parts); err != nil {
		return nil, err
	}
	if len(parts) == 0 {
		return nil, fmt.Errorf("empty op tuple")
	}
	var tag string
	if err := json.Unmarshal(parts[0], &tag); err != nil {
		return nil, err
	}
	arg := func(i int, v any) error {
		if i >= len(parts) {
			return fmt.Errorf("%s: missing arg %d", tag, i)
		}
		return json.Unmarshal(parts[i], v)
	}

	switch tag {
	case "entrypoint":
		var o EntryPoint
		if err := arg(1, &o.Name); err != nil {
			return nil, err
		}
		if err := arg(2, &o.Stage); err != nil {
			return nil, err
		}
		if len(parts) > 3 {
			if err := arg(3, &o.Args); err != nil {
				return nil, err
			}
		}
		return o, nil
	case "func_end":
		return FuncEnd{}, nil
	case "resource":
		var o Resource
		if err := arg(1, &o.Kind); err != nil {
			return nil, err
		}
		if err := arg(2, &o.Name); err != nil {
			return nil, err
		}
		if err := arg(3, &o.Slot); err != nil {
			return nil, err
		}
		if err := arg(4, &o.Group); err != nil {
			return nil, err
		}
		if err := arg(5, &o.TypeName); err != nil {
			return nil, err
		}
		return o, nil
	case "pop_top":
		return PopTop{}, nil
	case "dup_top":
		return DupTop{}, nil
	case "rot_two":
		return RotTwo{}, nil
	case "load_name":
		var o LoadName
		if err := arg(1, &o.Name); err != nil {
			return nil, err
		}
		return o, nil
	case "store_name":
		var o StoreName
		if err := arg(1, &o.Name); err != nil {
			return nil, err
		}
		return o, nil
	case "load_constant":
		var o LoadConstant
		if err := arg(1, &o.Value); err != nil {
			return nil, err
		}
		return o, nil
	case "load_attr":
		var o LoadAttr
		if err := arg(1, &o.Attr); err != nil {
			return nil, err
		}
		return o, nil
	case "load_index":
		return LoadIndex{}, nil
	case "store_index":
		return StoreIndex{}, nil
	case "load_array":
		var o LoadArray
		if err := arg(1, &o.N); err != nil {
			return nil, err
		}
		return o, nil
	case "binary_op":
		var o BinaryOp
		if err := arg(1, &o.Op); err != nil {
			return nil, err
		}
		return o, nil
	case "unary_op":
		var o UnaryOp
		if err := arg(1, &o.Op); err != nil {
			return nil, err
		}
		return o, nil
	case "compare":
		var o Compare
		if err := arg(1, &o.Op); err != nil {
			return nil, err
		}
		return o, nil
	case "call":
		var o Call
		if err := arg(1, &o.Name); err != nil {
			return nil, err
		}
		if err := arg(2, &o.NArgs); err != nil {
			return nil, err
		}
		return o, nil
	case "label":
		var o Label
		if err := arg(1, &o.Name); err != nil {
			return nil, err
		}
		return o, nil
	case "branch":
		var o Branch
		if err := arg(1, &o.Label); err != nil {
			return nil, err
		}
		return o, nil
	case "branch_conditional":
		var o BranchConditional
		if err := arg(1, &o.TrueLabel); err != nil {
			return nil, err
		}
		if err := arg(2, &o.FalseLabel); err != nil {
			return nil, err
		}
		return o, nil
	case "branch_loop":
		var o BranchLoop
		if err := arg(1, &o.HeaderLabel); err != nil {
			return nil, err
		}
		if err := arg(2, &o.MergeLabel); err != nil {
			return nil, err
		}
		if err := arg(3, &o.ContinueLabel); err != nil {
			return nil, err
		}
		return o, nil
	case "return":
		var o Return
		if len(parts) > 1 {
			if err := arg(1, &o.HasValue); err != nil {
				return nil, err
			}
		}
		return o, nil
	default:
		return nil, fmt.Errorf("unknown op tag %q", tag)
	}
}
