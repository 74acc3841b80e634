package compiler

import (
	"encoding/json"
	"fmt"

	"github.com/shaderlab/nsbc/source"
)

// wireDescription is the on-disk JSON shape of a shader description: a
// name, its argument resource annotations, and the addressed source
// stack-machine stream fed to the front end.
type wireDescription struct {
	Name    string        `json:"name"`
	Stage   string        `json:"stage"`
	Args    []wireArg     `json:"args"`
	Program []wireInstr   `json:"program"`
}

type wireArg struct {
	Name     string `json:"name"`
	Kind     string `json:"kind"`
	Slot     int    `json:"slot"`
	Group    int    `json:"group"`
	TypeName string `json:"typename"`
}

// wireInstr is one addressed source.Instr, spelled out with the op as a
// name rather than a bare numeric code so the wire format stays readable
// and stable across opcode renumbering.
type wireInstr struct {
	Addr   int    `json:"addr"`
	Op     string `json:"op"`
	IntArg int    `json:"int_arg,omitempty"`
	StrArg string `json:"str_arg,omitempty"`
	Const  any    `json:"const,omitempty"`
	Target int    `json:"target,omitempty"`
}

var wireOpcodeNames = map[string]source.Opcode{
	"pop_top":              source.OpPopTop,
	"dup_top":              source.OpDupTop,
	"rot_two":              source.OpRotTwo,
	"load_const":           source.OpLoadConst,
	"load_local":           source.OpLoadLocal,
	"store_local":          source.OpStoreLocal,
	"load_global":          source.OpLoadGlobal,
	"load_attr":            source.OpLoadAttr,
	"store_attr":           source.OpStoreAttr,
	"load_method":          source.OpLoadMethod,
	"call_function":        source.OpCallFunction,
	"binary_subscript":     source.OpBinarySubscript,
	"store_subscript":      source.OpStoreSubscript,
	"build_array":          source.OpBuildArray,
	"binary_add":           source.OpBinaryAdd,
	"binary_sub":           source.OpBinarySub,
	"binary_mul":           source.OpBinaryMul,
	"binary_div":           source.OpBinaryDiv,
	"binary_mod":           source.OpBinaryMod,
	"binary_pow":           source.OpBinaryPow,
	"compare":              source.OpCompare,
	"jump_absolute":        source.OpJumpAbsolute,
	"jump_forward":         source.OpJumpForward,
	"pop_jump_if_false":    source.OpPopJumpIfFalse,
	"pop_jump_if_true":     source.OpPopJumpIfTrue,
	"jump_if_true_or_pop":  source.OpJumpIfTrueOrPop,
	"jump_if_false_or_pop": source.OpJumpIfFalseOrPop,
	"get_iter":             source.OpGetIter,
	"for_iter":             source.OpForIter,
	"return_value":         source.OpReturnValue,
	"pop_block":            source.OpPopBlock,
}

// decodeWire parses a shader description's JSON bytes into a source.Program
// plus its entry name/stage, or a DeclarationError/DialectError ShaderError
// if the document is malformed.
func decodeWire(data []byte) (*source.Program, string, string, error) {
	var doc wireDescription
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, "", "", newShaderError(DeclarationError, "malformed shader description: %v", err)
	}
	if doc.Name == "" {
		return nil, "", "", newShaderError(DeclarationError, "shader description is missing a name")
	}

	argNames := make([]string, 0, len(doc.Args))
	argAnnot := make(map[string]source.ResourceAnnotation, len(doc.Args))
	for _, a := range doc.Args {
		if a.Kind == "" {
			return nil, "", "", newShaderError(DeclarationError, "argument %q is missing a (kind, slot, typename) annotation", a.Name)
		}
		argNames = append(argNames, a.Name)
		argAnnot[a.Name] = source.ResourceAnnotation{Kind: a.Kind, Slot: a.Slot, Group: a.Group, TypeName: a.TypeName}
	}

	instrs := make([]source.Instr, 0, len(doc.Program))
	for i, wi := range doc.Program {
		op, ok := wireOpcodeNames[wi.Op]
		if !ok {
			return nil, "", "", &ShaderError{Kind: DialectError, Message: fmt.Sprintf("unrecognized source instruction %q", wi.Op), OpIndex: i, Addr: wi.Addr}
		}
		instrs = append(instrs, source.Instr{
			Addr:   wi.Addr,
			Op:     op,
			IntArg: wi.IntArg,
			StrArg: wi.StrArg,
			Const:  wi.Const,
			Target: wi.Target,
		})
	}

	prog := &source.Program{
		Name:     doc.Name,
		Stage:    doc.Stage,
		ArgNames: argNames,
		ArgAnnot: argAnnot,
		Instrs:   instrs,
	}
	return prog, doc.Name, doc.Stage, nil
}
