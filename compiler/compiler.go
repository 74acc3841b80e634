// Package compiler ties the front-end translator and SPIR-V back end into
// the single public entry point: compile a shader description to a
// module record. Mirrors gogpu-naga's top-level naga package shape
// (Compile/CompileWithOptions over a Parse/Lower/Generate pipeline),
// generalized from WGSL source text to this dialect's JSON wire format.
package compiler

import (
	"fmt"
	"strings"

	"github.com/shaderlab/nsbc/config"
	"github.com/shaderlab/nsbc/frontend"
	"github.com/shaderlab/nsbc/nsb"
	"github.com/shaderlab/nsbc/source"
	"github.com/shaderlab/nsbc/spirv"
)

// ShaderModule is the compiled record returned for one shader: the parsed
// source program, the normalized bytecode it translates to, and the final
// SPIR-V binary, alongside the stage and name it was compiled under.
type ShaderModule struct {
	Source *source.Program
	NSB    *nsb.Program
	Binary []byte
	Stage  string
	Name   string
}

// CompileOptions configures compilation, combining the one process-wide
// front-end flag with the back end's SPIR-V target options — the same
// two-layer shape as gogpu-naga's CompileOptions (SPIRVVersion/Debug/
// Validate) wraps spirv.Options.
type CompileOptions struct {
	Config config.Options
	SPIRV  spirv.Options
}

// DefaultCompileOptions returns the default configuration and SPIR-V
// target options.
func DefaultCompileOptions() CompileOptions {
	return CompileOptions{Config: config.DefaultOptions(), SPIRV: spirv.DefaultOptions()}
}

// WithOptions builds a CompileOptions from a config.Options value, keeping
// default SPIR-V target options, for callers that pass it to
// CompileWithOptions when they only need to flip the ternary-to-select
// flag.
func WithOptions(cfg config.Options) CompileOptions {
	opts := DefaultCompileOptions()
	opts.Config = cfg
	return opts
}

// Compile compiles a JSON shader description (see wireDescription in
// wire.go for its shape) to SPIR-V using default options.
func Compile(data []byte) (*ShaderModule, error) {
	return CompileWithOptions(data, DefaultCompileOptions())
}

// CompileWithOptions compiles a JSON shader description to SPIR-V with
// custom options. The pipeline is:
//
//  1. Decode the wire format to a source.Program.
//  2. Validate entry-point name/stage and resource slot uniqueness.
//  3. Pre-scan loops and translate to Normalized Shader Bytecode.
//  4. Generate the SPIR-V binary.
//
// Any rejection of the input surfaces as a *ShaderError; any violated
// internal invariant surfaces as an unexported *internalError, recovered
// from a panic at this function's boundary rather than propagated as one.
func CompileWithOptions(data []byte, opts CompileOptions) (mod *ShaderModule, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = classifyPanic(r)
			mod = nil
		}
	}()

	prog, name, stage, err := decodeWire(data)
	if err != nil {
		return nil, err
	}
	impliedStage, err := validateEntryPoint(name, stage)
	if err != nil {
		return nil, err
	}
	if prog.Stage == "" {
		prog.Stage = impliedStage
		stage = impliedStage
	}
	if err := validateSlots(prog); err != nil {
		return nil, err
	}

	loops := frontend.PrescanLoops(prog)
	nsbProg := frontend.Translate(prog, loops)
	// opts.Config.ConvertTernaryToSelect is read here, once per compilation,
	// as the spec requires; the optimization itself was never resurrected
	// (see DESIGN.md), so the flag has no effect beyond being read.
	_ = opts.Config.ConvertTernaryToSelect

	binary, err := spirv.Generate(nsbProg, opts.SPIRV)
	if err != nil {
		return nil, classifyGenerateError(err)
	}

	return &ShaderModule{Source: prog, NSB: nsbProg, Binary: binary, Stage: stage, Name: name}, nil
}

// classifyPanic recovers a panic raised deep in the front end or CFG
// reconstructor and reclassifies it: a "frontend:"/"cfg:"-prefixed panic
// is a rejection of malformed input (a ShaderError), anything else is a
// genuine internal invariant violation.
func classifyPanic(r any) error {
	msg := fmt.Sprint(r)
	switch {
	case strings.HasPrefix(msg, "frontend:"):
		return newShaderError(DialectError, "%s", msg)
	case strings.HasPrefix(msg, "cfg:"):
		return newShaderError(StructuralError, "%s", msg)
	default:
		return &internalError{cause: r}
	}
}

// classifyGenerateError wraps an error returned (not panicked) by the
// back end as a ShaderError. The back end's own errors are plain
// fmt.Errorf values without a tag of their own, so this sorts them by
// message: undefined names and unrecognized resource kinds are declaration
// errors, and everything else defaults to a type error, since the
// overwhelming majority of back-end rejections are operand-shape
// mismatches.
func classifyGenerateError(err error) error {
	msg := err.Error()
	switch {
	case strings.Contains(msg, "undefined name"):
		return newShaderError(DeclarationError, "%s", msg)
	case strings.Contains(msg, "unrecognized resource kind"):
		return newShaderError(DeclarationError, "%s", msg)
	case strings.Contains(msg, "not addressable"), strings.Contains(msg, "not a valid store target"):
		return newShaderError(TypeError, "%s", msg)
	default:
		return newShaderError(TypeError, "%s", msg)
	}
}

var shaderStages = []string{"vertex", "fragment", "compute"}

// validateEntryPoint enforces the rule the stack-machine dialect borrows
// from pyshader: a function's name must identify its stage by containing
// exactly one of the three stage keywords. The wire format also lets a
// description state its stage explicitly; when present it must be one of
// the three and must agree with what the name implies.
func validateEntryPoint(name, stage string) (string, error) {
	lower := strings.ToLower(name)
	var matched string
	count := 0
	for _, s := range shaderStages {
		if strings.Contains(lower, s) {
			matched = s
			count++
		}
	}
	if count != 1 {
		return "", newShaderError(DeclarationError, "entry point name %q must contain exactly one of vertex, fragment, compute", name)
	}
	if stage != "" && stage != matched {
		return "", newShaderError(DeclarationError, "entry point name %q implies stage %q but description declares stage %q", name, matched, stage)
	}
	return matched, nil
}

// validateSlots enforces slot uniqueness (property 4): no two resources
// may share a (namespace, slot) pair, where namespace is input, output,
// or bindgroup(group) for uniform/buffer/sampler/texture kinds.
func validateSlots(prog *source.Program) error {
	seen := map[string]string{}
	check := func(name, kind string, slot, group int) error {
		ns := namespaceFor(kind, group)
		key := fmt.Sprintf("%s:%d", ns, slot)
		if other, ok := seen[key]; ok {
			return newShaderError(DeclarationError, "resources %q and %q both claim slot %d in namespace %s", other, name, slot, ns)
		}
		seen[key] = name
		return nil
	}
	for _, name := range prog.ArgNames {
		ann := prog.ArgAnnot[name]
		if err := check(name, ann.Kind, ann.Slot, ann.Group); err != nil {
			return err
		}
	}
	return nil
}

func namespaceFor(kind string, group int) string {
	switch kind {
	case "input":
		return "input"
	case "output":
		return "output"
	default:
		return fmt.Sprintf("bindgroup(%d)", group)
	}
}
