// Command nsbc is the Normalized Shader Bytecode compiler CLI.
//
// Usage:
//
//	nsbc [options] <input.json>
//
// Examples:
//
//	nsbc shader.json                    # Compile to stdout
//	nsbc -o shader.spv shader.json      # Compile to file
//	nsbc -dis shader.json               # Compile and print disassembly
//	nsbc -debug shader.json             # Compile with debug info
package main

import (
	"flag"
	"fmt"
	"os"
	"runtime/debug"

	"github.com/shaderlab/nsbc/compiler"
	"github.com/shaderlab/nsbc/config"
	"github.com/shaderlab/nsbc/disasm"
	"github.com/shaderlab/nsbc/spirv"
)

var (
	output      = flag.String("o", "", "output file (default: stdout)")
	debugFlag   = flag.Bool("debug", false, "include debug info")
	validate    = flag.Bool("validate", true, "set spirv.Options.Validation (the generator does not read it)")
	dis         = flag.Bool("dis", false, "print disassembly instead of binary")
	noTernary   = flag.Bool("no-ternary-select", false, "disable the ternary-to-select toggle")
	versionFlag = flag.Bool("version", false, "print version")
)

// version returns the module version from build info.
func version() string {
	if info, ok := debug.ReadBuildInfo(); ok {
		if info.Main.Version != "" && info.Main.Version != "(devel)" {
			return info.Main.Version
		}
	}
	return "dev"
}

func main() {
	flag.Usage = usage
	flag.Parse()

	if *versionFlag {
		fmt.Printf("nsbc version %s\n", version())
		return
	}

	args := flag.Args()
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "Error: no input file specified")
		usage()
		os.Exit(1)
	}
	inputPath := args[0]

	data, err := os.ReadFile(inputPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading file: %v\n", err)
		os.Exit(1)
	}

	opts := compiler.CompileOptions{
		Config: config.Options{ConvertTernaryToSelect: !*noTernary},
		SPIRV: spirv.Options{
			Version:    spirv.Version1_3,
			Debug:      *debugFlag,
			Validation: *validate,
		},
	}

	mod, err := compiler.CompileWithOptions(data, opts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Compilation error: %v\n", err)
		os.Exit(1)
	}

	if *dis {
		text, err := disasm.Disassemble(mod.Binary)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Disassembly error: %v\n", err)
			os.Exit(1)
		}
		if *output != "" {
			if err := os.WriteFile(*output, []byte(text), 0o644); err != nil {
				fmt.Fprintf(os.Stderr, "Error writing output: %v\n", err)
				os.Exit(1)
			}
			return
		}
		fmt.Print(text)
		return
	}

	if *output != "" {
		if err := os.WriteFile(*output, mod.Binary, 0o644); err != nil {
			fmt.Fprintf(os.Stderr, "Error writing output: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Successfully compiled %s to %s (%d bytes)\n", inputPath, *output, len(mod.Binary))
		return
	}

	if _, err := os.Stdout.Write(mod.Binary); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing output: %v\n", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, "Usage: nsbc [options] <input.json>\n\n")
	fmt.Fprintf(os.Stderr, "Options:\n")
	flag.PrintDefaults()
	fmt.Fprintf(os.Stderr, "\nExamples:\n")
	fmt.Fprintf(os.Stderr, "  nsbc shader.json               Compile to stdout\n")
	fmt.Fprintf(os.Stderr, "  nsbc -o shader.spv shader.json Compile to file\n")
	fmt.Fprintf(os.Stderr, "  nsbc -dis shader.json          Print disassembly\n")
	fmt.Fprintf(os.Stderr, "  nsbc -debug shader.json        Include debug info\n")
}
