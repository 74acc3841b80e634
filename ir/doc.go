// Package ir defines the type system, constant pool and an id allocator
// for the SPIR-V back-end generator and its access-chain resolver
// (package access). The front-end translator does not use it.
//
// Unlike a tree-shaped shader IR, this package carries no statement or
// expression graph — the compiled program is a flat Normalized Shader
// Bytecode stream (package nsb). What this package owns is the structural
// type system the back end keeps one shared, deduplicated view of:
//
//   - TypeRegistry interns Type values by structural equality, so two
//     requests for "vec3<f32>" always resolve to the same TypeHandle.
//   - ConstantPool interns constant values the same way.
//   - IDPool is a sequential id allocator. The generator does not use it:
//     SPIR-V result ids are allocated by emit.ModuleBuilder.
//
// # References
//
//   - SPIR-V specification: https://www.khronos.org/registry/SPIR-V/
package ir
