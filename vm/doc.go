// Package vm implements the Spacey virtual machine.
//
// This package contains:
//   - the opcode table, Chunk and ChunkBuilder
//   - the tagged Value representation and arena-resident objects
//   - global environments and property maps
//   - the stack interpreter with call frames and exception handlers
//   - the built-in objects, functions and prototype method tables
package vm
