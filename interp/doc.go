// Package interp defines the contract between the bridge and the embedded
// WebAssembly interpreter.
//
// The bridge never executes instructions itself. It needs an interpreter that
// can instantiate raw module bytes against an ImportResolver, invoke exports,
// read exported globals, and allocate host-owned tables, memories, globals and
// functions. Descriptors carry just enough type information to check import
// compatibility.
//
// Values use wazero's uint64 stack encoding so they move between the bridge
// and the engine without conversion.
package interp
