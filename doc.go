// Package wasmbridge lets an external conformance harness drive an embedded
// WebAssembly interpreter across a trust boundary.
//
// The harness sends commands (invoke, get, load, try-load, register) as
// serialized records and receives results in a boundary-safe value form. The
// bridge supplies the standard "spectest" host module, keeps a registry of
// instantiated modules and resolves imports against it.
//
// # Architecture Overview
//
//	wasmbridge/
//	├── errors/          Load/Start/Script/Interpreter error taxonomy
//	├── interp/          Contract the interpreter is consumed through
//	├── boundary/        Boundary value union, native conversion, JSON form
//	├── action/          Command union, result record, codec and schema
//	├── spectest/        Host module and module registry/resolver
//	├── engine/          wazero-backed interpreter and allocator
//	├── runner/          Driving loop and request/response entry point
//	├── script/          wast2json script reader and assertion checks
//	└── cmd/spectest/    CLI and interactive runner
//
// # Quick Start
//
// Execute commands directly:
//
//	r, err := runner.New(ctx, nil)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer r.Close(ctx)
//
//	_, err = r.Execute(ctx, action.LoadModule{Name: "$M", Module: wasmBytes})
//	values, err := r.Execute(ctx, action.Invoke{Field: "add",
//	    Args: []boundary.Value{boundary.I32(2), boundary.I32(3)}})
//
// Or through the serialized boundary:
//
//	reply := r.Handle(ctx, []byte(`{"Invoke":{"field":"add","args":[{"I32":2},{"I32":3}]}}`))
//	// {"values":[{"I32":5}]}
//
// # Floats
//
// F32 and F64 boundary values carry raw IEEE-754 bits, so NaN payloads and
// signed zeros survive every crossing unchanged.
//
// # Thread Safety
//
// The runner, registry and host module are single-threaded. Commands must be
// issued from one goroutine at a time.
package wasmbridge
