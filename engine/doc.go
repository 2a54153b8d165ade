// Package engine implements the interpreter contract of package interp on
// top of wazero.
//
// # Linking
//
// wazero links imports by module name against modules instantiated in the
// same runtime. Shared host instances and cross-module imports are expressed
// with small synthesized modules:
//
//	$host.N    - one allocated table, memory, global or host function,
//	             exported under a fixed name
//	$table.N   - helper importing a table and exporting size/grow functions
//	$bridge.N  - one per import namespace of a module being instantiated;
//	             imports every resolved entity from its owner and re-exports
//	             it under the field name the importer expects
//	$module.N  - a user module, linked to its bridges through
//	             experimental.WithImportResolver
//
// Bridges import with the importer's declared types, so wazero's own link
// checks apply on top of the compatibility checks done here. Tables, memories
// and globals are shared by instance, never copied: a write through any
// importer is visible to every other.
//
// # Errors
//
// Compilation failures and rejected instantiations are load-class errors. A
// trap in the start function is a start-class error. Resolution failures and
// traps during Invoke are interpreter-class.
//
// # Thread Safety
//
// An Engine is driven from a single goroutine.
package engine
