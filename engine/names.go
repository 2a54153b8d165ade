package engine

import "fmt"

// Prefixes of internal module names. They start with '$' so they cannot
// collide with names a script registers through the driver, which never
// reach the wazero namespace.
const (
	prefixHost   = "$host"
	prefixTable  = "$table"
	prefixBridge = "$bridge"
	prefixModule = "$module"
)

// Export names of the single entity in a host module.
const (
	exportFunc   = "func"
	exportTable  = "table"
	exportMemory = "memory"
	exportGlobal = "global"
	exportSize   = "size"
	exportGrow   = "grow"
)

// nextName returns a runtime-unique module name with the given prefix.
func (e *Engine) nextName(prefix string) string {
	return fmt.Sprintf("%s.%d", prefix, e.seq.Add(1))
}
