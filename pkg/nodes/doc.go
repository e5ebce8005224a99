// Package nodes implements the built-in node kinds (§4.7): one
// executor.NodeExecutor per kind, registered into an executor.Registry by
// RegisterAll. Each file follows the same Strategy Pattern shape the
// calculator-node runtime established — a small struct, Execute/Kind/
// Validate/Definition — generalized to the parameter-map node model.
package nodes
