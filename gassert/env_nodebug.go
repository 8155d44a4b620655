//go:build !debug

package gassert

// Env is the assertion environment,
// indicating which runtime assertions are enabled.
//
// Engine types that support assertions accept a gassert.Env.
// In non-debug builds Env is an empty struct, costing no memory.
// In debug builds Env is an alias to *Environment,
// a type only compiled under the debug tag.
//
// The non-debug Env deliberately has no methods.
// Code consulting the assertion environment should itself
// be guarded behind the build tag "debug".
type Env struct{}
