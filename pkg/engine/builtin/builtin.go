// Package builtin registers the engines shipped with dev
package builtin

import (
	"github.com/e5r/dev/pkg/engine"
	"github.com/e5r/dev/pkg/engine/node"
	"github.com/e5r/dev/pkg/engine/php"
)

// Register adds every built-in engine to r
func Register(r *engine.Registry) error {
	if err := r.Register(node.Name, node.New); err != nil {
		return err
	}
	return r.Register(php.Name, php.New)
}

// NewRegistry returns a registry holding the built-in engines
func NewRegistry() *engine.Registry {
	r := engine.NewRegistry()
	if err := Register(r); err != nil {
		panic(err)
	}
	return r
}
