// Package stages registers the built-in stage kinds.
package stages

import (
	"github.com/batchlane/batchlane/pkg/pipeline"
	"github.com/batchlane/batchlane/pkg/stages/collector"
	"github.com/batchlane/batchlane/pkg/stages/counter"
	"github.com/batchlane/batchlane/pkg/stages/devsource"
	"github.com/batchlane/batchlane/pkg/stages/httpsource"
	"github.com/batchlane/batchlane/pkg/stages/identity"
	"github.com/batchlane/batchlane/pkg/stages/selector"
)

// Register adds every built-in kind to reg.
func Register(reg *pipeline.Registry) error {
	for kind, f := range map[string]pipeline.Factory{
		identity.Kind:   identity.Factory,
		collector.Kind:  collector.Factory,
		counter.Kind:    counter.Factory,
		selector.Kind:   selector.Factory,
		devsource.Kind:  devsource.Factory,
		httpsource.Kind: httpsource.Factory,
	} {
		if err := reg.Register(kind, f); err != nil {
			return err
		}
	}
	return nil
}

// NewRegistry returns a registry holding the built-in kinds.
func NewRegistry() *pipeline.Registry {
	reg := pipeline.NewRegistry()
	if err := Register(reg); err != nil {
		panic(err)
	}
	return reg
}
