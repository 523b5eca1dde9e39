// Package collector provides a pass-through stage that keeps a copy of every
// record it forwards. It backs preview runs and tests.
package collector

import (
	"context"
	"slices"
	"sync"

	"github.com/batchlane/batchlane/pkg/batch"
	"github.com/batchlane/batchlane/pkg/pipe"
	"github.com/batchlane/batchlane/pkg/pipeline"
	"github.com/batchlane/batchlane/pkg/record"
	"github.com/batchlane/batchlane/pkg/runner"
)

const (
	Kind = "collector"

	// DefaultLimit bounds the number of kept snapshots.
	DefaultLimit = 1000
)

type Config struct {
	// Limit is the number of snapshots kept; older ones are dropped first.
	Limit int `mapstructure:"limit"`
}

// Collector is safe for concurrent use.
type Collector struct {
	limit int

	mu   sync.Mutex
	seen []*record.Snapshot
}

var _ runner.Stage = (*Collector)(nil)

func New(cfg Config) *Collector {
	if cfg.Limit <= 0 {
		cfg.Limit = DefaultLimit
	}
	return &Collector{limit: cfg.Limit}
}

func (c *Collector) Process(ctx context.Context, in batch.Batch, out batch.BatchMaker) error {
	for s := range in.Records() {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := out.AddRecord(s.Record()); err != nil {
			return err
		}
		c.keep(s)
	}
	return nil
}

func (c *Collector) keep(s *record.Snapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.seen = append(c.seen, s)
	if over := len(c.seen) - c.limit; over > 0 {
		c.seen = slices.Delete(c.seen, 0, over)
	}
}

// Snapshots returns what the stage has forwarded, oldest first.
func (c *Collector) Snapshots() []*record.Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.seen)
}

func (c *Collector) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.seen)
}

func (c *Collector) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seen = nil
}

func Factory(_ pipe.Info, opts pipeline.Options) (any, error) {
	var cfg Config
	if err := opts.Decode(&cfg); err != nil {
		return nil, err
	}
	return New(cfg), nil
}
