// Package counter provides an observer that counts the records flowing
// through its input lanes.
package counter

import (
	"context"
	"fmt"
	"maps"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/batchlane/batchlane/internal/build"
	"github.com/batchlane/batchlane/pkg/batch"
	"github.com/batchlane/batchlane/pkg/pipe"
	"github.com/batchlane/batchlane/pkg/pipeline"
	"github.com/batchlane/batchlane/pkg/runner"
)

const (
	Kind = "counter"

	// MissingKey groups records that lack the group-by field.
	MissingKey = "<missing>"
)

var observedRecordsCounter = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: build.ProjectName,
	Name:      "counter_records_total",
	Help:      "The total number of records seen by a counter stage.",
}, []string{"stage", "key"})

type Config struct {
	// GroupBy names a record field; counts are kept per value of it. Without
	// it, counts are kept per input lane.
	GroupBy string `mapstructure:"group_by"`
}

// Counter never consumes or emits records. It is safe for concurrent use.
type Counter struct {
	stage   string
	groupBy string

	mu     sync.Mutex
	counts map[string]int
}

var _ runner.Observer = (*Counter)(nil)

func New(stage string, cfg Config) *Counter {
	return &Counter{
		stage:   stage,
		groupBy: cfg.GroupBy,
		counts:  map[string]int{},
	}
}

func (c *Counter) Observe(_ context.Context, in batch.Batch) error {
	laneKey, ok := in.Lanes().Only()
	if !ok {
		laneKey = in.Lanes().String()
	}

	seen := map[string]int{}
	for s := range in.Records() {
		key := laneKey
		if c.groupBy != "" {
			key = MissingKey
			if v, ok := s.Get(c.groupBy); ok {
				key = fmt.Sprint(v)
			}
		}
		seen[key]++
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for key, n := range seen {
		c.counts[key] += n
		observedRecordsCounter.WithLabelValues(c.stage, key).Add(float64(n))
	}
	return nil
}

// Counts returns a copy of the counts observed so far.
func (c *Counter) Counts() map[string]int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return maps.Clone(c.counts)
}

// Total sums every count.
func (c *Counter) Total() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	total := 0
	for _, n := range c.counts {
		total += n
	}
	return total
}

func Factory(info pipe.Info, opts pipeline.Options) (any, error) {
	var cfg Config
	if err := opts.Decode(&cfg); err != nil {
		return nil, err
	}
	return New(info.InstanceName, cfg), nil
}
