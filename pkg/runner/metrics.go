package runner

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/batchlane/batchlane/internal/build"
)

var (
	recordsInCounter = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: build.ProjectName,
		Name:      "stage_records_in_total",
		Help:      "The total number of records extracted by a stage.",
	}, []string{"pipeline", "stage"})

	recordsOutCounter = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: build.ProjectName,
		Name:      "stage_records_out_total",
		Help:      "The total number of records a stage flushed onto an output lane.",
	}, []string{"pipeline", "stage", "lane"})

	protocolViolationCounter = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: build.ProjectName,
		Name:      "protocol_violations_total",
		Help:      "The total number of batch protocol violations returned by a stage.",
	}, []string{"pipeline", "stage", "code"})

	stageDurationHistogram = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace:                       build.ProjectName,
		Name:                            "stage_duration_ms",
		Help:                            "The time a stage took to process one batch.",
		Buckets:                         []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 5000, 15000},
		NativeHistogramBucketFactor:     1.1,
		NativeHistogramMaxBucketNumber:  100,
		NativeHistogramMinResetDuration: time.Hour,
	}, []string{"pipeline", "stage", "role"})

	batchesCommittedCounter = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: build.ProjectName,
		Name:      "batches_committed_total",
		Help:      "The total number of batch offsets committed.",
	}, []string{"pipeline"})

	batchRetryCounter = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: build.ProjectName,
		Name:      "batch_retries_total",
		Help:      "The total number of batch re-executions after a stage failure.",
	}, []string{"pipeline"})
)
