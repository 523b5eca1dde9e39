// Package httpsource provides a source that reads a JSON array over HTTP.
// The batch id is the number of array elements consumed so far.
package httpsource

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/tidwall/gjson"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/batchlane/batchlane/pkg/batch"
	"github.com/batchlane/batchlane/pkg/pipe"
	"github.com/batchlane/batchlane/pkg/pipeline"
	"github.com/batchlane/batchlane/pkg/record"
	"github.com/batchlane/batchlane/pkg/runner"
)

const (
	Kind = "httpsource"

	DefaultBatchSize = 100
	DefaultTimeout   = 30 * time.Second
	DefaultRetryMax  = 3

	// ValueField holds elements that are not JSON objects.
	ValueField = "value"

	maxBodySize = 64 << 20
)

var (
	ErrNoURL         = errors.New("httpsource needs a url")
	ErrNotAnArray    = errors.New("response is not a json array")
	ErrInvalidOffset = errors.New("invalid httpsource offset")
)

type Config struct {
	URL string `mapstructure:"url"`
	// Path is a gjson path to the array inside the response. Empty means the
	// whole body.
	Path      string            `mapstructure:"path"`
	Headers   map[string]string `mapstructure:"headers"`
	BatchSize int               `mapstructure:"batch_size"`
	Timeout   time.Duration     `mapstructure:"timeout"`
	// RetryMax is the number of retries. Zero means DefaultRetryMax and a
	// negative value disables retries.
	RetryMax int `mapstructure:"retry_max"`
	// RetryWaitMin and RetryWaitMax bound the wait between attempts.
	RetryWaitMin time.Duration `mapstructure:"retry_wait_min"`
	RetryWaitMax time.Duration `mapstructure:"retry_wait_max"`
}

// StatusError reports a non-2xx response after retries.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s: unexpected status %d", e.URL, e.StatusCode)
}

type Source struct {
	stage     string
	cfg       Config
	client    *retryablehttp.Client
	batchSize int
}

var _ runner.Stage = (*Source)(nil)

func New(stage string, cfg Config) (*Source, error) {
	if cfg.URL == "" {
		return nil, ErrNoURL
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.RetryMax < 0 {
		cfg.RetryMax = 0
	} else if cfg.RetryMax == 0 {
		cfg.RetryMax = DefaultRetryMax
	}

	client := retryablehttp.NewClient()
	client.Logger = nil
	client.RetryMax = cfg.RetryMax
	if cfg.RetryWaitMin > 0 {
		client.RetryWaitMin = cfg.RetryWaitMin
	}
	if cfg.RetryWaitMax > 0 {
		client.RetryWaitMax = cfg.RetryWaitMax
	}
	client.HTTPClient.Timeout = cfg.Timeout
	client.HTTPClient.Transport = otelhttp.NewTransport(client.HTTPClient.Transport)

	return &Source{stage: stage, cfg: cfg, client: client, batchSize: cfg.BatchSize}, nil
}

func (s *Source) Process(ctx context.Context, in batch.Batch, out batch.BatchMaker) error {
	elems, err := s.fetch(ctx)
	if err != nil {
		return err
	}

	start, err := offset(in.PreviousBatchID(), len(elems))
	if err != nil {
		return err
	}

	end := min(start+s.batchSize, len(elems))
	for i := start; i < end; i++ {
		if err := out.AddRecord(s.toRecord(i, elems[i])); err != nil {
			return err
		}
	}

	if end > start {
		in.SetBatchID(strconv.Itoa(end))
	}
	return nil
}

func (s *Source) fetch(ctx context.Context) ([]gjson.Result, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, s.cfg.URL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	for k, v := range s.cfg.Headers {
		req.Header.Set(k, v)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{URL: s.cfg.URL, StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, err
	}

	arr := gjson.ParseBytes(body)
	if s.cfg.Path != "" {
		arr = gjson.GetBytes(body, s.cfg.Path)
	}
	if !arr.IsArray() {
		return nil, ErrNotAnArray
	}
	return arr.Array(), nil
}

func offset(prev string, size int) (int, error) {
	if prev == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(prev)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidOffset, prev)
	}
	// the remote array may have shrunk; nothing new to read
	return min(n, size), nil
}

func (s *Source) toRecord(i int, elem gjson.Result) *record.Record {
	r := record.New(s.stage, fmt.Sprintf("%s#%d", s.cfg.URL, i))
	if elem.IsObject() {
		elem.ForEach(func(key, value gjson.Result) bool {
			r.Set(key.String(), value.Value())
			return true
		})
	} else {
		r.Set(ValueField, elem.Value())
	}
	return r.SetPayload([]byte(elem.Raw))
}

func Factory(info pipe.Info, opts pipeline.Options) (any, error) {
	var cfg Config
	if err := opts.Decode(&cfg); err != nil {
		return nil, err
	}
	return New(info.InstanceName, cfg)
}
