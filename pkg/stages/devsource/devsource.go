// Package devsource provides a development source that emits records from
// JSON lines, one object per line.
package devsource

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/batchlane/batchlane/pkg/batch"
	"github.com/batchlane/batchlane/pkg/pipe"
	"github.com/batchlane/batchlane/pkg/pipeline"
	"github.com/batchlane/batchlane/pkg/record"
	"github.com/batchlane/batchlane/pkg/runner"
)

const (
	Kind = "devsource"

	DefaultBatchSize = 100
)

var (
	ErrNoInput       = errors.New("devsource needs a path or inline lines")
	ErrInvalidOffset = errors.New("invalid devsource offset")
)

type Config struct {
	// Path is a JSON lines file. Lines is used when it is empty.
	Path      string   `mapstructure:"path"`
	Lines     []string `mapstructure:"lines"`
	BatchSize int      `mapstructure:"batch_size"`
}

// LineError reports a line that is not a JSON object.
type LineError struct {
	Line   int
	Reason string
}

func (e *LineError) Error() string {
	return fmt.Sprintf("line %d: %s", e.Line, e.Reason)
}

// Source emits up to BatchSize lines per batch. The batch id is the number of
// lines consumed so far.
type Source struct {
	stage     string
	origin    string
	lines     []string
	batchSize int
}

var _ runner.Stage = (*Source)(nil)

func New(stage string, cfg Config) (*Source, error) {
	s := &Source{stage: stage, batchSize: cfg.BatchSize, origin: stage}
	if s.batchSize <= 0 {
		s.batchSize = DefaultBatchSize
	}

	switch {
	case cfg.Path != "":
		lines, err := readLines(cfg.Path)
		if err != nil {
			return nil, err
		}
		s.lines = lines
		s.origin = cfg.Path
	case len(cfg.Lines) > 0:
		s.lines = cfg.Lines
	default:
		return nil, ErrNoInput
	}
	return s, nil
}

func readLines(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var lines []string
	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}
	return lines, sc.Err()
}

func (s *Source) Len() int {
	return len(s.lines)
}

func (s *Source) Process(ctx context.Context, in batch.Batch, out batch.BatchMaker) error {
	start, err := s.offset(in.PreviousBatchID())
	if err != nil {
		return err
	}

	end := min(start+s.batchSize, len(s.lines))
	for i := start; i < end; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		line := strings.TrimSpace(s.lines[i])
		if line == "" {
			continue
		}
		r, err := s.parse(i, line)
		if err != nil {
			return err
		}
		if err := out.AddRecord(r); err != nil {
			return err
		}
	}

	if end > start {
		in.SetBatchID(strconv.Itoa(end))
	}
	return nil
}

func (s *Source) offset(prev string) (int, error) {
	if prev == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(prev)
	if err != nil || n < 0 || n > len(s.lines) {
		return 0, fmt.Errorf("%w: %q", ErrInvalidOffset, prev)
	}
	return n, nil
}

func (s *Source) parse(i int, line string) (*record.Record, error) {
	if !gjson.Valid(line) {
		return nil, &LineError{Line: i + 1, Reason: "invalid json"}
	}
	res := gjson.Parse(line)
	if !res.IsObject() {
		return nil, &LineError{Line: i + 1, Reason: "not a json object"}
	}

	r := record.New(s.stage, fmt.Sprintf("%s::%d", s.origin, i+1))
	res.ForEach(func(key, value gjson.Result) bool {
		r.Set(key.String(), value.Value())
		return true
	})
	r.SetPayload([]byte(line))
	return r, nil
}

func Factory(info pipe.Info, opts pipeline.Options) (any, error) {
	var cfg Config
	if err := opts.Decode(&cfg); err != nil {
		return nil, err
	}
	return New(info.InstanceName, cfg)
}
