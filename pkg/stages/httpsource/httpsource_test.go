package httpsource

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/batchlane/batchlane/pkg/batch"
	"github.com/batchlane/batchlane/pkg/pipe"
	"github.com/batchlane/batchlane/pkg/pipeline"
	"github.com/batchlane/batchlane/pkg/record"
)

func runOnce(t *testing.T, s *Source, prev string) (*batch.PipelineBatch, error) {
	t.Helper()

	p, err := pipe.NewTransform(pipe.Info{InstanceName: s.stage}, nil, []string{"raw"})
	require.NoError(t, err)

	plb := batch.NewPipelineBatch(prev, false)
	pb := batch.New(p, plb)
	require.NoError(t, pb.ExtractFromPipelineBatch())
	if err := s.Process(context.Background(), pb, pb); err != nil {
		return plb, err
	}
	require.NoError(t, pb.FlushBackToPipelineBatch())
	return plb, nil
}

func records(plb *batch.PipelineBatch) []*record.Record {
	return plb.DrainAll()["raw"]
}

func TestSource(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Token") != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"data": {"items": [{"id": 1}, {"id": 2}, 3]}}`)
	}))
	defer srv.Close()

	s, err := New("http", Config{
		URL:       srv.URL,
		Path:      "data.items",
		Headers:   map[string]string{"X-Token": "secret"},
		BatchSize: 2,
	})
	require.NoError(t, err)

	plb, err := runOnce(t, s, "")
	require.NoError(t, err)
	require.Equal(t, "2", plb.BatchID())

	recs := records(plb)
	require.Len(t, recs, 2)
	id, _ := recs[1].Get("id")
	require.InDelta(t, 2, id, 0)
	require.JSONEq(t, `{"id": 2}`, string(recs[1].Payload()))
	require.Equal(t, srv.URL+"#1", recs[1].Header().SourceID)

	plb, err = runOnce(t, s, "2")
	require.NoError(t, err)
	require.Equal(t, "3", plb.BatchID())
	recs = records(plb)
	require.Len(t, recs, 1)
	v, _ := recs[0].Get(ValueField)
	require.InDelta(t, 3, v, 0)

	plb, err = runOnce(t, s, "3")
	require.NoError(t, err)
	require.Equal(t, "3", plb.BatchID())
	require.Zero(t, plb.Len())
}

func TestSourceRetries(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		fmt.Fprint(w, `[{"id": 1}]`)
	}))
	defer srv.Close()

	s, err := New("http", Config{URL: srv.URL, RetryWaitMin: time.Millisecond, RetryWaitMax: 5 * time.Millisecond})
	require.NoError(t, err)

	plb, err := runOnce(t, s, "")
	require.NoError(t, err)
	require.Equal(t, "1", plb.BatchID())
	require.Equal(t, int32(2), calls.Load())
}

func TestSourceErrors(t *testing.T) {
	_, err := New("http", Config{})
	require.ErrorIs(t, err, ErrNoURL)

	t.Run("client_error", func(t *testing.T) {
		srv := httptest.NewServer(http.NotFoundHandler())
		defer srv.Close()

		s, err := New("http", Config{URL: srv.URL, RetryMax: -1})
		require.NoError(t, err)

		_, err = runOnce(t, s, "")
		var serr *StatusError
		require.ErrorAs(t, err, &serr)
		require.Equal(t, http.StatusNotFound, serr.StatusCode)
	})

	t.Run("not_an_array", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			fmt.Fprint(w, `{"items": 1}`)
		}))
		defer srv.Close()

		s, err := New("http", Config{URL: srv.URL})
		require.NoError(t, err)

		_, err = runOnce(t, s, "")
		require.ErrorIs(t, err, ErrNotAnArray)
	})

	t.Run("bad_offset", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			fmt.Fprint(w, `[]`)
		}))
		defer srv.Close()

		s, err := New("http", Config{URL: srv.URL})
		require.NoError(t, err)

		_, err = runOnce(t, s, "abc")
		require.ErrorIs(t, err, ErrInvalidOffset)
	})
}

func TestFactory(t *testing.T) {
	s, err := Factory(pipe.Info{InstanceName: "http"}, pipeline.Options{
		"url":     "http://localhost:1",
		"timeout": "5s",
	})
	require.NoError(t, err)
	require.Equal(t, 5*time.Second, s.(*Source).client.HTTPClient.Timeout)
	require.Equal(t, DefaultRetryMax, s.(*Source).client.RetryMax)
}
