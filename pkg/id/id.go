// Package id mints identifiers for pipeline runs and records.
package id

import (
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

var (
	mutex   sync.Mutex
	entropy = ulid.Monotonic(rand.New(rand.NewSource(time.Now().UnixNano())), 0)
)

// RunID identifies one execution of a pipeline batch. Run ids sort by creation time.
type RunID struct {
	value ulid.ULID
}

func NewRunIDFromTime(t time.Time) (*RunID, error) {
	mutex.Lock()
	defer mutex.Unlock()

	v, err := ulid.New(uint64(t.UnixMilli()), entropy)
	if err != nil {
		return nil, err
	}

	return &RunID{v}, nil
}

func NewRunString() (string, error) {
	r, err := NewRunIDFromTime(time.Now())
	if err != nil {
		return "", err
	}

	return r.String(), nil
}

func ParseRunID(s string) (*RunID, error) {
	v, err := ulid.ParseStrict(s)
	if err != nil {
		return nil, err
	}

	return &RunID{v}, nil
}

func IsValidRunID(s string) bool {
	_, err := ParseRunID(s)
	return err == nil
}

func (r *RunID) Time() time.Time {
	return ulid.Time(r.value.Time())
}

func (r *RunID) String() string {
	return r.value.String()
}

// NewTrackingID returns a random identifier that follows a record across stages.
func NewTrackingID() string {
	return uuid.NewString()
}

func IsValidTrackingID(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}
