package record

import (
	"fmt"
	"maps"
	"math"
	"reflect"
	"slices"
	"strconv"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/tidwall/gjson"
)

// Snapshot is a frozen copy of a Record, stamped with the stage it was read by.
// Every accessor returns copies, so nothing reachable from a Snapshot can change it.
type Snapshot struct {
	stage   string
	header  Header
	fields  map[string]any
	payload []byte
}

// NewSnapshot copies r and stamps the copy with stage.
func NewSnapshot(r *Record, stage string) *Snapshot {
	h := r.header.clone()
	h.StagesPath = append(h.StagesPath, stage)

	return &Snapshot{
		stage:   stage,
		header:  h,
		fields:  copyFields(r.fields),
		payload: slices.Clone(r.payload),
	}
}

// Stage returns the instance name of the stage that produced this snapshot.
func (s *Snapshot) Stage() string {
	return s.stage
}

func (s *Snapshot) Header() Header {
	return s.header.clone()
}

func (s *Snapshot) Get(key string) (any, bool) {
	v, ok := s.fields[key]
	return deepCopy(v), ok
}

func (s *Snapshot) Fields() map[string]any {
	return copyFields(s.fields)
}

func (s *Snapshot) Payload() []byte {
	return slices.Clone(s.payload)
}

// Query evaluates a gjson path against the payload.
func (s *Snapshot) Query(path string) gjson.Result {
	return gjson.GetBytes(s.payload, path)
}

// Fingerprint hashes the fields and payload. Two snapshots with equal content
// share a fingerprint regardless of their headers. Numbers compare by value,
// so 1 and 1.0 hash alike.
func (s *Snapshot) Fingerprint() uint64 {
	d := xxhash.New()
	hashValue(d, s.fields)
	_, _ = d.Write([]byte{0})
	_, _ = d.Write(s.payload)
	return d.Sum64()
}

// hashValue writes a canonical, type-tagged encoding of a value in record form.
// Map keys are visited in sorted order.
func hashValue(d *xxhash.Digest, v any) {
	write := func(tag byte, text string) {
		_, _ = d.Write([]byte{tag})
		_, _ = d.WriteString(strconv.Itoa(len(text)))
		_, _ = d.Write([]byte{':'})
		_, _ = d.WriteString(text)
	}

	switch t := v.(type) {
	case nil:
		_, _ = d.Write([]byte{'z'})
	case map[string]any:
		_, _ = d.Write([]byte{'{'})
		for _, k := range slices.Sorted(maps.Keys(t)) {
			write('k', k)
			hashValue(d, t[k])
		}
		_, _ = d.Write([]byte{'}'})
	case []any:
		_, _ = d.Write([]byte{'['})
		for _, e := range t {
			hashValue(d, e)
		}
		_, _ = d.Write([]byte{']'})
	case []byte:
		write('b', string(t))
	case time.Time:
		write('t', t.UTC().Format(time.RFC3339Nano))
	default:
		rv := reflect.ValueOf(v)
		switch rv.Kind() {
		case reflect.Bool:
			write('?', strconv.FormatBool(rv.Bool()))
		case reflect.String:
			write('s', rv.String())
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			write('n', strconv.FormatInt(rv.Int(), 10))
		case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
			write('n', strconv.FormatUint(rv.Uint(), 10))
		case reflect.Float32, reflect.Float64:
			write('n', formatFloat(rv.Float()))
		default:
			write('x', fmt.Sprint(v))
		}
	}
}

func formatFloat(f float64) string {
	if f == math.Trunc(f) && math.Abs(f) < 1<<63 {
		return strconv.FormatInt(int64(f), 10)
	}
	return strconv.FormatFloat(f, 'g', -1, 64)
}

// Record returns a new mutable Record carrying this snapshot's content and lineage.
func (s *Snapshot) Record() *Record {
	return &Record{
		header:  s.header.clone(),
		fields:  copyFields(s.fields),
		payload: slices.Clone(s.payload),
	}
}
