// Package record defines the unit of data moving through a pipeline and the
// immutable snapshots handed to consuming stages.
package record

import (
	"encoding/json"
	"fmt"
	"reflect"
	"slices"
	"time"

	"github.com/batchlane/batchlane/pkg/id"
)

// Header carries identity and lineage. It never takes part in content equality.
type Header struct {
	// SourceID identifies the record at its origin, e.g. "orders.jsonl::42".
	SourceID string
	// TrackingID is unique per record and survives every hop.
	TrackingID string
	// StageCreator is the instance name of the stage that created the record.
	StageCreator string
	// StagesPath lists every stage that has read the record, in order.
	StagesPath []string
}

func (h Header) clone() Header {
	h.StagesPath = slices.Clone(h.StagesPath)
	return h
}

// Record is the mutable form a stage builds or edits before emitting it.
// A Record is owned by exactly one stage execution at a time.
type Record struct {
	header  Header
	fields  map[string]any
	payload []byte
}

// New creates an empty record created by the given stage.
func New(stage, sourceID string) *Record {
	return &Record{
		header: Header{
			SourceID:     sourceID,
			TrackingID:   id.NewTrackingID(),
			StageCreator: stage,
		},
		fields: map[string]any{},
	}
}

func (r *Record) Header() Header {
	return r.header.clone()
}

// Set stores a copy of value under key. Values are converted to the forms a
// record holds: nil, scalars, time.Time, []byte, []any and map[string]any.
// Typed maps and slices become map[string]any and []any, pointers are followed
// and structs are converted through their JSON encoding. Map keys that are not
// strings are rendered with fmt. Channels and funcs are stored as their fmt
// rendering.
func (r *Record) Set(key string, value any) *Record {
	r.fields[key] = normalize(value)
	return r
}

func (r *Record) Get(key string) (any, bool) {
	v, ok := r.fields[key]
	return deepCopy(v), ok
}

func (r *Record) Delete(key string) *Record {
	delete(r.fields, key)
	return r
}

func (r *Record) Fields() map[string]any {
	return copyFields(r.fields)
}

func (r *Record) Payload() []byte {
	return slices.Clone(r.payload)
}

func (r *Record) SetPayload(payload []byte) *Record {
	r.payload = slices.Clone(payload)
	return r
}

func copyFields(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = deepCopy(v)
	}
	return out
}

// deepCopy copies a value already in record form.
func deepCopy(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return copyFields(t)
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = deepCopy(e)
		}
		return out
	case []byte:
		return slices.Clone(t)
	default:
		return v
	}
}

var timeType = reflect.TypeFor[time.Time]()

func normalize(v any) any {
	switch t := v.(type) {
	case nil:
		return nil
	case bool, string, int, int64, float64, time.Time:
		return t
	case []byte:
		return slices.Clone(t)
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = normalize(e)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = normalize(e)
		}
		return out
	}
	return normalizeValue(reflect.ValueOf(v))
}

func normalizeValue(rv reflect.Value) any {
	switch rv.Kind() {
	case reflect.Invalid:
		return nil
	case reflect.Bool, reflect.String,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr,
		reflect.Float32, reflect.Float64, reflect.Complex64, reflect.Complex128:
		return rv.Interface()
	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			return nil
		}
		return normalizeValue(rv.Elem())
	case reflect.Slice:
		if rv.IsNil() {
			return nil
		}
		if rv.Type().Elem().Kind() == reflect.Uint8 {
			return slices.Clone(rv.Bytes())
		}
		return normalizeList(rv)
	case reflect.Array:
		return normalizeList(rv)
	case reflect.Map:
		if rv.IsNil() {
			return nil
		}
		out := make(map[string]any, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			out[mapKey(iter.Key())] = normalizeValue(iter.Value())
		}
		return out
	case reflect.Struct:
		if rv.Type() == timeType {
			return rv.Interface()
		}
		return viaJSON(rv.Interface())
	default:
		return fmt.Sprint(rv.Interface())
	}
}

func normalizeList(rv reflect.Value) []any {
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = normalizeValue(rv.Index(i))
	}
	return out
}

func mapKey(k reflect.Value) string {
	if k.Kind() == reflect.Interface && !k.IsNil() {
		k = k.Elem()
	}
	if k.Kind() == reflect.String {
		return k.String()
	}
	return fmt.Sprint(k.Interface())
}

func viaJSON(v any) any {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	var out any
	if err := json.Unmarshal(b, &out); err != nil {
		return fmt.Sprint(v)
	}
	return out
}
