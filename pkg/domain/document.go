package domain

import (
	"fmt"
	"math"
	"reflect"
	"time"
)

// Reserved document fields managed by the store
const (
	FieldID        = "_id"
	FieldCreatedAt = "_createdAt"
	FieldUpdatedAt = "_updatedAt"
)

// TimestampLayout is a fixed-width RFC3339 layout, so timestamps sort lexically
const TimestampLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Document represents a document in the database
type Document map[string]interface{}

// ID returns the document's _id, or "" when it is missing or not a string
func (d Document) ID() string {
	id, _ := d[FieldID].(string)
	return id
}

// Clone returns a deep copy of the document
func (d Document) Clone() Document {
	if d == nil {
		return nil
	}
	out := make(Document, len(d))
	for k, v := range d {
		out[k] = CloneValue(v)
	}
	return out
}

// CloneValue deep-copies a normalized value
func CloneValue(v interface{}) interface{} {
	switch val := v.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(val))
		for k, item := range val {
			out[k] = CloneValue(item)
		}
		return out
	case Document:
		return map[string]interface{}(val.Clone())
	case []interface{}:
		out := make([]interface{}, len(val))
		for i, item := range val {
			out[i] = CloneValue(item)
		}
		return out
	default:
		return v
	}
}

// FormatTimestamp renders t in the store's timestamp layout (UTC)
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// NormalizeDocument converts every value in doc into the canonical value model
func NormalizeDocument(doc map[string]interface{}) (Document, error) {
	out := make(Document, len(doc))
	for k, v := range doc {
		nv, err := Normalize(v)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", k, err)
		}
		out[k] = nv
	}
	return out, nil
}

// Normalize converts a Go value into the canonical value model:
// nil, bool, float64, string, []interface{} or map[string]interface{}.
// Errors wrap ErrInvalidDocument. NaN and infinities are rejected because
// no snapshot codec can store them.
func Normalize(v interface{}) (interface{}, error) {
	switch val := v.(type) {
	case nil:
		return nil, nil
	case bool, string:
		return val, nil
	case float64:
		return finite(val)
	case float32:
		return finite(float64(val))
	case int:
		return float64(val), nil
	case int8:
		return float64(val), nil
	case int16:
		return float64(val), nil
	case int32:
		return float64(val), nil
	case int64:
		return float64(val), nil
	case uint:
		return float64(val), nil
	case uint8:
		return float64(val), nil
	case uint16:
		return float64(val), nil
	case uint32:
		return float64(val), nil
	case uint64:
		return float64(val), nil
	case time.Time:
		return FormatTimestamp(val), nil
	case Document:
		return NormalizeValueMap(val)
	case map[string]interface{}:
		return NormalizeValueMap(val)
	case []interface{}:
		out := make([]interface{}, len(val))
		for i, item := range val {
			nv, err := Normalize(item)
			if err != nil {
				return nil, err
			}
			out[i] = nv
		}
		return out, nil
	}

	// Typed slices and string-keyed maps (e.g. []string, map[string]int)
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		out := make([]interface{}, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			nv, err := Normalize(rv.Index(i).Interface())
			if err != nil {
				return nil, err
			}
			out[i] = nv
		}
		return out, nil
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return nil, fmt.Errorf("%w: unsupported map key type %s", ErrInvalidDocument, rv.Type().Key())
		}
		out := make(map[string]interface{}, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			nv, err := Normalize(iter.Value().Interface())
			if err != nil {
				return nil, err
			}
			out[iter.Key().String()] = nv
		}
		return out, nil
	}
	return nil, fmt.Errorf("%w: unsupported value type %T", ErrInvalidDocument, v)
}

func finite(f float64) (interface{}, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, fmt.Errorf("%w: non-finite number %v", ErrInvalidDocument, f)
	}
	return f, nil
}

// NormalizeValueMap normalizes every entry of a nested mapping value
func NormalizeValueMap(m map[string]interface{}) (map[string]interface{}, error) {
	out := make(map[string]interface{}, len(m))
	for k, item := range m {
		nv, err := Normalize(item)
		if err != nil {
			return nil, err
		}
		out[k] = nv
	}
	return out, nil
}
