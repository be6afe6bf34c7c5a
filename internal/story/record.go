package story

import (
	"encoding/json"
	"fmt"
	"maps"
)

// Record is an open keyed record: the global state shared by all stories,
// or one story's local state. Values must be JSON-encodable.
type Record map[string]any

// Int reads key as an integer. JSON-decoded numbers arrive as float64.
func (r Record) Int(key string) (int, bool) {
	switch v := r[key].(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		if v == float64(int(v)) {
			return int(v), true
		}
	}
	return 0, false
}

func (r Record) String(key string) (string, bool) {
	v, ok := r[key].(string)
	return v, ok
}

func (r Record) Bool(key string) (bool, bool) {
	v, ok := r[key].(bool)
	return v, ok
}

// Clone returns a shallow copy.
func (r Record) Clone() Record {
	if r == nil {
		return Record{}
	}
	return maps.Clone(r)
}

// Replace swaps the whole content of r for src, keeping the map identity.
func (r Record) Replace(src map[string]any) {
	clear(r)
	maps.Copy(r, src)
}

// Decode converts the record into a typed struct, for stories whose state
// shape is known ahead of time.
func Decode[T any](r Record) (T, error) {
	var out T
	data, err := json.Marshal(r)
	if err != nil {
		return out, fmt.Errorf("encode record: %w", err)
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return out, fmt.Errorf("decode record: %w", err)
	}
	return out, nil
}

// Encode writes the fields of v back into the record.
func (r Record) Encode(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}
	var fields map[string]any
	if err := json.Unmarshal(data, &fields); err != nil {
		return fmt.Errorf("decode state: %w", err)
	}
	maps.Copy(r, fields)
	return nil
}
