package audit

import (
	"encoding/json"
	"reflect"
)

type Change struct {
	Before any `json:"before"`
	After  any `json:"after"`
}

// Diff compares the JSON encodings of before and after and returns the
// top-level fields whose values differ. Either side may be nil.
func Diff(before, after any) map[string]any {
	b := toMap(before)
	a := toMap(after)

	out := map[string]any{}
	for k, bv := range b {
		av, ok := a[k]
		if !ok || !reflect.DeepEqual(av, bv) {
			out[k] = Change{Before: bv, After: av}
		}
	}
	for k, av := range a {
		if _, ok := b[k]; !ok {
			out[k] = Change{After: av}
		}
	}
	return out
}

func toMap(v any) map[string]any {
	if v == nil {
		return map[string]any{}
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return map[string]any{}
	}
	m := map[string]any{}
	if err := json.Unmarshal(raw, &m); err != nil {
		return map[string]any{}
	}
	return m
}
