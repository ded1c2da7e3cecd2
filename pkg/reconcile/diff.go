package reconcile

import (
	"bytes"
	"encoding/json"
	"sort"

	"github.com/openfroyo/zbxsync/pkg/engine"
)

// diffPayload compares every field of the desired payload, except the skipped
// ones, with the live object. Nested objects match when every desired member
// matches; live objects may carry extra members. Lists match element by element.
func diffPayload(desired interface{}, live Object, skip ...string) []engine.Change {
	want := toObject(desired)
	skipped := make(map[string]bool, len(skip))
	for _, f := range skip {
		skipped[f] = true
	}

	keys := make([]string, 0, len(want))
	for k := range want {
		if !skipped[k] {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	var changes []engine.Change
	for _, k := range keys {
		if !matches(want[k], live[k]) {
			changes = append(changes, engine.Change{Path: k, Before: live[k], After: want[k]})
		}
	}
	return changes
}

func matches(want, got interface{}) bool {
	switch w := want.(type) {
	case map[string]interface{}:
		g, ok := got.(map[string]interface{})
		if !ok {
			if o, isObj := got.(Object); isObj {
				g, ok = o, true
			}
		}
		if !ok {
			return len(w) == 0 && got == nil
		}
		for k, v := range w {
			if !matches(v, g[k]) {
				return false
			}
		}
		return true
	case []interface{}:
		g, ok := got.([]interface{})
		if !ok {
			return len(w) == 0 && got == nil
		}
		if len(w) != len(g) {
			return false
		}
		for i := range w {
			if !matches(w[i], g[i]) {
				return false
			}
		}
		return true
	default:
		return scalar(want) == scalar(got)
	}
}

// toObject renders a typed payload as a generic object.
func toObject(v interface{}) map[string]interface{} {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	var out map[string]interface{}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&out); err != nil {
		return nil
	}
	return out
}

// change builds a single-attribute change.
func change(path string, before, after interface{}) []engine.Change {
	return []engine.Change{{Path: path, Before: before, After: after}}
}
