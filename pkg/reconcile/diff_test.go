package reconcile

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDiffSets(t *testing.T) {
	tests := []struct {
		name    string
		current []string
		wanted  []string
		add     []string
		remove  []string
	}{
		{name: "replace one", current: []string{"A", "B"}, wanted: []string{"B", "C"}, add: []string{"C"}, remove: []string{"A"}},
		{name: "equal", current: []string{"B", "A"}, wanted: []string{"A", "B"}},
		{name: "from empty", wanted: []string{"Z", "A"}, add: []string{"A", "Z"}},
		{name: "to empty", current: []string{"A"}, remove: []string{"A"}},
		{name: "duplicates", current: []string{"A", "A"}, wanted: []string{"A"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := DiffSets(tt.current, tt.wanted)
			assert.Equal(t, tt.add, d.Add)
			assert.Equal(t, tt.remove, d.Remove)
			assert.Equal(t, len(tt.add) == 0 && len(tt.remove) == 0, d.Empty())
		})
	}
}

func TestUnion(t *testing.T) {
	assert.Equal(t, []string{"1", "2", "3"}, union([]string{"1", "2"}, []string{"2", "3"}))
	assert.Equal(t, []string{"4"}, union(nil, []string{"4", "4"}))
}

func live(t *testing.T, raw string) Object {
	t.Helper()
	var o Object
	if err := json.Unmarshal([]byte(raw), &o); err != nil {
		t.Fatal(err)
	}
	return o
}

func TestDiffPayload(t *testing.T) {
	type nested struct {
		Version int `json:"version"`
	}
	type payload struct {
		Name    string              `json:"name"`
		Port    int                 `json:"port"`
		Details nested              `json:"details"`
		Tags    []map[string]string `json:"tags"`
		HostID  string              `json:"hostid"`
	}
	d := payload{Name: "web", Port: 161, Details: nested{Version: 2}, Tags: []map[string]string{{"tag": "net"}}, HostID: "1"}

	t.Run("strings match numbers and extra live members are ignored", func(t *testing.T) {
		r := live(t, `{"name":"web","port":"161","details":{"version":"2","bulk":"1"},
			"tags":[{"tag":"net","value":""}],"hostid":"99","flags":"0"}`)
		assert.Empty(t, diffPayload(d, r, "hostid"))
	})

	t.Run("skipped fields are not compared", func(t *testing.T) {
		r := live(t, `{"name":"web","port":"161","details":{"version":"2"},"tags":[{"tag":"net"}],"hostid":"99"}`)
		changes := diffPayload(d, r)
		assert.Len(t, changes, 1)
		assert.Equal(t, "hostid", changes[0].Path)
	})

	t.Run("nested and list differences", func(t *testing.T) {
		r := live(t, `{"name":"web","port":"10050","details":{"version":"3"},"tags":[],"hostid":"1"}`)
		changes := diffPayload(d, r)
		var paths []string
		for _, c := range changes {
			paths = append(paths, c.Path)
		}
		assert.Equal(t, []string{"details", "port", "tags"}, paths)
	})

	t.Run("missing live field", func(t *testing.T) {
		changes := diffPayload(d, live(t, `{}`))
		assert.Len(t, changes, 5)
	})
}

func TestMatches_EmptyCollections(t *testing.T) {
	assert.True(t, matches([]interface{}{}, nil))
	assert.True(t, matches(map[string]interface{}{}, nil))
	assert.False(t, matches([]interface{}{"a"}, nil))
	assert.True(t, matches("", nil))
}
