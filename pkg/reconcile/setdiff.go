package reconcile

import "sort"

// SetDiff compares a current id set C with a wanted set W.
type SetDiff struct {
	// Add is W - C.
	Add []string

	// Remove is C - W.
	Remove []string
}

// DiffSets computes the set difference; both results are sorted.
func DiffSets(current, wanted []string) SetDiff {
	cur := toSet(current)
	want := toSet(wanted)

	var d SetDiff
	for id := range want {
		if !cur[id] {
			d.Add = append(d.Add, id)
		}
	}
	for id := range cur {
		if !want[id] {
			d.Remove = append(d.Remove, id)
		}
	}
	sort.Strings(d.Add)
	sort.Strings(d.Remove)
	return d
}

// Empty reports whether the sets are equal.
func (d SetDiff) Empty() bool {
	return len(d.Add) == 0 && len(d.Remove) == 0
}

// union returns a followed by the members of b not in a.
func union(a, b []string) []string {
	seen := toSet(a)
	out := append([]string(nil), a...)
	for _, id := range b {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}

func toSet(ids []string) map[string]bool {
	s := make(map[string]bool, len(ids))
	for _, id := range ids {
		s[id] = true
	}
	return s
}

// refs renders ids as [{field: id}, ...].
func refs(field string, ids []string) []map[string]string {
	out := make([]map[string]string, 0, len(ids))
	for _, id := range ids {
		out = append(out, map[string]string{field: id})
	}
	return out
}
