package reconcile

import "strings"

// ItemRef is a /host/key reference inside a trigger expression.
type ItemRef struct {
	Host string
	Key  string
}

// ParseItemRefs returns the item references of an expression in order of
// appearance. A key ends at the first comma or closing parenthesis outside
// brackets and quoted strings, so keys like logrt["/a,b",x] stay whole.
func ParseItemRefs(expr string) []ItemRef {
	var refs []ItemRef
	for i := 0; i < len(expr); i++ {
		if expr[i] != '(' || i+1 >= len(expr) || expr[i+1] != '/' {
			continue
		}

		hostStart := i + 2
		hostEnd := strings.IndexByte(expr[hostStart:], '/')
		if hostEnd <= 0 {
			continue
		}
		hostEnd += hostStart

		keyEnd := scanKey(expr, hostEnd+1)
		if keyEnd == hostEnd+1 {
			continue
		}
		refs = append(refs, ItemRef{Host: expr[hostStart:hostEnd], Key: expr[hostEnd+1 : keyEnd]})
		i = keyEnd - 1
	}
	return refs
}

func scanKey(expr string, start int) int {
	depth := 0
	quoted := false
	for j := start; j < len(expr); j++ {
		ch := expr[j]
		switch {
		case quoted && ch == '\\':
			j++
		case ch == '"':
			quoted = !quoted
		case quoted:
		case ch == '[':
			depth++
		case ch == ']':
			if depth > 0 {
				depth--
			}
		case depth == 0 && (ch == ',' || ch == ')'):
			return j
		}
	}
	return len(expr)
}

// Hosts returns the distinct hosts referenced by an expression, in order.
func Hosts(expr string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, r := range ParseItemRefs(expr) {
		if !seen[r.Host] {
			seen[r.Host] = true
			out = append(out, r.Host)
		}
	}
	return out
}
