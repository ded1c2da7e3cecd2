package catalog

import "embed"

const defaultCatalog = "default.yaml"

//go:embed default.yaml scripts/*.js
var embedded embed.FS

// DefaultSource returns the embedded catalog before rendering.
func DefaultSource() []byte {
	b, _ := embedded.ReadFile(defaultCatalog)
	return b
}
