// Package normalization maps loosely typed user input onto typed enumerations.
package normalization

import (
	"sort"
	"strings"

	"git.home.luguber.info/inful/bedshift/internal/foundation/errors"
)

// Normalizer is a case- and whitespace-insensitive string-to-enum table.
type Normalizer[T comparable] struct {
	values       map[string]T
	defaultValue T
	keys         []string
}

// NewNormalizer builds a Normalizer. Keys are folded with Clean.
func NewNormalizer[T comparable](values map[string]T, defaultValue T) *Normalizer[T] {
	n := &Normalizer[T]{
		values:       make(map[string]T, len(values)),
		defaultValue: defaultValue,
		keys:         make([]string, 0, len(values)),
	}
	for k, v := range values {
		k = Clean(k)
		n.values[k] = v
		n.keys = append(n.keys, k)
	}
	sort.Strings(n.keys)
	return n
}

// Normalize returns the value for raw, or the default when raw is unknown.
func (n *Normalizer[T]) Normalize(raw string) T {
	if v, ok := n.values[Clean(raw)]; ok {
		return v
	}
	return n.defaultValue
}

// NormalizeWithError is Normalize that rejects unknown input.
func (n *Normalizer[T]) NormalizeWithError(raw string) (T, error) {
	if v, ok := n.values[Clean(raw)]; ok {
		return v, nil
	}
	var zero T
	return zero, errors.ValidationError("unrecognized value").
		WithContext("value", raw).
		WithContext("valid", strings.Join(n.keys, ", ")).
		Build()
}

// Known reports whether raw maps to a value.
func (n *Normalizer[T]) Known(raw string) bool {
	_, ok := n.values[Clean(raw)]
	return ok
}

// ValidKeys returns the accepted spellings, sorted.
func (n *Normalizer[T]) ValidKeys() []string {
	return append([]string(nil), n.keys...)
}

// Clean is the folding applied to keys and input.
func Clean(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
