// Package merge implements the field-merge rules shared by every tiered
// spec: scalar precedence, set union and map overlay.
package merge

import (
	"cmp"
	"fmt"
	"maps"
	"slices"
)

// MissingRequiredFieldError is returned when no tier and no fallback
// supplies a required value.
type MissingRequiredFieldError struct {
	Field      string
	Region     string
	ResourceID string
}

func (e *MissingRequiredFieldError) Error() string {
	return fmt.Sprintf("resource %s: no value for required field %s in region %s", e.ResourceID, e.Field, e.Region)
}

// Field names the value being merged for error reporting.
type Field struct {
	Name       string
	Region     string
	ResourceID string
}

// Scalar returns the first non-nil source. Sources are ordered strongest
// first: override, defaults, then any computed fallback.
func Scalar[T any](f Field, sources ...*T) (T, error) {
	for _, s := range sources {
		if s != nil {
			return *s, nil
		}
	}
	var zero T
	return zero, &MissingRequiredFieldError{Field: f.Name, Region: f.Region, ResourceID: f.ResourceID}
}

// ScalarOr is Scalar for optional fields: def is used when no source is set.
func ScalarOr[T any](def T, sources ...*T) T {
	for _, s := range sources {
		if s != nil {
			return *s
		}
	}
	return def
}

// First returns the first non-nil source or nil.
func First[T any](sources ...*T) *T {
	for _, s := range sources {
		if s != nil {
			return s
		}
	}
	return nil
}

// Union merges sets. The result is de-duplicated and sorted; nil when empty.
func Union[T cmp.Ordered](sets ...[]T) []T {
	var out []T
	for _, s := range sets {
		out = append(out, s...)
	}
	if len(out) == 0 {
		return nil
	}
	slices.Sort(out)
	return slices.Compact(out)
}

// UnionBy merges keyed elements. An override element replaces the default
// element with the same key. The result is sorted by key.
func UnionBy[T any, K cmp.Ordered](key func(T) K, defaults, override []T) []T {
	byKey := make(map[K]T, len(defaults)+len(override))
	for _, d := range defaults {
		byKey[key(d)] = d
	}
	for _, o := range override {
		byKey[key(o)] = o
	}
	if len(byKey) == 0 {
		return nil
	}
	out := make([]T, 0, len(byKey))
	for _, k := range slices.Sorted(maps.Keys(byKey)) {
		out = append(out, byKey[k])
	}
	return out
}

// Overlay returns defaults with every key present in override replaced by
// the override's value. Neither input is modified.
func Overlay[K comparable, V any](defaults, override map[K]V) map[K]V {
	if len(defaults) == 0 && len(override) == 0 {
		return nil
	}
	out := make(map[K]V, len(defaults)+len(override))
	maps.Copy(out, defaults)
	maps.Copy(out, override)
	return out
}
