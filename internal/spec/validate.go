package spec

import (
	"fmt"
	"sort"
	"strings"
)

// MaxNameLength is the longest name AWS accepts for load balancers and
// target groups.
const MaxNameLength = 32

// SpecInvalidError is returned when a spec contradicts itself. It is raised
// before any resolution runs and is not retryable without editing the spec.
type SpecInvalidError struct {
	Kind       Kind
	ResourceID string
	Violations []string
}

func (e *SpecInvalidError) Error() string {
	return fmt.Sprintf("invalid %s spec %s: %s", e.Kind, e.ResourceID, strings.Join(e.Violations, "; "))
}

// New validates a spec built in code, so that specs constructed outside a
// document obey the same invariants as decoded ones.
func New[S Spec](s S) (S, error) {
	if err := s.Validate(); err != nil {
		var zero S
		return zero, err
	}
	return s, nil
}

type violations struct {
	list []string
}

func (v *violations) add(msg string) {
	v.list = append(v.list, msg)
}

func (v *violations) addf(format string, args ...any) {
	v.list = append(v.list, fmt.Sprintf(format, args...))
}

func (v *violations) err(kind Kind, id string) error {
	if len(v.list) == 0 {
		return nil
	}
	return &SpecInvalidError{Kind: kind, ResourceID: id, Violations: v.list}
}

// validateOverrideRegions rejects overrides keyed by regions that are not
// declared in locations.
func validateOverrideRegions[V any](v *violations, loc Locations, overrides map[string]V) {
	regions := make([]string, 0, len(overrides))
	for r := range overrides {
		regions = append(regions, r)
	}
	sort.Strings(regions)
	for _, r := range regions {
		if !loc.HasRegion(r) {
			v.addf("override for region %s which is not declared in locations", r)
		}
	}
}

func validateNameLength(v *violations, what, name string) {
	if len(name) > MaxNameLength {
		v.addf("%s name %q is %d characters, the maximum is %d", what, name, len(name), MaxNameLength)
	}
}

func oneOf[T ~string](value T, allowed []T) bool {
	for _, a := range allowed {
		if strings.EqualFold(string(a), string(value)) {
			return true
		}
	}
	return false
}
