package engine

import (
	"fmt"
	"time"

	"github.com/picklr-io/resolvr/internal/state"
)

// PropertyDiff describes how one property of a regional resource changed
// since it was last resolved.
type PropertyDiff struct {
	Before any    `json:"before,omitempty"`
	After  any    `json:"after,omitempty"`
	Action string `json:"action"`
}

// Drift compares one spec against its last resolved record. Diff keys are
// "<region>.<property>".
type Drift struct {
	Address string                   `json:"address"`
	Action  string                   `json:"action"` // "create", "update", "delete", "noop"
	Diff    map[string]*PropertyDiff `json:"diff,omitempty"`
}

// Record builds the record of a result. Specs that failed keep what the
// prior record had for them.
func (r *Result) Record(prior *state.Record) (*state.Record, error) {
	next := state.NewRecord()
	if prior != nil {
		next.Version = prior.Version
		next.Serial = prior.Serial
		next.Lineage = prior.Lineage
	}
	next.ResolvedAt = time.Now().UTC()

	for _, o := range r.Outcomes {
		if o.Err != nil {
			if old := prior.Resource(o.Address); old != nil {
				next.Resources = append(next.Resources, *old)
			}
			continue
		}
		rec, err := recordOf(o)
		if err != nil {
			return nil, err
		}
		next.Resources = append(next.Resources, rec)
	}
	return next, nil
}

func recordOf(o *Outcome) (state.ResourceRecord, error) {
	rec := state.ResourceRecord{
		Address: o.Address,
		Kind:    o.Kind,
		ID:      o.ID,
		Regions: make(map[string]map[string]any, len(o.Resources)),
	}
	for _, res := range o.Resources {
		values, err := state.Normalize(res)
		if err != nil {
			return rec, fmt.Errorf("failed to record %s in %s: %w", o.Address, res.RegionName(), err)
		}
		rec.Regions[res.RegionName()] = values
	}
	return rec, nil
}

// Audit compares a result against the prior record. Re-resolving an
// unchanged document against an unchanged inventory yields only "noop"
// drifts. Failed specs are left out.
func Audit(prior *state.Record, r *Result) ([]Drift, error) {
	var drifts []Drift
	for _, o := range r.Outcomes {
		if o.Err != nil {
			continue
		}
		rec, err := recordOf(o)
		if err != nil {
			return nil, err
		}
		old := prior.Resource(o.Address)
		if old == nil {
			drifts = append(drifts, Drift{Address: o.Address, Action: "create", Diff: buildRegionDiff(nil, rec.Regions)})
			continue
		}
		diff := buildRegionDiff(old.Regions, rec.Regions)
		action := "update"
		if len(diff) == 0 {
			action, diff = "noop", nil
		}
		drifts = append(drifts, Drift{Address: o.Address, Action: action, Diff: diff})
	}

	for _, addr := range prior.Addresses() {
		if r.graph != nil && r.graph.Has(addr) {
			continue
		}
		old := prior.Resource(addr)
		drifts = append(drifts, Drift{Address: addr, Action: "delete", Diff: buildRegionDiff(old.Regions, nil)})
	}
	return drifts, nil
}

func buildRegionDiff(prior, desired map[string]map[string]any) map[string]*PropertyDiff {
	diff := make(map[string]*PropertyDiff)
	for region := range unionKeys(prior, desired) {
		for k, d := range buildPropertyDiff(prior[region], desired[region]) {
			diff[region+"."+k] = d
		}
	}
	return diff
}

// buildPropertyDiff compares prior and desired properties.
func buildPropertyDiff(prior, desired map[string]any) map[string]*PropertyDiff {
	diff := make(map[string]*PropertyDiff)
	for k := range unionKeys(prior, desired) {
		priorVal, inPrior := prior[k]
		desiredVal, inDesired := desired[k]

		switch {
		case !inPrior:
			diff[k] = &PropertyDiff{After: desiredVal, Action: "create"}
		case !inDesired:
			diff[k] = &PropertyDiff{Before: priorVal, Action: "delete"}
		case fmt.Sprintf("%v", priorVal) != fmt.Sprintf("%v", desiredVal):
			diff[k] = &PropertyDiff{Before: priorVal, After: desiredVal, Action: "update"}
		}
	}
	return diff
}

func unionKeys[V any](a, b map[string]V) map[string]struct{} {
	keys := make(map[string]struct{}, len(a)+len(b))
	for k := range a {
		keys[k] = struct{}{}
	}
	for k := range b {
		keys[k] = struct{}{}
	}
	return keys
}
