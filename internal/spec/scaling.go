package spec

import (
	"slices"
	"strings"
	"time"

	astypes "github.com/aws/aws-sdk-go-v2/service/autoscaling/types"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
)

// AutoScalingGroupDimension is the CloudWatch dimension naming a single
// server group. Scaling policies must not use it.
const AutoScalingGroupDimension = "AutoScalingGroupName"

// maxStepWindow bounds period * evaluationPeriods for step policies.
const maxStepWindow = 24 * time.Hour

var adjustmentTypes = []string{"ChangeInCapacity", "ExactCapacity", "PercentChangeInCapacity"}

// ScalingSpec holds the scaling policies of a server group.
type ScalingSpec struct {
	TargetTracking []TargetTrackingPolicy `json:"targetTrackingPolicies,omitempty"`
	Step           []StepScalingPolicy    `json:"stepScalingPolicies,omitempty"`
}

// HasPolicies reports whether any scaling policy is defined.
func (s *ScalingSpec) HasPolicies() bool {
	return s != nil && (len(s.TargetTracking) > 0 || len(s.Step) > 0)
}

func (s *ScalingSpec) Clone() *ScalingSpec {
	if s == nil {
		return nil
	}
	out := &ScalingSpec{}
	for _, p := range s.TargetTracking {
		out.TargetTracking = append(out.TargetTracking, p.Clone())
	}
	for _, p := range s.Step {
		out.Step = append(out.Step, p.Clone())
	}
	return out
}

// MetricSpec selects the metric a policy tracks. Exactly one of Predefined
// and Custom must be set.
type MetricSpec struct {
	Predefined *PredefinedMetric `json:"predefinedMetric,omitempty"`
	Custom     *CustomMetric     `json:"customMetric,omitempty"`
}

// PredefinedMetric is one of the auto scaling predefined metric types.
type PredefinedMetric struct {
	Type          string `json:"type"`
	ResourceLabel string `json:"resourceLabel,omitempty"`
}

// CustomMetric identifies a CloudWatch metric by name and namespace.
type CustomMetric struct {
	Name       string      `json:"name"`
	Namespace  string      `json:"namespace"`
	Statistic  string      `json:"statistic"`
	Unit       string      `json:"unit,omitempty"`
	Dimensions []Dimension `json:"dimensions,omitempty"`
}

type Dimension struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

func (m MetricSpec) clone() MetricSpec {
	out := MetricSpec{}
	if m.Predefined != nil {
		p := *m.Predefined
		out.Predefined = &p
	}
	if m.Custom != nil {
		c := *m.Custom
		c.Dimensions = slices.Clone(m.Custom.Dimensions)
		out.Custom = &c
	}
	return out
}

func (m MetricSpec) validate(v *violations, policy string) {
	switch {
	case m.Predefined == nil && m.Custom == nil:
		v.addf("scaling policy %s must specify a predefined or a custom metric", policy)
		return
	case m.Predefined != nil && m.Custom != nil:
		v.addf("scaling policy %s specifies both a predefined and a custom metric", policy)
		return
	}

	if p := m.Predefined; p != nil {
		if !oneOf(astypes.MetricType(p.Type), astypes.MetricType("").Values()) {
			v.addf("scaling policy %s uses unknown predefined metric %q", policy, p.Type)
		}
		return
	}

	c := m.Custom
	if c.Name == "" || c.Namespace == "" {
		v.addf("scaling policy %s custom metric requires a name and a namespace", policy)
	}
	if !oneOf(cwtypes.Statistic(c.Statistic), cwtypes.Statistic("").Values()) {
		v.addf("scaling policy %s uses unknown statistic %q", policy, c.Statistic)
	}
	if c.Unit != "" && !oneOf(cwtypes.StandardUnit(c.Unit), cwtypes.StandardUnit("").Values()) {
		v.addf("scaling policy %s uses unknown unit %q", policy, c.Unit)
	}
	for _, d := range c.Dimensions {
		if strings.EqualFold(d.Name, AutoScalingGroupDimension) {
			v.addf("scaling policy %s must not use the %s dimension", policy, AutoScalingGroupDimension)
		}
	}
}

// TargetTrackingPolicy keeps a metric close to a target value.
type TargetTrackingPolicy struct {
	Name           string    `json:"name"`
	TargetValue    float64   `json:"targetValue"`
	Warmup         *Duration `json:"warmup,omitempty"`
	DisableScaleIn bool      `json:"disableScaleIn,omitempty"`
	MetricSpec
}

func (p TargetTrackingPolicy) Clone() TargetTrackingPolicy {
	out := p
	out.MetricSpec = p.MetricSpec.clone()
	if p.Warmup != nil {
		w := *p.Warmup
		out.Warmup = &w
	}
	return out
}

func (p TargetTrackingPolicy) validate(v *violations) {
	if p.Name == "" {
		v.add("target tracking policy without a name")
	}
	p.MetricSpec.validate(v, p.Name)
}

// StepScalingPolicy adjusts capacity in steps when an alarm breaches.
type StepScalingPolicy struct {
	Name                   string           `json:"name"`
	AdjustmentType         string           `json:"adjustmentType"`
	ComparisonOperator     string           `json:"comparisonOperator"`
	Threshold              float64          `json:"threshold"`
	EvaluationPeriods      int              `json:"evaluationPeriods"`
	Period                 Duration         `json:"period"`
	Warmup                 *Duration        `json:"warmup,omitempty"`
	MinAdjustmentMagnitude *int             `json:"minAdjustmentMagnitude,omitempty"`
	StepAdjustments        []StepAdjustment `json:"stepAdjustments"`
	MetricSpec
}

// StepAdjustment scales by ScalingAdjustment when the metric falls between the
// bounds.
type StepAdjustment struct {
	LowerBound        *float64 `json:"lowerBound,omitempty"`
	UpperBound        *float64 `json:"upperBound,omitempty"`
	ScalingAdjustment int      `json:"scalingAdjustment"`
}

func (p StepScalingPolicy) Clone() StepScalingPolicy {
	out := p
	out.MetricSpec = p.MetricSpec.clone()
	if p.Warmup != nil {
		w := *p.Warmup
		out.Warmup = &w
	}
	if p.MinAdjustmentMagnitude != nil {
		m := *p.MinAdjustmentMagnitude
		out.MinAdjustmentMagnitude = &m
	}
	out.StepAdjustments = make([]StepAdjustment, 0, len(p.StepAdjustments))
	for _, s := range p.StepAdjustments {
		c := StepAdjustment{ScalingAdjustment: s.ScalingAdjustment}
		if s.LowerBound != nil {
			lb := *s.LowerBound
			c.LowerBound = &lb
		}
		if s.UpperBound != nil {
			ub := *s.UpperBound
			c.UpperBound = &ub
		}
		out.StepAdjustments = append(out.StepAdjustments, c)
	}
	return out
}

func (p StepScalingPolicy) validate(v *violations) {
	if p.Name == "" {
		v.add("step scaling policy without a name")
	}
	if !slices.Contains(adjustmentTypes, p.AdjustmentType) {
		v.addf("step scaling policy %s uses unknown adjustment type %q", p.Name, p.AdjustmentType)
	}
	if !oneOf(cwtypes.ComparisonOperator(p.ComparisonOperator), cwtypes.ComparisonOperator("").Values()) {
		v.addf("step scaling policy %s uses unknown comparison operator %q", p.Name, p.ComparisonOperator)
	}
	if p.EvaluationPeriods < 1 {
		v.addf("step scaling policy %s needs at least one evaluation period", p.Name)
	}
	if p.Period.Std() <= 0 {
		v.addf("step scaling policy %s needs a positive period", p.Name)
	}
	// Compared by division so large counts cannot overflow the product.
	if p.EvaluationPeriods > 0 && p.Period.Std() > maxStepWindow/time.Duration(p.EvaluationPeriods) {
		v.addf("step scaling policy %s evaluates %d periods of %s, more than the maximum of %s", p.Name, p.EvaluationPeriods, p.Period.Std(), maxStepWindow)
	}
	if len(p.StepAdjustments) == 0 {
		v.addf("step scaling policy %s needs at least one step adjustment", p.Name)
	}
	p.MetricSpec.validate(v, p.Name)
}

func (s *ScalingSpec) validate(v *violations) {
	if s == nil {
		return
	}
	for _, p := range s.TargetTracking {
		p.validate(v)
	}
	for _, p := range s.Step {
		p.validate(v)
	}
}
