package spec

import (
	"maps"
	"slices"
	"sort"
	"strings"

	elbtypes "github.com/aws/aws-sdk-go-v2/service/elasticloadbalancingv2/types"
)

// LoadBalancerDependencies names the security groups attached to a load balancer.
type LoadBalancerDependencies struct {
	SecurityGroupNames []string `json:"securityGroupNames,omitempty"`
}

func (d *LoadBalancerDependencies) clone() *LoadBalancerDependencies {
	if d == nil {
		return nil
	}
	return &LoadBalancerDependencies{SecurityGroupNames: slices.Clone(d.SecurityGroupNames)}
}

// IsCertificateARN reports whether a listener certificate is already an ARN
// rather than a certificate name.
func IsCertificateARN(cert string) bool {
	return strings.HasPrefix(cert, "arn:")
}

// ApplicationLoadBalancerSpec describes an ALB with its listeners and target groups.
type ApplicationLoadBalancerSpec struct {
	Moniker      Moniker                                    `json:"moniker"`
	Locations    Locations                                  `json:"locations"`
	Internal     bool                                       `json:"internal"`
	IdleTimeout  *Duration                                  `json:"idleTimeout,omitempty"`
	Listeners    []ApplicationListener                      `json:"listeners"`
	TargetGroups []TargetGroup                              `json:"targetGroups"`
	Dependencies LoadBalancerDependencies                   `json:"dependencies"`
	Overrides    map[string]ApplicationLoadBalancerOverride `json:"overrides,omitempty"`
}

// ApplicationLoadBalancerOverride replaces settings in one region.
type ApplicationLoadBalancerOverride struct {
	Dependencies *LoadBalancerDependencies `json:"dependencies,omitempty"`
	IdleTimeout  *Duration                 `json:"idleTimeout,omitempty"`
}

// ApplicationListener is an ALB listener with its default actions and rules.
type ApplicationListener struct {
	Port     int    `json:"port"`
	Protocol string `json:"protocol"`
	// Certificate is a certificate name or ARN. CertificateARN is filled
	// by resolution.
	Certificate    string   `json:"certificate,omitempty"`
	CertificateARN string   `json:"certificateArn,omitempty"`
	DefaultActions []Action `json:"defaultActions"`
	Rules          []Rule   `json:"rules,omitempty"`
}

// Rule routes matching requests through ordered actions.
type Rule struct {
	Priority   int             `json:"priority"`
	Conditions []RuleCondition `json:"conditions"`
	Actions    []Action        `json:"actions"`
}

type RuleCondition struct {
	Field  string   `json:"field"`
	Values []string `json:"values"`
}

// Action is a listener or rule action. Actions run in ascending Order.
type Action struct {
	Type            string         `json:"type"`
	Order           int            `json:"order"`
	TargetGroupName string         `json:"targetGroupName,omitempty"`
	Redirect        *Redirect      `json:"redirect,omitempty"`
	FixedResponse   *FixedResponse `json:"fixedResponse,omitempty"`
}

type Redirect struct {
	Protocol   string `json:"protocol,omitempty"`
	Port       string `json:"port,omitempty"`
	Host       string `json:"host,omitempty"`
	Path       string `json:"path,omitempty"`
	Query      string `json:"query,omitempty"`
	StatusCode string `json:"statusCode"`
}

type FixedResponse struct {
	StatusCode  string `json:"statusCode"`
	ContentType string `json:"contentType,omitempty"`
	MessageBody string `json:"messageBody,omitempty"`
}

// TargetGroup is an ALB target group. Its name is limited to 32 characters.
type TargetGroup struct {
	Name                string    `json:"name"`
	Port                int       `json:"port"`
	Protocol            string    `json:"protocol"`
	TargetType          string    `json:"targetType,omitempty"`
	HealthCheckPath     string    `json:"healthCheckPath,omitempty"`
	HealthCheckPort     string    `json:"healthCheckPort,omitempty"`
	HealthCheckInterval *Duration `json:"healthCheckInterval,omitempty"`
	HealthyThreshold    int       `json:"healthyThreshold,omitempty"`
	UnhealthyThreshold  int       `json:"unhealthyThreshold,omitempty"`
	DeregistrationDelay *Duration `json:"deregistrationDelay,omitempty"`
}

func (*ApplicationLoadBalancerSpec) Kind() Kind { return KindApplicationLoadBalancer }
func (a *ApplicationLoadBalancerSpec) ID() string { return resourceID(a.Locations.Account, a.Moniker) }
func (a *ApplicationLoadBalancerSpec) Name() string { return a.Moniker.String() }
func (a *ApplicationLoadBalancerSpec) Account() string { return a.Locations.Account }
func (a *ApplicationLoadBalancerSpec) ResourceLocations() Locations { return a.Locations.Clone() }
func (*ApplicationLoadBalancerSpec) sealed() {}

func (a *ApplicationLoadBalancerSpec) WithLocations(l Locations) Spec {
	out := a.Clone()
	out.Locations = l.Clone()
	return out
}

func (a *ApplicationLoadBalancerSpec) DependsOn() []string {
	return dependencyNames(&a.Dependencies, a.Overrides, func(o ApplicationLoadBalancerOverride) *LoadBalancerDependencies {
		return o.Dependencies
	})
}

func (a *ApplicationLoadBalancerSpec) Clone() *ApplicationLoadBalancerSpec {
	out := &ApplicationLoadBalancerSpec{
		Moniker:      a.Moniker,
		Locations:    a.Locations.Clone(),
		Internal:     a.Internal,
		IdleTimeout:  clonePtr(a.IdleTimeout),
		Dependencies: *a.Dependencies.clone(),
	}
	for _, l := range a.Listeners {
		out.Listeners = append(out.Listeners, l.Clone())
	}
	for _, tg := range a.TargetGroups {
		c := tg
		c.HealthCheckInterval = clonePtr(tg.HealthCheckInterval)
		c.DeregistrationDelay = clonePtr(tg.DeregistrationDelay)
		out.TargetGroups = append(out.TargetGroups, c)
	}
	if a.Overrides != nil {
		out.Overrides = make(map[string]ApplicationLoadBalancerOverride, len(a.Overrides))
		for r, o := range a.Overrides {
			out.Overrides[r] = ApplicationLoadBalancerOverride{
				Dependencies: o.Dependencies.clone(),
				IdleTimeout:  clonePtr(o.IdleTimeout),
			}
		}
	}
	return out
}

func (l ApplicationListener) Clone() ApplicationListener {
	out := l
	out.DefaultActions = cloneActions(l.DefaultActions)
	out.Rules = nil
	for _, r := range l.Rules {
		rc := Rule{Priority: r.Priority, Actions: cloneActions(r.Actions)}
		for _, c := range r.Conditions {
			rc.Conditions = append(rc.Conditions, RuleCondition{Field: c.Field, Values: slices.Clone(c.Values)})
		}
		out.Rules = append(out.Rules, rc)
	}
	return out
}

func cloneActions(actions []Action) []Action {
	if actions == nil {
		return nil
	}
	out := make([]Action, len(actions))
	for i, a := range actions {
		out[i] = a
		out[i].Redirect = clonePtr(a.Redirect)
		out[i].FixedResponse = clonePtr(a.FixedResponse)
	}
	return out
}

// Validate checks name lengths, listener protocols and certificates, and
// rule action ordering.
func (a *ApplicationLoadBalancerSpec) Validate() error {
	v := &violations{}
	a.Moniker.validate(v, MaxNameLength)
	a.Locations.validate(v)
	validateOverrideRegions(v, a.Locations, a.Overrides)

	targetGroups := make(map[string]bool, len(a.TargetGroups))
	for _, tg := range a.TargetGroups {
		if tg.Name == "" {
			v.add("target group without a name")
		}
		validateNameLength(v, "target group", tg.Name)
		if targetGroups[tg.Name] {
			v.addf("target group %s is declared more than once", tg.Name)
		}
		targetGroups[tg.Name] = true
		if !oneOf(elbtypes.ProtocolEnum(tg.Protocol), elbtypes.ProtocolEnum("").Values()) {
			v.addf("target group %s uses unknown protocol %q", tg.Name, tg.Protocol)
		}
		if tg.TargetType != "" && !oneOf(elbtypes.TargetTypeEnum(tg.TargetType), elbtypes.TargetTypeEnum("").Values()) {
			v.addf("target group %s uses unknown target type %q", tg.Name, tg.TargetType)
		}
	}

	if len(a.Listeners) == 0 {
		v.add("at least one listener is required")
	}
	ports := make(map[int]bool, len(a.Listeners))
	for _, l := range a.Listeners {
		if ports[l.Port] {
			v.addf("more than one listener on port %d", l.Port)
		}
		ports[l.Port] = true
		protocol := elbtypes.ProtocolEnum(strings.ToUpper(l.Protocol))
		if protocol != elbtypes.ProtocolEnumHttp && protocol != elbtypes.ProtocolEnumHttps {
			v.addf("listener on port %d uses protocol %q, expected HTTP or HTTPS", l.Port, l.Protocol)
		}
		if protocol == elbtypes.ProtocolEnumHttps && l.Certificate == "" {
			v.addf("HTTPS listener on port %d requires a certificate", l.Port)
		}
		if len(l.DefaultActions) == 0 {
			v.addf("listener on port %d requires a default action", l.Port)
		}
		validateActions(v, l.DefaultActions, targetGroups, "listener", l.Port)
		priorities := make(map[int]bool, len(l.Rules))
		for _, r := range l.Rules {
			if r.Priority < 1 || r.Priority > 50000 {
				v.addf("listener on port %d: rule priority %d is outside [1, 50000]", l.Port, r.Priority)
			}
			if priorities[r.Priority] {
				v.addf("listener on port %d: more than one rule with priority %d", l.Port, r.Priority)
			}
			priorities[r.Priority] = true
			if len(r.Actions) == 0 {
				v.addf("listener on port %d: rule %d has no actions", l.Port, r.Priority)
			}
			validateActions(v, r.Actions, targetGroups, "rule", r.Priority)
		}
	}
	return v.err(KindApplicationLoadBalancer, a.ID())
}

func validateActions(v *violations, actions []Action, targetGroups map[string]bool, owner string, n int) {
	orders := make(map[int]bool, len(actions))
	for _, act := range actions {
		if !oneOf(elbtypes.ActionTypeEnum(act.Type), elbtypes.ActionTypeEnum("").Values()) {
			v.addf("%s %d: unknown action type %q", owner, n, act.Type)
		}
		if act.Order < 1 {
			v.addf("%s %d: action order must be at least 1", owner, n)
		}
		if orders[act.Order] {
			v.addf("%s %d: more than one action with order %d", owner, n, act.Order)
		}
		orders[act.Order] = true
		switch elbtypes.ActionTypeEnum(act.Type) {
		case elbtypes.ActionTypeEnumForward:
			if !targetGroups[act.TargetGroupName] {
				v.addf("%s %d: forward action references unknown target group %q", owner, n, act.TargetGroupName)
			}
		case elbtypes.ActionTypeEnumRedirect:
			if act.Redirect == nil {
				v.addf("%s %d: redirect action requires a redirect config", owner, n)
			}
		case elbtypes.ActionTypeEnumFixedResponse:
			if act.FixedResponse == nil {
				v.addf("%s %d: fixed-response action requires a fixed response config", owner, n)
			}
		}
	}
}

// ClassicLoadBalancerSpec describes a classic ELB.
type ClassicLoadBalancerSpec struct {
	Moniker      Moniker                                `json:"moniker"`
	Locations    Locations                              `json:"locations"`
	Internal     bool                                   `json:"internal"`
	IdleTimeout  *Duration                              `json:"idleTimeout,omitempty"`
	Listeners    []ClassicListener                      `json:"listeners"`
	HealthCheck  ClassicHealthCheck                     `json:"healthCheck"`
	Dependencies LoadBalancerDependencies               `json:"dependencies"`
	Overrides    map[string]ClassicLoadBalancerOverride `json:"overrides,omitempty"`
}

// ClassicLoadBalancerOverride replaces settings in one region.
type ClassicLoadBalancerOverride struct {
	Dependencies *LoadBalancerDependencies `json:"dependencies,omitempty"`
	HealthCheck  *ClassicHealthCheck       `json:"healthCheck,omitempty"`
	IdleTimeout  *Duration                 `json:"idleTimeout,omitempty"`
}

// ClassicListener maps an external port and protocol to an instance port.
type ClassicListener struct {
	InternalProtocol string `json:"internalProtocol"`
	InternalPort     int    `json:"internalPort"`
	ExternalProtocol string `json:"externalProtocol"`
	ExternalPort     int    `json:"externalPort"`
	Certificate      string `json:"certificate,omitempty"`
	CertificateARN   string `json:"certificateArn,omitempty"`
}

type ClassicHealthCheck struct {
	Target             string    `json:"target"`
	Interval           *Duration `json:"interval,omitempty"`
	HealthyThreshold   int       `json:"healthyThreshold,omitempty"`
	UnhealthyThreshold int       `json:"unhealthyThreshold,omitempty"`
	Timeout            *Duration `json:"timeout,omitempty"`
}

var classicProtocols = []string{"HTTP", "HTTPS", "TCP", "SSL"}

func (*ClassicLoadBalancerSpec) Kind() Kind { return KindClassicLoadBalancer }
func (c *ClassicLoadBalancerSpec) ID() string { return resourceID(c.Locations.Account, c.Moniker) }
func (c *ClassicLoadBalancerSpec) Name() string { return c.Moniker.String() }
func (c *ClassicLoadBalancerSpec) Account() string { return c.Locations.Account }
func (c *ClassicLoadBalancerSpec) ResourceLocations() Locations { return c.Locations.Clone() }
func (*ClassicLoadBalancerSpec) sealed() {}

func (c *ClassicLoadBalancerSpec) WithLocations(l Locations) Spec {
	out := c.Clone()
	out.Locations = l.Clone()
	return out
}

func (c *ClassicLoadBalancerSpec) DependsOn() []string {
	return dependencyNames(&c.Dependencies, c.Overrides, func(o ClassicLoadBalancerOverride) *LoadBalancerDependencies {
		return o.Dependencies
	})
}

func (c ClassicHealthCheck) Clone() ClassicHealthCheck {
	out := c
	out.Interval = clonePtr(c.Interval)
	out.Timeout = clonePtr(c.Timeout)
	return out
}

func (c *ClassicLoadBalancerSpec) Clone() *ClassicLoadBalancerSpec {
	out := &ClassicLoadBalancerSpec{
		Moniker:      c.Moniker,
		Locations:    c.Locations.Clone(),
		Internal:     c.Internal,
		IdleTimeout:  clonePtr(c.IdleTimeout),
		Listeners:    slices.Clone(c.Listeners),
		HealthCheck:  c.HealthCheck.Clone(),
		Dependencies: *c.Dependencies.clone(),
	}
	if c.Overrides != nil {
		out.Overrides = make(map[string]ClassicLoadBalancerOverride, len(c.Overrides))
		for r, o := range c.Overrides {
			oc := ClassicLoadBalancerOverride{
				Dependencies: o.Dependencies.clone(),
				IdleTimeout:  clonePtr(o.IdleTimeout),
			}
			if o.HealthCheck != nil {
				hc := o.HealthCheck.Clone()
				oc.HealthCheck = &hc
			}
			out.Overrides[r] = oc
		}
	}
	return out
}

// Validate checks the name length and listener certificates.
func (c *ClassicLoadBalancerSpec) Validate() error {
	v := &violations{}
	c.Moniker.validate(v, MaxNameLength)
	c.Locations.validate(v)
	validateOverrideRegions(v, c.Locations, c.Overrides)

	if len(c.Listeners) == 0 {
		v.add("at least one listener is required")
	}
	ports := make(map[int]bool, len(c.Listeners))
	for _, l := range c.Listeners {
		if ports[l.ExternalPort] {
			v.addf("more than one listener on port %d", l.ExternalPort)
		}
		ports[l.ExternalPort] = true
		for _, p := range []string{l.InternalProtocol, l.ExternalProtocol} {
			if !slices.Contains(classicProtocols, strings.ToUpper(p)) {
				v.addf("listener on port %d uses unknown protocol %q", l.ExternalPort, p)
			}
		}
		switch strings.ToUpper(l.ExternalProtocol) {
		case "HTTPS", "SSL":
			if l.Certificate == "" {
				v.addf("%s listener on port %d requires a certificate", strings.ToUpper(l.ExternalProtocol), l.ExternalPort)
			}
		}
	}
	if c.HealthCheck.Target == "" {
		v.add("healthCheck.target is required")
	}
	return v.err(KindClassicLoadBalancer, c.ID())
}

func dependencyNames[O any](defaults *LoadBalancerDependencies, overrides map[string]O, get func(O) *LoadBalancerDependencies) []string {
	set := make(map[string]bool)
	for _, n := range defaults.SecurityGroupNames {
		set[n] = true
	}
	for _, o := range overrides {
		if d := get(o); d != nil {
			for _, n := range d.SecurityGroupNames {
				set[n] = true
			}
		}
	}
	names := slices.Collect(maps.Keys(set))
	sort.Strings(names)
	return names
}
