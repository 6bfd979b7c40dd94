package regional

import "github.com/picklr-io/resolvr/internal/spec"

// Resource is one concrete per-region desired state.
type Resource interface {
	ResourceKind() spec.Kind
	ResourceID() string
	RegionName() string
}

// Location is where one regional resource lives.
type Location struct {
	Account           string   `json:"account"`
	Region            string   `json:"region"`
	VPC               string   `json:"vpc,omitempty"`
	Subnet            string   `json:"subnet,omitempty"`
	AvailabilityZones []string `json:"availabilityZones,omitempty"`
}

// ServerGroup is the resolved desired state of a cluster in one region.
// Values are built once and never modified; slices and maps are owned.
type ServerGroup struct {
	ID                  string              `json:"id"`
	Name                string              `json:"name"`
	Location            Location            `json:"location"`
	LaunchConfiguration LaunchConfiguration `json:"launchConfiguration"`
	Capacity            Capacity            `json:"capacity"`
	Dependencies        Dependencies        `json:"dependencies"`
	Health              Health              `json:"health"`
	Scaling             Scaling             `json:"scaling"`
	Tags                map[string]string   `json:"tags,omitempty"`
}

// LaunchConfiguration is the resolved launch configuration of a server group.
type LaunchConfiguration struct {
	ImageID            string `json:"imageId"`
	AppVersion         string `json:"appVersion,omitempty"`
	BaseImageName      string `json:"baseImageName,omitempty"`
	InstanceType       string `json:"instanceType"`
	EBSOptimized       bool   `json:"ebsOptimized"`
	IAMRole            string `json:"iamRole"`
	KeyPair            string `json:"keyPair"`
	InstanceMonitoring bool   `json:"instanceMonitoring"`
	RamdiskID          string `json:"ramdiskId,omitempty"`
	RequireIMDSv2      bool   `json:"requireIMDSv2"`
}

// Capacity is the resolved capacity. Desired is nil when scaling policies
// manage it.
type Capacity struct {
	Min     int  `json:"min"`
	Max     int  `json:"max"`
	Desired *int `json:"desired,omitempty"`
}

type Dependencies struct {
	LoadBalancerNames  []string `json:"loadBalancerNames,omitempty"`
	SecurityGroupNames []string `json:"securityGroupNames,omitempty"`
	TargetGroups       []string `json:"targetGroups,omitempty"`
}

type Health struct {
	Cooldown            spec.Duration `json:"cooldown"`
	Warmup              spec.Duration `json:"warmup"`
	HealthCheckType     string        `json:"healthCheckType"`
	EnabledMetrics      []string      `json:"enabledMetrics,omitempty"`
	TerminationPolicies []string      `json:"terminationPolicies"`
}

type Scaling struct {
	TargetTracking []spec.TargetTrackingPolicy `json:"targetTrackingPolicies,omitempty"`
	Step           []spec.StepScalingPolicy    `json:"stepScalingPolicies,omitempty"`
}

func (s ServerGroup) ResourceKind() spec.Kind { return spec.KindCluster }
func (s ServerGroup) ResourceID() string { return s.ID }
func (s ServerGroup) RegionName() string { return s.Location.Region }

// SecurityGroup is the resolved desired state of a security group in one region.
type SecurityGroup struct {
	ID           string            `json:"id"`
	Name         string            `json:"name"`
	Location     Location          `json:"location"`
	Description  string            `json:"description"`
	InboundRules spec.IngressRules `json:"inboundRules,omitempty"`
}

func (s SecurityGroup) ResourceKind() spec.Kind { return spec.KindSecurityGroup }
func (s SecurityGroup) ResourceID() string { return s.ID }
func (s SecurityGroup) RegionName() string { return s.Location.Region }

// ApplicationLoadBalancer is the resolved desired state of an ALB in one region.
type ApplicationLoadBalancer struct {
	ID                 string                     `json:"id"`
	Name               string                     `json:"name"`
	Location           Location                   `json:"location"`
	Internal           bool                       `json:"internal"`
	IdleTimeout        spec.Duration              `json:"idleTimeout"`
	Listeners          []spec.ApplicationListener `json:"listeners"`
	TargetGroups       []spec.TargetGroup         `json:"targetGroups"`
	SecurityGroupNames []string                   `json:"securityGroupNames,omitempty"`
}

func (a ApplicationLoadBalancer) ResourceKind() spec.Kind { return spec.KindApplicationLoadBalancer }
func (a ApplicationLoadBalancer) ResourceID() string { return a.ID }
func (a ApplicationLoadBalancer) RegionName() string { return a.Location.Region }

// ClassicLoadBalancer is the resolved desired state of a classic ELB in one region.
type ClassicLoadBalancer struct {
	ID                 string                  `json:"id"`
	Name               string                  `json:"name"`
	Location           Location                `json:"location"`
	Internal           bool                    `json:"internal"`
	IdleTimeout        spec.Duration           `json:"idleTimeout"`
	Listeners          []spec.ClassicListener  `json:"listeners"`
	HealthCheck        spec.ClassicHealthCheck `json:"healthCheck"`
	SecurityGroupNames []string                `json:"securityGroupNames,omitempty"`
}

func (c ClassicLoadBalancer) ResourceKind() spec.Kind { return spec.KindClassicLoadBalancer }
func (c ClassicLoadBalancer) ResourceID() string { return c.ID }
func (c ClassicLoadBalancer) RegionName() string { return c.Location.Region }
