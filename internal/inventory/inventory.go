// Package inventory defines the read-only view of cloud infrastructure the
// resolvers consult, with in-memory and caching implementations.
package inventory

import (
	"context"
	"maps"
	"time"
)

// Network is a VPC known to the inventory.
type Network struct {
	ID      string `json:"id" yaml:"id"`
	Name    string `json:"name" yaml:"name"`
	Account string `json:"account" yaml:"account"`
	Region  string `json:"region" yaml:"region"`
}

// Subnet is a subnet known to the inventory. Purpose is the subnet purpose
// tag, e.g. "internal (vpc0)".
type Subnet struct {
	ID               string `json:"id" yaml:"id"`
	VPCID            string `json:"vpcId" yaml:"vpcId"`
	Account          string `json:"account" yaml:"account"`
	Region           string `json:"region" yaml:"region"`
	AvailabilityZone string `json:"availabilityZone" yaml:"availabilityZone"`
	Purpose          string `json:"purpose,omitempty" yaml:"purpose,omitempty"`
}

// NamedImage is a baked image for one app version. The same image name is
// copied to several regions, each with its own id.
type NamedImage struct {
	Name          string            `json:"name" yaml:"name"`
	Account       string            `json:"account" yaml:"account"`
	AppVersion    string            `json:"appVersion" yaml:"appVersion"`
	BaseImageName string            `json:"baseImageName,omitempty" yaml:"baseImageName,omitempty"`
	CreationDate  time.Time         `json:"creationDate" yaml:"creationDate"`
	ImageIDs      map[string]string `json:"imageIds" yaml:"imageIds"`
}

// Clone returns a copy whose region map is owned by the caller.
func (i NamedImage) Clone() NamedImage {
	i.ImageIDs = maps.Clone(i.ImageIDs)
	return i
}

// Certificate is a server certificate usable by load balancer listeners.
type Certificate struct {
	Name    string `json:"name" yaml:"name"`
	ARN     string `json:"arn" yaml:"arn"`
	Account string `json:"account" yaml:"account"`
}

// Snapshot is the read-only inventory contract. Implementations must be
// safe for concurrent use.
type Snapshot interface {
	// Networks lists every VPC the provider knows about.
	Networks(ctx context.Context, provider string) ([]Network, error)
	// Subnets lists every subnet the provider knows about.
	Subnets(ctx context.Context, provider string) ([]Subnet, error)
	// DefaultKeyPair returns the account's default key pair name, possibly
	// containing the {{region}} placeholder. Empty means none.
	DefaultKeyPair(ctx context.Context, account string) (string, error)
	// Image returns the newest image for appVersion that covers the most of
	// the requested regions, or nil if there is none at all.
	Image(ctx context.Context, appVersion, account string, regions []string) (*NamedImage, error)
	Certificates(ctx context.Context, account string) ([]Certificate, error)
}

// ApprovalRepository answers which artifact version may be deployed.
type ApprovalRepository interface {
	// LatestVersionApprovedIn returns the newest version approved for the
	// environment, and false if none is.
	LatestVersionApprovedIn(ctx context.Context, deliveryConfig, artifact, environment string) (string, bool, error)
}

// DefaultProvider is the cloud provider name used for inventory lookups.
const DefaultProvider = "aws"
