package resolver

import (
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/picklr-io/resolvr/internal/inventory"
	"github.com/picklr-io/resolvr/internal/spec"
)

var approvedAt = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func subnet(id, region, vpcID, az, purpose string) inventory.Subnet {
	return inventory.Subnet{ID: id, VPCID: vpcID, Account: "test", Region: region, AvailabilityZone: az, Purpose: purpose}
}

func testInventory() *inventory.Memory {
	return inventory.NewMemory(inventory.Data{
		Networks: []inventory.Network{
			{ID: "vpc-e0", Name: "vpc0", Account: "test", Region: "us-east-1"},
			{ID: "vpc-w0", Name: "vpc0", Account: "test", Region: "us-west-2"},
			{ID: "vpc-e5", Name: "vpc5", Account: "test", Region: "us-east-1"},
			{ID: "vpc-p0", Name: "vpc0", Account: "prod", Region: "us-east-1"},
		},
		Subnets: []inventory.Subnet{
			subnet("subnet-e1", "us-east-1", "vpc-e0", "us-east-1c", "internal (vpc0)"),
			subnet("subnet-e2", "us-east-1", "vpc-e0", "us-east-1a", "internal (vpc0)"),
			subnet("subnet-e3", "us-east-1", "vpc-e0", "us-east-1d", "internal (vpc0)"),
			subnet("subnet-e4", "us-east-1", "vpc-e0", "us-east-1e", "external (vpc0)"),
			subnet("subnet-e5", "us-east-1", "vpc-e5", "us-east-1b", "internal (vpc5)"),
			subnet("subnet-w1", "us-west-2", "vpc-w0", "us-west-2a", "internal (vpc0)"),
			subnet("subnet-w2", "us-west-2", "vpc-w0", "us-west-2b", "internal (vpc0)"),
			subnet("subnet-w3", "us-west-2", "vpc-w0", "us-west-2c", "internal (vpc0)"),
		},
		KeyPairs: map[string]string{
			"test": "nf-keypair-test-{{region}}",
			"prod": "nf-prod-keypair",
		},
		Images: []inventory.NamedImage{{
			Name:          "fnord-1.1.0-h2.def-x86_64-201",
			Account:       "test",
			AppVersion:    "fnord-1.1.0-h2.def",
			BaseImageName: "bionic-classic",
			CreationDate:  approvedAt,
			ImageIDs:      map[string]string{"us-east-1": "ami-111", "us-west-2": "ami-222"},
		}, {
			Name:         "fnord-1.2.0-h3.abc-x86_64-202",
			Account:      "test",
			AppVersion:   "fnord-1.2.0-h3.abc",
			CreationDate: approvedAt,
			ImageIDs:     map[string]string{"us-east-1": "ami-333"},
		}},
		Certificates: []inventory.Certificate{
			{Name: "fnord-cert", ARN: "arn:aws:acm:us-east-1:123456789012:certificate/fnord", Account: "test"},
		},
		Approvals: []inventory.Approval{
			{DeliveryConfig: "fnord-manifest", Artifact: "fnord", Environment: "test", Version: "fnord-1.1.0-h2.def", ApprovedAt: approvedAt},
			{DeliveryConfig: "fnord-manifest", Artifact: "fnord", Environment: "staging", Version: "fnord-1.2.0-h3.abc", ApprovedAt: approvedAt},
		},
	})
}

func testCluster() *spec.ClusterSpec {
	return &spec.ClusterSpec{
		Moniker: spec.Moniker{App: "fnord", Stack: "test"},
		Locations: spec.Locations{
			Account: "test",
			Regions: []spec.RegionSpec{{Name: "us-east-1"}, {Name: "us-west-2"}},
		},
		ImageProvider: spec.ArtifactImageProvider{DeliveryConfig: "fnord-manifest", Artifact: "fnord", Environment: "test"},
		Defaults: spec.ServerGroupSpec{
			LaunchConfiguration: &spec.LaunchConfigurationSpec{InstanceType: aws.String("m5.large")},
		},
	}
}

func launchOverride(c *spec.ClusterSpec, region string) *spec.LaunchConfigurationSpec {
	o, ok := c.Overrides[region]
	if !ok {
		return nil
	}
	return o.LaunchConfiguration
}
