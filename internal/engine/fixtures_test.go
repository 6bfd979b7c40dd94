package engine

import (
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/picklr-io/resolvr/internal/inventory"
	"github.com/picklr-io/resolvr/internal/spec"
)

const (
	sgAddr      = "ec2/security-group@v1/test:fnord"
	clbAddr     = "ec2/classic-load-balancer@v1/test:fnord-web"
	clusterAddr = "ec2/cluster@v1/test:fnord-test"
)

func testInventory() *inventory.Memory {
	built := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	return inventory.NewMemory(inventory.Data{
		Networks: []inventory.Network{{ID: "vpc-e0", Name: "vpc0", Account: "test", Region: "us-east-1"}},
		Subnets: []inventory.Subnet{
			{ID: "subnet-1", VPCID: "vpc-e0", Account: "test", Region: "us-east-1", AvailabilityZone: "us-east-1a", Purpose: "internal (vpc0)"},
			{ID: "subnet-2", VPCID: "vpc-e0", Account: "test", Region: "us-east-1", AvailabilityZone: "us-east-1c", Purpose: "internal (vpc0)"},
		},
		KeyPairs: map[string]string{"test": "nf-keypair-test-{{region}}"},
		Images: []inventory.NamedImage{{
			Name:         "fnord-1.1.0-h2.def-x86_64-201",
			Account:      "test",
			AppVersion:   "fnord-1.1.0-h2.def",
			CreationDate: built,
			ImageIDs:     map[string]string{"us-east-1": "ami-111"},
		}},
		Approvals: []inventory.Approval{
			{DeliveryConfig: "fnord-manifest", Artifact: "fnord", Environment: "test", Version: "fnord-1.1.0-h2.def", ApprovedAt: built},
		},
	})
}

func east() spec.Locations {
	return spec.Locations{Account: "test", Regions: []spec.RegionSpec{{Name: "us-east-1"}}}
}

func testSecurityGroup() *spec.SecurityGroupSpec {
	return &spec.SecurityGroupSpec{Moniker: spec.Moniker{App: "fnord"}, Locations: east()}
}

func testClassicLoadBalancer() *spec.ClassicLoadBalancerSpec {
	return &spec.ClassicLoadBalancerSpec{
		Moniker:   spec.Moniker{App: "fnord", Stack: "web"},
		Locations: east(),
		Listeners: []spec.ClassicListener{
			{InternalProtocol: "HTTP", InternalPort: 7001, ExternalProtocol: "HTTP", ExternalPort: 80},
		},
		HealthCheck:  spec.ClassicHealthCheck{Target: "HTTP:7001/health"},
		Dependencies: spec.LoadBalancerDependencies{SecurityGroupNames: []string{"fnord"}},
	}
}

func testCluster() *spec.ClusterSpec {
	return &spec.ClusterSpec{
		Moniker:       spec.Moniker{App: "fnord", Stack: "test"},
		Locations:     east(),
		ImageProvider: spec.ArtifactImageProvider{DeliveryConfig: "fnord-manifest", Artifact: "fnord", Environment: "test"},
		Defaults: spec.ServerGroupSpec{
			LaunchConfiguration: &spec.LaunchConfigurationSpec{InstanceType: aws.String("m5.large")},
			Dependencies: &spec.Dependencies{
				LoadBalancerNames:  []string{"fnord-web"},
				SecurityGroupNames: []string{"fnord", "nf-infrastructure"},
			},
		},
	}
}

func testDocument() []spec.Spec {
	return []spec.Spec{testCluster(), testClassicLoadBalancer(), testSecurityGroup()}
}
