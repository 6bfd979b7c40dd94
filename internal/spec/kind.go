package spec

import "fmt"

// Kind identifies a resource type and its schema version.
type Kind string

const (
	KindCluster                 Kind = "ec2/cluster@v1"
	KindClassicLoadBalancer     Kind = "ec2/classic-load-balancer@v1"
	KindApplicationLoadBalancer Kind = "ec2/application-load-balancer@v1"
	KindSecurityGroup           Kind = "ec2/security-group@v1"
)

// Kinds returns every kind this package can decode, in a stable order.
func Kinds() []Kind {
	return []Kind{KindApplicationLoadBalancer, KindClassicLoadBalancer, KindCluster, KindSecurityGroup}
}

// ParseKind validates a kind tag read from a document.
func ParseKind(s string) (Kind, error) {
	for _, k := range Kinds() {
		if string(k) == s {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown resource kind %q", s)
}

// Spec is a user-authored desired-state document for one resource.
// The set of implementations is closed to this package.
type Spec interface {
	Kind() Kind
	// ID is the stable identifier "account:name".
	ID() string
	Name() string
	Account() string
	// DependsOn lists the names of other resources in the same account
	// this resource refers to.
	DependsOn() []string
	ResourceLocations() Locations
	// WithLocations returns a copy of the spec with its locations replaced.
	WithLocations(Locations) Spec
	Validate() error

	sealed()
}

func resourceID(account string, m Moniker) string {
	return fmt.Sprintf("%s:%s", account, m)
}
