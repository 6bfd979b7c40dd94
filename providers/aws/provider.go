// Package aws reads the inventory the resolvers need from AWS: VPCs,
// subnets and images from EC2, default key pairs from SSM, certificates
// from ACM and artifact approvals from DynamoDB.
package aws

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/acm"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/picklr-io/resolvr/internal/inventory"
	"github.com/picklr-io/resolvr/internal/logging"
	"golang.org/x/sync/errgroup"
)

const (
	defaultKeyPairPrefix = "/resolvr/accounts"
	defaultFanOut        = 8
)

// EC2API is the subset of the EC2 client the inventory uses.
type EC2API interface {
	DescribeVpcs(ctx context.Context, in *ec2.DescribeVpcsInput, optFns ...func(*ec2.Options)) (*ec2.DescribeVpcsOutput, error)
	DescribeSubnets(ctx context.Context, in *ec2.DescribeSubnetsInput, optFns ...func(*ec2.Options)) (*ec2.DescribeSubnetsOutput, error)
	DescribeImages(ctx context.Context, in *ec2.DescribeImagesInput, optFns ...func(*ec2.Options)) (*ec2.DescribeImagesOutput, error)
}

// SSMAPI is the subset of the SSM client the inventory uses.
type SSMAPI interface {
	GetParameter(ctx context.Context, in *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error)
}

// ACMAPI is the subset of the ACM client the inventory uses.
type ACMAPI interface {
	ListCertificates(ctx context.Context, in *acm.ListCertificatesInput, optFns ...func(*acm.Options)) (*acm.ListCertificatesOutput, error)
}

// Clients are the service clients for one account in one region.
type Clients struct {
	EC2 EC2API
	SSM SSMAPI
	ACM ACMAPI
}

// Account maps an account name used in documents to a credentials profile
// and the regions to inspect.
type Account struct {
	Name    string
	Profile string
	Regions []string
}

// ClientFactory builds the clients for an account and region.
type ClientFactory func(ctx context.Context, account Account, region string) (Clients, error)

// Options configures an AWS inventory.
type Options struct {
	Accounts      []Account
	KeyPairPrefix string
	// Factory defaults to clients built from the shared AWS config.
	Factory ClientFactory
	FanOut  int
}

// Inventory is an inventory.Snapshot backed by live AWS APIs.
type Inventory struct {
	accounts      []Account
	keyPairPrefix string
	factory       ClientFactory
	fanOut        int

	mu      sync.Mutex
	clients map[string]Clients
}

var _ inventory.Snapshot = (*Inventory)(nil)

// New validates opts and returns an inventory. Clients are created lazily.
func New(opts Options) (*Inventory, error) {
	if len(opts.Accounts) == 0 {
		return nil, fmt.Errorf("aws inventory needs at least one account")
	}
	for _, a := range opts.Accounts {
		if len(a.Regions) == 0 {
			return nil, fmt.Errorf("account %s has no regions", a.Name)
		}
	}
	inv := &Inventory{
		accounts:      slices.Clone(opts.Accounts),
		keyPairPrefix: opts.KeyPairPrefix,
		factory:       opts.Factory,
		fanOut:        opts.FanOut,
		clients:       make(map[string]Clients),
	}
	if inv.keyPairPrefix == "" {
		inv.keyPairPrefix = defaultKeyPairPrefix
	}
	if inv.factory == nil {
		inv.factory = DefaultClients
	}
	if inv.fanOut <= 0 {
		inv.fanOut = defaultFanOut
	}
	return inv, nil
}

// DefaultClients loads the shared AWS config for the account's profile.
func DefaultClients(ctx context.Context, account Account, region string) (Clients, error) {
	opts := []func(*config.LoadOptions) error{config.WithRegion(region)}
	if account.Profile != "" {
		opts = append(opts, config.WithSharedConfigProfile(account.Profile))
	}
	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return Clients{}, fmt.Errorf("unable to load SDK config for %s/%s: %w", account.Name, region, err)
	}
	return Clients{
		EC2: ec2.NewFromConfig(cfg),
		SSM: ssm.NewFromConfig(cfg),
		ACM: acm.NewFromConfig(cfg),
	}, nil
}

func (p *Inventory) ensureClients(ctx context.Context, account Account, region string) (Clients, error) {
	key := account.Name + "/" + region
	p.mu.Lock()
	defer p.mu.Unlock()
	if c, ok := p.clients[key]; ok {
		return c, nil
	}
	c, err := p.factory(ctx, account, region)
	if err != nil {
		return Clients{}, err
	}
	p.clients[key] = c
	return c, nil
}

func (p *Inventory) account(name string) (Account, error) {
	for _, a := range p.accounts {
		if a.Name == name {
			return a, nil
		}
	}
	return Account{}, fmt.Errorf("account %q is not configured", name)
}

// forEachRegion calls fn for every region of the given accounts, at most
// fanOut at a time. The first error cancels the rest.
func (p *Inventory) forEachRegion(ctx context.Context, accounts []Account, fn func(ctx context.Context, account Account, region string, c Clients) error) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(p.fanOut)
	for _, a := range accounts {
		for _, region := range a.Regions {
			g.Go(func() error {
				c, err := p.ensureClients(ctx, a, region)
				if err != nil {
					return err
				}
				logging.Debug("querying aws inventory", "account", a.Name, "region", region)
				return fn(ctx, a, region, c)
			})
		}
	}
	return g.Wait()
}

func checkProvider(provider string) error {
	if provider != inventory.DefaultProvider {
		return fmt.Errorf("aws inventory cannot serve cloud provider %q", provider)
	}
	return nil
}
