package aws

import (
	"cmp"
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/picklr-io/resolvr/internal/inventory"
)

const (
	tagName              = "Name"
	tagImmutableMetadata = "immutable_metadata"
	tagAppVersion        = "appversion"
	tagBaseImage         = "base_ami_version"
)

func tagValue(tags []types.Tag, key string) string {
	for _, t := range tags {
		if aws.ToString(t.Key) == key {
			return aws.ToString(t.Value)
		}
	}
	return ""
}

// subnetPurpose reads the purpose from the immutable_metadata tag, e.g.
// {"purpose": "internal (vpc0)", "target": "ec2"}.
func subnetPurpose(tags []types.Tag) string {
	raw := tagValue(tags, tagImmutableMetadata)
	if raw == "" {
		return ""
	}
	var meta struct {
		Purpose string `json:"purpose"`
	}
	if err := json.Unmarshal([]byte(raw), &meta); err != nil {
		return ""
	}
	return meta.Purpose
}

// Networks lists the VPCs of every configured account and region.
func (p *Inventory) Networks(ctx context.Context, provider string) ([]inventory.Network, error) {
	if err := checkProvider(provider); err != nil {
		return nil, err
	}
	var (
		mu  sync.Mutex
		out []inventory.Network
	)
	err := p.forEachRegion(ctx, p.accounts, func(ctx context.Context, a Account, region string, c Clients) error {
		pager := ec2.NewDescribeVpcsPaginator(c.EC2, &ec2.DescribeVpcsInput{})
		for pager.HasMorePages() {
			page, err := pager.NextPage(ctx)
			if err != nil {
				return fmt.Errorf("failed to describe vpcs in %s/%s: %w", a.Name, region, err)
			}
			mu.Lock()
			for _, v := range page.Vpcs {
				out = append(out, inventory.Network{
					ID:      aws.ToString(v.VpcId),
					Name:    tagValue(v.Tags, tagName),
					Account: a.Name,
					Region:  region,
				})
			}
			mu.Unlock()
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	slices.SortFunc(out, func(x, y inventory.Network) int {
		return cmp.Or(cmp.Compare(x.Account, y.Account), cmp.Compare(x.Region, y.Region), cmp.Compare(x.ID, y.ID))
	})
	return out, nil
}

// Subnets lists the subnets of every configured account and region.
func (p *Inventory) Subnets(ctx context.Context, provider string) ([]inventory.Subnet, error) {
	if err := checkProvider(provider); err != nil {
		return nil, err
	}
	var (
		mu  sync.Mutex
		out []inventory.Subnet
	)
	err := p.forEachRegion(ctx, p.accounts, func(ctx context.Context, a Account, region string, c Clients) error {
		pager := ec2.NewDescribeSubnetsPaginator(c.EC2, &ec2.DescribeSubnetsInput{})
		for pager.HasMorePages() {
			page, err := pager.NextPage(ctx)
			if err != nil {
				return fmt.Errorf("failed to describe subnets in %s/%s: %w", a.Name, region, err)
			}
			mu.Lock()
			for _, s := range page.Subnets {
				out = append(out, inventory.Subnet{
					ID:               aws.ToString(s.SubnetId),
					VPCID:            aws.ToString(s.VpcId),
					Account:          a.Name,
					Region:           region,
					AvailabilityZone: aws.ToString(s.AvailabilityZone),
					Purpose:          subnetPurpose(s.Tags),
				})
			}
			mu.Unlock()
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	slices.SortFunc(out, func(x, y inventory.Subnet) int {
		return cmp.Or(cmp.Compare(x.Account, y.Account), cmp.Compare(x.Region, y.Region), cmp.Compare(x.ID, y.ID))
	})
	return out, nil
}

// Image finds images tagged with appVersion in each requested region.
// Copies of one image share a name across regions and are grouped into a
// single NamedImage.
func (p *Inventory) Image(ctx context.Context, appVersion, account string, regions []string) (*inventory.NamedImage, error) {
	a, err := p.account(account)
	if err != nil {
		return nil, err
	}
	a.Regions = slices.DeleteFunc(slices.Clone(regions), func(r string) bool {
		return !slices.Contains(a.Regions, r)
	})

	var (
		mu     sync.Mutex
		byName = make(map[string]*inventory.NamedImage)
	)
	err = p.forEachRegion(ctx, []Account{a}, func(ctx context.Context, a Account, region string, c Clients) error {
		images, err := describeImages(ctx, c.EC2, appVersion)
		if err != nil {
			return fmt.Errorf("failed to describe images in %s/%s: %w", a.Name, region, err)
		}
		mu.Lock()
		defer mu.Unlock()
		for _, img := range images {
			name := aws.ToString(img.Name)
			named, ok := byName[name]
			if !ok {
				named = &inventory.NamedImage{
					Name:          name,
					Account:       a.Name,
					AppVersion:    appVersion,
					BaseImageName: tagValue(img.Tags, tagBaseImage),
					ImageIDs:      make(map[string]string),
				}
				byName[name] = named
			}
			named.ImageIDs[region] = aws.ToString(img.ImageId)
			if created, err := time.Parse(time.RFC3339, aws.ToString(img.CreationDate)); err == nil && created.After(named.CreationDate) {
				named.CreationDate = created
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	candidates := make([]inventory.NamedImage, 0, len(byName))
	for _, img := range byName {
		candidates = append(candidates, *img)
	}
	best := inventory.BestImage(candidates, regions)
	if best == nil {
		return nil, nil
	}
	out := best.Clone()
	return &out, nil
}

// describeImages returns available images owned by the account whose
// appversion tag starts with appVersion, e.g. "fnord-1.2.0-h3.abc/job/12".
func describeImages(ctx context.Context, client EC2API, appVersion string) ([]types.Image, error) {
	in := &ec2.DescribeImagesInput{
		Owners: []string{"self"},
		Filters: []types.Filter{
			{Name: aws.String("tag:" + tagAppVersion), Values: []string{appVersion + "*"}},
			{Name: aws.String("state"), Values: []string{"available"}},
		},
	}
	var out []types.Image
	for {
		page, err := client.DescribeImages(ctx, in)
		if err != nil {
			return nil, err
		}
		for _, img := range page.Images {
			tagged, _, _ := strings.Cut(tagValue(img.Tags, tagAppVersion), "/")
			if tagged == appVersion {
				out = append(out, img)
			}
		}
		if aws.ToString(page.NextToken) == "" {
			return out, nil
		}
		in.NextToken = page.NextToken
	}
}
