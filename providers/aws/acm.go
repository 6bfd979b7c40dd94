package aws

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/acm"
	"github.com/picklr-io/resolvr/internal/inventory"
)

// Certificates lists the account's ACM certificates in every configured
// region, named by domain.
func (p *Inventory) Certificates(ctx context.Context, account string) ([]inventory.Certificate, error) {
	a, err := p.account(account)
	if err != nil {
		return nil, err
	}
	var (
		mu  sync.Mutex
		out []inventory.Certificate
	)
	err = p.forEachRegion(ctx, []Account{a}, func(ctx context.Context, a Account, region string, c Clients) error {
		pager := acm.NewListCertificatesPaginator(c.ACM, &acm.ListCertificatesInput{})
		for pager.HasMorePages() {
			page, err := pager.NextPage(ctx)
			if err != nil {
				return fmt.Errorf("failed to list certificates in %s/%s: %w", a.Name, region, err)
			}
			mu.Lock()
			for _, cert := range page.CertificateSummaryList {
				out = append(out, inventory.Certificate{
					Name:    aws.ToString(cert.DomainName),
					ARN:     aws.ToString(cert.CertificateArn),
					Account: a.Name,
				})
			}
			mu.Unlock()
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	slices.SortFunc(out, func(x, y inventory.Certificate) int {
		return cmp.Or(cmp.Compare(x.Name, y.Name), cmp.Compare(x.ARN, y.ARN))
	})
	return out, nil
}
