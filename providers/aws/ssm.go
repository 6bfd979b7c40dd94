package aws

import (
	"context"
	"errors"
	"fmt"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/aws/aws-sdk-go-v2/service/ssm/types"
)

// DefaultKeyPair reads <prefix>/<account>/default-key-pair from the
// account's first region. A missing parameter means no default.
func (p *Inventory) DefaultKeyPair(ctx context.Context, account string) (string, error) {
	a, err := p.account(account)
	if err != nil {
		return "", err
	}
	c, err := p.ensureClients(ctx, a, a.Regions[0])
	if err != nil {
		return "", err
	}

	name := path.Join(p.keyPairPrefix, account, "default-key-pair")
	out, err := c.SSM.GetParameter(ctx, &ssm.GetParameterInput{Name: aws.String(name)})
	if err != nil {
		var notFound *types.ParameterNotFound
		if errors.As(err, &notFound) {
			return "", nil
		}
		return "", fmt.Errorf("failed to read parameter %s: %w", name, err)
	}
	if out.Parameter == nil {
		return "", nil
	}
	return aws.ToString(out.Parameter.Value), nil
}
