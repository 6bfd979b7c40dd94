package aws

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/picklr-io/resolvr/internal/inventory"
)

// DynamoDBAPI is the subset of the DynamoDB client approvals use.
type DynamoDBAPI interface {
	Query(ctx context.Context, in *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
}

// Approvals reads artifact approvals from a DynamoDB table with partition
// key "pk" (deliveryConfig#artifact#environment), sort key "approvedAt"
// and a "version" attribute.
type Approvals struct {
	client DynamoDBAPI
	table  string
}

var _ inventory.ApprovalRepository = (*Approvals)(nil)

// NewApprovals reads approvals from table.
func NewApprovals(client DynamoDBAPI, table string) *Approvals {
	return &Approvals{client: client, table: table}
}

// NewApprovalsFromConfig builds the DynamoDB client from the shared AWS
// config.
func NewApprovalsFromConfig(ctx context.Context, table, region, profile string) (*Approvals, error) {
	var opts []func(*config.LoadOptions) error
	if region != "" {
		opts = append(opts, config.WithRegion(region))
	}
	if profile != "" {
		opts = append(opts, config.WithSharedConfigProfile(profile))
	}
	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("unable to load SDK config: %w", err)
	}
	return NewApprovals(dynamodb.NewFromConfig(cfg), table), nil
}

func approvalKey(deliveryConfig, artifact, environment string) string {
	return deliveryConfig + "#" + artifact + "#" + environment
}

func (a *Approvals) LatestVersionApprovedIn(ctx context.Context, deliveryConfig, artifact, environment string) (string, bool, error) {
	out, err := a.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(a.table),
		KeyConditionExpression: aws.String("pk = :pk"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk": &types.AttributeValueMemberS{Value: approvalKey(deliveryConfig, artifact, environment)},
		},
		ScanIndexForward: aws.Bool(false),
		Limit:            aws.Int32(1),
	})
	if err != nil {
		return "", false, fmt.Errorf("failed to query approvals for %s in %s: %w", artifact, environment, err)
	}
	if len(out.Items) == 0 {
		return "", false, nil
	}
	v, ok := out.Items[0]["version"].(*types.AttributeValueMemberS)
	if !ok || v.Value == "" {
		return "", false, fmt.Errorf("approval for %s in %s has no version", artifact, environment)
	}
	return v.Value, true, nil
}
