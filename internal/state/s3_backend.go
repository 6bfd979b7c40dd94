package state

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	dbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
)

const (
	defaultS3Key    = "resolvr/last-resolved.json"
	defaultS3Region = "us-east-1"
)

type s3API interface {
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

type lockAPI interface {
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	DeleteItem(ctx context.Context, in *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
}

// s3Backend keeps the record in S3, optionally locked through a DynamoDB
// table keyed by LockID.
type s3Backend struct {
	cfg S3BackendConfig

	s3Client s3API
	dbClient lockAPI
	lockID   string
}

func parseS3Config(config map[string]string) (S3BackendConfig, error) {
	c := S3BackendConfig{
		Bucket:        config["bucket"],
		Key:           config["key"],
		Region:        config["region"],
		DynamoDBTable: config["dynamodb_table"],
		Encrypt:       config["encrypt"] == "true",
		Profile:       config["profile"],
	}
	if c.Bucket == "" {
		return c, fmt.Errorf("s3 backend requires 'bucket' configuration")
	}
	if c.Key == "" {
		c.Key = defaultS3Key
	}
	if c.Region == "" {
		c.Region = defaultS3Region
	}
	return c, nil
}

func newS3Backend(ctx context.Context, c S3BackendConfig) (*s3Backend, error) {
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(c.Region)}
	if c.Profile != "" {
		opts = append(opts, awsconfig.WithSharedConfigProfile(c.Profile))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize S3 backend: unable to load AWS config: %w", err)
	}

	b := &s3Backend{cfg: c, s3Client: s3.NewFromConfig(awsCfg)}
	if c.DynamoDBTable != "" {
		b.dbClient = dynamodb.NewFromConfig(awsCfg)
	}
	return b, nil
}

func (b *s3Backend) location() string {
	return fmt.Sprintf("s3://%s/%s", b.cfg.Bucket, b.cfg.Key)
}

func (b *s3Backend) Read(ctx context.Context) (*Record, error) {
	out, err := b.s3Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(b.cfg.Bucket),
		Key:    aws.String(b.cfg.Key),
	})
	if err != nil {
		if isNotFound(err) {
			return NewRecord(), nil
		}
		return nil, fmt.Errorf("failed to read record from %s: %w", b.location(), err)
	}
	defer out.Body.Close()

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(out.Body); err != nil {
		return nil, fmt.Errorf("failed to read S3 object body: %w", err)
	}
	r, err := Unmarshal(buf.Bytes())
	if err != nil {
		return nil, fmt.Errorf("failed to load record from %s: %w", b.location(), err)
	}
	return r, nil
}

func (b *s3Backend) Write(ctx context.Context, r *Record) error {
	content, err := Marshal(r)
	if err != nil {
		return err
	}
	encrypted, err := EncryptState(content)
	if err != nil {
		return fmt.Errorf("failed to encrypt record: %w", err)
	}

	in := &s3.PutObjectInput{
		Bucket:      aws.String(b.cfg.Bucket),
		Key:         aws.String(b.cfg.Key),
		Body:        bytes.NewReader(encrypted),
		ContentType: aws.String("application/json"),
	}
	if b.cfg.Encrypt {
		in.ServerSideEncryption = s3types.ServerSideEncryptionAes256
	}
	if _, err := b.s3Client.PutObject(ctx, in); err != nil {
		return fmt.Errorf("failed to write record to %s: %w", b.location(), err)
	}
	return nil
}

func (b *s3Backend) Lock(ctx context.Context) error {
	if b.dbClient == nil {
		return nil
	}

	b.lockID = fmt.Sprintf("resolvr-%d-%d", os.Getpid(), time.Now().UnixNano())
	_, err := b.dbClient.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(b.cfg.DynamoDBTable),
		Item: map[string]dbtypes.AttributeValue{
			"LockID":  &dbtypes.AttributeValueMemberS{Value: b.cfg.Key},
			"Info":    &dbtypes.AttributeValueMemberS{Value: b.lockID},
			"Created": &dbtypes.AttributeValueMemberS{Value: time.Now().UTC().Format(time.RFC3339)},
		},
		ConditionExpression: aws.String("attribute_not_exists(LockID)"),
	})
	if err != nil {
		var ccf *dbtypes.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return &LockedError{Holder: fmt.Sprintf("LockID=%q in DynamoDB table %q", b.cfg.Key, b.cfg.DynamoDBTable)}
		}
		return fmt.Errorf("failed to acquire lock: %w", err)
	}
	return nil
}

func (b *s3Backend) Unlock(ctx context.Context) error {
	if b.dbClient == nil {
		return nil
	}

	_, err := b.dbClient.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(b.cfg.DynamoDBTable),
		Key: map[string]dbtypes.AttributeValue{
			"LockID": &dbtypes.AttributeValueMemberS{Value: b.cfg.Key},
		},
		ConditionExpression: aws.String("Info = :info"),
		ExpressionAttributeValues: map[string]dbtypes.AttributeValue{
			":info": &dbtypes.AttributeValueMemberS{Value: b.lockID},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to release lock: %w", err)
	}
	b.lockID = ""
	return nil
}

func isNotFound(err error) bool {
	var nsk *s3types.NoSuchKey
	if errors.As(err, &nsk) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NotFound":
			return true
		}
	}
	return false
}

var _ Backend = (*s3Backend)(nil)
