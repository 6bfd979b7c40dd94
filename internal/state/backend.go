package state

import (
	"context"
	"fmt"
)

// Backend stores the last resolved record.
type Backend interface {
	Read(ctx context.Context) (*Record, error)
	Write(ctx context.Context, r *Record) error
	Lock(ctx context.Context) error
	Unlock(ctx context.Context) error
}

// BackendConfig selects and configures a backend.
type BackendConfig struct {
	Type   string            `json:"type" mapstructure:"type"` // "local" or "s3"
	Config map[string]string `json:"config" mapstructure:"config"`
}

// S3BackendConfig holds the settings of the S3 backend.
type S3BackendConfig struct {
	Bucket        string `json:"bucket"`
	Key           string `json:"key"`
	Region        string `json:"region"`
	DynamoDBTable string `json:"dynamodb_table"`
	Encrypt       bool   `json:"encrypt"`
	Profile       string `json:"profile"`
}

// DefaultLocalPath is where the local backend keeps its record.
const DefaultLocalPath = ".resolvr/last-resolved.json"

// NewBackend creates a backend from configuration.
func NewBackend(ctx context.Context, cfg *BackendConfig) (Backend, error) {
	if cfg == nil {
		return nil, fmt.Errorf("backend configuration is nil")
	}

	switch cfg.Type {
	case "local", "":
		path := cfg.Config["path"]
		if path == "" {
			path = DefaultLocalPath
		}
		return NewManager(path), nil
	case "s3":
		c, err := parseS3Config(cfg.Config)
		if err != nil {
			return nil, err
		}
		return newS3Backend(ctx, c)
	default:
		return nil, fmt.Errorf("unknown backend type: %s", cfg.Type)
	}
}

var _ Backend = (*Manager)(nil)
