// Package state persists the last resolved output of a document so later
// runs can audit it for drift.
package state

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/picklr-io/resolvr/internal/spec"
)

// CurrentVersion is the record format version written by this package.
const CurrentVersion = 1

// Record is the last resolved output of a document.
type Record struct {
	Version    int              `json:"version"`
	Serial     int64            `json:"serial"`
	Lineage    string           `json:"lineage"`
	ResolvedAt time.Time        `json:"resolvedAt"`
	Resources  []ResourceRecord `json:"resources"`
}

// ResourceRecord holds the resolved values of one spec, keyed by region.
// Values are stored in their generic JSON form.
type ResourceRecord struct {
	Address string                    `json:"address"`
	Kind    spec.Kind                 `json:"kind"`
	ID      string                    `json:"id"`
	Regions map[string]map[string]any `json:"regions"`
}

// NewRecord returns an empty record with a fresh lineage.
func NewRecord() *Record {
	return &Record{Version: CurrentVersion, Lineage: uuid.NewString()}
}

// Resource returns the record for an address, or nil.
func (r *Record) Resource(address string) *ResourceRecord {
	if r == nil {
		return nil
	}
	for i := range r.Resources {
		if r.Resources[i].Address == address {
			return &r.Resources[i]
		}
	}
	return nil
}

// Addresses returns the recorded addresses, sorted.
func (r *Record) Addresses() []string {
	if r == nil {
		return nil
	}
	out := make([]string, 0, len(r.Resources))
	for _, res := range r.Resources {
		out = append(out, res.Address)
	}
	slices.Sort(out)
	return out
}

// Normalize converts a resolved value into the generic form records store.
func Normalize(v any) (map[string]any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal value: %w", err)
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("failed to normalize value: %w", err)
	}
	return out, nil
}

// Marshal renders a record, bumping the serial and assigning a lineage if
// it has none.
func Marshal(r *Record) ([]byte, error) {
	out := *r
	if out.Version == 0 {
		out.Version = CurrentVersion
	}
	if out.Lineage == "" {
		out.Lineage = uuid.NewString()
	}
	out.Serial++
	data, err := json.MarshalIndent(&out, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal record: %w", err)
	}
	return append(data, '\n'), nil
}

// Unmarshal parses a record, decrypting it first when needed.
func Unmarshal(content []byte) (*Record, error) {
	if IsEncrypted(content) {
		decrypted, err := DecryptState(content)
		if err != nil {
			return nil, fmt.Errorf("failed to decrypt record: %w", err)
		}
		content = decrypted
	}
	if len(strings.TrimSpace(string(content))) == 0 {
		return NewRecord(), nil
	}
	var r Record
	if err := json.Unmarshal(content, &r); err != nil {
		return nil, fmt.Errorf("failed to parse record: %w", err)
	}
	if r.Version > CurrentVersion {
		return nil, fmt.Errorf("record version %d is newer than supported version %d", r.Version, CurrentVersion)
	}
	return &r, nil
}

// Manager reads and writes a record in a local file.
type Manager struct {
	path string
}

// NewManager creates a manager for the record file at path.
func NewManager(path string) *Manager {
	return &Manager{path: path}
}

// Path returns the file the manager reads and writes.
func (m *Manager) Path() string {
	return m.path
}

// Read loads the record. A missing file yields an empty record.
func (m *Manager) Read(_ context.Context) (*Record, error) {
	raw, err := os.ReadFile(m.path)
	if os.IsNotExist(err) {
		return NewRecord(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read record file %s: %w", m.path, err)
	}
	r, err := Unmarshal(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to load record from %s: %w", m.path, err)
	}
	return r, nil
}

// Write saves the record. If RESOLVR_STATE_ENCRYPTION_KEY is set, the file
// is encrypted.
func (m *Manager) Write(_ context.Context, r *Record) error {
	if err := os.MkdirAll(filepath.Dir(m.path), 0755); err != nil {
		return fmt.Errorf("failed to create record directory: %w", err)
	}
	content, err := Marshal(r)
	if err != nil {
		return err
	}
	encrypted, err := EncryptState(content)
	if err != nil {
		return fmt.Errorf("failed to encrypt record: %w", err)
	}
	if err := os.WriteFile(m.path, encrypted, 0600); err != nil {
		return fmt.Errorf("failed to write record file %s: %w", m.path, err)
	}
	return nil
}
