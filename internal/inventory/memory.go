package inventory

import (
	"context"
	"fmt"
	"maps"
	"os"
	"slices"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

// Approval records that a version of an artifact was approved for an
// environment.
type Approval struct {
	DeliveryConfig string    `json:"deliveryConfig" yaml:"deliveryConfig"`
	Artifact       string    `json:"artifact" yaml:"artifact"`
	Environment    string    `json:"environment" yaml:"environment"`
	Version        string    `json:"version" yaml:"version"`
	ApprovedAt     time.Time `json:"approvedAt" yaml:"approvedAt"`
}

// Data is the serialized form of an inventory snapshot.
type Data struct {
	Networks     []Network         `json:"networks" yaml:"networks"`
	Subnets      []Subnet          `json:"subnets" yaml:"subnets"`
	KeyPairs     map[string]string `json:"keyPairs" yaml:"keyPairs"`
	Images       []NamedImage      `json:"images" yaml:"images"`
	Certificates []Certificate     `json:"certificates" yaml:"certificates"`
	Approvals    []Approval        `json:"approvals" yaml:"approvals"`
}

func (d Data) clone() Data {
	out := Data{
		Networks:     slices.Clone(d.Networks),
		Subnets:      slices.Clone(d.Subnets),
		KeyPairs:     maps.Clone(d.KeyPairs),
		Certificates: slices.Clone(d.Certificates),
		Approvals:    slices.Clone(d.Approvals),
	}
	for _, img := range d.Images {
		out.Images = append(out.Images, img.Clone())
	}
	return out
}

// Memory is an in-memory Snapshot and ApprovalRepository. Reads return
// copies so callers can never modify the stored data.
type Memory struct {
	mu   sync.RWMutex
	data Data
}

// NewMemory returns a snapshot holding a copy of data.
func NewMemory(data Data) *Memory {
	return &Memory{data: data.clone()}
}

// LoadFile reads a YAML or JSON snapshot file.
func LoadFile(path string) (*Memory, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read inventory file %s: %w", path, err)
	}
	var data Data
	if err := yaml.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("failed to parse inventory file %s: %w", path, err)
	}
	return NewMemory(data), nil
}

func (m *Memory) Networks(_ context.Context, _ string) ([]Network, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.data.Networks), nil
}

func (m *Memory) Subnets(_ context.Context, _ string) ([]Subnet, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.data.Subnets), nil
}

func (m *Memory) DefaultKeyPair(_ context.Context, account string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.data.KeyPairs[account], nil
}

func (m *Memory) Image(_ context.Context, appVersion, account string, regions []string) (*NamedImage, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var candidates []NamedImage
	for _, img := range m.data.Images {
		if img.AppVersion == appVersion && img.Account == account {
			candidates = append(candidates, img)
		}
	}
	best := BestImage(candidates, regions)
	if best == nil {
		return nil, nil
	}
	img := best.Clone()
	return &img, nil
}

// BestImage picks the image covering most of regions, then the newest,
// then the lowest name. It returns nil for no candidates.
func BestImage(candidates []NamedImage, regions []string) *NamedImage {
	var best *NamedImage
	bestScore := -1
	for i := range candidates {
		img := &candidates[i]
		score := 0
		for _, r := range regions {
			if _, ok := img.ImageIDs[r]; ok {
				score++
			}
		}
		switch {
		case best == nil, score > bestScore:
		case score < bestScore:
			continue
		case img.CreationDate.After(best.CreationDate):
		case img.CreationDate.Equal(best.CreationDate) && img.Name < best.Name:
		default:
			continue
		}
		best, bestScore = img, score
	}
	return best
}

func (m *Memory) Certificates(_ context.Context, account string) ([]Certificate, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Certificate
	for _, c := range m.data.Certificates {
		if c.Account == account {
			out = append(out, c)
		}
	}
	return out, nil
}

func (m *Memory) LatestVersionApprovedIn(_ context.Context, deliveryConfig, artifact, environment string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var latest *Approval
	for i := range m.data.Approvals {
		a := &m.data.Approvals[i]
		if a.DeliveryConfig != deliveryConfig || a.Artifact != artifact || a.Environment != environment {
			continue
		}
		if latest == nil || a.ApprovedAt.After(latest.ApprovedAt) ||
			(a.ApprovedAt.Equal(latest.ApprovedAt) && a.Version > latest.Version) {
			latest = a
		}
	}
	if latest == nil {
		return "", false, nil
	}
	return latest.Version, true, nil
}

// PutImage adds or replaces an image by name and account.
func (m *Memory) PutImage(img NamedImage) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, existing := range m.data.Images {
		if existing.Name == img.Name && existing.Account == img.Account {
			m.data.Images[i] = img.Clone()
			return
		}
	}
	m.data.Images = append(m.data.Images, img.Clone())
}

// SetDefaultKeyPair sets an account's default key pair.
func (m *Memory) SetDefaultKeyPair(account, keyPair string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.data.KeyPairs == nil {
		m.data.KeyPairs = make(map[string]string)
	}
	m.data.KeyPairs[account] = keyPair
}

// Approve records an approval.
func (m *Memory) Approve(a Approval) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data.Approvals = append(m.data.Approvals, a)
}

// Data returns a copy of everything in the snapshot.
func (m *Memory) Data() Data {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.data.clone()
}
