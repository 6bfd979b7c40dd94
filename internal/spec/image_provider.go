package spec

import (
	"encoding/json"
	"fmt"
)

// ImageProvider tells the image resolver where a cluster's image comes from.
// Implementations: ArtifactImageProvider, VersionImageProvider.
type ImageProvider interface {
	imageProvider()
}

// ArtifactImageProvider deploys the latest artifact version approved for
// an environment of a delivery config.
type ArtifactImageProvider struct {
	DeliveryConfig string `json:"deliveryConfig"`
	Artifact       string `json:"artifact"`
	Environment    string `json:"environment"`
}

// VersionImageProvider pins a specific application version.
type VersionImageProvider struct {
	AppVersion string `json:"appVersion"`
}

func (ArtifactImageProvider) imageProvider() {}
func (VersionImageProvider) imageProvider()  {}

const (
	imageProviderArtifact = "artifact"
	imageProviderVersion  = "version"
)

func (p ArtifactImageProvider) MarshalJSON() ([]byte, error) {
	type plain ArtifactImageProvider
	return json.Marshal(struct {
		Type string `json:"type"`
		plain
	}{imageProviderArtifact, plain(p)})
}

func (p VersionImageProvider) MarshalJSON() ([]byte, error) {
	type plain VersionImageProvider
	return json.Marshal(struct {
		Type string `json:"type"`
		plain
	}{imageProviderVersion, plain(p)})
}

func decodeImageProvider(data json.RawMessage) (ImageProvider, error) {
	if len(data) == 0 || string(data) == "null" {
		return nil, nil
	}
	var tag struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &tag); err != nil {
		return nil, fmt.Errorf("imageProvider: %w", err)
	}
	switch tag.Type {
	case imageProviderArtifact:
		var p ArtifactImageProvider
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, fmt.Errorf("imageProvider: %w", err)
		}
		return p, nil
	case imageProviderVersion:
		var p VersionImageProvider
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, fmt.Errorf("imageProvider: %w", err)
		}
		return p, nil
	default:
		return nil, fmt.Errorf("imageProvider: unknown type %q", tag.Type)
	}
}

func validateImageProvider(v *violations, p ImageProvider) {
	switch p := p.(type) {
	case nil:
	case ArtifactImageProvider:
		if p.DeliveryConfig == "" || p.Artifact == "" || p.Environment == "" {
			v.add("artifact image provider requires deliveryConfig, artifact and environment")
		}
	case VersionImageProvider:
		if p.AppVersion == "" {
			v.add("version image provider requires appVersion")
		}
	}
}
