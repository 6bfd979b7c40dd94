// Package eval loads resource documents written in Pkl, JSON or YAML and
// decodes them into validated specs.
package eval

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/apple/pkl-go/pkl"
	"github.com/picklr-io/resolvr/internal/spec"
	"gopkg.in/yaml.v3"
)

// Evaluator loads documents relative to a project directory.
type Evaluator struct {
	projectDir string
}

// NewEvaluator creates an evaluator. An empty projectDir disables Pkl project
// resolution.
func NewEvaluator(projectDir string) *Evaluator {
	return &Evaluator{projectDir: projectDir}
}

// Document is a decoded set of specs.
type Document struct {
	Source string
	Specs  []spec.Spec
}

// LoadDocument reads, renders and decodes the document at path. The format
// follows the file extension: .pkl, .json, .yaml or .yml.
func (e *Evaluator) LoadDocument(ctx context.Context, path string, properties map[string]string) (*Document, error) {
	var (
		data []byte
		err  error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pkl":
		data, err = e.renderPkl(ctx, path, properties)
	case ".json":
		data, err = os.ReadFile(path)
	case ".yaml", ".yml":
		data, err = readYAML(path)
	default:
		return nil, fmt.Errorf("unsupported document format %q", filepath.Ext(path))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", path, err)
	}

	specs, err := ParseDocument(data)
	if err != nil {
		return nil, fmt.Errorf("invalid document %s: %w", path, err)
	}
	return &Document{Source: path, Specs: specs}, nil
}

// renderPkl evaluates a Pkl module and renders its output as JSON.
func (e *Evaluator) renderPkl(ctx context.Context, path string, properties map[string]string) ([]byte, error) {
	opts := []func(*pkl.EvaluatorOptions){
		pkl.PreconfiguredOptions,
		func(o *pkl.EvaluatorOptions) {
			o.OutputFormat = "json"
			if len(properties) > 0 {
				if o.Properties == nil {
					o.Properties = make(map[string]string, len(properties))
				}
				for k, v := range properties {
					o.Properties[k] = v
				}
			}
		},
	}

	var (
		evaluator pkl.Evaluator
		err       error
	)
	if e.hasProject() {
		u, perr := url.Parse("file://" + e.projectDir + "/")
		if perr != nil {
			return nil, fmt.Errorf("failed to parse project directory URL: %w", perr)
		}
		evaluator, err = pkl.NewProjectEvaluator(ctx, u, opts...)
	} else {
		evaluator, err = pkl.NewEvaluator(ctx, opts...)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create Pkl evaluator: %w", err)
	}
	defer evaluator.Close()

	out, err := evaluator.EvaluateOutputText(ctx, pkl.FileSource(path))
	if err != nil {
		return nil, fmt.Errorf("failed to evaluate document: %w", err)
	}
	return []byte(out), nil
}

func (e *Evaluator) hasProject() bool {
	if e.projectDir == "" {
		return false
	}
	_, err := os.Stat(filepath.Join(e.projectDir, "PklProject"))
	return err == nil
}

// readYAML reads a YAML document and converts it to JSON so that every
// format decodes through the same JSON tags.
func readYAML(path string) ([]byte, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return YAMLToJSON(raw)
}

// YAMLToJSON converts a YAML document to JSON.
func YAMLToJSON(raw []byte) ([]byte, error) {
	var v any
	if err := yaml.Unmarshal(raw, &v); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	v, err := jsonCompatible(v)
	if err != nil {
		return nil, err
	}
	return json.Marshal(v)
}

func jsonCompatible(v any) (any, error) {
	switch val := v.(type) {
	case map[string]any:
		for k, item := range val {
			converted, err := jsonCompatible(item)
			if err != nil {
				return nil, err
			}
			val[k] = converted
		}
		return val, nil
	case map[any]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			converted, err := jsonCompatible(item)
			if err != nil {
				return nil, err
			}
			out[fmt.Sprintf("%v", k)] = converted
		}
		return out, nil
	case []any:
		for i, item := range val {
			converted, err := jsonCompatible(item)
			if err != nil {
				return nil, err
			}
			val[i] = converted
		}
		return val, nil
	default:
		return val, nil
	}
}

type documentObject struct {
	Resources []spec.Envelope `json:"resources"`
}

// ParseDocument decodes a JSON document: either a list of kind-tagged
// envelopes or an object with a "resources" list. Every spec is validated;
// all failures are reported together.
func ParseDocument(data []byte) ([]spec.Spec, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("document is empty")
	}

	var envelopes []spec.Envelope
	if trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &envelopes); err != nil {
			return nil, fmt.Errorf("failed to parse resource list: %w", err)
		}
	} else {
		var doc documentObject
		if err := json.Unmarshal(trimmed, &doc); err != nil {
			return nil, fmt.Errorf("failed to parse document: %w", err)
		}
		envelopes = doc.Resources
	}

	specs := make([]spec.Spec, 0, len(envelopes))
	var errs []error
	for i, env := range envelopes {
		s, err := env.Decode()
		if err != nil {
			errs = append(errs, fmt.Errorf("resources[%d]: %w", i, err))
			continue
		}
		specs = append(specs, s)
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return specs, nil
}
