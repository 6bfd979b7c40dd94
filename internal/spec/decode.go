package spec

import (
	"encoding/json"
	"fmt"
)

// Envelope is the serialized form of a spec: a kind tag and its body.
type Envelope struct {
	Kind Kind            `json:"kind"`
	Spec json.RawMessage `json:"spec"`
}

// Decode reads an envelope, checks its kind tag, decodes the body into the
// matching spec type and validates it.
func Decode(data []byte) (Spec, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("failed to decode resource envelope: %w", err)
	}
	return env.Decode()
}

// Decode turns the envelope body into a validated spec.
func (e Envelope) Decode() (Spec, error) {
	kind, err := ParseKind(string(e.Kind))
	if err != nil {
		return nil, err
	}
	if len(e.Spec) == 0 {
		return nil, fmt.Errorf("%s resource has no spec", kind)
	}

	var s Spec
	switch kind {
	case KindCluster:
		s = &ClusterSpec{}
	case KindClassicLoadBalancer:
		s = &ClassicLoadBalancerSpec{}
	case KindApplicationLoadBalancer:
		s = &ApplicationLoadBalancerSpec{}
	case KindSecurityGroup:
		s = &SecurityGroupSpec{}
	}
	if err := json.Unmarshal(e.Spec, s); err != nil {
		return nil, fmt.Errorf("failed to decode %s spec: %w", kind, err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// Encode wraps a spec in its envelope.
func Encode(s Spec) ([]byte, error) {
	body, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s spec: %w", s.Kind(), err)
	}
	return json.Marshal(Envelope{Kind: s.Kind(), Spec: body})
}
