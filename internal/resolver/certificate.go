package resolver

import (
	"context"
	"fmt"

	"github.com/picklr-io/resolvr/internal/inventory"
	"github.com/picklr-io/resolvr/internal/spec"
)

// CertificateResolver looks up the ARN of listener certificates given by
// name. The certificate name itself is kept.
type CertificateResolver struct{}

func NewCertificateResolver() *CertificateResolver {
	return &CertificateResolver{}
}

func (r *CertificateResolver) Name() string { return "certificate" }

func (r *CertificateResolver) Supports(kind spec.Kind) bool {
	return kind == spec.KindApplicationLoadBalancer || kind == spec.KindClassicLoadBalancer
}

func (r *CertificateResolver) Resolve(ctx context.Context, s spec.Spec, inv inventory.Snapshot) (spec.Spec, error) {
	switch lb := s.(type) {
	case *spec.ApplicationLoadBalancerSpec:
		if !needsCertificates(len(lb.Listeners), func(i int) (string, string) {
			return lb.Listeners[i].Certificate, lb.Listeners[i].CertificateARN
		}) {
			return s, nil
		}
		arns, err := r.certificateARNs(ctx, inv, lb.Account())
		if err != nil {
			return nil, err
		}
		out := lb.Clone()
		for i := range out.Listeners {
			arn, err := lookupARN(arns, out.Listeners[i].Certificate, out.Listeners[i].CertificateARN, lb.ID(), lb.Account())
			if err != nil {
				return nil, err
			}
			out.Listeners[i].CertificateARN = arn
		}
		return out, nil

	case *spec.ClassicLoadBalancerSpec:
		if !needsCertificates(len(lb.Listeners), func(i int) (string, string) {
			return lb.Listeners[i].Certificate, lb.Listeners[i].CertificateARN
		}) {
			return s, nil
		}
		arns, err := r.certificateARNs(ctx, inv, lb.Account())
		if err != nil {
			return nil, err
		}
		out := lb.Clone()
		for i := range out.Listeners {
			arn, err := lookupARN(arns, out.Listeners[i].Certificate, out.Listeners[i].CertificateARN, lb.ID(), lb.Account())
			if err != nil {
				return nil, err
			}
			out.Listeners[i].CertificateARN = arn
		}
		return out, nil

	default:
		return nil, &UnsupportedResolverInvocationError{Resolver: r.Name(), Kind: s.Kind()}
	}
}

func needsCertificates(n int, cert func(int) (string, string)) bool {
	for i := 0; i < n; i++ {
		if name, arn := cert(i); name != "" && arn == "" {
			return true
		}
	}
	return false
}

func (r *CertificateResolver) certificateARNs(ctx context.Context, inv inventory.Snapshot, account string) (map[string]string, error) {
	certs, err := inv.Certificates(ctx, account)
	if err != nil {
		return nil, &LookupError{Resolver: r.Name(), Err: fmt.Errorf("failed to list certificates for %s: %w", account, err)}
	}
	arns := make(map[string]string, len(certs))
	for _, c := range certs {
		arns[c.Name] = c.ARN
	}
	return arns, nil
}

func lookupARN(arns map[string]string, name, current, resourceID, account string) (string, error) {
	switch {
	case name == "" || current != "":
		return current, nil
	case spec.IsCertificateARN(name):
		return name, nil
	}
	arn, ok := arns[name]
	if !ok {
		return "", &CertificateNotFoundError{ResourceID: resourceID, Certificate: name, Account: account}
	}
	return arn, nil
}
