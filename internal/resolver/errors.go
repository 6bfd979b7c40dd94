package resolver

import (
	"fmt"
	"strings"

	"github.com/picklr-io/resolvr/internal/spec"
)

// NoImageSatisfiesConstraintsError means no artifact version is approved
// for the target environment. A human has to approve something.
type NoImageSatisfiesConstraintsError struct {
	ResourceID  string
	Artifact    string
	Environment string
}

func (e *NoImageSatisfiesConstraintsError) Error() string {
	return fmt.Sprintf("resource %s: no version of %s is approved for environment %s", e.ResourceID, e.Artifact, e.Environment)
}

// NoImageFoundForRegionsError means an approved version has no image in
// some of the desired regions. Callers may retry.
type NoImageFoundForRegionsError struct {
	ResourceID string
	AppVersion string
	Regions    []string
}

func (e *NoImageFoundForRegionsError) Error() string {
	return fmt.Sprintf("resource %s: no image found for %s in regions %s", e.ResourceID, e.AppVersion, strings.Join(e.Regions, ", "))
}

// UnsupportedResolverInvocationError is a dispatch defect: a resolver was
// handed a kind it does not declare support for.
type UnsupportedResolverInvocationError struct {
	Resolver string
	Kind     spec.Kind
}

func (e *UnsupportedResolverInvocationError) Error() string {
	return fmt.Sprintf("resolver %s does not support %s", e.Resolver, e.Kind)
}

// CertificateNotFoundError means a listener names a certificate the
// account does not have.
type CertificateNotFoundError struct {
	ResourceID  string
	Certificate string
	Account     string
}

func (e *CertificateNotFoundError) Error() string {
	return fmt.Sprintf("resource %s: certificate %q not found in account %s", e.ResourceID, e.Certificate, e.Account)
}

// LookupError wraps an inventory or approval repository failure.
type LookupError struct {
	Resolver string
	Err      error
}

func (e *LookupError) Error() string {
	return fmt.Sprintf("%s resolver: %v", e.Resolver, e.Err)
}

func (e *LookupError) Unwrap() error {
	return e.Err
}
