// Package authz defines the wire contract between a Policy Enforcement
// Point and a Policy Decision Point, and the pure compiler that turns a
// PDP's response into a security.AccessScope.
package authz

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/Mindburn-Labs/authzcore/pkg/canonicalize"
	"github.com/Mindburn-Labs/authzcore/pkg/security"
)

// TenantMode selects how a tenant-scoped evaluation treats the tenant
// hierarchy: expand through descendants, or restrict to the exact tenant.
type TenantMode string

const (
	TenantModeSubtree  TenantMode = "subtree"
	TenantModeRootOnly TenantMode = "root_only"
)

// BarrierMode selects whether the PDP crosses a tenant-hierarchy boundary
// it would otherwise respect. Semantics are PDP-defined; this core treats
// the value as an opaque passthrough.
type BarrierMode string

const (
	BarrierModeRespect BarrierMode = "respect"
	BarrierModeIgnore  BarrierMode = "ignore"
)

// Capability is a PEP-advertised feature the PDP may rely on when framing
// its response (e.g. whether the caller can honor tenant-hierarchy
// expansion at all).
type Capability string

const (
	CapabilityTenantHierarchy Capability = "tenant_hierarchy"
)

// DenyReason is an optional, human-readable explanation attached to a
// denial. It exists for audit only and MUST NOT be used for policy
// branching.
type DenyReason string

// TenantContext scopes an evaluation to a tenant-hierarchy root, with
// PDP-defined expansion and barrier semantics.
type TenantContext struct {
	RootID       *uuid.UUID  `json:"root_id,omitempty"`
	TenantMode   TenantMode  `json:"tenant_mode"`
	BarrierMode  BarrierMode `json:"barrier_mode"`
	TenantStatus []string    `json:"tenant_status,omitempty"`
}

// DefaultTenantContext returns the zero-value defaults: Subtree expansion,
// barriers respected, no status filter.
func DefaultTenantContext() TenantContext {
	return TenantContext{TenantMode: TenantModeSubtree, BarrierMode: BarrierModeRespect}
}

// Subject identifies the caller making the request.
type Subject struct {
	ID          uuid.UUID      `json:"id"`
	SubjectType *string        `json:"subject_type,omitempty"`
	Properties  map[string]any `json:"properties,omitempty"`
}

// Action names the operation being authorized.
type Action struct {
	Name string `json:"name"`
}

// Resource describes the object the action targets.
type Resource struct {
	ResourceType string         `json:"resource_type"`
	ID           *uuid.UUID     `json:"id,omitempty"`
	Properties   map[string]any `json:"properties,omitempty"`
}

// Context carries everything about the evaluation environment: tenant
// scoping, caller scopes and capabilities, the compiler's vocabulary, and
// the (redaction-wrapped) bearer token.
type Context struct {
	TenantContext       *TenantContext        `json:"tenant_context,omitempty"`
	TokenScopes         []string              `json:"token_scopes,omitempty"`
	RequireConstraints  bool                  `json:"require_constraints"`
	Capabilities        []Capability          `json:"capabilities,omitempty"`
	SupportedProperties []string              `json:"supported_properties,omitempty"`
	BearerToken         *security.BearerToken `json:"-"`
	Properties          map[string]any        `json:"properties,omitempty"`
}

// EvaluationRequest is the bit-exact wire shape sent to a PDP plugin.
type EvaluationRequest struct {
	Subject  Subject  `json:"subject"`
	Action   Action   `json:"action"`
	Resource Resource `json:"resource"`
	Context  Context  `json:"context"`
}

// CanonicalRequestHash produces the RFC 8785 canonical-JSON SHA-256 hash of
// the request, for audit logging and as a decision-cache key. The bearer
// token is never part of the hash input (Context.BearerToken is excluded
// from JSON serialization by construction).
func CanonicalRequestHash(req EvaluationRequest) (string, error) {
	hash, err := canonicalize.CanonicalHash(req)
	if err != nil {
		return "", fmt.Errorf("authz: canonical request hash failed: %w", err)
	}
	return hash, nil
}

// Predicate is a closed sum type: today Eq and In. Compile forces
// exhaustive handling via a type switch with a default case that fails the
// owning constraint, so an unrecognized future variant narrows rather than
// silently widens access.
type Predicate interface {
	isPredicate()
}

// EqPredicate is equality on a single Uuid-valued property.
type EqPredicate struct {
	Property string
	Value    uuid.UUID
}

func (EqPredicate) isPredicate() {}

// InPredicate is set membership on a Uuid-valued property.
type InPredicate struct {
	Property string
	Values   []uuid.UUID
}

func (InPredicate) isPredicate() {}

// Constraint is a conjunction (AND) of predicates: one access path. A
// response's Constraints are OR-ed by the compiler.
type Constraint struct {
	Predicates []Predicate
}

// EvaluationResponse is the bit-exact wire shape returned by a PDP plugin.
type EvaluationResponse struct {
	Decision    bool
	Constraints []Constraint
	DenyReason  *DenyReason
}

// String renders an EvaluationRequest with the bearer token redacted,
// matching the "Debug never leaks the token" requirement.
func (r EvaluationRequest) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "EvaluationRequest{subject=%s action=%s resource=%s/%v require_constraints=%v bearer_token=",
		r.Subject.ID, r.Action.Name, r.Resource.ResourceType, r.Resource.ID, r.Context.RequireConstraints)
	if r.Context.BearerToken != nil {
		b.WriteString(r.Context.BearerToken.String())
	} else {
		b.WriteString("<none>")
	}
	b.WriteByte('}')
	return b.String()
}
