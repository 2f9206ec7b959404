// Package refpdp is the deterministic allow-all reference Policy Decision
// Point used for development and tests. It is the only concrete PDP plugin
// this core ships; every other plugin is an external collaborator.
package refpdp

import (
	"context"

	"github.com/google/uuid"

	"github.com/Mindburn-Labs/authzcore/pkg/authz"
)

// Client always grants access. When the caller requires constraints, it
// scopes the grant to a tenant: the evaluation request's tenant-context
// root id if present, falling back to the subject's own tenant id. A nil
// (zero-value) tenant id is treated as "no tenant known" and yields no
// constraints at all — which the compiler resolves as allow_all per the
// decision matrix (decision=true, constraints=[] always widens to
// unrestricted, regardless of require_constraints). A caller that needs
// anonymous requests denied rather than handed allow-all must use a
// stricter PDP than this reference one.
type Client struct{}

// New returns the allow-all reference PDP client.
func New() *Client {
	return &Client{}
}

func (Client) Evaluate(_ context.Context, req authz.EvaluationRequest) (authz.EvaluationResponse, error) {
	if !req.Context.RequireConstraints {
		return authz.EvaluationResponse{Decision: true}, nil
	}

	tenantID := resolveTenantID(req)
	if tenantID == uuid.Nil {
		return authz.EvaluationResponse{Decision: true}, nil
	}

	return authz.EvaluationResponse{
		Decision: true,
		Constraints: []authz.Constraint{
			{
				Predicates: []authz.Predicate{
					authz.InPredicate{Property: "owner_tenant_id", Values: []uuid.UUID{tenantID}},
				},
			},
		},
	}, nil
}

// resolveTenantID applies the fallback rule: the request's tenant-context
// root id, else the subject's own tenant id (carried in subject properties
// as "tenant_id" by the PEP's request builder), else the nil UUID.
func resolveTenantID(req authz.EvaluationRequest) uuid.UUID {
	if req.Context.TenantContext != nil && req.Context.TenantContext.RootID != nil {
		return *req.Context.TenantContext.RootID
	}
	if raw, ok := req.Subject.Properties["tenant_id"]; ok {
		if s, ok := raw.(string); ok {
			if id, err := uuid.Parse(s); err == nil {
				return id
			}
		}
	}
	return uuid.Nil
}
