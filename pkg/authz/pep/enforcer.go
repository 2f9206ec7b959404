// Package pep implements the Policy Enforcement Point: the per-call object
// that composes request-building, PDP invocation, and constraint
// compilation into a single access_scope operation.
package pep

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/Mindburn-Labs/authzcore/pkg/authz"
	"github.com/Mindburn-Labs/authzcore/pkg/authz/pdp"
	"github.com/Mindburn-Labs/authzcore/pkg/security"
)

// ResourceType is a static descriptor for a resource kind and the
// constraint properties a caller can compile for it. Declared once per
// resource; passed per call so one PolicyEnforcer serves every resource
// type in a service.
type ResourceType struct {
	// Name is the dotted resource type identifier (e.g. "users_info.user").
	Name string
	// SupportedProperties is the single source of truth for what this
	// caller can translate from a PDP constraint into a storage condition.
	// It is propagated into the evaluation request (so the PDP knows the
	// caller's vocabulary) and into the compiler (so unknown predicates are
	// filtered rather than silently honored).
	SupportedProperties []string
}

// AccessRequest carries per-call overrides to the default request-building
// algorithm. All fields default to "not overridden"; construct with
// NewAccessRequest and chain the With* builders.
type AccessRequest struct {
	resourceProperties map[string]any
	tenantContext      *authz.TenantContext
}

// NewAccessRequest returns an AccessRequest with every field at its default.
func NewAccessRequest() AccessRequest {
	return AccessRequest{}
}

// WithResourceProperty adds a single ABAC resource property.
func (r AccessRequest) WithResourceProperty(key string, value any) AccessRequest {
	props := make(map[string]any, len(r.resourceProperties)+1)
	for k, v := range r.resourceProperties {
		props[k] = v
	}
	props[key] = value
	r.resourceProperties = props
	return r
}

// WithResourceProperties replaces the resource property set wholesale.
func (r AccessRequest) WithResourceProperties(props map[string]any) AccessRequest {
	r.resourceProperties = props
	return r
}

func (r AccessRequest) tenantContextOrDefault() authz.TenantContext {
	if r.tenantContext != nil {
		return *r.tenantContext
	}
	return authz.DefaultTenantContext()
}

// WithContextTenantID overrides the evaluation's tenant root id (default:
// the subject's own tenant).
func (r AccessRequest) WithContextTenantID(id uuid.UUID) AccessRequest {
	tc := r.tenantContextOrDefault()
	tc.RootID = &id
	r.tenantContext = &tc
	return r
}

// WithTenantMode overrides the tenant hierarchy expansion mode.
func (r AccessRequest) WithTenantMode(mode authz.TenantMode) AccessRequest {
	tc := r.tenantContextOrDefault()
	tc.TenantMode = mode
	r.tenantContext = &tc
	return r
}

// WithBarrierMode overrides the tenant-hierarchy barrier mode.
func (r AccessRequest) WithBarrierMode(mode authz.BarrierMode) AccessRequest {
	tc := r.tenantContextOrDefault()
	tc.BarrierMode = mode
	r.tenantContext = &tc
	return r
}

// WithTenantStatus sets a tenant status filter (e.g. ["active"]).
func (r AccessRequest) WithTenantStatus(statuses []string) AccessRequest {
	tc := r.tenantContextOrDefault()
	tc.TenantStatus = statuses
	r.tenantContext = &tc
	return r
}

// WithTenantContext sets the entire tenant context override at once.
func (r AccessRequest) WithTenantContext(tc authz.TenantContext) AccessRequest {
	r.tenantContext = &tc
	return r
}

// EnforcerError is the PEP's error taxonomy: either the PDP call itself
// failed, or compilation of its response failed. Both are surfaced to the
// caller verbatim; neither is recovered silently inside the core.
type EnforcerError struct {
	evaluationFailed *pdp.Error
	compileFailed    *authz.CompileError
}

func (e *EnforcerError) Error() string {
	if e.evaluationFailed != nil {
		return fmt.Sprintf("authorization evaluation failed: %v", e.evaluationFailed)
	}
	if e.compileFailed != nil {
		return fmt.Sprintf("constraint compilation failed: %v", e.compileFailed)
	}
	return "enforcer error"
}

func (e *EnforcerError) Unwrap() error {
	if e.evaluationFailed != nil {
		return e.evaluationFailed
	}
	return e.compileFailed
}

// EvaluationFailed returns the underlying transport error, if that's why
// this call failed.
func (e *EnforcerError) EvaluationFailed() (*pdp.Error, bool) {
	return e.evaluationFailed, e.evaluationFailed != nil
}

// CompileFailed returns the underlying compile error, if that's why this
// call failed.
func (e *EnforcerError) CompileFailed() (*authz.CompileError, bool) {
	return e.compileFailed, e.compileFailed != nil
}

func evaluationFailedError(err *pdp.Error) *EnforcerError {
	return &EnforcerError{evaluationFailed: err}
}

func compileFailedError(err *authz.CompileError) *EnforcerError {
	return &EnforcerError{compileFailed: err}
}

// PolicyEnforcer composes request-building, PDP invocation and constraint
// compilation behind a single access_scope operation. It holds a PDP client
// reference, a capability list and optional telemetry handles, all set when
// the instance is built and never changed afterwards: no interior mutation,
// so concurrent access_scope calls on the same instance are safe without
// synchronization.
type PolicyEnforcer struct {
	client       pdp.Client
	capabilities []authz.Capability
	tracer       trace.Tracer
	meter        metric.Meter
	decisions    metric.Int64Counter
}

// New constructs a PolicyEnforcer around a PDP client.
func New(client pdp.Client) *PolicyEnforcer {
	return &PolicyEnforcer{client: client}
}

// WithCapabilities returns a copy of the enforcer advertising the given
// capabilities to the PDP.
func (e *PolicyEnforcer) WithCapabilities(capabilities []authz.Capability) *PolicyEnforcer {
	next := *e
	next.capabilities = capabilities
	return &next
}

// WithTelemetry returns a copy of the enforcer that records a span and a
// decision counter around every PDP call. Either argument may be nil;
// a nil tracer/meter is always safe and simply means "measure nothing".
func (e *PolicyEnforcer) WithTelemetry(tracer trace.Tracer, meter metric.Meter) *PolicyEnforcer {
	next := *e
	next.tracer = tracer
	next.meter = meter
	if meter != nil {
		counter, err := meter.Int64Counter("authzcore.pep.decisions",
			metric.WithDescription("Number of access_scope outcomes by result"),
		)
		if err == nil {
			next.decisions = counter
		}
	}
	return &next
}

// BuildRequest builds an EvaluationRequest using the subject's tenant as
// context tenant and no per-call overrides. Pure; performs no I/O.
func (e *PolicyEnforcer) BuildRequest(ctx security.SecurityContext, resource ResourceType, action string, resourceID *uuid.UUID, requireConstraints bool) authz.EvaluationRequest {
	return e.BuildRequestWith(ctx, resource, action, resourceID, requireConstraints, NewAccessRequest())
}

// BuildRequestWith builds an EvaluationRequest applying request's
// overrides. Pure; performs no I/O.
//
// Root-tenant resolution precedence: an explicit request.tenant_context
// root id wins; otherwise the subject's own tenant id; otherwise the
// evaluation carries no tenant context at all.
func (e *PolicyEnforcer) BuildRequestWith(ctx security.SecurityContext, resource ResourceType, action string, resourceID *uuid.UUID, requireConstraints bool, request AccessRequest) authz.EvaluationRequest {
	var overrideRootID *uuid.UUID
	if request.tenantContext != nil {
		overrideRootID = request.tenantContext.RootID
	}

	var resolvedRootID *uuid.UUID
	if overrideRootID != nil {
		resolvedRootID = overrideRootID
	} else if subjectTenantID, ok := ctx.SubjectTenantID(); ok {
		resolvedRootID = &subjectTenantID
	}

	var tenantContext *authz.TenantContext
	if resolvedRootID != nil {
		base := request.tenantContextOrDefault()
		base.RootID = resolvedRootID
		tenantContext = &base
	}

	subjectProperties := map[string]any{}
	if subjectTenantID, ok := ctx.SubjectTenantID(); ok {
		subjectProperties["tenant_id"] = subjectTenantID.String()
	}

	var subjectType *string
	if t, ok := ctx.SubjectType(); ok {
		subjectType = &t
	}

	var bearerToken *security.BearerToken
	if tok, ok := ctx.BearerToken(); ok {
		bearerToken = &tok
	}

	supported := append([]string(nil), resource.SupportedProperties...)

	return authz.EvaluationRequest{
		Subject: authz.Subject{
			ID:          ctx.SubjectID(),
			SubjectType: subjectType,
			Properties:  subjectProperties,
		},
		Action: authz.Action{Name: action},
		Resource: authz.Resource{
			ResourceType: resource.Name,
			ID:           resourceID,
			Properties:   request.resourceProperties,
		},
		Context: authz.Context{
			TenantContext:       tenantContext,
			TokenScopes:         ctx.TokenScopes(),
			RequireConstraints:  requireConstraints,
			Capabilities:        e.capabilities,
			SupportedProperties: supported,
			BearerToken:         bearerToken,
		},
	}
}

// AccessScope runs the full PEP flow with no per-call overrides:
// build request → await PDP → compile. require_constraints is always true
// — the common CRUD case where row-level filtering is always needed.
func (e *PolicyEnforcer) AccessScope(ctx context.Context, secCtx security.SecurityContext, resource ResourceType, action string, resourceID *uuid.UUID) (security.AccessScope, error) {
	return e.AccessScopeWith(ctx, secCtx, resource, action, resourceID, NewAccessRequest())
}

// AccessScopeWith runs the full PEP flow with per-call overrides.
// require_constraints is always true.
func (e *PolicyEnforcer) AccessScopeWith(ctx context.Context, secCtx security.SecurityContext, resource ResourceType, action string, resourceID *uuid.UUID, request AccessRequest) (security.AccessScope, error) {
	attrs := []attribute.KeyValue{
		attribute.String("resource_type", resource.Name),
		attribute.String("action", action),
	}

	if e.tracer != nil {
		var span trace.Span
		ctx, span = e.tracer.Start(ctx, "authzcore.pep.access_scope", trace.WithAttributes(attrs...))
		defer span.End()
	}

	req := e.BuildRequestWith(secCtx, resource, action, resourceID, true, request)

	resp, err := e.client.Evaluate(ctx, req)
	if err != nil {
		e.recordDecision(ctx, attrs, "evaluation_failed")
		var pdpErr *pdp.Error
		if errors.As(err, &pdpErr) {
			return security.DenyAll(), evaluationFailedError(pdpErr)
		}
		return security.DenyAll(), evaluationFailedError(pdp.NewError(pdp.CodeInternal, "non-taxonomy error from PDP client", err))
	}

	scope, compileErr := authz.Compile(resp, true, resource.SupportedProperties)
	if compileErr != nil {
		var ce *authz.CompileError
		if errors.As(compileErr, &ce) {
			e.recordDecision(ctx, attrs, outcomeForCompileError(ce))
			return security.DenyAll(), compileFailedError(ce)
		}
		e.recordDecision(ctx, attrs, "compile_failed")
		return security.DenyAll(), compileFailedError(&authz.CompileError{})
	}

	if scope.IsUnconstrained() {
		e.recordDecision(ctx, attrs, "allow_all")
	} else {
		e.recordDecision(ctx, attrs, "constrained")
	}
	return scope, nil
}

func (e *PolicyEnforcer) recordDecision(ctx context.Context, attrs []attribute.KeyValue, outcome string) {
	if e.decisions == nil {
		return
	}
	e.decisions.Add(ctx, 1, metric.WithAttributes(append(append([]attribute.KeyValue(nil), attrs...), attribute.String("outcome", outcome))...))
}

func outcomeForCompileError(ce *authz.CompileError) string {
	if ce.IsDenied() {
		return "denied"
	}
	return "all_constraints_failed"
}

// String implements a partial Debug-style rendering that deliberately does
// not print the PDP client — avoids leaking a client's internal state (and
// any credentials it holds) through log lines.
func (e *PolicyEnforcer) String() string {
	return fmt.Sprintf("PolicyEnforcer{capabilities=%v, client=<redacted>}", e.capabilities)
}
