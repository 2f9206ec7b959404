package security

import "github.com/google/uuid"

// BearerToken wraps an opaque bearer token so it can travel through the
// system without ever being accidentally logged. Its String/GoString forms
// emit a fixed placeholder; only ExposeSecret reaches the raw value, and
// only a transport serializer that opts in per field should call it.
type BearerToken struct {
	raw string
}

// NewBearerToken wraps a raw token value.
func NewBearerToken(raw string) BearerToken {
	return BearerToken{raw: raw}
}

// ExposeSecret returns the raw token. Named loudly on purpose.
func (b BearerToken) ExposeSecret() string {
	return b.raw
}

// String satisfies fmt.Stringer with a redacted placeholder.
func (b BearerToken) String() string {
	return "BearerToken(REDACTED)"
}

// GoString satisfies fmt.GoStringer so %#v also redacts.
func (b BearerToken) GoString() string {
	return "security.BearerToken(REDACTED)"
}

// SecurityContext is the authenticated caller identity the PEP consumes. It
// is produced by the authentication subsystem (out of scope here) and is
// immutable and safe to share across concurrent access_scope calls.
type SecurityContext struct {
	subjectID       uuid.UUID
	subjectTenantID *uuid.UUID
	subjectType     *string
	tokenScopes     []string
	bearerToken     *BearerToken
}

// SecurityContextBuilder builds a SecurityContext field by field; unset
// fields keep their zero-value defaults (no tenant, no type, no token).
type SecurityContextBuilder struct {
	ctx SecurityContext
}

// Builder starts a new SecurityContextBuilder.
func Builder() *SecurityContextBuilder {
	return &SecurityContextBuilder{}
}

// SubjectID sets the subject's stable identifier. Required.
func (b *SecurityContextBuilder) SubjectID(id uuid.UUID) *SecurityContextBuilder {
	b.ctx.subjectID = id
	return b
}

// SubjectTenantID sets the tenant the subject lives in.
func (b *SecurityContextBuilder) SubjectTenantID(id uuid.UUID) *SecurityContextBuilder {
	b.ctx.subjectTenantID = &id
	return b
}

// SubjectType sets an optional subject type label (e.g. "user", "service").
func (b *SecurityContextBuilder) SubjectType(t string) *SecurityContextBuilder {
	b.ctx.subjectType = &t
	return b
}

// TokenScopes sets the ordered sequence of opaque scope strings. Order is
// preserved verbatim; the PDP may or may not care.
func (b *SecurityContextBuilder) TokenScopes(scopes []string) *SecurityContextBuilder {
	b.ctx.tokenScopes = append([]string(nil), scopes...)
	return b
}

// BearerToken sets the opaque bearer token.
func (b *SecurityContextBuilder) BearerToken(raw string) *SecurityContextBuilder {
	tok := NewBearerToken(raw)
	b.ctx.bearerToken = &tok
	return b
}

// Build finalizes the SecurityContext.
func (b *SecurityContextBuilder) Build() SecurityContext {
	return b.ctx
}

// Anonymous returns a SecurityContext for a caller with a nil subject id and
// no known subject tenant. The PEP builds requests for it with no tenant
// context; what the compiler yields then depends on the constraints the PDP
// returns (none compiles to allow-all).
func Anonymous() SecurityContext {
	return SecurityContext{subjectID: uuid.Nil}
}

// SubjectID returns the subject's identifier.
func (c SecurityContext) SubjectID() uuid.UUID {
	return c.subjectID
}

// SubjectTenantID returns the subject's tenant, if known.
func (c SecurityContext) SubjectTenantID() (uuid.UUID, bool) {
	if c.subjectTenantID == nil {
		return uuid.Nil, false
	}
	return *c.subjectTenantID, true
}

// SubjectType returns the subject type label, if set.
func (c SecurityContext) SubjectType() (string, bool) {
	if c.subjectType == nil {
		return "", false
	}
	return *c.subjectType, true
}

// TokenScopes returns the caller-ordered scope list.
func (c SecurityContext) TokenScopes() []string {
	return c.tokenScopes
}

// BearerToken returns the wrapped bearer token, if present.
func (c SecurityContext) BearerToken() (BearerToken, bool) {
	if c.bearerToken == nil {
		return BearerToken{}, false
	}
	return *c.bearerToken, true
}
