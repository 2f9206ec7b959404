package authz

import (
	"strings"

	"github.com/google/uuid"

	"github.com/Mindburn-Labs/authzcore/pkg/security"
)

// CompileError is the compiler's typed failure. Both variants are
// deterministic — identical inputs always produce the same error — and
// both map to "deny" at the call site; they exist as distinct types only so
// audit logging can tell "PDP said no" from "PDP said yes but gave us
// nothing we could use".
type CompileError struct {
	kind   compileErrorKind
	reason string
}

type compileErrorKind int

const (
	errKindDenied compileErrorKind = iota
	errKindAllConstraintsFailed
)

func (e *CompileError) Error() string {
	switch e.kind {
	case errKindDenied:
		return "access denied by PDP"
	case errKindAllConstraintsFailed:
		return "all constraints failed compilation (fail-closed): " + e.reason
	default:
		return "constraint compilation failed"
	}
}

// IsDenied reports whether the PDP itself refused the request.
func (e *CompileError) IsDenied() bool {
	return e.kind == errKindDenied
}

// IsAllConstraintsFailed reports whether the PDP granted access but every
// constraint it returned used vocabulary this caller doesn't support.
func (e *CompileError) IsAllConstraintsFailed() bool {
	return e.kind == errKindAllConstraintsFailed
}

// Reason returns the concatenated per-constraint failure reasons, for
// diagnostics only — never for policy branching.
func (e *CompileError) Reason() string {
	return e.reason
}

var errDenied = &CompileError{kind: errKindDenied}

// Compile is the pure function at the center of the authorization core: it
// turns a PDP's response into an AccessScope (or a CompileError), following
// the decision matrix in order.
//
//	decision | require_constraints | constraints | result
//	false    | *                   | *           | Denied
//	true     | false               | *           | allow_all
//	true     | true                | empty       | allow_all (unrestricted grant)
//	true     | true                | non-empty   | compile each constraint
//
// Per-constraint compilation accumulates every predicate whose property is
// in supportedProperties into a ScopeFilter (an Eq becomes a one-element
// In; repeated predicates over the same property merge their values). A
// constraint containing even one predicate on an unsupported property, or
// of an unrecognized kind, is discarded whole rather than partially
// honored — a half-understood constraint is not a safe constraint.
//
// If every constraint is discarded, Compile returns AllConstraintsFailed:
// the PDP granted access but left the caller nothing it could translate
// into a safe row filter, which must be treated as denial. This keeps the
// compiler monotonic in supportedProperties: adding a name can only widen
// the resulting scope, never narrow it, for the same response.
func Compile(response EvaluationResponse, requireConstraints bool, supportedProperties []string) (security.AccessScope, error) {
	if !response.Decision {
		return security.DenyAll(), errDenied
	}
	if !requireConstraints {
		return security.AllowAll(), nil
	}
	if len(response.Constraints) == 0 {
		return security.AllowAll(), nil
	}

	supported := make(map[string]bool, len(supportedProperties))
	for _, p := range supportedProperties {
		supported[p] = true
	}

	var survivors []security.ScopeConstraint
	var failReasons []string
	for _, constraint := range response.Constraints {
		compiled, reason, ok := compileConstraint(constraint, supported)
		if !ok {
			failReasons = append(failReasons, reason)
			continue
		}
		survivors = append(survivors, compiled)
	}

	if len(survivors) == 0 {
		return security.DenyAll(), &CompileError{
			kind:   errKindAllConstraintsFailed,
			reason: strings.Join(failReasons, "; "),
		}
	}
	return security.FromConstraints(survivors), nil
}

// compileConstraint accumulates a single constraint's predicates into one
// ScopeConstraint (values per property merged across repeated predicates),
// or reports why the whole constraint was discarded. A property whose merged
// value set is empty discards the constraint, so no filter with zero values
// is ever built.
func compileConstraint(constraint Constraint, supported map[string]bool) (security.ScopeConstraint, string, bool) {
	valuesByProperty := make(map[string][]uuid.UUID)
	var order []string

	for _, predicate := range constraint.Predicates {
		switch p := predicate.(type) {
		case EqPredicate:
			if !supported[p.Property] {
				return security.ScopeConstraint{}, "property " + p.Property + " not supported", false
			}
			if _, seen := valuesByProperty[p.Property]; !seen {
				order = append(order, p.Property)
			}
			valuesByProperty[p.Property] = append(valuesByProperty[p.Property], p.Value)
		case InPredicate:
			if !supported[p.Property] {
				return security.ScopeConstraint{}, "property " + p.Property + " not supported", false
			}
			if _, seen := valuesByProperty[p.Property]; !seen {
				order = append(order, p.Property)
			}
			valuesByProperty[p.Property] = append(valuesByProperty[p.Property], p.Values...)
		default:
			// Unrecognized predicate kind (today: unknownPredicate from the
			// wire decoder, or any future variant). Exhaustive handling is
			// enforced here: the default case is what keeps a new variant a
			// fail-closed event instead of a silent pass-through.
			return security.ScopeConstraint{}, "unrecognized predicate kind", false
		}
	}

	filters := make([]security.ScopeFilter, 0, len(order))
	for _, property := range order {
		if len(valuesByProperty[property]) == 0 {
			return security.ScopeConstraint{}, "property " + property + " has no values", false
		}
		filters = append(filters, security.NewScopeFilter(property, security.FilterOpIn, valuesByProperty[property]))
	}
	return security.NewScopeConstraint(filters), "", true
}
