// Package security holds the authorization core's value types: the
// AccessScope an authorization decision compiles down to, the
// SecurityContext an authenticated caller carries, and the translator that
// turns a scope into a storage query condition.
package security

import "github.com/google/uuid"

// The Property* constants are the well-known property registry shared between the
// constraint compiler and the scope→storage translator. A property name
// appearing anywhere outside this registry is still legal (resource
// descriptors may advertise their own), but these three are understood by
// every entity that embeds ownership or identity columns.
const (
	PropertyOwnerTenantID = "owner_tenant_id"
	PropertyResourceID    = "id"
	PropertyOwnerID       = "owner_id"
)

// FilterOp is a scope filter's operation. Today only In exists; a sum type
// with one member still forces every construction site through the same
// constructor, which is what keeps future operations (InSubtree, InGroup, …)
// additive rather than a breaking enum change.
type FilterOp string

const (
	// FilterOpIn means "property IN (values)", flat set membership.
	FilterOpIn FilterOp = "in"
)

// ScopeFilter is a condition on a single named resource property.
type ScopeFilter struct {
	Property string
	Op       FilterOp
	Values   []uuid.UUID
}

// NewScopeFilter builds a ScopeFilter. Callers that would otherwise build a
// filter with zero values should not call this constructor — a filter with
// no values can never be satisfied and must not be smuggled into a
// constraint as if it were a no-op.
func NewScopeFilter(property string, op FilterOp, values []uuid.UUID) ScopeFilter {
	return ScopeFilter{Property: property, Op: op, Values: values}
}

// ScopeConstraint is a conjunction (AND) of ScopeFilters: one access path. A
// row is reachable via this constraint only if it satisfies every filter.
type ScopeConstraint struct {
	Filters []ScopeFilter
}

// NewScopeConstraint builds a constraint from its filters.
func NewScopeConstraint(filters []ScopeFilter) ScopeConstraint {
	return ScopeConstraint{Filters: filters}
}

// IsEmpty reports whether this constraint carries no filters.
func (c ScopeConstraint) IsEmpty() bool {
	return len(c.Filters) == 0
}

// AccessScope describes which rows a subject may access: a disjunction (OR)
// of constraints, plus two distinguished states that bypass the constraint
// list entirely.
//
// The zero value is deny-all. That is deliberate: an AccessScope that was
// never assigned, or was dropped on the floor by a bug, denies rather than
// leaks rows.
type AccessScope struct {
	constraints   []ScopeConstraint
	unconstrained bool
}

// DenyAll returns a scope that denies every row. This is also the zero
// value, spelled out for callers who prefer to be explicit.
func DenyAll() AccessScope {
	return AccessScope{}
}

// AllowAll returns an unconstrained scope: a legitimate PDP decision with no
// row-level filtering, not a bypass.
func AllowAll() AccessScope {
	return AccessScope{unconstrained: true}
}

// FromConstraints builds a scope from an OR of constraints.
func FromConstraints(constraints []ScopeConstraint) AccessScope {
	return AccessScope{constraints: constraints}
}

// Single builds a scope with exactly one constraint.
func Single(constraint ScopeConstraint) AccessScope {
	return FromConstraints([]ScopeConstraint{constraint})
}

// ForTenants builds a scope constrained to a set of tenant IDs.
func ForTenants(ids []uuid.UUID) AccessScope {
	return Single(NewScopeConstraint([]ScopeFilter{
		NewScopeFilter(PropertyOwnerTenantID, FilterOpIn, ids),
	}))
}

// ForTenant builds a scope constrained to a single tenant ID.
func ForTenant(id uuid.UUID) AccessScope {
	return ForTenants([]uuid.UUID{id})
}

// ForResources builds a scope constrained to a set of resource IDs.
func ForResources(ids []uuid.UUID) AccessScope {
	return Single(NewScopeConstraint([]ScopeFilter{
		NewScopeFilter(PropertyResourceID, FilterOpIn, ids),
	}))
}

// ForResource builds a scope constrained to a single resource ID.
func ForResource(id uuid.UUID) AccessScope {
	return ForResources([]uuid.UUID{id})
}

// ForTenantsAndResources builds a single-constraint scope requiring both a
// tenant filter AND a resource filter. Both lists empty collapses to
// deny-all rather than producing a constraint with zero filters.
func ForTenantsAndResources(tenantIDs, resourceIDs []uuid.UUID) AccessScope {
	var filters []ScopeFilter
	if len(tenantIDs) > 0 {
		filters = append(filters, NewScopeFilter(PropertyOwnerTenantID, FilterOpIn, tenantIDs))
	}
	if len(resourceIDs) > 0 {
		filters = append(filters, NewScopeFilter(PropertyResourceID, FilterOpIn, resourceIDs))
	}
	if len(filters) == 0 {
		return DenyAll()
	}
	return Single(NewScopeConstraint(filters))
}

// Constraints returns the scope's OR-ed constraints. Empty for both
// distinguished states.
func (s AccessScope) Constraints() []ScopeConstraint {
	return s.constraints
}

// IsUnconstrained reports whether this is the allow-all state.
func (s AccessScope) IsUnconstrained() bool {
	return s.unconstrained
}

// IsDenyAll reports whether this scope denies every row: not unconstrained,
// and carrying no constraints.
func (s AccessScope) IsDenyAll() bool {
	return !s.unconstrained && len(s.constraints) == 0
}

// AllValuesFor returns the union, across every constraint, of In-filter
// values for the given property. Useful when a caller knows a scope carries
// only simple ownership constraints and wants the raw ID list.
func (s AccessScope) AllValuesFor(property string) []uuid.UUID {
	var result []uuid.UUID
	for _, c := range s.constraints {
		for _, f := range c.Filters {
			if f.Property == property && f.Op == FilterOpIn {
				result = append(result, f.Values...)
			}
		}
	}
	return result
}

// ContainsValue reports whether any constraint has a filter matching the
// given property and value.
func (s AccessScope) ContainsValue(property string, id uuid.UUID) bool {
	for _, c := range s.constraints {
		for _, f := range c.Filters {
			if f.Property != property || f.Op != FilterOpIn {
				continue
			}
			for _, v := range f.Values {
				if v == id {
					return true
				}
			}
		}
	}
	return false
}

// HasProperty reports whether any constraint references the given property,
// regardless of its values.
func (s AccessScope) HasProperty(property string) bool {
	for _, c := range s.constraints {
		for _, f := range c.Filters {
			if f.Property == property {
				return true
			}
		}
	}
	return false
}
