package security

import (
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// PropertyResolver maps an authorization property name to a storage column
// name. It returns false for a property the entity does not expose —
// exactly the case the translator must treat as fail-closed, not
// pass-through.
type PropertyResolver func(property string) (column string, ok bool)

// Placeholder selects how Condition renders bound parameters and column
// identifiers: either Postgres-style ordinal placeholders ($1, $2, …) with
// lib/pq identifier quoting, or the bare positional "?" placeholders
// modernc.org/sqlite and most other database/sql drivers expect.
type Placeholder int

const (
	// PlaceholderQuestion renders "?" for every bound argument, with bare
	// (unquoted) column identifiers, matching the sqlite dialect.
	PlaceholderQuestion Placeholder = iota
	// PlaceholderDollar renders "$1", "$2", … in argument order, quoting
	// column identifiers the way lib/pq/Postgres expects.
	PlaceholderDollar
)

// columnFilter is one resolved "column IN (values…)" test. A constraint
// compiles to an AND of columnFilters; the scope as a whole is an OR of
// constraints.
type columnFilter struct {
	column string
	values []any
}

// Condition is a storage query fragment plus its ordered bound arguments,
// ready to be spliced into a WHERE clause. SQL applies the chosen
// placeholder/identifier style lazily, so one Condition can be reused
// against either dialect.
type Condition struct {
	groups [][]columnFilter // OR of AND-groups
	always *bool            // non-nil short-circuits to TRUE/FALSE regardless of groups
}

// alwaysTrue is the condition that matches every row (allow-all).
func alwaysTrue() Condition {
	t := true
	return Condition{always: &t}
}

// alwaysFalse is the condition that matches no row (deny-all, or every
// constraint discarded).
func alwaysFalse() Condition {
	f := false
	return Condition{always: &f}
}

// Args returns the condition's bound arguments in the order its SQL
// placeholders expect them.
func (c Condition) Args() []any {
	var args []any
	for _, group := range c.groups {
		for _, f := range group {
			args = append(args, f.values...)
		}
	}
	return args
}

// IsAlwaysTrue reports whether this condition was built from an
// unconstrained scope.
func (c Condition) IsAlwaysTrue() bool {
	return c.always != nil && *c.always
}

// IsAlwaysFalse reports whether this condition was built from a deny-all
// scope, or every constraint in a constrained scope was discarded.
func (c Condition) IsAlwaysFalse() bool {
	return c.always != nil && !*c.always
}

// SQL renders the condition's WHERE-clause fragment (without the leading
// "WHERE") using the given placeholder style.
func (c Condition) SQL(style Placeholder) string {
	if c.always != nil {
		if *c.always {
			return "1=1"
		}
		return "1=0"
	}
	if len(c.groups) == 0 {
		return "1=0"
	}
	argIdx := 0
	rendered := make([]string, len(c.groups))
	for i, group := range c.groups {
		if len(group) == 0 {
			rendered[i] = "1=1"
			continue
		}
		parts := make([]string, len(group))
		for j, f := range group {
			placeholders := make([]string, len(f.values))
			for k := range f.values {
				argIdx++
				placeholders[k] = placeholderFor(style, argIdx)
			}
			parts[j] = quoteColumn(style, f.column) + " IN (" + strings.Join(placeholders, ",") + ")"
		}
		rendered[i] = strings.Join(parts, " AND ")
	}
	if len(rendered) == 1 {
		return rendered[0]
	}
	return "(" + strings.Join(rendered, ") OR (") + ")"
}

func placeholderFor(style Placeholder, n int) string {
	if style == PlaceholderDollar {
		return "$" + strconv.Itoa(n)
	}
	return "?"
}

// quoteColumn applies Postgres-style identifier quoting via lib/pq for the
// dollar dialect; sqlite and the other bare "?" drivers get the column name
// unquoted, matching how this tree's sqlite-backed stores render columns.
func quoteColumn(style Placeholder, column string) string {
	if style == PlaceholderDollar {
		return pq.QuoteIdentifier(column)
	}
	return column
}

// BuildScopeCondition translates an AccessScope into a storage Condition,
// using resolve to map property names to columns. Semantics, in order:
//
//  1. Unconstrained scope → always-true, no filtering.
//  2. Deny-all scope → always-false.
//  3. Otherwise, compile each constraint into an AND of column-IN clauses;
//     a constraint referencing an unknown property, or whose In-filter has
//     zero values, is discarded whole. Surviving constraints are OR-ed. If
//     every constraint is discarded, the result is always-false.
//
// Fail-closed by construction: an unknown property can only narrow the
// result, never widen it.
func BuildScopeCondition(scope AccessScope, resolve PropertyResolver) Condition {
	if scope.IsUnconstrained() {
		return alwaysTrue()
	}
	if scope.IsDenyAll() {
		return alwaysFalse()
	}

	var groups [][]columnFilter
	for _, constraint := range scope.Constraints() {
		group, ok := buildConstraintGroup(constraint, resolve)
		if !ok {
			continue
		}
		groups = append(groups, group)
	}
	if len(groups) == 0 {
		return alwaysFalse()
	}
	return Condition{groups: groups}
}

// buildConstraintGroup compiles one constraint's filters into a single AND
// group. It returns ok=false if any filter references an unknown property
// or carries zero values — either discards the whole constraint.
func buildConstraintGroup(constraint ScopeConstraint, resolve PropertyResolver) ([]columnFilter, bool) {
	if constraint.IsEmpty() {
		return []columnFilter{}, true
	}
	var group []columnFilter
	for _, filter := range constraint.Filters {
		column, ok := resolve(filter.Property)
		if !ok {
			return nil, false
		}
		if len(filter.Values) == 0 {
			return nil, false
		}
		switch filter.Op {
		case FilterOpIn:
			values := make([]any, len(filter.Values))
			for i, v := range filter.Values {
				values[i] = uuidArg(v)
			}
			group = append(group, columnFilter{column: column, values: values})
		default:
			return nil, false
		}
	}
	return group, true
}

// uuidArg normalizes a uuid.UUID into the string form both lib/pq and
// modernc.org/sqlite accept as a bound parameter.
func uuidArg(id uuid.UUID) any {
	return id.String()
}
