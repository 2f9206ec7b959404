package authz

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// Wire-format predicate kinds, per §6 ("JSON with the field names used in
// §3"). A predicate with an unrecognized kind decodes successfully into an
// unknownPredicate placeholder rather than failing the whole payload — the
// compiler is what fails the owning constraint, not the decoder, so a PDP
// that has grown a predicate kind this build doesn't know about still
// produces a parseable response.
const (
	predicateKindEq = "eq"
	predicateKindIn = "in"
)

type wirePredicate struct {
	Kind     string      `json:"kind"`
	Property string      `json:"property"`
	Value    *uuid.UUID  `json:"value,omitempty"`
	Values   []uuid.UUID `json:"values,omitempty"`
}

// unknownPredicate preserves an unrecognized predicate kind through
// decode/compile without the compiler needing to special-case JSON at all;
// it simply isn't Eq or In, so the type switch in Compile's default case
// fails the constraint.
type unknownPredicate struct {
	Kind     string
	Property string
}

func (unknownPredicate) isPredicate() {}

// marshalPredicate renders a Predicate using its wire discriminator.
func marshalPredicate(p Predicate) ([]byte, error) {
	switch v := p.(type) {
	case EqPredicate:
		return json.Marshal(wirePredicate{Kind: predicateKindEq, Property: v.Property, Value: &v.Value})
	case InPredicate:
		return json.Marshal(wirePredicate{Kind: predicateKindIn, Property: v.Property, Values: v.Values})
	case unknownPredicate:
		return json.Marshal(wirePredicate{Kind: v.Kind, Property: v.Property})
	default:
		return nil, fmt.Errorf("authz: cannot marshal unrecognized predicate type %T", p)
	}
}

func unmarshalPredicate(data []byte) (Predicate, error) {
	var w wirePredicate
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("authz: predicate decode failed: %w", err)
	}
	switch w.Kind {
	case predicateKindEq:
		if w.Value == nil {
			return nil, fmt.Errorf("authz: eq predicate missing value")
		}
		return EqPredicate{Property: w.Property, Value: *w.Value}, nil
	case predicateKindIn:
		return InPredicate{Property: w.Property, Values: w.Values}, nil
	default:
		return unknownPredicate{Kind: w.Kind, Property: w.Property}, nil
	}
}

// MarshalJSON implements json.Marshaler for Constraint's predicate slice.
func (c Constraint) MarshalJSON() ([]byte, error) {
	raw := make([]json.RawMessage, len(c.Predicates))
	for i, p := range c.Predicates {
		b, err := marshalPredicate(p)
		if err != nil {
			return nil, err
		}
		raw[i] = b
	}
	return json.Marshal(struct {
		Predicates []json.RawMessage `json:"predicates"`
	}{Predicates: raw})
}

// UnmarshalJSON implements json.Unmarshaler for Constraint's predicate slice.
func (c *Constraint) UnmarshalJSON(data []byte) error {
	var wire struct {
		Predicates []json.RawMessage `json:"predicates"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return fmt.Errorf("authz: constraint decode failed: %w", err)
	}
	predicates := make([]Predicate, len(wire.Predicates))
	for i, raw := range wire.Predicates {
		p, err := unmarshalPredicate(raw)
		if err != nil {
			return err
		}
		predicates[i] = p
	}
	c.Predicates = predicates
	return nil
}

// MarshalJSON implements json.Marshaler for EvaluationResponse. Constraints
// always serializes as an array, never null, so a decision=false response
// still satisfies the response schema's required "array" type on round trip
// through the decision cache.
func (r EvaluationResponse) MarshalJSON() ([]byte, error) {
	constraints := r.Constraints
	if constraints == nil {
		constraints = []Constraint{}
	}
	return json.Marshal(struct {
		Decision    bool         `json:"decision"`
		Constraints []Constraint `json:"constraints"`
		DenyReason  *DenyReason  `json:"deny_reason,omitempty"`
	}{Decision: r.Decision, Constraints: constraints, DenyReason: r.DenyReason})
}

// UnmarshalJSON implements json.Unmarshaler for EvaluationResponse.
func (r *EvaluationResponse) UnmarshalJSON(data []byte) error {
	var wire struct {
		Decision    bool         `json:"decision"`
		Constraints []Constraint `json:"constraints"`
		DenyReason  *DenyReason  `json:"deny_reason,omitempty"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return fmt.Errorf("authz: evaluation response decode failed: %w", err)
	}
	r.Decision = wire.Decision
	r.Constraints = wire.Constraints
	r.DenyReason = wire.DenyReason
	return nil
}
