package authz

import (
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// responseSchemaDoc is the JSON Schema an EvaluationResponse from a remoted
// PDP plugin must satisfy before its decision is trusted. It validates
// shape, not policy: the predicate "kind" enum is intentionally open-ended
// (an unrecognized kind is schema-legal and fails at the compiler instead),
// but decision and constraints/predicates must be well-formed.
const responseSchemaDoc = `{
	"$schema": "https://json-schema.org/draft/2020-12/schema",
	"type": "object",
	"required": ["decision", "constraints"],
	"properties": {
		"decision": {"type": "boolean"},
		"deny_reason": {"type": "string"},
		"constraints": {
			"type": "array",
			"items": {
				"type": "object",
				"required": ["predicates"],
				"properties": {
					"predicates": {
						"type": "array",
						"items": {
							"type": "object",
							"required": ["kind", "property"],
							"properties": {
								"kind": {"type": "string"},
								"property": {"type": "string"},
								"value": {"type": "string"},
								"values": {"type": "array", "items": {"type": "string"}}
							}
						}
					}
				}
			}
		}
	}
}`

const responseSchemaURL = "https://authzcore.local/schema/evaluation_response.schema.json"

var compiledResponseSchema = func() *jsonschema.Schema {
	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft2020
	if err := c.AddResource(responseSchemaURL, strings.NewReader(responseSchemaDoc)); err != nil {
		panic(fmt.Sprintf("authz: evaluation response schema failed to load: %v", err))
	}
	schema, err := c.Compile(responseSchemaURL)
	if err != nil {
		panic(fmt.Sprintf("authz: evaluation response schema failed to compile: %v", err))
	}
	return schema
}()

// ValidateResponsePayload checks a raw, decoded JSON value (as produced by
// encoding/json with UseNumber or plain decode into map[string]any) against
// the evaluation response schema. A remoted PDP plugin's reply MUST pass
// this check before EvaluationResponse fields are trusted; a schema
// violation is a transport error (fail-closed), never silently coerced.
func ValidateResponsePayload(decoded any) error {
	if err := compiledResponseSchema.Validate(decoded); err != nil {
		return fmt.Errorf("authz: evaluation response failed schema validation: %w", err)
	}
	return nil
}
