// Package llm - schemas.go validates structured LLM outputs before
// they enter the workflow engine. A response that fails its schema is
// rejected here rather than poisoning persisted stage data.
package llm

import (
	"fmt"

	"github.com/xeipuuv/gojsonschema"
)

// keywordsSchema constrains the keyword discovery response.
const keywordsSchema = `{
	"type": "object",
	"required": ["keywords"],
	"properties": {
		"keywords": {
			"type": "array",
			"minItems": 1,
			"items": {
				"type": "object",
				"required": ["keyword"],
				"properties": {
					"keyword": {"type": "string", "minLength": 1},
					"volume": {"type": "integer"},
					"difficulty": {"type": "string"},
					"intent": {"type": "string"}
				}
			}
		}
	}
}`

// phrasesSchema constrains the phrase generation response.
const phrasesSchema = `{
	"type": "object",
	"required": ["phrases"],
	"properties": {
		"phrases": {
			"type": "array",
			"minItems": 1,
			"items": {"type": "string", "minLength": 1}
		}
	}
}`

// validateAgainst checks a JSON document against a schema literal.
func validateAgainst(schema, document string) error {
	result, err := gojsonschema.Validate(
		gojsonschema.NewStringLoader(schema),
		gojsonschema.NewStringLoader(document),
	)
	if err != nil {
		return fmt.Errorf("failed to validate response: %w", err)
	}
	if !result.Valid() {
		first := result.Errors()[0]
		return fmt.Errorf("response failed schema validation: %s", first.String())
	}
	return nil
}
