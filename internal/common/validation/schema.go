package validation

import (
	"github.com/xeipuuv/gojsonschema"
)

// recommendationRequestSchema guards the one synchronous entry point of the
// engine. Urgency is validated leniently downstream (unknown values default
// to medium); the schema only rejects payloads that are structurally wrong.
const recommendationRequestSchema = `{
	"type": "object",
	"properties": {
		"service_type": {
			"type": "string",
			"minLength": 1,
			"maxLength": 200
		},
		"urgency": {
			"type": "string",
			"maxLength": 20
		},
		"exclude_vendor_id": {
			"type": "string",
			"maxLength": 64
		}
	},
	"required": ["service_type"],
	"additionalProperties": false
}`

var recommendationSchema = gojsonschema.NewStringLoader(recommendationRequestSchema)

type ValidationResult struct {
	Valid  bool              `json:"valid"`
	Errors []ValidationError `json:"errors,omitempty"`
}

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidateRecommendationRequest checks a raw request body against the
// recommendation request schema.
func ValidateRecommendationRequest(payload []byte) (*ValidationResult, error) {
	result, err := gojsonschema.Validate(recommendationSchema, gojsonschema.NewBytesLoader(payload))
	if err != nil {
		return nil, err
	}

	out := &ValidationResult{Valid: result.Valid()}
	for _, e := range result.Errors() {
		out.Errors = append(out.Errors, ValidationError{
			Field:   e.Field(),
			Message: e.Description(),
		})
	}
	return out, nil
}
