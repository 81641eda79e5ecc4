// Package configschema validates an incoming PID/Method/Sensor seed
// document against a JSON Schema before configstore accepts it, using
// github.com/xeipuuv/gojsonschema — the validation library the teacher
// vendors for its own collector config documents.
package configschema

import (
	"encoding/json"
	"fmt"

	"github.com/xeipuuv/gojsonschema"
)

// seedSchema constrains the shape koanf unmarshals a seed YAML file into:
// required id fields, positive periods, and a closed enum of method
// kinds, so a malformed seed is rejected before it reaches the store.
const seedSchema = `{
  "type": "object",
  "properties": {
    "sensors": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["unique_id", "period"],
        "properties": {
          "unique_id": {"type": "string", "minLength": 1},
          "period": {"type": "number", "exclusiveMinimum": 0}
        }
      }
    },
    "methods": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["id", "kind"],
        "properties": {
          "id": {"type": "string", "minLength": 1},
          "kind": {
            "type": "string",
            "enum": ["Date", "Daily", "DailySine", "DailyBezier", "Duration"]
          }
        }
      }
    },
    "pids": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["id", "direction", "output_mode"],
        "properties": {
          "id": {"type": "string", "minLength": 1},
          "period": {"type": "number", "exclusiveMinimum": 0},
          "direction": {"type": "string", "enum": ["raise", "lower", "both"]},
          "output_mode": {"type": "string", "enum": ["relay", "pwm"]}
        }
      }
    }
  }
}`

// ValidationError reports every schema violation found, rather than
// failing on the first.
type ValidationError struct {
	Issues []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("configschema: %d violation(s): %v", len(e.Issues), e.Issues)
}

// ValidateSeedDoc checks a raw (YAML-converted-to-JSON or native JSON)
// seed document against seedSchema. doc must already be JSON-marshalable
// data (e.g. the map produced by a koanf/yaml load), not raw YAML bytes.
func ValidateSeedDoc(doc interface{}) error {
	docJSON, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("configschema: marshal document: %w", err)
	}

	schemaLoader := gojsonschema.NewStringLoader(seedSchema)
	docLoader := gojsonschema.NewBytesLoader(docJSON)

	result, err := gojsonschema.Validate(schemaLoader, docLoader)
	if err != nil {
		return fmt.Errorf("configschema: validate: %w", err)
	}
	if result.Valid() {
		return nil
	}

	issues := make([]string, 0, len(result.Errors()))
	for _, e := range result.Errors() {
		issues = append(issues, e.String())
	}
	return &ValidationError{Issues: issues}
}
