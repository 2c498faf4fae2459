package handler

import (
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"bank-reconciliation-backend/internal/models"
)

const mappingSchemaJSON = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["columns"],
  "additionalProperties": false,
  "properties": {
    "columns": {
      "type": "array",
      "minItems": 1,
      "items": {
        "type": "object",
        "required": ["source_column", "canonical_field"],
        "additionalProperties": false,
        "properties": {
          "source_column": {"type": "integer", "minimum": 0},
          "canonical_field": {"enum": ["date", "description", "debit", "credit", "balance", "reference", "amount"]}
        }
      }
    },
    "skip_rows": {"type": "integer", "minimum": 0},
    "delimiter": {"type": "string", "maxLength": 1},
    "date_formats": {"type": "array", "items": {"type": "string", "minLength": 1}}
  }
}`

var mappingSchema = jsonschema.MustCompileString("column_mapping.json", mappingSchemaJSON)

// parseMapping validates raw against the mapping schema and decodes it.
func parseMapping(raw string) (models.ColumnMapping, error) {
	var m models.ColumnMapping
	var doc interface{}
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return m, fmt.Errorf("mapping is not valid JSON: %w", err)
	}
	if err := mappingSchema.Validate(doc); err != nil {
		return m, fmt.Errorf("mapping does not match schema: %w", err)
	}
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		return m, fmt.Errorf("decode mapping: %w", err)
	}
	return m, nil
}
