package common

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// ValidateJSONAgainstSchema validates data against a JSON Schema document.
func ValidateJSONAgainstSchema(schemaDoc []byte, data []byte) error {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("schema.json", bytes.NewReader(schemaDoc)); err != nil {
		return fmt.Errorf("add schema: %w", err)
	}
	schema, err := compiler.Compile("schema.json")
	if err != nil {
		return fmt.Errorf("compile schema: %w", err)
	}
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return NewAppError(CodeValidation, "metadata is not valid JSON", fmt.Errorf("%w: %v", ErrValidation, err))
	}
	if err := schema.Validate(v); err != nil {
		return NewAppError(CodeValidation, "metadata does not match schema", fmt.Errorf("%w: %v", ErrValidation, err))
	}
	return nil
}
