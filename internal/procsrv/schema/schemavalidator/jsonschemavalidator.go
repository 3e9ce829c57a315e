package schemavalidator

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/procline/procline/internal/procsrv/schema/schemaerr"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/tidwall/gjson"
)

// CompileSchema compiles a JSON schema held inline in a template row.
func CompileSchema(schema string) (*jsonschema.Schema, error) {
	// First validate that the schema is valid JSON using gjson
	if !gjson.Valid(schema) {
		return nil, fmt.Errorf("invalid JSON schema")
	}

	compiler := jsonschema.NewCompiler()
	// Allow schemas with $id to refer to themselves
	compiler.LoadURL = func(url string) (io.ReadCloser, error) {
		if url == "inline://schema" {
			return io.NopCloser(bytes.NewReader([]byte(schema))), nil
		}
		return nil, fmt.Errorf("unsupported schema ref: %s", url)
	}
	err := compiler.AddResource("inline://schema", bytes.NewReader([]byte(schema)))
	if err != nil {
		return nil, fmt.Errorf("failed to add schema resource: %w", err)
	}
	compiledSchema, err := compiler.Compile("inline://schema")
	if err != nil {
		return nil, fmt.Errorf("failed to compile schema: %w", err)
	}

	return compiledSchema, nil
}

// ValidateAgainstSchema checks an already-decoded document against a
// compiled schema and flattens the library's error tree into field-level
// validation errors.
func ValidateAgainstSchema(compiledSchema *jsonschema.Schema, document any) schemaerr.ValidationErrors {
	var ves schemaerr.ValidationErrors
	if err := compiledSchema.Validate(document); err != nil {
		var validationErr *jsonschema.ValidationError
		if errors.As(err, &validationErr) {
			for _, cause := range flattenCauses(validationErr) {
				ves = append(ves, schemaerr.ValidationError{
					Field:  instanceField(cause.InstanceLocation),
					ErrStr: cause.Message,
				})
			}
			return ves
		}
		return append(ves, schemaerr.ErrValidationFailed(err.Error()))
	}
	return nil
}

// flattenCauses walks to the leaf causes, which carry the actionable
// messages; intermediate nodes only say "doesn't validate".
func flattenCauses(err *jsonschema.ValidationError) []*jsonschema.ValidationError {
	if len(err.Causes) == 0 {
		return []*jsonschema.ValidationError{err}
	}
	var leaves []*jsonschema.ValidationError
	for _, cause := range err.Causes {
		leaves = append(leaves, flattenCauses(cause)...)
	}
	return leaves
}

func instanceField(location string) string {
	if location == "" || location == "/" {
		return ""
	}
	field := location
	if field[0] == '/' {
		field = field[1:]
	}
	return field
}
