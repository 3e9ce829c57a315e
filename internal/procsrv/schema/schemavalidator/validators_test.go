package schemavalidator

import (
	"testing"

	"github.com/go-playground/validator/v10"
	json "github.com/json-iterator/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResourceNameValidator(t *testing.T) {
	validate := validator.New()
	validate.RegisterValidation("resourceNameValidator", resourceNameValidator)

	tests := []struct {
		input   string
		isValid bool
	}{
		{"valid-name", true},
		{"validname", true},
		{"valid-name-123", true},
		{"0starts-with-digit", true},
		{"-starts-with-hyphen", false},
		{"ends-with-hyphen-", false},
		{"UpperCase", false},
		{"has_underscore", false},
		{"", false},
		{"a", true},
	}

	for _, test := range tests {
		err := validate.Var(test.input, "resourceNameValidator")
		if (err == nil) != test.isValid {
			t.Errorf("Expected %v for input '%s', but got %v", test.isValid, test.input, err == nil)
		}
	}
}

func TestWorkspaceIdValidator(t *testing.T) {
	tests := []struct {
		input   string
		isValid bool
	}{
		{"WABC123", true},
		{"W000000", true},
		{"ABC1234", false}, // missing prefix
		{"WABC12", false},  // too short
		{"WABC1234", false},
		{"Wabc123", false}, // lowercase
		{"", false},
	}

	for _, test := range tests {
		err := V().Var(test.input, "workspaceIdValidator")
		if (err == nil) != test.isValid {
			t.Errorf("Expected %v for input '%s', but got %v", test.isValid, test.input, err == nil)
		}
	}
}

func TestParamNameValidator(t *testing.T) {
	tests := []struct {
		input   string
		isValid bool
	}{
		{"table_name", true},
		{"TableName", true},
		{"_private", true},
		{"name2", true},
		{"2starts-with-digit", false},
		{"has space", false},
		{"has-hyphen", false},
		{"", false},
	}

	for _, test := range tests {
		err := V().Var(test.input, "paramNameValidator")
		if (err == nil) != test.isValid {
			t.Errorf("Expected %v for input '%s', but got %v", test.isValid, test.input, err == nil)
		}
	}
}

func TestCompileSchema(t *testing.T) {
	schema := `{
		"type": "object",
		"properties": {
			"table_name": {"type": "string"},
			"batch_size": {"type": "integer", "minimum": 1}
		},
		"required": ["table_name"]
	}`

	compiled, err := CompileSchema(schema)
	require.NoError(t, err)
	require.NotNil(t, compiled)

	_, err = CompileSchema(`not json at all`)
	assert.Error(t, err)

	_, err = CompileSchema(`{"type": "unknowntype"}`)
	assert.Error(t, err)
}

func TestValidateAgainstSchema(t *testing.T) {
	schema := `{
		"type": "object",
		"properties": {
			"table_name": {"type": "string"},
			"batch_size": {"type": "integer", "minimum": 1}
		},
		"required": ["table_name"],
		"additionalProperties": false
	}`
	compiled, err := CompileSchema(schema)
	require.NoError(t, err)

	decode := func(s string) any {
		var doc any
		require.NoError(t, json.Unmarshal([]byte(s), &doc))
		return doc
	}

	ves := ValidateAgainstSchema(compiled, decode(`{"table_name": "orders", "batch_size": 100}`))
	assert.Empty(t, ves)

	ves = ValidateAgainstSchema(compiled, decode(`{"batch_size": 100}`))
	require.NotEmpty(t, ves)
	assert.Contains(t, ves.Error(), "table_name")

	ves = ValidateAgainstSchema(compiled, decode(`{"table_name": "orders", "batch_size": 0}`))
	require.NotEmpty(t, ves)
	assert.Contains(t, ves.Error(), "batch_size")

	ves = ValidateAgainstSchema(compiled, decode(`{"table_name": "orders", "surprise": true}`))
	assert.NotEmpty(t, ves)
}
