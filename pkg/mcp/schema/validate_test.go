package schema

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestValidate_ObjectRequired(t *testing.T) {
	t.Parallel()

	s := Object{
		Properties: map[string]Schema{
			"a": Number{},
			"b": Number{},
		},
		Required: []string{"a", "b"},
	}

	require.NoError(t, Validate(s, map[string]interface{}{"a": 2.0, "b": 3.0}))

	err := Validate(s, map[string]interface{}{"a": "x", "b": 3.0})
	require.Error(t, err)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	require.Equal(t, "/a", verr.Path)
}

func TestValidate_EmptyRequiredSucceedsOnEmptyArguments(t *testing.T) {
	t.Parallel()

	s := Object{Properties: map[string]Schema{}}
	require.NoError(t, Validate(s, map[string]interface{}{}))
}

func TestValidate_AdditionalPropertiesFalse(t *testing.T) {
	t.Parallel()

	no := false
	s := Object{
		Properties:           map[string]Schema{"a": String{}},
		AdditionalProperties: &no,
	}

	require.NoError(t, Validate(s, map[string]interface{}{"a": "x"}))

	err := Validate(s, map[string]interface{}{"a": "x", "b": "y"})
	require.Error(t, err)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	require.Equal(t, "/b", verr.Path)
}

func TestValidate_AnyOfOneOf(t *testing.T) {
	t.Parallel()

	anyOf := AnyOf{Schemas: []Schema{String{}, Number{}}}
	require.NoError(t, Validate(anyOf, "hi"))
	require.NoError(t, Validate(anyOf, 1.0))
	require.Error(t, Validate(anyOf, true))

	oneOf := OneOf{Schemas: []Schema{Number{Minimum: floatPtr(0)}, Number{Maximum: floatPtr(10)}}}
	require.Error(t, Validate(oneOf, 5.0), "5 matches both branches, oneOf requires exactly one")
	require.NoError(t, Validate(oneOf, -5.0))
}

func TestValidate_ArrayUniqueItems(t *testing.T) {
	t.Parallel()

	s := Array{Items: Number{}, UniqueItems: true}
	require.NoError(t, Validate(s, []interface{}{1.0, 2.0, 3.0}))
	require.Error(t, Validate(s, []interface{}{1.0, 1.0}))
}

func TestSerializeParseRoundTrip(t *testing.T) {
	t.Parallel()

	no := false
	cases := []Schema{
		String{MinLength: intPtr(1), Pattern: "^[a-z]+$"},
		Number{Minimum: floatPtr(0), Maximum: floatPtr(10)},
		Integer{Minimum: int64Ptr(1)},
		Boolean{},
		Null{},
		Array{Items: String{}, MinItems: intPtr(1)},
		Object{
			Properties:           map[string]Schema{"name": String{}},
			Required:             []string{"name"},
			AdditionalProperties: &no,
		},
		Enum{Values: []interface{}{"a", "b"}},
		AnyOf{Schemas: []Schema{String{}, Number{}}},
		Any{},
	}

	for _, s := range cases {
		doc := Serialize(s)
		parsed, err := Parse(doc)
		require.NoError(t, err)
		require.Equal(t, Serialize(parsed), doc)
	}
}

func TestValidateManifestSchema(t *testing.T) {
	t.Parallel()

	require.NoError(t, ValidateManifestSchema(map[string]interface{}{
		"type":       "object",
		"properties": map[string]interface{}{"a": map[string]interface{}{"type": "string"}},
	}))

	err := ValidateManifestSchema(map[string]interface{}{
		"type": "object",
		// properties must be an object per the meta-schema, not a string
		"properties": "not-an-object",
	})
	require.Error(t, err)
}

func floatPtr(f float64) *float64 { return &f }
func intPtr(i int) *int           { return &i }
func int64Ptr(i int64) *int64     { return &i }
