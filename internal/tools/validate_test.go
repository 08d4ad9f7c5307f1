package tools

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func calcDef() Definition {
	return Definition{
		Name:    "calc",
		Handler: noopHandler,
		Params: []ParamSpec{
			{Name: "a", Type: TypeFloat, Required: true},
			{Name: "b", Type: TypeFloat, Required: true},
			{Name: "round", Type: TypeBool, Default: false},
		},
	}
}

func TestNormalizeArgsMap(t *testing.T) {
	got, err := normalizeArgs(calcDef(), map[string]any{"a": 1, "b": 2.5})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"a": 1.0, "b": 2.5, "round": false}, got)
}

func TestNormalizeArgsPositional(t *testing.T) {
	got, err := normalizeArgs(calcDef(), []any{3, 4})
	require.NoError(t, err)
	assert.Equal(t, 3.0, got["a"])
	assert.Equal(t, 4.0, got["b"])
}

func TestNormalizeArgsMissingRequired(t *testing.T) {
	_, err := normalizeArgs(calcDef(), map[string]any{"a": 1})

	var missing MissingArgumentError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, "b", missing.Param, "the error must name the absent parameter")
}

func TestNormalizeArgsUndeclared(t *testing.T) {
	_, err := normalizeArgs(calcDef(), map[string]any{"a": 1, "b": 2, "c": 3})

	var invalid InvalidArgumentError
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, "c", invalid.Param)
}

func TestNormalizeArgsTooManyPositional(t *testing.T) {
	_, err := normalizeArgs(calcDef(), []any{1, 2, true, 4})
	assert.Error(t, err)
}

func TestNormalizeArgsWrongContainer(t *testing.T) {
	_, err := normalizeArgs(calcDef(), "a=1")
	assert.Error(t, err)
}

func TestCoerce(t *testing.T) {
	tests := []struct {
		name    string
		value   any
		typ     ParamType
		want    any
		wantErr bool
	}{
		{"int passthrough", 3, TypeInt, 3, false},
		{"whole float to int", 3.0, TypeInt, 3, false},
		{"fractional float to int", 3.5, TypeInt, nil, true},
		{"numeric string to int", "42", TypeInt, 42, false},
		{"bad string to int", "forty", TypeInt, nil, true},
		{"int to float", 3, TypeFloat, 3.0, false},
		{"numeric string to float", "2.5", TypeFloat, 2.5, false},
		{"bad string to float", "x", TypeFloat, nil, true},
		{"string passthrough", "hi", TypeString, "hi", false},
		{"number to string rejected", 5, TypeString, nil, true},
		{"bool passthrough", true, TypeBool, true, false},
		{"string to bool", "True", TypeBool, true, false},
		{"bad string to bool", "yes", TypeBool, nil, true},
		{"list passthrough", []any{1}, TypeList, []any{1}, false},
		{"scalar to list rejected", 1, TypeList, nil, true},
		{"map passthrough", map[string]any{"k": 1}, TypeMap, map[string]any{"k": 1}, false},
		{"any passthrough", struct{}{}, TypeAny, struct{}{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := coerce(tt.value, tt.typ)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNormalizeArgsAppliesDefaults(t *testing.T) {
	def := Definition{
		Name:    "greet",
		Handler: noopHandler,
		Params: []ParamSpec{
			{Name: "name", Type: TypeString, Required: true},
			{Name: "greeting", Type: TypeString, Default: "hello"},
			{Name: "repeat", Type: TypeInt},
		},
	}

	got, err := normalizeArgs(def, map[string]any{"name": "ada"})
	require.NoError(t, err)
	assert.Equal(t, "hello", got["greeting"])
	_, present := got["repeat"]
	assert.False(t, present, "optional parameter without default stays absent")
}

func TestNormalizeArgsInvalidNamesParameter(t *testing.T) {
	_, err := normalizeArgs(calcDef(), map[string]any{"a": "not-a-number", "b": 2})

	var invalid InvalidArgumentError
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, "a", invalid.Param)
}
