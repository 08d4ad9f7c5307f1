package tools

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noopHandler(_ context.Context, _ map[string]any) (any, error) {
	return nil, nil
}

func defWith(name string, tags []string, desc string) Definition {
	return Definition{
		Name:        name,
		Description: desc,
		Tags:        tags,
		Handler:     noopHandler,
	}
}

func TestRegistryRegisterAndGet(t *testing.T) {
	r := NewRegistry(nil)

	require.NoError(t, r.Register(defWith("add", []string{"math"}, "Add two numbers.")))

	def, err := r.Get("add")
	require.NoError(t, err)
	assert.Equal(t, "add", def.Name)
	assert.True(t, r.Has("add"))

	_, err = r.Get("missing")
	var notFound NotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, "missing", notFound.Name)
}

func TestRegistryReplaceOnReregister(t *testing.T) {
	r := NewRegistry(nil)

	require.NoError(t, r.Register(defWith("add", nil, "first")))
	require.NoError(t, r.Register(defWith("add", nil, "second")))

	def, err := r.Get("add")
	require.NoError(t, err)
	assert.Equal(t, "second", def.Description)
	assert.Len(t, r.List(), 1)
}

func TestRegistryRejectsInvalidDefinitions(t *testing.T) {
	r := NewRegistry(nil)

	tests := []struct {
		name string
		def  Definition
	}{
		{"empty name", Definition{Handler: noopHandler}},
		{"nil handler", Definition{Name: "x"}},
		{"unnamed param", Definition{Name: "x", Handler: noopHandler, Params: []ParamSpec{{Type: TypeInt}}}},
		{"bad type", Definition{Name: "x", Handler: noopHandler, Params: []ParamSpec{{Name: "p", Type: ParamType(99)}}}},
		{"duplicate param", Definition{Name: "x", Handler: noopHandler, Params: []ParamSpec{
			{Name: "p", Type: TypeInt}, {Name: "p", Type: TypeInt},
		}}},
		{"required with default", Definition{Name: "x", Handler: noopHandler, Params: []ParamSpec{
			{Name: "p", Type: TypeInt, Required: true, Default: 1},
		}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, r.Register(tt.def))
		})
	}
}

func TestRegistryUnregister(t *testing.T) {
	r := NewRegistry(nil)
	require.NoError(t, r.Register(defWith("add", nil, "")))

	r.Unregister("add")
	assert.False(t, r.Has("add"))

	// Unregistering an absent name is a no-op.
	r.Unregister("add")
}

func TestRegistryListSorted(t *testing.T) {
	r := NewRegistry(nil)
	for _, name := range []string{"zeta", "alpha", "mid"} {
		require.NoError(t, r.Register(defWith(name, nil, "")))
	}

	list := r.List()
	require.Len(t, list, 3)
	assert.Equal(t, "alpha", list[0].Name)
	assert.Equal(t, "mid", list[1].Name)
	assert.Equal(t, "zeta", list[2].Name)
}

func TestRegistrySearchRelevanceOrder(t *testing.T) {
	r := NewRegistry(nil)
	require.NoError(t, r.Register(defWith("sum", nil, "Compute a sum of numbers.")))
	require.NoError(t, r.Register(defWith("sum_list", nil, "Sum every element.")))
	require.NoError(t, r.Register(defWith("average", []string{"sum", "mean"}, "Average of values.")))
	require.NoError(t, r.Register(defWith("count", nil, "Count values, not their sum.")))
	require.NoError(t, r.Register(defWith("sleep", nil, "Wait a while.")))

	got := r.Search("sum")
	require.Len(t, got, 4)
	assert.Equal(t, "sum", got[0].Name, "exact name match first")
	assert.Equal(t, "sum_list", got[1].Name, "name substring second")
	assert.Equal(t, "average", got[2].Name, "tag match third")
	assert.Equal(t, "count", got[3].Name, "description match last")
}

func TestRegistrySearchCaseInsensitive(t *testing.T) {
	r := NewRegistry(nil)
	require.NoError(t, r.Register(defWith("JsonParse", nil, "Parse JSON text.")))

	assert.Len(t, r.Search("jsonparse"), 1)
	assert.Len(t, r.Search("JSON"), 1)
	assert.Empty(t, r.Search("yaml"))
	assert.Empty(t, r.Search("  "))
}
