package tools

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/virelia/sandrun/internal/engine"
	"github.com/virelia/sandrun/internal/risk"
	"github.com/virelia/sandrun/internal/runtime"
)

func builtinExecutor(t *testing.T) *Executor {
	t.Helper()
	reg := NewRegistry(nil)

	eng := engine.New(risk.NewAnalyzer(risk.Config{}, nil), nil, nil)
	eng.Register(runtime.NewLuaRuntime(0, nil))

	RegisterBuiltins(reg, eng)
	return NewExecutor(reg, nil)
}

func TestBuiltinMathTools(t *testing.T) {
	e := builtinExecutor(t)
	ctx := context.Background()

	tests := []struct {
		tool string
		args any
		want any
	}{
		{"add", []any{2, 3}, 5.0},
		{"subtract", []any{10, 4}, 6.0},
		{"multiply", []any{3, 4}, 12.0},
		{"divide", []any{9, 2}, 4.5},
		{"power", []any{2, 10}, 1024.0},
		{"sqrt", []any{144}, 12.0},
	}
	for _, tt := range tests {
		t.Run(tt.tool, func(t *testing.T) {
			got, err := e.Call(ctx, tt.tool, tt.args)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestBuiltinMathErrors(t *testing.T) {
	e := builtinExecutor(t)
	ctx := context.Background()

	_, err := e.Call(ctx, "divide", []any{1, 0})
	assert.Error(t, err)

	_, err = e.Call(ctx, "sqrt", []any{-4})
	assert.Error(t, err)
}

func TestBuiltinStringTools(t *testing.T) {
	e := builtinExecutor(t)
	ctx := context.Background()

	tests := []struct {
		tool string
		text string
		want any
	}{
		{"uppercase", "abc", "ABC"},
		{"lowercase", "AbC", "abc"},
		{"trim", "  padded  ", "padded"},
		{"reverse_text", "héllo", "olléh"},
		{"count_words", "one two  three", 3},
	}
	for _, tt := range tests {
		t.Run(tt.tool, func(t *testing.T) {
			got, err := e.Call(ctx, tt.tool, []any{tt.text})
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestBuiltinJSONTools(t *testing.T) {
	e := builtinExecutor(t)
	ctx := context.Background()

	got, err := e.Call(ctx, "json_parse", []any{`{"n": 1, "ok": true}`})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"n": 1.0, "ok": true}, got)

	_, err = e.Call(ctx, "json_parse", []any{"{broken"})
	assert.Error(t, err)

	formatted, err := e.Call(ctx, "json_format", map[string]any{
		"value": map[string]any{"a": 1},
	})
	require.NoError(t, err)
	assert.Equal(t, "{\n  \"a\": 1\n}", formatted)
}

func TestBuiltinHTMLTools(t *testing.T) {
	e := builtinExecutor(t)
	ctx := context.Background()

	const page = `<html><body>
		<h1>Title</h1>
		<p class="lead">First</p>
		<p>Second</p>
		<a href="/one">one</a>
		<a href="https://example.com/two">two</a>
	</body></html>`

	got, err := e.Call(ctx, "html_extract", map[string]any{"html": page, "selector": "p"})
	require.NoError(t, err)
	assert.Equal(t, []any{"First", "Second"}, got)

	links, err := e.Call(ctx, "html_links", map[string]any{"html": page})
	require.NoError(t, err)
	assert.Equal(t, []any{"/one", "https://example.com/two"}, links)
}

func TestBuiltinRunCode(t *testing.T) {
	e := builtinExecutor(t)

	got, err := e.Call(context.Background(), "run_code", map[string]any{
		"source":   `print(2 + 2)`,
		"language": "lua",
	})
	require.NoError(t, err)

	result, ok := got.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "success", result["status"])
	assert.Equal(t, "4\n", result["output"])
	assert.Equal(t, "lua", result["language"])
}

func TestBuiltinRunCodeBlocked(t *testing.T) {
	e := builtinExecutor(t)

	got, err := e.Call(context.Background(), "run_code", map[string]any{
		"source":   `os.execute("ls")`,
		"language": "lua",
	})
	require.NoError(t, err)

	result := got.(map[string]any)
	assert.Equal(t, "blocked", result["status"])
	assert.NotEmpty(t, result["error"])
}

func TestBuiltinEvalExpression(t *testing.T) {
	e := builtinExecutor(t)

	got, err := e.Call(context.Background(), "eval_expression", map[string]any{
		"expression": "6 * 7",
	})
	require.NoError(t, err)

	result := got.(map[string]any)
	assert.Equal(t, "success", result["status"])
	assert.Equal(t, "42", result["output"])
}

func TestBuiltinCatalogListed(t *testing.T) {
	reg := NewRegistry(nil)
	RegisterBuiltins(reg, nil)

	names := make(map[string]bool)
	for _, def := range reg.List() {
		names[def.Name] = true
	}
	for _, want := range []string{"add", "sqrt", "uppercase", "json_parse", "html_extract"} {
		assert.True(t, names[want], "missing builtin %q", want)
	}
	assert.False(t, names["run_code"], "code tools need an engine")
}
