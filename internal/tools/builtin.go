package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/virelia/sandrun/internal/engine"
	"github.com/virelia/sandrun/internal/runtime"
)

// RegisterBuiltins installs the builtin tool catalog. eng may be nil, in
// which case the code-execution tools are left out.
func RegisterBuiltins(reg *Registry, eng *engine.Engine) {
	for _, def := range mathTools() {
		reg.MustRegister(def)
	}
	for _, def := range stringTools() {
		reg.MustRegister(def)
	}
	for _, def := range dataTools() {
		reg.MustRegister(def)
	}
	for _, def := range htmlTools() {
		reg.MustRegister(def)
	}
	if eng != nil {
		for _, def := range codeTools(eng) {
			reg.MustRegister(def)
		}
	}
}

func mathTools() []Definition {
	binary := func(name, desc string, fn func(a, b float64) (float64, error)) Definition {
		return Definition{
			Name:        name,
			Description: desc,
			Category:    "math",
			Tags:        []string{"math", "arithmetic"},
			Params: []ParamSpec{
				{Name: "a", Type: TypeFloat, Required: true},
				{Name: "b", Type: TypeFloat, Required: true},
			},
			Handler: func(_ context.Context, args map[string]any) (any, error) {
				return fn(args["a"].(float64), args["b"].(float64))
			},
		}
	}

	return []Definition{
		binary("add", "Add two numbers.", func(a, b float64) (float64, error) {
			return a + b, nil
		}),
		binary("subtract", "Subtract b from a.", func(a, b float64) (float64, error) {
			return a - b, nil
		}),
		binary("multiply", "Multiply two numbers.", func(a, b float64) (float64, error) {
			return a * b, nil
		}),
		binary("divide", "Divide a by b.", func(a, b float64) (float64, error) {
			if b == 0 {
				return 0, fmt.Errorf("division by zero")
			}
			return a / b, nil
		}),
		binary("power", "Raise a to the power b.", func(a, b float64) (float64, error) {
			return math.Pow(a, b), nil
		}),
		{
			Name:        "sqrt",
			Description: "Square root of a non-negative number.",
			Category:    "math",
			Tags:        []string{"math", "arithmetic"},
			Params: []ParamSpec{
				{Name: "value", Type: TypeFloat, Required: true},
			},
			Handler: func(_ context.Context, args map[string]any) (any, error) {
				v := args["value"].(float64)
				if v < 0 {
					return nil, fmt.Errorf("square root of negative number %v", v)
				}
				return math.Sqrt(v), nil
			},
		},
	}
}

func stringTools() []Definition {
	unary := func(name, desc string, fn func(s string) any) Definition {
		return Definition{
			Name:        name,
			Description: desc,
			Category:    "text",
			Tags:        []string{"text", "string"},
			Params: []ParamSpec{
				{Name: "text", Type: TypeString, Required: true},
			},
			Handler: func(_ context.Context, args map[string]any) (any, error) {
				return fn(args["text"].(string)), nil
			},
		}
	}

	return []Definition{
		unary("uppercase", "Convert text to upper case.", func(s string) any {
			return strings.ToUpper(s)
		}),
		unary("lowercase", "Convert text to lower case.", func(s string) any {
			return strings.ToLower(s)
		}),
		unary("trim", "Strip leading and trailing whitespace.", func(s string) any {
			return strings.TrimSpace(s)
		}),
		unary("reverse_text", "Reverse the characters of text.", func(s string) any {
			runes := []rune(s)
			for i, j := 0, len(runes)-1; i < j; i, j = i+1, j-1 {
				runes[i], runes[j] = runes[j], runes[i]
			}
			return string(runes)
		}),
		unary("count_words", "Count whitespace-separated words.", func(s string) any {
			return len(strings.Fields(s))
		}),
	}
}

func dataTools() []Definition {
	return []Definition{
		{
			Name:        "json_parse",
			Description: "Parse a JSON document into structured data.",
			Category:    "data",
			Tags:        []string{"json", "parse"},
			Params: []ParamSpec{
				{Name: "text", Type: TypeString, Required: true},
			},
			Handler: func(_ context.Context, args map[string]any) (any, error) {
				var out any
				if err := json.Unmarshal([]byte(args["text"].(string)), &out); err != nil {
					return nil, fmt.Errorf("invalid json: %w", err)
				}
				return out, nil
			},
		},
		{
			Name:        "json_format",
			Description: "Render structured data as indented JSON.",
			Category:    "data",
			Tags:        []string{"json", "format"},
			Params: []ParamSpec{
				{Name: "value", Type: TypeAny, Required: true},
				{Name: "indent", Type: TypeInt, Default: 2},
			},
			Handler: func(_ context.Context, args map[string]any) (any, error) {
				indent := strings.Repeat(" ", args["indent"].(int))
				out, err := json.MarshalIndent(args["value"], "", indent)
				if err != nil {
					return nil, fmt.Errorf("not representable as json: %w", err)
				}
				return string(out), nil
			},
		},
		{
			Name:        "current_time",
			Description: "Current time, formatted with a Go layout string.",
			Category:    "data",
			Tags:        []string{"time", "clock"},
			Params: []ParamSpec{
				{Name: "layout", Type: TypeString, Default: time.RFC3339},
			},
			Handler: func(_ context.Context, args map[string]any) (any, error) {
				return time.Now().Format(args["layout"].(string)), nil
			},
		},
	}
}

func htmlTools() []Definition {
	parse := func(markup string) (*goquery.Document, error) {
		doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
		if err != nil {
			return nil, fmt.Errorf("parse html: %w", err)
		}
		return doc, nil
	}

	return []Definition{
		{
			Name:        "html_extract",
			Description: "Extract the text content of elements matching a CSS selector.",
			Category:    "html",
			Tags:        []string{"html", "scrape", "selector"},
			Params: []ParamSpec{
				{Name: "html", Type: TypeString, Required: true},
				{Name: "selector", Type: TypeString, Default: "body"},
			},
			Handler: func(_ context.Context, args map[string]any) (any, error) {
				doc, err := parse(args["html"].(string))
				if err != nil {
					return nil, err
				}
				var out []any
				doc.Find(args["selector"].(string)).Each(func(_ int, sel *goquery.Selection) {
					if text := strings.TrimSpace(sel.Text()); text != "" {
						out = append(out, text)
					}
				})
				return out, nil
			},
		},
		{
			Name:        "html_links",
			Description: "List the href targets of every anchor in an HTML document.",
			Category:    "html",
			Tags:        []string{"html", "scrape", "links"},
			Params: []ParamSpec{
				{Name: "html", Type: TypeString, Required: true},
			},
			Handler: func(_ context.Context, args map[string]any) (any, error) {
				doc, err := parse(args["html"].(string))
				if err != nil {
					return nil, err
				}
				var out []any
				doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
					if href, ok := sel.Attr("href"); ok {
						out = append(out, href)
					}
				})
				return out, nil
			},
		},
	}
}

// codeTools route through the engine; handlers get no private execution
// path of their own.
func codeTools(eng *engine.Engine) []Definition {
	return []Definition{
		{
			Name:        "run_code",
			Description: "Run a code snippet in a sandboxed runtime.",
			Category:    "code",
			Tags:        []string{"code", "execute", "sandbox"},
			Params: []ParamSpec{
				{Name: "source", Type: TypeString, Required: true},
				{Name: "language", Type: TypeString, Default: engine.LanguageAuto},
				{Name: "timeout_seconds", Type: TypeInt, Default: 5},
			},
			Handler: func(ctx context.Context, args map[string]any) (any, error) {
				res, err := eng.Run(ctx, engine.CodeRequest{
					Source:   args["source"].(string),
					Language: args["language"].(string),
					Timeout:  time.Duration(args["timeout_seconds"].(int)) * time.Second,
				})
				if err != nil {
					return nil, err
				}
				return executionResultMap(res), nil
			},
		},
		{
			Name:        "eval_expression",
			Description: "Evaluate a single expression, calculator style.",
			Category:    "code",
			Tags:        []string{"code", "expression", "calculator"},
			Params: []ParamSpec{
				{Name: "expression", Type: TypeString, Required: true},
				{Name: "language", Type: TypeString, Default: "lua"},
			},
			Handler: func(ctx context.Context, args map[string]any) (any, error) {
				res, err := eng.Eval(ctx, args["language"].(string), args["expression"].(string))
				if err != nil {
					return nil, err
				}
				return executionResultMap(res), nil
			},
		},
	}
}

func executionResultMap(res runtime.Result) map[string]any {
	return map[string]any{
		"status":      string(res.Status),
		"output":      res.Stdout,
		"error":       res.ErrorDetail,
		"duration_ms": res.Duration.Milliseconds(),
		"language":    res.Language,
		"truncated":   res.Truncated,
	}
}
