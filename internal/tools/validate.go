package tools

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// normalizeArgs turns caller-supplied arguments into a validated, coerced
// map keyed by parameter name. args may be a map, or a positional []any
// matched against the declared parameter order. The returned map always
// contains every declared parameter that has a value.
func normalizeArgs(def Definition, args any) (map[string]any, error) {
	named, err := nameArgs(def, args)
	if err != nil {
		return nil, err
	}

	out := make(map[string]any, len(def.Params))
	for _, p := range def.Params {
		value, supplied := named[p.Name]
		if !supplied {
			if p.Required {
				return nil, MissingArgumentError{Tool: def.Name, Param: p.Name}
			}
			if p.Default != nil {
				out[p.Name] = p.Default
			}
			continue
		}
		coerced, err := coerce(value, p.Type)
		if err != nil {
			return nil, InvalidArgumentError{Tool: def.Name, Param: p.Name, Reason: err.Error()}
		}
		out[p.Name] = coerced
	}

	for name := range named {
		if _, declared := def.param(name); !declared {
			return nil, InvalidArgumentError{Tool: def.Name, Param: name, Reason: "not a declared parameter"}
		}
	}
	return out, nil
}

// nameArgs maps positional arguments onto parameter names; maps pass
// through.
func nameArgs(def Definition, args any) (map[string]any, error) {
	switch a := args.(type) {
	case nil:
		return map[string]any{}, nil
	case map[string]any:
		return a, nil
	case []any:
		if len(a) > len(def.Params) {
			return nil, InvalidArgumentError{
				Tool:   def.Name,
				Param:  "",
				Reason: fmt.Sprintf("%d positional arguments for %d parameters", len(a), len(def.Params)),
			}
		}
		named := make(map[string]any, len(a))
		for i, v := range a {
			named[def.Params[i].Name] = v
		}
		return named, nil
	default:
		return nil, InvalidArgumentError{
			Tool:   def.Name,
			Param:  "",
			Reason: fmt.Sprintf("arguments must be a map or a list, got %T", args),
		}
	}
}

// coerce converts value to the declared type. Only unambiguous conversions
// are attempted: int to float, whole float to int, numeric string to
// number, "true"/"false" to bool. Anything else is an error.
func coerce(value any, t ParamType) (any, error) {
	switch t {
	case TypeAny:
		return value, nil

	case TypeInt:
		switch v := value.(type) {
		case int:
			return v, nil
		case int64:
			return int(v), nil
		case float64:
			if v != math.Trunc(v) {
				return nil, fmt.Errorf("expected int, got fractional number %v", v)
			}
			return int(v), nil
		case string:
			n, err := strconv.Atoi(strings.TrimSpace(v))
			if err != nil {
				return nil, fmt.Errorf("expected int, got %q", v)
			}
			return n, nil
		}

	case TypeFloat:
		switch v := value.(type) {
		case float64:
			return v, nil
		case float32:
			return float64(v), nil
		case int:
			return float64(v), nil
		case int64:
			return float64(v), nil
		case string:
			f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
			if err != nil {
				return nil, fmt.Errorf("expected float, got %q", v)
			}
			return f, nil
		}

	case TypeString:
		if v, ok := value.(string); ok {
			return v, nil
		}

	case TypeBool:
		switch v := value.(type) {
		case bool:
			return v, nil
		case string:
			switch strings.ToLower(strings.TrimSpace(v)) {
			case "true":
				return true, nil
			case "false":
				return false, nil
			}
			return nil, fmt.Errorf("expected bool, got %q", v)
		}

	case TypeList:
		if v, ok := value.([]any); ok {
			return v, nil
		}

	case TypeMap:
		if v, ok := value.(map[string]any); ok {
			return v, nil
		}
	}
	return nil, fmt.Errorf("expected %s, got %T", t, value)
}
