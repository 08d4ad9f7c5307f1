// Package tools provides the registry, validation and execution machinery
// for named callable operations.
package tools

import (
	"context"
	"fmt"
)

// ParamType enumerates the types a tool parameter may declare.
type ParamType int

const (
	TypeAny ParamType = iota
	TypeInt
	TypeFloat
	TypeString
	TypeBool
	TypeList
	TypeMap
)

var paramTypeNames = map[ParamType]string{
	TypeAny:    "any",
	TypeInt:    "int",
	TypeFloat:  "float",
	TypeString: "string",
	TypeBool:   "bool",
	TypeList:   "list",
	TypeMap:    "map",
}

func (t ParamType) String() string {
	if name, ok := paramTypeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("ParamType(%d)", int(t))
}

// valid reports whether t is one of the declared types.
func (t ParamType) valid() bool {
	_, ok := paramTypeNames[t]
	return ok
}

// ParamSpec declares one parameter of a tool. Required parameters must be
// present in every call; optional ones fall back to Default.
type ParamSpec struct {
	Name        string
	Type        ParamType
	Required    bool
	Default     any
	Description string
}

// Handler is the function behind a tool. It receives validated, coerced
// arguments keyed by parameter name.
type Handler func(ctx context.Context, args map[string]any) (any, error)

// Definition describes one registered tool. Definitions are immutable after
// registration; re-registering a name replaces the whole entry.
type Definition struct {
	Name        string
	Description string
	Category    string
	Tags        []string
	Params      []ParamSpec
	Handler     Handler
}

// Validate checks a definition at registration time.
func (d Definition) Validate() error {
	if d.Name == "" {
		return fmt.Errorf("tool name must not be empty")
	}
	if d.Handler == nil {
		return fmt.Errorf("tool %q has no handler", d.Name)
	}
	seen := make(map[string]struct{}, len(d.Params))
	for _, p := range d.Params {
		if p.Name == "" {
			return fmt.Errorf("tool %q has a parameter with no name", d.Name)
		}
		if !p.Type.valid() {
			return fmt.Errorf("tool %q parameter %q has unresolvable type %d", d.Name, p.Name, int(p.Type))
		}
		if _, dup := seen[p.Name]; dup {
			return fmt.Errorf("tool %q declares parameter %q twice", d.Name, p.Name)
		}
		seen[p.Name] = struct{}{}
		if p.Required && p.Default != nil {
			return fmt.Errorf("tool %q parameter %q is required but has a default", d.Name, p.Name)
		}
	}
	return nil
}

// param looks up a parameter spec by name.
func (d Definition) param(name string) (ParamSpec, bool) {
	for _, p := range d.Params {
		if p.Name == name {
			return p, true
		}
	}
	return ParamSpec{}, false
}
