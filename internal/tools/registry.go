package tools

import (
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"
)

// Registry is a thread-safe catalog of tool definitions.
type Registry struct {
	mu     sync.RWMutex
	tools  map[string]Definition
	logger *zap.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		tools:  make(map[string]Definition),
		logger: logger,
	}
}

// Register validates and adds a definition. Registering an existing name
// replaces the entry atomically; the replacement is logged, not an error.
func (r *Registry) Register(def Definition) error {
	if err := def.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tools[def.Name]; exists {
		r.logger.Info("tool replaced", zap.String("tool", def.Name))
	}
	r.tools[def.Name] = def
	return nil
}

// MustRegister panics on a registration error. Meant for the builtin
// catalog wired at startup.
func (r *Registry) MustRegister(def Definition) {
	if err := r.Register(def); err != nil {
		panic(err)
	}
}

// Unregister removes a tool. Removing an absent name is a no-op.
func (r *Registry) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.tools, name)
}

// Get returns the definition for name.
func (r *Registry) Get(name string) (Definition, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	def, ok := r.tools[name]
	if !ok {
		return Definition{}, NotFoundError{Name: name}
	}
	return def, nil
}

// Has reports whether name is registered.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.tools[name]
	return ok
}

// List returns every definition sorted by name.
func (r *Registry) List() []Definition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Definition, 0, len(r.tools))
	for _, def := range r.tools {
		out = append(out, def)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Relevance ranks for Search, highest first.
const (
	rankExactName = 4
	rankNameSub   = 3
	rankTag       = 2
	rankDescSub   = 1
)

// Search matches query case-insensitively against name, tags and
// description. Results come back ordered by relevance: exact name match
// first, then name substring, then tag match, then description match; ties
// sort by name.
func (r *Registry) Search(query string) []Definition {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return nil
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	type scored struct {
		def  Definition
		rank int
	}
	var matches []scored
	for _, def := range r.tools {
		if rank := matchRank(def, query); rank > 0 {
			matches = append(matches, scored{def, rank})
		}
	}

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].rank != matches[j].rank {
			return matches[i].rank > matches[j].rank
		}
		return matches[i].def.Name < matches[j].def.Name
	})

	out := make([]Definition, len(matches))
	for i, m := range matches {
		out[i] = m.def
	}
	return out
}

func matchRank(def Definition, query string) int {
	name := strings.ToLower(def.Name)
	if name == query {
		return rankExactName
	}
	if strings.Contains(name, query) {
		return rankNameSub
	}
	for _, tag := range def.Tags {
		if strings.Contains(strings.ToLower(tag), query) {
			return rankTag
		}
	}
	if strings.Contains(strings.ToLower(def.Description), query) {
		return rankDescSub
	}
	if strings.Contains(strings.ToLower(def.Category), query) {
		return rankDescSub
	}
	return 0
}
