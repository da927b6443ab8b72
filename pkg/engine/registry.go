package engine

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/sahilm/fuzzy"

	"github.com/e5r/dev/pkg/errdefs"
)

// Factory creates a fresh engine for one operation
type Factory func() Engine

var namePattern = regexp.MustCompile(`^[a-z][a-z0-9_-]*$`)

// Registry maps engine names to factories
type Registry struct {
	factories map[string]Factory
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register adds a factory under name
func (r *Registry) Register(name string, factory Factory) error {
	if !namePattern.MatchString(name) {
		return fmt.Errorf("invalid engine name %q: must be a lowercase identifier", name)
	}
	if factory == nil {
		return fmt.Errorf("engine %s has no factory", name)
	}
	if _, exists := r.factories[name]; exists {
		return fmt.Errorf("engine %s is already registered", name)
	}
	r.factories[name] = factory
	return nil
}

// MustRegister is like Register but panics on error
func (r *Registry) MustRegister(name string, factory Factory) {
	if err := r.Register(name, factory); err != nil {
		panic(err)
	}
}

// Names returns the registered engine names in sorted order
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Load creates the engine registered under name and checks it honors the
// contract before any filesystem work happens
func (r *Registry) Load(name string) (Engine, error) {
	name = strings.ToLower(strings.TrimSpace(name))

	factory, ok := r.factories[name]
	if !ok {
		err := fmt.Errorf("unknown engine %q", name)
		if suggestions := r.Suggest(name); len(suggestions) > 0 {
			err = fmt.Errorf("unknown engine %q, did you mean: %s", name, strings.Join(suggestions, ", "))
		}
		return nil, errdefs.NotFound(name, "", errdefs.StageLoad, err)
	}

	eng, err := safeCreate(factory)
	if err != nil {
		return nil, errdefs.Format(name, "", errdefs.StageLoad, err)
	}
	if eng == nil {
		return nil, errdefs.Format(name, "", errdefs.StageLoad, fmt.Errorf("factory returned no engine"))
	}
	if eng.Name() != name {
		return nil, errdefs.Format(name, "", errdefs.StageLoad,
			fmt.Errorf("name capability violated: engine reports %q", eng.Name()))
	}
	return eng, nil
}

func safeCreate(factory Factory) (eng Engine, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("factory panicked: %v", r)
		}
	}()
	return factory(), nil
}

// Suggest returns registered names close to name, best match first
func (r *Registry) Suggest(name string) []string {
	if name == "" {
		return nil
	}
	names := r.Names()

	var suggestions []string
	for _, match := range fuzzy.Find(name, names) {
		suggestions = append(suggestions, match.Str)
	}
	if len(suggestions) > 0 {
		return suggestions
	}

	// fall back to names sharing the first letter
	for _, candidate := range names {
		if strings.HasPrefix(candidate, name[:1]) {
			suggestions = append(suggestions, candidate)
		}
	}
	return suggestions
}
