package strategy

import (
	"fmt"
	"sort"
	"strings"
)

// Registry resolves strategies by industry name.
type Registry struct {
	strategies map[string]Strategy
}

func NewRegistry(strategies ...Strategy) *Registry {
	r := &Registry{strategies: make(map[string]Strategy, len(strategies))}
	for _, s := range strategies {
		r.Register(s)
	}
	return r
}

// DefaultRegistry knows every built-in industry.
func DefaultRegistry() *Registry {
	return NewRegistry(HaircareStrategy{}, SkincareStrategy{})
}

func (r *Registry) Register(s Strategy) {
	r.strategies[strings.ToLower(s.Industry())] = s
}

func (r *Registry) Get(industry string) (Strategy, error) {
	s, ok := r.strategies[strings.ToLower(strings.TrimSpace(industry))]
	if !ok {
		return nil, fmt.Errorf("%w: %q (known: %s)", ErrUnknownIndustry, industry, strings.Join(r.Industries(), ", "))
	}
	return s, nil
}

// Industries returns the registered industry names, sorted.
func (r *Registry) Industries() []string {
	names := make([]string, 0, len(r.strategies))
	for name := range r.strategies {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
