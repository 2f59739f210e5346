package query

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
)

// ValueType constrains what a field accepts. Violations degrade the
// term to free text with a warning rather than failing the parse.
type ValueType int

const (
	TypeText ValueType = iota
	TypeNumber
	TypeID
)

func (t ValueType) String() string {
	switch t {
	case TypeNumber:
		return "number"
	case TypeID:
		return "id"
	default:
		return "text"
	}
}

// FieldSpec describes one queryable field: which domains it applies to,
// the key each adapter expects, and the value type checked at parse
// time. A spec with multiple domains is domain-agnostic.
type FieldSpec struct {
	Key     string
	Domains []string
	Type    ValueType
}

// FieldRegistry resolves field names written in queries. Domain-scoped
// names carry a "domain." prefix; domain-agnostic names do not.
// Adapters register their fields during wiring, before any parse.
type FieldRegistry struct {
	mu     sync.RWMutex
	fields map[string]FieldSpec
}

func NewFieldRegistry() *FieldRegistry {
	return &FieldRegistry{fields: make(map[string]FieldSpec)}
}

// Register adds a field. Re-registering an existing name is an error so
// two adapters cannot silently fight over a shared name.
func (r *FieldRegistry) Register(name string, spec FieldSpec) error {
	if name == "" {
		return fmt.Errorf("fieldregistry.register: field name required")
	}
	if spec.Key == "" {
		spec.Key = name
	}
	if len(spec.Domains) == 0 {
		return fmt.Errorf("fieldregistry.register: field %q needs at least one domain", name)
	}
	name = strings.ToLower(name)
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.fields[name]; exists {
		return fmt.Errorf("fieldregistry.register: field %q already registered", name)
	}
	r.fields[name] = spec
	return nil
}

// Resolve looks up a field name as written in a query.
func (r *FieldRegistry) Resolve(name string) (FieldSpec, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	spec, ok := r.fields[strings.ToLower(name)]
	return spec, ok
}

// Names returns all registered field names, sorted.
func (r *FieldRegistry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.fields))
	for name := range r.fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Domains returns the set of domains any registered field maps to,
// sorted.
func (r *FieldRegistry) Domains() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	seen := make(map[string]struct{})
	for _, spec := range r.fields {
		for _, d := range spec.Domains {
			seen[d] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for d := range seen {
		out = append(out, d)
	}
	sort.Strings(out)
	return out
}

// checkValue validates a leaf value against the field's type.
func (spec FieldSpec) checkValue(value string) error {
	if spec.Type != TypeNumber {
		return nil
	}
	if _, err := strconv.ParseFloat(value, 64); err != nil {
		return fmt.Errorf("field expects a number, got %q", value)
	}
	return nil
}
