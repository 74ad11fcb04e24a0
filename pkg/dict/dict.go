package dict

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Attribute is a single dictionary entry.
type Attribute struct {
	// Name is the attribute name, e.g. "Acct-Session-Id".
	Name string `yaml:"name"`

	// Type is the attribute data type.
	Type Type `yaml:"type"`

	// Values maps enum names to integer values (integer types only).
	Values map[string]uint64 `yaml:"values,omitempty"`

	// Unknown is set for attributes synthesized by LookupOrUnknown.
	Unknown bool `yaml:"-"`

	byValue map[uint64]string
}

// ValueName returns the enum name registered for v.
func (a *Attribute) ValueName(v uint64) (string, bool) {
	name, ok := a.byValue[v]
	return name, ok
}

// Value returns the integer registered for an enum name. Matching is case
// insensitive.
func (a *Attribute) Value(name string) (uint64, bool) {
	if v, ok := a.Values[name]; ok {
		return v, true
	}
	for n, v := range a.Values {
		if strings.EqualFold(n, name) {
			return v, true
		}
	}
	return 0, false
}

func (a *Attribute) validate() error {
	if strings.TrimSpace(a.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidAttribute)
	}
	t, err := ParseType(string(a.Type))
	if err != nil {
		return fmt.Errorf("attribute %s: %w", a.Name, err)
	}
	a.Type = t

	if len(a.Values) > 0 && !t.IsUnsigned() {
		return fmt.Errorf("%w: attribute %s: values are only allowed on integer types", ErrInvalidAttribute, a.Name)
	}

	a.byValue = make(map[uint64]string, len(a.Values))
	for name, v := range a.Values {
		if v > t.Max() {
			return fmt.Errorf("%w: attribute %s: value %s=%d overflows %s", ErrInvalidAttribute, a.Name, name, v, t)
		}
		// First name wins for reverse lookups, keep it deterministic.
		if prev, ok := a.byValue[v]; !ok || name < prev {
			a.byValue[v] = name
		}
	}
	return nil
}

// Dictionary is an immutable set of attribute definitions.
type Dictionary struct {
	attrs map[string]*Attribute
	names []string
}

// New builds a dictionary from attribute definitions.
func New(attrs ...*Attribute) (*Dictionary, error) {
	d := &Dictionary{attrs: make(map[string]*Attribute, len(attrs))}
	for _, a := range attrs {
		if err := a.validate(); err != nil {
			return nil, err
		}
		key := strings.ToLower(a.Name)
		if _, exists := d.attrs[key]; exists {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateAttribute, a.Name)
		}
		d.attrs[key] = a
		d.names = append(d.names, a.Name)
	}
	sort.Strings(d.names)
	return d, nil
}

type dictionaryFile struct {
	Attributes []*Attribute `yaml:"attributes"`
}

// Parse builds a dictionary from YAML data.
func Parse(data []byte) (*Dictionary, error) {
	var f dictionaryFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse dictionary YAML: %w", err)
	}
	return New(f.Attributes...)
}

// Load reads a dictionary file. An empty path returns the built-in
// dictionary.
func Load(path string) (*Dictionary, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &LoadError{Path: path, Cause: err}
	}
	d, err := Parse(data)
	if err != nil {
		return nil, &LoadError{Path: path, Cause: err}
	}
	return d, nil
}

// Lookup finds an attribute by name (case insensitive).
func (d *Dictionary) Lookup(name string) (*Attribute, bool) {
	a, ok := d.attrs[strings.ToLower(name)]
	return a, ok
}

// LookupOrUnknown finds an attribute by name, or synthesizes an opaque
// octets attribute when the name is not defined.
func (d *Dictionary) LookupOrUnknown(name string) *Attribute {
	if a, ok := d.Lookup(name); ok {
		return a
	}
	return &Attribute{Name: name, Type: TypeOctets, Unknown: true}
}

// Names returns the sorted attribute names.
func (d *Dictionary) Names() []string {
	out := make([]string, len(d.names))
	copy(out, d.names)
	return out
}

// Len returns the number of attributes.
func (d *Dictionary) Len() int {
	return len(d.attrs)
}
