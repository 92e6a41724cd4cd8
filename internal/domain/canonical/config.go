package canonical

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/kailas-cloud/matchdex/internal/domain"
)

// TypeConfiguration is a named similarity schema: the entity type it scores,
// the index it targets (may be blank), and an ordered field list. Immutable
// once built; parse failures never yield a partially built configuration.
type TypeConfiguration struct {
	typ    string
	index  string
	fields []Field
}

// NewTypeConfiguration builds a configuration from already-validated fields.
func NewTypeConfiguration(typ, index string, fields []Field) *TypeConfiguration {
	return &TypeConfiguration{typ: typ, index: index, fields: fields}
}

// Type returns the canonical type name.
func (c *TypeConfiguration) Type() string { return c.typ }

// Index returns the target index name, possibly blank.
func (c *TypeConfiguration) Index() string { return c.index }

// Fields returns the ordered field list.
func (c *TypeConfiguration) Fields() []Field { return c.fields }

// Field returns the field with the given name.
func (c *TypeConfiguration) Field(name string) (Field, bool) {
	for _, f := range c.fields {
		if f.Name() == name {
			return f, true
		}
	}
	return nil, false
}

// Equal is structural: same type, index, and pairwise-equal fields in order.
func (c *TypeConfiguration) Equal(other *TypeConfiguration) bool {
	if c == nil || other == nil {
		return c == other
	}
	if c.typ != other.typ || c.index != other.index || len(c.fields) != len(other.fields) {
		return false
	}
	for i := range c.fields {
		if !c.fields[i].Equal(other.fields[i]) {
			return false
		}
	}
	return true
}

type configJSON struct {
	Type   string  `json:"type"`
	Index  string  `json:"index"`
	Fields []Field `json:"fields"`
}

// MarshalJSON emits the canonical serialization: deterministic key order,
// explicit nulls for unset optional sub-objects.
func (c *TypeConfiguration) MarshalJSON() ([]byte, error) {
	fields := c.fields
	if fields == nil {
		fields = []Field{}
	}
	return json.Marshal(configJSON{Type: c.typ, Index: c.index, Fields: fields})
}

// String returns the canonical JSON form, used for equality-stable
// persistence and round-trip loading.
func (c *TypeConfiguration) String() string {
	data, err := json.Marshal(c)
	if err != nil {
		return ""
	}
	return string(data)
}

// raw shapes for parsing. YAML and JSON input both decode through yaml.v3.

type rawConfig struct {
	Type   string     `yaml:"type"`
	Index  string     `yaml:"index"`
	Fields []rawField `yaml:"fields"`
}

type rawField struct {
	Name       string     `yaml:"name"`
	Type       string     `yaml:"type"`
	Required   bool       `yaml:"required"`
	Boost      *float64   `yaml:"boost"`
	ExactMatch bool       `yaml:"exactMatch"`
	Fuzziness  *Fuzziness `yaml:"fuzziness"`
	Decay      *Decay     `yaml:"decay"`
	Distance   *Distance  `yaml:"distance"`
}

// LoadFile reads a configuration from a YAML or JSON file.
func LoadFile(path string) (*TypeConfiguration, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read canonical type configuration: %w", err)
	}
	cfg, perr := Parse(data)
	if perr != nil {
		return nil, fmt.Errorf("%s: %w", path, perr)
	}
	return cfg, nil
}

// ParseString parses a configuration from a YAML or JSON string.
func ParseString(s string) (*TypeConfiguration, error) {
	return Parse([]byte(s))
}

// Parse parses a configuration from YAML or JSON bytes. Unknown top-level
// shape, a field entry without a type, or syntactically invalid input is a
// validation error; no partially built configuration is ever returned.
func Parse(data []byte) (*TypeConfiguration, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var raw rawConfig
	if err := dec.Decode(&raw); err != nil {
		return nil, domain.Invalid("canonical type configuration", "unparseable input: %v", err)
	}
	return fromRaw(raw)
}

// FromNode builds a configuration from an already-decoded YAML node, for
// callers that embed schemas inside larger configuration documents.
func FromNode(node *yaml.Node) (*TypeConfiguration, error) {
	var raw rawConfig
	if err := node.Decode(&raw); err != nil {
		return nil, domain.Invalid("canonical type configuration", "invalid node: %v", err)
	}
	return fromRaw(raw)
}

func fromRaw(raw rawConfig) (*TypeConfiguration, error) {
	fields := make([]Field, 0, len(raw.Fields))
	for i, rf := range raw.Fields {
		f, err := buildField(i, rf)
		if err != nil {
			return nil, err
		}
		fields = append(fields, f)
	}
	return &TypeConfiguration{typ: raw.Type, index: raw.Index, fields: fields}, nil
}

func buildField(pos int, rf rawField) (Field, error) {
	if rf.Name == "" {
		return nil, domain.Invalid(fmt.Sprintf("fields[%d]", pos), "field name is required")
	}
	if rf.Type == "" {
		return nil, domain.Invalid("field "+rf.Name, "field type is required")
	}

	boost := 1.0
	if rf.Boost != nil {
		boost = *rf.Boost
	}
	a := attrs{
		name:       rf.Name,
		typ:        rf.Type,
		required:   rf.Required,
		boost:      boost,
		exactMatch: rf.ExactMatch,
	}

	switch rf.Type {
	case TypeKeyword:
		if err := rejectExtras(rf, "keyword"); err != nil {
			return nil, err
		}
		return &KeywordField{attrs: a}, nil
	case TypeText:
		if rf.Decay != nil || rf.Distance != nil {
			return nil, domain.Invalid("field "+rf.Name, "decay/distance are not valid for text fields")
		}
		return &TextField{attrs: a, Fuzziness: rf.Fuzziness}, nil
	case TypeNumber, TypeInteger, TypeLong, TypeFloat, TypeDouble:
		if rf.Fuzziness != nil || rf.Distance != nil {
			return nil, domain.Invalid("field "+rf.Name, "fuzziness/distance are not valid for numeric fields")
		}
		return &NumberField{attrs: a, Decay: rf.Decay}, nil
	case TypeDate:
		if rf.Fuzziness != nil || rf.Decay != nil {
			return nil, domain.Invalid("field "+rf.Name, "fuzziness/decay are not valid for date fields")
		}
		return &DateField{attrs: a, Distance: rf.Distance}, nil
	case TypeGeoPoint:
		if rf.Fuzziness != nil || rf.Decay != nil {
			return nil, domain.Invalid("field "+rf.Name, "fuzziness/decay are not valid for geo-point fields")
		}
		return &LocationField{attrs: a, Distance: rf.Distance}, nil
	case TypeBoolean:
		if err := rejectExtras(rf, "boolean"); err != nil {
			return nil, err
		}
		return &BooleanField{attrs: a}, nil
	default:
		return nil, domain.Invalid("field "+rf.Name, "unknown field type %q", rf.Type)
	}
}

func rejectExtras(rf rawField, kind string) error {
	if rf.Fuzziness != nil || rf.Decay != nil || rf.Distance != nil {
		return domain.Invalid("field "+rf.Name, "fuzziness/decay/distance are not valid for %s fields", kind)
	}
	return nil
}
