// Package canonical holds the declarative per-entity-type similarity schema:
// field variants, their scoring parameters, and the configurations that
// aggregate them. The query compiler walks these fields via the Visitor.
package canonical

import "encoding/json"

// Declared field type names. The number family shares one variant but each
// alias round-trips unchanged.
const (
	TypeKeyword  = "keyword"
	TypeText     = "text"
	TypeNumber   = "number"
	TypeInteger  = "integer"
	TypeLong     = "long"
	TypeFloat    = "float"
	TypeDouble   = "double"
	TypeDate     = "date"
	TypeGeoPoint = "geo-point"
	TypeBoolean  = "boolean"
)

// Fuzziness is the edit-distance tolerance of a text field.
type Fuzziness struct {
	Enabled bool `yaml:"enabled" json:"enabled"`
	Min     *int `yaml:"min" json:"min"`
	Max     *int `yaml:"max" json:"max"`
}

// Decay describes a score-decay curve away from an exact numeric match.
type Decay struct {
	Decay  float64 `yaml:"decay" json:"decay"`
	Offset string  `yaml:"offset" json:"offset"`
	Scale  string  `yaml:"scale" json:"scale"`
}

// Distance holds the pivot at which a date/location match scores half.
type Distance struct {
	Pivot string `yaml:"pivot" json:"pivot"`
}

// Visitor has one method per concrete field variant. Accept on a field
// invokes the exactly-matching method exactly once.
type Visitor interface {
	VisitKeyword(f *KeywordField, value any) error
	VisitText(f *TextField, value any) error
	VisitNumber(f *NumberField, value any) error
	VisitDate(f *DateField, value any) error
	VisitLocation(f *LocationField, value any) error
	VisitBoolean(f *BooleanField, value any) error
}

// Field is one entry of a similarity schema.
type Field interface {
	Name() string
	Type() string
	Required() bool
	Boost() float64
	ExactMatch() bool
	// Accept dispatches to the visitor method matching the concrete variant.
	Accept(v Visitor, value any) error
	// Equal is structural and variant-aware: true only for the same
	// concrete variant with all common and variant-specific values equal.
	Equal(other Field) bool
}

// attrs are the common attributes of every field variant.
type attrs struct {
	name       string
	typ        string
	required   bool
	boost      float64
	exactMatch bool
}

func (a attrs) Name() string     { return a.name }
func (a attrs) Type() string     { return a.typ }
func (a attrs) Required() bool   { return a.required }
func (a attrs) Boost() float64   { return a.boost }
func (a attrs) ExactMatch() bool { return a.exactMatch }

func (a attrs) equal(b attrs) bool { return a == b }

// KeywordField matches exact terms.
type KeywordField struct {
	attrs
}

// TextField matches analyzed text, optionally with fuzziness.
type TextField struct {
	attrs
	Fuzziness *Fuzziness
}

// NumberField scores by decay away from an exact numeric match. Covers the
// number, integer, long, float, and double declared types.
type NumberField struct {
	attrs
	Decay *Decay
}

// DateField scores by proximity to a date, governed by a duration pivot.
type DateField struct {
	attrs
	Distance *Distance
}

// LocationField scores by geo proximity, governed by a length pivot.
type LocationField struct {
	attrs
	Distance *Distance
}

// BooleanField matches boolean equality.
type BooleanField struct {
	attrs
}

// Accept implements double dispatch per variant.

func (f *KeywordField) Accept(v Visitor, value any) error  { return v.VisitKeyword(f, value) }
func (f *TextField) Accept(v Visitor, value any) error     { return v.VisitText(f, value) }
func (f *NumberField) Accept(v Visitor, value any) error   { return v.VisitNumber(f, value) }
func (f *DateField) Accept(v Visitor, value any) error     { return v.VisitDate(f, value) }
func (f *LocationField) Accept(v Visitor, value any) error { return v.VisitLocation(f, value) }
func (f *BooleanField) Accept(v Visitor, value any) error  { return v.VisitBoolean(f, value) }

func (f *KeywordField) Equal(other Field) bool {
	o, ok := other.(*KeywordField)
	return ok && f.attrs.equal(o.attrs)
}

func (f *TextField) Equal(other Field) bool {
	o, ok := other.(*TextField)
	return ok && f.attrs.equal(o.attrs) && fuzzinessEqual(f.Fuzziness, o.Fuzziness)
}

func (f *NumberField) Equal(other Field) bool {
	o, ok := other.(*NumberField)
	return ok && f.attrs.equal(o.attrs) && decayEqual(f.Decay, o.Decay)
}

func (f *DateField) Equal(other Field) bool {
	o, ok := other.(*DateField)
	return ok && f.attrs.equal(o.attrs) && distanceEqual(f.Distance, o.Distance)
}

func (f *LocationField) Equal(other Field) bool {
	o, ok := other.(*LocationField)
	return ok && f.attrs.equal(o.attrs) && distanceEqual(f.Distance, o.Distance)
}

func (f *BooleanField) Equal(other Field) bool {
	o, ok := other.(*BooleanField)
	return ok && f.attrs.equal(o.attrs)
}

func fuzzinessEqual(a, b *Fuzziness) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Enabled == b.Enabled && intPtrEqual(a.Min, b.Min) && intPtrEqual(a.Max, b.Max)
}

func decayEqual(a, b *Decay) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func distanceEqual(a, b *Distance) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func intPtrEqual(a, b *int) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// Canonical serialization: deterministic key order with explicit nulls for
// absent optional sub-objects. Struct declaration order drives the output.

type keywordJSON struct {
	Name       string  `json:"name"`
	Type       string  `json:"type"`
	Required   bool    `json:"required"`
	Boost      float64 `json:"boost"`
	ExactMatch bool    `json:"exactMatch"`
}

type textJSON struct {
	Name       string     `json:"name"`
	Type       string     `json:"type"`
	Required   bool       `json:"required"`
	Boost      float64    `json:"boost"`
	ExactMatch bool       `json:"exactMatch"`
	Fuzziness  *Fuzziness `json:"fuzziness"`
}

type numberJSON struct {
	Name       string  `json:"name"`
	Type       string  `json:"type"`
	Required   bool    `json:"required"`
	Boost      float64 `json:"boost"`
	ExactMatch bool    `json:"exactMatch"`
	Decay      *Decay  `json:"decay"`
}

type pivotJSON struct {
	Name       string    `json:"name"`
	Type       string    `json:"type"`
	Required   bool      `json:"required"`
	Boost      float64   `json:"boost"`
	ExactMatch bool      `json:"exactMatch"`
	Distance   *Distance `json:"distance"`
}

func (f *KeywordField) MarshalJSON() ([]byte, error) {
	return json.Marshal(keywordJSON{f.name, f.typ, f.required, f.boost, f.exactMatch})
}

func (f *TextField) MarshalJSON() ([]byte, error) {
	return json.Marshal(textJSON{f.name, f.typ, f.required, f.boost, f.exactMatch, f.Fuzziness})
}

func (f *NumberField) MarshalJSON() ([]byte, error) {
	return json.Marshal(numberJSON{f.name, f.typ, f.required, f.boost, f.exactMatch, f.Decay})
}

func (f *DateField) MarshalJSON() ([]byte, error) {
	return json.Marshal(pivotJSON{f.name, f.typ, f.required, f.boost, f.exactMatch, f.Distance})
}

func (f *LocationField) MarshalJSON() ([]byte, error) {
	return json.Marshal(pivotJSON{f.name, f.typ, f.required, f.boost, f.exactMatch, f.Distance})
}

func (f *BooleanField) MarshalJSON() ([]byte, error) {
	return json.Marshal(keywordJSON{f.name, f.typ, f.required, f.boost, f.exactMatch})
}
