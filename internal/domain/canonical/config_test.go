package canonical

import (
	"errors"
	"strings"
	"testing"

	"github.com/kailas-cloud/matchdex/internal/domain"
)

const allVariantsYAML = `
type: person
index: persons
fields:
  - name: ssn
    type: keyword
    required: true
    boost: 2.5
    exactMatch: true
  - name: fullName
    type: text
    boost: 1.5
    fuzziness: {enabled: true, min: 1, max: 2}
  - name: nickname
    type: text
  - name: age
    type: number
    decay: {decay: 0.5, offset: "10", scale: "10"}
  - name: height
    type: integer
  - name: born
    type: date
    distance: {pivot: "3d"}
  - name: home
    type: geo-point
    distance: {pivot: "5m"}
  - name: active
    type: boolean
`

func TestParseAllVariants(t *testing.T) {
	cfg, err := ParseString(allVariantsYAML)
	if err != nil {
		t.Fatalf("ParseString: %v", err)
	}
	if cfg.Type() != "person" || cfg.Index() != "persons" {
		t.Fatalf("type/index = %q/%q", cfg.Type(), cfg.Index())
	}
	if len(cfg.Fields()) != 8 {
		t.Fatalf("fields = %d, want 8", len(cfg.Fields()))
	}

	ssn := cfg.Fields()[0]
	if _, ok := ssn.(*KeywordField); !ok {
		t.Errorf("ssn variant = %T", ssn)
	}
	if !ssn.Required() || ssn.Boost() != 2.5 || !ssn.ExactMatch() {
		t.Errorf("ssn attrs = required %v boost %v exact %v", ssn.Required(), ssn.Boost(), ssn.ExactMatch())
	}

	name, ok := cfg.Fields()[1].(*TextField)
	if !ok || name.Fuzziness == nil || !name.Fuzziness.Enabled {
		t.Fatalf("fullName fuzziness not parsed: %#v", cfg.Fields()[1])
	}
	if *name.Fuzziness.Min != 1 || *name.Fuzziness.Max != 2 {
		t.Errorf("fuzziness bounds = %d..%d", *name.Fuzziness.Min, *name.Fuzziness.Max)
	}

	nick, ok := cfg.Fields()[2].(*TextField)
	if !ok || nick.Fuzziness != nil {
		t.Errorf("nickname fuzziness must be nil when absent, got %#v", nick.Fuzziness)
	}
	if nick.Boost() != 1.0 {
		t.Errorf("default boost = %v, want 1.0", nick.Boost())
	}

	age, ok := cfg.Fields()[3].(*NumberField)
	if !ok || age.Decay == nil || age.Decay.Decay != 0.5 {
		t.Fatalf("age decay not parsed: %#v", cfg.Fields()[3])
	}

	if h, ok := cfg.Fields()[4].(*NumberField); !ok || h.Type() != TypeInteger {
		t.Errorf("integer alias must keep declared type, got %T %q", cfg.Fields()[4], cfg.Fields()[4].Type())
	}
	if d, ok := cfg.Fields()[5].(*DateField); !ok || d.Distance.Pivot != "3d" {
		t.Errorf("born distance = %#v", cfg.Fields()[5])
	}
	if l, ok := cfg.Fields()[6].(*LocationField); !ok || l.Distance.Pivot != "5m" {
		t.Errorf("home distance = %#v", cfg.Fields()[6])
	}
	if _, ok := cfg.Fields()[7].(*BooleanField); !ok {
		t.Errorf("active variant = %T", cfg.Fields()[7])
	}
}

func TestParseJSONInput(t *testing.T) {
	cfg, err := ParseString(`{"type":"org","fields":[{"name":"label","type":"keyword"}]}`)
	if err != nil {
		t.Fatalf("JSON input: %v", err)
	}
	if cfg.Type() != "org" || len(cfg.Fields()) != 1 {
		t.Fatalf("parsed %q with %d fields", cfg.Type(), len(cfg.Fields()))
	}
}

func TestParseZeroFieldsIsValid(t *testing.T) {
	cfg, err := ParseString("type: empty\n")
	if err != nil {
		t.Fatalf("zero fields: %v", err)
	}
	if len(cfg.Fields()) != 0 {
		t.Fatalf("fields = %d", len(cfg.Fields()))
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"field without type", "fields:\n  - name: x\n"},
		{"field without name", "fields:\n  - type: keyword\n"},
		{"unknown field type", "fields:\n  - name: x\n    type: blob\n"},
		{"unknown attribute", "fields:\n  - name: x\n    type: keyword\n    sharpness: 3\n"},
		{"decay on text", "fields:\n  - name: x\n    type: text\n    decay: {decay: 0.5, offset: \"1\", scale: \"1\"}\n"},
		{"fuzziness on number", "fields:\n  - name: x\n    type: long\n    fuzziness: {enabled: true}\n"},
		{"syntactically invalid", "fields: [[["},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg, err := ParseString(tc.input)
			if err == nil {
				t.Fatalf("expected validation error, got %v", cfg)
			}
			if !errors.Is(err, domain.ErrValidation) {
				t.Errorf("error kind = %v, want ErrValidation", err)
			}
			if cfg != nil {
				t.Error("no partially built configuration may be returned")
			}
		})
	}
}

func TestCanonicalRoundTrip(t *testing.T) {
	cfg, err := ParseString(allVariantsYAML)
	if err != nil {
		t.Fatalf("ParseString: %v", err)
	}

	reloaded, err := ParseString(cfg.String())
	if err != nil {
		t.Fatalf("reload canonical form: %v", err)
	}
	if !cfg.Equal(reloaded) {
		t.Fatalf("round-trip inequality:\n  orig %s\n  back %s", cfg, reloaded)
	}
}

func TestCanonicalFieldOrderAndNulls(t *testing.T) {
	cfg, err := ParseString("fields:\n  - name: note\n    type: text\n")
	if err != nil {
		t.Fatalf("ParseString: %v", err)
	}
	s := cfg.String()

	want := `"fields":[{"name":"note","type":"text","required":false,"boost":1,"exactMatch":false,"fuzziness":null}]`
	if !strings.Contains(s, want) {
		t.Errorf("canonical form = %s\nwant substring %s", s, want)
	}
	if !strings.HasPrefix(s, `{"type":"","index":"",`) {
		t.Errorf("top-level key order wrong: %s", s)
	}
}

func TestFieldEqualityVariantAware(t *testing.T) {
	kw := &KeywordField{attrs{name: "a", typ: TypeKeyword, boost: 1}}
	txt := &TextField{attrs: attrs{name: "a", typ: TypeText, boost: 1}}
	if kw.Equal(txt) || txt.Equal(kw) {
		t.Error("different variants must never be equal")
	}

	one := 1
	two := 2
	t1 := &TextField{attrs: attrs{name: "a", typ: TypeText, boost: 1}, Fuzziness: &Fuzziness{Enabled: true, Min: &one, Max: &two}}
	t2 := &TextField{attrs: attrs{name: "a", typ: TypeText, boost: 1}, Fuzziness: &Fuzziness{Enabled: true, Min: &one, Max: &two}}
	t3 := &TextField{attrs: attrs{name: "a", typ: TypeText, boost: 1}}
	if !t1.Equal(t2) {
		t.Error("structurally equal text fields must be equal")
	}
	if t1.Equal(t3) {
		t.Error("fuzziness difference must break equality")
	}
}

func TestConfigurationMapOperations(t *testing.T) {
	a, _ := ParseString("type: a\nfields:\n  - {name: x, type: keyword}\n")
	b, _ := ParseString("type: b\n")

	cm := NewConfigurationMap()
	if prev := cm.Put("a", a); prev != nil {
		t.Errorf("first Put returned %v", prev)
	}
	cm.Put("b", b)

	if !cm.ContainsKey("a") || cm.ContainsKey("c") {
		t.Error("ContainsKey wrong")
	}
	aCopy, _ := ParseString("type: a\nfields:\n  - {name: x, type: keyword}\n")
	if !cm.ContainsValue(aCopy) {
		t.Error("ContainsValue must use structural equality")
	}
	if got := cm.Keys(); len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Errorf("Keys = %v", got)
	}
	if got := cm.Values(); len(got) != 2 {
		t.Errorf("Values = %d entries", len(got))
	}

	other := NewConfigurationMap()
	other.PutAll(cm)
	if !cm.Equal(other) {
		t.Error("PutAll copy must be value-equal")
	}

	if _, ok := cm.Remove("a"); !ok || cm.ContainsKey("a") {
		t.Error("Remove failed")
	}
	if cm.Equal(other) {
		t.Error("maps with different entries must not be equal")
	}
}

func TestRegistryLookup(t *testing.T) {
	builtin, _ := ParseString("type: person\n")
	r := NewRegistry(builtin)

	if _, err := r.Lookup("person"); err != nil {
		t.Fatalf("builtin lookup: %v", err)
	}
	if _, err := r.Lookup("vessel"); !errors.Is(err, domain.ErrUnknownType) {
		t.Fatalf("unknown type error = %v", err)
	}

	dynamic, _ := ParseString("type: vessel\nindex: vessels\n")
	r.Put("vessel", dynamic)
	got, err := r.Lookup("vessel")
	if err != nil || got.Index() != "vessels" {
		t.Fatalf("dynamic lookup = %v, %v", got, err)
	}

	// Dynamic overrides static under the same name.
	override, _ := ParseString("type: person\nindex: other\n")
	r.Put("person", override)
	got, _ = r.Lookup("person")
	if got.Index() != "other" {
		t.Errorf("dynamic must shadow builtin, got index %q", got.Index())
	}
}
