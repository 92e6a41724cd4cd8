// Package query compiles a canonical type configuration against a candidate
// document into a backend query: one weighted sub-query per populated field,
// combined into a single boolean should-clause.
package query

import (
	"fmt"

	"github.com/kailas-cloud/matchdex/internal/domain"
	"github.com/kailas-cloud/matchdex/internal/domain/canonical"
	"github.com/kailas-cloud/matchdex/internal/domain/document"
)

// Compile walks the candidate document's properties against the
// configuration's field list. Fields without a source value are skipped
// unless required, in which case compilation fails. A value whose shape does
// not match the declared field type is a validation error naming the
// property.
func Compile(cfg *canonical.TypeConfiguration, doc document.Document) (map[string]any, error) {
	v := &fragmentVisitor{}
	for _, field := range cfg.Fields() {
		value, ok := doc.Get(field.Name())
		if !ok || value == nil {
			if field.Required() {
				return nil, fmt.Errorf("field %q: %w", field.Name(), domain.ErrMissingRequiredField)
			}
			continue
		}
		if err := field.Accept(v, value); err != nil {
			return nil, err
		}
	}
	if len(v.clauses) == 0 {
		return map[string]any{"match_none": map[string]any{}}, nil
	}
	return map[string]any{
		"bool": map[string]any{
			"should":               v.clauses,
			"minimum_should_match": 1,
		},
	}, nil
}

// fragmentVisitor accumulates one sub-query per visited field.
type fragmentVisitor struct {
	clauses []any
}

func (v *fragmentVisitor) VisitKeyword(f *canonical.KeywordField, value any) error {
	s, ok := value.(string)
	if !ok {
		return typeMismatch(f.Name(), "string", value)
	}
	v.clauses = append(v.clauses, map[string]any{
		"term": map[string]any{
			f.Name(): map[string]any{"value": s, "boost": f.Boost()},
		},
	})
	return nil
}

func (v *fragmentVisitor) VisitText(f *canonical.TextField, value any) error {
	s, ok := value.(string)
	if !ok {
		return typeMismatch(f.Name(), "string", value)
	}
	clause := map[string]any{"query": s, "boost": f.Boost()}
	if !f.ExactMatch() {
		if fz := fuzzinessValue(f.Fuzziness); fz != "" {
			clause["fuzziness"] = fz
		}
	}
	v.clauses = append(v.clauses, map[string]any{
		"match": map[string]any{f.Name(): clause},
	})
	return nil
}

func (v *fragmentVisitor) VisitNumber(f *canonical.NumberField, value any) error {
	origin, ok := numericValue(value)
	if !ok {
		return typeMismatch(f.Name(), "number", value)
	}
	decay := f.Decay
	if decay == nil {
		decay = &canonical.Decay{Decay: 0.5, Offset: "0", Scale: "1"}
	}
	v.clauses = append(v.clauses, map[string]any{
		"function_score": map[string]any{
			"query": map[string]any{"exists": map[string]any{"field": f.Name()}},
			"gauss": map[string]any{
				f.Name(): map[string]any{
					"origin": origin,
					"offset": decay.Offset,
					"scale":  decay.Scale,
					"decay":  decay.Decay,
				},
			},
			"boost": f.Boost(),
		},
	})
	return nil
}

func (v *fragmentVisitor) VisitDate(f *canonical.DateField, value any) error {
	s, ok := value.(string)
	if !ok {
		return typeMismatch(f.Name(), "date string", value)
	}
	return v.distanceFeature(f.Name(), f.Boost(), s, f.Distance, "7d")
}

func (v *fragmentVisitor) VisitLocation(f *canonical.LocationField, value any) error {
	switch value.(type) {
	case string, map[string]any:
		// Accepted origin shapes: "lat,lon" string or {lat, lon} object.
	default:
		return typeMismatch(f.Name(), "geo point", value)
	}
	return v.distanceFeature(f.Name(), f.Boost(), value, f.Distance, "1000m")
}

func (v *fragmentVisitor) VisitBoolean(f *canonical.BooleanField, value any) error {
	b, ok := value.(bool)
	if !ok {
		return typeMismatch(f.Name(), "boolean", value)
	}
	v.clauses = append(v.clauses, map[string]any{
		"term": map[string]any{
			f.Name(): map[string]any{"value": b, "boost": f.Boost()},
		},
	})
	return nil
}

func (v *fragmentVisitor) distanceFeature(
	name string, boost float64, origin any, dist *canonical.Distance, defaultPivot string,
) error {
	pivot := defaultPivot
	if dist != nil && dist.Pivot != "" {
		pivot = dist.Pivot
	}
	v.clauses = append(v.clauses, map[string]any{
		"distance_feature": map[string]any{
			"field":  name,
			"origin": origin,
			"pivot":  pivot,
			"boost":  boost,
		},
	})
	return nil
}

// fuzzinessValue renders configured edit-distance bounds into the backend's
// fuzziness parameter.
func fuzzinessValue(fz *canonical.Fuzziness) string {
	if fz == nil || !fz.Enabled {
		return ""
	}
	if fz.Min != nil && fz.Max != nil {
		return fmt.Sprintf("AUTO:%d,%d", *fz.Min, *fz.Max)
	}
	return "AUTO"
}

func numericValue(value any) (float64, bool) {
	switch n := value.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}

func typeMismatch(property, want string, got any) error {
	return domain.Invalid("property "+property, "expected %s, got %T", want, got)
}
