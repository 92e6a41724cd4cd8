package search

import (
	opts "github.com/kailas-cloud/matchdex/internal/domain/search"
)

// Field groups the type filter matches against.
var (
	entityTypeFields     = []string{"entityType"}
	identifierTypeFields = []string{"identifiers.type"}
)

// Query is one executable search query: its rendered DSL body plus the
// original text echoed back in results.
type Query struct {
	Text string
	body map[string]any
}

// Body returns the query DSL fragment.
func (q Query) Body() map[string]any { return q.body }

// FreeText builds a query-string query over all fields.
func FreeText(text string) Query {
	return Query{
		Text: text,
		body: map[string]any{
			"query_string": map[string]any{
				"query":            text,
				"default_operator": "AND",
			},
		},
	}
}

// Terms builds a multi-field terms match.
func Terms(text string, fields ...string) Query {
	return Query{
		Text: text,
		body: map[string]any{
			"multi_match": map[string]any{
				"query":  text,
				"fields": fields,
			},
		},
	}
}

// Phrase builds a multi-field phrase match.
func Phrase(text string, fields ...string) Query {
	return Query{
		Text: text,
		body: map[string]any{
			"multi_match": map[string]any{
				"query":  text,
				"type":   "phrase",
				"fields": fields,
			},
		},
	}
}

// TypeAhead builds a phrase-prefix match over name-like fields, for
// incremental lookup while the user types.
func TypeAhead(text string, fields ...string) Query {
	if len(fields) == 0 {
		fields = []string{"name", "name.*"}
	}
	return Query{
		Text: text,
		body: map[string]any{
			"multi_match": map[string]any{
				"query":  text,
				"type":   "phrase_prefix",
				"fields": fields,
			},
		},
	}
}

// EntityStates builds a multi-field match restricted to entities carrying a
// state flag.
func EntityStates(text string, fields ...string) Query {
	return Query{
		Text: text,
		body: map[string]any{
			"bool": map[string]any{
				"must": []any{
					map[string]any{
						"multi_match": map[string]any{
							"query":  text,
							"fields": fields,
						},
					},
				},
				"filter": []any{
					map[string]any{"term": map[string]any{"hasState": true}},
				},
			},
		},
	}
}

// Raw wraps an already-compiled DSL fragment, for callers holding a query
// produced elsewhere.
func Raw(text string, body map[string]any) Query {
	return Query{Text: text, body: body}
}

// withTypeFilter wraps the query body with a required phrase-match filter
// over the type keyword fields selected by the filter mode.
func withTypeFilter(body map[string]any, filter *opts.TypeFilter) map[string]any {
	if filter == nil || filter.Type == "" {
		return body
	}

	var fields []string
	switch filter.Mode {
	case opts.TypeFilterEntity:
		fields = entityTypeFields
	case opts.TypeFilterIdentifier:
		fields = identifierTypeFields
	case opts.TypeFilterBoth:
		fields = append(append([]string{}, entityTypeFields...), identifierTypeFields...)
	}

	return map[string]any{
		"bool": map[string]any{
			"must": []any{body},
			"filter": []any{
				map[string]any{
					"multi_match": map[string]any{
						"query":  filter.Type,
						"type":   "phrase",
						"fields": fields,
					},
				},
			},
		},
	}
}
