// Package resolver finds entities similar to candidate documents by staging
// them into the target index as marked temporary documents, compiling one
// similarity query per candidate from its canonical type configuration, and
// cleaning the staged documents up afterwards.
package resolver

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kailas-cloud/matchdex/internal/domain"
	"github.com/kailas-cloud/matchdex/internal/domain/bulk"
	"github.com/kailas-cloud/matchdex/internal/domain/canonical"
	"github.com/kailas-cloud/matchdex/internal/domain/document"
	"github.com/kailas-cloud/matchdex/internal/domain/model"
	opts "github.com/kailas-cloud/matchdex/internal/domain/search"
	"github.com/kailas-cloud/matchdex/internal/indexer"
	"github.com/kailas-cloud/matchdex/internal/query"
	"github.com/kailas-cloud/matchdex/internal/retry"
	"github.com/kailas-cloud/matchdex/internal/store"
)

// InputMarker is the reserved document property distinguishing staged input
// documents from persisted entities.
const InputMarker = "inputDocument"

// Backend is the store surface the resolver needs: document writes for
// staging and search for querying.
type Backend interface {
	indexer.Backend
	store.Searcher
}

// Candidate is one input document to resolve. An empty ID is assigned a
// temporary identifier so results stay addressable.
type Candidate struct {
	ID       string
	Type     string
	Document document.Document
}

// Match is one ranked similar entity.
type Match struct {
	ID       string
	Score    float64
	Document document.Document
}

// Result carries the matches for one candidate, addressable by its
// (possibly auto-assigned) source ID.
type Result struct {
	SourceID string
	Matches  []Match
}

// Options tunes one similarity request.
type Options struct {
	// MaxResults caps the matches per candidate.
	MaxResults int
	// MinScore drops matches below the threshold.
	MinScore float64
	// WithinInput lets staged input documents match each other. A candidate
	// never matches itself.
	WithinInput bool
	// Override replaces the stored canonical type configuration for this
	// one call; a different target index in the override redirects the
	// search.
	Override string
	// Scorer names a weight set defined by the candidate type's model.
	// Fields carrying a weight multiply the match score when present.
	Scorer string
	// Security redacts matched documents when non-nil.
	Security opts.SecurityContext
}

// Resolver orchestrates staging, querying, and cleanup.
type Resolver struct {
	backend      Backend
	registry     *canonical.Registry
	defaultIndex string
	models       map[string]model.FullModel
	dataPolicy   retry.Policy
	log          *zap.Logger
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithLogger sets the resolver's logger.
func WithLogger(log *zap.Logger) Option {
	return func(r *Resolver) { r.log = log }
}

// WithDataPolicy overrides the retry policy used for staging and cleanup.
func WithDataPolicy(p retry.Policy) Option {
	return func(r *Resolver) { r.dataPolicy = p }
}

// WithModels binds resolver models. A model routes its entity type to a
// target index (taking precedence over the type configuration's index) and
// supplies the named scorer weight sets selectable per call.
func WithModels(models ...model.FullModel) Option {
	return func(r *Resolver) {
		for _, m := range models {
			r.models[m.Model.Type] = m
		}
	}
}

// New creates a resolver. defaultIndex serves types whose configuration
// names no index.
func New(backend Backend, registry *canonical.Registry, defaultIndex string, options ...Option) *Resolver {
	r := &Resolver{
		backend:      backend,
		registry:     registry,
		defaultIndex: defaultIndex,
		models:       make(map[string]model.FullModel),
		dataPolicy:   retry.DataPolicy(),
		log:          zap.NewNop(),
	}
	for _, opt := range options {
		opt(r)
	}
	return r
}

// staged is one candidate prepared for temporary indexing.
type staged struct {
	id  string
	doc map[string]any
}

// FindSimilar resolves every candidate, returning one result per candidate
// in input order. Configuration, staging, and query failures fail the whole
// call; cleanup failures are logged and swallowed.
func (r *Resolver) FindSimilar(ctx context.Context, candidates []Candidate, o Options) ([]Result, error) {
	if len(candidates) == 0 {
		return nil, nil
	}
	if o.MaxResults <= 0 {
		o.MaxResults = 10
	}

	configs, index, err := r.resolveConfigs(candidates, o.Override)
	if err != nil {
		return nil, err
	}

	// Compile before staging so an invalid candidate never leaves temporary
	// documents behind.
	queries := make([]map[string]any, len(candidates))
	for i, cand := range candidates {
		q, err := query.Compile(configs[cand.Type], cand.Document)
		if err != nil {
			return nil, fmt.Errorf("candidate %d: %w", i, err)
		}
		if o.Scorer != "" {
			s, err := r.scorerFor(cand.Type, o.Scorer)
			if err != nil {
				return nil, err
			}
			q = applyScorer(q, s)
		}
		queries[i] = q
	}

	stagedDocs, ids := r.stage(candidates)
	if err := r.indexStaged(ctx, index, stagedDocs); err != nil {
		return nil, err
	}
	defer r.cleanup(ctx, index, stagedDocs)

	results := make([]Result, 0, len(candidates))
	for i := range candidates {
		matches, err := r.queryMatches(ctx, index, ids[i], queries[i], o)
		if err != nil {
			return nil, fmt.Errorf("candidate %s: %w", ids[i], err)
		}
		results = append(results, Result{SourceID: ids[i], Matches: matches})
	}
	return results, nil
}

// resolveConfigs looks up or parses the configuration for every candidate
// type and picks the target index. An override applies to all candidates of
// the call and may redirect the index; otherwise a bound model's index wins
// over the type configuration's.
func (r *Resolver) resolveConfigs(
	candidates []Candidate, override string,
) (map[string]*canonical.TypeConfiguration, string, error) {
	configs := map[string]*canonical.TypeConfiguration{}
	index := r.defaultIndex

	if override != "" {
		cfg, err := canonical.ParseString(override)
		if err != nil {
			return nil, "", err
		}
		if cfg.Index() != "" {
			index = cfg.Index()
		}
		for _, cand := range candidates {
			configs[cand.Type] = cfg
		}
		return configs, index, nil
	}

	for _, cand := range candidates {
		if _, ok := configs[cand.Type]; ok {
			continue
		}
		cfg, err := r.registry.Lookup(cand.Type)
		if err != nil {
			return nil, "", err
		}
		configs[cand.Type] = cfg
		if cfg.Index() != "" {
			index = cfg.Index()
		}
		if m, ok := r.models[cand.Type]; ok && m.Model.Index != "" {
			index = m.Model.Index
		}
	}
	return configs, index, nil
}

// scorerFor resolves a named weight set from the type's bound model.
func (r *Resolver) scorerFor(typ, name string) (model.Scorer, error) {
	m, ok := r.models[typ]
	if !ok {
		return model.Scorer{}, domain.Invalid("scorer "+name, "no model bound for type %q", typ)
	}
	for _, s := range m.Scorers {
		if s.Name == name {
			return s, nil
		}
	}
	return model.Scorer{}, domain.Invalid("scorer "+name, "not defined by model %q", m.Model.Name)
}

// applyScorer wraps the compiled query so each weighted field that is
// present on a matched entity multiplies its score by the field's weight.
func applyScorer(compiled map[string]any, s model.Scorer) map[string]any {
	if len(s.Weights) == 0 {
		return compiled
	}
	fields := make([]string, 0, len(s.Weights))
	for f := range s.Weights {
		fields = append(fields, f)
	}
	sort.Strings(fields)

	functions := make([]any, 0, len(fields))
	for _, f := range fields {
		functions = append(functions, map[string]any{
			"filter": map[string]any{"exists": map[string]any{"field": f}},
			"weight": s.Weights[f],
		})
	}
	return map[string]any{
		"function_score": map[string]any{
			"query":      compiled,
			"functions":  functions,
			"score_mode": "sum",
			"boost_mode": "multiply",
		},
	}
}

// stage assigns identifiers and marks each candidate document as input.
func (r *Resolver) stage(candidates []Candidate) ([]staged, []string) {
	docs := make([]staged, 0, len(candidates))
	ids := make([]string, 0, len(candidates))
	for _, cand := range candidates {
		id := cand.ID
		if id == "" {
			id = uuid.NewString()
		}
		doc := cand.Document.Copy()
		_ = doc.Set(InputMarker, true)
		docs = append(docs, staged{id: id, doc: doc.Map()})
		ids = append(ids, id)
	}
	return docs, ids
}

func (r *Resolver) indexStaged(ctx context.Context, index string, docs []staged) error {
	ix := r.stagingIndexer(index)
	results, err := ix.BulkIndex(ctx, docs)
	if err != nil {
		return fmt.Errorf("stage candidates: %w", err)
	}
	for _, res := range results {
		if !res.Success {
			return fmt.Errorf("stage candidate %s: %s", res.Item.id, res.Reason)
		}
	}
	if err := ix.Flush(ctx, false); err != nil {
		return fmt.Errorf("stage candidates: %w", err)
	}
	return nil
}

// queryMatches runs one candidate's similarity query: capped, thresholded,
// and excluding staged input unless intra-batch matching is requested. The
// candidate itself never matches.
func (r *Resolver) queryMatches(
	ctx context.Context, index, sourceID string, compiled map[string]any, o Options,
) ([]Match, error) {
	var exclusion any
	if o.WithinInput {
		exclusion = map[string]any{"ids": map[string]any{"values": []string{sourceID}}}
	} else {
		exclusion = map[string]any{"term": map[string]any{InputMarker: true}}
	}
	body := map[string]any{
		"bool": map[string]any{
			"must":     []any{compiled},
			"must_not": []any{exclusion},
		},
	}

	resp, err := r.backend.Search(ctx, index, &store.SearchRequest{
		Query:    body,
		Size:     o.MaxResults,
		MinScore: o.MinScore,
		Sort: []store.SortField{
			{Field: "_score", Ascending: false},
			{Field: "_doc", Ascending: true},
		},
	})
	if err != nil {
		return nil, err
	}

	matches := make([]Match, 0, len(resp.Hits))
	for _, hit := range resp.Hits {
		doc := document.FromMap(hit.Source)
		if o.Security != nil {
			redacted, allowed := o.Security.Redact(hit.ID, doc)
			if !allowed {
				continue
			}
			doc = redacted
		}
		matches = append(matches, Match{ID: hit.ID, Score: hit.Score, Document: doc})
	}
	return matches, nil
}

// cleanup removes the staged documents. Best effort: failures are logged
// and never alter the computed results.
func (r *Resolver) cleanup(ctx context.Context, index string, docs []staged) {
	ix := r.stagingIndexer(index)
	results, err := ix.BulkDeleteDocuments(ctx, docs)
	if err != nil {
		r.log.Warn("failed to clean up staged documents",
			zap.String("index", index), zap.Error(err))
		return
	}
	if !bulk.AllSuccessful(results) {
		for _, res := range results {
			if !res.Success {
				r.log.Warn("staged document not cleaned up",
					zap.String("index", index),
					zap.String("id", res.Item.id),
					zap.String("reason", res.Reason))
			}
		}
	}
}

func (r *Resolver) stagingIndexer(index string) *indexer.Indexer[staged] {
	return indexer.New(r.backend, index,
		func(s staged) string { return s.id },
		func(s staged) (map[string]any, error) { return s.doc, nil },
		indexer.WithPolicies[staged](r.dataPolicy, retry.FlushPolicy()),
		indexer.WithLogger[staged](r.log),
	)
}
