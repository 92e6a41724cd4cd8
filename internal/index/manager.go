// Package index manages the lifecycle of search indices: idempotent creation
// from mapping rules and a settings template, deletion, and identity tracking
// to detect an index replaced under the same name.
package index

import (
	"bytes"
	"context"
	"fmt"
	"regexp"
	"sync"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/kailas-cloud/matchdex/internal/store"
)

// MappingRule declares one field mapping. A rule with Field set maps a
// concrete property; a rule with Match set becomes a dynamic template
// applied to properties matching the pattern.
type MappingRule struct {
	Field string
	Match string
	// Type is the backend field type (text, keyword, date, geo_point, ...).
	Type string
	// Options carries extra mapping attributes merged into the field body.
	Options map[string]any
}

// Configuration is an immutable named set of mapping rules plus free-form
// settings overrides merged over the settings template.
type Configuration struct {
	Rules    []MappingRule
	Settings map[string]any
	// Recreate drops an existing index before creating it.
	Recreate bool
}

// Manager drives the index lifecycle against one store.
type Manager struct {
	store store.IndexAdmin
	log   *zap.Logger

	// credentials supplies values for template placeholders.
	credentials map[string]string
	// template overrides the embedded primary settings template.
	template []byte

	mu         sync.Mutex
	identities map[string]string // index name -> backend UUID
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the manager's logger.
func WithLogger(log *zap.Logger) Option {
	return func(m *Manager) { m.log = log }
}

// WithCredentials supplies values for credential placeholders in the
// settings template.
func WithCredentials(creds map[string]string) Option {
	return func(m *Manager) { m.credentials = creds }
}

// WithSettingsTemplate replaces the embedded primary settings template.
func WithSettingsTemplate(tmpl []byte) Option {
	return func(m *Manager) { m.template = tmpl }
}

// NewManager creates an index manager over the given store.
func NewManager(s store.IndexAdmin, opts ...Option) *Manager {
	m := &Manager{
		store:      s,
		log:        zap.NewNop(),
		identities: make(map[string]string),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Exists reports whether the index exists. A blank name short-circuits to
// false without a network call.
func (m *Manager) Exists(ctx context.Context, name string) (bool, error) {
	if name == "" {
		return false, nil
	}
	exists, err := m.store.IndexExists(ctx, name)
	if err != nil {
		return false, fmt.Errorf("check index %q: %w", name, err)
	}
	return exists, nil
}

// Create ensures the index exists with the configured mappings and settings.
// An existing index is left untouched unless cfg.Recreate is set.
func (m *Manager) Create(ctx context.Context, name string, cfg Configuration) (bool, error) {
	if name == "" {
		return false, fmt.Errorf("index name is required")
	}

	exists, err := m.Exists(ctx, name)
	if err != nil {
		return false, err
	}
	if exists {
		if !cfg.Recreate {
			m.log.Debug("index already exists", zap.String("index", name))
			return true, nil
		}
		if _, err := m.Delete(ctx, name); err != nil {
			return false, err
		}
	}

	settings, err := m.buildSettings(cfg.Settings)
	if err != nil {
		return false, err
	}
	mappings := buildMappings(cfg.Rules)

	ack, err := m.store.CreateIndex(ctx, name, settings, mappings)
	if err != nil {
		return false, fmt.Errorf("create index %q: %w", name, err)
	}
	m.log.Info("index created", zap.String("index", name), zap.Bool("acknowledged", ack))

	// Record the fresh identity so drift detection starts from this index.
	if meta, metaErr := m.store.IndexMeta(ctx, name); metaErr == nil {
		m.mu.Lock()
		m.identities[name] = meta.UUID
		m.mu.Unlock()
	}
	return ack, nil
}

// Delete removes the index. A missing index reports false without an error.
func (m *Manager) Delete(ctx context.Context, name string) (bool, error) {
	if name == "" {
		return false, nil
	}
	ack, err := m.store.DeleteIndex(ctx, name)
	if err != nil {
		return false, fmt.Errorf("delete index %q: %w", name, err)
	}
	m.mu.Lock()
	delete(m.identities, name)
	m.mu.Unlock()
	return ack, nil
}

// ListIndices returns all index names known to the store.
func (m *Manager) ListIndices(ctx context.Context) ([]string, error) {
	names, err := m.store.ListIndices(ctx)
	if err != nil {
		return nil, fmt.Errorf("list indices: %w", err)
	}
	return names, nil
}

// IdentityChanged reports whether the name now points to a different
// underlying index than last observed, so dependent caches can invalidate.
// The first observation records the identity and reports false.
func (m *Manager) IdentityChanged(ctx context.Context, name string) (bool, error) {
	meta, err := m.store.IndexMeta(ctx, name)
	if err != nil {
		return false, fmt.Errorf("read identity of index %q: %w", name, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	prev, seen := m.identities[name]
	m.identities[name] = meta.UUID
	if !seen {
		return false, nil
	}
	return prev != meta.UUID, nil
}

// buildSettings renders the settings template, dropping credential
// placeholder lines without a configured value, and merges overrides on top.
// A template that fails to parse falls back to the backup template.
func (m *Manager) buildSettings(overrides map[string]any) (map[string]any, error) {
	tmpl := m.template
	if tmpl == nil {
		tmpl = primaryTemplate
	}

	settings, err := parseTemplate(substituteCredentials(tmpl, m.credentials))
	if err != nil {
		m.log.Warn("settings template unusable, falling back to backup template", zap.Error(err))
		settings, err = parseTemplate(substituteCredentials(backupTemplate, m.credentials))
		if err != nil {
			return nil, fmt.Errorf("parse backup settings template: %w", err)
		}
	}

	for k, v := range overrides {
		settings[k] = v
	}
	return settings, nil
}

func parseTemplate(data []byte) (map[string]any, error) {
	var settings map[string]any
	if err := yaml.Unmarshal(data, &settings); err != nil {
		return nil, fmt.Errorf("parse settings template: %w", err)
	}
	return settings, nil
}

var placeholderRegex = regexp.MustCompile(`\{\{([^}]+)\}\}`)

// substituteCredentials replaces {{name}} placeholders with configured
// credential values. A line containing a placeholder with no configured value
// is dropped entirely, not substituted.
func substituteCredentials(tmpl []byte, creds map[string]string) []byte {
	lines := bytes.Split(tmpl, []byte("\n"))
	out := make([][]byte, 0, len(lines))
	for _, line := range lines {
		matches := placeholderRegex.FindAllSubmatch(line, -1)
		keep := true
		for _, match := range matches {
			if _, ok := creds[string(match[1])]; !ok {
				keep = false
				break
			}
		}
		if !keep {
			continue
		}
		if len(matches) > 0 {
			line = placeholderRegex.ReplaceAllFunc(line, func(ph []byte) []byte {
				name := placeholderRegex.FindSubmatch(ph)[1]
				return []byte(creds[string(name)])
			})
		}
		out = append(out, line)
	}
	return bytes.Join(out, []byte("\n"))
}

// buildMappings translates rules into the backend mapping body: concrete
// fields under properties, pattern rules as dynamic templates.
func buildMappings(rules []MappingRule) map[string]any {
	properties := map[string]any{}
	var dynamic []any

	for _, rule := range rules {
		body := map[string]any{}
		if rule.Type != "" {
			body["type"] = rule.Type
		}
		for k, v := range rule.Options {
			body[k] = v
		}

		switch {
		case rule.Field != "":
			properties[rule.Field] = body
		case rule.Match != "":
			name := "rule_" + rule.Match
			dynamic = append(dynamic, map[string]any{
				name: map[string]any{
					"match":   rule.Match,
					"mapping": body,
				},
			})
		}
	}

	mappings := map[string]any{}
	if len(properties) > 0 {
		mappings["properties"] = properties
	}
	if len(dynamic) > 0 {
		mappings["dynamic_templates"] = dynamic
	}
	return mappings
}
