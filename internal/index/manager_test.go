package index

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/kailas-cloud/matchdex/internal/store"
)

// fakeAdmin is a hand-rolled store.IndexAdmin recording calls.
type fakeAdmin struct {
	existing map[string]bool
	uuids    map[string]string

	createCalls []string
	deleteCalls []string
	existsCalls []string

	createdSettings map[string]any
	createdMappings map[string]any

	failExists error
	failCreate error
}

func newFakeAdmin() *fakeAdmin {
	return &fakeAdmin{
		existing: map[string]bool{},
		uuids:    map[string]string{},
	}
}

func (f *fakeAdmin) CreateIndex(_ context.Context, name string, settings, mappings map[string]any) (bool, error) {
	f.createCalls = append(f.createCalls, name)
	if f.failCreate != nil {
		return false, f.failCreate
	}
	f.existing[name] = true
	f.createdSettings = settings
	f.createdMappings = mappings
	return true, nil
}

func (f *fakeAdmin) DeleteIndex(_ context.Context, name string) (bool, error) {
	f.deleteCalls = append(f.deleteCalls, name)
	existed := f.existing[name]
	delete(f.existing, name)
	return existed, nil
}

func (f *fakeAdmin) IndexExists(_ context.Context, name string) (bool, error) {
	f.existsCalls = append(f.existsCalls, name)
	if f.failExists != nil {
		return false, f.failExists
	}
	return f.existing[name], nil
}

func (f *fakeAdmin) ListIndices(_ context.Context) ([]string, error) {
	names := make([]string, 0, len(f.existing))
	for name := range f.existing {
		names = append(names, name)
	}
	return names, nil
}

func (f *fakeAdmin) IndexMeta(_ context.Context, name string) (*store.IndexMeta, error) {
	if !f.existing[name] {
		return nil, store.ErrNotFound
	}
	return &store.IndexMeta{Name: name, UUID: f.uuids[name]}, nil
}

func (f *fakeAdmin) Flush(_ context.Context, _ string) error      { return nil }
func (f *fakeAdmin) ForceMerge(_ context.Context, _ string) error { return nil }

func TestExistsBlankNameSkipsNetworkCall(t *testing.T) {
	admin := newFakeAdmin()
	m := NewManager(admin)

	exists, err := m.Exists(context.Background(), "")
	if err != nil {
		t.Fatalf("Exists: %v", err)
	}
	if exists {
		t.Error("blank name must report false")
	}
	if len(admin.existsCalls) != 0 {
		t.Error("blank name must not hit the store")
	}
}

func TestCreateIsIdempotent(t *testing.T) {
	admin := newFakeAdmin()
	admin.existing["people"] = true
	admin.uuids["people"] = "u1"
	m := NewManager(admin)

	ok, err := m.Create(context.Background(), "people", Configuration{})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if !ok {
		t.Error("creating an existing index must report success")
	}
	if len(admin.createCalls) != 0 {
		t.Error("existing index must not be recreated")
	}
}

func TestCreateRecreateDropsFirst(t *testing.T) {
	admin := newFakeAdmin()
	admin.existing["people"] = true
	admin.uuids["people"] = "u1"
	m := NewManager(admin)

	ok, err := m.Create(context.Background(), "people", Configuration{Recreate: true})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if !ok {
		t.Error("recreate must report success")
	}
	if len(admin.deleteCalls) != 1 || len(admin.createCalls) != 1 {
		t.Errorf("expected delete then create, got deletes=%v creates=%v",
			admin.deleteCalls, admin.createCalls)
	}
}

func TestCreateBuildsMappingsFromRules(t *testing.T) {
	admin := newFakeAdmin()
	m := NewManager(admin)

	cfg := Configuration{
		Rules: []MappingRule{
			{Field: "name", Type: "text", Options: map[string]any{"analyzer": "default_text"}},
			{Field: "location", Type: "geo_point"},
			{Match: "*_id", Type: "keyword"},
		},
		Settings: map[string]any{"custom": true},
	}
	if _, err := m.Create(context.Background(), "people", cfg); err != nil {
		t.Fatalf("Create: %v", err)
	}

	props, ok := admin.createdMappings["properties"].(map[string]any)
	if !ok {
		t.Fatalf("mappings missing properties: %v", admin.createdMappings)
	}
	name, _ := props["name"].(map[string]any)
	if name["type"] != "text" || name["analyzer"] != "default_text" {
		t.Errorf("name mapping = %v", name)
	}
	if _, ok := admin.createdMappings["dynamic_templates"]; !ok {
		t.Error("pattern rule must become a dynamic template")
	}
	if admin.createdSettings["custom"] != true {
		t.Error("settings overrides must merge over the template")
	}
	if _, ok := admin.createdSettings["index"]; !ok {
		t.Error("template settings must be present")
	}
}

func TestCreateExistsFailurePropagates(t *testing.T) {
	admin := newFakeAdmin()
	admin.failExists = &store.TransportError{Op: store.OpIndexExists, Err: errors.New("down")}
	m := NewManager(admin)

	if _, err := m.Create(context.Background(), "people", Configuration{}); err == nil {
		t.Fatal("expected error when existence check fails")
	}
	if len(admin.createCalls) != 0 {
		t.Error("create must not proceed after a failed existence check")
	}
}

func TestIdentityChangeDetection(t *testing.T) {
	admin := newFakeAdmin()
	admin.existing["people"] = true
	admin.uuids["people"] = "u1"
	m := NewManager(admin)

	ctx := context.Background()
	changed, err := m.IdentityChanged(ctx, "people")
	if err != nil {
		t.Fatalf("IdentityChanged: %v", err)
	}
	if changed {
		t.Error("first observation must not report a change")
	}

	changed, _ = m.IdentityChanged(ctx, "people")
	if changed {
		t.Error("stable identity must not report a change")
	}

	// Drop and recreate under the same name.
	admin.uuids["people"] = "u2"
	changed, _ = m.IdentityChanged(ctx, "people")
	if !changed {
		t.Error("replaced index must report an identity change")
	}
}

func TestSubstituteCredentialsDropsUnresolvedLines(t *testing.T) {
	tmpl := []byte("a: 1\nuser: \"{{synonyms_username}}\"\npass: \"{{synonyms_password}}\"\nb: 2")

	out := string(substituteCredentials(tmpl, map[string]string{"synonyms_username": "svc"}))

	if !strings.Contains(out, `user: "svc"`) {
		t.Errorf("configured placeholder must substitute: %q", out)
	}
	if strings.Contains(out, "pass:") {
		t.Errorf("unresolved placeholder line must drop entirely: %q", out)
	}
	if !strings.Contains(out, "a: 1") || !strings.Contains(out, "b: 2") {
		t.Errorf("plain lines must survive: %q", out)
	}
}

func TestBuildSettingsFallsBackToBackupTemplate(t *testing.T) {
	admin := newFakeAdmin()
	m := NewManager(admin, WithSettingsTemplate([]byte("not: [valid: yaml")))

	settings, err := m.buildSettings(nil)
	if err != nil {
		t.Fatalf("buildSettings: %v", err)
	}
	analysis, ok := settings["analysis"].(map[string]any)
	if !ok {
		t.Fatalf("backup template must provide analysis settings: %v", settings)
	}
	if _, ok := analysis["filter"]; ok {
		t.Error("backup template must not carry the synonym filter")
	}
}

func TestPrimaryTemplateWithoutCredentialsParses(t *testing.T) {
	settings, err := parseTemplate(substituteCredentials(primaryTemplate, nil))
	if err != nil {
		t.Fatalf("primary template with dropped credential lines must stay parseable: %v", err)
	}
	if _, ok := settings["analysis"]; !ok {
		t.Error("analysis section missing")
	}
}
