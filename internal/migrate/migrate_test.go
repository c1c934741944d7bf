package migrate

import (
	"context"
	"encoding/json"
	"sort"
	"testing"

	"github.com/hpe-cray/bos/internal/model"
	"github.com/hpe-cray/bos/internal/store"
	"github.com/hpe-cray/bos/pkg/logging"
)

// memStore is a minimal in-memory store.Store, enough to exercise
// migrate's sanitization and version-gating logic without a real
// backend.
type memStore struct {
	docs map[store.Kind]map[string][]byte
}

func newMemStore() *memStore {
	return &memStore{docs: map[store.Kind]map[string][]byte{}}
}

func (m *memStore) bucket(kind store.Kind) map[string][]byte {
	b, ok := m.docs[kind]
	if !ok {
		b = map[string][]byte{}
		m.docs[kind] = b
	}
	return b
}

func (m *memStore) Get(_ context.Context, kind store.Kind, key string) ([]byte, bool, error) {
	doc, ok := m.bucket(kind)[key]
	return doc, ok, nil
}

func (m *memStore) GetMulti(_ context.Context, kind store.Kind, keys []string) (map[string][]byte, error) {
	out := map[string][]byte{}
	for _, k := range keys {
		if doc, ok := m.bucket(kind)[k]; ok {
			out[k] = doc
		}
	}
	return out, nil
}

func (m *memStore) Put(_ context.Context, kind store.Kind, key string, doc []byte) error {
	m.bucket(kind)[key] = doc
	return nil
}

func (m *memStore) Patch(ctx context.Context, kind store.Kind, key string, mutate store.Mutator) error {
	b := m.bucket(kind)
	before, exists := b[key]
	after, err := mutate(before, exists)
	if err != nil {
		return err
	}
	if after == nil {
		delete(b, key)
		return nil
	}
	b[key] = after
	return nil
}

func (m *memStore) Delete(_ context.Context, kind store.Kind, key string) error {
	delete(m.bucket(kind), key)
	return nil
}

func (m *memStore) ListKeys(_ context.Context, kind store.Kind, prefix string) ([]string, error) {
	var keys []string
	for k := range m.bucket(kind) {
		if len(k) >= len(prefix) && k[:len(prefix)] == prefix {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

func (m *memStore) Scan(_ context.Context, kind store.Kind, pred store.Predicate, pageSize int, _ string) (store.Page, error) {
	var keys []string
	for k := range m.bucket(kind) {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var records [][]byte
	for _, k := range keys {
		doc := m.bucket(kind)[k]
		ok, err := pred(doc)
		if err != nil {
			return store.Page{}, err
		}
		if ok {
			records = append(records, doc)
		}
	}
	return store.Page{Records: records}, nil
}

func (m *memStore) Close() error { return nil }

func mustJSON(t *testing.T, v interface{}) []byte {
	t.Helper()
	doc, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return doc
}

func TestRunSanitizesInvalidComponentsAndSessions(t *testing.T) {
	s := newMemStore()
	ctx := context.Background()

	good := model.Component{ID: "x1", Tenant: "", Status: model.Status{Phase: model.PhaseNone, Status: model.StatusStable}}
	bad := model.Component{ID: "x2", Tenant: "", Status: model.Status{Phase: "bogus", Status: model.StatusStable}}
	s.Put(ctx, store.KindComponents, store.Key(good.Tenant, good.ID), mustJSON(t, good))
	s.Put(ctx, store.KindComponents, store.Key(bad.Tenant, bad.ID), mustJSON(t, bad))

	goodSession := model.Session{Name: "boot-1", Tenant: "", Status: model.SessionStatus{Status: model.SessionPending}}
	badSession := model.Session{Name: "boot-2", Tenant: "", Status: model.SessionStatus{Status: "bogus"}}
	s.Put(ctx, store.KindSessions, store.Key(goodSession.Tenant, goodSession.Name), mustJSON(t, goodSession))
	s.Put(ctx, store.KindSessions, store.Key(badSession.Tenant, badSession.Name), mustJSON(t, badSession))

	// Seed the store as if it were written by the immediately prior
	// schema so Run actually sanitizes rather than treating it as fresh.
	s.Put(ctx, store.KindOptions, schemaVersionKey, mustJSON(t, schemaVersionRecord{Version: CurrentSchemaVersion - 1}))

	log := logging.Default("migrate-test")
	if err := Run(ctx, s, log); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if _, found, _ := s.Get(ctx, store.KindComponents, store.Key(good.Tenant, good.ID)); !found {
		t.Error("good component was deleted")
	}
	if _, found, _ := s.Get(ctx, store.KindComponents, store.Key(bad.Tenant, bad.ID)); found {
		t.Error("component with invalid phase survived sanitization")
	}
	if _, found, _ := s.Get(ctx, store.KindSessions, store.Key(goodSession.Tenant, goodSession.Name)); !found {
		t.Error("good session was deleted")
	}
	if _, found, _ := s.Get(ctx, store.KindSessions, store.Key(badSession.Tenant, badSession.Name)); found {
		t.Error("session with invalid phase survived sanitization")
	}

	version, err := readSchemaVersion(ctx, s)
	if err != nil {
		t.Fatalf("readSchemaVersion() error = %v", err)
	}
	if version != CurrentSchemaVersion {
		t.Errorf("schema version = %d, want %d", version, CurrentSchemaVersion)
	}
}

func TestRunRejectsIncompatibleSchema(t *testing.T) {
	s := newMemStore()
	ctx := context.Background()
	s.Put(ctx, store.KindOptions, schemaVersionKey, mustJSON(t, schemaVersionRecord{Version: CurrentSchemaVersion - 5}))

	log := logging.Default("migrate-test")
	err := Run(ctx, s, log)
	if err == nil {
		t.Fatal("Run() error = nil, want ErrIncompatibleSchema")
	}
}

func TestRunOnFreshStoreStampsCurrentVersion(t *testing.T) {
	s := newMemStore()
	ctx := context.Background()

	log := logging.Default("migrate-test")
	if err := Run(ctx, s, log); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	version, err := readSchemaVersion(ctx, s)
	if err != nil {
		t.Fatalf("readSchemaVersion() error = %v", err)
	}
	if version != CurrentSchemaVersion {
		t.Errorf("schema version = %d, want %d", version, CurrentSchemaVersion)
	}
}

func TestRunIsIdempotentAtCurrentVersion(t *testing.T) {
	s := newMemStore()
	ctx := context.Background()
	s.Put(ctx, store.KindOptions, schemaVersionKey, mustJSON(t, schemaVersionRecord{Version: CurrentSchemaVersion}))

	c := model.Component{ID: "x1", Status: model.Status{Phase: model.PhaseNone, Status: model.StatusStable}}
	s.Put(ctx, store.KindComponents, store.Key("", c.ID), mustJSON(t, c))

	log := logging.Default("migrate-test")
	if err := Run(ctx, s, log); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if _, found, _ := s.Get(ctx, store.KindComponents, store.Key("", c.ID)); !found {
		t.Error("component was touched at current schema version")
	}
}
