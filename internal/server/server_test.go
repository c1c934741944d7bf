package server

import (
	"context"
	"sort"

	"github.com/hpe-cray/bos/internal/store"
)

// fakeStore is a minimal in-memory store.Store for exercising handlers
// without a real backend.
type fakeStore struct {
	docs map[store.Kind]map[string][]byte
}

func newFakeStore() *fakeStore {
	return &fakeStore{docs: map[store.Kind]map[string][]byte{}}
}

func (f *fakeStore) bucket(kind store.Kind) map[string][]byte {
	b, ok := f.docs[kind]
	if !ok {
		b = map[string][]byte{}
		f.docs[kind] = b
	}
	return b
}

func (f *fakeStore) Get(_ context.Context, kind store.Kind, key string) ([]byte, bool, error) {
	doc, ok := f.bucket(kind)[key]
	return doc, ok, nil
}

func (f *fakeStore) GetMulti(_ context.Context, kind store.Kind, keys []string) (map[string][]byte, error) {
	out := map[string][]byte{}
	for _, k := range keys {
		if doc, ok := f.bucket(kind)[k]; ok {
			out[k] = doc
		}
	}
	return out, nil
}

func (f *fakeStore) Put(_ context.Context, kind store.Kind, key string, doc []byte) error {
	f.bucket(kind)[key] = doc
	return nil
}

func (f *fakeStore) Patch(_ context.Context, kind store.Kind, key string, mutate store.Mutator) error {
	b := f.bucket(kind)
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

func (f *fakeStore) Delete(_ context.Context, kind store.Kind, key string) error {
	delete(f.bucket(kind), key)
	return nil
}

func (f *fakeStore) ListKeys(_ context.Context, kind store.Kind, prefix string) ([]string, error) {
	var keys []string
	for k := range f.bucket(kind) {
		if len(k) >= len(prefix) && k[:len(prefix)] == prefix {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

func (f *fakeStore) Scan(_ context.Context, kind store.Kind, pred store.Predicate, pageSize int, _ string) (store.Page, error) {
	var keys []string
	for k := range f.bucket(kind) {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var records [][]byte
	for _, k := range keys {
		doc := f.bucket(kind)[k]
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

func (f *fakeStore) Close() error { return nil }

func newTestHandler() (*Handler, error) {
	return NewHandler(Config{Store: newFakeStore()})
}
