package postgres

import (
	"context"
	"fmt"
	"sync"
)

// fakeStore is an in-memory Store that counts schema lookups.
type fakeStore struct {
	mu          sync.Mutex
	tables      map[string][]Column
	order       []string
	schemaCalls int

	queryRows []map[string]any
	queryErr  error
	lastSQL   string
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		tables: map[string][]Column{
			"orders": {{Name: "id", DataType: "integer"}, {Name: "total", DataType: "numeric"}},
			"users":  {{Name: "id", DataType: "integer"}, {Name: "email", DataType: "text"}},
		},
		order: []string{"orders", "users"},
	}
}

func (f *fakeStore) Tables(context.Context) ([]string, error) {
	return append([]string(nil), f.order...), nil
}

func (f *fakeStore) TableSchema(_ context.Context, table string) ([]Column, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.schemaCalls++
	cols, ok := f.tables[table]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrTableNotFound, table)
	}
	return cols, nil
}

func (f *fakeStore) Query(_ context.Context, sql string) ([]map[string]any, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastSQL = sql
	return f.queryRows, f.queryErr
}

func (f *fakeStore) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.schemaCalls
}
