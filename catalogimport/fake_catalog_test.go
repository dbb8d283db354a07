package catalogimport

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// fakeCatalog is an in-memory CatalogService that records every create call.
type fakeCatalog struct {
	mu         sync.Mutex
	nextID     int
	categories map[string]CatalogEntry
	concepts   map[string]CatalogEntry
	parents    map[string]int
	calls      []string
	failCodes  map[string]bool
	listErr    error
	onCreate   func(code string)
}

func newFakeCatalog() *fakeCatalog {
	return &fakeCatalog{
		categories: make(map[string]CatalogEntry),
		concepts:   make(map[string]CatalogEntry),
		parents:    make(map[string]int),
		failCodes:  make(map[string]bool),
	}
}

func (f *fakeCatalog) seedCategory(code, name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	f.categories[code] = CatalogEntry{ID: f.nextID, Code: code, Name: name}
	return f.nextID
}

func (f *fakeCatalog) seedConcept(code string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	f.concepts[code] = CatalogEntry{ID: f.nextID, Code: code}
	return f.nextID
}

func (f *fakeCatalog) ListCategories(ctx context.Context) ([]CatalogEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	out := make([]CatalogEntry, 0, len(f.categories))
	for _, c := range f.categories {
		out = append(out, c)
	}
	return out, nil
}

func (f *fakeCatalog) ListConcepts(ctx context.Context) ([]CatalogEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]CatalogEntry, 0, len(f.concepts))
	for _, c := range f.concepts {
		out = append(out, c)
	}
	return out, nil
}

func (f *fakeCatalog) CreateCategory(ctx context.Context, input NewCategory) (CatalogEntry, error) {
	if f.onCreate != nil {
		f.onCreate(input.Code)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "category:"+input.Code)
	if f.failCodes[input.Code] {
		return CatalogEntry{}, errors.New("boom")
	}
	if _, ok := f.categories[input.Code]; ok {
		return CatalogEntry{}, fmt.Errorf("category %s exists", input.Code)
	}
	f.nextID++
	entry := CatalogEntry{ID: f.nextID, Code: input.Code, Name: input.Name}
	f.categories[input.Code] = entry
	f.parents[input.Code] = input.ParentID
	return entry, nil
}

func (f *fakeCatalog) CreateConcept(ctx context.Context, input NewConcept) (CatalogEntry, error) {
	if f.onCreate != nil {
		f.onCreate(input.Code)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "concept:"+input.Code)
	if f.failCodes[input.Code] {
		return CatalogEntry{}, errors.New("boom")
	}
	if _, ok := f.concepts[input.Code]; ok {
		return CatalogEntry{}, fmt.Errorf("concept %s exists", input.Code)
	}
	f.nextID++
	entry := CatalogEntry{ID: f.nextID, Code: input.Code}
	f.concepts[input.Code] = entry
	f.parents[input.Code] = input.CategoryID
	return entry, nil
}
