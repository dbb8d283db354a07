package catalogimport

import "context"

// PreviewCatalog lists from the wrapped service but never writes to it.
// Creates succeed with negative placeholder ids.
type PreviewCatalog struct {
	CatalogService
	nextID int
}

func NewPreviewCatalog(svc CatalogService) *PreviewCatalog {
	return &PreviewCatalog{CatalogService: svc}
}

func (p *PreviewCatalog) CreateCategory(ctx context.Context, input NewCategory) (CatalogEntry, error) {
	p.nextID--
	return CatalogEntry{ID: p.nextID, Code: input.Code, Name: input.Name}, nil
}

func (p *PreviewCatalog) CreateConcept(ctx context.Context, input NewConcept) (CatalogEntry, error) {
	p.nextID--
	return CatalogEntry{ID: p.nextID, Code: input.Code}, nil
}
