package catalogimport

import (
	"context"
	"os"
	"strings"

	"github.com/mmdatafocus/catalog_backend/models"
)

// DatabaseCatalog persists through the models package. The business comes from ctx.
type DatabaseCatalog struct{}

func (DatabaseCatalog) ListCategories(ctx context.Context) ([]CatalogEntry, error) {
	areas, err := models.GetAreas(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]CatalogEntry, 0, len(areas))
	for _, a := range areas {
		out = append(out, CatalogEntry{ID: a.ID, Code: a.Code, Name: a.Name})
	}
	return out, nil
}

func (DatabaseCatalog) ListConcepts(ctx context.Context) ([]CatalogEntry, error) {
	concepts, err := models.GetConcepts(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]CatalogEntry, 0, len(concepts))
	for _, c := range concepts {
		out = append(out, CatalogEntry{ID: c.ID, Code: c.Code})
	}
	return out, nil
}

func (DatabaseCatalog) CreateCategory(ctx context.Context, input NewCategory) (CatalogEntry, error) {
	area, err := models.CreateArea(ctx, &models.NewArea{
		Code:         input.Code,
		Name:         input.Name,
		ParentAreaId: input.ParentID,
		IsInferred:   input.Inferred,
	})
	if err != nil {
		return CatalogEntry{}, err
	}
	return CatalogEntry{ID: area.ID, Code: area.Code, Name: area.Name}, nil
}

func (DatabaseCatalog) CreateConcept(ctx context.Context, input NewConcept) (CatalogEntry, error) {
	concept, err := models.CreateConcept(ctx, &models.NewConcept{
		Code:        input.Code,
		Description: input.Description,
		Unit:        input.Unit,
		Type:        input.Type,
		Percentage:  input.Percentage,
		UnitPrice:   input.Price,
		AreaId:      input.CategoryID,
	})
	if err != nil {
		return CatalogEntry{}, err
	}
	return CatalogEntry{ID: concept.ID, Code: concept.Code}, nil
}

// ServiceFromEnv picks the catalog back-end.
// CATALOG_BACKEND=remote uses the HTTP catalog API, anything else the database.
func ServiceFromEnv() (CatalogService, error) {
	if strings.EqualFold(strings.TrimSpace(os.Getenv("CATALOG_BACKEND")), "remote") {
		return NewRemoteCatalogFromEnv()
	}
	return DatabaseCatalog{}, nil
}
