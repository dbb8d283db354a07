package catalogimport

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

var ErrCatalogUnavailable = errors.New("catalog listing unavailable")

type CatalogEntry struct {
	ID   int    `json:"id"`
	Code string `json:"code"`
	Name string `json:"name,omitempty"`
}

type NewCategory struct {
	Code     string `json:"code"`
	Name     string `json:"name"`
	ParentID int    `json:"parentId"`
	Level    int    `json:"level"`
	Inferred bool   `json:"inferred"`
}

type NewConcept struct {
	Code        string          `json:"code"`
	Description string          `json:"description"`
	Unit        string          `json:"unit"`
	Type        string          `json:"type"`
	Percentage  decimal.Decimal `json:"percentage"`
	Price       decimal.Decimal `json:"price"`
	CategoryID  int             `json:"categoryId"`
}

// CatalogService is the store the import reconciles against.
type CatalogService interface {
	ListCategories(ctx context.Context) ([]CatalogEntry, error)
	ListConcepts(ctx context.Context) ([]CatalogEntry, error)
	CreateCategory(ctx context.Context, input NewCategory) (CatalogEntry, error)
	CreateConcept(ctx context.Context, input NewConcept) (CatalogEntry, error)
}

// Index maps persisted codes to ids. It grows as the run creates entries.
type Index struct {
	categories map[string]int
	concepts   map[string]int
}

func NewIndex() *Index {
	return &Index{
		categories: make(map[string]int),
		concepts:   make(map[string]int),
	}
}

// LoadIndex lists the persisted catalog once. Failure is fatal for the run.
func LoadIndex(ctx context.Context, svc CatalogService) (*Index, error) {
	ctx, span := tracer.Start(ctx, "catalogimport.LoadIndex")
	defer span.End()

	categories, err := svc.ListCategories(ctx)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("%w: list categories: %v", ErrCatalogUnavailable, err)
	}
	concepts, err := svc.ListConcepts(ctx)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("%w: list concepts: %v", ErrCatalogUnavailable, err)
	}

	index := NewIndex()
	for _, c := range categories {
		index.categories[c.Code] = c.ID
	}
	for _, c := range concepts {
		index.concepts[c.Code] = c.ID
	}
	return index, nil
}

func (ix *Index) CategoryID(code string) (int, bool) {
	id, ok := ix.categories[code]
	return id, ok
}

func (ix *Index) ConceptID(code string) (int, bool) {
	id, ok := ix.concepts[code]
	return id, ok
}

func (ix *Index) AddCategory(code string, id int) {
	ix.categories[code] = id
}

func (ix *Index) AddConcept(code string, id int) {
	ix.concepts[code] = id
}

type reconciler struct {
	svc     CatalogService
	index   *Index
	forest  *Forest
	summary *Summary
	logger  *logrus.Entry
}

// Reconcile persists net-new categories and concepts depth-first, parents first.
// A failed create is recorded and processing of its siblings and descendants
// continues. A descendant of a category that could not be persisted has no
// parent id to attach to, so it is reported as PARENT_NOT_PERSISTED rather than
// sent to the service; a retry creates it once the parent exists. Only a
// cancelled context stops the walk.
func Reconcile(ctx context.Context, svc CatalogService, forest *Forest, index *Index, summary *Summary, logger *logrus.Entry) error {
	ctx, span := tracer.Start(ctx, "catalogimport.Reconcile")
	defer span.End()

	r := &reconciler{svc: svc, index: index, forest: forest, summary: summary, logger: logger}
	for _, root := range forest.Roots() {
		if err := r.visit(ctx, root, 0, true); err != nil {
			span.RecordError(err)
			return err
		}
	}
	return nil
}

func (r *reconciler) visit(ctx context.Context, idx int, parentID int, parentPersisted bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	n := r.forest.Node(idx)

	id, persisted := r.index.CategoryID(n.Code)
	switch {
	case persisted:
		r.summary.CategoriesSkipped++
	case !parentPersisted:
		r.summary.CategoriesFailed++
		r.summary.addError(ImportError{Line: n.Line, Code: n.Code, EntityType: EntityCategory, ErrorCode: ErrCodeParentNotPersisted, Message: "parent category was not persisted"})
	default:
		created, err := r.svc.CreateCategory(ctx, NewCategory{
			Code:     n.Code,
			Name:     n.Name,
			ParentID: parentID,
			Level:    n.Level,
			Inferred: n.Synthesized,
		})
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			r.logger.WithFields(logrus.Fields{"code": n.Code, "line": n.Line}).WithError(err).Error("create category failed")
			r.summary.CategoriesFailed++
			r.summary.addError(ImportError{Line: n.Line, Code: n.Code, EntityType: EntityCategory, ErrorCode: ErrCodeCreateFailed, Message: err.Error()})
			break
		}
		id, persisted = created.ID, true
		r.index.AddCategory(n.Code, id)
		r.summary.CategoriesCreated++
	}

	for _, item := range n.Items {
		if err := r.persistItem(ctx, item, id, persisted); err != nil {
			return err
		}
	}
	for _, child := range n.Children {
		if err := r.visit(ctx, child, id, persisted); err != nil {
			return err
		}
	}
	return nil
}

func (r *reconciler) persistItem(ctx context.Context, item LineItem, categoryID int, categoryPersisted bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, ok := r.index.ConceptID(item.Code); ok {
		r.summary.ConceptsSkipped++
		return nil
	}
	if !categoryPersisted {
		r.summary.ConceptsFailed++
		r.summary.addError(ImportError{Line: item.Line, Code: item.Code, EntityType: EntityConcept, ErrorCode: ErrCodeParentNotPersisted, Message: "parent category was not persisted"})
		return nil
	}

	created, err := r.svc.CreateConcept(ctx, NewConcept{
		Code:        item.Code,
		Description: item.Description,
		Unit:        item.Unit,
		Type:        item.Type,
		Percentage:  item.Percentage,
		Price:       item.Price,
		CategoryID:  categoryID,
	})
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		r.logger.WithFields(logrus.Fields{"code": item.Code, "line": item.Line}).WithError(err).Error("create concept failed")
		r.summary.ConceptsFailed++
		r.summary.addError(ImportError{Line: item.Line, Code: item.Code, EntityType: EntityConcept, ErrorCode: ErrCodeCreateFailed, Message: err.Error()})
		return nil
	}
	r.index.AddConcept(item.Code, created.ID)
	r.summary.ConceptsCreated++
	return nil
}
