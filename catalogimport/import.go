package catalogimport

import (
	"context"
	"errors"
	"fmt"

	"github.com/mmdatafocus/catalog_backend/config"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const moduleName = "catalogimport"

var tracer = otel.Tracer("github.com/mmdatafocus/catalog_backend/catalogimport")

type Options struct {
	// DryRun reconciles against the real index but never writes.
	DryRun bool
	Logger *logrus.Entry
}

// Plan classifies and parses records and builds the category forest.
// Lines that cannot be placed are counted and reported on the returned summary.
func Plan(records []Record, logger *logrus.Entry) (*Forest, *Summary) {
	if logger == nil {
		logger = logrus.NewEntry(config.GetLogger())
	}
	summary := &Summary{RecordsRead: len(records)}
	builder := NewBuilder(NewNameLookup(records))

	for _, record := range records {
		classification := Classify(record)
		switch classification.Kind {
		case KindCategory:
			category := ParseCategory(record)
			if !builder.AddCategory(category) {
				logger.WithFields(logrus.Fields{"code": category.Code, "line": record.Line}).Debug("category code repeated")
			}
		case KindLineItem:
			item := ParseLineItem(record)
			summary.Warnings += len(item.Warnings)
			if err := builder.AddItem(item); err != nil {
				errCode := ErrCodeInvalidItem
				if errors.Is(err, ErrDuplicateItem) {
					errCode = ErrCodeDuplicateCode
				}
				summary.ConceptsFailed++
				summary.addError(ImportError{Line: record.Line, Code: item.Code, EntityType: EntityConcept, ErrorCode: errCode, Message: err.Error()})
			}
		default:
			logger.WithFields(logrus.Fields{"line": record.Line, "rule": classification.Rule}).Warn("unrecognized line skipped")
			summary.LinesUnrecognized++
			summary.addError(ImportError{Line: record.Line, EntityType: EntityLine, ErrorCode: ErrCodeUnrecognizedLine, Message: truncate(record.Text, 120)})
		}
	}

	forest := builder.Forest()
	summary.CategoriesSynthesized = forest.SynthesizedCount()
	return forest, summary
}

// Run imports pasted catalog text into svc. The only error returned for a
// completed walk is a failure to list the persisted catalog; per-entry failures
// are reported on the summary.
func Run(ctx context.Context, svc CatalogService, text string, opts Options) (*Summary, error) {
	ctx, span := tracer.Start(ctx, "catalogimport.Run", trace.WithAttributes(attribute.Bool("dry_run", opts.DryRun)))
	defer span.End()

	logger := opts.Logger
	if logger == nil {
		logger = logrus.NewEntry(config.GetLogger())
	}

	records := Reconstruct(text)
	forest, summary := Plan(records, logger)
	summary.DryRun = opts.DryRun
	span.SetAttributes(
		attribute.Int("records", len(records)),
		attribute.Int("categories", forest.Len()),
		attribute.Int("items", forest.ItemCount()),
	)

	index, err := LoadIndex(ctx, svc)
	if err != nil {
		config.LogError(config.GetLogger(), moduleName, "Run", "load catalog index", nil, err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	if opts.DryRun {
		svc = NewPreviewCatalog(svc)
	}
	if err := Reconcile(ctx, svc, forest, index, summary, logger); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return summary, fmt.Errorf("reconcile: %w", err)
	}

	logger.WithFields(logrus.Fields{
		"categories_created": summary.CategoriesCreated,
		"categories_skipped": summary.CategoriesSkipped,
		"concepts_created":   summary.ConceptsCreated,
		"concepts_skipped":   summary.ConceptsSkipped,
		"failed":             summary.Failed(),
		"status":             summary.Status(),
	}).Info("catalog import finished")
	return summary, nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "…"
}
