package catalogimport

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/mmdatafocus/catalog_backend/config"
	"github.com/mmdatafocus/catalog_backend/models"
	"github.com/mmdatafocus/catalog_backend/utils"
	"github.com/sirupsen/logrus"
)

const (
	importLockType = "catalog-import"
	importLockTTL  = 10 * time.Minute
)

var (
	// ErrImportInProgress means another worker holds the business lock; the run stays queued.
	ErrImportInProgress = errors.New("another catalog import is running for this business")

	// ErrRunAlreadyRunning means the run itself is being processed elsewhere.
	ErrRunAlreadyRunning = errors.New("catalog import run is already running")
)

// newCatalogService is swapped in tests.
var newCatalogService = ServiceFromEnv

// obtainImportLock is swapped in tests.
var obtainImportLock = func(ctx context.Context, businessId string) (func(), error) {
	if config.GetRedisLock() == nil {
		config.GetLogger().WithField("business_id", businessId).Warn("redis lock not initialized; import runs unlocked")
		return func() {}, nil
	}
	release, err := utils.BusinessLock(ctx, businessId, importLockType, importLockTTL, moduleName, "ProcessImportRun")
	if errors.Is(err, utils.ErrorLockNotObtained) {
		return nil, ErrImportInProgress
	}
	return release, err
}

// ProcessImportRun executes a queued run and records its outcome. Finished runs
// are left alone. When the business lock is taken the run is not touched and
// ErrImportInProgress is returned so the caller can try again later.
func ProcessImportRun(ctx context.Context, payload ImportPubSubPayload) (*Summary, error) {
	if payload.RunId == 0 || payload.BusinessId == "" {
		return nil, errors.New("invalid payload")
	}

	ctx = utils.SetBusinessIdInContext(ctx, payload.BusinessId)
	ctx = utils.SetImportRunIdInContext(ctx, payload.RunId)
	if payload.CorrelationId != "" {
		ctx = utils.SetCorrelationIdInContext(ctx, payload.CorrelationId)
	}

	release, err := obtainImportLock(ctx, payload.BusinessId)
	if err != nil {
		return nil, err
	}
	defer release()

	// loaded under the lock so a redelivery sees the outcome of the worker before it
	run, err := models.GetCatalogImportRun(ctx, payload.BusinessId, payload.RunId)
	if err != nil {
		return nil, err
	}
	if run.IsFinished() {
		return decodeSummary(run.StatsJSON), nil
	}
	if run.Status == models.ImportRunStatusRunning {
		return nil, ErrRunAlreadyRunning
	}
	if run.TriggeredByUserId != nil {
		ctx = utils.SetUserIdInContext(ctx, *run.TriggeredByUserId)
	}
	logger := runLogger(ctx)

	startedAt := time.Now()
	if err := models.UpdateCatalogImportRun(ctx, run, map[string]interface{}{
		"status":     models.ImportRunStatusRunning,
		"started_at": startedAt,
	}); err != nil {
		return nil, err
	}

	svc, err := newCatalogService()
	if err != nil {
		finishRun(ctx, run, startedAt, nil, ImportError{EntityType: EntityLine, ErrorCode: ErrCodeCatalogUnavailable, Message: err.Error()})
		return nil, err
	}
	if closer, ok := svc.(interface{ Close() }); ok {
		defer closer.Close()
	}

	summary, err := Run(ctx, svc, run.InputText, Options{DryRun: run.DryRun, Logger: logger})
	if err != nil && summary == nil {
		finishRun(ctx, run, startedAt, nil, ImportError{EntityType: EntityLine, ErrorCode: ErrCodeCatalogUnavailable, Message: err.Error()})
		return nil, err
	}
	finishRun(ctx, run, startedAt, summary)
	return summary, err
}

// finishRun stores the summary, its errors and the final status.
func finishRun(ctx context.Context, run *models.CatalogImportRun, startedAt time.Time, summary *Summary, extra ...ImportError) {
	// the run outcome is stored even when the caller went away
	ctx = context.WithoutCancel(ctx)
	logger := config.GetLogger()
	if summary == nil {
		summary = &Summary{}
	}
	summary.Errors = append(summary.Errors, extra...)

	status := summary.Status()
	if len(extra) > 0 {
		status = models.ImportRunStatusFailed
	}

	records := make([]models.CatalogImportError, 0, len(summary.Errors))
	for _, e := range summary.Errors {
		records = append(records, models.CatalogImportError{
			ImportRunId: run.ID,
			BusinessId:  run.BusinessId,
			EntityType:  e.EntityType,
			Code:        e.Code,
			Line:        e.Line,
			ErrorCode:   e.ErrorCode,
			Message:     e.Message,
		})
	}
	if err := models.CreateCatalogImportErrors(ctx, records); err != nil {
		config.LogError(logger, moduleName, "finishRun", "store import errors", run.ID, err)
	}

	finishedAt := time.Now()
	statsJSON, _ := json.Marshal(summary)
	if err := models.UpdateCatalogImportRun(ctx, run, map[string]interface{}{
		"status":             status,
		"started_at":         startedAt,
		"finished_at":        finishedAt,
		"duration_ms":        finishedAt.Sub(startedAt).Milliseconds(),
		"categories_created": summary.CategoriesCreated,
		"concepts_created":   summary.ConceptsCreated,
		"error_count":        len(summary.Errors),
		"stats_json":         statsJSON,
	}); err != nil {
		config.LogError(logger, moduleName, "finishRun", "update import run", run.ID, err)
	}
}

// FailImportRun closes a run that will not be processed, recording why.
func FailImportRun(ctx context.Context, run *models.CatalogImportRun, errorCode string, cause error) {
	finishRun(ctx, run, time.Now(), nil, ImportError{EntityType: EntityLine, ErrorCode: errorCode, Message: cause.Error()})
}

func runLogger(ctx context.Context) *logrus.Entry {
	fields := logrus.Fields{}
	if businessId, ok := utils.GetBusinessIdFromContext(ctx); ok {
		fields["business_id"] = businessId
	}
	if runId, ok := utils.GetImportRunIdFromContext(ctx); ok {
		fields["run_id"] = runId
	}
	if userId, ok := utils.GetUserIdFromContext(ctx); ok {
		fields["user_id"] = userId
	}
	if cid, ok := utils.GetCorrelationIdFromContext(ctx); ok {
		fields["correlation_id"] = cid
	}
	return config.GetLogger().WithFields(fields)
}

func decodeSummary(raw []byte) *Summary {
	if len(raw) == 0 {
		return nil
	}
	var s Summary
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil
	}
	return &s
}
