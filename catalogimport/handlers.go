package catalogimport

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/mmdatafocus/catalog_backend/config"
	"github.com/mmdatafocus/catalog_backend/models"
	"github.com/mmdatafocus/catalog_backend/utils"
	"gorm.io/gorm"
)

const (
	maxImportTextBytes = 2 << 20
	// JSON escaping can grow the text, so the body gets some headroom
	maxImportBodyBytes = maxImportTextBytes + 256<<10
	maxImportXlsxBytes = 10 << 20
)

func ImportHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		businessId, err := resolveBusinessID(c)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxImportBodyBytes)
		var req ImportRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			if isTooLarge(err) {
				c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "import text too large"})
				return
			}
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request", "details": utils.ProcessValidationErrors(err)})
			return
		}
		if strings.TrimSpace(req.Text) == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request", "details": map[string]string{"Text": "required"}})
			return
		}
		if len(req.Text) > maxImportTextBytes {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "import text too large"})
			return
		}

		ctx := utils.SetBusinessIdInContext(c.Request.Context(), businessId)
		run, err := createRun(ctx, businessId, req.Text, models.ImportSourceText, req.DryRun, models.ImportTriggeredManual, nil)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		dispatchRun(ctx, c, run)
	}
}

func ImportXlsxHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		businessId, err := resolveBusinessID(c)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxImportXlsxBytes)
		fileHeader, err := c.FormFile("file")
		if err != nil {
			if isTooLarge(err) {
				c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "workbook too large"})
				return
			}
			c.JSON(http.StatusBadRequest, gin.H{"error": "file is required"})
			return
		}
		file, err := fileHeader.Open()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		defer file.Close()

		text, err := SheetToText(file, strings.TrimSpace(c.PostForm("sheet")))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if len(text) > maxImportTextBytes {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "import text too large"})
			return
		}
		dryRun, _ := strconv.ParseBool(c.DefaultPostForm("dryRun", "false"))

		ctx := utils.SetBusinessIdInContext(c.Request.Context(), businessId)
		run, err := createRun(ctx, businessId, text, models.ImportSourceXlsx, dryRun, models.ImportTriggeredManual, nil)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		dispatchRun(ctx, c, run)
	}
}

func ImportHistoryHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		businessId, err := resolveBusinessID(c)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		limit := 20
		if v := strings.TrimSpace(c.Query("limit")); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 100 {
				limit = n
			}
		}

		ctx := utils.SetBusinessIdInContext(c.Request.Context(), businessId)
		runs, err := models.ListCatalogImportRuns(ctx, businessId, limit)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		items := make([]ImportRunResponse, 0, len(runs))
		for _, run := range runs {
			items = append(items, mapRunToResponse(run))
		}
		c.JSON(http.StatusOK, ImportHistoryResponse{Items: items})
	}
}

func ImportRunDetailHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		businessId, err := resolveBusinessID(c)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		id, err := strconv.Atoi(c.Param("id"))
		if err != nil || id <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid run id"})
			return
		}

		ctx := utils.SetBusinessIdInContext(c.Request.Context(), businessId)
		run, err := models.GetCatalogImportRun(ctx, businessId, uint(id))
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		resp, err := runDetail(ctx, run)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, resp)
	}
}

// RetryImportRunHandler queues the same text again. Codes created by the
// earlier run are skipped, so only what is missing gets retried.
func RetryImportRunHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		businessId, err := resolveBusinessID(c)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		id, err := strconv.Atoi(c.Param("id"))
		if err != nil || id <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid run id"})
			return
		}

		ctx := utils.SetBusinessIdInContext(c.Request.Context(), businessId)
		run, err := models.GetCatalogImportRun(ctx, businessId, uint(id))
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		if !run.IsFinished() {
			c.JSON(http.StatusConflict, gin.H{"error": "import run is still in progress"})
			return
		}

		newRun, err := createRun(ctx, businessId, run.InputText, run.Source, run.DryRun, models.ImportTriggeredRetry, &run.ID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		dispatchRun(ctx, c, newRun)
	}
}

func createRun(ctx context.Context, businessId, text, source string, dryRun bool, triggeredBy string, parentRunId *uint) (*models.CatalogImportRun, error) {
	run := models.CatalogImportRun{
		BusinessId:  businessId,
		Status:      models.ImportRunStatusQueued,
		TriggeredBy: triggeredBy,
		Source:      source,
		DryRun:      dryRun,
		InputText:   text,
		ParentRunId: parentRunId,
	}
	if userId, ok := utils.GetUserIdFromContext(ctx); ok && userId > 0 {
		run.TriggeredByUserId = &userId
	}
	if config.CatalogImportArchive() {
		objectName := fmt.Sprintf("catalog-imports/%s/%s-%s.tsv", businessId, time.Now().UTC().Format("20060102T150405"), uuid.NewString())
		uri, err := utils.ArchiveText(ctx, objectName, text)
		if err != nil {
			config.LogError(config.GetLogger(), moduleName, "createRun", "archive import text", businessId, err)
		}
		run.ArchiveUri = uri
	}
	if err := models.CreateCatalogImportRun(ctx, &run); err != nil {
		return nil, err
	}
	return &run, nil
}

// dispatchRun queues the run when async imports are on, otherwise runs it inline.
func dispatchRun(ctx context.Context, c *gin.Context, run *models.CatalogImportRun) {
	cid, _ := utils.GetCorrelationIdFromContext(ctx)
	payload := ImportPubSubPayload{RunId: run.ID, BusinessId: run.BusinessId, CorrelationId: cid}

	if config.CatalogImportAsync() {
		if err := PublishImportRun(ctx, payload); err != nil {
			config.LogError(config.GetLogger(), moduleName, "dispatchRun", "publish import run", payload, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not queue import", "id": run.ID})
			return
		}
		c.JSON(http.StatusAccepted, gin.H{"id": run.ID, "status": models.ImportRunStatusQueued})
		return
	}

	summary, err := ProcessImportRun(ctx, payload)
	if errors.Is(err, ErrImportInProgress) {
		// nothing will redeliver an inline run, so it is closed for a later retry
		FailImportRun(ctx, run, ErrCodeImportInProgress, err)
		c.JSON(http.StatusConflict, gin.H{"error": err.Error(), "id": run.ID})
		return
	}
	if err != nil && summary == nil {
		status := http.StatusInternalServerError
		if errors.Is(err, ErrCatalogUnavailable) {
			status = http.StatusBadGateway
		}
		c.JSON(status, gin.H{"error": err.Error(), "id": run.ID})
		return
	}

	stored, err := models.GetCatalogImportRun(ctx, run.BusinessId, run.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	resp, err := runDetail(ctx, stored)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, resp)
}

func runDetail(ctx context.Context, run *models.CatalogImportRun) (ImportRunDetailResponse, error) {
	errs, err := models.GetCatalogImportErrors(ctx, run.ID)
	if err != nil {
		return ImportRunDetailResponse{}, err
	}
	return ImportRunDetailResponse{
		ImportRunResponse: mapRunToResponse(*run),
		Summary:           decodeSummary(run.StatsJSON),
		Errors:            mapErrors(errs),
	}, nil
}

func isTooLarge(err error) bool {
	var tooLarge *http.MaxBytesError
	return errors.As(err, &tooLarge)
}

func resolveBusinessID(c *gin.Context) (string, error) {
	businessId, ok := utils.GetBusinessIdFromContext(c.Request.Context())
	if !ok || strings.TrimSpace(businessId) == "" {
		return "", errors.New("unauthorized")
	}
	return businessId, nil
}

func formatTime(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.UTC().Format(time.RFC3339)
	return &s
}

func mapRunToResponse(run models.CatalogImportRun) ImportRunResponse {
	return ImportRunResponse{
		ID:                run.ID,
		Status:            run.Status,
		Source:            run.Source,
		DryRun:            run.DryRun,
		TriggeredBy:       run.TriggeredBy,
		TriggeredByUserId: run.TriggeredByUserId,
		StartedAt:         formatTime(run.StartedAt),
		FinishedAt:        formatTime(run.FinishedAt),
		DurationMs:        run.DurationMs,
		CategoriesCreated: run.CategoriesCreated,
		ConceptsCreated:   run.ConceptsCreated,
		ErrorCount:        run.ErrorCount,
		ParentRunId:       run.ParentRunId,
	}
}

func mapErrors(errorsList []models.CatalogImportError) []ImportErrorResponse {
	out := make([]ImportErrorResponse, 0, len(errorsList))
	for _, errItem := range errorsList {
		out = append(out, ImportErrorResponse{
			ID:         errItem.ID,
			EntityType: errItem.EntityType,
			Code:       errItem.Code,
			Line:       errItem.Line,
			ErrorCode:  errItem.ErrorCode,
			Message:    errItem.Message,
		})
	}
	return out
}
