package catalogimport

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/mmdatafocus/catalog_backend/config"
	"github.com/mmdatafocus/catalog_backend/models"
	"github.com/mmdatafocus/catalog_backend/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupSQLite(t *testing.T) {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), config.InitConfig())
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	config.InstallPlugins(db)

	prev := config.GetDB()
	config.SetDB(db)
	t.Cleanup(func() {
		config.SetDB(prev)
		_ = sqlDB.Close()
	})
	require.NoError(t, models.MigrateTable())
}

func queueRun(t *testing.T, businessId, text string) *models.CatalogImportRun {
	t.Helper()
	ctx := utils.SetBusinessIdInContext(context.Background(), businessId)
	run := &models.CatalogImportRun{
		BusinessId:  businessId,
		TriggeredBy: models.ImportTriggeredManual,
		Source:      models.ImportSourceText,
		InputText:   text,
	}
	require.NoError(t, models.CreateCatalogImportRun(ctx, run))
	return run
}

func loadRun(t *testing.T, businessId string, id uint) *models.CatalogImportRun {
	t.Helper()
	ctx := utils.SetBusinessIdInContext(context.Background(), businessId)
	run, err := models.GetCatalogImportRun(ctx, businessId, id)
	require.NoError(t, err)
	return run
}

func TestProcessImportRun_PersistsCatalog(t *testing.T) {
	setupSQLite(t)
	run := queueRun(t, "biz-1", workedExample)

	summary, err := ProcessImportRun(context.Background(), ImportPubSubPayload{RunId: run.ID, BusinessId: "biz-1"})
	require.NoError(t, err)
	assert.Equal(t, 4, summary.Created())

	stored := loadRun(t, "biz-1", run.ID)
	assert.Equal(t, models.ImportRunStatusSuccess, stored.Status)
	assert.Equal(t, 3, stored.CategoriesCreated)
	assert.Equal(t, 1, stored.ConceptsCreated)
	assert.NotNil(t, stored.FinishedAt)
	require.NotNil(t, decodeSummary(stored.StatsJSON))

	ctx := utils.SetBusinessIdInContext(context.Background(), "biz-1")
	areas, err := models.GetAreas(ctx)
	require.NoError(t, err)
	require.Len(t, areas, 3)
	byCode := map[string]*models.Area{}
	for _, a := range areas {
		byCode[a.Code] = a
	}
	assert.True(t, *byCode["2.1.1"].IsInferred)
	assert.Equal(t, "SUBCATEGORÍA", byCode["2.1.1"].Name)
	assert.Equal(t, byCode["2.1"].ID, byCode["2.1.1"].ParentAreaId)

	concepts, err := models.GetConcepts(ctx)
	require.NoError(t, err)
	require.Len(t, concepts, 1)
	assert.Equal(t, "VISITA", concepts[0].Unit)
	assert.Equal(t, byCode["2.1.1"].ID, concepts[0].AreaId)
}

func TestProcessImportRun_FinishedRunIsNotRepeated(t *testing.T) {
	setupSQLite(t)
	run := queueRun(t, "biz-1", workedExample)
	payload := ImportPubSubPayload{RunId: run.ID, BusinessId: "biz-1"}

	first, err := ProcessImportRun(context.Background(), payload)
	require.NoError(t, err)

	prev := newCatalogService
	newCatalogService = func() (CatalogService, error) {
		t.Fatal("finished run must not be processed again")
		return nil, nil
	}
	t.Cleanup(func() { newCatalogService = prev })

	second, err := ProcessImportRun(context.Background(), payload)
	require.NoError(t, err)
	assert.Equal(t, first.Created(), second.Created())
}

func TestProcessImportRun_SecondImportSkipsExisting(t *testing.T) {
	setupSQLite(t)
	first := queueRun(t, "biz-1", workedExample)
	_, err := ProcessImportRun(context.Background(), ImportPubSubPayload{RunId: first.ID, BusinessId: "biz-1"})
	require.NoError(t, err)

	second := queueRun(t, "biz-1", workedExample+"2.1.1.2\tPRUEBA DE COMPACTACIÓN\tPRUEBA\t$450.00\n")
	summary, err := ProcessImportRun(context.Background(), ImportPubSubPayload{RunId: second.ID, BusinessId: "biz-1"})
	require.NoError(t, err)
	assert.Equal(t, 1, summary.ConceptsCreated)
	assert.Equal(t, 4, summary.Skipped())
}

func TestProcessImportRun_PartialRecordsErrors(t *testing.T) {
	setupSQLite(t)
	run := queueRun(t, "biz-1", workedExample+"2.4\t\"ALGO\"\n")

	_, err := ProcessImportRun(context.Background(), ImportPubSubPayload{RunId: run.ID, BusinessId: "biz-1"})
	require.NoError(t, err)

	stored := loadRun(t, "biz-1", run.ID)
	assert.Equal(t, models.ImportRunStatusPartial, stored.Status)
	assert.Equal(t, 1, stored.ErrorCount)

	ctx := utils.SetBusinessIdInContext(context.Background(), "biz-1")
	errs, err := models.GetCatalogImportErrors(ctx, run.ID)
	require.NoError(t, err)
	require.Len(t, errs, 1)
	assert.Equal(t, ErrCodeUnrecognizedLine, errs[0].ErrorCode)
	assert.Equal(t, 4, errs[0].Line)
}

func TestProcessImportRun_CatalogUnavailable(t *testing.T) {
	setupSQLite(t)
	fake := newFakeCatalog()
	fake.listErr = errors.New("dial tcp: refused")
	prev := newCatalogService
	newCatalogService = func() (CatalogService, error) { return fake, nil }
	t.Cleanup(func() { newCatalogService = prev })

	run := queueRun(t, "biz-1", workedExample)
	summary, err := ProcessImportRun(context.Background(), ImportPubSubPayload{RunId: run.ID, BusinessId: "biz-1"})
	assert.Nil(t, summary)
	assert.True(t, errors.Is(err, ErrCatalogUnavailable))

	stored := loadRun(t, "biz-1", run.ID)
	assert.Equal(t, models.ImportRunStatusFailed, stored.Status)
	assert.Equal(t, 1, stored.ErrorCount)
}

func TestProcessImportRun_OtherBusinessRunNotFound(t *testing.T) {
	setupSQLite(t)
	run := queueRun(t, "biz-1", workedExample)

	_, err := ProcessImportRun(context.Background(), ImportPubSubPayload{RunId: run.ID, BusinessId: "biz-2"})
	assert.True(t, errors.Is(err, gorm.ErrRecordNotFound))
}

func TestProcessImportRun_InvalidPayload(t *testing.T) {
	_, err := ProcessImportRun(context.Background(), ImportPubSubPayload{})
	assert.Error(t, err)
}

func lockTaken(t *testing.T) {
	t.Helper()
	prev := obtainImportLock
	obtainImportLock = func(ctx context.Context, businessId string) (func(), error) {
		return nil, ErrImportInProgress
	}
	t.Cleanup(func() { obtainImportLock = prev })
}

func TestProcessImportRun_ItemWithoutDescriptionIsCreated(t *testing.T) {
	setupSQLite(t)
	run := queueRun(t, "biz-1", "2\tCONTROL DE CALIDAD\n2.1\tTERRACERÍAS\n2.1.1.1\tVISITA\t3%\t$1,231.53\n")

	summary, err := ProcessImportRun(context.Background(), ImportPubSubPayload{RunId: run.ID, BusinessId: "biz-1"})
	require.NoError(t, err)
	assert.Equal(t, 1, summary.ConceptsCreated)
	assert.Empty(t, summary.Errors)

	ctx := utils.SetBusinessIdInContext(context.Background(), "biz-1")
	concepts, err := models.GetConcepts(ctx)
	require.NoError(t, err)
	require.Len(t, concepts, 1)
	assert.Equal(t, "", concepts[0].Description)
	assert.Equal(t, "VISITA", concepts[0].Type)
	assert.Equal(t, "1231.53", concepts[0].UnitPrice.String())
}

func TestProcessImportRun_LockTakenLeavesRunQueued(t *testing.T) {
	setupSQLite(t)
	lockTaken(t)
	run := queueRun(t, "biz-1", workedExample)

	summary, err := ProcessImportRun(context.Background(), ImportPubSubPayload{RunId: run.ID, BusinessId: "biz-1"})
	assert.Nil(t, summary)
	assert.ErrorIs(t, err, ErrImportInProgress)

	stored := loadRun(t, "biz-1", run.ID)
	assert.Equal(t, models.ImportRunStatusQueued, stored.Status)
	assert.Equal(t, 0, stored.ErrorCount)

	ctx := utils.SetBusinessIdInContext(context.Background(), "biz-1")
	errs, err := models.GetCatalogImportErrors(ctx, run.ID)
	require.NoError(t, err)
	assert.Empty(t, errs)
}

func TestProcessImportRun_RunningRunIsLeftAlone(t *testing.T) {
	setupSQLite(t)
	run := queueRun(t, "biz-1", workedExample)
	ctx := utils.SetBusinessIdInContext(context.Background(), "biz-1")
	require.NoError(t, models.UpdateCatalogImportRun(ctx, run, map[string]interface{}{"status": models.ImportRunStatusRunning}))

	prev := newCatalogService
	newCatalogService = func() (CatalogService, error) {
		t.Fatal("running run must not be processed twice")
		return nil, nil
	}
	t.Cleanup(func() { newCatalogService = prev })

	_, err := ProcessImportRun(context.Background(), ImportPubSubPayload{RunId: run.ID, BusinessId: "biz-1"})
	assert.ErrorIs(t, err, ErrRunAlreadyRunning)

	stored := loadRun(t, "biz-1", run.ID)
	assert.Equal(t, models.ImportRunStatusRunning, stored.Status)
	errs, err := models.GetCatalogImportErrors(ctx, run.ID)
	require.NoError(t, err)
	assert.Empty(t, errs)
}

func TestFailImportRun(t *testing.T) {
	setupSQLite(t)
	run := queueRun(t, "biz-1", workedExample)

	FailImportRun(context.Background(), run, ErrCodeImportInProgress, ErrImportInProgress)

	stored := loadRun(t, "biz-1", run.ID)
	assert.Equal(t, models.ImportRunStatusFailed, stored.Status)
	assert.Equal(t, 1, stored.ErrorCount)
}

func TestRunLoggerFields(t *testing.T) {
	ctx := utils.SetBusinessIdInContext(context.Background(), "biz-1")
	ctx = utils.SetImportRunIdInContext(ctx, 9)
	ctx = utils.SetUserIdInContext(ctx, 3)

	entry := runLogger(ctx)
	assert.Equal(t, "biz-1", entry.Data["business_id"])
	assert.Equal(t, uint(9), entry.Data["run_id"])
	assert.Equal(t, 3, entry.Data["user_id"])
	assert.NotContains(t, entry.Data, "correlation_id")
}
