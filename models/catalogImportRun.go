package models

import (
	"context"
	"time"

	"github.com/mmdatafocus/catalog_backend/config"
)

const (
	ImportRunStatusQueued  = "queued"
	ImportRunStatusRunning = "running"
	ImportRunStatusSuccess = "success"
	ImportRunStatusFailed  = "failed"
	ImportRunStatusPartial = "partial"
)

const (
	ImportTriggeredManual = "manual"
	ImportTriggeredRetry  = "retry"
	ImportTriggeredCli    = "cli"
)

const (
	ImportSourceText = "text"
	ImportSourceXlsx = "xlsx"
)

type CatalogImportRun struct {
	ID                uint       `gorm:"primary_key" json:"id"`
	BusinessId        string     `gorm:"index;size:64;not null" json:"business_id"`
	Status            string     `gorm:"size:20;not null" json:"status"`
	TriggeredBy       string     `gorm:"size:20" json:"triggered_by"`
	TriggeredByUserId *int       `gorm:"index" json:"triggered_by_user_id"`
	Source            string     `gorm:"size:20" json:"source"`
	DryRun            bool       `gorm:"default:false" json:"dry_run"`
	InputText         string     `gorm:"type:longtext" json:"-"`
	ArchiveUri        string     `gorm:"size:512" json:"archive_uri"`
	StatsJSON         []byte     `gorm:"type:json" json:"stats"`
	CategoriesCreated int        `json:"categories_created"`
	ConceptsCreated   int        `json:"concepts_created"`
	ErrorCount        int        `json:"error_count"`
	ParentRunId       *uint      `gorm:"index" json:"parent_run_id"`
	StartedAt         *time.Time `json:"started_at"`
	FinishedAt        *time.Time `json:"finished_at"`
	DurationMs        int64      `json:"duration_ms"`
	CreatedAt         time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

type CatalogImportError struct {
	ID          uint      `gorm:"primary_key" json:"id"`
	ImportRunId uint      `gorm:"index;not null" json:"import_run_id"`
	BusinessId  string    `gorm:"index;size:64;not null" json:"business_id"`
	EntityType  string    `gorm:"size:20" json:"entity_type"`
	Code        string    `gorm:"size:64" json:"code"`
	Line        int       `json:"line"`
	ErrorCode   string    `gorm:"size:64" json:"error_code"`
	Message     string    `gorm:"type:text" json:"message"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (run CatalogImportRun) IsFinished() bool {
	return run.Status == ImportRunStatusSuccess || run.Status == ImportRunStatusFailed || run.Status == ImportRunStatusPartial
}

func CreateCatalogImportRun(ctx context.Context, run *CatalogImportRun) error {
	if run.Status == "" {
		run.Status = ImportRunStatusQueued
	}
	return config.GetDB().WithContext(ctx).Create(run).Error
}

// GetCatalogImportRun may return gorm.ErrRecordNotFound.
func GetCatalogImportRun(ctx context.Context, businessId string, id uint) (*CatalogImportRun, error) {
	var run CatalogImportRun
	err := config.GetDB().WithContext(ctx).
		Where("id = ? AND business_id = ?", id, businessId).
		Take(&run).Error
	if err != nil {
		return nil, err
	}
	return &run, nil
}

func ListCatalogImportRuns(ctx context.Context, businessId string, limit int) ([]CatalogImportRun, error) {
	var runs []CatalogImportRun
	err := config.GetDB().WithContext(ctx).
		Where("business_id = ?", businessId).
		Order("id desc").
		Limit(limit).
		Find(&runs).Error
	return runs, err
}

func GetCatalogImportErrors(ctx context.Context, runId uint) ([]CatalogImportError, error) {
	var errs []CatalogImportError
	err := config.GetDB().WithContext(ctx).
		Where("import_run_id = ?", runId).
		Order("id").
		Find(&errs).Error
	return errs, err
}

func UpdateCatalogImportRun(ctx context.Context, run *CatalogImportRun, updates map[string]interface{}) error {
	return config.GetDB().WithContext(ctx).Model(run).Updates(updates).Error
}

func CreateCatalogImportErrors(ctx context.Context, errs []CatalogImportError) error {
	if len(errs) == 0 {
		return nil
	}
	return config.GetDB().WithContext(ctx).CreateInBatches(errs, 200).Error
}
