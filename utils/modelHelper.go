package utils

import (
	"context"
	"errors"

	"github.com/mmdatafocus/catalog_backend/config"
	"gorm.io/gorm"
)

// fetch model from db
// (business_id is used in query's WHERE, may return RecordNotFound)
func FetchModel[T any](ctx context.Context, businessId string, id interface{}) (*T, error) {
	db := config.GetDB()
	var result T
	err := db.WithContext(ctx).Where("business_id = ?", businessId).First(&result, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrorRecordNotFound
		}
		return nil, err
	}
	return &result, nil
}

// fetch all models from db ordered by id
// (business_id is used in query's WHERE)
func FetchAllModels[T any](ctx context.Context, businessId string) ([]*T, error) {
	db := config.GetDB()
	var results []*T
	err := db.WithContext(ctx).Where("business_id = ?", businessId).Order("id").Find(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}
