package models

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mmdatafocus/catalog_backend/config"
	"github.com/mmdatafocus/catalog_backend/utils"
)

// Area is a catalog category. Codes are dotted numbers unique per business.
type Area struct {
	ID           int       `gorm:"primary_key" json:"id"`
	BusinessId   string    `gorm:"uniqueIndex:idx_area_business_code,priority:1;size:64;not null" json:"business_id"`
	Code         string    `gorm:"uniqueIndex:idx_area_business_code,priority:2;size:64;not null" json:"code"`
	Name         string    `gorm:"size:255;not null" json:"name"`
	Level        int       `gorm:"not null" json:"level"`
	ParentAreaId int       `gorm:"index;not null;default:0" json:"parent_area_id"`
	IsInferred   *bool     `gorm:"not null;default:false" json:"is_inferred"`
	IsActive     *bool     `gorm:"not null;default:true" json:"is_active"`
	CreatedAt    time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewArea struct {
	Code         string `json:"code" validate:"required,max=64"`
	Name         string `json:"name" validate:"required,max=255"`
	ParentAreaId int    `json:"parent_area_id" validate:"gte=0"`
	IsInferred   bool   `json:"is_inferred"`
}

func (input *NewArea) validate(ctx context.Context, businessId string) error {
	if err := utils.ValidateStruct(input); err != nil {
		return err
	}
	if !utils.IsCatalogCode(input.Code) {
		return fmt.Errorf("invalid area code %q", input.Code)
	}
	// code
	if err := utils.ValidateUnique[Area](ctx, businessId, "code", input.Code, 0); err != nil {
		return err
	}
	// parent area must own the code prefix
	parentCode := utils.ParentCode(input.Code)
	if input.ParentAreaId == 0 {
		if parentCode != "" {
			return fmt.Errorf("area %s: %w", input.Code, utils.ErrorParentNotFound)
		}
		return nil
	}
	parent, err := utils.FetchModel[Area](ctx, businessId, input.ParentAreaId)
	if err != nil {
		return fmt.Errorf("area %s: %w", input.Code, utils.ErrorParentNotFound)
	}
	if parent.Code != parentCode {
		return fmt.Errorf("area %s cannot be placed under %s", input.Code, parent.Code)
	}
	return nil
}

func CreateArea(ctx context.Context, input *NewArea) (*Area, error) {

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	if err := input.validate(ctx, businessId); err != nil {
		return nil, err
	}

	area := Area{
		BusinessId:   businessId,
		Code:         input.Code,
		Name:         input.Name,
		Level:        utils.CodeDepth(input.Code),
		ParentAreaId: input.ParentAreaId,
		IsInferred:   &input.IsInferred,
		IsActive:     utils.NewTrue(),
	}

	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&area).Error; err != nil {
		if utils.IsDuplicateKeyError(err) {
			return nil, utils.ErrorDuplicateCode
		}
		return nil, err
	}

	return &area, nil
}

func GetAreas(ctx context.Context) ([]*Area, error) {

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	return utils.FetchAllModels[Area](ctx, businessId)
}
