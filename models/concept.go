package models

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mmdatafocus/catalog_backend/config"
	"github.com/mmdatafocus/catalog_backend/utils"
	"github.com/shopspring/decimal"
)

// Concept is a priced catalog line item owned by the area whose code is its prefix.
type Concept struct {
	ID          int             `gorm:"primary_key" json:"id"`
	BusinessId  string          `gorm:"uniqueIndex:idx_concept_business_code,priority:1;size:64;not null" json:"business_id"`
	Code        string          `gorm:"uniqueIndex:idx_concept_business_code,priority:2;size:64;not null" json:"code"`
	Description string          `gorm:"type:text;not null" json:"description"`
	Unit        string          `gorm:"size:50;not null" json:"unit"`
	Type        string          `gorm:"size:50" json:"type"`
	Percentage  decimal.Decimal `gorm:"type:decimal(9,4);default:0" json:"percentage"`
	UnitPrice   decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"unit_price"`
	AreaId      int             `gorm:"index;not null" json:"area_id"`
	IsActive    *bool           `gorm:"not null;default:true" json:"is_active"`
	CreatedAt   time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewConcept struct {
	Code        string          `json:"code" validate:"required,max=64"`
	Description string          `json:"description"`
	Unit        string          `json:"unit" validate:"required,max=50"`
	Type        string          `json:"type" validate:"max=50"`
	Percentage  decimal.Decimal `json:"percentage"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	AreaId      int             `json:"area_id" validate:"required,gt=0"`
}

func (input *NewConcept) validate(ctx context.Context, businessId string) error {
	if err := utils.ValidateStruct(input); err != nil {
		return err
	}
	if !utils.IsCatalogCode(input.Code) || utils.CodeDepth(input.Code) < 2 {
		return fmt.Errorf("invalid concept code %q", input.Code)
	}
	if input.UnitPrice.IsNegative() {
		return errors.New("unit price cannot be negative")
	}
	// code
	if err := utils.ValidateUnique[Concept](ctx, businessId, "code", input.Code, 0); err != nil {
		return err
	}
	// area
	area, err := utils.FetchModel[Area](ctx, businessId, input.AreaId)
	if err != nil {
		return fmt.Errorf("concept %s: %w", input.Code, utils.ErrorParentNotFound)
	}
	if area.Code != utils.ParentCode(input.Code) {
		return fmt.Errorf("concept %s cannot be placed under area %s", input.Code, area.Code)
	}
	return nil
}

func CreateConcept(ctx context.Context, input *NewConcept) (*Concept, error) {

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	if err := input.validate(ctx, businessId); err != nil {
		return nil, err
	}

	concept := Concept{
		BusinessId:  businessId,
		Code:        input.Code,
		Description: input.Description,
		Unit:        input.Unit,
		Type:        input.Type,
		Percentage:  input.Percentage,
		UnitPrice:   input.UnitPrice,
		AreaId:      input.AreaId,
		IsActive:    utils.NewTrue(),
	}

	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&concept).Error; err != nil {
		if utils.IsDuplicateKeyError(err) {
			return nil, utils.ErrorDuplicateCode
		}
		return nil, err
	}

	return &concept, nil
}

func GetConcepts(ctx context.Context) ([]*Concept, error) {

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	return utils.FetchAllModels[Concept](ctx, businessId)
}
