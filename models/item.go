package models

import (
	"context"
	"errors"
	"time"

	"github.com/mmdatafocus/mes_backend/config"
	"github.com/mmdatafocus/mes_backend/utils"
	"github.com/shopspring/decimal"
)

// Item is immutable reference data for the production engine; the core looks
// it up and never mutates it. Mutations below exist for the back office only.
type Item struct {
	ID            int             `gorm:"primary_key" json:"id"`
	Code          string          `gorm:"size:45;uniqueIndex;not null" json:"code" binding:"required"`
	Name          string          `gorm:"size:100;not null" json:"name" binding:"required"`
	Category      ItemCategory    `gorm:"size:20;not null" json:"category"`
	Specification string          `gorm:"size:100" json:"specification"`
	Unit          string          `gorm:"size:20" json:"unit"`
	SafetyStock   decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"safety_stock"`
	IsActive      *bool           `gorm:"not null;default:true" json:"is_active"`
	CreatedAt     time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewItem struct {
	Code          string          `json:"code" binding:"required"`
	Name          string          `json:"name" binding:"required"`
	Category      ItemCategory    `json:"category" binding:"required"`
	Specification string          `json:"specification"`
	Unit          string          `json:"unit"`
	SafetyStock   decimal.Decimal `json:"safety_stock"`
}

// validate input for both create & update. (id = 0 for create)
func (input *NewItem) validate(ctx context.Context, id int) error {
	if err := utils.ValidateUnique[Item](ctx, "code", input.Code, id); err != nil {
		return err
	}
	if !ItemCategory(input.Category).isKnown() {
		return errors.New("invalid item category")
	}
	if input.SafetyStock.IsNegative() {
		return errors.New("safety stock cannot be negative")
	}
	return nil
}

func (c ItemCategory) isKnown() bool {
	switch c {
	case ItemCategoryRawMaterial, ItemCategorySubAssembly, ItemCategoryFinishedGood:
		return true
	}
	return false
}

func CreateItem(ctx context.Context, input *NewItem) (*Item, error) {

	if err := input.validate(ctx, 0); err != nil {
		return nil, err
	}

	item := Item{
		Code:          input.Code,
		Name:          input.Name,
		Category:      input.Category,
		Specification: input.Specification,
		Unit:          input.Unit,
		SafetyStock:   input.SafetyStock,
		IsActive:      utils.NewTrue(),
	}

	// db action
	db := config.GetDB()
	err := db.WithContext(ctx).Create(&item).Error
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func UpdateItem(ctx context.Context, id int, input *NewItem) (*Item, error) {

	if err := input.validate(ctx, id); err != nil {
		return nil, err
	}

	item, err := utils.FetchModel[Item](ctx, id)
	if err != nil {
		return nil, err
	}

	db := config.GetDB()
	err = db.WithContext(ctx).Model(&item).Updates(map[string]interface{}{
		"Code":          input.Code,
		"Name":          input.Name,
		"Category":      input.Category,
		"Specification": input.Specification,
		"Unit":          input.Unit,
		"SafetyStock":   input.SafetyStock,
	}).Error
	if err != nil {
		return nil, err
	}

	if err := utils.RemoveRedisItem[Item](item.Code); err != nil {
		return nil, err
	}
	return item, nil
}

func DeleteItem(ctx context.Context, id int) (*Item, error) {

	db := config.GetDB()
	item, err := utils.FetchModel[Item](ctx, id)
	if err != nil {
		return nil, err
	}

	// an item referenced by BOM edges or stock cannot be removed
	var count int64
	if err := db.WithContext(ctx).Model(&BomEdge{}).
		Where("parent_item_code = ? OR child_item_code = ?", item.Code, item.Code).
		Count(&count).Error; err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, errors.New("item is used in a bill of materials")
	}
	if err := db.WithContext(ctx).Model(&Inventory{}).
		Where("item_code = ?", item.Code).Count(&count).Error; err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, errors.New("item has stock")
	}

	err = db.WithContext(ctx).Delete(&item).Error
	if err != nil {
		return nil, err
	}
	if err := utils.RemoveRedisItem[Item](item.Code); err != nil {
		return nil, err
	}
	return item, nil
}

// GetItemByCode reads an item through the redis cache.
// (may return RecordNotFound)
func GetItemByCode(ctx context.Context, code string) (*Item, error) {
	result, err := utils.RetrieveRedis[Item](code)
	if err != nil {
		return nil, err
	}
	if result == nil {
		result, err = utils.FetchModelByCode[Item](ctx, "code", code)
		if err != nil {
			return nil, err
		}
		if err := utils.StoreRedis[Item](result, code); err != nil {
			return nil, err
		}
	}
	return result, nil
}

func ListItems(ctx context.Context, name *string, category *ItemCategory) ([]*Item, error) {

	db := config.GetDB()
	var results []*Item

	dbCtx := db.WithContext(ctx)
	if name != nil && len(*name) > 0 {
		dbCtx = dbCtx.Where("name LIKE ? OR code LIKE ?", "%"+*name+"%", "%"+*name+"%")
	}
	if category != nil && len(*category) > 0 {
		dbCtx = dbCtx.Where("category = ?", *category)
	}
	err := dbCtx.Order("code").Find(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}
