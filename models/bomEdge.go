package models

import (
	"context"
	"errors"
	"time"

	"github.com/mmdatafocus/mes_backend/config"
	"github.com/mmdatafocus/mes_backend/utils"
	"github.com/shopspring/decimal"
)

// BomEdge is one parent -> child line of a bill of materials. The data is
// expected to be acyclic but is not formally validated; the explosion engine
// carries its own cycle guard.
type BomEdge struct {
	ID                int             `gorm:"primary_key" json:"id"`
	ParentItemCode    string          `gorm:"size:45;index:idx_bom_edges_parent;not null" json:"parent_item_code" binding:"required"`
	ChildItemCode     string          `gorm:"size:45;index;not null" json:"child_item_code" binding:"required"`
	QuantityPerParent decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"quantity_per_parent"`
	Unit              string          `gorm:"size:20" json:"unit"`
	Level             int             `gorm:"default:1" json:"level"`
	CreatedAt         time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewBomEdge struct {
	ParentItemCode    string          `json:"parent_item_code" binding:"required"`
	ChildItemCode     string          `json:"child_item_code" binding:"required"`
	QuantityPerParent decimal.Decimal `json:"quantity_per_parent" binding:"required"`
	Unit              string          `json:"unit"`
	Level             int             `json:"level"`
}

func (input *NewBomEdge) validate(ctx context.Context) error {
	if input.ParentItemCode == input.ChildItemCode {
		return errors.New("an item cannot be its own component")
	}
	if !input.QuantityPerParent.IsPositive() {
		return errors.New("quantity per parent must be positive")
	}
	if _, err := GetItemByCode(ctx, input.ParentItemCode); err != nil {
		return errors.New("parent item not found")
	}
	if _, err := GetItemByCode(ctx, input.ChildItemCode); err != nil {
		return errors.New("child item not found")
	}
	count, err := utils.ResourceCountWhere[BomEdge](ctx,
		"parent_item_code = ? AND child_item_code = ?", input.ParentItemCode, input.ChildItemCode)
	if err != nil {
		return err
	}
	if count > 0 {
		return errors.New("duplicate bom edge")
	}
	return nil
}

func CreateBomEdge(ctx context.Context, input *NewBomEdge) (*BomEdge, error) {

	if err := input.validate(ctx); err != nil {
		return nil, err
	}

	edge := BomEdge{
		ParentItemCode:    input.ParentItemCode,
		ChildItemCode:     input.ChildItemCode,
		QuantityPerParent: input.QuantityPerParent,
		Unit:              input.Unit,
		Level:             input.Level,
	}

	db := config.GetDB()
	err := db.WithContext(ctx).Create(&edge).Error
	if err != nil {
		return nil, err
	}
	return &edge, nil
}

func DeleteBomEdge(ctx context.Context, id int) (*BomEdge, error) {

	db := config.GetDB()
	edge, err := utils.FetchModel[BomEdge](ctx, id)
	if err != nil {
		return nil, err
	}
	err = db.WithContext(ctx).Delete(&edge).Error
	if err != nil {
		return nil, err
	}
	return edge, nil
}

// GetBomEdges returns the direct children of a parent item.
func GetBomEdges(ctx context.Context, parentItemCode string) ([]*BomEdge, error) {

	db := config.GetDB()
	var results []*BomEdge
	err := db.WithContext(ctx).
		Where("parent_item_code = ?", parentItemCode).
		Order("level, child_item_code").
		Find(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}
