package models

import (
	"context"
	"errors"
	"time"

	"github.com/mmdatafocus/mes_backend/config"
	"github.com/mmdatafocus/mes_backend/utils"
)

// BomProcessStep is one ordinal stage in an item's manufacturing sequence.
// The ordinal is the sort key and must be unique per item.
type BomProcessStep struct {
	ID          int       `gorm:"primary_key" json:"id"`
	ItemCode    string    `gorm:"size:45;uniqueIndex:idx_process_steps_item_ordinal,priority:1;not null" json:"item_code" binding:"required"`
	ProcessCode string    `gorm:"size:45;not null" json:"process_code" binding:"required"`
	ProcessName string    `gorm:"size:100;not null" json:"process_name" binding:"required"`
	Ordinal     int       `gorm:"uniqueIndex:idx_process_steps_item_ordinal,priority:2;not null" json:"ordinal"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewBomProcessStep struct {
	ItemCode    string `json:"item_code" binding:"required"`
	ProcessCode string `json:"process_code" binding:"required"`
	ProcessName string `json:"process_name" binding:"required"`
	Ordinal     int    `json:"ordinal" binding:"required"`
}

func (input *NewBomProcessStep) validate(ctx context.Context, id int) error {
	if input.Ordinal < 1 {
		return errors.New("ordinal must be 1 or greater")
	}
	if _, err := GetItemByCode(ctx, input.ItemCode); err != nil {
		return errors.New("item not found")
	}
	var count int64
	var err error
	if id == 0 {
		count, err = utils.ResourceCountWhere[BomProcessStep](ctx,
			"item_code = ? AND ordinal = ?", input.ItemCode, input.Ordinal)
	} else {
		count, err = utils.ResourceCountWhere[BomProcessStep](ctx,
			"item_code = ? AND ordinal = ? AND NOT id = ?", input.ItemCode, input.Ordinal, id)
	}
	if err != nil {
		return err
	}
	if count > 0 {
		return errors.New("duplicate ordinal for item")
	}
	return nil
}

func CreateBomProcessStep(ctx context.Context, input *NewBomProcessStep) (*BomProcessStep, error) {

	if err := input.validate(ctx, 0); err != nil {
		return nil, err
	}

	step := BomProcessStep{
		ItemCode:    input.ItemCode,
		ProcessCode: input.ProcessCode,
		ProcessName: input.ProcessName,
		Ordinal:     input.Ordinal,
	}

	db := config.GetDB()
	err := db.WithContext(ctx).Create(&step).Error
	if err != nil {
		return nil, err
	}
	return &step, nil
}

func UpdateBomProcessStep(ctx context.Context, id int, input *NewBomProcessStep) (*BomProcessStep, error) {

	if err := input.validate(ctx, id); err != nil {
		return nil, err
	}

	step, err := utils.FetchModel[BomProcessStep](ctx, id)
	if err != nil {
		return nil, err
	}

	db := config.GetDB()
	err = db.WithContext(ctx).Model(&step).Updates(map[string]interface{}{
		"ItemCode":    input.ItemCode,
		"ProcessCode": input.ProcessCode,
		"ProcessName": input.ProcessName,
		"Ordinal":     input.Ordinal,
	}).Error
	if err != nil {
		return nil, err
	}
	return step, nil
}

func DeleteBomProcessStep(ctx context.Context, id int) (*BomProcessStep, error) {

	db := config.GetDB()
	step, err := utils.FetchModel[BomProcessStep](ctx, id)
	if err != nil {
		return nil, err
	}

	// a step already traversed by a production run stays for the audit trail
	var count int64
	if err := db.WithContext(ctx).Model(&ProductionRun{}).
		Where("item_code = ? AND process_code = ?", step.ItemCode, step.ProcessCode).
		Count(&count).Error; err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, errors.New("process step has production records")
	}

	err = db.WithContext(ctx).Delete(&step).Error
	if err != nil {
		return nil, err
	}
	return step, nil
}

// GetBomProcessSteps returns an item's steps ordered by ordinal ascending.
func GetBomProcessSteps(ctx context.Context, itemCode string) ([]*BomProcessStep, error) {

	db := config.GetDB()
	var results []*BomProcessStep
	err := db.WithContext(ctx).
		Where("item_code = ?", itemCode).
		Order("ordinal").
		Find(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}
