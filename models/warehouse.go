package models

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/mmdatafocus/mes_backend/config"
	"github.com/mmdatafocus/mes_backend/utils"
)

// DefaultWarehouseCode receives finished goods when a completion call does
// not name a warehouse.
const DefaultWarehouseCode = "WH-DEFAULT"

type Warehouse struct {
	ID        int       `gorm:"primary_key" json:"id"`
	Code      string    `gorm:"size:45;uniqueIndex;not null" json:"code" binding:"required"`
	Name      string    `gorm:"size:100;not null" json:"name" binding:"required"`
	Phone     string    `gorm:"size:20" json:"phone"`
	Address   string    `gorm:"type:text" json:"address"`
	IsActive  *bool     `gorm:"not null;default:true" json:"is_active"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewWarehouse struct {
	Code    string `json:"code" binding:"required"`
	Name    string `json:"name" binding:"required"`
	Phone   string `json:"phone"`
	Address string `json:"address"`
}

// validate input for both create & update. (id = 0 for create)
func (input *NewWarehouse) validate(ctx context.Context, id int) error {
	if err := utils.ValidateUnique[Warehouse](ctx, "code", input.Code, id); err != nil {
		return err
	}
	if err := utils.ValidateUnique[Warehouse](ctx, "name", input.Name, id); err != nil {
		return err
	}
	if len(strings.TrimSpace(input.Phone)) > 0 {
		if err := utils.ValidatePhoneNumber(input.Phone, utils.CountryCode); err != nil {
			return err
		}
	}
	return nil
}

func CreateWarehouse(ctx context.Context, input *NewWarehouse) (*Warehouse, error) {

	if err := input.validate(ctx, 0); err != nil {
		return nil, err
	}

	warehouse := Warehouse{
		Code:     input.Code,
		Name:     input.Name,
		Phone:    input.Phone,
		Address:  input.Address,
		IsActive: utils.NewTrue(),
	}

	db := config.GetDB()
	err := db.WithContext(ctx).Create(&warehouse).Error
	if err != nil {
		return nil, err
	}
	return &warehouse, nil
}

func UpdateWarehouse(ctx context.Context, id int, input *NewWarehouse) (*Warehouse, error) {

	if err := input.validate(ctx, id); err != nil {
		return nil, err
	}

	warehouse, err := utils.FetchModel[Warehouse](ctx, id)
	if err != nil {
		return nil, err
	}

	db := config.GetDB()
	err = db.WithContext(ctx).Model(&warehouse).Updates(map[string]interface{}{
		"Code":    input.Code,
		"Name":    input.Name,
		"Phone":   input.Phone,
		"Address": input.Address,
	}).Error
	if err != nil {
		return nil, err
	}
	if err := utils.RemoveRedisItem[Warehouse](warehouse.Code); err != nil {
		return nil, err
	}
	return warehouse, nil
}

func DeleteWarehouse(ctx context.Context, id int) (*Warehouse, error) {

	db := config.GetDB()
	warehouse, err := utils.FetchModel[Warehouse](ctx, id)
	if err != nil {
		return nil, err
	}

	// check if warehouse holds lots
	var count int64
	if err := db.WithContext(ctx).Model(&InventoryLot{}).
		Where("warehouse_code = ? AND quantity_remaining > 0", warehouse.Code).
		Count(&count).Error; err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, errors.New("warehouse has stock")
	}

	err = db.WithContext(ctx).Delete(&warehouse).Error
	if err != nil {
		return nil, err
	}
	if err := utils.RemoveRedisItem[Warehouse](warehouse.Code); err != nil {
		return nil, err
	}
	return warehouse, nil
}

// GetWarehouseByCode reads a warehouse through the redis cache.
// (may return RecordNotFound)
func GetWarehouseByCode(ctx context.Context, code string) (*Warehouse, error) {
	result, err := utils.RetrieveRedis[Warehouse](code)
	if err != nil {
		return nil, err
	}
	if result == nil {
		result, err = utils.FetchModelByCode[Warehouse](ctx, "code", code)
		if err != nil {
			return nil, err
		}
		if err := utils.StoreRedis[Warehouse](result, code); err != nil {
			return nil, err
		}
	}
	return result, nil
}

func ListWarehouses(ctx context.Context, name *string) ([]*Warehouse, error) {

	db := config.GetDB()
	var results []*Warehouse

	dbCtx := db.WithContext(ctx)
	if name != nil && len(*name) > 0 {
		dbCtx = dbCtx.Where("name LIKE ?", "%"+*name+"%")
	}
	err := dbCtx.Order("name").Find(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}
