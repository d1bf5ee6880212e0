package models

import (
	"context"
	"errors"
	"time"

	"github.com/mmdatafocus/mes_backend/config"
	"github.com/mmdatafocus/mes_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Inventory is the bulk (non-lotted) stock pool, one row per item. It is the
// fallback when FIFO lots are exhausted and the figure the pre-flight
// shortage check reads.
type Inventory struct {
	ID             int             `gorm:"primary_key" json:"id"`
	ItemCode       string          `gorm:"size:45;uniqueIndex;not null" json:"item_code"`
	QuantityOnHand decimal.Decimal `gorm:"type:decimal(20,4);not null;default:0" json:"quantity_on_hand"`
	Unit           string          `gorm:"size:20" json:"unit"`
	Status         InventoryStatus `gorm:"size:20;not null;default:'Available'" json:"status"`
	CreatedAt      time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

// StockAdjustment is the append-only adjustment log. Every mutation of a lot
// or of bulk stock leaves one row here.
type StockAdjustment struct {
	ID            int                `gorm:"primary_key" json:"id"`
	ItemCode      string             `gorm:"size:45;index;not null" json:"item_code"`
	LotCode       string             `gorm:"size:60;index" json:"lot_code"`
	Delta         decimal.Decimal    `gorm:"type:decimal(20,4);not null" json:"delta"`
	ReferenceType StockReferenceType `gorm:"size:30;not null" json:"reference_type"`
	ReferenceCode string             `gorm:"size:60;index" json:"reference_code"`
	Remark        string             `gorm:"size:255" json:"remark"`
	EmployeeId    int                `json:"employee_id"`
	EmployeeName  string             `gorm:"size:100" json:"employee_name"`
	CreatedAt     time.Time          `gorm:"autoCreateTime" json:"created_at"`
}

// GetStock returns the bulk quantity on hand, zero when no row exists yet.
func GetStock(ctx context.Context, tx *gorm.DB, itemCode string) (decimal.Decimal, error) {
	quantity := decimal.Zero
	err := tx.WithContext(ctx).Model(&Inventory{}).
		Where("item_code = ?", itemCode).
		Select("quantity_on_hand").
		Scan(&quantity).Error
	if err != nil {
		return decimal.Zero, err
	}
	return quantity, nil
}

// applyBulkDeltaTx moves the bulk pool without logging. Callers that hold
// their own log rows for the movement (per-lot consumption) use this
// directly; everything else goes through AdjustStockTx. The bulk pool is
// never allowed to go negative.
func applyBulkDeltaTx(ctx context.Context, tx *gorm.DB, itemCode string, delta decimal.Decimal) error {

	var inventory Inventory
	err := tx.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("item_code = ?", itemCode).
		First(&inventory).Error
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		if delta.IsNegative() {
			return errors.New("stock cannot be negative")
		}
		item, ierr := GetItemByCode(ctx, itemCode)
		if ierr != nil {
			return ierr
		}
		inventory = Inventory{
			ItemCode:       itemCode,
			QuantityOnHand: delta,
			Unit:           item.Unit,
			Status:         InventoryStatusAvailable,
		}
		if err := tx.WithContext(ctx).Create(&inventory).Error; err != nil {
			return err
		}
	} else {
		newQty := inventory.QuantityOnHand.Add(delta)
		if newQty.IsNegative() {
			return errors.New("stock cannot be negative")
		}
		if err := tx.WithContext(ctx).Model(&inventory).
			Update("QuantityOnHand", newQty).Error; err != nil {
			return err
		}
	}
	return nil
}

// AdjustStockTx applies a delta to the bulk pool inside the caller's
// transaction and writes the adjustment log row.
func AdjustStockTx(ctx context.Context, tx *gorm.DB, itemCode string, delta decimal.Decimal, refType StockReferenceType, refCode string, remark string) error {

	employeeId, _ := utils.GetUserIdFromContext(ctx)
	employeeName, _ := utils.GetUserNameFromContext(ctx)

	if err := applyBulkDeltaTx(ctx, tx, itemCode, delta); err != nil {
		return err
	}

	adjustment := StockAdjustment{
		ItemCode:      itemCode,
		Delta:         delta,
		ReferenceType: refType,
		ReferenceCode: refCode,
		Remark:        remark,
		EmployeeId:    employeeId,
		EmployeeName:  employeeName,
	}
	return tx.WithContext(ctx).Create(&adjustment).Error
}

// AdjustStock is the back-office manual adjustment entry point.
func AdjustStock(ctx context.Context, itemCode string, delta decimal.Decimal, remark string) (*Inventory, error) {

	if _, err := GetItemByCode(ctx, itemCode); err != nil {
		return nil, err
	}

	db := config.GetDB()
	tx := db.WithContext(ctx).Begin()
	if err := AdjustStockTx(ctx, tx, itemCode, delta, StockReferenceTypeManual, "", remark); err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.Commit().Error; err != nil {
		return nil, err
	}

	var inventory Inventory
	if err := db.WithContext(ctx).Where("item_code = ?", itemCode).First(&inventory).Error; err != nil {
		return nil, err
	}
	return &inventory, nil
}

func ListStock(ctx context.Context, itemCode *string) ([]*Inventory, error) {

	db := config.GetDB()
	var results []*Inventory

	dbCtx := db.WithContext(ctx)
	if itemCode != nil && len(*itemCode) > 0 {
		dbCtx = dbCtx.Where("item_code LIKE ?", "%"+*itemCode+"%")
	}
	err := dbCtx.Order("item_code").Find(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}

func ListStockAdjustments(ctx context.Context, itemCode string, limit int) ([]*StockAdjustment, error) {

	if limit <= 0 {
		limit = config.SearchLimit
	}
	db := config.GetDB()
	var results []*StockAdjustment
	err := db.WithContext(ctx).
		Where("item_code = ?", itemCode).
		Order("id DESC").
		Limit(limit).
		Find(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}
