package models

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mmdatafocus/mes_backend/config"
	"github.com/mmdatafocus/mes_backend/utils"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// InventoryLot is a quantity-tracked batch of an item. Lots are consumed
// strictly oldest-first; QuantityRemaining never goes negative and is only
// ever decremented by ConsumeLotsFIFO.
type InventoryLot struct {
	ID                int             `gorm:"primary_key" json:"id"`
	ItemCode          string          `gorm:"size:45;index:idx_lots_item_created,priority:1;not null" json:"item_code"`
	LotCode           string          `gorm:"size:60;uniqueIndex;not null" json:"lot_code"`
	QuantityRemaining decimal.Decimal `gorm:"type:decimal(20,4);not null;default:0" json:"quantity_remaining"`
	WarehouseCode     string          `gorm:"size:45;index" json:"warehouse_code"`
	CreatedAt         time.Time       `gorm:"autoCreateTime;index:idx_lots_item_created,priority:2" json:"created_at"`
	UpdatedAt         time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

// ConsumeLotsFIFO deducts up to requiredQuantity from an item's lots, oldest
// first, inside the caller's transaction. One adjustment-log row is written
// per lot touched and the bulk pool is decremented by the same total. The
// return value is the total actually deducted, which is
// less than requested when lots run out; covering the remainder from bulk
// stock is the caller's decision, never the ledger's.
func ConsumeLotsFIFO(ctx context.Context, tx *gorm.DB, logger *logrus.Logger, itemCode string, requiredQuantity decimal.Decimal, referenceCode string) (decimal.Decimal, error) {

	consumed := decimal.Zero
	if !requiredQuantity.IsPositive() {
		return consumed, nil
	}

	employeeId, _ := utils.GetUserIdFromContext(ctx)
	employeeName, _ := utils.GetUserNameFromContext(ctx)

	var lots []*InventoryLot
	err := tx.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("item_code = ? AND quantity_remaining > 0", itemCode).
		Order("created_at, id").
		Find(&lots).Error
	if err != nil {
		config.LogError(logger, "inventoryLot.go", "ConsumeLotsFIFO", "Querying lots", itemCode, err)
		return consumed, err
	}

	remaining := requiredQuantity
	for _, lot := range lots {
		if !remaining.IsPositive() {
			break
		}
		deduct := decimal.Min(lot.QuantityRemaining, remaining)
		newRemaining := lot.QuantityRemaining.Sub(deduct)

		if err := tx.WithContext(ctx).Model(lot).
			Update("QuantityRemaining", newRemaining).Error; err != nil {
			config.LogError(logger, "inventoryLot.go", "ConsumeLotsFIFO", "Updating lot", lot.LotCode, err)
			return consumed, err
		}
		lot.QuantityRemaining = newRemaining

		adjustment := StockAdjustment{
			ItemCode:      itemCode,
			LotCode:       lot.LotCode,
			Delta:         deduct.Neg(),
			ReferenceType: StockReferenceTypeLotConsumption,
			ReferenceCode: referenceCode,
			EmployeeId:    employeeId,
			EmployeeName:  employeeName,
		}
		if err := tx.WithContext(ctx).Create(&adjustment).Error; err != nil {
			config.LogError(logger, "inventoryLot.go", "ConsumeLotsFIFO", "Logging lot adjustment", lot.LotCode, err)
			return consumed, err
		}

		consumed = consumed.Add(deduct)
		remaining = remaining.Sub(deduct)
		config.MetricLotsConsumed.Inc()
	}

	// the per-lot rows above are the log for this movement; keep the bulk
	// pool in step so both stock views agree
	if consumed.IsPositive() {
		if err := applyBulkDeltaTx(ctx, tx, itemCode, consumed.Neg()); err != nil {
			config.LogError(logger, "inventoryLot.go", "ConsumeLotsFIFO", "Syncing bulk stock", itemCode, err)
			return consumed, err
		}
	}

	return consumed, nil
}

// allocateLotCode computes 1 + the highest sequence already issued for this
// item today, deliberately WITHOUT skipping existing codes: a replayed
// completion that lands on an existing code is handled by the idempotency
// branch of CreateOrIncrementLot, not by minting a second lot.
func allocateLotCode(ctx context.Context, tx *gorm.DB, itemCode string) (string, error) {
	prefix := CodeLeadingDigitLot + itemCode + currentCodeDate()

	var dbMax *int64
	if err := tx.WithContext(ctx).Model(&InventoryLot{}).
		Select("MAX(CAST(RIGHT(lot_code, 3) AS UNSIGNED))").
		Where("lot_code LIKE ?", prefix+"%").
		Scan(&dbMax).Error; err != nil {
		return "", err
	}
	sequence := int64(1)
	if dbMax != nil {
		sequence = *dbMax + 1
	}
	if sequence > 999 {
		return "", errors.New("daily lot sequence exhausted for " + prefix)
	}
	return fmt.Sprintf("%s%03d", prefix, sequence), nil
}

// CreateOrIncrementLot records finished goods in the lot ledger and keeps the
// bulk Inventory row in sync within the same transaction, so either view can
// serve as the on-hand figure. A lot code that already exists (re-entrant
// call on the same day/sequence) increments that lot instead of duplicating
// it. Any persistence failure must abort the caller's whole transaction.
func CreateOrIncrementLot(ctx context.Context, tx *gorm.DB, logger *logrus.Logger, itemCode string, itemName string, quantity decimal.Decimal, warehouseCode string, referenceCode string) (*InventoryLot, error) {

	if !quantity.IsPositive() {
		return nil, errors.New("lot quantity must be positive")
	}
	if warehouseCode == "" {
		warehouseCode = DefaultWarehouseCode
	}

	lock, err := utils.ObtainKeyLock(ctx, codeSequenceLockType, CodeLeadingDigitLot+itemCode+currentCodeDate(), "inventoryLot.go", "CreateOrIncrementLot")
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = lock.Release(ctx)
	}()

	lotCode, err := allocateLotCode(ctx, tx, itemCode)
	if err != nil {
		config.LogError(logger, "inventoryLot.go", "CreateOrIncrementLot", "Allocating lot code", itemCode, err)
		return nil, err
	}

	var lot InventoryLot
	err = tx.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("lot_code = ?", lotCode).
		First(&lot).Error
	if err == nil {
		// idempotency guard for retried completion calls
		newQuantity := lot.QuantityRemaining.Add(quantity)
		if err := tx.WithContext(ctx).Model(&lot).
			Update("QuantityRemaining", newQuantity).Error; err != nil {
			return nil, err
		}
		lot.QuantityRemaining = newQuantity
	} else if errors.Is(err, gorm.ErrRecordNotFound) {
		lot = InventoryLot{
			ItemCode:          itemCode,
			LotCode:           lotCode,
			QuantityRemaining: quantity,
			WarehouseCode:     warehouseCode,
		}
		if err := tx.WithContext(ctx).Create(&lot).Error; err != nil {
			config.LogError(logger, "inventoryLot.go", "CreateOrIncrementLot", "Creating lot", lotCode, err)
			return nil, err
		}
	} else {
		return nil, err
	}

	remark := "production receipt " + itemName
	if err := AdjustStockTx(ctx, tx, itemCode, quantity, StockReferenceTypeProductionReceipt, referenceCode, remark); err != nil {
		config.LogError(logger, "inventoryLot.go", "CreateOrIncrementLot", "Syncing bulk stock", itemCode, err)
		return nil, err
	}

	return &lot, nil
}

// ListLots returns an item's lots in FIFO order for the back office.
func ListLots(ctx context.Context, itemCode string, includeEmpty bool) ([]*InventoryLot, error) {

	db := config.GetDB()
	var results []*InventoryLot
	dbCtx := db.WithContext(ctx).Where("item_code = ?", itemCode)
	if !includeEmpty {
		dbCtx = dbCtx.Where("quantity_remaining > 0")
	}
	err := dbCtx.Order("created_at, id").Find(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}
