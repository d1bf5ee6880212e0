package models_test

import (
	"testing"

	"github.com/mmdatafocus/mes_backend/config"
	"github.com/mmdatafocus/mes_backend/models"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Regression: FIFO consumption drains the oldest lot first. Two lots of 5;
// consuming 7 must leave the first at 0 and the second at 3, never the
// reverse.
func TestConsumeLotsFIFO_OldestFirst(t *testing.T) {
	ctx := setupProductionTestEnv(t)
	logger := config.GetLogger()
	db := config.GetDB()

	if _, err := models.CreateItem(ctx, &models.NewItem{
		Code: "RM1", Name: "Resin", Category: models.ItemCategoryRawMaterial, Unit: "kg",
	}); err != nil {
		t.Fatalf("CreateItem(RM1): %v", err)
	}

	var lot1, lot2 *models.InventoryLot
	err := db.Transaction(func(tx *gorm.DB) error {
		var err error
		lot1, err = models.CreateOrIncrementLot(ctx, tx, logger, "RM1", "Resin", decimal.NewFromInt(5), "", "RECEIPT-1")
		return err
	})
	if err != nil {
		t.Fatalf("create lot 1: %v", err)
	}
	err = db.Transaction(func(tx *gorm.DB) error {
		var err error
		lot2, err = models.CreateOrIncrementLot(ctx, tx, logger, "RM1", "Resin", decimal.NewFromInt(5), "", "RECEIPT-2")
		return err
	})
	if err != nil {
		t.Fatalf("create lot 2: %v", err)
	}
	if lot1.LotCode == lot2.LotCode {
		t.Fatalf("expected distinct lots; both got %q", lot1.LotCode)
	}
	assertStock(t, ctx, "RM1", 10)

	var consumed decimal.Decimal
	err = db.Transaction(func(tx *gorm.DB) error {
		var err error
		consumed, err = models.ConsumeLotsFIFO(ctx, tx, logger, "RM1", decimal.NewFromInt(7), "DRAW-1")
		return err
	})
	if err != nil {
		t.Fatalf("ConsumeLotsFIFO(7): %v", err)
	}
	if consumed.Cmp(decimal.NewFromInt(7)) != 0 {
		t.Fatalf("expected consumed=7; got %s", consumed)
	}

	lots, err := models.ListLots(ctx, "RM1", true)
	if err != nil {
		t.Fatalf("ListLots: %v", err)
	}
	if len(lots) != 2 {
		t.Fatalf("expected 2 lots; got %d", len(lots))
	}
	if lots[0].LotCode != lot1.LotCode {
		t.Fatalf("expected oldest lot first in FIFO order")
	}
	if !lots[0].QuantityRemaining.IsZero() {
		t.Fatalf("expected oldest lot drained; got %s", lots[0].QuantityRemaining)
	}
	if lots[1].QuantityRemaining.Cmp(decimal.NewFromInt(3)) != 0 {
		t.Fatalf("expected newer lot at 3; got %s", lots[1].QuantityRemaining)
	}
	assertStock(t, ctx, "RM1", 3)

	// one log row per lot touched
	adjustments, err := models.ListStockAdjustments(ctx, "RM1", 20)
	if err != nil {
		t.Fatalf("ListStockAdjustments: %v", err)
	}
	drawn := map[string]decimal.Decimal{}
	for _, a := range adjustments {
		if a.ReferenceType == models.StockReferenceTypeLotConsumption && a.ReferenceCode == "DRAW-1" {
			drawn[a.LotCode] = a.Delta
		}
	}
	if len(drawn) != 2 {
		t.Fatalf("expected 2 lot consumption rows; got %d", len(drawn))
	}
	if drawn[lot1.LotCode].Cmp(decimal.NewFromInt(-5)) != 0 {
		t.Fatalf("expected -5 against oldest lot; got %s", drawn[lot1.LotCode])
	}
	if drawn[lot2.LotCode].Cmp(decimal.NewFromInt(-2)) != 0 {
		t.Fatalf("expected -2 against newer lot; got %s", drawn[lot2.LotCode])
	}

	// asking for more than remains returns only what the lots held
	err = db.Transaction(func(tx *gorm.DB) error {
		var err error
		consumed, err = models.ConsumeLotsFIFO(ctx, tx, logger, "RM1", decimal.NewFromInt(99), "DRAW-2")
		return err
	})
	if err != nil {
		t.Fatalf("ConsumeLotsFIFO(99): %v", err)
	}
	if consumed.Cmp(decimal.NewFromInt(3)) != 0 {
		t.Fatalf("expected consumed=3; got %s", consumed)
	}
	assertStock(t, ctx, "RM1", 0)
}

// Regression: a replayed receipt that lands on an already-created lot code
// increments that lot instead of minting a second one. The replay is staged
// with two sessions: the second session's sequence scan runs against a
// snapshot taken before the first commit, so both allocate the same code.
func TestCreateOrIncrementLot_ReplayIncrementsSameLot(t *testing.T) {
	ctx := setupProductionTestEnv(t)
	logger := config.GetLogger()
	db := config.GetDB()

	if _, err := models.CreateItem(ctx, &models.NewItem{
		Code: "RM2", Name: "Sheet", Category: models.ItemCategoryRawMaterial, Unit: "pcs",
	}); err != nil {
		t.Fatalf("CreateItem(RM2): %v", err)
	}

	tx1 := db.Begin()
	if tx1.Error != nil {
		t.Fatalf("begin tx1: %v", tx1.Error)
	}
	lot1, err := models.CreateOrIncrementLot(ctx, tx1, logger, "RM2", "Sheet", decimal.NewFromInt(5), "", "REF-A")
	if err != nil {
		tx1.Rollback()
		t.Fatalf("CreateOrIncrementLot(tx1): %v", err)
	}

	tx2 := db.Begin()
	if tx2.Error != nil {
		tx1.Rollback()
		t.Fatalf("begin tx2: %v", tx2.Error)
	}
	// pin tx2's consistent-read snapshot before tx1 commits
	var n int64
	if err := tx2.WithContext(ctx).Model(&models.InventoryLot{}).Count(&n).Error; err != nil {
		tx1.Rollback()
		tx2.Rollback()
		t.Fatalf("pin tx2 snapshot: %v", err)
	}
	if err := tx1.Commit().Error; err != nil {
		tx2.Rollback()
		t.Fatalf("commit tx1: %v", err)
	}

	lot2, err := models.CreateOrIncrementLot(ctx, tx2, logger, "RM2", "Sheet", decimal.NewFromInt(4), "", "REF-B")
	if err != nil {
		tx2.Rollback()
		t.Fatalf("CreateOrIncrementLot(tx2): %v", err)
	}
	if err := tx2.Commit().Error; err != nil {
		t.Fatalf("commit tx2: %v", err)
	}

	if lot2.LotCode != lot1.LotCode {
		t.Fatalf("expected replay to land on %q; got %q", lot1.LotCode, lot2.LotCode)
	}

	lots, err := models.ListLots(ctx, "RM2", true)
	if err != nil {
		t.Fatalf("ListLots: %v", err)
	}
	if len(lots) != 1 {
		t.Fatalf("expected one lot row; got %d", len(lots))
	}
	if lots[0].QuantityRemaining.Cmp(decimal.NewFromInt(9)) != 0 {
		t.Fatalf("expected merged quantity 9; got %s", lots[0].QuantityRemaining)
	}
	assertStock(t, ctx, "RM2", 9)
}
