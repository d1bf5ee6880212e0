package workflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mmdatafocus/mes_backend/config"
	"github.com/mmdatafocus/mes_backend/models"
	"github.com/mmdatafocus/mes_backend/utils"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const itemStockLockType = "ItemStock"

type EndProductionInput struct {
	ProductionCode      string                    `json:"production_code" binding:"required"`
	TotalDefectQuantity decimal.Decimal           `json:"total_defect_quantity"`
	DefectReasons       []*models.NewDefectReason `json:"defect_reasons"`
	WarehouseCode       string                    `json:"warehouse_code"`
}

func (input *EndProductionInput) validate() error {
	if input.TotalDefectQuantity.IsNegative() {
		return errors.New("defect quantity cannot be negative")
	}
	reasonTotal := decimal.Zero
	for _, reason := range input.DefectReasons {
		if !reason.Quantity.IsPositive() {
			return errors.New("defect reason quantity must be positive")
		}
		reasonTotal = reasonTotal.Add(reason.Quantity)
	}
	if !reasonTotal.Equal(input.TotalDefectQuantity) {
		return errors.New("defect reason quantities do not sum to total defect quantity")
	}
	return nil
}

// EndProduction closes the run's current step. The completed quantity is
// derived on the server as instructed minus defect. A step with a successor
// hands the completed quantity to a fresh run on that step; the terminal step
// draws raw material down and books the finished goods lot, all inside one
// transaction so a failure anywhere leaves the run untouched.
func EndProduction(ctx context.Context, logger *logrus.Logger, input *EndProductionInput) (*models.ProductionRun, error) {

	if err := input.validate(); err != nil {
		return nil, err
	}

	var run *models.ProductionRun
	var terminal bool

	db := config.GetDB()
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		run, err = models.GetProductionRunByCodeTx(ctx, tx, input.ProductionCode)
		if err != nil {
			return err
		}

		completed := run.InstructedQuantity.Sub(input.TotalDefectQuantity)
		if completed.IsNegative() {
			return errors.New("defect quantity exceeds instructed quantity")
		}

		steps, err := models.GetBomProcessSteps(ctx, run.ItemCode)
		if err != nil {
			return err
		}
		var successor *models.BomProcessStep
		for _, step := range steps {
			if step.Ordinal > run.ProcessOrdinal {
				successor = step
				break
			}
		}

		newStatus, err := models.NextProductionStatus(run.Status, successor != nil)
		if err != nil {
			return err
		}
		terminal = newStatus == models.ProductionStatusFinalComplete

		if len(input.DefectReasons) > 0 {
			if err := models.CreateDefectRecordsTx(ctx, tx, logger, run, input.DefectReasons); err != nil {
				return err
			}
		}

		now := time.Now()
		err = tx.WithContext(ctx).Model(run).Updates(map[string]interface{}{
			"CompletedQuantity": completed,
			"DefectQuantity":    input.TotalDefectQuantity,
			"Status":            newStatus,
			"CompletedAt":       &now,
		}).Error
		if err != nil {
			config.LogError(logger, "productionCompletion.go", "EndProduction", "Updating run", run.ProductionCode, err)
			return err
		}
		run.CompletedQuantity = completed
		run.DefectQuantity = input.TotalDefectQuantity
		run.Status = newStatus
		run.CompletedAt = &now

		if err := propagateToInstruction(ctx, tx, run, completed, input.TotalDefectQuantity); err != nil {
			return err
		}

		if terminal {
			return completeFinalStep(ctx, tx, logger, run, completed, input.WarehouseCode)
		}
		return openSuccessorRun(ctx, tx, logger, run, successor, completed)
	})
	if err != nil {
		return nil, err
	}

	config.MetricStepsCompleted.Inc()
	if terminal {
		config.MetricProductionsCompleted.Inc()
	}
	return run, nil
}

// propagateToInstruction keeps the instruction's actuals current: defects
// accumulate across steps, completed tracks the good quantity still moving
// through the pipeline.
func propagateToInstruction(ctx context.Context, tx *gorm.DB, run *models.ProductionRun, completed decimal.Decimal, defect decimal.Decimal) error {

	var instruction models.ProductionInstruction
	err := tx.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("instruction_code = ?", run.InstructionCode).
		First(&instruction).Error
	if err != nil {
		return fmt.Errorf("instruction %s not found for run %s", run.InstructionCode, run.ProductionCode)
	}

	return tx.WithContext(ctx).Model(&instruction).Updates(map[string]interface{}{
		"CompletedQuantity": completed,
		"DefectQuantity":    instruction.DefectQuantity.Add(defect),
	}).Error
}

// openSuccessorRun creates the next step's run carrying the completed
// quantity forward. The current code is pattern-checked first; a run whose
// code no longer parses points at corrupted data and must stop the line.
func openSuccessorRun(ctx context.Context, tx *gorm.DB, logger *logrus.Logger, run *models.ProductionRun, successor *models.BomProcessStep, completed decimal.Decimal) error {

	if _, _, _, err := models.ParseProductionCode(run.ProductionCode); err != nil {
		config.LogError(logger, "productionCompletion.go", "openSuccessorRun", "Malformed production code", run.ProductionCode, err)
		return fmt.Errorf("data integrity: production code %s: %w", run.ProductionCode, err)
	}

	productionCode, err := models.NextProductionCode(ctx, tx, run.ItemCode)
	if err != nil {
		return err
	}
	defectBatchCode, err := models.NextDefectBatchCode(ctx, tx, run.ItemCode)
	if err != nil {
		return err
	}

	employeeId, _ := utils.GetUserIdFromContext(ctx)
	employeeName, _ := utils.GetUserNameFromContext(ctx)

	next := models.ProductionRun{
		ProductionCode:     productionCode,
		InstructionCode:    run.InstructionCode,
		ItemCode:           run.ItemCode,
		ItemName:           run.ItemName,
		InstructedQuantity: completed,
		ProcessCode:        successor.ProcessCode,
		ProcessName:        successor.ProcessName,
		ProcessOrdinal:     successor.Ordinal,
		DefectBatchCode:    defectBatchCode,
		Status:             models.ProductionStatusInProgress,
		EmployeeId:         employeeId,
		EmployeeName:       employeeName,
		StartedAt:          time.Now(),
	}
	if err := tx.WithContext(ctx).Create(&next).Error; err != nil {
		if isDuplicateKeyErr(err) {
			return errors.New("production code collision, retry ending the step")
		}
		config.LogError(logger, "productionCompletion.go", "openSuccessorRun", "Creating successor run", run.InstructionCode, err)
		return err
	}
	return nil
}

// completeFinalStep draws raw material for the finished quantity and books
// the finished goods lot. The pre-flight pass checks every direct child's
// bulk stock before anything is written, so a shortage rejects the whole
// completion with no partial consumption.
func completeFinalStep(ctx context.Context, tx *gorm.DB, logger *logrus.Logger, run *models.ProductionRun, completed decimal.Decimal, warehouseCode string) error {

	if !completed.IsPositive() {
		config.LogWarn(logger, "productionCompletion.go", "completeFinalStep", "Nothing completed on final step", run.ProductionCode,
			"no material drawn and no lot created")
		return nil
	}

	lock, err := utils.ObtainKeyLock(ctx, itemStockLockType, run.ItemCode, "productionCompletion.go", "completeFinalStep")
	if err != nil {
		return err
	}
	defer func() {
		_ = lock.Release(ctx)
	}()

	result, err := models.ExplodeBomTx(ctx, tx, run.ItemCode, completed)
	if err != nil {
		return err
	}
	children := result.Root.Children

	var shortages []models.ShortageItem
	required := make(map[string]decimal.Decimal, len(children))
	for _, child := range children {
		stock, err := models.GetStock(ctx, tx, child.ItemCode)
		if err != nil {
			return err
		}
		required[child.ItemCode] = child.RequiredQuantity
		if stock.LessThan(child.RequiredQuantity) {
			shortages = append(shortages, models.ShortageItem{
				ItemCode:         child.ItemCode,
				ItemName:         child.ItemName,
				RequiredQuantity: child.RequiredQuantity,
				StockQuantity:    stock,
				ShortageQuantity: child.RequiredQuantity.Sub(stock),
			})
		}
	}
	if len(shortages) > 0 {
		config.MetricShortageRejections.Inc()
		return &models.ShortageError{Items: shortages}
	}

	for _, child := range children {
		consumed, err := models.ConsumeLotsFIFO(ctx, tx, logger, child.ItemCode, required[child.ItemCode], run.ProductionCode)
		if err != nil {
			return err
		}
		remainder := required[child.ItemCode].Sub(consumed)
		if remainder.IsPositive() {
			remark := "bulk fallback, lots exhausted"
			if err := models.AdjustStockTx(ctx, tx, child.ItemCode, remainder.Neg(),
				models.StockReferenceTypeBulkConsumption, run.ProductionCode, remark); err != nil {
				config.LogError(logger, "productionCompletion.go", "completeFinalStep", "Bulk draw-down", child.ItemCode, err)
				return err
			}
		}
	}

	if _, err := models.CreateOrIncrementLot(ctx, tx, logger, run.ItemCode, run.ItemName, completed, warehouseCode, run.ProductionCode); err != nil {
		return err
	}
	return nil
}
