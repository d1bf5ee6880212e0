package workflow

import (
	"context"
	"errors"
	"time"

	mysqlDriver "github.com/go-sql-driver/mysql"
	"github.com/mmdatafocus/mes_backend/config"
	"github.com/mmdatafocus/mes_backend/models"
	"github.com/mmdatafocus/mes_backend/utils"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// A synthetic step is bound to runs of items whose routing was never set up.
const defaultProcessCode = "PROC-DEFAULT"

func isDuplicateKeyErr(err error) bool {
	var mysqlErr *mysqlDriver.MySQLError
	if errors.As(err, &mysqlErr) {
		return mysqlErr.Number == 1062
	}
	return false
}

// StartProduction resolves an instruction down to its root item and first
// process step and opens a run on it. The instructed quantity is the
// instruction's ordered quantity; quantities for later steps come from the
// previous step's completion, not from here.
func StartProduction(ctx context.Context, logger *logrus.Logger, instructionCode string) (*models.ProductionRun, error) {

	instruction, plan, err := models.GetProductionInstructionByCode(ctx, instructionCode)
	if err != nil {
		return nil, err
	}
	item, err := models.GetItemByCode(ctx, plan.ItemCode)
	if err != nil {
		config.LogError(logger, "productionStart.go", "StartProduction", "Resolving plan item", plan.ItemCode, err)
		return nil, errors.New("plan item not found: " + plan.ItemCode)
	}

	steps, err := models.GetBomProcessSteps(ctx, item.Code)
	if err != nil {
		return nil, err
	}
	var firstStep *models.BomProcessStep
	if len(steps) > 0 {
		firstStep = steps[0]
	} else {
		config.LogWarn(logger, "productionStart.go", "StartProduction", "No process steps defined, using default step", item.Code,
			"item has no routing; production will run as a single step")
		firstStep = &models.BomProcessStep{
			ItemCode:    item.Code,
			ProcessCode: defaultProcessCode,
			ProcessName: "Default",
			Ordinal:     1,
		}
	}

	var active int64
	db := config.GetDB()
	err = db.WithContext(ctx).Model(&models.ProductionRun{}).
		Where("instruction_code = ? AND status = ?", instruction.InstructionCode, models.ProductionStatusInProgress).
		Count(&active).Error
	if err != nil {
		return nil, err
	}
	if active > 0 {
		return nil, errors.New("instruction already has a run in progress")
	}

	employeeId, _ := utils.GetUserIdFromContext(ctx)
	employeeName, _ := utils.GetUserNameFromContext(ctx)

	var run *models.ProductionRun
	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		productionCode, err := models.NextProductionCode(ctx, tx, item.Code)
		if err != nil {
			config.LogError(logger, "productionStart.go", "StartProduction", "Allocating production code", item.Code, err)
			return err
		}
		defectBatchCode, err := models.NextDefectBatchCode(ctx, tx, item.Code)
		if err != nil {
			config.LogError(logger, "productionStart.go", "StartProduction", "Allocating defect batch code", item.Code, err)
			return err
		}

		run = &models.ProductionRun{
			ProductionCode:     productionCode,
			InstructionCode:    instruction.InstructionCode,
			ItemCode:           item.Code,
			ItemName:           item.Name,
			InstructedQuantity: instruction.OrderedQuantity,
			ProcessCode:        firstStep.ProcessCode,
			ProcessName:        firstStep.ProcessName,
			ProcessOrdinal:     firstStep.Ordinal,
			DefectBatchCode:    defectBatchCode,
			Status:             models.ProductionStatusInProgress,
			EmployeeId:         employeeId,
			EmployeeName:       employeeName,
			StartedAt:          time.Now(),
		}
		if err := tx.WithContext(ctx).Create(run).Error; err != nil {
			if isDuplicateKeyErr(err) {
				// concurrent start raced past the sequence lock
				return errors.New("production code collision, retry the start")
			}
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	config.MetricProductionsStarted.Inc()
	return run, nil
}
