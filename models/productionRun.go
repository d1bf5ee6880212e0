package models

import (
	"context"
	"errors"
	"time"

	"github.com/mmdatafocus/mes_backend/config"
	"github.com/mmdatafocus/mes_backend/utils"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ProductionRun is one process step of one instruction on the shop floor.
// A fresh row is created per step; completed rows are immutable.
type ProductionRun struct {
	ID                 int              `gorm:"primary_key" json:"id"`
	ProductionCode     string           `gorm:"size:60;uniqueIndex;not null" json:"production_code"`
	InstructionCode    string           `gorm:"size:45;index;not null" json:"instruction_code"`
	ItemCode           string           `gorm:"size:45;index;not null" json:"item_code"`
	ItemName           string           `gorm:"size:100" json:"item_name"`
	InstructedQuantity decimal.Decimal  `gorm:"type:decimal(20,4);not null" json:"instructed_quantity"`
	CompletedQuantity  decimal.Decimal  `gorm:"type:decimal(20,4);not null;default:0" json:"completed_quantity"`
	DefectQuantity     decimal.Decimal  `gorm:"type:decimal(20,4);not null;default:0" json:"defect_quantity"`
	ProcessCode        string           `gorm:"size:45;not null" json:"process_code"`
	ProcessName        string           `gorm:"size:100" json:"process_name"`
	ProcessOrdinal     int              `gorm:"not null" json:"process_ordinal"`
	DefectBatchCode    string           `gorm:"size:60;index" json:"defect_batch_code"`
	Status             ProductionStatus `gorm:"size:20;index;not null" json:"status"`
	EmployeeId         int              `json:"employee_id"`
	EmployeeName       string           `gorm:"size:100" json:"employee_name"`
	StartedAt          time.Time        `json:"started_at"`
	CompletedAt        *time.Time       `json:"completed_at"`
	CreatedAt          time.Time        `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt          time.Time        `gorm:"autoUpdateTime" json:"updated_at"`
}

// DefectRecord is one rejection reason line. All lines of one step share the
// run's defect batch code.
type DefectRecord struct {
	ID              int             `gorm:"primary_key" json:"id"`
	DefectBatchCode string          `gorm:"size:60;index;not null" json:"defect_batch_code"`
	ProductionCode  string          `gorm:"size:60;index;not null" json:"production_code"`
	ItemCode        string          `gorm:"size:45;index;not null" json:"item_code"`
	Quantity        decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"quantity"`
	Reason          string          `gorm:"size:255;not null" json:"reason"`
	Remark          string          `gorm:"size:255" json:"remark"`
	EmployeeId      int             `json:"employee_id"`
	EmployeeName    string          `gorm:"size:100" json:"employee_name"`
	CreatedAt       time.Time       `gorm:"autoCreateTime" json:"created_at"`
}

// NewDefectReason is a caller-supplied rejection line for ending a step.
type NewDefectReason struct {
	Quantity decimal.Decimal `json:"quantity" binding:"required"`
	Reason   string          `json:"reason" binding:"required"`
	Remark   string          `json:"remark"`
}

func GetProductionRunByCode(ctx context.Context, code string) (*ProductionRun, error) {
	return utils.FetchModelByCode[ProductionRun](ctx, "production_code", code)
}

// GetProductionRunByCodeTx is the FOR UPDATE variant used while a step is
// being ended; it keeps a concurrent end of the same run behind the row lock.
func GetProductionRunByCodeTx(ctx context.Context, tx *gorm.DB, code string) (*ProductionRun, error) {
	var run ProductionRun
	err := tx.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("production_code = ?", code).
		First(&run).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.ErrorRecordNotFound
		}
		return nil, err
	}
	return &run, nil
}

func ListProductionRuns(ctx context.Context, instructionCode *string, status *ProductionStatus) ([]*ProductionRun, error) {

	db := config.GetDB()
	dbCtx := db.WithContext(ctx)
	if instructionCode != nil && len(*instructionCode) > 0 {
		dbCtx = dbCtx.Where("instruction_code = ?", *instructionCode)
	}
	if status != nil && len(*status) > 0 {
		dbCtx = dbCtx.Where("status = ?", *status)
	}
	var results []*ProductionRun
	err := dbCtx.Order("id DESC").Find(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}

func ListDefectRecords(ctx context.Context, defectBatchCode string) ([]*DefectRecord, error) {

	db := config.GetDB()
	var results []*DefectRecord
	err := db.WithContext(ctx).
		Where("defect_batch_code = ?", defectBatchCode).
		Order("id").
		Find(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}

// CreateDefectRecordsTx persists one row per rejection reason under the run's
// batch code. The reason quantities must already sum to the run's total
// defect quantity; the caller validates that before opening the transaction.
func CreateDefectRecordsTx(ctx context.Context, tx *gorm.DB, logger *logrus.Logger, run *ProductionRun, reasons []*NewDefectReason) error {

	employeeId, _ := utils.GetUserIdFromContext(ctx)
	employeeName, _ := utils.GetUserNameFromContext(ctx)

	for _, reason := range reasons {
		record := DefectRecord{
			DefectBatchCode: run.DefectBatchCode,
			ProductionCode:  run.ProductionCode,
			ItemCode:        run.ItemCode,
			Quantity:        reason.Quantity,
			Reason:          reason.Reason,
			Remark:          reason.Remark,
			EmployeeId:      employeeId,
			EmployeeName:    employeeName,
		}
		if err := tx.WithContext(ctx).Create(&record).Error; err != nil {
			config.LogError(logger, "productionRun.go", "CreateDefectRecordsTx", "Creating defect record", run.ProductionCode, err)
			return err
		}
	}
	return nil
}
