package models

import (
	"context"
	"errors"
	"time"

	"github.com/mmdatafocus/mes_backend/config"
	"github.com/mmdatafocus/mes_backend/utils"
	"github.com/shopspring/decimal"
)

// ProductionPlan names the item and quantity a planner wants built; the BOM
// explosion of the plan item decides whether an instruction is issued.
type ProductionPlan struct {
	ID              int             `gorm:"primary_key" json:"id"`
	PlanCode        string          `gorm:"size:45;uniqueIndex;not null" json:"plan_code" binding:"required"`
	ItemCode        string          `gorm:"size:45;index;not null" json:"item_code" binding:"required"`
	PlannedQuantity decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"planned_quantity"`
	PlanDate        time.Time       `json:"plan_date"`
	Remark          string          `gorm:"size:255" json:"remark"`
	CreatedAt       time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

// ProductionInstruction is the order handed to the shop floor. Its
// completed/defect quantities track cumulative actuals as steps end,
// independent of the per-step ProductionRun rows.
type ProductionInstruction struct {
	ID                int             `gorm:"primary_key" json:"id"`
	InstructionCode   string          `gorm:"size:45;uniqueIndex;not null" json:"instruction_code" binding:"required"`
	PlanCode          string          `gorm:"size:45;index;not null" json:"plan_code" binding:"required"`
	OrderedQuantity   decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"ordered_quantity"`
	CompletedQuantity decimal.Decimal `gorm:"type:decimal(20,4);not null;default:0" json:"completed_quantity"`
	DefectQuantity    decimal.Decimal `gorm:"type:decimal(20,4);not null;default:0" json:"defect_quantity"`
	InstructionDate   time.Time       `json:"instruction_date"`
	Remark            string          `gorm:"size:255" json:"remark"`
	CreatedAt         time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewProductionPlan struct {
	PlanCode        string          `json:"plan_code" binding:"required"`
	ItemCode        string          `json:"item_code" binding:"required"`
	PlannedQuantity decimal.Decimal `json:"planned_quantity" binding:"required"`
	PlanDate        time.Time       `json:"plan_date"`
	Remark          string          `json:"remark"`
}

func CreateProductionPlan(ctx context.Context, input *NewProductionPlan) (*ProductionPlan, error) {

	if err := utils.ValidateUnique[ProductionPlan](ctx, "plan_code", input.PlanCode, 0); err != nil {
		return nil, err
	}
	if !input.PlannedQuantity.IsPositive() {
		return nil, errors.New("planned quantity must be positive")
	}
	if _, err := GetItemByCode(ctx, input.ItemCode); err != nil {
		return nil, errors.New("item not found")
	}

	planDate := input.PlanDate
	if planDate.IsZero() {
		planDate = time.Now()
	}
	plan := ProductionPlan{
		PlanCode:        input.PlanCode,
		ItemCode:        input.ItemCode,
		PlannedQuantity: input.PlannedQuantity,
		PlanDate:        planDate,
		Remark:          input.Remark,
	}

	db := config.GetDB()
	err := db.WithContext(ctx).Create(&plan).Error
	if err != nil {
		return nil, err
	}
	return &plan, nil
}

type NewProductionInstruction struct {
	InstructionCode string          `json:"instruction_code" binding:"required"`
	PlanCode        string          `json:"plan_code" binding:"required"`
	OrderedQuantity decimal.Decimal `json:"ordered_quantity" binding:"required"`
	InstructionDate time.Time       `json:"instruction_date"`
	Remark          string          `json:"remark"`
}

func CreateProductionInstruction(ctx context.Context, input *NewProductionInstruction) (*ProductionInstruction, error) {

	if err := utils.ValidateUnique[ProductionInstruction](ctx, "instruction_code", input.InstructionCode, 0); err != nil {
		return nil, err
	}
	if !input.OrderedQuantity.IsPositive() {
		return nil, errors.New("ordered quantity must be positive")
	}
	if _, err := utils.FetchModelByCode[ProductionPlan](ctx, "plan_code", input.PlanCode); err != nil {
		return nil, errors.New("production plan not found")
	}

	instructionDate := input.InstructionDate
	if instructionDate.IsZero() {
		instructionDate = time.Now()
	}
	instruction := ProductionInstruction{
		InstructionCode: input.InstructionCode,
		PlanCode:        input.PlanCode,
		OrderedQuantity: input.OrderedQuantity,
		InstructionDate: instructionDate,
		Remark:          input.Remark,
	}

	db := config.GetDB()
	err := db.WithContext(ctx).Create(&instruction).Error
	if err != nil {
		return nil, err
	}
	return &instruction, nil
}

// GetProductionInstructionByCode also resolves the plan so callers reach the
// root item in one call.
// (may return RecordNotFound)
func GetProductionInstructionByCode(ctx context.Context, code string) (*ProductionInstruction, *ProductionPlan, error) {
	instruction, err := utils.FetchModelByCode[ProductionInstruction](ctx, "instruction_code", code)
	if err != nil {
		return nil, nil, err
	}
	plan, err := utils.FetchModelByCode[ProductionPlan](ctx, "plan_code", instruction.PlanCode)
	if err != nil {
		return nil, nil, errors.New("production plan not found for instruction " + code)
	}
	return instruction, plan, nil
}

func ListProductionInstructions(ctx context.Context, planCode *string) ([]*ProductionInstruction, error) {

	db := config.GetDB()
	var results []*ProductionInstruction
	dbCtx := db.WithContext(ctx)
	if planCode != nil && len(*planCode) > 0 {
		dbCtx = dbCtx.Where("plan_code = ?", *planCode)
	}
	err := dbCtx.Order("id DESC").Find(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}
