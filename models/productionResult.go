package models

import (
	"context"
	"time"

	"github.com/mmdatafocus/mes_backend/config"
	"github.com/mmdatafocus/mes_backend/utils"
	"github.com/shopspring/decimal"
)

type ProductionResultFilter struct {
	ItemCode        *string    `json:"item_code" form:"item_code"`
	InstructionCode *string    `json:"instruction_code" form:"instruction_code"`
	FromDate        *time.Time `json:"from_date" form:"from_date" time_format:"2006-01-02"`
	ToDate          *time.Time `json:"to_date" form:"to_date" time_format:"2006-01-02"`
}

// ProductionResult is one instruction rolled up across all of its step runs.
type ProductionResult struct {
	InstructionCode     string           `json:"instruction_code"`
	ItemCode            string           `json:"item_code"`
	ItemName            string           `json:"item_name"`
	OrderedQuantity     decimal.Decimal  `json:"ordered_quantity"`
	CompletedQuantity   decimal.Decimal  `json:"completed_quantity"`
	TotalDefectQuantity decimal.Decimal  `json:"total_defect_quantity"`
	RunCount            int              `json:"run_count"`
	CurrentStatus       ProductionStatus `json:"current_status"`
	FirstStartedAt      *time.Time       `json:"first_started_at"`
	LastCompletedAt     *time.Time       `json:"last_completed_at"`
}

type ProductionResultPage struct {
	Results []*ProductionResult `json:"results"`
	Total   int64               `json:"total"`
	Page    int                 `json:"page"`
	Limit   int                 `json:"limit"`
}

// GetProductionResults aggregates runs by instruction. Completed quantity is
// taken from the terminal row only; in-flight instructions report zero until
// the final step books its output.
func GetProductionResults(ctx context.Context, filter ProductionResultFilter, page int, limit int) (*ProductionResultPage, error) {
	sqlTemplate := `
SELECT
    pr.instruction_code,
    pr.item_code,
    MAX(pr.item_name) AS item_name,
    MAX(pi.ordered_quantity) AS ordered_quantity,
    SUM(CASE WHEN pr.status = 'FinalComplete' THEN pr.completed_quantity ELSE 0 END) AS completed_quantity,
    SUM(pr.defect_quantity) AS total_defect_quantity,
    COUNT(*) AS run_count,
    SUBSTRING_INDEX(GROUP_CONCAT(pr.status ORDER BY pr.id DESC), ',', 1) AS current_status,
    MIN(pr.started_at) AS first_started_at,
    MAX(pr.completed_at) AS last_completed_at
FROM
    production_runs AS pr
    JOIN production_instructions AS pi ON pi.instruction_code = pr.instruction_code
WHERE
    1 = 1
    {{- if .itemCode }} AND pr.item_code = @itemCode {{- end }}
    {{- if .instructionCode }} AND pr.instruction_code = @instructionCode {{- end }}
    {{- if .fromDate }} AND pr.started_at >= @fromDate {{- end }}
    {{- if .toDate }} AND pr.started_at < @toDate {{- end }}
GROUP BY
    pr.instruction_code,
    pr.item_code
ORDER BY
    MIN(pr.id) DESC
LIMIT @limit OFFSET @offset;
`
	countTemplate := `
SELECT
    COUNT(DISTINCT pr.instruction_code)
FROM
    production_runs AS pr
WHERE
    1 = 1
    {{- if .itemCode }} AND pr.item_code = @itemCode {{- end }}
    {{- if .instructionCode }} AND pr.instruction_code = @instructionCode {{- end }}
    {{- if .fromDate }} AND pr.started_at >= @fromDate {{- end }}
    {{- if .toDate }} AND pr.started_at < @toDate {{- end }};
`

	if page < 1 {
		page = 1
	}
	if limit <= 0 || limit > 100 {
		limit = config.SearchLimit
	}

	var toDateExclusive *time.Time
	if filter.ToDate != nil {
		// to-date filter is inclusive of the whole day
		t := filter.ToDate.In(BusinessTimezone()).AddDate(0, 0, 1)
		toDateExclusive = &t
	}

	templateData := map[string]interface{}{
		"itemCode":        utils.DereferencePtr(filter.ItemCode),
		"instructionCode": utils.DereferencePtr(filter.InstructionCode),
		"fromDate":        filter.FromDate != nil,
		"toDate":          toDateExclusive != nil,
	}
	params := map[string]interface{}{
		"itemCode":        filter.ItemCode,
		"instructionCode": filter.InstructionCode,
		"fromDate":        filter.FromDate,
		"toDate":          toDateExclusive,
		"limit":           limit,
		"offset":          (page - 1) * limit,
	}

	db := config.GetDB()

	countSql, err := utils.ExecTemplate(countTemplate, templateData)
	if err != nil {
		return nil, err
	}
	var total int64
	if err := db.WithContext(ctx).Raw(countSql, params).Scan(&total).Error; err != nil {
		return nil, err
	}

	sql, err := utils.ExecTemplate(sqlTemplate, templateData)
	if err != nil {
		return nil, err
	}
	var results []*ProductionResult
	if err := db.WithContext(ctx).Raw(sql, params).Scan(&results).Error; err != nil {
		return nil, err
	}

	return &ProductionResultPage{
		Results: results,
		Total:   total,
		Page:    page,
		Limit:   limit,
	}, nil
}
