package models

import (
	"fmt"
	"strings"

	"github.com/mmdatafocus/mes_backend/utils"
	"github.com/shopspring/decimal"
)

type ShortageItem struct {
	ItemCode         string          `json:"item_code"`
	ItemName         string          `json:"item_name"`
	RequiredQuantity decimal.Decimal `json:"required_quantity"`
	StockQuantity    decimal.Decimal `json:"stock_quantity"`
	ShortageQuantity decimal.Decimal `json:"shortage_quantity"`
}

// ShortageError rejects a final completion while raw material is short. It
// enumerates every short item with amounts so the caller can restock and
// retry without re-deriving the shortfall.
type ShortageError struct {
	Items []ShortageItem
}

func (e *ShortageError) Error() string {
	parts := make([]string, 0, len(e.Items))
	for _, item := range e.Items {
		parts = append(parts, fmt.Sprintf("%s short %s (required %s, on hand %s)",
			item.ItemCode, item.ShortageQuantity, item.RequiredQuantity, item.StockQuantity))
	}
	return "insufficient raw material: " + strings.Join(parts, "; ")
}

func errorRootItemNotFound(itemCode string) error {
	return fmt.Errorf("%w: item %s", utils.ErrorRecordNotFound, itemCode)
}
