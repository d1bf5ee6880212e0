package models

import "errors"

type ProductionStatus string

const (
	ProductionStatusInProgress    ProductionStatus = "InProgress"
	ProductionStatusStepComplete  ProductionStatus = "StepComplete"
	ProductionStatusFinalComplete ProductionStatus = "FinalComplete"
)

func (s ProductionStatus) IsValid() bool {
	switch s {
	case ProductionStatusInProgress, ProductionStatusStepComplete, ProductionStatusFinalComplete:
		return true
	}
	return false
}

// NextProductionStatus is the single transition function for production runs.
// A run only ever moves InProgress -> StepComplete (successor step exists) or
// InProgress -> FinalComplete (terminal step); both completed states are final
// for that row.
func NextProductionStatus(current ProductionStatus, hasSuccessor bool) (ProductionStatus, error) {
	if current != ProductionStatusInProgress {
		return current, errors.New("production run is not in progress")
	}
	if hasSuccessor {
		return ProductionStatusStepComplete, nil
	}
	return ProductionStatusFinalComplete, nil
}

type ItemCategory string

const (
	ItemCategoryRawMaterial  ItemCategory = "RawMaterial"
	ItemCategorySubAssembly  ItemCategory = "SubAssembly"
	ItemCategoryFinishedGood ItemCategory = "FinishedGood"
)

func (c *ItemCategory) UnmarshalText(b []byte) error {
	switch ItemCategory(b) {
	case ItemCategoryRawMaterial:
		*c = ItemCategoryRawMaterial
	case ItemCategorySubAssembly:
		*c = ItemCategorySubAssembly
	case ItemCategoryFinishedGood:
		*c = ItemCategoryFinishedGood
	default:
		return errors.New("invalid item category")
	}
	return nil
}

// StockReferenceType tags every stock adjustment with what caused it.
type StockReferenceType string

const (
	StockReferenceTypeManual            StockReferenceType = "Manual"
	StockReferenceTypeLotConsumption    StockReferenceType = "LotConsumption"
	StockReferenceTypeBulkConsumption   StockReferenceType = "BulkConsumption"
	StockReferenceTypeProductionReceipt StockReferenceType = "ProductionReceipt"
	StockReferenceTypeRebuild           StockReferenceType = "Rebuild"
)

type InventoryStatus string

const (
	InventoryStatusAvailable InventoryStatus = "Available"
	InventoryStatusHold      InventoryStatus = "Hold"
)

// leading digits for generated business codes (see codes.go)
const (
	CodeLeadingDigitLot         = "1"
	CodeLeadingDigitProduction  = "2"
	CodeLeadingDigitDefectBatch = "3"
)
