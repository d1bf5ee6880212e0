package models

import (
	"context"
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
)

// ExportItemsExcel writes the item master to an xlsx workbook.
func ExportItemsExcel(ctx context.Context, w io.Writer) error {

	items, err := ListItems(ctx, nil, nil)
	if err != nil {
		return err
	}

	f := excelize.NewFile()
	sheetName := "Sheet1"
	_, err = f.NewSheet(sheetName)
	if err != nil {
		return err
	}

	// Add headers
	f.SetCellValue(sheetName, "A1", "Code")
	f.SetCellValue(sheetName, "B1", "Name")
	f.SetCellValue(sheetName, "C1", "Category")
	f.SetCellValue(sheetName, "D1", "Specification")
	f.SetCellValue(sheetName, "E1", "Unit")
	f.SetCellValue(sheetName, "F1", "SafetyStock")
	f.SetCellValue(sheetName, "G1", "IsActive")

	// Add data
	for i, item := range items {
		row := fmt.Sprint(i + 2)
		f.SetCellValue(sheetName, "A"+row, item.Code)
		f.SetCellValue(sheetName, "B"+row, item.Name)
		f.SetCellValue(sheetName, "C"+row, string(item.Category))
		f.SetCellValue(sheetName, "D"+row, item.Specification)
		f.SetCellValue(sheetName, "E"+row, item.Unit)
		f.SetCellValue(sheetName, "F"+row, item.SafetyStock.String())
		f.SetCellValue(sheetName, "G"+row, item.IsActive != nil && *item.IsActive)
	}

	return f.Write(w)
}

// ExportStockExcel writes the current bulk stock figures to an xlsx workbook.
func ExportStockExcel(ctx context.Context, w io.Writer) error {

	stocks, err := ListStock(ctx, nil)
	if err != nil {
		return err
	}

	f := excelize.NewFile()
	sheetName := "Sheet1"
	_, err = f.NewSheet(sheetName)
	if err != nil {
		return err
	}

	// Add headers
	f.SetCellValue(sheetName, "A1", "ItemCode")
	f.SetCellValue(sheetName, "B1", "QuantityOnHand")
	f.SetCellValue(sheetName, "C1", "Unit")
	f.SetCellValue(sheetName, "D1", "Status")

	// Add data
	for i, stock := range stocks {
		row := fmt.Sprint(i + 2)
		f.SetCellValue(sheetName, "A"+row, stock.ItemCode)
		f.SetCellValue(sheetName, "B"+row, stock.QuantityOnHand.String())
		f.SetCellValue(sheetName, "C"+row, stock.Unit)
		f.SetCellValue(sheetName, "D"+row, string(stock.Status))
	}

	return f.Write(w)
}
