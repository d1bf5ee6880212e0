package models

import (
	"log"

	"github.com/mmdatafocus/mes_backend/config"
)

func MigrateTable() {
	db := config.GetDB()

	err := db.AutoMigrate(
		&Item{}, &Warehouse{},
		&BomEdge{}, &BomProcessStep{},
		&Inventory{}, &InventoryLot{}, &StockAdjustment{},
		&ProductionPlan{}, &ProductionInstruction{},
		&ProductionRun{}, &DefectRecord{},
		&User{},
	)
	if err != nil {
		log.Fatal(err)
	}
}
