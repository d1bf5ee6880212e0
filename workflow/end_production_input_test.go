package workflow

import (
	"errors"
	"fmt"
	"testing"

	mysqlDriver "github.com/go-sql-driver/mysql"
	"github.com/mmdatafocus/mes_backend/models"
	"github.com/shopspring/decimal"
)

func TestEndProductionInput_Validate(t *testing.T) {
	cases := []struct {
		name    string
		input   EndProductionInput
		wantErr bool
	}{
		{
			name:  "no defects",
			input: EndProductionInput{ProductionCode: "2P120260115001"},
		},
		{
			name: "reasons sum to total",
			input: EndProductionInput{
				ProductionCode:      "2P120260115001",
				TotalDefectQuantity: decimal.NewFromInt(3),
				DefectReasons: []*models.NewDefectReason{
					{Quantity: decimal.NewFromInt(2), Reason: "scratch"},
					{Quantity: decimal.NewFromInt(1), Reason: "dent"},
				},
			},
		},
		{
			name: "negative total",
			input: EndProductionInput{
				ProductionCode:      "2P120260115001",
				TotalDefectQuantity: decimal.NewFromInt(-1),
			},
			wantErr: true,
		},
		{
			name: "reason quantity not positive",
			input: EndProductionInput{
				ProductionCode:      "2P120260115001",
				TotalDefectQuantity: decimal.NewFromInt(1),
				DefectReasons: []*models.NewDefectReason{
					{Quantity: decimal.Zero, Reason: "scratch"},
				},
			},
			wantErr: true,
		},
		{
			name: "reasons do not sum to total",
			input: EndProductionInput{
				ProductionCode:      "2P120260115001",
				TotalDefectQuantity: decimal.NewFromInt(3),
				DefectReasons: []*models.NewDefectReason{
					{Quantity: decimal.NewFromInt(2), Reason: "scratch"},
				},
			},
			wantErr: true,
		},
		{
			name: "total without reasons",
			input: EndProductionInput{
				ProductionCode:      "2P120260115001",
				TotalDefectQuantity: decimal.NewFromInt(2),
			},
			wantErr: true,
		},
	}

	for _, c := range cases {
		err := c.input.validate()
		if c.wantErr && err == nil {
			t.Fatalf("%s: expected error; got nil", c.name)
		}
		if !c.wantErr && err != nil {
			t.Fatalf("%s: unexpected error: %v", c.name, err)
		}
	}
}

func TestIsDuplicateKeyErr(t *testing.T) {
	dup := &mysqlDriver.MySQLError{Number: 1062, Message: "Duplicate entry"}
	if !isDuplicateKeyErr(dup) {
		t.Fatalf("expected 1062 recognized as duplicate key")
	}
	if !isDuplicateKeyErr(fmt.Errorf("create run: %w", dup)) {
		t.Fatalf("expected wrapped 1062 recognized as duplicate key")
	}
	if isDuplicateKeyErr(&mysqlDriver.MySQLError{Number: 1213}) {
		t.Fatalf("deadlock error misread as duplicate key")
	}
	if isDuplicateKeyErr(errors.New("plain error")) {
		t.Fatalf("plain error misread as duplicate key")
	}
}
