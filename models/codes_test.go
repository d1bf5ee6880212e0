package models

import (
	"strings"
	"testing"
)

func TestFormatAndParseDailyCode_RoundTrip(t *testing.T) {
	// item codes may themselves contain digits; the parser must still
	// anchor the date+sequence block correctly
	cases := []struct {
		leading  string
		itemCode string
		date     string
		sequence int
	}{
		{CodeLeadingDigitLot, "C1", "20260115", 1},
		{CodeLeadingDigitProduction, "P1", "20260115", 42},
		{CodeLeadingDigitDefectBatch, "ITEM-2000", "20251231", 999},
	}

	for _, c := range cases {
		code := formatDailyCode(c.leading, c.itemCode, c.date, c.sequence)
		itemCode, codeDate, sequence, err := parseDailyCode(code, c.leading)
		if err != nil {
			t.Fatalf("parseDailyCode(%q): %v", code, err)
		}
		if itemCode != c.itemCode {
			t.Fatalf("code %q: expected item code %q; got %q", code, c.itemCode, itemCode)
		}
		if codeDate != c.date {
			t.Fatalf("code %q: expected date %q; got %q", code, c.date, codeDate)
		}
		if sequence != c.sequence {
			t.Fatalf("code %q: expected sequence %d; got %d", code, c.sequence, sequence)
		}
	}
}

func TestParseDailyCode_RejectsMalformedCodes(t *testing.T) {
	cases := []struct {
		name    string
		code    string
		leading string
		errPart string
	}{
		{"too short", "1C1", CodeLeadingDigitLot, "too short"},
		{"wrong leading digit", "2C120260115001", CodeLeadingDigitLot, "wrong leading digit"},
		{"invalid date", "1C120261341001", CodeLeadingDigitLot, "invalid date segment"},
		{"non-numeric sequence", "1C120260115abc", CodeLeadingDigitLot, "invalid sequence segment"},
		{"zero sequence", "1C120260115000", CodeLeadingDigitLot, "invalid sequence segment"},
		{"date and sequence only", "120260115001", CodeLeadingDigitLot, "too short"},
	}

	for _, c := range cases {
		_, _, _, err := parseDailyCode(c.code, c.leading)
		if err == nil {
			t.Fatalf("%s: expected error for %q; got nil", c.name, c.code)
		}
		if !strings.Contains(err.Error(), c.errPart) {
			t.Fatalf("%s: expected error containing %q; got %q", c.name, c.errPart, err.Error())
		}
	}
}

func TestParseProductionCode_LeadingDigit(t *testing.T) {
	code := formatDailyCode(CodeLeadingDigitProduction, "P1", "20260115", 3)
	itemCode, _, sequence, err := ParseProductionCode(code)
	if err != nil {
		t.Fatalf("ParseProductionCode: %v", err)
	}
	if itemCode != "P1" || sequence != 3 {
		t.Fatalf("expected P1/3; got %s/%d", itemCode, sequence)
	}
	if _, _, _, err := ParseLotCode(code); err == nil {
		t.Fatalf("expected lot parse of a production code to fail")
	}
}

func TestNextProductionStatus(t *testing.T) {
	next, err := NextProductionStatus(ProductionStatusInProgress, true)
	if err != nil {
		t.Fatalf("InProgress with successor: %v", err)
	}
	if next != ProductionStatusStepComplete {
		t.Fatalf("expected StepComplete; got %s", next)
	}

	next, err = NextProductionStatus(ProductionStatusInProgress, false)
	if err != nil {
		t.Fatalf("InProgress terminal: %v", err)
	}
	if next != ProductionStatusFinalComplete {
		t.Fatalf("expected FinalComplete; got %s", next)
	}

	// both completed states are final for the row
	if _, err := NextProductionStatus(ProductionStatusStepComplete, false); err == nil {
		t.Fatalf("expected transition from StepComplete to fail")
	}
	if _, err := NextProductionStatus(ProductionStatusFinalComplete, true); err == nil {
		t.Fatalf("expected transition from FinalComplete to fail")
	}
}
