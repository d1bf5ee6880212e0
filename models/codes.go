package models

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/mmdatafocus/mes_backend/config"
	"github.com/mmdatafocus/mes_backend/utils"
	"gorm.io/gorm"
)

// Generated business codes share one shape:
//
//	<leadingDigit><itemCode><YYYYMMDD><3-digit daily sequence>
//
// The daily sequence is 1 + the highest sequence already issued for the same
// item and day, which keeps codes sortable and human-traceable. Allocation is
// a read-then-write and MUST stay serialized per (item, day) key; callers go
// through nextDailyCode which holds a redis lock for the whole allocation.

const codeDateLayout = "20060102"

const codeSequenceLockType = "CodeSequence"

func BusinessTimezone() *time.Location {
	timezone := os.Getenv("TIMEZONE")
	if timezone == "" {
		timezone = "Asia/Yangon"
	}
	location, err := time.LoadLocation(timezone)
	if err != nil {
		return time.UTC
	}
	return location
}

func currentCodeDate() string {
	return time.Now().In(BusinessTimezone()).Format(codeDateLayout)
}

func formatDailyCode(leadingDigit string, itemCode string, codeDate string, sequence int) string {
	return fmt.Sprintf("%s%s%s%03d", leadingDigit, itemCode, codeDate, sequence)
}

// parseDailyCode splits a generated code back into its parts. The item code
// may itself contain digits, so the date+sequence block is anchored to the
// last 11 characters.
func parseDailyCode(code string, leadingDigit string) (itemCode string, codeDate string, sequence int, err error) {
	if len(code) < len(leadingDigit)+1+8+3 {
		return "", "", 0, errors.New("malformed code: too short")
	}
	if code[:len(leadingDigit)] != leadingDigit {
		return "", "", 0, errors.New("malformed code: wrong leading digit")
	}
	tail := code[len(code)-11:]
	codeDate = tail[:8]
	if _, err := time.Parse(codeDateLayout, codeDate); err != nil {
		return "", "", 0, errors.New("malformed code: invalid date segment")
	}
	if _, err := fmt.Sscanf(tail[8:], "%03d", &sequence); err != nil || sequence < 1 {
		return "", "", 0, errors.New("malformed code: invalid sequence segment")
	}
	itemCode = code[len(leadingDigit) : len(code)-11]
	if itemCode == "" {
		return "", "", 0, errors.New("malformed code: empty item code")
	}
	return itemCode, codeDate, sequence, nil
}

// nextDailyCode allocates the next code for (leadingDigit, itemCode, today).
// model/column name the table the code lives in so the DB max can seed the
// sequence after a redis restart.
func nextDailyCode(ctx context.Context, tx *gorm.DB, model any, column string, leadingDigit string, itemCode string) (string, error) {
	prefix := leadingDigit + itemCode + currentCodeDate()

	lock, err := utils.ObtainKeyLock(ctx, codeSequenceLockType, prefix, "codes.go", "nextDailyCode")
	if err != nil {
		return "", err
	}
	defer func() {
		_ = lock.Release(ctx)
	}()

	cacheKey := "codeSeq:" + prefix
	sequence, err := config.GetRedisCounter(ctx, cacheKey)
	if err != nil {
		return "", err
	}
	// counter not warmed (fresh key or no redis): seed from the DB max
	if sequence <= 1 {
		var dbMax *int64
		if err := tx.WithContext(ctx).Model(model).
			Select(fmt.Sprintf("MAX(CAST(RIGHT(%s, 3) AS UNSIGNED))", column)).
			Where(column+" LIKE ?", prefix+"%").
			Scan(&dbMax).Error; err != nil {
			return "", err
		}
		if dbMax == nil {
			sequence = 1
		} else {
			sequence = *dbMax + 1
		}
		if err := config.SetRedisObject(cacheKey, &sequence, 48*time.Hour); err != nil {
			return "", err
		}
	}

	// skip over codes that already exist (retried completions, manual imports)
	for {
		if sequence > 999 {
			return "", errors.New("daily code sequence exhausted for " + prefix)
		}
		candidate := formatDailyCode(leadingDigit, itemCode, currentCodeDate(), int(sequence))
		var count int64
		if err := tx.WithContext(ctx).Model(model).
			Where(column+" = ?", candidate).
			Count(&count).Error; err != nil {
			return "", err
		}
		if count == 0 {
			return candidate, nil
		}
		sequence++
	}
}

// NextProductionCode allocates a production code for an item, today.
func NextProductionCode(ctx context.Context, tx *gorm.DB, itemCode string) (string, error) {
	return nextDailyCode(ctx, tx, &ProductionRun{}, "production_code", CodeLeadingDigitProduction, itemCode)
}

// NextDefectBatchCode allocates the defect batch code shared by all steps of
// one production order.
func NextDefectBatchCode(ctx context.Context, tx *gorm.DB, itemCode string) (string, error) {
	return nextDailyCode(ctx, tx, &ProductionRun{}, "defect_batch_code", CodeLeadingDigitDefectBatch, itemCode)
}

// ParseProductionCode validates a stored production code before a successor
// code is derived from it. Failure here means corrupted data, not user error.
func ParseProductionCode(code string) (itemCode string, codeDate string, sequence int, err error) {
	return parseDailyCode(code, CodeLeadingDigitProduction)
}

// ParseLotCode validates a lot code.
func ParseLotCode(code string) (itemCode string, codeDate string, sequence int, err error) {
	return parseDailyCode(code, CodeLeadingDigitLot)
}
