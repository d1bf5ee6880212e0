package utils

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"text/template"
	"time"

	"github.com/bsm/redislock"
	"github.com/mmdatafocus/mes_backend/config"
	"github.com/shopspring/decimal"
)

func NewTrue() *bool {
	b := true
	return &b
}

func NewFalse() *bool {
	b := false
	return &b
}

// safely dereference pointer of type T, nil pointer return zero value or optional default
func DereferencePtr[T any](ptr *T, defaults ...T) T {
	var defaultValue T
	if len(defaults) > 0 {
		defaultValue = defaults[0]
	}
	if ptr == nil {
		return defaultValue
	}
	return *ptr
}

func NilIfEmpty[T comparable](ptr T) *T {
	var defaultZero T
	if ptr == defaultZero {
		return nil
	}
	return &ptr
}

// mergeSlices merges two integer slices and removes duplicates
func MergeIntSlices(slice1, slice2 []int) []int {
	elementMap := make(map[int]bool)
	mergedSlice := []int{}

	for _, elem := range slice1 {
		if !elementMap[elem] {
			elementMap[elem] = true
			mergedSlice = append(mergedSlice, elem)
		}
	}

	for _, elem := range slice2 {
		if !elementMap[elem] {
			elementMap[elem] = true
			mergedSlice = append(mergedSlice, elem)
		}
	}

	return mergedSlice
}

// parse a quantity string into decimal, empty string is an error
func ParseDecimal(value string) (decimal.Decimal, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return decimal.Zero, errors.New("empty decimal string")
	}

	dec, err := decimal.NewFromString(value)
	if err != nil {
		return decimal.Zero, err
	}

	return dec, nil
}

// ExecTemplate renders a sql template with optional filter clauses
func ExecTemplate(tString string, data map[string]interface{}) (string, error) {
	t, err := template.New("sql").Parse(tString)
	if err != nil {
		return "", errors.New("error parsing sql template: " + err.Error())
	}
	var b bytes.Buffer
	if err := t.Execute(&b, data); err != nil {
		return "", errors.New("failed to execute sql template: " + err.Error())
	}
	return b.String(), nil
}

// ObtainKeyLock serializes a critical section on a shared resource key
// (item stock, code sequence). The caller MUST release the returned lock.
func ObtainKeyLock(ctx context.Context, lockType string, key string, moduleName string, functionName string) (*redislock.Lock, error) {
	logger := config.GetLogger()
	locker := config.GetRedisLock()
	if locker == nil {
		// Avoid nil-pointer panics when Redis lock isn't initialized yet.
		config.LogError(logger, moduleName, functionName, "Redis lock not initialized", key, errors.New("redis lock is nil"))
		return nil, errors.New("service not ready (redis lock not initialized)")
	}
	lockKey := fmt.Sprintf("%s:%s", lockType, key)
	lock, err := locker.Obtain(ctx, lockKey, 30*time.Second, &redislock.Options{
		RetryStrategy: redislock.LimitRetry(redislock.LinearBackoff(100*time.Millisecond), 50),
	})
	if err == redislock.ErrNotObtained {
		config.LogError(logger, moduleName, functionName, "Could not obtain lock for key", lockKey, err)
		return nil, errors.New("could not obtain lock for " + lockType)
	} else if err != nil {
		config.LogError(logger, moduleName, functionName, "Error obtaining lock for key", lockKey, err)
		return nil, err
	}
	return lock, nil
}
