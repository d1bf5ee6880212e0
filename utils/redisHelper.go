package utils

import (
	"os"
	"reflect"
	"strconv"
	"time"

	"github.com/mmdatafocus/mes_backend/config"
)

func GetCacheLifespan() time.Duration {
	lifespan, err := strconv.Atoi(os.Getenv("CACHE_LIFESPAN"))
	if err != nil {
		lifespan = 1
	}
	return time.Duration(lifespan) * time.Hour
}

/* generic functions */

func GetTypeName[T any]() string {
	var v T
	typeOfT := reflect.TypeOf(v)
	return typeOfT.Name()
}

/* Redis */

// master-data types whose cache entries expire
func typeHasExpiration(typeName string) bool {
	expirableTypes := map[string]bool{
		"Item":           true,
		"Warehouse":      true,
		"BomProcessStep": true,
	}
	return expirableTypes[typeName]
}

// store instance keyed by its business code
func StoreRedis[T any](obj any, code string) error {
	typeName := GetTypeName[T]()
	key := typeName + ":" + code

	var duration time.Duration
	if typeHasExpiration(typeName) {
		duration = GetCacheLifespan()
	}
	return config.SetRedisObject(key, &obj, duration)
}

// get from redis
// returns nil if does not exist
func RetrieveRedis[T any](code string) (*T, error) {
	var result *T
	key := GetTypeName[T]() + ":" + code
	exists, err := config.GetRedisObject(key, &result)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, nil
	}
	return result, nil
}

// remove an instance, Type:$code
func RemoveRedisItem[T any](code string) error {
	key := GetTypeName[T]() + ":" + code
	return config.RemoveRedisKey(key)
}
