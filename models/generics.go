package models

import (
	"context"

	"github.com/mmdatafocus/hrcrm_backend/config"
	"github.com/mmdatafocus/hrcrm_backend/utils"
)

// first find in redis, then in db, cache result
// (may return RecordNotFound error)
func GetResource[T any](ctx context.Context, id int, associations ...string) (*T, error) {
	// find in redis
	result, err := utils.RetrieveRedis[T](id)
	if err != nil {
		return nil, err
	}
	// if not found in redis
	if result == nil {
		result, err = utils.FetchSingleModel[T](ctx, id, associations...)
		if err != nil {
			return nil, err
		}
		if err := utils.StoreRedis[T](result, id); err != nil {
			return nil, err
		}
	}
	return result, nil
}

// list all live (is_deleted = false) resources, redis or db, cache result
func ListAllResource[T any](ctx context.Context, orders ...string) ([]*T, error) {
	results, err := utils.RetrieveRedisList[T]()
	if err != nil {
		return nil, err
	}
	if results == nil {
		db := config.GetDB()
		var model T
		dbCtx := db.WithContext(ctx).Model(&model).Where("is_deleted = ?", false)
		for _, order := range orders {
			dbCtx = dbCtx.Order(order)
		}
		if err = dbCtx.Find(&results).Error; err != nil {
			return nil, err
		}
		if err := utils.StoreRedisList[T](results); err != nil {
			return nil, err
		}
	}
	return results, nil
}
