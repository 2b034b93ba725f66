package models

import (
	"fmt"

	"github.com/mmdatafocus/hrcrm_backend/config"
	"github.com/mmdatafocus/hrcrm_backend/utils"
)

type RedisCleaner interface {
	RemoveInstanceRedis() error // remove one
	RemoveAllRedis() error      // remove list
}

// remove both item & list
func RemoveRedisBoth[T RedisCleaner](obj T) error {
	if err := obj.RemoveInstanceRedis(); err != nil {
		return err
	}
	if err := obj.RemoveAllRedis(); err != nil {
		return err
	}
	return nil
}

func (obj UserType) RemoveInstanceRedis() error {
	return utils.RemoveRedisItem[UserType](obj.ID)
}

func (obj UserType) RemoveAllRedis() error {
	return utils.RemoveRedisList[UserType]()
}

func (obj Gender) RemoveInstanceRedis() error {
	return utils.RemoveRedisItem[Gender](obj.ID)
}

func (obj Gender) RemoveAllRedis() error {
	return utils.RemoveRedisList[Gender]()
}

func (obj Position) RemoveInstanceRedis() error {
	return utils.RemoveRedisItem[Position](obj.ID)
}

func (obj Position) RemoveAllRedis() error {
	return utils.RemoveRedisList[Position]()
}

/*
caches:
	User:$id
	UserList
*/

func (obj User) RemoveInstanceRedis() error {
	return config.RemoveRedisKey("User:" + fmt.Sprint(obj.ID))
}

func (obj User) RemoveAllRedis() error {
	return utils.RemoveRedisList[User]()
}
