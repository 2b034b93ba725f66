package models

import (
	"context"
	"strings"
	"time"

	"github.com/mmdatafocus/hrcrm_backend/config"
	"github.com/mmdatafocus/hrcrm_backend/utils"
)

// Lookup is the shape shared by the small reference tables.
type Lookup struct {
	ID        int       `gorm:"primary_key" json:"id"`
	Name      string    `gorm:"size:100;not null" json:"name"`
	IsDeleted bool      `gorm:"not null;default:false" json:"isDeleted"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updatedAt"`
}

type UserType struct {
	Lookup
}

type Gender struct {
	Lookup
}

type Position struct {
	Lookup
}

type NewLookup struct {
	Name string `json:"name" binding:"required"`
}

// LookupModel is satisfied by *UserType, *Gender and *Position.
type LookupModel[T any] interface {
	*T
	RedisCleaner
	lookup() *Lookup
}

func (u *UserType) lookup() *Lookup { return &u.Lookup }
func (g *Gender) lookup() *Lookup   { return &g.Lookup }
func (p *Position) lookup() *Lookup { return &p.Lookup }

func (input *NewLookup) validate(ctx context.Context) error {
	input.Name = strings.TrimSpace(input.Name)
	if input.Name == "" {
		return utils.NewFieldError("name", "name is required")
	}
	return nil
}

func CreateLookup[T any, PT LookupModel[T]](ctx context.Context, input *NewLookup) (*T, error) {
	if err := input.validate(ctx); err != nil {
		return nil, err
	}
	var result T
	PT(&result).lookup().Name = input.Name

	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&result).Error; err != nil {
		return nil, err
	}
	if err := PT(&result).RemoveAllRedis(); err != nil {
		return nil, err
	}
	return &result, nil
}

func UpdateLookup[T any, PT LookupModel[T]](ctx context.Context, id int, input *NewLookup) (*T, error) {
	if err := input.validate(ctx); err != nil {
		return nil, err
	}
	result, err := utils.FetchLiveModel[T](ctx, id)
	if err != nil {
		return nil, err
	}
	db := config.GetDB()
	if err := db.WithContext(ctx).Model(result).Updates(map[string]interface{}{
		"name": input.Name,
	}).Error; err != nil {
		return nil, err
	}
	PT(result).lookup().Name = input.Name
	if err := RemoveRedisBoth(PT(result)); err != nil {
		return nil, err
	}
	return result, nil
}

func GetLookup[T any, PT LookupModel[T]](ctx context.Context, id int) (*T, error) {
	result, err := GetResource[T](ctx, id)
	if err != nil {
		return nil, err
	}
	if PT(result).lookup().IsDeleted {
		return nil, utils.ErrorRecordNotFound
	}
	return result, nil
}

func ListLookups[T any](ctx context.Context) ([]*T, error) {
	return ListAllResource[T](ctx, "name")
}

func DeleteLookup[T any, PT LookupModel[T]](ctx context.Context, id int) (*T, error) {
	result, err := utils.FetchLiveModel[T](ctx, id)
	if err != nil {
		return nil, err
	}
	db := config.GetDB()
	if err := db.WithContext(ctx).Model(result).UpdateColumn("is_deleted", true).Error; err != nil {
		return nil, err
	}
	PT(result).lookup().IsDeleted = true
	if err := RemoveRedisBoth(PT(result)); err != nil {
		return nil, err
	}
	return result, nil
}

// UserTypeName returns the lower-cased name of a user type, "" when missing.
func UserTypeName(ctx context.Context, id int) (string, error) {
	userType, err := GetResource[UserType](ctx, id)
	if err != nil {
		if err == utils.ErrorRecordNotFound {
			return "", nil
		}
		return "", err
	}
	return strings.ToLower(strings.TrimSpace(userType.Name)), nil
}
