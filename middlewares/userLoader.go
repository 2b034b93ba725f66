package middlewares

import (
	"context"

	"github.com/graph-gophers/dataloader/v7"
	"github.com/mmdatafocus/hrcrm_backend/models"
)

type userReader struct{}

func (r *userReader) getUsers(ctx context.Context, ids []int) []*dataloader.Result[*models.User] {
	results, err := models.GetUsersByIds(ctx, ids)
	if err != nil {
		return handleError[*models.User](len(ids), err)
	}
	return generateLoaderResults(results, ids, func(u *models.User) int { return u.ID })
}

func GetUser(ctx context.Context, id int) (*models.User, error) {
	loaders := For(ctx)
	return loaders.UserLoader.Load(ctx, id)()
}

func GetUsers(ctx context.Context, ids []int) ([]*models.User, []error) {
	loaders := For(ctx)
	return loaders.UserLoader.LoadMany(ctx, ids)()
}

// UserNames resolves full names for ids in one batch. Unknown ids are left out.
func UserNames(ctx context.Context, ids []int) (map[int]string, error) {
	names := make(map[int]string, len(ids))
	if len(ids) == 0 {
		return names, nil
	}
	users, errs := GetUsers(ctx, ids)
	for i, u := range users {
		if i < len(errs) && errs[i] != nil {
			return nil, errs[i]
		}
		if u != nil {
			names[u.ID] = u.FullName()
		}
	}
	return names, nil
}
