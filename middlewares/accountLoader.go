package middlewares

import (
	"context"

	"github.com/graph-gophers/dataloader/v7"
	"gorm.io/gorm"

	"github.com/venturelab/accelerator_backend/models"
)

type accountReader struct {
	db *gorm.DB
}

func (r *accountReader) getAccounts(ctx context.Context, ids []int) []*dataloader.Result[*models.Account] {
	var results []*models.Account

	err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&results).Error
	if err != nil {
		return handleError[*models.Account](len(ids), err)
	}

	resultMap := make(map[int]*models.Account, len(results))
	for _, result := range results {
		result.PrepareGive()
		resultMap[result.ID] = result
	}

	loaderResults := make([]*dataloader.Result[*models.Account], 0, len(ids))
	for _, id := range ids {
		loaderResults = append(loaderResults, &dataloader.Result[*models.Account]{Data: resultMap[id]})
	}
	return loaderResults
}

// GetAccount returns a single account by id efficiently
func GetAccount(ctx context.Context, id int) (*models.Account, error) {
	loaders := For(ctx)
	return loaders.AccountLoader.Load(ctx, id)()
}
