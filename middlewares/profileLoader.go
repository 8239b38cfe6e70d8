package middlewares

import (
	"context"

	"github.com/graph-gophers/dataloader/v7"
	"gorm.io/gorm"

	"github.com/venturelab/accelerator_backend/models"
)

type startupReader struct {
	db *gorm.DB
}

func (r *startupReader) getStartups(ctx context.Context, ids []string) []*dataloader.Result[*models.StartupProfile] {
	var results []*models.StartupProfile

	err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&results).Error
	if err != nil {
		return handleError[*models.StartupProfile](len(ids), err)
	}

	resultMap := make(map[string]*models.StartupProfile, len(results))
	for _, result := range results {
		resultMap[result.ID] = result
	}

	loaderResults := make([]*dataloader.Result[*models.StartupProfile], 0, len(ids))
	for _, id := range ids {
		loaderResults = append(loaderResults, &dataloader.Result[*models.StartupProfile]{Data: resultMap[id]})
	}
	return loaderResults
}

type partnerReader struct {
	db *gorm.DB
}

func (r *partnerReader) getPartners(ctx context.Context, ids []string) []*dataloader.Result[*models.PartnerProfile] {
	var results []*models.PartnerProfile

	err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&results).Error
	if err != nil {
		return handleError[*models.PartnerProfile](len(ids), err)
	}

	resultMap := make(map[string]*models.PartnerProfile, len(results))
	for _, result := range results {
		resultMap[result.ID] = result
	}

	loaderResults := make([]*dataloader.Result[*models.PartnerProfile], 0, len(ids))
	for _, id := range ids {
		loaderResults = append(loaderResults, &dataloader.Result[*models.PartnerProfile]{Data: resultMap[id]})
	}
	return loaderResults
}

type levelReader struct {
	db *gorm.DB
}

func (r *levelReader) getLevels(ctx context.Context, ids []int) []*dataloader.Result[*models.LevelDefinition] {
	var results []*models.LevelDefinition

	err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&results).Error
	if err != nil {
		return handleError[*models.LevelDefinition](len(ids), err)
	}

	resultMap := make(map[int]*models.LevelDefinition, len(results))
	for _, result := range results {
		resultMap[result.ID] = result
	}

	loaderResults := make([]*dataloader.Result[*models.LevelDefinition], 0, len(ids))
	for _, id := range ids {
		loaderResults = append(loaderResults, &dataloader.Result[*models.LevelDefinition]{Data: resultMap[id]})
	}
	return loaderResults
}

// GetStartupProfile returns a single startup profile by id efficiently
func GetStartupProfile(ctx context.Context, id string) (*models.StartupProfile, error) {
	loaders := For(ctx)
	return loaders.StartupLoader.Load(ctx, id)()
}

// GetPartnerProfile returns a single partner profile by id efficiently
func GetPartnerProfile(ctx context.Context, id string) (*models.PartnerProfile, error) {
	loaders := For(ctx)
	return loaders.PartnerLoader.Load(ctx, id)()
}

// GetLevelDefinition returns a single level definition by id efficiently
func GetLevelDefinition(ctx context.Context, id int) (*models.LevelDefinition, error) {
	loaders := For(ctx)
	return loaders.LevelLoader.Load(ctx, id)()
}
