package middlewares

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/graph-gophers/dataloader/v7"
	"github.com/venturelab/accelerator_backend/config"
	"github.com/venturelab/accelerator_backend/models"
	"gorm.io/gorm"
)

type ctxKey string

const (
	loadersKey = ctxKey("dataloaders")
)

// Loaders batch the per-row lookups the list endpoints would otherwise issue
// one by one (request lists resolve startup, partner and account rows).
type Loaders struct {
	AccountLoader *dataloader.Loader[int, *models.Account]
	StartupLoader *dataloader.Loader[string, *models.StartupProfile]
	PartnerLoader *dataloader.Loader[string, *models.PartnerProfile]
	LevelLoader   *dataloader.Loader[int, *models.LevelDefinition]
}

// NewLoaders instantiates data loaders for the middleware
func NewLoaders(conn *gorm.DB) *Loaders {
	accountReader := &accountReader{db: conn}
	startupReader := &startupReader{db: conn}
	partnerReader := &partnerReader{db: conn}
	levelReader := &levelReader{db: conn}

	return &Loaders{
		AccountLoader: dataloader.NewBatchedLoader(accountReader.getAccounts,
			dataloader.WithWait[int, *models.Account](time.Millisecond)),
		StartupLoader: dataloader.NewBatchedLoader(startupReader.getStartups,
			dataloader.WithWait[string, *models.StartupProfile](time.Millisecond)),
		PartnerLoader: dataloader.NewBatchedLoader(partnerReader.getPartners,
			dataloader.WithWait[string, *models.PartnerProfile](time.Millisecond)),
		LevelLoader: dataloader.NewBatchedLoader(levelReader.getLevels,
			dataloader.WithWait[int, *models.LevelDefinition](time.Millisecond)),
	}
}

func LoaderMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		loader := NewLoaders(config.GetDB())
		ctx := context.WithValue(c.Request.Context(), loadersKey, loader)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

func For(ctx context.Context) *Loaders {
	return ctx.Value(loadersKey).(*Loaders)
}

// handleError creates array of result with the same error repeated for as many items requested
func handleError[T any](itemsLength int, err error) []*dataloader.Result[T] {
	result := make([]*dataloader.Result[T], itemsLength)
	for i := 0; i < itemsLength; i++ {
		result[i] = &dataloader.Result[T]{Error: err}
	}
	return result
}
