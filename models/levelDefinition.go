package models

import (
	"context"
	"errors"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/venturelab/accelerator_backend/config"
	"github.com/venturelab/accelerator_backend/utils"
	"github.com/xuri/excelize/v2"
)

// LevelDefinition is static, ordered curriculum metadata. It is immutable at
// runtime and not tied to any one startup; its id (1..N) defines the total
// ordering the roadmap engine enforces.
type LevelDefinition struct {
	ID          int            `gorm:"primary_key" json:"id"`
	Title       string         `gorm:"size:255;not null" json:"title"`
	Description string         `gorm:"type:text" json:"description"`
	Tier        ComplexityTier `gorm:"size:20;not null" json:"tier"`
}

/*
caches:
	LevelDefinitionList
*/

// GetLevelDefinitions returns the full curriculum in level order.
func GetLevelDefinitions(ctx context.Context) ([]*LevelDefinition, error) {

	cached, err := utils.RetrieveRedisList[LevelDefinition]()
	if err != nil {
		return nil, err
	}
	if cached != nil {
		return cached, nil
	}

	db := config.GetDB()
	var results []*LevelDefinition
	if err := db.WithContext(ctx).Order("id").Find(&results).Error; err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, errors.New("curriculum is not seeded")
	}

	if err := utils.StoreRedisList[LevelDefinition](&results); err != nil {
		return nil, err
	}
	return results, nil
}

func GetLevelDefinition(ctx context.Context, id int) (*LevelDefinition, error) {

	db := config.GetDB()
	var result LevelDefinition
	if err := db.WithContext(ctx).First(&result, id).Error; err != nil {
		return nil, utils.ErrorRecordNotFound
	}
	return &result, nil
}

// SeedLevelDefinitions inserts the given curriculum if none exists yet.
func SeedLevelDefinitions(ctx context.Context, levels []*LevelDefinition) error {

	db := config.GetDB()
	var count int64
	if err := db.WithContext(ctx).Model(&LevelDefinition{}).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}
	sort.Slice(levels, func(i, j int) bool { return levels[i].ID < levels[j].ID })
	if err := db.WithContext(ctx).Create(&levels).Error; err != nil {
		return err
	}
	return utils.RemoveRedisList[LevelDefinition]()
}

// ImportLevelDefinitions loads a curriculum from a spreadsheet
// (columns: id, title, description, tier). Admin-only bulk setup.
func ImportLevelDefinitions(ctx context.Context, r io.Reader) ([]*LevelDefinition, error) {

	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	sheet := f.GetSheetName(0)
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, err
	}

	var levels []*LevelDefinition
	for i, row := range rows {
		if i == 0 || len(row) < 2 {
			// header or short row
			continue
		}
		id, err := strconv.Atoi(strings.TrimSpace(row[0]))
		if err != nil || id < 1 {
			continue
		}
		level := &LevelDefinition{
			ID:    id,
			Title: strings.TrimSpace(row[1]),
			Tier:  ComplexityTierCore,
		}
		if len(row) > 2 {
			level.Description = strings.TrimSpace(row[2])
		}
		if len(row) > 3 {
			switch strings.ToUpper(strings.TrimSpace(row[3])) {
			case string(ComplexityTierFoundation):
				level.Tier = ComplexityTierFoundation
			case string(ComplexityTierAdvanced):
				level.Tier = ComplexityTierAdvanced
			}
		}
		levels = append(levels, level)
	}
	if len(levels) == 0 {
		return nil, errors.New("no level rows found")
	}

	if err := SeedLevelDefinitions(ctx, levels); err != nil {
		return nil, err
	}
	return levels, nil
}
