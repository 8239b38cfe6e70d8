package models

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"github.com/venturelab/accelerator_backend/config"
	"github.com/venturelab/accelerator_backend/utils"
)

// TaskInstance is one startup's gated deliverable for one curriculum level.
// It holds at most one submission at a time; a resubmission overwrites the
// prior payload only while the state allows it. All writes go through the
// roadmap engine.
type TaskInstance struct {
	ID                int              `gorm:"primary_key" json:"id"`
	StartupId         string           `gorm:"index:idx_task_startup_level,unique;size:36;not null" json:"startup_id"`
	LevelDefinitionId int              `gorm:"index:idx_task_startup_level,unique;not null" json:"level_definition_id"`
	State             TaskState        `gorm:"size:20;not null;default:LOCKED" json:"state"`
	BadgeTier         BadgeTier        `gorm:"size:20" json:"badge_tier"`
	FileRef           string           `gorm:"size:500" json:"file_ref"`
	OracleScore       *decimal.Decimal `gorm:"type:decimal(5,2)" json:"oracle_score"`
	Feedback          string           `gorm:"type:text" json:"feedback"`
	ReadyForHuman     *bool            `json:"ready_for_human"`
	SubmittedAt       *time.Time       `json:"submitted_at"`
	DecidedAt         *time.Time       `json:"decided_at"`
	CreatedAt         time.Time        `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time        `gorm:"autoUpdateTime" json:"updated_at"`
}

// GetTaskInstance is a read-side convenience for the presentation layer.
func GetTaskInstance(ctx context.Context, id int) (*TaskInstance, error) {

	db := config.GetDB()
	var result TaskInstance
	if err := db.WithContext(ctx).First(&result, id).Error; err != nil {
		return nil, utils.ErrorRecordNotFound
	}
	return &result, nil
}

// GetRoadmap returns a startup's tasks joined with their level definitions,
// in curriculum order.
type RoadmapEntry struct {
	Task  *TaskInstance    `json:"task"`
	Level *LevelDefinition `json:"level"`
}

func GetRoadmap(ctx context.Context, startupId string) ([]*RoadmapEntry, error) {

	db := config.GetDB()
	var tasks []*TaskInstance
	if err := db.WithContext(ctx).
		Where("startup_id = ?", startupId).
		Order("level_definition_id").
		Find(&tasks).Error; err != nil {
		return nil, err
	}

	levels, err := GetLevelDefinitions(ctx)
	if err != nil {
		return nil, err
	}
	levelById := make(map[int]*LevelDefinition, len(levels))
	for _, level := range levels {
		levelById[level.ID] = level
	}

	entries := make([]*RoadmapEntry, 0, len(tasks))
	for _, task := range tasks {
		entries = append(entries, &RoadmapEntry{
			Task:  task,
			Level: levelById[task.LevelDefinitionId],
		})
	}
	return entries, nil
}
