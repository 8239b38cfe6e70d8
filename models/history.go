package models

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/venturelab/accelerator_backend/config"
	"github.com/venturelab/accelerator_backend/utils"
	"gorm.io/gorm"
)

// History is an audit row written alongside state-changing operations.
type History struct {
	ID            int       `gorm:"primary_key" json:"id"`
	ActionType    string    `gorm:"size:10;not null" json:"action_type" binding:"required"`
	Before        string    `gorm:"type:text" json:"before"`
	After         string    `gorm:"type:text" json:"after"`
	Description   string    `gorm:"type:text;not null" json:"description"`
	ReferenceID   string    `gorm:"size:64;index" json:"reference_id"`
	ReferenceType string    `gorm:"size:255" json:"reference_type"`
	UserId        int       `gorm:"index;not null" json:"user_id"`
	UserName      string    `gorm:"size:100" json:"user_name"`
	CreatedAt     time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func createHistory(tx *gorm.DB,
	actionType string,
	referenceId string,
	referenceType string,
	before interface{},
	after interface{},
	description string) (err error) {

	var history History

	b, _ := json.Marshal(before)
	a, _ := json.Marshal(after)

	ctx := tx.Statement.Context
	userId, ok := utils.GetAccountIdFromContext(ctx)
	if !ok {
		return errors.New("account id is required")
	}
	userName, _ := utils.GetAccountNameFromContext(ctx)

	history.ActionType = actionType
	history.Before = string(b)
	history.After = string(a)
	history.Description = description
	history.ReferenceID = referenceId
	history.ReferenceType = referenceType
	history.UserId = userId
	history.UserName = userName

	err = tx.Create(&history).Error
	return err
}

func SaveHistoryCreate(tx *gorm.DB, referenceType string, id string, obj interface{}, description string) error {
	return createHistory(tx, "CREATE", id, referenceType, nil, obj, description)
}

func SaveHistoryUpdate(tx *gorm.DB, referenceType string, id string, before interface{}, after interface{}, description string) error {
	return createHistory(tx, "UPDATE", id, referenceType, before, after, description)
}

func GetHistories(ctx context.Context, referenceId *string, referenceType *string, userId *int) ([]*History, error) {

	db := config.GetDB()
	query := db.WithContext(ctx).Model(&History{})
	if referenceId != nil {
		query = query.Where("reference_id = ?", *referenceId)
	}
	if referenceType != nil {
		query = query.Where("reference_type = ?", *referenceType)
	}
	if userId != nil {
		query = query.Where("user_id = ?", *userId)
	}

	var results []*History
	if err := query.Order("id DESC").Limit(200).Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}
