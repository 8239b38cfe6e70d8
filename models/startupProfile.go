package models

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/venturelab/accelerator_backend/config"
	"github.com/venturelab/accelerator_backend/utils"
	"gorm.io/gorm"
)

type StartupProfile struct {
	ID                  string          `gorm:"primary_key;size:36" json:"id"`
	OwnerId             int             `gorm:"index;not null" json:"owner_id"`
	Name                string          `gorm:"size:255;not null" json:"name" binding:"required"`
	Industry            string          `gorm:"size:100" json:"industry"`
	DescriptionText     string          `gorm:"type:text" json:"description_text"`
	LogoUrl             string          `gorm:"size:500" json:"logo_url"`
	ReadinessScore      decimal.Decimal `gorm:"type:decimal(5,2);default:0" json:"readiness_score"`
	Track               TrackStage      `gorm:"size:30;not null;default:IDEA" json:"track"`
	CertificateEligible bool            `gorm:"not null;default:false" json:"certificate_eligible"`
	IsActive            *bool           `gorm:"not null;default:true" json:"is_active"`
	CreatedAt           time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt           time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewStartupProfile struct {
	OwnerId         int    `json:"owner_id" validate:"required"`
	Name            string `json:"name" validate:"required"`
	Industry        string `json:"industry"`
	DescriptionText string `json:"description_text"`
}

func CreateStartupProfile(ctx context.Context, input *NewStartupProfile) (*StartupProfile, error) {

	if err := utils.ValidateInput(input); err != nil {
		return nil, err
	}

	owner, err := GetAccount(ctx, input.OwnerId)
	if err != nil {
		return nil, err
	}
	if owner.Role != RoleFounder {
		return nil, errors.New("startup profiles belong to founder accounts")
	}

	// exactly one active profile per founder
	db := config.GetDB()
	var count int64
	if err := db.WithContext(ctx).Model(&StartupProfile{}).
		Where("owner_id = ? AND is_active = true", input.OwnerId).
		Count(&count).Error; err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, errors.New("founder already has an active startup profile")
	}

	profile := StartupProfile{
		ID:              uuid.NewString(),
		OwnerId:         input.OwnerId,
		Name:            strings.TrimSpace(input.Name),
		Industry:        input.Industry,
		DescriptionText: input.DescriptionText,
		ReadinessScore:  decimal.Zero,
		Track:           TrackStageIdea,
		IsActive:        utils.NewTrue(),
	}

	if err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&profile).Error; err != nil {
			return err
		}
		return SaveHistoryCreate(tx, "startup_profiles", profile.ID, &profile, "startup profile created")
	}); err != nil {
		return nil, err
	}
	return &profile, nil
}

func GetStartupProfile(ctx context.Context, id string) (*StartupProfile, error) {

	db := config.GetDB()
	var result StartupProfile

	if err := db.WithContext(ctx).Where("id = ?", id).First(&result).Error; err != nil {
		return nil, utils.ErrorRecordNotFound
	}
	return &result, nil
}

func GetStartupProfileByOwner(ctx context.Context, ownerId int) (*StartupProfile, error) {

	db := config.GetDB()
	var result StartupProfile

	if err := db.WithContext(ctx).
		Where("owner_id = ? AND is_active = true", ownerId).
		First(&result).Error; err != nil {
		return nil, utils.ErrorRecordNotFound
	}
	return &result, nil
}

type UpdateStartupProfileInput struct {
	Name            string `json:"name"`
	Industry        string `json:"industry"`
	DescriptionText string `json:"description_text"`
}

// UpdateStartupProfile edits descriptive fields only. Readiness score, track
// and certificate eligibility are owned by the roadmap engine.
func UpdateStartupProfile(ctx context.Context, id string, input *UpdateStartupProfileInput) (*StartupProfile, error) {

	db := config.GetDB()
	var profile StartupProfile
	if err := db.WithContext(ctx).Where("id = ?", id).First(&profile).Error; err != nil {
		return nil, utils.ErrorRecordNotFound
	}

	before := profile
	if err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&profile).Updates(map[string]interface{}{
			"Name":            input.Name,
			"Industry":        input.Industry,
			"DescriptionText": input.DescriptionText,
		}).Error; err != nil {
			return err
		}
		return SaveHistoryUpdate(tx, "startup_profiles", profile.ID, &before, &profile, "startup profile updated")
	}); err != nil {
		return nil, err
	}
	return &profile, nil
}

func SetStartupLogo(ctx context.Context, id string, logoUrl string) (*StartupProfile, error) {

	db := config.GetDB()
	var profile StartupProfile
	if err := db.WithContext(ctx).Where("id = ?", id).First(&profile).Error; err != nil {
		return nil, utils.ErrorRecordNotFound
	}
	if err := db.WithContext(ctx).Model(&profile).UpdateColumn("logo_url", logoUrl).Error; err != nil {
		return nil, err
	}
	profile.LogoUrl = logoUrl
	return &profile, nil
}
