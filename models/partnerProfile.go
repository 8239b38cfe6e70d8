package models

import (
	"context"
	"errors"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/venturelab/accelerator_backend/config"
	"github.com/venturelab/accelerator_backend/utils"
	"github.com/xuri/excelize/v2"
	"gorm.io/gorm"
)

// PartnerProfile carries the candidate features the matching engine feeds to
// the ranking oracle. IsVerified gates visibility everywhere.
type PartnerProfile struct {
	ID                string    `gorm:"primary_key;size:36" json:"id"`
	OwnerId           int       `gorm:"index;not null" json:"owner_id"`
	Specialization    string    `gorm:"size:100" json:"specialization"`
	YearsExperience   int       `gorm:"not null;default:0" json:"years_experience"`
	AvailabilityHours int       `gorm:"not null;default:0" json:"availability_hours"`
	WorkStyle         string    `gorm:"size:100" json:"work_style"`
	Industries        string    `gorm:"size:500" json:"industries"`
	IsVerified        *bool     `gorm:"not null;default:false" json:"is_verified"`
	CreatedAt         time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewPartnerProfile struct {
	OwnerId           int    `json:"owner_id" validate:"required"`
	Specialization    string `json:"specialization" validate:"required"`
	YearsExperience   int    `json:"years_experience"`
	AvailabilityHours int    `json:"availability_hours"`
	WorkStyle         string `json:"work_style"`
	Industries        string `json:"industries"`
}

func CreatePartnerProfile(ctx context.Context, input *NewPartnerProfile) (*PartnerProfile, error) {

	if err := utils.ValidateInput(input); err != nil {
		return nil, err
	}

	owner, err := GetAccount(ctx, input.OwnerId)
	if err != nil {
		return nil, err
	}
	if owner.Role != RolePartner {
		return nil, errors.New("partner profiles belong to partner accounts")
	}

	db := config.GetDB()
	var count int64
	if err := db.WithContext(ctx).Model(&PartnerProfile{}).
		Where("owner_id = ?", input.OwnerId).
		Count(&count).Error; err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, errors.New("partner already has a profile")
	}

	profile := PartnerProfile{
		ID:                uuid.NewString(),
		OwnerId:           input.OwnerId,
		Specialization:    input.Specialization,
		YearsExperience:   input.YearsExperience,
		AvailabilityHours: input.AvailabilityHours,
		WorkStyle:         input.WorkStyle,
		Industries:        input.Industries,
		IsVerified:        utils.NewFalse(),
	}

	if err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&profile).Error; err != nil {
			return err
		}
		return SaveHistoryCreate(tx, "partner_profiles", profile.ID, &profile, "partner profile created")
	}); err != nil {
		return nil, err
	}
	return &profile, nil
}

func GetPartnerProfile(ctx context.Context, id string) (*PartnerProfile, error) {

	db := config.GetDB()
	var result PartnerProfile
	if err := db.WithContext(ctx).Where("id = ?", id).First(&result).Error; err != nil {
		return nil, utils.ErrorRecordNotFound
	}
	return &result, nil
}

func GetPartnerProfileByOwner(ctx context.Context, ownerId int) (*PartnerProfile, error) {

	db := config.GetDB()
	var result PartnerProfile
	if err := db.WithContext(ctx).Where("owner_id = ?", ownerId).First(&result).Error; err != nil {
		return nil, utils.ErrorRecordNotFound
	}
	return &result, nil
}

// ListVerifiedPartners returns the browsable candidate pool, ordered by id for
// a stable slice.
func ListVerifiedPartners(ctx context.Context) ([]*PartnerProfile, error) {

	db := config.GetDB()
	var results []*PartnerProfile
	if err := db.WithContext(ctx).
		Where("is_verified = true").
		Order("id").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

// VerifyPartnerProfile marks a partner visible in the candidate pool. Admin only.
func VerifyPartnerProfile(ctx context.Context, id string) (*PartnerProfile, error) {

	db := config.GetDB()
	var profile PartnerProfile
	if err := db.WithContext(ctx).Where("id = ?", id).First(&profile).Error; err != nil {
		return nil, utils.ErrorRecordNotFound
	}
	before := profile
	if err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&profile).UpdateColumn("is_verified", true).Error; err != nil {
			return err
		}
		profile.IsVerified = utils.NewTrue()
		return SaveHistoryUpdate(tx, "partner_profiles", profile.ID, &before, &profile, "partner verified")
	}); err != nil {
		return nil, err
	}
	return &profile, nil
}

type UpdatePartnerProfileInput struct {
	Specialization    string `json:"specialization"`
	YearsExperience   int    `json:"years_experience"`
	AvailabilityHours int    `json:"availability_hours"`
	WorkStyle         string `json:"work_style"`
	Industries        string `json:"industries"`
}

func UpdatePartnerProfile(ctx context.Context, id string, input *UpdatePartnerProfileInput) (*PartnerProfile, error) {

	db := config.GetDB()
	var profile PartnerProfile
	if err := db.WithContext(ctx).Where("id = ?", id).First(&profile).Error; err != nil {
		return nil, utils.ErrorRecordNotFound
	}

	before := profile
	if err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&profile).Updates(map[string]interface{}{
			"Specialization":    input.Specialization,
			"YearsExperience":   input.YearsExperience,
			"AvailabilityHours": input.AvailabilityHours,
			"WorkStyle":         input.WorkStyle,
			"Industries":        input.Industries,
		}).Error; err != nil {
			return err
		}
		return SaveHistoryUpdate(tx, "partner_profiles", profile.ID, &before, &profile, "partner profile updated")
	}); err != nil {
		return nil, err
	}
	return &profile, nil
}

// ImportPartnerRoster bulk-creates partner accounts + profiles from a
// spreadsheet (columns: name, email, specialization, years, industries).
// Rows with a duplicate email are skipped. Imported partners start unverified.
func ImportPartnerRoster(ctx context.Context, r io.Reader) (int, error) {

	f, err := excelize.OpenReader(r)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	sheet := f.GetSheetName(0)
	rows, err := f.GetRows(sheet)
	if err != nil {
		return 0, err
	}

	imported := 0
	for i, record := range rows {
		if i == 0 || len(record) < 3 {
			// header or short row
			continue
		}

		email := strings.ToLower(strings.TrimSpace(record[1]))
		if !utils.IsValidEmail(email) {
			continue
		}
		if err := utils.ValidateUnique[Account](ctx, "email", email, 0); err != nil {
			continue
		}

		account, err := RegisterAccount(ctx, &NewAccount{
			Name:     strings.TrimSpace(record[0]),
			Email:    email,
			Password: uuid.NewString(), // placeholder until the partner claims the account
			Role:     string(RolePartner),
		})
		if err != nil {
			continue
		}

		input := &NewPartnerProfile{
			OwnerId:        account.ID,
			Specialization: strings.TrimSpace(record[2]),
		}
		if len(record) > 3 {
			if years, err := utils.ParseDecimal(record[3]); err == nil {
				input.YearsExperience = int(years.IntPart())
			}
		}
		if len(record) > 4 {
			input.Industries = strings.TrimSpace(record[4])
		}
		if _, err := CreatePartnerProfile(ctx, input); err != nil {
			continue
		}
		imported++
	}
	if imported == 0 {
		return 0, errors.New("no partner rows imported")
	}
	return imported, nil
}
