package models

import (
	"context"
	"time"

	"github.com/venturelab/accelerator_backend/config"
	"github.com/venturelab/accelerator_backend/utils"
)

// PartnershipRequest is a founder's introduction request to a partner.
// PENDING is the only mutable state; ACCEPTED and REJECTED are terminal.
// Contact details are never stored on the request itself, they are resolved
// at read time from the partner's account and only while ACCEPTED.
type PartnershipRequest struct {
	ID        int           `gorm:"primary_key" json:"id"`
	StartupId string        `gorm:"index;size:36;not null" json:"startup_id"`
	PartnerId string        `gorm:"index;size:36;not null" json:"partner_id"`
	Message   string        `gorm:"type:text" json:"message"`
	Status    RequestStatus `gorm:"size:20;not null;default:PENDING" json:"status"`
	DecidedAt *time.Time    `json:"decided_at"`
	CreatedAt time.Time     `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time     `gorm:"autoUpdateTime" json:"updated_at"`
}

// ContactCard is the read-time contact disclosure payload. Either side of an
// ACCEPTED request reads the other side's card; nothing is ever stored on the
// request row.
type ContactCard struct {
	Name        string `json:"name"`
	Email       string `json:"email"`
	Phone       string `json:"phone"`
	LinkedinUrl string `json:"linkedin_url"`
}

// GetPartnershipRequest is a read-side convenience for the presentation layer.
func GetPartnershipRequest(ctx context.Context, id int) (*PartnershipRequest, error) {

	db := config.GetDB()
	var result PartnershipRequest
	if err := db.WithContext(ctx).First(&result, id).Error; err != nil {
		return nil, utils.ErrorRecordNotFound
	}
	return &result, nil
}
