package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// KPIRecord is an immutable, append-only ledger entry. SequenceNo is strictly
// increasing per startup with no gaps; records are never edited or removed.
// The raw metric values are accepted as given — no server-side recomputation.
type KPIRecord struct {
	ID               int             `gorm:"primary_key" json:"id"`
	StartupId        string          `gorm:"index:idx_kpi_startup_seq,unique;size:36;not null" json:"startup_id"`
	SequenceNo       int             `gorm:"index:idx_kpi_startup_seq,unique;not null" json:"sequence_no"`
	Growth           decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"growth"`
	TechReadiness    decimal.Decimal `gorm:"type:decimal(5,2);not null" json:"tech_readiness"`
	MarketEngagement decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"market_engagement"`
	Revenue          decimal.Decimal `gorm:"type:decimal(14,2);not null" json:"revenue"`
	BurnRate         decimal.Decimal `gorm:"type:decimal(14,2);not null" json:"burn_rate"`
	CreatedAt        time.Time       `gorm:"autoCreateTime" json:"created_at"`
}
