// Package kpiledger is the append-only performance ledger. Records are never
// edited or deleted; the sequence per startup is strictly increasing with no
// gaps. Risk classification is a pure function of the history so identical
// ledgers always classify identically.
package kpiledger

import (
	"context"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/venturelab/accelerator_backend/config"
	"github.com/venturelab/accelerator_backend/events"
	"github.com/venturelab/accelerator_backend/models"
	"github.com/venturelab/accelerator_backend/store"
	"github.com/venturelab/accelerator_backend/utils"
)

// ReadinessWriter is how a fresh KPI reading reaches the startup's readiness
// score without this package writing the profile itself. The roadmap engine
// implements it; readinessScore keeps a single writer.
type ReadinessWriter interface {
	ApplyKPISignal(ctx context.Context, startupId string, techReadiness decimal.Decimal) error
}

type Ledger struct {
	Store     store.RecordStore
	Sink      events.Sink
	Readiness ReadinessWriter
	Logger    *logrus.Logger
}

func NewLedger(st store.RecordStore, sink events.Sink, readiness ReadinessWriter, logger *logrus.Logger) *Ledger {
	return &Ledger{Store: st, Sink: sink, Readiness: readiness, Logger: logger}
}

type NewKPIRecord struct {
	Growth           decimal.Decimal `json:"growth"`
	TechReadiness    decimal.Decimal `json:"tech_readiness"`
	MarketEngagement decimal.Decimal `json:"market_engagement"`
	Revenue          decimal.Decimal `json:"revenue"`
	BurnRate         decimal.Decimal `json:"burn_rate"`
}

func ledgerKey(startupId string) string {
	return "kpi:" + startupId
}

// Append writes the next ledger entry for the startup. Metric values are
// stored as given; the sequence number is one past the current history length
// and the store's uniqueness check rejects any overwrite of an existing index.
func (l *Ledger) Append(ctx context.Context, startupId string, input *NewKPIRecord) (*models.KPIRecord, error) {

	var startup models.StartupProfile
	if err := l.Store.Get(ctx, store.EntityStartupProfile, &startup, store.Conds{"id": startupId}); err != nil {
		return nil, utils.ErrorRecordNotFound
	}

	release := utils.LockEntity(ctx, ledgerKey(startupId))

	history, err := l.History(ctx, startupId)
	if err != nil {
		release()
		return nil, err
	}

	record := &models.KPIRecord{
		StartupId:        startupId,
		SequenceNo:       len(history) + 1,
		Growth:           input.Growth,
		TechReadiness:    input.TechReadiness,
		MarketEngagement: input.MarketEngagement,
		Revenue:          input.Revenue,
		BurnRate:         input.BurnRate,
	}
	if err := l.Store.AppendOnly(ctx, store.EntityKPIRecord, record,
		"startup_id", "sequence_no"); err != nil {
		release()
		return nil, err
	}
	release()

	if l.Sink != nil {
		if err := l.Sink.Emit(ctx, models.EventTypeKPIRecorded, startupId, record); err != nil {
			config.LogError(l.Logger, "kpiledger", "Append", "emit KPIRecorded", record.ID, err)
		}
	}
	if l.Readiness != nil {
		if err := l.Readiness.ApplyKPISignal(ctx, startupId, record.TechReadiness); err != nil {
			config.LogError(l.Logger, "kpiledger", "Append", "apply readiness signal", startupId, err)
		}
	}
	return record, nil
}

// History returns the full ledger in sequence order.
func (l *Ledger) History(ctx context.Context, startupId string) ([]*models.KPIRecord, error) {
	var history []*models.KPIRecord
	if err := l.Store.List(ctx, store.EntityKPIRecord, &history,
		store.Conds{"startup_id": startupId}, "sequence_no"); err != nil {
		return nil, err
	}
	return history, nil
}

// RiskReport pairs the classification with the inputs that produced it.
type RiskReport struct {
	StartupId   string           `json:"startup_id"`
	Level       models.RiskLevel `json:"level"`
	HistorySize int              `json:"history_size"`
	GrowthTrend decimal.Decimal  `json:"growth_trend"`
}

// Classify loads the history and derives the current risk level.
func (l *Ledger) Classify(ctx context.Context, startupId string) (*RiskReport, error) {
	history, err := l.History(ctx, startupId)
	if err != nil {
		return nil, err
	}
	return &RiskReport{
		StartupId:   startupId,
		Level:       ClassifyRisk(history),
		HistorySize: len(history),
		GrowthTrend: growthTrend(history),
	}, nil
}

// Classification thresholds. Fixed constants rather than env knobs so the
// classification of a given history never changes between processes.
var (
	growthTrendWindow      = 4
	growthTrendThreshold   = decimal.Zero
	techReadinessThreshold = decimal.NewFromInt(40)
)

// ClassifyRisk derives {LOW, MEDIUM, HIGH} from an immutable history. Pure:
// no clock, no store, no configuration reads.
//
// HIGH needs at least four data points so a short history never alarms;
// MEDIUM flags a latest techReadiness below the floor; everything else is LOW.
func ClassifyRisk(history []*models.KPIRecord) models.RiskLevel {

	if len(history) >= growthTrendWindow &&
		growthTrend(history).LessThan(growthTrendThreshold) {
		return models.RiskLevelHigh
	}
	if len(history) > 0 {
		latest := history[len(history)-1]
		if latest.TechReadiness.LessThan(techReadinessThreshold) {
			return models.RiskLevelMedium
		}
	}
	return models.RiskLevelLow
}

// growthTrend is the mean growth delta over the most recent window.
func growthTrend(history []*models.KPIRecord) decimal.Decimal {

	if len(history) < 2 {
		return decimal.Zero
	}
	window := history
	if len(window) > growthTrendWindow {
		window = window[len(window)-growthTrendWindow:]
	}

	sum := decimal.Zero
	for i := 1; i < len(window); i++ {
		sum = sum.Add(window[i].Growth.Sub(window[i-1].Growth))
	}
	return sum.Div(decimal.NewFromInt(int64(len(window) - 1))).Round(4)
}
