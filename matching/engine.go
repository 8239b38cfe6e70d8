// Package matching produces a ranked, explainable list of partner candidates
// for a startup. Each invocation is stateless: the candidate pool goes to the
// ranking oracle, the response is validated and deterministically ordered,
// nothing is persisted.
package matching

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/sirupsen/logrus"
	"github.com/venturelab/accelerator_backend/config"
	"github.com/venturelab/accelerator_backend/models"
	"github.com/venturelab/accelerator_backend/oracles"
	"github.com/venturelab/accelerator_backend/store"
	"github.com/venturelab/accelerator_backend/utils"
)

type Engine struct {
	Store  store.RecordStore
	Oracle oracles.RankingOracle
	Logger *logrus.Logger
}

func NewEngine(st store.RecordStore, oracle oracles.RankingOracle, logger *logrus.Logger) *Engine {
	return &Engine{Store: st, Oracle: oracle, Logger: logger}
}

// MatchResult is the per-invocation ranked view. It is never persisted.
type MatchResult struct {
	Partner    *models.PartnerProfile `json:"partner"`
	TotalScore float64                `json:"total_score"`
	SubScores  oracles.SubScores      `json:"sub_scores"`
	Reason     string                 `json:"reason"`
}

// Rank asks the ranking oracle to score the verified candidate pool for the
// startup and returns up to limit results, best first. Ties break on candidate
// id so identical inputs always produce identical output order.
func (e *Engine) Rank(ctx context.Context, startupId string, limit int) ([]*MatchResult, error) {

	if limit <= 0 {
		limit = config.MatchResultLimit()
	}

	var startup models.StartupProfile
	if err := e.Store.Get(ctx, store.EntityStartupProfile, &startup, store.Conds{"id": startupId}); err != nil {
		if err == store.ErrNotFound {
			return nil, utils.ErrorRecordNotFound
		}
		return nil, err
	}

	var pool []*models.PartnerProfile
	if err := e.Store.List(ctx, store.EntityPartnerProfile, &pool,
		store.Conds{"is_verified": true}, "id"); err != nil {
		return nil, err
	}
	if len(pool) == 0 {
		return []*MatchResult{}, nil
	}
	// per-call candidate cap, a cost control on the oracle
	if poolCap := config.CandidatePoolLimit(); len(pool) > poolCap {
		pool = pool[:poolCap]
	}

	byId := make(map[string]*models.PartnerProfile, len(pool))
	candidates := make([]oracles.CandidateFeatures, 0, len(pool))
	for _, partner := range pool {
		byId[partner.ID] = partner
		candidates = append(candidates, oracles.CandidateFeatures{
			CandidateId:       partner.ID,
			Specialization:    partner.Specialization,
			YearsExperience:   partner.YearsExperience,
			AvailabilityHours: partner.AvailabilityHours,
			WorkStyle:         partner.WorkStyle,
			Industries:        partner.Industries,
		})
	}

	req := oracles.RankingRequest{
		StartupId:      startup.ID,
		StartupSummary: startup.DescriptionText,
		Industry:       startup.Industry,
		Track:          string(startup.Track),
		Candidates:     candidates,
	}

	oracleCtx, cancel := context.WithTimeout(ctx, config.OracleTimeout())
	defer cancel()
	ranked, err := e.Oracle.RankCandidates(oracleCtx, req)
	if err != nil {
		config.LogError(e.Logger, "matching", "Rank", "ranking oracle call", startupId, err)
		return nil, fmt.Errorf("%w: %v", models.ErrMatchingUnavailable, err)
	}

	results := validateAndOrder(ranked, byId)
	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// validateAndOrder is the deterministic half of ranking: malformed entries are
// dropped, sub-scores are clamped into [0,100], and the remainder is sorted by
// total score descending with candidate id as the tie-break.
func validateAndOrder(ranked []oracles.RankedCandidate, byId map[string]*models.PartnerProfile) []*MatchResult {

	results := make([]*MatchResult, 0, len(ranked))
	seen := make(map[string]bool, len(ranked))
	for _, candidate := range ranked {
		partner, ok := byId[candidate.CandidateId]
		if !ok || seen[candidate.CandidateId] {
			continue
		}
		if math.IsNaN(candidate.TotalScore) || math.IsInf(candidate.TotalScore, 0) {
			continue
		}
		if candidate.TotalScore < 0 || candidate.TotalScore > 100 {
			continue
		}
		seen[candidate.CandidateId] = true
		results = append(results, &MatchResult{
			Partner:    partner,
			TotalScore: candidate.TotalScore,
			SubScores: oracles.SubScores{
				RoleFit:       clampSubScore(candidate.SubScores.RoleFit),
				ExperienceFit: clampSubScore(candidate.SubScores.ExperienceFit),
				IndustryFit:   clampSubScore(candidate.SubScores.IndustryFit),
				StyleFit:      clampSubScore(candidate.SubScores.StyleFit),
			},
			Reason: candidate.Reason,
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].TotalScore != results[j].TotalScore {
			return results[i].TotalScore > results[j].TotalScore
		}
		return results[i].Partner.ID < results[j].Partner.ID
	})
	return results
}

func clampSubScore(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return utils.ClampScore(v)
}
