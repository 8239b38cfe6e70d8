// Package oracles holds the clients for the external evaluation services:
// the scoring oracle (deliverable review) and the ranking oracle (partner
// matching). Both are treated as untrusted inputs; callers validate every
// response before acting on it.
package oracles

import "context"

type ScoreRequest struct {
	TaskId      int    `json:"task_id"`
	LevelTitle  string `json:"level_title"`
	Description string `json:"description"`
	FileRef     string `json:"file_ref"`
	StartupName string `json:"startup_name"`
}

// ScoreResult carries the oracle's verdict. Score is a pointer on purpose:
// a response without a numeric score is not a zero, it is a failure the
// roadmap engine must surface.
type ScoreResult struct {
	Score         *float64 `json:"score"`
	Feedback      string   `json:"feedback"`
	ReadyForHuman bool     `json:"ready_for_human"`
}

type CandidateFeatures struct {
	CandidateId       string `json:"candidate_id"`
	Specialization    string `json:"specialization"`
	YearsExperience   int    `json:"years_experience"`
	AvailabilityHours int    `json:"availability_hours"`
	WorkStyle         string `json:"work_style"`
	Industries        string `json:"industries"`
}

type RankingRequest struct {
	StartupId      string              `json:"startup_id"`
	StartupSummary string              `json:"startup_summary"`
	Industry       string              `json:"industry"`
	Track          string              `json:"track"`
	Candidates     []CandidateFeatures `json:"candidates"`
}

type SubScores struct {
	RoleFit       float64 `json:"role_fit"`
	ExperienceFit float64 `json:"experience_fit"`
	IndustryFit   float64 `json:"industry_fit"`
	StyleFit      float64 `json:"style_fit"`
}

type RankedCandidate struct {
	CandidateId string    `json:"candidate_id"`
	TotalScore  float64   `json:"total_score"`
	SubScores   SubScores `json:"sub_scores"`
	Reason      string    `json:"reason"`
}

// ScoringOracle evaluates one submitted deliverable.
type ScoringOracle interface {
	ScoreDeliverable(ctx context.Context, req ScoreRequest) (*ScoreResult, error)
}

// RankingOracle ranks a candidate pool for one startup.
type RankingOracle interface {
	RankCandidates(ctx context.Context, req RankingRequest) ([]RankedCandidate, error)
}
