package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// AllowDuplicatePendingRequests relaxes the one-pending-request-per-pair rule.
// Off by default: a founder cannot spam the same partner with parallel requests.
//
// Set via env:
// - ALLOW_DUPLICATE_PENDING_REQUESTS=true
func AllowDuplicatePendingRequests() bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv("ALLOW_DUPLICATE_PENDING_REQUESTS")))
	return v == "1" || v == "true" || v == "yes" || v == "y"
}

// ScoreApprovalThreshold is the minimum oracle score that auto-approves a
// submitted deliverable. Submissions below it stay SUBMITTED for human review.
//
// Set via env:
// - SCORE_APPROVAL_THRESHOLD (default 70)
func ScoreApprovalThreshold() float64 {
	return floatFromEnv("SCORE_APPROVAL_THRESHOLD", 70)
}

// ScoreExcellenceThreshold is the minimum oracle score for the excellence badge tier.
//
// Set via env:
// - SCORE_EXCELLENCE_THRESHOLD (default 90)
func ScoreExcellenceThreshold() float64 {
	return floatFromEnv("SCORE_EXCELLENCE_THRESHOLD", 90)
}

// CandidatePoolLimit caps how many partner candidates are sent to the ranking
// oracle per call. This is a cost control, not a hidden constant.
//
// Set via env:
// - CANDIDATE_POOL_LIMIT (default 20)
func CandidatePoolLimit() int {
	return intFromEnv("CANDIDATE_POOL_LIMIT", 20)
}

// MatchResultLimit is the default number of ranked partners returned.
//
// Set via env:
// - MATCH_RESULT_LIMIT (default 10)
func MatchResultLimit() int {
	return intFromEnv("MATCH_RESULT_LIMIT", 10)
}

// OracleTimeout bounds every scoring/ranking oracle call. A timed-out call is
// treated as a scoring failure and never mutates entity state.
//
// Set via env:
// - ORACLE_TIMEOUT_SECONDS (default 30)
func OracleTimeout() time.Duration {
	return time.Duration(intFromEnv("ORACLE_TIMEOUT_SECONDS", 30)) * time.Second
}

func floatFromEnv(key string, def float64) float64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}
