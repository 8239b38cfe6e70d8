package matching

import (
	"context"
	"errors"
	"fmt"
	"math"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/venturelab/accelerator_backend/models"
	"github.com/venturelab/accelerator_backend/oracles"
	"github.com/venturelab/accelerator_backend/store"
	"github.com/venturelab/accelerator_backend/utils"
)

type fakeRankingOracle struct {
	ranked  []oracles.RankedCandidate
	err     error
	lastReq oracles.RankingRequest
	calls   int
}

func (f *fakeRankingOracle) RankCandidates(ctx context.Context, req oracles.RankingRequest) ([]oracles.RankedCandidate, error) {
	f.calls++
	f.lastReq = req
	return f.ranked, f.err
}

func newMatchingFixture(t *testing.T, oracle oracles.RankingOracle, partnerCount int) (*Engine, store.RecordStore, string) {
	t.Helper()
	ctx := context.Background()
	st := store.NewMemStore()

	startup := &models.StartupProfile{
		ID:              "startup-" + t.Name(),
		OwnerId:         1,
		Name:            "Acme",
		Industry:        "fintech",
		DescriptionText: "payments for small merchants",
		Track:           models.TrackStagePrototype,
		IsActive:        utils.NewTrue(),
	}
	if err := st.Put(ctx, store.EntityStartupProfile, startup); err != nil {
		t.Fatal(err)
	}
	for i := 1; i <= partnerCount; i++ {
		seedPartner(t, st, fmt.Sprintf("p-%02d", i), true)
	}
	return NewEngine(st, oracle, logrus.New()), st, startup.ID
}

func seedPartner(t *testing.T, st store.RecordStore, id string, verified bool) {
	t.Helper()
	isVerified := utils.NewFalse()
	if verified {
		isVerified = utils.NewTrue()
	}
	partner := &models.PartnerProfile{
		ID:             id,
		OwnerId:        100,
		Specialization: "go backend",
		IsVerified:     isVerified,
	}
	if err := st.Put(context.Background(), store.EntityPartnerProfile, partner); err != nil {
		t.Fatal(err)
	}
}

func ranked(id string, score float64) oracles.RankedCandidate {
	return oracles.RankedCandidate{
		CandidateId: id,
		TotalScore:  score,
		SubScores:   oracles.SubScores{RoleFit: score, ExperienceFit: score, IndustryFit: score, StyleFit: score},
		Reason:      "fits the industry",
	}
}

func TestRankOrdersByScoreWithIdTiebreak(t *testing.T) {
	oracle := &fakeRankingOracle{ranked: []oracles.RankedCandidate{
		ranked("p-02", 80),
		ranked("p-01", 80),
		ranked("p-03", 90),
	}}
	engine, _, startupId := newMatchingFixture(t, oracle, 3)

	results, err := engine.Rank(context.Background(), startupId, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	wantOrder := []string{"p-03", "p-01", "p-02"}
	for i, want := range wantOrder {
		if results[i].Partner.ID != want {
			t.Fatalf("position %d: expected %s, got %s", i, want, results[i].Partner.ID)
		}
	}
}

func TestRankIsDeterministicAcrossOracleOrderings(t *testing.T) {
	oracle := &fakeRankingOracle{ranked: []oracles.RankedCandidate{
		ranked("p-01", 70),
		ranked("p-02", 70),
		ranked("p-03", 95),
	}}
	engine, _, startupId := newMatchingFixture(t, oracle, 3)

	first, err := engine.Rank(context.Background(), startupId, 10)
	if err != nil {
		t.Fatal(err)
	}

	// same verdicts, reversed oracle response order
	oracle.ranked = []oracles.RankedCandidate{
		ranked("p-03", 95),
		ranked("p-02", 70),
		ranked("p-01", 70),
	}
	second, err := engine.Rank(context.Background(), startupId, 10)
	if err != nil {
		t.Fatal(err)
	}

	if len(first) != len(second) {
		t.Fatalf("result sizes differ: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i].Partner.ID != second[i].Partner.ID {
			t.Fatalf("position %d differs: %s vs %s", i, first[i].Partner.ID, second[i].Partner.ID)
		}
	}
}

func TestRankDropsMalformedEntries(t *testing.T) {
	oracle := &fakeRankingOracle{ranked: []oracles.RankedCandidate{
		ranked("p-01", math.NaN()),
		ranked("p-02", 150),
		ranked("p-03", -5),
		ranked("ghost", 90),
		ranked("p-04", 88),
		ranked("p-04", 10), // duplicate verdict, first one wins
		{CandidateId: "p-05", TotalScore: 60, SubScores: oracles.SubScores{RoleFit: math.Inf(1), ExperienceFit: 130, IndustryFit: -7, StyleFit: 40}},
	}}
	engine, _, startupId := newMatchingFixture(t, oracle, 5)

	results, err := engine.Rank(context.Background(), startupId, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 2 {
		t.Fatalf("expected only p-04 and p-05 to survive, got %d", len(results))
	}
	if results[0].Partner.ID != "p-04" || results[0].TotalScore != 88 {
		t.Fatalf("unexpected top result: %s %v", results[0].Partner.ID, results[0].TotalScore)
	}

	// malformed sub-scores clamp into [0,100] instead of dropping the entry
	sub := results[1].SubScores
	if sub.RoleFit != 0 || sub.ExperienceFit != 100 || sub.IndustryFit != 0 || sub.StyleFit != 40 {
		t.Fatalf("sub-scores not clamped: %+v", sub)
	}
}

func TestRankTruncatesToLimit(t *testing.T) {
	oracle := &fakeRankingOracle{}
	engine, _, startupId := newMatchingFixture(t, oracle, 5)
	for i := 1; i <= 5; i++ {
		oracle.ranked = append(oracle.ranked, ranked(fmt.Sprintf("p-%02d", i), float64(50+i)))
	}

	results, err := engine.Rank(context.Background(), startupId, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].Partner.ID != "p-05" || results[1].Partner.ID != "p-04" {
		t.Fatalf("truncation kept the wrong entries: %s %s", results[0].Partner.ID, results[1].Partner.ID)
	}
}

func TestRankCapsCandidatePool(t *testing.T) {
	t.Setenv("CANDIDATE_POOL_LIMIT", "3")
	oracle := &fakeRankingOracle{}
	engine, _, startupId := newMatchingFixture(t, oracle, 5)

	if _, err := engine.Rank(context.Background(), startupId, 10); err != nil {
		t.Fatal(err)
	}
	if got := len(oracle.lastReq.Candidates); got != 3 {
		t.Fatalf("oracle should see at most 3 candidates, got %d", got)
	}
}

func TestRankExcludesUnverifiedPartners(t *testing.T) {
	oracle := &fakeRankingOracle{}
	engine, st, startupId := newMatchingFixture(t, oracle, 2)
	seedPartner(t, st, "p-unverified", false)

	if _, err := engine.Rank(context.Background(), startupId, 10); err != nil {
		t.Fatal(err)
	}
	for _, candidate := range oracle.lastReq.Candidates {
		if candidate.CandidateId == "p-unverified" {
			t.Fatal("unverified partner leaked into the candidate pool")
		}
	}
}

func TestRankEmptyPoolSkipsOracle(t *testing.T) {
	oracle := &fakeRankingOracle{}
	engine, _, startupId := newMatchingFixture(t, oracle, 0)

	results, err := engine.Rank(context.Background(), startupId, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 0 {
		t.Fatalf("expected empty result, got %d", len(results))
	}
	if oracle.calls != 0 {
		t.Fatal("oracle must not be called with an empty pool")
	}
}

func TestRankOracleFailure(t *testing.T) {
	oracle := &fakeRankingOracle{err: errors.New("upstream 503")}
	engine, _, startupId := newMatchingFixture(t, oracle, 2)

	_, err := engine.Rank(context.Background(), startupId, 10)
	if !errors.Is(err, models.ErrMatchingUnavailable) {
		t.Fatalf("expected ErrMatchingUnavailable, got %v", err)
	}
}

func TestRankUnknownStartup(t *testing.T) {
	engine, _, _ := newMatchingFixture(t, &fakeRankingOracle{}, 1)

	_, err := engine.Rank(context.Background(), "no-such-startup", 10)
	if !errors.Is(err, utils.ErrorRecordNotFound) {
		t.Fatalf("expected ErrorRecordNotFound, got %v", err)
	}
}
