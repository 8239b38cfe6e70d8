package roadmap

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/venturelab/accelerator_backend/events"
	"github.com/venturelab/accelerator_backend/models"
	"github.com/venturelab/accelerator_backend/oracles"
	"github.com/venturelab/accelerator_backend/store"
	"github.com/venturelab/accelerator_backend/utils"
)

type fakeScoringOracle struct {
	result *oracles.ScoreResult
	err    error
	calls  int
}

func (f *fakeScoringOracle) ScoreDeliverable(ctx context.Context, req oracles.ScoreRequest) (*oracles.ScoreResult, error) {
	f.calls++
	return f.result, f.err
}

func scoreOf(v float64) *oracles.ScoreResult {
	return &oracles.ScoreResult{Score: &v, Feedback: "reviewed", ReadyForHuman: false}
}

func newTestEngine(t *testing.T, oracle oracles.ScoringOracle, levelCount int) (*Engine, store.RecordStore, *events.MemorySink, string) {
	t.Helper()
	ctx := context.Background()
	st := store.NewMemStore()
	sink := events.NewMemorySink()

	for i := 1; i <= levelCount; i++ {
		level := &models.LevelDefinition{
			ID:          i,
			Title:       fmt.Sprintf("Level %d", i),
			Description: "do the work",
			Tier:        models.ComplexityTierFoundation,
		}
		if err := st.Put(ctx, store.EntityLevelDefinition, level); err != nil {
			t.Fatal(err)
		}
	}

	startupId := fmt.Sprintf("startup-%s", t.Name())
	startup := &models.StartupProfile{
		ID:             startupId,
		OwnerId:        1,
		Name:           "Acme",
		Industry:       "fintech",
		ReadinessScore: decimal.Zero,
		Track:          models.TrackStageIdea,
		IsActive:       utils.NewTrue(),
	}
	if err := st.Put(ctx, store.EntityStartupProfile, startup); err != nil {
		t.Fatal(err)
	}

	logger := logrus.New()
	engine := NewEngine(st, oracle, sink, logger)
	if err := engine.AssignInitialCurriculum(ctx, startupId); err != nil {
		t.Fatal(err)
	}
	return engine, st, sink, startupId
}

func tasksFor(t *testing.T, st store.RecordStore, startupId string) []*models.TaskInstance {
	t.Helper()
	var tasks []*models.TaskInstance
	if err := st.List(context.Background(), store.EntityTaskInstance, &tasks,
		store.Conds{"startup_id": startupId}, "level_definition_id"); err != nil {
		t.Fatal(err)
	}
	return tasks
}

func startupOf(t *testing.T, st store.RecordStore, startupId string) *models.StartupProfile {
	t.Helper()
	var startup models.StartupProfile
	if err := st.Get(context.Background(), store.EntityStartupProfile, &startup,
		store.Conds{"id": startupId}); err != nil {
		t.Fatal(err)
	}
	return &startup
}

func TestAssignInitialCurriculum(t *testing.T) {
	engine, st, _, startupId := newTestEngine(t, &fakeScoringOracle{}, 3)

	tasks := tasksFor(t, st, startupId)
	if len(tasks) != 3 {
		t.Fatalf("expected 3 tasks, got %d", len(tasks))
	}
	if tasks[0].State != models.TaskStateAssigned {
		t.Fatalf("first task should be ASSIGNED, got %s", tasks[0].State)
	}
	for _, task := range tasks[1:] {
		if task.State != models.TaskStateLocked {
			t.Fatalf("level %d should be LOCKED, got %s", task.LevelDefinitionId, task.State)
		}
	}

	// assigning again must not duplicate the roadmap
	if err := engine.AssignInitialCurriculum(context.Background(), startupId); err != nil {
		t.Fatal(err)
	}
	if got := len(tasksFor(t, st, startupId)); got != 3 {
		t.Fatalf("reassign duplicated tasks: %d", got)
	}
}

func TestAssignInitialCurriculumUnseeded(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemStore()
	startup := &models.StartupProfile{ID: "s-unseeded", OwnerId: 1, Name: "Acme", IsActive: utils.NewTrue()}
	if err := st.Put(ctx, store.EntityStartupProfile, startup); err != nil {
		t.Fatal(err)
	}
	engine := NewEngine(st, &fakeScoringOracle{}, events.NewMemorySink(), logrus.New())
	if err := engine.AssignInitialCurriculum(ctx, startup.ID); err == nil {
		t.Fatal("expected error with no curriculum seeded")
	}
}

func TestSubmitDeliverableAutoApproves(t *testing.T) {
	oracle := &fakeScoringOracle{result: scoreOf(95)}
	engine, st, sink, startupId := newTestEngine(t, oracle, 3)
	ctx := context.Background()

	tasks := tasksFor(t, st, startupId)
	result, err := engine.SubmitDeliverable(ctx, tasks[0].ID, "gs://bucket/deck.pdf")
	if err != nil {
		t.Fatal(err)
	}
	if result.Score == nil || *result.Score != 95 {
		t.Fatalf("expected score 95 back, got %v", result.Score)
	}

	tasks = tasksFor(t, st, startupId)
	if tasks[0].State != models.TaskStateApproved {
		t.Fatalf("expected APPROVED, got %s", tasks[0].State)
	}
	if tasks[0].BadgeTier != models.BadgeTierExcellence {
		t.Fatalf("score 95 should earn EXCELLENCE, got %q", tasks[0].BadgeTier)
	}
	if tasks[0].DecidedAt == nil {
		t.Fatal("DecidedAt should be set on approval")
	}
	if tasks[1].State != models.TaskStateAssigned {
		t.Fatalf("next level should unlock to ASSIGNED, got %s", tasks[1].State)
	}
	if tasks[2].State != models.TaskStateLocked {
		t.Fatalf("level 3 must stay LOCKED, got %s", tasks[2].State)
	}

	startup := startupOf(t, st, startupId)
	if !startup.ReadinessScore.Equal(decimal.NewFromInt(33)) {
		t.Fatalf("readiness should be floor 33 after 1/3 levels, got %s", startup.ReadinessScore)
	}
	if startup.CertificateEligible {
		t.Fatal("certificate must not unlock mid-curriculum")
	}

	types := sink.Types()
	if len(types) != 2 || types[0] != models.EventTypeTaskSubmitted || types[1] != models.EventTypeLevelCompleted {
		t.Fatalf("unexpected events: %v", types)
	}
}

func TestSubmitDeliverableBelowThresholdAwaitsReview(t *testing.T) {
	oracle := &fakeScoringOracle{result: scoreOf(55)}
	engine, st, _, startupId := newTestEngine(t, oracle, 2)
	ctx := context.Background()

	taskId := tasksFor(t, st, startupId)[0].ID
	if _, err := engine.SubmitDeliverable(ctx, taskId, "gs://bucket/v1.pdf"); err != nil {
		t.Fatal(err)
	}

	task := tasksFor(t, st, startupId)[0]
	if task.State != models.TaskStateSubmitted {
		t.Fatalf("score below threshold should stay SUBMITTED, got %s", task.State)
	}
	if task.OracleScore == nil || !task.OracleScore.Equal(decimal.NewFromInt(55)) {
		t.Fatalf("oracle score not stored: %v", task.OracleScore)
	}

	// resubmitting while SUBMITTED is an illegal transition
	if _, err := engine.SubmitDeliverable(ctx, taskId, "gs://bucket/v2.pdf"); !errors.Is(err, models.ErrInvalidStateTransition) {
		t.Fatalf("expected ErrInvalidStateTransition, got %v", err)
	}

	// human rejection reopens the task for another attempt
	rejected, err := engine.DecideReview(ctx, taskId, false, "needs more depth")
	if err != nil {
		t.Fatal(err)
	}
	if rejected.State != models.TaskStateRejected || rejected.Feedback != "needs more depth" {
		t.Fatalf("unexpected rejection result: %s %q", rejected.State, rejected.Feedback)
	}

	oracle.result = scoreOf(75)
	if _, err := engine.SubmitDeliverable(ctx, taskId, "gs://bucket/v2.pdf"); err != nil {
		t.Fatal(err)
	}
	task = tasksFor(t, st, startupId)[0]
	if task.State != models.TaskStateApproved {
		t.Fatalf("resubmission at 75 should auto-approve, got %s", task.State)
	}
	if task.BadgeTier != models.BadgeTierStandard {
		t.Fatalf("score 75 earns STANDARD, got %q", task.BadgeTier)
	}
}

func TestSubmitDeliverableOracleFailureReverts(t *testing.T) {
	oracle := &fakeScoringOracle{err: errors.New("oracle timeout")}
	engine, st, _, startupId := newTestEngine(t, oracle, 2)
	ctx := context.Background()

	taskId := tasksFor(t, st, startupId)[0].ID
	_, err := engine.SubmitDeliverable(ctx, taskId, "gs://bucket/deck.pdf")
	if !errors.Is(err, models.ErrScoringFailed) {
		t.Fatalf("expected ErrScoringFailed, got %v", err)
	}

	task := tasksFor(t, st, startupId)[0]
	if task.State != models.TaskStateAssigned {
		t.Fatalf("failed scoring must revert to ASSIGNED, got %s", task.State)
	}
	if task.SubmittedAt != nil {
		t.Fatal("SubmittedAt should be cleared after revert")
	}
	if task.FileRef != "" {
		t.Fatalf("the failed attempt's fileRef must not persist, got %q", task.FileRef)
	}

	// a retry after the failure goes through normally
	oracle.err = nil
	oracle.result = scoreOf(80)
	if _, err := engine.SubmitDeliverable(ctx, taskId, "gs://bucket/deck.pdf"); err != nil {
		t.Fatal(err)
	}
}

func TestFailedResubmissionKeepsPriorSubmission(t *testing.T) {
	oracle := &fakeScoringOracle{result: scoreOf(55)}
	engine, st, _, startupId := newTestEngine(t, oracle, 2)
	ctx := context.Background()

	taskId := tasksFor(t, st, startupId)[0].ID
	if _, err := engine.SubmitDeliverable(ctx, taskId, "gs://bucket/v1.pdf"); err != nil {
		t.Fatal(err)
	}
	if _, err := engine.DecideReview(ctx, taskId, false, "needs work"); err != nil {
		t.Fatal(err)
	}

	oracle.result = nil
	oracle.err = errors.New("oracle timeout")
	_, err := engine.SubmitDeliverable(ctx, taskId, "gs://bucket/v2.pdf")
	if !errors.Is(err, models.ErrScoringFailed) {
		t.Fatalf("expected ErrScoringFailed, got %v", err)
	}

	task := tasksFor(t, st, startupId)[0]
	if task.State != models.TaskStateRejected {
		t.Fatalf("expected revert to REJECTED, got %s", task.State)
	}
	if task.FileRef != "gs://bucket/v1.pdf" {
		t.Fatalf("prior fileRef must survive a failed resubmission, got %q", task.FileRef)
	}
	if task.OracleScore == nil || !task.OracleScore.Equal(decimal.NewFromInt(55)) {
		t.Fatalf("prior score must survive, got %v", task.OracleScore)
	}
	if task.Feedback != "needs work" {
		t.Fatalf("prior feedback must survive, got %q", task.Feedback)
	}
	if task.SubmittedAt == nil {
		t.Fatal("prior SubmittedAt must be restored")
	}
}

func TestSubmitDeliverableMissingScoreReverts(t *testing.T) {
	oracle := &fakeScoringOracle{result: &oracles.ScoreResult{Feedback: "no score"}}
	engine, st, _, startupId := newTestEngine(t, oracle, 2)

	taskId := tasksFor(t, st, startupId)[0].ID
	_, err := engine.SubmitDeliverable(context.Background(), taskId, "gs://bucket/deck.pdf")
	if !errors.Is(err, models.ErrScoringFailed) {
		t.Fatalf("a scoreless verdict must fail, got %v", err)
	}
	if task := tasksFor(t, st, startupId)[0]; task.State != models.TaskStateAssigned {
		t.Fatalf("expected revert to ASSIGNED, got %s", task.State)
	}
}

func TestSubmitLockedTask(t *testing.T) {
	oracle := &fakeScoringOracle{result: scoreOf(90)}
	engine, st, _, startupId := newTestEngine(t, oracle, 2)

	locked := tasksFor(t, st, startupId)[1]
	_, err := engine.SubmitDeliverable(context.Background(), locked.ID, "gs://bucket/deck.pdf")
	if !errors.Is(err, models.ErrInvalidStateTransition) {
		t.Fatalf("expected ErrInvalidStateTransition, got %v", err)
	}
	if oracle.calls != 0 {
		t.Fatal("oracle must not be called for a locked task")
	}
}

func TestDecideReviewRequiresSubmission(t *testing.T) {
	engine, st, _, startupId := newTestEngine(t, &fakeScoringOracle{}, 2)

	assigned := tasksFor(t, st, startupId)[0]
	_, err := engine.DecideReview(context.Background(), assigned.ID, true, "")
	if !errors.Is(err, models.ErrInvalidStateTransition) {
		t.Fatalf("expected ErrInvalidStateTransition, got %v", err)
	}
}

func TestCurriculumCompletion(t *testing.T) {
	oracle := &fakeScoringOracle{result: scoreOf(85)}
	engine, st, sink, startupId := newTestEngine(t, oracle, 2)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		tasks := tasksFor(t, st, startupId)
		var next *models.TaskInstance
		for _, task := range tasks {
			if task.State == models.TaskStateAssigned {
				next = task
				break
			}
		}
		if next == nil {
			t.Fatal("no assigned task to submit")
		}
		if _, err := engine.SubmitDeliverable(ctx, next.ID, "gs://bucket/work.pdf"); err != nil {
			t.Fatal(err)
		}
	}

	startup := startupOf(t, st, startupId)
	if !startup.CertificateEligible {
		t.Fatal("finishing every level must unlock the certificate")
	}
	if !startup.ReadinessScore.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("readiness should reach 100, got %s", startup.ReadinessScore)
	}
	if startup.Track != models.TrackStagePrototype {
		t.Fatalf("completing level 2 advances the track to PROTOTYPE, got %s", startup.Track)
	}

	sawCompletion := false
	for _, eventType := range sink.Types() {
		if eventType == models.EventTypeCurriculumCompleted {
			sawCompletion = true
		}
	}
	if !sawCompletion {
		t.Fatalf("CurriculumCompleted not emitted: %v", sink.Types())
	}
}

func TestApplyKPISignal(t *testing.T) {
	engine, st, _, startupId := newTestEngine(t, &fakeScoringOracle{}, 2)
	ctx := context.Background()

	startup := startupOf(t, st, startupId)
	startup.ReadinessScore = decimal.NewFromInt(50)
	if err := st.Put(ctx, store.EntityStartupProfile, startup); err != nil {
		t.Fatal(err)
	}

	if err := engine.ApplyKPISignal(ctx, startupId, decimal.NewFromInt(100)); err != nil {
		t.Fatal(err)
	}
	startup = startupOf(t, st, startupId)
	if !startup.ReadinessScore.Equal(decimal.NewFromInt(60)) {
		t.Fatalf("expected blended readiness 60, got %s", startup.ReadinessScore)
	}

	// the signal is clamped before blending
	if err := engine.ApplyKPISignal(ctx, startupId, decimal.NewFromInt(500)); err != nil {
		t.Fatal(err)
	}
	startup = startupOf(t, st, startupId)
	if !startup.ReadinessScore.Equal(decimal.NewFromInt(68)) {
		t.Fatalf("expected 0.8*60 + 0.2*100 = 68, got %s", startup.ReadinessScore)
	}
}
