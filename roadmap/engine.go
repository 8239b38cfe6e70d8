// Package roadmap drives the gated curriculum: task state transitions,
// scoring, level unlocks and the startup's readiness/track progression.
// It is the only writer of TaskInstance rows and of
// StartupProfile.readinessScore/track/certificateEligible.
package roadmap

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/venturelab/accelerator_backend/config"
	"github.com/venturelab/accelerator_backend/events"
	"github.com/venturelab/accelerator_backend/models"
	"github.com/venturelab/accelerator_backend/oracles"
	"github.com/venturelab/accelerator_backend/store"
	"github.com/venturelab/accelerator_backend/utils"
)

type Engine struct {
	Store  store.RecordStore
	Oracle oracles.ScoringOracle
	Sink   events.Sink
	Logger *logrus.Logger
}

func NewEngine(st store.RecordStore, oracle oracles.ScoringOracle, sink events.Sink, logger *logrus.Logger) *Engine {
	return &Engine{Store: st, Oracle: oracle, Sink: sink, Logger: logger}
}

func taskKey(taskId int) string {
	return "task:" + strconv.Itoa(taskId)
}

func startupKey(startupId string) string {
	return "startup:" + startupId
}

// AssignInitialCurriculum creates one task per curriculum level for the
// startup: the first ASSIGNED, the rest LOCKED. Calling it again for the same
// startup is a no-op.
func (e *Engine) AssignInitialCurriculum(ctx context.Context, startupId string) error {

	release := utils.LockEntity(ctx, startupKey(startupId))
	defer release()

	var existing []*models.TaskInstance
	if err := e.Store.List(ctx, store.EntityTaskInstance, &existing,
		store.Conds{"startup_id": startupId}, "level_definition_id"); err != nil {
		return err
	}
	if len(existing) > 0 {
		return nil
	}

	var levels []*models.LevelDefinition
	if err := e.Store.List(ctx, store.EntityLevelDefinition, &levels, nil, "id"); err != nil {
		return err
	}
	if len(levels) == 0 {
		return fmt.Errorf("curriculum is not seeded")
	}

	for i, level := range levels {
		state := models.TaskStateLocked
		if i == 0 {
			state = models.TaskStateAssigned
		}
		task := &models.TaskInstance{
			StartupId:         startupId,
			LevelDefinitionId: level.ID,
			State:             state,
		}
		if err := e.Store.Put(ctx, store.EntityTaskInstance, task); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) getTask(ctx context.Context, taskId int) (*models.TaskInstance, error) {
	var task models.TaskInstance
	if err := e.Store.Get(ctx, store.EntityTaskInstance, &task, store.Conds{"id": taskId}); err != nil {
		if err == store.ErrNotFound {
			return nil, utils.ErrorRecordNotFound
		}
		return nil, err
	}
	return &task, nil
}

func (e *Engine) getStartup(ctx context.Context, startupId string) (*models.StartupProfile, error) {
	var startup models.StartupProfile
	if err := e.Store.Get(ctx, store.EntityStartupProfile, &startup, store.Conds{"id": startupId}); err != nil {
		if err == store.ErrNotFound {
			return nil, utils.ErrorRecordNotFound
		}
		return nil, err
	}
	return &startup, nil
}

// SubmitDeliverable moves the task to SUBMITTED, asks the scoring oracle for a
// verdict, and stores the review payload. The oracle is called without holding
// the task lock; a failed or scoreless call reverts the task to its pre-call
// state and surfaces ErrScoringFailed. A score at or above the approval
// threshold auto-approves the level.
func (e *Engine) SubmitDeliverable(ctx context.Context, taskId int, fileRef string) (*oracles.ScoreResult, error) {

	release := utils.LockEntity(ctx, taskKey(taskId))
	task, err := e.getTask(ctx, taskId)
	if err != nil {
		release()
		return nil, err
	}
	if !task.State.Submittable() {
		release()
		return nil, models.ErrInvalidStateTransition
	}

	prev := *task
	now := time.Now().UTC()
	task.State = models.TaskStateSubmitted
	task.FileRef = fileRef
	task.SubmittedAt = &now
	task.OracleScore = nil
	task.Feedback = ""
	task.ReadyForHuman = nil
	task.BadgeTier = models.BadgeTierNone
	if err := e.Store.Put(ctx, store.EntityTaskInstance, task); err != nil {
		release()
		return nil, err
	}
	release()

	e.emit(ctx, models.EventTypeTaskSubmitted, task.StartupId, task)

	req, err := e.buildScoreRequest(ctx, task)
	if err != nil {
		e.revertSubmission(ctx, taskId, now, &prev)
		return nil, err
	}

	oracleCtx, cancel := context.WithTimeout(ctx, config.OracleTimeout())
	defer cancel()
	result, err := e.Oracle.ScoreDeliverable(oracleCtx, req)
	if err != nil {
		e.revertSubmission(ctx, taskId, now, &prev)
		config.LogError(e.Logger, "roadmap", "SubmitDeliverable", "scoring oracle call", req, err)
		return nil, fmt.Errorf("%w: %v", models.ErrScoringFailed, err)
	}
	if result == nil || result.Score == nil {
		// an unscored submission never auto-passes
		e.revertSubmission(ctx, taskId, now, &prev)
		return nil, models.ErrScoringFailed
	}

	score := utils.ClampScore(*result.Score)
	result.Score = &score

	release = utils.LockEntity(ctx, taskKey(taskId))
	defer release()

	task, err = e.getTask(ctx, taskId)
	if err != nil {
		return nil, err
	}
	if task.State != models.TaskStateSubmitted || !sameInstant(task.SubmittedAt, now) {
		// a concurrent call won the race for this submission slot
		return nil, models.ErrInvalidStateTransition
	}

	scoreDec := decimal.NewFromFloat(score)
	task.OracleScore = &scoreDec
	task.Feedback = result.Feedback
	ready := result.ReadyForHuman
	task.ReadyForHuman = &ready

	if score >= config.ScoreApprovalThreshold() {
		if err := e.approveLocked(ctx, task); err != nil {
			return nil, err
		}
		return result, nil
	}
	if err := e.Store.Put(ctx, store.EntityTaskInstance, task); err != nil {
		return nil, err
	}
	return result, nil
}

// DecideReview is the human override for submissions that did not auto-approve.
func (e *Engine) DecideReview(ctx context.Context, taskId int, approve bool, feedback string) (*models.TaskInstance, error) {

	release := utils.LockEntity(ctx, taskKey(taskId))
	defer release()

	task, err := e.getTask(ctx, taskId)
	if err != nil {
		return nil, err
	}
	if task.State != models.TaskStateSubmitted {
		return nil, models.ErrInvalidStateTransition
	}

	if feedback != "" {
		task.Feedback = feedback
	}
	if approve {
		if err := e.approveLocked(ctx, task); err != nil {
			return nil, err
		}
		return task, nil
	}

	now := time.Now().UTC()
	task.State = models.TaskStateRejected
	task.DecidedAt = &now
	if err := e.Store.Put(ctx, store.EntityTaskInstance, task); err != nil {
		return nil, err
	}
	e.emit(ctx, models.EventTypeTaskRejected, task.StartupId, task)
	return task, nil
}

// approveLocked finalizes a level: badge, unlock of the successor, readiness
// and track progression, and certificate eligibility on the final level.
// Caller holds the task lock.
func (e *Engine) approveLocked(ctx context.Context, task *models.TaskInstance) error {

	now := time.Now().UTC()
	task.State = models.TaskStateApproved
	task.DecidedAt = &now
	task.BadgeTier = models.BadgeTierStandard
	if task.OracleScore != nil {
		if score, _ := task.OracleScore.Float64(); score >= config.ScoreExcellenceThreshold() {
			task.BadgeTier = models.BadgeTierExcellence
		}
	}
	if err := e.Store.Put(ctx, store.EntityTaskInstance, task); err != nil {
		return err
	}
	e.emit(ctx, models.EventTypeLevelCompleted, task.StartupId, task)

	var levels []*models.LevelDefinition
	if err := e.Store.List(ctx, store.EntityLevelDefinition, &levels, nil, "id"); err != nil {
		return err
	}

	curriculumComplete := true
	var next models.TaskInstance
	err := e.Store.Get(ctx, store.EntityTaskInstance, &next, store.Conds{
		"startup_id":          task.StartupId,
		"level_definition_id": task.LevelDefinitionId + 1,
	})
	if err == nil {
		curriculumComplete = false
		if next.State == models.TaskStateLocked {
			next.State = models.TaskStateAssigned
			if err := e.Store.Put(ctx, store.EntityTaskInstance, &next); err != nil {
				return err
			}
		}
	} else if err != store.ErrNotFound {
		return err
	}

	return e.advanceStartupLocked(ctx, task, len(levels), curriculumComplete)
}

// advanceStartupLocked moves readiness and track after a level completion.
// The readiness floor is curriculum progress; KPI signals can only raise it.
func (e *Engine) advanceStartupLocked(ctx context.Context, task *models.TaskInstance, totalLevels int, curriculumComplete bool) error {

	startup, err := e.getStartup(ctx, task.StartupId)
	if err != nil {
		return err
	}

	var approved []*models.TaskInstance
	if err := e.Store.List(ctx, store.EntityTaskInstance, &approved, store.Conds{
		"startup_id": task.StartupId,
		"state":      models.TaskStateApproved,
	}, "level_definition_id"); err != nil {
		return err
	}

	if totalLevels > 0 {
		progress := math.Round(float64(len(approved)) / float64(totalLevels) * 100)
		progressDec := decimal.NewFromFloat(utils.ClampScore(progress))
		if progressDec.GreaterThan(startup.ReadinessScore) {
			startup.ReadinessScore = progressDec
		}
	}

	// the track never regresses
	stage := models.TrackStageForLevel(task.LevelDefinitionId)
	if stage.Ordinal() > startup.Track.Ordinal() {
		startup.Track = stage
	}

	if curriculumComplete {
		startup.CertificateEligible = true
	}
	if err := e.Store.Put(ctx, store.EntityStartupProfile, startup); err != nil {
		return err
	}
	if curriculumComplete {
		e.emit(ctx, models.EventTypeCurriculumCompleted, startup.ID, startup)
	}
	return nil
}

// ApplyKPISignal blends a fresh techReadiness reading into the startup's
// readiness score. The kpi ledger calls this instead of writing the profile
// itself, keeping a single writer for readinessScore.
func (e *Engine) ApplyKPISignal(ctx context.Context, startupId string, techReadiness decimal.Decimal) error {

	release := utils.LockEntity(ctx, startupKey(startupId))
	defer release()

	startup, err := e.getStartup(ctx, startupId)
	if err != nil {
		return err
	}

	current, _ := startup.ReadinessScore.Float64()
	signal, _ := techReadiness.Float64()
	blended := utils.ClampScore(current*0.8 + utils.ClampScore(signal)*0.2)
	startup.ReadinessScore = decimal.NewFromFloat(blended).Round(2)

	return e.Store.Put(ctx, store.EntityStartupProfile, startup)
}

// revertSubmission undoes a SUBMITTED transition after a scoring failure, but
// only if the task still carries our submission timestamp. The failed
// attempt's payload is discarded and the prior submission restored in full.
func (e *Engine) revertSubmission(ctx context.Context, taskId int, submittedAt time.Time, prev *models.TaskInstance) {

	release := utils.LockEntity(ctx, taskKey(taskId))
	defer release()

	task, err := e.getTask(ctx, taskId)
	if err != nil {
		return
	}
	if task.State != models.TaskStateSubmitted || !sameInstant(task.SubmittedAt, submittedAt) {
		return
	}
	task.State = prev.State
	task.FileRef = prev.FileRef
	task.OracleScore = prev.OracleScore
	task.Feedback = prev.Feedback
	task.ReadyForHuman = prev.ReadyForHuman
	task.BadgeTier = prev.BadgeTier
	task.SubmittedAt = prev.SubmittedAt
	if err := e.Store.Put(ctx, store.EntityTaskInstance, task); err != nil {
		config.LogError(e.Logger, "roadmap", "revertSubmission", "revert after scoring failure", task, err)
	}
}

func (e *Engine) buildScoreRequest(ctx context.Context, task *models.TaskInstance) (oracles.ScoreRequest, error) {

	var level models.LevelDefinition
	if err := e.Store.Get(ctx, store.EntityLevelDefinition, &level, store.Conds{"id": task.LevelDefinitionId}); err != nil {
		return oracles.ScoreRequest{}, err
	}
	startup, err := e.getStartup(ctx, task.StartupId)
	if err != nil {
		return oracles.ScoreRequest{}, err
	}
	return oracles.ScoreRequest{
		TaskId:      task.ID,
		LevelTitle:  level.Title,
		Description: level.Description,
		FileRef:     task.FileRef,
		StartupName: fmt.Sprintf("%s (%s)", startup.Name, startup.Industry),
	}, nil
}

func (e *Engine) emit(ctx context.Context, eventType models.EventType, subjectId string, payload interface{}) {
	if e.Sink == nil {
		return
	}
	if err := e.Sink.Emit(ctx, eventType, subjectId, payload); err != nil {
		config.LogError(e.Logger, "roadmap", "emit", string(eventType), subjectId, err)
	}
}

func sameInstant(a *time.Time, b time.Time) bool {
	return a != nil && a.Equal(b)
}
