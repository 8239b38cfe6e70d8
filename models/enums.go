package models

import (
	"errors"
)

type Role string

const (
	RoleFounder Role = "FOUNDER"
	RolePartner Role = "PARTNER"
	RoleMentor  Role = "MENTOR"
	RoleAdmin   Role = "ADMIN"
)

func ParseRole(str string) (Role, error) {
	switch str {
	case "FOUNDER":
		return RoleFounder, nil
	case "PARTNER":
		return RolePartner, nil
	case "MENTOR":
		return RoleMentor, nil
	case "ADMIN":
		return RoleAdmin, nil
	default:
		return "", errors.New("invalid role")
	}
}

// TrackStage is a startup's maturity stage. Stages only advance forward; they
// never regress automatically.
type TrackStage string

const (
	TrackStageIdea            TrackStage = "IDEA"
	TrackStagePrototype       TrackStage = "PROTOTYPE"
	TrackStageProduct         TrackStage = "PRODUCT"
	TrackStageMVP             TrackStage = "MVP"
	TrackStageGrowth          TrackStage = "GROWTH"
	TrackStageInvestmentReady TrackStage = "INVESTMENT_READY"
)

var trackStageOrder = []TrackStage{
	TrackStageIdea,
	TrackStagePrototype,
	TrackStageProduct,
	TrackStageMVP,
	TrackStageGrowth,
	TrackStageInvestmentReady,
}

// Ordinal returns the stage's 1-based position in the track, 0 when unknown.
func (t TrackStage) Ordinal() int {
	for i, stage := range trackStageOrder {
		if stage == t {
			return i + 1
		}
	}
	return 0
}

// TrackStageForLevel maps a completed curriculum level to the stage it unlocks.
// Levels beyond the track length saturate at the final stage.
func TrackStageForLevel(level int) TrackStage {
	if level < 1 {
		return TrackStageIdea
	}
	if level > len(trackStageOrder) {
		return trackStageOrder[len(trackStageOrder)-1]
	}
	return trackStageOrder[level-1]
}

type ComplexityTier string

const (
	ComplexityTierFoundation ComplexityTier = "FOUNDATION"
	ComplexityTierCore       ComplexityTier = "CORE"
	ComplexityTierAdvanced   ComplexityTier = "ADVANCED"
)

type TaskState string

const (
	TaskStateLocked    TaskState = "LOCKED"
	TaskStateAssigned  TaskState = "ASSIGNED"
	TaskStateSubmitted TaskState = "SUBMITTED"
	TaskStateApproved  TaskState = "APPROVED"
	TaskStateRejected  TaskState = "REJECTED"
)

// Submittable reports whether a deliverable may be (re)submitted in this state.
func (s TaskState) Submittable() bool {
	return s == TaskStateAssigned || s == TaskStateRejected
}

type BadgeTier string

const (
	BadgeTierNone       BadgeTier = ""
	BadgeTierStandard   BadgeTier = "STANDARD"
	BadgeTierExcellence BadgeTier = "EXCELLENCE"
)

type RequestStatus string

const (
	RequestStatusPending  RequestStatus = "PENDING"
	RequestStatusAccepted RequestStatus = "ACCEPTED"
	RequestStatusRejected RequestStatus = "REJECTED"
)

// Terminal reports whether the request can no longer be mutated.
func (s RequestStatus) Terminal() bool {
	return s == RequestStatusAccepted || s == RequestStatusRejected
}

type RiskLevel string

const (
	RiskLevelLow    RiskLevel = "LOW"
	RiskLevelMedium RiskLevel = "MEDIUM"
	RiskLevelHigh   RiskLevel = "HIGH"
)

type EventType string

const (
	EventTypeTaskSubmitted       EventType = "TaskSubmitted"
	EventTypeTaskRejected        EventType = "TaskRejected"
	EventTypeLevelCompleted      EventType = "LevelCompleted"
	EventTypeCurriculumCompleted EventType = "CurriculumCompleted"
	EventTypeRequestCreated      EventType = "RequestCreated"
	EventTypeRequestAccepted     EventType = "RequestAccepted"
	EventTypeRequestRejected     EventType = "RequestRejected"
	EventTypeKPIRecorded         EventType = "KPIRecorded"
)

type OutboxPublishStatus string

const (
	OutboxPublishStatusPending    OutboxPublishStatus = "PENDING"
	OutboxPublishStatusProcessing OutboxPublishStatus = "PROCESSING"
	OutboxPublishStatusPublished  OutboxPublishStatus = "PUBLISHED"
	OutboxPublishStatusFailed     OutboxPublishStatus = "FAILED"
	OutboxPublishStatusDead       OutboxPublishStatus = "DEAD"
)
