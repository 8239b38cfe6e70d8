package models

import "testing"

func TestTrackStageOrdinal(t *testing.T) {
	if TrackStageIdea.Ordinal() >= TrackStagePrototype.Ordinal() {
		t.Fatal("IDEA must order before PROTOTYPE")
	}
	if TrackStageInvestmentReady.Ordinal() != len(trackStageOrder) {
		t.Fatalf("INVESTMENT_READY should be last, got ordinal %d", TrackStageInvestmentReady.Ordinal())
	}
	if TrackStage("UNKNOWN").Ordinal() != 0 {
		t.Fatal("unknown stage should have ordinal 0")
	}
}

func TestTrackStageForLevel(t *testing.T) {
	cases := map[int]TrackStage{
		0:  TrackStageIdea,
		1:  TrackStageIdea,
		2:  TrackStagePrototype,
		6:  TrackStageInvestmentReady,
		99: TrackStageInvestmentReady,
	}
	for level, want := range cases {
		if got := TrackStageForLevel(level); got != want {
			t.Fatalf("level %d: expected %s, got %s", level, want, got)
		}
	}
}

func TestTaskStateSubmittable(t *testing.T) {
	submittable := map[TaskState]bool{
		TaskStateLocked:    false,
		TaskStateAssigned:  true,
		TaskStateSubmitted: false,
		TaskStateApproved:  false,
		TaskStateRejected:  true,
	}
	for state, want := range submittable {
		if got := state.Submittable(); got != want {
			t.Fatalf("%s: expected submittable=%v", state, want)
		}
	}
}

func TestRequestStatusTerminal(t *testing.T) {
	if RequestStatusPending.Terminal() {
		t.Fatal("PENDING is not terminal")
	}
	if !RequestStatusAccepted.Terminal() || !RequestStatusRejected.Terminal() {
		t.Fatal("decided statuses are terminal")
	}
}
