package request

import (
	"context"
	"errors"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/venturelab/accelerator_backend/events"
	"github.com/venturelab/accelerator_backend/models"
	"github.com/venturelab/accelerator_backend/store"
	"github.com/venturelab/accelerator_backend/utils"
)

const (
	founderOwnerId = 7
	partnerOwnerId = 42
)

func newRequestFixture(t *testing.T) (*Service, *events.MemorySink, string, string) {
	t.Helper()
	ctx := context.Background()
	st := store.NewMemStore()
	sink := events.NewMemorySink()

	startup := &models.StartupProfile{
		ID:       "startup-" + t.Name(),
		OwnerId:  founderOwnerId,
		Name:     "Acme",
		IsActive: utils.NewTrue(),
	}
	if err := st.Put(ctx, store.EntityStartupProfile, startup); err != nil {
		t.Fatal(err)
	}
	partner := &models.PartnerProfile{
		ID:             "partner-" + t.Name(),
		OwnerId:        partnerOwnerId,
		Specialization: "growth marketing",
		IsVerified:     utils.NewTrue(),
	}
	if err := st.Put(ctx, store.EntityPartnerProfile, partner); err != nil {
		t.Fatal(err)
	}

	service := NewService(st, sink, logrus.New())
	service.Accounts = func(ctx context.Context, accountId int) (*models.Account, error) {
		switch accountId {
		case partnerOwnerId:
			return &models.Account{
				ID:          partnerOwnerId,
				Name:        "Jordan Partner",
				Email:       "jordan@example.com",
				Phone:       "+15550100",
				LinkedinUrl: "https://linkedin.com/in/jordan",
			}, nil
		case founderOwnerId:
			return &models.Account{
				ID:    founderOwnerId,
				Name:  "Ada Founder",
				Email: "ada@example.com",
			}, nil
		}
		return nil, utils.ErrorRecordNotFound
	}
	return service, sink, startup.ID, partner.ID
}

func TestCreateRequestRejectsDuplicatePending(t *testing.T) {
	service, sink, startupId, partnerId := newRequestFixture(t)
	ctx := context.Background()

	first, err := service.CreateRequest(ctx, startupId, partnerId, "we'd love an intro")
	if err != nil {
		t.Fatal(err)
	}
	if first.Status != models.RequestStatusPending {
		t.Fatalf("new request should be PENDING, got %s", first.Status)
	}

	_, err = service.CreateRequest(ctx, startupId, partnerId, "second try")
	if !errors.Is(err, models.ErrDuplicatePendingRequest) {
		t.Fatalf("expected ErrDuplicatePendingRequest, got %v", err)
	}

	types := sink.Types()
	if len(types) != 1 || types[0] != models.EventTypeRequestCreated {
		t.Fatalf("unexpected events: %v", types)
	}
}

func TestCreateRequestUnknownParticipants(t *testing.T) {
	service, _, startupId, partnerId := newRequestFixture(t)
	ctx := context.Background()

	if _, err := service.CreateRequest(ctx, "no-such-startup", partnerId, ""); !errors.Is(err, utils.ErrorRecordNotFound) {
		t.Fatalf("expected ErrorRecordNotFound for startup, got %v", err)
	}
	if _, err := service.CreateRequest(ctx, startupId, "no-such-partner", ""); !errors.Is(err, utils.ErrorRecordNotFound) {
		t.Fatalf("expected ErrorRecordNotFound for partner, got %v", err)
	}
}

func TestDecideIsTerminal(t *testing.T) {
	service, sink, startupId, partnerId := newRequestFixture(t)
	ctx := context.Background()

	created, err := service.CreateRequest(ctx, startupId, partnerId, "")
	if err != nil {
		t.Fatal(err)
	}

	accepted, err := service.Decide(ctx, created.ID, true)
	if err != nil {
		t.Fatal(err)
	}
	if accepted.Status != models.RequestStatusAccepted || accepted.DecidedAt == nil {
		t.Fatalf("unexpected accepted request: %+v", accepted)
	}

	// a decision can never be changed, not even to the same outcome
	if _, err := service.Decide(ctx, created.ID, true); !errors.Is(err, models.ErrAlreadyDecided) {
		t.Fatalf("expected ErrAlreadyDecided, got %v", err)
	}
	if _, err := service.Decide(ctx, created.ID, false); !errors.Is(err, models.ErrAlreadyDecided) {
		t.Fatalf("expected ErrAlreadyDecided, got %v", err)
	}

	types := sink.Types()
	if len(types) != 2 || types[1] != models.EventTypeRequestAccepted {
		t.Fatalf("unexpected events: %v", types)
	}
}

func TestContactDisclosureGatedOnAcceptance(t *testing.T) {
	service, _, startupId, partnerId := newRequestFixture(t)
	ctx := context.Background()

	created, err := service.CreateRequest(ctx, startupId, partnerId, "")
	if err != nil {
		t.Fatal(err)
	}

	if _, err := service.ContactDetails(ctx, created.ID); !errors.Is(err, models.ErrContactUndisclosed) {
		t.Fatalf("pending request must not disclose contact, got %v", err)
	}

	if _, err := service.Decide(ctx, created.ID, true); err != nil {
		t.Fatal(err)
	}
	contact, err := service.ContactDetails(ctx, created.ID)
	if err != nil {
		t.Fatal(err)
	}
	if contact.Email != "jordan@example.com" || contact.Name != "Jordan Partner" {
		t.Fatalf("unexpected contact: %+v", contact)
	}
}

func TestFounderContactDisclosedToPartner(t *testing.T) {
	service, _, startupId, partnerId := newRequestFixture(t)
	ctx := context.Background()

	created, err := service.CreateRequest(ctx, startupId, partnerId, "")
	if err != nil {
		t.Fatal(err)
	}

	if _, err := service.FounderContactDetails(ctx, created.ID); !errors.Is(err, models.ErrContactUndisclosed) {
		t.Fatalf("pending request must not disclose the founder, got %v", err)
	}

	if _, err := service.Decide(ctx, created.ID, true); err != nil {
		t.Fatal(err)
	}
	contact, err := service.FounderContactDetails(ctx, created.ID)
	if err != nil {
		t.Fatal(err)
	}
	if contact.Email != "ada@example.com" || contact.Name != "Ada Founder" {
		t.Fatalf("unexpected founder contact: %+v", contact)
	}
}

func TestContactUndisclosedAfterRejection(t *testing.T) {
	service, _, startupId, partnerId := newRequestFixture(t)
	ctx := context.Background()

	created, err := service.CreateRequest(ctx, startupId, partnerId, "")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := service.Decide(ctx, created.ID, false); err != nil {
		t.Fatal(err)
	}
	if _, err := service.ContactDetails(ctx, created.ID); !errors.Is(err, models.ErrContactUndisclosed) {
		t.Fatalf("rejected request must not disclose contact, got %v", err)
	}
}

func TestRetryAllowedAfterRejection(t *testing.T) {
	service, _, startupId, partnerId := newRequestFixture(t)
	ctx := context.Background()

	first, err := service.CreateRequest(ctx, startupId, partnerId, "round one")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := service.Decide(ctx, first.ID, false); err != nil {
		t.Fatal(err)
	}

	second, err := service.CreateRequest(ctx, startupId, partnerId, "round two")
	if err != nil {
		t.Fatalf("a rejected pair should allow a fresh request: %v", err)
	}
	if second.ID == first.ID {
		t.Fatal("retry must create a new row, not reopen the old one")
	}
	if second.Status != models.RequestStatusPending {
		t.Fatalf("retry should start PENDING, got %s", second.Status)
	}
}

func TestListForStartupNewestFirst(t *testing.T) {
	service, _, startupId, partnerId := newRequestFixture(t)
	ctx := context.Background()

	first, err := service.CreateRequest(ctx, startupId, partnerId, "one")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := service.Decide(ctx, first.ID, false); err != nil {
		t.Fatal(err)
	}
	second, err := service.CreateRequest(ctx, startupId, partnerId, "two")
	if err != nil {
		t.Fatal(err)
	}

	listed, err := service.ListForStartup(ctx, startupId)
	if err != nil {
		t.Fatal(err)
	}
	if len(listed) != 2 || listed[0].ID != second.ID || listed[1].ID != first.ID {
		t.Fatalf("expected newest first, got %+v", listed)
	}

	inbox, err := service.ListForPartner(ctx, partnerId)
	if err != nil {
		t.Fatal(err)
	}
	if len(inbox) != 2 {
		t.Fatalf("partner inbox should see both requests, got %d", len(inbox))
	}
}
