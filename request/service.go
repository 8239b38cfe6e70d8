// Package request manages introduction attempts between a startup and a
// partner. PENDING is the only mutable state; a decision is terminal and can
// never be reopened. Contact details are resolved at read time, only while
// the request is ACCEPTED.
package request

import (
	"context"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/venturelab/accelerator_backend/config"
	"github.com/venturelab/accelerator_backend/events"
	"github.com/venturelab/accelerator_backend/models"
	"github.com/venturelab/accelerator_backend/store"
	"github.com/venturelab/accelerator_backend/utils"
)

type Service struct {
	Store  store.RecordStore
	Sink   events.Sink
	Logger *logrus.Logger

	// Accounts resolves a profile's owning account for contact disclosure.
	Accounts func(ctx context.Context, accountId int) (*models.Account, error)
}

func NewService(st store.RecordStore, sink events.Sink, logger *logrus.Logger) *Service {
	return &Service{Store: st, Sink: sink, Logger: logger, Accounts: models.GetAccount}
}

func pairKey(startupId, partnerId string) string {
	return "reqpair:" + startupId + ":" + partnerId
}

func requestKey(requestId int) string {
	return "request:" + strconv.Itoa(requestId)
}

// CreateRequest opens a PENDING introduction attempt. At most one PENDING
// request may exist per (startup, partner) pair; a rejected pair can be
// retried with a fresh row.
func (s *Service) CreateRequest(ctx context.Context, startupId, partnerId, message string) (*models.PartnershipRequest, error) {

	var startup models.StartupProfile
	if err := s.Store.Get(ctx, store.EntityStartupProfile, &startup, store.Conds{"id": startupId}); err != nil {
		return nil, utils.ErrorRecordNotFound
	}
	var partner models.PartnerProfile
	if err := s.Store.Get(ctx, store.EntityPartnerProfile, &partner, store.Conds{"id": partnerId}); err != nil {
		return nil, utils.ErrorRecordNotFound
	}

	release := utils.LockEntity(ctx, pairKey(startupId, partnerId))
	defer release()

	if !config.AllowDuplicatePendingRequests() {
		var pending []*models.PartnershipRequest
		if err := s.Store.List(ctx, store.EntityPartnershipRequest, &pending, store.Conds{
			"startup_id": startupId,
			"partner_id": partnerId,
			"status":     models.RequestStatusPending,
		}, ""); err != nil {
			return nil, err
		}
		if len(pending) > 0 {
			return nil, models.ErrDuplicatePendingRequest
		}
	}

	request := &models.PartnershipRequest{
		StartupId: startupId,
		PartnerId: partnerId,
		Message:   message,
		Status:    models.RequestStatusPending,
	}
	if err := s.Store.Put(ctx, store.EntityPartnershipRequest, request); err != nil {
		return nil, err
	}
	s.emit(ctx, models.EventTypeRequestCreated, request)
	return request, nil
}

// Decide moves a PENDING request to its terminal state. Deciding twice fails
// with ErrAlreadyDecided, including two racing calls on the same request.
func (s *Service) Decide(ctx context.Context, requestId int, accept bool) (*models.PartnershipRequest, error) {

	release := utils.LockEntity(ctx, requestKey(requestId))
	defer release()

	var request models.PartnershipRequest
	if err := s.Store.Get(ctx, store.EntityPartnershipRequest, &request, store.Conds{"id": requestId}); err != nil {
		if err == store.ErrNotFound {
			return nil, utils.ErrorRecordNotFound
		}
		return nil, err
	}
	if request.Status.Terminal() {
		return nil, models.ErrAlreadyDecided
	}

	now := time.Now().UTC()
	request.DecidedAt = &now
	eventType := models.EventTypeRequestRejected
	request.Status = models.RequestStatusRejected
	if accept {
		request.Status = models.RequestStatusAccepted
		eventType = models.EventTypeRequestAccepted
	}
	if err := s.Store.Put(ctx, store.EntityPartnershipRequest, &request); err != nil {
		return nil, err
	}
	s.emit(ctx, eventType, &request)
	return &request, nil
}

// ContactDetails discloses the partner's contact information for an ACCEPTED
// request. Disclosure is an authorization check at read time, never a copy:
// an undecided or rejected request discloses nothing.
func (s *Service) ContactDetails(ctx context.Context, requestId int) (*models.ContactCard, error) {

	request, err := s.acceptedRequest(ctx, requestId)
	if err != nil {
		return nil, err
	}
	var partner models.PartnerProfile
	if err := s.Store.Get(ctx, store.EntityPartnerProfile, &partner, store.Conds{"id": request.PartnerId}); err != nil {
		return nil, utils.ErrorRecordNotFound
	}
	return s.ownerCard(ctx, partner.OwnerId)
}

// FounderContactDetails is the reverse disclosure: the partner on an ACCEPTED
// request reads the founder's contact card. Same gate, opposite direction.
func (s *Service) FounderContactDetails(ctx context.Context, requestId int) (*models.ContactCard, error) {

	request, err := s.acceptedRequest(ctx, requestId)
	if err != nil {
		return nil, err
	}
	var startup models.StartupProfile
	if err := s.Store.Get(ctx, store.EntityStartupProfile, &startup, store.Conds{"id": request.StartupId}); err != nil {
		return nil, utils.ErrorRecordNotFound
	}
	return s.ownerCard(ctx, startup.OwnerId)
}

func (s *Service) acceptedRequest(ctx context.Context, requestId int) (*models.PartnershipRequest, error) {
	var request models.PartnershipRequest
	if err := s.Store.Get(ctx, store.EntityPartnershipRequest, &request, store.Conds{"id": requestId}); err != nil {
		if err == store.ErrNotFound {
			return nil, utils.ErrorRecordNotFound
		}
		return nil, err
	}
	if request.Status != models.RequestStatusAccepted {
		return nil, models.ErrContactUndisclosed
	}
	return &request, nil
}

func (s *Service) ownerCard(ctx context.Context, accountId int) (*models.ContactCard, error) {
	owner, err := s.Accounts(ctx, accountId)
	if err != nil {
		return nil, err
	}
	return &models.ContactCard{
		Name:        owner.Name,
		Email:       owner.Email,
		Phone:       owner.Phone,
		LinkedinUrl: owner.LinkedinUrl,
	}, nil
}

// ListForStartup returns the startup's requests, newest first.
func (s *Service) ListForStartup(ctx context.Context, startupId string) ([]*models.PartnershipRequest, error) {
	var results []*models.PartnershipRequest
	if err := s.Store.List(ctx, store.EntityPartnershipRequest, &results,
		store.Conds{"startup_id": startupId}, "id DESC"); err != nil {
		return nil, err
	}
	return results, nil
}

// ListForPartner returns the partner's inbound requests, newest first.
func (s *Service) ListForPartner(ctx context.Context, partnerId string) ([]*models.PartnershipRequest, error) {
	var results []*models.PartnershipRequest
	if err := s.Store.List(ctx, store.EntityPartnershipRequest, &results,
		store.Conds{"partner_id": partnerId}, "id DESC"); err != nil {
		return nil, err
	}
	return results, nil
}

func (s *Service) emit(ctx context.Context, eventType models.EventType, request *models.PartnershipRequest) {
	if s.Sink == nil {
		return
	}
	if err := s.Sink.Emit(ctx, eventType, request.StartupId, request); err != nil {
		config.LogError(s.Logger, "request", "emit", string(eventType), request.ID, err)
	}
}
