package main

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/venturelab/accelerator_backend/kpiledger"
	"github.com/venturelab/accelerator_backend/middlewares"
	"github.com/venturelab/accelerator_backend/models"
	"github.com/venturelab/accelerator_backend/utils"
)

// handleDomainError maps the error taxonomy onto HTTP statuses. Conflicts are
// retryable by re-reading state; oracle failures are retryable as-is.
func handleDomainError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, utils.ErrorRecordNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	case errors.Is(err, models.ErrInvalidStateTransition),
		errors.Is(err, models.ErrDuplicatePendingRequest),
		errors.Is(err, models.ErrAlreadyDecided):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, models.ErrScoringFailed),
		errors.Is(err, models.ErrMatchingUnavailable):
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error(), "retryable": true})
	case errors.Is(err, models.ErrContactUndisclosed):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	}
}

func currentAccountId(c *gin.Context) (int, bool) {
	return utils.GetAccountIdFromContext(c.Request.Context())
}

func requestIsAdmin(c *gin.Context) bool {
	isAdmin, _ := utils.GetIsAdminFromContext(c.Request.Context())
	return isAdmin
}

func intParam(c *gin.Context, name string) (int, bool) {
	id, err := strconv.Atoi(c.Param(name))
	if err != nil || id < 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + name})
		return 0, false
	}
	return id, true
}

// ownedStartup resolves the startup and enforces founder ownership
// (admins pass).
func ownedStartup(c *gin.Context, startupId string) (*models.StartupProfile, bool) {
	startup, err := models.GetStartupProfile(c.Request.Context(), startupId)
	if err != nil {
		handleDomainError(c, err)
		return nil, false
	}
	if requestIsAdmin(c) {
		return startup, true
	}
	accountId, _ := currentAccountId(c)
	if startup.OwnerId != accountId {
		c.JSON(http.StatusForbidden, gin.H{"error": "not your startup"})
		return nil, false
	}
	return startup, true
}

// --- auth ---

func registerHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.NewAccount
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		account, err := models.RegisterAccount(c.Request.Context(), &input)
		if err != nil {
			handleDomainError(c, err)
			return
		}
		c.JSON(http.StatusCreated, account)
	}
}

func loginHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input struct {
			Email    string `json:"email" binding:"required"`
			Password string `json:"password" binding:"required"`
		}
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		info, err := models.Login(c.Request.Context(), input.Email, input.Password)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, info)
	}
}

func logoutHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := currentAccountId(c); !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
			return
		}
		if err := models.Logout(c.Request.Context()); err != nil {
			handleDomainError(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

func meHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		accountId, ok := currentAccountId(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
			return
		}
		account, err := middlewares.GetAccount(c.Request.Context(), accountId)
		if err != nil {
			handleDomainError(c, err)
			return
		}
		if account == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}
		c.JSON(http.StatusOK, account)
	}
}

func changePasswordHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input struct {
			OldPassword string `json:"old_password" binding:"required"`
			NewPassword string `json:"new_password" binding:"required,min=8"`
		}
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		account, err := models.ChangePassword(c.Request.Context(), input.OldPassword, input.NewPassword)
		if err != nil {
			handleDomainError(c, err)
			return
		}
		c.JSON(http.StatusOK, account)
	}
}

// --- startups ---

func createStartupHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		accountId, _ := currentAccountId(c)
		var input models.NewStartupProfile
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		input.OwnerId = accountId
		startup, err := models.CreateStartupProfile(c.Request.Context(), &input)
		if err != nil {
			handleDomainError(c, err)
			return
		}
		// a fresh startup gets its curriculum immediately
		if err := roadmapEngine.AssignInitialCurriculum(c.Request.Context(), startup.ID); err != nil {
			handleDomainError(c, err)
			return
		}
		c.JSON(http.StatusCreated, startup)
	}
}

func myStartupHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		accountId, _ := currentAccountId(c)
		startup, err := models.GetStartupProfileByOwner(c.Request.Context(), accountId)
		if err != nil {
			handleDomainError(c, err)
			return
		}
		c.JSON(http.StatusOK, startup)
	}
}

func getStartupHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		startup, err := middlewares.GetStartupProfile(c.Request.Context(), c.Param("id"))
		if err != nil {
			handleDomainError(c, err)
			return
		}
		if startup == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}
		c.JSON(http.StatusOK, startup)
	}
}

func updateStartupHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		startup, ok := ownedStartup(c, c.Param("id"))
		if !ok {
			return
		}
		var input models.UpdateStartupProfileInput
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		updated, err := models.UpdateStartupProfile(c.Request.Context(), startup.ID, &input)
		if err != nil {
			handleDomainError(c, err)
			return
		}
		c.JSON(http.StatusOK, updated)
	}
}

// --- roadmap ---

func assignCurriculumHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		startup, ok := ownedStartup(c, c.Param("id"))
		if !ok {
			return
		}
		if err := roadmapEngine.AssignInitialCurriculum(c.Request.Context(), startup.ID); err != nil {
			handleDomainError(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

func getRoadmapHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		entries, err := models.GetRoadmap(c.Request.Context(), c.Param("id"))
		if err != nil {
			handleDomainError(c, err)
			return
		}
		c.JSON(http.StatusOK, entries)
	}
}

func decideReviewHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		taskId, ok := intParam(c, "id")
		if !ok {
			return
		}
		var input struct {
			Approve  bool   `json:"approve"`
			Feedback string `json:"feedback"`
		}
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		task, err := roadmapEngine.DecideReview(c.Request.Context(), taskId, input.Approve, input.Feedback)
		if err != nil {
			handleDomainError(c, err)
			return
		}
		c.JSON(http.StatusOK, task)
	}
}

func getTaskHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		taskId, ok := intParam(c, "id")
		if !ok {
			return
		}
		task, err := models.GetTaskInstance(c.Request.Context(), taskId)
		if err != nil {
			handleDomainError(c, err)
			return
		}
		level, err := middlewares.GetLevelDefinition(c.Request.Context(), task.LevelDefinitionId)
		if err != nil {
			handleDomainError(c, err)
			return
		}
		c.JSON(http.StatusOK, models.RoadmapEntry{Task: task, Level: level})
	}
}

// --- matching ---

func matchesHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		startup, ok := ownedStartup(c, c.Param("id"))
		if !ok {
			return
		}
		limit := 0
		if v := c.Query("limit"); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 {
				limit = n
			}
		}
		results, err := matchingEngine.Rank(c.Request.Context(), startup.ID, limit)
		if err != nil {
			handleDomainError(c, err)
			return
		}
		c.JSON(http.StatusOK, results)
	}
}

// --- requests ---

func createRequestHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input struct {
			StartupId string `json:"startup_id" binding:"required"`
			PartnerId string `json:"partner_id" binding:"required"`
			Message   string `json:"message"`
		}
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if _, ok := ownedStartup(c, input.StartupId); !ok {
			return
		}
		created, err := requestService.CreateRequest(c.Request.Context(), input.StartupId, input.PartnerId, input.Message)
		if err != nil {
			handleDomainError(c, err)
			return
		}
		c.JSON(http.StatusCreated, created)
	}
}

// ownsRequestPartner checks that the caller is the partner the request targets.
func ownsRequestPartner(c *gin.Context, req *models.PartnershipRequest) bool {
	if requestIsAdmin(c) {
		return true
	}
	partner, err := models.GetPartnerProfile(c.Request.Context(), req.PartnerId)
	if err != nil {
		handleDomainError(c, err)
		return false
	}
	accountId, _ := currentAccountId(c)
	if partner.OwnerId != accountId {
		c.JSON(http.StatusForbidden, gin.H{"error": "not your request"})
		return false
	}
	return true
}

func decideRequestHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestId, ok := intParam(c, "id")
		if !ok {
			return
		}
		var input struct {
			Accept bool `json:"accept"`
		}
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		req, err := models.GetPartnershipRequest(c.Request.Context(), requestId)
		if err != nil {
			handleDomainError(c, err)
			return
		}
		if !ownsRequestPartner(c, req) {
			return
		}
		decided, err := requestService.Decide(c.Request.Context(), requestId, input.Accept)
		if err != nil {
			handleDomainError(c, err)
			return
		}
		c.JSON(http.StatusOK, decided)
	}
}

// requestContactHandler serves both sides of an accepted introduction: the
// founder reads the partner's card, the partner reads the founder's.
func requestContactHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestId, ok := intParam(c, "id")
		if !ok {
			return
		}
		req, err := models.GetPartnershipRequest(c.Request.Context(), requestId)
		if err != nil {
			handleDomainError(c, err)
			return
		}

		role, _ := utils.GetRoleFromContext(c.Request.Context())
		if role == string(models.RolePartner) {
			accountId, _ := currentAccountId(c)
			partner, err := models.GetPartnerProfileByOwner(c.Request.Context(), accountId)
			if err != nil || partner.ID != req.PartnerId {
				c.JSON(http.StatusForbidden, gin.H{"error": "not your request"})
				return
			}
			contact, err := requestService.FounderContactDetails(c.Request.Context(), requestId)
			if err != nil {
				handleDomainError(c, err)
				return
			}
			c.JSON(http.StatusOK, contact)
			return
		}

		if _, ok := ownedStartup(c, req.StartupId); !ok {
			return
		}
		contact, err := requestService.ContactDetails(c.Request.Context(), requestId)
		if err != nil {
			handleDomainError(c, err)
			return
		}
		c.JSON(http.StatusOK, contact)
	}
}

// requestListEntry is a request joined with both profiles for list views.
type requestListEntry struct {
	Request *models.PartnershipRequest `json:"request"`
	Startup *models.StartupProfile     `json:"startup"`
	Partner *models.PartnerProfile     `json:"partner"`
}

// expandRequests resolves the startup and partner rows through the request's
// dataloaders: all thunks are collected first so lookups batch into one query
// per table.
func expandRequests(ctx context.Context, items []*models.PartnershipRequest) []*requestListEntry {
	loaders := middlewares.For(ctx)

	startupThunks := make([]func() (*models.StartupProfile, error), len(items))
	partnerThunks := make([]func() (*models.PartnerProfile, error), len(items))
	for i, item := range items {
		startupThunks[i] = loaders.StartupLoader.Load(ctx, item.StartupId)
		partnerThunks[i] = loaders.PartnerLoader.Load(ctx, item.PartnerId)
	}

	entries := make([]*requestListEntry, len(items))
	for i, item := range items {
		entry := &requestListEntry{Request: item}
		if startup, err := startupThunks[i](); err == nil {
			entry.Startup = startup
		}
		if partner, err := partnerThunks[i](); err == nil {
			entry.Partner = partner
		}
		entries[i] = entry
	}
	return entries
}

func startupRequestsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		startup, ok := ownedStartup(c, c.Param("id"))
		if !ok {
			return
		}
		results, err := requestService.ListForStartup(c.Request.Context(), startup.ID)
		if err != nil {
			handleDomainError(c, err)
			return
		}
		c.JSON(http.StatusOK, expandRequests(c.Request.Context(), results))
	}
}

func partnerInboxHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		accountId, _ := currentAccountId(c)
		partner, err := models.GetPartnerProfileByOwner(c.Request.Context(), accountId)
		if err != nil {
			handleDomainError(c, err)
			return
		}
		results, err := requestService.ListForPartner(c.Request.Context(), partner.ID)
		if err != nil {
			handleDomainError(c, err)
			return
		}
		c.JSON(http.StatusOK, expandRequests(c.Request.Context(), results))
	}
}

// --- kpis ---

type kpiInput struct {
	Growth           float64 `json:"growth"`
	TechReadiness    float64 `json:"tech_readiness" binding:"gte=0,lte=100"`
	MarketEngagement float64 `json:"market_engagement"`
	Revenue          float64 `json:"revenue"`
	BurnRate         float64 `json:"burn_rate"`
}

func (in kpiInput) toNewRecord() *kpiledger.NewKPIRecord {
	return &kpiledger.NewKPIRecord{
		Growth:           decimal.NewFromFloat(in.Growth),
		TechReadiness:    decimal.NewFromFloat(in.TechReadiness),
		MarketEngagement: decimal.NewFromFloat(in.MarketEngagement),
		Revenue:          decimal.NewFromFloat(in.Revenue),
		BurnRate:         decimal.NewFromFloat(in.BurnRate),
	}
}

func appendKPIHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		startup, ok := ownedStartup(c, c.Param("id"))
		if !ok {
			return
		}
		var input kpiInput
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		record, err := kpiLedger.Append(c.Request.Context(), startup.ID, input.toNewRecord())
		if err != nil {
			handleDomainError(c, err)
			return
		}
		c.JSON(http.StatusCreated, record)
	}
}

func kpiHistoryHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		startup, ok := ownedStartup(c, c.Param("id"))
		if !ok {
			return
		}
		history, err := kpiLedger.History(c.Request.Context(), startup.ID)
		if err != nil {
			handleDomainError(c, err)
			return
		}
		c.JSON(http.StatusOK, history)
	}
}

func riskHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		startup, ok := ownedStartup(c, c.Param("id"))
		if !ok {
			return
		}
		report, err := kpiLedger.Classify(c.Request.Context(), startup.ID)
		if err != nil {
			handleDomainError(c, err)
			return
		}
		c.JSON(http.StatusOK, report)
	}
}

// --- partners ---

func createPartnerHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		accountId, _ := currentAccountId(c)
		var input models.NewPartnerProfile
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		input.OwnerId = accountId
		partner, err := models.CreatePartnerProfile(c.Request.Context(), &input)
		if err != nil {
			handleDomainError(c, err)
			return
		}
		c.JSON(http.StatusCreated, partner)
	}
}

func listPartnersHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		partners, err := models.ListVerifiedPartners(c.Request.Context())
		if err != nil {
			handleDomainError(c, err)
			return
		}
		c.JSON(http.StatusOK, partners)
	}
}

func getPartnerHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		partner, err := middlewares.GetPartnerProfile(c.Request.Context(), c.Param("id"))
		if err != nil {
			handleDomainError(c, err)
			return
		}
		if partner == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}
		c.JSON(http.StatusOK, partner)
	}
}

func myPartnerHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		accountId, _ := currentAccountId(c)
		partner, err := models.GetPartnerProfileByOwner(c.Request.Context(), accountId)
		if err != nil {
			handleDomainError(c, err)
			return
		}
		c.JSON(http.StatusOK, partner)
	}
}

func updatePartnerHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		partner, err := models.GetPartnerProfile(c.Request.Context(), c.Param("id"))
		if err != nil {
			handleDomainError(c, err)
			return
		}
		accountId, _ := currentAccountId(c)
		if !requestIsAdmin(c) && partner.OwnerId != accountId {
			c.JSON(http.StatusForbidden, gin.H{"error": "not your profile"})
			return
		}
		var input models.UpdatePartnerProfileInput
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		updated, err := models.UpdatePartnerProfile(c.Request.Context(), partner.ID, &input)
		if err != nil {
			handleDomainError(c, err)
			return
		}
		c.JSON(http.StatusOK, updated)
	}
}

// --- levels ---

func listLevelsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		levels, err := models.GetLevelDefinitions(c.Request.Context())
		if err != nil {
			handleDomainError(c, err)
			return
		}
		c.JSON(http.StatusOK, levels)
	}
}

// --- admin ---

func verifyPartnerHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		partner, err := models.VerifyPartnerProfile(c.Request.Context(), c.Param("id"))
		if err != nil {
			handleDomainError(c, err)
			return
		}
		c.JSON(http.StatusOK, partner)
	}
}

func importPartnersHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		file, _, err := c.Request.FormFile("file")
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "file is required"})
			return
		}
		defer file.Close()
		imported, err := models.ImportPartnerRoster(c.Request.Context(), file)
		if err != nil {
			handleDomainError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"imported": imported})
	}
}

func importLevelsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		file, _, err := c.Request.FormFile("file")
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "file is required"})
			return
		}
		defer file.Close()
		levels, err := models.ImportLevelDefinitions(c.Request.Context(), file)
		if err != nil {
			handleDomainError(c, err)
			return
		}
		c.JSON(http.StatusCreated, levels)
	}
}

func historiesHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var referenceId, referenceType *string
		if v := c.Query("reference_id"); v != "" {
			referenceId = &v
		}
		if v := c.Query("reference_type"); v != "" {
			referenceType = &v
		}
		var userId *int
		if v := c.Query("user_id"); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				userId = &n
			}
		}
		histories, err := models.GetHistories(c.Request.Context(), referenceId, referenceType, userId)
		if err != nil {
			handleDomainError(c, err)
			return
		}
		c.JSON(http.StatusOK, histories)
	}
}

func domainEventsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		records, err := models.GetDomainEvents(c.Request.Context(), c.Param("subjectId"))
		if err != nil {
			handleDomainError(c, err)
			return
		}
		c.JSON(http.StatusOK, records)
	}
}

func deactivateAccountHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		accountId, ok := intParam(c, "id")
		if !ok {
			return
		}
		account, err := models.DeactivateAccount(c.Request.Context(), accountId)
		if err != nil {
			handleDomainError(c, err)
			return
		}
		c.JSON(http.StatusOK, account)
	}
}
