// Lead HTTP handlers.
//
// This file exposes REST endpoints for leads:
//   - POST /leads/public      (public submission, optional Idempotency-Key)
//   - GET  /leads/public      (unclaimed pool, paginated, ETag support)
//   - GET  /leads/mine        (leads claimed by the caller)
//   - POST /leads/{id}/claim  (claim arbitration)
//
// Everything except the public submission requires an authenticated agent.
package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-lead-intake/internal/domain"
	"github.com/tbourn/go-lead-intake/internal/http/middleware"
	"github.com/tbourn/go-lead-intake/internal/services"
	"github.com/tbourn/go-lead-intake/internal/utils"
)

//
// DTOs
//

// SubmitLeadRequest is the public submission payload.
type SubmitLeadRequest struct {
	Name           string  `json:"name" example:"Alice Johnson"`
	Email          string  `json:"email" example:"alice@example.com"`
	Phone          *string `json:"phone,omitempty" example:"+1234567890"`
	CourseInterest *string `json:"course_interest,omitempty" example:"Web Development"`
	Message        *string `json:"message,omitempty" example:"Interested in learning full-stack development"`
}

// ListLeadsResponse is one page of the unclaimed pool.
type ListLeadsResponse struct {
	Items      []domain.Lead `json:"items"`
	Page       int           `json:"page" example:"1"`
	Limit      int           `json:"limit" example:"20"`
	Total      int64         `json:"total" example:"42"`
	TotalPages int           `json:"totalPages" example:"3"`
}

// MyLeadsResponse lists the caller's claimed leads.
type MyLeadsResponse struct {
	Items []domain.Lead `json:"items"`
}

// ClaimLeadResponse is returned after a successful claim.
type ClaimLeadResponse struct {
	Message string       `json:"message" example:"Lead claimed successfully"`
	Lead    *domain.Lead `json:"lead"`
}

const (
	msgSubmitted     = "Lead details submitted successfully."
	msgClaimed       = "Lead claimed successfully"
	headerIdemReplay = "Idempotency-Replayed"
)

//
// Handlers
//

// SubmitLead godoc
// @ID          submitLead
// @Summary     Submit a lead
// @Description Public enquiry form. The lead enters the unclaimed pool; no lead data is echoed back.
// @Description A retried submission carrying the same Idempotency-Key is acknowledged without creating a second lead.
// @Tags        Leads
// @Accept      json
// @Produce     json
//
// @Param       Idempotency-Key  header  string  false "Idempotency key for safe retries (UUID recommended)"  example(7a8d9f4c-1b2a-4c3d-8e9f-0123456789ab)
// @Param       body             body    handlers.SubmitLeadRequest  true  "Lead payload"
//
// @Success     201  {object}  handlers.MessageResponse
// @Header      201  {string}  Idempotency-Replayed  "true when answered from a previous submission"
// @Failure     400  {object}  handlers.ErrorResponse  "Validation failed"
// @Failure     429  {object}  handlers.ErrorResponse  "Rate limited"
// @Failure     500  {object}  handlers.ErrorResponse  "Storage unavailable"
// @Router      /leads/public [post]
func (h *Handlers) SubmitLead(c *gin.Context) {
	ctx := c.Request.Context()

	key, scope, hasKey := middleware.GetIdempotencyKey(c)
	// Answer from the record the validator saw; a second read could miss it
	// and insert a lead that already skipped the rate limiter.
	if rec, replayed := middleware.ReplayRecord(c); hasKey && replayed {
		c.Header(headerIdemReplay, "true")
		ok(c, rec.Status, MessageResponse{Message: msgSubmitted})
		return
	}

	var req SubmitLeadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}

	lead, err := h.leadSvc.Submit(ctx, domain.LeadPayload{
		Name:           req.Name,
		Email:          req.Email,
		Phone:          req.Phone,
		CourseInterest: req.CourseInterest,
		Message:        req.Message,
	})
	if err != nil {
		switch {
		case errors.Is(err, services.ErrInvalidLead):
			fail(c, http.StatusBadRequest, ErrCodeValidation, "name and a valid email are required")
		default:
			storageFail(c, err)
		}
		return
	}

	lg := middleware.LoggerFrom(c)
	lg.Info().Uint("lead_id", lead.ID).Msg("lead submitted")

	// Best effort: a lost record only means a retry creates a second lead.
	if hasKey && h.idem != nil {
		if err := h.idem.Remember(ctx, scope, key, lead.ID, http.StatusCreated); err != nil {
			lg.Warn().Err(err).Uint("lead_id", lead.ID).Msg("idempotency record not stored")
		}
	}

	ok(c, http.StatusCreated, MessageResponse{Message: msgSubmitted})
}

// ListUnclaimed godoc
// @ID          listUnclaimedLeads
// @Summary     List unclaimed leads (paginated)
// @Description Returns a newest-first page of the unclaimed pool. Supports weak ETag via If-None-Match and may return 304.
// @Tags        Leads
// @Produce     json
// @Security    BearerAuth
//
// @Param       If-None-Match  header  string  false "Return 304 if ETag matches"  example(W/\"pool:5:12:1:20\")
// @Param       page           query   int     false "Page number"                 minimum(1) default(1)
// @Param       limit          query   int     false "Items per page"              minimum(1) maximum(100) default(20)
//
// @Success     200  {object} handlers.ListLeadsResponse
// @Header      200  {string} ETag  "Weak ETag for current result"
// @Success     304  {string} string "Not Modified"
// @Failure     401  {object} handlers.ErrorResponse "Unauthorized"
// @Failure     500  {object} handlers.ErrorResponse "Storage unavailable"
// @Router      /leads/public [get]
func (h *Handlers) ListUnclaimed(c *gin.Context) {
	ctx := c.Request.Context()
	page, limit := utils.PageParams(c.Query("page"), c.Query("limit"), h.DefaultPageSize, h.MaxPageSize)

	// ETag pre-check (best effort). The pool changes only by gaining a newer
	// id or losing a member, so (count, max id) identifies its contents.
	if count, maxID, err := h.leadSvc.PoolVersion(ctx); err == nil {
		etag := fmt.Sprintf(`W/"pool:%d:%d:%d:%d"`, count, maxID, page, limit)
		c.Header("ETag", etag)
		if inm := c.GetHeader("If-None-Match"); inm != "" && inm == etag {
			c.Status(http.StatusNotModified)
			return
		}
	}

	items, total, err := h.leadSvc.ListUnclaimed(ctx, page, limit)
	if err != nil {
		storageFail(c, err)
		return
	}

	ok(c, http.StatusOK, ListLeadsResponse{
		Items:      items,
		Page:       page,
		Limit:      limit,
		Total:      total,
		TotalPages: utils.TotalPages(total, limit),
	})
}

// ListMine godoc
// @ID          listMyLeads
// @Summary     List my claimed leads
// @Description Returns every lead claimed by the authenticated agent, newest first. Supports weak ETag via If-None-Match.
// @Tags        Leads
// @Produce     json
// @Security    BearerAuth
//
// @Param       If-None-Match  header  string  false "Return 304 if ETag matches"
//
// @Success     200  {object} handlers.MyLeadsResponse
// @Header      200  {string} ETag  "Weak ETag for current result"
// @Success     304  {string} string "Not Modified"
// @Failure     401  {object} handlers.ErrorResponse "Unauthorized"
// @Failure     500  {object} handlers.ErrorResponse "Storage unavailable"
// @Router      /leads/mine [get]
func (h *Handlers) ListMine(c *gin.Context) {
	agent, authed := middleware.AgentFrom(c)
	if !authed {
		fail(c, http.StatusUnauthorized, ErrCodeUnauthorized, "authentication required")
		return
	}

	ctx := c.Request.Context()
	if count, latest, err := h.leadSvc.ClaimsVersion(ctx, agent.ID); err == nil {
		var ts int64
		if latest != nil {
			ts = latest.UnixNano()
		}
		etag := fmt.Sprintf(`W/"mine:%d:%d:%d"`, agent.ID, count, ts)
		c.Header("ETag", etag)
		if inm := c.GetHeader("If-None-Match"); inm != "" && inm == etag {
			c.Status(http.StatusNotModified)
			return
		}
	}

	items, err := h.leadSvc.ListClaimedBy(ctx, agent.ID)
	if err != nil {
		storageFail(c, err)
		return
	}
	ok(c, http.StatusOK, MyLeadsResponse{Items: items})
}

// ClaimLead godoc
// @ID          claimLead
// @Summary     Claim a lead
// @Description Atomically assigns an unclaimed lead to the authenticated agent. Exactly one of any
// @Description number of concurrent claimants succeeds; a lead that is already claimed (by anyone,
// @Description including the caller) yields 400 already_claimed.
// @Tags        Leads
// @Produce     json
// @Security    BearerAuth
//
// @Param       id  path  int  true  "Lead ID"  minimum(1)
//
// @Success     200  {object} handlers.ClaimLeadResponse
// @Failure     400  {object} handlers.ErrorResponse "Invalid id or already claimed"
// @Failure     401  {object} handlers.ErrorResponse "Unauthorized"
// @Failure     404  {object} handlers.ErrorResponse "Lead not found"
// @Failure     500  {object} handlers.ErrorResponse "Storage unavailable"
// @Router      /leads/{id}/claim [post]
func (h *Handlers) ClaimLead(c *gin.Context) {
	agent, authed := middleware.AgentFrom(c)
	if !authed {
		fail(c, http.StatusUnauthorized, ErrCodeUnauthorized, "authentication required")
		return
	}

	id, err := strconv.ParseUint(c.Param("id"), 10, 0)
	if err != nil || id == 0 {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "lead id must be a positive integer")
		return
	}

	res, err := h.claimSvc.TryClaim(c.Request.Context(), uint(id), agent.ID)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrUnknownAgent):
			fail(c, http.StatusUnauthorized, ErrCodeUnauthorized, "agent no longer exists")
		default:
			storageFail(c, err)
		}
		return
	}

	switch res.Outcome {
	case services.OutcomeClaimed:
		middleware.LoggerFrom(c).Info().Uint("lead_id", res.Lead.ID).Msg("lead claimed")
		ok(c, http.StatusOK, ClaimLeadResponse{Message: msgClaimed, Lead: res.Lead})
	case services.OutcomeAlreadyClaimed:
		fail(c, http.StatusBadRequest, ErrCodeAlreadyClaimed, "Lead already claimed")
	case services.OutcomeNotFound:
		fail(c, http.StatusNotFound, ErrCodeNotFound, "Lead not found")
	default:
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "unexpected claim outcome")
	}
}
