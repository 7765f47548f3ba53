// Account-linking HTTP handlers.
//
// This file exposes the REST boundary of the linking protocol:
//   - POST /account-linking/generate  (mint or return the active code)
//   - POST /account-linking/validate  (redeem a code for a chat identity)
//   - GET  /account-linking/status    (dashboard view of linking state)
//
// Handlers are transport-thin: they validate input, delegate to the
// linking services, and translate service errors into HTTP results. Every
// business outcome in the redemption taxonomy maps to a distinct error
// code so the bot can render an actionable message.
package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/campfirehq/community-backend/internal/domain"
	"github.com/campfirehq/community-backend/internal/services"
)

//
// Service contracts (context-aware)
//

// CodeIssuer mints linking codes for website users.
//
// Implementations should be safe for concurrent use and must honor the
// provided context for cancellation and timeouts.
type CodeIssuer interface {
	// Issue returns the owner's active code, minting one when absent.
	Issue(ctx context.Context, ownerID string) (*domain.LinkCode, error)
}

// Linker coordinates code redemption and reports linking status.
//
// Implementations should be safe for concurrent use and must honor the
// provided context for cancellation and timeouts.
type Linker interface {
	// Redeem consumes a code and links the chat identity to its owner.
	Redeem(ctx context.Context, in services.RedeemInput) (*services.LinkResult, error)
	// Status reports active-code presence and existing links for an owner.
	Status(ctx context.Context, ownerID string) (*services.LinkStatus, error)
}

//
// Handler wiring
//

// Handlers groups the HTTP endpoints of the linking protocol. It depends
// on abstract service interfaces to keep transport concerns separate from
// business logic.
type Handlers struct {
	codes   CodeIssuer
	linking Linker
}

// New constructs and returns a Handlers instance bound to the given services.
func New(codes CodeIssuer, linking Linker) *Handlers {
	return &Handlers{codes: codes, linking: linking}
}

// userID extracts the authenticated user id from Gin context (set by the
// auth middleware). If absent, it falls back to "X-User-ID" header (tests
// use it), and finally to "demo-user". It never touches c.Request if nil.
func userID(c *gin.Context) string {
	if v, ok := c.Get("userID"); ok {
		if s, ok := v.(string); ok && s != "" {
			return s
		}
	}
	if c != nil && c.Request != nil {
		if h := strings.TrimSpace(c.GetHeader("X-User-ID")); h != "" {
			return h
		}
	}
	return "demo-user"
}

//
// DTOs
//

// GenerateCodeResponse is the payload returned by the generate endpoint.
type GenerateCodeResponse struct {
	Code      string    `json:"code"       example:"AB12CD34"`
	ExpiresAt time.Time `json:"expires_at"`
}

// ValidateCodeRequest is the JSON payload for redeeming a linking code.
// Discriminator and AvatarURL are optional; everything else is required.
type ValidateCodeRequest struct {
	Code          string `json:"code"            binding:"required" example:"AB12CD34"`
	ChatAccountID string `json:"chat_account_id" binding:"required" example:"5555"`
	Username      string `json:"username"        binding:"required" example:"wanderer"`
	Discriminator string `json:"discriminator,omitempty" example:"0420"`
	AvatarURL     string `json:"avatar_url,omitempty"    example:"https://cdn.example.com/a/5555.png"`
	CommunityID   string `json:"community_id"    binding:"required" example:"-1002233445566"`
}

//
// Handlers
//

// GenerateCode godoc
// @ID          generateLinkCode
// @Summary     Generate a linking code
// @Description Returns the caller's active linking code, minting a fresh one when none exists. Repeated calls are idempotent until the code expires or is redeemed.
// @Tags        AccountLinking
// @Produce     json
//
// @Param       X-User-ID  header  string  false "User ID (demo header)"  example(user123)
//
// @Success     201  {object}  handlers.GenerateCodeResponse
// @Failure     500  {object}  handlers.ErrorResponse "Generation failed"
// @Router      /account-linking/generate [post]
func (h *Handlers) GenerateCode(c *gin.Context) {
	code, err := h.codes.Issue(c.Request.Context(), userID(c))
	if err != nil {
		if errors.Is(err, services.ErrCodeGenerationExhausted) {
			fail(c, http.StatusInternalServerError, ErrCodeGenerationFailed, "could not generate a unique code, try again")
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}
	ok(c, http.StatusCreated, GenerateCodeResponse{Code: code.Code, ExpiresAt: code.ExpiresAt})
}

// ValidateCode godoc
// @ID          validateLinkCode
// @Summary     Redeem a linking code
// @Description Consumes a linking code on behalf of a chat identity and commits the link. Each failure mode carries a distinct error code.
// @Tags        AccountLinking
// @Accept      json
// @Produce     json
//
// @Param       body  body  handlers.ValidateCodeRequest  true  "Redemption payload"
//
// @Success     200  {object} services.LinkResult
// @Failure     400  {object} handlers.ErrorResponse "Missing field / used / expired"
// @Failure     404  {object} handlers.ErrorResponse "Code not found"
// @Failure     409  {object} handlers.ErrorResponse "Account linked elsewhere"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /account-linking/validate [post]
func (h *Handlers) ValidateCode(c *gin.Context) {
	var req ValidateCodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeMissingField, "code, chat_account_id, username and community_id are required")
		return
	}

	res, err := h.linking.Redeem(c.Request.Context(), services.RedeemInput{
		Code:          req.Code,
		ChatAccountID: req.ChatAccountID,
		Username:      req.Username,
		Discriminator: req.Discriminator,
		AvatarURL:     req.AvatarURL,
		CommunityID:   req.CommunityID,
	})
	if err != nil {
		switch {
		case errors.Is(err, services.ErrMissingField):
			fail(c, http.StatusBadRequest, ErrCodeMissingField, "missing required field")
		case errors.Is(err, services.ErrCodeNotFound):
			fail(c, http.StatusNotFound, ErrCodeLinkCodeNotFound, "code not found, check for typos or generate a new one")
		case errors.Is(err, services.ErrCodeAlreadyUsed):
			fail(c, http.StatusBadRequest, ErrCodeLinkCodeUsed, "this code was already used, generate a new one")
		case errors.Is(err, services.ErrCodeExpired):
			fail(c, http.StatusBadRequest, ErrCodeLinkCodeExpired, "this code has expired, generate a new one")
		case errors.Is(err, services.ErrAccountAlreadyLinked):
			fail(c, http.StatusConflict, ErrCodeAccountLinked, "this chat account is already linked to another user")
		default:
			fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		}
		return
	}

	ok(c, http.StatusOK, res)
}

// LinkStatus godoc
// @ID          linkStatus
// @Summary     Linking status
// @Description Reports whether the caller holds an active code and which chat identities are linked.
// @Tags        AccountLinking
// @Produce     json
//
// @Param       X-User-ID  header  string  false "User ID (demo header)"  example(user123)
//
// @Success     200  {object} services.LinkStatus
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /account-linking/status [get]
func (h *Handlers) LinkStatus(c *gin.Context) {
	st, err := h.linking.Status(c.Request.Context(), userID(c))
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}
	ok(c, http.StatusOK, st)
}
