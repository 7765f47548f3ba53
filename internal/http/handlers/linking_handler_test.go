package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/campfirehq/community-backend/internal/domain"
	"github.com/campfirehq/community-backend/internal/services"
)

// ---- stubs to satisfy handlers.New() dependencies ----

type stubCodeIssuer struct {
	fn func(ctx context.Context, ownerID string) (*domain.LinkCode, error)
}

func (s stubCodeIssuer) Issue(ctx context.Context, ownerID string) (*domain.LinkCode, error) {
	if s.fn != nil {
		return s.fn(ctx, ownerID)
	}
	return nil, nil
}

type stubLinker struct {
	redeem func(ctx context.Context, in services.RedeemInput) (*services.LinkResult, error)
	status func(ctx context.Context, ownerID string) (*services.LinkStatus, error)
}

func (s stubLinker) Redeem(ctx context.Context, in services.RedeemInput) (*services.LinkResult, error) {
	if s.redeem != nil {
		return s.redeem(ctx, in)
	}
	return nil, nil
}

func (s stubLinker) Status(ctx context.Context, ownerID string) (*services.LinkStatus, error) {
	if s.status != nil {
		return s.status(ctx, ownerID)
	}
	return nil, nil
}

// ---- tests ----

func TestGenerateCode_Success(t *testing.T) {
	gin.SetMode(gin.TestMode)

	exp := time.Now().UTC().Add(15 * time.Minute).Truncate(time.Second)
	codes := stubCodeIssuer{fn: func(ctx context.Context, ownerID string) (*domain.LinkCode, error) {
		if ownerID != "u-123" {
			t.Fatalf("expected ownerID u-123, got %q", ownerID)
		}
		return &domain.LinkCode{Code: "AB12CD34", UserID: ownerID, ExpiresAt: exp}, nil
	}}
	h := New(codes, stubLinker{})

	r := gin.New()
	r.POST("/account-linking/generate", h.GenerateCode)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/account-linking/generate", nil)
	req.Header.Set("X-User-ID", "u-123")
	r.ServeHTTP(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d body=%s", w.Code, w.Body.String())
	}
	var resp GenerateCodeResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("json: %v", err)
	}
	if resp.Code != "AB12CD34" || !resp.ExpiresAt.Equal(exp) {
		t.Fatalf("unexpected payload: %+v", resp)
	}
}

func TestGenerateCode_ExhaustionMapsTo500(t *testing.T) {
	gin.SetMode(gin.TestMode)

	codes := stubCodeIssuer{fn: func(context.Context, string) (*domain.LinkCode, error) {
		return nil, services.ErrCodeGenerationExhausted
	}}
	h := New(codes, stubLinker{})

	r := gin.New()
	r.POST("/account-linking/generate", h.GenerateCode)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/account-linking/generate", nil))

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", w.Code)
	}
	var er ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &er); err != nil {
		t.Fatalf("json: %v", err)
	}
	if er.Code != ErrCodeGenerationFailed {
		t.Fatalf("expected code %q, got %q", ErrCodeGenerationFailed, er.Code)
	}
}

func TestValidateCode_BindingError(t *testing.T) {
	gin.SetMode(gin.TestMode)

	link := stubLinker{redeem: func(context.Context, services.RedeemInput) (*services.LinkResult, error) {
		t.Fatalf("service should not be called on binding error")
		return nil, nil
	}}
	h := New(stubCodeIssuer{}, link)

	r := gin.New()
	r.POST("/account-linking/validate", h.ValidateCode)

	w := httptest.NewRecorder()
	// community_id missing → binding error
	body := `{"code":"AB12CD34","chat_account_id":"5555","username":"w"}`
	req := httptest.NewRequest(http.MethodPost, "/account-linking/validate", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("binding error expected 400, got %d", w.Code)
	}
	var er ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &er); err != nil {
		t.Fatalf("json: %v", err)
	}
	if er.Code != ErrCodeMissingField || er.Message == "" {
		t.Fatalf("unexpected error payload: %+v", er)
	}
}

func TestValidateCode_ErrorMappings(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"missing_field", services.ErrMissingField, http.StatusBadRequest, ErrCodeMissingField},
		{"not_found", services.ErrCodeNotFound, http.StatusNotFound, ErrCodeLinkCodeNotFound},
		{"already_used", services.ErrCodeAlreadyUsed, http.StatusBadRequest, ErrCodeLinkCodeUsed},
		{"expired", services.ErrCodeExpired, http.StatusBadRequest, ErrCodeLinkCodeExpired},
		{"conflict", services.ErrAccountAlreadyLinked, http.StatusConflict, ErrCodeAccountLinked},
		{"internal", errors.New("db down"), http.StatusInternalServerError, ErrCodeInternal},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			link := stubLinker{redeem: func(_ context.Context, in services.RedeemInput) (*services.LinkResult, error) {
				// ensure the payload is passed through untouched
				if in.Code != "AB12CD34" || in.ChatAccountID != "5555" || in.CommunityID != "g1" {
					t.Fatalf("unexpected input: %+v", in)
				}
				return nil, tc.err
			}}
			h := New(stubCodeIssuer{}, link)

			r := gin.New()
			r.POST("/account-linking/validate", h.ValidateCode)

			w := httptest.NewRecorder()
			body := `{"code":"AB12CD34","chat_account_id":"5555","username":"wanderer","community_id":"g1"}`
			req := httptest.NewRequest(http.MethodPost, "/account-linking/validate", bytes.NewBufferString(body))
			req.Header.Set("Content-Type", "application/json")
			r.ServeHTTP(w, req)

			if w.Code != tc.wantStatus {
				t.Fatalf("expected %d, got %d body=%s", tc.wantStatus, w.Code, w.Body.String())
			}
			var er ErrorResponse
			if err := json.Unmarshal(w.Body.Bytes(), &er); err != nil {
				t.Fatalf("json: %v", err)
			}
			if er.Code != tc.wantCode {
				t.Fatalf("expected code %q, got %q", tc.wantCode, er.Code)
			}
		})
	}
}

func TestValidateCode_Success(t *testing.T) {
	gin.SetMode(gin.TestMode)

	link := stubLinker{redeem: func(_ context.Context, in services.RedeemInput) (*services.LinkResult, error) {
		return &services.LinkResult{UserID: "U1", Username: "corvid", ChatAccountID: in.ChatAccountID}, nil
	}}
	h := New(stubCodeIssuer{}, link)

	r := gin.New()
	r.POST("/account-linking/validate", h.ValidateCode)

	w := httptest.NewRecorder()
	body := `{"code":"ab12cd34","chat_account_id":"5555","username":"wanderer","community_id":"g1"}`
	req := httptest.NewRequest(http.MethodPost, "/account-linking/validate", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%s", w.Code, w.Body.String())
	}
	var res services.LinkResult
	if err := json.Unmarshal(w.Body.Bytes(), &res); err != nil {
		t.Fatalf("json: %v", err)
	}
	if res.UserID != "U1" || res.Username != "corvid" || res.ChatAccountID != "5555" {
		t.Fatalf("unexpected payload: %+v", res)
	}
}

func TestLinkStatus(t *testing.T) {
	gin.SetMode(gin.TestMode)

	exp := time.Now().UTC().Add(10 * time.Minute).Truncate(time.Second)
	link := stubLinker{status: func(_ context.Context, ownerID string) (*services.LinkStatus, error) {
		if ownerID != "u-123" {
			t.Fatalf("expected ownerID u-123, got %q", ownerID)
		}
		return &services.LinkStatus{ActiveCode: true, ExpiresAt: &exp, Linked: true, Links: []domain.ChatLink{{ChatAccountID: "5555", CommunityID: "g1"}}}, nil
	}}
	h := New(stubCodeIssuer{}, link)

	r := gin.New()
	r.GET("/account-linking/status", h.LinkStatus)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/account-linking/status", nil)
	req.Header.Set("X-User-ID", "u-123")
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var st services.LinkStatus
	if err := json.Unmarshal(w.Body.Bytes(), &st); err != nil {
		t.Fatalf("json: %v", err)
	}
	if !st.ActiveCode || !st.Linked || len(st.Links) != 1 {
		t.Fatalf("unexpected payload: %+v", st)
	}
}

func TestLinkStatus_ServiceError(t *testing.T) {
	gin.SetMode(gin.TestMode)

	link := stubLinker{status: func(context.Context, string) (*services.LinkStatus, error) {
		return nil, errors.New("db down")
	}}
	h := New(stubCodeIssuer{}, link)

	r := gin.New()
	r.GET("/account-linking/status", h.LinkStatus)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/account-linking/status", nil))

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", w.Code)
	}
}

func TestUserID_FallbackChain(t *testing.T) {
	gin.SetMode(gin.TestMode)

	// Context value wins.
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	c.Request.Header.Set("X-User-ID", "header-user")
	c.Set("userID", "ctx-user")
	if got := userID(c); got != "ctx-user" {
		t.Fatalf("expected ctx-user, got %q", got)
	}

	// Header next.
	c, _ = gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	c.Request.Header.Set("X-User-ID", "  header-user  ")
	if got := userID(c); got != "header-user" {
		t.Fatalf("expected header-user, got %q", got)
	}

	// Demo fallback.
	c, _ = gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	if got := userID(c); got != "demo-user" {
		t.Fatalf("expected demo-user, got %q", got)
	}
}
