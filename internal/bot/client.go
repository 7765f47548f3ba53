// Package bot implements the Telegram-facing half of the linking protocol:
// the /link command handler that redeems codes through the web backend, and
// the passive identity-sync observer that records chat-profile attributes.
//
// This file provides the HTTP client the bot uses to reach the backend's
// account-linking boundary. The client decodes the backend's structured
// error envelope so command handlers can branch on the redemption taxonomy
// without string matching.
package bot

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// ValidateRequest is the redemption payload sent to the backend.
type ValidateRequest struct {
	Code          string `json:"code"`
	ChatAccountID string `json:"chat_account_id"`
	Username      string `json:"username"`
	Discriminator string `json:"discriminator,omitempty"`
	AvatarURL     string `json:"avatar_url,omitempty"`
	CommunityID   string `json:"community_id"`
}

// LinkResult mirrors the backend's success response.
type LinkResult struct {
	UserID        string `json:"user_id"`
	Username      string `json:"username"`
	ChatAccountID string `json:"chat_account_id"`
}

// APIError is the backend's structured error envelope. Code carries the
// stable taxonomy value (code_not_found, code_expired, ...).
type APIError struct {
	StatusCode int    `json:"-"`
	Code       string `json:"code"`
	Message    string `json:"message"`
}

// Error implements the error interface.
func (e *APIError) Error() string {
	return fmt.Sprintf("backend: %s (%s, http %d)", e.Message, e.Code, e.StatusCode)
}

// Client calls the web backend's account-linking endpoints.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient constructs a Client for the given backend base URL
// (e.g. "http://localhost:8080/api/v1").
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

// ValidateLink redeems a linking code for a chat identity. Business
// failures come back as *APIError with the backend's taxonomy code;
// transport failures come back as plain errors.
func (c *Client) ValidateLink(ctx context.Context, in ValidateRequest) (*LinkResult, error) {
	body, err := json.Marshal(in)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/account-linking/validate", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusOK {
		var out LinkResult
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			return nil, fmt.Errorf("decode response: %w", err)
		}
		return &out, nil
	}

	apiErr := &APIError{StatusCode: resp.StatusCode}
	if err := json.NewDecoder(resp.Body).Decode(apiErr); err != nil || apiErr.Code == "" {
		// Non-envelope body (proxy error page, truncated response).
		return nil, fmt.Errorf("backend returned http %d", resp.StatusCode)
	}
	return nil, apiErr
}
