// Package handlers defines HTTP-layer error codes used across all API endpoints.
//
// This file centralizes symbolic error code constants that are mapped to HTTP responses
// (via the `fail()` helper in this package). These codes provide clients with a stable,
// machine-readable error taxonomy that supplements human-readable messages.
//
// Conventions:
//   - Codes are lowercase, snake_case, and domain-agnostic unless explicitly noted.
//   - Generic codes (e.g., bad_request, unauthorized, conflict) mirror common HTTP
//     status semantics to aid interoperability.
//   - Domain-specific codes (code_expired, account_already_linked, ...) carry the
//     redemption taxonomy: the bot branches on them to pick the tip it renders,
//     so each business outcome must stay distinguishable.
//
// Example response:
//
//	{
//	  "request_id": "e1b9be03-4999-4289-9f03-999b042d65d6",
//	  "code": "code_expired",
//	  "message": "this code has expired, generate a new one"
//	}
package handlers

const (
	ErrCodeBadRequest   = "bad_request"
	ErrCodeUnauthorized = "unauthorized"
	ErrCodeForbidden    = "forbidden"
	ErrCodeNotFound     = "not_found"
	ErrCodeConflict     = "conflict"
	ErrCodeRateLimited  = "too_many_requests"
	ErrCodeInternal     = "internal_error"

	// Domain-specific (linking taxonomy):
	ErrCodeMissingField     = "missing_field"
	ErrCodeLinkCodeNotFound = "code_not_found"
	ErrCodeLinkCodeUsed     = "code_already_used"
	ErrCodeLinkCodeExpired  = "code_expired"
	ErrCodeAccountLinked    = "account_already_linked"
	ErrCodeGenerationFailed = "generation_failed"
	ErrCodeMethodNotAllowed = "method_not_allowed"
)
