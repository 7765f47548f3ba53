// Package services defines the business logic for the account-linking
// protocol: code issuance and consumption, chat-identity sync, and the
// idempotent notification emitter. This file centralizes common
// service-level error values so that they can be consistently returned by
// service methods and checked by callers.
//
// These errors are legitimate business outcomes, not faults: they are
// intended for internal use by the service layer, and translation into
// user-facing messages or HTTP status codes should be performed at the
// handler layer. Every value maps 1:1 to an actionable message the bot can
// show (request a new code vs. the account is linked elsewhere, etc.).
package services

import "errors"

var (
	// ErrCodeNotFound indicates that the submitted value was never issued
	// as a linking code.
	ErrCodeNotFound = errors.New("link code not found")

	// ErrCodeAlreadyUsed indicates the code was consumed by an earlier
	// redemption. Consumed codes are never re-activated.
	ErrCodeAlreadyUsed = errors.New("link code already used")

	// ErrCodeExpired indicates the code outlived its validity window and
	// the owner must request a fresh one.
	ErrCodeExpired = errors.New("link code expired")

	// ErrAccountAlreadyLinked indicates the chat identity is linked to a
	// different website account than the code's owner.
	ErrAccountAlreadyLinked = errors.New("chat account already linked to another user")

	// ErrMissingField is returned when a redemption request lacks a
	// required attribute (chat account id, username, or community id).
	ErrMissingField = errors.New("missing required field")

	// ErrCodeGenerationExhausted is returned when repeated generation
	// attempts all collided with existing codes. Astronomically unlikely
	// at 32 bits of entropy, but handled rather than assumed away.
	ErrCodeGenerationExhausted = errors.New("could not generate a unique link code")
)
