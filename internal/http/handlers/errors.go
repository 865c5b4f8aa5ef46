package handlers

// Error codes carried in ErrorResponse.Code. Clients branch on these, never
// on Message, so existing values must not change.
const (
	ErrCodeBadRequest       = "bad_request"
	ErrCodeUnauthorized     = "unauthorized"
	ErrCodeNotFound         = "not_found"
	ErrCodeMethodNotAllowed = "method_not_allowed"
	ErrCodeInternal         = "internal_error"

	// Written by middleware.RateLimiter and middleware.IdempotencyValidator;
	// listed here so the whole taxonomy lives in one place.
	ErrCodeRateLimited       = "rate_limited"
	ErrCodeBadIdempotencyKey = "bad_idempotency_key"

	// Lead and agent outcomes.
	ErrCodeValidation         = "validation_failed"
	ErrCodeAlreadyClaimed     = "already_claimed"
	ErrCodeInvalidCredentials = "invalid_credentials"
	ErrCodeEmailTaken         = "email_taken"
	ErrCodeStorage            = "storage_unavailable"
)
