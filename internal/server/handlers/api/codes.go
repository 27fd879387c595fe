package api

const (
	// Generic request/server errors
	CodeInvalidRequest = "E_INVALID_REQUEST" // bad or invalid request
	CodeRateLimited    = "E_RATE_LIMITED"    // push rate limit exceeded
	CodeInternalError  = "E_INTERNAL_ERROR"  // internal server error
	CodeAccessDenied   = "E_ACCESS_DENIED"   // access denied

	// Auth errors
	CodeAuthInvalidCredentials    = "E_AUTH_INVALID_CREDENTIALS"     // token is invalid, expired, or malformed
	CodeAuthTokenGenerationFailed = "E_AUTH_TOKEN_GENERATION_FAILED" // failure while minting a new token

	// Sync errors
	CodeQuotaExceeded     = "E_QUOTA_EXCEEDED"     // the write would exceed the user's storage ceiling
	CodeEntryNotFound     = "E_ENTRY_NOT_FOUND"    // the requested catalog entry does not exist
	CodeConflictNotFound  = "E_CONFLICT_NOT_FOUND" // the referenced conflict does not exist
	CodeConflictResolved  = "E_CONFLICT_RESOLVED"  // the conflict was already resolved
	CodeInvalidResolution = "E_INVALID_RESOLUTION" // unknown resolution strategy or missing manual content
)
