package engine

// Code is one of the gateway's machine-readable error codes, returned to
// clients in the outbound error envelope.
type Code string

const (
	CodeInvalidMessage        Code = "INVALID_MESSAGE"
	CodeInvalidGameType       Code = "INVALID_GAME_TYPE"
	CodeInvalidBet             Code = "INVALID_BET"
	CodeNoActiveGame          Code = "NO_ACTIVE_GAME"
	CodeInsufficientBalance   Code = "INSUFFICIENT_BALANCE"
	CodeNotRegistered         Code = "NOT_REGISTERED"
	CodeBackendUnavailable    Code = "BACKEND_UNAVAILABLE"
	CodeTransactionRejected   Code = "TRANSACTION_REJECTED"
	CodeNonceMismatch         Code = "NONCE_MISMATCH"
	CodeInternalError         Code = "INTERNAL_ERROR"
	CodeSessionExpired        Code = "SESSION_EXPIRED"
	CodeGameInProgress        Code = "GAME_IN_PROGRESS"
	CodeRegistrationFailed    Code = "REGISTRATION_FAILED"
	CodeRateLimited           Code = "RATE_LIMITED"
	CodeCORSOriginNotAllowed  Code = "CORS_ORIGIN_NOT_ALLOWED"
	CodeCORSOriginRequired    Code = "CORS_ORIGIN_REQUIRED"
)

// backendCodeTable maps the backend's numeric rejection codes to a gateway
// Code. Unknown backend codes fall back to CodeTransactionRejected and
// preserve the backend's message verbatim.
var backendCodeTable = map[int]Code{
	3:  CodeInsufficientBalance,
	6:  CodeNoActiveGame,
	15: CodeSessionExpired,
}

// MapBackendCode translates a backend numeric error code into a gateway
// Code, per the fixed table in the spec.
func MapBackendCode(backendCode int) Code {
	if c, ok := backendCodeTable[backendCode]; ok {
		return c
	}
	return CodeTransactionRejected
}

// Error is a client-facing error: code plus human message, with optional
// retry-after seconds and structured details.
type Error struct {
	Code       Code
	Message    string
	RetryAfter int
	Details    map[string]any
}

func (e *Error) Error() string {
	return string(e.Code) + ": " + e.Message
}

// NewError builds a plain Error with no retry-after/details.
func NewError(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}
