package core

// Error codes for domain errors surfaced over the wire.
const (
	ErrCodeNotJoined     = "not_joined"
	ErrCodeForbidden     = "forbidden"
	ErrCodePersistFailed = "persist_failed"
	ErrCodeNotFound      = "not_found"
	ErrCodeBadRequest    = "bad_request"
	ErrCodeUnauthorized  = "unauthorized"
)

var (
	// ErrNotJoined is returned when a publish targets a room the sender is
	// neither subscribed to nor affiliated with.
	ErrNotJoined = &CoreError{Code: ErrCodeNotJoined, Message: "not joined to room"}
	// ErrForbidden is returned when an identity addresses a room it does
	// not administer or belong to.
	ErrForbidden = &CoreError{Code: ErrCodeForbidden, Message: "room access forbidden"}
	// ErrNotFound is returned when a referenced message does not exist.
	ErrNotFound = &CoreError{Code: ErrCodeNotFound, Message: "message not found"}
	// ErrBadRequest is returned for malformed channel requests.
	ErrBadRequest = &CoreError{Code: ErrCodeBadRequest, Message: "bad request"}
)

// CoreError wraps a code and human-readable message.
type CoreError struct {
	Code    string
	Message string
}

func (e *CoreError) Error() string {
	return e.Message
}

// persistError builds the persist_failed error surfaced when the message
// store rejects an append. The publish is aborted with no partial effects.
func persistError(err error) *CoreError {
	return &CoreError{Code: ErrCodePersistFailed, Message: "persist failed: " + err.Error()}
}
