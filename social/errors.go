package social

import "errors"

// Error kinds shared by all directories. Operations wrap one of these
// sentinels so adapters can map a failure to a transport status with
// errors.Is without knowing which directory produced it.
var (
	// ErrNotFound means the entity id is unknown.
	ErrNotFound = errors.New("not found")
	// ErrConflict means a state precondition was violated
	// (already a member, already friends, duplicate pending).
	ErrConflict = errors.New("conflict")
	// ErrUnauthorized means the actor lacks standing for the target entity.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrExpired means a TTL lapsed before the operation arrived.
	ErrExpired = errors.New("expired")
	// ErrInvalidArgument means a malformed status or response value.
	ErrInvalidArgument = errors.New("invalid argument")
)

// NewError returns an error with the given message that unwraps to kind,
// so errors.Is(err, kind) holds without the kind text leaking into the
// message shown to callers.
func NewError(kind error, msg string) error {
	return &kindError{msg: msg, kind: kind}
}

type kindError struct {
	msg  string
	kind error
}

func (e *kindError) Error() string { return e.msg }
func (e *kindError) Unwrap() error { return e.kind }
