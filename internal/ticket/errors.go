package ticket

import "errors"

// ErrInvalidTransition is returned when a lifecycle move is attempted from
// any state other than the required predecessor.
var ErrInvalidTransition = errors.New("invalid transition")

// ErrAlreadyAcknowledged is returned when a different actor already holds
// the acknowledgment on an emergency alert. First acknowledger wins.
var ErrAlreadyAcknowledged = errors.New("already acknowledged")

// ErrNotAcknowledged is returned when resolving an alert that was never
// acknowledged. Acknowledgment is a mandatory step.
var ErrNotAcknowledged = errors.New("not acknowledged")

// ErrNotFound indicates the requested entity does not exist.
var ErrNotFound = errors.New("not found")

// ErrUnauthorized indicates the backing store refused the caller.
var ErrUnauthorized = errors.New("unauthorized")

// ErrUnavailable indicates a transport or backing-store outage. It is the
// only error class eligible for caller-driven retry.
var ErrUnavailable = errors.New("unavailable")

// ErrMalformedMessage indicates an undecodable push payload. Channel-level
// only: the message is dropped and the subscription keeps running.
var ErrMalformedMessage = errors.New("malformed message")

var errCodes = map[string]error{
	"invalid_transition":   ErrInvalidTransition,
	"already_acknowledged": ErrAlreadyAcknowledged,
	"not_acknowledged":     ErrNotAcknowledged,
	"not_found":            ErrNotFound,
	"unauthorized":         ErrUnauthorized,
	"unavailable":          ErrUnavailable,
	"malformed_message":    ErrMalformedMessage,
}

// ErrCode returns the wire code for a taxonomy error, or "" for errors
// outside the taxonomy.
func ErrCode(err error) string {
	for code, sentinel := range errCodes {
		if errors.Is(err, sentinel) {
			return code
		}
	}
	return ""
}

// ErrFromCode maps a wire code back to its sentinel, or nil when unknown.
func ErrFromCode(code string) error {
	return errCodes[code]
}
