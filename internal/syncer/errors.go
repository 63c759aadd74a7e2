package syncer

import (
	"errors"
	"fmt"
)

// ErrClosed is returned by Submit after Close.
var ErrClosed = errors.New("syncer closed")

// TransportError reports a change-set that could not be delivered.
//
// It is a recoverable failure of the network or of the persistence service,
// distinct from the data-integrity errors of the annotation package: the
// local store is already consistent and is never rolled back.
type TransportError struct {
	AnnotationID string
	ChangeSetID  string
	Seq          int64

	// StatusCode is the HTTP status for a rejected request, 0 otherwise.
	StatusCode int

	Err error
}

func (e *TransportError) Error() string {
	msg := fmt.Sprintf("deliver change-set %s (annotation=%s, seq=%d)", shortID(e.ChangeSetID), e.AnnotationID, e.Seq)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(": status %d", e.StatusCode)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *TransportError) Unwrap() error { return e.Err }

// IsTransportError reports whether err is a delivery failure.
func IsTransportError(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}
