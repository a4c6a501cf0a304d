package errorhandler

import (
	"errors"
	"fmt"
	"strings"
)

// Category classifies a failed remote call. The orchestrator renders every
// category into result text; nothing here ever reaches the user as a raw
// error.
type Category int

const (
	// TransportError is a network or timeout failure. Retried only on the
	// next manual or scheduled invocation, never in-loop.
	TransportError Category = iota
	// AuthExpired means the refresh token was rejected; terminal for the
	// whole account group for this run.
	AuthExpired
	// RemoteBusinessError is an explicit failure message from the remote
	// service, surfaced verbatim.
	RemoteBusinessError
	// IdempotentDuplicate means the remote reports the action already
	// happened today. Normalized to success; the remote is the source of
	// truth for whether a sign-in occurred.
	IdempotentDuplicate
	// UnknownError covers anything else.
	UnknownError
)

func (c Category) String() string {
	switch c {
	case TransportError:
		return "transport"
	case AuthExpired:
		return "auth_expired"
	case RemoteBusinessError:
		return "remote_business"
	case IdempotentDuplicate:
		return "idempotent_duplicate"
	default:
		return "unknown"
	}
}

// RemoteError is a failed Tajiduo API call with its classification.
type RemoteError struct {
	Category Category
	Message  string // remote-provided or synthesized user-facing message
	Err      error  // underlying transport error, if any
}

func (e *RemoteError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Category, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Category, e.Message)
}

func (e *RemoteError) Unwrap() error {
	return e.Err
}

// duplicateMarkers are the remote service's own dedup messages. The remote
// speaks Chinese; the substrings are a documented policy, not incidental.
var duplicateMarkers = []string{
	"已经签到",
	"签到过",
	"重复签到",
	"already signed",
}

// NewTransport wraps a network/timeout failure.
func NewTransport(err error, userMsg string) *RemoteError {
	return &RemoteError{Category: TransportError, Message: userMsg, Err: err}
}

// NewRemote classifies an explicit remote failure message, promoting
// "already signed today" style replies to IdempotentDuplicate.
func NewRemote(msg string) *RemoteError {
	cat := RemoteBusinessError
	if IsDuplicateSign(msg) {
		cat = IdempotentDuplicate
	}
	return &RemoteError{Category: cat, Message: msg}
}

// NewAuthExpired marks a rejected refresh credential.
func NewAuthExpired(msg string) *RemoteError {
	return &RemoteError{Category: AuthExpired, Message: msg}
}

// IsDuplicateSign reports whether a remote message means the sign-in already
// happened today.
func IsDuplicateSign(msg string) bool {
	for _, marker := range duplicateMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

// Classify returns the category of err, or UnknownError for anything that is
// not a RemoteError.
func Classify(err error) Category {
	var re *RemoteError
	if errors.As(err, &re) {
		return re.Category
	}
	return UnknownError
}

// UserMessage extracts the user-facing message from err.
func UserMessage(err error) string {
	var re *RemoteError
	if errors.As(err, &re) && re.Message != "" {
		return re.Message
	}
	return err.Error()
}
