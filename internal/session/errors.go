package session

import "errors"

var (
	// ErrSessionBusy is returned when an analysis or confirmation is already in flight.
	ErrSessionBusy = errors.New("session busy")
	// ErrAnalysisFailed is returned when the order desk could not parse an order.
	ErrAnalysisFailed = errors.New("analysis failed")
	// ErrConfirmFailed is returned when the order desk rejected a confirmation.
	ErrConfirmFailed = errors.New("confirm failed")
	// ErrInvalidState is returned when an operation is not legal in the current state.
	ErrInvalidState = errors.New("invalid session state")
	// ErrStale is returned when a response arrived after the session moved on.
	ErrStale = errors.New("response no longer relevant")
)

// Error carries an error kind together with the message shown to the customer
type Error struct {
	Kind    error
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Kind.Error() + ": " + e.Err.Error()
	}
	if e.Message != "" {
		return e.Kind.Error() + ": " + e.Message
	}
	return e.Kind.Error()
}

func (e *Error) Unwrap() []error {
	if e.Err != nil {
		return []error{e.Kind, e.Err}
	}
	return []error{e.Kind}
}

// UserMessage returns the chat text for err, or "" when the error is tolerated silently.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var se *Error
	if errors.As(err, &se) && se.Message != "" {
		return se.Message
	}
	switch {
	case errors.Is(err, ErrSessionBusy), errors.Is(err, ErrStale):
		return ""
	case errors.Is(err, ErrAnalysisFailed):
		return MsgAnalysisFailed
	case errors.Is(err, ErrConfirmFailed):
		return MsgConfirmFailed
	case errors.Is(err, ErrInvalidState):
		return ""
	default:
		return MsgUnexpected
	}
}
