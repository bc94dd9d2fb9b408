package decision

import "fmt"

// ErrorCode enumerates the stable error codes originating in the decision
// package.
type ErrorCode string

const (
	ErrNoOptions                ErrorCode = "NO_OPTIONS"
	ErrNoValidOptions           ErrorCode = "NO_VALID_OPTIONS"
	ErrRuleExists                ErrorCode = "RULE_EXISTS"
	ErrUnknownRule                ErrorCode = "UNKNOWN_RULE"
	ErrDecisionNotFound           ErrorCode = "DECISION_NOT_FOUND"
	ErrDecisionValidationFailed   ErrorCode = "DECISION_VALIDATION_FAILED"
	ErrDecisionMakingError        ErrorCode = "DECISION_MAKING_ERROR"
	ErrDecisionExecutionError     ErrorCode = "DECISION_EXECUTION_ERROR"
	ErrFeedbackProcessingError    ErrorCode = "FEEDBACK_PROCESSING_ERROR"
	ErrDecisionHistoryError       ErrorCode = "DECISION_HISTORY_ERROR"
	ErrDecisionRetrievalError     ErrorCode = "DECISION_RETRIEVAL_ERROR"
	ErrOfflineBufferFull          ErrorCode = "OFFLINE_BUFFER_FULL"
)

// Error is the typed, structured error every public decision operation
// returns on failure. Validation and lookup failures are always reported
// to the caller this way, never as opaque errors.
type Error struct {
	Code    ErrorCode
	Message string
	Details map[string]interface{}
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewError constructs an Error, copying details so the caller's map can't
// be mutated afterward to change a previously-returned error's contents.
func NewError(code ErrorCode, message string, details map[string]interface{}) *Error {
	d := make(map[string]interface{}, len(details))
	for k, v := range details {
		d[k] = v
	}
	return &Error{Code: code, Message: message, Details: d}
}

// IsCode reports whether err is an *Error with the given code.
func IsCode(err error, code ErrorCode) bool {
	de, ok := err.(*Error)
	return ok && de.Code == code
}
