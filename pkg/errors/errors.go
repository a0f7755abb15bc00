package errors

import (
	stderrors "errors"
	"fmt"
	"time"
)

// ErrorType represents the type of error
type ErrorType string

const (
	// ErrorTypeSession represents browser session start failures
	ErrorTypeSession ErrorType = "session"
	// ErrorTypeStructure represents expected markup missing from a page
	ErrorTypeStructure ErrorType = "structure"
	// ErrorTypeRenderTimeout represents content that did not render in time
	ErrorTypeRenderTimeout ErrorType = "render_timeout"
	// ErrorTypeState represents persisted-state read/parse errors
	ErrorTypeState ErrorType = "state"
	// ErrorTypePersistence represents persisted-state write errors
	ErrorTypePersistence ErrorType = "persistence"
	// ErrorTypeNetwork represents network-related errors
	ErrorTypeNetwork ErrorType = "network"
	// ErrorTypeRateLimit represents rate limiting errors
	ErrorTypeRateLimit ErrorType = "rate_limit"
	// ErrorTypeDelivery represents chat message delivery errors
	ErrorTypeDelivery ErrorType = "delivery"
	// ErrorTypeConfiguration represents configuration errors
	ErrorTypeConfiguration ErrorType = "configuration"
	// ErrorTypeInternal represents anything unclassified, including recovered panics
	ErrorTypeInternal ErrorType = "internal"
)

// WorkflowError is an error raised by one stage of an update run
type WorkflowError struct {
	Type    ErrorType
	Stage   string
	Message string
	Err     error
	Time    time.Time
}

// Error implements the error interface
func (e *WorkflowError) Error() string {
	prefix := fmt.Sprintf("[%s]", e.Type)
	if e.Stage != "" {
		prefix = fmt.Sprintf("[%s] %s:", e.Type, e.Stage)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s %s - %v", prefix, e.Message, e.Err)
	}
	return fmt.Sprintf("%s %s", prefix, e.Message)
}

// Unwrap returns the underlying error
func (e *WorkflowError) Unwrap() error {
	return e.Err
}

// IsRetryable returns true if the error is retryable
func (e *WorkflowError) IsRetryable() bool {
	switch e.Type {
	case ErrorTypeNetwork, ErrorTypeRenderTimeout:
		return true
	default:
		return false
	}
}

// WithStage returns a copy of the error tagged with the stage it surfaced in.
// An existing stage is kept.
func (e *WorkflowError) WithStage(stage string) *WorkflowError {
	if e.Stage != "" {
		return e
	}
	cp := *e
	cp.Stage = stage
	return &cp
}

// New creates a new WorkflowError
func New(errType ErrorType, message string, err error) *WorkflowError {
	return &WorkflowError{
		Type:    errType,
		Message: message,
		Err:     err,
		Time:    time.Now(),
	}
}

// NewSession creates a new session start error
func NewSession(message string, err error) *WorkflowError {
	return New(ErrorTypeSession, message, err)
}

// NewStructure creates a new markup-shape error
func NewStructure(message string) *WorkflowError {
	return New(ErrorTypeStructure, message, nil)
}

// NewRenderTimeout creates a new render timeout error
func NewRenderTimeout(selector string, timeout time.Duration, err error) *WorkflowError {
	message := fmt.Sprintf("%q not rendered within %v", selector, timeout)
	return New(ErrorTypeRenderTimeout, message, err)
}

// NewState creates a new state read error
func NewState(message string, err error) *WorkflowError {
	return New(ErrorTypeState, message, err)
}

// NewPersistence creates a new state write error
func NewPersistence(message string, err error) *WorkflowError {
	return New(ErrorTypePersistence, message, err)
}

// NewNetwork creates a new network error
func NewNetwork(message string, err error) *WorkflowError {
	return New(ErrorTypeNetwork, message, err)
}

// NewRateLimit creates a new rate limit error
func NewRateLimit(target string, duration time.Duration) *WorkflowError {
	message := fmt.Sprintf("%s rate limited for %v", target, duration)
	return New(ErrorTypeRateLimit, message, nil)
}

// NewDelivery creates a new message delivery error
func NewDelivery(message string, err error) *WorkflowError {
	return New(ErrorTypeDelivery, message, err)
}

// NewConfiguration creates a new configuration error
func NewConfiguration(message string, err error) *WorkflowError {
	return New(ErrorTypeConfiguration, message, err)
}

// NewInternal creates a new unclassified error
func NewInternal(message string, err error) *WorkflowError {
	return New(ErrorTypeInternal, message, err)
}

// As finds the first WorkflowError in err's chain
func As(err error) (*WorkflowError, bool) {
	var we *WorkflowError
	if stderrors.As(err, &we) {
		return we, true
	}
	return nil, false
}

// TypeOf returns the error type of err, or ErrorTypeInternal when err carries none
func TypeOf(err error) ErrorType {
	if we, ok := As(err); ok {
		return we.Type
	}
	return ErrorTypeInternal
}

// Classify wraps err as a WorkflowError of type internal unless it already is one
func Classify(err error, stage string) *WorkflowError {
	if err == nil {
		return nil
	}
	if we, ok := As(err); ok {
		return we.WithStage(stage)
	}
	return NewInternal("unclassified failure", err).WithStage(stage)
}
