package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Kind represents the pipeline stage an error belongs to.
type Kind string

const (
	KindLoad     Kind = "LoadError"
	KindRender   Kind = "RenderError"
	KindAudit    Kind = "AuditError"
	KindTimeout  Kind = "TimeoutError"
	KindInternal Kind = "InternalError"
)

// Common error codes.
const (
	ErrCodeFileNotFound      = "ERR_FILE_NOT_FOUND"
	ErrCodeUnsupportedFile   = "ERR_UNSUPPORTED_FILE"
	ErrCodeNotAComponent     = "ERR_NOT_A_COMPONENT"
	ErrCodeComponentNotFound = "ERR_COMPONENT_NOT_FOUND"
	ErrCodeNoModule          = "ERR_NO_GO_MODULE"
	ErrCodeRenderFailed      = "ERR_RENDER_FAILED"
	ErrCodeDocumentFailed    = "ERR_DOCUMENT_FAILED"
	ErrCodeAuditFailed       = "ERR_AUDIT_FAILED"
	ErrCodeAuditTimeout      = "ERR_AUDIT_TIMEOUT"
	ErrCodeInvalidRequest    = "ERR_INVALID_REQUEST"
	ErrCodeInternalError     = "ERR_INTERNAL"
)

// DefaultHint is the remediation hint attached to every error response.
const DefaultHint = "Verify the component path, make sure the component renders on its own, then run the check again."

// CheckError is a structured error carrying the failing stage and context.
type CheckError struct {
	Kind      Kind
	Code      string
	Message   string
	Cause     error
	FilePath  string
	Component string
}

// Error implements the error interface.
func (e *CheckError) Error() string {
	var parts []string

	if e.Code != "" {
		parts = append(parts, fmt.Sprintf("[%s]", e.Code))
	}

	if e.Component != "" {
		parts = append(parts, "component:"+e.Component)
	}

	if e.FilePath != "" {
		parts = append(parts, e.FilePath)
	}

	parts = append(parts, e.Message)

	result := strings.Join(parts, " ")

	if e.Cause != nil {
		result += fmt.Sprintf(": %v", e.Cause)
	}

	return result
}

// Unwrap returns the underlying cause error.
func (e *CheckError) Unwrap() error {
	return e.Cause
}

// Is implements error comparison.
func (e *CheckError) Is(target error) bool {
	var t *CheckError
	if errors.As(target, &t) {
		return e.Kind == t.Kind && e.Code == t.Code
	}

	return false
}

// WithFile adds file location information.
func (e *CheckError) WithFile(filePath string) *CheckError {
	e.FilePath = filePath

	return e
}

// WithComponent adds component context.
func (e *CheckError) WithComponent(component string) *CheckError {
	e.Component = component

	return e
}

// NewLoadError creates a module loading error.
func NewLoadError(code, message string, cause error) *CheckError {
	return &CheckError{Kind: KindLoad, Code: code, Message: message, Cause: cause}
}

// NewRenderError creates a render error.
func NewRenderError(code, message string, cause error) *CheckError {
	return &CheckError{Kind: KindRender, Code: code, Message: message, Cause: cause}
}

// NewAuditError creates an audit error. The message carries the engine's
// own error text.
func NewAuditError(message string, cause error) *CheckError {
	return &CheckError{Kind: KindAudit, Code: ErrCodeAuditFailed, Message: message, Cause: cause}
}

// NewTimeoutError creates an audit timeout error.
func NewTimeoutError(message string) *CheckError {
	return &CheckError{Kind: KindTimeout, Code: ErrCodeAuditTimeout, Message: message}
}

// NewInternalError creates an internal error.
func NewInternalError(code, message string, cause error) *CheckError {
	return &CheckError{Kind: KindInternal, Code: code, Message: message, Cause: cause}
}

// KindOf classifies err. Errors that are not a *CheckError are internal.
func KindOf(err error) Kind {
	var ce *CheckError
	if errors.As(err, &ce) {
		return ce.Kind
	}

	return KindInternal
}

// IsKind reports whether err is a *CheckError of the given kind.
func IsKind(err error, kind Kind) bool {
	var ce *CheckError
	return errors.As(err, &ce) && ce.Kind == kind
}

// Payload is the uniform error body returned to callers.
type Payload struct {
	Kind    Kind   `json:"kind"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
	Hint    string `json:"hint"`
}

// ToPayload converts any error into the uniform error body.
func ToPayload(err error) *Payload {
	if err == nil {
		return nil
	}

	payload := &Payload{
		Kind:    KindOf(err),
		Message: err.Error(),
		Hint:    DefaultHint,
	}

	var ce *CheckError
	if errors.As(err, &ce) {
		payload.Code = ce.Code
	} else {
		payload.Code = ErrCodeInternalError
	}

	return payload
}
