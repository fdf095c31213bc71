// Package errors defines the failure vocabulary of the library. Errors
// delivered through an AuthenticationCallback or returned from constructors
// are *AuthError values classified by Code; CodeOf recovers the class from
// any wrapped error chain.
package errors

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/kylelemons/godebug/pretty"
)

var prettyConf = &pretty.Config{IncludeUnexported: false, SkipZeroFields: true, TrackCycles: true}

type verboser interface {
	Verbose() string
}

// Verbose prints the most verbose error that the error message has.
func Verbose(err error) string {
	if v, ok := err.(verboser); ok {
		return v.Verbose()
	}
	return err.Error()
}

// Code identifies the class of an authentication failure.
type Code int

const (
	// CodeUnknown is the zero value and never set by this package.
	CodeUnknown Code = iota
	// CodeInvalidArgument reports missing or malformed caller input. Returned
	// synchronously, never delivered through a callback.
	CodeInvalidArgument
	// CodeAuthorityURL reports an authority that does not reduce to
	// scheme://host/tenant. Delivered through the callback because the
	// authority can come from configuration rather than code.
	CodeAuthorityURL
	// CodeAuthorityInstance reports that instance discovery did not recognize
	// the authority, or that the discovery call itself failed.
	CodeAuthorityInstance
	// CodeConnectivity reports that the connectivity probe found no usable
	// network before a refresh attempt. No network call was made.
	CodeConnectivity
	// CodeProtocol reports a server-returned error payload, carried verbatim
	// in ServerCode and ServerDescription.
	CodeProtocol
	// CodeNoPromptAllowed reports that interaction was required but the
	// request's prompt behavior forbids showing UI.
	CodeNoPromptAllowed
	// CodeFlowNotResolved reports that the interactive flow host could not be
	// started in this environment, or failed before the flow completed.
	CodeFlowNotResolved
	// CodeCancelled reports a cancelled interactive request. Raised only after
	// the flow host acknowledged the cancellation.
	CodeCancelled
	// CodeCacheUnavailable reports a persisted token cache whose durable
	// medium could not be read at construction.
	CodeCacheUnavailable
)

func (c Code) String() string {
	switch c {
	case CodeInvalidArgument:
		return "invalid argument"
	case CodeAuthorityURL:
		return "authority is not a valid URL"
	case CodeAuthorityInstance:
		return "authority is not a valid instance"
	case CodeConnectivity:
		return "device connection is not available"
	case CodeProtocol:
		return "server returned an error"
	case CodeNoPromptAllowed:
		return "prompt is not allowed"
	case CodeFlowNotResolved:
		return "interactive flow could not be started"
	case CodeCancelled:
		return "authentication cancelled"
	case CodeCacheUnavailable:
		return "token cache is unavailable"
	}
	return "unknown error"
}

// AuthError is the error type produced by the library.
type AuthError struct {
	Code    Code
	Message string

	// ServerCode and ServerDescription carry the OAuth error payload verbatim
	// when Code is CodeProtocol.
	ServerCode        string
	ServerDescription string

	// CorrelationID echoes the request correlation id when the server
	// reported one.
	CorrelationID string

	// Err is the underlying cause, if any.
	Err error
}

func (e *AuthError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.ServerCode != "" {
		msg = fmt.Sprintf("%s (%s: %s)", msg, e.ServerCode, e.ServerDescription)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

// New returns an AuthError with the given code and message.
func New(code Code, message string) *AuthError {
	return &AuthError{Code: code, Message: message}
}

// Newf returns an AuthError with a formatted message.
func Newf(code Code, format string, args ...any) *AuthError {
	return &AuthError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap returns an AuthError carrying err as its cause.
func Wrap(code Code, message string, err error) *AuthError {
	return &AuthError{Code: code, Message: message, Err: err}
}

// Server returns a CodeProtocol AuthError carrying the server's error payload.
func Server(serverCode, description, correlationID string) *AuthError {
	return &AuthError{
		Code:              CodeProtocol,
		Message:           "authentication failed",
		ServerCode:        serverCode,
		ServerDescription: description,
		CorrelationID:     correlationID,
	}
}

// CodeOf returns the Code of the first AuthError in err's chain, or
// CodeUnknown when there is none.
func CodeOf(err error) Code {
	var ae *AuthError
	if errors.As(err, &ae) {
		return ae.Code
	}
	return CodeUnknown
}

// Is reports whether any error in err's chain matches target. Mirrors the
// standard library so callers don't need a second errors import.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain matching target. Mirrors the
// standard library so callers don't need a second errors import.
func As(err error, target any) bool {
	return errors.As(err, target)
}

// CallErr represents an HTTP call error. Has a Verbose() method that allows getting the
// http.Request and Response objects. Implements error.
type CallErr struct {
	Req  *http.Request
	Resp *http.Response
	Err  error
}

// Errors implements error.Error().
func (e CallErr) Error() string {
	return e.Err.Error()
}

// Verbose prints a versbose error message with the request or response.
func (e CallErr) Verbose() string {
	return fmt.Sprintf("%s:\n\tRequest:\n%s\n\tResponse:\n%s", e.Err, prettyConf.Sprint(e.Req), prettyConf.Sprint(e.Resp))
}
