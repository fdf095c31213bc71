// Copyright (c) Microsoft Corporation.
// Licensed under the MIT license.

// Package shared holds the request, result and callback types that travel
// between the public surface and the internal engine.
package shared

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/AzureAD/azure-activedirectory-library-for-go/apps/cache"
)

// PromptBehavior controls when the user is shown interactive UI.
type PromptBehavior int

const (
	// PromptAuto shows UI only when the silent paths (cache, refresh) cannot
	// produce a token.
	PromptAuto PromptBehavior = iota
	// PromptAlways shows UI regardless of cached state.
	PromptAlways
	// PromptNever fails instead of showing UI.
	PromptNever
)

func (p PromptBehavior) String() string {
	switch p {
	case PromptAlways:
		return "Always"
	case PromptNever:
		return "Never"
	}
	return "Auto"
}

// AuthenticationRequest carries one token acquisition through the engine.
type AuthenticationRequest struct {
	// RequestID identifies the request in the pending registry and in
	// completion signals. Generated when the request is created.
	RequestID     string
	CorrelationID uuid.UUID

	Authority   string
	Resource    string
	ClientID    string
	RedirectURI string

	// UserID scopes cache entries and is sent as the login hint.
	UserID string

	Prompt           PromptBehavior
	ExtraQueryParams string

	// SkipCache marks requests that must not read or write the token cache
	// (the explicit refresh-token surface).
	SkipCache bool
}

// AuthenticationStatus classifies a delivered result.
type AuthenticationStatus int

const (
	StatusFailed AuthenticationStatus = iota
	StatusSucceeded
	StatusCancelled
)

// AuthenticationResult is the terminal outcome delivered to a callback.
type AuthenticationResult struct {
	Status AuthenticationStatus

	AccessToken  string
	RefreshToken string
	// ExpiresOn is zero when the authority reported no lifetime.
	ExpiresOn                   time.Time
	IsMultiResourceRefreshToken bool

	TenantID string
	UserInfo cache.UserInfo
	// IDToken is the raw id_token from the wire.
	IDToken string

	CorrelationID uuid.UUID

	// ErrorCode and ErrorDescription carry the authority's error payload
	// when the failure was the authority's own rejection rather than a
	// local or transport problem.
	ErrorCode        string
	ErrorDescription string
}

// Callback receives the terminal outcome of one acquisition, exactly once.
// A non-nil err means the request failed; when the failure was the
// authority's answer, the result also carries the server's error payload in
// ErrorCode and ErrorDescription.
type Callback func(result AuthenticationResult, err error)

// InteractiveResultKind tags the outcome of an interactive flow.
type InteractiveResultKind int

const (
	// InteractiveCompleted means the flow reached the redirect URI; the full
	// terminal URL is in RedirectURL.
	InteractiveCompleted InteractiveResultKind = iota
	// InteractiveCancelled means the user abandoned the flow.
	InteractiveCancelled
	// InteractiveError means the host could not finish the flow.
	InteractiveError
)

// InteractiveResult is the completion signal a flow host reports back to the
// engine.
type InteractiveResult struct {
	Kind        InteractiveResultKind
	RedirectURL string

	// ErrorCode and ErrorDescription are set for InteractiveError.
	ErrorCode        string
	ErrorDescription string
}

// DefaultClient is our default shared HTTP client.
var DefaultClient = &http.Client{}
