// Copyright (c) Microsoft Corporation.
// Licensed under the MIT license.

/*
Package adal provides a client for acquiring security tokens from Azure
Active Directory's v1 endpoints on behalf of applications that run on user
devices.

Acquiring a token can require showing the user a sign-in page and waiting for
them to finish, so results are delivered through a callback instead of a
return value; no call on this surface blocks on the network or the user. A
request first consults the token cache, then silently redeems a cached
refresh token, and opens the system browser for an interactive sign-in only
when the silent paths cannot produce a token or the prompt behavior demands
one.

Basic use:

	client, err := adal.New("https://login.microsoftonline.com/common", clientID)
	if err != nil {
		// bad configuration
	}
	err = client.AcquireToken(ctx, "https://vault.azure.net", func(result adal.AuthenticationResult, err error) {
		if err != nil {
			// the request failed
			return
		}
		// use result.AccessToken
	})

Tokens are cached in memory by default. Pass WithCache to persist them (see
the cache package's NewPersistedStore and its file, keyring and encrypted
mediums) or to share one cache between clients.
*/
package adal

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/AzureAD/azure-activedirectory-library-for-go/apps/cache"
	"github.com/AzureAD/azure-activedirectory-library-for-go/apps/internal/base"
	"github.com/AzureAD/azure-activedirectory-library-for-go/apps/internal/browser"
	"github.com/AzureAD/azure-activedirectory-library-for-go/apps/internal/comm"
	"github.com/AzureAD/azure-activedirectory-library-for-go/apps/internal/connectivity"
	"github.com/AzureAD/azure-activedirectory-library-for-go/apps/internal/discovery"
	"github.com/AzureAD/azure-activedirectory-library-for-go/apps/internal/logger"
	"github.com/AzureAD/azure-activedirectory-library-for-go/apps/internal/oauth"
	"github.com/AzureAD/azure-activedirectory-library-for-go/apps/internal/pending"
	"github.com/AzureAD/azure-activedirectory-library-for-go/apps/internal/shared"
)

// AuthenticationResult contains the outcome of one token acquisition.
type AuthenticationResult = shared.AuthenticationResult

// AuthenticationCallback receives the terminal outcome of one acquisition,
// exactly once. It may be invoked on any goroutine.
type AuthenticationCallback = shared.Callback

// AuthenticationStatus classifies a delivered result.
type AuthenticationStatus = shared.AuthenticationStatus

const (
	StatusFailed    = shared.StatusFailed
	StatusSucceeded = shared.StatusSucceeded
	StatusCancelled = shared.StatusCancelled
)

// PromptBehavior controls when the user is shown interactive UI.
type PromptBehavior = shared.PromptBehavior

const (
	// PromptAuto shows UI only when the silent paths cannot produce a token.
	PromptAuto = shared.PromptAuto
	// PromptAlways shows UI regardless of cached state.
	PromptAlways = shared.PromptAlways
	// PromptNever fails instead of showing UI.
	PromptNever = shared.PromptNever
)

// InteractiveResult is the completion signal an interactive flow host
// reports through CompleteAuthentication.
type InteractiveResult = shared.InteractiveResult

// InteractiveResultKind tags the outcome of an interactive flow.
type InteractiveResultKind = shared.InteractiveResultKind

const (
	InteractiveCompleted = shared.InteractiveCompleted
	InteractiveCancelled = shared.InteractiveCancelled
	InteractiveError     = shared.InteractiveError
)

// UserInfo identifies the user a token was issued to.
type UserInfo = cache.UserInfo

// InteractiveFlowHost renders interactive sign-ins. The default host opens
// the system browser; embedders with their own UI surface implement this and
// pass it to WithFlowHost.
type InteractiveFlowHost = base.InteractiveFlowHost

// Registry tracks in-flight interactive requests. Clients sharing one can
// resolve each other's completion signals.
type Registry = pending.Registry

// NewRegistry returns an empty pending-request registry.
func NewRegistry() *Registry {
	return pending.NewRegistry()
}

// Options configures a Client's behavior.
type Options struct {
	// ValidateAuthority makes the first request confirm the authority against
	// the instance discovery service before any token traffic. The default is
	// true. This can be changed with the WithValidateAuthority() option.
	ValidateAuthority bool

	// Cache stores tokens between requests. The default is a fresh in-memory
	// store. This can be set with the WithCache() option; passing nil
	// disables caching entirely.
	Cache cache.Store

	// Registry tracks in-flight interactive requests. The default is a fresh
	// registry. Set one with WithRegistry() to let several clients resolve
	// each other's flows.
	Registry *pending.Registry

	// HTTPClient performs all HTTP calls. The default is a shared
	// http.Client. This can be set with the WithHTTPClient() option.
	HTTPClient comm.HTTPClient

	// Logger receives structured diagnostics. The default discards them.
	// This can be set with the WithLogger() option.
	Logger *slog.Logger

	// CorrelationID is stamped on requests that don't carry their own. The
	// default stamps a random id per request. This can be set with the
	// WithCorrelationID() option.
	CorrelationID uuid.UUID

	// FlowHost runs interactive sign-ins. The default opens the system
	// browser and listens on the loopback redirect. This can be replaced
	// with the WithFlowHost() option; passing nil makes interactive requests
	// fail, which suits headless processes.
	FlowHost InteractiveFlowHost
	hostSet  bool

	// FlowTimeout bounds how long a browser sign-in may take. The default is
	// browser.DefaultFlowTimeout. This can be changed with the
	// WithFlowTimeout() option. Ignored when FlowHost is replaced.
	FlowTimeout time.Duration

	// Probe gates refresh attempts on device connectivity. The default
	// inspects the host's network interfaces. This can be replaced with the
	// WithConnectivityProbe() option.
	Probe base.ConnectivityProbe

	cacheSet bool
}

// Option is an optional argument to the New constructor.
type Option func(o *Options)

// WithValidateAuthority controls whether the authority is confirmed against
// the instance discovery service before the first token request.
func WithValidateAuthority(validate bool) Option {
	return func(o *Options) {
		o.ValidateAuthority = validate
	}
}

// WithCache sets the token store. Pass nil to disable caching.
func WithCache(store cache.Store) Option {
	return func(o *Options) {
		o.Cache = store
		o.cacheSet = true
	}
}

// WithRegistry shares a pending-request registry between clients, letting
// one client complete an interactive flow another started.
func WithRegistry(registry *pending.Registry) Option {
	return func(o *Options) {
		o.Registry = registry
	}
}

// WithHTTPClient allows for a custom HTTP client to be set.
func WithHTTPClient(httpClient comm.HTTPClient) Option {
	return func(o *Options) {
		o.HTTPClient = httpClient
	}
}

// WithLogger routes the client's structured diagnostics to l.
func WithLogger(l *slog.Logger) Option {
	return func(o *Options) {
		o.Logger = l
	}
}

// WithCorrelationID sets the id stamped on requests that don't carry their
// own.
func WithCorrelationID(id uuid.UUID) Option {
	return func(o *Options) {
		o.CorrelationID = id
	}
}

// WithFlowHost replaces the system-browser host for interactive sign-ins.
// Pass nil for headless processes that must never show UI.
func WithFlowHost(host InteractiveFlowHost) Option {
	return func(o *Options) {
		o.FlowHost = host
		o.hostSet = true
	}
}

// WithFlowTimeout bounds how long a browser sign-in may take.
func WithFlowTimeout(d time.Duration) Option {
	return func(o *Options) {
		o.FlowTimeout = d
	}
}

// WithConnectivityProbe replaces the connectivity check that gates refresh
// attempts.
func WithConnectivityProbe(probe base.ConnectivityProbe) Option {
	return func(o *Options) {
		o.Probe = probe
	}
}

// Client acquires tokens for one application at one authority. It is safe
// for concurrent use.
type Client struct {
	client *base.Client
}

// New is the constructor for Client. The authority is the token issuer,
// e.g. https://login.microsoftonline.com/common; clientID identifies the
// application registered at it.
func New(authority, clientID string, options ...Option) (*Client, error) {
	opts := Options{
		ValidateAuthority: true,
		HTTPClient:        shared.DefaultClient,
		FlowTimeout:       browser.DefaultFlowTimeout,
	}
	for _, o := range options {
		o(&opts)
	}
	if !opts.cacheSet {
		opts.Cache = cache.NewMemoryStore()
	}
	if opts.Registry == nil {
		opts.Registry = pending.NewRegistry()
	}
	if opts.Probe == nil {
		opts.Probe = connectivity.New()
	}
	log := logger.Nop()
	if opts.Logger != nil {
		log = logger.New(opts.Logger)
	}

	protocol := oauth.New(opts.HTTPClient)

	// The default host completes its flows through the client, which doesn't
	// exist yet; it is wired below.
	var browserHost *browser.Host
	flowHost := opts.FlowHost
	if !opts.hostSet {
		browserHost = browser.New(protocol, browser.WithFlowTimeout(opts.FlowTimeout))
		flowHost = browserHost
	}

	client, err := base.New(base.Config{
		Authority:         authority,
		ClientID:          clientID,
		ValidateAuthority: opts.ValidateAuthority,
		Cache:             opts.Cache,
		Registry:          opts.Registry,
		Discovery:         discovery.New(opts.HTTPClient),
		Protocol:          protocol,
		FlowHost:          flowHost,
		Probe:             opts.Probe,
		Logger:            log,
		CorrelationID:     opts.CorrelationID,
	})
	if err != nil {
		return nil, err
	}
	if browserHost != nil {
		browserHost.SetCompleter(client)
	}
	return &Client{client: client}, nil
}

// AcquireTokenOptions are the optional settings to an AcquireToken() call,
// set with AcquireTokenOption functions.
type AcquireTokenOptions struct {
	// UserID scopes cache entries and is sent as the sign-in hint. To set,
	// use the WithUserID() option.
	UserID string

	// Prompt controls when the user is shown UI. The default is PromptAuto.
	// To set, use the WithPrompt() option.
	Prompt PromptBehavior

	// ExtraQueryParameters is appended to the authorize URL of interactive
	// sign-ins. To set, use the WithExtraQueryParameters() option.
	ExtraQueryParameters string

	// RedirectURI overrides the client's default redirect for interactive
	// sign-ins. To set, use the WithRedirectURI() option.
	RedirectURI string

	// CorrelationID stamps this request instead of the client's default. To
	// set, use the WithRequestCorrelationID() option.
	CorrelationID uuid.UUID
}

// AcquireTokenOption changes options inside AcquireTokenOptions used in
// .AcquireToken() and .AcquireTokenByRefreshToken().
type AcquireTokenOption func(a *AcquireTokenOptions)

// WithUserID scopes the request to one user's cache entries and passes the
// id to the authority as the sign-in hint.
func WithUserID(userID string) AcquireTokenOption {
	return func(a *AcquireTokenOptions) {
		a.UserID = userID
	}
}

// WithPrompt sets when the request may show the user interactive UI.
func WithPrompt(prompt PromptBehavior) AcquireTokenOption {
	return func(a *AcquireTokenOptions) {
		a.Prompt = prompt
	}
}

// WithExtraQueryParameters appends raw query parameters, with or without a
// leading "&", to an interactive sign-in's authorize URL.
func WithExtraQueryParameters(params string) AcquireTokenOption {
	return func(a *AcquireTokenOptions) {
		a.ExtraQueryParameters = params
	}
}

// WithRedirectURI overrides the redirect the authority sends the browser
// back to. It must match a redirect registered for the application.
func WithRedirectURI(uri string) AcquireTokenOption {
	return func(a *AcquireTokenOptions) {
		a.RedirectURI = uri
	}
}

// WithRequestCorrelationID stamps this one request instead of the client's
// default correlation id.
func WithRequestCorrelationID(id uuid.UUID) AcquireTokenOption {
	return func(a *AcquireTokenOptions) {
		a.CorrelationID = id
	}
}

// AcquireToken resolves a token for resource and delivers the outcome to
// callback, exactly once, on an arbitrary goroutine. The returned error is
// non-nil only for usage mistakes (blank resource, nil callback); every
// other outcome, including failures, arrives through the callback.
func (c *Client) AcquireToken(ctx context.Context, resource string, callback AuthenticationCallback, options ...AcquireTokenOption) error {
	opts := AcquireTokenOptions{}
	for _, o := range options {
		o(&opts)
	}
	return c.client.AcquireToken(ctx, shared.AuthenticationRequest{
		Resource:         resource,
		UserID:           opts.UserID,
		Prompt:           opts.Prompt,
		ExtraQueryParams: opts.ExtraQueryParameters,
		RedirectURI:      opts.RedirectURI,
		CorrelationID:    opts.CorrelationID,
	}, callback)
}

// AcquireTokenByRefreshToken redeems a refresh token the caller obtained out
// of band. The request bypasses the token cache in both directions and never
// shows UI. resource may be blank; the authority then scopes the token to
// the refresh token's original resource.
func (c *Client) AcquireTokenByRefreshToken(ctx context.Context, refreshToken, resource string, callback AuthenticationCallback, options ...AcquireTokenOption) error {
	opts := AcquireTokenOptions{}
	for _, o := range options {
		o(&opts)
	}
	return c.client.AcquireTokenByRefreshToken(ctx, shared.AuthenticationRequest{
		Resource:      resource,
		UserID:        opts.UserID,
		CorrelationID: opts.CorrelationID,
	}, refreshToken, callback)
}

// CompleteAuthentication resolves an interactive flow's terminal signal to
// the callback that started it. The default browser host calls this itself;
// embedders running their own InteractiveFlowHost call it when their UI
// finishes.
func (c *Client) CompleteAuthentication(ctx context.Context, requestID string, result InteractiveResult) {
	c.client.CompleteAuthentication(ctx, requestID, result)
}

// CancelAuthentication asks the flow host to abandon requestID's pending
// sign-in. A true return means nothing is pending anymore: either there was
// nothing to cancel or the cancellation was delivered. False means the host
// would not let go and the request is still pending.
func (c *Client) CancelAuthentication(requestID string) bool {
	return c.client.CancelAuthentication(requestID)
}

// Authority returns the authority the client was built with.
func (c *Client) Authority() string {
	return c.client.Authority()
}

// ClientID returns the application id the client was built with.
func (c *Client) ClientID() string {
	return c.client.ClientID()
}

// ValidateAuthority reports whether the client confirms the authority
// against instance discovery before token traffic.
func (c *Client) ValidateAuthority() bool {
	return c.client.ValidateAuthority()
}

// Cache returns the token store, nil when caching is disabled.
func (c *Client) Cache() cache.Store {
	return c.client.Cache()
}

// CorrelationID returns the id stamped on requests that carry none.
func (c *Client) CorrelationID() uuid.UUID {
	return c.client.CorrelationID()
}

// SetCorrelationID replaces the default correlation id for later requests.
func (c *Client) SetCorrelationID(id uuid.UUID) {
	c.client.SetCorrelationID(id)
}
