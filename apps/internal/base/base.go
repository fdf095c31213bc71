// Copyright (c) Microsoft Corporation.
// Licensed under the MIT license.

// Package base implements the token acquisition engine behind the public
// adal surface. It owns the decision sequence an authentication request
// moves through: input checks, one-time authority validation, the cache
// lookup, the refresh attempt, and the interactive hand-off with its
// pending-request registry. Results leave the engine through the request's
// callback, delivered exactly once.
package base

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/AzureAD/azure-activedirectory-library-for-go/apps/cache"
	"github.com/AzureAD/azure-activedirectory-library-for-go/apps/errors"
	"github.com/AzureAD/azure-activedirectory-library-for-go/apps/internal/authority"
	"github.com/AzureAD/azure-activedirectory-library-for-go/apps/internal/logger"
	"github.com/AzureAD/azure-activedirectory-library-for-go/apps/internal/oauth"
	"github.com/AzureAD/azure-activedirectory-library-for-go/apps/internal/pending"
	"github.com/AzureAD/azure-activedirectory-library-for-go/apps/internal/shared"
)

// DiscoveryService checks an authority against the instance discovery
// service. In all production use it is a *discovery.Client.
type DiscoveryService interface {
	Validate(ctx context.Context, info authority.Info, correlationID uuid.UUID) (bool, error)
}

// ProtocolClient speaks the token protocol with the authority. In all
// production use it is an *oauth.Client.
type ProtocolClient interface {
	RefreshToken(ctx context.Context, req shared.AuthenticationRequest, refreshToken string) (oauth.TokenResponse, error)
	RedeemAuthorizationResponse(ctx context.Context, req shared.AuthenticationRequest, redirectURL string) (oauth.TokenResponse, error)
	AuthorizationURL(req shared.AuthenticationRequest) (string, error)
}

// InteractiveFlowHost renders the login surface for requests that need one.
// Start reports whether the flow is now running; completions arrive later
// through CompleteAuthentication. SendCancel acknowledges only if the host
// still has a live flow for the id.
type InteractiveFlowHost interface {
	Start(req shared.AuthenticationRequest) bool
	SendCancel(requestID string) bool
}

// ConnectivityProbe reports whether the device has a network worth trying.
type ConnectivityProbe interface {
	IsAvailable() bool
}

// Config carries a Client's collaborators and settings.
type Config struct {
	// Authority is the token issuer, e.g. https://login.microsoftonline.com/common.
	// Format problems are reported through request callbacks, not here,
	// because the value routinely comes from configuration files.
	Authority string
	// ClientID identifies the application at the authority.
	ClientID string
	// ValidateAuthority makes the first request confirm the authority is a
	// recognized instance before any token traffic.
	ValidateAuthority bool

	// Cache holds tokens between requests. nil disables caching entirely.
	Cache cache.Store
	// Registry tracks in-flight interactive requests. Sharing one registry
	// between engines lets one engine complete a flow another started.
	Registry *pending.Registry
	// Discovery validates authorities. Required when ValidateAuthority is set.
	Discovery DiscoveryService
	// Protocol performs the token exchanges.
	Protocol ProtocolClient
	// FlowHost runs interactive logins. nil fails interactive requests with
	// CodeFlowNotResolved.
	FlowHost InteractiveFlowHost
	// Probe gates refresh attempts on device connectivity. nil skips the check.
	Probe ConnectivityProbe

	Logger logger.LoggerInterface
	// CorrelationID is stamped on requests that don't carry their own.
	CorrelationID uuid.UUID
}

// Client drives the acquisition decision sequence.
type Client struct {
	rawAuthority string
	clientID     string
	validate     bool

	cache     cache.Store
	registry  *pending.Registry
	discovery DiscoveryService
	protocol  ProtocolClient
	flowHost  InteractiveFlowHost
	probe     ConnectivityProbe
	log       logger.LoggerInterface

	mu            sync.Mutex
	correlationID uuid.UUID
	// validated latches after the authority is confirmed once; failures do
	// not latch, so the next request tries again.
	validated bool
}

// New is the constructor for Client.
func New(cfg Config) (*Client, error) {
	switch {
	case cfg.Authority == "":
		return nil, errors.New(errors.CodeInvalidArgument, "authority cannot be blank")
	case cfg.ClientID == "":
		return nil, errors.New(errors.CodeInvalidArgument, "client id cannot be blank")
	case cfg.Protocol == nil:
		return nil, errors.New(errors.CodeInvalidArgument, "a protocol client is required")
	case cfg.Registry == nil:
		return nil, errors.New(errors.CodeInvalidArgument, "a pending request registry is required")
	case cfg.ValidateAuthority && cfg.Discovery == nil:
		return nil, errors.New(errors.CodeInvalidArgument, "authority validation needs a discovery service")
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.Nop()
	}

	return &Client{
		rawAuthority:  cfg.Authority,
		clientID:      cfg.ClientID,
		validate:      cfg.ValidateAuthority,
		cache:         cfg.Cache,
		registry:      cfg.Registry,
		discovery:     cfg.Discovery,
		protocol:      cfg.Protocol,
		flowHost:      cfg.FlowHost,
		probe:         cfg.Probe,
		log:           cfg.Logger,
		correlationID: cfg.CorrelationID,
	}, nil
}

// Authority returns the configured authority, unnormalized.
func (c *Client) Authority() string {
	return c.rawAuthority
}

// ClientID returns the configured application id.
func (c *Client) ClientID() string {
	return c.clientID
}

// ValidateAuthority reports whether requests confirm the authority against
// instance discovery before token traffic.
func (c *Client) ValidateAuthority() bool {
	return c.validate
}

// Cache returns the token store, nil when caching is disabled.
func (c *Client) Cache() cache.Store {
	return c.cache
}

// CorrelationID returns the id stamped on requests that carry none.
func (c *Client) CorrelationID() uuid.UUID {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.correlationID
}

// SetCorrelationID replaces the default correlation id for later requests.
func (c *Client) SetCorrelationID(id uuid.UUID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.correlationID = id
}

// AcquireToken resolves req to a token, delivering the outcome through
// callback exactly once. Usage errors (blank resource, nil callback) are
// returned synchronously and nothing is delivered. The call itself never
// blocks on the network or the user.
func (c *Client) AcquireToken(ctx context.Context, req shared.AuthenticationRequest, callback shared.Callback) error {
	if callback == nil {
		return errors.New(errors.CodeInvalidArgument, "callback cannot be nil")
	}
	if req.Resource == "" {
		return errors.New(errors.CodeInvalidArgument, "resource cannot be blank")
	}
	req = c.normalize(req)

	go c.run(ctx, req, callback)
	return nil
}

// AcquireTokenByRefreshToken redeems a caller-held refresh token, bypassing
// the cache in both directions: nothing is read and the outcome is not
// stored. The request behaves as prompt Never.
func (c *Client) AcquireTokenByRefreshToken(ctx context.Context, req shared.AuthenticationRequest, refreshToken string, callback shared.Callback) error {
	if callback == nil {
		return errors.New(errors.CodeInvalidArgument, "callback cannot be nil")
	}
	if refreshToken == "" {
		return errors.New(errors.CodeInvalidArgument, "refresh token cannot be blank")
	}
	req = c.normalize(req)
	req.Prompt = shared.PromptNever
	req.SkipCache = true

	go func() {
		info, err := authority.NewInfo(req.Authority)
		if err != nil {
			callback(failedResult(req), err)
			return
		}
		req.Authority = info.CanonicalURI

		if c.probe != nil && !c.probe.IsAvailable() {
			callback(failedResult(req), errors.New(errors.CodeConnectivity, "device has no network connection to refresh over"))
			return
		}

		resp, err := c.protocol.RefreshToken(ctx, req, refreshToken)
		if err != nil {
			callback(failedResult(req), err)
			return
		}
		if !resp.HasAccessToken() {
			callback(failedFromResponse(req, resp), errors.Server(resp.Error, resp.ErrorDescription, resp.CorrelationID))
			return
		}
		callback(resultFromResponse(req, resp), nil)
	}()
	return nil
}

// normalize fills a request's blanks from the engine configuration and
// assigns its identifiers.
func (c *Client) normalize(req shared.AuthenticationRequest) shared.AuthenticationRequest {
	req.RequestID = uuid.NewString()
	if req.Authority == "" {
		req.Authority = c.rawAuthority
	}
	if req.ClientID == "" {
		req.ClientID = c.clientID
	}
	if req.CorrelationID == uuid.Nil {
		req.CorrelationID = c.CorrelationID()
	}
	if req.CorrelationID == uuid.Nil {
		req.CorrelationID = uuid.New()
	}
	if req.RedirectURI == "" {
		req.RedirectURI = defaultRedirectURI()
	}
	return req
}

func (c *Client) run(ctx context.Context, req shared.AuthenticationRequest, callback shared.Callback) {
	info, err := authority.NewInfo(req.Authority)
	if err != nil {
		callback(failedResult(req), err)
		return
	}
	// Keys and wire calls both want the canonical form.
	req.Authority = info.CanonicalURI

	if c.validate {
		if err := c.validateAuthority(ctx, info, req.CorrelationID); err != nil {
			callback(failedResult(req), err)
			return
		}
	}
	c.acquireAfterValidation(ctx, req, callback)
}

func (c *Client) validateAuthority(ctx context.Context, info authority.Info, correlationID uuid.UUID) error {
	c.mu.Lock()
	done := c.validated
	c.mu.Unlock()
	if done {
		return nil
	}

	ok, err := c.discovery.Validate(ctx, info, correlationID)
	if err != nil {
		return errors.Wrap(errors.CodeAuthorityInstance, "authority validation failed", err)
	}
	if !ok {
		return errors.Newf(errors.CodeAuthorityInstance, "%s is not a recognized authority instance", info.CanonicalURI)
	}

	c.mu.Lock()
	c.validated = true
	c.mu.Unlock()
	c.log.Log(ctx, logger.Debug, "authority validated", logger.Field("authority", info.CanonicalURI))
	return nil
}

func (c *Client) acquireAfterValidation(ctx context.Context, req shared.AuthenticationRequest, callback shared.Callback) {
	if req.Prompt == shared.PromptAlways {
		c.interactive(ctx, req, callback)
		return
	}

	if item, ok := c.lookupAccessToken(req); ok {
		c.log.Log(ctx, logger.Debug, "serving token from cache", logger.Field("resource", req.Resource))
		callback(resultFromItem(item, req.CorrelationID), nil)
		return
	}

	c.checkRefresh(ctx, req, callback)
}

// lookupAccessToken finds a usable access token under the request's exact
// key. Entries without a token or past their expiry don't qualify; entries
// without an expiry never expire.
func (c *Client) lookupAccessToken(req shared.AuthenticationRequest) (cache.Item, bool) {
	if c.cache == nil || req.SkipCache {
		return cache.Item{}, false
	}
	key, err := cache.Key(req.Authority, req.Resource, req.ClientID, req.UserID, false)
	if err != nil {
		return cache.Item{}, false
	}
	item, ok := c.cache.Get(key)
	if !ok || item.AccessToken == "" || item.Expired(time.Now()) {
		return cache.Item{}, false
	}
	return item, true
}

// checkRefresh decides what a request without a servable access token does
// next: refresh with a cached token, go interactive, or fail because the
// prompt behavior forbids UI. Burned refresh tokens re-enter here.
func (c *Client) checkRefresh(ctx context.Context, req shared.AuthenticationRequest, callback shared.Callback) {
	if item, ok := c.refreshCandidate(req); ok {
		c.refresh(ctx, req, item, callback)
		return
	}

	if req.Prompt == shared.PromptNever {
		callback(failedResult(req), errors.New(errors.CodeNoPromptAllowed, "no usable token is cached and prompting is not allowed"))
		return
	}
	c.interactive(ctx, req, callback)
}

// refreshCandidate returns the cached item whose refresh token should be
// tried: the exact entry when it has one, else the multi-resource entry.
func (c *Client) refreshCandidate(req shared.AuthenticationRequest) (cache.Item, bool) {
	if c.cache == nil || req.SkipCache {
		return cache.Item{}, false
	}
	for _, multiResource := range []bool{false, true} {
		key, err := cache.Key(req.Authority, req.Resource, req.ClientID, req.UserID, multiResource)
		if err != nil {
			return cache.Item{}, false
		}
		if item, ok := c.cache.Get(key); ok && item.RefreshToken != "" {
			return item, true
		}
	}
	return cache.Item{}, false
}

// refresh redeems item's refresh token for req. The item is removed whenever
// the attempt definitively fails, so a token the authority rejected is never
// tried twice.
func (c *Client) refresh(ctx context.Context, req shared.AuthenticationRequest, item cache.Item, callback shared.Callback) {
	if c.probe != nil && !c.probe.IsAvailable() {
		callback(failedResult(req), errors.New(errors.CodeConnectivity, "device has no network connection to refresh over"))
		return
	}

	resp, err := c.protocol.RefreshToken(ctx, req, item.RefreshToken)
	if err != nil {
		c.removeItem(ctx, item)
		callback(failedResult(req), err)
		return
	}
	if !resp.HasAccessToken() {
		// The authority answered but did not produce a token. Burn the entry
		// and decide again without it; that may land on interactive.
		c.removeItem(ctx, item)
		c.log.Log(ctx, logger.Info, "refresh produced no token, re-deciding",
			logger.Field("server_error", resp.Error), logger.Field("resource", req.Resource))
		c.checkRefresh(ctx, req, callback)
		return
	}

	c.writeCache(req, resp)
	callback(resultFromResponse(req, resp), nil)
}

// interactive hands req to the flow host. The registry entry is created
// before Start so a host that completes synchronously can find it; if Start
// refuses, the entry is removed again and nothing is left pending.
func (c *Client) interactive(ctx context.Context, req shared.AuthenticationRequest, callback shared.Callback) {
	if c.flowHost == nil {
		callback(failedResult(req), errors.New(errors.CodeFlowNotResolved, "no interactive flow host is configured"))
		return
	}

	c.registry.Put(&pending.State{
		RequestID: req.RequestID,
		Request:   req,
		Callback:  callback,
		Host:      c.flowHost,
	})
	if !c.flowHost.Start(req) {
		c.registry.Remove(req.RequestID)
		callback(failedResult(req), errors.New(errors.CodeFlowNotResolved, "interactive flow could not be started in this environment"))
		return
	}
	c.log.Log(ctx, logger.Debug, "interactive flow started", logger.Field("request_id", req.RequestID))
}

// CompleteAuthentication resolves an interactive flow's terminal signal to
// the callback registered for requestID. Claiming the registry entry and
// delivering are tied together, which is what makes delivery exactly-once.
func (c *Client) CompleteAuthentication(ctx context.Context, requestID string, result shared.InteractiveResult) {
	st, found := c.registry.Take(requestID)
	switch found {
	case pending.Missing:
		c.log.Log(ctx, logger.Warn, "completion signal for unknown request", logger.Field("request_id", requestID))
		return
	case pending.FallbackSingleSlot:
		// Wrong-caller delivery is possible here with concurrent requests;
		// the slot exists for hosts that lose the id across UI rebuilds.
		c.log.Log(ctx, logger.Warn, "resolving completion through the last-registered request", logger.Field("request_id", requestID))
	}

	switch result.Kind {
	case shared.InteractiveCancelled:
		st.Cancelled = true
		st.Callback(cancelledResult(st.Request), errors.New(errors.CodeCancelled, "user cancelled authentication"))
	case shared.InteractiveError:
		st.Callback(failedResult(st.Request), errors.Newf(errors.CodeFlowNotResolved, "interactive flow failed: %s: %s", result.ErrorCode, result.ErrorDescription))
	default:
		c.completeExchange(ctx, st, result.RedirectURL)
	}
}

// completeExchange trades the flow's terminal redirect for tokens and
// delivers the outcome. Failures are delivered without touching the cache.
func (c *Client) completeExchange(ctx context.Context, st *pending.State, redirectURL string) {
	req := st.Request

	resp, err := c.protocol.RedeemAuthorizationResponse(ctx, req, redirectURL)
	if err != nil {
		st.Callback(failedResult(req), err)
		return
	}
	if !resp.HasAccessToken() {
		if resp.Error != "" {
			st.Callback(failedFromResponse(req, resp), errors.Server(resp.Error, resp.ErrorDescription, resp.CorrelationID))
			return
		}
		st.Callback(failedResult(req), errors.New(errors.CodeProtocol, "authorization code exchange returned no token"))
		return
	}

	c.writeCache(req, resp)
	st.Callback(resultFromResponse(req, resp), nil)
}

// CancelAuthentication advisorily cancels requestID's interactive flow. A
// true return means either nothing was pending or the host acknowledged and
// the cancellation was delivered; false means the host would not acknowledge
// and the request is still pending.
func (c *Client) CancelAuthentication(requestID string) bool {
	st, found := c.registry.Get(requestID)
	if found == pending.Missing {
		return true
	}
	if st.Host == nil || !st.Host.SendCancel(requestID) {
		return false
	}

	claimed, found := c.registry.Take(requestID)
	if found == pending.Missing {
		// The flow completed between the acknowledgment and the claim; its
		// result won, nothing left to cancel.
		return true
	}
	claimed.Cancelled = true
	claimed.Callback(cancelledResult(claimed.Request), errors.New(errors.CodeCancelled, "authentication request was cancelled"))
	return true
}

// writeCache stores a token response under the request's exact key and,
// when the refresh token works across resources, under the multi-resource
// key as well.
func (c *Client) writeCache(req shared.AuthenticationRequest, resp oauth.TokenResponse) {
	if c.cache == nil || req.SkipCache {
		return
	}

	key, err := cache.Key(req.Authority, req.Resource, req.ClientID, req.UserID, false)
	if err != nil {
		return
	}
	c.cache.Set(key, itemFromResponse(req, resp))

	if resp.MultiResource() {
		mrrtKey, err := cache.Key(req.Authority, req.Resource, req.ClientID, req.UserID, true)
		if err != nil {
			return
		}
		c.cache.Set(mrrtKey, mrrtItemFromResponse(req, resp))
	}
}

// removeItem drops item from the cache by its own key.
func (c *Client) removeItem(ctx context.Context, item cache.Item) {
	if c.cache == nil {
		return
	}
	key, err := item.Key()
	if err != nil {
		return
	}
	c.cache.Remove(key)
	c.log.Log(ctx, logger.Debug, "removed cache entry after failed refresh",
		logger.Field("resource", item.Resource), logger.Field("multi_resource", item.IsMultiResourceRefreshToken))
}

func itemFromResponse(req shared.AuthenticationRequest, resp oauth.TokenResponse) cache.Item {
	return cache.Item{
		Authority:    req.Authority,
		Resource:     req.Resource,
		ClientID:     req.ClientID,
		UserID:       req.UserID,
		AccessToken:  resp.AccessToken,
		RefreshToken: resp.RefreshToken,
		ExpiresOn:    resp.ExpiresOn,
		TenantID:     resp.IDToken.TenantID,
		RawIDToken:   resp.RawIDToken,
		UserInfo:     userInfo(resp.IDToken),
	}
}

// mrrtItemFromResponse builds the resource-agnostic entry: no resource, no
// access token, just the refresh token and who it belongs to.
func mrrtItemFromResponse(req shared.AuthenticationRequest, resp oauth.TokenResponse) cache.Item {
	return cache.Item{
		Authority:                   req.Authority,
		ClientID:                    req.ClientID,
		UserID:                      req.UserID,
		RefreshToken:                resp.RefreshToken,
		ExpiresOn:                   resp.ExpiresOn,
		IsMultiResourceRefreshToken: true,
		TenantID:                    resp.IDToken.TenantID,
		RawIDToken:                  resp.RawIDToken,
		UserInfo:                    userInfo(resp.IDToken),
	}
}

func resultFromResponse(req shared.AuthenticationRequest, resp oauth.TokenResponse) shared.AuthenticationResult {
	return shared.AuthenticationResult{
		Status:                      shared.StatusSucceeded,
		AccessToken:                 resp.AccessToken,
		RefreshToken:                resp.RefreshToken,
		ExpiresOn:                   resp.ExpiresOn,
		IsMultiResourceRefreshToken: resp.MultiResource(),
		TenantID:                    resp.IDToken.TenantID,
		UserInfo:                    userInfo(resp.IDToken),
		IDToken:                     resp.RawIDToken,
		CorrelationID:               req.CorrelationID,
	}
}

func resultFromItem(item cache.Item, correlationID uuid.UUID) shared.AuthenticationResult {
	return shared.AuthenticationResult{
		Status:                      shared.StatusSucceeded,
		AccessToken:                 item.AccessToken,
		RefreshToken:                item.RefreshToken,
		ExpiresOn:                   item.ExpiresOn,
		IsMultiResourceRefreshToken: item.IsMultiResourceRefreshToken,
		TenantID:                    item.TenantID,
		UserInfo:                    item.UserInfo,
		IDToken:                     item.RawIDToken,
		CorrelationID:               correlationID,
	}
}

func failedResult(req shared.AuthenticationRequest) shared.AuthenticationResult {
	return shared.AuthenticationResult{Status: shared.StatusFailed, CorrelationID: req.CorrelationID}
}

func failedFromResponse(req shared.AuthenticationRequest, resp oauth.TokenResponse) shared.AuthenticationResult {
	return shared.AuthenticationResult{
		Status:           shared.StatusFailed,
		ErrorCode:        resp.Error,
		ErrorDescription: resp.ErrorDescription,
		CorrelationID:    req.CorrelationID,
	}
}

func cancelledResult(req shared.AuthenticationRequest) shared.AuthenticationResult {
	return shared.AuthenticationResult{Status: shared.StatusCancelled, CorrelationID: req.CorrelationID}
}

func userInfo(id oauth.IDToken) cache.UserInfo {
	return cache.UserInfo{
		UniqueID:         id.LocalAccountID(),
		DisplayableID:    id.DisplayableID(),
		GivenName:        id.GivenName,
		FamilyName:       id.FamilyName,
		IdentityProvider: id.IdentityProvider,
	}
}

// defaultRedirectURI stands in for callers that did not register one: the
// running executable's name, mirroring mobile platforms defaulting to the
// application's own package identifier.
func defaultRedirectURI() string {
	exe, err := os.Executable()
	if err != nil {
		return "adal"
	}
	return filepath.Base(exe)
}
