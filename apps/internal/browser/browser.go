// Copyright (c) Microsoft Corporation.
// Licensed under the MIT license.

// Package browser hosts interactive flows in the system browser. Starting a
// flow serves the loopback redirect locally, opens the authorize URL, and
// waits in the background; the terminal redirect is reported through a
// Completer rather than returned, because the wait outlives the call that
// started it.
package browser

import (
	"context"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/pkg/browser"

	"github.com/AzureAD/azure-activedirectory-library-for-go/apps/internal/local"
	"github.com/AzureAD/azure-activedirectory-library-for-go/apps/internal/shared"
)

// browserOpenURL allows tests to substitute the system browser launch.
var browserOpenURL = func(authURL string) error {
	return browser.OpenURL(authURL)
}

// DefaultFlowTimeout bounds how long a started flow waits for the user to
// finish signing in before it reports failure.
const DefaultFlowTimeout = 5 * time.Minute

// Completer receives the terminal signal of an interactive flow.
type Completer interface {
	CompleteAuthentication(ctx context.Context, requestID string, result shared.InteractiveResult)
}

// AuthorizeURLBuilder builds the URL that starts req's flow at the authority.
type AuthorizeURLBuilder interface {
	AuthorizationURL(req shared.AuthenticationRequest) (string, error)
}

// Host runs interactive flows in the system browser.
type Host struct {
	builder AuthorizeURLBuilder
	timeout time.Duration

	mu        sync.Mutex
	completer Completer
	// flows maps a running flow's request ID to the cancel func that tears
	// its redirect wait down.
	flows map[string]context.CancelFunc
}

// Option configures a Host.
type Option func(*Host)

// WithFlowTimeout replaces DefaultFlowTimeout.
func WithFlowTimeout(d time.Duration) Option {
	return func(h *Host) {
		h.timeout = d
	}
}

// New is the constructor for Host.
func New(builder AuthorizeURLBuilder, options ...Option) *Host {
	if builder == nil {
		panic("browser.New(): builder cannot be nil")
	}
	h := &Host{
		builder: builder,
		timeout: DefaultFlowTimeout,
		flows:   map[string]context.CancelFunc{},
	}
	for _, o := range options {
		o(h)
	}
	return h
}

// SetCompleter wires the sink completed flows report to. Separate from New
// because the completer usually owns the Host and is constructed after it.
// Start refuses flows until a completer is set.
func (h *Host) SetCompleter(c Completer) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.completer = c
}

// Start opens the system browser on req's authorize URL and begins waiting
// for the terminal redirect. It reports whether the flow is now running; a
// false return means nothing was started and no completion will arrive.
func (h *Host) Start(req shared.AuthenticationRequest) bool {
	h.mu.Lock()
	completer := h.completer
	h.mu.Unlock()
	if completer == nil {
		return false
	}

	port, err := loopbackPort(req.RedirectURI)
	if err != nil {
		return false
	}
	srv, err := local.New(port, nil, nil)
	if err != nil {
		return false
	}
	authURL, err := h.builder.AuthorizationURL(req)
	if err != nil {
		srv.Shutdown()
		return false
	}
	if err := browserOpenURL(authURL); err != nil {
		srv.Shutdown()
		return false
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
	h.mu.Lock()
	h.flows[req.RequestID] = cancel
	h.mu.Unlock()

	go h.wait(ctx, req.RequestID, srv)
	return true
}

// SendCancel acknowledges a cancellation when requestID still has a live
// flow, tearing the flow down. The caller delivers the cancellation to its
// callback; the flow's own late result is dropped.
func (h *Host) SendCancel(requestID string) bool {
	h.mu.Lock()
	cancel, ok := h.flows[requestID]
	if ok {
		delete(h.flows, requestID)
	}
	h.mu.Unlock()

	if !ok {
		return false
	}
	cancel()
	return true
}

func (h *Host) wait(ctx context.Context, requestID string, srv *local.Server) {
	res := srv.Result(ctx)
	srv.Shutdown()

	h.mu.Lock()
	cancel, live := h.flows[requestID]
	delete(h.flows, requestID)
	completer := h.completer
	h.mu.Unlock()
	if !live {
		// SendCancel claimed the flow; the cancellation is its terminal
		// signal, not this result.
		return
	}
	cancel()

	if res.Err != nil {
		code := "redirect_failed"
		if ctx.Err() != nil {
			code = "timeout"
		}
		completer.CompleteAuthentication(context.Background(), requestID, shared.InteractiveResult{
			Kind:             shared.InteractiveError,
			ErrorCode:        code,
			ErrorDescription: res.Err.Error(),
		})
		return
	}
	completer.CompleteAuthentication(context.Background(), requestID, shared.InteractiveResult{
		Kind:        shared.InteractiveCompleted,
		RedirectURL: res.URL,
	})
}

// loopbackPort extracts the explicit port of a loopback redirect URI. The
// port is required: rewriting the URI to a free port would make it differ
// from what the authority has registered for the client.
func loopbackPort(redirectURI string) (int, error) {
	u, err := url.Parse(redirectURI)
	if err != nil {
		return 0, err
	}
	if u.Scheme != "http" {
		return 0, errLoopback(redirectURI)
	}
	switch u.Hostname() {
	case "localhost", "127.0.0.1", "::1":
	default:
		return 0, errLoopback(redirectURI)
	}
	port, err := strconv.Atoi(u.Port())
	if err != nil || port < 1 {
		return 0, errLoopback(redirectURI)
	}
	return port, nil
}

type errLoopback string

func (e errLoopback) Error() string {
	return "redirect URI " + strconv.Quote(string(e)) + " is not a loopback URL with an explicit port"
}
