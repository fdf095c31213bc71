// Copyright (c) Microsoft Corporation.
// Licensed under the MIT license.

/*
Package oauth speaks the AAD v1 wire protocol: refreshing tokens, redeeming
authorization codes carried by interactive redirects, and building the
authorize URLs that start interactive flows.

These calls are of type "application/x-www-form-urlencoded". This means we
use url.Values to represent arguments and then encode them into the POST
body message. We receive JSON in return for the requests.
*/
package oauth

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/uuid"

	"github.com/AzureAD/azure-activedirectory-library-for-go/apps/errors"
	"github.com/AzureAD/azure-activedirectory-library-for-go/apps/internal/comm"
	"github.com/AzureAD/azure-activedirectory-library-for-go/apps/internal/shared"
)

const (
	grantType    = "grant_type"
	clientID     = "client_id"
	redirectURI  = "redirect_uri"
	refreshToken = "refresh_token"
	authCode     = "authorization_code"
	resource     = "resource"
)

type urlFormCaller interface {
	URLFormCall(ctx context.Context, endpoint string, headers http.Header, qv url.Values, resp interface{}) error
}

// Client represents the REST calls to the authority's OAuth endpoints.
type Client struct {
	// Comm provides the HTTP transport client.
	Comm urlFormCaller
}

// New is the constructor for Client.
func New(httpClient comm.HTTPClient) *Client {
	return &Client{Comm: comm.New(httpClient)}
}

// RefreshToken redeems a refresh token for a fresh token response. Authority
// rejections come back as a TokenResponse with its Error set; a Go error
// means the exchange itself could not be carried out.
func (c *Client) RefreshToken(ctx context.Context, req shared.AuthenticationRequest, token string) (TokenResponse, error) {
	qv := url.Values{}
	qv.Set(grantType, refreshToken)
	qv.Set(refreshToken, token)
	qv.Set(clientID, req.ClientID)
	if req.Resource != "" {
		qv.Set(resource, req.Resource)
	}

	return c.token(ctx, req, qv)
}

// RedeemAuthorizationResponse exchanges the authorization code carried by an
// interactive flow's terminal redirect URL for tokens.
func (c *Client) RedeemAuthorizationResponse(ctx context.Context, req shared.AuthenticationRequest, redirectURL string) (TokenResponse, error) {
	u, err := url.Parse(redirectURL)
	if err != nil {
		return TokenResponse{}, errors.Wrap(errors.CodeProtocol, "redirect URL could not be parsed", err)
	}
	params := u.Query()

	if e := params.Get("error"); e != "" {
		return TokenResponse{}, errors.Server(e, params.Get("error_description"), params.Get("correlation_id"))
	}
	if err := verifyState(req, params.Get("state")); err != nil {
		return TokenResponse{}, err
	}
	code := params.Get("code")
	if code == "" {
		return TokenResponse{}, errors.New(errors.CodeProtocol, "redirect did not carry an authorization code")
	}

	qv := url.Values{}
	qv.Set(grantType, authCode)
	qv.Set("code", code)
	qv.Set(clientID, req.ClientID)
	qv.Set(redirectURI, req.RedirectURI)

	return c.token(ctx, req, qv)
}

// AuthorizationURL returns the browser URL that starts the interactive flow
// for req.
func (c *Client) AuthorizationURL(req shared.AuthenticationRequest) (string, error) {
	if req.RedirectURI == "" {
		return "", errors.New(errors.CodeInvalidArgument, "authorization URL needs a redirect URI")
	}

	qv := url.Values{}
	qv.Set("response_type", "code")
	qv.Set(clientID, req.ClientID)
	qv.Set(resource, req.Resource)
	qv.Set(redirectURI, req.RedirectURI)
	qv.Set("state", encodeState(req))
	if req.UserID != "" {
		qv.Set("login_hint", req.UserID)
	}
	if req.Prompt == shared.PromptAlways {
		qv.Set("prompt", "login")
	}
	if req.CorrelationID != uuid.Nil {
		qv.Set("client-request-id", req.CorrelationID.String())
	}

	authURL := fmt.Sprintf("%s?%s", authorizeEndpoint(req.Authority), qv.Encode())
	if extra := strings.TrimPrefix(req.ExtraQueryParams, "&"); extra != "" {
		authURL = authURL + "&" + extra
	}
	return authURL, nil
}

// token posts qv to the authority's token endpoint and normalizes the reply.
func (c *Client) token(ctx context.Context, req shared.AuthenticationRequest, qv url.Values) (TokenResponse, error) {
	headers := http.Header{}
	if req.CorrelationID != uuid.Nil {
		headers.Set("client-request-id", req.CorrelationID.String())
	}

	payload := tokenJSONPayload{}
	if err := c.Comm.URLFormCall(ctx, tokenEndpoint(req.Authority), headers, qv, &payload); err != nil {
		// The authority reports protocol rejections as a 400/401 carrying a
		// JSON error payload. Those become a TokenResponse with Error set;
		// Go errors stay reserved for transport-level trouble.
		if rejected, ok := errorPayload(err); ok {
			return newTokenResponse(rejected), nil
		}
		return TokenResponse{}, err
	}
	return newTokenResponse(payload), nil
}

// errorPayload extracts the authority's error payload out of a failed call,
// when there is one.
func errorPayload(err error) (tokenJSONPayload, bool) {
	callErr, ok := err.(errors.CallErr)
	if !ok || callErr.Resp == nil || callErr.Resp.Body == nil {
		return tokenJSONPayload{}, false
	}
	switch callErr.Resp.StatusCode {
	case http.StatusBadRequest, http.StatusUnauthorized:
	default:
		return tokenJSONPayload{}, false
	}

	body, readErr := io.ReadAll(callErr.Resp.Body)
	// The body stays readable for anyone printing the error verbosely.
	callErr.Resp.Body = io.NopCloser(bytes.NewBuffer(body))
	if readErr != nil {
		return tokenJSONPayload{}, false
	}

	payload := tokenJSONPayload{}
	if jsonErr := json.Unmarshal(body, &payload); jsonErr != nil || payload.Error == "" {
		return tokenJSONPayload{}, false
	}
	return payload, true
}

// encodeState captures the request coordinates that must round-trip through
// the authorize redirect unchanged.
func encodeState(req shared.AuthenticationRequest) string {
	v := url.Values{}
	v.Set("a", req.Authority)
	v.Set("r", req.Resource)
	return base64.RawURLEncoding.EncodeToString([]byte(v.Encode()))
}

// verifyState checks that the state echoed by the authority names the same
// authority and resource the flow was started with.
func verifyState(req shared.AuthenticationRequest, state string) error {
	if state == "" {
		return errors.New(errors.CodeProtocol, "authorization response carries no state")
	}
	decoded, err := base64.RawURLEncoding.DecodeString(state)
	if err != nil {
		return errors.Wrap(errors.CodeProtocol, "authorization state could not be decoded", err)
	}
	v, err := url.ParseQuery(string(decoded))
	if err != nil {
		return errors.Wrap(errors.CodeProtocol, "authorization state could not be parsed", err)
	}
	if v.Get("a") != req.Authority || v.Get("r") != req.Resource {
		return errors.New(errors.CodeProtocol, "authorization state does not match the request")
	}
	return nil
}

func tokenEndpoint(authority string) string {
	return strings.TrimSuffix(authority, "/") + "/oauth2/token"
}

func authorizeEndpoint(authority string) string {
	return strings.TrimSuffix(authority, "/") + "/oauth2/authorize"
}
