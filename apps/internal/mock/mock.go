// Copyright (c) Microsoft Corporation.
// Licensed under the MIT license.

// Package mock provides a canned-response HTTP client and builders for the
// wire bodies an AAD v1 authority returns.
package mock

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
)

type response struct {
	body     []byte
	callback func(*http.Request)
	code     int
	headers  http.Header
}

type responseOption interface {
	apply(*response)
}

type respOpt func(*response)

func (fn respOpt) apply(r *response) {
	fn(r)
}

// WithBody sets the HTTP response's body to the specified value.
func WithBody(b []byte) responseOption {
	return respOpt(func(r *response) {
		r.body = b
	})
}

// WithCallback sets a callback to invoke before returning the response.
func WithCallback(callback func(*http.Request)) responseOption {
	return respOpt(func(r *response) {
		r.callback = callback
	})
}

// WithHTTPHeader sets the HTTP headers of the response to the specified value.
func WithHTTPHeader(header http.Header) responseOption {
	return respOpt(func(r *response) {
		r.headers = header
	})
}

// WithHTTPStatusCode sets the HTTP statusCode of response to the specified value.
func WithHTTPStatusCode(statusCode int) responseOption {
	return respOpt(func(r *response) {
		r.code = statusCode
	})
}

// Client is a mock HTTP client that returns a sequence of responses. Use AppendResponse to specify the sequence.
type Client struct {
	mu   sync.Mutex
	resp []response
}

func NewClient() *Client {
	return &Client{}
}

func (c *Client) AppendResponse(opts ...responseOption) {
	c.mu.Lock()
	defer c.mu.Unlock()

	r := response{code: http.StatusOK, headers: http.Header{}}
	for _, o := range opts {
		o.apply(&r)
	}
	c.resp = append(c.resp, r)
}

func (c *Client) Do(req *http.Request) (*http.Response, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.resp) == 0 {
		panic(fmt.Sprintf(`no response for "%s"`, req.URL.String()))
	}
	resp := c.resp[0]
	c.resp = c.resp[1:]
	if resp.callback != nil {
		resp.callback(req)
	}
	res := http.Response{Header: resp.headers, StatusCode: resp.code}
	res.Body = io.NopCloser(bytes.NewReader(resp.body))
	return &res, nil
}

// CloseIdleConnections implements the comm.HTTPClient interface
func (*Client) CloseIdleConnections() {}

// GetTokenBody builds a v1 token endpoint success reply. The authority sends
// expires_in as a quoted string on this endpoint generation, so the mock
// does too.
func GetTokenBody(accessToken, idToken, refreshToken, resource string, expiresIn int) []byte {
	body := fmt.Sprintf(`{"access_token": "%s","expires_in": "%d","token_type": "Bearer"`, accessToken, expiresIn)

	if resource != "" {
		body += fmt.Sprintf(`, "resource": "%s"`, resource)
	}
	if idToken != "" {
		body += fmt.Sprintf(`, "id_token": "%s"`, idToken)
	}
	if refreshToken != "" {
		body += fmt.Sprintf(`, "refresh_token": "%s"`, refreshToken)
	}

	body += "}"

	return []byte(body)
}

// GetErrorBody builds a v1 token endpoint rejection reply.
func GetErrorBody(errorCode, description, correlationID string) []byte {
	return []byte(fmt.Sprintf(
		`{"error": "%s","error_description": "%s","error_codes": [50000],"correlation_id": "%s"}`,
		errorCode, description, correlationID,
	))
}

// GetIDToken builds a parsable, unsigned v1 id_token for tenant and upn.
func GetIDToken(tenant, upn string) string {
	header, err := json.Marshal(map[string]string{"alg": "RS256", "typ": "JWT"})
	if err != nil {
		panic(err)
	}
	claims, err := json.Marshal(map[string]string{
		"tid":         tenant,
		"upn":         upn,
		"oid":         "objectId-" + upn,
		"sub":         "sub-" + upn,
		"given_name":  "First",
		"family_name": "Last",
		"idp":         "https://sts.windows.net/" + tenant + "/",
	})
	if err != nil {
		panic(err)
	}
	enc := base64.RawURLEncoding
	return fmt.Sprintf("%s.%s.signature", enc.EncodeToString(header), enc.EncodeToString(claims))
}

// GetInstanceDiscoveryBody builds the instance discovery reply recognizing
// https://host/tenant as a known authority.
func GetInstanceDiscoveryBody(host, tenant string) []byte {
	return []byte(fmt.Sprintf(
		`{"tenant_discovery_endpoint": "https://%s/%s/.well-known/openid-configuration"}`,
		host, tenant,
	))
}
