// Copyright (c) Microsoft Corporation.
// Licensed under the MIT license.

// Package discovery validates authorities against the AAD instance discovery
// service. Hosts on the trusted list are accepted without a network call;
// anything else is checked by asking a trusted instance whether it knows the
// authority's authorize endpoint.
package discovery

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/google/uuid"

	"github.com/AzureAD/azure-activedirectory-library-for-go/apps/errors"
	"github.com/AzureAD/azure-activedirectory-library-for-go/apps/internal/authority"
	"github.com/AzureAD/azure-activedirectory-library-for-go/apps/internal/comm"
)

// discoveryHost answers instance discovery queries for hosts that are not on
// the trusted list.
const discoveryHost = "login.windows.net"

var trustedHosts = map[string]bool{
	"login.windows.net":            true, // Microsoft Azure Worldwide
	"login.chinacloudapi.cn":       true, // Microsoft Azure China
	"login.microsoftonline.de":     true, // Microsoft Azure Blackforest
	"login-us.microsoftonline.com": true, // Microsoft Azure US Government - Legacy
	"login.microsoftonline.us":     true, // Microsoft Azure US Government
	"login.microsoftonline.com":    true, // Microsoft Azure Worldwide
}

// IsTrusted reports whether host is a well-known authority host.
func IsTrusted(host string) bool {
	return trustedHosts[host]
}

// InstanceDiscoveryResponse is the reply to an instance discovery query. A
// populated TenantDiscoveryEndpoint means the queried authority is known.
type InstanceDiscoveryResponse struct {
	TenantDiscoveryEndpoint string `json:"tenant_discovery_endpoint"`
}

type jsonCaller interface {
	JSONCall(ctx context.Context, endpoint string, headers http.Header, qv url.Values, body, resp interface{}) error
}

// Client queries the instance discovery service.
type Client struct {
	// Comm provides the HTTP transport client.
	Comm jsonCaller
}

// New is the constructor for Client.
func New(httpClient comm.HTTPClient) *Client {
	return &Client{Comm: comm.New(httpClient)}
}

// Validate reports whether info names a recognized authority instance. A
// (false, nil) return means the service answered and did not recognize it; an
// error means the question could not be asked.
func (c *Client) Validate(ctx context.Context, info authority.Info, correlationID uuid.UUID) (bool, error) {
	if IsTrusted(info.Host) {
		return true, nil
	}

	qv := url.Values{}
	qv.Set("api-version", "1.0")
	qv.Set("authorization_endpoint", info.AuthorizeEndpoint())

	headers := http.Header{}
	if correlationID != uuid.Nil {
		headers.Set("client-request-id", correlationID.String())
	}

	resp := InstanceDiscoveryResponse{}
	endpoint := fmt.Sprintf("https://%s/common/discovery/instance", discoveryHost)
	if err := c.Comm.JSONCall(ctx, endpoint, headers, qv, nil, &resp); err != nil {
		// The service reports "I don't know this authority" as a 400, which
		// is an answer, not a failure.
		var callErr errors.CallErr
		if errors.As(err, &callErr) && callErr.Resp != nil && callErr.Resp.StatusCode == http.StatusBadRequest {
			return false, nil
		}
		return false, err
	}
	return resp.TenantDiscoveryEndpoint != "", nil
}
