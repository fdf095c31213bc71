// Copyright (c) Microsoft Corporation.
// Licensed under the MIT license.

// Package authority parses authority URLs into their canonical form and
// derives the OAuth endpoints from them.
package authority

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/AzureAD/azure-activedirectory-library-for-go/apps/errors"
)

// Info holds the canonical parts of an authority URL.
type Info struct {
	// Host is the instance host, such as login.microsoftonline.com.
	Host string
	// Tenant is the first path segment, a tenant GUID, domain or "common".
	Tenant string
	// CanonicalURI is https://{host}/{tenant}, lower case, no trailing slash.
	CanonicalURI string
}

// NewInfo canonicalizes authorityURI. The authority must be an https URL
// whose first path segment names the tenant; anything after that segment is
// dropped. The whole URL is lower cased.
func NewInfo(authorityURI string) (Info, error) {
	u, err := url.Parse(strings.ToLower(strings.TrimSpace(authorityURI)))
	if err != nil {
		return Info{}, errors.Wrap(errors.CodeAuthorityURL, fmt.Sprintf("couldn't parse authority url %q", authorityURI), err)
	}
	switch {
	case u.Scheme != "https":
		return Info{}, errors.Newf(errors.CodeAuthorityURL, "authority url %q must use https", authorityURI)
	case u.Host == "":
		return Info{}, errors.Newf(errors.CodeAuthorityURL, "authority url %q has no host", authorityURI)
	case u.RawQuery != "" || u.Fragment != "":
		return Info{}, errors.Newf(errors.CodeAuthorityURL, "authority url %q must not carry a query or fragment", authorityURI)
	}
	segments := strings.Split(strings.Trim(u.EscapedPath(), "/"), "/")
	if len(segments) == 0 || segments[0] == "" {
		return Info{}, errors.Newf(errors.CodeAuthorityURL, "authority url %q must name a tenant in its path", authorityURI)
	}
	return Info{
		Host:         u.Host,
		Tenant:       segments[0],
		CanonicalURI: fmt.Sprintf("https://%s/%s", u.Host, segments[0]),
	}, nil
}

// AuthorizeEndpoint is the v1 endpoint that starts an authorization code
// flow for this authority.
func (i Info) AuthorizeEndpoint() string {
	return i.CanonicalURI + "/oauth2/authorize"
}

// TokenEndpoint is the v1 endpoint that redeems grants for tokens.
func (i Info) TokenEndpoint() string {
	return i.CanonicalURI + "/oauth2/token"
}
