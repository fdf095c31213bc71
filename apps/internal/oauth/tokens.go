// Copyright (c) Microsoft Corporation.
// Licensed under the MIT license.

package oauth

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// OAuthResponseBase is embedded in all server responses and carries the
// error payload when the authority rejected the call but the transport
// succeeded.
type OAuthResponseBase struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
	ErrorCodes       []int  `json:"error_codes,omitempty"`
	CorrelationID    string `json:"correlation_id,omitempty"`
}

// secondsValue decodes a count of seconds that arrives as a JSON number or a
// quoted string, depending on the authority's endpoint generation.
type secondsValue int64

func (s *secondsValue) UnmarshalJSON(b []byte) error {
	str := strings.Trim(string(b), `"`)
	if str == "" || str == "null" {
		*s = 0
		return nil
	}
	i, err := strconv.ParseInt(str, 10, 64)
	if err != nil {
		return fmt.Errorf("%q is not a count of seconds: %w", str, err)
	}
	*s = secondsValue(i)
	return nil
}

// tokenJSONPayload is the raw v1 token endpoint response.
type tokenJSONPayload struct {
	OAuthResponseBase

	AccessToken  string       `json:"access_token"`
	RefreshToken string       `json:"refresh_token"`
	Resource     string       `json:"resource"`
	ExpiresIn    secondsValue `json:"expires_in"`
	ExpiresOn    secondsValue `json:"expires_on"`
	IDToken      string       `json:"id_token"`
}

// IDToken consists of the v1 id_token claims the library consumes.
// https://docs.microsoft.com/azure/active-directory/develop/id-tokens .
type IDToken struct {
	UPN              string
	Email            string
	Subject          string
	ObjectID         string
	TenantID         string
	GivenName        string
	FamilyName       string
	IdentityProvider string
}

// IsZero indicates if the IDToken is the zero value.
func (i IDToken) IsZero() bool {
	return i == IDToken{}
}

// LocalAccountID extracts the account's local ID from the token.
func (i IDToken) LocalAccountID() string {
	if i.ObjectID != "" {
		return i.ObjectID
	}
	return i.Subject
}

// DisplayableID extracts the name the account shows to users.
func (i IDToken) DisplayableID() string {
	if i.UPN != "" {
		return i.UPN
	}
	return i.Email
}

type idTokenClaims struct {
	jwt.RegisteredClaims

	UPN              string `json:"upn"`
	Email            string `json:"email"`
	ObjectID         string `json:"oid"`
	TenantID         string `json:"tid"`
	GivenName        string `json:"given_name"`
	FamilyName       string `json:"family_name"`
	IdentityProvider string `json:"idp"`
}

// NewIDToken creates an IDToken instance from a JWT. The token arrives over
// TLS from the authority, so its signature is not validated here.
func NewIDToken(raw string) (IDToken, error) {
	claims := &idTokenClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(raw, claims); err != nil {
		return IDToken{}, fmt.Errorf("id token returned from server is invalid: %w", err)
	}
	return IDToken{
		UPN:              claims.UPN,
		Email:            claims.Email,
		Subject:          claims.Subject,
		ObjectID:         claims.ObjectID,
		TenantID:         claims.TenantID,
		GivenName:        claims.GivenName,
		FamilyName:       claims.FamilyName,
		IdentityProvider: claims.IdentityProvider,
	}, nil
}

// TokenResponse is the normalized information a token endpoint returned. An
// authority-rejected exchange is a TokenResponse whose Error is set, not a
// Go error: the transport worked, the protocol said no.
type TokenResponse struct {
	OAuthResponseBase

	AccessToken  string
	RefreshToken string
	Resource     string
	// ExpiresOn is zero when the authority did not report a lifetime.
	ExpiresOn time.Time

	IDToken    IDToken
	RawIDToken string
}

// HasAccessToken checks if the TokenResponse has an access token.
func (tr TokenResponse) HasAccessToken() bool {
	return len(tr.AccessToken) > 0
}

// MultiResource reports whether the refresh token in the response can be
// redeemed against any resource. The authority echoes the resource only for
// such tokens.
func (tr TokenResponse) MultiResource() bool {
	return tr.RefreshToken != "" && tr.Resource != ""
}

// newTokenResponse normalizes the raw payload. Error payloads flow through
// in OAuthResponseBase rather than becoming Go errors; callers decide what a
// rejection means for their flow.
func newTokenResponse(payload tokenJSONPayload) TokenResponse {
	var expiresOn time.Time
	switch {
	case payload.ExpiresIn > 0:
		expiresOn = time.Now().Add(time.Duration(payload.ExpiresIn) * time.Second)
	case payload.ExpiresOn > 0:
		expiresOn = time.Unix(int64(payload.ExpiresOn), 0)
	}

	// ID tokens aren't always returned, and a malformed one is not worth
	// failing the whole acquisition over.
	idToken, _ := NewIDToken(payload.IDToken)

	return TokenResponse{
		OAuthResponseBase: payload.OAuthResponseBase,
		AccessToken:       payload.AccessToken,
		RefreshToken:      payload.RefreshToken,
		Resource:          payload.Resource,
		ExpiresOn:         expiresOn,
		IDToken:           idToken,
		RawIDToken:        payload.IDToken,
	}
}
