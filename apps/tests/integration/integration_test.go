// Copyright (c) Microsoft Corporation.
// Licensed under the MIT license.

// Package integration runs the library against live Azure AD endpoints.
// The tests are driven entirely by environment variables and skip
// themselves when the variables for a scenario are not set:
//
//	adalClientId      client (application) id registered in the test tenant
//	adalRefreshToken  a refresh token for that client, used to bootstrap
//	adalAuthority     authority URL, defaults to the common endpoint
//	adalUserId        user hint the refresh token belongs to (optional)
//	adalResource      resource to request tokens for, defaults to ARM
//	adalVaultURL      Key Vault to read through the azcore bridge
//	adalVaultSecret   name of a secret in that vault
package integration

import (
	"context"
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/security/keyvault/azsecrets"

	"github.com/AzureAD/azure-activedirectory-library-for-go/apps/adal"
	"github.com/AzureAD/azure-activedirectory-library-for-go/apps/cache"
	"github.com/AzureAD/azure-activedirectory-library-for-go/apps/errors"
)

const (
	defaultAuthority = "https://login.microsoftonline.com/common"
	defaultResource  = "https://management.core.windows.net/"
)

func envOrSkip(t *testing.T, name string) string {
	v := os.Getenv(name)
	if v == "" {
		t.Skipf("set %s to run this test", name)
	}
	return v
}

func testAuthority() string {
	authority := os.Getenv("adalAuthority")
	if authority == "" {
		return defaultAuthority
	}
	// Cache keys use the canonical form.
	return strings.ToLower(strings.TrimRight(authority, "/"))
}

func testResource() string {
	if r := os.Getenv("adalResource"); r != "" {
		return r
	}
	return defaultResource
}

func newTestClient(t *testing.T) *adal.Client {
	client, err := adal.New(testAuthority(), envOrSkip(t, "adalClientId"))
	if err != nil {
		t.Fatalf("newTestClient: adal.New() error: %s", errors.Verbose(err))
	}
	return client
}

// seedRefreshToken primes the client's cache with the bootstrap refresh
// token as a multi-resource entry, the state a device is in after its
// first interactive sign-in.
func seedRefreshToken(t *testing.T, client *adal.Client, userID, refreshToken string) {
	item := cache.Item{
		Authority:                   client.Authority(),
		ClientID:                    client.ClientID(),
		UserID:                      userID,
		RefreshToken:                refreshToken,
		IsMultiResourceRefreshToken: true,
	}
	key, err := item.Key()
	if err != nil {
		t.Fatalf("seedRefreshToken: item.Key() error: %s", errors.Verbose(err))
	}
	client.Cache().Set(key, item)
}

func acquireSilent(ctx context.Context, client *adal.Client, resource, userID string) (adal.AuthenticationResult, error) {
	type outcome struct {
		result adal.AuthenticationResult
		err    error
	}
	done := make(chan outcome, 1)
	err := client.AcquireToken(ctx, resource, func(result adal.AuthenticationResult, err error) {
		done <- outcome{result, err}
	}, adal.WithUserID(userID), adal.WithPrompt(adal.PromptNever))
	if err != nil {
		return adal.AuthenticationResult{}, err
	}
	select {
	case o := <-done:
		return o.result, o.err
	case <-time.After(30 * time.Second):
		return adal.AuthenticationResult{}, fmt.Errorf("no result after 30s")
	}
}

func TestAcquireTokenByRefreshTokenLive(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	refreshToken := envOrSkip(t, "adalRefreshToken")
	client := newTestClient(t)
	resource := testResource()

	type outcome struct {
		result adal.AuthenticationResult
		err    error
	}
	done := make(chan outcome, 1)
	err := client.AcquireTokenByRefreshToken(context.Background(), refreshToken, resource, func(result adal.AuthenticationResult, err error) {
		done <- outcome{result, err}
	})
	if err != nil {
		t.Fatalf("TestAcquireTokenByRefreshTokenLive: AcquireTokenByRefreshToken() error: %s", errors.Verbose(err))
	}
	o := <-done
	if o.err != nil {
		t.Fatalf("TestAcquireTokenByRefreshTokenLive: got err == %s, want err == nil", errors.Verbose(o.err))
	}
	if o.result.AccessToken == "" {
		t.Fatalf("TestAcquireTokenByRefreshTokenLive: got AccessToken == '', want AccessToken == non-empty string")
	}
	if !o.result.ExpiresOn.IsZero() && time.Until(o.result.ExpiresOn) <= 0 {
		t.Fatalf("TestAcquireTokenByRefreshTokenLive: got ExpiresOn == %s, want a time in the future", o.result.ExpiresOn)
	}
}

func TestSilentRefreshFromSeededCache(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	refreshToken := envOrSkip(t, "adalRefreshToken")
	userID := os.Getenv("adalUserId")
	client := newTestClient(t)
	resource := testResource()
	seedRefreshToken(t, client, userID, refreshToken)

	result, err := acquireSilent(context.Background(), client, resource, userID)
	if err != nil {
		t.Fatalf("TestSilentRefreshFromSeededCache: got err == %s, want err == nil", errors.Verbose(err))
	}
	if result.AccessToken == "" {
		t.Fatalf("TestSilentRefreshFromSeededCache: got AccessToken == '', want AccessToken == non-empty string")
	}

	// The refresh writes the token back under the exact key, so the second
	// acquisition is served from the cache.
	key, err := cache.Key(client.Authority(), resource, client.ClientID(), userID, false)
	if err != nil {
		t.Fatalf("TestSilentRefreshFromSeededCache: cache.Key() error: %s", errors.Verbose(err))
	}
	if !client.Cache().Contains(key) {
		t.Fatalf("TestSilentRefreshFromSeededCache: got no cache entry for %q, want the refreshed token cached", resource)
	}
	second, err := acquireSilent(context.Background(), client, resource, userID)
	if err != nil {
		t.Fatalf("TestSilentRefreshFromSeededCache: second acquisition: got err == %s, want err == nil", errors.Verbose(err))
	}
	if second.AccessToken != result.AccessToken {
		t.Fatalf("TestSilentRefreshFromSeededCache: second acquisition returned a different token, want the cached one")
	}
}

// adalCredential bridges a Client to the azcore.TokenCredential interface so
// track-2 SDK clients can authenticate through this library.
type adalCredential struct {
	client *adal.Client
	userID string
}

func (c *adalCredential) GetToken(ctx context.Context, options policy.TokenRequestOptions) (azcore.AccessToken, error) {
	if len(options.Scopes) == 0 {
		return azcore.AccessToken{}, fmt.Errorf("no scopes requested")
	}
	// v1 endpoints take a resource where v2 takes a scope.
	resource := strings.TrimSuffix(options.Scopes[0], "/.default")
	result, err := acquireSilent(ctx, c.client, resource, c.userID)
	if err != nil {
		return azcore.AccessToken{}, err
	}
	return azcore.AccessToken{Token: result.AccessToken, ExpiresOn: result.ExpiresOn}, nil
}

func TestKeyVaultSecretThroughCredentialBridge(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	refreshToken := envOrSkip(t, "adalRefreshToken")
	vaultURL := envOrSkip(t, "adalVaultURL")
	secretName := envOrSkip(t, "adalVaultSecret")
	userID := os.Getenv("adalUserId")
	client := newTestClient(t)
	seedRefreshToken(t, client, userID, refreshToken)

	secrets, err := azsecrets.NewClient(vaultURL, &adalCredential{client: client, userID: userID}, nil)
	if err != nil {
		t.Fatalf("TestKeyVaultSecretThroughCredentialBridge: azsecrets.NewClient() error: %s", err)
	}
	resp, err := secrets.GetSecret(context.Background(), secretName, "", nil)
	if err != nil {
		t.Fatalf("TestKeyVaultSecretThroughCredentialBridge: got err == %s, want err == nil", err)
	}
	if resp.Value == nil || *resp.Value == "" {
		t.Fatalf("TestKeyVaultSecretThroughCredentialBridge: got an empty secret value, want non-empty")
	}
}
