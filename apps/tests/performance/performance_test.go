// Copyright (c) Microsoft Corporation.
// Licensed under the MIT license.

package performance

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"testing"
	"time"

	"github.com/montanaflynn/stats"

	"github.com/AzureAD/azure-activedirectory-library-for-go/apps/cache"
	"github.com/AzureAD/azure-activedirectory-library-for-go/apps/internal/base"
	"github.com/AzureAD/azure-activedirectory-library-for-go/apps/internal/oauth"
	"github.com/AzureAD/azure-activedirectory-library-for-go/apps/internal/pending"
	"github.com/AzureAD/azure-activedirectory-library-for-go/apps/internal/shared"
)

const (
	benchAuthority = "https://login.microsoftonline.com/fake_tenant"
	benchClientID  = "fake_client_id"
)

// wireProtocol fails every exchange. The cache-hit benchmark must never
// reach the wire; a query that does shows up as a failed acquisition.
type wireProtocol struct{}

func (wireProtocol) RefreshToken(ctx context.Context, req shared.AuthenticationRequest, refreshToken string) (oauth.TokenResponse, error) {
	return oauth.TokenResponse{}, fmt.Errorf("token endpoint reached during a cache benchmark")
}

func (wireProtocol) RedeemAuthorizationResponse(ctx context.Context, req shared.AuthenticationRequest, redirectURL string) (oauth.TokenResponse, error) {
	return oauth.TokenResponse{}, fmt.Errorf("token endpoint reached during a cache benchmark")
}

func (wireProtocol) AuthorizationURL(req shared.AuthenticationRequest) (string, error) {
	return "", fmt.Errorf("authorize endpoint reached during a cache benchmark")
}

func fakeClient(store cache.Store) (*base.Client, error) {
	// we use a base.Client so we can provide a fake protocol client
	return base.New(base.Config{
		Authority: benchAuthority,
		ClientID:  benchClientID,
		Cache:     store,
		Registry:  pending.NewRegistry(),
		Protocol:  wireProtocol{},
	})
}

func populateCache(users, tokens int, store cache.Store) {
	expiresOn := time.Now().Add(8760 * time.Hour)
	for user := 0; user < users; user++ {
		for token := 0; token < tokens; token++ {
			item := cache.Item{
				Authority:    benchAuthority,
				Resource:     fmt.Sprintf("resource%d", token),
				ClientID:     benchClientID,
				UserID:       fmt.Sprintf("user%d", user),
				AccessToken:  "fake_token",
				RefreshToken: "fake_refresh",
				ExpiresOn:    expiresOn,
			}
			key, err := item.Key()
			if err != nil {
				panic(err)
			}
			store.Set(key, item)
		}
	}
}

func queryCache(client *base.Client, users, tokens int) time.Duration {
	done := make(chan error, 1)
	req := shared.AuthenticationRequest{
		Resource: fmt.Sprintf("resource%d", rand.Intn(tokens)),
		UserID:   fmt.Sprintf("user%d", rand.Intn(users)),
		Prompt:   shared.PromptNever,
	}

	start := time.Now()
	err := client.AcquireToken(context.Background(), req, func(result shared.AuthenticationResult, err error) {
		if err == nil && result.AccessToken == "" {
			err = fmt.Errorf("empty access token for %s/%s", req.UserID, req.Resource)
		}
		done <- err
	})
	if err != nil {
		panic(err)
	}
	if err := <-done; err != nil {
		panic(err)
	}
	return time.Since(start)
}

func benchmarkCacheHits(client *base.Client, users, tokens int) []float64 {
	duration := []float64{}
	for start := time.Now(); time.Since(start) < time.Minute*1; {
		duration = append(duration, float64(queryCache(client, users, tokens)))
	}
	return duration
}

func calculateStats(users, tokens int, duration []float64) {
	fmt.Printf("No of users: %d, No of tokens per user: %d \n", users, tokens)

	mean, err := stats.Mean(duration)
	if err != nil {
		panic(err)
	}
	fmt.Println("Mean: ", mean/float64(time.Microsecond))

	median, err := stats.Median(duration)
	if err != nil {
		panic(err)
	}
	fmt.Println("Median: ", median/float64(time.Microsecond))

	stdDev, err := stats.StandardDeviation(duration)
	if err != nil {
		panic(err)
	}
	fmt.Println("Standard Deviation: ", stdDev/float64(time.Microsecond))

	min, err := stats.Min(duration)
	if err != nil {
		panic(err)
	}
	fmt.Println("Min Time: ", min/float64(time.Microsecond))

	max, err := stats.Max(duration)
	if err != nil {
		panic(err)
	}
	fmt.Println("Max Time: ", max/float64(time.Microsecond))
}

func TestCacheHitPerformance(t *testing.T) {
	if os.Getenv("CI") != "" {
		t.Skip("Skipping testing in CI environment")
	}
	tests := []struct {
		Users  int
		Tokens int
	}{
		{1, 10000},
		{1, 100000},
		{100, 10000},
	}

	for _, test := range tests {
		store := cache.NewMemoryStore()
		populateCache(test.Users, test.Tokens, store)
		client, err := fakeClient(store)
		if err != nil {
			panic(err)
		}
		duration := benchmarkCacheHits(client, test.Users, test.Tokens)
		calculateStats(test.Users, test.Tokens, duration)
	}
}
