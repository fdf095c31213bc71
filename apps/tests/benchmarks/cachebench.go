// Copyright (c) Microsoft Corporation.
// Licensed under the MIT license.

// cachebench measures the token cache under concurrent load: one phase
// populating it from many goroutines, one phase acquiring every token once
// per goroutine through the engine's silent path.
package main

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"strconv"
	"sync"
	"text/template"
	"time"

	"github.com/AzureAD/azure-activedirectory-library-for-go/apps/cache"
	"github.com/AzureAD/azure-activedirectory-library-for-go/apps/internal/base"
	"github.com/AzureAD/azure-activedirectory-library-for-go/apps/internal/oauth"
	"github.com/AzureAD/azure-activedirectory-library-for-go/apps/internal/pending"
	"github.com/AzureAD/azure-activedirectory-library-for-go/apps/internal/shared"
)

const (
	benchAuthority = "https://login.microsoftonline.com/fake_tenant"
	benchClientID  = "fake_client_id"
	benchUser      = "user@fake_tenant"
	accessToken    = "fake_token"
)

type testParams struct {
	// the number of goroutines to use
	Concurrency int

	// the number of tokens in the cache
	// must be divisible by Concurrency
	TokenCount int
}

// wireProtocol fails every exchange; the benchmark must be served entirely
// from the cache.
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

type execTime struct {
	start time.Time
	end   time.Time
}

func populateTokenCache(store cache.Store, params testParams) execTime {
	if r := params.TokenCount % params.Concurrency; r != 0 {
		panic("TokenCount must be divisible by Concurrency")
	}
	parts := params.TokenCount / params.Concurrency
	expiresOn := time.Now().Add(1 * time.Hour)

	wg := &sync.WaitGroup{}
	fmt.Printf("Populating token cache with %d tokens...", params.TokenCount)
	start := time.Now()
	for n := 0; n < params.Concurrency; n++ {
		wg.Add(1)
		go func(chunk int) {
			for i := parts * chunk; i < parts*(chunk+1); i++ {
				// each token has a different resource which is what makes them unique
				item := cache.Item{
					Authority:   benchAuthority,
					Resource:    strconv.FormatInt(int64(i), 10),
					ClientID:    benchClientID,
					UserID:      benchUser,
					AccessToken: accessToken,
					ExpiresOn:   expiresOn,
				}
				key, err := item.Key()
				if err != nil {
					panic(err)
				}
				store.Set(key, item)
			}
			wg.Done()
		}(n)
	}
	wg.Wait()
	return execTime{start: start, end: time.Now()}
}

func executeTest(client *base.Client, params testParams) execTime {
	wg := &sync.WaitGroup{}
	fmt.Printf("Begin token retrieval.....")
	start := time.Now()
	for n := 0; n < params.Concurrency; n++ {
		wg.Add(1)
		go func() {
			// retrieve each token once per goroutine
			for tk := 0; tk < params.TokenCount; tk++ {
				done := make(chan error, 1)
				req := shared.AuthenticationRequest{
					Resource: strconv.FormatInt(int64(tk), 10),
					UserID:   benchUser,
					Prompt:   shared.PromptNever,
				}
				err := client.AcquireToken(context.Background(), req, func(result shared.AuthenticationResult, err error) {
					if err == nil && result.AccessToken == "" {
						err = fmt.Errorf("empty access token for resource %s", req.Resource)
					}
					done <- err
				})
				if err != nil {
					panic(err)
				}
				if err := <-done; err != nil {
					panic(err)
				}
			}
			wg.Done()
		}()
	}
	wg.Wait()
	return execTime{start: start, end: time.Now()}
}

// Stats is used with statsTemplText for reporting purposes
type Stats struct {
	popExec     execTime
	retExec     execTime
	Concurrency int
	Count       int64
}

// PopDur returns the total duration for populating the cache.
func (s *Stats) PopDur() time.Duration {
	return s.popExec.end.Sub(s.popExec.start)
}

// RetDur returns the total duration for retrieving tokens.
func (s *Stats) RetDur() time.Duration {
	return s.retExec.end.Sub(s.retExec.start)
}

// PopAvg returns the mean average of caching a token.
func (s *Stats) PopAvg() time.Duration {
	return s.PopDur() / time.Duration(s.Count)
}

// RetAvg returns the mean average of retrieving a token.
func (s *Stats) RetAvg() time.Duration {
	return s.RetDur() / time.Duration(s.Count)
}

var statsTemplText = `
Test Results:
[{{.Concurrency}} goroutines][{{.Count}} tokens] [population: total {{.PopDur}}, avg {{.PopAvg}}] [retrieval: total {{.RetDur}}, avg {{.RetAvg}}]
==========================================================================
`
var statsTempl = template.Must(template.New("stats").Parse(statsTemplText))

func main() {
	tests := []testParams{
		{
			Concurrency: runtime.NumCPU(),
			TokenCount:  100,
		},
		{
			Concurrency: runtime.NumCPU(),
			TokenCount:  1000,
		},
		{
			Concurrency: runtime.NumCPU(),
			TokenCount:  10000,
		},
		{
			Concurrency: runtime.NumCPU(),
			TokenCount:  20000,
		},
	}

	for _, t := range tests {
		store := cache.NewMemoryStore()
		client, err := fakeClient(store)
		if err != nil {
			panic(err)
		}
		stats := &Stats{
			Concurrency: t.Concurrency,
			Count:       int64(t.TokenCount),
		}
		stats.popExec = populateTokenCache(store, t)
		stats.retExec = executeTest(client, t)
		if err := statsTempl.Execute(os.Stdout, stats); err != nil {
			panic(err)
		}
	}
}
