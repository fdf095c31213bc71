// Copyright (c) Microsoft Corporation.
// Licensed under the MIT license.

package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/AzureAD/azure-activedirectory-library-for-go/apps/adal"
	"github.com/AzureAD/azure-activedirectory-library-for-go/apps/cache"
)

// openPersistedCache opens the sample's token cache: a locked file next to
// the samples, encrypted when the config carries a passphrase, so tokens
// survive between runs.
func openPersistedCache(config *Config) cache.Store {
	var medium cache.Medium = cache.NewFileMedium(config.CacheFile)
	if config.CachePassphrase != "" {
		var err error
		medium, err = cache.NewEncryptedMedium(medium, config.CachePassphrase)
		if err != nil {
			log.Fatal(err)
		}
	}
	store, err := cache.NewPersistedStore(medium)
	if err != nil {
		log.Fatal(err)
	}
	return store
}

// acquireTokenSilent resolves a token without showing UI: from the persisted
// cache when a live token is there, through a refresh when only a refresh
// token is. Run it twice and the second call is served from the cache.
func acquireTokenSilent(config *Config) {
	client, err := adal.New(config.Authority, config.ClientID,
		adal.WithCache(openPersistedCache(config)),
	)
	if err != nil {
		log.Fatal(err)
	}

	callback, done := collect()
	err = client.AcquireToken(context.Background(), config.Resource, callback,
		adal.WithUserID(config.UserID),
		adal.WithPrompt(adal.PromptNever),
	)
	if err != nil {
		log.Fatal(err)
	}

	o := awaitResult(done, time.Minute)
	if o.err != nil {
		log.Fatal(o.err)
	}
	fmt.Println("access token expires on:", o.result.ExpiresOn)
	fmt.Println("signed in as:", o.result.UserInfo.DisplayableID)
}
