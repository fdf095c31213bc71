// Copyright (c) Microsoft Corporation.
// Licensed under the MIT license.

package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/AzureAD/azure-activedirectory-library-for-go/apps/adal"
)

// acquireTokenByRefreshToken redeems a refresh token the app obtained out of
// band, for example one migrated from another device. Nothing touches the
// cache: the app owns both tokens afterwards.
func acquireTokenByRefreshToken(config *Config) {
	client, err := adal.New(config.Authority, config.ClientID)
	if err != nil {
		log.Fatal(err)
	}

	callback, done := collect()
	err = client.AcquireTokenByRefreshToken(context.Background(), config.RefreshToken, config.Resource, callback)
	if err != nil {
		log.Fatal(err)
	}

	o := awaitResult(done, time.Minute)
	if o.err != nil {
		log.Fatal(o.err)
	}
	if o.result.Status != adal.StatusSucceeded {
		log.Fatalf("the authority rejected the refresh token: %s: %s", o.result.ErrorCode, o.result.ErrorDescription)
	}
	fmt.Println("access token expires on:", o.result.ExpiresOn)
	fmt.Println("new refresh token issued:", o.result.RefreshToken != "")
}
