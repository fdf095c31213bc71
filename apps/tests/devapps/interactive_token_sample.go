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

// acquireTokenInteractive signs the user in through the system browser. The
// redirect URI in config.json must be a loopback address registered on the
// app, e.g. http://localhost:8400.
func acquireTokenInteractive(config *Config) {
	client, err := adal.New(config.Authority, config.ClientID)
	if err != nil {
		log.Fatal(err)
	}

	callback, done := collect()
	err = client.AcquireToken(context.Background(), config.Resource, callback,
		adal.WithUserID(config.UserID),
		adal.WithPrompt(adal.PromptAlways),
		adal.WithRedirectURI(config.RedirectURI),
	)
	if err != nil {
		log.Fatal(err)
	}

	fmt.Println("waiting for the sign-in to finish in the browser...")
	o := awaitResult(done, 10*time.Minute)
	if o.err != nil {
		log.Fatal(o.err)
	}
	fmt.Println("access token expires on:", o.result.ExpiresOn)
	fmt.Println("signed in as:", o.result.UserInfo.DisplayableID)
}
