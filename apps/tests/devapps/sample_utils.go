// Copyright (c) Microsoft Corporation.
// Licensed under the MIT license.

package main

import (
	"encoding/json"
	"errors"
	"log"
	"os"
	"time"

	"github.com/AzureAD/azure-activedirectory-library-for-go/apps/adal"
)

var errTimedOut = errors.New("timed out waiting for the authentication result")

// Config represents the config.json required to run the samples
type Config struct {
	ClientID        string `json:"client_id"`
	Authority       string `json:"authority"`
	Resource        string `json:"resource"`
	UserID          string `json:"user_id"`
	RedirectURI     string `json:"redirect_uri"`
	RefreshToken    string `json:"refresh_token"`
	CacheFile       string `json:"cache_file"`
	CachePassphrase string `json:"cache_passphrase"`
}

// CreateConfig creates the Config struct from a json file.
func CreateConfig(fileName string) *Config {
	data, err := os.ReadFile(fileName)
	if err != nil {
		log.Fatal(err)
	}

	config := &Config{}
	err = json.Unmarshal(data, config)
	if err != nil {
		log.Fatal(err)
	}
	return config
}

// awaitResult blocks until the acquisition callback fires or the deadline
// passes. The samples are command-line apps, so blocking is fine here.
func awaitResult(done <-chan callbackOutcome, timeout time.Duration) callbackOutcome {
	select {
	case o := <-done:
		return o
	case <-time.After(timeout):
		return callbackOutcome{err: errTimedOut}
	}
}

type callbackOutcome struct {
	result adal.AuthenticationResult
	err    error
}

// collect returns a callback that forwards the outcome to a channel.
func collect() (adal.AuthenticationCallback, chan callbackOutcome) {
	done := make(chan callbackOutcome, 1)
	return func(result adal.AuthenticationResult, err error) {
		done <- callbackOutcome{result: result, err: err}
	}, done
}
