// Copyright (c) Microsoft Corporation.
// Licensed under the MIT license.

package main

var config = CreateConfig("config.json")

func main() {
	// Choose a sample to run.
	exampleType := "1"

	if exampleType == "1" {
		acquireTokenSilent(config)

		// this time the token comes from the cache!
		acquireTokenSilent(config)
	} else if exampleType == "2" {
		acquireTokenInteractive(config)
	} else if exampleType == "3" {
		acquireTokenByRefreshToken(config)
	}
}
