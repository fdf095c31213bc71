// Copyright (c) Microsoft Corporation.
// Licensed under the MIT license.

// Package version keeps the version number of the client library.
package version

// Version is the version of this client library.
const Version = "1.0.0"
