// Copyright (c) Microsoft Corporation.
// Licensed under the MIT license.

package cache

import (
	"bytes"
	"testing"

	"github.com/zalando/go-keyring"
)

func TestKeyringMedium(t *testing.T) {
	keyring.MockInit()

	medium, err := NewKeyringMedium("adal-test", "tokens")
	if err != nil {
		t.Fatalf("TestKeyringMedium: NewKeyringMedium returned err == %s", err)
	}

	data, err := medium.Read()
	if err != nil || data != nil {
		t.Fatalf("TestKeyringMedium: Read before any Write: got (%q, %v), want (nil, nil)", data, err)
	}

	want := []byte(`{"version":1,"tokens":{}}`)
	if err := medium.Write(want); err != nil {
		t.Fatalf("TestKeyringMedium: Write returned err == %s", err)
	}
	got, err := medium.Read()
	if err != nil {
		t.Fatalf("TestKeyringMedium: Read returned err == %s", err)
	}
	if !bytes.Equal(got, want) {
		t.Fatalf("TestKeyringMedium: Read returned %q, want %q", got, want)
	}
}

func TestKeyringMediumProbeFailure(t *testing.T) {
	keyring.MockInitWithError(keyring.ErrUnsupportedPlatform)

	if _, err := NewKeyringMedium("adal-test", "tokens"); err == nil {
		t.Fatalf("TestKeyringMediumProbeFailure: got err == nil, want err != nil")
	}
}
