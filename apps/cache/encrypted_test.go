// Copyright (c) Microsoft Corporation.
// Licensed under the MIT license.

package cache

import (
	"bytes"
	"log/slog"
	"testing"
)

func TestEncryptedMedium(t *testing.T) {
	inner := &fakeMedium{}
	medium, err := NewEncryptedMedium(inner, "hunter2")
	if err != nil {
		t.Fatalf("TestEncryptedMedium: NewEncryptedMedium returned err == %s", err)
	}

	data, err := medium.Read()
	if err != nil || data != nil {
		t.Fatalf("TestEncryptedMedium: Read before any Write: got (%q, %v), want (nil, nil)", data, err)
	}

	want := []byte(`{"version":1,"tokens":{}}`)
	if err := medium.Write(want); err != nil {
		t.Fatalf("TestEncryptedMedium: Write returned err == %s", err)
	}
	if bytes.Contains(inner.data, []byte("tokens")) {
		t.Fatalf("TestEncryptedMedium: plaintext leaked into the inner medium: %q", inner.data)
	}

	got, err := medium.Read()
	if err != nil {
		t.Fatalf("TestEncryptedMedium: Read returned err == %s", err)
	}
	if !bytes.Equal(got, want) {
		t.Fatalf("TestEncryptedMedium: Read returned %q, want %q", got, want)
	}
}

func TestEncryptedMediumWrongPassphrase(t *testing.T) {
	inner := &fakeMedium{}
	medium, err := NewEncryptedMedium(inner, "hunter2")
	if err != nil {
		t.Fatalf("TestEncryptedMediumWrongPassphrase: NewEncryptedMedium returned err == %s", err)
	}
	if err := medium.Write([]byte("secret")); err != nil {
		t.Fatalf("TestEncryptedMediumWrongPassphrase: Write returned err == %s", err)
	}

	other, err := NewEncryptedMedium(inner, "*******")
	if err != nil {
		t.Fatalf("TestEncryptedMediumWrongPassphrase: NewEncryptedMedium returned err == %s", err)
	}
	if _, err := other.Read(); !isNotDecodable(err) {
		t.Fatalf("TestEncryptedMediumWrongPassphrase: Read returned err == %v, want a NotDecodable error", err)
	}

	// A store over the wrong passphrase recovers by starting empty.
	store, err := NewPersistedStore(other, WithLogger(slog.New(slog.DiscardHandler)))
	if err != nil {
		t.Fatalf("TestEncryptedMediumWrongPassphrase: NewPersistedStore returned err == %s", err)
	}
	if store.Contains("key") {
		t.Fatalf("TestEncryptedMediumWrongPassphrase: store over the wrong passphrase is not empty")
	}
}

func TestEncryptedMediumGarbageContent(t *testing.T) {
	tests := []struct {
		desc  string
		inner []byte
	}{
		{desc: "not json", inner: []byte("garbage")},
		{desc: "unknown seal version", inner: []byte(`{"version":99}`)},
		{desc: "truncated ciphertext", inner: []byte(`{"version":1,"salt":"c2FsdHNhbHRzYWx0MTZiYg==","nonce":"bm9uY2Vub25jZTEy","data":"AAAA"}`)},
	}

	for _, test := range tests {
		medium, err := NewEncryptedMedium(&fakeMedium{data: test.inner}, "hunter2")
		if err != nil {
			t.Fatalf("TestEncryptedMediumGarbageContent(%s): NewEncryptedMedium returned err == %s", test.desc, err)
		}
		if _, err := medium.Read(); !isNotDecodable(err) {
			t.Errorf("TestEncryptedMediumGarbageContent(%s): Read returned err == %v, want a NotDecodable error", test.desc, err)
		}
	}
}

func TestNewEncryptedMediumValidates(t *testing.T) {
	if _, err := NewEncryptedMedium(nil, "hunter2"); err == nil {
		t.Errorf("TestNewEncryptedMediumValidates: nil inner medium: got err == nil, want err != nil")
	}
	if _, err := NewEncryptedMedium(&fakeMedium{}, ""); err == nil {
		t.Errorf("TestNewEncryptedMediumValidates: empty passphrase: got err == nil, want err != nil")
	}
}
