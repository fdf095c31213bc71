// Copyright (c) Microsoft Corporation.
// Licensed under the MIT license.

package cache

import (
	"github.com/zalando/go-keyring"

	"github.com/AzureAD/azure-activedirectory-library-for-go/apps/errors"
)

// KeyringMedium stores the cache snapshot as a single secret in the
// operating system keyring: Keychain on macOS, Credential Manager on
// Windows, the Secret Service on Linux.
type KeyringMedium struct {
	service string
	account string
}

// NewKeyringMedium probes the keyring and returns a medium storing the
// snapshot under (service, account). A failed probe means there is no usable
// keyring in this environment; callers typically fall back to a FileMedium.
func NewKeyringMedium(service, account string) (*KeyringMedium, error) {
	if _, err := keyring.Get(service, account); err != nil && err != keyring.ErrNotFound {
		return nil, errors.Wrap(errors.CodeCacheUnavailable, "no usable keyring in this environment", err)
	}
	return &KeyringMedium{service: service, account: account}, nil
}

// Read implements Medium.
func (m *KeyringMedium) Read() ([]byte, error) {
	secret, err := keyring.Get(m.service, m.account)
	if err == keyring.ErrNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return []byte(secret), nil
}

// Write implements Medium.
func (m *KeyringMedium) Write(data []byte) error {
	return keyring.Set(m.service, m.account, string(data))
}
