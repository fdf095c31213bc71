// Copyright (c) Microsoft Corporation.
// Licensed under the MIT license.

package cache

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"sync"

	"golang.org/x/crypto/pbkdf2"

	"github.com/AzureAD/azure-activedirectory-library-for-go/apps/errors"
)

const (
	sealVersion    = 1
	sealIterations = 100_000
	sealSaltLen    = 16
	sealKeyLen     = 32
)

// sealEnvelope is the serialized form an EncryptedMedium writes to its inner
// medium. []byte fields render as base64 in JSON.
type sealEnvelope struct {
	Version int    `json:"version"`
	Salt    []byte `json:"salt"`
	Nonce   []byte `json:"nonce"`
	Data    []byte `json:"data"`
}

// EncryptedMedium seals another medium's snapshot with AES-256-GCM. The key
// comes from the caller's passphrase through PBKDF2 over SHA-256; the salt
// travels in the envelope, so any process holding the passphrase can open
// the snapshot. Content that does not open with the passphrase reads as a
// NotDecodable error, which PersistedStore recovers from by starting empty.
type EncryptedMedium struct {
	inner      Medium
	passphrase []byte

	mu   sync.Mutex
	salt []byte
	key  []byte
}

// NewEncryptedMedium wraps inner, sealing everything written through it.
func NewEncryptedMedium(inner Medium, passphrase string) (*EncryptedMedium, error) {
	if inner == nil {
		return nil, errors.New(errors.CodeInvalidArgument, "inner medium cannot be nil")
	}
	if passphrase == "" {
		return nil, errors.New(errors.CodeInvalidArgument, "passphrase cannot be empty")
	}
	return &EncryptedMedium{inner: inner, passphrase: []byte(passphrase)}, nil
}

// Read implements Medium.
func (m *EncryptedMedium) Read() ([]byte, error) {
	sealed, err := m.inner.Read()
	if err != nil || sealed == nil {
		return nil, err
	}

	var env sealEnvelope
	if err := json.Unmarshal(sealed, &env); err != nil {
		return nil, NotDecodable(err)
	}
	if env.Version != sealVersion {
		return nil, NotDecodable(fmt.Errorf("unknown seal version %d", env.Version))
	}

	gcm, err := m.gcm(env.Salt)
	if err != nil {
		return nil, err
	}
	data, err := gcm.Open(nil, env.Nonce, env.Data, nil)
	if err != nil {
		return nil, NotDecodable(err)
	}
	return data, nil
}

// Write implements Medium.
func (m *EncryptedMedium) Write(data []byte) error {
	salt, err := m.currentSalt()
	if err != nil {
		return err
	}
	gcm, err := m.gcm(salt)
	if err != nil {
		return err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return err
	}
	env := sealEnvelope{
		Version: sealVersion,
		Salt:    salt,
		Nonce:   nonce,
		Data:    gcm.Seal(nil, nonce, data, nil),
	}
	sealed, err := json.Marshal(env)
	if err != nil {
		return err
	}
	return m.inner.Write(sealed)
}

// currentSalt returns the salt used for writes, generating one on first use.
func (m *EncryptedMedium) currentSalt() ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.salt == nil {
		salt := make([]byte, sealSaltLen)
		if _, err := rand.Read(salt); err != nil {
			return nil, err
		}
		m.salt = salt
	}
	return m.salt, nil
}

// gcm builds the AEAD for salt, memoizing the derived key: PBKDF2 is slow on
// purpose and the salt rarely changes.
func (m *EncryptedMedium) gcm(salt []byte) (cipher.AEAD, error) {
	m.mu.Lock()
	if !bytes.Equal(salt, m.salt) || m.key == nil {
		m.salt = append([]byte(nil), salt...)
		m.key = pbkdf2.Key(m.passphrase, salt, sealIterations, sealKeyLen, sha256.New)
	}
	key := m.key
	m.mu.Unlock()

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}
