// Copyright (c) Microsoft Corporation.
// Licensed under the MIT license.

/*
Package cache holds the token cache: the item shape, the composite key space,
the Store contract the authentication context consumes, and the provided
stores. Third parties can implement Store for external storage shared by
multiple local applications.

Stores own their items and never return errors from mutations: the in-memory
view is authoritative and durability is best effort (see PersistedStore).
*/
package cache

import (
	"strings"
	"sync"
	"time"

	"github.com/AzureAD/azure-activedirectory-library-for-go/apps/errors"
)

// KeySeparator joins the elements of a composite cache key.
const KeySeparator = "$"

// Key builds the composite cache key for a token's coordinates. The
// authority and clientID are required; the authority loses any trailing
// slash and, like resource and clientID, is lower cased. userID is used as
// given. When multiResource is true the resource element is omitted from the
// key entirely, since such a refresh token serves any resource.
func Key(authority, resource, clientID, userID string, multiResource bool) (string, error) {
	if strings.TrimSpace(authority) == "" {
		return "", errors.New(errors.CodeInvalidArgument, "cache key needs an authority")
	}
	if strings.TrimSpace(clientID) == "" {
		return "", errors.New(errors.CodeInvalidArgument, "cache key needs a clientID")
	}

	elems := make([]string, 0, 4)
	elems = append(elems, strings.ToLower(strings.TrimSuffix(authority, "/")))
	if !multiResource {
		elems = append(elems, strings.ToLower(resource))
	}
	elems = append(elems, strings.ToLower(clientID), userID)
	return strings.Join(elems, KeySeparator), nil
}

// UserInfo identifies the user a token was issued to, as reported by the
// authority's id_token.
type UserInfo struct {
	UniqueID         string `json:"uniqueId,omitempty"`
	DisplayableID    string `json:"displayableId,omitempty"`
	GivenName        string `json:"givenName,omitempty"`
	FamilyName       string `json:"familyName,omitempty"`
	IdentityProvider string `json:"identityProvider,omitempty"`
}

// Item is one cached token entry.
type Item struct {
	Authority string `json:"authority"`
	// Resource is empty for multi-resource entries.
	Resource string `json:"resource,omitempty"`
	ClientID string `json:"clientId"`
	UserID   string `json:"userId,omitempty"`

	// AccessToken is empty for multi-resource entries, which carry only the
	// refresh token.
	AccessToken  string `json:"accessToken,omitempty"`
	RefreshToken string `json:"refreshToken,omitempty"`
	// ExpiresOn is the access token expiry. The zero time means the
	// authority did not report one; such entries do not expire.
	ExpiresOn                   time.Time `json:"expiresOn,omitempty"`
	IsMultiResourceRefreshToken bool      `json:"isMultiResourceRefreshToken,omitempty"`

	TenantID   string   `json:"tenantId,omitempty"`
	RawIDToken string   `json:"rawIdToken,omitempty"`
	UserInfo   UserInfo `json:"userInfo"`
}

// Key returns the composite key the item belongs under.
func (i Item) Key() (string, error) {
	return Key(i.Authority, i.Resource, i.ClientID, i.UserID, i.IsMultiResourceRefreshToken)
}

// Expired reports whether the item's access token is expired at t. Items
// without an expiry never expire.
func (i Item) Expired(t time.Time) bool {
	return !i.ExpiresOn.IsZero() && i.ExpiresOn.Before(t)
}

// Store is the contract between the authentication context and a token
// cache. Implementations must be safe for concurrent use; reads and writes
// of the same key must go through the same lock.
type Store interface {
	// Get returns the item stored under key.
	Get(key string) (Item, bool)
	// Set stores item under key, overwriting any previous entry.
	Set(key string, item Item)
	// Remove deletes the entry under key, if any.
	Remove(key string)
	// RemoveAll empties the store.
	RemoveAll()
	// Contains reports whether an entry exists under key.
	Contains(key string) bool
}

// MemoryStore is a Store held only in process memory.
type MemoryStore struct {
	mu    sync.RWMutex
	items map[string]Item
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{items: map[string]Item{}}
}

// Get implements Store.
func (m *MemoryStore) Get(key string) (Item, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	item, ok := m.items[key]
	return item, ok
}

// Set implements Store.
func (m *MemoryStore) Set(key string, item Item) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.items[key] = item
}

// Remove implements Store.
func (m *MemoryStore) Remove(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.items, key)
}

// RemoveAll implements Store.
func (m *MemoryStore) RemoveAll() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.items = map[string]Item{}
}

// Contains implements Store.
func (m *MemoryStore) Contains(key string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	_, ok := m.items[key]
	return ok
}
