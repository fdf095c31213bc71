// Copyright (c) Microsoft Corporation.
// Licensed under the MIT license.

// Package pending tracks in-flight interactive authentication requests so
// their callbacks can be found when the completion signal arrives, possibly
// on a context other than the one that started the flow.
package pending

import (
	"sync"

	"github.com/AzureAD/azure-activedirectory-library-for-go/apps/internal/shared"
)

// CancelSender delivers an advisory cancellation to whatever is hosting a
// request's UI. The host acknowledges only if it is still showing something
// for the id.
type CancelSender interface {
	SendCancel(requestID string) bool
}

// State is one in-flight interactive request.
type State struct {
	RequestID string
	Request   shared.AuthenticationRequest
	Callback  shared.Callback
	// Host is the flow host the request was handed to; cancellations route
	// through it.
	Host CancelSender
	// Cancelled is set once a cancellation has been acknowledged, before the
	// cancellation is delivered.
	Cancelled bool
}

// Lookup tags how a registry lookup was satisfied.
type Lookup int

const (
	// Missing means the id had no entry and nothing could be synthesized.
	Missing Lookup = iota
	// Found means the id had its own entry.
	Found
	// FallbackSingleSlot means the id had no entry and the state was
	// synthesized from the most recent registration. Correct only while at
	// most one request is in flight; kept for hosts that lose the id across
	// UI rebuilds.
	FallbackSingleSlot
)

// Registry is a table of in-flight interactive requests, safe for concurrent
// use. Contexts that share a Registry can resolve each other's completions,
// which is what lets a context finish a flow a predecessor started.
type Registry struct {
	mu     sync.RWMutex
	states map[string]*State
	// last backs the single-slot fallback. Deliberately not cleared by
	// Remove or Take: a late completion signal should still reach the most
	// recent caller even after its entry is gone.
	last *State
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{states: map[string]*State{}}
}

// Put registers s under its RequestID and remembers it as the most recent
// registration for the fallback slot.
func (r *Registry) Put(s *State) {
	if s == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	r.states[s.RequestID] = s
	r.last = s
}

// Get returns the state for id without claiming it. A miss with a non-empty
// fallback slot synthesizes a transient state borrowing the slot's request,
// callback and host; the Lookup tag reports which path produced the state.
func (r *Registry) Get(id string) (*State, Lookup) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if s, ok := r.states[id]; ok {
		return s, Found
	}
	return r.fallback(id)
}

// Take atomically removes and returns the state for id, claiming the sole
// right to deliver its terminal result. A fallback Take leaves the fallback
// slot in place; with two truly concurrent requests the slot can hand a
// result to the wrong caller, which the Lookup tag lets callers log.
func (r *Registry) Take(id string) (*State, Lookup) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if s, ok := r.states[id]; ok {
		delete(r.states, id)
		return s, Found
	}
	return r.fallback(id)
}

// Remove drops the entry for id, leaving the fallback slot as is.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.states, id)
}

// Len reports how many requests are registered.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.states)
}

// fallback synthesizes a state for id from the fallback slot. Callers hold
// at least the read lock.
func (r *Registry) fallback(id string) (*State, Lookup) {
	if r.last == nil {
		return nil, Missing
	}
	return &State{
		RequestID: id,
		Request:   r.last.Request,
		Callback:  r.last.Callback,
		Host:      r.last.Host,
	}, FallbackSingleSlot
}
