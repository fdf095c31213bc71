// Copyright (c) Microsoft Corporation.
// Licensed under the MIT license.

package pending

import (
	"testing"

	"github.com/AzureAD/azure-activedirectory-library-for-go/apps/internal/shared"
)

func TestRegistryPutGetTake(t *testing.T) {
	r := NewRegistry()

	if s, lookup := r.Get("nope"); s != nil || lookup != Missing {
		t.Fatalf("TestRegistryPutGetTake: Get on empty registry: got (%v, %v), want (nil, Missing)", s, lookup)
	}

	state := &State{RequestID: "id1", Callback: func(shared.AuthenticationResult, error) {}}
	r.Put(state)

	got, lookup := r.Get("id1")
	if lookup != Found || got != state {
		t.Fatalf("TestRegistryPutGetTake: Get after Put: got lookup %v, want Found with the same state", lookup)
	}
	if r.Len() != 1 {
		t.Fatalf("TestRegistryPutGetTake: Len after Put: got %d, want 1", r.Len())
	}

	got, lookup = r.Take("id1")
	if lookup != Found || got != state {
		t.Fatalf("TestRegistryPutGetTake: Take: got lookup %v, want Found with the same state", lookup)
	}
	if r.Len() != 0 {
		t.Fatalf("TestRegistryPutGetTake: Len after Take: got %d, want 0", r.Len())
	}
}

func TestRegistryTakeClaimsOnce(t *testing.T) {
	r := NewRegistry()
	r.Put(&State{RequestID: "id1"})
	r.Put(&State{RequestID: "id2"})

	if _, lookup := r.Take("id1"); lookup != Found {
		t.Fatalf("TestRegistryTakeClaimsOnce: first Take: got %v, want Found", lookup)
	}
	// A second Take for the same id must not find a private entry again;
	// only the fallback slot remains.
	if _, lookup := r.Take("id1"); lookup != FallbackSingleSlot {
		t.Fatalf("TestRegistryTakeClaimsOnce: second Take: got %v, want FallbackSingleSlot", lookup)
	}
	// The other entry is untouched.
	if _, lookup := r.Get("id2"); lookup != Found {
		t.Fatalf("TestRegistryTakeClaimsOnce: unrelated entry was disturbed: got %v, want Found", lookup)
	}
}

func TestRegistryFallbackSlot(t *testing.T) {
	r := NewRegistry()

	delivered := false
	host := fakeCancelSender{}
	r.Put(&State{
		RequestID: "real",
		Callback:  func(shared.AuthenticationResult, error) { delivered = true },
		Host:      host,
	})

	// An unknown id borrows the last registered callback and host.
	s, lookup := r.Get("lost-id")
	if lookup != FallbackSingleSlot {
		t.Fatalf("TestRegistryFallbackSlot: got %v, want FallbackSingleSlot", lookup)
	}
	if s.RequestID != "lost-id" {
		t.Errorf("TestRegistryFallbackSlot: synthesized state has RequestID %q, want %q", s.RequestID, "lost-id")
	}
	if s.Host != host {
		t.Errorf("TestRegistryFallbackSlot: synthesized state did not borrow the host")
	}
	s.Callback(shared.AuthenticationResult{}, nil)
	if !delivered {
		t.Errorf("TestRegistryFallbackSlot: synthesized state did not borrow the callback")
	}

	// The real entry is still registered; the fallback never removes it.
	if _, lookup := r.Get("real"); lookup != Found {
		t.Errorf("TestRegistryFallbackSlot: real entry disappeared: got %v, want Found", lookup)
	}
}

func TestRegistryFallbackSurvivesRemove(t *testing.T) {
	r := NewRegistry()
	r.Put(&State{RequestID: "id1"})
	r.Remove("id1")

	// Remove drops the entry but the fallback slot still points at the last
	// registration, so a late completion can still be routed.
	if _, lookup := r.Get("id1"); lookup != FallbackSingleSlot {
		t.Fatalf("TestRegistryFallbackSurvivesRemove: got %v, want FallbackSingleSlot", lookup)
	}
}

func TestRegistryFallbackTracksMostRecent(t *testing.T) {
	r := NewRegistry()

	first := &State{RequestID: "first", Host: fakeCancelSender{name: "first"}}
	second := &State{RequestID: "second", Host: fakeCancelSender{name: "second"}}
	r.Put(first)
	r.Put(second)

	s, lookup := r.Get("unknown")
	if lookup != FallbackSingleSlot {
		t.Fatalf("TestRegistryFallbackTracksMostRecent: got %v, want FallbackSingleSlot", lookup)
	}
	if s.Host != second.Host {
		t.Errorf("TestRegistryFallbackTracksMostRecent: fallback did not track the most recent registration")
	}
}

type fakeCancelSender struct {
	name string
}

func (fakeCancelSender) SendCancel(string) bool { return true }
