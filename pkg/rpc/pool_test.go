// Copyright 2025 Chainframe

package rpc

import (
	"errors"
	"fmt"
	"testing"
)

func newTestPool(urls ...string) *Pool {
	p := &Pool{}
	for _, u := range urls {
		p.endpoints = append(p.endpoints, &endpoint{url: u, healthy: true})
	}
	return p
}

func TestOrderedEndpointsHealthyFirst(t *testing.T) {
	p := newTestPool("a", "b", "c")
	p.endpoints[0].setHealthy(false)

	ordered := p.orderedEndpoints()
	if len(ordered) != 3 {
		t.Fatalf("expected 3 endpoints, got %d", len(ordered))
	}
	if ordered[0].url != "b" || ordered[1].url != "c" {
		t.Errorf("expected healthy endpoints first, got %s, %s", ordered[0].url, ordered[1].url)
	}
	if ordered[2].url != "a" {
		t.Errorf("expected unhealthy endpoint last, got %s", ordered[2].url)
	}
}

func TestOrderedEndpointsPreservesOrderWithinGroup(t *testing.T) {
	p := newTestPool("a", "b", "c")
	ordered := p.orderedEndpoints()
	for i, want := range []string{"a", "b", "c"} {
		if ordered[i].url != want {
			t.Errorf("position %d: expected %s, got %s", i, want, ordered[i].url)
		}
	}
}

func TestHealthSnapshotReflectsEndpointState(t *testing.T) {
	p := newTestPool("a", "b")
	p.endpoints[1].setHealthy(false)

	snap := p.HealthSnapshot()
	if !snap["a"] {
		t.Error("expected a to be healthy")
	}
	if snap["b"] {
		t.Error("expected b to be unhealthy")
	}
}

func TestEndpointHealthFlagToggles(t *testing.T) {
	e := &endpoint{url: "x", healthy: true}
	if !e.isHealthy() {
		t.Fatal("expected initial state healthy")
	}
	e.setHealthy(false)
	if e.isHealthy() {
		t.Error("expected healthy to be false after setHealthy(false)")
	}
}

func TestNewPoolRejectsEmptyURLList(t *testing.T) {
	if _, err := NewPool(nil); !errors.Is(err, ErrNoEndpoints) {
		t.Errorf("expected ErrNoEndpoints, got %v", err)
	}
}

func TestAllProvidersFailedErrorMessage(t *testing.T) {
	err := &AllProvidersFailedError{Attempts: []EndpointError{
		{URL: "a", Err: fmt.Errorf("timeout")},
		{URL: "b", Err: fmt.Errorf("connection refused")},
	}}

	msg := err.Error()
	if msg == "" {
		t.Fatal("expected non-empty error message")
	}

	if !errors.Is(err.Unwrap(), err.Attempts[1].Err) {
		t.Errorf("expected Unwrap to return the last attempt's error")
	}
}

func TestIsAllProvidersFailed(t *testing.T) {
	err := &AllProvidersFailedError{Attempts: []EndpointError{{URL: "a", Err: fmt.Errorf("boom")}}}
	if !IsAllProvidersFailed(err) {
		t.Error("expected IsAllProvidersFailed to report true")
	}
	if IsAllProvidersFailed(fmt.Errorf("unrelated")) {
		t.Error("expected IsAllProvidersFailed to report false for an unrelated error")
	}
}
