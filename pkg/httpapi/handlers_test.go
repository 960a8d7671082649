// Copyright 2025 Chainframe

package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestHandleHealthRejectsNonGet(t *testing.T) {
	h := NewHandlers(nil, nil, nil)
	req := httptest.NewRequest(http.MethodPost, "/health", nil)
	rec := httptest.NewRecorder()

	h.HandleHealth(rec, req)

	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("expected 405, got %d", rec.Code)
	}
}

func TestHandleHealthReturnsOK(t *testing.T) {
	h := NewHandlers(nil, nil, nil)
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()

	h.HandleHealth(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var body map[string]interface{}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body["status"] != "ok" {
		t.Errorf("expected status ok, got %v", body["status"])
	}
}

func TestHandleVerifyRejectsNonPost(t *testing.T) {
	h := NewHandlers(nil, nil, nil)
	req := httptest.NewRequest(http.MethodGet, "/contracts/verify", nil)
	rec := httptest.NewRecorder()

	h.HandleVerify(rec, req)

	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("expected 405, got %d", rec.Code)
	}
}

func TestHandleVerifyRejectsInvalidJSON(t *testing.T) {
	h := NewHandlers(nil, nil, nil)
	req := httptest.NewRequest(http.MethodPost, "/contracts/verify", bytes.NewBufferString("not json"))
	rec := httptest.NewRecorder()

	h.HandleVerify(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}

func TestHandleVerifyRequiresCoreFields(t *testing.T) {
	cases := []struct {
		name string
		body map[string]interface{}
	}{
		{"missing address", map[string]interface{}{"contractName": "Token", "compilerVersion": "v0.8.20"}},
		{"missing contractName", map[string]interface{}{"address": "0xabc", "compilerVersion": "v0.8.20"}},
		{"missing compilerVersion", map[string]interface{}{"address": "0xabc", "contractName": "Token"}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := NewHandlers(nil, nil, nil)
			buf, err := json.Marshal(tc.body)
			if err != nil {
				t.Fatalf("failed to marshal request body: %v", err)
			}
			req := httptest.NewRequest(http.MethodPost, "/contracts/verify", bytes.NewReader(buf))
			rec := httptest.NewRecorder()

			h.HandleVerify(rec, req)

			if rec.Code != http.StatusBadRequest {
				t.Errorf("expected 400, got %d", rec.Code)
			}
		})
	}
}

func TestHandleVerifyRequiresSourceCodeOrFiles(t *testing.T) {
	h := NewHandlers(nil, nil, nil)
	body := map[string]interface{}{
		"address":         "0xabc",
		"contractName":    "Token",
		"compilerVersion": "v0.8.20",
	}
	buf, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("failed to marshal request body: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, "/contracts/verify", bytes.NewReader(buf))
	rec := httptest.NewRecorder()

	h.HandleVerify(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}

func TestNonEmptyJSONDefaultsToNull(t *testing.T) {
	if got := nonEmptyJSON(""); got != "null" {
		t.Errorf("expected null, got %s", got)
	}
	if got := nonEmptyJSON(`[]`); got != "[]" {
		t.Errorf("expected passthrough, got %s", got)
	}
}
