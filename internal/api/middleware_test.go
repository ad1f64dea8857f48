package api

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestInternalAPIKeyMiddleware(t *testing.T) {
	okHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	tests := []struct {
		name       string
		configured string
		provided   string
		wantStatus int
	}{
		{name: "matching key passes", configured: "s3cret", provided: "s3cret", wantStatus: http.StatusNoContent},
		{name: "wrong key rejected", configured: "s3cret", provided: "nope", wantStatus: http.StatusUnauthorized},
		{name: "missing key rejected", configured: "s3cret", provided: "", wantStatus: http.StatusUnauthorized},
		{name: "unconfigured endpoint is disabled", configured: "", provided: "anything", wantStatus: http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := InternalAPIKeyMiddleware(tt.configured)(okHandler)
			req := httptest.NewRequest(http.MethodPost, "/webhooks/payment", nil)
			if tt.provided != "" {
				req.Header.Set("X-Internal-Api-Key", tt.provided)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			if rec.Code != tt.wantStatus {
				t.Fatalf("expected status %d, got %d", tt.wantStatus, rec.Code)
			}
		})
	}
}

func TestJWKSCacheFetchesOncePerTTL(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generating key: %v", err)
	}

	var fetches int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fetches++
		json.NewEncoder(w).Encode(map[string]interface{}{
			"keys": []map[string]string{{
				"kid": "session-1",
				"kty": "RSA",
				"n":   base64.RawURLEncoding.EncodeToString(key.N.Bytes()),
				"e":   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(key.E)).Bytes()),
			}},
		})
	}))
	defer server.Close()

	cache := newJWKSCache(server.URL, time.Minute)
	for i := 0; i < 3; i++ {
		pub, err := cache.publicKey("session-1")
		if err != nil {
			t.Fatalf("lookup %d: %v", i, err)
		}
		if pub.N.Cmp(key.N) != 0 {
			t.Fatalf("lookup %d returned the wrong key", i)
		}
	}
	if fetches != 1 {
		t.Fatalf("expected one JWKS fetch within the TTL, got %d", fetches)
	}

	// An unknown kid forces a refetch so a rotated key is picked up.
	if _, err := cache.publicKey("session-2"); err == nil {
		t.Fatal("expected an error for an unknown kid")
	}
	if fetches != 2 {
		t.Fatalf("expected an unknown kid to refetch, got %d fetches", fetches)
	}
}

func TestSessionAuthMiddlewareRejectsMissingHeader(t *testing.T) {
	handler := SessionAuthMiddleware(SessionAuthOptions{JWKSURL: "http://localhost/jwks"})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run without a token")
	}))

	tests := []struct {
		name   string
		header string
	}{
		{name: "no header", header: ""},
		{name: "not a bearer token", header: "Basic abc"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/balance", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			if rec.Code != http.StatusUnauthorized {
				t.Fatalf("expected 401, got %d", rec.Code)
			}
		})
	}
}
