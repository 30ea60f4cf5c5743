package httpapi

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestAPIKeyAuth(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	for _, tc := range []struct {
		name   string
		key    string
		header string
		value  string
		want   int
	}{
		{name: "auth disabled passes everything", key: "", want: http.StatusOK},
		{name: "valid key", key: "s3cret", value: "Bearer s3cret", want: http.StatusOK},
		{name: "prefix is case-insensitive", key: "s3cret", value: "bearer s3cret", want: http.StatusOK},
		{name: "missing header", key: "s3cret", want: http.StatusUnauthorized},
		{name: "no prefix", key: "s3cret", value: "s3cret", want: http.StatusUnauthorized},
		{name: "wrong prefix", key: "s3cret", value: "Token s3cret", want: http.StatusUnauthorized},
		{name: "wrong key", key: "s3cret", value: "Bearer other", want: http.StatusUnauthorized},
		{name: "key is case-sensitive", key: "s3cret", value: "Bearer S3CRET", want: http.StatusUnauthorized},
	} {
		t.Run(tc.name, func(t *testing.T) {
			h := APIKeyAuth("Authorization", "Bearer", tc.key)(next)
			req := httptest.NewRequest(http.MethodGet, "/v1/models", nil)
			if tc.value != "" {
				req.Header.Set("Authorization", tc.value)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			if rec.Code != tc.want {
				t.Fatalf("status %d, want %d (%s)", rec.Code, tc.want, rec.Body.String())
			}
			if tc.want == http.StatusUnauthorized && rec.Header().Get("WWW-Authenticate") == "" {
				t.Fatalf("missing WWW-Authenticate header")
			}
		})
	}
}

func TestAPIKeyAuthCustomHeader(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	h := APIKeyAuth("X-Api-Key", "Key", "abc")(next)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Api-Key", "Key abc")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}

	// The default header must not satisfy a custom contract.
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Key abc")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status %d", rec.Code)
	}
}

func TestMuxProtectsV1Only(t *testing.T) {
	h := newTestMux(t, &fakeService{ready: true}, Options{
		APIKey:       "s3cret",
		APIKeyHeader: "Authorization",
		APIKeyPrefix: "Bearer",
	})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/models", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("unauthenticated /v1 status %d", rec.Code)
	}

	for _, path := range []string{"/", "/health", "/healthz", "/readyz", "/metrics"} {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("public path %s status %d", path, rec.Code)
		}
	}

	req := httptest.NewRequest(http.MethodGet, "/v1/models", nil)
	req.Header.Set("Authorization", "Bearer s3cret")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("authenticated /v1 status %d", rec.Code)
	}
}
