package client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/examvault/harvester/internal/types"
)

var testID = types.CandidateID{Category: "cv", Kind: types.KindMCQ, Vintage: 24, Sequence: 1}

func newTestClient(t *testing.T, handler http.HandlerFunc) *HTTPClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := NewHTTPClient(HTTPConfig{
		BaseURL:      srv.URL,
		SessionToken: "test-token",
	})
	require.NoError(t, err)
	return c
}

func TestNewHTTPClientValidation(t *testing.T) {
	_, err := NewHTTPClient(HTTPConfig{SessionToken: "x"})
	assert.Error(t, err, "base URL required")

	_, err = NewHTTPClient(HTTPConfig{BaseURL: "https://bank.example"})
	assert.Error(t, err, "session token required")
}

func TestProbeStatuses(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		want     ProbeStatus
		wantKind ErrorKind
		wantErr  bool
	}{
		{"exists", http.StatusOK, ProbeExists, 0, false},
		{"absent", http.StatusNotFound, ProbeAbsent, 0, false},
		{"auth", http.StatusUnauthorized, ProbeAbsent, KindAuth, true},
		{"throttled", http.StatusTooManyRequests, ProbeAbsent, KindRateLimited, true},
		{"server error", http.StatusBadGateway, ProbeAbsent, KindServer, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, http.MethodHead, r.Method)
				assert.Equal(t, "/records/cv-mcq-24-001", r.URL.Path)
				assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
				w.WriteHeader(tt.status)
			})

			got, err := c.Probe(context.Background(), testID)
			if tt.wantErr {
				var rerr *RemoteError
				require.ErrorAs(t, err, &rerr)
				assert.Equal(t, tt.wantKind, rerr.Kind)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFetchReturnsPayload(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		_, _ = w.Write([]byte(`{"id":"cv-mcq-24-001"}`))
	})

	body, err := c.Fetch(context.Background(), testID)
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"cv-mcq-24-001"}`, string(body))
}

func TestFetchGoneIsNotFound(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusGone)
	})

	_, err := c.Fetch(context.Background(), testID)
	var rerr *RemoteError
	require.ErrorAs(t, err, &rerr)
	assert.Equal(t, KindNotFound, rerr.Kind)
}

func TestProbeTimeoutClassifiedAsTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	t.Cleanup(srv.Close)

	c, err := NewHTTPClient(HTTPConfig{
		BaseURL:      srv.URL,
		SessionToken: "test-token",
		ProbeTimeout: 20 * time.Millisecond,
	})
	require.NoError(t, err)

	_, err = c.Probe(context.Background(), testID)
	var rerr *RemoteError
	require.ErrorAs(t, err, &rerr)
	assert.Equal(t, KindTimeout, rerr.Kind)
}
