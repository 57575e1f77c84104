package update

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func testChecker(url string) *Checker {
	return &Checker{BaseURL: url, Repo: Repo, Client: &http.Client{Timeout: 500 * time.Millisecond}}
}

func serve(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/repos/altantutar/pyguard/releases/latest" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestLatestNewerRelease(t *testing.T) {
	srv := serve(t, http.StatusOK, `{"tag_name": "v0.4.0"}`)

	r, err := testChecker(srv.URL).Latest(context.Background(), "v0.3.0")
	require.NoError(t, err)
	require.Equal(t, "v0.4.0", r.Latest)
	require.True(t, r.NeedsUpdate())
	require.Equal(t, "go install github.com/altantutar/pyguard/cmd/pyguard@v0.4.0", r.Install)
}

func TestLatestUpToDate(t *testing.T) {
	srv := serve(t, http.StatusOK, `{"tag_name": "v0.3.0"}`)

	r, err := testChecker(srv.URL).Latest(context.Background(), "0.3.0")
	require.NoError(t, err)
	require.False(t, r.NeedsUpdate())
}

func TestLatestDevBuild(t *testing.T) {
	_, err := NewChecker().Latest(context.Background(), "dev")
	require.ErrorIs(t, err, ErrDevBuild)
}

func TestLatestFailures(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"bad json", http.StatusOK, "not json"},
		{"empty tag", http.StatusOK, `{"tag_name": ""}`},
		{"not found", http.StatusNotFound, `{}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := serve(t, tt.status, tt.body)
			r, err := testChecker(srv.URL).Latest(context.Background(), "v0.3.0")
			require.Error(t, err)
			require.Nil(t, r)
		})
	}
}

func TestLatestNetworkError(t *testing.T) {
	_, err := testChecker("http://127.0.0.1:1").Latest(context.Background(), "v0.3.0")
	require.Error(t, err)
}

func TestLatestCancelled(t *testing.T) {
	srv := serve(t, http.StatusOK, `{"tag_name": "v0.4.0"}`)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := testChecker(srv.URL).Latest(ctx, "v0.3.0")
	require.ErrorIs(t, err, context.Canceled)
}

func TestNeedsUpdate(t *testing.T) {
	tests := []struct {
		name   string
		result Result
		want   bool
	}{
		{"different versions", Result{Latest: "v0.4.0", Current: "v0.3.0"}, true},
		{"same version", Result{Latest: "v0.3.0", Current: "v0.3.0"}, false},
		{"prefix ignored", Result{Latest: "v0.3.0", Current: "0.3.0"}, false},
		{"dev version", Result{Latest: "v0.4.0", Current: "dev"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, tt.result.NeedsUpdate())
		})
	}
}
