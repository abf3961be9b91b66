package fetcher

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFetch_OK(t *testing.T) {
	var gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte("<html><body>§ 1 Geltungsbereich</body></html>"))
	}))
	defer srv.Close()

	html, err := NewFetcher(5*time.Second, "UniRAGIngestor/1.0").Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Contains(t, html, "§ 1 Geltungsbereich")
	assert.Equal(t, "UniRAGIngestor/1.0", gotUA)
}

func TestFetch_DecodesLatin1(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=iso-8859-1")
		// "Gesetz über" in ISO-8859-1
		_, _ = w.Write([]byte("<p>Gesetz \xfcber</p>"))
	}))
	defer srv.Close()

	html, err := NewFetcher(5*time.Second, "test").Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Contains(t, html, "Gesetz über")
}

func TestFetch_Errors(t *testing.T) {
	notFound := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer notFound.Close()

	empty := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer empty.Close()

	large := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(strings.Repeat("x", 64)))
	}))
	defer large.Close()

	tests := []struct {
		name    string
		fetcher *Fetcher
		url     string
	}{
		{"http 404", NewFetcher(time.Second, "t"), notFound.URL},
		{"empty body", NewFetcher(time.Second, "t"), empty.URL},
		{"too large", NewFetcher(time.Second, "t").WithMaxContentSize(16), large.URL},
		{"unsupported scheme", NewFetcher(time.Second, "t"), "ftp://example.com/file"},
		{"unparseable url", NewFetcher(time.Second, "t"), "http://[::1"},
		{"connection refused", NewFetcher(time.Second, "t"), "http://127.0.0.1:1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			html, err := tt.fetcher.Fetch(context.Background(), tt.url)
			assert.Empty(t, html)
			assert.ErrorIs(t, err, ErrFetch)
		})
	}
}

func TestFetch_ContextCanceled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewFetcher(time.Second, "t").Fetch(ctx, srv.URL)
	assert.ErrorIs(t, err, ErrFetch)
}
