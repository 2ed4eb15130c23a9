package fetch

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"forkmap-backend/lib/telemetry"

	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, baseURL string) *Client {
	client, err := NewClient(Options{BaseURL: baseURL})
	require.NoError(t, err)
	return client
}

func TestFetch(t *testing.T) {
	cleanup := telemetry.SetupForTesting(t, "test:services/crawler/fetch")
	defer cleanup()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/review":
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			w.Write([]byte("<html><body>hello</body></html>"))
		case "/gone":
			w.WriteHeader(http.StatusNotFound)
		case "/down":
			w.WriteHeader(http.StatusServiceUnavailable)
		}
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second*5)
	defer cancel()

	{
		doc, err := client.Fetch(ctx, server.URL+"/review")
		require.NoError(t, err)
		require.Equal(t, server.URL+"/review", doc.SourceURL)
		require.Contains(t, doc.Body, "hello")
		require.NotEmpty(t, doc.ContentHash)
		require.False(t, doc.FetchedAt.IsZero())

		again, err := client.Fetch(ctx, server.URL+"/review")
		require.NoError(t, err)
		require.Equal(t, doc.ContentHash, again.ContentHash)
	}
	{
		_, err := client.Fetch(ctx, server.URL+"/gone")
		var fetchErr *Error
		require.ErrorAs(t, err, &fetchErr)
		require.Equal(t, KindTerminal, fetchErr.Kind)
		require.Equal(t, http.StatusNotFound, fetchErr.Status)
	}
	{
		_, err := client.Fetch(ctx, server.URL+"/down")
		var fetchErr *Error
		require.ErrorAs(t, err, &fetchErr)
		require.Equal(t, KindTransient, fetchErr.Kind)
	}
	{
		_, err := client.Fetch(ctx, "not a url at all")
		var fetchErr *Error
		require.ErrorAs(t, err, &fetchErr)
		require.Equal(t, KindTerminal, fetchErr.Kind)
	}
}

func TestFetchRetriesTransient(t *testing.T) {
	cleanup := telemetry.SetupForTesting(t, "test:services/crawler/fetch")
	defer cleanup()

	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte("finally"))
	}))
	defer server.Close()

	client, err := NewClient(Options{BaseURL: server.URL, MaxRetries: 3})
	require.NoError(t, err)

	doc, err := client.Fetch(context.Background(), server.URL+"/flaky")
	require.NoError(t, err)
	require.Contains(t, doc.Body, "finally")
	require.Equal(t, 3, attempts)
}

func TestFetchRateLimit(t *testing.T) {
	cleanup := telemetry.SetupForTesting(t, "test:services/crawler/fetch")
	defer cleanup()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	}))
	defer server.Close()

	client, err := NewClient(Options{
		BaseURL:     server.URL,
		MinInterval: time.Millisecond * 50,
	})
	require.NoError(t, err)

	start := time.Now()
	for i := 0; i < 3; i++ {
		_, err := client.Fetch(context.Background(), server.URL+"/")
		require.NoError(t, err)
	}
	// first request is free, the next two wait out the interval
	require.GreaterOrEqual(t, time.Since(start), time.Millisecond*100)
}

func TestFetchCancellation(t *testing.T) {
	cleanup := telemetry.SetupForTesting(t, "test:services/crawler/fetch")
	defer cleanup()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(time.Second)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.Fetch(ctx, server.URL+"/slow")
	require.Error(t, err)
	var fetchErr *Error
	require.ErrorAs(t, err, &fetchErr)
	require.True(t, errors.Is(fetchErr.Err, context.Canceled) || fetchErr.Kind == KindTransient)
}
