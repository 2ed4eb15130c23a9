package fetch

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"forkmap-backend/lib/telemetry"

	"github.com/stretchr/testify/require"
)

func TestDiscoverRest(t *testing.T) {
	cleanup := telemetry.SetupForTesting(t, "test:services/crawler/fetch")
	defer cleanup()

	var server *httptest.Server
	server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/wp-json/wp/v2/posts", r.URL.Path)
		require.Equal(t, "id,link", r.URL.Query().Get("_fields"))

		switch r.URL.Query().Get("page") {
		case "1":
			posts := make([]wpPostRef, postsPerPage)
			for i := range posts {
				posts[i] = wpPostRef{
					ID:   int64(i + 1),
					Link: fmt.Sprintf("%s/review-%d/", server.URL, i+1),
				}
			}
			json.NewEncoder(w).Encode(posts)
		case "2":
			json.NewEncoder(w).Encode([]wpPostRef{
				{ID: 1000, Link: server.URL + "/review-last/"},
			})
		default:
			// wordpress answers 400 past the final page
			w.WriteHeader(http.StatusBadRequest)
		}
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)

	urls, err := client.Discover(context.Background())
	require.NoError(t, err)
	require.Len(t, urls, postsPerPage+1)
	require.Equal(t, server.URL+"/review-1/", urls[0])
	require.Equal(t, server.URL+"/review-last/", urls[postsPerPage])
}

func TestDiscoverIndexFallback(t *testing.T) {
	cleanup := telemetry.SetupForTesting(t, "test:services/crawler/fetch")
	defer cleanup()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/wp-json/wp/v2/posts":
			// rest api disabled on this install
			w.WriteHeader(http.StatusForbidden)
		case "/":
			fmt.Fprint(w, `<html><body>
				<h2 class="entry-title"><a href="/first-review/">First</a></h2>
				<h2 class="entry-title"><a href="/second-review/">Second</a></h2>
				<h2 class="entry-title"><a href="https://elsewhere.example.com/spam/">Spam</a></h2>
				<h2 class="entry-title"><a href="/page/2/">Older posts</a></h2>
			</body></html>`)
		case "/page/2/":
			fmt.Fprint(w, `<html><body>
				<h2 class="entry-title"><a href="/third-review/">Third</a></h2>
				<h2 class="entry-title"><a href="/first-review/">First again</a></h2>
			</body></html>`)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)

	urls, err := client.Discover(context.Background())
	require.NoError(t, err)
	require.Equal(t, []string{
		server.URL + "/first-review/",
		server.URL + "/second-review/",
		server.URL + "/third-review/",
	}, urls)
}
