package ingest

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	t.Setenv("NEWS_DATA_API_KEY", "test-key")
	client, err := NewClient(srv.URL)
	require.NoError(t, err)
	return client
}

func TestFetchByCategoryQueryParams(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "test-key", q.Get("apikey"))
		assert.Equal(t, "us", q.Get("country"))
		assert.Equal(t, "en", q.Get("language"))
		assert.Equal(t, "sports", q.Get("category"))
		assert.Equal(t, "top", q.Get("prioritydomain"))
		assert.Empty(t, q.Get("page"))

		_, _ = w.Write([]byte(`{"status":"success","results":[{"title":"Big Game Tonight","link":"https://x","pubDate":"2024-01-01 10:00:00","image_url":"https://x/i.jpg","source_id":"espn"}],"nextPage":"tok123"}`))
	})

	page, err := client.FetchByCategory(context.Background(), "sports", true, "")
	require.NoError(t, err)
	assert.Equal(t, "tok123", page.NextPage)
	require.Len(t, page.Results, 1)
	assert.Equal(t, "Big Game Tonight", page.Results[0].Title)
}

func TestFetchWildcardOmitsFilters(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.False(t, q.Has("category"))
		assert.False(t, q.Has("prioritydomain"))
		_, _ = w.Write([]byte(`{"status":"success","results":[]}`))
	})

	_, err := client.FetchByCategory(context.Background(), "", false, "")
	require.NoError(t, err)
}

func TestFetchByQuerySetsQ(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "mars rover", r.URL.Query().Get("q"))
		assert.Equal(t, "tok", r.URL.Query().Get("page"))
		_, _ = w.Write([]byte(`{"status":"success","results":[]}`))
	})

	_, err := client.FetchByQuery(context.Background(), "mars rover", true, "tok")
	require.NoError(t, err)
}

func TestFetchErrorStatusSurfacesCodeAndMessage(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"status":"error","results":{"code":"RateLimitExceeded","message":"slow down"}}`))
	})

	_, err := client.FetchByCategory(context.Background(), "sports", true, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "RateLimitExceeded")
	assert.Contains(t, err.Error(), "slow down")
}

func TestFetchUnexpectedStatusFails(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":"maintenance"}`))
	})

	_, err := client.FetchByCategory(context.Background(), "sports", true, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "maintenance")
}
