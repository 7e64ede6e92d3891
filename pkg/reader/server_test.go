package reader

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePinger struct{ err error }

func (p fakePinger) Ping(context.Context) error { return p.err }

func serve(t *testing.T, f *fakeStore, db Pinger, target string) *httptest.ResponseRecorder {
	t.Helper()
	handler := NewServer(testSelector(f), db).Handler()
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	handler.ServeHTTP(w, req)
	return w
}

func TestGetDayReturnsEdition(t *testing.T) {
	f := newFakeStore()
	seedDay(f, "20240110", 10)

	w := serve(t, f, fakePinger{}, "/20240110")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))

	var body map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Contains(t, body, "PaperName")
	assert.Contains(t, body, "Stories")
	assert.Contains(t, body, "TopHeadlines")

	var edition Edition
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &edition))
	assert.Len(t, edition.Stories, 4)
	assert.Contains(t, w.Body.String(), `"SiblingHeadlines"`)
}

func TestInvalidDayIsBadRequest(t *testing.T) {
	w := serve(t, newFakeStore(), fakePinger{}, "/2024011")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = serve(t, newFakeStore(), fakePinger{}, "/not-a-day")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSlugRouteForcesHeadline(t *testing.T) {
	f := newFakeStore()
	seedDay(f, "20240110", 10)

	w := serve(t, f, fakePinger{}, "/20240110/20240110-h05")
	require.Equal(t, http.StatusOK, w.Code)

	var edition Edition
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &edition))
	require.NotEmpty(t, edition.Stories)
	assert.Equal(t, "20240110-h05", edition.Stories[0].HeadlineID)
	assert.False(t, edition.Stories[0].ShowOriginal)
}

func TestSeenParameterIsHonored(t *testing.T) {
	f := newFakeStore()
	seedDay(f, "20240110", 10)

	w := serve(t, f, fakePinger{}, "/20240110?seen=20240110-h00,20240110-h01")
	require.Equal(t, http.StatusOK, w.Code)

	var edition Edition
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &edition))
	require.NotEmpty(t, edition.Stories)
	assert.Equal(t, "20240110-h02", edition.Stories[0].HeadlineID)
}

func TestTodayRoute(t *testing.T) {
	f := newFakeStore()
	seedDay(f, "20240110", 6) // today per the fixed test clock

	w := serve(t, f, fakePinger{}, "/today")
	require.Equal(t, http.StatusOK, w.Code)

	var edition Edition
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &edition))
	assert.NotEmpty(t, edition.Stories)
}

func TestHealthReflectsDatabase(t *testing.T) {
	w := serve(t, newFakeStore(), fakePinger{}, "/health")
	assert.Equal(t, http.StatusOK, w.Code)

	w = serve(t, newFakeStore(), fakePinger{err: errors.New("connection refused")}, "/health")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestCORSPreflight(t *testing.T) {
	handler := NewServer(testSelector(newFakeStore()), fakePinger{}).Handler()
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodOptions, "/today", nil)
	handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "GET, OPTIONS", w.Header().Get("Access-Control-Allow-Methods"))
}
