package web

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOriginChecker(t *testing.T) {
	check := OriginChecker([]string{"https://app.example.com", " HTTP://LOCALHOST:5173 "})

	for origin, want := range map[string]bool{
		"":                         true,
		"https://app.example.com":  true,
		"http://localhost:5173":    true,
		"https://evil.example.com": false,
		"http://app.example.com":   false,
		"not a url":                false,
	} {
		r := httptest.NewRequest(http.MethodGet, "/ws/chat", nil)
		if origin != "" {
			r.Header.Set("Origin", origin)
		}
		assert.Equal(t, want, check(r), origin)
	}

	r := httptest.NewRequest(http.MethodGet, "/ws/chat", nil)
	r.Header.Set("Origin", "https://anything.example")
	assert.True(t, OriginChecker([]string{"*"})(r))
}

func TestBearerToken(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/ws/chat?token=from-query", nil)
	assert.Equal(t, "from-query", BearerToken(r))

	r.Header.Set("Authorization", "Bearer  from-header ")
	assert.Equal(t, "from-header", BearerToken(r))

	r = httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Authorization", "Basic abc")
	assert.Empty(t, BearerToken(r))
}

func TestQueryInt64(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/?after=42&bad=x", nil)

	v, err := QueryInt64(r, "after", 0)
	require.NoError(t, err)
	assert.EqualValues(t, 42, v)

	v, err = QueryInt64(r, "missing", 7)
	require.NoError(t, err)
	assert.EqualValues(t, 7, v)

	_, err = QueryInt64(r, "bad", 0)
	assert.Error(t, err)

	assert.Equal(t, 3, QueryInt(r, "bad", 3))
}

func TestDecodeJSON(t *testing.T) {
	var dst struct {
		Text string `json:"text"`
	}
	ok := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"text":"hi"}`))
	require.NoError(t, DecodeJSON(ok, &dst))
	assert.Equal(t, "hi", dst.Text)

	for _, body := range []string{`{"text":"hi","extra":1}`, `{"text":"hi"} {}`, `{`} {
		r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
		assert.Error(t, DecodeJSON(r, &dst), body)
	}
}

func TestError(t *testing.T) {
	rec := httptest.NewRecorder()
	Error(rec, http.StatusNotFound, "not_found", "ride ride-9")

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"error":{"code":"not_found","message":"ride ride-9"}}`, rec.Body.String())
}

func TestMiddlewareChain(t *testing.T) {
	var seen string
	h := RequestID(Logger(zerolog.Nop())(Recoverer(zerolog.Nop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = RequestIDFrom(r.Context())
		if r.URL.Path == "/panic" {
			panic("boom")
		}
		w.WriteHeader(http.StatusNoContent)
	}))))

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "req-1")
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "req-1", seen)
	assert.Equal(t, "req-1", rec.Header().Get("X-Request-ID"))

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/panic", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotEmpty(t, seen)
	assert.NotEqual(t, "req-1", seen)
}
