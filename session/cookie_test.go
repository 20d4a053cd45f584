package session

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteAndRead(t *testing.T) {
	cfg := CookieConfig{Secure: true}
	rec := httptest.NewRecorder()
	Write(rec, cfg, "tok-value", time.Now().Add(time.Hour))

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	c := cookies[0]
	assert.Equal(t, DefaultCookieName, c.Name)
	assert.Equal(t, "/", c.Path)
	assert.True(t, c.HttpOnly)
	assert.True(t, c.Secure)
	assert.Equal(t, http.SameSiteLaxMode, c.SameSite)
	assert.Greater(t, c.MaxAge, 3500)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(c)
	got, ok := Read(req, cfg)
	require.True(t, ok)
	assert.Equal(t, "tok-value", got)
}

func TestReadMissingOrEmpty(t *testing.T) {
	cfg := CookieConfig{Name: "custom"}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	_, ok := Read(req, cfg)
	assert.False(t, ok)

	req.AddCookie(&http.Cookie{Name: "custom", Value: ""})
	_, ok = Read(req, cfg)
	assert.False(t, ok)
}

func TestClear(t *testing.T) {
	rec := httptest.NewRecorder()
	Clear(rec, CookieConfig{Name: "custom", Path: "/app"})

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, "custom", cookies[0].Name)
	assert.Equal(t, "/app", cookies[0].Path)
	assert.Equal(t, -1, cookies[0].MaxAge)
	assert.Empty(t, cookies[0].Value)
}

func TestParseSameSite(t *testing.T) {
	assert.Equal(t, http.SameSiteStrictMode, ParseSameSite("Strict"))
	assert.Equal(t, http.SameSiteNoneMode, ParseSameSite("none"))
	assert.Equal(t, http.SameSiteLaxMode, ParseSameSite("bogus"))
}
