package access

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/movienight/backend/pkg/utils"
)

func TestDisabledGate(t *testing.T) {
	g, err := NewGate(Config{}, nil)
	require.NoError(t, err)
	assert.False(t, g.Enabled())
	assert.True(t, g.Check("anything"))
	assert.NoError(t, g.ValidateToken(""))

	var nilGate *Gate
	assert.False(t, nilGate.Enabled())
}

func TestGateIssuesAndValidatesTokens(t *testing.T) {
	g, err := NewGate(Config{Passphrase: "popcorn", TokenSecret: "s3cret", TokenHours: 1}, nil)
	require.NoError(t, err)
	require.True(t, g.Enabled())
	assert.True(t, g.Check("popcorn"))
	assert.False(t, g.Check("butter"))

	token, expires, err := g.Tokens().Generate()
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), expires, time.Minute)
	assert.NoError(t, g.ValidateToken(token))
	assert.ErrorIs(t, g.ValidateToken(token+"x"), ErrInvalidToken)

	other, err := NewGate(Config{Passphrase: "popcorn", TokenSecret: "different"}, nil)
	require.NoError(t, err)
	assert.ErrorIs(t, other.ValidateToken(token), ErrInvalidToken)
}

func TestGateAcceptsBcryptHash(t *testing.T) {
	hash, err := utils.HashPassphrase("popcorn")
	require.NoError(t, err)
	g, err := NewGate(Config{Passphrase: hash}, nil)
	require.NoError(t, err)
	assert.True(t, g.Check("popcorn"))
	assert.False(t, g.Check(hash))
}

func TestTokenExpiry(t *testing.T) {
	s := NewTokenService([]byte("k"), 1)
	token, _, err := s.Generate()
	require.NoError(t, err)

	s.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	_, err = s.Validate(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestLoginHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)
	g, err := NewGate(Config{Passphrase: "popcorn", TokenSecret: "k"}, nil)
	require.NoError(t, err)
	h := NewHandler(g, nil)
	r := gin.New()
	r.GET("/api/access", h.Status)
	r.POST("/api/access", h.Login)

	post := func(body string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/access", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		r.ServeHTTP(rec, req)
		return rec
	}

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/access", nil))
	assert.JSONEq(t, `{"required":true}`, rec.Body.String())

	rec = post(`{"passphrase":"butter"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = post(`{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = post(`{"passphrase":"popcorn"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	var out LoginResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.True(t, out.Success)
	assert.NoError(t, g.ValidateToken(out.Token))
}
