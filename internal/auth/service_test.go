package auth

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rideshare/internal/chat"
	"rideshare/internal/config"
)

func newKey(t *testing.T) *rsa.PrivateKey {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	return key
}

func TestResolveIssuedToken(t *testing.T) {
	svc := NewWithKey(newKey(t), zerolog.Nop())

	tok, err := svc.IssueToken("u-42", "Dana", time.Hour)
	require.NoError(t, err)

	sender, err := svc.Resolve(context.Background(), tok)
	require.NoError(t, err)
	assert.Equal(t, chat.Sender{ID: "u-42", Name: "Dana"}, sender)
}

func TestResolveFallsBackToSubject(t *testing.T) {
	svc := NewWithKey(newKey(t), zerolog.Nop())
	tok, err := svc.IssueToken("u-42", "", time.Hour)
	require.NoError(t, err)

	sender, err := svc.Resolve(context.Background(), tok)
	require.NoError(t, err)
	assert.Equal(t, "u-42", sender.Name)
}

func TestResolveNumericSubject(t *testing.T) {
	key := newKey(t)
	svc := NewWithKey(key, zerolog.Nop())
	tok, err := jwt.NewWithClaims(jwt.SigningMethodRS256, jwt.MapClaims{
		"sub": 7,
		"exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString(key)
	require.NoError(t, err)

	sender, err := svc.Resolve(context.Background(), tok)
	require.NoError(t, err)
	assert.Equal(t, "7", sender.ID)
}

func TestResolveRejectsBadTokens(t *testing.T) {
	key := newKey(t)
	svc := NewWithKey(key, zerolog.Nop())
	other := NewWithKey(newKey(t), zerolog.Nop())

	foreign, err := other.IssueToken("u-1", "x", time.Hour)
	require.NoError(t, err)
	expired, err := svc.IssueToken("u-1", "x", -time.Minute)
	require.NoError(t, err)
	noExp, err := jwt.NewWithClaims(jwt.SigningMethodRS256, jwt.MapClaims{"sub": "u-1"}).SignedString(key)
	require.NoError(t, err)
	hmac, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "u-1", "exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte("secret"))
	require.NoError(t, err)

	for name, tok := range map[string]string{
		"garbage": "not-a-jwt",
		"foreign": foreign,
		"expired": expired,
		"no exp":  noExp,
		"hmac":    hmac,
	} {
		_, err := svc.Resolve(context.Background(), tok)
		assert.ErrorIs(t, err, chat.ErrUnauthorized, name)
	}
}

func TestNewServiceKeys(t *testing.T) {
	key := newKey(t)
	privPEM := string(pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)}))
	pubDER, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	require.NoError(t, err)
	pubPEM := string(pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pubDER}))
	ctx := context.Background()

	signer, err := NewService(ctx, config.Config{Env: "prod", JWTPrivatePEM: privPEM}, zerolog.Nop())
	require.NoError(t, err)
	tok, err := signer.IssueToken("u-1", "Ana", time.Hour)
	require.NoError(t, err)

	verifier, err := NewService(ctx, config.Config{Env: "prod", JWTPublicPEM: pubPEM}, zerolog.Nop())
	require.NoError(t, err)
	sender, err := verifier.Resolve(ctx, tok)
	require.NoError(t, err)
	assert.Equal(t, "Ana", sender.Name)

	_, err = verifier.IssueToken("u-1", "Ana", time.Hour)
	assert.Error(t, err)

	_, err = NewService(ctx, config.Config{Env: "prod"}, zerolog.Nop())
	assert.Error(t, err)

	dev, err := NewService(ctx, config.Config{Env: "dev"}, zerolog.Nop())
	require.NoError(t, err)
	_, err = dev.IssueToken("u-1", "Ana", time.Hour)
	assert.NoError(t, err)

	_, err = NewService(ctx, config.Config{Env: "prod", JWTPublicPEM: "garbage"}, zerolog.Nop())
	assert.Error(t, err)
}

func TestDevToken(t *testing.T) {
	svc := NewWithKey(newKey(t), zerolog.Nop())

	rec := httptest.NewRecorder()
	svc.DevToken(rec, httptest.NewRequest(http.MethodPost, "/api/dev/token", strings.NewReader(`{"userId":"u-9","name":"Kim"}`)))
	require.Equal(t, http.StatusOK, rec.Code)

	var out struct {
		AccessToken string `json:"accessToken"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&out))
	sender, err := svc.Resolve(context.Background(), out.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, chat.Sender{ID: "u-9", Name: "Kim"}, sender)

	rec = httptest.NewRecorder()
	svc.DevToken(rec, httptest.NewRequest(http.MethodPost, "/api/dev/token", strings.NewReader(`{"name":"Kim"}`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDisplayName(t *testing.T) {
	assert.Equal(t, "Ana", displayName(" Ana ", "ana@example.com", "sub"))
	assert.Equal(t, "ana", displayName("", "ana@example.com", "sub"))
	assert.Equal(t, "sub", displayName("", "", "sub"))
}
