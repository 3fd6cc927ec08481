// Package auth resolves bearer tokens to chat identities. It accepts RS256
// access tokens issued by the platform and, when configured, Google ID
// tokens verified over OIDC.
package auth

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"

	"rideshare/internal/chat"
	"rideshare/internal/config"
	"rideshare/internal/web"
)

const googleIssuer = "https://accounts.google.com"

type Service struct {
	priv  *rsa.PrivateKey
	pub   *rsa.PublicKey
	oidcV *oidc.IDTokenVerifier
	log   zerolog.Logger
}

func NewService(ctx context.Context, cfg config.Config, log zerolog.Logger) (*Service, error) {
	s := &Service{log: log}
	if err := s.initKeys(cfg); err != nil {
		return nil, err
	}
	if cfg.GoogleClientID != "" {
		provider, err := oidc.NewProvider(ctx, googleIssuer)
		if err != nil {
			return nil, fmt.Errorf("oidc provider: %w", err)
		}
		s.oidcV = provider.Verifier(&oidc.Config{ClientID: cfg.GoogleClientID})
	}
	return s, nil
}

// NewWithKey builds a Service around an existing key pair.
func NewWithKey(priv *rsa.PrivateKey, log zerolog.Logger) *Service {
	return &Service{priv: priv, pub: &priv.PublicKey, log: log}
}

func (s *Service) initKeys(cfg config.Config) error {
	if strings.TrimSpace(cfg.JWTPrivatePEM) != "" {
		key, err := jwt.ParseRSAPrivateKeyFromPEM([]byte(cfg.JWTPrivatePEM))
		if err != nil {
			return fmt.Errorf("parse JWT_PRIVATE_PEM: %w", err)
		}
		s.priv, s.pub = key, &key.PublicKey
		return nil
	}
	if strings.TrimSpace(cfg.JWTPublicPEM) != "" {
		key, err := jwt.ParseRSAPublicKeyFromPEM([]byte(cfg.JWTPublicPEM))
		if err != nil {
			return fmt.Errorf("parse JWT_PUBLIC_PEM: %w", err)
		}
		s.pub = key
		return nil
	}
	if cfg.Env != "dev" {
		return errors.New("JWT_PUBLIC_PEM or JWT_PRIVATE_PEM is required outside dev")
	}
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return fmt.Errorf("generate dev key: %w", err)
	}
	s.log.Warn().Msg("no JWT key configured; using an ephemeral dev key")
	s.priv, s.pub = key, &key.PublicKey
	return nil
}

// Resolve implements chat.Directory.
func (s *Service) Resolve(ctx context.Context, raw string) (chat.Sender, error) {
	sender, err := s.resolveJWT(raw)
	if err == nil {
		return sender, nil
	}
	if s.oidcV != nil {
		if sender, oerr := s.resolveOIDC(ctx, raw); oerr == nil {
			return sender, nil
		}
	}
	return chat.Sender{}, fmt.Errorf("%w: %w", chat.ErrUnauthorized, err)
}

func (s *Service) resolveJWT(raw string) (chat.Sender, error) {
	cl := jwt.MapClaims{}
	_, err := jwt.ParseWithClaims(raw, cl, func(t *jwt.Token) (any, error) {
		return s.pub, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return chat.Sender{}, err
	}

	var uid string
	switch v := cl["sub"].(type) {
	case string:
		uid = v
	case float64:
		uid = strconv.FormatInt(int64(v), 10)
	}
	if uid == "" {
		return chat.Sender{}, errors.New("bad sub")
	}
	name, _ := cl["name"].(string)
	return chat.Sender{ID: uid, Name: displayName(name, "", uid)}, nil
}

func (s *Service) resolveOIDC(ctx context.Context, raw string) (chat.Sender, error) {
	idTok, err := s.oidcV.Verify(ctx, raw)
	if err != nil {
		return chat.Sender{}, err
	}
	var claims struct {
		Sub   string `json:"sub"`
		Email string `json:"email"`
		Name  string `json:"name"`
	}
	if err := idTok.Claims(&claims); err != nil {
		return chat.Sender{}, err
	}
	return chat.Sender{ID: "google:" + claims.Sub, Name: displayName(claims.Name, claims.Email, claims.Sub)}, nil
}

// IssueToken signs an RS256 access token for userID.
func (s *Service) IssueToken(userID, name string, ttl time.Duration) (string, error) {
	if s.priv == nil {
		return "", errors.New("token signing is not configured")
	}
	now := time.Now()
	claims := jwt.MapClaims{
		"sub":  userID,
		"name": name,
		"exp":  now.Add(ttl).Unix(),
		"iat":  now.Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(s.priv)
}

// DevToken issues a token for any user. Only mounted in dev.
func (s *Service) DevToken(w http.ResponseWriter, r *http.Request) {
	var in struct {
		UserID string `json:"userId"`
		Name   string `json:"name"`
	}
	if err := web.DecodeJSON(r, &in); err != nil || strings.TrimSpace(in.UserID) == "" {
		web.Error(w, http.StatusBadRequest, "validation", "userId is required")
		return
	}
	tok, err := s.IssueToken(in.UserID, in.Name, 72*time.Hour)
	if err != nil {
		web.Error(w, http.StatusInternalServerError, "internal", err.Error())
		return
	}
	web.JSON(w, http.StatusOK, map[string]any{"accessToken": tok})
}

func displayName(name, email, fallback string) string {
	if name = strings.TrimSpace(name); name != "" {
		return name
	}
	if email != "" {
		if at := strings.IndexByte(email, '@'); at > 0 {
			return email[:at]
		}
		return email
	}
	return fallback
}
