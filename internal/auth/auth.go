// Package auth holds the client's credentials: the access/refresh token pair
// kept in persistent storage and the identity derived from the access token.
package auth

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/alphabot-ai/feedline/internal/store"
)

const (
	AccessTokenKey  = "access_token"
	RefreshTokenKey = "refresh_token"
)

// TokenStore keeps the access/refresh token pair in a key/value store.
type TokenStore struct {
	kv     store.KV
	sealer *Sealer
	log    *slog.Logger
}

// Option configures a TokenStore.
type Option func(*TokenStore)

// WithSealer seals values before they reach storage.
func WithSealer(s *Sealer) Option {
	return func(t *TokenStore) { t.sealer = s }
}

// WithLogger sets the logger used for storage warnings.
func WithLogger(l *slog.Logger) Option {
	return func(t *TokenStore) { t.log = l }
}

// NewTokenStore creates a token store over kv.
func NewTokenStore(kv store.KV, opts ...Option) *TokenStore {
	t := &TokenStore{kv: kv, log: slog.Default()}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Set persists both tokens, overwriting whatever was stored before.
func (t *TokenStore) Set(ctx context.Context, access, refresh string) error {
	if err := t.put(ctx, AccessTokenKey, access); err != nil {
		return fmt.Errorf("store access token: %w", err)
	}
	if err := t.put(ctx, RefreshTokenKey, refresh); err != nil {
		// never leave an access token without its pair
		if delErr := t.kv.Delete(ctx, AccessTokenKey); delErr != nil {
			t.log.Error("roll back access token", "error", delErr)
		}
		return fmt.Errorf("store refresh token: %w", err)
	}
	return nil
}

// Get returns the access token, or "" when none is stored.
func (t *TokenStore) Get(ctx context.Context) (string, error) {
	return t.read(ctx, AccessTokenKey)
}

// AccessToken lets the store act as the API client's token source.
func (t *TokenStore) AccessToken(ctx context.Context) (string, error) {
	return t.Get(ctx)
}

// Refresh returns the stored refresh token. Nothing in the client uses it to
// mint new access tokens.
func (t *TokenStore) Refresh(ctx context.Context) (string, error) {
	return t.read(ctx, RefreshTokenKey)
}

// Clear removes both tokens.
func (t *TokenStore) Clear(ctx context.Context) error {
	if err := t.kv.Delete(ctx, AccessTokenKey, RefreshTokenKey); err != nil {
		return fmt.Errorf("clear tokens: %w", err)
	}
	return nil
}

// CurrentUserID derives the logged-in user's id from the stored access token.
// It is recomputed on every call; any failure means "no identity".
func (t *TokenStore) CurrentUserID(ctx context.Context) (int64, bool) {
	token, err := t.Get(ctx)
	if err != nil {
		t.log.Warn("read access token", "error", err)
		return 0, false
	}
	return UserIDFromToken(token)
}

func (t *TokenStore) put(ctx context.Context, key, value string) error {
	if t.sealer != nil {
		sealed, err := t.sealer.Seal(value)
		if err != nil {
			return err
		}
		value = sealed
	}
	return t.kv.Set(ctx, key, value)
}

func (t *TokenStore) read(ctx context.Context, key string) (string, error) {
	value, err := t.kv.Get(ctx, key)
	if errors.Is(err, store.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read %s: %w", key, err)
	}
	if t.sealer != nil {
		plain, err := t.sealer.Open(value)
		if err != nil {
			t.log.Warn("stored value cannot be opened, treating as absent", "key", key, "error", err)
			return "", nil
		}
		value = plain
	}
	return value, nil
}

// UserIDFromToken decodes the second dot-separated segment of token as
// base64 JSON and returns its user_id claim.
func UserIDFromToken(token string) (int64, bool) {
	parts := strings.Split(token, ".")
	if len(parts) < 2 {
		return 0, false
	}
	payload, err := decodeSegment(parts[1])
	if err != nil {
		return 0, false
	}
	var claims struct {
		UserID json.RawMessage `json:"user_id"`
	}
	if err := json.Unmarshal(payload, &claims); err != nil || len(claims.UserID) == 0 || string(claims.UserID) == "null" {
		return 0, false
	}
	var id int64
	if err := json.Unmarshal(claims.UserID, &id); err == nil {
		return id, true
	}
	var s string
	if err := json.Unmarshal(claims.UserID, &s); err == nil {
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return n, true
		}
	}
	return 0, false
}

func decodeSegment(input string) ([]byte, error) {
	if input == "" {
		return nil, errors.New("empty segment")
	}
	if b, err := base64.RawURLEncoding.DecodeString(input); err == nil {
		return b, nil
	}
	if b, err := base64.URLEncoding.DecodeString(input); err == nil {
		return b, nil
	}
	if b, err := base64.StdEncoding.DecodeString(input); err == nil {
		return b, nil
	}
	return base64.RawStdEncoding.DecodeString(input)
}
