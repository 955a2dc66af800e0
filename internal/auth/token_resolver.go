package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	log "github.com/sirupsen/logrus"
)

const (
	DefaultTTL     = 24 * 7 * time.Hour
	tokenKeyPrefix = "ironlog-token||"
	tokensSetKey   = "ironlog-tokens"
)

var ErrTokenNotFound = errors.New("token not found")

type tokenClaims struct {
	User
	IssuedAtUnix int64 `json:"issued_at"`
}

// TokenResolver maps bearer tokens to user identities. Tokens are
// registered out of band (by the auth frontend after it verified the
// credential) and expire after the configured TTL.
type TokenResolver struct {
	ttl         time.Duration
	redisClient *redis.Client
}

func NewTokenResolver(ttl time.Duration, redisClient *redis.Client) *TokenResolver {
	return &TokenResolver{
		ttl:         ttl,
		redisClient: redisClient,
	}
}

func (tr *TokenResolver) Resolve(ctx context.Context, token string) (*User, error) {
	tokenKey := tokenKeyPrefix + token
	cmd := tr.redisClient.Get(ctx, tokenKey)
	if err := cmd.Err(); err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrTokenNotFound
		}
		return nil, err
	}

	var claims tokenClaims
	if err := json.Unmarshal([]byte(cmd.Val()), &claims); err != nil {
		return nil, fmt.Errorf("unmarshal token claims: %w", err)
	}

	issuedAt := time.Unix(claims.IssuedAtUnix, 0)
	if time.Since(issuedAt) > tr.ttl {
		return nil, ErrTokenNotFound
	}

	return &claims.User, nil
}

func (tr *TokenResolver) Register(ctx context.Context, token string, user User, issuedAt time.Time) error {
	claimsJson, err := json.Marshal(tokenClaims{
		User:         user,
		IssuedAtUnix: issuedAt.Unix(),
	})
	if err != nil {
		return fmt.Errorf("marshal token claims: %w", err)
	}

	tokenKey := tokenKeyPrefix + token
	if err := tr.redisClient.Set(ctx, tokenKey, claimsJson, 0).Err(); err != nil {
		return err
	}

	// add token to the list of known tokens
	if err := tr.redisClient.SAdd(ctx, tokensSetKey, token).Err(); err != nil {
		return err
	}

	return nil
}

func (tr *TokenResolver) Revoke(ctx context.Context, token string) error {
	tokenKey := tokenKeyPrefix + token
	if err := tr.redisClient.Del(ctx, tokenKey).Err(); err != nil {
		return err
	}
	return tr.redisClient.SRem(ctx, tokensSetKey, token).Err()
}

// ScanAndClean will run through all known tokens and remove the expired ones
func (tr *TokenResolver) ScanAndClean(ctx context.Context) {
	cmd := tr.redisClient.SMembers(ctx, tokensSetKey)
	if err := cmd.Err(); err != nil {
		log.Errorf("!!! token resolver, scan and clean, get tokens: %s", err)
		return
	}

	tokens := cmd.Val()
	if len(tokens) == 0 {
		log.Warnln("=> token resolver, scan and clean abort, no tokens")
		return
	}

	log.Warnf("=> token resolver, scan and clean [%d tokens] start ...", len(tokens))
	var toRemove []string
	for _, token := range tokens {
		if _, err := tr.Resolve(ctx, token); err != nil {
			if errors.Is(err, ErrTokenNotFound) {
				toRemove = append(toRemove, token)
				continue
			}
			log.Errorf("=> token resolver, scan and clean token %s: %s", token, err)
		}
	}

	for _, token := range toRemove {
		if err := tr.Revoke(ctx, token); err != nil {
			log.Errorf("=> token resolver, clean token %s: %s", token, err)
		}
	}
}
