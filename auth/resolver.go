package auth

import (
	"log/slog"
	"time"

	"chat-server/domain"
	"chat-server/repositories"

	"github.com/jellydator/ttlcache/v3"
)

// Resolver decodes an opaque bearer token into an identity. Resolution
// never fails: an invalid, expired or absent token yields the anonymous
// identity, and callers must check for anonymity before granting access.
//
// Resolved identities are cached for the token's remaining lifetime to
// spare a storage read per WebSocket handshake. Only the token-to-identity
// mapping is cached; room authorization is re-checked on every privileged
// action and never passes through this cache.
type Resolver struct {
	tokens *Tokens
	users  repositories.IUserRepository
	cache  *ttlcache.Cache[string, domain.Identity]
	log    *slog.Logger
}

func NewResolver(tokens *Tokens, users repositories.IUserRepository, log *slog.Logger) *Resolver {
	cache := ttlcache.New(
		ttlcache.WithDisableTouchOnHit[string, domain.Identity](),
	)
	go cache.Start()

	return &Resolver{tokens: tokens, users: users, cache: cache, log: log}
}

// Resolve turns a raw token into an identity, or Anonymous.
func (r *Resolver) Resolve(rawToken string) domain.Identity {
	if rawToken == "" {
		return domain.Anonymous
	}

	if item := r.cache.Get(rawToken); item != nil {
		return item.Value()
	}

	claims, err := r.tokens.Validate(rawToken)
	if err != nil {
		r.log.Debug("token rejected", "error", err)
		return domain.Anonymous
	}

	user, err := r.users.GetUserByID(claims.UserID)
	if err != nil {
		r.log.Debug("token user not found", "user_id", claims.UserID)
		return domain.Anonymous
	}

	identity := domain.Identity{ID: user.ID, Email: user.Email, Username: user.Username}

	if exp := claims.ExpiresAt; exp != nil {
		if remaining := time.Until(exp.Time); remaining > 0 {
			r.cache.Set(rawToken, identity, remaining)
		}
	}
	return identity
}

// Stop releases the cache janitor goroutine.
func (r *Resolver) Stop() {
	r.cache.Stop()
}
