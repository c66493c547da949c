package channel

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/vhvplatform/go-whatsapp-automation-service/internal/domain"
	"github.com/vhvplatform/go-whatsapp-automation-service/internal/repository"
	"github.com/vhvplatform/go-whatsapp-automation-service/internal/shared/logger"
)

// ErrCredentialsNotFound is returned when a team has no usable channel credentials
var ErrCredentialsNotFound = errors.New("channel credentials not found")

// CredentialStore is the persistence the credential service needs
type CredentialStore interface {
	GetChannelCredentials(ctx context.Context, teamID string) (*domain.ChannelCredentials, error)
	SaveChannelCredentials(ctx context.Context, teamID string, creds domain.ChannelCredentials) error
}

// CredentialCache caches resolved credentials per team
type CredentialCache interface {
	Get(ctx context.Context, teamID string) (*domain.ChannelCredentials, error)
	Set(ctx context.Context, teamID string, creds domain.ChannelCredentials) error
	Delete(ctx context.Context, teamID string) error
}

// CredentialService resolves and stores per-team channel credentials.
// The cache is optional.
type CredentialService struct {
	store CredentialStore
	cache CredentialCache
	log   *logger.Logger
}

// NewCredentialService creates a credential service; cache may be nil
func NewCredentialService(store CredentialStore, cache CredentialCache, log *logger.Logger) *CredentialService {
	return &CredentialService{store: store, cache: cache, log: log}
}

// Resolve returns the team's credentials, or ErrCredentialsNotFound when
// none are stored or they are incomplete
func (s *CredentialService) Resolve(ctx context.Context, teamID string) (*domain.ChannelCredentials, error) {
	if s.cache != nil {
		creds, err := s.cache.Get(ctx, teamID)
		if err != nil {
			s.log.Warn("Credential cache read failed", "team_id", teamID, "error", err)
		} else if creds != nil {
			return creds, nil
		}
	}

	creds, err := s.store.GetChannelCredentials(ctx, teamID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrCredentialsNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load channel credentials: %w", err)
	}
	if !creds.Valid() {
		return nil, ErrCredentialsNotFound
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, teamID, *creds); err != nil {
			s.log.Warn("Credential cache write failed", "team_id", teamID, "error", err)
		}
	}
	return creds, nil
}

// Save stores the team's credentials and drops any cached copy
func (s *CredentialService) Save(ctx context.Context, teamID string, creds domain.ChannelCredentials) error {
	if err := s.store.SaveChannelCredentials(ctx, teamID, creds); err != nil {
		return err
	}
	if s.cache != nil {
		if err := s.cache.Delete(ctx, teamID); err != nil {
			s.log.Warn("Credential cache invalidation failed", "team_id", teamID, "error", err)
		}
	}
	return nil
}

// RedisCredentialCache stores credentials as JSON under a per-team key with a TTL
type RedisCredentialCache struct {
	rdb *goredis.Client
	ttl time.Duration
}

// NewRedisCredentialCache creates a Redis-backed credential cache
func NewRedisCredentialCache(rdb *goredis.Client, ttl time.Duration) *RedisCredentialCache {
	return &RedisCredentialCache{rdb: rdb, ttl: ttl}
}

func credentialKey(teamID string) string {
	return fmt.Sprintf("channel:credentials:%s", teamID)
}

// Get returns the cached credentials, or nil on a miss
func (c *RedisCredentialCache) Get(ctx context.Context, teamID string) (*domain.ChannelCredentials, error) {
	b, err := c.rdb.Get(ctx, credentialKey(teamID)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var creds domain.ChannelCredentials
	if err := json.Unmarshal(b, &creds); err != nil {
		return nil, err
	}
	return &creds, nil
}

// Set caches creds for the configured TTL
func (c *RedisCredentialCache) Set(ctx context.Context, teamID string, creds domain.ChannelCredentials) error {
	b, err := json.Marshal(creds)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, credentialKey(teamID), b, c.ttl).Err()
}

// Delete removes the team's cached credentials
func (c *RedisCredentialCache) Delete(ctx context.Context, teamID string) error {
	return c.rdb.Del(ctx, credentialKey(teamID)).Err()
}
