package sessionstore

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/globalitacademy/yscip/core"
)

const (
	keyPrefix     = "yscip:revoked:"
	acctKeyPrefix = "yscip:revoked:acct:"
)

type redisStore struct {
	client *redis.Client
}

var _ Store = (*redisStore)(nil)

func NewRedisStore(conf core.RedisConfig) (Store, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     conf.Addr,
		Password: conf.Password,
		DB:       conf.DB,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, errors.Wrap(err, "pinging redis")
	}
	return &redisStore{client: client}, nil
}

func (s *redisStore) Revoke(ctx context.Context, jti string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil // already expired, nothing to deny
	}
	err := s.client.Set(ctx, keyPrefix+jti, 1, ttl).Err()
	return errors.Wrap(err, "revoking token")
}

func (s *redisStore) IsRevoked(ctx context.Context, jti string) (bool, error) {
	n, err := s.client.Exists(ctx, keyPrefix+jti).Result()
	if err != nil {
		return false, errors.Wrap(err, "checking token revocation")
	}
	return n > 0, nil
}

func (s *redisStore) RevokeAccount(ctx context.Context, accountID string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	err := s.client.Set(ctx, acctKeyPrefix+accountID, time.Now().UnixNano(), ttl).Err()
	return errors.Wrap(err, "revoking account tokens")
}

func (s *redisStore) AccountRevokedAt(ctx context.Context, accountID string) (time.Time, error) {
	nanos, err := s.client.Get(ctx, acctKeyPrefix+accountID).Int64()
	if err != nil {
		if err == redis.Nil {
			return time.Time{}, nil
		}
		return time.Time{}, errors.Wrap(err, "checking account revocation")
	}
	return time.Unix(0, nanos), nil
}
