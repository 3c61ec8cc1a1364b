package session

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	jsoniter "github.com/json-iterator/go"
	"github.com/redis/go-redis/v9"

	"github.com/rm-hull/http-service/internal/models"
)

const (
	fieldRefreshToken = "refresh_token"
	fieldPayload      = "payload"
	fieldUpdatedAt    = "updated_at"
)

// RedisStore keeps a profile's session in a single hash at
// "<prefix>:session:<profile>", so several processes can share one session.
type RedisStore struct {
	rdb     redis.UniversalClient
	key     string
	profile string
	now     func() time.Time
}

func NewRedisStore(rdb redis.UniversalClient, prefix, profile string) *RedisStore {
	return &RedisStore{
		rdb:     rdb,
		key:     prefix + ":session:" + profile,
		profile: profile,
		now:     time.Now,
	}
}

func (s *RedisStore) GetRefreshToken(ctx context.Context) (string, error) {
	token, err := s.rdb.HGet(ctx, s.key, fieldRefreshToken).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", errors.Wrap(err, "redis: failed to read refresh token")
	}
	return token, nil
}

func (s *RedisStore) SaveSession(ctx context.Context, data jsoniter.RawMessage) error {
	fields := map[string]any{
		fieldPayload:   string(data),
		fieldUpdatedAt: s.now().UTC().Format(time.RFC3339Nano),
	}
	if td := models.ParseTokenData(data); td.RefreshToken != "" {
		fields[fieldRefreshToken] = td.RefreshToken
	}
	if err := s.rdb.HSet(ctx, s.key, fields).Err(); err != nil {
		return errors.Wrap(err, "redis: failed to save session")
	}
	return nil
}

func (s *RedisStore) SetRefreshToken(ctx context.Context, token string) error {
	err := s.rdb.HSet(ctx, s.key,
		fieldRefreshToken, token,
		fieldUpdatedAt, s.now().UTC().Format(time.RFC3339Nano),
	).Err()
	if err != nil {
		return errors.Wrap(err, "redis: failed to save refresh token")
	}
	return nil
}

func (s *RedisStore) Session(ctx context.Context) (*models.Session, error) {
	values, err := s.rdb.HGetAll(ctx, s.key).Result()
	if err != nil {
		return nil, errors.Wrap(err, "redis: failed to read session")
	}
	if len(values) == 0 {
		return nil, nil
	}

	result := &models.Session{
		Profile:      s.profile,
		RefreshToken: values[fieldRefreshToken],
	}
	if payload := values[fieldPayload]; payload != "" {
		result.Payload = jsoniter.RawMessage(payload)
	}
	if ts := values[fieldUpdatedAt]; ts != "" {
		if result.UpdatedAt, err = time.Parse(time.RFC3339Nano, ts); err != nil {
			return nil, errors.Wrap(err, "redis: malformed updated_at")
		}
	}
	return result, nil
}

func (s *RedisStore) Clear(ctx context.Context) error {
	if err := s.rdb.Del(ctx, s.key).Err(); err != nil {
		return errors.Wrap(err, "redis: failed to delete session")
	}
	return nil
}

func (s *RedisStore) Close() error {
	return s.rdb.Close()
}
