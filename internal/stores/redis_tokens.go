package stores

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	maxTxRetries = 4

	// Expired records linger this long so a late consumer sees "expired"
	// instead of "not found".
	expiredRetention = time.Hour
)

// RedisTokenStore keeps verification tokens and one-time codes in Redis.
//
// Keys:
//   - {prefix}:vt:{sha256(value)}      token record
//   - {prefix}:vts:{purpose}:{email}   slot pointing at the live token key
//   - {prefix}:otc:{email}             one-time code record
type RedisTokenStore struct {
	redis  redis.UniversalClient
	prefix string
}

func NewRedisTokenStore(client redis.UniversalClient, prefix string) *RedisTokenStore {
	if prefix == "" {
		prefix = "sa"
	}
	return &RedisTokenStore{
		redis:  client,
		prefix: prefix,
	}
}

func (s *RedisTokenStore) tokenKey(value string) string {
	sum := sha256.Sum256([]byte(value))
	return s.prefix + ":vt:" + hex.EncodeToString(sum[:])
}

func (s *RedisTokenStore) slotKey(email string, purpose Purpose) string {
	return s.prefix + ":vts:" + string(purpose) + ":" + email
}

func (s *RedisTokenStore) codeKey(email string) string {
	return s.prefix + ":otc:" + email
}

func retentionTTL(expiresAt time.Time) time.Duration {
	ttl := time.Until(expiresAt)
	if ttl < 0 {
		ttl = 0
	}
	return ttl + expiredRetention
}

// SaveVerificationToken stores t and deletes whatever token previously held
// the (email, purpose) slot, in one transaction.
func (s *RedisTokenStore) SaveVerificationToken(ctx context.Context, t VerificationToken) error {
	encoded, err := encodeTokenRecord(t)
	if err != nil {
		return err
	}

	slot := s.slotKey(t.Email, t.Purpose)
	key := s.tokenKey(t.Value)
	ttl := retentionTTL(t.ExpiresAt)

	for i := 0; i < maxTxRetries; i++ {
		err = s.redis.Watch(ctx, func(tx *redis.Tx) error {
			prev, err := tx.Get(ctx, slot).Result()
			if err != nil && !errors.Is(err, redis.Nil) {
				return err
			}

			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				if prev != "" && prev != key {
					pipe.Del(ctx, prev)
				}
				pipe.Set(ctx, key, encoded, ttl)
				pipe.Set(ctx, slot, key, ttl)
				return nil
			})
			return err
		}, slot)

		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
		return nil
	}

	return fmt.Errorf("%w: slot contention", ErrRedisUnavailable)
}

func (s *RedisTokenStore) GetVerificationToken(ctx context.Context, value string) (VerificationToken, error) {
	data, err := s.redis.Get(ctx, s.tokenKey(value)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return VerificationToken{}, ErrNotFound
		}
		return VerificationToken{}, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	t, err := decodeTokenRecord(data)
	if err != nil {
		return VerificationToken{}, err
	}
	t.Value = value
	return t, nil
}

// DeleteVerificationToken reports whether this call removed the token.
// Exactly one of several concurrent callers observes true.
func (s *RedisTokenStore) DeleteVerificationToken(ctx context.Context, value string) (bool, error) {
	n, err := s.redis.Del(ctx, s.tokenKey(value)).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return n > 0, nil
}

// SaveOneTimeCode upserts the code for c.Email.
func (s *RedisTokenStore) SaveOneTimeCode(ctx context.Context, c OneTimeCode) error {
	encoded, err := encodeCodeRecord(c)
	if err != nil {
		return err
	}
	if err := s.redis.Set(ctx, s.codeKey(c.Email), encoded, retentionTTL(c.ExpiresAt)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

func (s *RedisTokenStore) GetOneTimeCode(ctx context.Context, email string) (OneTimeCode, error) {
	data, err := s.redis.Get(ctx, s.codeKey(email)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return OneTimeCode{}, ErrNotFound
		}
		return OneTimeCode{}, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return decodeCodeRecord(data)
}

// DeleteOneTimeCode removes the code for email only while it still equals code,
// so a concurrently re-issued code survives.
func (s *RedisTokenStore) DeleteOneTimeCode(ctx context.Context, email, code string) (bool, error) {
	key := s.codeKey(email)

	for i := 0; i < maxTxRetries; i++ {
		var deleted bool

		err := s.redis.Watch(ctx, func(tx *redis.Tx) error {
			data, err := tx.Get(ctx, key).Bytes()
			if err != nil {
				return err
			}

			stored, err := decodeCodeRecord(data)
			if err != nil {
				return err
			}
			if subtle.ConstantTimeCompare([]byte(stored.Code), []byte(code)) != 1 {
				return nil
			}

			var del *redis.IntCmd
			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				del = pipe.Del(ctx, key)
				return nil
			})
			if err != nil {
				return err
			}
			deleted = del.Val() > 0
			return nil
		}, key)

		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		if err != nil {
			if errors.Is(err, ErrMalformedRecord) {
				return false, err
			}
			return false, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
		return deleted, nil
	}

	return false, nil
}
