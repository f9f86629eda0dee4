package sessions

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// Hash fields of a stored session.
const (
	fieldToken       = "token"
	fieldTokenExpiry = "tokenExpiry"
	fieldUserName    = "userName"
)

// KeyGrace is how long a session hash outlives its tokenExpiry. The Store
// ends sessions itself; the Redis TTL only reclaims keys nobody resumed.
const KeyGrace = 24 * time.Hour

// RedisRepository implements Repository using Redis as the backing store.
// Each session is a hash under "<prefix><id>" with fields token, tokenExpiry
// (epoch milliseconds as a string) and userName.
type RedisRepository struct {
	client *redis.Client
	prefix string
}

// NewRedisRepository creates a Redis-based session repository. Prefix may be empty.
func NewRedisRepository(client *redis.Client, prefix string) *RedisRepository {
	if prefix == "" {
		prefix = "session:"
	}
	return &RedisRepository{client: client, prefix: prefix}
}

func (r *RedisRepository) key(id string) string {
	return r.prefix + id
}

func (r *RedisRepository) Save(ctx context.Context, s *Session) error {
	k := r.key(s.ID)
	_, err := r.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Del(ctx, k)
		p.HSet(ctx, k, map[string]interface{}{
			fieldToken:       s.Token,
			fieldTokenExpiry: strconv.FormatInt(s.Expiry.UnixMilli(), 10),
			fieldUserName:    s.DisplayName,
		})
		if !s.Expiry.IsZero() {
			p.ExpireAt(ctx, k, s.Expiry.Add(KeyGrace))
		}
		return nil
	})
	return err
}

func (r *RedisRepository) Get(ctx context.Context, id string) (*Session, error) {
	m, err := r.client.HGetAll(ctx, r.key(id)).Result()
	if err != nil {
		return nil, err
	}
	if len(m) == 0 || m[fieldToken] == "" {
		return nil, nil
	}
	s := &Session{ID: id, Token: m[fieldToken], DisplayName: m[fieldUserName]}
	if ms, err := strconv.ParseInt(m[fieldTokenExpiry], 10, 64); err == nil && ms > 0 {
		s.Expiry = time.UnixMilli(ms)
	}
	return s, nil
}

func (r *RedisRepository) Delete(ctx context.Context, id string) (bool, error) {
	n, err := r.client.Del(ctx, r.key(id)).Result()
	return n > 0, err
}

func (r *RedisRepository) List(ctx context.Context) ([]*Session, error) {
	var out []*Session
	iter := r.client.Scan(ctx, 0, r.prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		id := strings.TrimPrefix(iter.Val(), r.prefix)
		s, err := r.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		if s != nil {
			out = append(out, s)
		}
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
