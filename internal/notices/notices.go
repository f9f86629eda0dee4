// Package notices is a per-browser flash queue: messages pushed during one
// request are shown on the next rendered page and then discarded.
package notices

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Notice is one user-visible message.
type Notice struct {
	Level   string `json:"level"`
	Message string `json:"message"`
}

// Queue stores and drains notices per session id.
type Queue interface {
	Notify(ctx context.Context, sid, level, message string) error
	Drain(ctx context.Context, sid string) ([]Notice, error)
}

// RedisQueue keeps notices in a Redis list "notice:<sid>" that expires after ttl.
type RedisQueue struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisQueue(client *redis.Client, ttl time.Duration) *RedisQueue {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &RedisQueue{client: client, ttl: ttl}
}

func key(sid string) string { return "notice:" + sid }

func (q *RedisQueue) Notify(ctx context.Context, sid, level, message string) error {
	b, err := json.Marshal(Notice{Level: level, Message: message})
	if err != nil {
		return err
	}
	_, err = q.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.RPush(ctx, key(sid), b)
		p.Expire(ctx, key(sid), q.ttl)
		return nil
	})
	return err
}

func (q *RedisQueue) Drain(ctx context.Context, sid string) ([]Notice, error) {
	var items *redis.StringSliceCmd
	_, err := q.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		items = p.LRange(ctx, key(sid), 0, -1)
		p.Del(ctx, key(sid))
		return nil
	})
	if err != nil {
		return nil, err
	}
	out := make([]Notice, 0, len(items.Val()))
	for _, raw := range items.Val() {
		var n Notice
		if json.Unmarshal([]byte(raw), &n) == nil {
			out = append(out, n)
		}
	}
	return out, nil
}

// MemoryQueue is the in-process Queue used without Redis. Like RedisQueue,
// a session's notices are dropped ttl after the last Notify.
type MemoryQueue struct {
	ttl time.Duration
	now func() time.Time

	mu    sync.Mutex
	items map[string]*pending
}

type pending struct {
	notices []Notice
	expires time.Time
}

func NewMemoryQueue(ttl time.Duration) *MemoryQueue {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &MemoryQueue{ttl: ttl, now: time.Now, items: map[string]*pending{}}
}

func (q *MemoryQueue) Notify(ctx context.Context, sid, level, message string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	now := q.now()
	q.sweep(now)
	p := q.items[sid]
	if p == nil {
		p = &pending{}
		q.items[sid] = p
	}
	p.notices = append(p.notices, Notice{Level: level, Message: message})
	p.expires = now.Add(q.ttl)
	return nil
}

func (q *MemoryQueue) Drain(ctx context.Context, sid string) ([]Notice, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	p := q.items[sid]
	delete(q.items, sid)
	if p == nil || !q.now().Before(p.expires) {
		return nil, nil
	}
	return p.notices, nil
}

// Len returns the number of sessions with undrained notices.
func (q *MemoryQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.sweep(q.now())
	return len(q.items)
}

// sweep drops expired entries. Callers hold q.mu.
func (q *MemoryQueue) sweep(now time.Time) {
	for sid, p := range q.items {
		if !now.Before(p.expires) {
			delete(q.items, sid)
		}
	}
}
