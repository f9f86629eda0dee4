package sessions

import (
	"context"
	"strconv"
	"testing"
	"time"

	mr "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func TestRedisRepository_SaveGetDelete(t *testing.T) {
	m, err := mr.Run()
	require.NoError(t, err)
	defer m.Close()

	client := redis.NewClient(&redis.Options{Addr: m.Addr()})
	repo := NewRedisRepository(client, "test:session:")
	ctx := context.Background()

	exp := time.Now().Add(time.Hour).Truncate(time.Millisecond)
	s := &Session{ID: "abc", Token: "a.b.c", Expiry: exp, DisplayName: "Zeynep"}
	require.NoError(t, repo.Save(ctx, s))

	// the hash carries exactly the three browser-storage keys
	require.Equal(t, "a.b.c", m.HGet("test:session:abc", "token"))
	require.Equal(t, strconv.FormatInt(exp.UnixMilli(), 10), m.HGet("test:session:abc", "tokenExpiry"))
	require.Equal(t, "Zeynep", m.HGet("test:session:abc", "userName"))

	got, err := repo.Get(ctx, "abc")
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Equal(t, s.Token, got.Token)
	require.Equal(t, s.DisplayName, got.DisplayName)
	require.True(t, exp.Equal(got.Expiry))

	removed, err := repo.Delete(ctx, "abc")
	require.NoError(t, err)
	require.True(t, removed)
	removed, err = repo.Delete(ctx, "abc")
	require.NoError(t, err)
	require.False(t, removed)
	got2, err := repo.Get(ctx, "abc")
	require.NoError(t, err)
	require.Nil(t, got2)
	require.False(t, m.Exists("test:session:abc"))
}

func TestRedisRepository_KeyOutlivesSessionByGrace(t *testing.T) {
	m, err := mr.Run()
	require.NoError(t, err)
	defer m.Close()

	client := redis.NewClient(&redis.Options{Addr: m.Addr()})
	repo := NewRedisRepository(client, "")
	ctx := context.Background()

	require.NoError(t, repo.Save(ctx, &Session{ID: "r2", Token: "x.y.z", Expiry: time.Now().Add(2 * time.Second)}))
	got, err := repo.Get(ctx, "r2")
	require.NoError(t, err)
	require.NotNil(t, got)

	// past tokenExpiry the hash is still there for the Store to end
	m.FastForward(3 * time.Second)
	got, err = repo.Get(ctx, "r2")
	require.NoError(t, err)
	require.NotNil(t, got)

	m.FastForward(KeyGrace)
	got2, err := repo.Get(ctx, "r2")
	require.NoError(t, err)
	require.Nil(t, got2)
}

func TestRedisRepository_List(t *testing.T) {
	m, err := mr.Run()
	require.NoError(t, err)
	defer m.Close()

	client := redis.NewClient(&redis.Options{Addr: m.Addr()})
	repo := NewRedisRepository(client, "session:")
	ctx := context.Background()

	for _, id := range []string{"one", "two"} {
		require.NoError(t, repo.Save(ctx, &Session{ID: id, Token: "t." + id + ".s", Expiry: time.Now().Add(time.Hour)}))
	}
	require.NoError(t, client.Set(ctx, "notice:one", "x", 0).Err())

	list, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	ids := map[string]bool{}
	for _, s := range list {
		ids[s.ID] = true
	}
	require.True(t, ids["one"] && ids["two"])
}

func TestRedisStore_LoginLogoutRoundTrip(t *testing.T) {
	m, err := mr.Run()
	require.NoError(t, err)
	defer m.Close()

	client := redis.NewClient(&redis.Options{Addr: m.Addr()})
	store := NewStore(NewRedisRepository(client, "session:"))
	defer store.Close()
	ctx := context.Background()

	tok := token(t, map[string]interface{}{"sub": "5", "unique_name": "Mehmet"})
	_, err = store.Login(ctx, "sid-r", tok)
	require.NoError(t, err)
	require.Equal(t, "Mehmet", m.HGet("session:sid-r", "userName"))

	require.NoError(t, store.Logout(ctx, "sid-r", ReasonUser))
	require.False(t, m.Exists("session:sid-r"))
}

func TestRedisStore_ExpiryLogsOutOnce(t *testing.T) {
	m, err := mr.Run()
	require.NoError(t, err)
	defer m.Close()
	m.SetTime(t0)

	client := redis.NewClient(&redis.Options{Addr: m.Addr()})
	clock := newFakeClock(t0)
	n := &recordingNotifier{}
	store := NewStore(NewRedisRepository(client, "session:"), WithNotifier(n), WithClock(clock.Now, clock.Schedule))
	defer store.Close()
	ctx := context.Background()

	var hooks []Reason
	store.OnLogout(func(ctx context.Context, sid string, r Reason) { hooks = append(hooks, r) })

	_, err = store.Login(ctx, "sid-e", token(t, map[string]interface{}{"sub": "5"}))
	require.NoError(t, err)

	// Redis reaches the deadline first; the key must survive until the Store ends the session
	m.FastForward(time.Hour)
	require.True(t, m.Exists("session:sid-e"))
	clock.Advance(time.Hour + time.Millisecond)

	require.False(t, m.Exists("session:sid-e"))
	require.Equal(t, 1, n.count("sid-e"))
	require.Equal(t, []Reason{ReasonExpired}, hooks)

	require.NoError(t, store.Logout(ctx, "sid-e", ReasonUser))
	require.Equal(t, 1, n.count("sid-e"))
}

func TestRedisStore_LazyExpiryOnRead(t *testing.T) {
	m, err := mr.Run()
	require.NoError(t, err)
	defer m.Close()
	m.SetTime(t0)

	client := redis.NewClient(&redis.Options{Addr: m.Addr()})
	repo := NewRedisRepository(client, "session:")
	clock := newFakeClock(t0)
	n := &recordingNotifier{}
	// a session left behind by a previous process, with no timer armed here
	tok := token(t, map[string]interface{}{"sub": "5"})
	require.NoError(t, repo.Save(context.Background(), &Session{ID: "old", Token: tok, Expiry: t0.Add(time.Minute)}))

	store := NewStore(repo, WithNotifier(n), WithClock(clock.Now, func(time.Duration, func()) Timer { return &fakeTimer{} }))
	defer store.Close()
	clock.Advance(2 * time.Minute)
	m.FastForward(2 * time.Minute)

	cur, err := store.Current(context.Background(), "old")
	require.NoError(t, err)
	require.Nil(t, cur)
	require.Equal(t, 1, n.count("old"))
}
