package locks

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
)

func newRedisLocker(t *testing.T, ttl time.Duration) (*RedisLocker, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client, err := NewRedisClient(context.Background(), mr.Addr(), "", 0)
	if err != nil {
		t.Fatalf("NewRedisClient: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisLocker(client, ttl), mr
}

func TestNewRedisClient_PingFailure(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if c, err := NewRedisClient(ctx, addr, "", 0); err == nil || c != nil {
		t.Fatalf("NewRedisClient(%s) = %v, %v; want ping error", addr, c, err)
	}
}

func TestRedisLocker_MutualExclusion(t *testing.T) {
	l, mr := newRedisLocker(t, 5*time.Second)

	unlock, err := l.Lock(context.Background(), "addr:0xA1")
	if err != nil {
		t.Fatalf("Lock: %v", err)
	}
	if !mr.Exists(redisKeyPrefix + "addr:0xA1") {
		t.Fatalf("lock key not written: %v", mr.Keys())
	}

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()
	if u, err := l.Lock(ctx, "addr:0xA1"); err == nil {
		u()
		t.Fatalf("second Lock on a held key succeeded")
	}

	unlock()
	unlock() // no-op
	if mr.Exists(redisKeyPrefix + "addr:0xA1") {
		t.Fatalf("lock key left after unlock")
	}
	u2, err := l.Lock(context.Background(), "addr:0xA1")
	if err != nil {
		t.Fatalf("Lock after release: %v", err)
	}
	u2()
}

func TestRedisLocker_ConcurrentHolders(t *testing.T) {
	l, _ := newRedisLocker(t, 5*time.Second)
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		inside  int
		maxSeen int
	)
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			unlock, err := l.Lock(ctx, "chatbot:7")
			if err != nil {
				t.Errorf("Lock: %v", err)
				return
			}
			mu.Lock()
			inside++
			if inside > maxSeen {
				maxSeen = inside
			}
			mu.Unlock()
			time.Sleep(5 * time.Millisecond)
			mu.Lock()
			inside--
			mu.Unlock()
			unlock()
		}()
	}
	wg.Wait()
	if maxSeen != 1 {
		t.Fatalf("expected at most one holder, saw %d", maxSeen)
	}
}

func TestRedisLocker_DistinctKeysDoNotBlock(t *testing.T) {
	l, mr := newRedisLocker(t, 5*time.Second)

	u1, err := l.Lock(context.Background(), "a")
	if err != nil {
		t.Fatal(err)
	}
	defer u1()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	u2, err := l.Lock(ctx, "b")
	if err != nil {
		t.Fatalf("Lock(b) while a is held: %v", err)
	}
	defer u2()

	for _, k := range []string{"a", "b"} {
		if !mr.Exists(redisKeyPrefix + k) {
			t.Fatalf("key %s not held: %v", k, mr.Keys())
		}
	}
}

func TestRedisLocker_CanceledContext(t *testing.T) {
	l, mr := newRedisLocker(t, 5*time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	u, err := l.Lock(ctx, "k")
	if err == nil || u != nil {
		t.Fatalf("Lock with canceled ctx = %p, %v; want error", u, err)
	}
	if keys := mr.Keys(); len(keys) != 0 {
		t.Fatalf("canceled Lock left keys behind: %v", keys)
	}
}

func TestRedisLocker_ExpiryFreesCrashedHolder(t *testing.T) {
	l, mr := newRedisLocker(t, 2*time.Second)

	if _, err := l.Lock(context.Background(), "k"); err != nil {
		t.Fatalf("Lock: %v", err)
	}
	if ttl := mr.TTL(redisKeyPrefix + "k"); ttl <= 0 || ttl > 2*time.Second {
		t.Fatalf("ttl = %v; want (0, 2s]", ttl)
	}
	// The holder never unlocks; the key times out.
	mr.FastForward(3 * time.Second)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	u, err := l.Lock(ctx, "k")
	if err != nil {
		t.Fatalf("Lock after expiry: %v", err)
	}
	u()
}

func TestLockAll_Redis(t *testing.T) {
	l, mr := newRedisLocker(t, 5*time.Second)

	release, err := LockAll(context.Background(), l, "addr:b", "addr:a", "addr:b", "")
	if err != nil {
		t.Fatalf("LockAll: %v", err)
	}
	if keys := mr.Keys(); len(keys) != 2 {
		t.Fatalf("held keys = %v; want addr:a and addr:b", keys)
	}
	release()
	if keys := mr.Keys(); len(keys) != 0 {
		t.Fatalf("keys left after release: %v", keys)
	}

	// A second client already holds addr:c, so the batch fails and gives
	// back addr:a.
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	other := NewRedisLocker(rdb, 5*time.Second)
	hold, err := other.Lock(context.Background(), "addr:c")
	if err != nil {
		t.Fatalf("other.Lock: %v", err)
	}
	defer hold()

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()
	if _, err := LockAll(ctx, l, "addr:c", "addr:a"); err == nil {
		t.Fatalf("LockAll over a held key succeeded")
	}
	if mr.Exists(redisKeyPrefix + "addr:a") {
		t.Fatalf("addr:a still held after failed LockAll")
	}
	if !mr.Exists(redisKeyPrefix + "addr:c") {
		t.Fatalf("other holder lost addr:c")
	}
}
