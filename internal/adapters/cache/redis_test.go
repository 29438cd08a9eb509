package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/hugo-lorenzo-mato/plantsage/internal/core"
)

type fakeRedis struct {
	data    map[string]string
	ttls    map[string]time.Duration
	getErr  error
	setErr  error
	pong    string
	pingErr error
	closed  bool
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{data: map[string]string{}, ttls: map[string]time.Duration{}, pong: "PONG"}
}

func (f *fakeRedis) Get(_ context.Context, key string) *redis.StringCmd {
	if f.getErr != nil {
		return redis.NewStringResult("", f.getErr)
	}
	v, ok := f.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (f *fakeRedis) Set(_ context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd {
	if f.setErr != nil {
		return redis.NewStatusResult("", f.setErr)
	}
	f.data[key] = value.(string)
	f.ttls[key] = expiration
	return redis.NewStatusResult("OK", nil)
}

func (f *fakeRedis) Ping(context.Context) *redis.StatusCmd {
	return redis.NewStatusResult(f.pong, f.pingErr)
}

func (f *fakeRedis) Close() error {
	f.closed = true
	return nil
}

func TestRedis_RoundTrip(t *testing.T) {
	ctx := context.Background()
	fake := newFakeRedis()
	r := newRedisWithClient(fake, "", time.Hour)

	info := core.PlantInfo{CommonName: "Peace lily", ScientificName: "Spathiphyllum", Facts: []string{"a"}}
	if err := r.Set(ctx, "gemini:abc", info, 0); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if _, ok := fake.data[DefaultKeyPrefix+"gemini:abc"]; !ok {
		t.Fatalf("key not prefixed: %v", fake.data)
	}
	if fake.ttls[DefaultKeyPrefix+"gemini:abc"] != time.Hour {
		t.Errorf("default TTL not applied: %v", fake.ttls)
	}

	got, ok, err := r.Get(ctx, "gemini:abc")
	if err != nil || !ok {
		t.Fatalf("Get = ok:%v err:%v", ok, err)
	}
	if got.ScientificName != "Spathiphyllum" || len(got.Facts) != 1 {
		t.Errorf("got %+v", got)
	}
}

func TestRedis_ExplicitTTLAndPrefix(t *testing.T) {
	ctx := context.Background()
	fake := newFakeRedis()
	r := newRedisWithClient(fake, "test:", time.Hour)

	_ = r.Set(ctx, "k", core.PlantInfo{}, 5*time.Minute)
	if fake.ttls["test:k"] != 5*time.Minute {
		t.Errorf("ttl = %v", fake.ttls["test:k"])
	}
}

func TestRedis_MissIsNotError(t *testing.T) {
	r := newRedisWithClient(newFakeRedis(), "", 0)
	_, ok, err := r.Get(context.Background(), "missing")
	if ok || err != nil {
		t.Errorf("miss = ok:%v err:%v", ok, err)
	}
}

func TestRedis_Errors(t *testing.T) {
	ctx := context.Background()
	fake := newFakeRedis()
	r := newRedisWithClient(fake, "", 0)

	fake.getErr = errors.New("connection refused")
	if _, _, err := r.Get(ctx, "k"); err == nil {
		t.Error("expected Get error")
	}

	fake.getErr = nil
	fake.data[DefaultKeyPrefix+"bad"] = "{not json"
	if _, ok, err := r.Get(ctx, "bad"); err == nil || ok {
		t.Error("expected decode error for corrupt value")
	}

	fake.setErr = errors.New("READONLY")
	if err := r.Set(ctx, "k", core.PlantInfo{}, 0); err == nil {
		t.Error("expected Set error")
	}
}

func TestRedis_Ping(t *testing.T) {
	fake := newFakeRedis()
	r := newRedisWithClient(fake, "", 0)
	if err := r.Ping(context.Background()); err != nil {
		t.Errorf("Ping: %v", err)
	}

	fake.pong = "NOPE"
	if err := r.Ping(context.Background()); err == nil {
		t.Error("expected error for unexpected pong")
	}

	fake.pingErr = errors.New("dial tcp: refused")
	if err := r.Ping(context.Background()); err == nil {
		t.Error("expected ping error")
	}

	if err := r.Close(); err != nil || !fake.closed {
		t.Error("Close should close the client")
	}
}

func TestNew_Backends(t *testing.T) {
	ctx := context.Background()

	c, closeFn, err := New(ctx, Options{Backend: BackendNone})
	if err != nil || c != nil {
		t.Errorf("none backend = %v, %v", c, err)
	}
	if closeFn() != nil {
		t.Error("noop close should succeed")
	}

	c, _, err = New(ctx, Options{Backend: BackendMemory, MaxEntries: 5, TTL: time.Minute})
	if err != nil {
		t.Fatalf("memory backend: %v", err)
	}
	if _, ok := c.(*Memory); !ok {
		t.Errorf("expected *Memory, got %T", c)
	}

	if _, _, err := New(ctx, Options{Backend: "memcached"}); err == nil {
		t.Error("expected error for unknown backend")
	}
}
