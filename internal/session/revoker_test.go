package session

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func TestMemoryRevoker_ExpiresEntries(t *testing.T) {
	r := NewMemoryRevoker()
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	r.now = func() time.Time { return now }
	ctx := context.Background()

	if err := r.Revoke(ctx, "gone", 0); err != nil {
		t.Fatalf("Revoke: %v", err)
	}
	if ok, _ := r.IsRevoked(ctx, "gone"); ok {
		t.Fatalf("zero TTL must not revoke")
	}

	if err := r.Revoke(ctx, "jti-1", time.Minute); err != nil {
		t.Fatalf("Revoke: %v", err)
	}
	if ok, _ := r.IsRevoked(ctx, "jti-1"); !ok {
		t.Fatalf("expected jti-1 revoked")
	}
	now = now.Add(2 * time.Minute)
	if ok, _ := r.IsRevoked(ctx, "jti-1"); ok {
		t.Fatalf("entry should expire after its TTL")
	}
	if _, still := r.tokens["jti-1"]; still {
		t.Fatalf("expired entry should be dropped")
	}
}

func TestRedisRevoker_SetExistsAndTTL(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	r := NewRedisRevoker(client)
	t.Cleanup(func() { _ = r.Close() })
	ctx := context.Background()

	if err := r.Revoke(ctx, "jti-1", time.Minute); err != nil {
		t.Fatalf("Revoke: %v", err)
	}
	if !mr.Exists("revoked:jti-1") {
		t.Fatalf("expected key revoked:jti-1 in redis")
	}
	if ttl := mr.TTL("revoked:jti-1"); ttl != time.Minute {
		t.Fatalf("ttl = %v; want 1m", ttl)
	}
	if ok, err := r.IsRevoked(ctx, "jti-1"); err != nil || !ok {
		t.Fatalf("IsRevoked = %v, %v", ok, err)
	}
	if ok, err := r.IsRevoked(ctx, "other"); err != nil || ok {
		t.Fatalf("IsRevoked(other) = %v, %v", ok, err)
	}

	mr.FastForward(2 * time.Minute)
	if ok, _ := r.IsRevoked(ctx, "jti-1"); ok {
		t.Fatalf("key should expire in redis")
	}
}

func TestDialRedisRevoker_PingFailure(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()
	if _, err := DialRedisRevoker(context.Background(), addr, ""); err == nil {
		t.Fatalf("expected ping error against closed server")
	}
}

func TestManager_WithRedisRevoker(t *testing.T) {
	mr := miniredis.RunT(t)
	rev, err := DialRedisRevoker(context.Background(), mr.Addr(), "")
	if err != nil {
		t.Fatalf("DialRedisRevoker: %v", err)
	}
	t.Cleanup(func() { _ = rev.Close() })

	m, _, _ := newTestManager(t, rev)
	ctx := context.Background()
	if _, err := m.SignUp(ctx, "Ana", "ana@example.com", "123456"); err != nil {
		t.Fatalf("SignUp: %v", err)
	}
	s, err := m.SignIn(ctx, "ana@example.com", "123456")
	if err != nil {
		t.Fatalf("SignIn: %v", err)
	}
	if err := m.SignOut(ctx, s.Token); err != nil {
		t.Fatalf("SignOut: %v", err)
	}
	if !mr.Exists("revoked:" + s.jti) {
		t.Fatalf("sign-out should be recorded in redis")
	}
}
