package session

import (
	"context"
	"testing"
	"time"
)

func TestNewIDIsRandomHex(t *testing.T) {
	a, err := NewID()
	if err != nil {
		t.Fatalf("new id: %v", err)
	}
	b, err := NewID()
	if err != nil {
		t.Fatalf("new id: %v", err)
	}
	if len(a) != 64 {
		t.Fatalf("expected 64 hex chars, got %d", len(a))
	}
	if a == b {
		t.Fatalf("two ids collided: %s", a)
	}
}

func TestMemoryStore_SetGetDelete(t *testing.T) {
	store := NewMemoryStore(time.Hour)
	ctx := context.Background()

	if _, ok, err := store.Get(ctx, "sid", "k"); err != nil || ok {
		t.Fatalf("empty store: ok=%v err=%v", ok, err)
	}

	if err := store.Set(ctx, "sid", "k", "v"); err != nil {
		t.Fatalf("set: %v", err)
	}
	val, ok, err := store.Get(ctx, "sid", "k")
	if err != nil || !ok || val != "v" {
		t.Fatalf("get: val=%q ok=%v err=%v", val, ok, err)
	}

	// Delete de varias claves, incluidas inexistentes.
	if err := store.Set(ctx, "sid", "k2", "v2"); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := store.Delete(ctx, "sid", "k", "k2", "missing"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, ok, _ := store.Get(ctx, "sid", "k"); ok {
		t.Fatalf("key survived delete")
	}
	if _, ok, _ := store.Get(ctx, "sid", "k2"); ok {
		t.Fatalf("second key survived delete")
	}
}

func TestMemoryStore_SessionsAreIsolated(t *testing.T) {
	store := NewMemoryStore(time.Hour)
	ctx := context.Background()

	if err := store.Set(ctx, "sid-a", "k", "a"); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := store.Set(ctx, "sid-b", "k", "b"); err != nil {
		t.Fatalf("set: %v", err)
	}

	if val, _, _ := store.Get(ctx, "sid-a", "k"); val != "a" {
		t.Fatalf("session a read %q", val)
	}
	if err := store.Destroy(ctx, "sid-a"); err != nil {
		t.Fatalf("destroy: %v", err)
	}
	if _, ok, _ := store.Get(ctx, "sid-a", "k"); ok {
		t.Fatalf("destroyed session still readable")
	}
	if val, _, _ := store.Get(ctx, "sid-b", "k"); val != "b" {
		t.Fatalf("destroy leaked into another session: %q", val)
	}
}

func TestMemoryStore_Expiry(t *testing.T) {
	store := NewMemoryStore(10 * time.Millisecond)
	ctx := context.Background()

	if err := store.Set(ctx, "sid", "k", "v"); err != nil {
		t.Fatalf("set: %v", err)
	}
	time.Sleep(30 * time.Millisecond)
	if _, ok, _ := store.Get(ctx, "sid", "k"); ok {
		t.Fatalf("expired session still readable")
	}
}

func TestCookieCodec_Roundtrip(t *testing.T) {
	codec := NewCookieCodec("cookie-signing-secret")

	sid, err := NewID()
	if err != nil {
		t.Fatalf("new id: %v", err)
	}
	value := codec.Encode(sid)
	got, ok := codec.Decode(value)
	if !ok || got != sid {
		t.Fatalf("roundtrip failed: got=%q ok=%v", got, ok)
	}
}

func TestCookieCodec_RejectsTampering(t *testing.T) {
	codec := NewCookieCodec("cookie-signing-secret")
	value := codec.Encode("abc123")

	cases := map[string]string{
		"forged sid":   "zzz999." + value[len("abc123."):],
		"forged sig":   "abc123.not-a-real-signature",
		"no separator": "abc123",
		"empty sid":    ".signature",
		"empty value":  "",
	}
	for name, tampered := range cases {
		if _, ok := codec.Decode(tampered); ok {
			t.Fatalf("%s accepted: %q", name, tampered)
		}
	}
}

func TestCookieCodec_DifferentSecretsDisagree(t *testing.T) {
	value := NewCookieCodec("secret-one").Encode("abc123")
	if _, ok := NewCookieCodec("secret-two").Decode(value); ok {
		t.Fatalf("cookie signed with another secret accepted")
	}
}
