package media

import (
	"context"
	"strings"
	"testing"
	"time"
)

func TestObjectKey(t *testing.T) {
	now := time.UnixMilli(1717171717171)
	cases := map[string]string{
		"lote.jpg":               "terrenos/1717171717171_lote.jpg",
		"C:\\fotos\\frente.png":  "terrenos/1717171717171_frente.png",
		"/tmp/dir/vista 1.webp":  "terrenos/1717171717171_vista 1.webp",
		"":                       "terrenos/1717171717171_image",
		"   ":                    "terrenos/1717171717171_image",
	}
	for in, want := range cases {
		if got := ObjectKey(now, in); got != want {
			t.Fatalf("ObjectKey(%q) = %q; want %q", in, got, want)
		}
	}
}

func TestKeyFromURL(t *testing.T) {
	if k, ok := KeyFromURL("http://minio:9000/land-images/", "http://minio:9000/land-images/terrenos/1_a.jpg"); !ok || k != "terrenos/1_a.jpg" {
		t.Fatalf("unexpected key %q ok=%v", k, ok)
	}
	if _, ok := KeyFromURL("http://minio:9000/land-images", "https://example.com/a.jpg"); ok {
		t.Fatalf("foreign URL must not map to a key")
	}
	if _, ok := KeyFromURL("http://minio:9000/land-images", "http://minio:9000/land-images/"); ok {
		t.Fatalf("bare base must not map to a key")
	}
	if _, ok := KeyFromURL("", "anything"); ok {
		t.Fatalf("empty base must not match")
	}
}

func TestMemoryStore_PutURLDelete(t *testing.T) {
	s := NewMemoryStore("http://cdn.local/media/")
	ctx := context.Background()
	key := ObjectKey(time.UnixMilli(5), "a.jpg")

	if err := s.Put(ctx, key, strings.NewReader("data"), 4, "image/jpeg"); err != nil {
		t.Fatalf("Put: %v", err)
	}
	obj, ok := s.Get(key)
	if !ok || string(obj.Data) != "data" || obj.ContentType != "image/jpeg" {
		t.Fatalf("unexpected object: %+v ok=%v", obj, ok)
	}

	url := s.PublicURL(key)
	if url != "http://cdn.local/media/terrenos/5_a.jpg" {
		t.Fatalf("PublicURL = %q", url)
	}
	if k, ok := s.KeyFromURL(url); !ok || k != key {
		t.Fatalf("KeyFromURL round trip failed: %q %v", k, ok)
	}

	if err := s.Delete(ctx, key); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if len(s.Keys()) != 0 {
		t.Fatalf("expected empty store, got %v", s.Keys())
	}
	if err := s.Delete(ctx, key); err != nil {
		t.Fatalf("deleting a missing key must not fail: %v", err)
	}
}

func TestMemoryStore_ShortBodyAndCanceledContext(t *testing.T) {
	s := NewMemoryStore("")
	if err := s.Put(context.Background(), "k", strings.NewReader("ab"), 5, ""); err == nil {
		t.Fatalf("expected short body error")
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := s.Put(ctx, "k", strings.NewReader("ab"), 2, ""); err == nil {
		t.Fatalf("expected context error")
	}
	if len(s.Keys()) != 0 {
		t.Fatalf("failed puts must not store anything")
	}
}

var (
	_ Store = (*MemoryStore)(nil)
	_ Store = (*MinioStore)(nil)
)
