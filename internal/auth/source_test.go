package auth

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"
)

func TestStaticToken(t *testing.T) {
	token, err := StaticToken("abc").Token(context.Background())
	if err != nil || token != "abc" {
		t.Errorf("got (%q, %v), want (abc, nil)", token, err)
	}

	if _, err := StaticToken("").Token(context.Background()); !errors.Is(err, ErrNoToken) {
		t.Errorf("expected ErrNoToken, got: %v", err)
	}
}

func TestHeader(t *testing.T) {
	h, err := Header(context.Background(), StaticToken("abc"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if h != "Bearer abc" {
		t.Errorf("got %q, want %q", h, "Bearer abc")
	}
}

func TestCachingSource_RefreshesOnExpiry(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	calls := 0
	src := NewCachingSource(func(ctx context.Context) (string, time.Time, error) {
		calls++
		return "token-" + string(rune('0'+calls)), now.Add(time.Hour), nil
	}, time.Minute)
	src.now = func() time.Time { return now }

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		token, err := src.Token(ctx)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if token != "token-1" {
			t.Errorf("call %d: got %q, want token-1", i, token)
		}
	}
	if calls != 1 {
		t.Errorf("expected 1 fetch, got %d", calls)
	}

	// Inside the leeway window the token counts as expired.
	now = now.Add(59*time.Minute + 30*time.Second)
	token, err := src.Token(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if token != "token-2" {
		t.Errorf("got %q, want token-2", token)
	}
}

func TestCachingSource_Invalidate(t *testing.T) {
	calls := 0
	src := NewCachingSource(func(ctx context.Context) (string, time.Time, error) {
		calls++
		return "fresh", time.Now().Add(time.Hour), nil
	}, 0)

	ctx := context.Background()
	_, _ = src.Token(ctx)
	src.Invalidate()
	_, _ = src.Token(ctx)
	if calls != 2 {
		t.Errorf("expected 2 fetches, got %d", calls)
	}
}

func TestCachingSource_FetchError(t *testing.T) {
	boom := errors.New("login failed")
	src := NewCachingSource(func(ctx context.Context) (string, time.Time, error) {
		return "", time.Time{}, boom
	}, 0)

	if _, err := src.Token(context.Background()); !errors.Is(err, boom) {
		t.Errorf("expected wrapped fetch error, got: %v", err)
	}
}

func TestTokenFile_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token_file.json")
	expires := time.Unix(1700000000, 0)

	if err := SaveTokenFile(path, "id-token", expires); err != nil {
		t.Fatalf("SaveTokenFile failed: %v", err)
	}
	token, got, err := LoadTokenFile(path)
	if err != nil {
		t.Fatalf("LoadTokenFile failed: %v", err)
	}
	if token != "id-token" {
		t.Errorf("got token %q, want id-token", token)
	}
	if !got.Equal(expires) {
		t.Errorf("got expiry %v, want %v", got, expires)
	}
}

func TestLoadTokenFile_Missing(t *testing.T) {
	if _, _, err := LoadTokenFile(filepath.Join(t.TempDir(), "nope.json")); err == nil {
		t.Error("expected error for missing token file")
	}
}
