package authkit

import (
	"context"
	"errors"
	"sync"
	"testing"
)

func TestRefreshRotatesToken(t *testing.T) {
	env, done := newTestEngine(t, testConfig())
	defer done()
	ctx := context.Background()

	first := registerAndTrust(t, env, "alice@example.com", "some-long-password", testDevice)

	second, err := env.engine.Refresh(ctx, first.RefreshToken)
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if second.Status != StatusSuccess {
		t.Fatalf("expected SUCCESS, got %s", second.Status)
	}
	if second.RefreshToken == first.RefreshToken {
		t.Fatalf("refresh must rotate the token")
	}
	if second.AccessToken == "" || second.ExpiresIn <= 0 {
		t.Fatalf("expected a fresh access token")
	}

	// The new token keeps working; the session survives rotation.
	if _, err := env.engine.Refresh(ctx, second.RefreshToken); err != nil {
		t.Fatalf("second rotation: %v", err)
	}
}

func TestRefreshReuseRevokesSession(t *testing.T) {
	env, done := newTestEngine(t, testConfig())
	defer done()
	ctx := context.Background()

	first := registerAndTrust(t, env, "bob@example.com", "some-long-password", testDevice)

	second, err := env.engine.Refresh(ctx, first.RefreshToken)
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}

	// Replaying the rotated-away token must kill the whole session.
	if _, err := env.engine.Refresh(ctx, first.RefreshToken); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected reuse to fail with ErrSessionNotFound, got %v", err)
	}
	if got := env.engine.metrics.Value(MetricRefreshReuseDetected); got != 1 {
		t.Fatalf("expected 1 reuse detection counted, got %d", got)
	}

	// The winner token dies with the session.
	if _, err := env.engine.Refresh(ctx, second.RefreshToken); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected winner token dead after reuse, got %v", err)
	}
}

func TestRefreshMalformedToken(t *testing.T) {
	env, done := newTestEngine(t, testConfig())
	defer done()
	ctx := context.Background()

	for _, token := range []string{"", "garbage", "!!!not-base64!!!", "c2hvcnQ"} {
		if _, err := env.engine.Refresh(ctx, token); !errors.Is(err, ErrSessionNotFound) {
			t.Fatalf("token %q: expected ErrSessionNotFound, got %v", token, err)
		}
	}
}

func TestRefreshConcurrencySingleWinner(t *testing.T) {
	env, done := newTestEngine(t, testConfig())
	defer done()

	first := registerAndTrust(t, env, "carol@example.com", "some-long-password", testDevice)

	const n = 8
	var wg sync.WaitGroup
	wg.Add(n)

	results := make(chan error, n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			_, err := env.engine.Refresh(context.Background(), first.RefreshToken)
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	success := 0
	for err := range results {
		if err == nil {
			success++
			continue
		}
		if !errors.Is(err, ErrSessionNotFound) {
			t.Fatalf("unexpected refresh error: %v", err)
		}
	}

	if success != 1 {
		t.Fatalf("expected exactly one winning rotation, got %d", success)
	}
}
