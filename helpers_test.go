package authkit

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

type fakeMailer struct {
	mu    sync.Mutex
	codes map[string]string
	sent  int
}

func newFakeMailer() *fakeMailer {
	return &fakeMailer{codes: map[string]string{}}
}

func (m *fakeMailer) Send(_ context.Context, email, code string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.codes[email] = code
	m.sent++
	return nil
}

func (m *fakeMailer) code(email string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.codes[email]
}

func (m *fakeMailer) sentCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sent
}

type testEnv struct {
	engine *Engine
	store  *MemStore
	mailer *fakeMailer
	rdb    *redis.Client
	mr     *miniredis.Miniredis
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.JWT.Secret = []byte("0123456789abcdef0123456789abcdef")
	// Cheap argon2 parameters keep the suite fast.
	cfg.Password.Memory = 8 * 1024
	cfg.Password.Time = 1
	cfg.Password.Parallelism = 1
	return cfg
}

func newTestEngine(t *testing.T, cfg Config) (*testEnv, func()) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis start: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	store := NewMemStore()
	mailer := newFakeMailer()

	engine, err := New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithUserStore(store).
		WithMailer(mailer).
		Build()
	if err != nil {
		t.Fatalf("build engine: %v", err)
	}

	env := &testEnv{
		engine: engine,
		store:  store,
		mailer: mailer,
		rdb:    rdb,
		mr:     mr,
	}
	return env, func() {
		engine.Close()
		rdb.Close()
		mr.Close()
	}
}

var testDevice = DeviceInfo{
	DeviceID:    "device-1",
	DeviceModel: "Pixel 8",
	DeviceOS:    "Android 15",
}

// registerAndTrust walks a fresh account through register and device
// registration, returning the issued token pair.
func registerAndTrust(t *testing.T, env *testEnv, email, pass string, device DeviceInfo) *AuthResult {
	t.Helper()
	ctx := context.Background()

	if err := env.engine.Register(ctx, email, pass); err != nil {
		t.Fatalf("register %s: %v", email, err)
	}

	result, err := env.engine.RegisterDevice(ctx, email, env.mailer.code(email), device)
	if err != nil {
		t.Fatalf("register device for %s: %v", email, err)
	}
	if result.Status != StatusSuccess {
		t.Fatalf("expected SUCCESS after device registration, got %s", result.Status)
	}
	if result.AccessToken == "" || result.RefreshToken == "" {
		t.Fatalf("expected tokens after device registration")
	}
	return result
}

// advanceClock moves the engine's notion of now without touching Redis TTLs.
func advanceClock(env *testEnv, d time.Duration) {
	base := time.Now()
	env.engine.now = func() time.Time { return base.Add(d) }
}
