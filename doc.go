// Package authkit is an embeddable email/password authentication engine
// with OTP step-up for unverified accounts and untrusted devices, HS256
// access tokens, opaque rotating refresh tokens with reuse detection, and
// per-device session bookkeeping backed by Redis.
//
// Build an Engine through the Builder:
//
//	engine, err := authkit.New().
//		WithRedis(redisClient).
//		WithUserStore(store).
//		WithMailer(mailer).
//		WithConfig(cfg).
//		Build()
//
// User persistence stays with the host application behind the UserStore
// interface; the engine owns sessions, tokens, and passcodes.
package authkit
