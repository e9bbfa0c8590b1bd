// Package rate provides the Redis fixed-window counter behind OTP
// re-delivery throttling.
package rate
