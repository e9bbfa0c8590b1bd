package rate

import "errors"

// ErrRateLimited is returned when an identifier exhausts its window budget.
var ErrRateLimited = errors.New("rate limited")

// ErrRedisUnavailable wraps transport-level Redis failures.
var ErrRedisUnavailable = errors.New("redis unavailable")
