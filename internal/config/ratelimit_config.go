package config

import "time"

const (
	redisAddrVar      = "REDIS_ADDR"
	redisPasswordVar  = "REDIS_PASSWORD"
	rateLimitTableVar = "RATE_LIMIT_TABLE"
)

type RateLimitConfig interface {
	GetResendWindow() time.Duration
	GetRateLimitEviction() time.Duration
	GetRedisAddr() string
	GetRedisPassword() string
	GetRateLimitTable() string
}

type RateLimit struct {
	RedisAddr     string
	RedisPassword string
	Table         string
}

var _ RateLimitConfig = RateLimit{}

func loadRateLimit() RateLimit {
	return RateLimit{
		RedisAddr:     GetEnv(redisAddrVar, ""),
		RedisPassword: GetEnv(redisPasswordVar, ""),
		Table:         GetEnv(rateLimitTableVar, ""),
	}
}

func (RateLimit) GetResendWindow() time.Duration {
	return time.Minute
}

func (RateLimit) GetRateLimitEviction() time.Duration {
	return 5 * time.Minute
}

func (r RateLimit) GetRedisAddr() string {
	return r.RedisAddr
}

func (r RateLimit) GetRedisPassword() string {
	return r.RedisPassword
}

func (r RateLimit) GetRateLimitTable() string {
	return r.Table
}
