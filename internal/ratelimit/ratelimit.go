// Package ratelimit provides Redis-based rate limiting for API endpoints
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	// ErrRateLimited is returned when a rate limit is exceeded
	ErrRateLimited = errors.New("rate limit exceeded")

	// ErrTargetedAttack is returned when a single recipient is being
	// drained by repeated downloads of the same file_id
	ErrTargetedAttack = errors.New("targeted attack detected")
)

// Limiter provides rate limiting functionality using Redis
type Limiter struct {
	redis *redis.Client
}

// NewLimiter creates a new rate limiter
func NewLimiter(redis *redis.Client) *Limiter {
	return &Limiter{redis: redis}
}

// EndpointLimits defines the rate limits for one of the envelope endpoints
// (upload, download).
type EndpointLimits struct {
	// Per-identity: how many requests a single identity can make
	IdentityLimit  int
	IdentityWindow time.Duration

	// Per-target: how many times a single file_id can be hit (download
	// only) — a spike here indicates someone hammering a download link
	TargetLimit  int
	TargetWindow time.Duration

	// Per-IP: fallback limit for unauthenticated or distributed attacks
	IPLimit  int
	IPWindow time.Duration
}

// DefaultUploadLimits returns the recommended rate limits for /upload
func DefaultUploadLimits() EndpointLimits {
	return EndpointLimits{
		IdentityLimit:  10,
		IdentityWindow: time.Minute,
		IPLimit:        50,
		IPWindow:       time.Minute,
	}
}

// DefaultDownloadLimits returns the recommended rate limits for /download
func DefaultDownloadLimits() EndpointLimits {
	return EndpointLimits{
		IdentityLimit:  30,
		IdentityWindow: time.Minute,
		TargetLimit:    20,
		TargetWindow:   time.Minute,
		IPLimit:        100,
		IPWindow:       time.Minute,
	}
}

// CheckUpload checks rate limits for an upload request from identity over ip.
func (l *Limiter) CheckUpload(ctx context.Context, identity, ip string) error {
	if l == nil || l.redis == nil {
		return nil
	}

	limits := DefaultUploadLimits()

	identityKey := fmt.Sprintf("ratelimit:upload:identity:%s", identity)
	if err := l.checkLimit(ctx, identityKey, limits.IdentityLimit, limits.IdentityWindow); err != nil {
		log.Printf("[RateLimit] identity %s exceeded upload limit", identity)
		return ErrRateLimited
	}

	if ip != "" {
		ipKey := fmt.Sprintf("ratelimit:upload:ip:%s", ip)
		if err := l.checkLimit(ctx, ipKey, limits.IPLimit, limits.IPWindow); err != nil {
			return ErrRateLimited
		}
	}

	return nil
}

// CheckDownload checks rate limits for a download of fileID by identity over ip.
func (l *Limiter) CheckDownload(ctx context.Context, identity, fileID, ip string) error {
	if l == nil || l.redis == nil {
		return nil
	}

	limits := DefaultDownloadLimits()

	identityKey := fmt.Sprintf("ratelimit:download:identity:%s", identity)
	if err := l.checkLimit(ctx, identityKey, limits.IdentityLimit, limits.IdentityWindow); err != nil {
		log.Printf("[RateLimit] identity %s exceeded download limit", identity)
		return ErrRateLimited
	}

	targetKey := fmt.Sprintf("ratelimit:download:target:%s", fileID)
	if err := l.checkLimit(ctx, targetKey, limits.TargetLimit, limits.TargetWindow); err != nil {
		log.Printf("[RateLimit] ALERT: file_id %s is being hammered (possible download-count exhaustion attack)", fileID)
		return ErrTargetedAttack
	}

	if ip != "" {
		ipKey := fmt.Sprintf("ratelimit:download:ip:%s", ip)
		if err := l.checkLimit(ctx, ipKey, limits.IPLimit, limits.IPWindow); err != nil {
			return ErrRateLimited
		}
	}

	return nil
}

// checkLimit performs the actual rate limit check using Redis INCR
func (l *Limiter) checkLimit(ctx context.Context, key string, limit int, window time.Duration) error {
	// Use INCR to atomically increment the counter
	count, err := l.redis.Incr(ctx, key).Result()
	if err != nil {
		// Fail-open on Redis errors to maintain availability
		return nil
	}

	// If this is the first request, set the expiry
	if count == 1 {
		l.redis.Expire(ctx, key, window)
	}

	// Check if limit exceeded
	if int(count) > limit {
		return ErrRateLimited
	}

	return nil
}

// GetRemainingRequests returns how many requests are remaining for a given key
func (l *Limiter) GetRemainingRequests(ctx context.Context, keyPrefix, identifier string, limit int) (int, error) {
	if l.redis == nil {
		return limit, nil
	}

	key := fmt.Sprintf("%s:%s", keyPrefix, identifier)
	count, err := l.redis.Get(ctx, key).Int()
	if err == redis.Nil {
		return limit, nil
	}
	if err != nil {
		return limit, err
	}

	remaining := limit - count
	if remaining < 0 {
		remaining = 0
	}
	return remaining, nil
}
