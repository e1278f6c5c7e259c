package cache

import (
	"context"
	"fmt"
	"time"
)

const (
	userKeyPrefix      = "user:%d"
	blacklistKeyPrefix = "blacklist:%s"
	// ReviewSummaryKey holds per-status request counts for the review dashboard.
	ReviewSummaryKey = "requests:summary"
	// SweepLockKey is the lease held by the running auto-approval sweep.
	SweepLockKey = "sweep:auto_approval:lock"
)

const (
	UserTTL          = 5 * time.Minute
	ReviewSummaryTTL = 30 * time.Second
)

// UserKey is the cache key for one user record.
func UserKey(userID uint) string {
	return fmt.Sprintf(userKeyPrefix, userID)
}

// BlacklistKey marks a revoked token id.
func BlacklistKey(jti string) string {
	return fmt.Sprintf(blacklistKeyPrefix, jti)
}

// Invalidate removes key; errors are counted by the metrics hook and otherwise ignored.
func Invalidate(ctx context.Context, keys ...string) {
	if client != nil && len(keys) > 0 {
		client.Del(ctx, keys...)
	}
}

// InvalidateUser drops a cached user record.
func InvalidateUser(ctx context.Context, userID uint) {
	Invalidate(ctx, UserKey(userID))
}

// InvalidateReviewSummary drops the cached dashboard counts after a status change.
func InvalidateReviewSummary(ctx context.Context) {
	Invalidate(ctx, ReviewSummaryKey)
}
