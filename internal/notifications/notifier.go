// Package notifications pushes request status changes to submitters over websockets.
package notifications

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strconv"
	"strings"

	"sigede/internal/middleware"

	"github.com/redis/go-redis/v9"
)

const userChannelPrefix = "notifications:user:"

// Notifier publishes notifications into per-user Redis channels so that every
// API instance can deliver them to its own websocket connections.
type Notifier struct {
	rdb   *redis.Client
	local func(userID uint, payload string)
}

// NewNotifier creates a Notifier. A nil client makes publishing a no-op unless
// a local sink is attached.
func NewNotifier(rdb *redis.Client) *Notifier {
	return &Notifier{rdb: rdb}
}

// DeliverLocally attaches a sink used when Redis is not configured, so a
// single instance still reaches its own clients.
func (n *Notifier) DeliverLocally(sink func(userID uint, payload string)) {
	n.local = sink
}

// PublishUser sends a payload to a user's channel.
func (n *Notifier) PublishUser(ctx context.Context, userID uint, payload string) error {
	if n.rdb == nil {
		if n.local != nil {
			n.local(userID, payload)
		}
		return nil
	}
	if err := n.rdb.Publish(ctx, UserChannel(userID), payload).Err(); err != nil {
		middleware.RedisErrors.WithLabelValues("publish").Inc()
		return fmt.Errorf("publish to user %d: %w", userID, err)
	}
	return nil
}

// PublishStatusChange notifies the submitter of a request.
func (n *Notifier) PublishStatusChange(ctx context.Context, change StatusChange) error {
	payload, err := encode(EventRequestStatusChanged, change)
	if err != nil {
		return fmt.Errorf("marshal status change: %w", err)
	}
	return n.PublishUser(ctx, change.SubmitterID, payload)
}

// StartPatternSubscriber subscribes to every user channel and calls onMessage
// for each message until ctx is done.
func (n *Notifier) StartPatternSubscriber(ctx context.Context, onMessage func(userID uint, payload string)) error {
	if n.rdb == nil {
		return nil
	}
	sub := n.rdb.PSubscribe(ctx, userChannelPrefix+"*")
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return fmt.Errorf("subscribe to user channels: %w", err)
	}
	ch := sub.Channel()

	go func() {
		defer func() { _ = sub.Close() }()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				userID, ok := ParseUserChannel(msg.Channel)
				if !ok {
					middleware.Logger.Warn("Invalid notification channel", slog.String("channel", msg.Channel))
					continue
				}
				func() {
					defer func() {
						if r := recover(); r != nil {
							middleware.Logger.Error("Panic in notification subscriber",
								slog.Any("panic", r),
								slog.String("stack", string(debug.Stack())),
							)
						}
					}()
					onMessage(userID, msg.Payload)
				}()
			}
		}
	}()

	return nil
}

// UserChannel derives the Redis channel name for a user.
func UserChannel(userID uint) string {
	return userChannelPrefix + strconv.FormatUint(uint64(userID), 10)
}

// ParseUserChannel extracts the user id from a channel built by UserChannel.
func ParseUserChannel(channel string) (uint, bool) {
	raw, ok := strings.CutPrefix(channel, userChannelPrefix)
	if !ok {
		return 0, false
	}
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint(id), true
}
