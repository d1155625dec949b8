// Package notifications delivers moderation events to connected clients over
// Redis pub/sub and websockets.
package notifications

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strconv"
	"strings"

	"bizdir/internal/middleware"
	"bizdir/internal/models"

	"github.com/redis/go-redis/v9"
)

const (
	userChannelPrefix = "notifications:user:"
	// AdminChannel carries events for every connected admin.
	AdminChannel = "notifications:admins"
)

// UserChannel derives the Redis channel name for a user.
func UserChannel(userID uint) string {
	return userChannelPrefix + strconv.FormatUint(uint64(userID), 10)
}

// parseUserChannel returns the user id of a user channel.
func parseUserChannel(channel string) (uint, bool) {
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

// Message is the websocket envelope.
type Message struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

// Notifier publishes notifications into Redis channels.
type Notifier struct {
	rdb *redis.Client
}

// NewNotifier creates a new Notifier. A nil client turns every publish into a no-op.
func NewNotifier(rdb *redis.Client) *Notifier {
	return &Notifier{rdb: rdb}
}

// PublishUser sends a payload to a user's channel.
func (n *Notifier) PublishUser(ctx context.Context, userID uint, payload string) error {
	if n.rdb == nil {
		return nil
	}
	return n.rdb.Publish(ctx, UserChannel(userID), payload).Err()
}

// PublishAdmins sends a payload to every admin.
func (n *Notifier) PublishAdmins(ctx context.Context, payload string) error {
	if n.rdb == nil {
		return nil
	}
	return n.rdb.Publish(ctx, AdminChannel, payload).Err()
}

// PublishApprovalEvent routes decisions to the entry owner and submissions
// to the admins.
func (n *Notifier) PublishApprovalEvent(ctx context.Context, event models.ApprovalEvent) error {
	body, err := json.Marshal(Message{Type: event.Type, Payload: event})
	if err != nil {
		return fmt.Errorf("marshal approval event: %w", err)
	}
	switch event.Type {
	case models.EventApprovalDecided:
		return n.PublishUser(ctx, event.OwnerID, string(body))
	case models.EventApprovalSubmitted:
		return n.PublishAdmins(ctx, string(body))
	}
	return fmt.Errorf("unknown approval event type %q", event.Type)
}

// StartSubscriber subscribes to user and admin channels and calls onMessage
// for each incoming message until ctx is cancelled.
func (n *Notifier) StartSubscriber(ctx context.Context, onMessage func(channel string, payload string)) error {
	if n.rdb == nil {
		return nil
	}
	sub := n.rdb.PSubscribe(ctx, userChannelPrefix+"*", AdminChannel)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return fmt.Errorf("subscribe notifications: %w", err)
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
				func() {
					defer func() {
						if r := recover(); r != nil {
							middleware.Logger.Error("panic in notification subscriber",
								slog.Any("panic", r),
								slog.String("stack", string(debug.Stack())),
							)
						}
					}()
					onMessage(msg.Channel, msg.Payload)
				}()
			}
		}
	}()

	return nil
}
