package cache

import (
	"context"
	"fmt"
	"time"
)

const (
	UserKeyPrefix          = "user:%d"
	DirectoryKeyPrefix     = "directory:%s:v%d:%d:%d"
	DirectoryVersionPrefix = "directory:%s:version"
	PendingCountsPrefix    = "approvals:pending_counts:v%d"
	PendingCountsGenKey    = "approvals:pending_counts:generation"
	WSTicketKeyPrefix      = "ws_ticket:%s"
)

const (
	UserTTL          = 5 * time.Minute
	DirectoryTTL     = 2 * time.Minute
	PendingCountsTTL = 30 * time.Second
	WSTicketTTL      = 30 * time.Second
)

func UserKey(userID uint) string {
	return fmt.Sprintf(UserKeyPrefix, userID)
}

// DirectoryKey names one cached page of a public listing. Bumping the
// listing's version orphans every cached page at once.
func DirectoryKey(listing string, version int64, limit, offset int) string {
	return fmt.Sprintf(DirectoryKeyPrefix, listing, version, limit, offset)
}

func DirectoryVersionKey(listing string) string {
	return fmt.Sprintf(DirectoryVersionPrefix, listing)
}

func WSTicketKey(ticket string) string {
	return fmt.Sprintf(WSTicketKeyPrefix, ticket)
}

func Invalidate(ctx context.Context, key string) {
	if client != nil {
		client.Del(ctx, key)
	}
}

func InvalidateUser(ctx context.Context, userID uint) {
	Invalidate(ctx, UserKey(userID))
}

// PendingCountsKey names the cached queue sizes for one generation. A load
// that started before InvalidatePendingCounts writes under the old
// generation, where no reader will look.
func PendingCountsKey(generation int64) string {
	return fmt.Sprintf(PendingCountsPrefix, generation)
}

func PendingCountsGeneration(ctx context.Context) int64 {
	if client == nil {
		return 0
	}
	v, err := client.Get(ctx, PendingCountsGenKey).Int64()
	if err != nil {
		return 0
	}
	return v
}

func InvalidatePendingCounts(ctx context.Context) {
	if client == nil {
		return
	}
	gen, err := client.Incr(ctx, PendingCountsGenKey).Result()
	if err != nil {
		return
	}
	client.Del(ctx, PendingCountsKey(gen-1))
}

// DirectoryVersion returns the current generation of a public listing.
func DirectoryVersion(ctx context.Context, listing string) int64 {
	if client == nil {
		return 0
	}
	v, err := client.Get(ctx, DirectoryVersionKey(listing)).Int64()
	if err != nil {
		return 0
	}
	return v
}

// BumpDirectory invalidates every cached page of a public listing.
func BumpDirectory(ctx context.Context, listing string) {
	if client != nil {
		client.Incr(ctx, DirectoryVersionKey(listing))
	}
}
