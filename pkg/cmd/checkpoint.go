package cmd

import (
	"context"
	"strings"

	"github.com/publion/publion/pkg/checkpoint"
	"github.com/publion/publion/pkg/checkpoint/memory"
	"github.com/publion/publion/pkg/checkpoint/redis"
)

// NewCheckpointStore builds the suspension checkpoint store. A redis URL gets
// the durable store; an empty URL falls back to the in-process map, where
// suspended runs rehydrate from snapshots after a restart.
func NewCheckpointStore(ctx context.Context, checkpointURL string) (checkpoint.Store, error) {
	if strings.HasPrefix(checkpointURL, "redis://") || strings.HasPrefix(checkpointURL, "rediss://") {
		return redis.NewStore(ctx, checkpointURL)
	}

	return memory.NewStore(), nil
}
