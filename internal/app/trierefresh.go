package app

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/grayforge/keyward/pkg/cache"
	"github.com/grayforge/keyward/pkg/resource"
)

// refreshTrieFromCache rebuilds trie from the shared snapshot pkg/consoleapi
// publishes on every register/unregister call.
func refreshTrieFromCache(ctx context.Context, c *cache.Cache, trie *resource.Trie, logger *slog.Logger) {
	raw, err := c.GetResourceSnapshot(ctx)
	if err == cache.ErrMiss {
		return
	}
	if err != nil {
		logger.Error("resource trie refresh: reading snapshot", "error", err)
		return
	}

	var leaves []resource.LeafInfo
	if err := json.Unmarshal([]byte(raw), &leaves); err != nil {
		logger.Error("resource trie refresh: decoding snapshot", "error", err)
		return
	}

	trie.Reset()
	for _, leaf := range leaves {
		trie.Register(leaf.URI, leaf)
	}
}
