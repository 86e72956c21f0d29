// Package instructions caches per-camp operator instruction overrides.
//
// Cache semantics matter here: a missing entry means "not yet loaded" while a
// present empty string means "loaded, no override configured". Mutations
// invalidate the entry so the next read observes the backend's truth.
package instructions

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"campchat/internal/logging"

	"golang.org/x/sync/singleflight"
)

// Store is the collaborator surface the cache fetches through.
type Store interface {
	LoadCustomInstructions(ctx context.Context, campID string) (string, error)
	SaveCustomInstructions(ctx context.Context, campID, text string) error
	DeleteCustomInstructions(ctx context.Context, campID string) error
}

// Cache is a per-camp instruction cache with a load/save/delete/invalidate
// lifecycle. Safe for concurrent use.
type Cache struct {
	mu      sync.Mutex
	entries map[string]string
	group   singleflight.Group
	store   Store
}

// NewCache creates an empty cache backed by the given store.
func NewCache(store Store) *Cache {
	return &Cache{
		entries: make(map[string]string),
		store:   store,
	}
}

// Peek returns the cached text and whether an entry exists, without fetching.
func (c *Cache) Peek(campID string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	text, ok := c.entries[campID]
	return text, ok
}

// Load returns the cached instructions for a camp, fetching and storing them
// on first access. Concurrent loads for the same camp share one fetch.
func (c *Cache) Load(ctx context.Context, campID string) (string, error) {
	if campID == "" {
		return "", fmt.Errorf("camp id required")
	}

	c.mu.Lock()
	if text, ok := c.entries[campID]; ok {
		c.mu.Unlock()
		return text, nil
	}
	c.mu.Unlock()

	v, err, _ := c.group.Do(campID, func() (interface{}, error) {
		text, err := c.store.LoadCustomInstructions(ctx, campID)
		if err != nil {
			return "", err
		}
		c.mu.Lock()
		c.entries[campID] = text
		c.mu.Unlock()
		logging.Instructions("loaded instructions for camp %s (%d bytes)", campID, len(text))
		return text, nil
	})
	if err != nil {
		return "", fmt.Errorf("failed to load custom instructions: %w", err)
	}
	return v.(string), nil
}

// Save uploads new instruction text, invalidates the entry, and eagerly
// reloads so the cache reflects what the backend actually stored.
func (c *Cache) Save(ctx context.Context, campID, text string) error {
	if campID == "" {
		return fmt.Errorf("camp id required")
	}
	if strings.TrimSpace(text) == "" {
		return fmt.Errorf("instruction text must not be empty")
	}

	if err := c.store.SaveCustomInstructions(ctx, campID, text); err != nil {
		return fmt.Errorf("failed to save custom instructions: %w", err)
	}
	c.Invalidate(campID)

	if _, err := c.Load(ctx, campID); err != nil {
		// The save itself succeeded; the reload will happen on next access.
		logging.InstructionsError("reload after save failed for camp %s: %v", campID, err)
	}
	return nil
}

// Delete removes the override on the backend and invalidates the entry, so
// the next access observes the deletion rather than a stale cached value.
func (c *Cache) Delete(ctx context.Context, campID string) error {
	if campID == "" {
		return fmt.Errorf("camp id required")
	}

	if err := c.store.DeleteCustomInstructions(ctx, campID); err != nil {
		return fmt.Errorf("failed to delete custom instructions: %w", err)
	}
	c.Invalidate(campID)
	logging.Instructions("deleted instructions for camp %s", campID)
	return nil
}

// Invalidate removes the cache entry for a camp. Any in-flight shared fetch
// is forgotten so a post-invalidation load cannot observe the stale result.
func (c *Cache) Invalidate(campID string) {
	c.mu.Lock()
	delete(c.entries, campID)
	c.mu.Unlock()
	c.group.Forget(campID)
}
