// Package suggest fetches suggested questions in the background with a
// last-request-wins discipline: every refresh cancels the outstanding fetch,
// and a fetch that finishes after being superseded is dropped without ever
// reaching the UI.
package suggest

import (
	"context"
	"sync"

	"campchat/internal/logging"
)

// Fetcher is the collaborator surface the controller fetches through.
type Fetcher interface {
	SuggestQuestions(ctx context.Context, campID, personalization string) ([]string, error)
}

// Controller owns at most one live suggestion request at a time.
type Controller struct {
	mu      sync.Mutex
	fetcher Fetcher
	limit   int
	deliver func(questions []string)

	gen    uint64
	cancel context.CancelFunc
}

// NewController creates a controller that surfaces at most limit questions
// through deliver. Deliver is only ever called for the newest request.
func NewController(fetcher Fetcher, limit int, deliver func([]string)) *Controller {
	return &Controller{
		fetcher: fetcher,
		limit:   limit,
		deliver: deliver,
	}
}

// Refresh supersedes any outstanding request and issues a new one for the
// given camp and personalization context. Non-blocking.
func (c *Controller) Refresh(ctx context.Context, campID, personalization string) {
	c.mu.Lock()
	if c.cancel != nil {
		c.cancel()
	}
	c.gen++
	gen := c.gen
	fetchCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.mu.Unlock()

	logging.SuggestDebug("refreshing suggestions for camp %s (generation %d)", campID, gen)

	go func() {
		defer cancel()

		questions, err := c.fetcher.SuggestQuestions(fetchCtx, campID, personalization)
		if err != nil {
			// Includes cancellation; either way nothing is rendered.
			logging.SuggestWarn("suggestion fetch for camp %s dropped: %v", campID, err)
			return
		}
		if len(questions) > c.limit {
			questions = questions[:c.limit]
		}

		c.mu.Lock()
		stale := gen != c.gen
		if !stale && c.cancel != nil {
			c.cancel = nil
		}
		c.mu.Unlock()

		if stale {
			logging.SuggestDebug("discarding superseded suggestions (generation %d)", gen)
			return
		}
		if len(questions) > 0 {
			c.deliver(questions)
		}
	}()
}

// Cancel aborts any outstanding request without issuing a new one.
func (c *Controller) Cancel() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.gen++
}
