package suggest

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// scriptedFetcher serves per-camp responses. A camp with a gate blocks until
// the gate closes (or the fetch context is cancelled), so tests can order
// overlapping fetches.
type scriptedFetcher struct {
	mu        sync.Mutex
	questions map[string][]string
	err       error
	gates     map[string]chan struct{}
}

func (f *scriptedFetcher) SuggestQuestions(ctx context.Context, campID, personalization string) ([]string, error) {
	f.mu.Lock()
	gate := f.gates[campID]
	err := f.err
	qs := f.questions[campID]
	f.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}
	return qs, nil
}

func deliveries() (func([]string), chan []string) {
	ch := make(chan []string, 8)
	return func(qs []string) { ch <- qs }, ch
}

func TestRefreshDeliversQuestions(t *testing.T) {
	fetcher := &scriptedFetcher{questions: map[string][]string{
		"camp-1": {"When is drop-off?", "What should we pack?"},
	}}
	deliver, got := deliveries()
	c := NewController(fetcher, 3, deliver)
	defer c.Cancel()

	c.Refresh(context.Background(), "camp-1", "")

	select {
	case qs := <-got:
		if len(qs) != 2 || qs[0] != "When is drop-off?" {
			t.Errorf("delivered %v", qs)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no delivery")
	}
}

func TestRefreshTruncatesToLimit(t *testing.T) {
	fetcher := &scriptedFetcher{questions: map[string][]string{
		"camp-1": {"a", "b", "c", "d", "e"},
	}}
	deliver, got := deliveries()
	c := NewController(fetcher, 3, deliver)
	defer c.Cancel()

	c.Refresh(context.Background(), "camp-1", "")

	select {
	case qs := <-got:
		if len(qs) != 3 {
			t.Errorf("delivered %d questions, want 3", len(qs))
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no delivery")
	}
}

func TestNewerRefreshSupersedesOlder(t *testing.T) {
	release := make(chan struct{})
	fetcher := &scriptedFetcher{
		questions: map[string][]string{
			"slow-camp": {"stale"},
			"fast-camp": {"fresh"},
		},
		gates: map[string]chan struct{}{"slow-camp": release},
	}
	deliver, got := deliveries()
	c := NewController(fetcher, 3, deliver)
	defer c.Cancel()

	c.Refresh(context.Background(), "slow-camp", "")
	c.Refresh(context.Background(), "fast-camp", "")
	// Unblock the superseded fetch only after the newer one is in flight.
	close(release)

	select {
	case qs := <-got:
		if len(qs) != 1 || qs[0] != "fresh" {
			t.Fatalf("delivered %v, want the newer fetch only", qs)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no delivery")
	}

	select {
	case qs := <-got:
		t.Fatalf("stale fetch delivered %v after being superseded", qs)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestCancelSuppressesDelivery(t *testing.T) {
	release := make(chan struct{})
	fetcher := &scriptedFetcher{
		questions: map[string][]string{"camp-1": {"late"}},
		gates:     map[string]chan struct{}{"camp-1": release},
	}
	deliver, got := deliveries()
	c := NewController(fetcher, 3, deliver)

	c.Refresh(context.Background(), "camp-1", "")
	c.Cancel()
	close(release)

	select {
	case qs := <-got:
		t.Fatalf("cancelled fetch delivered %v", qs)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestFetchErrorDropsSilently(t *testing.T) {
	fetcher := &scriptedFetcher{err: errors.New("relay down")}
	deliver, got := deliveries()
	c := NewController(fetcher, 3, deliver)
	defer c.Cancel()

	c.Refresh(context.Background(), "camp-1", "")

	select {
	case qs := <-got:
		t.Fatalf("failed fetch delivered %v", qs)
	case <-time.After(200 * time.Millisecond):
	}
}
