package engine

import (
	"strings"
	"sync"
	"time"

	"github.com/bep/debounce"
	"github.com/sirupsen/logrus"
	"github.com/veebhq/veeb/internal/model"
	"github.com/veebhq/veeb/internal/store"
	"github.com/veebhq/veeb/pkg/feedapi"
)

const (
	// viewDwell is how long an issue must stay visible before it counts.
	viewDwell = time.Second
	// viewFlushDelay batches remote view-count writes.
	viewFlushDelay = 500 * time.Millisecond
)

// A tracker debounces viewport visibility into view counts. An issue counts
// at most once per process lifetime, only when it is still in the store when
// the dwell timer fires. The local bump goes through the mutation queue; the
// remote write is batched and fire-and-forget.
type tracker struct {
	log   logrus.FieldLogger
	store *store.Store
	api   feedapi.Client
	flush func(func())

	mu      sync.Mutex
	timers  map[string]*time.Timer
	counted map[string]bool
	pending map[string]int
	closed  bool
}

func newTracker(log logrus.FieldLogger, s *store.Store, api feedapi.Client) *tracker {
	return &tracker{
		log:     log,
		store:   s,
		api:     api,
		flush:   debounce.New(viewFlushDelay),
		timers:  map[string]*time.Timer{},
		counted: map[string]bool{},
		pending: map[string]int{},
	}
}

func (t *tracker) visible(id string) {
	// rows not yet saved remotely never count
	if strings.HasPrefix(id, model.TempIDPrefix) {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed || t.counted[id] || t.timers[id] != nil {
		return
	}
	t.timers[id] = time.AfterFunc(viewDwell, func() { t.fire(id) })
}

func (t *tracker) hidden(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if timer := t.timers[id]; timer != nil {
		timer.Stop()
		delete(t.timers, id)
	}
}

func (t *tracker) fire(id string) {
	t.mu.Lock()
	delete(t.timers, id)
	if t.closed || t.counted[id] {
		t.mu.Unlock()
		return
	}
	t.mu.Unlock()

	// The dwell elapsed, but the row may have been deleted meanwhile.
	var current *model.Issue
	for _, issue := range t.store.Snapshot() {
		if issue.ID == id {
			current = issue
			break
		}
	}
	if current == nil {
		return
	}
	views := current.Views + 1

	t.mu.Lock()
	if t.closed || t.counted[id] {
		t.mu.Unlock()
		return
	}
	t.counted[id] = true
	t.pending[id] = views
	t.mu.Unlock()

	t.store.Apply(store.Update{Partial: &model.Partial{ID: id, Views: &views}})
	t.flush(t.sync)
}

func (t *tracker) sync() {
	t.mu.Lock()
	pending := t.pending
	t.pending = map[string]int{}
	t.mu.Unlock()

	if t.api == nil {
		return
	}
	for id, views := range pending {
		if err := t.api.UpdateIssue(id, map[string]any{"views": views}); err != nil {
			t.log.WithError(err).WithField("id", id).Debug("could not flush view count")
		}
	}
}

func (t *tracker) stop() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.closed = true
	for id, timer := range t.timers {
		timer.Stop()
		delete(t.timers, id)
	}
}
