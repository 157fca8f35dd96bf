// Package store owns the single in-memory issue collection. All mutations
// from all ingress adapters are serialized through one queue consumed by one
// goroutine, so merge rules never interleave; readers work on snapshots and
// never block ingestion.
package store

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"
	"github.com/veebhq/veeb/internal/model"
)

const queueSize = 256

type (
	// A Store is the single source of truth for the issue collection.
	Store struct {
		log logrus.FieldLogger

		queue chan any
		quit  chan struct{}
		wg    sync.WaitGroup

		// Owned by the run goroutine only.
		issues []*model.Issue // newest first
		byID   map[string]*model.Issue
		byKey  map[string]*model.Issue
	}

	snapshotReq struct {
		reply chan []*model.Issue
	}
)

// New returns a stopped store. Call Start before applying commands.
func New(log logrus.FieldLogger) *Store {
	return &Store{
		log:   log,
		queue: make(chan any, queueSize),
		quit:  make(chan struct{}),
		byID:  map[string]*model.Issue{},
		byKey: map[string]*model.Issue{},
	}
}

// Start spawns the mutation-queue goroutine. The store stops when Stop is
// called or ctx is canceled.
func (s *Store) Start(ctx context.Context) {
	s.wg.Add(1)
	go s.run(ctx)
}

// Stop terminates the mutation queue and waits for the worker goroutine to
// exit. Commands still queued at that point are dropped.
func (s *Store) Stop() {
	close(s.quit)
	s.wg.Wait()
}

// Apply enqueues a mutation command. Adapters only ever enqueue; they never
// touch the collection directly.
func (s *Store) Apply(cmd Command) {
	select {
	case s.queue <- cmd:
	case <-s.quit:
	}
}

// Snapshot returns a copy of the collection, newest first. Commands applied
// before the call are visible in the returned snapshot.
func (s *Store) Snapshot() []*model.Issue {
	req := snapshotReq{reply: make(chan []*model.Issue, 1)}
	select {
	case s.queue <- req:
		return <-req.reply
	case <-s.quit:
		return nil
	}
}

func (s *Store) run(ctx context.Context) {
	defer s.wg.Done()

	for {
		select {
		case m := <-s.queue:
			s.dispatch(m)
		case <-ctx.Done():
			return
		case <-s.quit:
			return
		}
	}
}

func (s *Store) dispatch(m any) {
	switch m := m.(type) {
	case Insert:
		s.insert(m.Issue)
	case Update:
		s.update(m.Partial)
	case Delete:
		s.delete(m.ID)
	case Reaction:
		s.reaction(m.ID, m.Count)
	case snapshotReq:
		m.reply <- s.snapshot()
	}
}

// insert applies the reconciliation protocol for inbound rows.
func (s *Store) insert(issue *model.Issue) {
	if issue == nil || issue.ID == "" {
		return
	}

	// Duplicate delivery of a known ID: the only thing a duplicate may do
	// is complete a missing image.
	if existing := s.byID[issue.ID]; existing != nil {
		if existing.Image == "" && issue.Image != "" {
			existing.Image = issue.Image
			s.log.WithField("id", issue.ID).Debug("merged image into existing issue")
		}
		return
	}

	// A durable row may confirm an optimistic one: same author, same title,
	// temporary ID. Replace it in place, keeping the render key stable.
	if !issue.Temporary() {
		if cand := s.reconcileCandidate(issue); cand != nil {
			s.replace(cand, issue)
			return
		}
	}

	row := *issue
	if row.StableKey == "" {
		row.StableKey = row.ID
	}
	if existing := s.byKey[row.StableKey]; existing != nil {
		return
	}
	row.ReactionCount = clamp(row.ReactionCount)
	row.Views = clamp(row.Views)

	s.issues = append([]*model.Issue{&row}, s.issues...)
	s.byID[row.ID] = &row
	s.byKey[row.StableKey] = &row
}

func (s *Store) reconcileCandidate(issue *model.Issue) *model.Issue {
	for _, cand := range s.issues {
		if cand.Temporary() && cand.DeviceID == issue.DeviceID && cand.Title == issue.Title {
			return cand
		}
	}
	return nil
}

// replace swaps an optimistic row for its durable confirmation, in place.
func (s *Store) replace(cand, issue *model.Issue) {
	delete(s.byID, cand.ID)
	delete(s.byKey, cand.StableKey)

	row := *issue
	row.StableKey = cand.StableKey
	if row.Image == "" {
		row.Image = cand.Image
	}
	row.ReactionCount = clamp(row.ReactionCount)
	row.Views = clamp(row.Views)

	for i, it := range s.issues {
		if it == cand {
			s.issues[i] = &row
			break
		}
	}
	s.byID[row.ID] = &row
	s.byKey[row.StableKey] = &row

	s.log.WithFields(logrus.Fields{"temp": cand.ID, "id": row.ID}).Debug("reconciled optimistic issue")
}

// update merges present fields of a partial row. Unknown IDs are dropped:
// an update racing ahead of its insert is acceptable, never a crash.
func (s *Store) update(p *model.Partial) {
	if p == nil {
		return
	}
	existing := s.byID[p.ID]
	if existing == nil {
		return
	}

	if p.Title != nil {
		existing.Title = *p.Title
	}
	// The image only ever gains a value; an absent or empty incoming image
	// never erases a known one.
	if p.Image != nil && *p.Image != "" {
		existing.Image = *p.Image
	}
	if p.DeviceID != nil {
		existing.DeviceID = *p.DeviceID
	}
	if p.Category != nil {
		existing.Category = *p.Category
	}
	if p.Latitude != nil {
		existing.Latitude = p.Latitude
	}
	if p.Longitude != nil {
		existing.Longitude = p.Longitude
	}
	if p.Status != nil {
		existing.Status = *p.Status
	}
	if p.ReactionCount != nil {
		existing.ReactionCount = clamp(*p.ReactionCount)
	}
	if p.Views != nil {
		existing.Views = clamp(*p.Views)
	}
	// Creation time is immutable once known.
	if p.CreatedAt != nil && existing.CreatedAt == nil {
		existing.SetCreatedAt(*p.CreatedAt)
	}
}

func (s *Store) delete(id string) {
	existing := s.byID[id]
	if existing == nil {
		return
	}

	delete(s.byID, id)
	delete(s.byKey, existing.StableKey)
	for i, it := range s.issues {
		if it == existing {
			s.issues = append(s.issues[:i], s.issues[i+1:]...)
			break
		}
	}
}

func (s *Store) reaction(id string, count int) {
	existing := s.byID[id]
	if existing == nil {
		return
	}
	existing.ReactionCount = clamp(count)
}

func (s *Store) snapshot() []*model.Issue {
	out := make([]*model.Issue, len(s.issues))
	for i, it := range s.issues {
		row := *it
		out[i] = &row
	}
	return out
}

func clamp(n int) int {
	if n < 0 {
		return 0
	}
	return n
}
