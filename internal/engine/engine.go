// Package engine assembles the client: the store, the ingress adapters, the
// stream supervisor and the device profile, behind one object with an
// explicit lifecycle. Everything the presentation layer needs goes through
// it.
package engine

import (
	"context"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/veebhq/veeb/internal/analytics"
	"github.com/veebhq/veeb/internal/database"
	"github.com/veebhq/veeb/internal/geoutil"
	"github.com/veebhq/veeb/internal/ingress"
	"github.com/veebhq/veeb/internal/model"
	"github.com/veebhq/veeb/internal/rank"
	"github.com/veebhq/veeb/internal/store"
	"github.com/veebhq/veeb/internal/supervisor"
	"github.com/veebhq/veeb/pkg/feedapi"
)

type (
	// An Engine owns the reconciliation pipeline of one device.
	Engine struct {
		log     logrus.FieldLogger
		db      database.Client
		api     feedapi.Client
		natsURL string

		store *store.Store
		sup   *supervisor.Supervisor
		tabs  *ingress.CrossTab
		local *ingress.Local
		views *tracker
		conn  *nats.Conn

		mu      sync.Mutex
		profile *model.Profile

		cancel context.CancelFunc
	}

	// An AuthorSummary is the derived reputation of one device, rebuilt
	// from the current snapshot on every call.
	AuthorSummary struct {
		DeviceID     string                `json:"device_id"`
		Nickname     string                `json:"nickname"`
		Stats        analytics.AuthorStats `json:"stats"`
		Badges       []analytics.Badge     `json:"badges"`
		Influence    int                   `json:"influence"`
		Level        analytics.Level       `json:"level"`
		NextLevel    *analytics.Level      `json:"next_level,omitempty"`
		NextLevelGap int                   `json:"next_level_gap,omitempty"`
	}

	// LocalData is the exportable device-local state. Everything the
	// device knows about its user fits here; nothing else exists.
	LocalData struct {
		DeviceID      string    `json:"device_id"`
		Nickname      string    `json:"nickname"`
		AlertKeywords []string  `json:"alert_keywords"`
		RadiusIndex   int       `json:"default_radius"`
		ReactedIDs    []string  `json:"reacted_ids"`
		ExportedAt    time.Time `json:"exported_at"`
	}
)

// New returns a stopped engine. db carries the device profile; api reaches
// the remote feed service; natsURL may be empty to run without live updates.
func New(log logrus.FieldLogger, db database.Client, api feedapi.Client, natsURL string) *Engine {
	return &Engine{
		log:     log,
		db:      db,
		api:     api,
		natsURL: natsURL,
		store:   store.New(log),
	}
}

// Start loads the profile, performs the initial feed load and brings up the
// adapters. Transport failures degrade the engine instead of failing it; only
// a broken profile store is fatal.
func (e *Engine) Start(ctx context.Context) error {
	profile, err := e.db.Profile()
	if err != nil {
		return errors.Wrap(err, "could not load device profile")
	}
	e.mu.Lock()
	e.profile = profile
	e.mu.Unlock()

	ctx, e.cancel = context.WithCancel(ctx)
	e.store.Start(ctx)
	e.views = newTracker(e.log, e.store, e.api)

	if e.api != nil {
		if issues, err := e.api.ListIssues(); err != nil {
			e.log.WithError(err).Warn("could not load the initial feed")
		} else {
			// oldest first: inserts prepend, so the feed ends up newest first
			for i := len(issues) - 1; i >= 0; i-- {
				e.store.Apply(store.Insert{Issue: issues[i]})
			}
		}
	}

	if e.natsURL != "" {
		remote := ingress.NewRemote(e.log, e.natsURL, e.store, e.api)
		e.sup = supervisor.New(e.log, remote)
		e.sup.Start()

		conn, err := nats.Connect(e.natsURL, nats.Name("veeb-tabs"))
		if err != nil {
			e.log.WithError(err).Warn("could not join the tab channel")
		} else {
			e.conn = conn
			tabs := ingress.NewCrossTab(e.log, conn, e.store, profile.DeviceID)
			if err := tabs.Start(); err != nil {
				e.log.WithError(err).Warn("could not join the tab channel")
				conn.Close()
				e.conn = nil
			} else {
				e.tabs = tabs
			}
		}
	}

	e.local = ingress.NewLocal(e.log, e.store, e.api, e.tabs, profile.DeviceID)
	return nil
}

// Stop tears the adapters down and drains the store.
func (e *Engine) Stop() {
	if e.views != nil {
		e.views.stop()
	}
	if e.sup != nil {
		e.sup.Stop()
	}
	if e.tabs != nil {
		e.tabs.Stop()
	}
	if e.conn != nil {
		e.conn.Close()
	}
	e.store.Stop()
	if e.cancel != nil {
		e.cancel()
	}
}

// StreamState reports the change-stream lifecycle phase.
func (e *Engine) StreamState() supervisor.State {
	if e.sup == nil {
		return supervisor.Idle
	}
	return e.sup.State()
}

// Feed computes the requested view of the current snapshot. Profile defaults
// fill the filter wherever the caller left it open.
func (e *Engine) Feed(f rank.Filter) []*model.Issue {
	snapshot := e.store.Snapshot()
	profile := e.Profile()

	if f.AlertKeywords == nil {
		f.AlertKeywords = profile.AlertKeywords
	}
	if f.RadiusKm == 0 {
		f.RadiusKm = rank.RadiusSteps[clampRadiusIndex(profile.RadiusIndex)]
	}
	if f.InfluenceOf == nil {
		stats := analytics.Collect(snapshot)
		f.InfluenceOf = stats.Influence
	}

	return rank.Apply(snapshot, time.Now(), f)
}

// Trends extracts the currently trending keywords.
func (e *Engine) Trends() []analytics.TrendKeyword {
	return analytics.TrendKeywords(e.store.Snapshot(), time.Now())
}

// StatsFor derives the reputation of the given device.
func (e *Engine) StatsFor(deviceID string) AuthorSummary {
	stats := analytics.Collect(e.store.Snapshot())
	influence := stats.Influence(deviceID)

	summary := AuthorSummary{
		DeviceID:  deviceID,
		Nickname:  geoutil.Nickname(deviceID),
		Badges:    stats.Badges(deviceID),
		Influence: influence,
		Level:     analytics.LevelFor(influence),
	}
	if stat := stats[deviceID]; stat != nil {
		summary.Stats = *stat
	}
	summary.NextLevel, summary.NextLevelGap = analytics.NextLevel(influence)
	return summary
}

// Me exports the device-local data.
func (e *Engine) Me() LocalData {
	profile := e.Profile()
	return LocalData{
		DeviceID:      profile.DeviceID,
		Nickname:      geoutil.Nickname(profile.DeviceID),
		AlertKeywords: profile.AlertKeywords,
		RadiusIndex:   profile.RadiusIndex,
		ReactedIDs:    profile.ReactedIDs,
		ExportedAt:    time.Now().UTC(),
	}
}

// Profile returns a copy of the device profile.
func (e *Engine) Profile() model.Profile {
	e.mu.Lock()
	defer e.mu.Unlock()

	profile := *e.profile
	profile.AlertKeywords = append([]string(nil), e.profile.AlertKeywords...)
	profile.ReactedIDs = append([]string(nil), e.profile.ReactedIDs...)
	return profile
}

// Post submits a new issue through the optimistic write path.
func (e *Engine) Post(sub ingress.Submission) (*model.Issue, error) {
	return e.local.Create(sub)
}

// Delete removes one of this device's own issues from the local feed, the
// sibling tabs and, best effort, the server.
func (e *Engine) Delete(id string) error {
	issue := e.find(id)
	if issue == nil {
		return errors.New("unknown issue")
	}
	if issue.DeviceID != e.Profile().DeviceID {
		return errors.New("issue belongs to another device")
	}

	e.store.Apply(store.Delete{ID: id})
	if e.tabs != nil {
		e.tabs.BroadcastDelete(id)
	}
	// a temp row never reached the server, nothing to delete there
	if e.api != nil && !issue.Temporary() {
		go func() {
			if err := e.api.DeleteIssue(id); err != nil {
				e.log.WithError(err).WithField("id", id).Debug("could not delete remotely")
			}
		}()
	}
	return nil
}

// ToggleReaction flips this device's reaction on the given issue and returns
// the new state. The count change is absolute and mirrored to the other tabs
// and, best effort, to the server.
func (e *Engine) ToggleReaction(id string) (bool, error) {
	issue := e.find(id)
	if issue == nil {
		return false, errors.New("unknown issue")
	}
	if issue.Temporary() {
		return false, errors.New("issue is not saved yet")
	}

	e.mu.Lock()
	reacted := e.profile.ToggleReacted(id)
	if err := e.db.Save(e.profile); err != nil {
		e.profile.ToggleReacted(id) // revert
		e.mu.Unlock()
		return !reacted, errors.Wrap(err, "could not persist reaction")
	}
	e.mu.Unlock()

	count := issue.ReactionCount
	if reacted {
		count++
	} else if count > 0 {
		count--
	}

	e.store.Apply(store.Reaction{ID: id, Count: count})
	if e.tabs != nil {
		e.tabs.BroadcastReaction(id, count)
	}
	if e.api != nil {
		go func() {
			if err := e.api.UpdateIssue(id, map[string]any{"reaction_count": count}); err != nil {
				e.log.WithError(err).WithField("id", id).Debug("could not flush reaction count")
			}
		}()
	}
	return reacted, nil
}

// Visible reports that an issue entered the viewport. A second of dwell time
// later its view counter is bumped, once per process lifetime.
func (e *Engine) Visible(id string) {
	e.views.visible(id)
}

// Hidden reports that an issue left the viewport before the dwell elapsed.
func (e *Engine) Hidden(id string) {
	e.views.hidden(id)
}

// SetAlertKeywords replaces the saved alert keywords.
func (e *Engine) SetAlertKeywords(keywords []string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	previous := e.profile.AlertKeywords
	e.profile.AlertKeywords = keywords
	if err := e.db.Save(e.profile); err != nil {
		e.profile.AlertKeywords = previous
		return errors.Wrap(err, "could not persist alert keywords")
	}
	return nil
}

// SetRadiusIndex persists the default nearby radius selection.
func (e *Engine) SetRadiusIndex(index int) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	previous := e.profile.RadiusIndex
	e.profile.RadiusIndex = clampRadiusIndex(index)
	if err := e.db.Save(e.profile); err != nil {
		e.profile.RadiusIndex = previous
		return errors.Wrap(err, "could not persist radius")
	}
	return nil
}

func (e *Engine) find(id string) *model.Issue {
	for _, issue := range e.store.Snapshot() {
		if issue.ID == id {
			return issue
		}
	}
	return nil
}

func clampRadiusIndex(index int) int {
	if index < 0 || index >= len(rank.RadiusSteps) {
		return rank.DefaultRadiusIndex
	}
	return index
}
