package ingress

import (
	"github.com/nats-io/nats.go"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/veebhq/veeb/internal/model"
	"github.com/veebhq/veeb/internal/store"
	"github.com/veebhq/veeb/pkg/feedwire"
)

// A CrossTab mirrors local writes between the tabs of one device over the
// device's broadcast subject. Fire and forget: messages may be lost, and a
// tab receives its own broadcasts back, so every command derived here is
// idempotent by construction.
type CrossTab struct {
	log      logrus.FieldLogger
	conn     *nats.Conn
	store    *store.Store
	deviceID string
	sub      *nats.Subscription
}

// NewCrossTab returns a cross-tab adapter for the given device.
func NewCrossTab(log logrus.FieldLogger, conn *nats.Conn, s *store.Store, deviceID string) *CrossTab {
	return &CrossTab{log: log, conn: conn, store: s, deviceID: deviceID}
}

// Start subscribes to the device's broadcast subject.
func (c *CrossTab) Start() error {
	sub, err := c.conn.Subscribe(feedwire.TabsSubject(c.deviceID), c.handle)
	if err != nil {
		return errors.Wrap(err, "could not subscribe to the tab channel")
	}
	c.sub = sub
	return nil
}

// Stop unsubscribes from the broadcast subject.
func (c *CrossTab) Stop() {
	if c.sub != nil {
		_ = c.sub.Unsubscribe()
		c.sub = nil
	}
}

// BroadcastNew announces a locally created issue to the other tabs.
func (c *CrossTab) BroadcastNew(issue *model.Issue) {
	c.broadcast(&feedwire.TabMessage{Type: feedwire.TabNewIssue, Issue: issue})
}

// BroadcastDelete announces a locally deleted issue to the other tabs.
func (c *CrossTab) BroadcastDelete(id string) {
	c.broadcast(&feedwire.TabMessage{Type: feedwire.TabDeleteIssue, IssueID: id})
}

// BroadcastReaction announces a reaction-count change to the other tabs.
func (c *CrossTab) BroadcastReaction(id string, count int) {
	issue := &model.Issue{ReactionCount: count}
	issue.SetID(id)
	c.broadcast(&feedwire.TabMessage{Type: feedwire.TabUpdateReaction, Issue: issue})
}

func (c *CrossTab) broadcast(m *feedwire.TabMessage) {
	raw, err := feedwire.EncodeTabMessage(m)
	if err != nil {
		c.log.WithError(err).Warn("could not encode tab message")
		return
	}
	if err := c.conn.Publish(feedwire.TabsSubject(c.deviceID), raw); err != nil {
		c.log.WithError(err).Warn("could not broadcast tab message")
	}
}

func (c *CrossTab) handle(msg *nats.Msg) {
	m, err := feedwire.DecodeTabMessage(msg.Data)
	if err != nil {
		c.log.WithError(err).Warn("could not decode tab message")
		return
	}

	switch m.Type {
	case feedwire.TabNewIssue:
		if m.Issue == nil || m.Issue.ID == "" {
			return
		}
		c.store.Apply(store.Insert{Issue: m.Issue})
	case feedwire.TabDeleteIssue:
		if m.IssueID == "" {
			return
		}
		c.store.Apply(store.Delete{ID: m.IssueID})
	case feedwire.TabUpdateReaction:
		if m.Issue == nil || m.Issue.ID == "" {
			return
		}
		c.store.Apply(store.Reaction{ID: m.Issue.ID, Count: m.Issue.ReactionCount})
	default:
		c.log.WithField("type", m.Type).Warn("unknown tab message")
	}
}
