// Package ingress feeds the store. Each adapter normalizes one event source
// (remote change stream, same-device tabs, local user actions) into store
// commands; none of them ever touches the collection directly.
package ingress

import (
	"github.com/nats-io/nats.go"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/veebhq/veeb/internal/model"
	"github.com/veebhq/veeb/internal/store"
	"github.com/veebhq/veeb/internal/supervisor"
	"github.com/veebhq/veeb/pkg/feedapi"
	"github.com/veebhq/veeb/pkg/feedwire"
)

// A Remote subscribes to the server's change stream and turns its events
// into store commands. It implements supervisor.Stream: the supervisor owns
// when it is connected, Remote owns what the events mean.
type Remote struct {
	log   logrus.FieldLogger
	url   string
	store *store.Store
	api   feedapi.Client
}

var _ supervisor.Stream = (*Remote)(nil)

// NewRemote returns a change-stream adapter. api may be nil; it is only used
// for the best-effort point lookup completing image-less events.
func NewRemote(log logrus.FieldLogger, url string, s *store.Store, api feedapi.Client) *Remote {
	return &Remote{log: log, url: url, store: s, api: api}
}

// Subscribe connects and subscribes to the whole change stream. Reconnection
// is not handled here; the connection reports its death through failed and
// the supervisor decides what happens next.
func (r *Remote) Subscribe(failed func(error)) (func(), error) {
	stopped := make(chan struct{})

	conn, err := nats.Connect(r.url,
		nats.Name("veeb-feed"),
		nats.NoReconnect(),
		nats.ClosedHandler(func(c *nats.Conn) {
			select {
			case <-stopped:
				return
			default:
			}

			err := c.LastError()
			if err == nil {
				err = errors.New("connection closed")
			}
			failed(err)
		}),
	)
	if err != nil {
		return nil, errors.Wrap(err, "could not connect to NATS")
	}

	sub, err := conn.Subscribe(feedwire.SubjectChanges, r.handle)
	if err != nil {
		conn.Close()
		return nil, errors.Wrap(err, "could not subscribe to the change stream")
	}

	return func() {
		close(stopped)
		_ = sub.Unsubscribe()
		conn.Close()
	}, nil
}

func (r *Remote) handle(msg *nats.Msg) {
	partial, err := feedwire.ParsePartial(msg.Data)
	if err != nil {
		r.log.WithError(err).Warn("could not parse change event")
		return
	}
	if partial.ID == "" {
		r.log.Warn("change event without id")
		return
	}

	switch feedwire.ChangeOp(msg.Subject) {
	case feedwire.OpInsert:
		if partial.Image == nil {
			if full := r.lookup(partial.ID); full != nil {
				r.store.Apply(store.Insert{Issue: full})
				return
			}
		}
		r.store.Apply(store.Insert{Issue: partial.Issue()})
	case feedwire.OpUpdate:
		if partial.Image == nil {
			if full := r.lookup(partial.ID); full != nil && full.Image != "" {
				partial.Image = &full.Image
			}
		}
		r.store.Apply(store.Update{Partial: partial})
	case feedwire.OpDelete:
		r.store.Apply(store.Delete{ID: partial.ID})
	default:
		r.log.WithField("subject", msg.Subject).Warn("unknown change subject")
	}
}

// lookup fetches the complete row for an event published without its image.
// Best effort: on failure the partial event is used as is.
func (r *Remote) lookup(id string) *model.Issue {
	if r.api == nil {
		return nil
	}
	issue, err := r.api.GetIssue(id)
	if err != nil {
		r.log.WithError(err).WithField("id", id).Debug("could not complete change event")
		return nil
	}
	return issue
}
