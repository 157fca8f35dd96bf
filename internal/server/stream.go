package server

import (
	"encoding/json"

	"github.com/nats-io/nats.go"
	"github.com/pkg/errors"
	"github.com/veebhq/veeb/internal/model"
	"github.com/veebhq/veeb/pkg/feedwire"
)

// ImageElisionLimit is the largest image payload carried by a change event.
// Bigger images are elided from the event; subscribers fetch the full row
// through the API instead.
const ImageElisionLimit = 1 << 10

type (
	// A Publisher emits a change event after each accepted mutation.
	// Delivery is at-least-once and best-effort; the mutation itself never
	// depends on it.
	Publisher interface {
		// PublishChange publishes the row on the subject matching op
		// (feedwire.OpInsert, OpUpdate or OpDelete).
		PublishChange(op string, issue *model.Issue) error
		// Close releases the underlying connection.
		Close()
	}

	natsPublisher struct {
		conn *nats.Conn
	}

	nopPublisher struct{}
)

// NewNATSPublisher returns a Publisher emitting change events on NATS.
func NewNATSPublisher(url string) (Publisher, error) {
	conn, err := nats.Connect(url, nats.Name("veeb-server"))
	if err != nil {
		return nil, errors.Wrap(err, "could not connect to NATS")
	}
	return &natsPublisher{conn: conn}, nil
}

// PublishChange publishes the row as a JSON change event.
func (p *natsPublisher) PublishChange(op string, issue *model.Issue) error {
	row := *issue
	if len(row.Image) > ImageElisionLimit {
		row.Image = ""
	}

	payload, err := json.Marshal(&row)
	if err != nil {
		return errors.Wrap(err, "could not serialize change event")
	}
	return errors.Wrap(p.conn.Publish(feedwire.ChangeSubject(op), payload), "could not publish change event")
}

// Close drains and closes the NATS connection.
func (p *natsPublisher) Close() {
	p.conn.Close()
}

// NewNopPublisher returns a Publisher that drops every event. Used when the
// server runs without a stream transport.
func NewNopPublisher() Publisher {
	return nopPublisher{}
}

func (nopPublisher) PublishChange(op string, issue *model.Issue) error {
	return nil
}

func (nopPublisher) Close() {}
