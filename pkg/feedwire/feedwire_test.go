package feedwire_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/veebhq/veeb/internal/model"
	"github.com/veebhq/veeb/pkg/feedwire"
)

func TestParsePartial(t *testing.T) {
	raw := []byte(`{
		"id": "a1",
		"title": "강남 맛집",
		"device_id": "dev-1",
		"category": "맛집",
		"latitude": 37.5665,
		"longitude": 126.9780,
		"reaction_count": 3,
		"views": 12,
		"status": "open",
		"created_at": "2026-08-29T10:00:00Z"
	}`)

	p, err := feedwire.ParsePartial(raw)
	require.NoError(t, err)

	assert.Equal(t, "a1", p.ID)
	assert.Equal(t, "강남 맛집", *p.Title)
	assert.Equal(t, "dev-1", *p.DeviceID)
	assert.Equal(t, 37.5665, *p.Latitude)
	assert.Equal(t, 3, *p.ReactionCount)
	assert.Equal(t, 12, *p.Views)
	assert.Nil(t, p.Image, "missing image is a valid state")
	assert.Equal(t, time.Date(2026, 8, 29, 10, 0, 0, 0, time.UTC), *p.CreatedAt)
}

func TestParsePartialTolerance(t *testing.T) {
	// Bare identifier, nulls and a sloppy timestamp: no error, absent fields.
	p, err := feedwire.ParsePartial([]byte(`{"id":"a1","latitude":null,"created_at":"2026/08/29 10:00:00"}`))
	require.NoError(t, err)
	assert.Equal(t, "a1", p.ID)
	assert.Nil(t, p.Latitude)
	assert.NotNil(t, p.CreatedAt)

	// Unknown timestamp garbage is dropped, not fatal.
	p, err = feedwire.ParsePartial([]byte(`{"id":"a1","created_at":"not a time"}`))
	require.NoError(t, err)
	assert.Nil(t, p.CreatedAt)

	// Only non-objects are rejected.
	_, err = feedwire.ParsePartial([]byte(`[1,2,3]`))
	assert.Error(t, err)
	_, err = feedwire.ParsePartial([]byte(`{broken`))
	assert.Error(t, err)
}

func TestTabMessageRoundTrip(t *testing.T) {
	issue := &model.Issue{Title: "hello", DeviceID: "dev-1", ReactionCount: 2}
	issue.ID = "a1"
	issue.SetCreatedAt(time.Now().UTC())

	raw, err := feedwire.EncodeTabMessage(&feedwire.TabMessage{Type: feedwire.TabNewIssue, Issue: issue})
	require.NoError(t, err)

	m, err := feedwire.DecodeTabMessage(raw)
	require.NoError(t, err)
	assert.Equal(t, feedwire.TabNewIssue, m.Type)
	require.NotNil(t, m.Issue)
	assert.Equal(t, "a1", m.Issue.ID)
	assert.Equal(t, "hello", m.Issue.Title)
	assert.Equal(t, 2, m.Issue.ReactionCount)
}

func TestTabsSubject(t *testing.T) {
	assert.Equal(t, "veeb.tabs.dev-1", feedwire.TabsSubject("dev-1"))
}
