package engine_test

import (
	"context"
	"io"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	natsserver "github.com/nats-io/nats-server/v2/server"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/veebhq/veeb/internal/database"
	"github.com/veebhq/veeb/internal/engine"
	"github.com/veebhq/veeb/internal/ingress"
	"github.com/veebhq/veeb/internal/model"
	"github.com/veebhq/veeb/internal/rank"
	"github.com/veebhq/veeb/internal/server"
	"github.com/veebhq/veeb/internal/supervisor"
	"github.com/veebhq/veeb/pkg/feedapi"
)

func TestEngineInitialLoad(t *testing.T) {
	remote := newFeedServer(t, server.NewNopPublisher())
	seedIssue(t, remote, "어제 글", time.Now().UTC().Add(-2*time.Hour))
	seedIssue(t, remote, "방금 글", time.Now().UTC())

	e, _, cleanup := newEngine(t, remote, "")
	defer cleanup()

	feed := e.Feed(rank.Filter{})
	require.Len(t, feed, 2)
	assert.Equal(t, "방금 글", feed[0].Title)
	assert.Equal(t, "어제 글", feed[1].Title)
}

func TestEnginePostAndReaction(t *testing.T) {
	remote := newFeedServer(t, server.NewNopPublisher())

	e, _, cleanup := newEngine(t, remote, "")
	defer cleanup()

	issue, err := e.Post(ingress.Submission{Title: "공사 소음", Category: "일상"})
	require.NoError(t, err)
	assert.False(t, issue.Temporary())

	feed := e.Feed(rank.Filter{})
	require.Len(t, feed, 1)
	assert.Equal(t, issue.ID, feed[0].ID)

	// toggle on
	reacted, err := e.ToggleReaction(issue.ID)
	require.NoError(t, err)
	assert.True(t, reacted)
	assert.True(t, e.Profile().Reacted(issue.ID))
	assert.Equal(t, 1, e.Feed(rank.Filter{})[0].ReactionCount)

	// the count reaches the server, best effort
	require.Eventually(t, func() bool {
		row, err := remote.api.GetIssue(issue.ID)
		return err == nil && row.ReactionCount == 1
	}, 2*time.Second, 20*time.Millisecond)

	// toggle off
	reacted, err = e.ToggleReaction(issue.ID)
	require.NoError(t, err)
	assert.False(t, reacted)
	assert.False(t, e.Profile().Reacted(issue.ID))
	assert.Equal(t, 0, e.Feed(rank.Filter{})[0].ReactionCount)

	// unknown rows cannot be reacted to
	_, err = e.ToggleReaction("nope")
	assert.Error(t, err)
}

func TestEngineDelete(t *testing.T) {
	remote := newFeedServer(t, server.NewNopPublisher())
	other := seedIssue(t, remote, "남의 글", time.Now().UTC())

	e, _, cleanup := newEngine(t, remote, "")
	defer cleanup()

	issue, err := e.Post(ingress.Submission{Title: "지우기 테스트", Category: "일상"})
	require.NoError(t, err)
	require.Len(t, e.Feed(rank.Filter{}), 2)

	require.NoError(t, e.Delete(issue.ID))

	feed := e.Feed(rank.Filter{})
	require.Len(t, feed, 1)
	assert.Equal(t, other.ID, feed[0].ID)

	// the remote row goes away too, best effort
	require.Eventually(t, func() bool {
		_, err := remote.api.GetIssue(issue.ID)
		return err != nil
	}, 2*time.Second, 20*time.Millisecond)

	// only this device's issues can be deleted
	assert.Error(t, e.Delete(other.ID))
	assert.Error(t, e.Delete("nope"))
}

func TestEngineViewTracking(t *testing.T) {
	remote := newFeedServer(t, server.NewNopPublisher())
	issue := seedIssue(t, remote, "조회 테스트", time.Now().UTC())

	e, _, cleanup := newEngine(t, remote, "")
	defer cleanup()

	// a glance does not count
	e.Visible(issue.ID)
	e.Hidden(issue.ID)
	time.Sleep(1200 * time.Millisecond)
	assert.Equal(t, 0, e.Feed(rank.Filter{})[0].Views)

	// a full dwell does, exactly once
	e.Visible(issue.ID)
	require.Eventually(t, func() bool {
		return e.Feed(rank.Filter{})[0].Views == 1
	}, 3*time.Second, 50*time.Millisecond)

	e.Visible(issue.ID)
	time.Sleep(1200 * time.Millisecond)
	assert.Equal(t, 1, e.Feed(rank.Filter{})[0].Views)

	// the batched flush reached the server
	require.Eventually(t, func() bool {
		row, err := remote.api.GetIssue(issue.ID)
		return err == nil && row.Views == 1
	}, 2*time.Second, 20*time.Millisecond)

	// temporary ids are ignored entirely
	e.Visible(model.TempIDPrefix + "x")
}

func TestEngineSettings(t *testing.T) {
	remote := newFeedServer(t, server.NewNopPublisher())

	e, db, cleanup := newEngine(t, remote, "")
	defer cleanup()

	// a fresh device starts at the 5 km radius, not the smallest step
	assert.Equal(t, rank.DefaultRadiusIndex, e.Profile().RadiusIndex)

	require.NoError(t, e.SetAlertKeywords([]string{"화재", "정전"}))
	require.NoError(t, e.SetRadiusIndex(1))

	// persisted, not just in memory
	profile, err := db.Profile()
	require.NoError(t, err)
	assert.Equal(t, []string{"화재", "정전"}, profile.AlertKeywords)
	assert.Equal(t, 1, profile.RadiusIndex)

	// out-of-range selections fall back to the default
	require.NoError(t, e.SetRadiusIndex(99))
	assert.Equal(t, rank.DefaultRadiusIndex, e.Profile().RadiusIndex)

	me := e.Me()
	assert.Equal(t, profile.DeviceID, me.DeviceID)
	assert.NotEmpty(t, me.Nickname)
	assert.Equal(t, []string{"화재", "정전"}, me.AlertKeywords)
}

func TestEngineLiveUpdates(t *testing.T) {
	ns := startTestNATSServer(t)

	pub, err := server.NewNATSPublisher(ns.ClientURL())
	require.NoError(t, err)
	defer pub.Close()

	remote := newFeedServer(t, pub)

	e, _, cleanup := newEngine(t, remote, ns.ClientURL())
	defer cleanup()

	require.Eventually(t, func() bool {
		return e.StreamState() == supervisor.Live
	}, 5*time.Second, 10*time.Millisecond)

	// another device writes through the API; the change stream delivers it
	other, err := remote.api.CreateIssue(map[string]any{
		"title":     "다른 기기의 글",
		"device_id": "dev-other",
	})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		feed := e.Feed(rank.Filter{})
		return len(feed) == 1 && feed[0].ID == other.ID
	}, 5*time.Second, 20*time.Millisecond)

	require.NoError(t, remote.api.DeleteIssue(other.ID))
	require.Eventually(t, func() bool {
		return len(e.Feed(rank.Filter{})) == 0
	}, 5*time.Second, 20*time.Millisecond)
}

func TestEngineStatsAndTrends(t *testing.T) {
	remote := newFeedServer(t, server.NewNopPublisher())

	e, _, cleanup := newEngine(t, remote, "")
	defer cleanup()

	for i := 0; i < 5; i++ {
		_, err := e.Post(ingress.Submission{Title: "강남 교통사고 발생", Category: "사건사고"})
		require.NoError(t, err)
	}

	deviceID := e.Profile().DeviceID
	summary := e.StatsFor(deviceID)
	assert.Equal(t, 5, summary.Stats.Posts)
	assert.Equal(t, 10, summary.Influence) // 5 posts × 2
	assert.Equal(t, "참여자", summary.Level.Label)
	require.NotNil(t, summary.NextLevel)
	assert.Equal(t, 20, summary.NextLevelGap)

	trends := e.Trends()
	require.NotEmpty(t, trends)
	words := map[string]bool{}
	for _, tk := range trends {
		words[tk.Word] = true
	}
	assert.True(t, words["강남"])
	assert.True(t, words["교통사고"])
}

type feedServer struct {
	api feedapi.Client
	db  database.Client
}

// newFeedServer runs the reference remote service on a loopback listener.
func newFeedServer(t *testing.T, pub server.Publisher) *feedServer {
	db := openTempDB(t, "veeb-server")

	engine := server.EchoEngine(server.IOC{
		Version:   "test",
		Database:  db,
		Publisher: pub,
	})
	ts := httptest.NewServer(engine)
	t.Cleanup(ts.Close)

	api, err := feedapi.NewDefaultClient(ts.URL)
	require.NoError(t, err)

	return &feedServer{api: api, db: db}
}

func seedIssue(t *testing.T, remote *feedServer, title string, at time.Time) *model.Issue {
	issue := &model.Issue{
		Title:    title,
		DeviceID: "dev-seed",
		Category: model.CategoryDefault,
		Status:   "open",
	}
	issue.SetCreatedAt(at)
	require.NoError(t, remote.db.Save(issue))
	return issue
}

func newEngine(t *testing.T, remote *feedServer, natsURL string) (*engine.Engine, database.Client, func()) {
	db := openTempDB(t, "veeb-client")

	log := logrus.New()
	log.SetOutput(io.Discard)

	e := engine.New(log, db, remote.api, natsURL)
	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, e.Start(ctx))

	return e, db, func() {
		e.Stop()
		cancel()
	}
}

func openTempDB(t *testing.T, prefix string) database.Client {
	tmpfile, err := os.CreateTemp("", prefix+".*.db")
	require.NoError(t, err)
	filename := tmpfile.Name()
	tmpfile.Close()

	db, err := database.StormOpen(filename)
	require.NoError(t, err)

	t.Cleanup(func() {
		db.Close()
		os.RemoveAll(filename)
	})
	return db
}

// startTestNATSServer starts an embedded NATS server on a random port.
func startTestNATSServer(t *testing.T) *natsserver.Server {
	opts := &natsserver.Options{
		Host:   "127.0.0.1",
		Port:   -1,
		NoLog:  true,
		NoSigs: true,
	}

	ns, err := natsserver.NewServer(opts)
	require.NoError(t, err)

	go ns.Start()

	if !ns.ReadyForConnections(5 * time.Second) {
		t.Fatal("NATS server not ready")
	}

	t.Cleanup(func() {
		ns.Shutdown()
		ns.WaitForShutdown()
	})

	return ns
}
