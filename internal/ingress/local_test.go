package ingress_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/veebhq/veeb/internal/ingress"
	"github.com/veebhq/veeb/internal/model"
	"github.com/veebhq/veeb/internal/store"
	"github.com/veebhq/veeb/pkg/feedapi"
)

func TestLocalCreateValidations(t *testing.T) {
	s, cleanup := newStore(t)
	defer cleanup()

	local := ingress.NewLocal(discardLogger(), s, nil, nil, "dev-1")

	_, err := local.Create(ingress.Submission{Title: "   "})
	assert.Equal(t, ingress.ErrEmptySubmission, err)

	_, err = local.Create(ingress.Submission{Image: "data:application/pdf;base64,AAAA"})
	assert.Equal(t, ingress.ErrNotAnImage, err)

	_, err = local.Create(ingress.Submission{Image: "data:image/png;base64," + strings.Repeat("A", ingress.MaxImageBytes)})
	assert.Equal(t, ingress.ErrImageTooLarge, err)

	// nothing reached the store
	assert.Empty(t, s.Snapshot())
}

func TestLocalCreateOptimistic(t *testing.T) {
	s, cleanup := newStore(t)
	defer cleanup()

	arrived := make(chan struct{})
	release := make(chan struct{})

	api := newAPIServer(t, func(w http.ResponseWriter, r *http.Request, calls int) {
		close(arrived)
		<-release
		respondIssue(w, readFields(r), "srv-1")
	})

	local := ingress.NewLocal(discardLogger(), s, api, nil, "dev-1")

	var issue *model.Issue
	var err error
	done := make(chan struct{})
	go func() {
		defer close(done)
		issue, err = local.Create(ingress.Submission{Title: "강남역 싱크홀", Category: "사건사고"})
	}()

	// While the remote save is in flight the post is already visible,
	// under a temporary id.
	<-arrived
	snapshot := s.Snapshot()
	require.Len(t, snapshot, 1)
	assert.True(t, snapshot[0].Temporary())
	stableKey := snapshot[0].StableKey
	assert.NotEmpty(t, stableKey)

	close(release)
	<-done
	require.NoError(t, err)
	assert.Equal(t, "srv-1", issue.ID)

	// The durable row replaced the temporary one and kept its identity.
	snapshot = s.Snapshot()
	require.Len(t, snapshot, 1)
	assert.Equal(t, "srv-1", snapshot[0].ID)
	assert.False(t, snapshot[0].Temporary())
	assert.Equal(t, stableKey, snapshot[0].StableKey)
}

func TestLocalCreateStagedRetry(t *testing.T) {
	s, cleanup := newStore(t)
	defer cleanup()

	var mu sync.Mutex
	var bodies []map[string]any

	api := newAPIServer(t, func(w http.ResponseWriter, r *http.Request, calls int) {
		fields := readFields(r)
		mu.Lock()
		bodies = append(bodies, fields)
		mu.Unlock()

		if calls == 1 {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":{"tag":"unknown-column","message":"could not find the \"image_data\" column"}}`))
			return
		}
		respondIssue(w, fields, "srv-1")
	})

	local := ingress.NewLocal(discardLogger(), s, api, nil, "dev-1")

	image := "data:image/png;base64,AAAA"
	issue, err := local.Create(ingress.Submission{Title: "사진 포함", Image: image})
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, bodies, 2)
	assert.Contains(t, bodies[0], "image_data")
	assert.NotContains(t, bodies[1], "image_data", "fallback stage drops the image")

	// locally-known image restored on the accepted row
	assert.Equal(t, image, issue.Image)
	snapshot := s.Snapshot()
	require.Len(t, snapshot, 1)
	assert.Equal(t, image, snapshot[0].Image)
}

func TestLocalCreateMinimalStage(t *testing.T) {
	s, cleanup := newStore(t)
	defer cleanup()

	var mu sync.Mutex
	var bodies []map[string]any

	api := newAPIServer(t, func(w http.ResponseWriter, r *http.Request, calls int) {
		fields := readFields(r)
		mu.Lock()
		bodies = append(bodies, fields)
		mu.Unlock()

		if calls < 3 {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":{"tag":"unknown-column","message":"schema mismatch"}}`))
			return
		}
		respondIssue(w, fields, "srv-1")
	})

	local := ingress.NewLocal(discardLogger(), s, api, nil, "dev-1")

	lat := 37.5665
	issue, err := local.Create(ingress.Submission{
		Title:    "최소 필드",
		Image:    "data:image/png;base64,AAAA",
		Category: "교통",
		Latitude: &lat,
	})
	require.NoError(t, err)

	mu.Lock()
	require.Len(t, bodies, 3)
	assert.Equal(t, map[string]any{"title": "최소 필드", "device_id": "dev-1"}, bodies[2])
	mu.Unlock()

	// extended fields restored from the local row
	assert.Equal(t, "교통", issue.Category)
	require.NotNil(t, issue.Latitude)
	assert.Equal(t, lat, *issue.Latitude)
	assert.NotEmpty(t, issue.Image)
}

func TestLocalCreateRollback(t *testing.T) {
	s, cleanup := newStore(t)
	defer cleanup()

	api := newAPIServer(t, func(w http.ResponseWriter, r *http.Request, calls int) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":{"message":"boom"}}`))
	})

	local := ingress.NewLocal(discardLogger(), s, api, nil, "dev-1")

	_, err := local.Create(ingress.Submission{Title: "실패하는 글"})
	require.Error(t, err)

	// the optimistic row is rolled back
	require.Eventually(t, func() bool {
		return len(s.Snapshot()) == 0
	}, time.Second, 10*time.Millisecond)
}

func newStore(t *testing.T) (*store.Store, func()) {
	s := store.New(discardLogger())
	ctx, cancel := context.WithCancel(context.Background())
	s.Start(ctx)
	return s, func() {
		cancel()
		s.Stop()
	}
}

func discardLogger() logrus.FieldLogger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

// newAPIServer scripts the feed server's POST /issues endpoint.
func newAPIServer(t *testing.T, handle func(w http.ResponseWriter, r *http.Request, calls int)) feedapi.Client {
	var mu sync.Mutex
	calls := 0

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		calls++
		n := calls
		mu.Unlock()
		handle(w, r, n)
	}))
	t.Cleanup(ts.Close)

	client, err := feedapi.NewDefaultClient(ts.URL)
	require.NoError(t, err)
	return client
}

func readFields(r *http.Request) map[string]any {
	fields := map[string]any{}
	raw, _ := io.ReadAll(r.Body)
	_ = json.Unmarshal(raw, &fields)
	return fields
}

// respondIssue echoes the posted fields back as an accepted row.
func respondIssue(w http.ResponseWriter, posted map[string]any, id string) {
	fields := map[string]any{}
	for k, v := range posted {
		fields[k] = v
	}
	fields["id"] = id
	fields["created_at"] = time.Now().UTC().Format(time.RFC3339)
	if _, ok := fields["status"]; !ok {
		fields["status"] = "open"
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(fields)
}
