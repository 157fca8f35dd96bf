package ingress

import (
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/veebhq/veeb/internal/model"
	"github.com/veebhq/veeb/internal/store"
	"github.com/veebhq/veeb/pkg/feedapi"
)

// MaxImageBytes bounds an encoded image payload.
const MaxImageBytes = 5 << 20

// imagePrefix is the accepted payload scheme for attached images.
const imagePrefix = "data:image/"

// Validation failures, reported before any state is touched.
var (
	ErrEmptySubmission = errors.New("nothing to post")
	ErrImageTooLarge   = errors.New("image exceeds the size limit")
	ErrNotAnImage      = errors.New("attachment is not an image")
)

// A Submission is a user-authored post before any identifier is assigned.
type Submission struct {
	Title     string
	Image     string // data URL
	Category  string
	Latitude  *float64
	Longitude *float64
}

// A Local performs optimistic writes: the row appears in the store under a
// temporary id before the server accepts it, and is reconciled or rolled
// back depending on the outcome.
type Local struct {
	log      logrus.FieldLogger
	store    *store.Store
	api      feedapi.Client
	tabs     *CrossTab
	deviceID string
}

// NewLocal returns the local-write adapter. tabs may be nil when the process
// runs a single tab.
func NewLocal(log logrus.FieldLogger, s *store.Store, api feedapi.Client, tabs *CrossTab, deviceID string) *Local {
	return &Local{log: log, store: s, api: api, tabs: tabs, deviceID: deviceID}
}

// Create validates the submission, inserts it optimistically and persists it
// remotely with a staged retry. On success the durable row replaces the
// temporary one and the other tabs are notified; on failure the temporary
// row is rolled back and the error surfaced.
func (l *Local) Create(sub Submission) (*model.Issue, error) {
	title := strings.TrimSpace(sub.Title)
	if title == "" && sub.Image == "" {
		return nil, ErrEmptySubmission
	}
	if sub.Image != "" {
		if !strings.HasPrefix(sub.Image, imagePrefix) {
			return nil, ErrNotAnImage
		}
		if len(sub.Image) > MaxImageBytes {
			return nil, ErrImageTooLarge
		}
	}

	temp := &model.Issue{
		StableKey: model.NewStableKey(),
		Title:     title,
		Image:     sub.Image,
		DeviceID:  l.deviceID,
		Category:  sub.Category,
		Latitude:  sub.Latitude,
		Longitude: sub.Longitude,
		Status:    "open",
	}
	if temp.Category == "" {
		temp.Category = model.CategoryDefault
	}
	temp.SetID(model.NewTempID())
	temp.SetCreatedAt(time.Now().UTC())

	l.store.Apply(store.Insert{Issue: temp})

	durable, err := l.save(temp)
	if err != nil {
		l.store.Apply(store.Delete{ID: temp.ID})
		return nil, err
	}

	// Reconciliation matches the temporary row by author and title and
	// keeps its stable key.
	l.store.Apply(store.Insert{Issue: durable})
	if l.tabs != nil {
		l.tabs.BroadcastNew(durable)
	}
	return durable, nil
}

// save tries the full row first, then without the image, then the minimal
// required fields. Fields dropped by a fallback stage are restored from the
// local row once the server has accepted something.
func (l *Local) save(temp *model.Issue) (*model.Issue, error) {
	fields := map[string]any{
		"title":     temp.Title,
		"device_id": temp.DeviceID,
		"category":  temp.Category,
		"status":    temp.Status,
	}
	if temp.Image != "" {
		fields["image_data"] = temp.Image
	}
	if temp.Latitude != nil {
		fields["latitude"] = *temp.Latitude
	}
	if temp.Longitude != nil {
		fields["longitude"] = *temp.Longitude
	}

	issue, err := l.api.CreateIssue(fields)
	if err == nil {
		return issue, nil
	}
	if !retryable(err) {
		return nil, errors.Wrap(err, "could not save issue")
	}
	l.log.WithError(err).Warn("full save rejected, retrying without image")

	if _, ok := fields["image_data"]; ok {
		delete(fields, "image_data")
		issue, err = l.api.CreateIssue(fields)
		if err == nil {
			issue.Image = temp.Image
			return issue, nil
		}
		if !retryable(err) {
			return nil, errors.Wrap(err, "could not save issue")
		}
		l.log.WithError(err).Warn("image-less save rejected, retrying with minimal fields")
	}

	minimal := map[string]any{"device_id": temp.DeviceID}
	if temp.Title != "" {
		minimal["title"] = temp.Title
	} else {
		minimal["image_data"] = temp.Image
	}

	issue, err = l.api.CreateIssue(minimal)
	if err != nil {
		return nil, errors.Wrap(err, "could not save issue")
	}

	// restore the locally-known extended fields
	issue.Image = temp.Image
	issue.Category = temp.Category
	issue.Latitude = temp.Latitude
	issue.Longitude = temp.Longitude
	return issue, nil
}

// retryable reports whether the server rejected the payload itself, the only
// case where a reduced field set has a chance.
func retryable(err error) bool {
	var apierr *feedapi.APIError
	if !errors.As(err, &apierr) {
		return false
	}
	return apierr.StatusCode == 400
}
