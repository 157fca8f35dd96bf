package database

import (
	"time"

	"github.com/asdine/storm/v3"
	"github.com/asdine/storm/v3/codec/msgpack"
	"github.com/gofrs/uuid"
	"github.com/pkg/errors"
	"github.com/veebhq/veeb/internal/model"
	"github.com/veebhq/veeb/internal/rank"
)

type strm struct {
	db *storm.DB
}

// StormCodec is the format used to store data in the database.
var StormCodec = storm.Codec(msgpack.Codec)

// StormInit initializes Storm database.
func StormInit(database string) error {
	db, err := storm.Open(database, StormCodec)
	if err != nil {
		return errors.Wrap(err, "could not get database connection")
	}
	defer db.Close()

	if err := db.Init(&model.Issue{}); err != nil {
		return errors.Wrap(err, "could not init issue index")
	}

	err = db.Init(&model.Profile{})
	return errors.Wrap(err, "could not init profile index")
}

// StormReIndex reindex Storm database.
func StormReIndex(database string) error {
	db, err := storm.Open(database, StormCodec)
	if err != nil {
		return errors.Wrap(err, "could not get database connection")
	}
	defer db.Close()

	err = db.ReIndex(&model.Issue{})
	return errors.Wrap(err, "could not ReIndex issues")
}

// StormOpen returns a new Storm database connection.
func StormOpen(database string) (Client, error) {
	db, err := storm.Open(database, StormCodec)
	if err != nil {
		return nil, errors.Wrap(err, "could not get database connection")
	}

	return &strm{
		db: db,
	}, nil
}

// Save inserts or updates the entry in database with the given model.
func (c *strm) Save(m model.Model) error {
	t := time.Now().UTC()
	m.SetUpdatedAt(t)

	if m.GetID() == "" {
		m.SetID(uuid.Must(uuid.NewV4()).String())
	}
	if m.GetCreatedAt() == nil {
		m.SetCreatedAt(t)
	}

	return errors.Wrap(c.db.Save(m), "could not save the model")
}

// Delete deletes the entry in database with the given model.
func (c *strm) Delete(m model.Model) error {
	return errors.Wrap(c.db.DeleteStruct(m), "could not delete the model")
}

// Close the database.
func (c *strm) Close() error {
	return c.db.Close()
}

// IsNotFound returns true if err is a not found error.
func (c *strm) IsNotFound(err error) bool {
	return errors.Cause(err) == storm.ErrNotFound
}

// FindIssue returns the issue for the given id (UUID).
func (c *strm) FindIssue(id string) (*model.Issue, error) {
	var issue model.Issue
	if err := c.db.One("ID", id, &issue); err != nil {
		return nil, errors.Wrap(err, "find issue by id")
	}
	return &issue, nil
}

// AllIssues returns every stored issue, newest first.
func (c *strm) AllIssues() ([]*model.Issue, error) {
	var issues []*model.Issue
	err := c.db.AllByIndex("CreatedAt", &issues, storm.Reverse())
	if err != nil && err != storm.ErrNotFound {
		return nil, errors.Wrap(err, "find all issues")
	}
	return issues, nil
}

// FindIssuesByDeviceID returns all issues posted by the given device, newest first.
func (c *strm) FindIssuesByDeviceID(deviceID string) ([]*model.Issue, error) {
	issues := []*model.Issue{}
	err := c.db.Find("DeviceID", deviceID, &issues, storm.Reverse())
	if err != nil && err != storm.ErrNotFound {
		return nil, errors.Wrap(err, "find issues by device id")
	}
	return issues, nil
}

// DeleteIssue deletes the issue for the given id.
func (c *strm) DeleteIssue(id string) error {
	issue, err := c.FindIssue(id)
	if err != nil {
		return err
	}
	return errors.Wrap(c.db.DeleteStruct(issue), "could not delete issue")
}

// Profile returns the device profile, creating it on first use.
func (c *strm) Profile() (*model.Profile, error) {
	var profile model.Profile
	err := c.db.One("ID", model.ProfileID, &profile)
	if err == nil {
		return &profile, nil
	}
	if err != storm.ErrNotFound {
		return nil, errors.Wrap(err, "find device profile")
	}

	profile.ID = model.ProfileID
	profile.DeviceID = uuid.Must(uuid.NewV4()).String()
	profile.RadiusIndex = rank.DefaultRadiusIndex
	if err := c.Save(&profile); err != nil {
		return nil, errors.Wrap(err, "could not create device profile")
	}
	return &profile, nil
}
