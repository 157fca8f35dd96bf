package database

import (
	"github.com/veebhq/veeb/internal/model"
)

type (
	// A Client can interacts with the database.
	Client interface {
		// Save inserts or updates the entry in database with the given model.
		Save(m model.Model) error
		// Delete deletes the entry in database with the given model.
		Delete(m model.Model) error
		// Close the database.
		Close() error
		// IsNotFound returns true if err is a not found error.
		IsNotFound(err error) bool

		IssueInteraction
		ProfileInteraction
	}

	// An IssueInteraction defines all the methods used to interact with issue record(s).
	IssueInteraction interface {
		// FindIssue returns the issue for the given id (UUID).
		FindIssue(id string) (*model.Issue, error)
		// AllIssues returns every stored issue, newest first.
		AllIssues() ([]*model.Issue, error)
		// FindIssuesByDeviceID returns all issues posted by the given device, newest first.
		FindIssuesByDeviceID(deviceID string) ([]*model.Issue, error)
		// DeleteIssue deletes the issue for the given id.
		DeleteIssue(id string) error
	}

	// A ProfileInteraction defines all the methods used to interact with the
	// device-local profile record.
	ProfileInteraction interface {
		// Profile returns the device profile, creating it with a fresh
		// device identifier on first use.
		Profile() (*model.Profile, error)
	}
)
