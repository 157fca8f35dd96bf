// Package feedapi is the HTTP client of the remote feed data service. It
// only covers the query/mutation API; change notifications arrive over the
// separate stream transport.
package feedapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/url"
	"path"

	"github.com/pkg/errors"
	"github.com/veebhq/veeb/internal/model"
)

type (
	// A Client defines all interactions that can be performed on a feed server.
	Client interface {
		// ListIssues returns all issues, newest first.
		ListIssues() ([]*model.Issue, error)
		// GetIssue returns the complete row for the given durable id.
		GetIssue(id string) (*model.Issue, error)
		// CreateIssue inserts a row and returns it including the
		// server-assigned fields. The payload is an open field set so a
		// caller can retry with a reduced one.
		CreateIssue(fields map[string]any) (*model.Issue, error)
		// UpdateIssue patches the given fields of a row.
		UpdateIssue(id string, fields map[string]any) error
		// DeleteIssue removes a row.
		DeleteIssue(id string) error
	}

	client struct {
		http     *http.Client
		endpoint string
	}
)

// NewDefaultClient returns a new Client with default HTTP client.
func NewDefaultClient(endpoint string) (Client, error) {
	return NewClient(http.DefaultClient, endpoint)
}

// NewClient returns a new Client.
func NewClient(c *http.Client, endpoint string) (Client, error) {
	_, err := url.Parse(endpoint)
	return &client{endpoint: endpoint, http: c}, errors.Wrap(err, "could not parse endpoint")
}

func (c *client) ListIssues() ([]*model.Issue, error) {
	var issues []*model.Issue
	err := c.do(http.MethodGet, "/issues", nil, &issues)
	return issues, err
}

func (c *client) GetIssue(id string) (*model.Issue, error) {
	var issue model.Issue
	if err := c.do(http.MethodGet, "/issues/"+id, nil, &issue); err != nil {
		return nil, err
	}
	return &issue, nil
}

func (c *client) CreateIssue(fields map[string]any) (*model.Issue, error) {
	var issue model.Issue
	if err := c.do(http.MethodPost, "/issues", fields, &issue); err != nil {
		return nil, err
	}
	return &issue, nil
}

func (c *client) UpdateIssue(id string, fields map[string]any) error {
	return c.do(http.MethodPatch, "/issues/"+id, fields, nil)
}

func (c *client) DeleteIssue(id string) error {
	return c.do(http.MethodDelete, "/issues/"+id, nil, nil)
}

func (c *client) do(method, route string, payload any, result any) error {
	u, err := url.Parse(c.endpoint)
	if err != nil {
		return errors.Wrap(err, "could not parse endpoint")
	}
	u.Path = path.Join(u.Path, route)

	//
	// Build request
	var body *bytes.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return errors.Wrap(err, "could not serialize payload")
		}
		body = bytes.NewReader(raw)
	} else {
		body = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, u.String(), body)
	if err != nil {
		return errors.Wrap(err, "could not build request")
	}
	req.Close = true
	req.Header.Add("Content-Type", "application/json")
	req.Header.Add("Accept", "application/json")

	//
	// Perform request
	res, err := c.http.Do(req)
	if err != nil {
		return errors.Wrap(err, "could not perform request")
	}
	defer res.Body.Close()

	if res.StatusCode >= 400 {
		return parseError(res.Body, res.StatusCode)
	}

	//
	// Process response
	if result == nil {
		return nil
	}
	dec := json.NewDecoder(res.Body)
	return errors.Wrap(dec.Decode(result), "could not parse response")
}
