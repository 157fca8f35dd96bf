package server

import (
	"fmt"
	"log"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/veebhq/veeb/internal/apierror"
	"github.com/veebhq/veeb/internal/database"
	"github.com/veebhq/veeb/internal/model"
	"github.com/veebhq/veeb/pkg/feedwire"
)

type issue struct {
	db  database.Client
	pub Publisher
}

// issueColumns is the writable schema. Anything else in a payload is
// rejected with a tagged error so clients can retry with a reduced row.
var issueColumns = map[string]bool{
	"title":          true,
	"image_data":     true,
	"device_id":      true,
	"category":       true,
	"latitude":       true,
	"longitude":      true,
	"status":         true,
	"reaction_count": true,
	"views":          true,
}

// List renders every issue, newest first. An optional device_id query
// restricts the listing to one author's rows.
func (h *issue) List(c echo.Context) error {
	var issues []*model.Issue
	var err error

	if deviceID := c.QueryParam("device_id"); deviceID != "" {
		issues, err = h.db.FindIssuesByDeviceID(deviceID)
	} else {
		issues, err = h.db.AllIssues()
	}
	if err != nil {
		return errors.Wrap(err, "could not load issues")
	}
	return c.JSON(http.StatusOK, issues)
}

// Show renders the complete row for the given id.
func (h *issue) Show(c echo.Context) error {
	m, err := h.db.FindIssue(c.Param("id"))
	if err != nil {
		if h.db.IsNotFound(err) {
			return apierror.NewWithTagCode(http.StatusNotFound, apierror.TagNotFound, "issue not found")
		}
		return errors.Wrap(err, "could not load issue")
	}
	return c.JSON(http.StatusOK, m)
}

// Create inserts a row, assigns the durable fields and publishes the insert
// event.
func (h *issue) Create(c echo.Context) error {
	fields := map[string]any{}
	if err := c.Bind(&fields); err != nil {
		return err
	}
	if err := checkColumns(fields); err != nil {
		return err
	}

	m := &model.Issue{Status: "open"}
	if err := applyFields(m, fields); err != nil {
		return err
	}

	if m.DeviceID == "" {
		return apierror.NewWithTagCode(http.StatusBadRequest, apierror.TagMissingField, "device_id is required")
	}
	if m.Title == "" && m.Image == "" {
		return apierror.NewWithTagCode(http.StatusBadRequest, apierror.TagMissingField, "title or image_data is required")
	}
	if m.Category == "" {
		m.Category = model.CategoryDefault
	}

	// Save assigns id and created_at.
	if err := h.db.Save(m); err != nil {
		return errors.Wrap(err, "could not persist issue")
	}
	h.publish(feedwire.OpInsert, m)

	return c.JSON(http.StatusCreated, m)
}

// Update patches the given fields of a row and publishes the update event.
func (h *issue) Update(c echo.Context) error {
	m, err := h.db.FindIssue(c.Param("id"))
	if err != nil {
		if h.db.IsNotFound(err) {
			return apierror.NewWithTagCode(http.StatusNotFound, apierror.TagNotFound, "issue not found")
		}
		return errors.Wrap(err, "could not load issue")
	}

	fields := map[string]any{}
	if err := c.Bind(&fields); err != nil {
		return err
	}
	if err := checkColumns(fields); err != nil {
		return err
	}
	if err := applyFields(m, fields); err != nil {
		return err
	}

	if err := h.db.Save(m); err != nil {
		return errors.Wrap(err, "could not persist issue")
	}
	h.publish(feedwire.OpUpdate, m)

	return c.JSON(http.StatusOK, m)
}

// Delete removes a row. Deleting an absent row is not an error.
func (h *issue) Delete(c echo.Context) error {
	id := c.Param("id")
	if err := h.db.DeleteIssue(id); err != nil {
		if !h.db.IsNotFound(err) {
			return errors.Wrap(err, "could not delete issue")
		}
	}

	row := &model.Issue{}
	row.SetID(id)
	h.publish(feedwire.OpDelete, row)

	return c.NoContent(http.StatusNoContent)
}

// publish is best-effort; a stream failure never fails the mutation.
func (h *issue) publish(op string, m *model.Issue) {
	if h.pub == nil {
		return
	}
	if err := h.pub.PublishChange(op, m); err != nil {
		log.Printf("Error [STREAM]: %s", err)
	}
}

func checkColumns(fields map[string]any) error {
	for key := range fields {
		if !issueColumns[key] {
			return apierror.NewWithTagCode(http.StatusBadRequest, apierror.TagUnknownColumn,
				fmt.Sprintf("could not find the %q column", key))
		}
	}
	return nil
}

func applyFields(m *model.Issue, fields map[string]any) error {
	for key, value := range fields {
		if value == nil {
			continue
		}

		ok := true
		switch key {
		case "title":
			m.Title, ok = value.(string)
		case "image_data":
			m.Image, ok = value.(string)
		case "device_id":
			m.DeviceID, ok = value.(string)
		case "category":
			m.Category, ok = value.(string)
		case "status":
			m.Status, ok = value.(string)
		case "latitude":
			var f float64
			if f, ok = value.(float64); ok {
				m.Latitude = &f
			}
		case "longitude":
			var f float64
			if f, ok = value.(float64); ok {
				m.Longitude = &f
			}
		case "reaction_count":
			var f float64
			if f, ok = value.(float64); ok {
				m.ReactionCount = clampCount(int(f))
			}
		case "views":
			var f float64
			if f, ok = value.(float64); ok {
				m.Views = clampCount(int(f))
			}
		}
		if !ok {
			return apierror.NewWithTagCode(http.StatusBadRequest, "",
				fmt.Sprintf("invalid value for the %q column", key))
		}
	}
	return nil
}

func clampCount(n int) int {
	if n < 0 {
		return 0
	}
	return n
}
