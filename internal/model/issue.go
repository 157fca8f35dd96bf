package model

import (
	"strings"

	"github.com/gofrs/uuid"
)

// TempIDPrefix marks locally minted placeholder identifiers. An issue keeps
// such an ID only until the remote store accepts it and assigns a durable one.
const TempIDPrefix = "temp-"

// CategoryDefault is assumed whenever a row carries no category.
const CategoryDefault = "일상"

// Categories is the fixed set of topic categories.
var Categories = []string{"사건사고", "맛집", "교통", "행사", "일상"}

// An Issue represents a feed post: a database record, an API payload and the
// in-memory unit the reconciliation engine operates on.
type Issue struct {
	Base `msgpack:",inline" storm:"inline"`

	// StableKey identifies the issue for the presentation layer. It is
	// assigned once at creation and survives the temporary→durable ID
	// transition. Never sent over the wire.
	StableKey string `json:"-" msgpack:"-"`

	Title         string   `json:"title"                msgpack:"title"`
	Image         string   `json:"image_data,omitempty" msgpack:"image_data"`
	DeviceID      string   `json:"device_id"            msgpack:"device_id" storm:"index"`
	Category      string   `json:"category,omitempty"   msgpack:"category"  storm:"index"`
	Latitude      *float64 `json:"latitude"             msgpack:"latitude"`
	Longitude     *float64 `json:"longitude"            msgpack:"longitude"`
	Status        string   `json:"status"               msgpack:"status"`
	ReactionCount int      `json:"reaction_count"       msgpack:"reaction_count"`
	Views         int      `json:"views"                msgpack:"views"`
}

// Temporary returns true while the issue still has a locally minted ID.
func (i *Issue) Temporary() bool {
	return strings.HasPrefix(i.ID, TempIDPrefix)
}

// CategoryOrDefault returns the issue's category, or the default one when
// the row carries none.
func (i *Issue) CategoryOrDefault() string {
	if i.Category == "" {
		return CategoryDefault
	}
	return i.Category
}

// HasLocation returns true when the issue carries both coordinates.
func (i *Issue) HasLocation() bool {
	return i.Latitude != nil && i.Longitude != nil
}

// NewTempID mints a placeholder identifier for an optimistic write.
func NewTempID() string {
	return TempIDPrefix + uuid.Must(uuid.NewV4()).String()
}

// NewStableKey mints a render key for a locally created issue.
func NewStableKey() string {
	return "stable-" + uuid.Must(uuid.NewV4()).String()
}

// ValidCategory returns true if c belongs to the fixed category set.
func ValidCategory(c string) bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}
