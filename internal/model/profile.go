package model

// ProfileID is the fixed key of the single profile record of a device.
const ProfileID = "device"

// A Profile holds the device-local state: the anonymous device identifier
// and the user's explicit settings. It is read once at startup and written
// only on explicit user action.
type Profile struct {
	Base `msgpack:",inline" storm:"inline"`

	DeviceID      string   `json:"device_id"      msgpack:"device_id"`
	AlertKeywords []string `json:"alert_keywords" msgpack:"alert_keywords"`
	RadiusIndex   int      `json:"default_radius" msgpack:"default_radius"`
	ReactedIDs    []string `json:"reacted_ids"    msgpack:"reacted_ids"`
}

// Reacted returns true if the device already reacted to the given issue.
func (p Profile) Reacted(id string) bool {
	for _, rid := range p.ReactedIDs {
		if rid == id {
			return true
		}
	}
	return false
}

// ToggleReacted flips the reaction flag for the given issue and returns the
// new state.
func (p *Profile) ToggleReacted(id string) bool {
	for i, rid := range p.ReactedIDs {
		if rid == id {
			p.ReactedIDs = append(p.ReactedIDs[:i], p.ReactedIDs[i+1:]...)
			return false
		}
	}
	p.ReactedIDs = append(p.ReactedIDs, id)
	return true
}

// HasAlertKeyword returns true if kw is already registered.
func (p *Profile) HasAlertKeyword(kw string) bool {
	for _, k := range p.AlertKeywords {
		if k == kw {
			return true
		}
	}
	return false
}
