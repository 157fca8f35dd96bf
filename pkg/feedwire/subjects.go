// Package feedwire defines the wire surface shared by the feed server and
// the client engine: stream subjects, the cross-tab message shapes and the
// tolerant parsing of possibly-partial change-event rows.
package feedwire

import "strings"

// Change-stream subjects. Each mutation accepted by the remote store is
// published on the matching subject, at least once and unordered across
// operation types.
const (
	SubjectInsert = "veeb.changes.insert"
	SubjectUpdate = "veeb.changes.update"
	SubjectDelete = "veeb.changes.delete"

	// SubjectChanges subscribes to the whole change stream.
	SubjectChanges = "veeb.changes.*"
)

// Change operations, derived from the subject's last token.
const (
	OpInsert = "insert"
	OpUpdate = "update"
	OpDelete = "delete"
)

// ChangeSubject returns the change-stream subject for the given operation.
func ChangeSubject(op string) string {
	return "veeb.changes." + op
}

// ChangeOp returns the operation encoded in a change-stream subject.
func ChangeOp(subject string) string {
	return subject[strings.LastIndexByte(subject, '.')+1:]
}

// TabsSubject returns the same-device broadcast subject. Tabs of one device
// share it; other devices never subscribe to it.
func TabsSubject(deviceID string) string {
	return "veeb.tabs." + deviceID
}
