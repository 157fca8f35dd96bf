package feedwire

import (
	"bytes"

	"github.com/pkg/errors"
	"github.com/ugorji/go/codec"
	"github.com/veebhq/veeb/internal/model"
)

// Cross-tab message types.
const (
	TabNewIssue       = "NEW_ISSUE"
	TabDeleteIssue    = "DELETE_ISSUE"
	TabUpdateReaction = "UPDATE_REACTION"
)

// A TabMessage is the fire-and-forget broadcast between tabs of one device.
// NEW_ISSUE carries a full row, DELETE_ISSUE only an identifier and
// UPDATE_REACTION a row stripped down to id and reaction count.
type TabMessage struct {
	Type    string       `json:"type"`
	Issue   *model.Issue `json:"issue,omitempty"`
	IssueID string       `json:"issue_id,omitempty"`
}

// cborHandle is shared; image payloads make these messages large enough for
// a binary encoding to matter.
var cborHandle = new(codec.CborHandle)

// EncodeTabMessage serializes a cross-tab message to CBOR.
func EncodeTabMessage(m *TabMessage) ([]byte, error) {
	var b bytes.Buffer
	enc := codec.NewEncoder(&b, cborHandle)
	if err := enc.Encode(m); err != nil {
		return nil, errors.Wrap(err, "could not encode tab message")
	}
	return b.Bytes(), nil
}

// DecodeTabMessage deserializes a cross-tab message from CBOR.
func DecodeTabMessage(raw []byte) (*TabMessage, error) {
	var m TabMessage
	dec := codec.NewDecoder(bytes.NewReader(raw), cborHandle)
	if err := dec.Decode(&m); err != nil {
		return nil, errors.Wrap(err, "could not decode tab message")
	}
	return &m, nil
}
