package feedwire

import (
	"github.com/araddon/dateparse"
	"github.com/pkg/errors"
	"github.com/valyala/fastjson"
	"github.com/veebhq/veeb/internal/model"
)

// ParsePartial decodes a change-event row into an explicit partial. A field
// missing from the payload (or null) is a valid state, never an error; only
// a body that is not a JSON object is rejected. Timestamps are parsed
// leniently since upstream stores are not consistent about their format.
func ParsePartial(raw []byte) (*model.Partial, error) {
	v, err := fastjson.ParseBytes(raw)
	if err != nil {
		return nil, errors.Wrap(err, "could not parse change event")
	}
	if v.Type() != fastjson.TypeObject {
		return nil, errors.New("change event is not an object")
	}

	p := &model.Partial{
		ID:            string(v.GetStringBytes("id")),
		Title:         stringField(v, "title"),
		Image:         stringField(v, "image_data"),
		DeviceID:      stringField(v, "device_id"),
		Category:      stringField(v, "category"),
		Status:        stringField(v, "status"),
		Latitude:      floatField(v, "latitude"),
		Longitude:     floatField(v, "longitude"),
		ReactionCount: intField(v, "reaction_count"),
		Views:         intField(v, "views"),
	}

	if raw := v.GetStringBytes("created_at"); len(raw) > 0 {
		if t, err := dateparse.ParseAny(string(raw)); err == nil {
			t = t.UTC()
			p.CreatedAt = &t
		}
	}

	return p, nil
}

func stringField(v *fastjson.Value, key string) *string {
	if v.Get(key) == nil || v.Get(key).Type() != fastjson.TypeString {
		return nil
	}
	s := string(v.GetStringBytes(key))
	return &s
}

func floatField(v *fastjson.Value, key string) *float64 {
	if v.Get(key) == nil || v.Get(key).Type() != fastjson.TypeNumber {
		return nil
	}
	f := v.GetFloat64(key)
	return &f
}

func intField(v *fastjson.Value, key string) *int {
	if v.Get(key) == nil || v.Get(key).Type() != fastjson.TypeNumber {
		return nil
	}
	n := v.GetInt(key)
	return &n
}
