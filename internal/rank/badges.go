package rank

import (
	"fmt"
	"math"
	"time"

	"github.com/veebhq/veeb/internal/analytics"
	"github.com/veebhq/veeb/internal/model"
)

// Card badge types.
const (
	CardHot    = "hot"    // popularity, time independent
	CardFresh  = "fresh"  // created within the window
	CardOnSite = "onsite" // fresh and within 5 km of the viewer
)

// A CardBadge is a per-card live indicator.
type CardBadge struct {
	Type string `json:"type"`
	// Distance carries a human label for on-site badges, e.g. "바로 근처",
	// "350m" or "3.2km".
	Distance string `json:"distance,omitempty"`
}

// CardBadges decides the badge set of one issue. Several may co-exist.
func CardBadges(issue *model.Issue, now time.Time, viewer *Location) []CardBadge {
	var badges []CardBadge

	if analytics.BaseScore(issue) > 0 {
		badges = append(badges, CardBadge{Type: CardHot})
	}

	fresh := issue.CreatedAt != nil && now.Sub(*issue.CreatedAt) < analytics.Window
	if !fresh {
		return badges
	}
	badges = append(badges, CardBadge{Type: CardFresh})

	if dist := DistanceFrom(issue, viewer); dist <= 5 {
		badges = append(badges, CardBadge{Type: CardOnSite, Distance: distanceLabel(dist)})
	}
	return badges
}

func distanceLabel(km float64) string {
	meters := km * 1000
	switch {
	case meters < 50:
		return "바로 근처"
	case meters < 1000:
		return fmt.Sprintf("%dm", int(math.Round(meters/10))*10)
	default:
		label := fmt.Sprintf("%.1f", km)
		if label[len(label)-2:] == ".0" {
			label = label[:len(label)-2]
		}
		return label + "km"
	}
}
