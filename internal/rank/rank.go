// Package rank derives the visible, ordered view of the issue collection.
// Everything is a pure function of (snapshot, wall-clock time, filter state);
// the store is never mutated from here.
package rank

import (
	"sort"
	"strings"
	"time"

	"github.com/veebhq/veeb/internal/analytics"
	"github.com/veebhq/veeb/internal/geoutil"
	"github.com/veebhq/veeb/internal/model"
)

// A Scope is the first-stage filter of the feed.
type Scope string

// Feed scopes.
const (
	ScopeAll      Scope = "all"
	ScopeTrending Scope = "trending"
	ScopeNearby   Scope = "nearby"
)

// RadiusSteps are the selectable nearby radii, in kilometers.
var RadiusSteps = []float64{0.5, 1, 3, 5, 10}

// DefaultRadiusIndex selects 5 km.
const DefaultRadiusIndex = 3

type (
	// A Location is a viewer position.
	Location struct {
		Latitude  float64
		Longitude float64
	}

	// A Filter describes the requested view.
	Filter struct {
		Scope    Scope
		Category string // empty: all categories
		Keyword  string // empty: no keyword filter
		RadiusKm float64
		// Viewer is the viewer position; nil falls back to the fixed
		// default so the nearby scope never stalls on a missing location.
		Viewer *Location
		// AlertKeywords are the viewer's saved keywords, boosting matching
		// titles in the trending scope.
		AlertKeywords []string
		// InfluenceOf resolves an author's influence score; nil disables
		// the author bonus.
		InfluenceOf func(deviceID string) int
	}
)

// Apply computes the filtered, ordered view of the snapshot. The input slice
// is never modified.
func Apply(issues []*model.Issue, now time.Time, f Filter) []*model.Issue {
	result := issues

	switch f.Scope {
	case ScopeTrending:
		result = sortByHotScore(result, now, f)
	case ScopeNearby:
		result = filterByRadius(result, f)
	}

	if f.Category != "" {
		kept := make([]*model.Issue, 0, len(result))
		for _, issue := range result {
			if issue.CategoryOrDefault() == f.Category {
				kept = append(kept, issue)
			}
		}
		result = kept
	}

	if f.Keyword != "" {
		kept := make([]*model.Issue, 0, len(result))
		for _, issue := range result {
			if strings.Contains(issue.Title, f.Keyword) {
				kept = append(kept, issue)
			}
		}
		result = kept
	}

	return result
}

// HotScore computes the composite popularity/freshness metric driving the
// trending order: the freshness-boosted post score, plus a flat bonus when
// the title matches a saved alert keyword, plus a capped author-influence
// bonus.
func HotScore(issue *model.Issue, now time.Time, f Filter) float64 {
	score := analytics.PostScore(issue, now)

	for _, kw := range f.AlertKeywords {
		if kw != "" && strings.Contains(issue.Title, kw) {
			score += 30
			break
		}
	}

	if f.InfluenceOf != nil {
		bonus := float64(f.InfluenceOf(issue.DeviceID)) * 0.3
		if bonus > 20 {
			bonus = 20
		}
		score += bonus
	}

	return score
}

// DistanceFrom returns the viewer's distance to the issue in kilometers.
// Issues without coordinates get a stable pseudo-distance so that repeated
// queries never shuffle the view.
func DistanceFrom(issue *model.Issue, viewer *Location) float64 {
	loc := viewer
	if loc == nil {
		loc = &Location{Latitude: geoutil.FallbackLatitude, Longitude: geoutil.FallbackLongitude}
	}

	if issue.HasLocation() {
		return geoutil.Distance(loc.Latitude, loc.Longitude, *issue.Latitude, *issue.Longitude)
	}
	return geoutil.PseudoDistance(issue.ID)
}

func sortByHotScore(issues []*model.Issue, now time.Time, f Filter) []*model.Issue {
	sorted := make([]*model.Issue, len(issues))
	copy(sorted, issues)

	scores := make(map[string]float64, len(sorted))
	for _, issue := range sorted {
		scores[issue.ID] = HotScore(issue, now, f)
	}

	sort.SliceStable(sorted, func(i, j int) bool {
		return scores[sorted[i].ID] > scores[sorted[j].ID]
	})
	return sorted
}

func filterByRadius(issues []*model.Issue, f Filter) []*model.Issue {
	kept := make([]*model.Issue, 0, len(issues))
	for _, issue := range issues {
		if DistanceFrom(issue, f.Viewer) <= f.RadiusKm {
			kept = append(kept, issue)
		}
	}
	return kept
}
