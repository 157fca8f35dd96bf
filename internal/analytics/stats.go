package analytics

import (
	"github.com/veebhq/veeb/internal/model"
)

type (
	// AuthorStats aggregates a device's posting activity.
	AuthorStats struct {
		Posts      int
		Reactions  int
		Categories map[string]int
	}

	// Stats indexes AuthorStats per device identifier.
	Stats map[string]*AuthorStats

	// A Badge is a gamified award derived from an author's activity.
	Badge struct {
		Type  string `json:"type"`
		Label string `json:"label"`
		Emoji string `json:"emoji"`
	}

	// A Level is a tier of the influence ladder.
	Level struct {
		Min   int    `json:"min"`
		Label string `json:"label"`
		Color string `json:"color"`
	}
)

// Badge types.
const (
	BadgeExpert = "expert"
	BadgeActive = "active"
	BadgeLoved  = "loved"
)

// Levels is the ascending influence ladder.
var Levels = []Level{
	{Min: 0, Label: "관찰자", Color: "#666"},
	{Min: 10, Label: "참여자", Color: "#4ECDC4"},
	{Min: 30, Label: "리포터", Color: "#7C5CFC"},
	{Min: 60, Label: "인플루언서", Color: "#FFD93D"},
	{Min: 100, Label: "레전드", Color: "#FF6B6B"},
}

// Collect rebuilds the per-author aggregates from a snapshot. The aggregates
// have no lifecycle of their own: every query starts from scratch.
func Collect(issues []*model.Issue) Stats {
	stats := Stats{}
	for _, issue := range issues {
		if issue.DeviceID == "" {
			continue
		}

		stat := stats[issue.DeviceID]
		if stat == nil {
			stat = &AuthorStats{Categories: map[string]int{}}
			stats[issue.DeviceID] = stat
		}
		stat.Posts++
		stat.Reactions += issue.ReactionCount
		stat.Categories[issue.CategoryOrDefault()]++
	}
	return stats
}

// Badges returns the awards earned by the given device. Multiple badges may
// co-exist; one expert badge is returned per qualifying category.
func (s Stats) Badges(deviceID string) []Badge {
	stat := s[deviceID]
	if stat == nil {
		return nil
	}

	var badges []Badge
	for _, cat := range model.Categories {
		if stat.Categories[cat] >= 3 && stat.Reactions >= 5 {
			badges = append(badges, Badge{Type: BadgeExpert, Label: cat + " 전문가", Emoji: "🏅"})
		}
	}
	if stat.Posts >= 5 {
		badges = append(badges, Badge{Type: BadgeActive, Label: "활동가", Emoji: "⚡"})
	}
	if stat.Reactions >= 20 {
		badges = append(badges, Badge{Type: BadgeLoved, Label: "공감 리더", Emoji: "💜"})
	}
	return badges
}

// Influence computes the influence score of the given device:
// posts×2 + reactions×3.
func (s Stats) Influence(deviceID string) int {
	stat := s[deviceID]
	if stat == nil {
		return 0
	}
	return stat.Posts*2 + stat.Reactions*3
}

// LevelFor returns the highest tier whose minimum is not above the score.
func LevelFor(score int) Level {
	for i := len(Levels) - 1; i >= 0; i-- {
		if score >= Levels[i].Min {
			return Levels[i]
		}
	}
	return Levels[0]
}

// NextLevel returns the next tier above the score and the missing points, or
// nil when the top tier is reached.
func NextLevel(score int) (*Level, int) {
	for i := range Levels {
		if score < Levels[i].Min {
			return &Levels[i], Levels[i].Min - score
		}
	}
	return nil, 0
}
