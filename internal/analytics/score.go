// Package analytics derives the gamified reputation data and the trending
// keywords from a snapshot of the issue collection. Everything here is a pure
// function over the snapshot; nothing is persisted.
package analytics

import (
	"time"

	"github.com/veebhq/veeb/internal/model"
)

// Window is the trailing period an issue counts as "fresh".
const Window = time.Hour

// Freshness returns 1 for a brand new issue, decaying linearly to 0 at the
// window boundary. Clamped to [0,1].
func Freshness(createdAt, now time.Time) float64 {
	age := now.Sub(createdAt)
	if age < 0 {
		age = 0
	}
	if age >= Window {
		return 0
	}
	return 1 - float64(age)/float64(Window)
}

// BaseScore is the raw popularity of an issue: views + reactions×5.
func BaseScore(issue *model.Issue) float64 {
	return float64(issue.Views) + float64(issue.ReactionCount)*5
}

// PostScore is the freshness-boosted popularity used both for trending-order
// ranking and for weighting trend keywords. Outside the window it equals the
// base score.
func PostScore(issue *model.Issue, now time.Time) float64 {
	base := BaseScore(issue)
	if issue.CreatedAt == nil {
		return base
	}

	freshness := Freshness(*issue.CreatedAt, now)
	if freshness == 0 {
		return base
	}
	return base*(1+freshness*9) + freshness*50
}
