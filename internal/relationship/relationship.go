// Package relationship maintains the bounded relationship score and derives
// the discrete tier shown to the persona and the user.
package relationship

import "github.com/Someone-anon-coder/echoes-ai-friend/internal/models"

// Tier is the discrete relationship label derived from the numeric score.
type Tier string

const (
	TierStranger    Tier = "Stranger"
	TierAcquaint    Tier = "Acquaintance"
	TierFriend      Tier = "Friend"
	TierCloseFriend Tier = "Close Friend"
	TierBestFriend  Tier = "Best Friend"
)

// ApplyDelta clamps score+delta into the legal range. Pure function; the
// caller owns the stored score.
func ApplyDelta(score, delta int) int {
	next := score + delta
	if next < models.MinRelationshipScore {
		return models.MinRelationshipScore
	}
	if next > models.MaxRelationshipScore {
		return models.MaxRelationshipScore
	}
	return next
}

// TierOf classifies a score into its tier. Total over all integers:
// out-of-range values are clamped first, and each boundary value belongs
// to the lower tier (25 is still Acquaintance).
func TierOf(score int) Tier {
	score = ApplyDelta(score, 0)
	switch {
	case score == 0:
		return TierStranger
	case score <= 25:
		return TierAcquaint
	case score <= 50:
		return TierFriend
	case score <= 75:
		return TierCloseFriend
	default:
		return TierBestFriend
	}
}
