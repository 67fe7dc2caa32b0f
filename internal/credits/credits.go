// Package credits implements the metered-credit gate: a per-turn charge
// with tier-dependent daily replenishment.
package credits

import (
	"log/slog"
	"time"

	"github.com/Someone-anon-coder/echoes-ai-friend/internal/models"
)

// Credit amounts. Premium accounts receive larger initial and daily grants.
const (
	// CostPerTurn is deducted before each dialogue turn is allowed to run.
	CostPerTurn = 1
	// FreeInitialCredits is the one-time grant for a new free-tier profile.
	FreeInitialCredits = 25
	// PremiumInitialCredits is the one-time grant for a new premium profile.
	PremiumInitialCredits = 100
	// FreeDailyCredits is added on the first interaction of a calendar day.
	FreeDailyCredits = 5
	// PremiumDailyCredits is the premium daily replenishment.
	PremiumDailyCredits = 20
)

// DateLayout is the ISO calendar-day format used for refill bookkeeping.
const DateLayout = "2006-01-02"

// InitialGrant returns the one-time credit grant for a new profile.
func InitialGrant(isPremium bool) int {
	if isPremium {
		return PremiumInitialCredits
	}
	return FreeInitialCredits
}

// ChargeTurn deducts the per-turn cost from the profile. It fails with
// ErrInsufficientCredits and leaves the balance untouched when the balance
// cannot cover the cost. The balance never goes negative.
func ChargeTurn(profile *models.UserProfile) error {
	if profile.Credits < CostPerTurn {
		slog.Debug("credits.ChargeTurn: insufficient balance", "userID", profile.UserID, "credits", profile.Credits)
		return models.ErrInsufficientCredits
	}
	profile.Credits -= CostPerTurn
	slog.Debug("credits.ChargeTurn: charged", "userID", profile.UserID, "cost", CostPerTurn, "remaining", profile.Credits)
	return nil
}

// RefillIfNewDay adds the tier-dependent daily amount the first time the
// user is observed on a new calendar day (UTC) and records that day.
// Repeated calls on the same day add nothing. Returns the credits added.
func RefillIfNewDay(profile *models.UserProfile, now time.Time) int {
	today := now.UTC().Format(DateLayout)
	if profile.LastLoginDate == today {
		return 0
	}
	added := FreeDailyCredits
	if profile.IsPremium {
		added = PremiumDailyCredits
	}
	profile.Credits += added
	profile.LastLoginDate = today
	slog.Info("credits.RefillIfNewDay: daily credits granted", "userID", profile.UserID, "added", added, "balance", profile.Credits, "date", today)
	return added
}
