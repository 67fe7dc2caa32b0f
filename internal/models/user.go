// Package models defines the user profile document.
package models

import "time"

// MoodLog is one self-reported mood entry, at most one per calendar day.
type MoodLog struct {
	Date string `json:"date"` // ISO date, e.g. "2026-09-01"
	Mood int    `json:"mood"` // 1-5 rating
}

// UserProfile is the per-user document: credit balance, tier, and mood
// history. Authentication happens outside the engine; the profile is keyed
// by the external user ID.
type UserProfile struct {
	UserID        string    `json:"userId"`
	Credits       int       `json:"credits"`
	IsPremium     bool      `json:"isPremium"`
	LastLoginDate string    `json:"lastLoginDate,omitempty"` // ISO date of last daily refill
	MoodHistory   []MoodLog `json:"moodHistory,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// LogMood records a mood rating for the given day, replacing any earlier
// entry for the same date.
func (u *UserProfile) LogMood(date string, mood int) {
	for i := range u.MoodHistory {
		if u.MoodHistory[i].Date == date {
			u.MoodHistory[i].Mood = mood
			return
		}
	}
	u.MoodHistory = append(u.MoodHistory, MoodLog{Date: date, Mood: mood})
}
