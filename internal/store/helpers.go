package store

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/Someone-anon-coder/echoes-ai-friend/internal/models"
)

// nilIfEmpty returns nil if s is empty, otherwise returns s.
// Used for nullable database columns.
func nilIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// marshalColumn serializes a value for a JSON column, returning nil for
// nil pointers and empty slices so the column stays NULL.
func marshalColumn(v interface{}) (interface{}, error) {
	switch t := v.(type) {
	case *models.Persona:
		if t == nil {
			return nil, nil
		}
	case *models.Scenario:
		if t == nil {
			return nil, nil
		}
	case []models.Message:
		if len(t) == 0 {
			return nil, nil
		}
	case []models.MoodLog:
		if len(t) == 0 {
			return nil, nil
		}
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal column: %w", err)
	}
	return string(data), nil
}

// rowScanner abstracts sql.Row and sql.Rows for the scan helpers.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

// scanProfile scans a user profile row shared by the SQLite and Postgres
// backends.
func scanProfile(row rowScanner) (*models.UserProfile, error) {
	var p models.UserProfile
	var lastLogin, moodJSON sql.NullString
	err := row.Scan(&p.UserID, &p.Credits, &p.IsPremium, &lastLogin, &moodJSON, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	p.LastLoginDate = lastLogin.String
	if moodJSON.Valid && moodJSON.String != "" {
		if err := json.Unmarshal([]byte(moodJSON.String), &p.MoodHistory); err != nil {
			return nil, fmt.Errorf("failed to parse mood history: %w", err)
		}
	}
	return &p, nil
}

// scanSession scans a session row shared by the SQLite and Postgres
// backends.
func scanSession(row rowScanner) (*models.Session, error) {
	var s models.Session
	var scenarioJSON, personaJSON, historyJSON, journeyID sql.NullString
	err := row.Scan(&s.UserID, &scenarioJSON, &personaJSON, &historyJSON,
		&s.RelationshipScore, &s.ConversationSummary, &journeyID,
		&s.CurrentJourneyStep, &s.Ended, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return nil, err
	}
	s.ActiveJourneyID = journeyID.String
	if scenarioJSON.Valid && scenarioJSON.String != "" {
		if err := json.Unmarshal([]byte(scenarioJSON.String), &s.Scenario); err != nil {
			return nil, fmt.Errorf("failed to parse scenario: %w", err)
		}
	}
	if personaJSON.Valid && personaJSON.String != "" {
		if err := json.Unmarshal([]byte(personaJSON.String), &s.Persona); err != nil {
			return nil, fmt.Errorf("failed to parse persona: %w", err)
		}
	}
	if historyJSON.Valid && historyJSON.String != "" {
		if err := json.Unmarshal([]byte(historyJSON.String), &s.History); err != nil {
			return nil, fmt.Errorf("failed to parse history: %w", err)
		}
	}
	return &s, nil
}
