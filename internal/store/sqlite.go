// Package store provides storage backends for the Echoes engine.
//
// This file implements the SQLite-backed store, the default file-based
// persistence layer.
package store

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	_ "embed"

	"github.com/Someone-anon-coder/echoes-ai-friend/internal/models"
	_ "github.com/mattn/go-sqlite3"
)

// DefaultDirPermissions defines the default permissions for database directories.
const DefaultDirPermissions = 0755

//go:embed migrations_sqlite.sql
var sqliteMigrations string

// SQLiteStore persists profiles and sessions in a SQLite database file.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite store with the given DSN.
// The DSN is a file path; the containing directory is created if needed.
func NewSQLiteStore(opts ...Option) (*SQLiteStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("NewSQLiteStore invoked", "DSN_set", cfg.DSN != "")

	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("SQLiteStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	dir := filepath.Dir(dsn)
	if err := os.MkdirAll(dir, DefaultDirPermissions); err != nil {
		slog.Error("Failed to create database directory", "error", err, "dir", dir)
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		slog.Error("Failed to open SQLite connection", "error", err)
		return nil, err
	}
	if err := db.Ping(); err != nil {
		slog.Error("SQLite ping failed", "error", err)
		return nil, err
	}

	if _, err := db.Exec(sqliteMigrations); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("SQLite migrations applied successfully")

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) GetUserProfile(userID string) (*models.UserProfile, error) {
	row := s.db.QueryRow(`SELECT user_id, credits, is_premium, last_login_date, mood_history, created_at, updated_at
		FROM user_profiles WHERE user_id = ?`, userID)
	profile, err := scanProfile(row)
	if err == sql.ErrNoRows {
		slog.Debug("SQLiteStore GetUserProfile not found", "userID", userID)
		return nil, nil
	}
	if err != nil {
		slog.Error("SQLiteStore GetUserProfile failed", "error", err, "userID", userID)
		return nil, fmt.Errorf("failed to load user profile for %s: %w", userID, err)
	}
	return profile, nil
}

func (s *SQLiteStore) SaveUserProfile(profile models.UserProfile) error {
	moodJSON, err := marshalColumn(profile.MoodHistory)
	if err != nil {
		slog.Error("SQLiteStore SaveUserProfile marshal failed", "error", err, "userID", profile.UserID)
		return err
	}
	_, err = s.db.Exec(`INSERT OR REPLACE INTO user_profiles
		(user_id, credits, is_premium, last_login_date, mood_history, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		profile.UserID, profile.Credits, profile.IsPremium, nilIfEmpty(profile.LastLoginDate),
		moodJSON, profile.CreatedAt, profile.UpdatedAt)
	if err != nil {
		slog.Error("SQLiteStore SaveUserProfile failed", "error", err, "userID", profile.UserID)
		return fmt.Errorf("failed to save user profile for %s: %w", profile.UserID, err)
	}
	slog.Debug("SQLiteStore SaveUserProfile succeeded", "userID", profile.UserID, "credits", profile.Credits)
	return nil
}

func (s *SQLiteStore) GetSession(userID string) (*models.Session, error) {
	row := s.db.QueryRow(`SELECT user_id, scenario, persona, history, relationship_score,
		conversation_summary, active_journey_id, journey_step, ended, created_at, updated_at
		FROM sessions WHERE user_id = ?`, userID)
	session, err := scanSession(row)
	if err == sql.ErrNoRows {
		slog.Debug("SQLiteStore GetSession not found", "userID", userID)
		return nil, nil
	}
	if err != nil {
		slog.Error("SQLiteStore GetSession failed", "error", err, "userID", userID)
		return nil, fmt.Errorf("failed to load session for %s: %w", userID, err)
	}
	return session, nil
}

func (s *SQLiteStore) SaveSession(session models.Session) error {
	scenarioJSON, err := marshalColumn(session.Scenario)
	if err != nil {
		return err
	}
	personaJSON, err := marshalColumn(session.Persona)
	if err != nil {
		return err
	}
	historyJSON, err := marshalColumn(session.History)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(`INSERT OR REPLACE INTO sessions
		(user_id, scenario, persona, history, relationship_score, conversation_summary,
		 active_journey_id, journey_step, ended, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		session.UserID, scenarioJSON, personaJSON, historyJSON,
		session.RelationshipScore, session.ConversationSummary,
		nilIfEmpty(session.ActiveJourneyID), session.CurrentJourneyStep,
		session.Ended, session.CreatedAt, session.UpdatedAt)
	if err != nil {
		slog.Error("SQLiteStore SaveSession failed", "error", err, "userID", session.UserID)
		return fmt.Errorf("failed to save session for %s: %w", session.UserID, err)
	}
	slog.Debug("SQLiteStore SaveSession succeeded", "userID", session.UserID, "messages", len(session.History))
	return nil
}

func (s *SQLiteStore) DeleteSession(userID string) error {
	_, err := s.db.Exec(`DELETE FROM sessions WHERE user_id = ?`, userID)
	if err != nil {
		slog.Error("SQLiteStore DeleteSession failed", "error", err, "userID", userID)
		return fmt.Errorf("failed to delete session for %s: %w", userID, err)
	}
	slog.Debug("SQLiteStore DeleteSession succeeded", "userID", userID)
	return nil
}

// Close closes the SQLite database connection.
func (s *SQLiteStore) Close() error {
	slog.Debug("Closing SQLite database connection")
	err := s.db.Close()
	if err != nil {
		slog.Error("Failed to close SQLite database", "error", err)
	}
	return err
}
