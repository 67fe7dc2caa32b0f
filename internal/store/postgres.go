package store

import (
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "embed"

	_ "github.com/lib/pq"

	"github.com/Someone-anon-coder/echoes-ai-friend/internal/models"
)

// Connection pool settings for the PostgreSQL backend.
const (
	DefaultMaxOpenConns    = 25
	DefaultMaxIdleConns    = 25
	DefaultConnMaxLifetime = 5 * time.Minute
)

//go:embed migrations_postgres.sql
var postgresMigrations string

// PostgresStore persists profiles and sessions in a PostgreSQL database.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgreSQL store with the given DSN.
func NewPostgresStore(opts ...Option) (*PostgresStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("NewPostgresStore invoked", "DSN_set", cfg.DSN != "")

	if cfg.DSN == "" {
		slog.Error("PostgresStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	db, err := sql.Open("postgres", cfg.DSN)
	if err != nil {
		slog.Error("Failed to open PostgreSQL connection", "error", err)
		return nil, err
	}

	db.SetMaxOpenConns(DefaultMaxOpenConns)
	db.SetMaxIdleConns(DefaultMaxIdleConns)
	db.SetConnMaxLifetime(DefaultConnMaxLifetime)

	if err := db.Ping(); err != nil {
		slog.Error("PostgreSQL ping failed", "error", err)
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if _, err := db.Exec(postgresMigrations); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("PostgreSQL migrations applied successfully")

	return &PostgresStore{db: db}, nil
}

func (s *PostgresStore) GetUserProfile(userID string) (*models.UserProfile, error) {
	row := s.db.QueryRow(`SELECT user_id, credits, is_premium, last_login_date, mood_history, created_at, updated_at
		FROM user_profiles WHERE user_id = $1`, userID)
	profile, err := scanProfile(row)
	if err == sql.ErrNoRows {
		slog.Debug("PostgresStore GetUserProfile not found", "userID", userID)
		return nil, nil
	}
	if err != nil {
		slog.Error("PostgresStore GetUserProfile failed", "error", err, "userID", userID)
		return nil, fmt.Errorf("failed to load user profile for %s: %w", userID, err)
	}
	return profile, nil
}

func (s *PostgresStore) SaveUserProfile(profile models.UserProfile) error {
	moodJSON, err := marshalColumn(profile.MoodHistory)
	if err != nil {
		slog.Error("PostgresStore SaveUserProfile marshal failed", "error", err, "userID", profile.UserID)
		return err
	}
	_, err = s.db.Exec(`INSERT INTO user_profiles
		(user_id, credits, is_premium, last_login_date, mood_history, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (user_id) DO UPDATE SET
			credits = EXCLUDED.credits,
			is_premium = EXCLUDED.is_premium,
			last_login_date = EXCLUDED.last_login_date,
			mood_history = EXCLUDED.mood_history,
			updated_at = EXCLUDED.updated_at`,
		profile.UserID, profile.Credits, profile.IsPremium, nilIfEmpty(profile.LastLoginDate),
		moodJSON, profile.CreatedAt, profile.UpdatedAt)
	if err != nil {
		slog.Error("PostgresStore SaveUserProfile failed", "error", err, "userID", profile.UserID)
		return fmt.Errorf("failed to save user profile for %s: %w", profile.UserID, err)
	}
	slog.Debug("PostgresStore SaveUserProfile succeeded", "userID", profile.UserID, "credits", profile.Credits)
	return nil
}

func (s *PostgresStore) GetSession(userID string) (*models.Session, error) {
	row := s.db.QueryRow(`SELECT user_id, scenario, persona, history, relationship_score,
		conversation_summary, active_journey_id, journey_step, ended, created_at, updated_at
		FROM sessions WHERE user_id = $1`, userID)
	session, err := scanSession(row)
	if err == sql.ErrNoRows {
		slog.Debug("PostgresStore GetSession not found", "userID", userID)
		return nil, nil
	}
	if err != nil {
		slog.Error("PostgresStore GetSession failed", "error", err, "userID", userID)
		return nil, fmt.Errorf("failed to load session for %s: %w", userID, err)
	}
	return session, nil
}

func (s *PostgresStore) SaveSession(session models.Session) error {
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
	_, err = s.db.Exec(`INSERT INTO sessions
		(user_id, scenario, persona, history, relationship_score, conversation_summary,
		 active_journey_id, journey_step, ended, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (user_id) DO UPDATE SET
			scenario = EXCLUDED.scenario,
			persona = EXCLUDED.persona,
			history = EXCLUDED.history,
			relationship_score = EXCLUDED.relationship_score,
			conversation_summary = EXCLUDED.conversation_summary,
			active_journey_id = EXCLUDED.active_journey_id,
			journey_step = EXCLUDED.journey_step,
			ended = EXCLUDED.ended,
			updated_at = EXCLUDED.updated_at`,
		session.UserID, scenarioJSON, personaJSON, historyJSON,
		session.RelationshipScore, session.ConversationSummary,
		nilIfEmpty(session.ActiveJourneyID), session.CurrentJourneyStep,
		session.Ended, session.CreatedAt, session.UpdatedAt)
	if err != nil {
		slog.Error("PostgresStore SaveSession failed", "error", err, "userID", session.UserID)
		return fmt.Errorf("failed to save session for %s: %w", session.UserID, err)
	}
	slog.Debug("PostgresStore SaveSession succeeded", "userID", session.UserID, "messages", len(session.History))
	return nil
}

func (s *PostgresStore) DeleteSession(userID string) error {
	_, err := s.db.Exec(`DELETE FROM sessions WHERE user_id = $1`, userID)
	if err != nil {
		slog.Error("PostgresStore DeleteSession failed", "error", err, "userID", userID)
		return fmt.Errorf("failed to delete session for %s: %w", userID, err)
	}
	slog.Debug("PostgresStore DeleteSession succeeded", "userID", userID)
	return nil
}

// Close closes the PostgreSQL connection pool.
func (s *PostgresStore) Close() error {
	slog.Debug("Closing PostgreSQL database connection")
	err := s.db.Close()
	if err != nil {
		slog.Error("Failed to close PostgreSQL database", "error", err)
	}
	return err
}
