package store

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/Someone-anon-coder/echoes-ai-friend/internal/models"
)

// Key prefixes for the Redis backend. Documents are stored as JSON blobs
// keyed by user ID.
const (
	redisProfileKeyPrefix = "echoes:profile:"
	redisSessionKeyPrefix = "echoes:session:"
)

// RedisStore persists profiles and sessions as JSON documents in Redis.
type RedisStore struct {
	client *redis.Client
	ctx    context.Context
}

// NewRedisStore creates a new Redis store from a redis:// URL.
func NewRedisStore(opts ...Option) (*RedisStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("NewRedisStore invoked", "DSN_set", cfg.DSN != "")

	if cfg.DSN == "" {
		slog.Error("RedisStore DSN not set")
		return nil, fmt.Errorf("redis DSN not set")
	}

	redisOpts, err := redis.ParseURL(cfg.DSN)
	if err != nil {
		slog.Error("Failed to parse Redis URL", "error", err)
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}

	client := redis.NewClient(redisOpts)
	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		slog.Error("Redis ping failed", "error", err)
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	slog.Debug("Redis connection established", "addr", redisOpts.Addr)

	return &RedisStore{client: client, ctx: ctx}, nil
}

func (s *RedisStore) GetUserProfile(userID string) (*models.UserProfile, error) {
	data, err := s.client.Get(s.ctx, redisProfileKeyPrefix+userID).Result()
	if err == redis.Nil {
		slog.Debug("RedisStore GetUserProfile not found", "userID", userID)
		return nil, nil
	}
	if err != nil {
		slog.Error("RedisStore GetUserProfile failed", "error", err, "userID", userID)
		return nil, fmt.Errorf("failed to load user profile for %s: %w", userID, err)
	}
	var profile models.UserProfile
	if err := json.Unmarshal([]byte(data), &profile); err != nil {
		slog.Error("RedisStore GetUserProfile unmarshal failed", "error", err, "userID", userID)
		return nil, fmt.Errorf("failed to parse user profile for %s: %w", userID, err)
	}
	return &profile, nil
}

func (s *RedisStore) SaveUserProfile(profile models.UserProfile) error {
	data, err := json.Marshal(profile)
	if err != nil {
		slog.Error("RedisStore SaveUserProfile marshal failed", "error", err, "userID", profile.UserID)
		return fmt.Errorf("failed to marshal user profile: %w", err)
	}
	if err := s.client.Set(s.ctx, redisProfileKeyPrefix+profile.UserID, data, 0).Err(); err != nil {
		slog.Error("RedisStore SaveUserProfile failed", "error", err, "userID", profile.UserID)
		return fmt.Errorf("failed to save user profile for %s: %w", profile.UserID, err)
	}
	slog.Debug("RedisStore SaveUserProfile succeeded", "userID", profile.UserID, "credits", profile.Credits)
	return nil
}

func (s *RedisStore) GetSession(userID string) (*models.Session, error) {
	data, err := s.client.Get(s.ctx, redisSessionKeyPrefix+userID).Result()
	if err == redis.Nil {
		slog.Debug("RedisStore GetSession not found", "userID", userID)
		return nil, nil
	}
	if err != nil {
		slog.Error("RedisStore GetSession failed", "error", err, "userID", userID)
		return nil, fmt.Errorf("failed to load session for %s: %w", userID, err)
	}
	var session models.Session
	if err := json.Unmarshal([]byte(data), &session); err != nil {
		slog.Error("RedisStore GetSession unmarshal failed", "error", err, "userID", userID)
		return nil, fmt.Errorf("failed to parse session for %s: %w", userID, err)
	}
	return &session, nil
}

func (s *RedisStore) SaveSession(session models.Session) error {
	data, err := json.Marshal(session)
	if err != nil {
		slog.Error("RedisStore SaveSession marshal failed", "error", err, "userID", session.UserID)
		return fmt.Errorf("failed to marshal session: %w", err)
	}
	if err := s.client.Set(s.ctx, redisSessionKeyPrefix+session.UserID, data, 0).Err(); err != nil {
		slog.Error("RedisStore SaveSession failed", "error", err, "userID", session.UserID)
		return fmt.Errorf("failed to save session for %s: %w", session.UserID, err)
	}
	slog.Debug("RedisStore SaveSession succeeded", "userID", session.UserID, "messages", len(session.History))
	return nil
}

func (s *RedisStore) DeleteSession(userID string) error {
	if err := s.client.Del(s.ctx, redisSessionKeyPrefix+userID).Err(); err != nil {
		slog.Error("RedisStore DeleteSession failed", "error", err, "userID", userID)
		return fmt.Errorf("failed to delete session for %s: %w", userID, err)
	}
	slog.Debug("RedisStore DeleteSession succeeded", "userID", userID)
	return nil
}

// Close closes the Redis client.
func (s *RedisStore) Close() error {
	slog.Debug("Closing Redis connection")
	err := s.client.Close()
	if err != nil {
		slog.Error("Failed to close Redis connection", "error", err)
	}
	return err
}
