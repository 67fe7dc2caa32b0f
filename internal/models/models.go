// Package models defines the core data structures for the Echoes engine.
//
// It includes the persona, message, and session aggregate types shared
// across modules, plus the error taxonomy for recoverable failures.
package models

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
)

// Sender identifies the author of a chat message.
type Sender string

const (
	// SenderUser marks a message typed by the user.
	SenderUser Sender = "user"
	// SenderAI marks a message generated by the persona.
	SenderAI Sender = "ai"
	// SenderSystem marks a scene-setting or engine-authored message.
	SenderSystem Sender = "system"
)

// Timestamp sentinels for seed messages. Real turns use Unix milliseconds,
// so both sentinels sort before every ordinary message, and the system
// seed sorts before the persona's first line.
const (
	// SeedSystemTimestamp is the sentinel for the scene-setting system message.
	SeedSystemTimestamp int64 = -1
	// FirstAIMessageTimestamp is the lowest non-sentinel timestamp, used for
	// the persona's opening line.
	FirstAIMessageTimestamp int64 = 0
)

// Relationship score bounds.
const (
	MinRelationshipScore = 0
	MaxRelationshipScore = 100
	// InitialRelationshipScore is the score a fresh session starts at.
	InitialRelationshipScore = 10
)

// Error variables for the recoverable failure taxonomy.
var (
	ErrInsufficientCredits   = errors.New("insufficient credits for this turn")
	ErrGenerationFailed      = errors.New("generation service failed")
	ErrMalformedPersona      = errors.New("generation service returned a malformed persona")
	ErrUnknownJourney        = errors.New("active journey does not resolve to a known journey")
	ErrSessionNotInitialized = errors.New("session has no persona")
	ErrSessionEnded          = errors.New("session has ended")
	ErrPremiumRequired       = errors.New("scenario requires a premium account")
	ErrUserNotFound          = errors.New("user profile not found")
)

// MoodAnalysis is the structured sentiment reading attached to a user message.
type MoodAnalysis struct {
	Sentiment       string  `json:"sentiment"`       // "Positive", "Negative", or "Neutral"
	PrimaryEmotion  string  `json:"primaryEmotion"`  // e.g. "joy", "frustration"
	ConfidenceScore float64 `json:"confidenceScore"` // 0..1
}

// Message is a single entry in the conversation log. Messages are
// append-only; the only post-creation mutation is attaching a deferred
// MoodAnalysis to the user message that triggered it.
type Message struct {
	ID           string        `json:"id"`
	Sender       Sender        `json:"sender"`
	Text         string        `json:"text"`
	Timestamp    int64         `json:"timestamp"` // Unix milliseconds, or a seed sentinel
	MoodAnalysis *MoodAnalysis `json:"moodAnalysis,omitempty"`
}

// NewMessage creates a message with a unique, sender-prefixed ID.
func NewMessage(sender Sender, text string, timestamp int64) Message {
	return Message{
		ID:        fmt.Sprintf("%s-%s", sender, uuid.NewString()),
		Sender:    sender,
		Text:      text,
		Timestamp: timestamp,
	}
}

// Persona is the generated AI character. All fields except the busy triple
// are immutable after generation; the busy triple is owned by the dialogue
// orchestrator.
type Persona struct {
	Name                 string   `json:"name"`
	Gender               string   `json:"gender,omitempty"`
	Hobbies              []string `json:"hobbies"`
	PersonalityTraits    []string `json:"personalityTraits"`
	Secret               string   `json:"secret,omitempty"`
	InitialSystemMessage string   `json:"initialSystemMessage"`
	FirstAIMessage       string   `json:"firstAIMessage,omitempty"`
	IsBusy               bool     `json:"isBusy"`
	BusyReason           string   `json:"busyReason,omitempty"`
	BusyUntil            int64    `json:"busyUntil,omitempty"` // Unix milliseconds
}

// Validate checks that a generated persona has the minimum required fields.
func (p *Persona) Validate() error {
	if p.Name == "" || p.InitialSystemMessage == "" {
		return ErrMalformedPersona
	}
	return nil
}

// ClearBusy resets the busy triple after a busy window has elapsed.
func (p *Persona) ClearBusy() {
	p.IsBusy = false
	p.BusyReason = ""
	p.BusyUntil = 0
}

// Summary returns a short persona description for sentiment prompts.
func (p *Persona) Summary() string {
	if len(p.PersonalityTraits) >= 2 {
		return p.PersonalityTraits[0] + ", " + p.PersonalityTraits[1]
	}
	if len(p.PersonalityTraits) == 1 {
		return p.PersonalityTraits[0]
	}
	return p.Name
}

// Scenario is a first-meeting setting the user picks before persona
// generation.
type Scenario struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	IsPremium   bool   `json:"isPremium"`
}

// Validate checks the caller-supplied scenario fields.
func (s *Scenario) Validate() error {
	if s.ID == "" || s.Name == "" {
		return errors.New("scenario requires id and name")
	}
	return nil
}

// Session is the aggregate owned by one user: persona, message log,
// relationship score, rolling summary, and journey position. It is
// replaced wholesale on reset, never incrementally cleared.
type Session struct {
	UserID              string    `json:"userId"`
	Scenario            *Scenario `json:"scenario,omitempty"`
	Persona             *Persona  `json:"persona,omitempty"`
	History             []Message `json:"history"`
	RelationshipScore   int       `json:"relationshipScore"`
	ConversationSummary string    `json:"conversationSummary"`
	ActiveJourneyID     string    `json:"activeJourneyId,omitempty"`
	CurrentJourneyStep  int       `json:"currentJourneyStepId"`
	Ended               bool      `json:"ended"`
	CreatedAt           time.Time `json:"createdAt"`
	UpdatedAt           time.Time `json:"updatedAt"`
}

// JourneyActive reports whether a guided journey is in progress.
func (s *Session) JourneyActive() bool {
	return s.ActiveJourneyID != ""
}

// ClearJourney drops the journey position. Both fields are cleared
// together; the session reverts to free chat on the next turn.
func (s *Session) ClearJourney() {
	s.ActiveJourneyID = ""
	s.CurrentJourneyStep = 0
}

// Append adds a message to the history log.
func (s *Session) Append(m Message) {
	s.History = append(s.History, m)
}

// SortHistory restores non-decreasing timestamp order. The sort is stable
// so same-timestamp messages keep their insertion order.
func (s *Session) SortHistory() {
	sort.SliceStable(s.History, func(i, j int) bool {
		return s.History[i].Timestamp < s.History[j].Timestamp
	})
}

// RecentHistory returns the last n messages for reply context.
func (s *Session) RecentHistory(n int) []Message {
	if n <= 0 || len(s.History) <= n {
		return s.History
	}
	return s.History[len(s.History)-n:]
}
