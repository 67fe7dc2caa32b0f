// Package dialogue runs the conversation session engine: scenario and
// journey selection, the per-turn pipeline (credit gate, sentiment,
// relationship scoring, busy windows, reply, rolling summary), and
// session lifecycle.
package dialogue

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"github.com/Someone-anon-coder/echoes-ai-friend/internal/credits"
	"github.com/Someone-anon-coder/echoes-ai-friend/internal/genai"
	"github.com/Someone-anon-coder/echoes-ai-friend/internal/journey"
	"github.com/Someone-anon-coder/echoes-ai-friend/internal/models"
	"github.com/Someone-anon-coder/echoes-ai-friend/internal/relationship"
	"github.com/Someone-anon-coder/echoes-ai-friend/internal/store"
)

// Busy window tuning. After a reply there is a small chance the persona
// becomes unavailable for a short period.
const (
	BusyChance         = 0.10
	BusyMinDuration    = 30 * time.Second
	BusyMaxDuration    = 120 * time.Second
	SummaryInterval    = 10
	ReplyHistoryWindow = 5
)

// busyReasons are the persona's excuses when a busy window opens.
var busyReasons = []string{
	"making some tea",
	"answering the door",
	"taking a quick phone call",
	"finishing up something for work",
	"grabbing a bite to eat",
}

// TurnOutcome discriminates what a submitted message produced.
type TurnOutcome string

const (
	// OutcomeReply means the persona answered in character.
	OutcomeReply TurnOutcome = "reply"
	// OutcomeBusy means the persona is inside a busy window and did not reply.
	OutcomeBusy TurnOutcome = "busy"
	// OutcomeEnded means the relationship hit the floor and the session ended.
	OutcomeEnded TurnOutcome = "ended"
	// OutcomeJourney means the turn advanced a guided journey instead of
	// free chat.
	OutcomeJourney TurnOutcome = "journey"
)

// TurnResult reports the outcome of one submitted user message.
type TurnResult struct {
	Outcome           TurnOutcome      `json:"outcome"`
	Messages          []models.Message `json:"messages"` // messages appended after the user's
	RelationshipScore int              `json:"relationshipScore"`
	CreditsRemaining  int              `json:"creditsRemaining"`
	JourneyCompleted  bool             `json:"journeyCompleted,omitempty"`
}

// Opts holds orchestrator dependencies and test seams.
type Opts struct {
	Store store.Store
	GenAI genai.ClientInterface
	Now   func() time.Time
	Rand  *rand.Rand
}

// Option configures the orchestrator.
type Option func(*Opts)

// WithStore sets the persistence backend.
func WithStore(s store.Store) Option {
	return func(o *Opts) { o.Store = s }
}

// WithGenAI sets the generation client.
func WithGenAI(c genai.ClientInterface) Option {
	return func(o *Opts) { o.GenAI = c }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(o *Opts) { o.Now = now }
}

// WithRand overrides the randomness source for busy rolls.
func WithRand(r *rand.Rand) Option {
	return func(o *Opts) { o.Rand = r }
}

// Orchestrator coordinates the store and the generation client to run
// sessions. It is safe for use from a single request goroutine per user;
// concurrent turns for the same user are last-write-wins.
type Orchestrator struct {
	store store.Store
	genAI genai.ClientInterface
	now   func() time.Time
	rand  *rand.Rand
}

// NewOrchestrator creates an orchestrator. Store and GenAI are required.
func NewOrchestrator(opts ...Option) (*Orchestrator, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if cfg.GenAI == nil {
		return nil, fmt.Errorf("generation client is required")
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Rand == nil {
		cfg.Rand = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Orchestrator{
		store: cfg.Store,
		genAI: cfg.GenAI,
		now:   cfg.Now,
		rand:  cfg.Rand,
	}, nil
}

// GetOrCreateProfile loads the user's profile, creating it with the free
// initial grant on first contact, and applies the daily refill. Returns
// the profile and how many credits were granted this call.
func (o *Orchestrator) GetOrCreateProfile(userID string) (*models.UserProfile, int, error) {
	profile, err := o.store.GetUserProfile(userID)
	if err != nil {
		return nil, 0, err
	}
	now := o.now()
	if profile == nil {
		profile = &models.UserProfile{
			UserID:        userID,
			Credits:       credits.InitialGrant(false),
			LastLoginDate: now.UTC().Format(credits.DateLayout),
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		if err := o.store.SaveUserProfile(*profile); err != nil {
			return nil, 0, err
		}
		slog.Info("Dialogue.GetOrCreateProfile: profile created", "userID", userID, "credits", profile.Credits)
		return profile, profile.Credits, nil
	}
	granted := credits.RefillIfNewDay(profile, now)
	if granted > 0 {
		profile.UpdatedAt = now
		if err := o.store.SaveUserProfile(*profile); err != nil {
			return nil, 0, err
		}
		slog.Info("Dialogue.GetOrCreateProfile: daily refill applied", "userID", userID, "granted", granted)
	}
	return profile, granted, nil
}

// GetSession loads the user's session, or nil if none exists. On load the
// seed messages are restored if a partial write lost them, and the history
// is re-sorted so seed sentinels always precede real turns.
func (o *Orchestrator) GetSession(userID string) (*models.Session, error) {
	session, err := o.store.GetSession(userID)
	if err != nil || session == nil {
		return session, err
	}
	o.reseedHistory(session)
	session.SortHistory()
	return session, nil
}

// reseedHistory restores the scene-setting system message and the
// persona's opening line when they are missing from a stored history.
func (o *Orchestrator) reseedHistory(session *models.Session) {
	if session.Persona == nil {
		return
	}
	var hasSeed, hasOpener bool
	for _, m := range session.History {
		if m.Sender == models.SenderSystem && m.Timestamp == models.SeedSystemTimestamp {
			hasSeed = true
		}
		if m.Sender == models.SenderAI && m.Timestamp == models.FirstAIMessageTimestamp {
			hasOpener = true
		}
	}
	if !hasSeed && session.Persona.InitialSystemMessage != "" {
		session.Append(models.NewMessage(models.SenderSystem, session.Persona.InitialSystemMessage, models.SeedSystemTimestamp))
		slog.Debug("Dialogue.reseedHistory: restored scene message", "userID", session.UserID)
	}
	if !hasOpener && session.Persona.FirstAIMessage != "" {
		session.Append(models.NewMessage(models.SenderAI, session.Persona.FirstAIMessage, models.FirstAIMessageTimestamp))
		slog.Debug("Dialogue.reseedHistory: restored persona opener", "userID", session.UserID)
	}
}

// SelectScenario generates a persona for the chosen scenario and starts a
// fresh session, replacing any existing one. Premium scenarios require a
// premium profile.
func (o *Orchestrator) SelectScenario(ctx context.Context, userID string, scenario models.Scenario) (*models.Session, error) {
	if err := scenario.Validate(); err != nil {
		return nil, err
	}
	profile, _, err := o.GetOrCreateProfile(userID)
	if err != nil {
		return nil, err
	}
	if scenario.IsPremium && !profile.IsPremium {
		slog.Debug("Dialogue.SelectScenario: premium scenario rejected", "userID", userID, "scenario", scenario.ID)
		return nil, models.ErrPremiumRequired
	}

	persona, err := o.genAI.GeneratePersona(ctx, scenario)
	if err != nil {
		slog.Error("Dialogue.SelectScenario: persona generation failed", "error", err, "userID", userID, "scenario", scenario.ID)
		return nil, err
	}

	session := o.newSession(userID, scenario, persona)
	if err := o.store.SaveSession(*session); err != nil {
		return nil, err
	}
	slog.Info("Dialogue.SelectScenario: session started",
		"userID", userID, "scenario", scenario.ID, "persona", persona.Name)
	return session, nil
}

// newSession builds a fresh session seeded with the scene-setting system
// message and, when the persona speaks first, its opening line.
func (o *Orchestrator) newSession(userID string, scenario models.Scenario, persona *models.Persona) *models.Session {
	now := o.now()
	session := &models.Session{
		UserID:            userID,
		Scenario:          &scenario,
		Persona:           persona,
		RelationshipScore: models.InitialRelationshipScore,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	session.Append(models.NewMessage(models.SenderSystem, persona.InitialSystemMessage, models.SeedSystemTimestamp))
	if persona.FirstAIMessage != "" {
		session.Append(models.NewMessage(models.SenderAI, persona.FirstAIMessage, models.FirstAIMessageTimestamp))
	}
	return session
}

// SelectJourney starts a guided journey on the current session, creating a
// session with a companion persona first if none exists. The journey's
// opening prompts are appended immediately.
func (o *Orchestrator) SelectJourney(ctx context.Context, userID, journeyID string) (*models.Session, error) {
	if _, err := journey.Lookup(journeyID); err != nil {
		return nil, err
	}

	session, err := o.GetSession(userID)
	if err != nil {
		return nil, err
	}
	if session != nil && session.Ended {
		return nil, models.ErrSessionEnded
	}
	if session == nil || session.Persona == nil {
		persona, err := o.genAI.GeneratePersona(ctx, journeyScenario)
		if err != nil {
			slog.Error("Dialogue.SelectJourney: persona generation failed", "error", err, "userID", userID)
			return nil, err
		}
		session = o.newSession(userID, journeyScenario, persona)
	}

	session.ActiveJourneyID = journeyID
	session.CurrentJourneyStep = -1
	now := o.now()
	if _, _, err := advanceJourney(session, now.UnixMilli()); err != nil {
		return nil, err
	}
	session.UpdatedAt = now
	if err := o.store.SaveSession(*session); err != nil {
		return nil, err
	}
	slog.Info("Dialogue.SelectJourney: journey started", "userID", userID, "journeyID", journeyID)
	return session, nil
}

// ResetSession discards the user's session. The profile, credits, and mood
// history are untouched.
func (o *Orchestrator) ResetSession(userID string) error {
	if err := o.store.DeleteSession(userID); err != nil {
		return err
	}
	slog.Info("Dialogue.ResetSession: session discarded", "userID", userID)
	return nil
}

// SubmitUserMessage runs one conversation turn. The pipeline is: daily
// refill, credit gate, optimistic user append, then either a journey
// advance or the free-chat path (sentiment, score, floor check, busy
// window, reply, rolling summary, busy roll). The user's message and the
// credit charge persist even when a later stage fails.
func (o *Orchestrator) SubmitUserMessage(ctx context.Context, userID, text string) (*TurnResult, error) {
	profile, err := o.store.GetUserProfile(userID)
	if err != nil {
		return nil, err
	}
	if profile == nil {
		return nil, models.ErrUserNotFound
	}
	now := o.now()
	if granted := credits.RefillIfNewDay(profile, now); granted > 0 {
		slog.Debug("Dialogue.SubmitUserMessage: daily refill applied", "userID", userID, "granted", granted)
	}

	session, err := o.GetSession(userID)
	if err != nil {
		return nil, err
	}
	if session == nil || session.Persona == nil {
		return nil, models.ErrSessionNotInitialized
	}
	if session.Ended {
		return nil, models.ErrSessionEnded
	}

	if err := credits.ChargeTurn(profile); err != nil {
		// Persist the refill even when the gate rejects the turn.
		profile.UpdatedAt = now
		if saveErr := o.store.SaveUserProfile(*profile); saveErr != nil {
			slog.Error("Dialogue.SubmitUserMessage: profile save failed after rejected turn", "error", saveErr, "userID", userID)
		}
		slog.Debug("Dialogue.SubmitUserMessage: turn rejected", "userID", userID, "credits", profile.Credits)
		return nil, err
	}
	profile.UpdatedAt = now

	nowMillis := now.UnixMilli()
	userMsg := models.NewMessage(models.SenderUser, text, nowMillis)
	session.Append(userMsg)
	session.UpdatedAt = now

	if session.JourneyActive() {
		return o.runJourneyTurn(session, profile, nowMillis)
	}
	return o.runChatTurn(ctx, session, profile, text, nowMillis)
}

// runJourneyTurn advances the active journey. Journey turns bypass
// sentiment, scoring, and busy windows; only the credit gate and the
// message log apply.
func (o *Orchestrator) runJourneyTurn(session *models.Session, profile *models.UserProfile, nowMillis int64) (*TurnResult, error) {
	appended, completed, err := advanceJourney(session, nowMillis)
	if err != nil {
		// The journey reference was corrupt; the fields are already cleared.
		// Persist so the session recovers into free chat.
		o.persistTurn(session, profile)
		return nil, err
	}
	if err := o.persistTurn(session, profile); err != nil {
		return nil, err
	}
	return &TurnResult{
		Outcome:           OutcomeJourney,
		Messages:          appended,
		RelationshipScore: session.RelationshipScore,
		CreditsRemaining:  profile.Credits,
		JourneyCompleted:  completed,
	}, nil
}

// runChatTurn runs the free-chat path after the user message was appended.
func (o *Orchestrator) runChatTurn(ctx context.Context, session *models.Session, profile *models.UserProfile, text string, nowMillis int64) (*TurnResult, error) {
	persona := session.Persona
	tier := string(relationship.TierOf(session.RelationshipScore))

	// Sentiment is fail-open: an analyzer outage scores the turn as neutral.
	delta := 0
	sentiment, err := o.genAI.AnalyzeSentiment(ctx, genai.SentimentRequest{
		UserMessage:    text,
		PersonaSummary: persona.Summary(),
		Score:          session.RelationshipScore,
		Tier:           tier,
	})
	if err != nil {
		slog.Warn("Dialogue.runChatTurn: sentiment analysis failed, scoring neutral", "error", err, "userID", session.UserID)
	} else {
		delta = sentiment.ScoreDelta
		if sentiment.Mood != nil {
			session.History[len(session.History)-1].MoodAnalysis = sentiment.Mood
		}
	}

	oldScore := session.RelationshipScore
	newScore := relationship.ApplyDelta(oldScore, delta)

	// Hitting the floor from above ends the session. The persona does not
	// reply; the credit stays spent.
	if newScore <= models.MinRelationshipScore && oldScore > models.MinRelationshipScore {
		session.RelationshipScore = models.MinRelationshipScore
		session.Ended = true
		farewell := models.NewMessage(models.SenderSystem,
			fmt.Sprintf("%s has decided to end the friendship. The connection is lost.", persona.Name),
			nowMillis)
		session.Append(farewell)
		if err := o.persistTurn(session, profile); err != nil {
			return nil, err
		}
		slog.Info("Dialogue.runChatTurn: relationship hit the floor, session ended", "userID", session.UserID)
		return &TurnResult{
			Outcome:           OutcomeEnded,
			Messages:          []models.Message{farewell},
			RelationshipScore: session.RelationshipScore,
			CreditsRemaining:  profile.Credits,
		}, nil
	}
	session.RelationshipScore = newScore

	// Busy windows suppress the reply but the score change and the credit
	// charge above still stand.
	if persona.IsBusy {
		if nowMillis < persona.BusyUntil {
			busyMsg := models.NewMessage(models.SenderSystem,
				fmt.Sprintf("%s is busy right now (%s). They'll be back with you shortly.", persona.Name, persona.BusyReason),
				nowMillis)
			session.Append(busyMsg)
			if err := o.persistTurn(session, profile); err != nil {
				return nil, err
			}
			slog.Debug("Dialogue.runChatTurn: persona busy, reply suppressed",
				"userID", session.UserID, "busyUntil", persona.BusyUntil)
			return &TurnResult{
				Outcome:           OutcomeBusy,
				Messages:          []models.Message{busyMsg},
				RelationshipScore: session.RelationshipScore,
				CreditsRemaining:  profile.Credits,
			}, nil
		}
		persona.ClearBusy()
	}

	// Reply context excludes the message being answered; it travels in the
	// request's own field.
	prior := session.History[:len(session.History)-1]
	recent := prior
	if len(recent) > ReplyHistoryWindow {
		recent = recent[len(recent)-ReplyHistoryWindow:]
	}
	reply, err := o.genAI.GenerateReply(ctx, genai.ReplyRequest{
		UserMessage:   text,
		Summary:       session.ConversationSummary,
		Persona:       persona,
		Score:         session.RelationshipScore,
		Tier:          string(relationship.TierOf(session.RelationshipScore)),
		RecentHistory: recent,
	})
	if err != nil {
		// Recoverable: the user message, score change, and charge persist.
		// The user can retry the turn.
		slog.Error("Dialogue.runChatTurn: reply generation failed", "error", err, "userID", session.UserID)
		if saveErr := o.persistTurn(session, profile); saveErr != nil {
			return nil, saveErr
		}
		return nil, err
	}

	aiMsg := models.NewMessage(models.SenderAI, reply, nowMillis)
	session.Append(aiMsg)
	result := &TurnResult{
		Outcome:  OutcomeReply,
		Messages: []models.Message{aiMsg},
	}

	o.maybeSummarize(ctx, session)
	o.maybeStartBusyWindow(persona, nowMillis)

	if err := o.persistTurn(session, profile); err != nil {
		return nil, err
	}
	result.RelationshipScore = session.RelationshipScore
	result.CreditsRemaining = profile.Credits
	return result, nil
}

// maybeSummarize rolls the last summary window into the conversation
// summary whenever the log reaches a multiple of the summary interval.
// Summarization is fail-open.
func (o *Orchestrator) maybeSummarize(ctx context.Context, session *models.Session) {
	turns := len(session.History)
	if turns == 0 || turns%SummaryInterval != 0 {
		return
	}
	window := session.RecentHistory(SummaryInterval)
	summary, err := o.genAI.SummarizeConversation(ctx, session.Persona.Name, window)
	if err != nil {
		slog.Warn("Dialogue.maybeSummarize: summarization failed, keeping previous summary",
			"error", err, "userID", session.UserID)
		return
	}
	entry := fmt.Sprintf("[Summary after turn %d]: %s", turns, summary)
	if session.ConversationSummary == "" {
		session.ConversationSummary = entry
	} else {
		session.ConversationSummary += "\n\n" + entry
	}
	slog.Debug("Dialogue.maybeSummarize: summary rolled", "userID", session.UserID, "turns", turns)
}

// maybeStartBusyWindow rolls the persona's availability after a reply.
func (o *Orchestrator) maybeStartBusyWindow(persona *models.Persona, nowMillis int64) {
	if o.rand.Float64() >= BusyChance {
		return
	}
	span := int64(BusyMaxDuration-BusyMinDuration) / int64(time.Millisecond)
	duration := int64(BusyMinDuration)/int64(time.Millisecond) + o.rand.Int63n(span+1)
	persona.IsBusy = true
	persona.BusyReason = busyReasons[o.rand.Intn(len(busyReasons))]
	persona.BusyUntil = nowMillis + duration
	slog.Debug("Dialogue.maybeStartBusyWindow: busy window opened",
		"reason", persona.BusyReason, "durationMillis", duration)
}

// persistTurn saves the session and profile together at the end of a turn.
func (o *Orchestrator) persistTurn(session *models.Session, profile *models.UserProfile) error {
	if err := o.store.SaveSession(*session); err != nil {
		slog.Error("Dialogue.persistTurn: session save failed", "error", err, "userID", session.UserID)
		return err
	}
	if err := o.store.SaveUserProfile(*profile); err != nil {
		slog.Error("Dialogue.persistTurn: profile save failed", "error", err, "userID", profile.UserID)
		return err
	}
	return nil
}

// LogMood records a self-reported mood rating on the user's profile, one
// entry per calendar day.
func (o *Orchestrator) LogMood(userID string, mood int) (*models.UserProfile, error) {
	if mood < 1 || mood > 5 {
		return nil, fmt.Errorf("mood rating must be between 1 and 5, got %d", mood)
	}
	profile, _, err := o.GetOrCreateProfile(userID)
	if err != nil {
		return nil, err
	}
	now := o.now()
	profile.LogMood(now.UTC().Format(credits.DateLayout), mood)
	profile.UpdatedAt = now
	if err := o.store.SaveUserProfile(*profile); err != nil {
		return nil, err
	}
	slog.Debug("Dialogue.LogMood: mood recorded", "userID", userID, "mood", mood)
	return profile, nil
}

// UpgradeToPremium flips the premium flag and tops the balance up to the
// premium initial grant if it is below it.
func (o *Orchestrator) UpgradeToPremium(userID string) (*models.UserProfile, error) {
	profile, _, err := o.GetOrCreateProfile(userID)
	if err != nil {
		return nil, err
	}
	profile.IsPremium = true
	if profile.Credits < credits.PremiumInitialCredits {
		profile.Credits = credits.PremiumInitialCredits
	}
	profile.UpdatedAt = o.now()
	if err := o.store.SaveUserProfile(*profile); err != nil {
		return nil, err
	}
	slog.Info("Dialogue.UpgradeToPremium: profile upgraded", "userID", userID)
	return profile, nil
}

// PurchaseCredits adds purchased credits to the user's balance.
func (o *Orchestrator) PurchaseCredits(userID string, amount int) (*models.UserProfile, error) {
	if amount <= 0 {
		return nil, fmt.Errorf("credit amount must be positive, got %d", amount)
	}
	profile, _, err := o.GetOrCreateProfile(userID)
	if err != nil {
		return nil, err
	}
	profile.Credits += amount
	profile.UpdatedAt = o.now()
	if err := o.store.SaveUserProfile(*profile); err != nil {
		return nil, err
	}
	slog.Info("Dialogue.PurchaseCredits: credits added", "userID", userID, "amount", amount, "balance", profile.Credits)
	return profile, nil
}
