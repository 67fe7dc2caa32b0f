package dialogue

import (
	"context"
	"errors"
	"math/rand"
	"strings"
	"testing"
	"time"

	"github.com/Someone-anon-coder/echoes-ai-friend/internal/genai"
	"github.com/Someone-anon-coder/echoes-ai-friend/internal/models"
	"github.com/Someone-anon-coder/echoes-ai-friend/internal/store"
)

var testNow = time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)

// fakeGenAI is a scripted generation client.
type fakeGenAI struct {
	persona      *models.Persona
	personaErr   error
	reply        string
	replyErr     error
	sentiment    *genai.SentimentResult
	sentimentErr error
	summary      string
	summaryErr   error

	personaCalls   int
	replyCalls     int
	sentimentCalls int
	summaryCalls   int
	lastReplyReq   genai.ReplyRequest
}

func (f *fakeGenAI) GeneratePersona(ctx context.Context, scenario models.Scenario) (*models.Persona, error) {
	f.personaCalls++
	if f.personaErr != nil {
		return nil, f.personaErr
	}
	p := *f.persona
	return &p, nil
}

func (f *fakeGenAI) GenerateReply(ctx context.Context, req genai.ReplyRequest) (string, error) {
	f.replyCalls++
	f.lastReplyReq = req
	if f.replyErr != nil {
		return "", f.replyErr
	}
	return f.reply, nil
}

func (f *fakeGenAI) SummarizeConversation(ctx context.Context, personaName string, window []models.Message) (string, error) {
	f.summaryCalls++
	if f.summaryErr != nil {
		return "", f.summaryErr
	}
	return f.summary, nil
}

func (f *fakeGenAI) AnalyzeSentiment(ctx context.Context, req genai.SentimentRequest) (*genai.SentimentResult, error) {
	f.sentimentCalls++
	if f.sentimentErr != nil {
		return nil, f.sentimentErr
	}
	return f.sentiment, nil
}

// fixedSource makes rand deterministic: 0 forces the busy roll to hit,
// 1<<62 makes it miss.
type fixedSource struct{ v int64 }

func (s fixedSource) Int63() int64 { return s.v }
func (s fixedSource) Seed(int64)   {}

func defaultFake() *fakeGenAI {
	return &fakeGenAI{
		persona: &models.Persona{
			Name:                 "Maya",
			Hobbies:              []string{"sketching", "classic films"},
			PersonalityTraits:    []string{"warm", "curious", "witty"},
			Secret:               "She almost moved abroad last year.",
			InitialSystemMessage: "Maya looks up from her sketchbook as you sit down.",
			FirstAIMessage:       "Oh, hi! Nice day, isn't it?",
		},
		reply:     "That sounds lovely, tell me more.",
		sentiment: &genai.SentimentResult{ScoreDelta: 0},
		summary:   "We talked about small things and it felt easy.",
	}
}

func newTestOrchestrator(t *testing.T, fake *fakeGenAI) (*Orchestrator, *store.InMemoryStore) {
	t.Helper()
	st := store.NewInMemoryStore()
	o, err := NewOrchestrator(
		WithStore(st),
		WithGenAI(fake),
		WithClock(func() time.Time { return testNow }),
		WithRand(rand.New(fixedSource{1 << 62})),
	)
	if err != nil {
		t.Fatalf("NewOrchestrator: %v", err)
	}
	return o, st
}

func seedProfile(t *testing.T, st *store.InMemoryStore, creditBalance int) {
	t.Helper()
	err := st.SaveUserProfile(models.UserProfile{
		UserID:        "user-1",
		Credits:       creditBalance,
		LastLoginDate: testNow.UTC().Format("2006-01-02"),
		CreatedAt:     testNow,
		UpdatedAt:     testNow,
	})
	if err != nil {
		t.Fatalf("seed profile: %v", err)
	}
}

func startSession(t *testing.T, o *Orchestrator) *models.Session {
	t.Helper()
	session, err := o.SelectScenario(context.Background(), "user-1", DefaultScenarios[0])
	if err != nil {
		t.Fatalf("SelectScenario: %v", err)
	}
	return session
}

func TestNewOrchestratorRequiresDeps(t *testing.T) {
	if _, err := NewOrchestrator(WithGenAI(defaultFake())); err == nil {
		t.Error("expected error without store")
	}
	if _, err := NewOrchestrator(WithStore(store.NewInMemoryStore())); err == nil {
		t.Error("expected error without generation client")
	}
}

func TestSelectScenarioSeedsSession(t *testing.T) {
	o, st := newTestOrchestrator(t, defaultFake())
	seedProfile(t, st, 25)

	session := startSession(t, o)
	if len(session.History) != 2 {
		t.Fatalf("history length = %d, want 2", len(session.History))
	}
	seed, opener := session.History[0], session.History[1]
	if seed.Sender != models.SenderSystem || seed.Timestamp != models.SeedSystemTimestamp {
		t.Errorf("seed message = sender %q ts %d, want system ts %d", seed.Sender, seed.Timestamp, models.SeedSystemTimestamp)
	}
	if opener.Sender != models.SenderAI || opener.Timestamp != models.FirstAIMessageTimestamp {
		t.Errorf("opener = sender %q ts %d, want ai ts %d", opener.Sender, opener.Timestamp, models.FirstAIMessageTimestamp)
	}
	if session.RelationshipScore != models.InitialRelationshipScore {
		t.Errorf("score = %d, want %d", session.RelationshipScore, models.InitialRelationshipScore)
	}

	saved, err := st.GetSession("user-1")
	if err != nil || saved == nil {
		t.Fatalf("session not persisted: %v", err)
	}
}

func TestSelectScenarioWithoutOpener(t *testing.T) {
	fake := defaultFake()
	fake.persona.FirstAIMessage = ""
	o, st := newTestOrchestrator(t, fake)
	seedProfile(t, st, 25)

	session := startSession(t, o)
	if len(session.History) != 1 {
		t.Fatalf("history length = %d, want 1 (system seed only)", len(session.History))
	}
}

func TestSelectScenarioPremiumGate(t *testing.T) {
	o, st := newTestOrchestrator(t, defaultFake())
	seedProfile(t, st, 25)

	premium, ok := FindScenario("art-gallery")
	if !ok {
		t.Fatal("expected built-in premium scenario")
	}
	_, err := o.SelectScenario(context.Background(), "user-1", *premium)
	if !errors.Is(err, models.ErrPremiumRequired) {
		t.Fatalf("err = %v, want ErrPremiumRequired", err)
	}

	// After the upgrade the same scenario is allowed.
	if _, err := o.UpgradeToPremium("user-1"); err != nil {
		t.Fatalf("UpgradeToPremium: %v", err)
	}
	if _, err := o.SelectScenario(context.Background(), "user-1", *premium); err != nil {
		t.Fatalf("premium scenario after upgrade: %v", err)
	}
}

func TestSelectScenarioPersonaFailure(t *testing.T) {
	fake := defaultFake()
	fake.personaErr = models.ErrGenerationFailed
	o, st := newTestOrchestrator(t, fake)
	seedProfile(t, st, 25)

	_, err := o.SelectScenario(context.Background(), "user-1", DefaultScenarios[0])
	if !errors.Is(err, models.ErrGenerationFailed) {
		t.Fatalf("err = %v, want ErrGenerationFailed", err)
	}
	session, _ := st.GetSession("user-1")
	if session != nil {
		t.Error("no session should be saved when persona generation fails")
	}
}

func TestSubmitChargesOneCredit(t *testing.T) {
	o, st := newTestOrchestrator(t, defaultFake())
	seedProfile(t, st, 3)
	startSession(t, o)

	result, err := o.SubmitUserMessage(context.Background(), "user-1", "hello")
	if err != nil {
		t.Fatalf("SubmitUserMessage: %v", err)
	}
	if result.Outcome != OutcomeReply {
		t.Errorf("outcome = %q, want %q", result.Outcome, OutcomeReply)
	}
	if result.CreditsRemaining != 2 {
		t.Errorf("credits remaining = %d, want 2", result.CreditsRemaining)
	}
	profile, _ := st.GetUserProfile("user-1")
	if profile.Credits != 2 {
		t.Errorf("persisted credits = %d, want 2", profile.Credits)
	}
}

func TestSubmitInsufficientCredits(t *testing.T) {
	fake := defaultFake()
	o, st := newTestOrchestrator(t, fake)
	seedProfile(t, st, 0)
	startSession(t, o)

	_, err := o.SubmitUserMessage(context.Background(), "user-1", "hello")
	if !errors.Is(err, models.ErrInsufficientCredits) {
		t.Fatalf("err = %v, want ErrInsufficientCredits", err)
	}
	if fake.replyCalls != 0 || fake.sentimentCalls != 0 {
		t.Error("rejected turn should not reach the generation client")
	}
	session, _ := st.GetSession("user-1")
	if len(session.History) != 2 {
		t.Errorf("history length = %d, want 2 (rejected message not logged)", len(session.History))
	}
}

func TestSubmitDailyRefillUnblocksTurn(t *testing.T) {
	o, st := newTestOrchestrator(t, defaultFake())
	err := st.SaveUserProfile(models.UserProfile{
		UserID:        "user-1",
		Credits:       0,
		LastLoginDate: "2026-08-31",
		CreatedAt:     testNow,
		UpdatedAt:     testNow,
	})
	if err != nil {
		t.Fatalf("seed profile: %v", err)
	}
	startSession(t, o)

	result, err := o.SubmitUserMessage(context.Background(), "user-1", "hello")
	if err != nil {
		t.Fatalf("SubmitUserMessage: %v", err)
	}
	// 0 + 5 daily - 1 for the turn.
	if result.CreditsRemaining != 4 {
		t.Errorf("credits remaining = %d, want 4", result.CreditsRemaining)
	}
	profile, _ := st.GetUserProfile("user-1")
	if profile.LastLoginDate != "2026-09-01" {
		t.Errorf("LastLoginDate = %q, want 2026-09-01", profile.LastLoginDate)
	}
}

func TestSubmitWithoutProfileOrSession(t *testing.T) {
	o, st := newTestOrchestrator(t, defaultFake())

	_, err := o.SubmitUserMessage(context.Background(), "user-1", "hello")
	if !errors.Is(err, models.ErrUserNotFound) {
		t.Fatalf("err = %v, want ErrUserNotFound", err)
	}

	seedProfile(t, st, 10)
	_, err = o.SubmitUserMessage(context.Background(), "user-1", "hello")
	if !errors.Is(err, models.ErrSessionNotInitialized) {
		t.Fatalf("err = %v, want ErrSessionNotInitialized", err)
	}
}

func TestSubmitAppliesSentimentDelta(t *testing.T) {
	fake := defaultFake()
	fake.sentiment = &genai.SentimentResult{
		ScoreDelta: 2,
		Mood:       &models.MoodAnalysis{Sentiment: "Positive", PrimaryEmotion: "joy", ConfidenceScore: 0.9},
	}
	o, st := newTestOrchestrator(t, fake)
	seedProfile(t, st, 10)
	startSession(t, o)

	result, err := o.SubmitUserMessage(context.Background(), "user-1", "I remembered you like classic films!")
	if err != nil {
		t.Fatalf("SubmitUserMessage: %v", err)
	}
	if result.RelationshipScore != models.InitialRelationshipScore+2 {
		t.Errorf("score = %d, want %d", result.RelationshipScore, models.InitialRelationshipScore+2)
	}

	session, _ := st.GetSession("user-1")
	var userMsg *models.Message
	for i := range session.History {
		if session.History[i].Sender == models.SenderUser {
			userMsg = &session.History[i]
		}
	}
	if userMsg == nil {
		t.Fatal("user message not logged")
	}
	if userMsg.MoodAnalysis == nil || userMsg.MoodAnalysis.PrimaryEmotion != "joy" {
		t.Errorf("mood not attached to user message: %+v", userMsg.MoodAnalysis)
	}
}

func TestSubmitSentimentFailOpen(t *testing.T) {
	fake := defaultFake()
	fake.sentimentErr = models.ErrGenerationFailed
	o, st := newTestOrchestrator(t, fake)
	seedProfile(t, st, 10)
	startSession(t, o)

	result, err := o.SubmitUserMessage(context.Background(), "user-1", "hello")
	if err != nil {
		t.Fatalf("sentiment outage must not fail the turn: %v", err)
	}
	if result.Outcome != OutcomeReply {
		t.Errorf("outcome = %q, want %q", result.Outcome, OutcomeReply)
	}
	if result.RelationshipScore != models.InitialRelationshipScore {
		t.Errorf("score = %d, want unchanged %d", result.RelationshipScore, models.InitialRelationshipScore)
	}
}

func TestSubmitFloorEndsSession(t *testing.T) {
	fake := defaultFake()
	fake.sentiment = &genai.SentimentResult{ScoreDelta: -2}
	o, st := newTestOrchestrator(t, fake)
	seedProfile(t, st, 10)
	session := startSession(t, o)
	session.RelationshipScore = 1
	if err := st.SaveSession(*session); err != nil {
		t.Fatalf("save session: %v", err)
	}

	result, err := o.SubmitUserMessage(context.Background(), "user-1", "whatever")
	if err != nil {
		t.Fatalf("SubmitUserMessage: %v", err)
	}
	if result.Outcome != OutcomeEnded {
		t.Fatalf("outcome = %q, want %q", result.Outcome, OutcomeEnded)
	}
	if result.RelationshipScore != 0 {
		t.Errorf("score = %d, want 0", result.RelationshipScore)
	}
	if fake.replyCalls != 0 {
		t.Error("no reply should be generated when the session ends")
	}
	if len(result.Messages) != 1 || result.Messages[0].Sender != models.SenderSystem {
		t.Errorf("expected one system farewell message, got %+v", result.Messages)
	}

	saved, _ := st.GetSession("user-1")
	if !saved.Ended {
		t.Error("ended flag not persisted")
	}
	if _, err := o.SubmitUserMessage(context.Background(), "user-1", "wait"); !errors.Is(err, models.ErrSessionEnded) {
		t.Errorf("err = %v, want ErrSessionEnded", err)
	}
}

func TestSubmitLargeNegativeDeltaEndsAtZero(t *testing.T) {
	// A delta that overshoots the floor still lands on exactly 0.
	fake := defaultFake()
	fake.sentiment = &genai.SentimentResult{ScoreDelta: -5}
	o, st := newTestOrchestrator(t, fake)
	seedProfile(t, st, 10)
	session := startSession(t, o)
	session.RelationshipScore = 5
	if err := st.SaveSession(*session); err != nil {
		t.Fatalf("save session: %v", err)
	}

	result, err := o.SubmitUserMessage(context.Background(), "user-1", "I'm done with you")
	if err != nil {
		t.Fatalf("SubmitUserMessage: %v", err)
	}
	if result.Outcome != OutcomeEnded || result.RelationshipScore != 0 {
		t.Errorf("result = (%q, %d), want (ended, 0)", result.Outcome, result.RelationshipScore)
	}
	saved, _ := st.GetSession("user-1")
	for _, m := range saved.History {
		if m.Sender == models.SenderAI && m.Timestamp > models.FirstAIMessageTimestamp {
			t.Errorf("no AI reply may be appended on the ending turn, found %+v", m)
		}
	}
}

func TestSubmitAtFloorDoesNotReEnd(t *testing.T) {
	// A session already at zero that is somehow still open stays open on a
	// neutral turn; only the transition from above ends it.
	fake := defaultFake()
	fake.sentiment = &genai.SentimentResult{ScoreDelta: 0}
	o, st := newTestOrchestrator(t, fake)
	seedProfile(t, st, 10)
	session := startSession(t, o)
	session.RelationshipScore = 0
	if err := st.SaveSession(*session); err != nil {
		t.Fatalf("save session: %v", err)
	}

	result, err := o.SubmitUserMessage(context.Background(), "user-1", "hello")
	if err != nil {
		t.Fatalf("SubmitUserMessage: %v", err)
	}
	if result.Outcome != OutcomeReply {
		t.Errorf("outcome = %q, want %q", result.Outcome, OutcomeReply)
	}
}

func TestSubmitBusyWindowSuppressesReply(t *testing.T) {
	fake := defaultFake()
	fake.sentiment = &genai.SentimentResult{ScoreDelta: 1}
	o, st := newTestOrchestrator(t, fake)
	seedProfile(t, st, 10)
	session := startSession(t, o)
	session.Persona.IsBusy = true
	session.Persona.BusyReason = "making some tea"
	session.Persona.BusyUntil = testNow.UnixMilli() + 60_000
	if err := st.SaveSession(*session); err != nil {
		t.Fatalf("save session: %v", err)
	}

	result, err := o.SubmitUserMessage(context.Background(), "user-1", "you there?")
	if err != nil {
		t.Fatalf("SubmitUserMessage: %v", err)
	}
	if result.Outcome != OutcomeBusy {
		t.Fatalf("outcome = %q, want %q", result.Outcome, OutcomeBusy)
	}
	if fake.replyCalls != 0 {
		t.Error("busy window must suppress the reply")
	}
	// Score and charge still apply inside the window.
	if result.RelationshipScore != models.InitialRelationshipScore+1 {
		t.Errorf("score = %d, want %d", result.RelationshipScore, models.InitialRelationshipScore+1)
	}
	if result.CreditsRemaining != 9 {
		t.Errorf("credits = %d, want 9", result.CreditsRemaining)
	}
	if len(result.Messages) != 1 || !strings.Contains(result.Messages[0].Text, "making some tea") {
		t.Errorf("busy message should name the reason, got %+v", result.Messages)
	}
}

func TestSubmitBusyWindowElapsed(t *testing.T) {
	fake := defaultFake()
	o, st := newTestOrchestrator(t, fake)
	seedProfile(t, st, 10)
	session := startSession(t, o)
	session.Persona.IsBusy = true
	session.Persona.BusyReason = "answering the door"
	session.Persona.BusyUntil = testNow.UnixMilli() - 1
	if err := st.SaveSession(*session); err != nil {
		t.Fatalf("save session: %v", err)
	}

	result, err := o.SubmitUserMessage(context.Background(), "user-1", "back yet?")
	if err != nil {
		t.Fatalf("SubmitUserMessage: %v", err)
	}
	if result.Outcome != OutcomeReply {
		t.Fatalf("outcome = %q, want %q", result.Outcome, OutcomeReply)
	}
	saved, _ := st.GetSession("user-1")
	if saved.Persona.IsBusy || saved.Persona.BusyReason != "" || saved.Persona.BusyUntil != 0 {
		t.Errorf("busy triple not cleared: %+v", saved.Persona)
	}
}

func TestSubmitBusyRoll(t *testing.T) {
	fake := defaultFake()
	o, st := newTestOrchestrator(t, fake)
	o.rand = rand.New(fixedSource{0}) // roll always hits
	seedProfile(t, st, 10)
	startSession(t, o)

	result, err := o.SubmitUserMessage(context.Background(), "user-1", "hello")
	if err != nil {
		t.Fatalf("SubmitUserMessage: %v", err)
	}
	if result.Outcome != OutcomeReply {
		t.Fatalf("outcome = %q, want %q (busy starts after the reply)", result.Outcome, OutcomeReply)
	}
	saved, _ := st.GetSession("user-1")
	p := saved.Persona
	if !p.IsBusy || p.BusyReason == "" {
		t.Fatalf("busy window not opened: %+v", p)
	}
	minUntil := testNow.UnixMilli() + BusyMinDuration.Milliseconds()
	maxUntil := testNow.UnixMilli() + BusyMaxDuration.Milliseconds()
	if p.BusyUntil < minUntil || p.BusyUntil > maxUntil {
		t.Errorf("BusyUntil = %d, want within [%d, %d]", p.BusyUntil, minUntil, maxUntil)
	}
}

func TestSubmitReplyContextWindow(t *testing.T) {
	fake := defaultFake()
	o, st := newTestOrchestrator(t, fake)
	seedProfile(t, st, 10)
	session := startSession(t, o)
	for i := 0; i < 8; i++ {
		session.Append(models.NewMessage(models.SenderUser, "filler", int64(1000+i)))
	}
	if err := st.SaveSession(*session); err != nil {
		t.Fatalf("save session: %v", err)
	}

	if _, err := o.SubmitUserMessage(context.Background(), "user-1", "current question"); err != nil {
		t.Fatalf("SubmitUserMessage: %v", err)
	}
	req := fake.lastReplyReq
	if len(req.RecentHistory) != ReplyHistoryWindow {
		t.Fatalf("recent history length = %d, want %d", len(req.RecentHistory), ReplyHistoryWindow)
	}
	for _, m := range req.RecentHistory {
		if m.Text == "current question" {
			t.Error("the message being answered must not appear in the history window")
		}
	}
	if req.UserMessage != "current question" {
		t.Errorf("UserMessage = %q, want the submitted text", req.UserMessage)
	}
}

func TestSubmitReplyFailureKeepsTurnState(t *testing.T) {
	fake := defaultFake()
	fake.replyErr = models.ErrGenerationFailed
	fake.sentiment = &genai.SentimentResult{ScoreDelta: 1}
	o, st := newTestOrchestrator(t, fake)
	seedProfile(t, st, 10)
	startSession(t, o)

	_, err := o.SubmitUserMessage(context.Background(), "user-1", "hello")
	if !errors.Is(err, models.ErrGenerationFailed) {
		t.Fatalf("err = %v, want ErrGenerationFailed", err)
	}

	session, _ := st.GetSession("user-1")
	if session.Ended {
		t.Error("a reply outage must not end the session")
	}
	last := session.History[len(session.History)-1]
	if last.Sender != models.SenderUser || last.Text != "hello" {
		t.Errorf("user message should persist, last = %+v", last)
	}
	if session.RelationshipScore != models.InitialRelationshipScore+1 {
		t.Errorf("score = %d, want the delta applied", session.RelationshipScore)
	}
	profile, _ := st.GetUserProfile("user-1")
	if profile.Credits != 9 {
		t.Errorf("credits = %d, want the charge kept", profile.Credits)
	}
}

func TestSubmitRollsSummary(t *testing.T) {
	fake := defaultFake()
	o, st := newTestOrchestrator(t, fake)
	seedProfile(t, st, 10)
	session := startSession(t, o)
	// 2 seed messages + 6 fillers; the turn adds 2 more, reaching 10.
	for i := 0; i < 6; i++ {
		session.Append(models.NewMessage(models.SenderUser, "filler", int64(1000+i)))
	}
	if err := st.SaveSession(*session); err != nil {
		t.Fatalf("save session: %v", err)
	}

	if _, err := o.SubmitUserMessage(context.Background(), "user-1", "hello"); err != nil {
		t.Fatalf("SubmitUserMessage: %v", err)
	}
	if fake.summaryCalls != 1 {
		t.Fatalf("summary calls = %d, want 1", fake.summaryCalls)
	}
	saved, _ := st.GetSession("user-1")
	want := "[Summary after turn 10]: " + fake.summary
	if saved.ConversationSummary != want {
		t.Errorf("summary = %q, want %q", saved.ConversationSummary, want)
	}

	// The next interval appends rather than replaces.
	for i := 0; i < 8; i++ {
		saved.Append(models.NewMessage(models.SenderUser, "more", int64(2000+i)))
	}
	if err := st.SaveSession(*saved); err != nil {
		t.Fatalf("save session: %v", err)
	}
	if _, err := o.SubmitUserMessage(context.Background(), "user-1", "again"); err != nil {
		t.Fatalf("SubmitUserMessage: %v", err)
	}
	saved, _ = st.GetSession("user-1")
	if !strings.Contains(saved.ConversationSummary, "[Summary after turn 10]") ||
		!strings.Contains(saved.ConversationSummary, "[Summary after turn 20]") {
		t.Errorf("summary should accumulate entries, got %q", saved.ConversationSummary)
	}
}

func TestSubmitSummaryFailOpen(t *testing.T) {
	fake := defaultFake()
	fake.summaryErr = models.ErrGenerationFailed
	o, st := newTestOrchestrator(t, fake)
	seedProfile(t, st, 10)
	session := startSession(t, o)
	for i := 0; i < 6; i++ {
		session.Append(models.NewMessage(models.SenderUser, "filler", int64(1000+i)))
	}
	if err := st.SaveSession(*session); err != nil {
		t.Fatalf("save session: %v", err)
	}

	result, err := o.SubmitUserMessage(context.Background(), "user-1", "hello")
	if err != nil {
		t.Fatalf("summary outage must not fail the turn: %v", err)
	}
	if result.Outcome != OutcomeReply {
		t.Errorf("outcome = %q, want %q", result.Outcome, OutcomeReply)
	}
	saved, _ := st.GetSession("user-1")
	if saved.ConversationSummary != "" {
		t.Errorf("summary = %q, want empty after a failed roll", saved.ConversationSummary)
	}
}

func TestSelectJourneyStartsWithoutSession(t *testing.T) {
	fake := defaultFake()
	fake.persona.FirstAIMessage = ""
	o, st := newTestOrchestrator(t, fake)
	seedProfile(t, st, 10)

	session, err := o.SelectJourney(context.Background(), "user-1", "gratitude-01")
	if err != nil {
		t.Fatalf("SelectJourney: %v", err)
	}
	if fake.personaCalls != 1 {
		t.Errorf("persona calls = %d, want 1 (companion persona generated)", fake.personaCalls)
	}
	// System seed plus the two opening prompts before the input step.
	if len(session.History) != 3 {
		t.Fatalf("history length = %d, want 3", len(session.History))
	}
	if session.ActiveJourneyID != "gratitude-01" || session.CurrentJourneyStep != 2 {
		t.Errorf("journey position = (%q, %d), want (gratitude-01, 2)",
			session.ActiveJourneyID, session.CurrentJourneyStep)
	}
}

func TestSelectJourneyUnknownID(t *testing.T) {
	o, st := newTestOrchestrator(t, defaultFake())
	seedProfile(t, st, 10)

	_, err := o.SelectJourney(context.Background(), "user-1", "sleep-99")
	if !errors.Is(err, models.ErrUnknownJourney) {
		t.Fatalf("err = %v, want ErrUnknownJourney", err)
	}
}

func TestJourneyTurnBypassesScoring(t *testing.T) {
	fake := defaultFake()
	fake.persona.FirstAIMessage = ""
	o, st := newTestOrchestrator(t, fake)
	seedProfile(t, st, 10)

	if _, err := o.SelectJourney(context.Background(), "user-1", "gratitude-01"); err != nil {
		t.Fatalf("SelectJourney: %v", err)
	}
	result, err := o.SubmitUserMessage(context.Background(), "user-1", "I'm grateful for the morning light.")
	if err != nil {
		t.Fatalf("SubmitUserMessage: %v", err)
	}
	if result.Outcome != OutcomeJourney {
		t.Fatalf("outcome = %q, want %q", result.Outcome, OutcomeJourney)
	}
	if !result.JourneyCompleted {
		t.Error("gratitude journey should complete after the input step")
	}
	if fake.sentimentCalls != 0 || fake.replyCalls != 0 {
		t.Error("journey turns must bypass sentiment and reply generation")
	}
	if result.RelationshipScore != models.InitialRelationshipScore {
		t.Errorf("score = %d, want unchanged %d", result.RelationshipScore, models.InitialRelationshipScore)
	}
	// The credit gate still applies.
	if result.CreditsRemaining != 9 {
		t.Errorf("credits = %d, want 9", result.CreditsRemaining)
	}

	saved, _ := st.GetSession("user-1")
	if saved.JourneyActive() {
		t.Error("journey fields should be cleared on completion")
	}
	// Closing prompt plus the completion message.
	if len(result.Messages) != 2 {
		t.Errorf("appended messages = %d, want 2", len(result.Messages))
	}
}

func TestJourneyTurnUnknownReferenceRecovers(t *testing.T) {
	o, st := newTestOrchestrator(t, defaultFake())
	seedProfile(t, st, 10)
	session := startSession(t, o)
	session.ActiveJourneyID = "deleted-journey"
	session.CurrentJourneyStep = 1
	if err := st.SaveSession(*session); err != nil {
		t.Fatalf("save session: %v", err)
	}

	_, err := o.SubmitUserMessage(context.Background(), "user-1", "hello")
	if !errors.Is(err, models.ErrUnknownJourney) {
		t.Fatalf("err = %v, want ErrUnknownJourney", err)
	}
	saved, _ := st.GetSession("user-1")
	if saved.JourneyActive() {
		t.Error("corrupt journey reference should be cleared")
	}
	if saved.Ended {
		t.Error("session must survive a corrupt journey reference")
	}
}

func TestResetSessionKeepsProfile(t *testing.T) {
	o, st := newTestOrchestrator(t, defaultFake())
	seedProfile(t, st, 7)
	startSession(t, o)

	if err := o.ResetSession("user-1"); err != nil {
		t.Fatalf("ResetSession: %v", err)
	}
	session, _ := st.GetSession("user-1")
	if session != nil {
		t.Error("session should be deleted")
	}
	profile, _ := st.GetUserProfile("user-1")
	if profile == nil || profile.Credits != 7 {
		t.Errorf("profile should be untouched, got %+v", profile)
	}
}

func TestGetOrCreateProfile(t *testing.T) {
	o, st := newTestOrchestrator(t, defaultFake())

	profile, granted, err := o.GetOrCreateProfile("user-1")
	if err != nil {
		t.Fatalf("GetOrCreateProfile: %v", err)
	}
	if profile.Credits != 25 || granted != 25 {
		t.Errorf("initial grant = (%d, %d), want (25, 25)", profile.Credits, granted)
	}

	// Same day: no extra grant.
	profile, granted, err = o.GetOrCreateProfile("user-1")
	if err != nil {
		t.Fatalf("GetOrCreateProfile second call: %v", err)
	}
	if granted != 0 || profile.Credits != 25 {
		t.Errorf("same-day call granted (%d, %d), want (0, 25)", granted, profile.Credits)
	}

	// A stale login date triggers the daily refill.
	profile.LastLoginDate = "2026-08-30"
	if err := st.SaveUserProfile(*profile); err != nil {
		t.Fatalf("save profile: %v", err)
	}
	profile, granted, err = o.GetOrCreateProfile("user-1")
	if err != nil {
		t.Fatalf("GetOrCreateProfile refill call: %v", err)
	}
	if granted != 5 || profile.Credits != 30 {
		t.Errorf("refill call granted (%d, %d), want (5, 30)", granted, profile.Credits)
	}
}

func TestLogMood(t *testing.T) {
	o, _ := newTestOrchestrator(t, defaultFake())

	profile, err := o.LogMood("user-1", 4)
	if err != nil {
		t.Fatalf("LogMood: %v", err)
	}
	if len(profile.MoodHistory) != 1 || profile.MoodHistory[0].Mood != 4 {
		t.Fatalf("mood history = %+v, want one entry with mood 4", profile.MoodHistory)
	}
	if profile.MoodHistory[0].Date != "2026-09-01" {
		t.Errorf("mood date = %q, want 2026-09-01", profile.MoodHistory[0].Date)
	}

	// Same-day entry is replaced, not appended.
	profile, err = o.LogMood("user-1", 2)
	if err != nil {
		t.Fatalf("LogMood update: %v", err)
	}
	if len(profile.MoodHistory) != 1 || profile.MoodHistory[0].Mood != 2 {
		t.Errorf("mood history = %+v, want the entry replaced", profile.MoodHistory)
	}

	if _, err := o.LogMood("user-1", 0); err == nil {
		t.Error("expected error for out-of-range mood")
	}
}

func TestPurchaseCredits(t *testing.T) {
	o, _ := newTestOrchestrator(t, defaultFake())

	profile, err := o.PurchaseCredits("user-1", 50)
	if err != nil {
		t.Fatalf("PurchaseCredits: %v", err)
	}
	if profile.Credits != 75 {
		t.Errorf("credits = %d, want 75 (25 initial + 50 purchased)", profile.Credits)
	}
	if _, err := o.PurchaseCredits("user-1", 0); err == nil {
		t.Error("expected error for non-positive amount")
	}
}

func TestUpgradeToPremiumTopsUp(t *testing.T) {
	o, st := newTestOrchestrator(t, defaultFake())
	seedProfile(t, st, 3)

	profile, err := o.UpgradeToPremium("user-1")
	if err != nil {
		t.Fatalf("UpgradeToPremium: %v", err)
	}
	if !profile.IsPremium {
		t.Error("premium flag not set")
	}
	if profile.Credits != 100 {
		t.Errorf("credits = %d, want topped up to 100", profile.Credits)
	}

	// A balance above the grant is not reduced.
	profile.Credits = 250
	if err := st.SaveUserProfile(*profile); err != nil {
		t.Fatalf("save profile: %v", err)
	}
	profile, err = o.UpgradeToPremium("user-1")
	if err != nil {
		t.Fatalf("UpgradeToPremium second call: %v", err)
	}
	if profile.Credits != 250 {
		t.Errorf("credits = %d, want 250 untouched", profile.Credits)
	}
}

func TestGetSessionReseedsLostOpeners(t *testing.T) {
	o, st := newTestOrchestrator(t, defaultFake())
	err := st.SaveSession(models.Session{
		UserID: "user-1",
		Persona: &models.Persona{
			Name:                 "Maya",
			InitialSystemMessage: "Maya looks up from her sketchbook.",
			FirstAIMessage:       "Oh, hello!",
		},
		History: []models.Message{
			{ID: "turn", Sender: models.SenderUser, Text: "hi", Timestamp: testNow.UnixMilli()},
		},
		CreatedAt: testNow,
		UpdatedAt: testNow,
	})
	if err != nil {
		t.Fatalf("save session: %v", err)
	}

	session, err := o.GetSession("user-1")
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if len(session.History) != 3 {
		t.Fatalf("history length = %d, want 3 after reseeding", len(session.History))
	}
	if session.History[0].Timestamp != models.SeedSystemTimestamp || session.History[0].Sender != models.SenderSystem {
		t.Errorf("first message = %+v, want restored scene message", session.History[0])
	}
	if session.History[1].Timestamp != models.FirstAIMessageTimestamp || session.History[1].Sender != models.SenderAI {
		t.Errorf("second message = %+v, want restored opener", session.History[1])
	}

	// A complete history is left alone.
	if err := st.SaveSession(*session); err != nil {
		t.Fatalf("save session: %v", err)
	}
	again, err := o.GetSession("user-1")
	if err != nil {
		t.Fatalf("GetSession again: %v", err)
	}
	if len(again.History) != 3 {
		t.Errorf("history length = %d after reload, want 3 (no duplicates)", len(again.History))
	}
}

func TestGetSessionSortsHistory(t *testing.T) {
	o, st := newTestOrchestrator(t, defaultFake())
	now := testNow.UnixMilli()
	err := st.SaveSession(models.Session{
		UserID:  "user-1",
		Persona: &models.Persona{Name: "Maya", InitialSystemMessage: "scene"},
		History: []models.Message{
			{ID: "c", Sender: models.SenderUser, Text: "later", Timestamp: now + 10},
			{ID: "a", Sender: models.SenderSystem, Text: "scene", Timestamp: models.SeedSystemTimestamp},
			{ID: "b", Sender: models.SenderAI, Text: "hi", Timestamp: models.FirstAIMessageTimestamp},
		},
		CreatedAt: testNow,
		UpdatedAt: testNow,
	})
	if err != nil {
		t.Fatalf("save session: %v", err)
	}

	session, err := o.GetSession("user-1")
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	gotOrder := []string{session.History[0].ID, session.History[1].ID, session.History[2].ID}
	if gotOrder[0] != "a" || gotOrder[1] != "b" || gotOrder[2] != "c" {
		t.Errorf("history order = %v, want [a b c]", gotOrder)
	}
}
