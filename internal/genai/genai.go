// Package genai adapts the external text-generation service (OpenAI API)
// to the four operations the Echoes engine needs: persona generation,
// chat replies, conversation summaries, and sentiment analysis.
//
// All structured outputs are validated at this boundary; malformed model
// output never flows past it.
package genai

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"regexp"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/Someone-anon-coder/echoes-ai-friend/internal/models"
)

// Opts holds configuration for the GenAI client.
type Opts struct {
	APIKey string
	Model  string
}

// Option configures the GenAI client.
type Option func(*Opts)

// WithAPIKey sets the OpenAI API key (overrides $OPENAI_API_KEY).
func WithAPIKey(key string) Option {
	return func(o *Opts) { o.APIKey = key }
}

// WithModel sets the chat model used for all operations.
func WithModel(model string) Option {
	return func(o *Opts) { o.Model = model }
}

// ReplyRequest carries the context for one in-character chat reply.
type ReplyRequest struct {
	UserMessage   string
	Summary       string
	Persona       *models.Persona
	Score         int
	Tier          string
	RecentHistory []models.Message
}

// SentimentRequest carries the context for one sentiment analysis call.
type SentimentRequest struct {
	UserMessage    string
	PersonaSummary string
	Score          int
	Tier           string
}

// SentimentResult is the combined sentiment reading: a bounded score delta
// plus the structured mood attached to the triggering message.
type SentimentResult struct {
	ScoreDelta int
	Mood       *models.MoodAnalysis
}

// ClientInterface defines the generation operations consumed by the
// dialogue orchestrator. Tests substitute a scripted fake.
type ClientInterface interface {
	GeneratePersona(ctx context.Context, scenario models.Scenario) (*models.Persona, error)
	GenerateReply(ctx context.Context, req ReplyRequest) (string, error)
	SummarizeConversation(ctx context.Context, personaName string, window []models.Message) (string, error)
	AnalyzeSentiment(ctx context.Context, req SentimentRequest) (*SentimentResult, error)
}

// chatCompleter is the minimal slice of the OpenAI client used here.
type chatCompleter interface {
	New(ctx context.Context, params openai.ChatCompletionNewParams, opts ...option.RequestOption) (*openai.ChatCompletion, error)
}

// Client implements ClientInterface against the OpenAI chat completion API.
type Client struct {
	chat  chatCompleter
	model string
}

// NewClient initializes a GenAI client. The API key comes from options or
// the OPENAI_API_KEY environment variable.
func NewClient(opts ...Option) (*Client, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if cfg.APIKey == "" {
		slog.Error("genai.NewClient: no API key configured")
		return nil, fmt.Errorf("OPENAI_API_KEY not set")
	}
	if cfg.Model == "" {
		cfg.Model = openai.ChatModelGPT4oMini
	}
	cli := openai.NewClient(option.WithAPIKey(cfg.APIKey))
	slog.Debug("genai.NewClient: client initialized", "model", cfg.Model)
	return &Client{chat: &cli.Chat.Completions, model: cfg.Model}, nil
}

// complete runs one chat completion and returns the first choice's content.
func (c *Client) complete(ctx context.Context, messages []openai.ChatCompletionMessageParamUnion) (string, error) {
	resp, err := c.chat.New(ctx, openai.ChatCompletionNewParams{
		Model:    c.model,
		Messages: messages,
	})
	if err != nil {
		return "", fmt.Errorf("chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no choices returned")
	}
	return resp.Choices[0].Message.Content, nil
}

// personaPayload mirrors the JSON structure requested from the model.
type personaPayload struct {
	Name                 string   `json:"name"`
	Hobbies              []string `json:"hobbies"`
	PersonalityTraits    []string `json:"personalityTraits"`
	Secret               string   `json:"secret"`
	InitialSystemMessage string   `json:"initialSystemMessage"`
	FirstAIMessage       string   `json:"firstAIMessage"`
}

// GeneratePersona asks the model for a new character fitting the scenario
// and validates the structured result. A malformed payload returns
// ErrMalformedPersona; the caller treats it as recoverable.
func (c *Client) GeneratePersona(ctx context.Context, scenario models.Scenario) (*models.Persona, error) {
	slog.Debug("genai.GeneratePersona: requesting persona", "scenario", scenario.ID)

	prompt := fmt.Sprintf(`You are designing an AI character for a chat application named 'Echoes'. The user will meet this AI in a scenario called: '%s'.
Generate a detailed persona for this AI. The response MUST be a JSON object with the following structure:
{
  "name": "string (a common, relatable name)",
  "hobbies": ["string", "string", "string (3-5 hobbies, e.g. 'Sketching', 'Classic films', 'Coding')"],
  "personalityTraits": ["string", "string", "string (3-4 key personality traits, e.g. 'Initially shy but warms up', 'Observant', 'Witty')"],
  "secret": "string (a significant secret or past experience, to be revealed at high friendship levels)",
  "initialSystemMessage": "string (a 1-2 sentence scene-setting message for '%s')",
  "firstAIMessage": "string (optional: a short, in-character first line if the AI speaks first, after the system message. If empty, the user speaks first.)"
}
Ensure the initialSystemMessage is directly related to the scenario: '%s'.
Output ONLY the JSON object.`, scenario.Name, scenario.Name, scenario.Description)

	raw, err := c.complete(ctx, []openai.ChatCompletionMessageParamUnion{
		openai.UserMessage(prompt),
	})
	if err != nil {
		slog.Error("genai.GeneratePersona: completion failed", "error", err, "scenario", scenario.ID)
		return nil, fmt.Errorf("%w: %v", models.ErrGenerationFailed, err)
	}

	var payload personaPayload
	if err := parseJSONBlock(raw, &payload); err != nil {
		slog.Error("genai.GeneratePersona: failed to parse persona JSON", "error", err, "raw_length", len(raw))
		return nil, fmt.Errorf("%w: %v", models.ErrMalformedPersona, err)
	}

	persona := &models.Persona{
		Name:                 payload.Name,
		Hobbies:              payload.Hobbies,
		PersonalityTraits:    payload.PersonalityTraits,
		Secret:               payload.Secret,
		InitialSystemMessage: payload.InitialSystemMessage,
		FirstAIMessage:       payload.FirstAIMessage,
		IsBusy:               false,
	}
	if err := persona.Validate(); err != nil {
		slog.Error("genai.GeneratePersona: persona missing required fields", "name_set", persona.Name != "")
		return nil, err
	}
	slog.Info("genai.GeneratePersona: persona generated", "name", persona.Name, "scenario", scenario.ID)
	return persona, nil
}

// GenerateReply produces the persona's next in-character line.
func (c *Client) GenerateReply(ctx context.Context, req ReplyRequest) (string, error) {
	slog.Debug("genai.GenerateReply: requesting reply", "persona", req.Persona.Name, "score", req.Score, "historyLen", len(req.RecentHistory))

	summary := req.Summary
	if summary == "" {
		summary = "This is our first real conversation."
	}

	system := fmt.Sprintf(`You are %s, an AI friend in the chat app 'Echoes'.
Your Persona:
- Hobbies: %s
- Personality: %s
- Secret (known only to you, not yet revealed unless relationship is 'Best Friend' and context allows): %s

Current Situation:
- Relationship Score with User: %d/100 (%s)
- Previous Conversation Summary (your memory of past events): %s

Task: respond as %s.
- Stay in character, consistent with your persona and the current relationship level.
- If the relationship is low (Acquaintance), be polite but more reserved.
- If the relationship is high (Friend or above), be more open and warm, and initiate more.
- Use <action>...</action> for physical actions and <visual>...</visual> for visual details the user would notice.
- Never break character or mention you are an AI.
- Do NOT reveal your secret unless the relationship score is above 85 and the conversation naturally leads to it.
Keep responses concise and engaging, typically 1-3 sentences.`,
		req.Persona.Name,
		strings.Join(req.Persona.Hobbies, ", "),
		strings.Join(req.Persona.PersonalityTraits, ", "),
		req.Persona.Secret,
		req.Score, req.Tier, summary, req.Persona.Name)

	messages := []openai.ChatCompletionMessageParamUnion{
		openai.SystemMessage(system),
	}
	for _, msg := range req.RecentHistory {
		switch msg.Sender {
		case models.SenderUser:
			messages = append(messages, openai.UserMessage(msg.Text))
		case models.SenderAI:
			messages = append(messages, openai.AssistantMessage(msg.Text))
		case models.SenderSystem:
			messages = append(messages, openai.SystemMessage(msg.Text))
		}
	}
	messages = append(messages, openai.UserMessage(req.UserMessage))

	reply, err := c.complete(ctx, messages)
	if err != nil {
		slog.Error("genai.GenerateReply: completion failed", "error", err, "persona", req.Persona.Name)
		return "", fmt.Errorf("%w: %v", models.ErrGenerationFailed, err)
	}
	slog.Debug("genai.GenerateReply: reply generated", "persona", req.Persona.Name, "length", len(reply))
	return reply, nil
}

// SummarizeConversation compresses a window of turns into a short diary
// entry from the persona's perspective.
func (c *Client) SummarizeConversation(ctx context.Context, personaName string, window []models.Message) (string, error) {
	slog.Debug("genai.SummarizeConversation: requesting summary", "persona", personaName, "turns", len(window))

	var turns strings.Builder
	for i, msg := range window {
		speaker := personaName
		if msg.Sender == models.SenderUser {
			speaker = "User"
		}
		fmt.Fprintf(&turns, "%d. %s: %s\n", i+1, speaker, msg.Text)
	}

	prompt := fmt.Sprintf(`You are %s, an AI. Summarize the key points, emotional shifts, and important information from the following %d conversation turns from your (%s's) perspective. This summary will serve as your memory of this part of the conversation. Be concise, like a short diary entry (2-4 sentences).

Conversation Turns:
%s
Your Summary:`, personaName, len(window), personaName, turns.String())

	summary, err := c.complete(ctx, []openai.ChatCompletionMessageParamUnion{
		openai.UserMessage(prompt),
	})
	if err != nil {
		slog.Error("genai.SummarizeConversation: completion failed", "error", err, "persona", personaName)
		return "", fmt.Errorf("%w: %v", models.ErrGenerationFailed, err)
	}
	return strings.TrimSpace(summary), nil
}

// sentimentPayload mirrors the JSON structure requested from the model.
type sentimentPayload struct {
	ScoreChange     int     `json:"scoreChange"`
	Sentiment       string  `json:"sentiment"`
	PrimaryEmotion  string  `json:"primaryEmotion"`
	ConfidenceScore float64 `json:"confidenceScore"`
}

// AnalyzeSentiment scores the user's message against the relationship
// context. The returned delta is always within [-2, 2].
func (c *Client) AnalyzeSentiment(ctx context.Context, req SentimentRequest) (*SentimentResult, error) {
	slog.Debug("genai.AnalyzeSentiment: analyzing message", "score", req.Score, "tier", req.Tier)

	prompt := fmt.Sprintf(`Analyze the user's latest message in the context of an ongoing chat with an AI friend.
AI's Persona: %s
Current Relationship Score with User: %d/100 (%s)
User's Message: "%s"

Based on the user's message, decide how the relationship score should change:
- Genuine positive engagement (empathy, insightful questions, remembering details): +1.
- Exceptionally supportive or deeply connecting interaction (use sparingly): +2.
- Neutral or informative messages, simple questions: 0.
- Slightly negative behavior (dismissive, mildly rude, uninterested): -1.
- Clearly negative, hostile, or manipulative behavior: -2.

Also classify the user's mood. Output ONLY a JSON object:
{"scoreChange": int, "sentiment": "Positive"|"Negative"|"Neutral", "primaryEmotion": "string", "confidenceScore": 0.0-1.0}`,
		req.PersonaSummary, req.Score, req.Tier, req.UserMessage)

	raw, err := c.complete(ctx, []openai.ChatCompletionMessageParamUnion{
		openai.UserMessage(prompt),
	})
	if err != nil {
		slog.Warn("genai.AnalyzeSentiment: completion failed", "error", err)
		return nil, fmt.Errorf("%w: %v", models.ErrGenerationFailed, err)
	}

	var payload sentimentPayload
	if err := parseJSONBlock(raw, &payload); err != nil {
		slog.Warn("genai.AnalyzeSentiment: failed to parse sentiment JSON", "error", err, "raw_length", len(raw))
		return nil, fmt.Errorf("%w: %v", models.ErrGenerationFailed, err)
	}

	// The analyzer is contracted to return deltas in [-2, 2]; clamp anything
	// outside so a misbehaving model cannot swing the score.
	delta := payload.ScoreChange
	if delta > 2 {
		delta = 2
	}
	if delta < -2 {
		delta = -2
	}

	result := &SentimentResult{ScoreDelta: delta}
	if payload.Sentiment != "" {
		result.Mood = &models.MoodAnalysis{
			Sentiment:       payload.Sentiment,
			PrimaryEmotion:  payload.PrimaryEmotion,
			ConfidenceScore: payload.ConfidenceScore,
		}
	}
	slog.Debug("genai.AnalyzeSentiment: analyzed", "delta", result.ScoreDelta, "sentiment", payload.Sentiment)
	return result, nil
}

// fenceRegex matches a response wrapped in a markdown code fence.
var fenceRegex = regexp.MustCompile("(?s)^```(?:[a-zA-Z]*)?\\s*\n?(.*?)\n?\\s*```$")

// parseJSONBlock unmarshals a model response that may be wrapped in a
// markdown code fence.
func parseJSONBlock(raw string, v interface{}) error {
	jsonStr := strings.TrimSpace(raw)
	if m := fenceRegex.FindStringSubmatch(jsonStr); m != nil {
		jsonStr = strings.TrimSpace(m[1])
	}
	if err := json.Unmarshal([]byte(jsonStr), v); err != nil {
		return fmt.Errorf("failed to parse JSON response: %w", err)
	}
	return nil
}
