// Package models defines journey types for guided exercises.
package models

// StepType tags how a journey step is played.
type StepType string

const (
	// StepTypePrompt is a system-authored step the engine plays automatically.
	StepTypePrompt StepType = "PROMPT"
	// StepTypeUserInput is a checkpoint that waits for the next user message.
	StepTypeUserInput StepType = "USER_INPUT"
)

// JourneyStep is one entry in a journey script. StepID equals the step's
// index in the journey's step list.
type JourneyStep struct {
	StepID  int      `json:"stepId"`
	Type    StepType `json:"type"`
	Content string   `json:"content"`
}

// Journey is an immutable ordered script of guided-exercise steps.
type Journey struct {
	ID          string        `json:"id"`
	Name        string        `json:"name"`
	Description string        `json:"description"`
	Steps       []JourneyStep `json:"steps"`
}
