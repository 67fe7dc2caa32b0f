// Package journey holds the built-in guided-exercise scripts and their
// lookup. Journeys are immutable; the engine only ever reads them.
package journey

import (
	"fmt"

	"github.com/Someone-anon-coder/echoes-ai-friend/internal/models"
)

// definitions are the journeys shipped with the engine. Step IDs equal the
// step's index in the list.
var definitions = []models.Journey{
	{
		ID:          "gratitude-01",
		Name:        "Find Gratitude",
		Description: "A short exercise to help you focus on the positive.",
		Steps: []models.JourneyStep{
			{StepID: 0, Type: models.StepTypePrompt, Content: "Let's take a moment to find something to be grateful for. First, find a quiet space and get comfortable."},
			{StepID: 1, Type: models.StepTypePrompt, Content: "Think about your day so far. What is one small thing that brought you a bit of joy or peace?"},
			{StepID: 2, Type: models.StepTypeUserInput, Content: "Describe that one thing. There's no right or wrong answer."},
			{StepID: 3, Type: models.StepTypePrompt, Content: "Thank you for sharing. It's often the small things that make the biggest difference."},
		},
	},
	{
		ID:          "breathing-01",
		Name:        "Mindful Breathing",
		Description: "A simple breathing exercise to calm your mind.",
		Steps: []models.JourneyStep{
			{StepID: 0, Type: models.StepTypePrompt, Content: "Let's start by finding a comfortable position, either sitting or lying down."},
			{StepID: 1, Type: models.StepTypePrompt, Content: "Now, gently close your eyes."},
			{StepID: 2, Type: models.StepTypePrompt, Content: "Let's breathe in for 4 seconds."},
			{StepID: 3, Type: models.StepTypePrompt, Content: "Hold your breath for 4 seconds."},
			{StepID: 4, Type: models.StepTypePrompt, Content: "Now, breathe out for 4 seconds."},
			{StepID: 5, Type: models.StepTypePrompt, Content: "And hold for 4 seconds."},
			{StepID: 6, Type: models.StepTypePrompt, Content: "Let's repeat that one more time. Breathe in... 2... 3... 4..."},
			{StepID: 7, Type: models.StepTypePrompt, Content: "Hold... 2... 3... 4..."},
			{StepID: 8, Type: models.StepTypePrompt, Content: "Breathe out... 2... 3... 4..."},
			{StepID: 9, Type: models.StepTypePrompt, Content: "And hold... 2... 3... 4..."},
			{StepID: 10, Type: models.StepTypePrompt, Content: "You can now return to your normal breathing. I hope you feel a little more centered."},
		},
	},
}

// All returns the built-in journey definitions.
func All() []models.Journey {
	return definitions
}

// Lookup resolves a journey ID. Unknown IDs return ErrUnknownJourney so
// the orchestrator can clear a corrupt journey reference without crashing
// the session.
func Lookup(id string) (*models.Journey, error) {
	for i := range definitions {
		if definitions[i].ID == id {
			return &definitions[i], nil
		}
	}
	return nil, fmt.Errorf("%w: %q", models.ErrUnknownJourney, id)
}
