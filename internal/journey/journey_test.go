package journey

import (
	"errors"
	"testing"

	"github.com/Someone-anon-coder/echoes-ai-friend/internal/models"
)

func TestLookupKnown(t *testing.T) {
	j, err := Lookup("gratitude-01")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if j.Name != "Find Gratitude" {
		t.Errorf("name = %q", j.Name)
	}
	if len(j.Steps) != 4 {
		t.Errorf("step count = %d, want 4", len(j.Steps))
	}
}

func TestLookupUnknown(t *testing.T) {
	_, err := Lookup("does-not-exist")
	if !errors.Is(err, models.ErrUnknownJourney) {
		t.Errorf("expected ErrUnknownJourney, got %v", err)
	}
}

func TestStepIDsMatchIndexes(t *testing.T) {
	for _, j := range All() {
		for i, step := range j.Steps {
			if step.StepID != i {
				t.Errorf("journey %s step %d has StepID %d", j.ID, i, step.StepID)
			}
			if step.Type != models.StepTypePrompt && step.Type != models.StepTypeUserInput {
				t.Errorf("journey %s step %d has unknown type %q", j.ID, i, step.Type)
			}
		}
	}
}
