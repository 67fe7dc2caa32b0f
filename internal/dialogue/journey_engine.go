package dialogue

import (
	"fmt"
	"log/slog"

	"github.com/Someone-anon-coder/echoes-ai-friend/internal/journey"
	"github.com/Someone-anon-coder/echoes-ai-friend/internal/models"
)

// advanceJourney walks the active journey forward from the session's
// current position. Every scripted prompt up to the next user-input step
// is appended as a system message; a user-input step pauses the walk with
// the position parked on it. Running out of steps appends a completion
// message and clears the journey.
//
// Returns the messages appended and whether the journey completed. A
// corrupt journey reference clears the journey fields and reports
// ErrUnknownJourney; the session stays usable for free chat.
func advanceJourney(session *models.Session, nowMillis int64) ([]models.Message, bool, error) {
	j, err := journey.Lookup(session.ActiveJourneyID)
	if err != nil {
		slog.Warn("Dialogue.advanceJourney: clearing unresolvable journey",
			"userID", session.UserID, "journeyID", session.ActiveJourneyID)
		session.ClearJourney()
		return nil, false, err
	}

	var appended []models.Message
	next := session.CurrentJourneyStep + 1
	for next < len(j.Steps) {
		step := j.Steps[next]
		if step.Type == models.StepTypeUserInput {
			// Park on the input step and wait for the user's next message.
			session.CurrentJourneyStep = next
			slog.Debug("Dialogue.advanceJourney: waiting for user input",
				"userID", session.UserID, "journeyID", j.ID, "step", next)
			return appended, false, nil
		}
		m := models.NewMessage(models.SenderSystem, step.Content, nowMillis)
		session.Append(m)
		appended = append(appended, m)
		next++
	}

	done := models.NewMessage(models.SenderSystem,
		fmt.Sprintf("You have completed the '%s' journey. I hope it helped.", j.Name),
		nowMillis)
	session.Append(done)
	appended = append(appended, done)
	session.ClearJourney()
	slog.Info("Dialogue.advanceJourney: journey completed",
		"userID", session.UserID, "journeyID", j.ID)
	return appended, true, nil
}
