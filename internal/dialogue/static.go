package dialogue

import "github.com/Someone-anon-coder/echoes-ai-friend/internal/models"

// DefaultScenarios are the built-in first-meeting settings. Premium
// scenarios are gated on the user's premium flag at selection time.
var DefaultScenarios = []models.Scenario{
	{
		ID:          "park-bench",
		Name:        "Sunny Park Bench",
		Description: "You sit down on a park bench on a warm afternoon and notice someone sketching beside you.",
	},
	{
		ID:          "coffee-shop",
		Name:        "Cozy Coffee Shop",
		Description: "The cafe is crowded and the only free seat is across from a stranger reading a worn paperback.",
	},
	{
		ID:          "late-train",
		Name:        "Late Night Train",
		Description: "An almost empty train car, rain on the windows, and one other passenger who looks up as you board.",
	},
	{
		ID:          "art-gallery",
		Name:        "Gallery Opening",
		Description: "A small gallery opening where you both linger in front of the same strange painting.",
		IsPremium:   true,
	},
	{
		ID:          "stargazing",
		Name:        "Rooftop Stargazing",
		Description: "A rooftop on a clear night; someone has set up a telescope and offers you a look.",
		IsPremium:   true,
	},
}

// journeyScenario is the implicit setting used when a journey is started
// before any scenario was chosen.
var journeyScenario = models.Scenario{
	ID:          "quiet-companion",
	Name:        "A Quiet Companion",
	Description: "A calm, supportive companion who is here to guide you through a short exercise.",
}

// FindScenario resolves a built-in scenario by ID.
func FindScenario(id string) (*models.Scenario, bool) {
	for i := range DefaultScenarios {
		if DefaultScenarios[i].ID == id {
			return &DefaultScenarios[i], true
		}
	}
	return nil, false
}
