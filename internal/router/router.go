// Package router maps session and profile state to a presentation screen.
// It carries no rendering; callers use the screen identifier to drive
// whatever UI sits in front of the engine.
package router

// Screen identifies one presentation surface.
type Screen string

const (
	ScreenLogin          Screen = "login"
	ScreenScenarioSelect Screen = "scenario_select"
	ScreenChat           Screen = "chat"
	ScreenGameOver       Screen = "game_over"
	ScreenProfile        Screen = "profile"
	ScreenShop           Screen = "shop"
)

// State is the snapshot the screen decision is made from.
type State struct {
	Authenticated bool
	HasPersona    bool
	Ended         bool
}

// Resolve maps a state snapshot to its screen. Pure; menu navigation is
// layered on top by Router.
func Resolve(s State) Screen {
	switch {
	case !s.Authenticated:
		return ScreenLogin
	case s.Ended:
		return ScreenGameOver
	case !s.HasPersona:
		return ScreenScenarioSelect
	default:
		return ScreenChat
	}
}

// isMenu reports whether a screen is an overlay menu rather than a
// state-derived screen.
func isMenu(s Screen) bool {
	return s == ScreenProfile || s == ScreenShop
}

// Router tracks the current screen plus the one piece of navigation
// memory: the screen to return to when a menu closes.
type Router struct {
	current            Screen
	previousBeforeMenu Screen
}

// New starts on the login screen with the scenario select as the menu
// return target.
func New() *Router {
	return &Router{
		current:            ScreenLogin,
		previousBeforeMenu: ScreenScenarioSelect,
	}
}

// Current returns the screen being shown.
func (r *Router) Current() Screen {
	return r.current
}

// Apply resolves the state snapshot and moves to the resulting screen.
func (r *Router) Apply(s State) Screen {
	r.current = Resolve(s)
	return r.current
}

// EnterMenu opens a menu screen. The return target is captured only when
// entering from a non-menu, non-auth screen, so hopping between menus
// keeps the original target. Non-menu screens are ignored.
func (r *Router) EnterMenu(menu Screen) Screen {
	if !isMenu(menu) {
		return r.current
	}
	if !isMenu(r.current) && r.current != ScreenLogin {
		r.previousBeforeMenu = r.current
	}
	r.current = menu
	return r.current
}

// Back closes an open menu and returns to the remembered screen. Outside
// a menu it is a no-op.
func (r *Router) Back() Screen {
	if isMenu(r.current) {
		r.current = r.previousBeforeMenu
	}
	return r.current
}
