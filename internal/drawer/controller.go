// Package drawer models the cart drawer: its open/closed state, the view rendered into
// it, and the location helper that fills the address field.
package drawer

// Effect is a page side effect the client applies after a transition.
type Effect string

const (
	EffectNone          Effect = ""
	EffectLockScroll    Effect = "lock-scroll"
	EffectReleaseScroll Effect = "release-scroll"
)

// State is the persisted drawer state. ScrollLocked always equals Open after a
// transition; the fields are kept apart so a tampered or stale state self-heals.
type State struct {
	Open         bool `json:"open"`
	ScrollLocked bool `json:"scrollLocked"`
}

// Controller drives drawer transitions. Opening an open drawer and closing a closed one
// are no-ops, so lock and release effects strictly alternate.
type Controller struct {
	state State
}

// NewController resumes from a stored state.
func NewController(s State) *Controller {
	return &Controller{state: s}
}

// State returns the current state.
func (c *Controller) State() State { return c.state }

// IsOpen reports whether the drawer is open.
func (c *Controller) IsOpen() bool { return c.state.Open }

// Open shows the drawer and locks page scroll.
func (c *Controller) Open() Effect {
	c.state.Open = true
	if c.state.ScrollLocked {
		return EffectNone
	}
	c.state.ScrollLocked = true
	return EffectLockScroll
}

// Close hides the drawer and releases page scroll. Backdrop clicks, the close control
// and the Escape key all land here.
func (c *Controller) Close() Effect {
	c.state.Open = false
	if !c.state.ScrollLocked {
		return EffectNone
	}
	c.state.ScrollLocked = false
	return EffectReleaseScroll
}
