package session

import "time"

// State is a point in the login lifecycle.
type State int

const (
	Unauthenticated State = iota
	CredentialsSubmitted
	InterstitialShown
	Resolved
	Authenticated
	LoggedOut
)

func (s State) String() string {
	switch s {
	case Unauthenticated:
		return "unauthenticated"
	case CredentialsSubmitted:
		return "credentials_submitted"
	case InterstitialShown:
		return "interstitial_shown"
	case Resolved:
		return "resolved"
	case Authenticated:
		return "authenticated"
	case LoggedOut:
		return "logged_out"
	default:
		return "unknown"
	}
}

// Handle represents one browser session. It is created by Controller.Open,
// passed by pointer, and must not be used from two extractions at once.
type Handle struct {
	createdAt time.Time
	state     State
	history   []State
}

func newHandle() *Handle {
	h := &Handle{createdAt: time.Now(), state: Unauthenticated}
	h.history = append(h.history, Unauthenticated)
	return h
}

func (h *Handle) transition(s State) {
	h.state = s
	h.history = append(h.history, s)
}

// Authenticated reports whether the handle is in the Authenticated state.
func (h *Handle) Authenticated() bool { return h.state == Authenticated }

// CreatedAt reports when the login sequence started.
func (h *Handle) CreatedAt() time.Time { return h.createdAt }

// State reports the current lifecycle state.
func (h *Handle) State() State { return h.state }

// History reports every state the handle has passed through, in order.
// Used for failure diagnosis.
func (h *Handle) History() []State {
	out := make([]State, len(h.history))
	copy(out, h.history)
	return out
}
