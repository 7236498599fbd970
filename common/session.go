package common

// Action is the operation a login strategy performs once authenticated.
type Action int

const (
	ActionStatus Action = iota
	ActionConnect
	ActionDisconnect
)

func (a Action) String() string {
	switch a {
	case ActionStatus:
		return "status"
	case ActionConnect:
		return "connect"
	case ActionDisconnect:
		return "disconnect"
	default:
		return "unknown"
	}
}

// State is the VPN connection state as read back from the admin page.
type State int

const (
	StateUnknown State = iota
	StateConnected
	StateDisconnected
)

func (s State) String() string {
	switch s {
	case StateConnected:
		return "Connected"
	case StateDisconnected:
		return "Disconnected"
	default:
		return "Unknown"
	}
}

// SessionResult is what a strategy reports after one attempt.
// Reason explains Authenticated == false and is kept for the final error.
type SessionResult struct {
	Authenticated bool
	State         State
	Reason        error
}

// Phase is a step of a connection run.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseCheckingProcess
	PhaseAuthenticating
	PhaseSubmitting
	PhaseVerifyingStatus
	PhaseConnected
	PhaseDisconnected
	PhaseFailed
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "Idle"
	case PhaseCheckingProcess:
		return "CheckingProcess"
	case PhaseAuthenticating:
		return "Authenticating"
	case PhaseSubmitting:
		return "Submitting"
	case PhaseVerifyingStatus:
		return "VerifyingStatus"
	case PhaseConnected:
		return "Connected"
	case PhaseDisconnected:
		return "Disconnected"
	case PhaseFailed:
		return "Failed"
	default:
		return "Unknown"
	}
}

// LoginRequest is one strategy attempt: where to sign in, as whom, and what
// to do once signed in.
type LoginRequest struct {
	AdminURL string
	Username string
	Password string
	Action   Action
	// ShowBrowser runs browser-driven strategies with a visible window.
	ShowBrowser bool
	// OnPhase, when set, is told when the strategy moves past sign-in.
	OnPhase func(Phase)
}

// Enter reports p to OnPhase.
func (r LoginRequest) Enter(p Phase) {
	if r.OnPhase != nil {
		r.OnPhase(p)
	}
}

// String never includes the password.
func (r LoginRequest) String() string {
	return r.Action.String() + " " + r.Username + "@" + r.AdminURL + " (password " + MaskSecret(r.Password) + ")"
}
