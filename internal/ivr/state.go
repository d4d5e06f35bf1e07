package ivr

// State is the flow phase a call is in.
type State string

const (
	StateRinging           State = "Ringing"
	StateConnected         State = "Connected"
	StateIdentifyingCaller State = "IdentifyingCaller"
	StateCreatingUser      State = "CreatingUser"
	StateAuthChoice        State = "AuthChoice"
	StateEnrollIntro       State = "EnrollIntro"
	StateEnrolling         State = "Enrolling"
	StateEnrollPrompt      State = "EnrollPrompt"
	StateAuthPrompt        State = "AuthPrompt"
	StateAuthenticating    State = "Authenticating"
	StateAuthResult        State = "AuthResult"
	StateTerminating       State = "Terminating"
	StateTerminated        State = "Terminated"
)

func (s State) enrolling() bool {
	switch s {
	case StateEnrollIntro, StateEnrolling, StateEnrollPrompt:
		return true
	}
	return false
}

func (s State) authenticating() bool {
	switch s {
	case StateAuthPrompt, StateAuthenticating, StateAuthResult:
		return true
	}
	return false
}
