package auth

// State is the position of an auth client in the logon or reconnect exchange.
type State int

const (
	StateIdle State = iota
	StateChallengeSent
	StateProofSent
	StateReconnectChallengeSent
	StateReconnectProofSent
	StateAuthenticated
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateChallengeSent:
		return "CHALLENGE_SENT"
	case StateProofSent:
		return "PROOF_SENT"
	case StateReconnectChallengeSent:
		return "RECONNECT_CHALLENGE_SENT"
	case StateReconnectProofSent:
		return "RECONNECT_PROOF_SENT"
	case StateAuthenticated:
		return "AUTHENTICATED"
	case StateFailed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}
