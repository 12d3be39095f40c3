package domain

import "time"

// ChannelState is the per-channel verification state machine:
// not_sent → sent (code issued) → verified (code consumed). A resend keeps
// the state at sent and supersedes the previous code. verified is terminal.
type ChannelState string

const (
	StateNotSent  ChannelState = "not_sent"
	StateSent     ChannelState = "sent"
	StateVerified ChannelState = "verified"
)

// VerificationSession tracks one end-user verification flow across both
// channels. It lives only for the duration of the flow; completion means
// both channels are verified.
type VerificationSession struct {
	SessionID       string       `json:"session_id"`
	EmailState      ChannelState `json:"email_state"`
	SMSState        ChannelState `json:"sms_state"`
	EmailIdentifier string       `json:"email_identifier,omitempty"`
	SMSIdentifier   string       `json:"sms_identifier,omitempty"`
	CreatedAt       time.Time    `json:"created_at"`
}

// Complete reports whether both channels have been verified.
func (s *VerificationSession) Complete() bool {
	return s.EmailState == StateVerified && s.SMSState == StateVerified
}

// StateFor returns the state of the given channel.
func (s *VerificationSession) StateFor(ch Channel) ChannelState {
	if ch == ChannelEmail {
		return s.EmailState
	}
	return s.SMSState
}

// SetState updates the state of the given channel.
func (s *VerificationSession) SetState(ch Channel, st ChannelState) {
	if ch == ChannelEmail {
		s.EmailState = st
		return
	}
	s.SMSState = st
}

// SetIdentifier binds the identifier being verified on the given channel.
func (s *VerificationSession) SetIdentifier(ch Channel, identifier string) {
	if ch == ChannelEmail {
		s.EmailIdentifier = identifier
		return
	}
	s.SMSIdentifier = identifier
}
