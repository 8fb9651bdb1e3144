package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
)

var (
	ErrEmptyEnvelope      = errors.New("envelope carries no message")
	ErrMultiMessage       = errors.New("envelope carries more than one message")
	ErrUnknownMessageType = errors.New("unknown message type")
)

// Encode wraps m in its single-key envelope.
func Encode(m Message) ([]byte, error) {
	payload, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("marshal %s: %w", m.messageType(), err)
	}
	return json.Marshal(map[string]json.RawMessage{m.messageType(): payload})
}

// Decode unwraps one envelope. Unknown message types come back as
// ErrUnknownMessageType so callers can ignore them without tearing the
// connection down.
func Decode(data []byte) (Message, error) {
	var env map[string]json.RawMessage
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decode envelope: %w", err)
	}
	if len(env) == 0 {
		return nil, ErrEmptyEnvelope
	}
	if len(env) > 1 {
		return nil, ErrMultiMessage
	}
	for name, payload := range env {
		return decodePayload(name, payload)
	}
	return nil, ErrEmptyEnvelope
}

func decodePayload(name string, payload json.RawMessage) (Message, error) {
	var m Message
	switch name {
	case "CreateSessionRequest":
		m = &CreateSessionRequest{}
	case "JoinSessionRequest":
		m = &JoinSessionRequest{}
	case "TopicChangeRequest":
		m = &TopicChangeRequest{}
	case "VoteRequest":
		m = &VoteRequest{}
	case "NewIssueRequest":
		m = &NewIssueRequest{}
	case "SessionInfoResponse":
		m = &SessionInfoResponse{}
	case "SessionJoinErrorResponse":
		m = &SessionJoinErrorResponse{}
	case "ParticipantJoinAnnouncement":
		m = &ParticipantJoinAnnouncement{}
	case "ParticipantLeaveAnnouncement":
		m = &ParticipantLeaveAnnouncement{}
	case "VotingIssueAnnouncement":
		m = &VotingIssueAnnouncement{}
	case "VoteReceiptAnnouncement":
		m = &VoteReceiptAnnouncement{}
	case "VotingResultsRevelation":
		m = &VotingResultsRevelation{}
	case "ErrorResponse":
		m = &ErrorResponse{}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownMessageType, name)
	}
	if err := json.Unmarshal(payload, m); err != nil {
		return nil, fmt.Errorf("decode %s: %w", name, err)
	}
	return deref(m), nil
}

// deref hands concrete values back so callers can switch on value types.
func deref(m Message) Message {
	switch v := m.(type) {
	case *CreateSessionRequest:
		return *v
	case *JoinSessionRequest:
		return *v
	case *TopicChangeRequest:
		return *v
	case *VoteRequest:
		return *v
	case *NewIssueRequest:
		return *v
	case *SessionInfoResponse:
		return *v
	case *SessionJoinErrorResponse:
		return *v
	case *ParticipantJoinAnnouncement:
		return *v
	case *ParticipantLeaveAnnouncement:
		return *v
	case *VotingIssueAnnouncement:
		return *v
	case *VoteReceiptAnnouncement:
		return *v
	case *VotingResultsRevelation:
		return *v
	case *ErrorResponse:
		return *v
	}
	return m
}
