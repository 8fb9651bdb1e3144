package protocol

import "github.com/compoker/backend/internal/vote"

// Message is one protocol payload. On the wire every message travels inside
// a single-key envelope keyed by its type name, e.g.
//
//	{"VoteRequest": {"issue_id": 3, "vote": "Five"}}
type Message interface {
	messageType() string
}

// ErrorCode names the recoverable faults reported back to clients.
type ErrorCode string

const (
	ErrCodeUnknownSession       ErrorCode = "UnknownSession"
	ErrCodeParticipantNameTaken ErrorCode = "ParticipantNameTaken"
	ErrCodeInvalidName          ErrorCode = "InvalidName"
	ErrCodeUnknownParticipant   ErrorCode = "UnknownParticipant"
	ErrCodeIssueClosed          ErrorCode = "IssueClosed"
	ErrCodeStaleIssueReference  ErrorCode = "StaleIssueReference"
)

// VotingIssue is the wire shape of one estimation round. Votes of other
// participants are the Hidden marker until the round closes; absent keys mean
// "has not voted". Outcome is omitted while the round is open.
type VotingIssue struct {
	ID         int64                `json:"id"`
	State      string               `json:"state"`
	TrelloCard string               `json:"trello_card,omitempty"`
	Votes      map[string]vote.Vote `json:"votes"`
	Outcome    vote.Vote            `json:"outcome,omitempty"`
}

// Client -> server.

type CreateSessionRequest struct {
	ParticipantName string `json:"participant_name"`
}

type JoinSessionRequest struct {
	ParticipantName string `json:"participant_name"`
	SessionID       int64  `json:"session_id"`
}

type TopicChangeRequest struct {
	TrelloCard string `json:"trello_card"`
}

type VoteRequest struct {
	IssueID int64     `json:"issue_id"`
	Vote    vote.Vote `json:"vote"`
}

// NewIssueRequest asks for the next round once the current one is closed.
type NewIssueRequest struct{}

// Server -> client.

type SessionInfoResponse struct {
	SessionID           int64       `json:"session_id"`
	CurrentIssue        VotingIssue `json:"current_issue"`
	CurrentParticipants []string    `json:"current_participants"`
}

type SessionJoinErrorResponse struct {
	SessionID int64     `json:"session_id"`
	Error     ErrorCode `json:"error"`
}

type ParticipantJoinAnnouncement struct {
	ParticipantName string `json:"participant_name"`
}

type ParticipantLeaveAnnouncement struct {
	ParticipantName string `json:"participant_name"`
}

type VotingIssueAnnouncement struct {
	VotingIssue VotingIssue `json:"voting_issue"`
}

type VoteReceiptAnnouncement struct {
	ParticipantName string `json:"participant_name"`
	IssueID         int64  `json:"issue_id"`
}

type VotingResultsRevelation struct {
	IssueID int64                `json:"issue_id"`
	Votes   map[string]vote.Vote `json:"votes"`
	Outcome vote.Vote            `json:"outcome"`
}

// ErrorResponse reports a recoverable fault to the originating connection
// only; it is never broadcast.
type ErrorResponse struct {
	Error ErrorCode `json:"error"`
}

func (CreateSessionRequest) messageType() string         { return "CreateSessionRequest" }
func (JoinSessionRequest) messageType() string           { return "JoinSessionRequest" }
func (TopicChangeRequest) messageType() string           { return "TopicChangeRequest" }
func (VoteRequest) messageType() string                  { return "VoteRequest" }
func (NewIssueRequest) messageType() string              { return "NewIssueRequest" }
func (SessionInfoResponse) messageType() string          { return "SessionInfoResponse" }
func (SessionJoinErrorResponse) messageType() string     { return "SessionJoinErrorResponse" }
func (ParticipantJoinAnnouncement) messageType() string  { return "ParticipantJoinAnnouncement" }
func (ParticipantLeaveAnnouncement) messageType() string { return "ParticipantLeaveAnnouncement" }
func (VotingIssueAnnouncement) messageType() string      { return "VotingIssueAnnouncement" }
func (VoteReceiptAnnouncement) messageType() string      { return "VoteReceiptAnnouncement" }
func (VotingResultsRevelation) messageType() string      { return "VotingResultsRevelation" }
func (ErrorResponse) messageType() string                { return "ErrorResponse" }
