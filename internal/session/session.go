package session

import (
	"context"
	"errors"
	"slices"
	"time"

	"github.com/compoker/backend/internal/issue"
	"github.com/compoker/backend/internal/protocol"
	"github.com/compoker/backend/internal/vote"
	"go.uber.org/zap"
)

// ErrNameTaken is replied to a Join whose name is already bound to another
// live connection in this session.
var ErrNameTaken = errors.New("participant name already taken")

// ErrSessionClosed is replied to a Join that reaches a session after its
// actor retired.
var ErrSessionClosed = errors.New("session closed")

// ErrUnresponsive is replied to a Join whose connection cannot even take the
// session snapshot.
var ErrUnresponsive = errors.New("connection unresponsive")

// firstJoinGrace bounds how long a freshly created session waits for its
// first participant; creators that disconnect mid-handshake must not leave
// an orphan behind. Tests shorten this.
var firstJoinGrace = 30 * time.Second

// retireDrainGrace is how long a retired session keeps answering stragglers
// that resolved its pointer just before the directory dropped it.
const retireDrainGrace = 5 * time.Second

type Msg interface{ isSessionMsg() }

// Join binds a connection to a participant name. On success the session
// pushes a SessionInfoResponse into Outbox before any later announcement, so
// the joiner's first message is always the full snapshot.
type Join struct {
	ConnID string
	Name   string
	Outbox chan protocol.Message
	Reply  chan error
}

type Leave struct{ ConnID string }

type CastVote struct {
	ConnID  string
	IssueID int64
	Value   vote.Vote
}

type ChangeTopic struct {
	ConnID string
	Topic  string
}

// StartIssue begins the next round. Ignored unless the current round is
// closed.
type StartIssue struct{ ConnID string }

// GetState reflects internal state without data races; test-only.
type GetState struct{ Reply chan View }

type Shutdown struct{}

func (Join) isSessionMsg()        {}
func (Leave) isSessionMsg()       {}
func (CastVote) isSessionMsg()    {}
func (ChangeTopic) isSessionMsg() {}
func (StartIssue) isSessionMsg()  {}
func (GetState) isSessionMsg()    {}
func (Shutdown) isSessionMsg()    {}

type View struct {
	ID         int64
	Roster     []string
	NumClients int
	Issue      issue.Issue
}

type client struct {
	name   string
	outbox chan protocol.Message
}

// Session is one planning-poker room. A dedicated goroutine owns all state;
// everything reaches it through the inbox, so operations on one session are
// serialized in arrival order while distinct sessions run fully in parallel.
// The adapter owns each outbox channel; the session only ever sends to it
// without blocking.
type Session struct {
	id         int64
	inbox      chan Msg
	roster     []string
	issue      *issue.Issue
	clients    map[string]*client
	everJoined bool
	onEmpty    func(id int64)
	log        *zap.Logger
	ctx        context.Context
	cancel     context.CancelFunc
}

// New starts the session actor. onEmpty is invoked once when the last bound
// connection is gone and the actor stops.
func New(parent context.Context, id int64, onEmpty func(int64), log *zap.Logger) *Session {
	ctx, cancel := context.WithCancel(parent)
	s := &Session{
		id:      id,
		inbox:   make(chan Msg, 64),
		issue:   issue.New(),
		clients: make(map[string]*client),
		onEmpty: onEmpty,
		log:     log.With(zap.Int64("session", id)),
		ctx:     ctx,
		cancel:  cancel,
	}
	go s.loop()
	return s
}

func (s *Session) ID() int64 { return s.id }

func (s *Session) Inbox() chan<- Msg { return s.inbox }

func (s *Session) loop() {
	defer func() {
		s.cancel()
		go s.drain()
	}()

	grace := time.NewTimer(firstJoinGrace)
	defer grace.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return

		case <-grace.C:
			if !s.everJoined {
				s.log.Info("no participant ever joined, session retiring")
				s.onEmpty(s.id)
				return
			}

		case m := <-s.inbox:
			switch msg := m.(type) {
			case Join:
				s.handleJoin(msg)
			case Leave:
				s.handleLeave(msg.ConnID)
			case CastVote:
				s.handleVote(msg)
			case ChangeTopic:
				s.handleTopic(msg)
			case StartIssue:
				s.handleStartIssue(msg)
			case GetState:
				msg.Reply <- s.view()
			case Shutdown:
				return
			}

			if s.everJoined && len(s.clients) == 0 {
				s.log.Info("last participant gone, session retiring")
				s.onEmpty(s.id)
				return
			}
		}
	}
}

// drain answers stragglers that resolved the session just before the
// directory dropped it, so their joins fail fast instead of hanging on a
// dead inbox.
func (s *Session) drain() {
	expire := time.NewTimer(retireDrainGrace)
	defer expire.Stop()
	for {
		select {
		case m := <-s.inbox:
			switch msg := m.(type) {
			case Join:
				msg.Reply <- ErrSessionClosed
			case GetState:
				msg.Reply <- s.view()
			}
		case <-expire.C:
			return
		}
	}
}

func (s *Session) handleJoin(msg Join) {
	// Reject before touching anything; a failed join must not disturb the
	// caller's existing binding.
	for id, c := range s.clients {
		if c.name == msg.Name && id != msg.ConnID {
			msg.Reply <- ErrNameTaken
			return
		}
	}

	if c, ok := s.clients[msg.ConnID]; ok {
		if c.name == msg.Name {
			// Same connection re-joining under its own name: resend the
			// snapshot, change nothing.
			s.send(msg.ConnID, c, s.infoFor(msg.Name))
			if _, still := s.clients[msg.ConnID]; !still {
				msg.Reply <- ErrUnresponsive
				return
			}
			msg.Reply <- nil
			return
		}
		// Same connection switching names counts as a departure first.
		s.removeClient(msg.ConnID, c)
		s.maybeCloseVoting()
	}

	c := &client{name: msg.Name, outbox: msg.Outbox}
	s.clients[msg.ConnID] = c
	s.everJoined = true
	addedToRoster := false
	if !slices.Contains(s.roster, msg.Name) {
		s.roster = append(s.roster, msg.Name)
		addedToRoster = true
	}

	// The snapshot must reach the joiner before anyone hears about them; a
	// joiner that cannot even take it was never bound.
	select {
	case c.outbox <- s.infoFor(msg.Name):
	default:
		delete(s.clients, msg.ConnID)
		if addedToRoster {
			s.roster = s.roster[:len(s.roster)-1]
		}
		msg.Reply <- ErrUnresponsive
		return
	}

	s.broadcastExcept(msg.ConnID, func(string) protocol.Message {
		return protocol.ParticipantJoinAnnouncement{ParticipantName: msg.Name}
	})
	s.log.Info("participant joined", zap.String("name", msg.Name))
	msg.Reply <- nil
}

func (s *Session) handleLeave(connID string) {
	c, ok := s.clients[connID]
	if !ok {
		// Double disconnect; the binding is already gone.
		return
	}
	s.removeClient(connID, c)
	s.maybeCloseVoting()
}

func (s *Session) handleVote(msg CastVote) {
	c, ok := s.clients[msg.ConnID]
	if !ok {
		return
	}
	if msg.IssueID != s.issue.ID {
		s.send(msg.ConnID, c, protocol.ErrorResponse{Error: protocol.ErrCodeStaleIssueReference})
		return
	}
	if err := s.issue.Cast(c.name, msg.Value); err != nil {
		s.send(msg.ConnID, c, protocol.ErrorResponse{Error: protocol.ErrCodeIssueClosed})
		return
	}
	s.log.Debug("vote recorded", zap.String("name", c.name), zap.Int64("issue", s.issue.ID))
	receipt := protocol.VoteReceiptAnnouncement{ParticipantName: c.name, IssueID: s.issue.ID}
	s.broadcast(func(string) protocol.Message { return receipt })
	s.maybeCloseVoting()
}

func (s *Session) handleTopic(msg ChangeTopic) {
	if _, ok := s.clients[msg.ConnID]; !ok {
		return
	}
	// A topic edit mid-vote does not restart the round.
	s.issue.SetTopic(msg.Topic)
	s.broadcastIssue()
}

func (s *Session) handleStartIssue(msg StartIssue) {
	if _, ok := s.clients[msg.ConnID]; !ok {
		return
	}
	if s.issue.State != issue.StateClosing {
		s.log.Debug("new round requested while current round still open",
			zap.Int64("issue", s.issue.ID))
		return
	}
	s.issue = s.issue.Next()
	s.log.Info("new round started", zap.Int64("issue", s.issue.ID))
	s.broadcastIssue()
}

// removeClient unbinds a connection, removes the participant from the roster
// and, while the round is open, discards their vote so the voted count seen
// by the others reflects reality.
func (s *Session) removeClient(connID string, c *client) {
	delete(s.clients, connID)
	if i := slices.Index(s.roster, c.name); i >= 0 {
		s.roster = slices.Delete(s.roster, i, i+1)
	}
	s.issue.RemoveVote(c.name)
	s.broadcast(func(string) protocol.Message {
		return protocol.ParticipantLeaveAnnouncement{ParticipantName: c.name}
	})
	s.log.Info("participant left", zap.String("name", c.name))
}

// maybeCloseVoting reveals the round as soon as every roster member has a
// vote on record. Idempotent via the issue's terminal state.
func (s *Session) maybeCloseVoting() {
	if s.issue.State == issue.StateClosing || !s.issue.AllVoted(s.roster) {
		return
	}
	s.issue.Close()
	revealed := s.issue.Clone()
	s.broadcast(func(string) protocol.Message {
		return protocol.VotingResultsRevelation{
			IssueID: revealed.ID,
			Votes:   revealed.Votes,
			Outcome: revealed.Outcome,
		}
	})
	s.log.Info("voting closed",
		zap.Int64("issue", revealed.ID),
		zap.String("outcome", string(revealed.Outcome)))
}

func (s *Session) broadcastIssue() {
	s.broadcast(func(viewer string) protocol.Message {
		return protocol.VotingIssueAnnouncement{VotingIssue: s.wireIssue(viewer)}
	})
}

// broadcast builds the message per viewer so vote secrecy can be enforced by
// projection. Clients that cannot keep up are dropped.
func (s *Session) broadcast(build func(viewer string) protocol.Message) {
	s.broadcastExcept("", build)
}

func (s *Session) broadcastExcept(exclude string, build func(viewer string) protocol.Message) {
	var dropped []string
	for id, c := range s.clients {
		if id == exclude {
			continue
		}
		select {
		case c.outbox <- build(c.name):
		default:
			dropped = append(dropped, id)
		}
	}
	for _, id := range dropped {
		if c, ok := s.clients[id]; ok {
			s.log.Warn("dropping unresponsive connection", zap.String("name", c.name))
			s.removeClient(id, c)
			s.maybeCloseVoting()
		}
	}
}

func (s *Session) send(connID string, c *client, m protocol.Message) {
	select {
	case c.outbox <- m:
	default:
		s.log.Warn("dropping unresponsive connection", zap.String("name", c.name))
		s.removeClient(connID, c)
		s.maybeCloseVoting()
	}
}

func (s *Session) infoFor(viewer string) protocol.Message {
	return protocol.SessionInfoResponse{
		SessionID:           s.id,
		CurrentIssue:        s.wireIssue(viewer),
		CurrentParticipants: slices.Clone(s.roster),
	}
}

func (s *Session) wireIssue(viewer string) protocol.VotingIssue {
	v := s.issue.View(viewer)
	return protocol.VotingIssue{
		ID:         v.ID,
		State:      string(v.State),
		TrelloCard: v.Topic,
		Votes:      v.Votes,
		Outcome:    v.Outcome,
	}
}

func (s *Session) view() View {
	return View{
		ID:         s.id,
		Roster:     slices.Clone(s.roster),
		NumClients: len(s.clients),
		Issue:      s.issue.Clone(),
	}
}
