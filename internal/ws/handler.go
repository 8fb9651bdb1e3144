package ws

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/coder/websocket"
	"github.com/compoker/backend/internal/protocol"
	"github.com/compoker/backend/internal/registry"
	"github.com/compoker/backend/internal/session"
	"github.com/compoker/backend/internal/vote"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const writeTimeout = 3 * time.Second

// Handler upgrades a request to the message channel and runs one connection
// until it closes. All session state lives behind the registry; the adapter
// only decodes envelopes, tracks the connection's single binding and pumps
// announcements back out.
func Handler(reg *registry.Registry, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			log.Warn("websocket accept failed", zap.Error(err))
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "bye")

		id := uuid.NewString()
		c := &connection{
			id:     id,
			conn:   conn,
			outbox: make(chan protocol.Message, 16),
			reg:    reg,
			log:    log.With(zap.String("conn", id[:8])),
		}
		c.run(r.Context())
	}
}

// connection couples one websocket to at most one (session, name) binding.
type connection struct {
	id     string
	conn   *websocket.Conn
	outbox chan protocol.Message
	reg    *registry.Registry
	log    *zap.Logger

	sess *session.Session
	name string
}

func (c *connection) run(parent context.Context) {
	ctx, cancel := context.WithCancel(parent)
	defer cancel()
	// A lost connection is a departure, exactly once.
	defer c.leave()

	go c.writePump(ctx, cancel)

	for {
		_, data, err := c.conn.Read(ctx)
		if err != nil {
			switch websocket.CloseStatus(err) {
			case websocket.StatusNormalClosure, websocket.StatusGoingAway:
			default:
				c.log.Debug("read loop ended", zap.Error(err))
			}
			return
		}
		c.dispatch(ctx, data)
	}
}

func (c *connection) writePump(ctx context.Context, cancel context.CancelFunc) {
	defer cancel()
	for {
		select {
		case <-ctx.Done():
			return
		case m := <-c.outbox:
			payload, err := protocol.Encode(m)
			if err != nil {
				c.log.Error("encode outbound message", zap.Error(err))
				continue
			}
			wctx, wcancel := context.WithTimeout(ctx, writeTimeout)
			err = c.conn.Write(wctx, websocket.MessageText, payload)
			wcancel()
			if err != nil {
				return
			}
		}
	}
}

func (c *connection) dispatch(ctx context.Context, data []byte) {
	m, err := protocol.Decode(data)
	if err != nil {
		// Malformed or unknown envelopes are dropped, never fatal.
		c.log.Warn("ignoring inbound message", zap.Error(err))
		return
	}

	switch msg := m.(type) {
	case protocol.CreateSessionRequest:
		c.createSession(ctx, msg)

	case protocol.JoinSessionRequest:
		c.joinSession(ctx, msg)

	case protocol.TopicChangeRequest:
		if c.sess == nil {
			c.enqueue(protocol.ErrorResponse{Error: protocol.ErrCodeUnknownParticipant})
			return
		}
		c.sess.Inbox() <- session.ChangeTopic{ConnID: c.id, Topic: msg.TrelloCard}

	case protocol.VoteRequest:
		if c.sess == nil {
			c.enqueue(protocol.ErrorResponse{Error: protocol.ErrCodeUnknownParticipant})
			return
		}
		if !vote.Valid(msg.Vote) {
			c.log.Warn("ignoring vote outside the vocabulary", zap.String("vote", string(msg.Vote)))
			return
		}
		c.sess.Inbox() <- session.CastVote{ConnID: c.id, IssueID: msg.IssueID, Value: msg.Vote}

	case protocol.NewIssueRequest:
		if c.sess == nil {
			c.enqueue(protocol.ErrorResponse{Error: protocol.ErrCodeUnknownParticipant})
			return
		}
		c.sess.Inbox() <- session.StartIssue{ConnID: c.id}

	default:
		c.log.Warn("ignoring server-bound envelope of outbound type")
	}
}

func (c *connection) createSession(ctx context.Context, msg protocol.CreateSessionRequest) {
	reply := make(chan registry.CreateResult, 1)
	c.reg.Inbox() <- registry.CreateSession{ParticipantName: msg.ParticipantName, Reply: reply}

	var res registry.CreateResult
	select {
	case res = <-reply:
	case <-ctx.Done():
		return
	}
	if res.Err != nil {
		c.enqueue(protocol.SessionJoinErrorResponse{Error: protocol.ErrCodeInvalidName})
		return
	}
	c.bind(ctx, res.Session, msg.ParticipantName)
}

func (c *connection) joinSession(ctx context.Context, msg protocol.JoinSessionRequest) {
	if strings.TrimSpace(msg.ParticipantName) == "" {
		c.enqueue(protocol.SessionJoinErrorResponse{
			SessionID: msg.SessionID,
			Error:     protocol.ErrCodeInvalidName,
		})
		return
	}

	reply := make(chan *session.Session, 1)
	c.reg.Inbox() <- registry.GetSession{ID: msg.SessionID, Reply: reply}

	var sess *session.Session
	select {
	case sess = <-reply:
	case <-ctx.Done():
		return
	}
	if sess == nil {
		c.enqueue(protocol.SessionJoinErrorResponse{
			SessionID: msg.SessionID,
			Error:     protocol.ErrCodeUnknownSession,
		})
		return
	}
	c.bind(ctx, sess, msg.ParticipantName)
}

func (c *connection) bind(ctx context.Context, sess *session.Session, name string) {
	if c.sess != nil && c.sess != sess {
		// Rebinding to a different session replaces the old binding.
		c.leave()
	}

	reply := make(chan error, 1)
	sess.Inbox() <- session.Join{ConnID: c.id, Name: name, Outbox: c.outbox, Reply: reply}

	var err error
	select {
	case err = <-reply:
	case <-ctx.Done():
		// The connection died with the join in flight. The session may
		// still process it, so make sure the binding doesn't outlive us.
		sess.Inbox() <- session.Leave{ConnID: c.id}
		return
	}
	if err != nil {
		switch {
		case errors.Is(err, session.ErrNameTaken):
			c.enqueue(protocol.SessionJoinErrorResponse{
				SessionID: sess.ID(),
				Error:     protocol.ErrCodeParticipantNameTaken,
			})
		case errors.Is(err, session.ErrSessionClosed):
			// The session retired between lookup and join; to the client
			// that's a session that no longer exists.
			c.enqueue(protocol.SessionJoinErrorResponse{
				SessionID: sess.ID(),
				Error:     protocol.ErrCodeUnknownSession,
			})
		}
		return
	}
	c.sess, c.name = sess, name
	c.log.Info("connection bound", zap.Int64("session", sess.ID()), zap.String("name", name))
}

func (c *connection) leave() {
	if c.sess == nil {
		return
	}
	c.sess.Inbox() <- session.Leave{ConnID: c.id}
	c.sess, c.name = nil, ""
}

func (c *connection) enqueue(m protocol.Message) {
	select {
	case c.outbox <- m:
	default:
		c.log.Warn("outbox full, dropping message")
	}
}
