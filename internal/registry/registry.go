package registry

import (
	"context"
	"errors"
	"strings"

	"github.com/compoker/backend/internal/session"
	"go.uber.org/zap"
)

// ErrInvalidName rejects empty or whitespace-only participant names.
var ErrInvalidName = errors.New("invalid participant name")

type Msg interface{ isRegistryMsg() }

// CreateSession allocates a fresh session id and starts its actor. The
// requester still has to Join the returned session to bind a connection.
type CreateSession struct {
	ParticipantName string
	Reply           chan CreateResult
}

type CreateResult struct {
	Session *session.Session
	Err     error
}

type GetSession struct {
	ID    int64
	Reply chan *session.Session // nil when no live session has that id
}

type RemoveSession struct{ ID int64 }

type ShutdownRegistry struct{}

func (CreateSession) isRegistryMsg()    {}
func (GetSession) isRegistryMsg()       {}
func (RemoveSession) isRegistryMsg()    {}
func (ShutdownRegistry) isRegistryMsg() {}

// Registry is the process-wide directory of live sessions. A single
// goroutine owns the map and the id counter; ids are monotonic and never
// reused within a process lifetime.
type Registry struct {
	inbox    chan Msg
	sessions map[int64]*session.Session
	nextID   int64
	log      *zap.Logger
	ctx      context.Context
	cancel   context.CancelFunc
}

func New(parent context.Context, log *zap.Logger) *Registry {
	ctx, cancel := context.WithCancel(parent)
	r := &Registry{
		inbox:    make(chan Msg, 64),
		sessions: make(map[int64]*session.Session),
		log:      log,
		ctx:      ctx,
		cancel:   cancel,
	}
	go r.loop()
	return r
}

func (r *Registry) Inbox() chan<- Msg { return r.inbox }

func (r *Registry) loop() {
	for {
		select {
		case <-r.ctx.Done():
			return

		case m := <-r.inbox:
			switch msg := m.(type) {
			case CreateSession:
				if strings.TrimSpace(msg.ParticipantName) == "" {
					msg.Reply <- CreateResult{Err: ErrInvalidName}
					break
				}
				r.nextID++
				id := r.nextID
				sess := session.New(r.ctx, id, r.retireSession, r.log.Named("session"))
				r.sessions[id] = sess
				r.log.Info("session created", zap.Int64("session", id))
				msg.Reply <- CreateResult{Session: sess}

			case GetSession:
				msg.Reply <- r.sessions[msg.ID] // may be nil

			case RemoveSession:
				if _, ok := r.sessions[msg.ID]; ok {
					delete(r.sessions, msg.ID)
					r.log.Info("session removed", zap.Int64("session", msg.ID))
				}

			case ShutdownRegistry:
				for _, sess := range r.sessions {
					sess.Inbox() <- session.Shutdown{}
				}
				clear(r.sessions)
				r.cancel()
			}
		}
	}
}

// retireSession is called from a session's own goroutine once its last
// binding is gone.
func (r *Registry) retireSession(id int64) {
	select {
	case r.inbox <- RemoveSession{ID: id}:
	case <-r.ctx.Done():
	}
}
