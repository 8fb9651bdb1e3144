package issue

import (
	"errors"
	"maps"

	"github.com/compoker/backend/internal/vote"
)

var ErrClosed = errors.New("voting already closed")

type State string

const (
	StateOpening State = "Opening"
	StateVoting  State = "Voting"
	StateClosing State = "Closing"
)

// Issue is a single estimation round. Ids are monotonic within a session.
// The zero Outcome ("") means the round has not been closed yet.
type Issue struct {
	ID      int64
	State   State
	Topic   string
	Votes   map[string]vote.Vote
	Outcome vote.Vote
}

// New returns the first issue of a session. It sits in Opening until the
// first topic change or vote arrives.
func New() *Issue {
	return &Issue{
		ID:    1,
		State: StateOpening,
		Votes: make(map[string]vote.Vote),
	}
}

// Next returns the successor round: fresh votes, fresh topic, id one higher.
// Only meaningful once the current round is Closing.
func (i *Issue) Next() *Issue {
	return &Issue{
		ID:    i.ID + 1,
		State: StateVoting,
		Votes: make(map[string]vote.Vote),
	}
}

// Cast records v for name, overwriting any earlier vote. Last write wins.
func (i *Issue) Cast(name string, v vote.Vote) error {
	if i.State == StateClosing {
		return ErrClosed
	}
	i.activate()
	i.Votes[name] = v
	return nil
}

// SetTopic updates the topic without touching votes or resetting the round.
func (i *Issue) SetTopic(topic string) {
	i.activate()
	i.Topic = topic
}

// RemoveVote drops name's vote while the round is still open. Votes already
// revealed stay part of the record.
func (i *Issue) RemoveVote(name string) {
	if i.State != StateClosing {
		delete(i.Votes, name)
	}
}

// Close moves the round to its terminal state and fixes the outcome.
// Calling it again changes nothing.
func (i *Issue) Close() {
	if i.State == StateClosing {
		return
	}
	i.State = StateClosing
	cast := make([]vote.Vote, 0, len(i.Votes))
	for _, v := range i.Votes {
		cast = append(cast, v)
	}
	i.Outcome = vote.Outcome(cast)
}

// AllVoted reports whether every roster member has a vote on record. An empty
// roster never closes a round.
func (i *Issue) AllVoted(roster []string) bool {
	if len(roster) == 0 {
		return false
	}
	for _, name := range roster {
		if _, ok := i.Votes[name]; !ok {
			return false
		}
	}
	return true
}

// Clone returns an independent copy of the issue.
func (i *Issue) Clone() Issue {
	c := *i
	c.Votes = maps.Clone(i.Votes)
	return c
}

// View projects the issue for one viewer. Before revelation every other
// participant's value is replaced by the Hidden marker; the viewer always
// sees their own vote. Once Closing, everyone sees the real map. Deriving
// the masked view on read keeps a single source of truth for the votes.
func (i *Issue) View(viewer string) Issue {
	c := i.Clone()
	if c.State == StateClosing {
		return c
	}
	for name := range c.Votes {
		if name != viewer {
			c.Votes[name] = vote.Hidden
		}
	}
	return c
}

func (i *Issue) activate() {
	if i.State == StateOpening {
		i.State = StateVoting
	}
}
