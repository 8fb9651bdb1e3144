package registry

import (
	"context"
	"testing"
	"time"

	"github.com/compoker/backend/internal/protocol"
	"github.com/compoker/backend/internal/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	return New(ctx, zap.NewNop())
}

func create(t *testing.T, r *Registry, name string) CreateResult {
	t.Helper()
	reply := make(chan CreateResult, 1)
	r.Inbox() <- CreateSession{ParticipantName: name, Reply: reply}
	select {
	case res := <-reply:
		return res
	case <-time.After(time.Second):
		t.Fatalf("create: no reply")
		return CreateResult{} // unreachable
	}
}

func get(t *testing.T, r *Registry, id int64) *session.Session {
	t.Helper()
	reply := make(chan *session.Session, 1)
	r.Inbox() <- GetSession{ID: id, Reply: reply}
	select {
	case sess := <-reply:
		return sess
	case <-time.After(time.Second):
		t.Fatalf("get: no reply")
		return nil // unreachable
	}
}

func TestCreateThenGetSamePointer(t *testing.T) {
	r := newTestRegistry(t)

	res := create(t, r, "Alice")
	require.NoError(t, res.Err)
	require.NotNil(t, res.Session)

	got := get(t, r, res.Session.ID())
	assert.Same(t, res.Session, got)
}

func TestSessionIDsAreMonotonicFromOne(t *testing.T) {
	r := newTestRegistry(t)

	first := create(t, r, "Alice")
	second := create(t, r, "Bob")
	require.NoError(t, first.Err)
	require.NoError(t, second.Err)

	assert.Equal(t, int64(1), first.Session.ID())
	assert.Equal(t, int64(2), second.Session.ID())
}

func TestCreateRejectsBlankNames(t *testing.T) {
	r := newTestRegistry(t)

	for _, name := range []string{"", "   ", "\t\n"} {
		res := create(t, r, name)
		assert.ErrorIs(t, res.Err, ErrInvalidName, "name %q", name)
		assert.Nil(t, res.Session)
	}

	// Nothing was allocated for the failed attempts.
	res := create(t, r, "Alice")
	require.NoError(t, res.Err)
	assert.Equal(t, int64(1), res.Session.ID())
}

func TestGetUnknownSessionIsNil(t *testing.T) {
	r := newTestRegistry(t)
	assert.Nil(t, get(t, r, 999))
}

func TestRemoveSession(t *testing.T) {
	r := newTestRegistry(t)
	res := create(t, r, "Alice")
	require.NoError(t, res.Err)

	r.Inbox() <- RemoveSession{ID: res.Session.ID()}
	assert.Nil(t, get(t, r, res.Session.ID()))
}

func TestEmptiedSessionIsRemovedFromDirectory(t *testing.T) {
	r := newTestRegistry(t)
	res := create(t, r, "Alice")
	require.NoError(t, res.Err)
	id := res.Session.ID()

	out := make(chan protocol.Message, 16)
	reply := make(chan error, 1)
	res.Session.Inbox() <- session.Join{ConnID: "c1", Name: "Alice", Outbox: out, Reply: reply}
	require.NoError(t, <-reply)

	res.Session.Inbox() <- session.Leave{ConnID: "c1"}

	// Retirement travels session -> registry asynchronously.
	deadline := time.Now().Add(time.Second)
	for get(t, r, id) != nil {
		if time.Now().After(deadline) {
			t.Fatalf("session %d was never removed after its last participant left", id)
		}
		time.Sleep(10 * time.Millisecond)
	}
}
