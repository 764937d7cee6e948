package events

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campusnet/academic-platform/internal/auth"
)

func TestDispatcherDeliversToAllHandlers(t *testing.T) {
	d := NewInMemoryDispatcher()
	var got []string
	d.Subscribe(EventRoleAssigned, func(_ context.Context, e Event) error {
		got = append(got, "first:"+e.Actor.SubjectID)
		return errors.New("boom")
	})
	d.Subscribe(EventRoleAssigned, func(_ context.Context, e Event) error {
		got = append(got, "second:"+e.Actor.SubjectID)
		return nil
	})
	d.Subscribe(EventUserDeleted, func(context.Context, Event) error {
		t.Fatal("unexpected delivery")
		return nil
	})

	err := d.Publish(context.Background(), NewEvent(EventRoleAssigned, Actor{SubjectID: "a-1"}, "/api/admin/users/1/role", nil))
	require.Error(t, err)
	assert.Equal(t, []string{"first:a-1", "second:a-1"}, got)
}

func TestRejectionEvent(t *testing.T) {
	denied := Rejection(auth.Outcome{
		State:    auth.StateRejected,
		Security: auth.SecurityContext{Identity: auth.Identity{SubjectID: "t-1", Role: auth.RoleTeacher}},
		Err:      auth.Forbidden("role TEACHER is not permitted"),
	}, "/api/admin/users")
	assert.Equal(t, EventAccessDenied, denied.Type)
	assert.Equal(t, "t-1", denied.Actor.SubjectID)
	assert.NotEmpty(t, denied.ID)

	rejected := Rejection(auth.Outcome{State: auth.StateMissingCredential, Err: auth.NewError(auth.KindMissingCredential, nil)}, "/api/users")
	assert.Equal(t, EventAuthRejected, rejected.Type)
	payload, ok := rejected.Payload.(RejectionPayload)
	require.True(t, ok)
	assert.Equal(t, "missing_credential", payload.Kind)
	assert.Empty(t, rejected.Actor.SubjectID)
}

func TestAsyncDispatcherDrainsOnClose(t *testing.T) {
	d := NewAsyncDispatcher(8, nil)
	var mu sync.Mutex
	var got []string
	d.Subscribe(EventAuthRejected, func(_ context.Context, e Event) error {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, e.Path)
		return errors.New("ignored")
	})

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, d.Publish(ctx, NewEvent(EventAuthRejected, Actor{}, "/a", nil)))
	require.NoError(t, d.Publish(ctx, NewEvent(EventAuthRejected, Actor{}, "/b", nil)))
	cancel()
	d.Close()

	assert.Equal(t, []string{"/a", "/b"}, got)
	assert.ErrorIs(t, d.Publish(context.Background(), NewEvent(EventAuthRejected, Actor{}, "/c", nil)), ErrQueueFull)
}

func TestAsyncDispatcherDropsWhenFull(t *testing.T) {
	d := NewAsyncDispatcher(1, nil)
	release := make(chan struct{})
	d.Subscribe(EventAccessDenied, func(context.Context, Event) error {
		<-release
		return nil
	})

	var full int
	for i := 0; i < 5; i++ {
		if errors.Is(d.Publish(context.Background(), NewEvent(EventAccessDenied, Actor{}, "/x", nil)), ErrQueueFull) {
			full++
		}
	}
	close(release)
	d.Close()

	assert.Positive(t, full)
	assert.EqualValues(t, full, d.Dropped())
}
