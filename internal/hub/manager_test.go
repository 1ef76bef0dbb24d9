package hub_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"resolvex/backend/internal/hub"
	"resolvex/backend/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startHub(t *testing.T) (*hub.ManagerService, *chanSource, context.CancelFunc) {
	t.Helper()
	src := &chanSource{ch: make(chan models.ComplaintEvent)}
	m := hub.NewManagerService(src, zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = m.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return m, src, cancel
}

func watchers(t *testing.T, m *hub.ManagerService, id uint) int {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	n, err := m.Watchers(ctx, id)
	require.NoError(t, err)
	return n
}

func TestManager_RegisterUnregister(t *testing.T) {
	m, _, _ := startHub(t)
	a := newMockClient(1, 7, 4)

	m.RegisterCh <- a
	assert.Equal(t, 1, watchers(t, m, 7))
	assert.Equal(t, 0, watchers(t, m, 8))

	m.UnregisterCh <- a
	assert.Equal(t, 0, watchers(t, m, 7))
	assert.True(t, a.IsClosed())
}

func TestManager_BroadcastOnlyToWatchersOfComplaint(t *testing.T) {
	m, src, _ := startHub(t)
	a := newMockClient(1, 7, 4)
	b := newMockClient(2, 7, 4)
	other := newMockClient(3, 9, 4)
	m.RegisterCh <- a
	m.RegisterCh <- b
	m.RegisterCh <- other

	src.ch <- models.ComplaintEvent{ComplaintID: 7, Action: models.ActionAssign, Status: models.StatusAssigned, Version: 3}
	// Round-trip through the loop so the broadcast has been handled.
	watchers(t, m, 7)

	for _, c := range []*MockClient{a, b} {
		select {
		case ev := <-c.RecvChannel:
			assert.Equal(t, uint(7), ev.ComplaintID)
			assert.Equal(t, models.StatusAssigned, ev.Status)
		default:
			t.Fatalf("%s did not receive event", c.GetID())
		}
	}
	assert.Empty(t, other.RecvChannel)
}

func TestManager_DropsSlowWatcher(t *testing.T) {
	m, src, _ := startHub(t)
	slow := newMockClient(1, 7, 0)
	m.RegisterCh <- slow

	src.ch <- models.ComplaintEvent{ComplaintID: 7}

	assert.Equal(t, 0, watchers(t, m, 7))
	assert.True(t, slow.IsClosed())
}

func TestManager_StopClosesClients(t *testing.T) {
	src := &chanSource{ch: make(chan models.ComplaintEvent)}
	m := hub.NewManagerService(src, zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Run(ctx) }()

	a := newMockClient(1, 7, 1)
	m.RegisterCh <- a
	cancel()

	require.NoError(t, <-done)
	assert.True(t, a.IsClosed())
}

func TestManager_SubscribeFailure(t *testing.T) {
	src := &chanSource{err: errors.New("redis down")}
	m := hub.NewManagerService(src, zerolog.Nop())

	err := m.Run(context.Background())

	assert.EqualError(t, err, "redis down")
}

func TestManager_WatchersHonoursContext(t *testing.T) {
	m := hub.NewManagerService(&chanSource{}, zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := m.Watchers(ctx, 1)

	assert.ErrorIs(t, err, context.Canceled)
}

func TestManager_RegisterAfterStop(t *testing.T) {
	src := &chanSource{ch: make(chan models.ComplaintEvent)}
	m := hub.NewManagerService(src, zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Run(ctx) }()
	cancel()
	require.NoError(t, <-done)

	c := newMockClient(1, 7, 1)

	assert.False(t, m.Register(c))
	m.Unregister(c)
}
