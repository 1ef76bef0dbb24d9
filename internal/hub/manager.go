// Package hub fans committed complaint events out to live watchers.
package hub

import (
	"context"

	"resolvex/backend/internal/models"

	"github.com/rs/zerolog"
)

// EventSource streams complaint events, normally from Redis pub/sub so
// every server instance sees every change.
type EventSource interface {
	SubscribeEvents(ctx context.Context) (<-chan models.ComplaintEvent, error)
}

type countRequest struct {
	complaintID uint
	reply       chan int
}

// ManagerService owns the watcher registry. All state is confined to the
// Run goroutine; other goroutines talk to it through the channels.
type ManagerService struct {
	watchers map[uint]map[Client]struct{}

	RegisterCh   chan Client
	UnregisterCh chan Client
	countCh      chan countRequest
	done         chan struct{}

	source EventSource
	log    zerolog.Logger
}

func NewManagerService(src EventSource, log zerolog.Logger) *ManagerService {
	return &ManagerService{
		watchers:     make(map[uint]map[Client]struct{}),
		RegisterCh:   make(chan Client),
		UnregisterCh: make(chan Client),
		countCh:      make(chan countRequest),
		done:         make(chan struct{}),
		source:       src,
		log:          log.With().Str("component", "hub").Logger(),
	}
}

// Run subscribes to the event source and serves registrations and events
// until ctx is done. All clients are closed on return.
func (m *ManagerService) Run(ctx context.Context) error {
	defer close(m.done)
	events, err := m.source.SubscribeEvents(ctx)
	if err != nil {
		return err
	}
	m.log.Info().Msg("hub started")
	defer m.closeAll()

	for {
		select {
		case <-ctx.Done():
			m.log.Info().Msg("hub stopped")
			return nil

		case c := <-m.RegisterCh:
			set, ok := m.watchers[c.GetComplaintID()]
			if !ok {
				set = make(map[Client]struct{})
				m.watchers[c.GetComplaintID()] = set
			}
			set[c] = struct{}{}
			m.log.Debug().Str("client", c.GetID()).Uint("complaint_id", c.GetComplaintID()).Msg("watcher registered")

		case c := <-m.UnregisterCh:
			m.remove(c)

		case req := <-m.countCh:
			req.reply <- len(m.watchers[req.complaintID])

		case ev, ok := <-events:
			if !ok {
				m.log.Warn().Msg("event stream closed")
				return nil
			}
			m.broadcast(ev)
		}
	}
}

func (m *ManagerService) broadcast(ev models.ComplaintEvent) {
	for c := range m.watchers[ev.ComplaintID] {
		select {
		case c.GetSendChannel() <- ev:
		default:
			// Slow watcher: drop it rather than stall the hub.
			m.log.Warn().Str("client", c.GetID()).Msg("watcher too slow, disconnecting")
			m.remove(c)
		}
	}
}

func (m *ManagerService) remove(c Client) {
	set, ok := m.watchers[c.GetComplaintID()]
	if !ok {
		return
	}
	if _, ok := set[c]; !ok {
		return
	}
	delete(set, c)
	if len(set) == 0 {
		delete(m.watchers, c.GetComplaintID())
	}
	c.Close()
}

func (m *ManagerService) closeAll() {
	for _, set := range m.watchers {
		for c := range set {
			c.Close()
		}
	}
	m.watchers = make(map[uint]map[Client]struct{})
}

// Register hands c to the run loop. It reports false once the hub stopped.
func (m *ManagerService) Register(c Client) bool {
	select {
	case m.RegisterCh <- c:
		return true
	case <-m.done:
		return false
	}
}

// Unregister removes c. It is a no-op once the hub stopped.
func (m *ManagerService) Unregister(c Client) {
	select {
	case m.UnregisterCh <- c:
	case <-m.done:
	}
}

// Watchers reports how many clients watch complaintID. It blocks until the
// Run loop answers or ctx is done.
func (m *ManagerService) Watchers(ctx context.Context, complaintID uint) (int, error) {
	req := countRequest{complaintID: complaintID, reply: make(chan int, 1)}
	select {
	case m.countCh <- req:
	case <-m.done:
		return 0, nil
	case <-ctx.Done():
		return 0, ctx.Err()
	}
	select {
	case n := <-req.reply:
		return n, nil
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}
