package hub_test

import (
	"context"
	"fmt"
	"sync"

	"resolvex/backend/internal/models"
)

type MockClient struct {
	id          string
	userID      uint
	complaintID uint
	RecvChannel chan models.ComplaintEvent

	mu     sync.Mutex
	closed bool
}

func newMockClient(userID, complaintID uint, buffer int) *MockClient {
	return &MockClient{
		id:          fmt.Sprintf("client-%d-%d", userID, complaintID),
		userID:      userID,
		complaintID: complaintID,
		RecvChannel: make(chan models.ComplaintEvent, buffer),
	}
}

func (c *MockClient) GetID() string        { return c.id }
func (c *MockClient) GetUserID() uint      { return c.userID }
func (c *MockClient) GetComplaintID() uint { return c.complaintID }

func (c *MockClient) GetSendChannel() chan<- models.ComplaintEvent {
	return c.RecvChannel
}

func (c *MockClient) Run() {
	// Not needed for testing
}

func (c *MockClient) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
}

func (c *MockClient) IsClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// chanSource hands the manager a channel the test controls.
type chanSource struct {
	ch  chan models.ComplaintEvent
	err error
}

func (s *chanSource) SubscribeEvents(context.Context) (<-chan models.ComplaintEvent, error) {
	return s.ch, s.err
}
