package hub

import "resolvex/backend/internal/models"

// Client is one live connection watching a single complaint.
// It abstracts the transport so the hub can manage connections uniformly.
type Client interface {
	// GetID returns a connection-unique identifier.
	GetID() string
	// GetUserID returns the authenticated user behind the connection.
	GetUserID() uint
	// GetComplaintID returns the complaint the client watches.
	GetComplaintID() uint

	// GetSendChannel returns the channel the hub pushes events to.
	GetSendChannel() chan<- models.ComplaintEvent

	// Run starts the client's read and write pumps.
	Run()
	// Close shuts down the outgoing channel, which ends the write pump.
	Close()
}
