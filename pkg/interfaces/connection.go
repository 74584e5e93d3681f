package interfaces

// ClientConnection is the transport seam between the registry/router and a
// live WebSocket connection. Keeping it narrow lets routing logic run
// against fakes in tests.
type ClientConnection interface {
	// SessionID returns the server-generated identifier for this
	// connection. Unique per socket, never reused.
	SessionID() string

	// WriteJSON queues v for delivery on the connection's single writer.
	WriteJSON(v interface{}) error

	// Close tears the connection down. Safe to call more than once.
	Close() error
}
