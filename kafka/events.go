package kafka

import "time"

// CartExpiredEvent is emitted when the rolling TTL drops the cart
type CartExpiredEvent struct {
	EventID      string    `json:"event_id"`
	EventType    string    `json:"event_type"`
	DroppedUnits int       `json:"dropped_units"`
	Timestamp    time.Time `json:"timestamp"`
}

// SessionResetEvent is emitted when reconciliation against the server
// session count drops the local cart
type SessionResetEvent struct {
	EventID     string    `json:"event_id"`
	EventType   string    `json:"event_type"`
	ServerCount int       `json:"server_count"`
	LocalUnits  int       `json:"local_units"`
	Timestamp   time.Time `json:"timestamp"`
}

// SessionCountEvent is consumed from the session server; its count feeds
// cart reconciliation
type SessionCountEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Count     int       `json:"count"`
	Timestamp time.Time `json:"timestamp"`
}

// Event types
const (
	EventTypeCartExpired  = "cart.expired"
	EventTypeSessionReset = "cart.session_reset"
	EventTypeSessionCount = "cart.session_count"
)

// Kafka topics
const (
	TopicCartEvents    = "cart-events"
	TopicSessionCounts = "cart-session-counts"
)
