package domain

import "time"

// Message is a single inbound chat message as decoded from the transport.
// It is immutable once decoded and consumed exactly once by the dispatcher.
type Message struct {
	ID             string
	SenderID       string
	Text           string
	ArrivedAt      time.Time
	ConversationID string
	ReplyURL       string
}

// Ack is the acknowledgement outcome returned to the transport.
type Ack string

const (
	AckAccepted Ack = "OK"
	AckRejected Ack = "FAIL"
)
