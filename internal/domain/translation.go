package domain

import "time"

// TranslationRecord is the durable trace of one answered message.
type TranslationRecord struct {
	MessageID      string
	SenderID       string
	ConversationID string
	SourceLang     Language
	TargetLang     Language
	Text           string
	Translation    string
	FromCache      bool
	CreatedAt      time.Time
}
