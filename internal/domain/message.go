package domain

import "time"

// InboundEvent is a single text message unpacked from a webhook delivery.
type InboundEvent struct {
	TenantID  string
	SenderID  string
	Text      string
	RequestID string
	Timestamp time.Time
}

// OutboundMessage is a reply addressed to one recipient of one page.
type OutboundMessage struct {
	TenantID    string `json:"-"`
	RecipientID string `json:"recipient_id"`
	Text        string `json:"text"`
}
