// Package memory keeps a tiny per-sender recency window used to spot first
// contact and to give the model one message of continuity.
package memory

import (
	"log/slog"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// Window is how many recent messages are kept per sender.
const Window = 2

type Config struct {
	MaxSenders int           // least recently seen senders are evicted beyond this
	TTL        time.Duration // idle senders are forgotten after this; 0 = never
	Logger     *slog.Logger
}

// Memory maps (page, sender) to that sender's most recent messages.
//
// Record is a read followed by a write; two messages from the same sender
// handled at the same time may both observe the same history. The window
// only drives greetings and prompt context, so last write wins is fine.
type Memory struct {
	windows *expirable.LRU[string, []string]
	logger  *slog.Logger
}

func New(cfg Config) *Memory {
	if cfg.MaxSenders <= 0 {
		cfg.MaxSenders = 10000
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	m := &Memory{logger: cfg.Logger}
	m.windows = expirable.NewLRU[string, []string](cfg.MaxSenders, func(key string, _ []string) {
		m.logger.Debug("sender window evicted", "key", key)
	}, cfg.TTL)
	return m
}

// Record appends text to the sender's window. It returns the window as it
// was before the append and whether this is the sender's first message.
func (m *Memory) Record(tenantID, senderID, text string) (history []string, first bool) {
	key := windowKey(tenantID, senderID)

	prev, ok := m.windows.Get(key)
	history = append([]string(nil), prev...)

	next := append(append(make([]string, 0, Window+1), prev...), text)
	if len(next) > Window {
		next = next[len(next)-Window:]
	}
	m.windows.Add(key, next)

	return history, !ok || len(prev) == 0
}

// History returns the sender's current window without modifying it.
func (m *Memory) History(tenantID, senderID string) []string {
	w, _ := m.windows.Peek(windowKey(tenantID, senderID))
	return append([]string(nil), w...)
}

// Len returns the number of senders currently remembered.
func (m *Memory) Len() int {
	return m.windows.Len()
}

// Sender ids are scoped to a page by the platform, so the page is part of the key.
func windowKey(tenantID, senderID string) string {
	return tenantID + "/" + senderID
}
