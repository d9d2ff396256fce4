// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package notify

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/dustin/go-humanize/english"
	"github.com/google/uuid"

	"github.com/danielhkuo/coinpoll/models"
)

// Sink receives user-facing notifications. Emit must not block.
type Sink interface {
	Emit(n models.Notification)
}

// New builds a notification with a fresh id and timestamp.
func New(kind, title, message, pollID string) models.Notification {
	return models.Notification{
		ID:            uuid.NewString(),
		Kind:          kind,
		Title:         title,
		Message:       message,
		RelatedPollID: pollID,
		CreatedAt:     time.Now().UTC(),
	}
}

// Coins renders a coin count for messages, e.g. "1,200 coins".
func Coins(n int64) string {
	return humanize.Comma(n) + " " + english.PluralWord(int(n), "coin", "")
}

// SOL renders a lamport amount for messages, e.g. "0.03 SOL".
func SOL(lamports int64) string {
	return fmt.Sprintf("%s SOL", models.FormatSOL(lamports))
}

// Discard drops every notification.
type Discard struct{}

func (Discard) Emit(models.Notification) {}

// Logger writes notifications to a slog logger.
type Logger struct {
	Log *slog.Logger
}

func (l Logger) Emit(n models.Notification) {
	log := l.Log
	if log == nil {
		log = slog.Default()
	}
	log.Info("notification",
		"id", n.ID,
		"kind", n.Kind,
		"title", n.Title,
		"message", n.Message,
		"poll_id", n.RelatedPollID,
	)
}

// DefaultFeedSize is the number of notifications a Feed retains.
const DefaultFeedSize = 100

// Feed keeps the most recent notifications in a ring buffer.
type Feed struct {
	mu    sync.Mutex
	buf   []models.Notification
	next  int
	count int
}

func NewFeed(size int) *Feed {
	if size <= 0 {
		size = DefaultFeedSize
	}
	return &Feed{buf: make([]models.Notification, size)}
}

func (f *Feed) Emit(n models.Notification) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.buf[f.next] = n
	f.next = (f.next + 1) % len(f.buf)
	if f.count < len(f.buf) {
		f.count++
	}
}

// Recent returns up to limit notifications, newest first. A limit of zero
// or less returns everything retained.
func (f *Feed) Recent(limit int) []models.Notification {
	f.mu.Lock()
	defer f.mu.Unlock()
	if limit <= 0 || limit > f.count {
		limit = f.count
	}
	out := make([]models.Notification, 0, limit)
	for i := 1; i <= limit; i++ {
		idx := (f.next - i + len(f.buf)) % len(f.buf)
		out = append(out, f.buf[idx])
	}
	return out
}

// Multi fans a notification out to every sink in order.
type Multi []Sink

func (m Multi) Emit(n models.Notification) {
	for _, s := range m {
		s.Emit(n)
	}
}
