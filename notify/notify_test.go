// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package notify

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"

	"github.com/danielhkuo/coinpoll/models"
)

func TestFeedRing(t *testing.T) {
	f := NewFeed(3)
	if got := f.Recent(0); len(got) != 0 {
		t.Fatalf("empty feed returned %d items", len(got))
	}

	for _, title := range []string{"a", "b", "c", "d"} {
		f.Emit(models.Notification{Title: title})
	}

	tests := []struct {
		name  string
		limit int
		want  string
	}{
		{"all", 0, "dcb"},
		{"limited", 2, "dc"},
		{"over capacity", 10, "dcb"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var sb strings.Builder
			for _, n := range f.Recent(tt.limit) {
				sb.WriteString(n.Title)
			}
			if sb.String() != tt.want {
				t.Errorf("Recent(%d) = %q, want %q", tt.limit, sb.String(), tt.want)
			}
		})
	}
}

func TestMultiAndLogger(t *testing.T) {
	var buf bytes.Buffer
	feed := NewFeed(0)
	sink := Multi{Logger{Log: slog.New(slog.NewTextHandler(&buf, nil))}, feed, Discard{}}

	n := New(models.NotifyConfirmed, "Vote confirmed", "Cast "+Coins(3), "p1")
	sink.Emit(n)

	if n.ID == "" || n.CreatedAt.IsZero() {
		t.Errorf("New() did not stamp id and time: %+v", n)
	}
	if got := feed.Recent(1); len(got) != 1 || got[0].ID != n.ID {
		t.Errorf("feed did not receive notification: %+v", got)
	}
	if !strings.Contains(buf.String(), "kind=confirmed") || !strings.Contains(buf.String(), "poll_id=p1") {
		t.Errorf("log output missing fields: %s", buf.String())
	}
}

func TestFormatting(t *testing.T) {
	tests := []struct {
		got, want string
	}{
		{Coins(1), "1 coin"},
		{Coins(3), "3 coins"},
		{Coins(1200), "1,200 coins"},
		{SOL(30_000_000), "0.03 SOL"},
		{SOL(1_500_000_000), "1.5 SOL"},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("got %q, want %q", tt.got, tt.want)
		}
	}
}
