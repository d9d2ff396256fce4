// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/danielhkuo/coinpoll/remote"
)

// Local is an in-process change feed. Published changes are delivered
// synchronously to every matching subscriber. The network feeds use it to
// fan out what they receive.
type Local struct {
	mu     sync.Mutex
	subs   map[int]subscription
	nextID int
	closed bool
}

type subscription struct {
	tables   []string
	onChange func(remote.Change)
}

func NewLocal() *Local {
	return &Local{subs: make(map[int]subscription)}
}

func (l *Local) Publish(_ context.Context, change remote.Change) error {
	l.dispatch(change)
	return nil
}

func (l *Local) dispatch(change remote.Change) {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return
	}
	targets := make([]func(remote.Change), 0, len(l.subs))
	for _, s := range l.subs {
		if remote.Matches(s.tables, change) {
			targets = append(targets, s.onChange)
		}
	}
	l.mu.Unlock()

	for _, fn := range targets {
		fn(change)
	}
}

func (l *Local) Subscribe(tables []string, onChange func(remote.Change)) (func(), error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil, fmt.Errorf("subscribe: feed closed")
	}
	id := l.nextID
	l.nextID++
	l.subs[id] = subscription{tables: append([]string(nil), tables...), onChange: onChange}

	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			delete(l.subs, id)
			l.mu.Unlock()
		})
	}, nil
}

// Subscribers returns the number of active subscriptions.
func (l *Local) Subscribers() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.subs)
}

func (l *Local) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.closed = true
	l.subs = make(map[int]subscription)
	return nil
}

func encodeChange(change remote.Change) (string, error) {
	b, err := json.Marshal(change)
	if err != nil {
		return "", fmt.Errorf("encode change: %w", err)
	}
	return string(b), nil
}

func decodeChange(payload string) (remote.Change, error) {
	var change remote.Change
	if err := json.Unmarshal([]byte(payload), &change); err != nil {
		return remote.Change{}, fmt.Errorf("decode change: %w", err)
	}
	if change.Table == "" {
		return remote.Change{}, fmt.Errorf("decode change: missing table")
	}
	return change, nil
}
