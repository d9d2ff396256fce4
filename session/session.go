// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package session

import (
	"errors"
	"log/slog"
	"strings"
	"sync"
)

var ErrEmptyWallet = errors.New("wallet address required")

// Wallet holds the identity of the one connected wallet.
type Wallet struct {
	mu        sync.RWMutex
	current   string
	listeners map[int]func(string)
	nextID    int
}

func New() *Wallet {
	return &Wallet{listeners: make(map[int]func(string))}
}

// Current returns the connected wallet, or "" when nobody is connected.
func (w *Wallet) Current() string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.current
}

// Connect switches the session to wallet. Listeners run only when the
// identity actually changed.
func (w *Wallet) Connect(wallet string) error {
	wallet = strings.TrimSpace(wallet)
	if wallet == "" {
		return ErrEmptyWallet
	}
	w.set(wallet)
	return nil
}

func (w *Wallet) Disconnect() {
	w.set("")
}

func (w *Wallet) set(wallet string) {
	w.mu.Lock()
	if w.current == wallet {
		w.mu.Unlock()
		return
	}
	w.current = wallet
	fns := make([]func(string), 0, len(w.listeners))
	for _, fn := range w.listeners {
		fns = append(fns, fn)
	}
	w.mu.Unlock()

	slog.Info("wallet session changed", "wallet", wallet)
	for _, fn := range fns {
		fn(wallet)
	}
}

// OnChange registers fn to run with the new identity after every
// connect or disconnect. The returned function removes it.
func (w *Wallet) OnChange(fn func(wallet string)) (unsubscribe func()) {
	w.mu.Lock()
	id := w.nextID
	w.nextID++
	w.listeners[id] = fn
	w.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			w.mu.Lock()
			delete(w.listeners, id)
			w.mu.Unlock()
		})
	}
}
