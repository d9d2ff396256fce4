// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package realtime

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/lib/pq"

	"github.com/danielhkuo/coinpoll/remote"
)

// PostgresChannel is the LISTEN/NOTIFY channel shared with the table
// triggers installed by db.CreateSchema.
const PostgresChannel = "coinpoll_changes"

// Postgres is a change feed over PostgreSQL LISTEN/NOTIFY.
type Postgres struct {
	db       *sql.DB
	listener *pq.Listener
	local    *Local
	done     chan struct{}
	wg       sync.WaitGroup
}

// NewPostgres listens on PostgresChannel using a dedicated connection to
// dsn. Publishing goes through db.
func NewPostgres(db *sql.DB, dsn string) (*Postgres, error) {
	listener := pq.NewListener(dsn, 2*time.Second, time.Minute, func(ev pq.ListenerEventType, err error) {
		if err != nil {
			slog.Warn("postgres listener event", "event", ev, "error", err)
		}
	})
	if err := listener.Listen(PostgresChannel); err != nil {
		listener.Close()
		return nil, fmt.Errorf("listen %s: %w", PostgresChannel, err)
	}

	p := &Postgres{
		db:       db,
		listener: listener,
		local:    NewLocal(),
		done:     make(chan struct{}),
	}
	p.wg.Add(1)
	go p.run()
	return p, nil
}

func (p *Postgres) run() {
	defer p.wg.Done()
	ping := time.NewTicker(90 * time.Second)
	defer ping.Stop()

	for {
		select {
		case <-p.done:
			return
		case n, ok := <-p.listener.Notify:
			if !ok {
				return
			}
			// nil after a reconnect: notifications may have been missed,
			// which the periodic reconciliation covers.
			if n == nil {
				continue
			}
			change, err := decodeChange(n.Extra)
			if err != nil {
				slog.Warn("dropping malformed notification", "error", err)
				continue
			}
			p.local.dispatch(change)
		case <-ping.C:
			if err := p.listener.Ping(); err != nil {
				slog.Warn("postgres listener ping failed", "error", err)
			}
		}
	}
}

func (p *Postgres) Publish(ctx context.Context, change remote.Change) error {
	payload, err := encodeChange(change)
	if err != nil {
		return err
	}
	if _, err := p.db.ExecContext(ctx, "SELECT pg_notify($1, $2)", PostgresChannel, payload); err != nil {
		return fmt.Errorf("publish change: %w", err)
	}
	return nil
}

func (p *Postgres) Subscribe(tables []string, onChange func(remote.Change)) (func(), error) {
	return p.local.Subscribe(tables, onChange)
}

func (p *Postgres) Close() error {
	close(p.done)
	err := p.listener.Close()
	p.wg.Wait()
	p.local.Close()
	return err
}
