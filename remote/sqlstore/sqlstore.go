// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"time"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/danielhkuo/coinpoll/db"
	"github.com/danielhkuo/coinpoll/models"
	"github.com/danielhkuo/coinpoll/remote"
)

// Store implements remote.Store over database/sql.
type Store struct {
	db      *sql.DB
	dialect string
	feed    remote.Feed
	publish bool
}

// Option configures a Store.
type Option func(*Store)

// WithFeed attaches a change feed. When publish is true every successful
// write is also published on it; set it to false when the database emits
// notifications itself (postgres triggers).
func WithFeed(feed remote.Feed, publish bool) Option {
	return func(s *Store) {
		s.feed = feed
		s.publish = publish
	}
}

// Open connects to the database and applies the schema.
func Open(dialect, dsn string, opts ...Option) (*Store, error) {
	driver, err := db.DriverName(dialect)
	if err != nil {
		return nil, err
	}

	conn, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if dialect == db.DialectSQLite {
		// SQLite only supports one writer at a time
		conn.SetMaxOpenConns(1)
		for _, pragma := range []string{
			"PRAGMA journal_mode = WAL",
			"PRAGMA busy_timeout = 5000",
		} {
			if _, err := conn.Exec(pragma); err != nil {
				conn.Close()
				return nil, fmt.Errorf("failed to execute %q: %w", pragma, err)
			}
		}
	}

	if err := db.CreateSchema(conn, dialect); err != nil {
		conn.Close()
		return nil, err
	}

	return New(conn, dialect, opts...), nil
}

// New wraps an existing connection whose schema is already in place.
func New(conn *sql.DB, dialect string, opts ...Option) *Store {
	s := &Store{db: conn, dialect: dialect}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// DB returns the underlying connection.
func (s *Store) DB() *sql.DB {
	return s.db
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) FetchPolls(ctx context.Context) ([]models.Poll, error) {
	rows, err := s.queryRows(ctx, `SELECT `+strings.Join(models.PollColumns, ", ")+` FROM polls ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("fetch polls: %w", err)
	}
	polls := make([]models.Poll, 0, len(rows))
	for _, r := range rows {
		p, err := models.PollFromRow(r)
		if err != nil {
			return nil, fmt.Errorf("fetch polls: %w", err)
		}
		polls = append(polls, p)
	}
	return polls, nil
}

func (s *Store) FetchVotes(ctx context.Context, filter remote.VoteFilter) ([]models.Vote, error) {
	query := `SELECT ` + strings.Join(models.VoteColumns, ", ") + ` FROM votes`
	var conds []string
	var args []any
	if filter.PollID != "" {
		args = append(args, filter.PollID)
		conds = append(conds, "poll_id = $"+strconv.Itoa(len(args)))
	}
	if filter.Voter != "" {
		args = append(args, filter.Voter)
		conds = append(conds, "voter = $"+strconv.Itoa(len(args)))
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY poll_id, voter"

	rows, err := s.queryRows(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("fetch votes: %w", err)
	}
	votes := make([]models.Vote, 0, len(rows))
	for _, r := range rows {
		v, err := models.VoteFromRow(r)
		if err != nil {
			return nil, fmt.Errorf("fetch votes: %w", err)
		}
		votes = append(votes, v)
	}
	return votes, nil
}

func (s *Store) FetchUsers(ctx context.Context) ([]models.UserAccount, error) {
	rows, err := s.queryRows(ctx, `SELECT `+strings.Join(models.UserColumns, ", ")+` FROM users ORDER BY wallet`)
	if err != nil {
		return nil, fmt.Errorf("fetch users: %w", err)
	}
	users := make([]models.UserAccount, 0, len(rows))
	for _, r := range rows {
		u, err := models.UserFromRow(r)
		if err != nil {
			return nil, fmt.Errorf("fetch users: %w", err)
		}
		users = append(users, u)
	}
	return users, nil
}

func (s *Store) UpsertPoll(ctx context.Context, row models.Row) error {
	id, _ := row["id"].(string)
	if id == "" {
		return fmt.Errorf("upsert poll: missing id")
	}
	if err := s.upsert(ctx, "polls", []string{"id"}, models.PollColumns, row); err != nil {
		return fmt.Errorf("upsert poll %s: %w", id, err)
	}
	s.notify(ctx, models.TablePolls, remote.OpInsert, id)
	return nil
}

func (s *Store) UpdatePoll(ctx context.Context, id string, fields models.Row) error {
	if err := s.update(ctx, "polls", models.PollColumns, fields, map[string]any{"id": id}); err != nil {
		return fmt.Errorf("update poll %s: %w", id, err)
	}
	s.notify(ctx, models.TablePolls, remote.OpUpdate, id)
	return nil
}

// DeletePoll removes the poll and every vote on it.
func (s *Store) DeletePoll(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("delete poll %s: begin tx: %w", id, err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM votes WHERE poll_id = $1`, id); err != nil {
		return fmt.Errorf("delete poll %s: votes: %w", id, err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM polls WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete poll %s: %w", id, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("delete poll %s: commit: %w", id, err)
	}

	s.notify(ctx, models.TablePolls, remote.OpDelete, id)
	return nil
}

func (s *Store) UpsertVote(ctx context.Context, row models.Row) error {
	pollID, _ := row["poll_id"].(string)
	voter, _ := row["voter"].(string)
	if pollID == "" || voter == "" {
		return fmt.Errorf("upsert vote: missing poll_id or voter")
	}
	if err := s.upsert(ctx, "votes", []string{"poll_id", "voter"}, models.VoteColumns, row); err != nil {
		return fmt.Errorf("upsert vote %s/%s: %w", pollID, voter, err)
	}
	s.notify(ctx, models.TableVotes, remote.OpInsert, pollID)
	return nil
}

func (s *Store) UpdateVote(ctx context.Context, pollID, voter string, fields models.Row) error {
	err := s.update(ctx, "votes", models.VoteColumns, fields, map[string]any{"poll_id": pollID, "voter": voter})
	if err != nil {
		return fmt.Errorf("update vote %s/%s: %w", pollID, voter, err)
	}
	s.notify(ctx, models.TableVotes, remote.OpUpdate, pollID)
	return nil
}

// UpdateUser writes fields for wallet, creating the account row on first
// activity.
func (s *Store) UpdateUser(ctx context.Context, wallet string, fields models.Row) error {
	row := make(models.Row, len(fields)+1)
	for k, v := range fields {
		row[k] = v
	}
	row["wallet"] = wallet
	if err := s.upsert(ctx, "users", []string{"wallet"}, models.UserColumns, row); err != nil {
		return fmt.Errorf("update user %s: %w", wallet, err)
	}
	return nil
}

func (s *Store) Subscribe(tables []string, onChange func(remote.Change)) (func(), error) {
	if s.feed == nil {
		return func() {}, nil
	}
	return s.feed.Subscribe(tables, onChange)
}

func (s *Store) notify(ctx context.Context, table, op, id string) {
	if s.feed == nil || !s.publish {
		return
	}
	if err := s.feed.Publish(ctx, remote.Change{Table: table, Op: op, ID: id}); err != nil {
		slog.Warn("failed to publish change", "table", table, "id", id, "error", err)
	}
}

func (s *Store) upsert(ctx context.Context, table string, keys, allowed []string, row models.Row) error {
	cols, err := columnsOf(row, allowed)
	if err != nil {
		return err
	}

	placeholders := make([]string, len(cols))
	args := make([]any, len(cols))
	for i, c := range cols {
		placeholders[i] = "$" + strconv.Itoa(i+1)
		args[i] = encodeValue(row[c])
	}

	var sets []string
	for _, c := range cols {
		if !contains(keys, c) {
			sets = append(sets, c+" = excluded."+c)
		}
	}
	conflict := "DO NOTHING"
	if len(sets) > 0 {
		conflict = "DO UPDATE SET " + strings.Join(sets, ", ")
	}

	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) ON CONFLICT (%s) %s",
		table, strings.Join(cols, ", "), strings.Join(placeholders, ", "), strings.Join(keys, ", "), conflict)
	_, err = s.db.ExecContext(ctx, query, args...)
	return err
}

func (s *Store) update(ctx context.Context, table string, allowed []string, fields models.Row, where map[string]any) error {
	cols, err := columnsOf(fields, allowed)
	if err != nil {
		return err
	}
	if len(cols) == 0 {
		return nil
	}

	var sets []string
	var args []any
	for _, c := range cols {
		args = append(args, encodeValue(fields[c]))
		sets = append(sets, c+" = $"+strconv.Itoa(len(args)))
	}

	whereCols := make([]string, 0, len(where))
	for c := range where {
		whereCols = append(whereCols, c)
	}
	sort.Strings(whereCols)
	var conds []string
	for _, c := range whereCols {
		args = append(args, where[c])
		conds = append(conds, c+" = $"+strconv.Itoa(len(args)))
	}

	query := fmt.Sprintf("UPDATE %s SET %s WHERE %s", table, strings.Join(sets, ", "), strings.Join(conds, " AND "))
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err == nil && n == 0 {
		return remote.ErrNotFound
	}
	return nil
}

func (s *Store) queryRows(ctx context.Context, query string, args ...any) ([]models.Row, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	var out []models.Row
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		r := make(models.Row, len(cols))
		for i, c := range cols {
			if b, ok := values[i].([]byte); ok {
				r[c] = string(b)
			} else {
				r[c] = values[i]
			}
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// columnsOf returns the row's keys in sorted order, rejecting any column
// not in allowed. Column names are interpolated into SQL, so this check is
// what keeps queries safe.
func columnsOf(row models.Row, allowed []string) ([]string, error) {
	cols := make([]string, 0, len(row))
	for c := range row {
		if !contains(allowed, c) {
			return nil, fmt.Errorf("unknown column %q", c)
		}
		cols = append(cols, c)
	}
	sort.Strings(cols)
	return cols, nil
}

// encodeValue converts row values to column values: slices become JSON
// text and times become RFC 3339 text in UTC.
func encodeValue(v any) any {
	switch v := v.(type) {
	case []string, []int64:
		b, _ := json.Marshal(v)
		return string(b)
	case time.Time:
		if v.IsZero() {
			return ""
		}
		return v.UTC().Format(time.RFC3339Nano)
	case models.PollStatus:
		return string(v)
	case int:
		return int64(v)
	default:
		return v
	}
}

func contains(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}
