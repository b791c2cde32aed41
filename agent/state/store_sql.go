package state

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/uptrace/bun"
)

type sessionRow struct {
	bun.BaseModel `bun:"table:sessions,alias:s"`

	TenantID       string    `bun:"tenant_id,pk"`
	UserID         string    `bun:"user_id,pk"`
	SessionID      string    `bun:"session_id,pk"`
	Title          string    `bun:"title,notnull"`
	Status         string    `bun:"status,notnull"`
	ActiveWorker   string    `bun:"active_worker,notnull"`
	MessageCount   int       `bun:"message_count,notnull"`
	CompactionMark int64     `bun:"compaction_mark,notnull"`
	CreatedAt      time.Time `bun:"created_at,notnull"`
	LastActivityAt time.Time `bun:"last_activity_at,notnull"`
}

func (r *sessionRow) toSession() *Session {
	return &Session{
		ID:             r.SessionID,
		TenantID:       r.TenantID,
		UserID:         r.UserID,
		SessionID:      r.SessionID,
		Title:          r.Title,
		Status:         Status(r.Status),
		ActiveWorker:   r.ActiveWorker,
		MessageCount:   r.MessageCount,
		CompactionMark: r.CompactionMark,
		CreatedAt:      r.CreatedAt.UTC(),
		LastActivityAt: r.LastActivityAt.UTC(),
	}
}

func rowFromSession(s *Session) *sessionRow {
	return &sessionRow{
		TenantID:       s.TenantID,
		UserID:         s.UserID,
		SessionID:      s.SessionID,
		Title:          s.Title,
		Status:         string(s.Status),
		ActiveWorker:   s.ActiveWorker,
		MessageCount:   s.MessageCount,
		CompactionMark: s.CompactionMark,
		CreatedAt:      s.CreatedAt.UTC(),
		LastActivityAt: s.LastActivityAt.UTC(),
	}
}

// SQLStore keeps sessions in the same database as the ledger.
type SQLStore struct {
	db *bun.DB
}

func NewSQLStore(ctx context.Context, db *bun.DB) (*SQLStore, error) {
	if db == nil {
		return nil, errors.New("database is required")
	}
	if _, err := db.NewCreateTable().Model((*sessionRow)(nil)).IfNotExists().Exec(ctx); err != nil {
		return nil, fmt.Errorf("create sessions table: %w", err)
	}
	return &SQLStore{db: db}, nil
}

func (s *SQLStore) Read(ctx context.Context, key Key) (*Session, error) {
	if err := key.Validate(); err != nil {
		return nil, err
	}
	row := new(sessionRow)
	err := s.db.NewSelect().Model(row).
		Where("tenant_id = ?", key.TenantID).
		Where("user_id = ?", key.UserID).
		Where("session_id = ?", key.SessionID).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select session: %w", err)
	}
	return row.toSession(), nil
}

func (s *SQLStore) Upsert(ctx context.Context, sess *Session) error {
	if sess == nil {
		return ErrNilSession
	}
	if err := sess.Validate(); err != nil {
		return err
	}
	if sess.LastActivityAt.IsZero() {
		sess.LastActivityAt = time.Now().UTC()
	}
	_, err := s.db.NewInsert().Model(rowFromSession(sess)).
		On("CONFLICT (tenant_id, user_id, session_id) DO UPDATE").
		Set("title = EXCLUDED.title").
		Set("status = EXCLUDED.status").
		Set("active_worker = EXCLUDED.active_worker").
		Set("message_count = EXCLUDED.message_count").
		Set("compaction_mark = EXCLUDED.compaction_mark").
		Set("last_activity_at = EXCLUDED.last_activity_at").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("upsert session: %w", err)
	}
	return nil
}

func (s *SQLStore) PatchActiveWorker(ctx context.Context, key Key, worker string) error {
	if err := key.Validate(); err != nil {
		return err
	}
	res, err := s.db.NewUpdate().Model((*sessionRow)(nil)).
		Set("active_worker = ?", strings.TrimSpace(worker)).
		Where("tenant_id = ?", key.TenantID).
		Where("user_id = ?", key.UserID).
		Where("session_id = ?", key.SessionID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("patch active worker: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrSessionNotFound
	}
	return nil
}
