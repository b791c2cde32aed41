package checkpoint

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

var ErrNotFound = errors.New("checkpoint not found")

type Store interface {
	Append(ctx context.Context, rec *Record) error
	Latest(ctx context.Context, sessionID string) (*Record, error)
	List(ctx context.Context, sessionID string, limit int) ([]*Record, error)
	Get(ctx context.Context, id uuid.UUID) (*Record, error)
}

type checkpointRow struct {
	bun.BaseModel `bun:"table:checkpoints,alias:cp"`

	ID           string    `bun:"id,pk"`
	SessionID    string    `bun:"session_id,notnull"`
	TenantID     string    `bun:"tenant_id,notnull"`
	UserID       string    `bun:"user_id,notnull"`
	Seq          int64     `bun:"seq,notnull"`
	Step         string    `bun:"step,notnull"`
	Next         string    `bun:"next,notnull"`
	ActiveWorker string    `bun:"active_worker,notnull"`
	StateGz      []byte    `bun:"state_gz,notnull"`
	ByteSize     int64     `bun:"byte_size,notnull"`
	MessageCount int       `bun:"message_count,notnull"`
	CreatedAt    time.Time `bun:"created_at,notnull"`
}

func (r *checkpointRow) toRecord(withState bool) (*Record, error) {
	id, err := uuid.Parse(r.ID)
	if err != nil {
		return nil, fmt.Errorf("parse checkpoint id %q: %w", r.ID, err)
	}
	rec := &Record{
		ID:           id,
		TenantID:     r.TenantID,
		UserID:       r.UserID,
		SessionID:    r.SessionID,
		Seq:          r.Seq,
		Step:         r.Step,
		Next:         r.Next,
		ActiveWorker: r.ActiveWorker,
		ByteSize:     r.ByteSize,
		MessageCount: r.MessageCount,
		CreatedAt:    r.CreatedAt.UTC(),
	}
	if withState {
		msgs, err := DecodeMessages(r.StateGz)
		if err != nil {
			return nil, err
		}
		rec.Messages = msgs
	}
	return rec, nil
}

// SQLStore keeps checkpoints in a bun database.
type SQLStore struct {
	db  *bun.DB
	now func() time.Time
}

var _ Store = (*SQLStore)(nil)

func NewSQLStore(ctx context.Context, db *bun.DB) (*SQLStore, error) {
	if db == nil {
		return nil, errors.New("database is required")
	}
	if _, err := db.NewCreateTable().Model((*checkpointRow)(nil)).IfNotExists().Exec(ctx); err != nil {
		return nil, fmt.Errorf("create checkpoints table: %w", err)
	}
	_, err := db.NewCreateIndex().Model((*checkpointRow)(nil)).
		Index("idx_checkpoints_session_seq").
		Unique().
		Column("session_id", "seq").
		IfNotExists().
		Exec(ctx)
	if err != nil {
		return nil, fmt.Errorf("create checkpoints index: %w", err)
	}
	return &SQLStore{db: db, now: time.Now}, nil
}

// Append assigns the record its id, sequence and timestamp and stores it.
func (s *SQLStore) Append(ctx context.Context, rec *Record) error {
	if rec == nil {
		return errors.New("checkpoint record is nil")
	}
	if strings.TrimSpace(rec.SessionID) == "" {
		return errors.New("checkpoint session id is empty")
	}

	id, err := uuid.NewV7()
	if err != nil {
		return fmt.Errorf("generate id: %w", err)
	}
	compressed, err := EncodeMessages(rec.Messages)
	if err != nil {
		return err
	}
	now := s.now().UTC()

	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var last int64
		err := tx.NewSelect().Model((*checkpointRow)(nil)).
			ColumnExpr("COALESCE(MAX(seq), 0)").
			Where("session_id = ?", rec.SessionID).
			Scan(ctx, &last)
		if err != nil {
			return fmt.Errorf("select checkpoint seq: %w", err)
		}

		row := &checkpointRow{
			ID:           id.String(),
			SessionID:    rec.SessionID,
			TenantID:     rec.TenantID,
			UserID:       rec.UserID,
			Seq:          last + 1,
			Step:         rec.Step,
			Next:         rec.Next,
			ActiveWorker: rec.ActiveWorker,
			StateGz:      compressed,
			ByteSize:     int64(len(compressed)),
			MessageCount: len(rec.Messages),
			CreatedAt:    now,
		}
		if _, err := tx.NewInsert().Model(row).Exec(ctx); err != nil {
			return fmt.Errorf("insert checkpoint: %w", err)
		}

		rec.ID = id
		rec.Seq = row.Seq
		rec.ByteSize = row.ByteSize
		rec.MessageCount = row.MessageCount
		rec.CreatedAt = now
		return nil
	})
}

// Latest returns the newest checkpoint of a session with its messages.
func (s *SQLStore) Latest(ctx context.Context, sessionID string) (*Record, error) {
	row := new(checkpointRow)
	err := s.db.NewSelect().Model(row).
		Where("session_id = ?", sessionID).
		OrderExpr("seq DESC").
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select latest checkpoint: %w", err)
	}
	return row.toRecord(true)
}

// List returns checkpoint metadata, newest first, without messages.
func (s *SQLStore) List(ctx context.Context, sessionID string, limit int) ([]*Record, error) {
	if limit <= 0 {
		limit = 20
	}
	var rows []*checkpointRow
	err := s.db.NewSelect().Model(&rows).
		ExcludeColumn("state_gz").
		Where("session_id = ?", sessionID).
		OrderExpr("seq DESC").
		Limit(limit).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("list checkpoints: %w", err)
	}
	out := make([]*Record, 0, len(rows))
	for _, r := range rows {
		rec, err := r.toRecord(false)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

func (s *SQLStore) Get(ctx context.Context, id uuid.UUID) (*Record, error) {
	row := new(checkpointRow)
	err := s.db.NewSelect().Model(row).Where("id = ?", id.String()).Limit(1).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select checkpoint: %w", err)
	}
	return row.toRecord(true)
}
