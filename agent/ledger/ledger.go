// Package ledger records the user-visible messages of each session with a
// per-session sequence number, so the router can count active history and
// mark compacted spans as superseded.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/uptrace/bun"

	contractx "github.com/tanpawarit/Chative-Travel-Router/agent/contract"
	statex "github.com/tanpawarit/Chative-Travel-Router/agent/state"
)

type entryRow struct {
	bun.BaseModel `bun:"table:message_ledger,alias:ml"`

	SessionID   string    `bun:"session_id,pk"`
	Seq         int64     `bun:"seq,pk"`
	TenantID    string    `bun:"tenant_id,notnull"`
	UserID      string    `bun:"user_id,notnull"`
	Role        string    `bun:"role,notnull"`
	Worker      string    `bun:"worker,notnull"`
	Content     string    `bun:"content,notnull"`
	IsSummary   bool      `bun:"is_summary,notnull"`
	Superseded  bool      `bun:"superseded,notnull"`
	SummaryFrom int64     `bun:"summary_from,notnull"`
	SummaryTo   int64     `bun:"summary_to,notnull"`
	CreatedAt   time.Time `bun:"created_at,notnull"`
}

// Entry is one ledgered message.
type Entry struct {
	Seq        int64                  `json:"seq"`
	Role       contractx.Role         `json:"role"`
	Worker     string                 `json:"worker,omitempty"`
	Content    string                 `json:"content"`
	Superseded bool                   `json:"superseded"`
	Summary    *contractx.SummarySpan `json:"summary,omitempty"`
	CreatedAt  time.Time              `json:"created_at"`
}

func (r *entryRow) toEntry() Entry {
	e := Entry{
		Seq:        r.Seq,
		Role:       contractx.Role(r.Role),
		Worker:     r.Worker,
		Content:    r.Content,
		Superseded: r.Superseded,
		CreatedAt:  r.CreatedAt.UTC(),
	}
	if r.IsSummary {
		e.Summary = &contractx.SummarySpan{From: r.SummaryFrom, To: r.SummaryTo, SummarySeq: r.Seq}
	}
	return e
}

type Store struct {
	db  *bun.DB
	now func() time.Time
}

var _ contractx.Ledger = (*Store)(nil)

func NewStore(ctx context.Context, db *bun.DB) (*Store, error) {
	if db == nil {
		return nil, errors.New("database is required")
	}
	if _, err := db.NewCreateTable().Model((*entryRow)(nil)).IfNotExists().Exec(ctx); err != nil {
		return nil, fmt.Errorf("create message_ledger table: %w", err)
	}
	_, err := db.NewCreateIndex().Model((*entryRow)(nil)).
		Index("idx_message_ledger_owner").
		Column("tenant_id", "user_id", "session_id").
		IfNotExists().
		Exec(ctx)
	if err != nil {
		return nil, fmt.Errorf("create message_ledger index: %w", err)
	}
	return &Store{db: db, now: time.Now}, nil
}

// Append stores the ledgered subset of msgs and returns the sequence number
// given to each input message, 0 for the ones that were skipped.
func (s *Store) Append(ctx context.Context, key statex.Key, msgs ...contractx.Message) ([]int64, error) {
	if err := key.Validate(); err != nil {
		return nil, err
	}
	seqs := make([]int64, len(msgs))
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		head, err := headTx(ctx, tx, key)
		if err != nil {
			return err
		}
		rows := make([]*entryRow, 0, len(msgs))
		for i, m := range msgs {
			if !m.Ledgered() {
				continue
			}
			head++
			seqs[i] = head
			rows = append(rows, s.newRow(key, head, m))
		}
		if len(rows) == 0 {
			return nil
		}
		if _, err := tx.NewInsert().Model(&rows).Exec(ctx); err != nil {
			return fmt.Errorf("insert ledger entries: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return seqs, nil
}

// CountActive counts entries that are neither summaries nor superseded.
func (s *Store) CountActive(ctx context.Context, key statex.Key) (int, error) {
	if err := key.Validate(); err != nil {
		return 0, err
	}
	n, err := s.db.NewSelect().Model((*entryRow)(nil)).
		Where("tenant_id = ?", key.TenantID).
		Where("user_id = ?", key.UserID).
		Where("session_id = ?", key.SessionID).
		Where("is_summary = ?", false).
		Where("superseded = ?", false).
		Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("count active ledger entries: %w", err)
	}
	return n, nil
}

// Head returns the highest sequence number of the session, 0 when empty.
func (s *Store) Head(ctx context.Context, key statex.Key) (int64, error) {
	if err := key.Validate(); err != nil {
		return 0, err
	}
	return headTx(ctx, s.db, key)
}

// Summarize supersedes every active entry up to and including upTo and
// appends summary as a new entry that records the replaced span. An empty
// span yields a zero SummarySpan and no write.
func (s *Store) Summarize(ctx context.Context, key statex.Key, upTo int64, summary contractx.Message) (contractx.SummarySpan, error) {
	if err := key.Validate(); err != nil {
		return contractx.SummarySpan{}, err
	}
	if strings.TrimSpace(summary.Content) == "" {
		return contractx.SummarySpan{}, fmt.Errorf("%w: summary content is empty", contractx.ErrValidation)
	}

	var span contractx.SummarySpan
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var from, to int64
		err := tx.NewSelect().Model((*entryRow)(nil)).
			ColumnExpr("COALESCE(MIN(seq), 0)").
			ColumnExpr("COALESCE(MAX(seq), 0)").
			Where("session_id = ?", key.SessionID).
			Where("is_summary = ?", false).
			Where("superseded = ?", false).
			Where("seq <= ?", upTo).
			Scan(ctx, &from, &to)
		if err != nil {
			return fmt.Errorf("select summarizable span: %w", err)
		}
		if to == 0 {
			return nil
		}

		_, err = tx.NewUpdate().Model((*entryRow)(nil)).
			Set("superseded = ?", true).
			Where("session_id = ?", key.SessionID).
			Where("is_summary = ?", false).
			Where("seq BETWEEN ? AND ?", from, to).
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("supersede ledger span: %w", err)
		}

		head, err := headTx(ctx, tx, key)
		if err != nil {
			return err
		}
		row := s.newRow(key, head+1, summary)
		row.IsSummary = true
		row.SummaryFrom = from
		row.SummaryTo = to
		if _, err := tx.NewInsert().Model(row).Exec(ctx); err != nil {
			return fmt.Errorf("insert summary entry: %w", err)
		}
		span = contractx.SummarySpan{From: from, To: to, SummarySeq: row.Seq}
		return nil
	})
	if err != nil {
		return contractx.SummarySpan{}, err
	}
	return span, nil
}

// Discard supersedes the non-summary entries after seq. A turn that failed
// before its checkpoint leaves such entries behind.
func (s *Store) Discard(ctx context.Context, key statex.Key, after int64) (int, error) {
	if err := key.Validate(); err != nil {
		return 0, err
	}
	res, err := s.db.NewUpdate().Model((*entryRow)(nil)).
		Set("superseded = ?", true).
		Where("session_id = ?", key.SessionID).
		Where("is_summary = ?", false).
		Where("superseded = ?", false).
		Where("seq > ?", after).
		Exec(ctx)
	if err != nil {
		return 0, fmt.Errorf("discard ledger entries: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("discard ledger entries: %w", err)
	}
	return int(n), nil
}

// List returns the newest limit entries in sequence order.
func (s *Store) List(ctx context.Context, key statex.Key, limit int) ([]Entry, error) {
	if err := key.Validate(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 50
	}
	var rows []*entryRow
	err := s.db.NewSelect().Model(&rows).
		Where("tenant_id = ?", key.TenantID).
		Where("user_id = ?", key.UserID).
		Where("session_id = ?", key.SessionID).
		OrderExpr("seq DESC").
		Limit(limit).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("list ledger entries: %w", err)
	}
	out := make([]Entry, len(rows))
	for i, r := range rows {
		out[len(rows)-1-i] = r.toEntry()
	}
	return out, nil
}

func (s *Store) newRow(key statex.Key, seq int64, m contractx.Message) *entryRow {
	created := m.CreatedAt
	if created.IsZero() {
		created = s.now()
	}
	return &entryRow{
		SessionID: key.SessionID,
		Seq:       seq,
		TenantID:  key.TenantID,
		UserID:    key.UserID,
		Role:      string(m.Role),
		Worker:    m.Worker,
		Content:   m.Content,
		CreatedAt: created.UTC(),
	}
}

func headTx(ctx context.Context, db bun.IDB, key statex.Key) (int64, error) {
	var head int64
	err := db.NewSelect().Model((*entryRow)(nil)).
		ColumnExpr("COALESCE(MAX(seq), 0)").
		Where("session_id = ?", key.SessionID).
		Scan(ctx, &head)
	if err != nil {
		return 0, fmt.Errorf("select ledger head: %w", err)
	}
	return head, nil
}
