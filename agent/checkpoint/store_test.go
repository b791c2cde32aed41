package checkpoint

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	contractx "github.com/tanpawarit/Chative-Travel-Router/agent/contract"
	"github.com/tanpawarit/Chative-Travel-Router/pkg/database"
)

func newTestStore(t *testing.T) *SQLStore {
	t.Helper()
	db, err := database.OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory() error = %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	store, err := NewSQLStore(context.Background(), db)
	if err != nil {
		t.Fatalf("NewSQLStore() error = %v", err)
	}
	return store
}

func sampleMessages() []contractx.Message {
	at := time.Date(2025, 5, 1, 9, 30, 0, 0, time.UTC)
	return []contractx.Message{
		{Role: contractx.RoleUser, Content: "Find a hotel near the Colosseum", Seq: 1, CreatedAt: at},
		{
			Role:      contractx.RoleAssistant,
			Worker:    "hotel",
			ToolCalls: []contractx.ToolCall{{ID: "call-1", Name: "discover_places", Arguments: `{"query":"hotel colosseum"}`}},
			CreatedAt: at,
		},
		{Role: contractx.RoleTool, ToolCallID: "call-1", ToolName: "discover_places", Content: `[{"name":"Hotel Roma"}]`, CreatedAt: at},
		{Role: contractx.RoleAssistant, Worker: "hotel", Content: "Hotel Roma is two minutes away.", Seq: 2, CreatedAt: at},
		{
			Role:      contractx.RoleAssistant,
			Worker:    "compactor",
			Content:   "Summary",
			Seq:       3,
			Summary:   &contractx.SummarySpan{From: 1, To: 2, SummarySeq: 3},
			CreatedAt: at,
		},
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	t.Parallel()

	msgs := sampleMessages()
	data, err := EncodeMessages(msgs)
	if err != nil {
		t.Fatalf("EncodeMessages() error = %v", err)
	}
	got, err := DecodeMessages(data)
	if err != nil {
		t.Fatalf("DecodeMessages() error = %v", err)
	}
	if !reflect.DeepEqual(got, msgs) {
		t.Fatalf("round trip mismatch:\n got  %#v\n want %#v", got, msgs)
	}
}

func TestDecodeRejectsGarbage(t *testing.T) {
	t.Parallel()

	if _, err := DecodeMessages([]byte("not gzip")); err == nil {
		t.Fatal("DecodeMessages() error = nil, want error")
	}
}

func TestAppendAssignsMonotonicSeq(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := newTestStore(t)

	for i := 0; i < 3; i++ {
		rec := &Record{SessionID: "s1", TenantID: "acme", UserID: "tony", Step: "entry", Next: "hotel", Messages: sampleMessages()[:1]}
		if err := store.Append(ctx, rec); err != nil {
			t.Fatalf("Append() error = %v", err)
		}
		if rec.Seq != int64(i+1) {
			t.Fatalf("Seq = %d, want %d", rec.Seq, i+1)
		}
	}

	other := &Record{SessionID: "s2", Step: "entry", Next: "await_input"}
	if err := store.Append(ctx, other); err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	if other.Seq != 1 {
		t.Fatalf("other session Seq = %d, want 1", other.Seq)
	}
}

func TestLatestRestoresMessages(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := newTestStore(t)

	first := &Record{SessionID: "s1", Step: "entry", Next: "hotel", Messages: sampleMessages()[:1]}
	second := &Record{SessionID: "s1", Step: "hotel", Next: "await_input", ActiveWorker: "hotel", Messages: sampleMessages()}
	for _, rec := range []*Record{first, second} {
		if err := store.Append(ctx, rec); err != nil {
			t.Fatalf("Append() error = %v", err)
		}
	}

	got, err := store.Latest(ctx, "s1")
	if err != nil {
		t.Fatalf("Latest() error = %v", err)
	}
	if got.ID != second.ID || got.Seq != 2 || !got.Halted() || got.ActiveWorker != "hotel" {
		t.Fatalf("unexpected latest: %+v", got)
	}
	if !reflect.DeepEqual(got.Messages, sampleMessages()) {
		t.Fatalf("Latest() messages differ from appended snapshot")
	}

	byID, err := store.Get(ctx, first.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if byID.Next != "hotel" || len(byID.Messages) != 1 {
		t.Fatalf("unexpected record by id: %+v", byID)
	}
}

func TestLatestMissing(t *testing.T) {
	t.Parallel()

	_, err := newTestStore(t).Latest(context.Background(), "nope")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("Latest() error = %v, want ErrNotFound", err)
	}
}

func TestListOmitsMessages(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := newTestStore(t)
	for i := 0; i < 4; i++ {
		if err := store.Append(ctx, &Record{SessionID: "s1", Step: "entry", Next: "await_input", Messages: sampleMessages()}); err != nil {
			t.Fatalf("Append() error = %v", err)
		}
	}

	recs, err := store.List(ctx, "s1", 3)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(recs) != 3 || recs[0].Seq != 4 {
		t.Fatalf("List() = %d records, first seq %d", len(recs), recs[0].Seq)
	}
	for _, rec := range recs {
		if rec.Messages != nil {
			t.Fatalf("List() should not load messages")
		}
		if rec.MessageCount != len(sampleMessages()) {
			t.Fatalf("MessageCount = %d", rec.MessageCount)
		}
	}
}
