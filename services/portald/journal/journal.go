package journal

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	_ "github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"lukechampine.com/blake3"

	"stakeportal/core/events"
	"stakeportal/core/types"
	"stakeportal/observability"
)

var (
	// ErrPathRequired is returned when the journal path is missing.
	ErrPathRequired = errors.New("journal: path must be configured")
	// ErrChainBroken is returned by Verify when a stored digest does not match
	// its recomputed value.
	ErrChainBroken = errors.New("journal: hash chain broken")
)

const schema = `
CREATE TABLE IF NOT EXISTS journal_entries(
    seq INTEGER PRIMARY KEY,
    id TEXT NOT NULL UNIQUE,
    type TEXT NOT NULL,
    payload BLOB NOT NULL,
    prev_digest BLOB,
    digest BLOB NOT NULL,
    recorded_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS journal_entries_type ON journal_entries(type);
`

// Entry is one persisted event. Digest commits to the previous entry's digest
// and the payload, so rewriting any row breaks every later digest.
type Entry struct {
	Seq        int64       `json:"seq"`
	ID         string      `json:"id"`
	Type       string      `json:"type"`
	Event      types.Event `json:"event"`
	PrevDigest string      `json:"prevDigest,omitempty"`
	Digest     string      `json:"digest"`
	RecordedAt time.Time   `json:"recordedAt"`
}

// Journal is an append-only SQLite log of the events produced by successful
// portal mutations.
type Journal struct {
	db      *sql.DB
	logger  *slog.Logger
	metrics *observability.JournalMetrics
	nowFn   func() time.Time

	mu          sync.Mutex
	seq         int64
	head        []byte
	subscribers map[int]chan Entry
	nextSub     int
}

// subscriberBuffer bounds the entries queued for one subscriber. A subscriber
// that falls this far behind is dropped and its channel closed.
const subscriberBuffer = 64

// Open creates the journal file if needed and loads the chain head.
func Open(path string) (*Journal, error) {
	dsn, err := FileDSN(path)
	if err != nil {
		return nil, err
	}
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create journal dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	j := &Journal{
		db:      db,
		logger:  slog.Default(),
		metrics: observability.Journal(),
		nowFn:   time.Now,
	}
	row := db.QueryRow(`SELECT seq, digest FROM journal_entries ORDER BY seq DESC LIMIT 1`)
	if err := row.Scan(&j.seq, &j.head); err != nil && !errors.Is(err, sql.ErrNoRows) {
		db.Close()
		return nil, fmt.Errorf("load journal head: %w", err)
	}
	return j, nil
}

// SetLogger overrides the logger used for failed appends.
func (j *Journal) SetLogger(logger *slog.Logger) {
	if j == nil || logger == nil {
		return
	}
	j.logger = logger
}

// SetNowFunc overrides the clock stamped on entries.
func (j *Journal) SetNowFunc(now func() time.Time) {
	if j == nil || now == nil {
		return
	}
	j.nowFn = now
}

// Close releases database resources.
func (j *Journal) Close() error {
	if j == nil || j.db == nil {
		return nil
	}
	return j.db.Close()
}

// Head returns the latest sequence number and digest.
func (j *Journal) Head() (int64, string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if len(j.head) == 0 {
		return j.seq, ""
	}
	return j.seq, hexutil.Encode(j.head)
}

func chainDigest(prev, payload []byte) []byte {
	buf := make([]byte, 0, len(prev)+len(payload))
	buf = append(buf, prev...)
	buf = append(buf, payload...)
	sum := blake3.Sum256(buf)
	return sum[:]
}

func encodePayload(evt *types.Event) ([]byte, error) {
	if evt == nil {
		return nil, fmt.Errorf("journal: nil event")
	}
	if evt.Attributes == nil {
		evt = &types.Event{Type: evt.Type, Attributes: map[string]string{}}
	}
	// encoding/json sorts map keys, which keeps the payload deterministic.
	return json.Marshal(evt)
}

// Append persists evt at the head of the chain.
func (j *Journal) Append(ctx context.Context, evt events.Event) (*Entry, error) {
	if j == nil || j.db == nil {
		return nil, fmt.Errorf("journal not configured")
	}
	if evt == nil {
		return nil, fmt.Errorf("journal: nil event")
	}
	payload, err := encodePayload(evt.Event())
	if err != nil {
		return nil, err
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	prev := j.head
	digest := chainDigest(prev, payload)
	seq := j.seq + 1
	id := uuid.NewString()
	recorded := j.nowFn().UTC()

	_, err = j.db.ExecContext(ctx, `
        INSERT INTO journal_entries(seq, id, type, payload, prev_digest, digest, recorded_at)
        VALUES(?, ?, ?, ?, ?, ?, ?)
    `, seq, id, evt.EventType(), payload, prev, digest, recorded.UnixNano())
	if err != nil {
		j.metrics.RecordFailure()
		return nil, fmt.Errorf("insert journal entry: %w", err)
	}
	j.seq = seq
	j.head = digest
	j.metrics.RecordAppend(evt.EventType(), seq)

	entry := &Entry{
		Seq:        seq,
		ID:         id,
		Type:       evt.EventType(),
		Event:      *evt.Event(),
		Digest:     hexutil.Encode(digest),
		RecordedAt: recorded,
	}
	if len(prev) > 0 {
		entry.PrevDigest = hexutil.Encode(prev)
	}
	j.publish(*entry)
	return entry, nil
}

// publish must be called with mu held.
func (j *Journal) publish(entry Entry) {
	for id, ch := range j.subscribers {
		select {
		case ch <- entry:
		default:
			close(ch)
			delete(j.subscribers, id)
			j.logger.Warn("journal subscriber dropped", slog.Int64("seq", entry.Seq))
		}
	}
}

// Subscribe delivers every entry appended after the call. The channel is
// closed by cancel or when the subscriber falls behind.
func (j *Journal) Subscribe() (<-chan Entry, func()) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.subscribers == nil {
		j.subscribers = make(map[int]chan Entry)
	}
	id := j.nextSub
	j.nextSub++
	ch := make(chan Entry, subscriberBuffer)
	j.subscribers[id] = ch
	return ch, func() {
		j.mu.Lock()
		defer j.mu.Unlock()
		if existing, ok := j.subscribers[id]; ok {
			close(existing)
			delete(j.subscribers, id)
		}
	}
}

// Emit implements events.Emitter. Failures are logged and counted since the
// state change they describe has already committed.
func (j *Journal) Emit(evt events.Event) {
	if j == nil || evt == nil {
		return
	}
	if _, err := j.Append(context.Background(), evt); err != nil {
		j.logger.Error("journal append failed",
			slog.String("type", evt.EventType()),
			slog.Any("error", err))
	}
}

// Entries returns up to limit entries with a sequence number above after.
func (j *Journal) Entries(ctx context.Context, after int64, limit int) ([]Entry, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	rows, err := j.db.QueryContext(ctx, `
        SELECT seq, id, type, payload, prev_digest, digest, recorded_at
        FROM journal_entries WHERE seq > ? ORDER BY seq ASC LIMIT ?
    `, after, limit)
	if err != nil {
		return nil, fmt.Errorf("query journal: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var (
			entry    Entry
			payload  []byte
			prev     []byte
			digest   []byte
			recorded int64
		)
		if err := rows.Scan(&entry.Seq, &entry.ID, &entry.Type, &payload, &prev, &digest, &recorded); err != nil {
			return nil, fmt.Errorf("scan journal entry: %w", err)
		}
		if err := json.Unmarshal(payload, &entry.Event); err != nil {
			return nil, fmt.Errorf("decode journal entry %d: %w", entry.Seq, err)
		}
		if len(prev) > 0 {
			entry.PrevDigest = hexutil.Encode(prev)
		}
		entry.Digest = hexutil.Encode(digest)
		entry.RecordedAt = time.Unix(0, recorded).UTC()
		out = append(out, entry)
	}
	return out, rows.Err()
}

// Verify recomputes the whole chain and reports the first mismatching entry.
func (j *Journal) Verify(ctx context.Context) error {
	rows, err := j.db.QueryContext(ctx, `SELECT seq, payload, prev_digest, digest FROM journal_entries ORDER BY seq ASC`)
	if err != nil {
		return fmt.Errorf("query journal: %w", err)
	}
	defer rows.Close()

	var expectedPrev []byte
	for rows.Next() {
		var (
			seq                   int64
			payload, prev, digest []byte
		)
		if err := rows.Scan(&seq, &payload, &prev, &digest); err != nil {
			return fmt.Errorf("scan journal entry: %w", err)
		}
		if !bytes.Equal(prev, expectedPrev) {
			return fmt.Errorf("%w: entry %d does not link to its predecessor", ErrChainBroken, seq)
		}
		if !bytes.Equal(chainDigest(prev, payload), digest) {
			return fmt.Errorf("%w: entry %d digest mismatch", ErrChainBroken, seq)
		}
		expectedPrev = digest
	}
	return rows.Err()
}
