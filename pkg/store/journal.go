package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/trustrail/trustrail/pkg/command"
)

// JournalEntry is one accepted command version as recorded in the
// append-only journal.
type JournalEntry struct {
	Seq         int64
	ReferenceID string
	CommandType string
	Inbound     bool
	Hash        string
	Payload     []byte
	RecordedAt  time.Time
}

// Journal is the append-only audit trail of every accepted command
// version. The command store keeps only the latest version; the journal
// keeps them all.
type Journal struct {
	db *sql.DB
}

// NewJournal opens (and migrates) a journal on the given database.
func NewJournal(db *sql.DB) (*Journal, error) {
	j := &Journal{db: db}
	if err := j.migrate(); err != nil {
		return nil, err
	}
	return j, nil
}

// OpenJournal opens a sqlite-backed journal at path. ":memory:" gives an
// ephemeral journal for tests.
func OpenJournal(path string) (*Journal, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open journal database: %w", err)
	}
	return NewJournal(db)
}

func (j *Journal) migrate() error {
	query := `
    CREATE TABLE IF NOT EXISTS command_journal (
        seq INTEGER PRIMARY KEY AUTOINCREMENT,
        reference_id TEXT NOT NULL,
        command_type TEXT NOT NULL,
        inbound INTEGER NOT NULL,
        hash TEXT NOT NULL,
        payload JSON NOT NULL,
        recorded_at DATETIME NOT NULL
    );
    CREATE INDEX IF NOT EXISTS idx_command_journal_reference
        ON command_journal (reference_id, seq);`
	_, err := j.db.ExecContext(context.Background(), query)
	return err
}

// Append records an accepted command version.
func (j *Journal) Append(ctx context.Context, cmd command.Command) error {
	payload, err := command.Marshal(cmd)
	if err != nil {
		return err
	}
	hash, err := cmd.Hash()
	if err != nil {
		return err
	}
	query := `INSERT INTO command_journal (
        reference_id, command_type, inbound, hash, payload, recorded_at
    ) VALUES (?, ?, ?, ?, ?, ?)`
	_, err = j.db.ExecContext(ctx, query,
		cmd.ReferenceID(),
		string(cmd.CommandType()),
		cmd.IsInbound(),
		hash,
		payload,
		time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("append journal entry for %s: %w", cmd.ReferenceID(), err)
	}
	return nil
}

// ListByReference returns every recorded version of one conversation in
// acceptance order.
func (j *Journal) ListByReference(ctx context.Context, referenceID string) ([]JournalEntry, error) {
	query := `
        SELECT seq, reference_id, command_type, inbound, hash, payload, recorded_at
        FROM command_journal
        WHERE reference_id = ?
        ORDER BY seq ASC`
	rows, err := j.db.QueryContext(ctx, query, referenceID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var entries []JournalEntry
	for rows.Next() {
		var e JournalEntry
		var recordedAt string
		if err := rows.Scan(&e.Seq, &e.ReferenceID, &e.CommandType, &e.Inbound, &e.Hash, &e.Payload, &recordedAt); err != nil {
			return nil, err
		}
		if ts, perr := time.Parse(time.RFC3339Nano, recordedAt); perr == nil {
			e.RecordedAt = ts
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}

// Close closes the underlying database.
func (j *Journal) Close() error {
	return j.db.Close()
}
