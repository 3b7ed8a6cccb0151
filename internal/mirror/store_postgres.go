package mirror

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"valcore/internal/domain"
)

// PostgresStore persists narrative entries in PostgreSQL. Entries and lines
// are written in one transaction; the schema has no UPDATE or DELETE path.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore constructs a PostgreSQL-backed narrative store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Schema is applied by migrations; kept here so integration tests can set up
// a fresh database.
const Schema = `
CREATE TABLE IF NOT EXISTS narrative_entries (
	id          TEXT PRIMARY KEY,
	claim_id    TEXT NOT NULL,
	description TEXT NOT NULL,
	source      TEXT NOT NULL,
	status      TEXT NOT NULL,
	metadata    JSONB,
	recorded_at TIMESTAMPTZ NOT NULL
);
CREATE TABLE IF NOT EXISTS narrative_lines (
	entry_id  TEXT NOT NULL REFERENCES narrative_entries(id),
	account   TEXT NOT NULL,
	direction TEXT NOT NULL,
	amount    BIGINT NOT NULL
);
CREATE INDEX IF NOT EXISTS narrative_entries_claim_idx ON narrative_entries(claim_id);
CREATE INDEX IF NOT EXISTS narrative_entries_status_idx ON narrative_entries(status);
CREATE INDEX IF NOT EXISTS narrative_lines_account_idx ON narrative_lines(account);
`

func (s *PostgresStore) Append(ctx context.Context, entry domain.NarrativeEntry) error {
	metadata, err := json.Marshal(entry.Metadata)
	if err != nil {
		return fmt.Errorf("marshal entry metadata: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin narrative append: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO narrative_entries (id, claim_id, description, source, status, metadata, recorded_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, entry.ID, entry.ClaimID, entry.Description, entry.Source, string(entry.Status), metadata, entry.RecordedAt)
	if err != nil {
		return fmt.Errorf("insert narrative entry: %w", err)
	}

	for _, line := range entry.Lines {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO narrative_lines (entry_id, account, direction, amount)
			VALUES ($1, $2, $3, $4)
		`, entry.ID, line.Account.String(), string(line.Direction), int64(line.Amount))
		if err != nil {
			return fmt.Errorf("insert narrative line: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit narrative append: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, id string) (domain.NarrativeEntry, error) {
	entries, err := s.query(ctx, `WHERE e.id = $1`, id)
	if err != nil {
		return domain.NarrativeEntry{}, err
	}
	if len(entries) == 0 {
		return domain.NarrativeEntry{}, ErrNotFound
	}
	return entries[0], nil
}

func (s *PostgresStore) ListByClaim(ctx context.Context, claimID string) ([]domain.NarrativeEntry, error) {
	return s.query(ctx, `WHERE e.claim_id = $1`, claimID)
}

func (s *PostgresStore) ListByAccount(ctx context.Context, account domain.AccountID) ([]domain.NarrativeEntry, error) {
	return s.query(ctx, `WHERE e.id IN (SELECT entry_id FROM narrative_lines WHERE account = $1)`, account.String())
}

func (s *PostgresStore) ListByStatus(ctx context.Context, status domain.NarrativeStatus) ([]domain.NarrativeEntry, error) {
	return s.query(ctx, `WHERE e.status = $1`, string(status))
}

func (s *PostgresStore) query(ctx context.Context, where string, arg any) ([]domain.NarrativeEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT e.id, e.claim_id, e.description, e.source, e.status, e.metadata, e.recorded_at
		FROM narrative_entries e `+where+` ORDER BY e.recorded_at`, arg)
	if err != nil {
		return nil, fmt.Errorf("query narrative entries: %w", err)
	}
	defer rows.Close()

	var entries []domain.NarrativeEntry
	for rows.Next() {
		var entry domain.NarrativeEntry
		var status string
		var metadata []byte
		if err := rows.Scan(&entry.ID, &entry.ClaimID, &entry.Description, &entry.Source, &status, &metadata, &entry.RecordedAt); err != nil {
			return nil, fmt.Errorf("scan narrative entry: %w", err)
		}
		entry.Status = domain.NarrativeStatus(status)
		if len(metadata) > 0 {
			if err := json.Unmarshal(metadata, &entry.Metadata); err != nil {
				return nil, fmt.Errorf("unmarshal entry metadata: %w", err)
			}
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range entries {
		lines, err := s.lines(ctx, entries[i].ID)
		if err != nil {
			return nil, err
		}
		entries[i].Lines = lines
	}
	return entries, nil
}

func (s *PostgresStore) lines(ctx context.Context, entryID string) ([]domain.NarrativeLine, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT account, direction, amount FROM narrative_lines WHERE entry_id = $1`, entryID)
	if err != nil {
		return nil, fmt.Errorf("query narrative lines: %w", err)
	}
	defer rows.Close()

	var lines []domain.NarrativeLine
	for rows.Next() {
		var account, direction string
		var amount int64
		if err := rows.Scan(&account, &direction, &amount); err != nil {
			return nil, fmt.Errorf("scan narrative line: %w", err)
		}
		id, err := domain.ParseID128(account)
		if err != nil {
			return nil, fmt.Errorf("narrative line account: %w", err)
		}
		lines = append(lines, domain.NarrativeLine{
			Account:   id,
			Direction: domain.LineDirection(direction),
			Amount:    domain.Amount(amount),
		})
	}
	return lines, rows.Err()
}

// Health verifies database connectivity.
func (s *PostgresStore) Health(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		if errors.Is(err, sql.ErrConnDone) {
			return fmt.Errorf("narrative db connection closed: %w", err)
		}
		return fmt.Errorf("narrative db ping: %w", err)
	}
	return nil
}
