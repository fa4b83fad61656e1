package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/user/etymology-service/internal/domain"
)

const schema = `
CREATE TABLE IF NOT EXISTS etymology_entries (
	headword         TEXT PRIMARY KEY,
	aliases          TEXT[] NOT NULL DEFAULT '{}',
	parts_of_speech  TEXT[] NOT NULL DEFAULT '{}',
	origins          TEXT[] NOT NULL DEFAULT '{}',
	cross_references TEXT[] NOT NULL DEFAULT '{}',
	source_url       TEXT NOT NULL,
	fetched_at       TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS failed_lookups (
	word           TEXT PRIMARY KEY,
	error_kind     TEXT NOT NULL,
	message        TEXT NOT NULL,
	http_status    INT,
	last_attempt   TIMESTAMPTZ NOT NULL,
	attempt_count  INT NOT NULL DEFAULT 1
);`

// EntryStore persists extracted entries and failed lookups in PostgreSQL.
type EntryStore struct {
	db  *pgxpool.Pool
	now func() time.Time
}

func NewEntryStore(ctx context.Context, connStr string) (*EntryStore, error) {
	db, err := pgxpool.New(ctx, connStr)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to database: %w", err)
	}
	return &EntryStore{db: db, now: time.Now}, nil
}

func (s *EntryStore) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

func (s *EntryStore) Close() {
	s.db.Close()
}

// EnsureSchema creates the tables if they do not exist yet.
func (s *EntryStore) EnsureSchema(ctx context.Context) error {
	_, err := s.db.Exec(ctx, schema)
	return err
}

// SaveResults writes a run's results in one transaction. Entries are keyed by
// headword and the first stored version wins, so aliases that resolve to an
// already stored headword add nothing. A failure bumps the attempt count for
// its word; a later success clears it. Not-found results are not stored.
func (s *EntryStore) SaveResults(ctx context.Context, results []domain.FetchResult) error {
	batch := &pgx.Batch{}
	for _, res := range results {
		queueResult(batch, res, s.now())
	}
	if batch.Len() == 0 {
		return nil
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("save results: %w", err)
	}
	return tx.Commit(ctx)
}

func queueResult(batch *pgx.Batch, res domain.FetchResult, now time.Time) {
	switch res.Outcome {
	case domain.OutcomeFound:
		e := res.Entry
		batch.Queue(`
			INSERT INTO etymology_entries (headword, aliases, parts_of_speech, origins, cross_references, source_url, fetched_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			ON CONFLICT (headword) DO NOTHING`,
			e.Headword, nonNil(e.Aliases), nonNil(e.PartsOfSpeech), nonNil(e.Origins),
			nonNil(e.CrossReferences), e.SourceURL, e.FetchedAt,
		)
		batch.Queue(`DELETE FROM failed_lookups WHERE word = $1`, res.Query.String())
	case domain.OutcomeFailed:
		if res.Failure == nil || res.Failure.Kind == domain.KindValidation || res.Failure.Kind == domain.KindCanceled {
			return
		}
		var status *int
		if res.Failure.HTTPStatus != 0 {
			status = &res.Failure.HTTPStatus
		}
		batch.Queue(`
			INSERT INTO failed_lookups (word, error_kind, message, http_status, last_attempt)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (word) DO UPDATE SET
				error_kind = EXCLUDED.error_kind,
				message = EXCLUDED.message,
				http_status = EXCLUDED.http_status,
				last_attempt = EXCLUDED.last_attempt,
				attempt_count = failed_lookups.attempt_count + 1`,
			res.Query.String(), string(res.Failure.Kind), res.Failure.Message, status, now,
		)
	}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
