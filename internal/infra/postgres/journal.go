package postgres

import (
	"context"
	"database/sql"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"invoice2pdf/internal/config"
	"invoice2pdf/internal/domain"
)

// Journal appends conversion outcomes to the conversion_journal table.
type Journal struct {
	db *sql.DB
}

// Open connects to Postgres and makes sure the journal table exists.
func Open(cfg config.PostgresConfig) (*Journal, error) {
	dsn, err := DSN(cfg)
	if err != nil {
		return nil, err
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	// Small, write-only side table.
	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	j := &Journal{db: db}
	if err := j.ensureSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return j, nil
}

// NewJournal wraps an already opened database.
func NewJournal(db *sql.DB) *Journal {
	return &Journal{db: db}
}

func (j *Journal) ensureSchema(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	ddl1 := `CREATE TABLE IF NOT EXISTS conversion_journal (
		id BIGSERIAL PRIMARY KEY,
		request_id TEXT NOT NULL,
		order_number TEXT,
		outcome TEXT NOT NULL,
		status INTEGER NOT NULL,
		duration_ms BIGINT NOT NULL,
		pdf_bytes INTEGER NOT NULL DEFAULT 0,
		error TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	);`
	ddl2 := `CREATE INDEX IF NOT EXISTS idx_conversion_journal_created_at ON conversion_journal (created_at);`
	if _, err := j.db.ExecContext(ctx, ddl1); err != nil {
		return err
	}
	if _, err := j.db.ExecContext(ctx, ddl2); err != nil {
		return err
	}
	return nil
}

// Record appends one entry.
func (j *Journal) Record(ctx context.Context, e domain.Conversion) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	_, err := j.db.ExecContext(ctx,
		`INSERT INTO conversion_journal (request_id, order_number, outcome, status, duration_ms, pdf_bytes, error)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		e.RequestID, e.OrderNumber, string(e.Outcome), e.Status, e.Duration.Milliseconds(), e.PDFBytes, e.Error,
	)
	return err
}

// Close releases the connection pool.
func (j *Journal) Close() error {
	return j.db.Close()
}
