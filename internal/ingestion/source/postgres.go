package source

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/ingestion"
	apperrors "github.com/Adithya-Monish-Kumar-K/docsearch/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/resilience"
)

// Schema returns the DDL for a record table. Rows are loaded in position
// order, which becomes RecordID order.
func Schema(table string) string {
	return fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	position  BIGSERIAL PRIMARY KEY,
	location  TEXT NOT NULL,
	page      TEXT NOT NULL,
	title     TEXT NOT NULL,
	text      TEXT NOT NULL,
	category  TEXT NOT NULL
)`, pq.QuoteIdentifier(table))
}

// Postgres loads records from a table laid out by Schema.
type Postgres struct {
	db      *sql.DB
	table   string
	timeout time.Duration
}

// NewPostgres returns a source reading table. A zero timeout leaves the
// load bounded only by the caller's context.
func NewPostgres(db *sql.DB, table string, timeout time.Duration) *Postgres {
	return &Postgres{db: db, table: table, timeout: timeout}
}

func (p *Postgres) Name() string {
	return "postgres:" + p.table
}

func (p *Postgres) Load(ctx context.Context) ([]ingestion.DocumentationRecord, error) {
	var records []ingestion.DocumentationRecord
	err := resilience.WithTimeout(ctx, p.timeout, "loading "+p.table, func(ctx context.Context) error {
		var err error
		records, err = p.load(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

func (p *Postgres) load(ctx context.Context) ([]ingestion.DocumentationRecord, error) {
	query := fmt.Sprintf(
		`SELECT location, page, title, text, category FROM %s ORDER BY position`,
		pq.QuoteIdentifier(p.table),
	)
	rows, err := p.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: querying %s: %w", apperrors.ErrSourceUnavailable, p.table, err)
	}
	defer rows.Close()

	var records []ingestion.DocumentationRecord
	for i := 0; rows.Next(); i++ {
		var loc, page, title, text, category sql.NullString
		if err := rows.Scan(&loc, &page, &title, &text, &category); err != nil {
			return nil, fmt.Errorf("scanning %s row %d: %w", p.table, i, err)
		}
		for _, col := range []struct {
			name string
			v    sql.NullString
		}{
			{"location", loc}, {"page", page}, {"title", title}, {"text", text}, {"category", category},
		} {
			if !col.v.Valid {
				return nil, &ingestion.MalformedRecordError{
					Index:    i,
					Location: loc.String,
					Field:    col.name,
					Reason:   "is null",
				}
			}
		}
		records = append(records, ingestion.DocumentationRecord{
			Location: loc.String,
			Page:     page.String,
			Title:    title.String,
			Text:     text.String,
			Category: ingestion.Category(category.String),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: reading %s: %w", apperrors.ErrSourceUnavailable, p.table, err)
	}
	return records, nil
}
