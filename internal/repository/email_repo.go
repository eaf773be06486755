package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"mailclassifier/internal/model"
	"mailclassifier/pkg/otel"
)

// ErrNotFound is returned when no record has the given id.
var ErrNotFound = errors.New("email not found")

const emailsTable = "emails"

const schemaSQL = `
CREATE TABLE IF NOT EXISTS emails (
    id               UUID PRIMARY KEY,
    sender           TEXT NOT NULL,
    subject          TEXT NOT NULL,
    snippet          TEXT,
    content          TEXT,
    category         TEXT NOT NULL CHECK (category IN ('urgent', 'promotional', 'personal', 'work', 'spam')),
    confidence_score DOUBLE PRECISION NOT NULL CHECK (confidence_score >= 0 AND confidence_score <= 1),
    created_at       TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_emails_created_at ON emails (created_at DESC);
CREATE INDEX IF NOT EXISTS idx_emails_category ON emails (category);
`

type EmailRepository struct {
	db *pgxpool.Pool
}

func NewEmailRepository(db *pgxpool.Pool) *EmailRepository {
	return &EmailRepository{db: db}
}

// EnsureSchema creates the emails table and its indexes if they do not exist.
func (r *EmailRepository) EnsureSchema(ctx context.Context) error {
	return otel.DBOperation(ctx, "migrate", emailsTable, schemaSQL, func(ctx context.Context) error {
		_, err := r.db.Exec(ctx, schemaSQL)
		return err
	})
}

// Insert stores a new record. ID and CreatedAt are assigned here and written back to e.
func (r *EmailRepository) Insert(ctx context.Context, e *model.EmailRecord) error {
	if !e.Category.Valid() {
		return fmt.Errorf("%w: %q", model.ErrInvalidCategory, e.Category)
	}

	query := `
        INSERT INTO emails (id, sender, subject, snippet, content, category, confidence_score)
        VALUES ($1, $2, $3, NULLIF($4, ''), NULLIF($5, ''), $6, $7)
        RETURNING created_at
    `
	id := uuid.NewString()
	err := otel.DBOperation(ctx, "insert", emailsTable, query, func(ctx context.Context) error {
		return r.db.QueryRow(ctx, query,
			id,
			e.Sender,
			e.Subject,
			e.Snippet,
			e.Content,
			string(e.Category),
			e.Confidence,
		).Scan(&e.CreatedAt)
	})
	if err != nil {
		return err
	}
	e.ID = id
	return nil
}

// UpdateCategory changes only the category of an existing record.
func (r *EmailRepository) UpdateCategory(ctx context.Context, id string, category model.Category) error {
	if !category.Valid() {
		return fmt.Errorf("%w: %q", model.ErrInvalidCategory, category)
	}
	if _, err := uuid.Parse(id); err != nil {
		return ErrNotFound
	}

	query := `
        UPDATE emails
        SET category = $1
        WHERE id = $2
    `
	return otel.DBOperation(ctx, "update", emailsTable, query, func(ctx context.Context) error {
		tag, err := r.db.Exec(ctx, query, string(category), id)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return ErrNotFound
		}
		return nil
	})
}

// Delete removes a record.
func (r *EmailRepository) Delete(ctx context.Context, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return ErrNotFound
	}

	query := `DELETE FROM emails WHERE id = $1`
	return otel.DBOperation(ctx, "delete", emailsTable, query, func(ctx context.Context) error {
		tag, err := r.db.Exec(ctx, query, id)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return ErrNotFound
		}
		return nil
	})
}

// List returns records newest first, optionally filtered by category.
func (r *EmailRepository) List(ctx context.Context, category *model.Category) ([]model.EmailRecord, error) {
	query := `
        SELECT id, sender, subject, COALESCE(snippet, ''), COALESCE(content, ''),
               category, confidence_score, created_at
        FROM emails
        WHERE ($1::text IS NULL OR category = $1)
        ORDER BY created_at DESC
    `
	var filter *string
	if category != nil {
		s := string(*category)
		filter = &s
	}

	emails := []model.EmailRecord{}
	err := otel.DBOperation(ctx, "select", emailsTable, query, func(ctx context.Context) error {
		rows, err := r.db.Query(ctx, query, filter)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var e model.EmailRecord
			var cat string
			if err := rows.Scan(
				&e.ID,
				&e.Sender,
				&e.Subject,
				&e.Snippet,
				&e.Content,
				&cat,
				&e.Confidence,
				&e.CreatedAt,
			); err != nil {
				return err
			}
			if e.Category, err = model.ParseCategory(cat); err != nil {
				return err
			}
			emails = append(emails, e)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return emails, nil
}

// AllCategories returns the number of records per stored category.
func (r *EmailRepository) AllCategories(ctx context.Context) ([]model.CategoryCount, error) {
	query := `
        SELECT category, COUNT(*)
        FROM emails
        GROUP BY category
    `
	counts := []model.CategoryCount{}
	err := otel.DBOperation(ctx, "aggregate", emailsTable, query, func(ctx context.Context) error {
		rows, err := r.db.Query(ctx, query)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var cat string
			var n int
			if err := rows.Scan(&cat, &n); err != nil {
				return err
			}
			c, err := model.ParseCategory(cat)
			if err != nil {
				return err
			}
			counts = append(counts, model.CategoryCount{Category: c, Count: n})
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return counts, nil
}

// Ping checks the pool for readiness probes.
func (r *EmailRepository) Ping(ctx context.Context) error {
	return r.db.Ping(ctx)
}

// IsNotFound reports whether err means the record does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, pgx.ErrNoRows)
}
