package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"gastoscan/internal/models"

	"github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

var expenseColumns = []string{
	"id", "filename", "amount", "category", "document_date",
	"tax_id", "institution", "description", "extracted_text",
	"labels", "created_at",
}

// ExpenseRepository persists expense records. Records are immutable once
// stored: there is no update operation, only insert, list and search.
type ExpenseRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

func NewExpenseRepository(db *pgxpool.Pool, logger *zap.Logger) *ExpenseRepository {
	return &ExpenseRepository{
		db:     db,
		logger: logger,
	}
}

// EnsureSchema creates the expenses table if it does not exist yet.
func (r *ExpenseRepository) EnsureSchema(ctx context.Context) error {
	_, err := r.db.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS expenses (
			id UUID PRIMARY KEY,
			filename TEXT NOT NULL,
			amount DOUBLE PRECISION NOT NULL,
			category TEXT NOT NULL,
			document_date TEXT NOT NULL DEFAULT 'N/A',
			tax_id TEXT NOT NULL DEFAULT 'N/A',
			institution TEXT NOT NULL DEFAULT 'N/A',
			description TEXT NOT NULL DEFAULT '',
			extracted_text TEXT NOT NULL DEFAULT '',
			labels JSONB NOT NULL DEFAULT '[]',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`)
	if err != nil {
		return fmt.Errorf("create expenses table: %w", err)
	}
	return nil
}

// Insert stores a new expense record, assigning its ID and creation time.
func (r *ExpenseRepository) Insert(ctx context.Context, record *models.ExpenseRecord) error {
	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
	record.CreatedAt = time.Now().UTC()

	labels, err := json.Marshal(record.Labels)
	if err != nil {
		return fmt.Errorf("encode labels: %w", err)
	}

	query := squirrel.Insert("expenses").
		Columns(expenseColumns...).
		Values(record.ID, record.Filename, record.Amount, record.Category, record.DocumentDate,
			record.TaxID, record.Institution, record.Description, record.ExtractedText,
			labels, record.CreatedAt).
		PlaceholderFormat(squirrel.Dollar)

	sql, args, err := query.ToSql()
	if err != nil {
		return err
	}

	if _, err := r.db.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert expense: %w", err)
	}

	r.logger.Info("expense stored",
		zap.String("id", record.ID.String()),
		zap.String("filename", record.Filename),
	)
	return nil
}

// ListAll returns every stored record, most recent first.
func (r *ExpenseRepository) ListAll(ctx context.Context) ([]models.ExpenseRecord, error) {
	query := squirrel.Select(expenseColumns...).
		From("expenses").
		OrderBy("created_at DESC").
		PlaceholderFormat(squirrel.Dollar)

	return r.queryRecords(ctx, query)
}

// Search returns the records where any searchable column contains the term
// as a substring, most recent first. There is no relevance ranking, and LIKE
// keeps the match case-sensitive.
func (r *ExpenseRepository) Search(ctx context.Context, term string) ([]models.ExpenseRecord, error) {
	pattern := "%" + term + "%"
	query := squirrel.Select(expenseColumns...).
		From("expenses").
		Where(squirrel.Or{
			squirrel.Like{"institution": pattern},
			squirrel.Like{"category": pattern},
			squirrel.Like{"tax_id": pattern},
			squirrel.Like{"filename": pattern},
			squirrel.Like{"extracted_text": pattern},
		}).
		OrderBy("created_at DESC").
		PlaceholderFormat(squirrel.Dollar)

	return r.queryRecords(ctx, query)
}

// Ping reports whether the backing database is reachable.
func (r *ExpenseRepository) Ping(ctx context.Context) error {
	return r.db.Ping(ctx)
}

func (r *ExpenseRepository) queryRecords(ctx context.Context, query squirrel.SelectBuilder) ([]models.ExpenseRecord, error) {
	sql, args, err := query.ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("query expenses: %w", err)
	}
	defer rows.Close()

	var records []models.ExpenseRecord
	for rows.Next() {
		var rec models.ExpenseRecord
		var labels []byte
		if err := rows.Scan(
			&rec.ID, &rec.Filename, &rec.Amount, &rec.Category, &rec.DocumentDate,
			&rec.TaxID, &rec.Institution, &rec.Description, &rec.ExtractedText,
			&labels, &rec.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan expense: %w", err)
		}
		if len(labels) > 0 {
			if err := json.Unmarshal(labels, &rec.Labels); err != nil {
				r.logger.Warn("invalid labels payload",
					zap.String("id", rec.ID.String()), zap.Error(err))
			}
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}
