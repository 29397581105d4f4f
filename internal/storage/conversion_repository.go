package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/fleveque/image-loader/internal/model"
)

// ErrNotFound is returned when a conversion doesn't exist.
var ErrNotFound = errors.New("conversion not found")

// ConversionRepository persists the conversion log.
type ConversionRepository interface {
	Create(ctx context.Context, c *model.Conversion) error
	GetByID(ctx context.Context, id int64) (*model.Conversion, error)
	Count(ctx context.Context) (int64, error)
	CountByStatus(ctx context.Context, status model.ConversionStatus) (int64, error)
	CountFailuresByKind(ctx context.Context) ([]model.KindCount, error)
	ListRecent(ctx context.Context, limit int) ([]model.Conversion, error)
}

type sqliteConversionRepository struct {
	db *sqlx.DB
}

// NewConversionRepository creates a SQLite-backed ConversionRepository.
func NewConversionRepository(db *sqlx.DB) ConversionRepository {
	return &sqliteConversionRepository{db: db}
}

func (r *sqliteConversionRepository) Create(ctx context.Context, c *model.Conversion) error {
	result, err := r.db.NamedExecContext(ctx, `
		INSERT INTO conversions (
			source, file_name, mime_type, file_size, options, status,
			error_kind, error_message, width, height, output_length, duration_ms
		) VALUES (
			:source, :file_name, :mime_type, :file_size, :options, :status,
			:error_kind, :error_message, :width, :height, :output_length, :duration_ms
		)
	`, c)
	if err != nil {
		return fmt.Errorf("creating conversion: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("getting last insert id: %w", err)
	}
	c.ID = id
	return nil
}

func (r *sqliteConversionRepository) GetByID(ctx context.Context, id int64) (*model.Conversion, error) {
	var c model.Conversion
	err := r.db.GetContext(ctx, &c, "SELECT * FROM conversions WHERE id = ?", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting conversion %d: %w", id, err)
	}
	return &c, nil
}

func (r *sqliteConversionRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.GetContext(ctx, &count, "SELECT COUNT(*) FROM conversions")
	return count, err
}

func (r *sqliteConversionRepository) CountByStatus(ctx context.Context, status model.ConversionStatus) (int64, error) {
	var count int64
	err := r.db.GetContext(ctx, &count, "SELECT COUNT(*) FROM conversions WHERE status = ?", status)
	return count, err
}

func (r *sqliteConversionRepository) CountFailuresByKind(ctx context.Context) ([]model.KindCount, error) {
	var counts []model.KindCount
	err := r.db.SelectContext(ctx, &counts, `
		SELECT error_kind, COUNT(*) AS count FROM conversions
		WHERE status = ?
		GROUP BY error_kind
		ORDER BY count DESC, error_kind ASC
	`, model.StatusFailed)
	if err != nil {
		return nil, fmt.Errorf("counting failures by kind: %w", err)
	}
	return counts, nil
}

func (r *sqliteConversionRepository) ListRecent(ctx context.Context, limit int) ([]model.Conversion, error) {
	var conversions []model.Conversion
	err := r.db.SelectContext(ctx, &conversions,
		"SELECT * FROM conversions ORDER BY id DESC LIMIT ?", limit)
	if err != nil {
		return nil, fmt.Errorf("listing conversions: %w", err)
	}
	return conversions, nil
}
