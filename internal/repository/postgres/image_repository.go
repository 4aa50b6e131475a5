package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"
	"github.com/wb-go/wbf/dbpg"
	"github.com/wb-go/wbf/retry"
	"github.com/wb-go/wbf/zlog"

	"github.com/terekhovme/imagehub/internal/domain"
)

const imageColumns = `
	id, owner_id, blob_ref, filename, content_type, description, tags,
	visibility, size_bytes, checksum, width, height, processing_status,
	processing_error, version, created_at, updated_at
`

type imageRepository struct {
	db       *dbpg.DB
	strategy retry.Strategy
}

func NewImageRepository(db *dbpg.DB, strategy retry.Strategy) domain.ImageRepository {
	return &imageRepository{
		db:       db,
		strategy: strategy,
	}
}

func (r *imageRepository) Create(ctx context.Context, rec *domain.ImageRecord) error {
	query := `
		INSERT INTO images (` + imageColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
	`

	_, err := r.db.ExecWithRetry(ctx, r.strategy, query,
		rec.ID,
		rec.OwnerID,
		rec.BlobRef,
		rec.Filename,
		rec.ContentType,
		rec.Description,
		pq.Array(rec.Tags),
		rec.Visibility,
		rec.SizeBytes,
		nullString(rec.Checksum),
		nullInt(rec.Width),
		nullInt(rec.Height),
		rec.ProcessingStatus,
		nullString(rec.ProcessingError),
		rec.Version,
		rec.CreatedAt,
		rec.UpdatedAt,
	)

	if err != nil {
		zlog.Logger.Error().Err(err).Str("image_id", rec.ID).Msg("failed to create image record")
		return fmt.Errorf("%w: create image: %v", domain.ErrStoreUnavailable, err)
	}

	return nil
}

func (r *imageRepository) FindByID(ctx context.Context, id string) (*domain.ImageRecord, error) {
	query := `SELECT ` + imageColumns + ` FROM images WHERE id = $1`

	row := r.db.Master.QueryRowContext(ctx, query, id)
	rec, err := scanImage(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrImageNotFound
	}
	if err != nil {
		zlog.Logger.Error().Err(err).Str("image_id", id).Msg("failed to find image record")
		return nil, fmt.Errorf("%w: find image: %v", domain.ErrStoreUnavailable, err)
	}

	return rec, nil
}

// Update overwrites the record guarded by its version; a zero row count
// with a live record means a concurrent writer won.
func (r *imageRepository) Update(ctx context.Context, rec *domain.ImageRecord) error {
	query := `
		UPDATE images
		SET owner_id = $2,
		    blob_ref = $3,
		    filename = $4,
		    content_type = $5,
		    description = $6,
		    tags = $7,
		    visibility = $8,
		    size_bytes = $9,
		    checksum = $10,
		    width = $11,
		    height = $12,
		    processing_status = $13,
		    processing_error = $14,
		    version = version + 1,
		    updated_at = $15
		WHERE id = $1 AND version = $16
	`

	result, err := r.db.ExecWithRetry(ctx, r.strategy, query,
		rec.ID,
		rec.OwnerID,
		rec.BlobRef,
		rec.Filename,
		rec.ContentType,
		rec.Description,
		pq.Array(rec.Tags),
		rec.Visibility,
		rec.SizeBytes,
		nullString(rec.Checksum),
		nullInt(rec.Width),
		nullInt(rec.Height),
		rec.ProcessingStatus,
		nullString(rec.ProcessingError),
		rec.UpdatedAt,
		rec.Version,
	)

	if err != nil {
		zlog.Logger.Error().Err(err).Str("image_id", rec.ID).Msg("failed to update image record")
		return fmt.Errorf("%w: update image: %v", domain.ErrStoreUnavailable, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}

	if rows == 0 {
		if _, findErr := r.FindByID(ctx, rec.ID); errors.Is(findErr, domain.ErrImageNotFound) {
			return domain.ErrImageNotFound
		}
		return domain.ErrConflict
	}

	rec.Version++
	return nil
}

func (r *imageRepository) Delete(ctx context.Context, id string) error {
	query := `DELETE FROM images WHERE id = $1`

	result, err := r.db.ExecWithRetry(ctx, r.strategy, query, id)
	if err != nil {
		zlog.Logger.Error().Err(err).Str("image_id", id).Msg("failed to delete image record")
		return fmt.Errorf("%w: delete image: %v", domain.ErrStoreUnavailable, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}

	if rows == 0 {
		return domain.ErrImageNotFound
	}

	return nil
}

func (r *imageRepository) ListByOwner(ctx context.Context, ownerID string) ([]*domain.ImageRecord, error) {
	query := `
		SELECT ` + imageColumns + `
		FROM images
		WHERE owner_id = $1
		ORDER BY created_at DESC, id ASC
	`

	rows, err := r.db.QueryWithRetry(ctx, r.strategy, query, ownerID)
	if err != nil {
		zlog.Logger.Error().Err(err).Str("owner_id", ownerID).Msg("failed to list images by owner")
		return nil, fmt.Errorf("%w: list by owner: %v", domain.ErrStoreUnavailable, err)
	}
	defer rows.Close()

	return scanImages(rows)
}

// Scan runs the keyset-paginated listing. The page is fetched with one
// extra row to decide whether a next cursor exists.
func (r *imageRepository) Scan(ctx context.Context, query domain.ListQuery) ([]*domain.ImageRecord, *domain.Cursor, error) {
	var (
		conds []string
		args  []interface{}
	)
	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	f := query.Filter
	if f.OwnerID != "" {
		conds = append(conds, "owner_id = "+arg(f.OwnerID))
	}
	if f.Visibility != "" {
		conds = append(conds, "visibility = "+arg(string(f.Visibility)))
	}
	if f.Filename != "" {
		conds = append(conds, "filename ILIKE '%' || "+arg(escapeLike(f.Filename))+" || '%' ESCAPE '\\'")
	}
	if f.Tag != "" {
		conds = append(conds, arg(f.Tag)+" = ANY(tags)")
	}
	if f.DateFrom != nil {
		conds = append(conds, "created_at >= "+arg(*f.DateFrom))
	}
	if f.DateTo != nil {
		conds = append(conds, "created_at <= "+arg(*f.DateTo))
	}

	sortCol := "created_at"
	if query.Sort == domain.SortFilename {
		sortCol = "filename"
	}

	if query.Cursor != nil {
		var key interface{} = query.Cursor.Key
		if query.Sort == domain.SortCreatedAt {
			t, err := time.Parse(time.RFC3339Nano, query.Cursor.Key)
			if err != nil {
				return nil, nil, fmt.Errorf("%w: malformed pagination token", domain.ErrValidation)
			}
			key = t
		}
		cmp := ">"
		if query.Order == domain.OrderDesc {
			cmp = "<"
		}
		k := arg(key)
		conds = append(conds, fmt.Sprintf("(%s %s %s OR (%s = %s AND id > %s))",
			sortCol, cmp, k, sortCol, k, arg(query.Cursor.ID)))
	}

	direction := "ASC"
	if query.Order == domain.OrderDesc {
		direction = "DESC"
	}

	sqlQuery := `SELECT ` + imageColumns + ` FROM images`
	if len(conds) > 0 {
		sqlQuery += " WHERE " + strings.Join(conds, " AND ")
	}
	sqlQuery += fmt.Sprintf(" ORDER BY %s %s, id ASC LIMIT %s", sortCol, direction, arg(query.Limit+1))

	rows, err := r.db.QueryWithRetry(ctx, r.strategy, sqlQuery, args...)
	if err != nil {
		zlog.Logger.Error().Err(err).Msg("failed to scan image records")
		return nil, nil, fmt.Errorf("%w: scan images: %v", domain.ErrStoreUnavailable, err)
	}
	defer rows.Close()

	records, err := scanImages(rows)
	if err != nil {
		return nil, nil, err
	}

	if len(records) <= query.Limit {
		return records, nil, nil
	}

	page := records[:query.Limit]
	next := domain.CursorFor(page[len(page)-1], query.Sort)
	return page, next, nil
}

// escapeLike neutralizes LIKE metacharacters so the filename filter is
// a literal substring match, same as the memory backend.
func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanImage(row rowScanner) (*domain.ImageRecord, error) {
	var rec domain.ImageRecord
	var checksum, processingError sql.NullString
	var width, height sql.NullInt32
	var tags pq.StringArray

	err := row.Scan(
		&rec.ID,
		&rec.OwnerID,
		&rec.BlobRef,
		&rec.Filename,
		&rec.ContentType,
		&rec.Description,
		&tags,
		&rec.Visibility,
		&rec.SizeBytes,
		&checksum,
		&width,
		&height,
		&rec.ProcessingStatus,
		&processingError,
		&rec.Version,
		&rec.CreatedAt,
		&rec.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	rec.Tags = []string(tags)
	if checksum.Valid {
		rec.Checksum = checksum.String
	}
	if processingError.Valid {
		rec.ProcessingError = processingError.String
	}
	if width.Valid {
		rec.Width = int(width.Int32)
	}
	if height.Valid {
		rec.Height = int(height.Int32)
	}

	return &rec, nil
}

func scanImages(rows *sql.Rows) ([]*domain.ImageRecord, error) {
	records := make([]*domain.ImageRecord, 0)

	for rows.Next() {
		rec, err := scanImage(rows)
		if err != nil {
			return nil, fmt.Errorf("scan image row: %w", err)
		}
		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}

	return records, nil
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullInt(i int) sql.NullInt32 {
	if i == 0 {
		return sql.NullInt32{}
	}
	return sql.NullInt32{Int32: int32(i), Valid: true}
}
