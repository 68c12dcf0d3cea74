package pgsql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/opennpo/nonprofit_books_app/internal/apperrors"
	"github.com/opennpo/nonprofit_books_app/internal/core/domain"
	portsrepo "github.com/opennpo/nonprofit_books_app/internal/core/ports/repositories"
)

// PgxVersionRepository persists bitemporal version chains in the append-only
// entity_versions table. Payloads are stored as JSONB; typed decoding happens
// in the service layer.
type PgxVersionRepository struct {
	BaseRepository
}

// newPgxVersionRepository creates a new repository for version rows.
func newPgxVersionRepository(pool *pgxpool.Pool) *PgxVersionRepository {
	return &PgxVersionRepository{BaseRepository{Pool: pool}}
}

var _ portsrepo.VersionRepository = (*PgxVersionRepository)(nil)

const versionColumns = `entity_type, entity_id, version_id, previous_version_id, valid_from, valid_to, system_from, system_to, is_deleted, deleted_at, changed_by, payload`

func scanVersionRecord(row pgx.Row) (*portsrepo.VersionRecord, error) {
	var rec portsrepo.VersionRecord
	var entityType string
	var prevID sql.NullString
	var deletedAt sql.NullTime

	err := row.Scan(
		&entityType,
		&rec.Meta.EntityID,
		&rec.Meta.VersionID,
		&prevID,
		&rec.Meta.ValidFrom,
		&rec.Meta.ValidTo,
		&rec.Meta.SystemFrom,
		&rec.Meta.SystemTo,
		&rec.Meta.IsDeleted,
		&deletedAt,
		&rec.Meta.ChangedBy,
		&rec.Payload,
	)
	if err != nil {
		return nil, err
	}
	if prevID.Valid {
		rec.Meta.PreviousVersionID = &prevID.String
	}
	if deletedAt.Valid {
		t := deletedAt.Time
		rec.Meta.DeletedAt = &t
	}
	return &rec, nil
}

func collectVersionRecords(rows pgx.Rows) ([]portsrepo.VersionRecord, error) {
	defer rows.Close()
	recs := []portsrepo.VersionRecord{}
	for rows.Next() {
		rec, err := scanVersionRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan version row: %w", err)
		}
		recs = append(recs, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating version rows: %w", err)
	}
	return recs, nil
}

func insertVersion(ctx context.Context, q querier, entityType domain.EntityType, rec portsrepo.VersionRecord) error {
	query := `
		INSERT INTO entity_versions (` + versionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12);
	`
	var prevID sql.NullString
	if rec.Meta.PreviousVersionID != nil {
		prevID = sql.NullString{String: *rec.Meta.PreviousVersionID, Valid: true}
	}
	var deletedAt sql.NullTime
	if rec.Meta.DeletedAt != nil {
		deletedAt = sql.NullTime{Time: *rec.Meta.DeletedAt, Valid: true}
	}

	_, err := q.Exec(ctx, query,
		string(entityType),
		rec.Meta.EntityID,
		rec.Meta.VersionID,
		prevID,
		rec.Meta.ValidFrom,
		rec.Meta.ValidTo,
		rec.Meta.SystemFrom,
		rec.Meta.SystemTo,
		rec.Meta.IsDeleted,
		deletedAt,
		rec.Meta.ChangedBy,
		rec.Payload,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: version %s already recorded", apperrors.ErrDuplicate, rec.Meta.VersionID)
		}
		return fmt.Errorf("failed to insert version %s: %w", rec.Meta.VersionID, err)
	}
	return nil
}

// InsertVersion appends a brand-new version-1 row.
func (r *PgxVersionRepository) InsertVersion(ctx context.Context, entityType domain.EntityType, rec portsrepo.VersionRecord) error {
	return insertVersion(ctx, r.Pool, entityType, rec)
}

// CloseAndInsert closes the live row and appends its successor in one
// transaction. The close is conditioned on the row still being system-current
// so a raced revision surfaces as ErrConflict with nothing written.
func (r *PgxVersionRepository) CloseAndInsert(ctx context.Context, entityType domain.EntityType, closingVersionID string, closedAt time.Time, closedValidTo time.Time, next portsrepo.VersionRecord) error {
	tx, err := r.Begin(ctx)
	if err != nil {
		return err
	}
	defer r.Rollback(ctx, tx)

	closeQuery := `
		UPDATE entity_versions
		SET system_to = $2, valid_to = $3
		WHERE version_id = $1 AND system_to = $4;
	`
	cmdTag, err := tx.Exec(ctx, closeQuery, closingVersionID, closedAt, closedValidTo, domain.MaxTime)
	if err != nil {
		return fmt.Errorf("failed to close version %s: %w", closingVersionID, err)
	}
	if cmdTag.RowsAffected() == 0 {
		return fmt.Errorf("%w: version %s was superseded concurrently", apperrors.ErrConflict, closingVersionID)
	}

	if err := insertVersion(ctx, tx, entityType, next); err != nil {
		return err
	}

	return r.Commit(ctx, tx)
}

// FindCurrent returns the live row for the entity: current in both clocks and
// not soft-deleted.
func (r *PgxVersionRepository) FindCurrent(ctx context.Context, entityType domain.EntityType, entityID string) (*portsrepo.VersionRecord, error) {
	query := `
		SELECT ` + versionColumns + `
		FROM entity_versions
		WHERE entity_type = $1 AND entity_id = $2
		  AND system_to = $3 AND valid_to = $3 AND NOT is_deleted;
	`
	rec, err := scanVersionRecord(r.Pool.QueryRow(ctx, query, string(entityType), entityID, domain.MaxTime))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s %s", apperrors.ErrNotFound, entityType, entityID)
		}
		return nil, fmt.Errorf("failed to find current version of %s %s: %w", entityType, entityID, err)
	}
	return rec, nil
}

// ListCurrent returns the live rows of every entity of the type.
func (r *PgxVersionRepository) ListCurrent(ctx context.Context, entityType domain.EntityType) ([]portsrepo.VersionRecord, error) {
	query := `
		SELECT ` + versionColumns + `
		FROM entity_versions
		WHERE entity_type = $1
		  AND system_to = $2 AND valid_to = $2 AND NOT is_deleted
		ORDER BY valid_from, entity_id;
	`
	rows, err := r.Pool.Query(ctx, query, string(entityType), domain.MaxTime)
	if err != nil {
		return nil, fmt.Errorf("failed to list current %s versions: %w", entityType, err)
	}
	return collectVersionRecords(rows)
}

// FindAsOf returns the version the system currently believes was true at
// business time at: among rows whose validity covers at, the most recently
// recorded one. A winning tombstone means the entity did not exist then.
func (r *PgxVersionRepository) FindAsOf(ctx context.Context, entityType domain.EntityType, entityID string, at time.Time) (*portsrepo.VersionRecord, error) {
	query := `
		SELECT ` + versionColumns + `
		FROM entity_versions
		WHERE entity_type = $1 AND entity_id = $2
		  AND valid_from <= $3 AND valid_to > $3
		ORDER BY system_from DESC, record_seq DESC
		LIMIT 1;
	`
	rec, err := scanVersionRecord(r.Pool.QueryRow(ctx, query, string(entityType), entityID, at))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s %s did not exist at %s", apperrors.ErrNotFound, entityType, entityID, at.Format(time.RFC3339))
		}
		return nil, fmt.Errorf("failed to find %s %s as of %s: %w", entityType, entityID, at.Format(time.RFC3339), err)
	}
	if rec.Meta.IsDeleted {
		return nil, fmt.Errorf("%w: %s %s was deleted before %s", apperrors.ErrNotFound, entityType, entityID, at.Format(time.RFC3339))
	}
	return rec, nil
}

// ListHistory returns the entity's full version chain in recording order.
func (r *PgxVersionRepository) ListHistory(ctx context.Context, entityType domain.EntityType, entityID string) ([]portsrepo.VersionRecord, error) {
	query := `
		SELECT ` + versionColumns + `
		FROM entity_versions
		WHERE entity_type = $1 AND entity_id = $2
		ORDER BY record_seq;
	`
	rows, err := r.Pool.Query(ctx, query, string(entityType), entityID)
	if err != nil {
		return nil, fmt.Errorf("failed to list history of %s %s: %w", entityType, entityID, err)
	}
	return collectVersionRecords(rows)
}

// ListChangesInRange returns every version recorded in [from, to).
func (r *PgxVersionRepository) ListChangesInRange(ctx context.Context, entityType domain.EntityType, from, to time.Time) ([]portsrepo.VersionRecord, error) {
	query := `
		SELECT ` + versionColumns + `
		FROM entity_versions
		WHERE entity_type = $1 AND system_from >= $2 AND system_from < $3
		ORDER BY record_seq;
	`
	rows, err := r.Pool.Query(ctx, query, string(entityType), from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s changes in range: %w", entityType, err)
	}
	return collectVersionRecords(rows)
}
