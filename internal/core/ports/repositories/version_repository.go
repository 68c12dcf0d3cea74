package repositories

import (
	"context"
	"time"

	"github.com/opennpo/nonprofit_books_app/internal/core/domain"
)

// VersionRecord is one row of the append-only version arena: bitemporal
// metadata plus the entity payload serialized as JSON. The typed facade over
// records lives in the service layer.
type VersionRecord struct {
	Meta    domain.VersionMeta
	Payload []byte
}

// VersionRepository persists bitemporal version chains for every versioned
// entity type. Implementations must guarantee that CloseAndInsert is atomic:
// either the close and the insert both land, or neither does.
type VersionRepository interface {
	// InsertVersion appends a brand-new version-1 row (no predecessor).
	InsertVersion(ctx context.Context, entityType domain.EntityType, rec VersionRecord) error

	// CloseAndInsert closes the version row identified by closingVersionID
	// (setting its SystemTo to closedAt and its ValidTo to closedValidTo) and
	// inserts the successor row, as a single indivisible unit. The close is
	// conditioned on the row still being system-current; if a concurrent
	// revision got there first the whole operation fails with
	// apperrors.ErrConflict and nothing is written.
	CloseAndInsert(ctx context.Context, entityType domain.EntityType, closingVersionID string, closedAt time.Time, closedValidTo time.Time, next VersionRecord) error

	// FindCurrent returns the live row for the entity (system-current,
	// business-current, not deleted), or ErrNotFound.
	FindCurrent(ctx context.Context, entityType domain.EntityType, entityID string) (*VersionRecord, error)

	// ListCurrent returns the live rows of every entity of the type.
	ListCurrent(ctx context.Context, entityType domain.EntityType) ([]VersionRecord, error)

	// FindAsOf returns the version the system currently believes was true at
	// business time at: among all recorded rows whose validity interval
	// covers at, the most recently recorded one. Returns ErrNotFound if the
	// entity did not exist at that time.
	FindAsOf(ctx context.Context, entityType domain.EntityType, entityID string, at time.Time) (*VersionRecord, error)

	// ListHistory returns the entity's full version chain ordered by
	// SystemFrom, including superseded and deleted versions.
	ListHistory(ctx context.Context, entityType domain.EntityType, entityID string) ([]VersionRecord, error)

	// ListChangesInRange returns every version whose SystemFrom falls in
	// [from, to), regardless of business-time validity.
	ListChangesInRange(ctx context.Context, entityType domain.EntityType, from, to time.Time) ([]VersionRecord, error)
}
