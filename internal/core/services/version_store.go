package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/opennpo/nonprofit_books_app/internal/apperrors"
	"github.com/opennpo/nonprofit_books_app/internal/core/domain"
	portsrepo "github.com/opennpo/nonprofit_books_app/internal/core/ports/repositories"
	"github.com/opennpo/nonprofit_books_app/internal/middleware"
)

// VersionStore is the typed facade over the append-only version arena for one
// entity type. Records are never updated in place: every change closes the
// live version and appends a successor, so the full history of what was
// recorded, and when, survives forever.
//
// Two clocks run through every version: ValidFrom/ValidTo say when the fact
// was true in the real world, SystemFrom/SystemTo say when the system believed
// it. Revisions advance both together.
type VersionStore[T any] struct {
	entityType domain.EntityType
	repo       portsrepo.VersionRepository
	now        func() time.Time
}

// NewVersionStore creates a store for the given entity type.
func NewVersionStore[T any](entityType domain.EntityType, repo portsrepo.VersionRepository) *VersionStore[T] {
	return &VersionStore[T]{
		entityType: entityType,
		repo:       repo,
		now:        time.Now,
	}
}

func (s *VersionStore[T]) decode(rec *portsrepo.VersionRecord) (*domain.Versioned[T], error) {
	var entity T
	if err := json.Unmarshal(rec.Payload, &entity); err != nil {
		return nil, fmt.Errorf("%w: decoding %s version %s: %v", apperrors.ErrInternal, s.entityType, rec.Meta.VersionID, err)
	}
	return &domain.Versioned[T]{VersionMeta: rec.Meta, Entity: entity}, nil
}

func (s *VersionStore[T]) decodeAll(recs []portsrepo.VersionRecord) ([]domain.Versioned[T], error) {
	out := make([]domain.Versioned[T], 0, len(recs))
	for i := range recs {
		v, err := s.decode(&recs[i])
		if err != nil {
			return nil, err
		}
		out = append(out, *v)
	}
	return out, nil
}

// Create appends version 1 of a new entity. effectiveAt is when the fact
// became true in the real world; it may predate or postdate the call.
func (s *VersionStore[T]) Create(ctx context.Context, entityID string, entity T, effectiveAt time.Time, by string) (*domain.Versioned[T], error) {
	logger := middleware.GetLoggerFromCtx(ctx)

	if entityID == "" {
		entityID = uuid.NewString()
	}

	if existing, err := s.repo.FindCurrent(ctx, s.entityType, entityID); err == nil && existing != nil {
		return nil, fmt.Errorf("%w: %s %s already exists", apperrors.ErrDuplicate, s.entityType, entityID)
	} else if err != nil && !errors.Is(err, apperrors.ErrNotFound) {
		return nil, err
	}

	payload, err := json.Marshal(entity)
	if err != nil {
		return nil, fmt.Errorf("%w: encoding %s payload: %v", apperrors.ErrInternal, s.entityType, err)
	}

	now := s.now().UTC()
	rec := portsrepo.VersionRecord{
		Meta: domain.VersionMeta{
			EntityID:   entityID,
			VersionID:  uuid.NewString(),
			ValidFrom:  effectiveAt.UTC(),
			ValidTo:    domain.MaxTime,
			SystemFrom: now,
			SystemTo:   domain.MaxTime,
			ChangedBy:  by,
		},
		Payload: payload,
	}

	if err := s.repo.InsertVersion(ctx, s.entityType, rec); err != nil {
		logger.Error("Failed to insert initial version", slog.String("entity_type", string(s.entityType)), slog.String("entity_id", entityID), slog.String("error", err.Error()))
		return nil, err
	}

	logger.Info("Entity created", slog.String("entity_type", string(s.entityType)), slog.String("entity_id", entityID))
	return &domain.Versioned[T]{VersionMeta: rec.Meta, Entity: entity}, nil
}

// GetCurrent returns the live version of the entity.
func (s *VersionStore[T]) GetCurrent(ctx context.Context, entityID string) (*domain.Versioned[T], error) {
	rec, err := s.repo.FindCurrent(ctx, s.entityType, entityID)
	if err != nil {
		return nil, err
	}
	return s.decode(rec)
}

// ListCurrent returns the live version of every entity of this type.
func (s *VersionStore[T]) ListCurrent(ctx context.Context) ([]domain.Versioned[T], error) {
	recs, err := s.repo.ListCurrent(ctx, s.entityType)
	if err != nil {
		return nil, err
	}
	return s.decodeAll(recs)
}

// GetAsOf answers "what does the system currently believe was true at t":
// among all recorded versions whose validity covers t, the most recently
// recorded one wins. Corrections therefore rewrite the past view, while the
// superseded rows stay queryable through GetHistory.
func (s *VersionStore[T]) GetAsOf(ctx context.Context, entityID string, at time.Time) (*domain.Versioned[T], error) {
	rec, err := s.repo.FindAsOf(ctx, s.entityType, entityID, at.UTC())
	if err != nil {
		return nil, err
	}
	return s.decode(rec)
}

// GetHistory returns the entity's full version chain in recording order,
// including superseded and deleted versions.
func (s *VersionStore[T]) GetHistory(ctx context.Context, entityID string) ([]domain.Versioned[T], error) {
	recs, err := s.repo.ListHistory(ctx, s.entityType, entityID)
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, fmt.Errorf("%w: %s %s has no recorded versions", apperrors.ErrNotFound, s.entityType, entityID)
	}
	return s.decodeAll(recs)
}

// GetChangesInRange returns every version recorded in [from, to), for audit
// review of what changed during a window.
func (s *VersionStore[T]) GetChangesInRange(ctx context.Context, from, to time.Time) ([]domain.Versioned[T], error) {
	if !to.After(from) {
		return nil, fmt.Errorf("%w: range end must be after start", apperrors.ErrValidation)
	}
	recs, err := s.repo.ListChangesInRange(ctx, s.entityType, from.UTC(), to.UTC())
	if err != nil {
		return nil, err
	}
	return s.decodeAll(recs)
}

// Revise closes the live version and appends a successor whose payload is the
// live one mutated by apply. effectiveAt becomes the new ValidFrom and the
// closed version's ValidTo; it must not precede the live version's ValidFrom.
// A concurrent revision of the same entity fails with apperrors.ErrConflict.
func (s *VersionStore[T]) Revise(ctx context.Context, entityID string, effectiveAt time.Time, by string, apply func(*T) error) (*domain.Versioned[T], error) {
	logger := middleware.GetLoggerFromCtx(ctx)

	current, err := s.GetCurrent(ctx, entityID)
	if err != nil {
		return nil, err
	}

	effectiveAt = effectiveAt.UTC()
	if effectiveAt.Before(current.VersionMeta.ValidFrom) {
		return nil, fmt.Errorf("%w: effective time %s precedes current version's validity start %s",
			apperrors.ErrValidation, effectiveAt.Format(time.RFC3339), current.VersionMeta.ValidFrom.Format(time.RFC3339))
	}

	entity := current.Entity
	if err := apply(&entity); err != nil {
		return nil, err
	}

	payload, err := json.Marshal(entity)
	if err != nil {
		return nil, fmt.Errorf("%w: encoding %s payload: %v", apperrors.ErrInternal, s.entityType, err)
	}

	now := s.now().UTC()
	prevID := current.VersionMeta.VersionID
	next := portsrepo.VersionRecord{
		Meta: domain.VersionMeta{
			EntityID:          entityID,
			VersionID:         uuid.NewString(),
			PreviousVersionID: &prevID,
			ValidFrom:         effectiveAt,
			ValidTo:           domain.MaxTime,
			SystemFrom:        now,
			SystemTo:          domain.MaxTime,
			ChangedBy:         by,
		},
		Payload: payload,
	}

	if err := s.repo.CloseAndInsert(ctx, s.entityType, prevID, now, effectiveAt, next); err != nil {
		if errors.Is(err, apperrors.ErrConflict) {
			logger.Warn("Concurrent revision detected", slog.String("entity_type", string(s.entityType)), slog.String("entity_id", entityID))
		} else {
			logger.Error("Failed to append revision", slog.String("entity_type", string(s.entityType)), slog.String("entity_id", entityID), slog.String("error", err.Error()))
		}
		return nil, err
	}

	logger.Info("Entity revised", slog.String("entity_type", string(s.entityType)), slog.String("entity_id", entityID), slog.String("version_id", next.Meta.VersionID))
	return &domain.Versioned[T]{VersionMeta: next.Meta, Entity: entity}, nil
}

// ReviseWithRetry runs Revise, re-reading and retrying once when a concurrent
// revision won the race. Callers whose apply is a pure function of the current
// payload get last-writer-wins semantics without surfacing the conflict.
func (s *VersionStore[T]) ReviseWithRetry(ctx context.Context, entityID string, effectiveAt time.Time, by string, apply func(*T) error) (*domain.Versioned[T], error) {
	v, err := s.Revise(ctx, entityID, effectiveAt, by, apply)
	if errors.Is(err, apperrors.ErrConflict) {
		return s.Revise(ctx, entityID, effectiveAt, by, apply)
	}
	return v, err
}

// SoftDelete closes the live version and appends a tombstone carrying the last
// payload. The entity disappears from current reads but its history, and its
// state at any past instant, remain queryable.
func (s *VersionStore[T]) SoftDelete(ctx context.Context, entityID string, by string) error {
	logger := middleware.GetLoggerFromCtx(ctx)

	current, err := s.GetCurrent(ctx, entityID)
	if err != nil {
		return err
	}

	payload, err := json.Marshal(current.Entity)
	if err != nil {
		return fmt.Errorf("%w: encoding %s payload: %v", apperrors.ErrInternal, s.entityType, err)
	}

	now := s.now().UTC()
	prevID := current.VersionMeta.VersionID
	tombstone := portsrepo.VersionRecord{
		Meta: domain.VersionMeta{
			EntityID:          entityID,
			VersionID:         uuid.NewString(),
			PreviousVersionID: &prevID,
			ValidFrom:         now,
			ValidTo:           domain.MaxTime,
			SystemFrom:        now,
			SystemTo:          domain.MaxTime,
			IsDeleted:         true,
			DeletedAt:         &now,
			ChangedBy:         by,
		},
		Payload: payload,
	}

	if err := s.repo.CloseAndInsert(ctx, s.entityType, prevID, now, now, tombstone); err != nil {
		logger.Error("Failed to soft delete entity", slog.String("entity_type", string(s.entityType)), slog.String("entity_id", entityID), slog.String("error", err.Error()))
		return err
	}

	logger.Info("Entity soft deleted", slog.String("entity_type", string(s.entityType)), slog.String("entity_id", entityID))
	return nil
}
