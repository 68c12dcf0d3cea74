package domain

import "time"

// MaxTime is the sentinel upper bound for open-ended validity intervals.
// A version row with ValidTo == MaxTime asserts the business-current fact;
// SystemTo == MaxTime marks the row the system currently relies on.
var MaxTime = time.Date(9999, 12, 31, 23, 59, 59, 0, time.UTC)

// EntityType identifies which versioned entity a version row belongs to.
type EntityType string

const (
	EntityOrganization    EntityType = "ORGANIZATION"
	EntityAccount         EntityType = "ACCOUNT"
	EntityMembership      EntityType = "MEMBERSHIP"
	EntityContact         EntityType = "CONTACT"
	EntityProgramSpending EntityType = "PROGRAM_SPENDING"
)

// VersionMeta is the bitemporal bookkeeping shared by every versioned entity.
// Rows are append-only: once a row's SystemTo is set it is never mutated again.
type VersionMeta struct {
	EntityID          string     `json:"entityID"`          // Stable logical identity, constant across versions
	VersionID         string     `json:"versionID"`         // Unique per version row
	PreviousVersionID *string    `json:"previousVersionID"` // Nil for version 1
	ValidFrom         time.Time  `json:"validFrom"`         // Business time: facts asserted true from
	ValidTo           time.Time  `json:"validTo"`           // Business time: facts asserted true until (MaxTime = current)
	SystemFrom        time.Time  `json:"systemFrom"`        // Recording time: row relied upon from
	SystemTo          time.Time  `json:"systemTo"`          // Recording time: row relied upon until (MaxTime = current)
	IsDeleted         bool       `json:"isDeleted"`
	DeletedAt         *time.Time `json:"deletedAt"`
	ChangedBy         string     `json:"changedBy"` // UserID reference
}

// IsCurrent reports whether this row is the live view of its entity: current
// in both clocks and not soft-deleted.
func (m VersionMeta) IsCurrent() bool {
	return m.SystemTo.Equal(MaxTime) && m.ValidTo.Equal(MaxTime) && !m.IsDeleted
}

// IsSystemCurrent reports whether this row is the one the system currently
// relies on, regardless of business-time validity or deletion.
func (m VersionMeta) IsSystemCurrent() bool {
	return m.SystemTo.Equal(MaxTime)
}

// Versioned pairs a version row's metadata with its typed entity payload.
type Versioned[T any] struct {
	VersionMeta
	Entity T `json:"entity"`
}
