package dto

import (
	"time"

	"github.com/opennpo/nonprofit_books_app/internal/core/domain"
)

// VersionMetaResponse exposes the bitemporal bookkeeping of a version row.
type VersionMetaResponse struct {
	EntityID          string     `json:"entityID"`
	VersionID         string     `json:"versionID"`
	PreviousVersionID *string    `json:"previousVersionID,omitempty"`
	ValidFrom         time.Time  `json:"validFrom"`
	ValidTo           time.Time  `json:"validTo"`
	SystemFrom        time.Time  `json:"systemFrom"`
	SystemTo          time.Time  `json:"systemTo"`
	IsDeleted         bool       `json:"isDeleted"`
	DeletedAt         *time.Time `json:"deletedAt,omitempty"`
	ChangedBy         string     `json:"changedBy"`
}

// ToVersionMetaResponse converts domain version metadata to its DTO.
func ToVersionMetaResponse(m domain.VersionMeta) VersionMetaResponse {
	return VersionMetaResponse{
		EntityID:          m.EntityID,
		VersionID:         m.VersionID,
		PreviousVersionID: m.PreviousVersionID,
		ValidFrom:         m.ValidFrom,
		ValidTo:           m.ValidTo,
		SystemFrom:        m.SystemFrom,
		SystemTo:          m.SystemTo,
		IsDeleted:         m.IsDeleted,
		DeletedAt:         m.DeletedAt,
		ChangedBy:         m.ChangedBy,
	}
}

// AsOfParams defines the query parameter for point-in-time reads.
type AsOfParams struct {
	At time.Time `form:"at" binding:"required" time_format:"2006-01-02T15:04:05Z07:00"`
}

// ChangeRangeParams defines the query parameters for audit-window listings.
type ChangeRangeParams struct {
	From time.Time `form:"from" binding:"required" time_format:"2006-01-02T15:04:05Z07:00"`
	To   time.Time `form:"to" binding:"required" time_format:"2006-01-02T15:04:05Z07:00"`
}
