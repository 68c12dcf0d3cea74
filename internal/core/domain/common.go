package domain

import "time"

// AuditFields holds standard audit information for non-versioned records.
// Versioned entities carry their audit trail in VersionMeta instead.
type AuditFields struct {
	CreatedAt     time.Time `json:"createdAt"`
	CreatedBy     string    `json:"createdBy"` // UserID reference
	LastUpdatedAt time.Time `json:"lastUpdatedAt"`
	LastUpdatedBy string    `json:"lastUpdatedBy"` // UserID reference
}
