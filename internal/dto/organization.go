package dto

import (
	"time"

	"github.com/opennpo/nonprofit_books_app/internal/core/domain"
	"github.com/shopspring/decimal"
)

// CreateOrganizationRequest defines the data needed to create an organization.
type CreateOrganizationRequest struct {
	Name                   string     `json:"name" binding:"required"`
	Mission                string     `json:"mission"`
	Email                  string     `json:"email" binding:"omitempty,email"`
	TaxID                  string     `json:"taxID"`
	FundBalanceAccountID   string     `json:"fundBalanceAccountID"`
	IncomeSummaryAccountID string     `json:"incomeSummaryAccountID"`
	EffectiveAt            *time.Time `json:"effectiveAt"`
}

// UpdateOrganizationRequest revises an organization. Nil fields are untouched.
type UpdateOrganizationRequest struct {
	Name                   *string    `json:"name"`
	Mission                *string    `json:"mission"`
	Email                  *string    `json:"email" binding:"omitempty,email"`
	TaxID                  *string    `json:"taxID"`
	FundBalanceAccountID   *string    `json:"fundBalanceAccountID"`
	IncomeSummaryAccountID *string    `json:"incomeSummaryAccountID"`
	EffectiveAt            *time.Time `json:"effectiveAt"`
}

// OrganizationResponse defines the data returned for an organization version.
type OrganizationResponse struct {
	OrganizationID         string              `json:"organizationID"`
	Name                   string              `json:"name"`
	Mission                string              `json:"mission"`
	Email                  string              `json:"email"`
	TaxID                  string              `json:"taxID"`
	FundBalanceAccountID   string              `json:"fundBalanceAccountID"`
	IncomeSummaryAccountID string              `json:"incomeSummaryAccountID"`
	Version                VersionMetaResponse `json:"version"`
}

func ToOrganizationResponse(v *domain.Versioned[domain.Organization]) OrganizationResponse {
	return OrganizationResponse{
		OrganizationID:         v.EntityID,
		Name:                   v.Entity.Name,
		Mission:                v.Entity.Mission,
		Email:                  v.Entity.Email,
		TaxID:                  v.Entity.TaxID,
		FundBalanceAccountID:   v.Entity.FundBalanceAccountID,
		IncomeSummaryAccountID: v.Entity.IncomeSummaryAccountID,
		Version:                ToVersionMetaResponse(v.VersionMeta),
	}
}

func ToListOrganizationResponse(orgs []domain.Versioned[domain.Organization]) []OrganizationResponse {
	res := make([]OrganizationResponse, len(orgs))
	for i := range orgs {
		res[i] = ToOrganizationResponse(&orgs[i])
	}
	return res
}

// CreateContactRequest defines the data needed to create a contact.
type CreateContactRequest struct {
	OrganizationID string     `json:"organizationID" binding:"required"`
	FirstName      string     `json:"firstName" binding:"required"`
	LastName       string     `json:"lastName"`
	Email          string     `json:"email" binding:"omitempty,email"`
	Phone          string     `json:"phone"`
	Address        string     `json:"address"`
	EffectiveAt    *time.Time `json:"effectiveAt"`
}

// UpdateContactRequest revises a contact. Nil fields are untouched.
type UpdateContactRequest struct {
	FirstName   *string    `json:"firstName"`
	LastName    *string    `json:"lastName"`
	Email       *string    `json:"email" binding:"omitempty,email"`
	Phone       *string    `json:"phone"`
	Address     *string    `json:"address"`
	EffectiveAt *time.Time `json:"effectiveAt"`
}

// ContactResponse defines the data returned for a contact version.
type ContactResponse struct {
	ContactID      string              `json:"contactID"`
	OrganizationID string              `json:"organizationID"`
	FirstName      string              `json:"firstName"`
	LastName       string              `json:"lastName"`
	Email          string              `json:"email"`
	Phone          string              `json:"phone"`
	Address        string              `json:"address"`
	Version        VersionMetaResponse `json:"version"`
}

func ToContactResponse(v *domain.Versioned[domain.Contact]) ContactResponse {
	return ContactResponse{
		ContactID:      v.EntityID,
		OrganizationID: v.Entity.OrganizationID,
		FirstName:      v.Entity.FirstName,
		LastName:       v.Entity.LastName,
		Email:          v.Entity.Email,
		Phone:          v.Entity.Phone,
		Address:        v.Entity.Address,
		Version:        ToVersionMetaResponse(v.VersionMeta),
	}
}

func ToListContactResponse(contacts []domain.Versioned[domain.Contact]) []ContactResponse {
	res := make([]ContactResponse, len(contacts))
	for i := range contacts {
		res[i] = ToContactResponse(&contacts[i])
	}
	return res
}

// CreateMembershipRequest defines the data needed to enroll a member.
type CreateMembershipRequest struct {
	OrganizationID string                 `json:"organizationID" binding:"required"`
	ContactID      string                 `json:"contactID" binding:"required"`
	Level          domain.MembershipLevel `json:"level" binding:"required,oneof=INDIVIDUAL HOUSEHOLD SUSTAINING LIFETIME"`
	StartDate      time.Time              `json:"startDate" binding:"required"`
	EndDate        *time.Time             `json:"endDate"`
	EffectiveAt    *time.Time             `json:"effectiveAt"`
}

// UpdateMembershipRequest revises a membership. Nil fields are untouched.
type UpdateMembershipRequest struct {
	Level       *domain.MembershipLevel `json:"level" binding:"omitempty,oneof=INDIVIDUAL HOUSEHOLD SUSTAINING LIFETIME"`
	EndDate     *time.Time              `json:"endDate"`
	EffectiveAt *time.Time              `json:"effectiveAt"`
}

// MembershipResponse defines the data returned for a membership version.
type MembershipResponse struct {
	MembershipID   string                 `json:"membershipID"`
	OrganizationID string                 `json:"organizationID"`
	ContactID      string                 `json:"contactID"`
	Level          domain.MembershipLevel `json:"level"`
	StartDate      time.Time              `json:"startDate"`
	EndDate        *time.Time             `json:"endDate,omitempty"`
	Version        VersionMetaResponse    `json:"version"`
}

func ToMembershipResponse(v *domain.Versioned[domain.Membership]) MembershipResponse {
	return MembershipResponse{
		MembershipID:   v.EntityID,
		OrganizationID: v.Entity.OrganizationID,
		ContactID:      v.Entity.ContactID,
		Level:          v.Entity.Level,
		StartDate:      v.Entity.StartDate,
		EndDate:        v.Entity.EndDate,
		Version:        ToVersionMetaResponse(v.VersionMeta),
	}
}

func ToListMembershipResponse(memberships []domain.Versioned[domain.Membership]) []MembershipResponse {
	res := make([]MembershipResponse, len(memberships))
	for i := range memberships {
		res[i] = ToMembershipResponse(&memberships[i])
	}
	return res
}

// CreateProgramSpendingRequest records how program funds were applied.
type CreateProgramSpendingRequest struct {
	OrganizationID string          `json:"organizationID" binding:"required"`
	ProgramName    string          `json:"programName" binding:"required"`
	AccountID      string          `json:"accountID" binding:"required"`
	Amount         decimal.Decimal `json:"amount" binding:"required"`
	SpentAt        time.Time       `json:"spentAt" binding:"required"`
	Notes          string          `json:"notes"`
	EffectiveAt    *time.Time      `json:"effectiveAt"`
}

// UpdateProgramSpendingRequest revises a spending record. Nil fields are untouched.
type UpdateProgramSpendingRequest struct {
	ProgramName *string          `json:"programName"`
	Amount      *decimal.Decimal `json:"amount"`
	Notes       *string          `json:"notes"`
	EffectiveAt *time.Time       `json:"effectiveAt"`
}

// ProgramSpendingResponse defines the data returned for a spending version.
type ProgramSpendingResponse struct {
	SpendingID     string              `json:"spendingID"`
	OrganizationID string              `json:"organizationID"`
	ProgramName    string              `json:"programName"`
	AccountID      string              `json:"accountID"`
	Amount         decimal.Decimal     `json:"amount"`
	SpentAt        time.Time           `json:"spentAt"`
	Notes          string              `json:"notes"`
	Version        VersionMetaResponse `json:"version"`
}

func ToProgramSpendingResponse(v *domain.Versioned[domain.ProgramSpending]) ProgramSpendingResponse {
	return ProgramSpendingResponse{
		SpendingID:     v.EntityID,
		OrganizationID: v.Entity.OrganizationID,
		ProgramName:    v.Entity.ProgramName,
		AccountID:      v.Entity.AccountID,
		Amount:         v.Entity.Amount,
		SpentAt:        v.Entity.SpentAt,
		Notes:          v.Entity.Notes,
		Version:        ToVersionMetaResponse(v.VersionMeta),
	}
}

func ToListProgramSpendingResponse(records []domain.Versioned[domain.ProgramSpending]) []ProgramSpendingResponse {
	res := make([]ProgramSpendingResponse, len(records))
	for i := range records {
		res[i] = ToProgramSpendingResponse(&records[i])
	}
	return res
}
