package models

import (
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"
)

// ApprovalStatus is the moderation state of a directory entry.
type ApprovalStatus string

const (
	// ApprovalStatusPending indicates the entry is awaiting review.
	ApprovalStatusPending ApprovalStatus = "pending"
	// ApprovalStatusApproved indicates an admin accepted the entry.
	ApprovalStatusApproved ApprovalStatus = "approved"
	// ApprovalStatusRejected indicates an admin declined the entry.
	ApprovalStatusRejected ApprovalStatus = "rejected"
)

// Valid reports whether s is one of the known statuses.
func (s ApprovalStatus) Valid() bool {
	switch s {
	case ApprovalStatusPending, ApprovalStatusApproved, ApprovalStatusRejected:
		return true
	}
	return false
}

// ApprovableType is the persisted tag identifying a moderatable kind.
type ApprovableType string

const (
	// ApprovableUser is a user's request to become a salesperson.
	ApprovableUser               ApprovableType = "user"
	ApprovableCompany            ApprovableType = "company"
	ApprovableCertification      ApprovableType = "certification"
	ApprovableExperience         ApprovableType = "experience"
	ApprovableSalespersonProfile ApprovableType = "salesperson_profile"
)

var approvableTypes = []ApprovableType{
	ApprovableUser,
	ApprovableCompany,
	ApprovableCertification,
	ApprovableExperience,
	ApprovableSalespersonProfile,
}

// ApprovableTypes lists every moderatable kind in review-queue order.
func ApprovableTypes() []ApprovableType {
	out := make([]ApprovableType, len(approvableTypes))
	copy(out, approvableTypes)
	return out
}

// Valid reports whether t is a known kind.
func (t ApprovableType) Valid() bool {
	for _, known := range approvableTypes {
		if t == known {
			return true
		}
	}
	return false
}

// Rank is the position of t in the review queue ordering, or -1 if unknown.
func (t ApprovableType) Rank() int {
	for i, known := range approvableTypes {
		if t == known {
			return i
		}
	}
	return -1
}

// ParseApprovableType accepts the canonical tag plus plural and hyphenated route forms.
func ParseApprovableType(raw string) (ApprovableType, error) {
	s := strings.ToLower(strings.TrimSpace(raw))
	s = strings.ReplaceAll(s, "-", "_")
	switch s {
	case "user", "users", "salesperson", "salespeople":
		return ApprovableUser, nil
	case "company", "companies":
		return ApprovableCompany, nil
	case "certification", "certifications":
		return ApprovableCertification, nil
	case "experience", "experiences":
		return ApprovableExperience, nil
	case "salesperson_profile", "salesperson_profiles", "profile", "profiles":
		return ApprovableSalespersonProfile, nil
	}
	return "", NewFieldValidationError("kind", fmt.Sprintf("unknown approvable kind %q", raw))
}

// ApprovalAction is the decision recorded in the audit ledger.
type ApprovalAction string

const (
	// ApprovalActionApproved records an approval, including a repeat
	// approval that overwrites an earlier decision.
	ApprovalActionApproved ApprovalAction = "approved"
	// ApprovalActionRejected records a rejection. The reason is stored on
	// the ledger row alongside it.
	ApprovalActionRejected ApprovalAction = "rejected"
)

// Approvable is implemented by every moderatable kind. The approval state
// machine only talks to entries through this interface.
type Approvable interface {
	ApprovableType() ApprovableType
	ApprovableID() uint
	OwnerID() uint
	// SubmittedAt orders the pending review queue.
	SubmittedAt() time.Time
	Status() ApprovalStatus
	RowVersion() int
	SetRowVersion(v int)
	MarkApproved(adminID uint, at time.Time)
	MarkRejected(reason string)
	ResetToPending()
}

// Approval holds the decision columns shared by content kinds.
type Approval struct {
	ApprovalStatus ApprovalStatus `gorm:"type:varchar(20);not null;default:'pending';index" json:"approval_status"`
	RejectedReason *string        `gorm:"type:text" json:"rejected_reason"`
	ApprovedBy     *uint          `json:"approved_by"`
	ApprovedAt     *time.Time     `json:"approved_at"`
	Version        int            `gorm:"not null;default:1" json:"version"`
}

// BeforeCreate fills the initial decision state.
func (a *Approval) BeforeCreate(_ *gorm.DB) error {
	if a.ApprovalStatus == "" {
		a.ApprovalStatus = ApprovalStatusPending
	}
	if a.Version == 0 {
		a.Version = 1
	}
	return nil
}

func (a *Approval) Status() ApprovalStatus { return a.ApprovalStatus }

func (a *Approval) RowVersion() int { return a.Version }

func (a *Approval) SetRowVersion(v int) { a.Version = v }

// MarkApproved records an admin approval, replacing any earlier decision.
func (a *Approval) MarkApproved(adminID uint, at time.Time) {
	a.ApprovalStatus = ApprovalStatusApproved
	a.ApprovedBy = &adminID
	a.ApprovedAt = &at
	a.RejectedReason = nil
}

// MarkRejected records a rejection and drops approval metadata.
func (a *Approval) MarkRejected(reason string) {
	a.ApprovalStatus = ApprovalStatusRejected
	a.RejectedReason = &reason
	a.ApprovedBy = nil
	a.ApprovedAt = nil
}

// ResetToPending puts the entry back in the review queue.
func (a *Approval) ResetToPending() {
	a.ApprovalStatus = ApprovalStatusPending
	a.RejectedReason = nil
	a.ApprovedBy = nil
	a.ApprovedAt = nil
}

// NewApprovable returns an empty model for kind.
func NewApprovable(kind ApprovableType) (Approvable, error) {
	switch kind {
	case ApprovableUser:
		return &User{}, nil
	case ApprovableCompany:
		return &Company{}, nil
	case ApprovableCertification:
		return &Certification{}, nil
	case ApprovableExperience:
		return &Experience{}, nil
	case ApprovableSalespersonProfile:
		return &SalespersonProfile{}, nil
	}
	return nil, NewFieldValidationError("kind", fmt.Sprintf("unknown approvable kind %q", kind))
}

// ApprovableLabel is the human-readable resource name used in error messages.
func ApprovableLabel(kind ApprovableType) string {
	switch kind {
	case ApprovableUser:
		return "User"
	case ApprovableCompany:
		return "Company"
	case ApprovableCertification:
		return "Certification"
	case ApprovableExperience:
		return "Experience"
	case ApprovableSalespersonProfile:
		return "Salesperson profile"
	}
	return string(kind)
}
