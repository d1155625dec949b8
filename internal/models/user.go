// Package models defines the persisted domain types and API error shapes.
package models

import (
	"time"

	"gorm.io/gorm"
)

// Role is the account-level role of a user.
type Role string

const (
	RoleUser        Role = "user"
	RoleSalesperson Role = "salesperson"
	RoleAdmin       Role = "admin"
)

// User is an account. Its salesperson_* columns make it the moderatable
// entry for the salesperson-upgrade workflow.
type User struct {
	ID                    uint            `gorm:"primaryKey" json:"id"`
	Name                  string          `gorm:"size:120;not null" json:"name"`
	Email                 string          `gorm:"size:255;uniqueIndex;not null" json:"email"`
	Password              string          `gorm:"size:255" json:"-"`
	Phone                 string          `gorm:"size:32" json:"phone"`
	Role                  Role            `gorm:"type:varchar(20);not null;default:'user';index" json:"role"`
	SalespersonStatus     *ApprovalStatus `gorm:"type:varchar(20);index" json:"salesperson_status"`
	SalespersonAppliedAt  *time.Time      `json:"salesperson_applied_at"`
	SalespersonApprovedAt *time.Time      `json:"salesperson_approved_at"`
	SalespersonApprovedBy *uint           `json:"salesperson_approved_by"`
	RejectionReason       *string         `gorm:"type:text" json:"rejection_reason"`
	CanReapplyAt          *time.Time      `json:"can_reapply_at"`
	Version               int             `gorm:"not null;default:1" json:"version"`
	CreatedAt             time.Time       `json:"created_at"`
	UpdatedAt             time.Time       `json:"updated_at"`
	DeletedAt             gorm.DeletedAt  `gorm:"index" json:"-"`
}

// BeforeCreate fills role and version defaults.
func (u *User) BeforeCreate(_ *gorm.DB) error {
	if u.Role == "" {
		u.Role = RoleUser
	}
	if u.Version == 0 {
		u.Version = 1
	}
	return nil
}

// IsAdmin reports whether the user holds the admin role.
func (u *User) IsAdmin() bool { return u.Role == RoleAdmin }

func (u *User) ApprovableType() ApprovableType { return ApprovableUser }

func (u *User) ApprovableID() uint { return u.ID }

// OwnerID is the user itself.
func (u *User) OwnerID() uint { return u.ID }

func (u *User) SubmittedAt() time.Time {
	if u.SalespersonAppliedAt != nil {
		return *u.SalespersonAppliedAt
	}
	return u.CreatedAt
}

// Status is "" when the user never applied.
func (u *User) Status() ApprovalStatus {
	if u.SalespersonStatus == nil {
		return ""
	}
	return *u.SalespersonStatus
}

func (u *User) RowVersion() int { return u.Version }

func (u *User) SetRowVersion(v int) { u.Version = v }

func (u *User) MarkApproved(adminID uint, at time.Time) {
	status := ApprovalStatusApproved
	u.SalespersonStatus = &status
	u.SalespersonApprovedBy = &adminID
	u.SalespersonApprovedAt = &at
	u.RejectionReason = nil
	u.CanReapplyAt = nil
}

func (u *User) MarkRejected(reason string) {
	status := ApprovalStatusRejected
	u.SalespersonStatus = &status
	u.RejectionReason = &reason
	u.SalespersonApprovedBy = nil
	u.SalespersonApprovedAt = nil
}

func (u *User) ResetToPending() {
	status := ApprovalStatusPending
	u.SalespersonStatus = &status
	u.RejectionReason = nil
	u.SalespersonApprovedBy = nil
	u.SalespersonApprovedAt = nil
}
