package models

import (
	"time"

	"gorm.io/gorm"
)

// Certification is a professional credential claimed by a user. Only file
// metadata is stored here.
type Certification struct {
	ID           uint       `gorm:"primaryKey" json:"id"`
	UserID       uint       `gorm:"not null;index" json:"user_id"`
	Name         string     `gorm:"size:200;not null" json:"name" validate:"required,max=200"`
	Issuer       string     `gorm:"size:200;not null" json:"issuer" validate:"required,max=200"`
	CredentialID string     `gorm:"size:120" json:"credential_id" validate:"max=120"`
	IssuedAt     *time.Time `json:"issued_at"`
	ExpiresAt    *time.Time `json:"expires_at"`
	Description  string     `gorm:"type:text" json:"description" validate:"max=4000"`
	FileName     string     `gorm:"size:255" json:"file_name" validate:"max=255"`
	FileMime     string     `gorm:"size:120" json:"file_mime" validate:"max=120"`
	Approval
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (c *Certification) ApprovableType() ApprovableType { return ApprovableCertification }

func (c *Certification) ApprovableID() uint { return c.ID }

func (c *Certification) OwnerID() uint { return c.UserID }

func (c *Certification) SubmittedAt() time.Time { return c.CreatedAt }

// Experience is a work-history entry. Entries are self-asserted and start approved.
type Experience struct {
	ID          uint       `gorm:"primaryKey" json:"id"`
	UserID      uint       `gorm:"not null;index" json:"user_id"`
	Company     string     `gorm:"size:200;not null" json:"company" validate:"required,max=200"`
	Position    string     `gorm:"size:200;not null" json:"position" validate:"required,max=200"`
	StartDate   time.Time  `gorm:"not null" json:"start_date"`
	EndDate     *time.Time `json:"end_date"`
	Description string     `gorm:"type:text" json:"description" validate:"max=4000"`
	Approval
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// BeforeCreate starts experience entries in the approved state.
func (e *Experience) BeforeCreate(tx *gorm.DB) error {
	if e.ApprovalStatus == "" {
		e.ApprovalStatus = ApprovalStatusApproved
	}
	return e.Approval.BeforeCreate(tx)
}

func (e *Experience) ApprovableType() ApprovableType { return ApprovableExperience }

func (e *Experience) ApprovableID() uint { return e.ID }

func (e *Experience) OwnerID() uint { return e.UserID }

func (e *Experience) SubmittedAt() time.Time { return e.CreatedAt }
