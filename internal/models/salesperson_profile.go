package models

import "time"

// SalespersonProfile is the public card shown for an approved salesperson.
type SalespersonProfile struct {
	ID             uint   `gorm:"primaryKey" json:"id"`
	UserID         uint   `gorm:"not null;uniqueIndex" json:"user_id"`
	CompanyID      *uint  `gorm:"index" json:"company_id"`
	FullName       string `gorm:"size:120;not null" json:"full_name" validate:"required,max=120"`
	Phone          string `gorm:"size:32" json:"phone" validate:"max=32"`
	Bio            string `gorm:"type:text" json:"bio" validate:"max=2000"`
	Specialties    string `gorm:"size:500" json:"specialties" validate:"max=500"`
	ServiceRegions string `gorm:"size:500" json:"service_regions" validate:"max=500"`
	Approval
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (p *SalespersonProfile) ApprovableType() ApprovableType { return ApprovableSalespersonProfile }

func (p *SalespersonProfile) ApprovableID() uint { return p.ID }

func (p *SalespersonProfile) OwnerID() uint { return p.UserID }

func (p *SalespersonProfile) SubmittedAt() time.Time { return p.CreatedAt }
