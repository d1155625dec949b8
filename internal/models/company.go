package models

import "time"

// Company is a business registered in the directory.
type Company struct {
	ID          uint   `gorm:"primaryKey" json:"id"`
	Name        string `gorm:"size:200;not null" json:"name" validate:"required,max=200"`
	TaxID       string `gorm:"size:32;uniqueIndex;not null" json:"tax_id" validate:"required,max=32"`
	Industry    string `gorm:"size:120" json:"industry" validate:"max=120"`
	Address     string `gorm:"size:255" json:"address" validate:"max=255"`
	Phone       string `gorm:"size:32" json:"phone" validate:"max=32"`
	Website     string `gorm:"size:255" json:"website" validate:"omitempty,url,max=255"`
	Description string `gorm:"type:text" json:"description" validate:"max=4000"`
	CreatedBy   uint   `gorm:"not null;index" json:"created_by"`
	Approval
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (c *Company) ApprovableType() ApprovableType { return ApprovableCompany }

func (c *Company) ApprovableID() uint { return c.ID }

func (c *Company) OwnerID() uint { return c.CreatedBy }

func (c *Company) SubmittedAt() time.Time { return c.CreatedAt }
