package models

import (
	"fmt"
	"strings"
	"time"
)

// Patch is an owner edit to one moderatable kind. ApplyTo reports whether a
// substantive field changed, which sends the entry back to review.
type Patch interface {
	Kind() ApprovableType
	ApplyTo(target Approvable) (substantive bool, err error)
}

// NewPatch returns an empty patch for kind, ready for body decoding.
func NewPatch(kind ApprovableType) (Patch, error) {
	switch kind {
	case ApprovableUser:
		return &UserPatch{}, nil
	case ApprovableCompany:
		return &CompanyPatch{}, nil
	case ApprovableCertification:
		return &CertificationPatch{}, nil
	case ApprovableExperience:
		return &ExperiencePatch{}, nil
	case ApprovableSalespersonProfile:
		return &SalespersonProfilePatch{}, nil
	}
	return nil, NewFieldValidationError("kind", fmt.Sprintf("unknown approvable kind %q", kind))
}

func patchMismatch(p Patch, target Approvable) error {
	return NewValidationError(fmt.Sprintf("cannot apply %s changes to a %s", p.Kind(), target.ApprovableType()))
}

// UserPatch carries account contact details. None of them affect a salesperson application.
type UserPatch struct {
	Name  *string `json:"name" validate:"omitnil,min=1,max=120"`
	Phone *string `json:"phone" validate:"omitempty,max=32"`
}

func (p *UserPatch) Kind() ApprovableType { return ApprovableUser }

func (p *UserPatch) ApplyTo(target Approvable) (bool, error) {
	u, ok := target.(*User)
	if !ok {
		return false, patchMismatch(p, target)
	}
	if _, err := assignRequired(&u.Name, p.Name, "name"); err != nil {
		return false, err
	}
	assignString(&u.Phone, p.Phone)
	return false, nil
}

type CompanyPatch struct {
	Name        *string `json:"name" validate:"omitnil,min=1,max=200"`
	TaxID       *string `json:"tax_id" validate:"omitnil,min=1,max=32"`
	Industry    *string `json:"industry" validate:"omitempty,max=120"`
	Address     *string `json:"address" validate:"omitempty,max=255"`
	Phone       *string `json:"phone" validate:"omitempty,max=32"`
	Website     *string `json:"website" validate:"omitempty,url,max=255"`
	Description *string `json:"description" validate:"omitempty,max=4000"`
}

func (p *CompanyPatch) Kind() ApprovableType { return ApprovableCompany }

// ApplyTo treats phone and website as contact details that skip re-review.
func (p *CompanyPatch) ApplyTo(target Approvable) (bool, error) {
	c, ok := target.(*Company)
	if !ok {
		return false, patchMismatch(p, target)
	}
	changed, err := assignRequired(&c.Name, p.Name, "name")
	if err != nil {
		return false, err
	}
	taxChanged, err := assignRequired(&c.TaxID, p.TaxID, "tax_id")
	if err != nil {
		return false, err
	}
	changed = taxChanged || changed
	changed = assignString(&c.Industry, p.Industry) || changed
	changed = assignString(&c.Address, p.Address) || changed
	changed = assignString(&c.Description, p.Description) || changed
	assignString(&c.Phone, p.Phone)
	assignString(&c.Website, p.Website)
	return changed, nil
}

type CertificationPatch struct {
	Name         *string    `json:"name" validate:"omitnil,min=1,max=200"`
	Issuer       *string    `json:"issuer" validate:"omitnil,min=1,max=200"`
	CredentialID *string    `json:"credential_id" validate:"omitempty,max=120"`
	IssuedAt     *time.Time `json:"issued_at"`
	ExpiresAt    *time.Time `json:"expires_at"`
	Description  *string    `json:"description" validate:"omitempty,max=4000"`
	FileName     *string    `json:"file_name" validate:"omitempty,max=255"`
	FileMime     *string    `json:"file_mime" validate:"omitempty,max=120"`
}

func (p *CertificationPatch) Kind() ApprovableType { return ApprovableCertification }

func (p *CertificationPatch) ApplyTo(target Approvable) (bool, error) {
	c, ok := target.(*Certification)
	if !ok {
		return false, patchMismatch(p, target)
	}
	changed, err := assignRequired(&c.Name, p.Name, "name")
	if err != nil {
		return false, err
	}
	issuerChanged, err := assignRequired(&c.Issuer, p.Issuer, "issuer")
	if err != nil {
		return false, err
	}
	changed = issuerChanged || changed
	changed = assignString(&c.CredentialID, p.CredentialID) || changed
	changed = assignTime(&c.IssuedAt, p.IssuedAt) || changed
	changed = assignTime(&c.ExpiresAt, p.ExpiresAt) || changed
	changed = assignString(&c.Description, p.Description) || changed
	changed = assignString(&c.FileName, p.FileName) || changed
	changed = assignString(&c.FileMime, p.FileMime) || changed
	if c.IssuedAt != nil && c.ExpiresAt != nil && c.ExpiresAt.Before(*c.IssuedAt) {
		return false, NewFieldValidationError("expires_at", "expires_at must not be before issued_at")
	}
	return changed, nil
}

type ExperiencePatch struct {
	Company     *string    `json:"company" validate:"omitnil,min=1,max=200"`
	Position    *string    `json:"position" validate:"omitnil,min=1,max=200"`
	StartDate   *time.Time `json:"start_date"`
	EndDate     *time.Time `json:"end_date"`
	Description *string    `json:"description" validate:"omitempty,max=4000"`
}

func (p *ExperiencePatch) Kind() ApprovableType { return ApprovableExperience }

func (p *ExperiencePatch) ApplyTo(target Approvable) (bool, error) {
	e, ok := target.(*Experience)
	if !ok {
		return false, patchMismatch(p, target)
	}
	changed, err := assignRequired(&e.Company, p.Company, "company")
	if err != nil {
		return false, err
	}
	positionChanged, err := assignRequired(&e.Position, p.Position, "position")
	if err != nil {
		return false, err
	}
	changed = positionChanged || changed
	if p.StartDate != nil && !p.StartDate.Equal(e.StartDate) {
		e.StartDate = p.StartDate.UTC()
		changed = true
	}
	changed = assignTime(&e.EndDate, p.EndDate) || changed
	changed = assignString(&e.Description, p.Description) || changed
	if e.StartDate.IsZero() {
		return false, NewFieldValidationError("start_date", "start_date is required")
	}
	if e.EndDate != nil && e.EndDate.Before(e.StartDate) {
		return false, NewFieldValidationError("end_date", "end_date must not be before start_date")
	}
	return changed, nil
}

type SalespersonProfilePatch struct {
	CompanyID      *uint   `json:"company_id"`
	FullName       *string `json:"full_name" validate:"omitnil,min=1,max=120"`
	Phone          *string `json:"phone" validate:"omitempty,max=32"`
	Bio            *string `json:"bio" validate:"omitempty,max=2000"`
	Specialties    *string `json:"specialties" validate:"omitempty,max=500"`
	ServiceRegions *string `json:"service_regions" validate:"omitempty,max=500"`
}

func (p *SalespersonProfilePatch) Kind() ApprovableType { return ApprovableSalespersonProfile }

func (p *SalespersonProfilePatch) ApplyTo(target Approvable) (bool, error) {
	sp, ok := target.(*SalespersonProfile)
	if !ok {
		return false, patchMismatch(p, target)
	}
	changed := false
	if p.CompanyID != nil && (sp.CompanyID == nil || *sp.CompanyID != *p.CompanyID) {
		id := *p.CompanyID
		sp.CompanyID = &id
		changed = true
	}
	nameChanged, err := assignRequired(&sp.FullName, p.FullName, "full_name")
	if err != nil {
		return false, err
	}
	changed = nameChanged || changed
	changed = assignString(&sp.Bio, p.Bio) || changed
	changed = assignString(&sp.Specialties, p.Specialties) || changed
	changed = assignString(&sp.ServiceRegions, p.ServiceRegions) || changed
	assignString(&sp.Phone, p.Phone)
	return changed, nil
}

func assignString(dst *string, src *string) bool {
	if src == nil {
		return false
	}
	v := strings.TrimSpace(*src)
	if *dst == v {
		return false
	}
	*dst = v
	return true
}

// assignRequired is assignString for columns that may not be blanked.
func assignRequired(dst *string, src *string, field string) (bool, error) {
	if src != nil && strings.TrimSpace(*src) == "" {
		return false, NewFieldValidationError(field, field+" must not be empty")
	}
	return assignString(dst, src), nil
}

func assignTime(dst **time.Time, src *time.Time) bool {
	if src == nil {
		return false
	}
	if *dst != nil && (*dst).Equal(*src) {
		return false
	}
	v := src.UTC()
	*dst = &v
	return true
}
