package service

import (
	"context"
	"fmt"
	"time"

	"bizdir/internal/cache"
	"bizdir/internal/featureflags"
	"bizdir/internal/models"
	"bizdir/internal/rbac"
	"bizdir/internal/repository"
	"bizdir/internal/validation"
)

// CompanyInput registers a company. It enters the review queue as pending.
type CompanyInput struct {
	Name        string `json:"name" validate:"required,max=200"`
	TaxID       string `json:"tax_id" validate:"required,max=32"`
	Industry    string `json:"industry" validate:"max=120"`
	Address     string `json:"address" validate:"max=255"`
	Phone       string `json:"phone" validate:"max=32"`
	Website     string `json:"website" validate:"omitempty,url,max=255"`
	Description string `json:"description" validate:"max=4000"`
}

// CertificationInput claims a credential. Only file metadata is accepted.
type CertificationInput struct {
	Name         string     `json:"name" validate:"required,max=200"`
	Issuer       string     `json:"issuer" validate:"required,max=200"`
	CredentialID string     `json:"credential_id" validate:"max=120"`
	IssuedAt     *time.Time `json:"issued_at"`
	ExpiresAt    *time.Time `json:"expires_at"`
	Description  string     `json:"description" validate:"max=4000"`
	FileName     string     `json:"file_name" validate:"max=255"`
	FileMime     string     `json:"file_mime" validate:"max=120"`
}

type ExperienceInput struct {
	Company     string     `json:"company" validate:"required,max=200"`
	Position    string     `json:"position" validate:"required,max=200"`
	StartDate   time.Time  `json:"start_date" validate:"required"`
	EndDate     *time.Time `json:"end_date"`
	Description string     `json:"description" validate:"max=4000"`
}

// ProfileInput creates the caller's salesperson profile.
type ProfileInput struct {
	CompanyID      *uint  `json:"company_id"`
	FullName       string `json:"full_name" validate:"required,max=120"`
	Phone          string `json:"phone" validate:"max=32"`
	Bio            string `json:"bio" validate:"max=2000"`
	Specialties    string `json:"specialties" validate:"max=500"`
	ServiceRegions string `json:"service_regions" validate:"max=500"`
}

// SalespersonCard is one entry of the public salesperson directory.
type SalespersonCard struct {
	Profile *models.SalespersonProfile `json:"profile"`
	Name    string                     `json:"name"`
	Email   string                     `json:"email"`
}

// ListingService covers owner CRUD on directory content and the public,
// approved-only directory.
type ListingService struct {
	store     repository.Store
	approvals *ApprovalService
	flags     *featureflags.Manager
	now       func() time.Time
}

// NewListingService returns a new ListingService. Updates are routed through
// approvals so that substantive edits re-enter review.
func NewListingService(store repository.Store, approvals *ApprovalService, flags *featureflags.Manager) *ListingService {
	return &ListingService{store: store, approvals: approvals, flags: flags, now: time.Now}
}

func (s *ListingService) CreateCompany(ctx context.Context, ownerID uint, in CompanyInput) (*models.Company, error) {
	if err := validation.Struct(in); err != nil {
		return nil, err
	}
	c := &models.Company{
		Name:        in.Name,
		TaxID:       in.TaxID,
		Industry:    in.Industry,
		Address:     in.Address,
		Phone:       in.Phone,
		Website:     in.Website,
		Description: in.Description,
		CreatedBy:   ownerID,
	}
	if err := s.create(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *ListingService) CreateCertification(ctx context.Context, ownerID uint, in CertificationInput) (*models.Certification, error) {
	if err := validation.Struct(in); err != nil {
		return nil, err
	}
	if in.IssuedAt != nil && in.ExpiresAt != nil && in.ExpiresAt.Before(*in.IssuedAt) {
		return nil, models.NewFieldValidationError("expires_at", "expires_at must not be before issued_at")
	}
	c := &models.Certification{
		UserID:       ownerID,
		Name:         in.Name,
		Issuer:       in.Issuer,
		CredentialID: in.CredentialID,
		IssuedAt:     in.IssuedAt,
		ExpiresAt:    in.ExpiresAt,
		Description:  in.Description,
		FileName:     in.FileName,
		FileMime:     in.FileMime,
	}
	if err := s.create(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// CreateExperience records a work-history entry. Experience is self-asserted
// and starts approved.
func (s *ListingService) CreateExperience(ctx context.Context, ownerID uint, in ExperienceInput) (*models.Experience, error) {
	if err := validation.Struct(in); err != nil {
		return nil, err
	}
	if in.EndDate != nil && in.EndDate.Before(in.StartDate) {
		return nil, models.NewFieldValidationError("end_date", "end_date must not be before start_date")
	}
	e := &models.Experience{
		UserID:      ownerID,
		Company:     in.Company,
		Position:    in.Position,
		StartDate:   in.StartDate,
		EndDate:     in.EndDate,
		Description: in.Description,
	}
	if err := s.create(ctx, e); err != nil {
		return nil, err
	}
	return e, nil
}

// CreateProfile creates the caller's salesperson profile. Each user has at most one.
func (s *ListingService) CreateProfile(ctx context.Context, ownerID uint, in ProfileInput) (*models.SalespersonProfile, error) {
	if err := validation.Struct(in); err != nil {
		return nil, err
	}
	p := &models.SalespersonProfile{
		UserID:         ownerID,
		CompanyID:      in.CompanyID,
		FullName:       in.FullName,
		Phone:          in.Phone,
		Bio:            in.Bio,
		Specialties:    in.Specialties,
		ServiceRegions: in.ServiceRegions,
	}
	if err := s.create(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *ListingService) create(ctx context.Context, entry models.Approvable) error {
	if err := s.store.Approvables().Create(ctx, entry); err != nil {
		return err
	}
	if entry.Status() != models.ApprovalStatusPending {
		cache.BumpDirectory(ctx, listingFor(entry.ApprovableType()))
		return nil
	}
	cache.InvalidatePendingCounts(ctx)
	if s.approvals != nil {
		s.approvals.publish(ctx, models.ApprovalEvent{
			Type:           models.EventApprovalSubmitted,
			ApprovableType: entry.ApprovableType(),
			ApprovableID:   entry.ApprovableID(),
			OwnerID:        entry.OwnerID(),
			Status:         entry.Status(),
			OccurredAt:     s.now().UTC(),
		})
	}
	return nil
}

// ListMine returns the caller's entries of one kind in every status.
func (s *ListingService) ListMine(ctx context.Context, ownerID uint, kind models.ApprovableType) ([]models.Approvable, error) {
	if kind == models.ApprovableUser {
		return nil, models.NewFieldValidationError("kind", "accounts are not listed as owned content")
	}
	return s.store.Approvables().ListByOwner(ctx, kind, ownerID)
}

// Get returns one entry. Non-owners only see approved entries.
func (s *ListingService) Get(ctx context.Context, viewerID uint, kind models.ApprovableType, id uint) (models.Approvable, error) {
	entry, err := s.store.Approvables().Get(ctx, kind, id)
	if err != nil {
		return nil, err
	}
	if entry.OwnerID() != viewerID && entry.Status() != models.ApprovalStatusApproved {
		return nil, models.NewNotFoundError(models.ApprovableLabel(kind), id)
	}
	return entry, nil
}

// Update applies an owner edit through the approval workflow.
func (s *ListingService) Update(ctx context.Context, ownerID uint, kind models.ApprovableType, id uint, patch models.Patch) (models.Approvable, error) {
	return s.approvals.Resubmit(ctx, ownerID, kind, id, patch)
}

// Delete removes an owned entry. Its audit history is kept.
func (s *ListingService) Delete(ctx context.Context, ownerID uint, kind models.ApprovableType, id uint) error {
	if kind == models.ApprovableUser {
		return models.NewFieldValidationError("kind", "accounts are deleted through the account endpoints")
	}
	var wasPending bool
	err := s.store.WithinTransaction(ctx, func(tx repository.Store) error {
		entry, err := tx.Approvables().GetForUpdate(ctx, kind, id)
		if err != nil {
			return err
		}
		if entry.OwnerID() != ownerID {
			return models.NewForbiddenError(fmt.Sprintf("You do not own this %s", models.ApprovableLabel(kind)))
		}
		wasPending = entry.Status() == models.ApprovalStatusPending
		return tx.Approvables().Delete(ctx, kind, id)
	})
	if err != nil {
		return asAppError(err)
	}
	if wasPending {
		cache.InvalidatePendingCounts(ctx)
	}
	cache.BumpDirectory(ctx, listingFor(kind))
	return nil
}

// DirectoryCompanies lists approved companies.
func (s *ListingService) DirectoryCompanies(ctx context.Context, limit, offset int) ([]*models.Company, error) {
	var out []*models.Company
	load := func() error {
		rows, err := s.store.Approvables().ListApproved(ctx, models.ApprovableCompany, limit, offset)
		if err != nil {
			return err
		}
		out = make([]*models.Company, 0, len(rows))
		for _, r := range rows {
			out = append(out, r.(*models.Company))
		}
		return nil
	}
	if err := s.cached(ctx, ListingCompanies, limit, offset, &out, load); err != nil {
		return nil, err
	}
	return out, nil
}

// DirectorySalespeople lists approved profiles whose owners currently hold a
// role allowed in the salesperson directory.
func (s *ListingService) DirectorySalespeople(ctx context.Context, limit, offset int) ([]SalespersonCard, error) {
	var out []SalespersonCard
	load := func() error {
		rows, err := s.store.Approvables().ListApproved(ctx, models.ApprovableSalespersonProfile, limit, offset)
		if err != nil {
			return err
		}
		ids := make([]uint, 0, len(rows))
		for _, r := range rows {
			ids = append(ids, r.OwnerID())
		}
		users, err := s.store.Users().ListByIDs(ctx, ids)
		if err != nil {
			return err
		}
		byID := make(map[uint]models.User, len(users))
		for _, u := range users {
			byID[u.ID] = u
		}

		out = make([]SalespersonCard, 0, len(rows))
		for _, r := range rows {
			owner, ok := byID[r.OwnerID()]
			if !ok || !rbac.HasCapability(owner.Role, rbac.CapabilityListSalesperson) {
				continue
			}
			out = append(out, SalespersonCard{
				Profile: r.(*models.SalespersonProfile),
				Name:    owner.Name,
				Email:   owner.Email,
			})
		}
		return nil
	}
	if err := s.cached(ctx, ListingSalespeople, limit, offset, &out, load); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *ListingService) cached(ctx context.Context, listing string, limit, offset int, dest any, load func() error) error {
	if !s.flags.EnabledGlobally(featureflags.DirectoryCache) {
		return load()
	}
	version := cache.DirectoryVersion(ctx, listing)
	return cache.Aside(ctx, cache.DirectoryKey(listing, version, limit, offset), dest, cache.DirectoryTTL, load)
}
