package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"bizdir/internal/cache"
	"bizdir/internal/featureflags"
	"bizdir/internal/models"
	"bizdir/internal/observability"
	"bizdir/internal/reapply"
	"bizdir/internal/repository"
	"bizdir/internal/validation"
)

// ApplyInput is a salesperson application. The fields seed the applicant's
// public profile.
type ApplyInput struct {
	FullName       string `json:"full_name" validate:"required,max=120"`
	Phone          string `json:"phone" validate:"max=32"`
	Bio            string `json:"bio" validate:"max=2000"`
	Specialties    string `json:"specialties" validate:"max=500"`
	ServiceRegions string `json:"service_regions" validate:"max=500"`
	CompanyID      *uint  `json:"company_id"`
}

// SalespersonStatus is the applicant-facing view of an application.
type SalespersonStatus struct {
	UserID           uint                   `json:"user_id"`
	Role             models.Role            `json:"role"`
	Status           *models.ApprovalStatus `json:"status"`
	AppliedAt        *time.Time             `json:"applied_at"`
	ApprovedAt       *time.Time             `json:"approved_at"`
	RejectionReason  *string                `json:"rejection_reason"`
	CanReapply       bool                   `json:"can_reapply"`
	CanReapplyAt     *time.Time             `json:"can_reapply_at"`
	DaysUntilReapply int                    `json:"days_until_reapply"`
}

// SalespersonService handles the user side of the salesperson upgrade.
type SalespersonService struct {
	store     repository.Store
	flags     *featureflags.Manager
	publisher EventPublisher
	now       func() time.Time
}

// NewSalespersonService returns a new SalespersonService.
func NewSalespersonService(store repository.Store, flags *featureflags.Manager, publisher EventPublisher) *SalespersonService {
	return &SalespersonService{store: store, flags: flags, publisher: publisher, now: time.Now}
}

// WithClock replaces the time source. Intended for tests.
func (s *SalespersonService) WithClock(now func() time.Time) *SalespersonService {
	s.now = now
	return s
}

// Apply files or refiles a salesperson application. A rejected applicant
// must wait out the cooldown first.
func (s *SalespersonService) Apply(ctx context.Context, userID uint, in ApplyInput) (*SalespersonStatus, error) {
	if err := validation.Struct(in); err != nil {
		observability.SalespersonApplications.WithLabelValues(observability.OutcomeInvalid).Inc()
		return nil, err
	}

	now := s.now().UTC()
	var applicant *models.User
	err := s.store.WithinTransaction(ctx, func(tx repository.Store) error {
		locked, err := tx.Approvables().GetForUpdate(ctx, models.ApprovableUser, userID)
		if err != nil {
			return err
		}
		u := locked.(*models.User)
		if err := checkEligible(u, now); err != nil {
			return err
		}

		u.ResetToPending()
		u.SalespersonAppliedAt = &now
		u.CanReapplyAt = nil
		if err := tx.Approvables().Save(ctx, u); err != nil {
			return err
		}
		if err := upsertProfile(ctx, tx, u.ID, in); err != nil {
			return err
		}
		applicant = u
		return nil
	})
	observability.SalespersonApplications.WithLabelValues(outcomeFor(err)).Inc()
	if err != nil {
		return nil, asAppError(err)
	}

	cache.InvalidateUser(ctx, userID)
	cache.InvalidatePendingCounts(ctx)
	slog.InfoContext(ctx, "salesperson application submitted", "user_id", userID)

	if s.publisher != nil && s.flags.EnabledGlobally(featureflags.ApprovalNotifications) {
		event := models.ApprovalEvent{
			Type:           models.EventApprovalSubmitted,
			ApprovableType: models.ApprovableUser,
			ApprovableID:   userID,
			OwnerID:        userID,
			Status:         models.ApprovalStatusPending,
			OccurredAt:     now,
		}
		if err := s.publisher.PublishApprovalEvent(ctx, event); err != nil {
			slog.WarnContext(ctx, "failed to publish application event", "user_id", userID, "err", err)
		}
	}
	return statusView(applicant, now), nil
}

func checkEligible(u *models.User, now time.Time) error {
	if u.IsAdmin() {
		return models.NewConflictError("Admin accounts cannot apply to become a salesperson")
	}
	switch u.Status() {
	case "":
		return nil
	case models.ApprovalStatusPending:
		return models.NewConflictError("A salesperson application is already pending")
	case models.ApprovalStatusApproved:
		return models.NewConflictError("You are already an approved salesperson")
	}
	if !reapply.CanReapply(u, now) {
		return models.NewFieldValidationError("can_reapply_at", fmt.Sprintf(
			"You can reapply after %s", u.CanReapplyAt.UTC().Format(time.RFC3339),
		))
	}
	return nil
}

func upsertProfile(ctx context.Context, tx repository.Store, userID uint, in ApplyInput) error {
	existing, err := tx.Approvables().ListByOwner(ctx, models.ApprovableSalespersonProfile, userID)
	if err != nil {
		return err
	}
	if len(existing) == 0 {
		return tx.Approvables().Create(ctx, &models.SalespersonProfile{
			UserID:         userID,
			CompanyID:      in.CompanyID,
			FullName:       in.FullName,
			Phone:          in.Phone,
			Bio:            in.Bio,
			Specialties:    in.Specialties,
			ServiceRegions: in.ServiceRegions,
		})
	}

	profile := existing[0].(*models.SalespersonProfile)
	profile.CompanyID = in.CompanyID
	profile.FullName = in.FullName
	profile.Phone = in.Phone
	profile.Bio = in.Bio
	profile.Specialties = in.Specialties
	profile.ServiceRegions = in.ServiceRegions
	profile.ResetToPending()
	return tx.Approvables().Save(ctx, profile)
}

// Status returns the caller's application state.
func (s *SalespersonService) Status(ctx context.Context, userID uint) (*SalespersonStatus, error) {
	u, err := s.store.Users().GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	return statusView(u, s.now().UTC()), nil
}

func statusView(u *models.User, now time.Time) *SalespersonStatus {
	return &SalespersonStatus{
		UserID:           u.ID,
		Role:             u.Role,
		Status:           u.SalespersonStatus,
		AppliedAt:        u.SalespersonAppliedAt,
		ApprovedAt:       u.SalespersonApprovedAt,
		RejectionReason:  u.RejectionReason,
		CanReapply:       reapply.CanReapply(u, now),
		CanReapplyAt:     u.CanReapplyAt,
		DaysUntilReapply: reapply.DaysRemaining(u, now),
	}
}
