package service

import (
	"context"

	"bizdir/internal/cache"
	"bizdir/internal/models"
	"bizdir/internal/repository"
)

// UserService covers account administration outside the approval workflow.
type UserService struct {
	store repository.Store
}

func NewUserService(store repository.Store) *UserService {
	return &UserService{store: store}
}

func (s *UserService) GetUserByID(ctx context.Context, id uint) (*models.User, error) {
	return s.store.Users().GetByID(ctx, id)
}

func (s *UserService) ListAdmins(ctx context.Context) ([]models.User, error) {
	return s.store.Users().ListByRole(ctx, models.RoleAdmin)
}

// SetAdmin grants or revokes the admin role. Revoking falls back to
// salesperson when the account holds an approved application. The row is
// locked and written with the same version check as moderation decisions.
// The returned flag reports whether anything changed.
func (s *UserService) SetAdmin(ctx context.Context, targetID uint, isAdmin bool) (*models.User, bool, error) {
	var (
		user    *models.User
		changed bool
	)
	err := s.store.WithinTransaction(ctx, func(tx repository.Store) error {
		locked, err := tx.Approvables().GetForUpdate(ctx, models.ApprovableUser, targetID)
		if err != nil {
			return err
		}
		user = locked.(*models.User)
		if user.IsAdmin() == isAdmin {
			return nil
		}

		switch {
		case isAdmin:
			user.Role = models.RoleAdmin
		case user.SalespersonStatus != nil && *user.SalespersonStatus == models.ApprovalStatusApproved:
			user.Role = models.RoleSalesperson
		default:
			user.Role = models.RoleUser
		}
		changed = true
		return tx.Approvables().Save(ctx, user)
	})
	if err != nil {
		return nil, false, asAppError(err)
	}
	if changed {
		cache.InvalidateUser(ctx, user.ID)
	}
	return user, changed, nil
}
