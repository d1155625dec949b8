package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"bizdir/internal/cache"
	"bizdir/internal/featureflags"
	"bizdir/internal/middleware"
	"bizdir/internal/models"
	"bizdir/internal/observability"
	"bizdir/internal/rbac"
	"bizdir/internal/reapply"
	"bizdir/internal/repository"
	"bizdir/internal/validation"
)

// Directory listings whose cached pages are invalidated on moderation changes.
const (
	ListingCompanies   = "companies"
	ListingSalespeople = "salespeople"
)

// EventPublisher delivers committed approval events to realtime subscribers.
type EventPublisher interface {
	PublishApprovalEvent(ctx context.Context, event models.ApprovalEvent) error
}

// TransitionOptions tune a single approve or reject call.
type TransitionOptions struct {
	// ExpectedVersion fails the transition with a conflict when the stored
	// row has moved on.
	ExpectedVersion *int
	// ReapplyDays overrides the configured cooldown for a rejected
	// salesperson application. Zero allows immediate reapplication.
	ReapplyDays *int
}

// ApprovalConfig carries the runtime settings of ApprovalService.
type ApprovalConfig struct {
	ReapplyDays     int
	PendingStatsTTL time.Duration
	Flags           *featureflags.Manager
	Publisher       EventPublisher
	// Now defaults to time.Now.
	Now func() time.Time
}

// ApprovalService runs the moderation state machine. Every transition is one
// database transaction covering the row lock, the entity write, the user
// cascade and the audit entry.
type ApprovalService struct {
	store           repository.Store
	reapplyDays     int
	pendingStatsTTL time.Duration
	flags           *featureflags.Manager
	publisher       EventPublisher
	now             func() time.Time
}

// NewApprovalService returns a new ApprovalService.
func NewApprovalService(store repository.Store, cfg ApprovalConfig) *ApprovalService {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.ReapplyDays < 0 {
		cfg.ReapplyDays = reapply.DefaultCooldownDays
	}
	if cfg.PendingStatsTTL <= 0 {
		cfg.PendingStatsTTL = cache.PendingCountsTTL
	}
	return &ApprovalService{
		store:           store,
		reapplyDays:     cfg.ReapplyDays,
		pendingStatsTTL: cfg.PendingStatsTTL,
		flags:           cfg.Flags,
		publisher:       cfg.Publisher,
		now:             cfg.Now,
	}
}

type decision struct {
	action      models.ApprovalAction
	reason      string
	reapplyDays int
}

// Approve marks the entry approved. Approving a salesperson application
// promotes the applicant unless they are an admin.
func (s *ApprovalService) Approve(ctx context.Context, actor rbac.Actor, kind models.ApprovableType, id uint, opts TransitionOptions) (models.Approvable, error) {
	return s.transition(ctx, actor, kind, id, opts, decision{action: models.ApprovalActionApproved})
}

// Reject marks the entry rejected with a mandatory reason.
func (s *ApprovalService) Reject(ctx context.Context, actor rbac.Actor, kind models.ApprovableType, id uint, reason string, opts TransitionOptions) (models.Approvable, error) {
	d := decision{action: models.ApprovalActionRejected, reapplyDays: s.reapplyDays}
	if !rbac.Authorize(actor, rbac.CapabilityModerate) {
		observability.RecordApprovalTransition(string(kind), string(d.action), observability.OutcomeForbidden)
		return nil, models.NewForbiddenError("Admin privileges required")
	}
	trimmed, err := validation.RejectionReason(reason)
	if err != nil {
		observability.RecordApprovalTransition(string(kind), string(d.action), observability.OutcomeInvalid)
		return nil, err
	}
	d.reason = trimmed
	if opts.ReapplyDays != nil {
		if *opts.ReapplyDays < 0 {
			observability.RecordApprovalTransition(string(kind), string(d.action), observability.OutcomeInvalid)
			return nil, models.NewFieldValidationError("reapply_days", "reapply_days must not be negative")
		}
		d.reapplyDays = *opts.ReapplyDays
	}
	return s.transition(ctx, actor, kind, id, opts, d)
}

func (s *ApprovalService) transition(ctx context.Context, actor rbac.Actor, kind models.ApprovableType, id uint, opts TransitionOptions, d decision) (result models.Approvable, err error) {
	ctx = middleware.WithApproval(ctx, string(kind), id)
	ctx, span := observability.StartDecision(ctx, string(kind), string(d.action), id, actor.ID)
	defer func() {
		outcome := outcomeFor(err)
		observability.RecordApprovalTransition(string(kind), string(d.action), outcome)
		observability.EndDecision(span, outcome, err)
	}()

	if !rbac.Authorize(actor, rbac.CapabilityModerate) {
		return nil, models.NewForbiddenError("Admin privileges required")
	}
	if !kind.Valid() {
		return nil, models.NewFieldValidationError("kind", fmt.Sprintf("unknown approvable kind %q", kind))
	}

	var (
		entry    models.Approvable
		logEntry *models.ApprovalLog
	)
	err = s.store.WithinTransaction(ctx, func(tx repository.Store) error {
		if err := authorizeStored(ctx, tx, actor); err != nil {
			return err
		}
		locked, err := tx.Approvables().GetForUpdate(ctx, kind, id)
		if err != nil {
			return err
		}
		if opts.ExpectedVersion != nil && *opts.ExpectedVersion != locked.RowVersion() {
			return models.NewConflictError(fmt.Sprintf(
				"%s %d is at version %d, expected %d",
				models.ApprovableLabel(kind), id, locked.RowVersion(), *opts.ExpectedVersion,
			))
		}

		now := s.now().UTC()
		logEntry = &models.ApprovalLog{
			ApprovableType: kind,
			ApprovableID:   id,
			Action:         d.action,
			AdminID:        actor.ID,
			CreatedAt:      now,
		}
		switch d.action {
		case models.ApprovalActionApproved:
			locked.MarkApproved(actor.ID, now)
			if u, ok := locked.(*models.User); ok {
				promoteApplicant(u)
			}
		case models.ApprovalActionRejected:
			reason := d.reason
			locked.MarkRejected(reason)
			logEntry.Reason = &reason
			if u, ok := locked.(*models.User); ok {
				demoteRejectedApplicant(u, now, d.reapplyDays)
			}
		}

		if err := tx.Approvables().Save(ctx, locked); err != nil {
			return err
		}
		if err := tx.ApprovalLogs().Append(ctx, logEntry); err != nil {
			return err
		}
		entry = locked
		return nil
	})
	if err != nil {
		return nil, asAppError(err)
	}

	slog.InfoContext(ctx, "approval decision recorded",
		"action", d.action,
		"admin_id", actor.ID,
		"version", entry.RowVersion(),
	)
	s.afterDecision(ctx, entry, logEntry)
	return entry, nil
}

// authorizeStored checks the moderator's current row rather than the role the
// caller resolved, which may come from a cached copy. The row stays share
// locked until commit so a concurrent demotion cannot interleave.
func authorizeStored(ctx context.Context, tx repository.Store, actor rbac.Actor) error {
	current, err := tx.Users().GetForShare(ctx, actor.ID)
	if err != nil {
		if models.IsCode(err, models.CodeNotFound) {
			return models.NewForbiddenError("Admin privileges required")
		}
		return err
	}
	if !rbac.Authorize(rbac.ActorFromUser(current), rbac.CapabilityModerate) {
		return models.NewForbiddenError("Admin privileges required")
	}
	return nil
}

// promoteApplicant grants the salesperson role on approval. Admins keep admin.
func promoteApplicant(u *models.User) {
	if u.Role != models.RoleAdmin {
		u.Role = models.RoleSalesperson
	}
}

// demoteRejectedApplicant drops the salesperson role and starts the
// reapplication cooldown. Admins are never demoted.
func demoteRejectedApplicant(u *models.User, now time.Time, days int) {
	if u.Role != models.RoleAdmin {
		u.Role = models.RoleUser
	}
	u.CanReapplyAt = reapply.ComputeCooldown(now, days)
}

func (s *ApprovalService) afterDecision(ctx context.Context, entry models.Approvable, logEntry *models.ApprovalLog) {
	cache.InvalidatePendingCounts(ctx)
	cache.BumpDirectory(ctx, listingFor(entry.ApprovableType()))
	if u, ok := entry.(*models.User); ok {
		cache.InvalidateUser(ctx, u.ID)
	}

	event := models.ApprovalEvent{
		Type:           models.EventApprovalDecided,
		ApprovableType: entry.ApprovableType(),
		ApprovableID:   entry.ApprovableID(),
		OwnerID:        entry.OwnerID(),
		Status:         entry.Status(),
		AdminID:        logEntry.AdminID,
		Reason:         logEntry.Reason,
		OccurredAt:     logEntry.CreatedAt,
	}
	if u, ok := entry.(*models.User); ok {
		event.CanReapplyAt = u.CanReapplyAt
	}
	s.publish(ctx, event)
}

func (s *ApprovalService) publish(ctx context.Context, event models.ApprovalEvent) {
	if s.publisher == nil || !s.flags.EnabledGlobally(featureflags.ApprovalNotifications) {
		return
	}
	if err := s.publisher.PublishApprovalEvent(ctx, event); err != nil {
		slog.WarnContext(ctx, "failed to publish approval event",
			"type", event.Type,
			"kind", event.ApprovableType,
			"id", event.ApprovableID,
			"err", err,
		)
	}
}

// Resubmit applies an owner edit. A substantive change sends the entry back
// to review; contact-only edits keep the current decision. No audit entry is
// written.
func (s *ApprovalService) Resubmit(ctx context.Context, ownerID uint, kind models.ApprovableType, id uint, patch models.Patch) (models.Approvable, error) {
	if patch == nil {
		return nil, models.NewValidationError("no changes supplied")
	}
	if patch.Kind() != kind {
		return nil, models.NewFieldValidationError("kind", fmt.Sprintf("cannot apply %s changes to a %s", patch.Kind(), kind))
	}
	if err := validation.Struct(patch); err != nil {
		return nil, err
	}

	var (
		entry       models.Approvable
		substantive bool
	)
	err := s.store.WithinTransaction(ctx, func(tx repository.Store) error {
		locked, err := tx.Approvables().GetForUpdate(ctx, kind, id)
		if err != nil {
			return err
		}
		if locked.OwnerID() != ownerID {
			return models.NewForbiddenError(fmt.Sprintf("You do not own this %s", models.ApprovableLabel(kind)))
		}
		substantive, err = patch.ApplyTo(locked)
		if err != nil {
			return err
		}
		if substantive {
			locked.ResetToPending()
		}
		if err := tx.Approvables().Save(ctx, locked); err != nil {
			return err
		}
		entry = locked
		return nil
	})
	if err != nil {
		return nil, asAppError(err)
	}

	if u, ok := entry.(*models.User); ok {
		cache.InvalidateUser(ctx, u.ID)
	}
	if substantive {
		cache.InvalidatePendingCounts(ctx)
		cache.BumpDirectory(ctx, listingFor(kind))
		s.publish(ctx, models.ApprovalEvent{
			Type:           models.EventApprovalSubmitted,
			ApprovableType: kind,
			ApprovableID:   id,
			OwnerID:        ownerID,
			Status:         entry.Status(),
			OccurredAt:     s.now().UTC(),
		})
	}
	return entry, nil
}

// ListPending returns the review queue, oldest submission first.
func (s *ApprovalService) ListPending(ctx context.Context, kinds ...models.ApprovableType) ([]models.Approvable, error) {
	for _, k := range kinds {
		if !k.Valid() {
			return nil, models.NewFieldValidationError("kind", fmt.Sprintf("unknown approvable kind %q", k))
		}
	}
	return s.store.Approvables().ListPending(ctx, kinds...)
}

// History returns every decision recorded for one entry, newest first. It
// works for entries that have since been deleted.
func (s *ApprovalService) History(ctx context.Context, kind models.ApprovableType, id uint) ([]models.ApprovalLog, error) {
	if !kind.Valid() {
		return nil, models.NewFieldValidationError("kind", fmt.Sprintf("unknown approvable kind %q", kind))
	}
	return s.store.ApprovalLogs().History(ctx, kind, id)
}

// PendingCounts returns the size of the review queue per kind.
func (s *ApprovalService) PendingCounts(ctx context.Context) (map[models.ApprovableType]int64, error) {
	var counts map[models.ApprovableType]int64
	load := func() error {
		c, err := s.store.Approvables().CountPending(ctx)
		if err != nil {
			return err
		}
		counts = c
		return nil
	}

	var err error
	if s.flags.EnabledGlobally(featureflags.PendingStatsCache) {
		key := cache.PendingCountsKey(cache.PendingCountsGeneration(ctx))
		err = cache.Aside(ctx, key, &counts, s.pendingStatsTTL, load)
	} else {
		err = load()
	}
	if err != nil {
		return nil, err
	}
	for kind, n := range counts {
		observability.PendingQueueDepth.WithLabelValues(string(kind)).Set(float64(n))
	}
	return counts, nil
}

func listingFor(kind models.ApprovableType) string {
	if kind == models.ApprovableCompany {
		return ListingCompanies
	}
	return ListingSalespeople
}

func outcomeFor(err error) string {
	if err == nil {
		return observability.OutcomeSuccess
	}
	switch models.ErrorCode(err) {
	case models.CodeConflict:
		return observability.OutcomeConflict
	case models.CodeForbidden, models.CodeUnauthorized:
		return observability.OutcomeForbidden
	case models.CodeValidation:
		return observability.OutcomeInvalid
	case models.CodeNotFound:
		return observability.OutcomeNotFound
	}
	return observability.OutcomeError
}

// asAppError keeps domain errors intact and wraps everything else.
func asAppError(err error) error {
	var appErr *models.AppError
	if errors.As(err, &appErr) {
		return err
	}
	return models.NewInternalError(err)
}
