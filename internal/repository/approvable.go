package repository

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"bizdir/internal/models"
	"bizdir/internal/observability"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ApprovableRepository persists every moderatable kind behind the
// models.Approvable interface.
type ApprovableRepository interface {
	Get(ctx context.Context, kind models.ApprovableType, id uint) (models.Approvable, error)
	// GetForUpdate loads the row with SELECT ... FOR UPDATE. Only meaningful
	// inside Store.WithinTransaction.
	GetForUpdate(ctx context.Context, kind models.ApprovableType, id uint) (models.Approvable, error)
	Create(ctx context.Context, entry models.Approvable) error
	// Save writes every column with compare-and-swap on version. On success
	// the entry's version is advanced; a stale version yields a Conflict.
	Save(ctx context.Context, entry models.Approvable) error
	Delete(ctx context.Context, kind models.ApprovableType, id uint) error
	// ListPending returns pending entries of the given kinds (all kinds when
	// none are named), oldest submission first.
	ListPending(ctx context.Context, kinds ...models.ApprovableType) ([]models.Approvable, error)
	CountPending(ctx context.Context) (map[models.ApprovableType]int64, error)
	ListByOwner(ctx context.Context, kind models.ApprovableType, ownerID uint) ([]models.Approvable, error)
	ListApproved(ctx context.Context, kind models.ApprovableType, limit, offset int) ([]models.Approvable, error)
}

// kindSpec maps a kind to the columns the generic queries need.
type kindSpec struct {
	table        string
	ownerColumn  string
	statusColumn string
	queueColumn  string
	listOrder    string
}

var kindSpecs = map[models.ApprovableType]kindSpec{
	models.ApprovableUser: {
		table:        "users",
		ownerColumn:  "id",
		statusColumn: "salesperson_status",
		queueColumn:  "salesperson_applied_at",
		listOrder:    "name ASC, id ASC",
	},
	models.ApprovableCompany: {
		table:        "companies",
		ownerColumn:  "created_by",
		statusColumn: "approval_status",
		queueColumn:  "created_at",
		listOrder:    "name ASC, id ASC",
	},
	models.ApprovableCertification: {
		table:        "certifications",
		ownerColumn:  "user_id",
		statusColumn: "approval_status",
		queueColumn:  "created_at",
		listOrder:    "id ASC",
	},
	models.ApprovableExperience: {
		table:        "experiences",
		ownerColumn:  "user_id",
		statusColumn: "approval_status",
		queueColumn:  "created_at",
		listOrder:    "start_date DESC, id DESC",
	},
	models.ApprovableSalespersonProfile: {
		table:        "salesperson_profiles",
		ownerColumn:  "user_id",
		statusColumn: "approval_status",
		queueColumn:  "created_at",
		listOrder:    "full_name ASC, id ASC",
	},
}

func specFor(kind models.ApprovableType) (kindSpec, error) {
	spec, ok := kindSpecs[kind]
	if !ok {
		return kindSpec{}, models.NewFieldValidationError("kind", fmt.Sprintf("unknown approvable kind %q", kind))
	}
	return spec, nil
}

type approvableRepository struct {
	base
}

// NewApprovableRepository returns an ApprovableRepository outside any transaction.
func NewApprovableRepository(db *gorm.DB) ApprovableRepository {
	return &approvableRepository{base: newBase(db, false)}
}

func (r *approvableRepository) Get(ctx context.Context, kind models.ApprovableType, id uint) (models.Approvable, error) {
	return r.load(ctx, r.reader(ctx), kind, id)
}

func (r *approvableRepository) GetForUpdate(ctx context.Context, kind models.ApprovableType, id uint) (models.Approvable, error) {
	ctx, span := observability.StartQuery(ctx, "GetForUpdate", string(kind))
	defer span.End()
	return r.load(ctx, r.writer(ctx).Clauses(clause.Locking{Strength: "UPDATE"}), kind, id)
}

func (r *approvableRepository) load(ctx context.Context, db *gorm.DB, kind models.ApprovableType, id uint) (models.Approvable, error) {
	spec, err := specFor(kind)
	if err != nil {
		return nil, err
	}
	entry, err := models.NewApprovable(kind)
	if err != nil {
		return nil, err
	}
	defer r.metrics.TrackQuery("select", spec.table)()

	if err := db.First(entry, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError(models.ApprovableLabel(kind), id)
		}
		return nil, models.NewInternalError(err)
	}
	return entry, nil
}

func (r *approvableRepository) Create(ctx context.Context, entry models.Approvable) error {
	spec, err := specFor(entry.ApprovableType())
	if err != nil {
		return err
	}
	defer r.metrics.TrackQuery("insert", spec.table)()

	if err := r.writer(ctx).Create(entry).Error; err != nil {
		if isUniqueConstraintError(err) {
			return models.NewConflictError(fmt.Sprintf("%s already exists", models.ApprovableLabel(entry.ApprovableType())))
		}
		observability.NewRepoLogger(spec.table).LogError(ctx, err, "create")
		return models.NewInternalError(err)
	}
	observability.NewRepoLogger(spec.table).LogCreate(ctx, map[string]any{"id": entry.ApprovableID()})
	return nil
}

func (r *approvableRepository) Save(ctx context.Context, entry models.Approvable) error {
	spec, err := specFor(entry.ApprovableType())
	if err != nil {
		return err
	}
	ctx, span := observability.StartQuery(ctx, "Save", spec.table)
	defer span.End()
	defer r.metrics.TrackQuery("update", spec.table)()

	prev := entry.RowVersion()
	entry.SetRowVersion(prev + 1)
	res := r.writer(ctx).Model(entry).Where("version = ?", prev).Select("*").Updates(entry)
	if res.Error != nil {
		entry.SetRowVersion(prev)
		if isUniqueConstraintError(res.Error) {
			return models.NewConflictError(fmt.Sprintf("%s already exists", models.ApprovableLabel(entry.ApprovableType())))
		}
		span.RecordError(res.Error)
		observability.NewRepoLogger(spec.table).LogError(ctx, res.Error, "update")
		return models.NewInternalError(res.Error)
	}
	if res.RowsAffected == 0 {
		entry.SetRowVersion(prev)
		return models.NewConflictError(fmt.Sprintf("%s %d was modified concurrently", models.ApprovableLabel(entry.ApprovableType()), entry.ApprovableID()))
	}
	observability.NewRepoLogger(spec.table).LogUpdate(ctx, map[string]any{
		"id":      entry.ApprovableID(),
		"status":  string(entry.Status()),
		"version": entry.RowVersion(),
	})
	return nil
}

func (r *approvableRepository) Delete(ctx context.Context, kind models.ApprovableType, id uint) error {
	spec, err := specFor(kind)
	if err != nil {
		return err
	}
	entry, err := models.NewApprovable(kind)
	if err != nil {
		return err
	}
	defer r.metrics.TrackQuery("delete", spec.table)()

	res := r.writer(ctx).Delete(entry, id)
	if res.Error != nil {
		return models.NewInternalError(res.Error)
	}
	if res.RowsAffected == 0 {
		return models.NewNotFoundError(models.ApprovableLabel(kind), id)
	}
	observability.NewRepoLogger(spec.table).LogDelete(ctx, map[string]any{"id": id})
	return nil
}

func (r *approvableRepository) ListPending(ctx context.Context, kinds ...models.ApprovableType) ([]models.Approvable, error) {
	if len(kinds) == 0 {
		kinds = models.ApprovableTypes()
	}
	var out []models.Approvable
	for _, kind := range kinds {
		spec, err := specFor(kind)
		if err != nil {
			return nil, err
		}
		q := r.reader(ctx).
			Where(spec.statusColumn+" = ?", models.ApprovalStatusPending).
			Order(spec.queueColumn + " ASC").
			Order("id ASC")
		done := r.metrics.TrackQuery("select_pending", spec.table)
		rows, err := findKind(kind, q)
		done()
		if err != nil {
			return nil, models.NewInternalError(err)
		}
		out = append(out, rows...)
	}
	SortQueue(out)
	return out, nil
}

// SortQueue orders entries oldest submission first, then by kind, then by id.
func SortQueue(entries []models.Approvable) {
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if ta, tb := a.SubmittedAt(), b.SubmittedAt(); !ta.Equal(tb) {
			return ta.Before(tb)
		}
		if ra, rb := a.ApprovableType().Rank(), b.ApprovableType().Rank(); ra != rb {
			return ra < rb
		}
		return a.ApprovableID() < b.ApprovableID()
	})
}

func (r *approvableRepository) CountPending(ctx context.Context) (map[models.ApprovableType]int64, error) {
	out := make(map[models.ApprovableType]int64, len(kindSpecs))
	for _, kind := range models.ApprovableTypes() {
		spec := kindSpecs[kind]
		entry, _ := models.NewApprovable(kind)
		var n int64
		if err := r.reader(ctx).Model(entry).Where(spec.statusColumn+" = ?", models.ApprovalStatusPending).Count(&n).Error; err != nil {
			return nil, models.NewInternalError(err)
		}
		out[kind] = n
	}
	return out, nil
}

func (r *approvableRepository) ListByOwner(ctx context.Context, kind models.ApprovableType, ownerID uint) ([]models.Approvable, error) {
	spec, err := specFor(kind)
	if err != nil {
		return nil, err
	}
	q := r.reader(ctx).Where(spec.ownerColumn+" = ?", ownerID).Order("created_at DESC").Order("id DESC")
	rows, err := findKind(kind, q)
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return rows, nil
}

func (r *approvableRepository) ListApproved(ctx context.Context, kind models.ApprovableType, limit, offset int) ([]models.Approvable, error) {
	spec, err := specFor(kind)
	if err != nil {
		return nil, err
	}
	q := r.reader(ctx).
		Where(spec.statusColumn+" = ?", models.ApprovalStatusApproved).
		Order(spec.listOrder).
		Limit(limit).
		Offset(offset)
	rows, err := findKind(kind, q)
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return rows, nil
}

func findKind(kind models.ApprovableType, q *gorm.DB) ([]models.Approvable, error) {
	switch kind {
	case models.ApprovableUser:
		return findAs[models.User](q)
	case models.ApprovableCompany:
		return findAs[models.Company](q)
	case models.ApprovableCertification:
		return findAs[models.Certification](q)
	case models.ApprovableExperience:
		return findAs[models.Experience](q)
	case models.ApprovableSalespersonProfile:
		return findAs[models.SalespersonProfile](q)
	}
	return nil, fmt.Errorf("unknown approvable kind %q", kind)
}

func findAs[T any, PT interface {
	*T
	models.Approvable
}](q *gorm.DB) ([]models.Approvable, error) {
	var rows []T
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]models.Approvable, len(rows))
	for i := range rows {
		out[i] = PT(&rows[i])
	}
	return out, nil
}
