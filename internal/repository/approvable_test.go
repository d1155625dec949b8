package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"bizdir/internal/models"
	"bizdir/internal/testutil"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApprovableRepository_GetForUpdateLocksRow(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewApprovableRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "companies" WHERE "companies"."id" = $1 ORDER BY "companies"."id" LIMIT $2 FOR UPDATE`)).
		WithArgs(7, 1).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "approval_status", "version"}).
			AddRow(7, "Acme", "pending", 3))

	entry, err := repo.GetForUpdate(context.Background(), models.ApprovableCompany, 7)
	require.NoError(t, err)
	assert.Equal(t, 3, entry.RowVersion())
	assert.Equal(t, models.ApprovalStatusPending, entry.Status())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestApprovableRepository_SaveIsCompareAndSwap(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	repo := NewApprovableRepository(db)
	ctx := context.Background()
	owner := testutil.CreateUser(t, db, "owner", models.RoleUser)
	c := testutil.CreateCompany(t, db, owner.ID, "Acme", time.Now().UTC())
	require.Equal(t, 1, c.Version)

	first, err := repo.Get(ctx, models.ApprovableCompany, c.ID)
	require.NoError(t, err)
	stale, err := repo.Get(ctx, models.ApprovableCompany, c.ID)
	require.NoError(t, err)

	first.MarkApproved(owner.ID, time.Now().UTC())
	require.NoError(t, repo.Save(ctx, first))
	assert.Equal(t, 2, first.RowVersion())

	stale.MarkRejected("late")
	err = repo.Save(ctx, stale)
	assert.True(t, models.IsCode(err, models.CodeConflict), "got %v", err)
	assert.Equal(t, 1, stale.RowVersion(), "version restored after a lost race")

	stored, err := repo.Get(ctx, models.ApprovableCompany, c.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ApprovalStatusApproved, stored.Status())
}

func TestApprovableRepository_ListPendingOrder(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	repo := NewApprovableRepository(db)
	owner := testutil.CreateUser(t, db, "owner", models.RoleUser)

	t0 := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	cert := testutil.CreateCertification(t, db, owner.ID, "CPA", t0)
	laterCompany := testutil.CreateCompany(t, db, owner.ID, "Later", t0.Add(time.Hour))
	company := testutil.CreateCompany(t, db, owner.ID, "Tie", t0)
	applicant := testutil.CreatePendingApplicant(t, db, "applicant", t0)
	earliest := testutil.CreateCompany(t, db, owner.ID, "Early", t0.Add(-time.Hour))

	approved := testutil.CreateCompany(t, db, owner.ID, "Done", t0.Add(-2*time.Hour))
	approved.MarkApproved(owner.ID, t0)
	require.NoError(t, repo.Save(context.Background(), approved))

	pending, err := repo.ListPending(context.Background())
	require.NoError(t, err)

	var got []string
	for _, e := range pending {
		got = append(got, string(e.ApprovableType()))
	}
	assert.Equal(t, []string{"company", "user", "company", "certification", "company"}, got)
	assert.Equal(t, earliest.ID, pending[0].ApprovableID())
	assert.Equal(t, applicant.ID, pending[1].ApprovableID())
	assert.Equal(t, company.ID, pending[2].ApprovableID())
	assert.Equal(t, cert.ID, pending[3].ApprovableID())
	assert.Equal(t, laterCompany.ID, pending[4].ApprovableID())

	onlyCerts, err := repo.ListPending(context.Background(), models.ApprovableCertification)
	require.NoError(t, err)
	assert.Len(t, onlyCerts, 1)
}

func TestApprovableRepository_CountPending(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	repo := NewApprovableRepository(db)
	owner := testutil.CreateUser(t, db, "owner", models.RoleUser)
	now := time.Now().UTC()
	testutil.CreateCompany(t, db, owner.ID, "A", now)
	testutil.CreateCompany(t, db, owner.ID, "B", now)
	testutil.CreatePendingApplicant(t, db, "applicant", now)

	counts, err := repo.CountPending(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2), counts[models.ApprovableCompany])
	assert.Equal(t, int64(1), counts[models.ApprovableUser])
	assert.Equal(t, int64(0), counts[models.ApprovableExperience])
	assert.Len(t, counts, len(models.ApprovableTypes()))
}

func TestApprovableRepository_ListApprovedAndOwner(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	repo := NewApprovableRepository(db)
	ctx := context.Background()
	owner := testutil.CreateUser(t, db, "owner", models.RoleUser)
	other := testutil.CreateUser(t, db, "other", models.RoleUser)
	now := time.Now().UTC()

	visible := testutil.CreateCompany(t, db, owner.ID, "Zeta", now)
	visible.MarkApproved(owner.ID, now)
	require.NoError(t, repo.Save(ctx, visible))
	testutil.CreateCompany(t, db, owner.ID, "Alpha", now)
	testutil.CreateCompany(t, db, other.ID, "Other", now)

	listed, err := repo.ListApproved(ctx, models.ApprovableCompany, 10, 0)
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, visible.ID, listed[0].ApprovableID())

	mine, err := repo.ListByOwner(ctx, models.ApprovableCompany, owner.ID)
	require.NoError(t, err)
	assert.Len(t, mine, 2)
}

func TestApprovableRepository_DeleteAndUnknownKind(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	repo := NewApprovableRepository(db)
	ctx := context.Background()

	err := repo.Delete(ctx, models.ApprovableCompany, 404)
	assert.True(t, models.IsCode(err, models.CodeNotFound))

	_, err = repo.Get(ctx, models.ApprovableType("invoice"), 1)
	assert.True(t, models.IsCode(err, models.CodeValidation))
}

func TestStore_WithinTransactionRollsBack(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	store := NewStore(db)
	ctx := context.Background()
	owner := testutil.CreateUser(t, db, "owner", models.RoleUser)
	c := testutil.CreateCompany(t, db, owner.ID, "Acme", time.Now().UTC())

	boom := errors.New("boom")
	err := store.WithinTransaction(ctx, func(tx Store) error {
		entry, err := tx.Approvables().GetForUpdate(ctx, models.ApprovableCompany, c.ID)
		if err != nil {
			return err
		}
		entry.MarkApproved(owner.ID, time.Now().UTC())
		if err := tx.Approvables().Save(ctx, entry); err != nil {
			return err
		}
		if err := tx.ApprovalLogs().Append(ctx, &models.ApprovalLog{
			ApprovableType: models.ApprovableCompany,
			ApprovableID:   c.ID,
			Action:         models.ApprovalActionApproved,
			AdminID:        owner.ID,
		}); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	stored, err := store.Approvables().Get(ctx, models.ApprovableCompany, c.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ApprovalStatusPending, stored.Status())
	n, err := store.ApprovalLogs().Count(ctx, models.ApprovableCompany, c.ID)
	require.NoError(t, err)
	assert.Zero(t, n)
}
