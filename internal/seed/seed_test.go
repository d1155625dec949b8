package seed

import (
	"context"
	"net/url"
	"testing"
	"time"

	"bizdir/internal/models"
	"bizdir/internal/testutil"
	"bizdir/internal/validation"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFactory_BuildersProduceValidInput(t *testing.T) {
	f := NewFactory(nil, Options{RandomSeed: 42})

	for i := 0; i < 25; i++ {
		company := f.BuildCompany(i)
		require.NoError(t, validation.Struct(company), "company %d", i)
		_, err := url.ParseRequestURI(company.Website)
		require.NoError(t, err)

		require.NoError(t, validation.Struct(f.BuildCertification()))

		exp := f.BuildExperience()
		require.NoError(t, validation.Struct(exp))
		assert.True(t, exp.StartDate.Before(time.Now()))
		if exp.EndDate != nil {
			assert.True(t, exp.EndDate.After(exp.StartDate))
		}

		user := f.BuildUser(i)
		require.NoError(t, validation.Struct(f.BuildApplication(user)))
	}
}

func TestFactory_CreateUserDryRun(t *testing.T) {
	f := NewFactory(nil, Options{DryRun: true, SkipBcrypt: true, RandomSeed: 7})

	a, err := f.CreateUser(1)
	require.NoError(t, err)
	b, err := f.CreateUser(2)
	require.NoError(t, err)

	assert.NotZero(t, a.ID)
	assert.NotEqual(t, a.ID, b.ID)
	assert.NotEqual(t, a.Email, b.Email)
	assert.Equal(t, models.RoleUser, a.Role)
	assert.NotEqual(t, DemoPassword, a.Password)
}

func TestFactory_SameSeedSameData(t *testing.T) {
	a := NewFactory(nil, Options{RandomSeed: 99}).BuildCompany(3)
	b := NewFactory(nil, Options{RandomSeed: 99}).BuildCompany(3)
	assert.Equal(t, a, b)
}

func TestSeeder_Run(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	opts := DefaultOptions()
	opts.NumUsers = 8
	opts.ApplyRatio = 1
	opts.SkipBcrypt = true
	opts.RandomSeed = 2024

	sum, err := NewSeeder(db, opts).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 8, sum.Users)
	assert.Equal(t, 8, sum.Created[models.ApprovableUser])
	assert.Equal(t, 8, sum.Created[models.ApprovableSalespersonProfile])
	assert.GreaterOrEqual(t, sum.Created[models.ApprovableExperience], 8)

	var users int64
	require.NoError(t, db.Model(&models.User{}).Count(&users).Error)
	assert.Equal(t, int64(9), users, "seeded users plus the reviewer")

	var logs int64
	require.NoError(t, db.Model(&models.ApprovalLog{}).Count(&logs).Error)
	assert.Equal(t, int64(sum.Approved+sum.Rejected), logs)

	var salespeople int64
	require.NoError(t, db.Model(&models.User{}).Where("role = ?", models.RoleSalesperson).Count(&salespeople).Error)
	var approvedApplicants int64
	require.NoError(t, db.Model(&models.User{}).Where("salesperson_status = ?", models.ApprovalStatusApproved).Count(&approvedApplicants).Error)
	assert.Equal(t, approvedApplicants, salespeople)

	// Every rejection in the ledger carries its reason.
	var rejected []models.ApprovalLog
	require.NoError(t, db.Where("action = ?", models.ApprovalActionRejected).Find(&rejected).Error)
	for _, entry := range rejected {
		require.NotNil(t, entry.Reason)
		assert.NotEmpty(t, *entry.Reason)
	}
}

func TestSeeder_RunIsRepeatableWithClean(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	opts := Options{NumUsers: 3, SkipBcrypt: true, ShouldClean: true, RandomSeed: 5}

	_, err := NewSeeder(db, opts).Run(context.Background())
	require.NoError(t, err)
	_, err = NewSeeder(db, opts).Run(context.Background())
	require.NoError(t, err)

	var users int64
	require.NoError(t, db.Model(&models.User{}).Count(&users).Error)
	assert.Equal(t, int64(4), users)

	var reviewer models.User
	require.NoError(t, db.Where("email = ?", ReviewerEmail).First(&reviewer).Error)
	assert.Equal(t, models.RoleAdmin, reviewer.Role)
}

func TestSeeder_DryRunWritesNothing(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	sum, err := NewSeeder(db, Options{NumUsers: 5, DryRun: true, SkipBcrypt: true, ApplyRatio: 0.5, RandomSeed: 1}).
		Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 5, sum.Users)

	var users int64
	require.NoError(t, db.Model(&models.User{}).Count(&users).Error)
	assert.Zero(t, users)
}
