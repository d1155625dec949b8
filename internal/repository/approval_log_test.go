package repository

import (
	"context"
	"testing"
	"time"

	"bizdir/internal/models"
	"bizdir/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func TestApprovalLogRepository_AppendValidation(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	repo := NewApprovalLogRepository(db)
	ctx := context.Background()

	tests := []struct {
		name  string
		entry models.ApprovalLog
		field string
	}{
		{"rejection without reason", models.ApprovalLog{ApprovableType: models.ApprovableCompany, ApprovableID: 1, Action: models.ApprovalActionRejected, AdminID: 1}, "reason"},
		{"rejection with blank reason", models.ApprovalLog{ApprovableType: models.ApprovableCompany, ApprovableID: 1, Action: models.ApprovalActionRejected, AdminID: 1, Reason: strPtr("   ")}, "reason"},
		{"unknown kind", models.ApprovalLog{ApprovableType: "invoice", ApprovableID: 1, Action: models.ApprovalActionApproved, AdminID: 1}, "kind"},
		{"unknown action", models.ApprovalLog{ApprovableType: models.ApprovableCompany, ApprovableID: 1, Action: "archived", AdminID: 1}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entry := tt.entry
			err := repo.Append(ctx, &entry)
			var appErr *models.AppError
			require.ErrorAs(t, err, &appErr)
			assert.Equal(t, models.CodeValidation, appErr.Code)
			assert.Equal(t, tt.field, appErr.Field)
		})
	}

	n, err := repo.Count(ctx, models.ApprovableCompany, 1)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestApprovalLogRepository_HistoryNewestFirst(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	repo := NewApprovalLogRepository(db)
	ctx := context.Background()

	t0 := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	entries := []models.ApprovalLog{
		{ApprovableType: models.ApprovableCompany, ApprovableID: 3, Action: models.ApprovalActionRejected, AdminID: 1, Reason: strPtr("missing tax id"), CreatedAt: t0},
		{ApprovableType: models.ApprovableCompany, ApprovableID: 3, Action: models.ApprovalActionApproved, AdminID: 1, CreatedAt: t0.Add(time.Minute)},
		{ApprovableType: models.ApprovableCompany, ApprovableID: 3, Action: models.ApprovalActionRejected, AdminID: 2, Reason: strPtr("duplicate"), CreatedAt: t0.Add(time.Minute)},
		{ApprovableType: models.ApprovableCertification, ApprovableID: 3, Action: models.ApprovalActionApproved, AdminID: 1, CreatedAt: t0},
	}
	for i := range entries {
		require.NoError(t, repo.Append(ctx, &entries[i]))
	}

	history, err := repo.History(ctx, models.ApprovableCompany, 3)
	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.Equal(t, entries[2].ID, history[0].ID, "same timestamp falls back to id desc")
	assert.Equal(t, entries[1].ID, history[1].ID)
	assert.Equal(t, entries[0].ID, history[2].ID)

	n, err := repo.Count(ctx, models.ApprovableCertification, 3)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestApprovalLogRepository_InsertOnly(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	repo := NewApprovalLogRepository(db)
	entry := &models.ApprovalLog{ID: 5, ApprovableType: models.ApprovableCompany, ApprovableID: 1, Action: models.ApprovalActionApproved, AdminID: 1}

	err := repo.Append(context.Background(), entry)
	assert.True(t, models.IsCode(err, models.CodeValidation))
}
