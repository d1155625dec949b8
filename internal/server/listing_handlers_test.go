package server

import (
	"fmt"
	"net/http"
	"testing"

	"bizdir/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompanyCRUD(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	_, ownerToken := env.user(t, "owner", models.RoleUser)
	_, otherToken := env.user(t, "other", models.RoleUser)
	_, adminToken := env.user(t, "boss", models.RoleAdmin)

	var company models.Company
	require.Equal(t, http.StatusCreated, env.do(t, http.MethodPost, "/api/companies", ownerToken,
		map[string]string{"name": "Acme Supply", "tax_id": "99-1234567", "website": "https://acme.example"}, &company))
	assert.Equal(t, models.ApprovalStatusPending, company.ApprovalStatus)

	itemPath := fmt.Sprintf("/api/companies/%d", company.ID)

	var errBody models.ErrorResponse
	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodGet, itemPath, otherToken, nil, &errBody))

	var fetched models.Company
	require.Equal(t, http.StatusOK, env.do(t, http.MethodGet, itemPath, ownerToken, nil, &fetched))
	assert.Equal(t, "Acme Supply", fetched.Name)

	var mine []models.Company
	require.Equal(t, http.StatusOK, env.do(t, http.MethodGet, "/api/companies", ownerToken, nil, &mine))
	assert.Len(t, mine, 1)
	require.Equal(t, http.StatusOK, env.do(t, http.MethodGet, "/api/companies", otherToken, nil, &mine))
	assert.Empty(t, mine)

	require.Equal(t, http.StatusOK, env.do(t, http.MethodPost,
		fmt.Sprintf("/api/admin/approvals/company/%d/approve", company.ID), adminToken, nil, nil))
	require.Equal(t, http.StatusOK, env.do(t, http.MethodGet, itemPath, otherToken, nil, &fetched))

	// Phone is a contact detail and keeps the approval.
	var updated models.Company
	require.Equal(t, http.StatusOK, env.do(t, http.MethodPut, itemPath, ownerToken,
		map[string]string{"phone": "555-0100"}, &updated))
	assert.Equal(t, models.ApprovalStatusApproved, updated.ApprovalStatus)
	assert.Equal(t, "555-0100", updated.Phone)

	require.Equal(t, http.StatusOK, env.do(t, http.MethodPut, itemPath, ownerToken,
		map[string]string{"name": "Acme Wholesale"}, &updated))
	assert.Equal(t, models.ApprovalStatusPending, updated.ApprovalStatus)
	assert.Nil(t, updated.ApprovedAt)

	assert.Equal(t, http.StatusForbidden, env.do(t, http.MethodPut, itemPath, otherToken,
		map[string]string{"name": "Hijacked"}, &errBody))
	assert.Equal(t, http.StatusForbidden, env.do(t, http.MethodDelete, itemPath, otherToken, nil, &errBody))

	assert.Equal(t, http.StatusNoContent, env.do(t, http.MethodDelete, itemPath, ownerToken, nil, nil))
	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodGet, itemPath, ownerToken, nil, &errBody))

	// The decision survives deletion of the entry.
	var history []models.ApprovalLog
	require.Equal(t, http.StatusOK, env.do(t, http.MethodGet,
		fmt.Sprintf("/api/admin/approvals/company/%d/history", company.ID), adminToken, nil, &history))
	assert.Len(t, history, 1)
}

func TestCreateCompany_Validation(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	_, token := env.user(t, "owner", models.RoleUser)

	tests := []struct {
		name   string
		body   any
		status int
		field  string
	}{
		{"missing name", map[string]string{"tax_id": "1"}, http.StatusUnprocessableEntity, "name"},
		{"bad website", map[string]string{"name": "A", "tax_id": "1", "website": "not a url"}, http.StatusUnprocessableEntity, "website"},
		{"malformed", "{", http.StatusBadRequest, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var body models.ErrorResponse
			assert.Equal(t, tt.status, env.do(t, http.MethodPost, "/api/companies", token, tt.body, &body))
			assert.Equal(t, tt.field, body.Field)
		})
	}

	require.Equal(t, http.StatusCreated, env.do(t, http.MethodPost, "/api/companies", token,
		map[string]string{"name": "First", "tax_id": "DUP"}, nil))
	var dup models.ErrorResponse
	assert.Equal(t, http.StatusConflict, env.do(t, http.MethodPost, "/api/companies", token,
		map[string]string{"name": "Second", "tax_id": "DUP"}, &dup))
}

func TestExperienceAndCertification(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	_, token := env.user(t, "owner", models.RoleUser)

	var exp models.Experience
	require.Equal(t, http.StatusCreated, env.do(t, http.MethodPost, "/api/experiences", token, map[string]string{
		"company":    "Globex",
		"position":   "Account Manager",
		"start_date": "2019-03-01T00:00:00Z",
	}, &exp))
	assert.Equal(t, models.ApprovalStatusApproved, exp.ApprovalStatus)

	var errBody models.ErrorResponse
	assert.Equal(t, http.StatusUnprocessableEntity, env.do(t, http.MethodPost, "/api/experiences", token, map[string]string{
		"company":    "Globex",
		"position":   "Account Manager",
		"start_date": "2019-03-01T00:00:00Z",
		"end_date":   "2018-01-01T00:00:00Z",
	}, &errBody))
	assert.Equal(t, "end_date", errBody.Field)

	var cert models.Certification
	require.Equal(t, http.StatusCreated, env.do(t, http.MethodPost, "/api/certifications", token, map[string]string{
		"name":      "Certified Sales Professional",
		"issuer":    "NASP",
		"file_name": "csp.pdf",
		"file_mime": "application/pdf",
	}, &cert))
	assert.Equal(t, models.ApprovalStatusPending, cert.ApprovalStatus)

	var certs []models.Certification
	require.Equal(t, http.StatusOK, env.do(t, http.MethodGet, "/api/certifications", token, nil, &certs))
	require.Len(t, certs, 1)
	assert.Equal(t, "csp.pdf", certs[0].FileName)
}
