package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"bizdir/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// --- humanizeParam (pure function, no HTTP) ---

func TestHumanizeParam(t *testing.T) {
	tests := []struct {
		param    string
		expected string
	}{
		{"id", "ID"},
		{"userId", "user ID"},
		{"companyId", "company ID"},
		{"salespersonProfileId", "salesperson profile ID"},
		{"something", "something"},
	}
	for _, tt := range tests {
		t.Run(tt.param, func(t *testing.T) {
			assert.Equal(t, tt.expected, humanizeParam(tt.param))
		})
	}
}

// --- parsePagination ---

func TestParsePagination(t *testing.T) {
	app := fiber.New()
	app.Get("/items", func(c *fiber.Ctx) error {
		p := parsePagination(c, 25)
		return c.JSON(fiber.Map{"limit": p.Limit, "offset": p.Offset})
	})

	tests := []struct {
		query  string
		limit  float64
		offset float64
	}{
		{"", 25, 0},
		{"?limit=10&offset=30", 10, 30},
		{"?limit=0&offset=-5", 25, 0},
		{"?limit=5000", maxPaginationLimit, 0},
		{"?limit=abc", 25, 0},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/items"+tt.query, nil))
			require.NoError(t, err)
			defer func() { _ = resp.Body.Close() }()

			var body map[string]float64
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
			assert.Equal(t, tt.limit, body["limit"])
			assert.Equal(t, tt.offset, body["offset"])
		})
	}
}

// --- parseID ---

func TestParseID(t *testing.T) {
	tests := []struct {
		param          string
		value          string
		expectedStatus int
		expectedMsg    string
	}{
		{"id", "42", http.StatusOK, ""},
		{"id", "abc", http.StatusBadRequest, "Invalid ID"},
		{"id", "0", http.StatusBadRequest, "Invalid ID"},
		{"id", "-3", http.StatusBadRequest, "Invalid ID"},
		{"companyId", "abc", http.StatusBadRequest, "Invalid company ID"},
	}
	for _, tt := range tests {
		t.Run(tt.param+"="+tt.value, func(t *testing.T) {
			app := fiber.New()
			s := &Server{}
			app.Get("/items/:"+tt.param, func(c *fiber.Ctx) error {
				id, err := s.parseID(c, tt.param)
				if err != nil {
					return nil
				}
				return c.JSON(fiber.Map{"id": id})
			})

			resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/items/"+tt.value, nil))
			require.NoError(t, err)
			defer func() { _ = resp.Body.Close() }()
			assert.Equal(t, tt.expectedStatus, resp.StatusCode)

			if tt.expectedMsg != "" {
				var body models.ErrorResponse
				require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
				assert.Equal(t, tt.expectedMsg, body.Error)
			}
		})
	}
}

// --- parseKind ---

func TestParseKind(t *testing.T) {
	app := fiber.New()
	s := &Server{}
	app.Get("/kinds/:kind", func(c *fiber.Ctx) error {
		kind, err := s.parseKind(c)
		if err != nil {
			return nil
		}
		return c.SendString(string(kind))
	})

	tests := []struct {
		raw    string
		status int
		kind   models.ApprovableType
	}{
		{"company", http.StatusOK, models.ApprovableCompany},
		{"Certifications", http.StatusOK, models.ApprovableCertification},
		{"salesperson-profile", http.StatusOK, models.ApprovableSalespersonProfile},
		{"user", http.StatusOK, models.ApprovableUser},
		{"widget", http.StatusBadRequest, ""},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/kinds/"+tt.raw, nil))
			require.NoError(t, err)
			defer func() { _ = resp.Body.Close() }()
			assert.Equal(t, tt.status, resp.StatusCode)

			if tt.status == http.StatusOK {
				buf := make([]byte, 64)
				n, _ := resp.Body.Read(buf)
				assert.Equal(t, string(tt.kind), string(buf[:n]))
				return
			}
			var body models.ErrorResponse
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
			assert.Equal(t, "kind", body.Field)
		})
	}
}

// --- statusFor / respondError ---

func TestStatusFor(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected int
	}{
		{"not found", models.NewNotFoundError("Company", 1), http.StatusNotFound},
		{"forbidden", models.NewForbiddenError("nope"), http.StatusForbidden},
		{"unauthorized", models.NewUnauthorizedError("who"), http.StatusUnauthorized},
		{"validation", models.NewValidationError("bad"), http.StatusUnprocessableEntity},
		{"conflict", models.NewConflictError("stale"), http.StatusConflict},
		{"internal", models.NewInternalError(errors.New("boom")), http.StatusInternalServerError},
		{"plain", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, statusFor(tt.err))
		})
	}
}

func TestRespondError_WrapsPlainErrors(t *testing.T) {
	app := fiber.New()
	app.Get("/", func(c *fiber.Ctx) error {
		return respondError(c, errors.New("connection refused"))
	})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	var body models.ErrorResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, models.CodeInternal, body.Code)
	assert.NotContains(t, body.Error, "connection refused")
}

// --- isAdmin ---

func TestIsAdmin(t *testing.T) {
	tests := []struct {
		name      string
		user      *models.User
		repoErr   error
		expected  bool
		expectErr string
	}{
		{"admin", &models.User{ID: 1, Role: models.RoleAdmin}, nil, true, ""},
		{"salesperson", &models.User{ID: 1, Role: models.RoleSalesperson}, nil, false, ""},
		{"gone", nil, models.NewNotFoundError("User", uint(1)), false, models.CodeUnauthorized},
		{"db down", nil, models.NewInternalError(errors.New("db down")), false, models.CodeInternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := new(MockUserRepository)
			if tt.user != nil {
				repo.On("GetByID", mock.Anything, uint(1)).Return(tt.user, nil)
			} else {
				repo.On("GetByID", mock.Anything, uint(1)).Return(nil, tt.repoErr)
			}
			s := &Server{userRepo: repo}

			admin, err := s.isAdmin(context.Background(), 1)
			if tt.expectErr != "" {
				require.Error(t, err)
				assert.Equal(t, tt.expectErr, models.ErrorCode(err))
			} else {
				require.NoError(t, err)
			}
			assert.Equal(t, tt.expected, admin)
			repo.AssertExpectations(t)
		})
	}
}
