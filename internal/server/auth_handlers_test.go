package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"bizdir/internal/config"
	"bizdir/internal/middleware"
	"bizdir/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

// MockUserRepository is a mock of the UserRepository interface
type MockUserRepository struct {
	mock.Mock
}

func (m *MockUserRepository) GetByID(ctx context.Context, id uint) (*models.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserRepository) GetForShare(ctx context.Context, id uint) (*models.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserRepository) Create(ctx context.Context, user *models.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *MockUserRepository) Update(ctx context.Context, user *models.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *MockUserRepository) SetPassword(ctx context.Context, id uint, hash string) error {
	args := m.Called(ctx, id, hash)
	return args.Error(0)
}

func (m *MockUserRepository) Delete(ctx context.Context, id uint) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockUserRepository) Restore(ctx context.Context, id uint) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockUserRepository) List(ctx context.Context, limit, offset int) ([]models.User, error) {
	args := m.Called(ctx, limit, offset)
	return args.Get(0).([]models.User), args.Error(1)
}

func (m *MockUserRepository) ListByRole(ctx context.Context, role models.Role) ([]models.User, error) {
	args := m.Called(ctx, role)
	return args.Get(0).([]models.User), args.Error(1)
}

func (m *MockUserRepository) ListByIDs(ctx context.Context, ids []uint) ([]models.User, error) {
	args := m.Called(ctx, ids)
	return args.Get(0).([]models.User), args.Error(1)
}

func postJSON(t *testing.T, app *fiber.App, path string, body any) *http.Response {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func TestSignup(t *testing.T) {
	const strong = "Correct-Horse-42"

	tests := []struct {
		name           string
		body           map[string]string
		mockSetup      func(m *MockUserRepository)
		expectedStatus int
		expectedField  string
	}{
		{
			name: "Success",
			body: map[string]string{"name": "Dana", "email": "Dana@Example.test ", "password": strong},
			mockSetup: func(m *MockUserRepository) {
				m.On("Create", mock.Anything, mock.MatchedBy(func(u *models.User) bool {
					return u.Email == "dana@example.test" && u.Role == models.RoleUser && u.Password != strong
				})).Run(func(args mock.Arguments) {
					args.Get(1).(*models.User).ID = 7
				}).Return(nil)
			},
			expectedStatus: http.StatusCreated,
		},
		{
			name:           "Weak password",
			body:           map[string]string{"name": "Dana", "email": "dana@example.test", "password": "short"},
			mockSetup:      func(m *MockUserRepository) {},
			expectedStatus: http.StatusUnprocessableEntity,
			expectedField:  "password",
		},
		{
			name:           "Invalid email",
			body:           map[string]string{"name": "Dana", "email": "nope", "password": strong},
			mockSetup:      func(m *MockUserRepository) {},
			expectedStatus: http.StatusUnprocessableEntity,
			expectedField:  "email",
		},
		{
			name: "Duplicate email",
			body: map[string]string{"name": "Dana", "email": "dana@example.test", "password": strong},
			mockSetup: func(m *MockUserRepository) {
				m.On("Create", mock.Anything, mock.Anything).Return(models.NewConflictError("User already exists"))
			},
			expectedStatus: http.StatusConflict,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := new(MockUserRepository)
			tt.mockSetup(repo)
			s := &Server{
				config:   &config.Config{JWTSecret: testSecret, JWTTTLHours: 1},
				userRepo: repo,
			}
			app := fiber.New()
			app.Post("/signup", s.Signup)

			resp := postJSON(t, app, "/signup", tt.body)
			defer func() { _ = resp.Body.Close() }()
			assert.Equal(t, tt.expectedStatus, resp.StatusCode)

			if tt.expectedStatus == http.StatusCreated {
				var body struct {
					Token string      `json:"token"`
					User  models.User `json:"user"`
				}
				require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
				claims, err := middleware.ParseToken(testSecret, body.Token)
				require.NoError(t, err)
				assert.Equal(t, uint(7), claims.UserID)
			} else if tt.expectedField != "" {
				var body models.ErrorResponse
				require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
				assert.Equal(t, tt.expectedField, body.Field)
			}
			repo.AssertExpectations(t)
		})
	}
}

func TestLogin(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("Correct-Horse-42"), bcrypt.MinCost)
	require.NoError(t, err)
	stored := &models.User{ID: 3, Email: "dana@example.test", Password: string(hash), Role: models.RoleUser}

	tests := []struct {
		name           string
		email          string
		password       string
		found          *models.User
		expectedStatus int
	}{
		{"Success", "dana@example.test", "Correct-Horse-42", stored, http.StatusOK},
		{"Wrong password", "dana@example.test", "Wrong-Horse-42", stored, http.StatusUnauthorized},
		{"Unknown email", "ghost@example.test", "Correct-Horse-42", nil, http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := new(MockUserRepository)
			if tt.found != nil {
				repo.On("GetByEmail", mock.Anything, tt.email).Return(tt.found, nil)
			} else {
				repo.On("GetByEmail", mock.Anything, tt.email).Return(nil, nil)
			}
			s := &Server{config: &config.Config{JWTSecret: testSecret}, userRepo: repo}
			app := fiber.New()
			app.Post("/login", s.Login)

			resp := postJSON(t, app, "/login", map[string]string{"email": tt.email, "password": tt.password})
			defer func() { _ = resp.Body.Close() }()
			assert.Equal(t, tt.expectedStatus, resp.StatusCode)
			repo.AssertExpectations(t)
		})
	}
}

func TestLogout_RevokesToken(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	_, token := env.user(t, "dana", models.RoleUser)

	var me models.User
	require.Equal(t, http.StatusOK, env.do(t, http.MethodGet, "/api/me", token, nil, &me))
	assert.Equal(t, "dana", me.Name)

	require.Equal(t, http.StatusNoContent, env.do(t, http.MethodPost, "/api/auth/logout", token, nil, nil))

	var errBody models.ErrorResponse
	assert.Equal(t, http.StatusUnauthorized, env.do(t, http.MethodGet, "/api/me", token, nil, &errBody))
	assert.Equal(t, "Token has been revoked", errBody.Error)
}

func TestSignupThenLogin(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	creds := map[string]string{"name": "Dana", "email": "dana@example.test", "password": "Correct-Horse-42"}

	require.Equal(t, http.StatusCreated, env.do(t, http.MethodPost, "/api/auth/signup", "", creds, nil))

	var errBody models.ErrorResponse
	assert.Equal(t, http.StatusConflict, env.do(t, http.MethodPost, "/api/auth/signup", "", creds, &errBody))

	var login struct {
		Token string      `json:"token"`
		User  models.User `json:"user"`
	}
	require.Equal(t, http.StatusOK, env.do(t, http.MethodPost, "/api/auth/login", "",
		map[string]string{"email": "dana@example.test", "password": "Correct-Horse-42"}, &login))
	assert.NotEmpty(t, login.Token)
	assert.Equal(t, models.RoleUser, login.User.Role)

	var updated models.User
	require.Equal(t, http.StatusOK, env.do(t, http.MethodPut, "/api/me", login.Token,
		map[string]string{"phone": "555-0199"}, &updated))
	assert.Equal(t, "555-0199", updated.Phone)
	assert.Nil(t, updated.SalespersonStatus)

	// Contact edits must not drop the password hash.
	require.Equal(t, http.StatusOK, env.do(t, http.MethodPost, "/api/auth/login", "",
		map[string]string{"email": "dana@example.test", "password": "Correct-Horse-42"}, &login))
}
