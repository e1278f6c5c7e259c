package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"sigede/internal/config"
	"sigede/internal/middleware"
	"sigede/internal/models"

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

func (m *MockUserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	args := m.Called(ctx, username)
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

func (m *MockUserRepository) SetRole(ctx context.Context, id uint, role models.UserRole) (*models.User, error) {
	args := m.Called(ctx, id, role)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserRepository) ListByRole(ctx context.Context, role models.UserRole, limit, offset int) ([]models.User, error) {
	args := m.Called(ctx, role, limit, offset)
	return args.Get(0).([]models.User), args.Error(1)
}

const testSecret = "test_secret_with_at_least_32_characters"

func TestSignup(t *testing.T) {
	app := fiber.New()
	mockRepo := new(MockUserRepository)

	s := &Server{
		config:   &config.Config{JWTSecret: testSecret},
		userRepo: mockRepo,
	}

	app.Post("/signup", s.Signup)

	tests := []struct {
		name           string
		body           map[string]string
		mockSetup      func()
		expectedStatus int
	}{
		{
			name: "Success",
			body: map[string]string{
				"username": "siti.aminah",
				"email":    "siti@sukamaju.desa.id",
				"password": "Rahasia12345",
			},
			mockSetup: func() {
				mockRepo.On("GetByEmail", mock.Anything, "siti@sukamaju.desa.id").Return(nil, nil)
				mockRepo.On("GetByUsername", mock.Anything, "siti.aminah").Return(nil, nil)
				mockRepo.On("Create", mock.Anything, mock.MatchedBy(func(u *models.User) bool {
					return u.Role == models.RoleWarga && u.Password != "Rahasia12345"
				})).Return(nil)
			},
			expectedStatus: http.StatusCreated,
		},
		{
			name: "Duplicate Email",
			body: map[string]string{
				"username": "budi",
				"email":    "exists@sukamaju.desa.id",
				"password": "Rahasia12345",
			},
			mockSetup: func() {
				mockRepo.On("GetByEmail", mock.Anything, "exists@sukamaju.desa.id").Return(&models.User{ID: 1}, nil)
			},
			expectedStatus: http.StatusConflict,
		},
		{
			name: "Weak Password",
			body: map[string]string{
				"username": "joko",
				"email":    "joko@sukamaju.desa.id",
				"password": "short",
			},
			mockSetup:      func() {},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name: "Missing Fields",
			body: map[string]string{
				"email": "nobody@sukamaju.desa.id",
			},
			mockSetup:      func() {},
			expectedStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.mockSetup()
			body, _ := json.Marshal(tt.body)
			req := httptest.NewRequest(http.MethodPost, "/signup", bytes.NewReader(body))
			req.Header.Set("Content-Type", "application/json")

			resp, err := app.Test(req)
			require.NoError(t, err)
			defer func() { _ = resp.Body.Close() }()
			assert.Equal(t, tt.expectedStatus, resp.StatusCode)
		})
	}
}

func TestLogin(t *testing.T) {
	app := fiber.New()
	mockRepo := new(MockUserRepository)

	s := &Server{
		config:   &config.Config{JWTSecret: testSecret},
		userRepo: mockRepo,
	}
	app.Post("/login", s.Login)

	hash, err := bcrypt.GenerateFromPassword([]byte("Rahasia12345"), bcrypt.MinCost)
	require.NoError(t, err)
	user := &models.User{ID: 7, Username: "siti", Email: "siti@sukamaju.desa.id", Password: string(hash), Role: models.RoleWarga}

	mockRepo.On("GetByEmail", mock.Anything, "siti@sukamaju.desa.id").Return(user, nil)
	mockRepo.On("GetByUsername", mock.Anything, "siti").Return(user, nil)
	mockRepo.On("GetByEmail", mock.Anything, "ghost@sukamaju.desa.id").Return(nil, nil)

	login := func(t *testing.T, email, password string) *http.Response {
		body, _ := json.Marshal(map[string]string{"email": email, "password": password})
		req := httptest.NewRequest(http.MethodPost, "/login", bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		resp, err := app.Test(req)
		require.NoError(t, err)
		t.Cleanup(func() { _ = resp.Body.Close() })
		return resp
	}

	t.Run("email", func(t *testing.T) {
		resp := login(t, "Siti@Sukamaju.desa.id", "Rahasia12345")
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var out struct {
			Token string `json:"token"`
		}
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
		claims, err := middleware.ParseToken(testSecret, out.Token)
		require.NoError(t, err)
		assert.Equal(t, uint(7), claims.UserID)
	})

	t.Run("username", func(t *testing.T) {
		assert.Equal(t, http.StatusOK, login(t, "siti", "Rahasia12345").StatusCode)
	})

	t.Run("wrong password", func(t *testing.T) {
		assert.Equal(t, http.StatusUnauthorized, login(t, "siti@sukamaju.desa.id", "Salah123456").StatusCode)
	})

	t.Run("unknown user", func(t *testing.T) {
		assert.Equal(t, http.StatusUnauthorized, login(t, "ghost@sukamaju.desa.id", "Rahasia12345").StatusCode)
	})
}
