package middleware_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/phrazzld/enroll-api/internal/api/middleware"
	"github.com/phrazzld/enroll-api/internal/mocks"
	"github.com/phrazzld/enroll-api/internal/service/auth"
	"github.com/stretchr/testify/assert"
)

func TestAuthenticate(t *testing.T) {
	accountID := uuid.New()

	tests := []struct {
		name       string
		header     string
		validate   func(ctx context.Context, token string) (*auth.Claims, error)
		wantStatus int
		wantNext   bool
	}{
		{
			name:       "missing header",
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "wrong scheme",
			header:     "Basic abc",
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:   "expired token",
			header: "Bearer old",
			validate: func(context.Context, string) (*auth.Claims, error) {
				return nil, auth.ErrExpiredToken
			},
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:   "invalid token",
			header: "Bearer bad",
			validate: func(context.Context, string) (*auth.Claims, error) {
				return nil, auth.ErrInvalidToken
			},
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:   "unexpected failure",
			header: "Bearer boom",
			validate: func(context.Context, string) (*auth.Claims, error) {
				return nil, errors.New("key store down")
			},
			wantStatus: http.StatusInternalServerError,
		},
		{
			name:   "valid token",
			header: "Bearer good",
			validate: func(_ context.Context, token string) (*auth.Claims, error) {
				assert.Equal(t, "good", token)
				return &auth.Claims{AccountID: accountID, TokenType: "access"}, nil
			},
			wantStatus: http.StatusOK,
			wantNext:   true,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			jwt := &mocks.MockJWTService{ValidateTokenFn: tc.validate}
			mw := middleware.NewAuthMiddleware(jwt)

			called := false
			next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				called = true
				got, ok := middleware.GetAccountID(r)
				assert.True(t, ok)
				assert.Equal(t, accountID, got)
				w.WriteHeader(http.StatusOK)
			})

			req := httptest.NewRequest(http.MethodGet, "/api/credits", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := httptest.NewRecorder()
			mw.Authenticate(next).ServeHTTP(rec, req)

			assert.Equal(t, tc.wantStatus, rec.Code)
			assert.Equal(t, tc.wantNext, called)
		})
	}
}

func TestGetAccountIDMissing(t *testing.T) {
	_, ok := middleware.GetAccountID(httptest.NewRequest(http.MethodGet, "/", nil))
	assert.False(t, ok)
}
