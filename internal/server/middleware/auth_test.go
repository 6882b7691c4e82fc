package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClaims struct{ ownerID int64 }

func (c fakeClaims) GetOwnerID() int64 { return c.ownerID }

type fakeValidator struct {
	ownerID int64
	err     error
}

func (v fakeValidator) ValidateToken(token string) (OwnerIDGetter, error) {
	if v.err != nil {
		return nil, v.err
	}
	return fakeClaims{ownerID: v.ownerID}, nil
}

func protectedHandler(t *testing.T, wantOwner int64) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ownerID, err := GetOwnerID(r)
		require.NoError(t, err)
		assert.Equal(t, wantOwner, ownerID)
		w.WriteHeader(http.StatusOK)
	})
}

func TestAuthValidToken(t *testing.T) {
	handler := Auth(fakeValidator{ownerID: 42})(protectedHandler(t, 42))

	req := httptest.NewRequest(http.MethodGet, "/sessions", nil)
	req.Header.Set("Authorization", "Bearer good-token")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestAuthRejects(t *testing.T) {
	tests := []struct {
		name   string
		header string
		err    error
	}{
		{name: "missing header", header: ""},
		{name: "wrong scheme", header: "Basic abc"},
		{name: "no token", header: "Bearer"},
		{name: "invalid token", header: "Bearer bad", err: errors.New("expired")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := Auth(fakeValidator{ownerID: 42, err: tt.err})(
				http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
					t.Fatal("handler should not be reached")
				}))

			req := httptest.NewRequest(http.MethodGet, "/sessions", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, req)

			assert.Equal(t, http.StatusUnauthorized, rr.Code)
		})
	}
}

func TestAuthBearerCaseInsensitive(t *testing.T) {
	handler := Auth(fakeValidator{ownerID: 7})(protectedHandler(t, 7))

	req := httptest.NewRequest(http.MethodGet, "/sessions", nil)
	req.Header.Set("Authorization", "bearer token")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestGetOwnerIDMissing(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/sessions", nil)
	_, err := GetOwnerID(req)
	assert.Error(t, err)
}
