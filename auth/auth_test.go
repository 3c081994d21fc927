package auth_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finvault/wallet-engine/auth"
)

func TestIssuer_TokenRoundTrip(t *testing.T) {
	i := auth.NewIssuer([]byte("test-secret"), time.Hour)

	token, err := i.Token("user-42")
	require.NoError(t, err)

	uid, err := i.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "user-42", uid)
}

func TestIssuer_Verify_WrongSecret(t *testing.T) {
	token, err := auth.NewIssuer([]byte("secret-a"), time.Hour).Token("user-42")
	require.NoError(t, err)

	_, err = auth.NewIssuer([]byte("secret-b"), time.Hour).Verify(token)

	assert.ErrorIs(t, err, auth.ErrInvalidToken)
}

func TestIssuer_Verify_ExpiredToken(t *testing.T) {
	i := auth.NewIssuer([]byte("test-secret"), -time.Minute)
	token, err := i.Token("user-42")
	require.NoError(t, err)

	_, err = i.Verify(token)

	assert.ErrorIs(t, err, auth.ErrInvalidToken)
}

func TestIssuer_Verify_Garbage(t *testing.T) {
	i := auth.NewIssuer([]byte("test-secret"), time.Hour)

	_, err := i.Verify("not-a-token")

	assert.ErrorIs(t, err, auth.ErrInvalidToken)
}

func TestMiddleware(t *testing.T) {
	i := auth.NewIssuer([]byte("test-secret"), time.Hour)

	var seenUID string
	handler := i.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		uid, ok := auth.UserID(r.Context())
		require.True(t, ok)
		seenUID = uid
		w.WriteHeader(http.StatusOK)
	}))

	t.Run("valid bearer token reaches the handler", func(t *testing.T) {
		token, err := i.Token("user-42")
		require.NoError(t, err)

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "user-42", seenUID)
	})

	t.Run("missing header is 401", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("malformed token is 401", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer nope")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}
